package detect

import (
	"time"

	"vigil/internal/scenario"
)

// Frame 一次分析的输入帧
type Frame struct {
	CameraID  string
	Timestamp time.Time
	Image     []byte
	Ref       string // 落盘后的引用路径，可为空
}

// DetectionEvent 第一阶段结果：某场景对某帧的一次视觉分析，创建后只读
type DetectionEvent struct {
	Scenario    scenario.Scenario `json:"scenario"`
	CameraID    string            `json:"camera_id"`
	Timestamp   time.Time         `json:"timestamp"`
	ImageRef    string            `json:"image_ref,omitempty"`
	RawResponse string            `json:"raw_response"`
	Detected    bool              `json:"detected"`
}

// VetoResult 第二阶段结果：仅对 Detected 事件存在
type VetoResult struct {
	Scenario             scenario.Scenario `json:"scenario"`
	ConfirmationResponse string            `json:"confirmation_response"`
	Confirmed            bool              `json:"confirmed"`
}

// Outcome 单场景的检测结果：事件或错误二选一。
// 错误（超时/服务失败/回答无法判定）不会被折算为"未检出"。
type Outcome struct {
	Event DetectionEvent
	Err   error
}
