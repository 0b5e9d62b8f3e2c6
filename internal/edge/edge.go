package edge

import (
	"fmt"
	"strings"
	"time"

	"vigil/internal/detect"
	"vigil/internal/scenario"
)

// 中文说明：
// 边缘设备在本地完成第一阶段视觉分析后上报结果，服务端只补做复核与决策。
// 上报内容按场景携带原始回答与检出标记，入库后由调度器周期性消费。

// ScenarioResult 边缘侧单场景的第一阶段产出
type ScenarioResult struct {
	RawResponse string `json:"raw_response"`
	Detected    bool   `json:"detected"`
}

// Submission 一次边缘上报
type Submission struct {
	CameraID  string                               `json:"camera_id"`
	Timestamp time.Time                            `json:"timestamp"`
	Results   map[scenario.Scenario]ScenarioResult `json:"results"`
}

// Stored 已入库的上报记录
type Stored struct {
	ID         int64
	Submission Submission
	Validated  bool
	CreatedAt  time.Time
}

// Validate 基础校验：场景必须在目录内，检出场景必须携带原始回答
func (s Submission) Validate() error {
	if strings.TrimSpace(s.CameraID) == "" {
		return fmt.Errorf("camera_id 不能为空")
	}
	if len(s.Results) == 0 {
		return fmt.Errorf("上报结果不能为空")
	}
	for sc, r := range s.Results {
		if _, err := scenario.Lookup(sc); err != nil {
			return err
		}
		if r.Detected && strings.TrimSpace(r.RawResponse) == "" {
			return fmt.Errorf("场景 %s 标记为检出但缺少原始回答", sc)
		}
	}
	return nil
}

// Outcomes 由上报重建第一阶段结果，供复核与决策复用同一条路径。
// 边缘侧不回传原图，ImageRef 为空。
func (s Submission) Outcomes() map[scenario.Scenario]detect.Outcome {
	out := make(map[scenario.Scenario]detect.Outcome, len(s.Results))
	for sc, r := range s.Results {
		out[sc] = detect.Outcome{Event: detect.DetectionEvent{
			Scenario:    sc,
			CameraID:    s.CameraID,
			Timestamp:   s.Timestamp,
			RawResponse: r.RawResponse,
			Detected:    r.Detected,
		}}
	}
	return out
}
