package decision

import (
	"time"

	"vigil/internal/scenario"
)

// SafetyVerdict 一个分析周期的终态产物：派生、只读、由外部存储落盘
type SafetyVerdict struct {
	CameraID      string              `json:"camera_id"`
	Timestamp     time.Time           `json:"timestamp"`
	TruePositives []scenario.Scenario `json:"true_positives"`
	// Violations 与 TruePositives 恒等；冗余保留以对齐告警消费方的字段
	Violations         []scenario.Scenario          `json:"violations"`
	FalsePositives     []scenario.Scenario          `json:"false_positives"`
	Errored            map[scenario.Scenario]string `json:"errored,omitempty"`
	ActionRequired     bool                         `json:"action_required"`
	RecommendedActions map[scenario.Scenario]string `json:"recommended_actions,omitempty"`
}

// Alert 违规告警载荷
type Alert struct {
	Priority           string                       `json:"priority"`
	CameraID           string                       `json:"camera_id"`
	Timestamp          time.Time                    `json:"timestamp"`
	Violations         []scenario.Scenario          `json:"violations"`
	ViolationCount     int                          `json:"violation_count"`
	RecommendedActions map[scenario.Scenario]string `json:"recommended_actions"`
	Message            string                       `json:"message"`
}
