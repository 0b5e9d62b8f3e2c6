package decision

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"vigil/internal/detect"
	"vigil/internal/scenario"
)

// 中文说明：
// 决策引擎：纯聚合，无模型调用，无副作用，输入确定则输出确定。
// 不变量：场景进入 TruePositives 当且仅当 检出 且 复核确认；
// 任何场景都不能绕过复核；出错场景只进 Errored，绝不折算为 false。

// Decide 汇总各场景的检测与复核结果，产出最终结论
func Decide(cameraID string, ts time.Time, outcomes map[scenario.Scenario]detect.Outcome, vetoes map[scenario.Scenario]detect.VetoResult, vetoErrs map[scenario.Scenario]error) SafetyVerdict {
	v := SafetyVerdict{
		CameraID:  cameraID,
		Timestamp: ts,
	}
	for sc, out := range outcomes {
		if out.Err != nil {
			v.recordError(sc, out.Err)
			continue
		}
		if !out.Event.Detected {
			continue // 终态：未检出，无违规，不产生复核
		}
		if err, ok := vetoErrs[sc]; ok && err != nil {
			v.recordError(sc, err)
			continue
		}
		veto, ok := vetoes[sc]
		if !ok {
			// 检出却无复核结果：按错误处理，而不是默认通过
			v.recordError(sc, fmt.Errorf("场景 %s 缺少复核结果", sc))
			continue
		}
		if veto.Confirmed {
			v.TruePositives = append(v.TruePositives, sc)
		} else {
			v.FalsePositives = append(v.FalsePositives, sc)
		}
	}
	sortScenarios(v.TruePositives)
	sortScenarios(v.FalsePositives)

	v.Violations = append([]scenario.Scenario(nil), v.TruePositives...)
	v.ActionRequired = len(v.Violations) > 0
	if v.ActionRequired {
		v.RecommendedActions = RecommendedActions(v.Violations)
	}
	return v
}

func (v *SafetyVerdict) recordError(sc scenario.Scenario, err error) {
	if v.Errored == nil {
		v.Errored = map[scenario.Scenario]string{}
	}
	v.Errored[sc] = err.Error()
}

// RecommendedActions 按静态目录给出各违规场景的处置建议
func RecommendedActions(violations []scenario.Scenario) map[scenario.Scenario]string {
	out := make(map[scenario.Scenario]string, len(violations))
	for _, sc := range violations {
		entry, err := scenario.Lookup(sc)
		if err != nil {
			out[sc] = "Investigate and take appropriate safety measures"
			continue
		}
		out[sc] = entry.Action
	}
	return out
}

// BuildAlert 由有违规的结论构造告警；无违规返回 nil
func BuildAlert(v SafetyVerdict) *Alert {
	if !v.ActionRequired {
		return nil
	}
	names := make([]string, 0, len(v.Violations))
	for _, sc := range v.Violations {
		names = append(names, string(sc))
	}
	return &Alert{
		Priority:           "high",
		CameraID:           v.CameraID,
		Timestamp:          v.Timestamp,
		Violations:         append([]scenario.Scenario(nil), v.Violations...),
		ViolationCount:     len(v.Violations),
		RecommendedActions: RecommendedActions(v.Violations),
		Message:            fmt.Sprintf("Safety violations detected: %s", strings.Join(names, ", ")),
	}
}

func sortScenarios(list []scenario.Scenario) {
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
}
