package analysis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"vigil/internal/decision"
	"vigil/internal/detect"
	"vigil/internal/edge"
	"vigil/internal/logger"
	"vigil/internal/pkg/jsonutil"
	"vigil/internal/scenario"
)

// 中文说明：
// 分析编排：检测 → 复核（仅检出场景，彼此并发）→ 决策 → 落库/告警。
// 整体 ctx 取消时只返回错误，绝不把残缺结果包装成完整结论。

// TextNotifier 文本告警出口（Telegram 等）
type TextNotifier interface {
	SendText(text string) error
}

// Recorder 结论与事件的持久化出口
type Recorder interface {
	SaveAnalysis(ctx context.Context, v decision.SafetyVerdict, events []detect.DetectionEvent) error
}

// Analyzer 一帧图像的完整分析流水线
type Analyzer struct {
	Detector       *detect.Detector
	Validator      *detect.Validator
	MaxConcurrency int64
	Recorder       Recorder     // 可为空：不落库
	Notifier       TextNotifier // 可为空：不告警
}

func NewAnalyzer(detector *detect.Detector, validator *detect.Validator, maxConcurrency int) *Analyzer {
	if maxConcurrency <= 0 {
		maxConcurrency = 3
	}
	return &Analyzer{
		Detector:       detector,
		Validator:      validator,
		MaxConcurrency: int64(maxConcurrency),
	}
}

// Analyze 执行完整两阶段分析并产出结论
func (a *Analyzer) Analyze(ctx context.Context, frame detect.Frame, scenarios []scenario.Scenario) (decision.SafetyVerdict, error) {
	if a.Detector == nil || a.Validator == nil {
		return decision.SafetyVerdict{}, fmt.Errorf("分析器未初始化")
	}
	outcomes, err := a.Detector.Detect(ctx, frame, scenarios)
	if err != nil {
		return decision.SafetyVerdict{}, err
	}
	return a.vetoAndDecide(ctx, frame, outcomes)
}

// Revalidate 对边缘上报的第一阶段结果补做复核与决策。
// 边缘侧不回传原图，复核走纯文本路径。
func (a *Analyzer) Revalidate(ctx context.Context, sub edge.Submission) (decision.SafetyVerdict, error) {
	if a.Validator == nil {
		return decision.SafetyVerdict{}, fmt.Errorf("分析器未初始化")
	}
	if err := sub.Validate(); err != nil {
		return decision.SafetyVerdict{}, err
	}
	frame := detect.Frame{CameraID: sub.CameraID, Timestamp: sub.Timestamp}
	return a.vetoAndDecide(ctx, frame, sub.Outcomes())
}

func (a *Analyzer) vetoAndDecide(ctx context.Context, frame detect.Frame, outcomes map[scenario.Scenario]detect.Outcome) (decision.SafetyVerdict, error) {
	vetoes, vetoErrs, err := a.runVetoes(ctx, frame, outcomes)
	if err != nil {
		return decision.SafetyVerdict{}, err
	}

	ts := frame.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	verdict := decision.Decide(frame.CameraID, ts, outcomes, vetoes, vetoErrs)

	logger.Infof("分析完成 camera=%s 违规=%d 误报=%d 出错=%d\n%s",
		verdict.CameraID, len(verdict.Violations), len(verdict.FalsePositives), len(verdict.Errored),
		renderVerdictTable(outcomes, vetoes, verdict))
	logger.Debugf("结论载荷:\n%s", jsonutil.MarshalPretty(verdict))

	a.persist(ctx, verdict, outcomes)
	a.alert(verdict)
	return verdict, nil
}

// runVetoes 并发复核所有检出场景；并发受信号量约束，结束前等待全部返回
func (a *Analyzer) runVetoes(ctx context.Context, frame detect.Frame, outcomes map[scenario.Scenario]detect.Outcome) (map[scenario.Scenario]detect.VetoResult, map[scenario.Scenario]error, error) {
	limit := a.MaxConcurrency
	if limit <= 0 {
		limit = 3
	}
	sem := semaphore.NewWeighted(limit)
	vetoes := make(map[scenario.Scenario]detect.VetoResult)
	vetoErrs := make(map[scenario.Scenario]error)
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for sc, out := range outcomes {
		if out.Err != nil || !out.Event.Detected {
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, nil, err
		}
		wg.Add(1)
		go func(sc scenario.Scenario, ev detect.DetectionEvent) {
			defer wg.Done()
			defer sem.Release(1)
			res, err := a.Validator.Validate(ctx, frame, ev)
			// 每个场景 key 仅由持有它的任务写入一次
			mu.Lock()
			if err != nil {
				vetoErrs[sc] = err
			} else {
				vetoes[sc] = res
			}
			mu.Unlock()
		}(sc, out.Event)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return vetoes, vetoErrs, nil
}

func (a *Analyzer) persist(ctx context.Context, verdict decision.SafetyVerdict, outcomes map[scenario.Scenario]detect.Outcome) {
	if a.Recorder == nil {
		return
	}
	events := make([]detect.DetectionEvent, 0, len(outcomes))
	for _, out := range outcomes {
		if out.Err != nil {
			continue
		}
		events = append(events, out.Event)
	}
	if err := a.Recorder.SaveAnalysis(ctx, verdict, events); err != nil {
		logger.Warnf("结论落库失败: %v", err)
	}
}

func (a *Analyzer) alert(verdict decision.SafetyVerdict) {
	if a.Notifier == nil {
		return
	}
	alert := decision.BuildAlert(verdict)
	if alert == nil {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "安全告警 [%s]\n相机: %s\n时间: %s\n%s\n",
		alert.Priority, alert.CameraID, alert.Timestamp.Format(time.RFC3339), alert.Message)
	for _, sc := range alert.Violations {
		fmt.Fprintf(&b, "- %s: %s\n", sc.DisplayName(), alert.RecommendedActions[sc])
	}
	if err := a.Notifier.SendText(b.String()); err != nil {
		logger.Warnf("Telegram 推送失败: %v", err)
	}
}
