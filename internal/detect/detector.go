package detect

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"vigil/internal/gateway/provider"
	"vigil/internal/logger"
	"vigil/internal/scenario"
)

// 中文说明：
// 场景检测器：对一帧图像并发执行多场景的第一阶段视觉分析。
// - 场景之间相互独立，无短路：某场景失败不影响其余场景
// - 并发受信号量约束，避免打爆模型服务
// - 每次调用有独立超时；整体 ctx 取消则立即返回错误（不产出部分结果）

// Detector 第一阶段场景检测器
type Detector struct {
	Client         provider.VisionClient
	MaxConcurrency int64
	CallTimeout    time.Duration
}

func NewDetector(client provider.VisionClient, maxConcurrency int, callTimeout time.Duration) *Detector {
	if maxConcurrency <= 0 {
		maxConcurrency = 3
	}
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	return &Detector{Client: client, MaxConcurrency: int64(maxConcurrency), CallTimeout: callTimeout}
}

// Detect 对请求的每个场景各执行一次模型调用并判定结果。
// 未知场景在任何模型调用发起之前整体拒绝。
func (d *Detector) Detect(ctx context.Context, frame Frame, scenarios []scenario.Scenario) (map[scenario.Scenario]Outcome, error) {
	if d.Client == nil {
		return nil, fmt.Errorf("模型服务客户端未配置")
	}
	entries := make(map[scenario.Scenario]scenario.Entry, len(scenarios))
	for _, sc := range scenarios {
		e, err := scenario.Lookup(sc)
		if err != nil {
			return nil, err
		}
		entries[sc] = e
	}

	sem := semaphore.NewWeighted(d.MaxConcurrency)
	results := make(map[scenario.Scenario]Outcome, len(scenarios))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, sc := range scenarios {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, err
		}
		wg.Add(1)
		go func(sc scenario.Scenario, entry scenario.Entry) {
			defer wg.Done()
			defer sem.Release(1)
			out := d.runOne(ctx, frame, sc, entry)
			// 每个场景 key 仅由持有它的任务写入一次
			mu.Lock()
			results[sc] = out
			mu.Unlock()
		}(sc, entries[sc])
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		// 整体取消：不把残缺的结果当作完整结论上报
		return nil, err
	}
	return results, nil
}

func (d *Detector) runOne(ctx context.Context, frame Frame, sc scenario.Scenario, entry scenario.Entry) Outcome {
	callCtx, cancel := context.WithTimeout(ctx, d.CallTimeout)
	defer cancel()

	raw, err := d.Client.Infer(callCtx, frame.Image, entry.VisionPrompt)
	if err != nil {
		logger.Warnf("场景 %s 第一阶段调用失败: %v", sc, err)
		return Outcome{Err: err}
	}
	detected, err := Classify(raw)
	if err != nil {
		logger.Warnf("场景 %s 第一阶段回答无法判定: %v", sc, err)
		return Outcome{Err: err}
	}
	logger.Debugf("场景 %s 第一阶段: detected=%v", sc, detected)
	return Outcome{Event: DetectionEvent{
		Scenario:    sc,
		CameraID:    frame.CameraID,
		Timestamp:   frame.Timestamp,
		ImageRef:    frame.Ref,
		RawResponse: raw,
		Detected:    detected,
	}}
}
