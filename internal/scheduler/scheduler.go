package scheduler

import (
	"context"
	"time"

	"vigil/internal/analysis"
	"vigil/internal/edge"
	"vigil/internal/logger"
	"vigil/internal/store"
)

// 中文说明：
// 周期性扫描待复核的边缘上报：补做复核与决策后标记完成。
// 单条失败不中断本轮扫描，留待下轮重试。

// Scheduler 边缘上报的周期复核
type Scheduler struct {
	Interval time.Duration
	Store    *store.Store
	Analyzer *analysis.Analyzer
	// BatchSize 每轮最多处理的上报条数
	BatchSize int
}

func New(interval time.Duration, st *store.Store, analyzer *analysis.Analyzer) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Scheduler{Interval: interval, Store: st, Analyzer: analyzer, BatchSize: 50}
}

// Run 启动调度循环，ctx 取消后返回
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	logger.Infof("✓ 边缘复核调度已启动，周期=%v", s.Interval)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	if s.Store == nil || s.Analyzer == nil {
		return
	}
	pending, err := s.Store.PendingEdgeSubmissions(ctx, s.BatchSize)
	if err != nil {
		logger.Warnf("拉取待复核上报失败: %v", err)
		return
	}
	if len(pending) == 0 {
		return
	}
	logger.Debugf("本轮待复核上报 %d 条", len(pending))
	for _, rec := range pending {
		if ctx.Err() != nil {
			return
		}
		s.processOne(ctx, rec)
	}
}

func (s *Scheduler) processOne(ctx context.Context, rec edge.Stored) {
	verdict, err := s.Analyzer.Revalidate(ctx, rec.Submission)
	if err != nil {
		logger.Warnf("边缘上报 %d 复核失败: %v", rec.ID, err)
		return
	}
	if err := s.Store.MarkEdgeValidated(ctx, rec.ID); err != nil {
		logger.Warnf("标记边缘上报 %d 失败: %v", rec.ID, err)
		return
	}
	logger.Infof("边缘上报 %d 复核完成 camera=%s 违规=%d", rec.ID, verdict.CameraID, len(verdict.Violations))
}
