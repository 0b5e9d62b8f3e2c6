package jobs

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"vigil/internal/decision"
)

// 中文说明：
// 异步分析任务登记表（内存态）。任务结果只由持有该任务的协程写入，
// 查询端拿到的是快照拷贝，避免读到写入中途的状态。

// State 任务状态
type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Job 一次异步分析任务
type Job struct {
	ID         string                  `json:"id"`
	State      State                   `json:"state"`
	CameraID   string                  `json:"camera_id"`
	CreatedAt  time.Time               `json:"created_at"`
	StartedAt  time.Time               `json:"started_at,omitempty"`
	FinishedAt time.Time               `json:"finished_at,omitempty"`
	Verdict    *decision.SafetyVerdict `json:"verdict,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

// Registry 任务登记表
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*Job)}
}

// Create 登记一个新任务（pending）
func (r *Registry) Create(cameraID string) *Job {
	j := &Job{
		ID:        uuid.NewString(),
		State:     StatePending,
		CameraID:  cameraID,
		CreatedAt: time.Now(),
	}
	r.mu.Lock()
	r.jobs[j.ID] = j
	r.mu.Unlock()
	return j
}

// Start 标记任务开始执行
func (r *Registry) Start(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("任务 %s 不存在", id)
	}
	if j.State != StatePending {
		return fmt.Errorf("任务 %s 状态为 %s，无法开始", id, j.State)
	}
	j.State = StateProcessing
	j.StartedAt = time.Now()
	return nil
}

// Complete 写入任务结果
func (r *Registry) Complete(id string, v decision.SafetyVerdict) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("任务 %s 不存在", id)
	}
	vv := v
	j.State = StateCompleted
	j.Verdict = &vv
	j.FinishedAt = time.Now()
	return nil
}

// Fail 记录任务失败原因
func (r *Registry) Fail(id string, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("任务 %s 不存在", id)
	}
	j.State = StateFailed
	if err != nil {
		j.Error = err.Error()
	}
	j.FinishedAt = time.Now()
	return nil
}

// Get 返回任务快照
func (r *Registry) Get(id string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	snap := *j
	if j.Verdict != nil {
		v := *j.Verdict
		snap.Verdict = &v
	}
	return snap, true
}
