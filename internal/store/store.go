package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"vigil/internal/decision"
	"vigil/internal/detect"
	"vigil/internal/edge"
	"vigil/internal/scenario"
)

// 中文说明：
// SQLite 持久层：结论与检测事件按 JSON 载荷落库，边缘上报带 validated 标记，
// 由调度器消费。打开时建表，幂等。

// Store 结论/事件/边缘上报的 SQLite 存储
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open 打开（必要时创建）数据库并初始化表结构
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("创建数据目录失败: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("打开 SQLite 失败: %w", err)
	}
	// modernc/sqlite 为进程内实现，单写者即可
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS verdicts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			camera_id TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			action_required INTEGER NOT NULL,
			violations TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_verdicts_camera ON verdicts(camera_id, timestamp DESC);

		CREATE TABLE IF NOT EXISTS detection_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			camera_id TEXT NOT NULL,
			scenario TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			image_ref TEXT,
			detected INTEGER NOT NULL,
			raw_response TEXT,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_events_camera ON detection_events(camera_id, timestamp DESC);

		CREATE TABLE IF NOT EXISTS edge_submissions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			camera_id TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			payload TEXT NOT NULL,
			validated INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			validated_at INTEGER
		);
		CREATE INDEX IF NOT EXISTS idx_edge_pending ON edge_submissions(validated, created_at);
	`)
	if err != nil {
		return fmt.Errorf("初始化表结构失败: %w", err)
	}
	return nil
}

// Close 关闭数据库
func (s *Store) Close() error {
	s.mu.Lock()
	db := s.db
	s.db = nil
	s.mu.Unlock()
	if db == nil {
		return nil
	}
	return db.Close()
}

func (s *Store) conn() (*sql.DB, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("存储未初始化")
	}
	return db, nil
}

// SaveAnalysis 在同一事务内写入结论与其检测事件
func (s *Store) SaveAnalysis(ctx context.Context, v decision.SafetyVerdict, events []detect.DetectionEvent) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = saveVerdictExec(ctx, tx, v); err != nil {
		return err
	}
	for _, ev := range events {
		if err = saveEventExec(ctx, tx, ev); err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}

type execContext interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
}

func saveVerdictExec(ctx context.Context, exec execContext, v decision.SafetyVerdict) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("序列化结论失败: %w", err)
	}
	violations, err := json.Marshal(v.Violations)
	if err != nil {
		return fmt.Errorf("序列化违规列表失败: %w", err)
	}
	_, err = exec.ExecContext(ctx, `
		INSERT INTO verdicts (camera_id, timestamp, action_required, violations, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		v.CameraID, v.Timestamp.UnixMilli(), boolToInt(v.ActionRequired),
		string(violations), string(payload), time.Now().UnixMilli())
	return err
}

func saveEventExec(ctx context.Context, exec execContext, ev detect.DetectionEvent) error {
	_, err := exec.ExecContext(ctx, `
		INSERT INTO detection_events (camera_id, scenario, timestamp, image_ref, detected, raw_response, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.CameraID, string(ev.Scenario), ev.Timestamp.UnixMilli(),
		nullIfEmpty(ev.ImageRef), boolToInt(ev.Detected), ev.RawResponse, time.Now().UnixMilli())
	return err
}

// SaveVerdict 单独写入一条结论
func (s *Store) SaveVerdict(ctx context.Context, v decision.SafetyVerdict) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	return saveVerdictExec(ctx, db, v)
}

// SaveEvents 写入检测事件
func (s *Store) SaveEvents(ctx context.Context, events []detect.DetectionEvent) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	for _, ev := range events {
		if err := saveEventExec(ctx, db, ev); err != nil {
			return err
		}
	}
	return nil
}

// ListVerdicts 按时间倒序返回结论；cameraID 为空表示不过滤
func (s *Store) ListVerdicts(ctx context.Context, cameraID string, limit int) ([]decision.SafetyVerdict, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `SELECT payload FROM verdicts`
	var args []interface{}
	if cameraID != "" {
		query += ` WHERE camera_id=?`
		args = append(args, cameraID)
	}
	query += ` ORDER BY timestamp DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []decision.SafetyVerdict
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var v decision.SafetyVerdict
		if err := json.Unmarshal([]byte(payload), &v); err != nil {
			return nil, fmt.Errorf("反序列化结论失败: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// LatestVerdict 返回某相机最近一条结论
func (s *Store) LatestVerdict(ctx context.Context, cameraID string) (decision.SafetyVerdict, bool, error) {
	db, err := s.conn()
	if err != nil {
		return decision.SafetyVerdict{}, false, err
	}
	row := db.QueryRowContext(ctx, `
		SELECT payload FROM verdicts WHERE camera_id=?
		ORDER BY timestamp DESC, id DESC LIMIT 1`, cameraID)
	var payload string
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decision.SafetyVerdict{}, false, nil
		}
		return decision.SafetyVerdict{}, false, err
	}
	var v decision.SafetyVerdict
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return decision.SafetyVerdict{}, false, fmt.Errorf("反序列化结论失败: %w", err)
	}
	return v, true, nil
}

// ViolationCounts 统计最近若干条结论中各场景的违规次数（用于看板）
func (s *Store) ViolationCounts(ctx context.Context, recent int) (map[scenario.Scenario]int, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	if recent <= 0 || recent > 5000 {
		recent = 500
	}
	rows, err := db.QueryContext(ctx, `
		SELECT violations FROM verdicts ORDER BY timestamp DESC, id DESC LIMIT ?`, recent)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[scenario.Scenario]int)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var list []scenario.Scenario
		if err := json.Unmarshal([]byte(raw), &list); err != nil {
			continue
		}
		for _, sc := range list {
			counts[sc]++
		}
	}
	return counts, rows.Err()
}

// SaveEdgeSubmission 写入边缘上报，返回记录 ID
func (s *Store) SaveEdgeSubmission(ctx context.Context, sub edge.Submission) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	if err := sub.Validate(); err != nil {
		return 0, err
	}
	payload, err := json.Marshal(sub)
	if err != nil {
		return 0, fmt.Errorf("序列化边缘上报失败: %w", err)
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO edge_submissions (camera_id, timestamp, payload, validated, created_at)
		VALUES (?, ?, ?, 0, ?)`,
		sub.CameraID, sub.Timestamp.UnixMilli(), string(payload), time.Now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// PendingEdgeSubmissions 按入库顺序返回待复核的边缘上报
func (s *Store) PendingEdgeSubmissions(ctx context.Context, limit int) ([]edge.Stored, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, payload, created_at FROM edge_submissions
		WHERE validated=0 ORDER BY created_at ASC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []edge.Stored
	for rows.Next() {
		var (
			rec     edge.Stored
			payload string
			created int64
		)
		if err := rows.Scan(&rec.ID, &payload, &created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &rec.Submission); err != nil {
			return nil, fmt.Errorf("反序列化边缘上报失败: %w", err)
		}
		rec.CreatedAt = time.UnixMilli(created)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MarkEdgeValidated 标记边缘上报已复核
func (s *Store) MarkEdgeValidated(ctx context.Context, id int64) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `
		UPDATE edge_submissions SET validated=1, validated_at=? WHERE id=?`,
		time.Now().UnixMilli(), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("边缘上报 %d 不存在", id)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}
