package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/analysis"
	"vigil/internal/detect"
	"vigil/internal/edge"
	"vigil/internal/scenario"
	"vigil/internal/store"
)

type fixedClient struct {
	answer string
	err    error
}

func (c *fixedClient) Infer(ctx context.Context, image []byte, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return c.answer, c.err
}

func (c *fixedClient) ID() string { return "fixed" }

func newSweepFixture(t *testing.T, client *fixedClient) (*Scheduler, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "vigil.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	a := analysis.NewAnalyzer(
		detect.NewDetector(client, 2, time.Second),
		detect.NewValidator(client, time.Second, false),
		2,
	)
	a.Recorder = st
	return New(time.Minute, st, a), st
}

func pendingSubmission() edge.Submission {
	return edge.Submission{
		CameraID:  "edge-01",
		Timestamp: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Results: map[scenario.Scenario]edge.ScenarioResult{
			scenario.FireDetection: {RawResponse: "Yes, open flame visible", Detected: true},
		},
	}
}

func TestSweepRevalidatesAndMarks(t *testing.T) {
	s, st := newSweepFixture(t, &fixedClient{answer: "yes"})
	ctx := context.Background()

	_, err := st.SaveEdgeSubmission(ctx, pendingSubmission())
	require.NoError(t, err)

	s.sweep(ctx)

	pending, err := st.PendingEdgeSubmissions(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "复核成功后应被标记")

	verdict, found, err := st.LatestVerdict(ctx, "edge-01")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []scenario.Scenario{scenario.FireDetection}, verdict.Violations)
}

func TestSweepLeavesFailedForRetry(t *testing.T) {
	s, st := newSweepFixture(t, &fixedClient{err: errors.New("模型服务不可用")})
	ctx := context.Background()

	_, err := st.SaveEdgeSubmission(ctx, pendingSubmission())
	require.NoError(t, err)

	s.sweep(ctx)

	pending, err := st.PendingEdgeSubmissions(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1, "复核失败应留待下轮重试")
}

func TestRunStopsOnCancel(t *testing.T) {
	s, _ := newSweepFixture(t, &fixedClient{answer: "no"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
