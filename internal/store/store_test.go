package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/decision"
	"vigil/internal/detect"
	"vigil/internal/edge"
	"vigil/internal/scenario"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "vigil.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleVerdict(cameraID string, ts time.Time, violations ...scenario.Scenario) decision.SafetyVerdict {
	v := decision.SafetyVerdict{
		CameraID:       cameraID,
		Timestamp:      ts,
		TruePositives:  violations,
		Violations:     violations,
		ActionRequired: len(violations) > 0,
	}
	return v
}

func TestSaveAnalysisRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	verdict := sampleVerdict("cam-01", ts, scenario.FireDetection)
	events := []detect.DetectionEvent{
		{Scenario: scenario.FireDetection, CameraID: "cam-01", Timestamp: ts, ImageRef: "2026-08-01/a.jpg", RawResponse: "Yes, flames", Detected: true},
		{Scenario: scenario.SmokeDetection, CameraID: "cam-01", Timestamp: ts, RawResponse: "No smoke", Detected: false},
	}
	require.NoError(t, s.SaveAnalysis(ctx, verdict, events))

	got, found, err := s.LatestVerdict(ctx, "cam-01")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "cam-01", got.CameraID)
	assert.Equal(t, []scenario.Scenario{scenario.FireDetection}, got.Violations)
	assert.True(t, got.ActionRequired)
}

func TestListVerdictsOrderAndFilter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveVerdict(ctx, sampleVerdict("cam-01", base)))
	require.NoError(t, s.SaveVerdict(ctx, sampleVerdict("cam-01", base.Add(time.Minute), scenario.SmokeDetection)))
	require.NoError(t, s.SaveVerdict(ctx, sampleVerdict("cam-02", base.Add(2*time.Minute))))

	all, err := s.ListVerdicts(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "cam-02", all[0].CameraID)

	cam1, err := s.ListVerdicts(ctx, "cam-01", 10)
	require.NoError(t, err)
	require.Len(t, cam1, 2)
	assert.True(t, cam1[0].Timestamp.After(cam1[1].Timestamp))

	one, err := s.ListVerdicts(ctx, "cam-01", 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
}

func TestLatestVerdictMissingCamera(t *testing.T) {
	s := openTestStore(t)
	_, found, err := s.LatestVerdict(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestViolationCounts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveVerdict(ctx, sampleVerdict("cam-01", base, scenario.FireDetection, scenario.SmokeDetection)))
	require.NoError(t, s.SaveVerdict(ctx, sampleVerdict("cam-01", base.Add(time.Minute), scenario.FireDetection)))
	require.NoError(t, s.SaveVerdict(ctx, sampleVerdict("cam-02", base.Add(2*time.Minute))))

	counts, err := s.ViolationCounts(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[scenario.FireDetection])
	assert.Equal(t, 1, counts[scenario.SmokeDetection])
	assert.Zero(t, counts[scenario.FallDetection])
}

func TestEdgeSubmissionLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	sub := edge.Submission{
		CameraID:  "edge-01",
		Timestamp: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Results: map[scenario.Scenario]edge.ScenarioResult{
			scenario.SmokeDetection: {RawResponse: "Yes, smoke", Detected: true},
		},
	}
	id, err := s.SaveEdgeSubmission(ctx, sub)
	require.NoError(t, err)
	assert.Positive(t, id)

	pending, err := s.PendingEdgeSubmissions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, id, pending[0].ID)
	assert.Equal(t, "edge-01", pending[0].Submission.CameraID)
	assert.True(t, pending[0].Submission.Results[scenario.SmokeDetection].Detected)

	require.NoError(t, s.MarkEdgeValidated(ctx, id))
	pending, err = s.PendingEdgeSubmissions(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.Error(t, s.MarkEdgeValidated(ctx, id+999))
}

func TestSaveEdgeSubmissionRejectsInvalid(t *testing.T) {
	s := openTestStore(t)
	_, err := s.SaveEdgeSubmission(context.Background(), edge.Submission{CameraID: ""})
	require.Error(t, err)
}

func TestClosedStore(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Close())
	_, err := s.ListVerdicts(context.Background(), "", 10)
	require.Error(t, err)
}

func TestFrameStoreSaveLoad(t *testing.T) {
	fs := NewFrameStore(t.TempDir())
	ref, err := fs.Save([]byte("jpeg-bytes"), ".jpg")
	require.NoError(t, err)
	assert.Contains(t, ref, ".jpg")

	data, err := fs.Load(ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)

	_, err = fs.Save(nil, ".jpg")
	require.Error(t, err)
	_, err = fs.Load("../escape.jpg")
	require.Error(t, err)
}
