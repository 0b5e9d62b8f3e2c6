package detect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/scenario"
)

func testFrame() Frame {
	return Frame{
		CameraID:  "cam-01",
		Timestamp: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Image:     []byte("jpeg-bytes"),
		Ref:       "2026-08-01/frame.jpg",
	}
}

func TestDetectAllScenariosNegative(t *testing.T) {
	client := &stubClient{reply: func(string) (string, error) {
		return "No, nothing unusual visible.", nil
	}}
	d := NewDetector(client, 3, time.Second)

	outcomes, err := d.Detect(context.Background(), testFrame(), scenario.All())
	require.NoError(t, err)
	require.Len(t, outcomes, len(scenario.All()))
	for sc, out := range outcomes {
		require.NoError(t, out.Err, "场景 %s", sc)
		assert.False(t, out.Event.Detected)
		assert.Equal(t, sc, out.Event.Scenario)
		assert.Equal(t, "cam-01", out.Event.CameraID)
		assert.Equal(t, "2026-08-01/frame.jpg", out.Event.ImageRef)
	}
	assert.Equal(t, len(scenario.All()), client.callCount())
}

func TestDetectPerScenarioPrompts(t *testing.T) {
	smokeEntry, err := scenario.Lookup(scenario.SmokeDetection)
	require.NoError(t, err)
	fireEntry, err := scenario.Lookup(scenario.FireDetection)
	require.NoError(t, err)

	client := &stubClient{reply: func(prompt string) (string, error) {
		switch prompt {
		case smokeEntry.VisionPrompt:
			return "Yes, visible smoke detected", nil
		case fireEntry.VisionPrompt:
			return "No flames anywhere", nil
		default:
			return "", fmt.Errorf("unexpected prompt: %s", prompt)
		}
	}}
	d := NewDetector(client, 2, time.Second)

	outcomes, err := d.Detect(context.Background(), testFrame(),
		[]scenario.Scenario{scenario.SmokeDetection, scenario.FireDetection})
	require.NoError(t, err)
	require.NoError(t, outcomes[scenario.SmokeDetection].Err)
	assert.True(t, outcomes[scenario.SmokeDetection].Event.Detected)
	require.NoError(t, outcomes[scenario.FireDetection].Err)
	assert.False(t, outcomes[scenario.FireDetection].Event.Detected)
}

func TestDetectErrorDoesNotAffectSiblings(t *testing.T) {
	smokeEntry, err := scenario.Lookup(scenario.SmokeDetection)
	require.NoError(t, err)
	boom := errors.New("服务不可用")

	client := &stubClient{reply: func(prompt string) (string, error) {
		if prompt == smokeEntry.VisionPrompt {
			return "", boom
		}
		return "No.", nil
	}}
	d := NewDetector(client, 3, time.Second)

	outcomes, err := d.Detect(context.Background(), testFrame(), scenario.All())
	require.NoError(t, err)
	require.Error(t, outcomes[scenario.SmokeDetection].Err)
	assert.True(t, errors.Is(outcomes[scenario.SmokeDetection].Err, boom))
	// 其余场景正常产出，错误不折算为"未检出"
	for _, sc := range scenario.All() {
		if sc == scenario.SmokeDetection {
			continue
		}
		require.NoError(t, outcomes[sc].Err, "场景 %s", sc)
		assert.False(t, outcomes[sc].Event.Detected)
	}
}

func TestDetectAmbiguousAnswerIsError(t *testing.T) {
	client := &stubClient{reply: func(string) (string, error) {
		return "Maybe, hard to tell", nil
	}}
	d := NewDetector(client, 1, time.Second)

	outcomes, err := d.Detect(context.Background(), testFrame(),
		[]scenario.Scenario{scenario.FireDetection})
	require.NoError(t, err)
	out := outcomes[scenario.FireDetection]
	require.Error(t, out.Err)
	assert.True(t, errors.Is(out.Err, ErrAmbiguous))
	assert.False(t, out.Event.Detected)
}

func TestDetectUnknownScenarioRejectedBeforeAnyCall(t *testing.T) {
	client := &stubClient{reply: func(string) (string, error) {
		return "No.", nil
	}}
	d := NewDetector(client, 3, time.Second)

	_, err := d.Detect(context.Background(), testFrame(),
		[]scenario.Scenario{scenario.SmokeDetection, scenario.Scenario("earthquake_detection")})
	require.Error(t, err)
	var unknown scenario.ErrUnknown
	assert.True(t, errors.As(err, &unknown))
	assert.Equal(t, 0, client.callCount())
}

func TestDetectCancelledContext(t *testing.T) {
	client := &stubClient{reply: func(string) (string, error) {
		return "No.", nil
	}}
	d := NewDetector(client, 1, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.Detect(ctx, testFrame(), scenario.All())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestDetectConcurrencyBounded(t *testing.T) {
	var (
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	client := &stubClient{reply: func(string) (string, error) {
		mu.Lock()
		active++
		if active > maxSeen {
			maxSeen = active
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return "No.", nil
	}}
	d := NewDetector(client, 2, time.Second)

	_, err := d.Detect(context.Background(), testFrame(), scenario.All())
	require.NoError(t, err)
	assert.LessOrEqual(t, maxSeen, 2)
}
