package detect

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/scenario"
)

func detectedEvent(sc scenario.Scenario, raw string) DetectionEvent {
	return DetectionEvent{
		Scenario:    sc,
		CameraID:    "cam-01",
		Timestamp:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		RawResponse: raw,
		Detected:    true,
	}
}

func TestValidateConfirmed(t *testing.T) {
	client := &stubClient{reply: func(string) (string, error) {
		return "yes", nil
	}}
	v := NewValidator(client, time.Second, true)

	res, err := v.Validate(context.Background(), testFrame(),
		detectedEvent(scenario.SmokeDetection, "Yes, visible smoke detected"))
	require.NoError(t, err)
	assert.Equal(t, scenario.SmokeDetection, res.Scenario)
	assert.True(t, res.Confirmed)
	assert.Equal(t, "yes", res.ConfirmationResponse)
}

func TestValidateVetoed(t *testing.T) {
	client := &stubClient{reply: func(string) (string, error) {
		return "No, on closer inspection that is steam.", nil
	}}
	v := NewValidator(client, time.Second, true)

	res, err := v.Validate(context.Background(), testFrame(),
		detectedEvent(scenario.SmokeDetection, "Yes, visible smoke detected"))
	require.NoError(t, err)
	assert.False(t, res.Confirmed)
}

func TestValidatePromptAnchoredOnFirstStageText(t *testing.T) {
	client := &stubClient{reply: func(string) (string, error) {
		return "yes", nil
	}}
	v := NewValidator(client, time.Second, true)

	_, err := v.Validate(context.Background(), testFrame(),
		detectedEvent(scenario.FireDetection, "Yes, there's a small flame"))
	require.NoError(t, err)
	prompt := client.lastPrompt()
	// 第一阶段原文代入复核模板，单引号被替换为反引号
	assert.Contains(t, prompt, "Yes, there`s a small flame")
	assert.Contains(t, strings.ToLower(prompt), "'yes' or 'no'")
}

func TestValidateAmbiguousIsError(t *testing.T) {
	client := &stubClient{reply: func(string) (string, error) {
		return "It could be either.", nil
	}}
	v := NewValidator(client, time.Second, true)

	_, err := v.Validate(context.Background(), testFrame(),
		detectedEvent(scenario.FallDetection, "Yes, a person is on the ground"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAmbiguous))
}

func TestValidateRejectsNonDetectedEvent(t *testing.T) {
	client := &stubClient{reply: func(string) (string, error) {
		return "yes", nil
	}}
	v := NewValidator(client, time.Second, true)

	ev := detectedEvent(scenario.SmokeDetection, "No smoke")
	ev.Detected = false
	_, err := v.Validate(context.Background(), testFrame(), ev)
	require.Error(t, err)
	assert.Equal(t, 0, client.callCount())
}

func TestValidateImageToggle(t *testing.T) {
	client := &stubClient{reply: func(string) (string, error) {
		return "yes", nil
	}}

	withImage := NewValidator(client, time.Second, true)
	_, err := withImage.Validate(context.Background(), testFrame(),
		detectedEvent(scenario.SmokeDetection, "Yes, smoke"))
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), client.lastImage())

	textOnly := NewValidator(client, time.Second, false)
	_, err = textOnly.Validate(context.Background(), testFrame(),
		detectedEvent(scenario.SmokeDetection, "Yes, smoke"))
	require.NoError(t, err)
	assert.Nil(t, client.lastImage())
}
