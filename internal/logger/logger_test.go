package logger

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureOutput(t *testing.T, level string, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	SetLevel(level)
	t.Cleanup(func() {
		log.SetOutput(prev)
		SetLevel("info")
	})
	fn()
	return buf.String()
}

func TestLogModelPayloadPrettyPrintsJSON(t *testing.T) {
	out := captureOutput(t, "debug", func() {
		LogModelPayload("moondream", `{"question":"Do you see smoke?","image_url":"data:..."}`)
	})
	assert.Contains(t, out, "model=moondream")
	assert.Contains(t, out, "\"question\": \"Do you see smoke?\"")
}

func TestLogModelPayloadNonJSONPassthrough(t *testing.T) {
	out := captureOutput(t, "debug", func() {
		LogModelPayload("openai", "prompt=\"x\" image_bytes=9")
	})
	assert.Contains(t, out, "prompt=\"x\" image_bytes=9")
}

func TestLogModelPayloadTruncatesLongBody(t *testing.T) {
	out := captureOutput(t, "debug", func() {
		LogModelPayload("moondream", strings.Repeat("a", 2000))
	})
	assert.Contains(t, out, "...(截断)")
}

func TestLogModelPayloadSilentAboveDebug(t *testing.T) {
	out := captureOutput(t, "info", func() {
		LogModelPayload("moondream", `{"a":1}`)
	})
	assert.Empty(t, out)
}
