package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"vigil/internal/logger"
)

// OpenAIVisionClient 通过 OpenAI 兼容接口调用带视觉能力的模型。
// 作为 Moondream 不可用时的替换实现，请求体为 chat/completions 的多段 content。
type OpenAIVisionClient struct {
	BaseURL      string
	APIKey       string
	Model        string
	Timeout      time.Duration
	MaxRetries   int
	ExtraHeaders map[string]string
}

func (c *OpenAIVisionClient) ID() string { return "openai" }

func (c *OpenAIVisionClient) Infer(ctx context.Context, image []byte, prompt string) (string, error) {
	ctx = ensureCtx(ctx)
	timeout := c.ensureTimeout()
	maxRetries := normalizeRetries(c.MaxRetries)
	url := c.chatCompletionsURL()

	body := buildChatBody(c.Model, image, prompt)
	logger.LogModelPayload(c.Model, fmt.Sprintf("prompt=%q image_bytes=%d", prompt, len(image)))

	httpc := &http.Client{Timeout: timeout}
	content, err := c.doChatCompletions(ctx, httpc, url, body, maxRetries)
	if err != nil {
		return "", &Error{Provider: c.ID(), Err: err}
	}
	return content, nil
}

func (c *OpenAIVisionClient) ensureTimeout() time.Duration {
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	return c.Timeout
}

func (c *OpenAIVisionClient) chatCompletionsURL() string {
	url := strings.TrimRight(c.BaseURL, "/")
	if url == "" {
		url = "https://api.openai.com/v1"
	}
	url = strings.TrimSuffix(url, "/chat/completions")
	return url + "/chat/completions"
}

func buildChatBody(model string, image []byte, prompt string) []byte {
	content := []map[string]any{
		{"type": "text", "text": prompt},
	}
	if len(image) > 0 {
		b64 := base64.StdEncoding.EncodeToString(image)
		content = append(content, map[string]any{
			"type": "image_url",
			"image_url": map[string]any{
				"url": "data:image/jpeg;base64," + b64,
			},
		})
	}
	body := map[string]any{
		"model": model,
		"messages": []map[string]any{
			{"role": "user", "content": content},
		},
		"temperature": 0.1,
		"max_tokens":  512,
	}
	b, _ := json.Marshal(body)
	return b
}

func (c *OpenAIVisionClient) doChatCompletions(ctx context.Context, httpc *http.Client, url string, body []byte, maxRetries int) (string, error) {
	headers := mergeHeaders(c.APIKey, c.ExtraHeaders)
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt == 0 {
			logger.Debugf("[模型] 请求: POST %s headers=%v", url, redactHeaders(headers))
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		applyHeaders(req, headers)
		resp, err := httpc.Do(req)
		if err != nil {
			lastErr = err
			break
		}

		if resp.StatusCode/100 == 2 {
			content, err := decodeChatContent(resp)
			if err != nil {
				lastErr = err
				break
			}
			return content, nil
		}

		msg := parseErrorBody(resp)
		lastErr = fmt.Errorf("status=%d: %s", resp.StatusCode, msg)
		if shouldRetry(resp.StatusCode) && attempt < maxRetries {
			wait := parseRetryAfter(resp.Header.Get("Retry-After"), attempt)
			time.Sleep(wait)
			continue
		}
		break
	}
	return "", lastErr
}

func decodeChatContent(resp *http.Response) (string, error) {
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Debugf("[模型] response body close failed: %v", cerr)
		}
	}()
	var r struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", err
	}
	if len(r.Choices) == 0 {
		return "", fmt.Errorf("empty choices")
	}
	return r.Choices[0].Message.Content, nil
}
