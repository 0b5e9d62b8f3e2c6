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

// MoondreamClient 调用本地/边缘部署的 Moondream 推理服务。
// 接口形如 POST {base_url}/v1/query，请求体携带 data URI 图像与问题文本。
type MoondreamClient struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	MaxRetries   int
	ExtraHeaders map[string]string
}

func (c *MoondreamClient) ID() string { return "moondream" }

func (c *MoondreamClient) Infer(ctx context.Context, image []byte, prompt string) (string, error) {
	ctx = ensureCtx(ctx)
	timeout := c.ensureTimeout()
	maxRetries := normalizeRetries(c.MaxRetries)
	url := c.queryURL()

	body := buildQueryBody(image, prompt)
	logger.LogModelPayload("moondream", fmt.Sprintf("prompt=%q image_bytes=%d", prompt, len(image)))

	httpc := &http.Client{Timeout: timeout}
	answer, err := c.doQuery(ctx, httpc, url, body, maxRetries)
	if err != nil {
		return "", &Error{Provider: c.ID(), Err: err}
	}
	return answer, nil
}

func (c *MoondreamClient) ensureTimeout() time.Duration {
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	return c.Timeout
}

func (c *MoondreamClient) queryURL() string {
	url := strings.TrimRight(c.BaseURL, "/")
	if url == "" {
		url = "http://localhost:2020"
	}
	url = strings.TrimSuffix(url, "/v1/query")
	return url + "/v1/query"
}

func buildQueryBody(image []byte, prompt string) []byte {
	b64 := base64.StdEncoding.EncodeToString(image)
	body := map[string]any{
		"image_url": "data:image/jpeg;base64," + b64,
		"question":  prompt,
	}
	buf, _ := json.Marshal(body)
	return buf
}

func (c *MoondreamClient) doQuery(ctx context.Context, httpc *http.Client, url string, body []byte, maxRetries int) (string, error) {
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
			return decodeAnswer(resp)
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

func decodeAnswer(resp *http.Response) (string, error) {
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Debugf("[模型] response body close failed: %v", cerr)
		}
	}()
	var r struct {
		Answer string `json:"answer"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", err
	}
	if strings.TrimSpace(r.Answer) == "" {
		return "", fmt.Errorf("empty answer")
	}
	return r.Answer, nil
}

func parseErrorBody(resp *http.Response) string {
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Debugf("[模型] response body close failed: %v", cerr)
		}
	}()
	var eresp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&eresp); err == nil {
		if msg := strings.TrimSpace(eresp.Error.Message); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(eresp.Detail); msg != "" {
			return msg
		}
	}
	return resp.Status
}
