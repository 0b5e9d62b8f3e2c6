package provider

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"vigil/internal/config"
)

// 中文说明：
// 模型服务客户端边界：一次调用 = 一张图 + 一段提示词 -> 文本回答。
// 服务端延迟不可控，超时/取消由调用方通过 ctx 与客户端超时共同约束。

// VisionClient 视觉模型服务客户端
type VisionClient interface {
	// Infer 发送图像与提示词，返回模型的原始文本回答
	Infer(ctx context.Context, image []byte, prompt string) (string, error)
	ID() string
}

// Error 模型服务调用失败（网络/超时/非 2xx/响应不可解析）
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("模型服务调用失败(%s): %v", e.Provider, e.Err)
}
func (e *Error) Unwrap() error { return e.Err }

// BuildClientFromConfig 根据配置构造模型服务客户端
func BuildClientFromConfig(cfg config.ModelConfig) (VisionClient, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	switch strings.ToLower(cfg.Provider) {
	case "moondream":
		return &MoondreamClient{
			BaseURL:      cfg.BaseURL,
			APIKey:       cfg.APIKey,
			Timeout:      timeout,
			MaxRetries:   cfg.MaxRetries,
			ExtraHeaders: cfg.Headers,
		}, nil
	case "openai":
		return &OpenAIVisionClient{
			BaseURL:      cfg.BaseURL,
			APIKey:       cfg.APIKey,
			Model:        cfg.Model,
			Timeout:      timeout,
			MaxRetries:   cfg.MaxRetries,
			ExtraHeaders: cfg.Headers,
		}, nil
	default:
		return nil, fmt.Errorf("未知模型提供方: %s", cfg.Provider)
	}
}

func ensureCtx(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func normalizeRetries(v int) int {
	if v <= 0 {
		return 2
	}
	return v
}

func shouldRetry(code int) bool {
	return code == 429 || code == 500 || code == 502 || code == 503 || code == 504
}

func parseRetryAfter(v string, attempt int) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	base := 800 * time.Millisecond
	wait := base << attempt
	if wait > 8*time.Second {
		wait = 8 * time.Second
	}
	return wait
}

func redactHeaders(headers map[string]string) map[string]string {
	out := map[string]string{}
	for k, v := range headers {
		lk := strings.ToLower(k)
		if strings.Contains(lk, "auth") || strings.Contains(lk, "key") || strings.Contains(lk, "token") {
			if len(v) > 4 {
				out[k] = "****" + v[len(v)-4:]
			} else {
				out[k] = "****"
			}
			continue
		}
		out[k] = v
	}
	return out
}

func mergeHeaders(apiKey string, extra map[string]string) map[string]string {
	out := map[string]string{"Content-Type": "application/json"}
	if apiKey != "" {
		out["Authorization"] = fmt.Sprintf("Bearer %s", apiKey)
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func applyHeaders(req *http.Request, headers map[string]string) {
	for k, v := range headers {
		req.Header.Set(k, v)
	}
}
