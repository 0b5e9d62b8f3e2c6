package logger

import (
	"log"
	"strings"

	"vigil/internal/pkg/jsonutil"
)

// 中文说明：
// 轻量日志封装：支持设置全局级别，便于减少刷屏。
// 模型请求报文单独走 LogModelPayload，默认仅 Debug 级别输出。

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var current = LevelInfo

func SetLevel(s string) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		current = LevelDebug
	case "info":
		current = LevelInfo
	case "warn", "warning":
		current = LevelWarn
	case "error":
		current = LevelError
	default:
		current = LevelInfo
	}
}

func Debugf(format string, v ...any) {
	if current <= LevelDebug {
		log.Printf("[DEBUG] "+format, v...)
	}
}
func Infof(format string, v ...any) {
	if current <= LevelInfo {
		log.Printf("[INFO] "+format, v...)
	}
}
func Warnf(format string, v ...any) {
	if current <= LevelWarn {
		log.Printf("[WARN] "+format, v...)
	}
}
func Errorf(format string, v ...any) {
	if current <= LevelError {
		log.Printf("[ERROR] "+format, v...)
	}
}

// LogModelPayload 记录发往模型服务的请求体（截断，避免 base64 图像刷屏）。
// JSON 报文先做缩进美化，非 JSON 原样输出。
func LogModelPayload(model, body string) {
	if current > LevelDebug {
		return
	}
	body = jsonutil.Pretty(body)
	const max = 512
	if len(body) > max {
		body = body[:max] + "...(截断)"
	}
	log.Printf("[DEBUG] [模型请求] model=%s body=%s", model, body)
}
