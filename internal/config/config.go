package config

import (
	"fmt"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// 配置结构体（与规划一致，保留必要字段，便于后续扩展）
type Config struct {
	App AppConfig `toml:"app"`

	Model ModelConfig `toml:"model"`

	Detect struct {
		Scenarios       []string `toml:"scenarios"`         // 默认启用的场景列表，空表示全部
		MaxConcurrency  int      `toml:"max_concurrency"`   // 场景并发上限（对模型服务限流）
		TimeoutSeconds  int      `toml:"timeout_seconds"`   // 单次模型调用超时
		ConfirmTextOnly bool     `toml:"confirm_text_only"` // 复核阶段仅用文本、不附原图（默认带图）
	} `toml:"detect"`

	Storage struct {
		Dir    string `toml:"dir"`     // 上传帧落盘目录
		DBPath string `toml:"db_path"` // SQLite 路径
	} `toml:"storage"`

	Upload struct {
		MaxFileSizeMB     int      `toml:"max_file_size_mb"`
		AllowedExtensions []string `toml:"allowed_extensions"`
	} `toml:"upload"`

	Scheduler struct {
		Enabled         bool `toml:"enabled"`
		IntervalSeconds int  `toml:"interval_seconds"` // 边缘结果复核周期
	} `toml:"scheduler"`

	Notify NotifyConfig `toml:"notify"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
}

// ModelConfig 模型服务配置：完全通过配置文件提供，不再使用环境变量
type ModelConfig struct {
	Provider       string            `toml:"provider"` // moondream | openai（OpenAI 兼容接口）
	BaseURL        string            `toml:"base_url"` // 如 http://localhost:2020 或 https://api.openai.com/v1
	APIKey         string            `toml:"api_key"`
	Model          string            `toml:"model"`           // openai 模式下的模型名，如 gpt-4o-mini
	TimeoutSeconds int               `toml:"timeout_seconds"` // HTTP 客户端超时
	MaxRetries     int               `toml:"max_retries"`
	Headers        map[string]string `toml:"headers"` // 可选：自定义请求头（例如 X-API-Key 等）
}

type NotifyConfig struct {
	Telegram struct {
		Enabled  bool   `toml:"enabled"`
		BotToken string `toml:"bot_token"`
		ChatID   string `toml:"chat_id"`
	} `toml:"telegram"`
}

// Load 读取并解析 TOML 配置文件，并设置缺省值与基本校验
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析 TOML 失败: %w", err)
	}
	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults 默认值设置
func ApplyDefaults(c *Config) {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = ":8000"
	}
	if c.Model.Provider == "" {
		c.Model.Provider = "moondream"
	}
	if c.Model.BaseURL == "" {
		c.Model.BaseURL = "http://localhost:2020"
	}
	if c.Model.TimeoutSeconds <= 0 {
		c.Model.TimeoutSeconds = 60
	}
	if c.Model.MaxRetries <= 0 {
		c.Model.MaxRetries = 2
	}
	if c.Detect.MaxConcurrency <= 0 {
		c.Detect.MaxConcurrency = 3
	}
	if c.Detect.TimeoutSeconds <= 0 {
		c.Detect.TimeoutSeconds = 30
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = "data/frames"
	}
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = "data/vigil.db"
	}
	if c.Upload.MaxFileSizeMB <= 0 {
		c.Upload.MaxFileSizeMB = 50
	}
	if len(c.Upload.AllowedExtensions) == 0 {
		c.Upload.AllowedExtensions = []string{".jpg", ".jpeg", ".png", ".bmp"}
	}
	// 复核周期（秒），默认 5 分钟
	if c.Scheduler.IntervalSeconds <= 0 {
		c.Scheduler.IntervalSeconds = 300
	}
}

// Validate 基础校验
func Validate(c *Config) error {
	switch strings.ToLower(c.Model.Provider) {
	case "moondream", "openai":
	default:
		return fmt.Errorf("非法 model.provider: %s（支持 moondream/openai）", c.Model.Provider)
	}
	if strings.EqualFold(c.Model.Provider, "openai") && c.Model.Model == "" {
		return fmt.Errorf("model.model 不能为空（当 provider=openai 时）")
	}
	if c.Detect.MaxConcurrency > 32 {
		return fmt.Errorf("detect.max_concurrency 需在 [1,32]")
	}
	for _, ext := range c.Upload.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("非法扩展名（需以点开头）: %s", ext)
		}
	}
	if c.Notify.Telegram.Enabled {
		if c.Notify.Telegram.BotToken == "" || c.Notify.Telegram.ChatID == "" {
			return fmt.Errorf("已启用 Telegram 通知，请提供 bot_token 与 chat_id")
		}
	}
	return nil
}
