package app

import (
	"context"
	"fmt"
	"time"

	"vigil/internal/analysis"
	"vigil/internal/config"
	"vigil/internal/detect"
	"vigil/internal/gateway/provider"
	"vigil/internal/jobs"
	"vigil/internal/logger"
	"vigil/internal/notify"
	"vigil/internal/scenario"
	"vigil/internal/scheduler"
	"vigil/internal/store"
	apihttp "vigil/internal/transport/http/api"
)

// AppBuilder 依据配置逐层装配依赖
type AppBuilder struct {
	cfg *config.Config
}

func NewAppBuilder(cfg *config.Config) *AppBuilder {
	return &AppBuilder{cfg: cfg}
}

// Build 构建完整应用：模型客户端→检测/复核→分析器→存储→HTTP/调度
func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	cfg := b.cfg

	client, err := provider.BuildClientFromConfig(cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("初始化模型客户端失败: %w", err)
	}
	logger.Infof("✓ 模型服务客户端已就绪: %s (%s)", client.ID(), cfg.Model.BaseURL)

	st, err := store.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("初始化存储失败: %w", err)
	}
	success := false
	defer func() {
		if !success {
			_ = st.Close()
		}
	}()
	logger.Infof("✓ 结论存储写入 %s", cfg.Storage.DBPath)

	callTimeout := time.Duration(cfg.Detect.TimeoutSeconds) * time.Second
	detector := detect.NewDetector(client, cfg.Detect.MaxConcurrency, callTimeout)
	validator := detect.NewValidator(client, callTimeout, !cfg.Detect.ConfirmTextOnly)

	analyzer := analysis.NewAnalyzer(detector, validator, cfg.Detect.MaxConcurrency)
	analyzer.Recorder = st
	if cfg.Notify.Telegram.Enabled {
		analyzer.Notifier = notify.NewTelegram(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID)
		logger.Infof("✓ Telegram 告警已启用")
	}

	defaultScenarios, err := scenario.ParseList(cfg.Detect.Scenarios)
	if err != nil {
		return nil, fmt.Errorf("解析默认场景失败: %w", err)
	}

	server, err := apihttp.NewServer(apihttp.ServerConfig{
		Addr:              cfg.App.HTTPAddr,
		Analyzer:          analyzer,
		Jobs:              jobs.NewRegistry(),
		Frames:            store.NewFrameStore(cfg.Storage.Dir),
		Store:             st,
		MaxFileSizeMB:     cfg.Upload.MaxFileSizeMB,
		AllowedExtensions: cfg.Upload.AllowedExtensions,
		DefaultScenarios:  defaultScenarios,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 HTTP 服务失败: %w", err)
	}

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		interval := time.Duration(cfg.Scheduler.IntervalSeconds) * time.Second
		sched = scheduler.New(interval, st, analyzer)
	}

	success = true
	return &App{
		cfg:    cfg,
		server: server,
		sched:  sched,
		store:  st,
	}, nil
}
