package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"vigil/internal/config"
	"vigil/internal/logger"
	"vigil/internal/scheduler"
	"vigil/internal/store"
	apihttp "vigil/internal/transport/http/api"
)

// App 负责应用级编排：加载配置→初始化依赖→启动 HTTP 服务与调度器。
type App struct {
	cfg    *config.Config
	server *apihttp.Server
	sched  *scheduler.Scheduler
	store  *store.Store
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 启动 HTTP 服务与边缘复核调度，任一退出即整体退出
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.server == nil {
		return fmt.Errorf("http server not initialized")
	}
	group, ctx := errgroup.WithContext(ctx)

	if a.sched != nil {
		group.Go(func() error {
			if err := a.sched.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Warnf("调度器停止: %v", err)
			}
			return nil
		})
	}

	group.Go(func() error {
		defer a.Close()
		if err := a.server.Start(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	})

	return group.Wait()
}

// Close 释放持有的资源
func (a *App) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warnf("关闭存储失败: %v", err)
		}
	}
}
