package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"vigil/internal/decision"
	"vigil/internal/detect"
	"vigil/internal/edge"
	"vigil/internal/jobs"
	"vigil/internal/logger"
	"vigil/internal/scenario"
	"vigil/internal/store"
)

// 中文说明：
// HTTP 入口：同步/异步分析、任务查询、边缘上报、场景目录与看板。
// 统一 {success, message, data, error} 响应包络。

// Analyzer 分析流水线（接口化便于测试替身）
type Analyzer interface {
	Analyze(ctx context.Context, frame detect.Frame, scenarios []scenario.Scenario) (decision.SafetyVerdict, error)
}

// VerdictStore 查询与边缘入库所需的存储能力
type VerdictStore interface {
	SaveEdgeSubmission(ctx context.Context, sub edge.Submission) (int64, error)
	ListVerdicts(ctx context.Context, cameraID string, limit int) ([]decision.SafetyVerdict, error)
	ViolationCounts(ctx context.Context, recent int) (map[scenario.Scenario]int, error)
}

// ServerConfig 服务装配参数
type ServerConfig struct {
	Addr              string
	Analyzer          Analyzer
	Jobs              *jobs.Registry
	Frames            *store.FrameStore
	Store             VerdictStore
	MaxFileSizeMB     int
	AllowedExtensions []string
	DefaultScenarios  []scenario.Scenario
}

// Server API 服务
type Server struct {
	cfg    ServerConfig
	engine *gin.Engine
	httpd  *http.Server
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Analyzer == nil {
		return nil, fmt.Errorf("analyzer 未配置")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}
	if cfg.MaxFileSizeMB <= 0 {
		cfg.MaxFileSizeMB = 50
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = []string{".jpg", ".jpeg", ".png", ".bmp"}
	}
	if len(cfg.DefaultScenarios) == 0 {
		cfg.DefaultScenarios = scenario.All()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), corsMiddleware())

	s := &Server{cfg: cfg, engine: engine}
	s.registerRoutes()
	s.httpd = &http.Server{Addr: cfg.Addr, Handler: engine}
	return s, nil
}

func (s *Server) registerRoutes() {
	g := s.engine.Group("/api/safety")
	g.POST("/analyze", s.handleAnalyze)
	g.POST("/analyze/async", s.handleAnalyzeAsync)
	g.GET("/jobs/:id", s.handleJobStatus)
	g.POST("/edge-results", s.handleEdgeResults)
	g.GET("/verdicts", s.handleListVerdicts)
	g.GET("/scenarios", s.handleScenarios)
	g.GET("/health", s.handleHealth)
	s.engine.GET("/dashboard", s.handleDashboard)
}

// Addr 实际监听地址
func (s *Server) Addr() string { return s.cfg.Addr }

// Handler 暴露路由（测试用）
func (s *Server) Handler() http.Handler { return s.engine }

// Start 启动监听并在 ctx 取消后优雅退出
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("✓ HTTP 服务监听 %s", s.cfg.Addr)
		errCh <- s.httpd.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpd.Shutdown(shutdownCtx)
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func ok(c *gin.Context, code int, data any) {
	c.JSON(code, envelope{Success: true, Data: data})
}

func fail(c *gin.Context, code int, format string, args ...any) {
	c.JSON(code, envelope{Success: false, Error: fmt.Sprintf(format, args...)})
}

// parseScenarios 解析 scenario 表单值；空或 "all" 展开为默认场景集
func (s *Server) parseScenarios(raw string) ([]scenario.Scenario, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "all") {
		out := make([]scenario.Scenario, len(s.cfg.DefaultScenarios))
		copy(out, s.cfg.DefaultScenarios)
		return out, nil
	}
	return scenario.ParseList(strings.Split(raw, ","))
}
