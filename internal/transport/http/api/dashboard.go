package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"vigil/internal/scenario"
)

// handleDashboard 违规统计看板：按场景渲染最近结论中的违规次数柱状图
func (s *Server) handleDashboard(c *gin.Context) {
	if s.cfg.Store == nil {
		fail(c, http.StatusServiceUnavailable, "存储未启用")
		return
	}
	counts, err := s.cfg.Store.ViolationCounts(c.Request.Context(), 500)
	if err != nil {
		fail(c, http.StatusInternalServerError, "统计违规失败: %v", err)
		return
	}

	names := make([]string, 0, len(scenario.All()))
	values := make([]opts.BarData, 0, len(scenario.All()))
	for _, sc := range scenario.All() {
		names = append(names, sc.DisplayName())
		values = append(values, opts.BarData{Value: counts[sc]})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "vigil dashboard"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Violations by scenario",
			Subtitle: "confirmed true positives across recent verdicts",
		}),
	)
	bar.SetXAxis(names).AddSeries("violations", values)

	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := bar.Render(c.Writer); err != nil {
		fail(c, http.StatusInternalServerError, "渲染看板失败: %v", err)
	}
}
