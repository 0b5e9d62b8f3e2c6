package api

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"vigil/internal/detect"
	"vigil/internal/edge"
	"vigil/internal/logger"
	"vigil/internal/scenario"
)

// analyzeRequest 同步/异步分析共用的入参解析结果
type analyzeRequest struct {
	frame     detect.Frame
	scenarios []scenario.Scenario
}

// parseAnalyzeRequest 解析 multipart 入参并完成扩展名/大小校验与落盘。
// 未知场景在任何模型调用发起前拒绝。
func (s *Server) parseAnalyzeRequest(c *gin.Context) (analyzeRequest, bool) {
	cameraID := strings.TrimSpace(c.PostForm("camera_id"))
	if cameraID == "" {
		fail(c, http.StatusBadRequest, "camera_id 不能为空")
		return analyzeRequest{}, false
	}
	scs, err := s.parseScenarios(c.PostForm("scenario"))
	if err != nil {
		fail(c, http.StatusBadRequest, "%v", err)
		return analyzeRequest{}, false
	}
	header, err := c.FormFile("image")
	if err != nil {
		fail(c, http.StatusBadRequest, "缺少 image 文件: %v", err)
		return analyzeRequest{}, false
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !s.extensionAllowed(ext) {
		fail(c, http.StatusBadRequest, "不支持的文件类型: %s（允许 %v）", ext, s.cfg.AllowedExtensions)
		return analyzeRequest{}, false
	}
	maxBytes := int64(s.cfg.MaxFileSizeMB) << 20
	if header.Size > maxBytes {
		fail(c, http.StatusRequestEntityTooLarge, "文件过大: %d 字节（上限 %d MB）", header.Size, s.cfg.MaxFileSizeMB)
		return analyzeRequest{}, false
	}
	image, err := readMultipartFile(header)
	if err != nil {
		fail(c, http.StatusBadRequest, "读取上传文件失败: %v", err)
		return analyzeRequest{}, false
	}

	ref := ""
	if s.cfg.Frames != nil {
		if ref, err = s.cfg.Frames.Save(image, ext); err != nil {
			fail(c, http.StatusInternalServerError, "帧落盘失败: %v", err)
			return analyzeRequest{}, false
		}
	}
	return analyzeRequest{
		frame: detect.Frame{
			CameraID:  cameraID,
			Timestamp: time.Now(),
			Image:     image,
			Ref:       ref,
		},
		scenarios: scs,
	}, true
}

func (s *Server) extensionAllowed(ext string) bool {
	for _, a := range s.cfg.AllowedExtensions {
		if strings.EqualFold(a, ext) {
			return true
		}
	}
	return false
}

func readMultipartFile(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// handleAnalyze 同步分析：阻塞到结论产出
func (s *Server) handleAnalyze(c *gin.Context) {
	req, valid := s.parseAnalyzeRequest(c)
	if !valid {
		return
	}
	verdict, err := s.cfg.Analyzer.Analyze(c.Request.Context(), req.frame, req.scenarios)
	if err != nil {
		fail(c, http.StatusBadGateway, "分析失败: %v", err)
		return
	}
	ok(c, http.StatusOK, verdict)
}

// handleAnalyzeAsync 异步分析：立即返回任务 ID，后台执行
func (s *Server) handleAnalyzeAsync(c *gin.Context) {
	if s.cfg.Jobs == nil {
		fail(c, http.StatusServiceUnavailable, "异步任务未启用")
		return
	}
	req, valid := s.parseAnalyzeRequest(c)
	if !valid {
		return
	}
	job := s.cfg.Jobs.Create(req.frame.CameraID)
	go s.runJob(job.ID, req)
	ok(c, http.StatusAccepted, gin.H{"job_id": job.ID, "state": job.State})
}

// runJob 任务结果只由本协程写入
func (s *Server) runJob(jobID string, req analyzeRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if err := s.cfg.Jobs.Start(jobID); err != nil {
		logger.Warnf("任务 %s 启动失败: %v", jobID, err)
		return
	}
	verdict, err := s.cfg.Analyzer.Analyze(ctx, req.frame, req.scenarios)
	if err != nil {
		_ = s.cfg.Jobs.Fail(jobID, err)
		logger.Warnf("任务 %s 分析失败: %v", jobID, err)
		return
	}
	_ = s.cfg.Jobs.Complete(jobID, verdict)
}

// handleJobStatus 任务状态/结果查询
func (s *Server) handleJobStatus(c *gin.Context) {
	if s.cfg.Jobs == nil {
		fail(c, http.StatusServiceUnavailable, "异步任务未启用")
		return
	}
	job, found := s.cfg.Jobs.Get(c.Param("id"))
	if !found {
		fail(c, http.StatusNotFound, "任务 %s 不存在", c.Param("id"))
		return
	}
	ok(c, http.StatusOK, job)
}

type edgeScenarioResult struct {
	RawResponse string `json:"raw_response"`
	Detected    bool   `json:"detected"`
}

type edgeResultsRequest struct {
	CameraID  string                        `json:"camera_id" binding:"required"`
	Timestamp string                        `json:"timestamp"`
	Results   map[string]edgeScenarioResult `json:"results" binding:"required"`
}

// handleEdgeResults 边缘第一阶段结果入库，等待调度器复核
func (s *Server) handleEdgeResults(c *gin.Context) {
	if s.cfg.Store == nil {
		fail(c, http.StatusServiceUnavailable, "存储未启用")
		return
	}
	var req edgeResultsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "入参非法: %v", err)
		return
	}
	ts := time.Now()
	if strings.TrimSpace(req.Timestamp) != "" {
		parsed, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			fail(c, http.StatusBadRequest, "timestamp 需为 RFC3339: %v", err)
			return
		}
		ts = parsed
	}
	results := make(map[scenario.Scenario]edge.ScenarioResult, len(req.Results))
	for name, r := range req.Results {
		sc, err := scenario.Parse(name)
		if err != nil {
			fail(c, http.StatusBadRequest, "%v", err)
			return
		}
		results[sc] = edge.ScenarioResult{RawResponse: r.RawResponse, Detected: r.Detected}
	}
	sub := edge.Submission{CameraID: req.CameraID, Timestamp: ts, Results: results}
	if err := sub.Validate(); err != nil {
		fail(c, http.StatusBadRequest, "%v", err)
		return
	}
	id, err := s.cfg.Store.SaveEdgeSubmission(c.Request.Context(), sub)
	if err != nil {
		fail(c, http.StatusInternalServerError, "边缘上报入库失败: %v", err)
		return
	}
	ok(c, http.StatusAccepted, gin.H{"submission_id": id})
}

// handleListVerdicts 历史结论查询
func (s *Server) handleListVerdicts(c *gin.Context) {
	if s.cfg.Store == nil {
		fail(c, http.StatusServiceUnavailable, "存储未启用")
		return
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	verdicts, err := s.cfg.Store.ListVerdicts(c.Request.Context(), c.Query("camera_id"), limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, "查询结论失败: %v", err)
		return
	}
	ok(c, http.StatusOK, gin.H{"verdicts": verdicts, "count": len(verdicts)})
}

// handleScenarios 场景目录
func (s *Server) handleScenarios(c *gin.Context) {
	list := make([]gin.H, 0, len(scenario.All()))
	for _, sc := range scenario.All() {
		entry, err := scenario.Lookup(sc)
		if err != nil {
			continue
		}
		list = append(list, gin.H{
			"id":                 string(sc),
			"display_name":       sc.DisplayName(),
			"description":        entry.Description,
			"recommended_action": entry.Action,
		})
	}
	ok(c, http.StatusOK, gin.H{"scenarios": list, "count": len(list)})
}

// handleHealth 存活探针
func (s *Server) handleHealth(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{"status": "ok", "time": time.Now().Format(time.RFC3339)})
}
