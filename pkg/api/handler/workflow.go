package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/stevelan1995/orcs/pkg/api/dto"
	"github.com/stevelan1995/orcs/pkg/core/engine"
	"github.com/stevelan1995/orcs/pkg/core/workflow"
	"github.com/stevelan1995/orcs/pkg/storage"
)

// WorkflowHandler Workflow API处理器
type WorkflowHandler struct {
	engine *engine.Engine
}

// NewWorkflowHandler 创建WorkflowHandler
func NewWorkflowHandler(eng *engine.Engine) *WorkflowHandler {
	return &WorkflowHandler{engine: eng}
}

// Submit 提交Workflow
// POST /api/v1/workflows
func (h *WorkflowHandler) Submit(c *gin.Context) {
	var req dto.SubmitWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, fmt.Sprintf("请求体非法: %v", err)))
		return
	}

	wf, err := h.engine.SubmitPlan(req.Title, req.Description, req.Query, req.Plan())
	if err != nil {
		// 装配或校验失败：Workflow已登记为FAILED，返回其ID便于查询失败详情
		c.JSON(http.StatusUnprocessableEntity, dto.APIResponse[dto.SubmitResponse]{
			Code:    422,
			Message: err.Error(),
			Data:    dto.SubmitResponse{WorkflowID: wf.ID, Status: string(wf.Status)},
		})
		return
	}

	c.JSON(http.StatusCreated, dto.NewSuccessResponse(dto.SubmitResponse{
		WorkflowID: wf.ID,
		Status:     string(wf.Status),
	}))
}

// List 列出所有Workflow
// GET /api/v1/workflows
func (h *WorkflowHandler) List(c *gin.Context) {
	reports := h.engine.List()

	items := make([]dto.WorkflowSummary, 0, len(reports))
	for _, report := range reports {
		items = append(items, dto.NewWorkflowSummary(report))
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.ListResponse[dto.WorkflowSummary]{
		Total: len(items),
		Items: items,
	}))
}

// Get 获取Workflow执行报告（执行中返回时点快照）
// GET /api/v1/workflows/:id
func (h *WorkflowHandler) Get(c *gin.Context) {
	id := c.Param("id")

	report, err := h.engine.Report(id)
	if err != nil {
		c.JSON(http.StatusNotFound, dto.NewErrorResponse(404, "Workflow不存在"))
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(report))
}

// Execute 异步启动Workflow执行
// POST /api/v1/workflows/:id/execute
func (h *WorkflowHandler) Execute(c *gin.Context) {
	id := c.Param("id")

	wf, ok := h.engine.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, dto.NewErrorResponse(404, "Workflow不存在"))
		return
	}
	if wf.Status != workflow.StatusReady {
		c.JSON(http.StatusConflict, dto.NewErrorResponse(409, fmt.Sprintf("Workflow状态为 %s，无法执行", wf.Status)))
		return
	}

	// 执行与请求生命周期解耦，进度通过报告接口或事件流查询
	if err := h.engine.ExecuteAsync(context.Background(), id); err != nil {
		c.JSON(http.StatusConflict, dto.NewErrorResponse(409, err.Error()))
		return
	}

	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(dto.ExecuteResponse{
		WorkflowID: id,
		Status:     workflow.StatusRunning,
	}))
}

// Plan 查询拓扑分层执行计划
// GET /api/v1/workflows/:id/plan
func (h *WorkflowHandler) Plan(c *gin.Context) {
	id := c.Param("id")

	levels, err := h.engine.ExecutionPlan(id)
	if err != nil {
		c.JSON(http.StatusNotFound, dto.NewErrorResponse(404, err.Error()))
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.PlanResponse{
		WorkflowID: id,
		Levels:     levels,
	}))
}

// History 查询归档的历史报告概要
// GET /api/v1/history
func (h *WorkflowHandler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	summaries, err := h.engine.History(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, dto.NewErrorResponse(503, err.Error()))
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.ListResponse[*storage.ReportSummary]{
		Total: len(summaries),
		Items: summaries,
	}))
}

// HistoryReport 查询单份归档报告
// GET /api/v1/history/:id
func (h *WorkflowHandler) HistoryReport(c *gin.Context) {
	id := c.Param("id")

	report, err := h.engine.HistoryReport(c.Request.Context(), id)
	if errors.Is(err, storage.ErrReportNotFound) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponse(404, "报告不存在"))
		return
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, dto.NewErrorResponse(503, err.Error()))
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(report))
}
