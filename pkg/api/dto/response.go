package dto

import (
	"time"

	"github.com/stevelan1995/orcs/pkg/core/workflow"
)

// APIResponse 通用API响应结构
type APIResponse[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse[T any](data T) APIResponse[T] {
	return APIResponse[T]{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) APIResponse[any] {
	return APIResponse[any]{
		Code:    code,
		Message: message,
	}
}

// ListResponse 列表响应
type ListResponse[T any] struct {
	Total int `json:"total"`
	Items []T `json:"items"`
}

// WorkflowSummary Workflow摘要信息
type WorkflowSummary struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Status    string     `json:"status"`
	TaskCount int        `json:"task_count"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// SubmitResponse 提交响应
type SubmitResponse struct {
	WorkflowID string `json:"workflow_id"`
	Status     string `json:"status"`
}

// ExecuteResponse 执行响应
type ExecuteResponse struct {
	WorkflowID string `json:"workflow_id"`
	Status     string `json:"status"`
}

// PlanResponse 执行计划响应，按拓扑层排列的Task ID
type PlanResponse struct {
	WorkflowID string     `json:"workflow_id"`
	Levels     [][]string `json:"levels"`
}

// NewWorkflowSummary 从执行报告构建摘要
func NewWorkflowSummary(report *workflow.ExecutionReport) WorkflowSummary {
	return WorkflowSummary{
		ID:        report.WorkflowID,
		Title:     report.Title,
		Status:    report.Status,
		TaskCount: len(report.Tasks),
		StartedAt: report.StartedAt,
		Error:     report.Error,
	}
}
