package dto

import "github.com/stevelan1995/orcs/pkg/core/planner"

// SubmitWorkflowRequest 提交Workflow请求
// tasks沿用规划结果格式，依赖允许整数下标或Task ID字符串
type SubmitWorkflowRequest struct {
	Title       string             `json:"title" binding:"required"`
	Description string             `json:"description"`
	Query       string             `json:"query"`
	Tasks       []planner.TaskSpec `json:"tasks" binding:"required"`
}

// Plan 转换为规划结果
func (r *SubmitWorkflowRequest) Plan() *planner.Plan {
	return &planner.Plan{Tasks: r.Tasks}
}
