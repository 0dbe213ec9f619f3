package workflow

import "time"

// TaskReport 单个Task的执行记录（对外导出）
type TaskReport struct {
	AgentID     string      `json:"agent_id"`
	Title       string      `json:"title"`
	Status      string      `json:"status"`
	Result      interface{} `json:"result,omitempty"`
	Error       *TaskError  `json:"error,omitempty"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// ExecutionReport Workflow执行记录：某一时刻状态的只读投影（对外导出）
type ExecutionReport struct {
	WorkflowID  string                `json:"workflow_id"`
	Title       string                `json:"title"`
	Status      string                `json:"status"`
	Query       string                `json:"query"`
	StartedAt   *time.Time            `json:"started_at,omitempty"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
	Error       string                `json:"error,omitempty"`
	Tasks       map[string]TaskReport `json:"tasks"`
	TaskOrder   []string              `json:"task_order"` // Task ID插入顺序（保证消费方迭代确定性）
}

// BuildReport 从Workflow构建执行记录（对外导出）
// 纯投影，不修改Workflow，执行中途调用也安全（调用方负责与执行循环的同步）
func BuildReport(w *Workflow) *ExecutionReport {
	report := &ExecutionReport{
		WorkflowID:  w.ID,
		Title:       w.Title,
		Status:      w.Status,
		Query:       w.Query,
		StartedAt:   w.StartedAt,
		CompletedAt: w.CompletedAt,
		Tasks:       make(map[string]TaskReport, len(w.order)),
		TaskOrder:   w.TaskIDs(),
	}

	if errVal, ok := w.Metadata[MetadataKeyError]; ok {
		if s, ok := errVal.(string); ok {
			report.Error = s
		}
	} else if errVal, ok := w.Metadata[MetadataKeyPlanningError]; ok {
		if s, ok := errVal.(string); ok {
			report.Error = s
		}
	}

	for _, id := range w.order {
		t := w.tasks[id]
		report.Tasks[id] = TaskReport{
			AgentID:     t.AgentID,
			Title:       t.Title,
			Status:      t.Status,
			Result:      t.Result,
			Error:       t.Err,
			StartedAt:   t.StartedAt,
			CompletedAt: t.CompletedAt,
		}
	}
	return report
}
