package workflow

import (
	"time"

	"github.com/google/uuid"
)

// Task状态常量（状态机：PENDING -> RUNNING -> COMPLETED/FAILED，终态不可逆）
const (
	TaskStatusPending   = "PENDING"
	TaskStatusRunning   = "RUNNING"
	TaskStatusCompleted = "COMPLETED"
	TaskStatusFailed    = "FAILED"
)

// MetadataKeyInput Task元数据键：调用方提供的字面输入（覆盖依赖推导的输入）
const MetadataKeyInput = "input"

// TaskError Task执行失败的结构化错误信息（对外导出）
type TaskError struct {
	Code    string `json:"code"`    // 错误码（如 EXECUTION_FAILED / EXECUTION_TIMEOUT）
	Message string `json:"message"` // 人类可读的错误描述
}

// Error 实现error接口
func (e *TaskError) Error() string {
	return e.Message
}

// Task 单个可调度的工作单元（对外导出）
// ID创建后不可变；Result与Err互斥：COMPLETED时仅有Result，FAILED时仅有Err
type Task struct {
	ID           string                 `json:"id"`
	Title        string                 `json:"title"`
	Description  string                 `json:"description"` // 交给执行器的任务描述
	AgentID      string                 `json:"agent_id"`    // 执行该Task的Agent标识（由Registry解析）
	Dependencies []string               `json:"dependencies"`
	Status       string                 `json:"status"`
	Result       interface{}            `json:"result,omitempty"`
	Err          *TaskError             `json:"error,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	StartedAt    *time.Time             `json:"started_at,omitempty"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
	Metadata     map[string]interface{} `json:"metadata"`
}

// NewTask 创建Task实例（对外导出）
// title: 简短标题; description: 交给执行器的详细描述; agentID: 执行器标识
func NewTask(title, description, agentID string) *Task {
	return &Task{
		ID:           uuid.NewString(),
		Title:        title,
		Description:  description,
		AgentID:      agentID,
		Dependencies: make([]string, 0),
		Status:       TaskStatusPending,
		CreatedAt:    time.Now(),
		Metadata:     make(map[string]interface{}),
	}
}

// NewTaskWithID 使用指定ID创建Task实例（对外导出，用于反序列化场景）
func NewTaskWithID(id, title, description, agentID string) *Task {
	t := NewTask(title, description, agentID)
	if id != "" {
		t.ID = id
	}
	return t
}

// IsTerminal Task是否已进入终态（对外导出）
func (t *Task) IsTerminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}

// MarkRunning 标记Task开始执行（对外导出）
// StartedAt只设置一次；终态Task不再变更
func (t *Task) MarkRunning(now time.Time) {
	if t.IsTerminal() {
		return
	}
	t.Status = TaskStatusRunning
	if t.StartedAt == nil {
		t.StartedAt = &now
	}
}

// MarkCompleted 标记Task执行成功并记录结果（对外导出）
// CompletedAt只设置一次；清空Err保证Result/Err互斥；终态Task不再变更
func (t *Task) MarkCompleted(result interface{}, now time.Time) {
	if t.IsTerminal() {
		return
	}
	t.Status = TaskStatusCompleted
	t.Result = result
	t.Err = nil
	if t.CompletedAt == nil {
		t.CompletedAt = &now
	}
}

// MarkFailed 标记Task执行失败并记录结构化错误（对外导出）
// 终态Task不再变更
func (t *Task) MarkFailed(code, message string, now time.Time) {
	if t.IsTerminal() {
		return
	}
	t.Status = TaskStatusFailed
	t.Result = nil
	t.Err = &TaskError{Code: code, Message: message}
	if t.CompletedAt == nil {
		t.CompletedAt = &now
	}
}

// InputOverride 获取调用方提供的字面输入（对外导出）
// 返回输入内容和是否存在
func (t *Task) InputOverride() (string, bool) {
	if t.Metadata == nil {
		return "", false
	}
	if v, ok := t.Metadata[MetadataKeyInput]; ok {
		if s, ok := v.(string); ok {
			return s, true
		}
	}
	return "", false
}
