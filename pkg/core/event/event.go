package event

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

// Type 事件类型（对外导出）
type Type string

// 工作流与Task生命周期事件类型
const (
	TypeWorkflowStarted   Type = "workflow.started"
	TypeWorkflowCompleted Type = "workflow.completed"
	TypeWorkflowFailed    Type = "workflow.failed"
	TypeTaskStarted       Type = "task.started"
	TypeTaskCompleted     Type = "task.completed"
	TypeTaskFailed        Type = "task.failed"
)

// Event 状态变更事件（对外导出）
// 每次Workflow或Task状态迁移产生一条事件
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	WorkflowID string    `json:"workflowId"`
	TaskID     string    `json:"taskId,omitempty"`
	AgentID    string    `json:"agentId,omitempty"`
	Status     string    `json:"status"`
	Message    string    `json:"message,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// New 创建事件（对外导出）
func New(eventType Type, workflowID, taskID, agentID, status, message string) *Event {
	return &Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		WorkflowID: workflowID,
		TaskID:     taskID,
		AgentID:    agentID,
		Status:     status,
		Message:    message,
		Timestamp:  time.Now(),
	}
}

// Notifier 状态事件通知接口（对外导出）
// 实现方不得阻塞调度循环，耗时投递应在实现内部异步化
type Notifier interface {
	Notify(ctx context.Context, e *Event)
}

// NopNotifier 空实现（对外导出），未配置事件总线时使用
type NopNotifier struct{}

// Notify 丢弃事件
func (NopNotifier) Notify(ctx context.Context, e *Event) {}

// LogNotifier 日志通知器（对外导出），把事件打到标准日志
type LogNotifier struct{}

// Notify 记录事件日志
func (LogNotifier) Notify(ctx context.Context, e *Event) {
	if e.TaskID != "" {
		log.Printf("📢 [事件] %s workflow=%s task=%s status=%s", e.Type, e.WorkflowID, e.TaskID, e.Status)
		return
	}
	log.Printf("📢 [事件] %s workflow=%s status=%s", e.Type, e.WorkflowID, e.Status)
}

// MultiNotifier 通知器组合（对外导出），按顺序广播给多个通知器
type MultiNotifier []Notifier

// Notify 依次通知
func (m MultiNotifier) Notify(ctx context.Context, e *Event) {
	for _, n := range m {
		n.Notify(ctx, e)
	}
}
