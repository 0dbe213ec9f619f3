package workflow

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Workflow状态常量
// PLANNING: 任务/依赖组装中（校验前）；READY: 校验通过待执行；
// RUNNING/COMPLETED/FAILED: 执行期与终态
const (
	StatusPlanning  = "PLANNING"
	StatusReady     = "READY"
	StatusRunning   = "RUNNING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// Workflow元数据键
const (
	MetadataKeyError         = "error"         // 运行期错误（如死锁）
	MetadataKeyPlanningError = "planningError" // 规划期校验错误描述
	MetadataKeyCyclePath     = "cyclePath"     // 检测到的循环路径（原始ID列表）
)

// Workflow 由Task构成的有向无环图及其聚合状态（对外导出）
// tasks映射的插入顺序被保留（order切片），保证迭代顺序确定
type Workflow struct {
	ID          string                 `json:"id"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Query       string                 `json:"query"` // 产生该任务集的原始请求
	Status      string                 `json:"status"`
	Results     map[string]interface{} `json:"results"` // Task ID -> 结果（tasks[id].Result的冗余读视图）
	CreatedAt   time.Time              `json:"created_at"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Metadata    map[string]interface{} `json:"metadata"`

	tasks map[string]*Task
	order []string // Task ID插入顺序
}

// New 创建Workflow实例，初始状态为PLANNING（对外导出）
func New(title, description, query string) *Workflow {
	return &Workflow{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Query:       query,
		Status:      StatusPlanning,
		Results:     make(map[string]interface{}),
		CreatedAt:   time.Now(),
		Metadata:    make(map[string]interface{}),
		tasks:       make(map[string]*Task),
		order:       make([]string, 0),
	}
}

// NewWithID 使用指定ID创建Workflow实例（对外导出）
func NewWithID(id, title, description, query string) *Workflow {
	wf := New(title, description, query)
	if id != "" {
		wf.ID = id
	}
	return wf
}

// AddTask 添加Task到Workflow（对外导出）
// 同ID重复添加返回错误；插入顺序被记录用于确定性迭代
func (w *Workflow) AddTask(t *Task) error {
	if t == nil {
		return fmt.Errorf("task不能为空")
	}
	if t.ID == "" {
		return fmt.Errorf("task ID不能为空")
	}
	if _, exists := w.tasks[t.ID]; exists {
		return fmt.Errorf("task %s 已存在", t.ID)
	}
	w.tasks[t.ID] = t
	w.order = append(w.order, t.ID)
	return nil
}

// GetTask 根据ID获取Task（对外导出）
func (w *Workflow) GetTask(taskID string) (*Task, bool) {
	t, ok := w.tasks[taskID]
	return t, ok
}

// TaskIDs 按插入顺序返回所有Task ID（对外导出）
func (w *Workflow) TaskIDs() []string {
	ids := make([]string, len(w.order))
	copy(ids, w.order)
	return ids
}

// Tasks 按插入顺序返回所有Task（对外导出）
func (w *Workflow) Tasks() []*Task {
	tasks := make([]*Task, 0, len(w.order))
	for _, id := range w.order {
		tasks = append(tasks, w.tasks[id])
	}
	return tasks
}

// TaskCount 返回Task数量（对外导出）
func (w *Workflow) TaskCount() int {
	return len(w.tasks)
}

// ExecutableTasks 就绪选择器：返回当前可执行的Task列表（对外导出）
// 可执行 = 状态为PENDING且所有依赖均已COMPLETED；纯函数，无副作用
// 返回顺序为Workflow插入顺序（确定性，无优先级概念）
func (w *Workflow) ExecutableTasks() []*Task {
	completed := make(map[string]bool, len(w.tasks))
	for id, t := range w.tasks {
		if t.Status == TaskStatusCompleted {
			completed[id] = true
		}
	}

	executable := make([]*Task, 0)
	for _, id := range w.order {
		t := w.tasks[id]
		if t.Status != TaskStatusPending {
			continue
		}
		ready := true
		for _, dep := range t.Dependencies {
			if !completed[dep] {
				ready = false
				break
			}
		}
		if ready {
			executable = append(executable, t)
		}
	}
	return executable
}

// AllTasksCompleted 是否所有Task都已COMPLETED（对外导出）
func (w *Workflow) AllTasksCompleted() bool {
	for _, t := range w.tasks {
		if t.Status != TaskStatusCompleted {
			return false
		}
	}
	return true
}

// HasRunningTask 是否存在RUNNING状态的Task（对外导出）
func (w *Workflow) HasRunningTask() bool {
	for _, t := range w.tasks {
		if t.Status == TaskStatusRunning {
			return true
		}
	}
	return false
}

// Dependencies 返回Task ID -> 依赖ID列表的映射（对外导出）
// 用于DAG构建和校验
func (w *Workflow) Dependencies() map[string][]string {
	deps := make(map[string][]string, len(w.tasks))
	for _, id := range w.order {
		t := w.tasks[id]
		list := make([]string, len(t.Dependencies))
		copy(list, t.Dependencies)
		deps[id] = list
	}
	return deps
}
