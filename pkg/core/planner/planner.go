package planner

import (
	"encoding/json"
	"fmt"

	"github.com/stevelan1995/orcs/pkg/core/workflow"
)

// DependencyRef Task依赖引用（对外导出）
// 规划结果中的依赖允许两种写法：计划内Task的整数下标，或显式Task ID字符串。
// 该二义性只存在于输入边界，经Resolve后核心模型中只保留稳定的Task ID
type DependencyRef struct {
	index   int
	id      string
	isIndex bool
}

// ByIndex 构造下标引用（对外导出）
func ByIndex(i int) DependencyRef {
	return DependencyRef{index: i, isIndex: true}
}

// ByID 构造ID引用（对外导出）
func ByID(id string) DependencyRef {
	return DependencyRef{id: id}
}

// UnmarshalJSON 实现json.Unmarshaler，接受整数或字符串
func (d *DependencyRef) UnmarshalJSON(data []byte) error {
	var idx int
	if err := json.Unmarshal(data, &idx); err == nil {
		*d = ByIndex(idx)
		return nil
	}
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		*d = ByID(id)
		return nil
	}
	return fmt.Errorf("依赖引用必须是整数下标或字符串ID: %s", string(data))
}

// MarshalJSON 实现json.Marshaler
func (d DependencyRef) MarshalJSON() ([]byte, error) {
	if d.isIndex {
		return json.Marshal(d.index)
	}
	return json.Marshal(d.id)
}

// String 返回引用的可读形式
func (d DependencyRef) String() string {
	if d.isIndex {
		return fmt.Sprintf("#%d", d.index)
	}
	return d.id
}

// TaskSpec 规划结果中的单个Task描述（对外导出）
type TaskSpec struct {
	ID           string                 `json:"id,omitempty"` // 可选的显式Task ID，缺省自动生成
	Title        string                 `json:"title"`
	Description  string                 `json:"description"`
	AgentID      string                 `json:"agent_id"`
	Dependencies []DependencyRef        `json:"dependencies,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// Plan 完整规划结果（对外导出）
type Plan struct {
	Tasks []TaskSpec `json:"tasks"`
}

// ParsePlan 解析JSON规划结果（对外导出）
func ParsePlan(data []byte) (*Plan, error) {
	var plan Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("解析规划JSON失败: %w", err)
	}
	return &plan, nil
}

// BuildWorkflow 把规划结果装配为Workflow（对外导出）
// 两遍装配：第一遍创建全部Task并建立 下标 -> Task ID 映射，
// 第二遍把依赖引用解析为稳定的Task ID。解析在此一次完成，
// 下标或未知ID引用非法时整个装配失败，Workflow标记FAILED并
// 在metadata中记录planningError
func BuildWorkflow(title, description, query string, plan *Plan) (*workflow.Workflow, error) {
	wf := workflow.New(title, description, query)

	if plan == nil || len(plan.Tasks) == 0 {
		return failPlanning(wf, fmt.Errorf("规划结果不包含任何Task"))
	}

	// 第一遍：创建Task
	idByIndex := make(map[int]string, len(plan.Tasks))
	tasks := make([]*workflow.Task, 0, len(plan.Tasks))
	for i, spec := range plan.Tasks {
		if spec.AgentID == "" {
			return failPlanning(wf, fmt.Errorf("第%d个Task缺少agent_id", i))
		}

		var t *workflow.Task
		if spec.ID != "" {
			t = workflow.NewTaskWithID(spec.ID, spec.Title, spec.Description, spec.AgentID)
		} else {
			t = workflow.NewTask(spec.Title, spec.Description, spec.AgentID)
		}
		for k, v := range spec.Metadata {
			t.Metadata[k] = v
		}

		if err := wf.AddTask(t); err != nil {
			return failPlanning(wf, fmt.Errorf("添加第%d个Task失败: %w", i, err))
		}
		idByIndex[i] = t.ID
		tasks = append(tasks, t)
	}

	// 第二遍：解析依赖引用
	for i, spec := range plan.Tasks {
		for _, ref := range spec.Dependencies {
			depID, err := resolveRef(ref, idByIndex, wf, len(plan.Tasks))
			if err != nil {
				return failPlanning(wf, fmt.Errorf("第%d个Task的依赖 %s 非法: %w", i, ref, err))
			}
			tasks[i].Dependencies = append(tasks[i].Dependencies, depID)
		}
	}

	return wf, nil
}

// resolveRef 将单个依赖引用解析为Task ID（内部方法）
func resolveRef(ref DependencyRef, idByIndex map[int]string, wf *workflow.Workflow, total int) (string, error) {
	if ref.isIndex {
		if ref.index < 0 || ref.index >= total {
			return "", fmt.Errorf("下标越界（共%d个Task）", total)
		}
		return idByIndex[ref.index], nil
	}
	if _, ok := wf.GetTask(ref.id); !ok {
		return "", fmt.Errorf("引用了不存在的Task ID")
	}
	return ref.id, nil
}

// failPlanning 标记规划失败（内部方法）
// Workflow落入FAILED终态并记录planningError元数据
func failPlanning(wf *workflow.Workflow, err error) (*workflow.Workflow, error) {
	wf.Status = workflow.StatusFailed
	wf.Metadata[workflow.MetadataKeyPlanningError] = err.Error()
	return wf, err
}
