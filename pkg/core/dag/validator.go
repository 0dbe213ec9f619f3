package dag

import (
	"fmt"
	"strings"

	"github.com/stevelan1995/orcs/pkg/core/workflow"
)

// Result 依赖校验结果（对外导出）
type Result struct {
	OK        bool     // 校验是否通过（无循环）
	Modified  bool     // 校验过程是否修改了依赖列表（去自环/去重/去悬空引用）
	CyclePath []string // 检测到的循环路径（首尾为同一Task ID），无循环时为nil
}

// ValidationError 依赖图校验失败错误（对外导出）
// 规划期致命错误：携带循环路径供调用方决策（拒绝或重新规划）
type ValidationError struct {
	WorkflowID string
	CyclePath  []string
}

// Error 实现error接口
func (e *ValidationError) Error() string {
	return fmt.Sprintf("workflow %s 存在循环依赖: %s", e.WorkflowID, strings.Join(e.CyclePath, " -> "))
}

// Validate 校验Workflow的依赖图（对外导出）
// 按顺序执行四个幂等步骤：
//  1. 去除自依赖（task依赖自身的边）
//  2. 去除重复依赖
//  3. 去除悬空引用（指向Workflow外不存在Task的依赖）
//  4. 三色标记DFS检测循环，重建循环路径
//
// 检测到循环只报告、不修复：静默删边修复会悄悄改变语义（不采用）。
// 调用方（ValidateAndPrepare）负责将循环作为致命错误处理。
// 确定性：外层按Workflow插入顺序迭代Task，DFS按依赖列表存储顺序访问，
// 因此多个循环共存时报告的循环是稳定的。
func Validate(wf *workflow.Workflow) Result {
	modified := false

	for _, id := range wf.TaskIDs() {
		t, _ := wf.GetTask(id)

		// 1. 去除自依赖
		cleaned := make([]string, 0, len(t.Dependencies))
		for _, dep := range t.Dependencies {
			if dep == t.ID {
				modified = true
				continue
			}
			cleaned = append(cleaned, dep)
		}

		// 2. 去重（保留首次出现的顺序）
		seen := make(map[string]bool, len(cleaned))
		deduped := make([]string, 0, len(cleaned))
		for _, dep := range cleaned {
			if seen[dep] {
				modified = true
				continue
			}
			seen[dep] = true
			deduped = append(deduped, dep)
		}

		// 3. 去除悬空引用
		resolved := make([]string, 0, len(deduped))
		for _, dep := range deduped {
			if _, exists := wf.GetTask(dep); !exists {
				modified = true
				continue
			}
			resolved = append(resolved, dep)
		}

		t.Dependencies = resolved
	}

	// 4. 循环检测
	if cyclePath := detectCycle(wf); cyclePath != nil {
		return Result{OK: false, Modified: modified, CyclePath: cyclePath}
	}

	return Result{OK: true, Modified: modified}
}

// detectCycle 使用三色标记法检测循环依赖（内部方法）
// 0=白色（未访问），1=灰色（在递归栈上），2=黑色（已完成）
// 遇到灰色节点说明存在后向边，通过parent链重建循环路径
func detectCycle(wf *workflow.Workflow) []string {
	color := make(map[string]int, wf.TaskCount())
	parent := make(map[string]string, wf.TaskCount())
	var cyclePath []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		color[id] = 1

		t, _ := wf.GetTask(id)
		for _, dep := range t.Dependencies {
			switch color[dep] {
			case 0:
				parent[dep] = id
				if dfs(dep) {
					return true
				}
			case 1:
				// 后向边，重建循环：沿parent链回溯后反转，保持依赖边方向
				segment := []string{}
				cur := id
				for cur != dep && cur != "" {
					segment = append(segment, cur)
					cur = parent[cur]
				}
				cyclePath = append(cyclePath, dep)
				for i := len(segment) - 1; i >= 0; i-- {
					cyclePath = append(cyclePath, segment[i])
				}
				cyclePath = append(cyclePath, dep)
				return true
			}
			// 黑色节点跳过
		}

		color[id] = 2
		return false
	}

	for _, id := range wf.TaskIDs() {
		if color[id] == 0 {
			if dfs(id) {
				return cyclePath
			}
		}
	}
	return nil
}
