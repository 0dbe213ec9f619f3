package dag

import (
	"fmt"

	godag "github.com/begmaroman/go-dag"

	"github.com/stevelan1995/orcs/pkg/core/workflow"
)

// taskNode go-dag节点，包装Task ID（实现 Identifiable 接口）
type taskNode struct {
	id string
}

// ID 实现 Identifiable 接口
func (n *taskNode) ID() string {
	return n.id
}

// Graph Workflow依赖图（对外导出）
// 基于go-dag库构建，边方向为 依赖 -> 被依赖者（父节点先执行）
type Graph struct {
	d  *godag.DAG[*taskNode]
	wf *workflow.Workflow
}

// Build 从Workflow构建依赖图（对外导出）
// 前置条件：Workflow已通过Validate校验（无循环、无悬空引用），
// 否则AddEdge会返回错误
func Build(wf *workflow.Workflow) (*Graph, error) {
	d := godag.NewDAG[*taskNode]()

	for _, id := range wf.TaskIDs() {
		if _, err := d.AddVertex(&taskNode{id: id}); err != nil {
			return nil, fmt.Errorf("添加节点 %s 失败: %w", id, err)
		}
	}

	for _, id := range wf.TaskIDs() {
		t, _ := wf.GetTask(id)
		for _, dep := range t.Dependencies {
			// 依赖作为父节点
			if err := d.AddEdge(dep, id); err != nil {
				return nil, fmt.Errorf("添加边 %s -> %s 失败: %w", dep, id, err)
			}
		}
	}

	return &Graph{d: d, wf: wf}, nil
}

// Roots 返回无依赖的根Task ID（对外导出）
// 按Workflow插入顺序排列，保证确定性
func (g *Graph) Roots() []string {
	roots := g.d.GetRoots()
	ordered := make([]string, 0, len(roots))
	for _, id := range g.wf.TaskIDs() {
		if _, ok := roots[id]; ok {
			ordered = append(ordered, id)
		}
	}
	return ordered
}

// Children 返回直接依赖某Task的下游Task ID（对外导出）
func (g *Graph) Children(id string) ([]string, error) {
	children, err := g.d.GetChildren(id)
	if err != nil {
		return nil, fmt.Errorf("获取 %s 的下游节点失败: %w", id, err)
	}
	ordered := make([]string, 0, len(children))
	for _, tid := range g.wf.TaskIDs() {
		if _, ok := children[tid]; ok {
			ordered = append(ordered, tid)
		}
	}
	return ordered, nil
}

// ExecutionLevels 计算拓扑分层执行计划（对外导出）
// Kahn算法：第0层为无依赖Task，第N层的Task仅依赖前N-1层。
// 层内按Workflow插入顺序排列。用于执行前的计划预览，
// 实际调度由Orchestrator按就绪判定逐个推进。
func (g *Graph) ExecutionLevels() [][]string {
	ids := g.wf.TaskIDs()
	indegree := make(map[string]int, len(ids))
	for _, id := range ids {
		t, _ := g.wf.GetTask(id)
		indegree[id] = len(t.Dependencies)
	}

	var levels [][]string
	remaining := len(ids)
	current := []string{}
	for _, id := range ids {
		if indegree[id] == 0 {
			current = append(current, id)
		}
	}

	for len(current) > 0 {
		levels = append(levels, current)
		remaining -= len(current)

		nextSet := make(map[string]bool)
		for _, id := range current {
			children, err := g.d.GetChildren(id)
			if err != nil {
				continue
			}
			for childID := range children {
				indegree[childID]--
				if indegree[childID] == 0 {
					nextSet[childID] = true
				}
			}
		}

		next := []string{}
		for _, id := range ids {
			if nextSet[id] {
				next = append(next, id)
			}
		}
		current = next
	}

	// remaining > 0 说明存在循环，Validate阶段已拦截，此处不再重复报告
	return levels
}
