package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/stevelan1995/orcs/pkg/core/memory"
	"github.com/stevelan1995/orcs/pkg/core/workflow"
)

// Executor Agent执行器接口（对外导出）
// 一次调用对应一个Task的完整执行：输入为上游结果拼装的文本，
// 返回值作为Task.Result记录。执行器必须遵守ctx取消与超时
type Executor interface {
	// Execute 执行Task，返回结果或错误
	Execute(ctx context.Context, t *workflow.Task, input string, agentCtx *memory.AgentContext) (interface{}, error)
}

// ExecutorFunc 函数式Executor适配器（对外导出）
type ExecutorFunc func(ctx context.Context, t *workflow.Task, input string, agentCtx *memory.AgentContext) (interface{}, error)

// Execute 实现Executor接口
func (f ExecutorFunc) Execute(ctx context.Context, t *workflow.Task, input string, agentCtx *memory.AgentContext) (interface{}, error) {
	return f(ctx, t, input, agentCtx)
}

// Factory Executor工厂函数（对外导出）
// 注册工厂后执行器在首次Get时才实例化
type Factory func() Executor

// Registry Agent执行器注册中心（对外导出）
// 实例级注册中心，通过依赖注入传递，不使用包级全局状态，
// 同一进程可并存多个互不干扰的Registry
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
	factories map[string]Factory
}

// NewRegistry 创建注册中心（对外导出）
func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[string]Executor),
		factories: make(map[string]Factory),
	}
}

// Register 注册Agent执行器
// 重复注册同名Agent会覆盖旧实现
func (r *Registry) Register(agentID string, exec Executor) error {
	if agentID == "" {
		return fmt.Errorf("Agent ID不能为空")
	}
	if exec == nil {
		return fmt.Errorf("Agent %s 的执行器不能为nil", agentID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[agentID] = exec
	return nil
}

// RegisterType 注册Executor工厂，实例在首次Get时惰性创建
func (r *Registry) RegisterType(agentID string, factory Factory) error {
	if agentID == "" {
		return fmt.Errorf("Agent ID不能为空")
	}
	if factory == nil {
		return fmt.Errorf("Agent %s 的工厂不能为nil", agentID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[agentID] = factory
	return nil
}

// Get 获取Agent执行器
// 已注册实例优先；只注册了工厂时惰性实例化并缓存
func (r *Registry) Get(agentID string) (Executor, bool) {
	r.mu.RLock()
	exec, ok := r.executors[agentID]
	r.mu.RUnlock()
	if ok {
		return exec, true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if exec, ok := r.executors[agentID]; ok {
		return exec, true
	}
	factory, ok := r.factories[agentID]
	if !ok {
		return nil, false
	}
	exec = factory()
	if exec == nil {
		return nil, false
	}
	r.executors[agentID] = exec
	return exec, true
}

// List 列出已注册的Agent ID（升序排列），含尚未实例化的工厂注册
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool, len(r.executors)+len(r.factories))
	ids := make([]string, 0, len(r.executors)+len(r.factories))
	for id := range r.executors {
		seen[id] = true
		ids = append(ids, id)
	}
	for id := range r.factories {
		if !seen[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
