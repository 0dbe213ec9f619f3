package orchestrator

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/stevelan1995/orcs/pkg/core/agent"
	"github.com/stevelan1995/orcs/pkg/core/dag"
	"github.com/stevelan1995/orcs/pkg/core/event"
	"github.com/stevelan1995/orcs/pkg/core/memory"
	"github.com/stevelan1995/orcs/pkg/core/workflow"
)

// Task执行失败的错误码
const (
	ErrCodeAgentNotFound   = "AGENT_NOT_FOUND"   // Task引用的Agent未注册
	ErrCodeExecutionFailed = "EXECUTION_FAILED"  // Agent返回错误
	ErrCodeTimeout         = "EXECUTION_TIMEOUT" // Agent执行超时
	ErrCodePanic           = "EXECUTOR_PANIC"    // Agent执行中panic
	ErrCodeCanceled        = "CANCELED"          // 调度循环被取消
)

// DeadlockError 调度死锁的Workflow错误描述（对外导出）
// 就绪集为空、无Task在途且仍有未完成Task时写入metadata.error
const DeadlockError = "Workflow execution deadlocked"

// Orchestrator 工作流调度器（对外导出）
// 单控制循环顺序调度：每轮取就绪集中的第一个Task执行，
// 执行顺序完全确定。依赖通过构造注入，不使用包级全局状态
type Orchestrator struct {
	memory   memory.System
	registry *agent.Registry
	notifier event.Notifier

	taskTimeout  time.Duration // 单Task执行超时，0表示不限制
	pollInterval time.Duration // 无就绪Task但有在途Task时的轮询间隔

	// 调度循环持有写锁修改Workflow，SnapshotReport持读锁投影
	mu sync.RWMutex
}

// Option 调度器选项（对外导出）
type Option func(*Orchestrator)

// WithNotifier 设置状态事件通知器（对外导出）
func WithNotifier(n event.Notifier) Option {
	return func(o *Orchestrator) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithTaskTimeout 设置单Task执行超时（对外导出）
func WithTaskTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.taskTimeout = d
	}
}

// WithPollInterval 设置轮询间隔（对外导出）
func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// New 创建调度器（对外导出）
func New(memorySystem memory.System, registry *agent.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		memory:       memorySystem,
		registry:     registry,
		notifier:     event.NopNotifier{},
		pollInterval: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ValidateAndPrepare 校验依赖图并把Workflow从PLANNING推进到READY（对外导出）
// 校验失败（循环依赖）对规划是致命的：Workflow落入FAILED终态，
// metadata记录planningError与循环路径，错误同步返回给调用方
func (o *Orchestrator) ValidateAndPrepare(wf *workflow.Workflow) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if wf.Status != workflow.StatusPlanning {
		return fmt.Errorf("workflow %s 状态为 %s，只有PLANNING状态可校验", wf.ID, wf.Status)
	}

	result := dag.Validate(wf)
	if !result.OK {
		validationErr := &dag.ValidationError{WorkflowID: wf.ID, CyclePath: result.CyclePath}
		wf.Status = workflow.StatusFailed
		wf.Metadata[workflow.MetadataKeyPlanningError] = validationErr.Error()
		wf.Metadata[workflow.MetadataKeyCyclePath] = result.CyclePath
		log.Printf("❌ workflow %s 校验失败: %v", wf.ID, validationErr)
		return validationErr
	}

	if result.Modified {
		log.Printf("⚠️ workflow %s 校验时清理了非法依赖（自依赖/重复/悬空引用）", wf.ID)
	}

	wf.Status = workflow.StatusReady
	log.Printf("✅ workflow %s 校验通过，进入READY", wf.ID)
	return nil
}

// Run 执行Workflow直到终态，返回执行报告（对外导出）
// PLANNING状态的Workflow会先自动校验；校验失败直接返回FAILED报告。
// 循环每轮开头检查ctx取消。Run阻塞直到终态，不向调用方抛错：
// 一切失败都落入报告
func (o *Orchestrator) Run(ctx context.Context, wf *workflow.Workflow) *workflow.ExecutionReport {
	if wf.Status == workflow.StatusPlanning {
		if err := o.ValidateAndPrepare(wf); err != nil {
			return o.SnapshotReport(wf)
		}
	}

	o.mu.Lock()
	if wf.Status != workflow.StatusReady {
		o.mu.Unlock()
		log.Printf("⚠️ workflow %s 状态为 %s，无法启动", wf.ID, wf.Status)
		return o.SnapshotReport(wf)
	}
	now := time.Now()
	wf.Status = workflow.StatusRunning
	wf.StartedAt = &now
	o.mu.Unlock()

	log.Printf("🚀 workflow %s 开始执行，共 %d 个Task", wf.ID, wf.TaskCount())
	o.safeNotify(ctx, event.New(event.TypeWorkflowStarted, wf.ID, "", "", string(workflow.StatusRunning), wf.Title))

	for {
		// 循环顶部检查取消
		if err := ctx.Err(); err != nil {
			o.failWorkflow(ctx, wf, fmt.Sprintf("执行被取消: %v", err))
			break
		}

		o.mu.RLock()
		ready := wf.ExecutableTasks()
		allCompleted := wf.AllTasksCompleted()
		hasRunning := wf.HasRunningTask()
		o.mu.RUnlock()

		if len(ready) == 0 {
			if allCompleted {
				o.completeWorkflow(ctx, wf)
				break
			}
			if !hasRunning {
				// 无就绪、无在途、未全部完成：死锁
				o.failWorkflow(ctx, wf, DeadlockError)
				break
			}
			// 有在途Task，让出控制权后重新评估
			time.Sleep(o.pollInterval)
			continue
		}

		// 顺序调度：每轮只执行就绪集中的第一个Task
		o.executeTask(ctx, wf, ready[0])
	}

	log.Printf("🎉 workflow %s 执行结束，状态: %s", wf.ID, wf.Status)
	return o.SnapshotReport(wf)
}

// SnapshotReport 生成时点执行报告（对外导出）
// 非阻塞纯投影，持读锁与调度循环互斥，可在执行中随时调用
func (o *Orchestrator) SnapshotReport(wf *workflow.Workflow) *workflow.ExecutionReport {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return workflow.BuildReport(wf)
}

// executeTask 执行单个Task（内部方法）
// Task失败不会打断调度循环：失败被记录在Task上，
// 依赖它的下游Task自然永不就绪，最终走到死锁分支
func (o *Orchestrator) executeTask(ctx context.Context, wf *workflow.Workflow, t *workflow.Task) {
	o.mu.Lock()
	t.MarkRunning(time.Now())
	o.mu.Unlock()

	log.Printf("⏱️ 执行Task %s (%s)，Agent: %s", t.Title, t.ID, t.AgentID)
	o.safeNotify(ctx, event.New(event.TypeTaskStarted, wf.ID, t.ID, t.AgentID, workflow.TaskStatusRunning, t.Title))

	exec, ok := o.registry.Get(t.AgentID)
	if !ok {
		o.failTask(ctx, wf, t, ErrCodeAgentNotFound, fmt.Sprintf("Agent %s 未注册", t.AgentID))
		return
	}

	input := o.buildInput(wf, t)
	agentCtx := memory.CreateAgentContext(o.memory, t.AgentID, wf.ID, t.ID)

	execCtx := ctx
	cancel := func() {}
	if o.taskTimeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, o.taskTimeout)
	}
	defer cancel()

	result, err := o.invoke(execCtx, exec, t, input, agentCtx)
	if err != nil {
		code := ErrCodeExecutionFailed
		if execCtx.Err() == context.DeadlineExceeded {
			code = ErrCodeTimeout
		} else if execCtx.Err() == context.Canceled {
			code = ErrCodeCanceled
		}
		o.failTask(ctx, wf, t, code, err.Error())
		return
	}

	o.mu.Lock()
	t.MarkCompleted(result, time.Now())
	wf.Results[t.ID] = result
	o.mu.Unlock()

	log.Printf("✅ Task %s 完成", t.ID)
	o.safeNotify(ctx, event.New(event.TypeTaskCompleted, wf.ID, t.ID, t.AgentID, workflow.TaskStatusCompleted, t.Title))
}

// invoke 调用Agent执行器并隔离panic（内部方法）
// 执行器在独立goroutine中运行，超时后调度循环不再等待
func (o *Orchestrator) invoke(ctx context.Context, exec agent.Executor, t *workflow.Task, input string, agentCtx *memory.AgentContext) (result interface{}, err error) {
	type outcome struct {
		result interface{}
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("执行器panic: %v", r)}
			}
		}()
		res, execErr := exec.Execute(ctx, t, input, agentCtx)
		done <- outcome{result: res, err: execErr}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		return nil, fmt.Errorf("执行器未在期限内返回: %w", ctx.Err())
	}
}

// buildInput 拼装Task输入（内部方法）
// 由Task标题/描述与每个依赖的标题+结果级联而成，
// metadata.input存在时覆盖描述部分。依赖顺序按依赖列表存储顺序
func (o *Orchestrator) buildInput(wf *workflow.Workflow, t *workflow.Task) string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var b strings.Builder
	b.WriteString("任务: ")
	b.WriteString(t.Title)
	b.WriteString("\n")

	if override, ok := t.InputOverride(); ok {
		b.WriteString(override)
	} else {
		b.WriteString(t.Description)
	}

	if len(t.Dependencies) > 0 {
		b.WriteString("\n\n依赖结果:")
		for _, depID := range t.Dependencies {
			dep, ok := wf.GetTask(depID)
			if !ok {
				continue
			}
			b.WriteString(fmt.Sprintf("\n- %s: %v", dep.Title, dep.Result))
		}
	}
	return b.String()
}

// failTask 标记Task失败（内部方法）
func (o *Orchestrator) failTask(ctx context.Context, wf *workflow.Workflow, t *workflow.Task, code, message string) {
	o.mu.Lock()
	t.MarkFailed(code, message, time.Now())
	o.mu.Unlock()

	log.Printf("❌ Task %s 失败 [%s]: %s", t.ID, code, message)
	o.safeNotify(ctx, event.New(event.TypeTaskFailed, wf.ID, t.ID, t.AgentID, workflow.TaskStatusFailed, message))
}

// completeWorkflow 标记Workflow完成（内部方法）
func (o *Orchestrator) completeWorkflow(ctx context.Context, wf *workflow.Workflow) {
	o.mu.Lock()
	now := time.Now()
	wf.Status = workflow.StatusCompleted
	wf.CompletedAt = &now
	o.mu.Unlock()

	o.safeNotify(ctx, event.New(event.TypeWorkflowCompleted, wf.ID, "", "", string(workflow.StatusCompleted), wf.Title))
}

// failWorkflow 标记Workflow失败（内部方法）
func (o *Orchestrator) failWorkflow(ctx context.Context, wf *workflow.Workflow, reason string) {
	o.mu.Lock()
	now := time.Now()
	wf.Status = workflow.StatusFailed
	wf.CompletedAt = &now
	wf.Metadata[workflow.MetadataKeyError] = reason
	o.mu.Unlock()

	log.Printf("🛑 workflow %s 失败: %s", wf.ID, reason)
	o.safeNotify(ctx, event.New(event.TypeWorkflowFailed, wf.ID, "", "", string(workflow.StatusFailed), reason))
}

// safeNotify 调用通知器并吞掉异常（内部方法）
// 通知器错误只记录日志，绝不打断调度循环
func (o *Orchestrator) safeNotify(ctx context.Context, e *event.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("⚠️ 通知器panic已忽略: %v", r)
		}
	}()
	o.notifier.Notify(ctx, e)
}
