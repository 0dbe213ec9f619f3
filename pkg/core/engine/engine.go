package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/stevelan1995/orcs/pkg/core/agent"
	"github.com/stevelan1995/orcs/pkg/core/dag"
	"github.com/stevelan1995/orcs/pkg/core/event"
	"github.com/stevelan1995/orcs/pkg/core/memory"
	"github.com/stevelan1995/orcs/pkg/core/orchestrator"
	"github.com/stevelan1995/orcs/pkg/core/planner"
	"github.com/stevelan1995/orcs/pkg/core/workflow"
	"github.com/stevelan1995/orcs/pkg/storage"
)

// Engine 多Workflow控制面（对外导出）
// 每个Workflow拥有独立的调度器实例，互不共享可变状态；
// Engine只负责登记、启动与报告查询。依赖全部通过构造注入
type Engine struct {
	registry   *agent.Registry
	memory     memory.System
	notifier   event.Notifier
	reportRepo storage.ReportRepository // 可选的终态报告归档

	taskTimeout  time.Duration
	pollInterval time.Duration

	mu            sync.RWMutex
	workflows     map[string]*workflow.Workflow
	orchestrators map[string]*orchestrator.Orchestrator
	order         []string // 登记顺序
	running       map[string]bool
}

// Option Engine选项（对外导出）
type Option func(*Engine)

// WithNotifier 设置状态事件通知器（对外导出）
func WithNotifier(n event.Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithReportRepository 设置终态报告归档Repository（对外导出）
func WithReportRepository(repo storage.ReportRepository) Option {
	return func(e *Engine) {
		e.reportRepo = repo
	}
}

// WithTaskTimeout 设置单Task执行超时（对外导出）
func WithTaskTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.taskTimeout = d
	}
}

// WithPollInterval 设置调度循环的轮询间隔（对外导出）
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.pollInterval = d
		}
	}
}

// NewEngine 创建Engine实例（对外导出的工厂方法）
func NewEngine(registry *agent.Registry, memorySystem memory.System, opts ...Option) (*Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("Agent注册中心不能为nil")
	}
	if memorySystem == nil {
		return nil, fmt.Errorf("内存系统不能为nil")
	}

	e := &Engine{
		registry:      registry,
		memory:        memorySystem,
		notifier:      event.NopNotifier{},
		workflows:     make(map[string]*workflow.Workflow),
		orchestrators: make(map[string]*orchestrator.Orchestrator),
		running:       make(map[string]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// SubmitPlan 装配规划结果并登记Workflow（对外导出）
// 装配或校验失败时Workflow仍被登记（FAILED终态），便于查询失败原因
func (e *Engine) SubmitPlan(title, description, query string, plan *planner.Plan) (*workflow.Workflow, error) {
	wf, buildErr := planner.BuildWorkflow(title, description, query, plan)
	if buildErr != nil {
		e.store(wf)
		return wf, buildErr
	}
	return wf, e.Submit(wf)
}

// Submit 登记Workflow并完成校验（对外导出）
// 校验把Workflow从PLANNING推进到READY；循环依赖返回ValidationError
func (e *Engine) Submit(wf *workflow.Workflow) error {
	if wf == nil {
		return fmt.Errorf("Workflow不能为nil")
	}

	e.mu.RLock()
	_, exists := e.workflows[wf.ID]
	e.mu.RUnlock()
	if exists {
		return fmt.Errorf("workflow %s 已登记", wf.ID)
	}

	orch := e.store(wf)

	if wf.Status == workflow.StatusPlanning {
		if err := orch.ValidateAndPrepare(wf); err != nil {
			return err
		}
	}

	log.Printf("✅ workflow %s 已登记，状态: %s", wf.ID, wf.Status)
	return nil
}

// store 登记Workflow并创建其调度器（内部方法）
func (e *Engine) store(wf *workflow.Workflow) *orchestrator.Orchestrator {
	orchOpts := []orchestrator.Option{
		orchestrator.WithNotifier(e.notifier),
		orchestrator.WithTaskTimeout(e.taskTimeout),
	}
	if e.pollInterval > 0 {
		orchOpts = append(orchOpts, orchestrator.WithPollInterval(e.pollInterval))
	}
	orch := orchestrator.New(e.memory, e.registry, orchOpts...)

	e.mu.Lock()
	e.workflows[wf.ID] = wf
	e.orchestrators[wf.ID] = orch
	e.order = append(e.order, wf.ID)
	e.mu.Unlock()
	return orch
}

// Execute 阻塞执行Workflow直到终态（对外导出）
// 终态报告在配置了归档Repository时落库；归档失败只记日志
func (e *Engine) Execute(ctx context.Context, workflowID string) (*workflow.ExecutionReport, error) {
	e.mu.Lock()
	wf, ok := e.workflows[workflowID]
	if !ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("workflow %s 不存在", workflowID)
	}
	orch := e.orchestrators[workflowID]
	if e.running[workflowID] {
		e.mu.Unlock()
		return nil, fmt.Errorf("workflow %s 正在执行", workflowID)
	}
	if wf.Status != workflow.StatusReady {
		e.mu.Unlock()
		return nil, fmt.Errorf("workflow %s 状态为 %s，无法执行", workflowID, wf.Status)
	}
	e.running[workflowID] = true
	e.mu.Unlock()

	report := orch.Run(ctx, wf)

	e.mu.Lock()
	delete(e.running, workflowID)
	e.mu.Unlock()

	e.archive(ctx, report)
	return report, nil
}

// ExecuteAsync 异步执行Workflow（对外导出）
// 启动前的状态校验同步完成并返回错误；执行结果通过Report/Wait查询
func (e *Engine) ExecuteAsync(ctx context.Context, workflowID string) error {
	e.mu.RLock()
	wf, ok := e.workflows[workflowID]
	running := e.running[workflowID]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("workflow %s 不存在", workflowID)
	}
	if running {
		return fmt.Errorf("workflow %s 正在执行", workflowID)
	}
	if wf.Status != workflow.StatusReady {
		return fmt.Errorf("workflow %s 状态为 %s，无法执行", workflowID, wf.Status)
	}

	go func() {
		if _, err := e.Execute(ctx, workflowID); err != nil {
			log.Printf("❌ workflow %s 异步执行失败: %v", workflowID, err)
		}
	}()
	return nil
}

// Wait 阻塞等待Workflow进入终态（对外导出）
// ctx取消时返回当时的时点报告和ctx错误
func (e *Engine) Wait(ctx context.Context, workflowID string) (*workflow.ExecutionReport, error) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		report, err := e.Report(workflowID)
		if err != nil {
			return nil, err
		}
		switch report.Status {
		case workflow.StatusCompleted, workflow.StatusFailed:
			return report, nil
		}

		select {
		case <-ctx.Done():
			return report, ctx.Err()
		case <-ticker.C:
		}
	}
}

// archive 归档终态报告（内部方法）
func (e *Engine) archive(ctx context.Context, report *workflow.ExecutionReport) {
	if e.reportRepo == nil {
		return
	}
	if err := e.reportRepo.Save(ctx, report); err != nil {
		log.Printf("⚠️ 归档workflow %s 的报告失败: %v", report.WorkflowID, err)
	}
}

// Get 获取已登记的Workflow（对外导出）
func (e *Engine) Get(workflowID string) (*workflow.Workflow, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	wf, ok := e.workflows[workflowID]
	return wf, ok
}

// Report 生成时点执行报告（对外导出），执行中也可调用
func (e *Engine) Report(workflowID string) (*workflow.ExecutionReport, error) {
	e.mu.RLock()
	wf, ok := e.workflows[workflowID]
	orch := e.orchestrators[workflowID]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("workflow %s 不存在", workflowID)
	}
	return orch.SnapshotReport(wf), nil
}

// List 按登记顺序列出全部Workflow的时点报告（对外导出）
func (e *Engine) List() []*workflow.ExecutionReport {
	e.mu.RLock()
	ids := append([]string(nil), e.order...)
	e.mu.RUnlock()

	reports := make([]*workflow.ExecutionReport, 0, len(ids))
	for _, id := range ids {
		if report, err := e.Report(id); err == nil {
			reports = append(reports, report)
		}
	}
	return reports
}

// ExecutionPlan 计算Workflow的拓扑分层执行计划（对外导出）
// 只对已通过校验的Workflow有意义
func (e *Engine) ExecutionPlan(workflowID string) ([][]string, error) {
	e.mu.RLock()
	wf, ok := e.workflows[workflowID]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("workflow %s 不存在", workflowID)
	}

	g, err := dag.Build(wf)
	if err != nil {
		return nil, fmt.Errorf("构建workflow %s 的依赖图失败: %w", workflowID, err)
	}
	return g.ExecutionLevels(), nil
}

// History 查询归档的历史报告概要（对外导出）
func (e *Engine) History(ctx context.Context, limit int) ([]*storage.ReportSummary, error) {
	if e.reportRepo == nil {
		return nil, fmt.Errorf("未配置报告归档存储")
	}
	return e.reportRepo.List(ctx, limit)
}

// HistoryReport 查询单份归档报告（对外导出）
func (e *Engine) HistoryReport(ctx context.Context, workflowID string) (*workflow.ExecutionReport, error) {
	if e.reportRepo == nil {
		return nil, fmt.Errorf("未配置报告归档存储")
	}
	return e.reportRepo.Get(ctx, workflowID)
}
