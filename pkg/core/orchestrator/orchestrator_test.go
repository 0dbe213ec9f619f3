package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stevelan1995/orcs/pkg/core/agent"
	"github.com/stevelan1995/orcs/pkg/core/dag"
	"github.com/stevelan1995/orcs/pkg/core/event"
	"github.com/stevelan1995/orcs/pkg/core/memory"
	"github.com/stevelan1995/orcs/pkg/core/workflow"
)

// recordingExecutor 记录执行顺序的桩执行器
type recordingExecutor struct {
	mu    sync.Mutex
	order []string
	fail  map[string]bool // 需要失败的Task ID
	delay time.Duration
}

func (r *recordingExecutor) Execute(ctx context.Context, t *workflow.Task, input string, agentCtx *memory.AgentContext) (interface{}, error) {
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	r.mu.Lock()
	r.order = append(r.order, t.ID)
	r.mu.Unlock()
	if r.fail[t.ID] {
		return nil, errors.New("桩执行器故意失败")
	}
	return "result-" + t.ID, nil
}

func (r *recordingExecutor) executionOrder() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// newTestOrchestrator 构建测试用调度器与桩执行器
func newTestOrchestrator(t *testing.T, stub *recordingExecutor, opts ...Option) *Orchestrator {
	t.Helper()
	registry := agent.NewRegistry()
	if err := registry.Register("stub", stub); err != nil {
		t.Fatalf("注册桩执行器失败: %v", err)
	}
	opts = append([]Option{WithPollInterval(5 * time.Millisecond)}, opts...)
	return New(memory.NewBasicSystem(), registry, opts...)
}

// buildTestWorkflow 构建测试Workflow，全部Task使用stub执行器
func buildTestWorkflow(t *testing.T, ids []string, deps map[string][]string) *workflow.Workflow {
	t.Helper()
	wf := workflow.New("测试工作流", "", "测试查询")
	for _, id := range ids {
		task := workflow.NewTaskWithID(id, "任务"+id, "", "stub")
		task.Dependencies = deps[id]
		if err := wf.AddTask(task); err != nil {
			t.Fatalf("添加Task失败: %v", err)
		}
	}
	return wf
}

func TestRun_LinearChainExecutesInOrder(t *testing.T) {
	// 场景：A无依赖，B依赖A，C依赖A和B
	stub := &recordingExecutor{}
	o := newTestOrchestrator(t, stub)
	wf := buildTestWorkflow(t, []string{"A", "B", "C"}, map[string][]string{
		"B": {"A"},
		"C": {"A", "B"},
	})

	report := o.Run(context.Background(), wf)

	if report.Status != string(workflow.StatusCompleted) {
		t.Fatalf("最终状态错误，期望: COMPLETED, 实际: %s，错误: %s", report.Status, report.Error)
	}
	if !reflect.DeepEqual(stub.executionOrder(), []string{"A", "B", "C"}) {
		t.Errorf("执行顺序错误，期望: [A B C], 实际: %v", stub.executionOrder())
	}
	if len(wf.Results) != 3 {
		t.Errorf("results数量错误，期望: 3, 实际: %d", len(wf.Results))
	}
	for _, id := range []string{"A", "B", "C"} {
		if wf.Results[id] != "result-"+id {
			t.Errorf("Task %s 的结果错误: %v", id, wf.Results[id])
		}
	}
}

func TestValidateAndPrepare_CycleIsFatal(t *testing.T) {
	// 场景：A依赖B，B依赖A
	o := newTestOrchestrator(t, &recordingExecutor{})
	wf := buildTestWorkflow(t, []string{"A", "B"}, map[string][]string{
		"A": {"B"},
		"B": {"A"},
	})

	err := o.ValidateAndPrepare(wf)
	if err == nil {
		t.Fatal("循环依赖应校验失败")
	}

	var validationErr *dag.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("错误类型应为ValidationError，实际: %T", err)
	}
	if !reflect.DeepEqual(validationErr.CyclePath, []string{"A", "B", "A"}) {
		t.Errorf("循环路径错误，期望: [A B A], 实际: %v", validationErr.CyclePath)
	}
	if wf.Status != workflow.StatusFailed {
		t.Errorf("校验失败的Workflow应为FAILED，实际: %s", wf.Status)
	}
	if _, ok := wf.Metadata[workflow.MetadataKeyPlanningError]; !ok {
		t.Error("应记录planningError元数据")
	}
}

func TestRun_FailedDependencyLeadsToDeadlock(t *testing.T) {
	// 场景：A失败，B依赖A。B永不就绪，循环应检测死锁而不是挂起
	stub := &recordingExecutor{fail: map[string]bool{"A": true}}
	o := newTestOrchestrator(t, stub)
	wf := buildTestWorkflow(t, []string{"A", "B"}, map[string][]string{
		"B": {"A"},
	})

	report := o.Run(context.Background(), wf)

	if report.Status != string(workflow.StatusFailed) {
		t.Fatalf("最终状态错误，期望: FAILED, 实际: %s", report.Status)
	}
	if report.Error != DeadlockError {
		t.Errorf("应记录死锁错误，实际: %s", report.Error)
	}

	taskA, _ := wf.GetTask("A")
	if taskA.Status != workflow.TaskStatusFailed {
		t.Errorf("A应为FAILED，实际: %s", taskA.Status)
	}
	taskB, _ := wf.GetTask("B")
	if taskB.Status != workflow.TaskStatusPending {
		t.Errorf("B应保持PENDING，实际: %s", taskB.Status)
	}
}

func TestRun_DanglingDependencyIgnored(t *testing.T) {
	// 场景：依赖指向不存在的Task，校验清理后照常可执行
	stub := &recordingExecutor{}
	o := newTestOrchestrator(t, stub)
	wf := buildTestWorkflow(t, []string{"A"}, map[string][]string{
		"A": {"ghost"},
	})

	report := o.Run(context.Background(), wf)

	if report.Status != string(workflow.StatusCompleted) {
		t.Fatalf("最终状态错误，期望: COMPLETED, 实际: %s", report.Status)
	}
}

func TestRun_IndependentChains(t *testing.T) {
	// 场景：两条独立链 A->B 与 C->D，各链内部顺序保持
	stub := &recordingExecutor{}
	o := newTestOrchestrator(t, stub)
	wf := buildTestWorkflow(t, []string{"A", "C", "B", "D"}, map[string][]string{
		"B": {"A"},
		"D": {"C"},
	})

	report := o.Run(context.Background(), wf)

	if report.Status != string(workflow.StatusCompleted) {
		t.Fatalf("最终状态错误，期望: COMPLETED, 实际: %s", report.Status)
	}

	order := stub.executionOrder()
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	if pos["A"] > pos["B"] {
		t.Errorf("A应先于B执行，实际顺序: %v", order)
	}
	if pos["C"] > pos["D"] {
		t.Errorf("C应先于D执行，实际顺序: %v", order)
	}
}

func TestRun_Deterministic(t *testing.T) {
	// 相同Workflow执行两次，启动顺序与最终报告一致
	var orders [][]string
	for i := 0; i < 2; i++ {
		stub := &recordingExecutor{}
		o := newTestOrchestrator(t, stub)
		wf := buildTestWorkflow(t, []string{"A", "B", "C", "D"}, map[string][]string{
			"B": {"A"},
			"C": {"A"},
			"D": {"B", "C"},
		})

		report := o.Run(context.Background(), wf)
		if report.Status != string(workflow.StatusCompleted) {
			t.Fatalf("第%d次执行状态错误: %s", i+1, report.Status)
		}
		orders = append(orders, stub.executionOrder())
	}

	if !reflect.DeepEqual(orders[0], orders[1]) {
		t.Errorf("两次执行顺序不一致: %v vs %v", orders[0], orders[1])
	}
}

func TestRun_AgentNotFound(t *testing.T) {
	o := New(memory.NewBasicSystem(), agent.NewRegistry())
	wf := buildTestWorkflow(t, []string{"A"}, nil)

	report := o.Run(context.Background(), wf)

	if report.Status != string(workflow.StatusFailed) {
		t.Fatalf("未注册Agent应导致FAILED，实际: %s", report.Status)
	}
	taskA := report.Tasks["A"]
	if taskA.Error == nil || taskA.Error.Code != ErrCodeAgentNotFound {
		t.Errorf("错误码应为AGENT_NOT_FOUND，实际: %+v", taskA.Error)
	}
}

func TestRun_TaskTimeout(t *testing.T) {
	stub := &recordingExecutor{delay: 200 * time.Millisecond}
	o := newTestOrchestrator(t, stub, WithTaskTimeout(20*time.Millisecond))
	wf := buildTestWorkflow(t, []string{"A"}, nil)

	report := o.Run(context.Background(), wf)

	if report.Status != string(workflow.StatusFailed) {
		t.Fatalf("超时应导致FAILED，实际: %s", report.Status)
	}
	taskA := report.Tasks["A"]
	if taskA.Error == nil || taskA.Error.Code != ErrCodeTimeout {
		t.Errorf("错误码应为EXECUTION_TIMEOUT，实际: %+v", taskA.Error)
	}
}

func TestRun_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stub := &recordingExecutor{}
	o := newTestOrchestrator(t, stub)
	wf := buildTestWorkflow(t, []string{"A"}, nil)

	report := o.Run(ctx, wf)

	if report.Status != string(workflow.StatusFailed) {
		t.Fatalf("取消后应为FAILED，实际: %s", report.Status)
	}
	if len(stub.executionOrder()) != 0 {
		t.Errorf("取消后不应执行任何Task，实际: %v", stub.executionOrder())
	}
}

func TestRun_NotifierPanicSwallowed(t *testing.T) {
	panicNotifier := notifierFunc(func(ctx context.Context, e *event.Event) {
		panic("通知器故障")
	})

	stub := &recordingExecutor{}
	o := newTestOrchestrator(t, stub, WithNotifier(panicNotifier))
	wf := buildTestWorkflow(t, []string{"A"}, nil)

	report := o.Run(context.Background(), wf)

	if report.Status != string(workflow.StatusCompleted) {
		t.Fatalf("通知器panic不应影响执行，实际状态: %s", report.Status)
	}
}

func TestRun_NotifierReceivesLifecycleEvents(t *testing.T) {
	var mu sync.Mutex
	var types []event.Type
	recorder := notifierFunc(func(ctx context.Context, e *event.Event) {
		mu.Lock()
		types = append(types, e.Type)
		mu.Unlock()
	})

	stub := &recordingExecutor{}
	o := newTestOrchestrator(t, stub, WithNotifier(recorder))
	wf := buildTestWorkflow(t, []string{"A"}, nil)

	o.Run(context.Background(), wf)

	expected := []event.Type{
		event.TypeWorkflowStarted,
		event.TypeTaskStarted,
		event.TypeTaskCompleted,
		event.TypeWorkflowCompleted,
	}
	mu.Lock()
	defer mu.Unlock()
	if !reflect.DeepEqual(types, expected) {
		t.Errorf("事件序列错误，期望: %v, 实际: %v", expected, types)
	}
}

func TestRun_InputIncludesDependencyResults(t *testing.T) {
	var mu sync.Mutex
	inputs := map[string]string{}
	capture := agent.ExecutorFunc(func(ctx context.Context, task *workflow.Task, input string, agentCtx *memory.AgentContext) (interface{}, error) {
		mu.Lock()
		inputs[task.ID] = input
		mu.Unlock()
		return "out-" + task.ID, nil
	})

	registry := agent.NewRegistry()
	if err := registry.Register("stub", capture); err != nil {
		t.Fatalf("注册执行器失败: %v", err)
	}
	o := New(memory.NewBasicSystem(), registry)

	wf := buildTestWorkflow(t, []string{"A", "B"}, map[string][]string{
		"B": {"A"},
	})

	o.Run(context.Background(), wf)

	mu.Lock()
	defer mu.Unlock()
	want := fmt.Sprintf("- %s: %v", "任务A", "out-A")
	if !contains(inputs["B"], want) {
		t.Errorf("B的输入应包含依赖A的标题与结果，实际输入:\n%s", inputs["B"])
	}
}

func TestRun_InputOverride(t *testing.T) {
	var got string
	capture := agent.ExecutorFunc(func(ctx context.Context, task *workflow.Task, input string, agentCtx *memory.AgentContext) (interface{}, error) {
		got = input
		return nil, nil
	})

	registry := agent.NewRegistry()
	if err := registry.Register("stub", capture); err != nil {
		t.Fatalf("注册执行器失败: %v", err)
	}
	o := New(memory.NewBasicSystem(), registry)

	wf := workflow.New("测试", "", "")
	task := workflow.NewTaskWithID("A", "任务A", "原始描述", "stub")
	task.Metadata[workflow.MetadataKeyInput] = "覆盖输入"
	if err := wf.AddTask(task); err != nil {
		t.Fatalf("添加Task失败: %v", err)
	}

	o.Run(context.Background(), wf)

	if !contains(got, "覆盖输入") || contains(got, "原始描述") {
		t.Errorf("metadata.input应覆盖描述，实际输入:\n%s", got)
	}
}

func TestSnapshotReport_MidRun(t *testing.T) {
	stub := &recordingExecutor{delay: 50 * time.Millisecond}
	o := newTestOrchestrator(t, stub)
	wf := buildTestWorkflow(t, []string{"A", "B"}, map[string][]string{
		"B": {"A"},
	})

	done := make(chan *workflow.ExecutionReport, 1)
	go func() {
		done <- o.Run(context.Background(), wf)
	}()

	// 执行中拍快照不得panic或阻塞
	time.Sleep(20 * time.Millisecond)
	snapshot := o.SnapshotReport(wf)
	if snapshot.WorkflowID != wf.ID {
		t.Errorf("快照Workflow ID错误: %s", snapshot.WorkflowID)
	}

	report := <-done
	if report.Status != string(workflow.StatusCompleted) {
		t.Fatalf("最终状态错误: %s", report.Status)
	}
}

func TestRun_TaskStatusMonotonic(t *testing.T) {
	// 任一Task到达终态后不再变化
	stub := &recordingExecutor{fail: map[string]bool{"B": true}}
	o := newTestOrchestrator(t, stub)
	wf := buildTestWorkflow(t, []string{"A", "B"}, nil)

	o.Run(context.Background(), wf)

	taskA, _ := wf.GetTask("A")
	taskB, _ := wf.GetTask("B")
	if !taskA.IsTerminal() || !taskB.IsTerminal() {
		t.Error("全部Task都应到达终态")
	}
	if taskA.Status != workflow.TaskStatusCompleted {
		t.Errorf("A应为COMPLETED，实际: %s", taskA.Status)
	}
	if taskB.Status != workflow.TaskStatusFailed {
		t.Errorf("B应为FAILED，实际: %s", taskB.Status)
	}
	// 失败Task保留错误与完成时间
	if taskB.Err == nil || taskB.CompletedAt == nil {
		t.Error("失败Task应记录错误与完成时间")
	}
}

type notifierFunc func(ctx context.Context, e *event.Event)

func (f notifierFunc) Notify(ctx context.Context, e *event.Event) { f(ctx, e) }

func contains(s, sub string) bool {
	return strings.Contains(s, sub)
}
