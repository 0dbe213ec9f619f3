package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevelan1995/orcs/pkg/core/agent"
	"github.com/stevelan1995/orcs/pkg/core/memory"
	"github.com/stevelan1995/orcs/pkg/core/planner"
	"github.com/stevelan1995/orcs/pkg/core/workflow"
	"github.com/stevelan1995/orcs/pkg/storage"
)

// memoryReportRepo 测试用内存归档Repository
type memoryReportRepo struct {
	mu      sync.Mutex
	reports map[string]*workflow.ExecutionReport
}

func newMemoryReportRepo() *memoryReportRepo {
	return &memoryReportRepo{reports: make(map[string]*workflow.ExecutionReport)}
}

func (r *memoryReportRepo) Save(ctx context.Context, report *workflow.ExecutionReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports[report.WorkflowID] = report
	return nil
}

func (r *memoryReportRepo) Get(ctx context.Context, workflowID string) (*workflow.ExecutionReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	report, ok := r.reports[workflowID]
	if !ok {
		return nil, storage.ErrReportNotFound
	}
	return report, nil
}

func (r *memoryReportRepo) List(ctx context.Context, limit int) ([]*storage.ReportSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var summaries []*storage.ReportSummary
	for _, report := range r.reports {
		summaries = append(summaries, &storage.ReportSummary{
			WorkflowID: report.WorkflowID,
			Title:      report.Title,
			Status:     report.Status,
			CreatedAt:  time.Now(),
		})
	}
	return summaries, nil
}

func (r *memoryReportRepo) Delete(ctx context.Context, workflowID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reports, workflowID)
	return nil
}

func (r *memoryReportRepo) Close() error { return nil }

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	registry := agent.NewRegistry()
	require.NoError(t, agent.RegisterBuiltins(registry))
	eng, err := NewEngine(registry, memory.NewBasicSystem(), opts...)
	require.NoError(t, err)
	return eng
}

func echoPlan() *planner.Plan {
	return &planner.Plan{Tasks: []planner.TaskSpec{
		{Title: "第一步", Description: "准备数据", AgentID: agent.AgentEcho},
		{Title: "第二步", Description: "汇总", AgentID: agent.AgentEcho, Dependencies: []planner.DependencyRef{planner.ByIndex(0)}},
	}}
}

func TestEngine_SubmitAndExecute(t *testing.T) {
	eng := newTestEngine(t)

	wf, err := eng.SubmitPlan("测试", "", "查询", echoPlan())
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusReady, wf.Status)

	report, err := eng.Execute(context.Background(), wf.ID)
	require.NoError(t, err)
	assert.Equal(t, string(workflow.StatusCompleted), report.Status)
	assert.Len(t, report.Tasks, 2)
}

func TestEngine_ExecuteAsyncAndWait(t *testing.T) {
	eng := newTestEngine(t)

	wf, err := eng.SubmitPlan("异步", "", "", echoPlan())
	require.NoError(t, err)
	require.NoError(t, eng.ExecuteAsync(context.Background(), wf.ID))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	report, err := eng.Wait(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, string(workflow.StatusCompleted), report.Status)
}

func TestEngine_ExecuteAsyncUnknownWorkflow(t *testing.T) {
	eng := newTestEngine(t)
	assert.Error(t, eng.ExecuteAsync(context.Background(), "不存在"))
}

func TestEngine_SubmitPlanFailureIsQueryable(t *testing.T) {
	eng := newTestEngine(t)

	badPlan := &planner.Plan{Tasks: []planner.TaskSpec{
		{Title: "越界", AgentID: agent.AgentEcho, Dependencies: []planner.DependencyRef{planner.ByIndex(9)}},
	}}

	wf, err := eng.SubmitPlan("失败", "", "", badPlan)
	require.Error(t, err)
	assert.Equal(t, workflow.StatusFailed, wf.Status)

	// 失败的Workflow仍可查询报告
	report, err := eng.Report(wf.ID)
	require.NoError(t, err)
	assert.Equal(t, string(workflow.StatusFailed), report.Status)
	assert.NotEmpty(t, report.Error)
}

func TestEngine_SubmitDuplicate(t *testing.T) {
	eng := newTestEngine(t)

	wf, err := eng.SubmitPlan("测试", "", "", echoPlan())
	require.NoError(t, err)

	assert.Error(t, eng.Submit(wf))
}

func TestEngine_ExecuteUnknownWorkflow(t *testing.T) {
	eng := newTestEngine(t)

	_, err := eng.Execute(context.Background(), "ghost")
	assert.Error(t, err)
}

func TestEngine_ExecuteTwiceRejected(t *testing.T) {
	eng := newTestEngine(t)

	wf, err := eng.SubmitPlan("测试", "", "", echoPlan())
	require.NoError(t, err)

	_, err = eng.Execute(context.Background(), wf.ID)
	require.NoError(t, err)

	// 已到终态的Workflow不能重新执行
	_, err = eng.Execute(context.Background(), wf.ID)
	assert.Error(t, err)
}

func TestEngine_ArchivesFinalReport(t *testing.T) {
	repo := newMemoryReportRepo()
	eng := newTestEngine(t, WithReportRepository(repo))

	wf, err := eng.SubmitPlan("测试", "", "", echoPlan())
	require.NoError(t, err)

	_, err = eng.Execute(context.Background(), wf.ID)
	require.NoError(t, err)

	archived, err := eng.HistoryReport(context.Background(), wf.ID)
	require.NoError(t, err)
	assert.Equal(t, string(workflow.StatusCompleted), archived.Status)
}

func TestEngine_ExecutionPlan(t *testing.T) {
	eng := newTestEngine(t)

	wf, err := eng.SubmitPlan("测试", "", "", echoPlan())
	require.NoError(t, err)

	levels, err := eng.ExecutionPlan(wf.ID)
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.Len(t, levels[0], 1)
	assert.Len(t, levels[1], 1)
}

func TestEngine_List(t *testing.T) {
	eng := newTestEngine(t)

	_, err := eng.SubmitPlan("一号", "", "", echoPlan())
	require.NoError(t, err)
	_, err = eng.SubmitPlan("二号", "", "", echoPlan())
	require.NoError(t, err)

	reports := eng.List()
	require.Len(t, reports, 2)
	assert.Equal(t, "一号", reports[0].Title)
	assert.Equal(t, "二号", reports[1].Title)
}

func TestCronScheduler_RegisterValidation(t *testing.T) {
	eng := newTestEngine(t)
	cs := NewCronScheduler(eng)
	defer cs.Stop()

	// 非法Cron表达式
	err := cs.Register(&Definition{ID: "bad", Title: "坏表达式", CronExpr: "not-a-cron", Plan: echoPlan()})
	assert.Error(t, err)

	// 缺少规划结果
	err = cs.Register(&Definition{ID: "empty", Title: "空计划", CronExpr: "@every 1h"})
	assert.Error(t, err)

	// 正常注册与重复注册
	def := &Definition{ID: "ok", Title: "定时", CronExpr: "0 0 * * * *", Plan: echoPlan()}
	require.NoError(t, cs.Register(def))
	assert.Error(t, cs.Register(def))
	assert.Equal(t, []string{"ok"}, cs.Definitions())

	require.NoError(t, cs.Unregister("ok"))
	assert.Empty(t, cs.Definitions())
}

func TestCronScheduler_TriggerCreatesFreshInstance(t *testing.T) {
	eng := newTestEngine(t)
	cs := NewCronScheduler(eng)
	defer cs.Stop()

	def := &Definition{ID: "daily", Title: "定时", CronExpr: "@every 1h", Plan: echoPlan()}

	// 每次触发装配并执行一个全新实例
	cs.trigger(def)
	cs.trigger(def)

	reports := eng.List()
	require.Len(t, reports, 2)
	assert.NotEqual(t, reports[0].WorkflowID, reports[1].WorkflowID)
	for _, report := range reports {
		assert.Equal(t, string(workflow.StatusCompleted), report.Status)
	}
}
