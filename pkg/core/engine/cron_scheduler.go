package engine

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/stevelan1995/orcs/pkg/core/planner"
)

// Definition 定时调度的工作流定义（对外导出）
// 每次触发都从规划结果装配一个全新的Workflow实例执行，
// 历史实例保持终态不被复用
type Definition struct {
	ID          string
	Title       string
	Description string
	Query       string
	CronExpr    string
	Plan        *planner.Plan
}

// CronScheduler 定时调度器（对外导出）
type CronScheduler struct {
	cron        *cron.Cron
	engine      *Engine
	definitions map[string]*Definition
	entries     map[string]cron.EntryID
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewCronScheduler 创建定时调度器（对外导出）
func NewCronScheduler(eng *Engine) *CronScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &CronScheduler{
		cron:        cron.New(cron.WithSeconds()), // 支持秒级精度
		engine:      eng,
		definitions: make(map[string]*Definition),
		entries:     make(map[string]cron.EntryID),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Register 注册定时工作流定义（对外导出）
func (cs *CronScheduler) Register(def *Definition) error {
	if def == nil || def.ID == "" {
		return fmt.Errorf("定时工作流定义不能为空")
	}
	if def.Plan == nil || len(def.Plan.Tasks) == 0 {
		return fmt.Errorf("定时工作流 %s 缺少规划结果", def.ID)
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	if _, exists := cs.definitions[def.ID]; exists {
		return fmt.Errorf("定时工作流 %s 已注册", def.ID)
	}

	if def.CronExpr == "" {
		return fmt.Errorf("定时工作流 %s 未设置Cron表达式", def.ID)
	}

	// 验证Cron表达式（支持秒级精度）
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(def.CronExpr); err != nil {
		return fmt.Errorf("定时工作流 %s 的Cron表达式无效: %w", def.ID, err)
	}

	entryID, err := cs.cron.AddFunc(def.CronExpr, func() {
		cs.trigger(def)
	})
	if err != nil {
		return fmt.Errorf("添加Cron任务失败: %w", err)
	}

	cs.definitions[def.ID] = def
	cs.entries[def.ID] = entryID

	log.Printf("✅ [Cron调度器] 已注册定时工作流: ID=%s, Title=%s, CronExpr=%s", def.ID, def.Title, def.CronExpr)
	return nil
}

// Unregister 取消注册定时工作流（对外导出）
func (cs *CronScheduler) Unregister(definitionID string) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	entryID, exists := cs.entries[definitionID]
	if !exists {
		return fmt.Errorf("定时工作流 %s 未注册", definitionID)
	}

	cs.cron.Remove(entryID)
	delete(cs.definitions, definitionID)
	delete(cs.entries, definitionID)

	log.Printf("✅ [Cron调度器] 已取消注册定时工作流: ID=%s", definitionID)
	return nil
}

// Definitions 列出已注册的定时工作流ID（对外导出）
func (cs *CronScheduler) Definitions() []string {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	ids := make([]string, 0, len(cs.definitions))
	for id := range cs.definitions {
		ids = append(ids, id)
	}
	return ids
}

// Start 启动定时调度（对外导出）
func (cs *CronScheduler) Start() {
	cs.cron.Start()
	log.Printf("🚀 [Cron调度器] 已启动，共 %d 个定时工作流", len(cs.definitions))
}

// Stop 停止定时调度并取消在途执行（对外导出）
func (cs *CronScheduler) Stop() {
	cs.cancel()
	stopCtx := cs.cron.Stop()
	<-stopCtx.Done()
	log.Printf("🛑 [Cron调度器] 已停止")
}

// trigger 触发一次定时执行（内部方法）
// 每次装配全新的Workflow，登记到Engine后阻塞执行
func (cs *CronScheduler) trigger(def *Definition) {
	wf, err := cs.engine.SubmitPlan(def.Title, def.Description, def.Query, def.Plan)
	if err != nil {
		log.Printf("❌ [Cron调度器] 定时工作流 %s 装配失败: %v", def.ID, err)
		return
	}

	log.Printf("⏱️ [Cron调度器] 触发定时工作流 %s，实例: %s", def.ID, wf.ID)
	if _, err := cs.engine.Execute(cs.ctx, wf.ID); err != nil {
		log.Printf("❌ [Cron调度器] 定时工作流 %s 执行失败: %v", def.ID, err)
	}
}
