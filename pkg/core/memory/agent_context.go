package memory

// AgentContext Agent执行上下文（对外导出）
// 绑定一次Task执行的作用域，Agent通过它读写内存系统而不感知作用域规则
type AgentContext struct {
	AgentID    string
	WorkflowID string
	TaskID     string

	system System
	scope  string
}

// CreateAgentContext 为一次Task执行创建Agent上下文（对外导出）
// 上下文的写作用域为Task级作用域
func CreateAgentContext(system System, agentID, workflowID, taskID string) *AgentContext {
	return &AgentContext{
		AgentID:    agentID,
		WorkflowID: workflowID,
		TaskID:     taskID,
		system:     system,
		scope:      TaskScope(workflowID, taskID),
	}
}

// Scope 返回上下文绑定的作用域名称
func (c *AgentContext) Scope() string {
	return c.scope
}

// Store 在Task作用域存储键值
func (c *AgentContext) Store(key string, value interface{}) {
	c.system.Store(key, value, c.scope)
}

// Retrieve 从Task作用域读取键值
func (c *AgentContext) Retrieve(key string) (interface{}, bool) {
	return c.system.Retrieve(key, c.scope)
}

// StoreWorkflow 在所属Workflow作用域存储键值，供下游Task共享
func (c *AgentContext) StoreWorkflow(key string, value interface{}) {
	c.system.Store(key, value, WorkflowScope(c.WorkflowID))
}

// RetrieveWorkflow 从所属Workflow作用域读取键值
// Workflow作用域可级联访问其所有Task子作用域
func (c *AgentContext) RetrieveWorkflow(key string) (interface{}, bool) {
	return c.system.Retrieve(key, WorkflowScope(c.WorkflowID))
}

// StoreGlobal 在全局作用域存储键值
func (c *AgentContext) StoreGlobal(key string, value interface{}) {
	c.system.Store(key, value, GlobalScope)
}

// RetrieveGlobal 从全局作用域读取键值
func (c *AgentContext) RetrieveGlobal(key string) (interface{}, bool) {
	return c.system.Retrieve(key, GlobalScope)
}
