package memory

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

// GlobalScope 全局作用域，所有请求方均可读取（对外导出）
const GlobalScope = "global"

// WorkflowScope 构造Workflow级作用域名称（对外导出）
func WorkflowScope(workflowID string) string {
	return "workflow:" + workflowID
}

// TaskScope 构造Task级作用域名称（对外导出）
// Task作用域是其所属Workflow作用域的子作用域
func TaskScope(workflowID, taskID string) string {
	return WorkflowScope(workflowID) + ":task:" + taskID
}

// System 分层作用域内存系统接口（对外导出）
// 执行期Agent通过该接口在作用域间共享中间数据
type System interface {
	// Store 在指定作用域存储键值
	Store(key string, value interface{}, scope string)
	// Retrieve 从指定作用域读取，找不到时沿可访问的子作用域查找
	Retrieve(key string, scope string) (interface{}, bool)
	// Delete 删除指定作用域下的键，返回是否删除了数据
	Delete(key string, scope string) bool
	// ListKeys 列出作用域下匹配glob模式的键（升序排列）
	ListKeys(pattern string, scope string) []string
	// HasAccess 判断requestingScope是否有权访问targetScope的数据
	HasAccess(requestingScope, targetScope string) bool
}

// BasicSystem 基于内存map的System实现（对外导出）
// 访问规则：
//   - global作用域对所有请求方可读
//   - 作用域可访问自身数据
//   - 父作用域可访问子作用域数据（workflow:123 可访问 workflow:123:task:456）
type BasicSystem struct {
	mu   sync.RWMutex
	data map[string]map[string]interface{} // scope -> key -> value
}

// NewBasicSystem 创建内存System（对外导出）
func NewBasicSystem() *BasicSystem {
	return &BasicSystem{
		data: make(map[string]map[string]interface{}),
	}
}

// Store 在指定作用域存储键值
func (s *BasicSystem) Store(key string, value interface{}, scope string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data[scope] == nil {
		s.data[scope] = make(map[string]interface{})
	}
	s.data[scope][key] = value
}

// Retrieve 从指定作用域读取键值
// 本作用域未命中且非global时，按作用域名升序查找可访问的子作用域
func (s *BasicSystem) Retrieve(key string, scope string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if kv, ok := s.data[scope]; ok {
		if v, ok := kv[key]; ok {
			return v, true
		}
	}

	if scope == GlobalScope {
		return nil, false
	}

	// 子作用域查找按升序遍历，保证结果确定
	scopes := make([]string, 0, len(s.data))
	for dataScope := range s.data {
		scopes = append(scopes, dataScope)
	}
	sort.Strings(scopes)

	for _, dataScope := range scopes {
		if dataScope == scope || !s.HasAccess(scope, dataScope) {
			continue
		}
		if v, ok := s.data[dataScope][key]; ok {
			return v, true
		}
	}
	return nil, false
}

// Delete 删除指定作用域下的键
func (s *BasicSystem) Delete(key string, scope string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	kv, ok := s.data[scope]
	if !ok {
		return false
	}
	if _, ok := kv[key]; !ok {
		return false
	}
	delete(kv, key)
	return true
}

// ListKeys 列出作用域下匹配glob模式的键
// 模式仅支持 * 通配符，返回结果按升序排列
func (s *BasicSystem) ListKeys(pattern string, scope string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	kv, ok := s.data[scope]
	if !ok {
		return nil
	}

	var keys []string
	if pattern == "*" || pattern == "" {
		for k := range kv {
			keys = append(keys, k)
		}
	} else {
		regex := regexp.MustCompile("^" + strings.ReplaceAll(regexp.QuoteMeta(pattern), `\*`, ".*") + "$")
		for k := range kv {
			if regex.MatchString(k) {
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

// HasAccess 判断作用域访问权限
func (s *BasicSystem) HasAccess(requestingScope, targetScope string) bool {
	if targetScope == GlobalScope {
		return true
	}
	if requestingScope == targetScope {
		return true
	}
	// 父作用域可访问子作用域
	return strings.HasPrefix(targetScope, requestingScope+":")
}
