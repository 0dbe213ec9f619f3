package agent

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/stevelan1995/orcs/pkg/core/memory"
	"github.com/stevelan1995/orcs/pkg/core/workflow"
)

// 内置Agent ID
const (
	AgentEcho       = "echo"        // 回显输入，用于测试和占位
	AgentWebExtract = "web-extract" // 抓取网页并按CSS选择器提取文本
)

// 内置web-extract的Task元数据键
const (
	MetadataKeyURL      = "url"      // 抓取地址，缺省时使用input
	MetadataKeySelector = "selector" // CSS选择器，缺省为body
)

// RegisterBuiltins 注册内置Agent（对外导出）
func RegisterBuiltins(registry *Registry) error {
	if err := registry.Register(AgentEcho, NewEchoExecutor()); err != nil {
		return err
	}
	return registry.Register(AgentWebExtract, NewWebExtractExecutor(nil))
}

// EchoExecutor 回显执行器（对外导出）
// 原样返回输入，并把结果写入Task作用域内存
type EchoExecutor struct{}

// NewEchoExecutor 创建回显执行器（对外导出）
func NewEchoExecutor() *EchoExecutor {
	return &EchoExecutor{}
}

// Execute 执行回显
func (e *EchoExecutor) Execute(ctx context.Context, t *workflow.Task, input string, agentCtx *memory.AgentContext) (interface{}, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	result := input
	if result == "" {
		result = t.Description
	}
	if agentCtx != nil {
		agentCtx.Store("result", result)
	}
	return result, nil
}

// WebExtractExecutor 网页抽取执行器（对外导出）
// 抓取url元数据指定的页面，按selector提取文本（缺省为body）
type WebExtractExecutor struct {
	client *http.Client
}

// NewWebExtractExecutor 创建网页抽取执行器（对外导出）
// client为nil时使用带30秒超时的默认客户端
func NewWebExtractExecutor(client *http.Client) *WebExtractExecutor {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &WebExtractExecutor{client: client}
}

// Execute 执行网页抽取
func (e *WebExtractExecutor) Execute(ctx context.Context, t *workflow.Task, input string, agentCtx *memory.AgentContext) (interface{}, error) {
	url, _ := t.Metadata[MetadataKeyURL].(string)
	if url == "" {
		url = strings.TrimSpace(input)
	}
	if url == "" {
		return nil, fmt.Errorf("web-extract缺少抓取地址：需要url元数据或上游输入")
	}

	selector, _ := t.Metadata[MetadataKeySelector].(string)
	if selector == "" {
		selector = "body"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("构造请求失败: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("抓取 %s 失败: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("抓取 %s 返回状态码 %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("解析 %s 的HTML失败: %w", url, err)
	}

	var parts []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text != "" {
			parts = append(parts, text)
		}
	})

	result := strings.Join(parts, "\n")
	if agentCtx != nil {
		agentCtx.Store("result", result)
		agentCtx.Store("source_url", url)
	}
	return result, nil
}
