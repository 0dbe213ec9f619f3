// Package client orcs HTTP API客户端。
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/stevelan1995/orcs/pkg/api/dto"
	"github.com/stevelan1995/orcs/pkg/core/workflow"
	"github.com/stevelan1995/orcs/pkg/storage"
)

// Client orcs HTTP API客户端
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New 创建客户端
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SubmitWorkflow 提交Workflow
func (c *Client) SubmitWorkflow(req dto.SubmitWorkflowRequest) (*dto.SubmitResponse, error) {
	var resp dto.APIResponse[dto.SubmitResponse]
	if err := c.post("/api/v1/workflows", req, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return &resp.Data, fmt.Errorf("%s", resp.Message)
	}
	return &resp.Data, nil
}

// ListWorkflows 列出所有Workflow
func (c *Client) ListWorkflows() (*dto.ListResponse[dto.WorkflowSummary], error) {
	var resp dto.APIResponse[dto.ListResponse[dto.WorkflowSummary]]
	if err := c.get("/api/v1/workflows", &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("%s", resp.Message)
	}
	return &resp.Data, nil
}

// GetReport 获取Workflow执行报告
func (c *Client) GetReport(id string) (*workflow.ExecutionReport, error) {
	var resp dto.APIResponse[workflow.ExecutionReport]
	if err := c.get("/api/v1/workflows/"+id, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("%s", resp.Message)
	}
	return &resp.Data, nil
}

// ExecuteWorkflow 启动Workflow执行
func (c *Client) ExecuteWorkflow(id string) (*dto.ExecuteResponse, error) {
	var resp dto.APIResponse[dto.ExecuteResponse]
	if err := c.post("/api/v1/workflows/"+id+"/execute", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("%s", resp.Message)
	}
	return &resp.Data, nil
}

// GetPlan 查询拓扑分层执行计划
func (c *Client) GetPlan(id string) (*dto.PlanResponse, error) {
	var resp dto.APIResponse[dto.PlanResponse]
	if err := c.get("/api/v1/workflows/"+id+"/plan", &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("%s", resp.Message)
	}
	return &resp.Data, nil
}

// History 查询历史报告概要
func (c *Client) History(limit int) (*dto.ListResponse[*storage.ReportSummary], error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}
	path := "/api/v1/history"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var resp dto.APIResponse[dto.ListResponse[*storage.ReportSummary]]
	if err := c.get(path, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("%s", resp.Message)
	}
	return &resp.Data, nil
}

// HistoryReport 获取历史执行报告详情
func (c *Client) HistoryReport(id string) (*workflow.ExecutionReport, error) {
	var resp dto.APIResponse[workflow.ExecutionReport]
	if err := c.get("/api/v1/history/"+id, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("%s", resp.Message)
	}
	return &resp.Data, nil
}

func (c *Client) get(path string, result interface{}) error {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	return c.parseResponse(resp, result)
}

func (c *Client) post(path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("序列化请求体失败: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	resp, err := c.httpClient.Post(c.baseURL+path, "application/json", reqBody)
	if err != nil {
		return fmt.Errorf("HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	return c.parseResponse(resp, result)
}

func (c *Client) parseResponse(resp *http.Response, result interface{}) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应体失败: %w", err)
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("解析响应失败: %w, body: %s", err, string(body))
	}

	return nil
}
