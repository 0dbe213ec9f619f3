package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevelan1995/orcs/pkg/api/dto"
	"github.com/stevelan1995/orcs/pkg/core/agent"
	"github.com/stevelan1995/orcs/pkg/core/engine"
	"github.com/stevelan1995/orcs/pkg/core/memory"
	"github.com/stevelan1995/orcs/pkg/core/workflow"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) (*gin.Engine, *engine.Engine) {
	t.Helper()
	registry := agent.NewRegistry()
	require.NoError(t, agent.RegisterBuiltins(registry))
	eng, err := engine.NewEngine(registry, memory.NewBasicSystem())
	require.NoError(t, err)
	return SetupRouter(eng, nil, "test"), eng
}

func submitBody(t *testing.T) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"title": "测试工作流",
		"query": "查询",
		"tasks": []map[string]interface{}{
			{"title": "第一步", "description": "准备", "agent_id": "echo"},
			{"title": "第二步", "description": "汇总", "agent_id": "echo", "dependencies": []int{0}},
		},
	})
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	req, _ := http.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.APIResponse[map[string]interface{}]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Code)
	assert.Equal(t, "ok", resp.Data["status"])
	assert.Equal(t, "test", resp.Data["version"])
}

func TestSubmitWorkflow(t *testing.T) {
	router, _ := newTestRouter(t)

	req, _ := http.NewRequest("POST", "/api/v1/workflows", submitBody(t))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp dto.APIResponse[dto.SubmitResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Data.WorkflowID)
	assert.Equal(t, string(workflow.StatusReady), resp.Data.Status)
}

func TestSubmitWorkflow_InvalidBody(t *testing.T) {
	router, _ := newTestRouter(t)

	req, _ := http.NewRequest("POST", "/api/v1/workflows", bytes.NewBufferString(`{"title":""}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitWorkflow_CycleRejected(t *testing.T) {
	router, _ := newTestRouter(t)

	body, err := json.Marshal(map[string]interface{}{
		"title": "循环",
		"tasks": []map[string]interface{}{
			{"id": "a", "title": "A", "agent_id": "echo", "dependencies": []string{"b"}},
			{"id": "b", "title": "B", "agent_id": "echo", "dependencies": []string{"a"}},
		},
	})
	require.NoError(t, err)

	req, _ := http.NewRequest("POST", "/api/v1/workflows", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp dto.APIResponse[dto.SubmitResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(workflow.StatusFailed), resp.Data.Status)
}

func TestGetWorkflowReport(t *testing.T) {
	router, eng := newTestRouter(t)

	req, _ := http.NewRequest("POST", "/api/v1/workflows", submitBody(t))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var created dto.APIResponse[dto.SubmitResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	id := created.Data.WorkflowID

	req, _ = http.NewRequest("GET", "/api/v1/workflows/"+id, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.APIResponse[workflow.ExecutionReport]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.Data.WorkflowID)
	assert.Len(t, resp.Data.Tasks, 2)
	_ = eng
}

func TestGetWorkflowReport_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	req, _ := http.NewRequest("GET", "/api/v1/workflows/ghost", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExecuteWorkflow(t *testing.T) {
	router, eng := newTestRouter(t)

	req, _ := http.NewRequest("POST", "/api/v1/workflows", submitBody(t))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var created dto.APIResponse[dto.SubmitResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	id := created.Data.WorkflowID

	req, _ = http.NewRequest("POST", "/api/v1/workflows/"+id+"/execute", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)

	// 轮询等待异步执行结束
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		report, err := eng.Report(id)
		require.NoError(t, err)
		if report.Status == string(workflow.StatusCompleted) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("等待Workflow完成超时")
}

func TestExecutionPlanEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	req, _ := http.NewRequest("POST", "/api/v1/workflows", submitBody(t))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var created dto.APIResponse[dto.SubmitResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	req, _ = http.NewRequest("GET", "/api/v1/workflows/"+created.Data.WorkflowID+"/plan", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.APIResponse[dto.PlanResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Levels, 2)
}

func TestHistoryWithoutStorage(t *testing.T) {
	router, _ := newTestRouter(t)

	req, _ := http.NewRequest("GET", "/api/v1/history", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	// 未配置归档存储
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
