package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stevelan1995/orcs/pkg/core/workflow"
)

// ErrReportNotFound 报告不存在（对外导出）
var ErrReportNotFound = fmt.Errorf("执行报告不存在")

// ReportSummary 执行报告概要（对外导出），用于历史列表展示
type ReportSummary struct {
	WorkflowID  string     `db:"workflow_id" json:"workflowId"`
	Title       string     `db:"title" json:"title"`
	Status      string     `db:"status" json:"status"`
	StartedAt   *time.Time `db:"started_at" json:"startedAt,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completedAt,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
}

// ReportRecord 执行报告存储行（对外导出）
// 报告全文以JSON存储，概要字段冗余为独立列便于查询
type ReportRecord struct {
	WorkflowID  string     `db:"workflow_id"`
	Title       string     `db:"title"`
	Status      string     `db:"status"`
	Query       string     `db:"query"`
	Error       string     `db:"error"`
	StartedAt   *time.Time `db:"started_at"`
	CompletedAt *time.Time `db:"completed_at"`
	ReportJSON  string     `db:"report_json"`
	CreatedAt   time.Time  `db:"created_at"`
}

// ReportRepository 执行报告归档接口（对外导出）
// 调度器本身不依赖持久化：Workflow与Task是内存实体，
// 这里只负责终态报告的归档与历史查询
type ReportRepository interface {
	// Save 归档一份执行报告（同WorkflowID覆盖）
	Save(ctx context.Context, report *workflow.ExecutionReport) error
	// Get 按WorkflowID读取报告，不存在时返回ErrReportNotFound
	Get(ctx context.Context, workflowID string) (*workflow.ExecutionReport, error)
	// List 按归档时间倒序列出报告概要，limit<=0时使用默认上限
	List(ctx context.Context, limit int) ([]*ReportSummary, error)
	// Delete 删除报告归档
	Delete(ctx context.Context, workflowID string) error
	// Close 关闭底层连接
	Close() error
}

// NewReportRecord 把执行报告转换为存储行（对外导出）
func NewReportRecord(report *workflow.ExecutionReport) (*ReportRecord, error) {
	payload, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("序列化执行报告失败: %w", err)
	}
	return &ReportRecord{
		WorkflowID:  report.WorkflowID,
		Title:       report.Title,
		Status:      report.Status,
		Query:       report.Query,
		Error:       report.Error,
		StartedAt:   report.StartedAt,
		CompletedAt: report.CompletedAt,
		ReportJSON:  string(payload),
		CreatedAt:   time.Now(),
	}, nil
}

// DecodeReport 把存储行还原为执行报告（对外导出）
func DecodeReport(record *ReportRecord) (*workflow.ExecutionReport, error) {
	var report workflow.ExecutionReport
	if err := json.Unmarshal([]byte(record.ReportJSON), &report); err != nil {
		return nil, fmt.Errorf("反序列化执行报告失败: %w", err)
	}
	return &report, nil
}
