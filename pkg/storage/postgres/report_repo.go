package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/stevelan1995/orcs/pkg/core/workflow"
	"github.com/stevelan1995/orcs/pkg/storage"
)

const defaultListLimit = 50

// ReportRepo 执行报告Repository的PostgreSQL实现（对外导出）
type ReportRepo struct {
	db *sqlx.DB
}

// NewReportRepo 基于已有连接创建Repository实例（对外导出）
func NewReportRepo(db *sqlx.DB) (*ReportRepo, error) {
	repo := &ReportRepo{db: db}
	if err := repo.initSchema(); err != nil {
		return nil, fmt.Errorf("初始化表结构失败: %w", err)
	}
	return repo, nil
}

// NewReportRepoFromDSN 通过DSN创建Repository实例（对外导出）
func NewReportRepoFromDSN(dsn string) (*ReportRepo, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return NewReportRepo(db)
}

// initSchema 初始化数据库表结构
func (r *ReportRepo) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS execution_report (
		workflow_id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		query TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMP NULL,
		completed_at TIMESTAMP NULL,
		report_json TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_execution_report_status ON execution_report(status);
	`
	if _, err := r.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// Save 归档执行报告，同WorkflowID覆盖
func (r *ReportRepo) Save(ctx context.Context, report *workflow.ExecutionReport) error {
	record, err := storage.NewReportRecord(report)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO execution_report
		(workflow_id, title, status, query, error, started_at, completed_at, report_json, created_at)
	VALUES
		(:workflow_id, :title, :status, :query, :error, :started_at, :completed_at, :report_json, :created_at)
	ON CONFLICT (workflow_id) DO UPDATE SET
		title = EXCLUDED.title,
		status = EXCLUDED.status,
		query = EXCLUDED.query,
		error = EXCLUDED.error,
		started_at = EXCLUDED.started_at,
		completed_at = EXCLUDED.completed_at,
		report_json = EXCLUDED.report_json,
		created_at = EXCLUDED.created_at
	`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("归档执行报告失败: %w", err)
	}
	return nil
}

// Get 按WorkflowID读取报告
func (r *ReportRepo) Get(ctx context.Context, workflowID string) (*workflow.ExecutionReport, error) {
	var record storage.ReportRecord
	err := r.db.GetContext(ctx, &record,
		`SELECT workflow_id, title, status, query, error, started_at, completed_at, report_json, created_at
		 FROM execution_report WHERE workflow_id = $1`, workflowID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询执行报告失败: %w", err)
	}
	return storage.DecodeReport(&record)
}

// List 按归档时间倒序列出报告概要
func (r *ReportRepo) List(ctx context.Context, limit int) ([]*storage.ReportSummary, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	var summaries []*storage.ReportSummary
	err := r.db.SelectContext(ctx, &summaries,
		`SELECT workflow_id, title, status, started_at, completed_at, created_at
		 FROM execution_report ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询报告列表失败: %w", err)
	}
	return summaries, nil
}

// Delete 删除报告归档
func (r *ReportRepo) Delete(ctx context.Context, workflowID string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM execution_report WHERE workflow_id = $1`, workflowID); err != nil {
		return fmt.Errorf("删除执行报告失败: %w", err)
	}
	return nil
}

// Close 关闭数据库连接
func (r *ReportRepo) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
