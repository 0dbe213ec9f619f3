// Package factory 按配置的数据库类型构造报告Repository。
// 独立于storage包存在是为了避免方言子包与接口包的循环引用。
package factory

import (
	"fmt"

	"github.com/stevelan1995/orcs/pkg/storage"
	"github.com/stevelan1995/orcs/pkg/storage/mysql"
	"github.com/stevelan1995/orcs/pkg/storage/postgres"
	"github.com/stevelan1995/orcs/pkg/storage/sqlite"
)

// 支持的数据库类型
const (
	TypeSQLite   = "sqlite"
	TypeMySQL    = "mysql"
	TypePostgres = "postgres"
)

// Open 按数据库类型与DSN创建报告Repository（对外导出）
func Open(dbType, dsn string) (storage.ReportRepository, error) {
	switch dbType {
	case TypeSQLite:
		return sqlite.NewReportRepoFromDSN(dsn)
	case TypeMySQL:
		return mysql.NewReportRepoFromDSN(dsn)
	case TypePostgres:
		return postgres.NewReportRepoFromDSN(dsn)
	default:
		return nil, fmt.Errorf("不支持的数据库类型: %s", dbType)
	}
}
