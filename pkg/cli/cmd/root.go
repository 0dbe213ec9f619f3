package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// 全局变量
	serverURL  string
	outputJSON bool
)

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "orcs",
	Short: "orcs CLI - Workflow编排引擎命令行工具",
	Long: `orcs CLI 是一个用于管理Workflow编排的命令行工具。

支持的功能：
  - 管理Workflow（提交、列出、查看、执行、查看执行计划）
  - 查询历史执行报告
  - 启动HTTP API服务

使用示例：
  # 提交Workflow定义文件
  orcs workflow submit ./workflow.json

  # 列出所有Workflow
  orcs workflow list

  # 执行Workflow
  orcs workflow execute <workflow-id>

  # 查询历史
  orcs workflow history

  # 启动HTTP服务
  orcs server start --port 8080`,
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8080", "orcs服务器地址")
	rootCmd.PersistentFlags().BoolVarP(&outputJSON, "json", "j", false, "使用JSON格式输出")

	// 添加子命令
	rootCmd.AddCommand(workflowCmd)
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(versionCmd)
}
