package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/stevelan1995/orcs/pkg/api/dto"
	"github.com/stevelan1995/orcs/pkg/cli/client"
	"github.com/stevelan1995/orcs/pkg/cli/output"
)

var historyLimit int

// workflowCmd workflow子命令
var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Workflow管理命令",
	Long:  `管理Workflow，包括提交、列出、查看、执行和查询历史。`,
}

// workflowListCmd 列出Workflow
var workflowListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出所有Workflow",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(serverURL)
		result, err := c.ListWorkflows()
		if err != nil {
			output.Error("查询失败: %v", err)
			return err
		}

		if outputJSON {
			return output.PrintJSON(result)
		}

		if len(result.Items) == 0 {
			output.Info("暂无Workflow")
			return nil
		}

		table := output.NewTable([]string{"ID", "TITLE", "TASKS", "STATUS", "STARTED"})
		for _, wf := range result.Items {
			started := "-"
			if wf.StartedAt != nil {
				started = wf.StartedAt.Format("2006-01-02 15:04:05")
			}
			table.AddRow([]string{
				wf.ID,
				wf.Title,
				fmt.Sprintf("%d", wf.TaskCount),
				wf.Status,
				started,
			})
		}
		table.Render()
		return nil
	},
}

// workflowShowCmd 查看Workflow执行报告
var workflowShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "查看Workflow执行报告",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(serverURL)
		report, err := c.GetReport(args[0])
		if err != nil {
			output.Error("查询失败: %v", err)
			return err
		}

		if outputJSON {
			return output.PrintJSON(report)
		}

		fmt.Printf("Workflow: %s\n", report.Title)
		fmt.Printf("ID:       %s\n", report.WorkflowID)
		fmt.Printf("状态:     %s\n", report.Status)
		if report.Query != "" {
			fmt.Printf("查询:     %s\n", report.Query)
		}
		if report.Error != "" {
			fmt.Printf("错误:     %s\n", report.Error)
		}
		fmt.Println("\nTasks:")
		for _, id := range report.TaskOrder {
			t := report.Tasks[id]
			line := fmt.Sprintf("  - [%s] %s (%s)", t.Status, t.Title, t.AgentID)
			if t.Error != nil {
				line += fmt.Sprintf(" 错误: %s", t.Error.Message)
			}
			fmt.Println(line)
		}
		return nil
	},
}

// workflowSubmitCmd 提交Workflow定义文件
var workflowSubmitCmd = &cobra.Command{
	Use:   "submit <file>",
	Short: "提交Workflow定义文件",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := os.ReadFile(args[0])
		if err != nil {
			output.Error("读取文件失败: %v", err)
			return err
		}

		var req dto.SubmitWorkflowRequest
		if err := json.Unmarshal(content, &req); err != nil {
			output.Error("解析定义文件失败: %v", err)
			return err
		}

		c := client.New(serverURL)
		result, err := c.SubmitWorkflow(req)
		if err != nil {
			if result != nil && result.WorkflowID != "" {
				output.Error("提交被拒绝 (%s): %v", result.WorkflowID, err)
			} else {
				output.Error("提交失败: %v", err)
			}
			return err
		}

		if outputJSON {
			return output.PrintJSON(result)
		}

		output.Success("Workflow提交成功: %s (%s)", result.WorkflowID, result.Status)
		return nil
	},
}

// workflowExecuteCmd 执行Workflow
var workflowExecuteCmd = &cobra.Command{
	Use:   "execute <id>",
	Short: "执行Workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(serverURL)
		result, err := c.ExecuteWorkflow(args[0])
		if err != nil {
			output.Error("执行失败: %v", err)
			return err
		}

		if outputJSON {
			return output.PrintJSON(result)
		}

		output.Success("Workflow已提交执行")
		fmt.Printf("Workflow ID: %s\n", result.WorkflowID)
		return nil
	},
}

// workflowPlanCmd 查看拓扑执行计划
var workflowPlanCmd = &cobra.Command{
	Use:   "plan <id>",
	Short: "查看Workflow拓扑执行计划",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(serverURL)
		result, err := c.GetPlan(args[0])
		if err != nil {
			output.Error("查询失败: %v", err)
			return err
		}

		if outputJSON {
			return output.PrintJSON(result)
		}

		fmt.Printf("Workflow: %s\n", result.WorkflowID)
		for i, level := range result.Levels {
			fmt.Printf("  层 %d: %s\n", i+1, strings.Join(level, ", "))
		}
		return nil
	},
}

// workflowHistoryCmd 查询历史执行报告
var workflowHistoryCmd = &cobra.Command{
	Use:   "history [id]",
	Short: "查询历史执行报告",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(serverURL)

		if len(args) == 1 {
			report, err := c.HistoryReport(args[0])
			if err != nil {
				output.Error("查询失败: %v", err)
				return err
			}
			return output.PrintJSON(report)
		}

		result, err := c.History(historyLimit)
		if err != nil {
			output.Error("查询失败: %v", err)
			return err
		}

		if outputJSON {
			return output.PrintJSON(result)
		}

		if len(result.Items) == 0 {
			output.Info("暂无历史记录")
			return nil
		}

		table := output.NewTable([]string{"ID", "TITLE", "STATUS", "COMPLETED"})
		for _, s := range result.Items {
			completed := "-"
			if s.CompletedAt != nil {
				completed = s.CompletedAt.Format("2006-01-02 15:04:05")
			}
			table.AddRow([]string{s.WorkflowID, s.Title, s.Status, completed})
		}
		table.Render()
		return nil
	},
}

func init() {
	workflowHistoryCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "返回条数上限")

	workflowCmd.AddCommand(workflowListCmd)
	workflowCmd.AddCommand(workflowShowCmd)
	workflowCmd.AddCommand(workflowSubmitCmd)
	workflowCmd.AddCommand(workflowExecuteCmd)
	workflowCmd.AddCommand(workflowPlanCmd)
	workflowCmd.AddCommand(workflowHistoryCmd)
}
