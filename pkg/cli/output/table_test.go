package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestTable_Render(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	table := NewTable([]string{"ID", "STATUS"})
	table.AddRow([]string{"wf-1", "COMPLETED"})
	table.AddRow([]string{"workflow-long-id", "FAILED"})

	var buf bytes.Buffer
	table.RenderTo(&buf)
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")

	if len(lines) != 4 {
		t.Fatalf("应输出表头+分隔线+2行数据, 实际 %d 行: %q", len(lines), lines)
	}
	if !strings.HasPrefix(lines[0], "ID ") || !strings.Contains(lines[0], "STATUS") {
		t.Errorf("表头行错误: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], strings.Repeat("-", len("workflow-long-id"))) {
		t.Errorf("分隔线应按最宽单元格对齐: %q", lines[1])
	}
	// 短单元格按列宽补齐
	if !strings.HasPrefix(lines[2], "wf-1             ") {
		t.Errorf("数据行应按列宽左对齐: %q", lines[2])
	}
}

func TestTable_AddRowIgnoresExtraCells(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	table := NewTable([]string{"ID"})
	table.AddRow([]string{"a", "多余的列"})

	var buf bytes.Buffer
	table.RenderTo(&buf)
	if strings.Contains(buf.String(), "多余的列") {
		t.Errorf("超出表头的单元格应被忽略: %q", buf.String())
	}
}
