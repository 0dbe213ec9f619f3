package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Table 简单表格输出，列宽在渲染时按内容一次性计算
type Table struct {
	headers []string
	rows    [][]string
}

// NewTable 创建表格
func NewTable(headers []string) *Table {
	return &Table{headers: headers}
}

// AddRow 添加行，超出表头列数的单元格被忽略
func (t *Table) AddRow(row []string) {
	if len(row) > len(t.headers) {
		row = row[:len(t.headers)]
	}
	t.rows = append(t.rows, row)
}

// Render 渲染表格到标准输出
func (t *Table) Render() {
	t.RenderTo(color.Output)
}

// RenderTo 渲染表格到指定Writer
func (t *Table) RenderTo(w io.Writer) {
	widths := t.columnWidths()
	headerColor := color.New(color.FgCyan, color.Bold)

	for i, h := range t.headers {
		headerColor.Fprintf(w, "%-*s  ", widths[i], h)
	}
	fmt.Fprintln(w)

	separators := make([]string, len(widths))
	for i, width := range widths {
		separators[i] = strings.Repeat("-", width)
	}
	fmt.Fprintln(w, strings.Join(separators, "  "))

	for _, row := range t.rows {
		for i, cell := range row {
			fmt.Fprintf(w, "%-*s  ", widths[i], cell)
		}
		fmt.Fprintln(w)
	}
}

// columnWidths 计算每列宽度：表头和所有行中的最长内容
func (t *Table) columnWidths() []int {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}
	return widths
}
