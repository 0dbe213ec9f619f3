package output

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
)

// PrintJSON 输出缩进的JSON
func PrintJSON(data interface{}) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化输出失败: %w", err)
	}
	_, err = fmt.Fprintln(os.Stdout, string(raw))
	return err
}

// message 带标记和颜色的单行消息
func message(c *color.Color, marker, format string, args ...interface{}) {
	c.Printf(marker+" "+format+"\n", args...)
}

// Success 输出成功消息
func Success(format string, args ...interface{}) {
	message(color.New(color.FgGreen, color.Bold), "✅", format, args...)
}

// Error 输出错误消息
func Error(format string, args ...interface{}) {
	message(color.New(color.FgRed, color.Bold), "❌", format, args...)
}

// Info 输出信息
func Info(format string, args ...interface{}) {
	message(color.New(color.FgCyan), "ℹ️ ", format, args...)
}

// Warning 输出警告
func Warning(format string, args ...interface{}) {
	message(color.New(color.FgYellow), "⚠️ ", format, args...)
}
