package output

import (
	"encoding/json"
	"io"

	"github.com/fatih/color"
)

// PrintJSON 输出JSON格式
func PrintJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// Success 输出成功消息
func Success(w io.Writer, format string, args ...interface{}) {
	green := color.New(color.FgGreen, color.Bold)
	_, _ = green.Fprintf(w, "✅ "+format+"\n", args...)
}

// Error 输出错误消息
func Error(w io.Writer, format string, args ...interface{}) {
	red := color.New(color.FgRed, color.Bold)
	_, _ = red.Fprintf(w, "❌ "+format+"\n", args...)
}

// Info 输出信息
func Info(w io.Writer, format string, args ...interface{}) {
	cyan := color.New(color.FgCyan)
	_, _ = cyan.Fprintf(w, "ℹ️  "+format+"\n", args...)
}

// Warning 输出警告
func Warning(w io.Writer, format string, args ...interface{}) {
	yellow := color.New(color.FgYellow)
	_, _ = yellow.Fprintf(w, "⚠️  "+format+"\n", args...)
}
