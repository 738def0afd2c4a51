// Package output provides formatted output for workflow execution.
package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// Colors for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// Stats holds execution statistics for output.
type Stats interface {
	GetOK() int
	GetChanged() int
	GetFailed() int
	GetSkipped() int
	GetDuration() time.Duration
}

// Output handles formatted output.
type Output struct {
	w        io.Writer
	useColor bool
	debug    bool
}

// New creates a new output handler.
func New(w io.Writer) *Output {
	return &Output{
		w:        w,
		useColor: true,
	}
}

// SetColor enables or disables color output.
func (o *Output) SetColor(enabled bool) {
	o.useColor = enabled
}

// SetDebug enables or disables debug output.
func (o *Output) SetDebug(enabled bool) {
	o.debug = enabled
}

// color returns the string wrapped in color codes if enabled.
func (o *Output) color(c, s string) string {
	if !o.useColor {
		return s
	}
	return c + s + colorReset
}

// WorkflowStart prints the workflow start banner.
func (o *Output) WorkflowStart(name, path, tempFolder string) {
	o.printf("\n%s %s", o.color(colorBold, "WORKFLOW"), name)
	if path != "" && path != name {
		o.printf(" %s", o.color(colorGray, "("+path+")"))
	}
	o.printf("\n")
	if o.debug {
		if tempFolder != "" {
			o.printf("%s %s\n", o.color(colorGray, "temp folder:"), tempFolder)
		}
		o.printf("%s\n", strings.Repeat("-", 60))
	}
}

// WorkflowEnd prints the workflow summary.
func (o *Output) WorkflowEnd(stats Stats) {
	o.printf("\n%s ", o.color(colorBold, "RECAP"))

	ok := o.color(colorGreen, fmt.Sprintf("ok=%d", stats.GetOK()))
	changed := o.color(colorYellow, fmt.Sprintf("changed=%d", stats.GetChanged()))
	failed := o.color(colorRed, fmt.Sprintf("failed=%d", stats.GetFailed()))
	skipped := o.color(colorCyan, fmt.Sprintf("skipped=%d", stats.GetSkipped()))

	o.printf("%s %s %s %s", ok, changed, failed, skipped)
	o.printf(" %s\n", o.color(colorGray, fmt.Sprintf("(%.2fs)", stats.GetDuration().Seconds())))
}

// TaskStart prints the task and its module in debug mode.
func (o *Output) TaskStart(name, moduleName string) {
	if !o.debug {
		return
	}
	o.printf("%s %s %s\n", o.color(colorBold, "TASK"), name, o.color(colorGray, "["+moduleName+"]"))
}

// TaskResult prints the task result in a single line.
// Format: [indicator] task name
func (o *Output) TaskResult(name, status string, message string) {
	indicator, statusColor, _ := o.status(status)

	o.printf("  %s %s\n", o.color(statusColor, indicator), name)

	// In debug mode, print additional details
	if o.debug && message != "" {
		o.printf("    %s %s\n", o.color(colorGray, "→"), message)
	}
}

// TaskResultDetailed prints the task result with its module and data.
func (o *Output) TaskResultDetailed(name, module, status, message string, data map[string]any) {
	indicator, statusColor, statusText := o.status(status)

	moduleStr := ""
	if module != "" {
		moduleStr = o.color(colorGray, fmt.Sprintf("[%s] ", module))
	}

	o.printf("  %s %s%s %s\n",
		o.color(statusColor, indicator),
		moduleStr,
		name,
		o.color(statusColor, statusText))

	if !o.debug {
		return
	}
	if message != "" {
		o.printf("      %s %s\n", o.color(colorGray, "msg:"), message)
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		o.printf("      %s %v\n", o.color(colorGray, k+":"), data[k])
	}
}

// status maps a task status onto its indicator, color, and label.
func (o *Output) status(status string) (indicator, statusColor, text string) {
	switch {
	case strings.HasPrefix(status, "ok"):
		return "✓", colorGreen, "ok"
	case strings.HasPrefix(status, "changed"):
		return "✓", colorYellow, "changed"
	case strings.HasPrefix(status, "skipped"):
		return "○", colorCyan, "skipped"
	case strings.HasPrefix(status, "failed"):
		if strings.HasSuffix(status, "(ignored)") {
			return "✗", colorRed, "FAILED (ignored)"
		}
		return "✗", colorRed, "FAILED"
	default:
		return "?", colorGray, status
	}
}

// Section prints a section header.
func (o *Output) Section(name string) {
	o.printf("\n%s\n", o.color(colorBold, name))
}

// Info prints an informational message.
func (o *Output) Info(format string, args ...any) {
	o.printf("%s %s\n", o.color(colorBlue, "INFO"), fmt.Sprintf(format, args...))
}

// Warn prints a warning message.
func (o *Output) Warn(format string, args ...any) {
	o.printf("%s %s\n", o.color(colorYellow, "WARN"), fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (o *Output) Error(format string, args ...any) {
	o.printf("%s %s\n", o.color(colorRed, "ERROR"), fmt.Sprintf(format, args...))
}

// Debug prints a debug message (only in debug mode).
func (o *Output) Debug(format string, args ...any) {
	if o.debug {
		o.printf("%s %s\n", o.color(colorGray, "DEBUG"), fmt.Sprintf(format, args...))
	}
}

func (o *Output) printf(format string, args ...any) {
	fmt.Fprintf(o.w, format, args...)
}
