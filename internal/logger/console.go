// Package logger provides logging for agentd task execution.
//
// Loggers report step-level progress, approval gates, fallbacks, and run
// summaries. Implementations are thread-safe and support level filtering.
// Color output is enabled automatically when writing to a terminal.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/harrison/agentd/internal/models"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// ConsoleLogger logs execution progress to a writer with [HH:MM:SS]
// timestamps. Valid levels: trace, debug, info, warn, error; empty or
// invalid levels default to "info".
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided
// io.Writer. If writer is nil, messages are silently discarded.
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// isTerminal reports whether the writer is a TTY that supports colors.
func isTerminal(w io.Writer) bool {
	if w == nil {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// normalizeLogLevel lowercases and validates a log level string,
// defaulting to "info".
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if validLevels[normalized] {
		return normalized
	}

	return "info"
}

func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

// LogTrace logs a trace-level message (most verbose).
func (cl *ConsoleLogger) LogTrace(message string) {
	cl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) {
	cl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) {
	cl.logWithLevel("ERROR", message)
}

func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil {
		return
	}
	if !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	var formatted string
	if cl.colorOutput {
		formatted = fmt.Sprintf("[%s] [%s] %s\n", ts, colorLevel(level), message)
	} else {
		formatted = fmt.Sprintf("[%s] [%s] %s\n", ts, level, message)
	}

	cl.writer.Write([]byte(formatted))
}

func colorLevel(level string) string {
	switch strings.ToUpper(level) {
	case "TRACE":
		return color.New(color.FgHiBlack).Sprint(level)
	case "DEBUG":
		return color.New(color.FgCyan).Sprint(level)
	case "INFO":
		return color.New(color.FgBlue).Sprint(level)
	case "WARN":
		return color.New(color.FgYellow).Sprint(level)
	case "ERROR":
		return color.New(color.FgRed).Sprint(level)
	default:
		return level
	}
}

// LogTaskStart logs the start of a task run at INFO level.
// Format: "[HH:MM:SS] Starting task <id>: <goal> (<n> steps)"
func (cl *ConsoleLogger) LogTaskStart(task *models.Task) {
	if cl.writer == nil || task == nil {
		return
	}
	if !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	goal := task.Goal
	if cl.colorOutput {
		goal = color.New(color.Bold).Sprint(goal)
	}
	fmt.Fprintf(cl.writer, "[%s] Starting task %s: %s (%d steps)\n", ts, task.ID, goal, len(task.Steps))
}

// LogStepResult logs the outcome of a single step at DEBUG level.
// Format: "[HH:MM:SS] Step <title> [<action>]: <status>"
func (cl *ConsoleLogger) LogStepResult(step *models.Step) {
	if cl.writer == nil || step == nil {
		return
	}
	if !cl.shouldLog("debug") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	status := string(step.Status)
	if cl.colorOutput {
		switch step.Status {
		case models.StepCompleted:
			status = color.New(color.FgGreen).Sprint(status)
		case models.StepFailed:
			status = color.New(color.FgRed).Sprint(status)
		case models.StepSkipped:
			status = color.New(color.FgYellow).Sprint(status)
		}
	}

	suffix := ""
	if step.Result != nil {
		if step.Result.UsedFallback {
			suffix = " (via fallback)"
		} else if step.Result.SelfCorrected {
			suffix = " (self-corrected)"
		}
	}
	fmt.Fprintf(cl.writer, "[%s] Step %s [%s]: %s%s\n", ts, step.Title, step.Action.Type, status, suffix)
}

// LogApproval logs an approval request and its outcome at INFO level.
func (cl *ConsoleLogger) LogApproval(req models.ApprovalRequest, approved bool) {
	if cl.writer == nil {
		return
	}
	if !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	verdict := "approved"
	if !approved {
		verdict = "rejected"
	}
	if cl.colorOutput {
		if approved {
			verdict = color.New(color.FgGreen).Sprint(verdict)
		} else {
			verdict = color.New(color.FgRed).Sprint(verdict)
		}
	}
	fmt.Fprintf(cl.writer, "[%s] Approval for step %s (%s risk): %s\n",
		timestamp(), req.StepID, req.RiskLevel, verdict)
}

// LogSummary logs the run summary at INFO level.
func (cl *ConsoleLogger) LogSummary(result models.TaskResult) {
	if cl.writer == nil || result.Task == nil {
		return
	}
	if !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	durationStr := formatDuration(result.Duration)

	var output string
	if cl.colorOutput {
		header := color.New(color.Bold).Sprint("=== Task Summary ===")
		output = fmt.Sprintf("[%s] %s\n", ts, header)
		output += fmt.Sprintf("[%s] Task %s: %s\n", ts, result.Task.ID, coloredTaskStatus(result.Task.Status))
		output += fmt.Sprintf("[%s] %s\n", ts, color.New(color.FgGreen).Sprintf("Completed: %d", result.Completed))
		if result.Failed > 0 {
			output += fmt.Sprintf("[%s] %s\n", ts, color.New(color.FgRed).Sprintf("Failed: %d", result.Failed))
		} else {
			output += fmt.Sprintf("[%s] Failed: %d\n", ts, result.Failed)
		}
	} else {
		output = fmt.Sprintf("[%s] === Task Summary ===\n", ts)
		output += fmt.Sprintf("[%s] Task %s: %s\n", ts, result.Task.ID, result.Task.Status)
		output += fmt.Sprintf("[%s] Completed: %d\n", ts, result.Completed)
		output += fmt.Sprintf("[%s] Failed: %d\n", ts, result.Failed)
	}
	output += fmt.Sprintf("[%s] Skipped: %d\n", ts, result.Skipped)
	if result.FallbacksUsed > 0 {
		output += fmt.Sprintf("[%s] Fallbacks used: %d\n", ts, result.FallbacksUsed)
	}
	if result.RolledBack > 0 {
		output += fmt.Sprintf("[%s] Rolled back: %d\n", ts, result.RolledBack)
	}
	output += fmt.Sprintf("[%s] Duration: %s\n", ts, durationStr)

	cl.writer.Write([]byte(output))
}

func coloredTaskStatus(status models.TaskStatus) string {
	switch status {
	case models.TaskCompleted:
		return color.New(color.FgGreen).Sprint(status)
	case models.TaskFailed, models.TaskCancelled:
		return color.New(color.FgRed).Sprint(status)
	default:
		return string(status)
	}
}

// LogProgress logs step completion progress for a task.
// Format: "[HH:MM:SS] Progress: [=====     ] 50% (4/8 steps)"
func (cl *ConsoleLogger) LogProgress(task *models.Task) {
	if cl.writer == nil || task == nil {
		return
	}
	if !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	completed := 0
	for _, step := range task.Steps {
		if step.Status == models.StepCompleted {
			completed++
		}
	}
	total := len(task.Steps)

	pb := NewProgressBar(total, 10, cl.colorOutput)
	pb.Update(completed)

	fmt.Fprintf(cl.writer, "[%s] Progress: %s (%d/%d steps)\n", timestamp(), pb.Render(), completed, total)
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}

// formatDuration converts a time.Duration to a human-readable string.
// Examples: "5s", "1m30s", "2h15m"
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		hours := d / time.Hour
		remainder := d % time.Hour
		if remainder == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		minutes := remainder / time.Minute
		remainder = remainder % time.Minute
		if remainder == 0 {
			return fmt.Sprintf("%dh%dm", hours, minutes)
		}
		seconds := remainder / time.Second
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	case d >= time.Minute:
		minutes := d / time.Minute
		remainder := d % time.Minute
		if remainder == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		seconds := remainder / time.Second
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", int64(d.Seconds()))
	}
}

// NoOpLogger discards all log messages. Useful for testing or when
// logging is disabled.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) LogTrace(message string) {}
func (n *NoOpLogger) LogDebug(message string) {}
func (n *NoOpLogger) LogInfo(message string)  {}
func (n *NoOpLogger) LogWarn(message string)  {}
func (n *NoOpLogger) LogError(message string) {}

// LogTaskStart is a no-op implementation.
func (n *NoOpLogger) LogTaskStart(task *models.Task) {}

// LogStepResult is a no-op implementation.
func (n *NoOpLogger) LogStepResult(step *models.Step) {}

// LogApproval is a no-op implementation.
func (n *NoOpLogger) LogApproval(req models.ApprovalRequest, approved bool) {}

// LogSummary is a no-op implementation.
func (n *NoOpLogger) LogSummary(result models.TaskResult) {}
