package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harrison/agentd/internal/models"
)

// FileLogger logs run events to timestamped files under a log directory.
// It creates a run-YYYYMMDD-HHMMSS.log per run, writes per-task detail
// files under tasks/, and maintains a latest.log symlink. Thread-safe.
type FileLogger struct {
	logDir   string
	runLog   *os.File
	runFile  string
	tasksDir string
	logLevel string
	mu       sync.Mutex
}

// NewFileLogger creates a FileLogger writing to the given directory with
// the given level. The directory is created if needed.
func NewFileLogger(logDir string, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	tasksDir := filepath.Join(logDir, "tasks")
	if err := os.MkdirAll(tasksDir, 0755); err != nil {
		return nil, fmt.Errorf("create tasks directory: %w", err)
	}

	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", time.Now().Format("20060102-150405")))
	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("create latest.log symlink: %w", err)
	}

	fl := &FileLogger{
		logDir:   logDir,
		runLog:   file,
		runFile:  runFile,
		tasksDir: tasksDir,
		logLevel: normalizeLogLevel(logLevel),
	}

	fl.writeRunLog("=== agentd Run Log ===\n")
	fl.writeRunLog(fmt.Sprintf("Started at: %s\n\n", time.Now().Format(time.RFC3339)))

	return fl, nil
}

// RunFile returns the path of this run's log file.
func (fl *FileLogger) RunFile() string {
	return fl.runFile
}

func (fl *FileLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(fl.logLevel)
}

// LogTrace logs a trace-level message (most verbose).
func (fl *FileLogger) LogTrace(message string) {
	fl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (fl *FileLogger) LogDebug(message string) {
	fl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (fl *FileLogger) LogInfo(message string) {
	fl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (fl *FileLogger) LogWarn(message string) {
	fl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (fl *FileLogger) LogError(message string) {
	fl.logWithLevel("ERROR", message)
}

func (fl *FileLogger) logWithLevel(level string, message string) {
	if !fl.shouldLog(strings.ToLower(level)) {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] [%s] %s\n", time.Now().Format("15:04:05"), level, message))
}

// LogTaskStart logs the start of a task run at INFO level.
func (fl *FileLogger) LogTaskStart(task *models.Task) {
	if task == nil || !fl.shouldLog("info") {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] Starting task %s: %s (%d steps)\n",
		time.Now().Format("15:04:05"), task.ID, task.Goal, len(task.Steps)))
}

// LogStepResult logs a step outcome to the run log at DEBUG level.
func (fl *FileLogger) LogStepResult(step *models.Step) {
	if step == nil || !fl.shouldLog("debug") {
		return
	}
	line := fmt.Sprintf("[%s] Step %s [%s]: %s",
		time.Now().Format("15:04:05"), step.Title, step.Action.Type, step.Status)
	if step.Result != nil {
		if step.Result.UsedFallback {
			line += " (via fallback)"
		}
		if step.Result.SelfCorrected {
			line += " (self-corrected)"
		}
		if step.Result.Error != "" {
			line += fmt.Sprintf(" error=%q", step.Result.Error)
		}
	}
	fl.writeRunLog(line + "\n")
}

// LogApproval logs an approval decision at INFO level.
func (fl *FileLogger) LogApproval(req models.ApprovalRequest, approved bool) {
	if !fl.shouldLog("info") {
		return
	}
	verdict := "approved"
	if !approved {
		verdict = "rejected"
	}
	fl.writeRunLog(fmt.Sprintf("[%s] Approval for step %s (%s risk): %s\n",
		time.Now().Format("15:04:05"), req.StepID, req.RiskLevel, verdict))
}

// LogSummary logs the run summary at INFO level and writes a per-task
// detail file under tasks/.
func (fl *FileLogger) LogSummary(result models.TaskResult) {
	if result.Task == nil {
		return
	}

	if fl.shouldLog("info") {
		ts := time.Now().Format("15:04:05")
		message := fmt.Sprintf(
			"\n[%s] === TASK SUMMARY ===\n"+
				"[%s] Task:          %s\n"+
				"[%s] Status:        %s\n"+
				"[%s] Completed:     %d\n"+
				"[%s] Failed:        %d\n"+
				"[%s] Skipped:       %d\n"+
				"[%s] Fallbacks:     %d\n"+
				"[%s] Rolled back:   %d\n"+
				"[%s] Duration:      %.1fs\n",
			ts,
			ts, result.Task.ID,
			ts, result.Task.Status,
			ts, result.Completed,
			ts, result.Failed,
			ts, result.Skipped,
			ts, result.FallbacksUsed,
			ts, result.RolledBack,
			ts, result.Duration.Seconds(),
		)
		fl.writeRunLog(message)
	}

	if err := fl.writeTaskDetail(result); err != nil {
		fl.LogWarn(fmt.Sprintf("write task detail log: %v", err))
	}
}

// writeTaskDetail writes a full per-step report for one task.
func (fl *FileLogger) writeTaskDetail(result models.TaskResult) error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	path := filepath.Join(fl.tasksDir, fmt.Sprintf("task-%s.log", result.Task.ID))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create task log file: %w", err)
	}
	defer file.Close()

	var b strings.Builder
	fmt.Fprintf(&b, "=== Task %s ===\n", result.Task.ID)
	fmt.Fprintf(&b, "Goal: %s\n", result.Task.Goal)
	fmt.Fprintf(&b, "Status: %s\n", result.Task.Status)
	fmt.Fprintf(&b, "Duration: %.1fs\n\n", result.Duration.Seconds())

	for i, step := range result.Task.Steps {
		fmt.Fprintf(&b, "#### Step %d: %s [%s] - %s\n", i+1, step.Title, step.Action.Type, step.Status)
		fmt.Fprintf(&b, "Confidence: %d (%s risk)\n", step.Confidence, step.Risk)
		if step.SkipReason != "" {
			fmt.Fprintf(&b, "Skip reason: %s\n", step.SkipReason)
		}
		if r := step.Result; r != nil {
			fmt.Fprintf(&b, "Attempts: %d\n", r.Attempts)
			if r.UsedFallback {
				fmt.Fprintf(&b, "Fallback used: %s\n", r.FallbackID)
			}
			if r.SelfCorrected {
				b.WriteString("Self-corrected: yes\n")
			}
			if r.RolledBack {
				b.WriteString("Rolled back: yes\n")
				if r.RollbackError != "" {
					fmt.Fprintf(&b, "Rollback error: %s\n", r.RollbackError)
				}
			}
			if r.Output != "" {
				fmt.Fprintf(&b, "Output:\n%s\n", r.Output)
			}
			if r.Error != "" {
				fmt.Fprintf(&b, "Error:\n%s\n", r.Error)
			}
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Completed at: %s\n", time.Now().Format(time.RFC3339))

	if _, err := file.WriteString(b.String()); err != nil {
		return fmt.Errorf("write task log: %w", err)
	}
	return nil
}

// Close flushes and closes the run log file.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		if err := fl.runLog.Sync(); err != nil {
			return fmt.Errorf("sync run log: %w", err)
		}
		if err := fl.runLog.Close(); err != nil {
			return fmt.Errorf("close run log: %w", err)
		}
		fl.runLog = nil
	}

	return nil
}

func (fl *FileLogger) writeRunLog(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		fl.runLog.WriteString(message)
		fl.runLog.Sync()
	}
}
