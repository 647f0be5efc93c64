package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harrison/agentd/internal/config"
	"github.com/harrison/agentd/internal/logger"
	"github.com/harrison/agentd/internal/models"
)

// loadConfigFromFlags resolves the config file path from the --config
// flag (default $AGENTD_HOME/config.yaml) and loads it.
func loadConfigFromFlags(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = defaultConfigPath()
	}
	return config.LoadConfig(path)
}

func defaultConfigPath() string {
	return config.DefaultHome() + string(os.PathSeparator) + "config.yaml"
}

// resolveWorkspace returns the --workspace flag or the current directory.
func resolveWorkspace(cmd *cobra.Command) (string, error) {
	workspace, _ := cmd.Flags().GetString("workspace")
	if workspace != "" {
		return workspace, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve workspace: %w", err)
	}
	return cwd, nil
}

// teeLogger fans log messages out to several loggers: typically the
// console plus the run log file.
type teeLogger struct {
	sinks []levelLogger
}

type levelLogger interface {
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
}

func newTeeLogger(sinks ...levelLogger) *teeLogger {
	var active []levelLogger
	for _, s := range sinks {
		if s != nil {
			active = append(active, s)
		}
	}
	return &teeLogger{sinks: active}
}

func (t *teeLogger) LogDebug(message string) {
	for _, s := range t.sinks {
		s.LogDebug(message)
	}
}

func (t *teeLogger) LogInfo(message string) {
	for _, s := range t.sinks {
		s.LogInfo(message)
	}
}

func (t *teeLogger) LogWarn(message string) {
	for _, s := range t.sinks {
		s.LogWarn(message)
	}
}

func (t *teeLogger) LogError(message string) {
	for _, s := range t.sinks {
		s.LogError(message)
	}
}

// Structured events fan out to the sinks that accept them: the console
// takes all three, the file log has no progress bar.
func (t *teeLogger) LogStepResult(step *models.Step) {
	for _, s := range t.sinks {
		if el, ok := s.(interface{ LogStepResult(*models.Step) }); ok {
			el.LogStepResult(step)
		}
	}
}

func (t *teeLogger) LogApproval(req models.ApprovalRequest, approved bool) {
	for _, s := range t.sinks {
		if el, ok := s.(interface {
			LogApproval(models.ApprovalRequest, bool)
		}); ok {
			el.LogApproval(req, approved)
		}
	}
}

func (t *teeLogger) LogProgress(task *models.Task) {
	for _, s := range t.sinks {
		if el, ok := s.(interface{ LogProgress(*models.Task) }); ok {
			el.LogProgress(task)
		}
	}
}

// openFileLogger opens the run log, degrading to console-only with a
// warning when the log directory cannot be used.
func openFileLogger(console *logger.ConsoleLogger, dir, level string) *logger.FileLogger {
	fileLog, err := logger.NewFileLogger(dir, level)
	if err != nil {
		console.LogWarn(fmt.Sprintf("file logging disabled: %v", err))
		return nil
	}
	return fileLog
}

// printPlan renders a planned task for human review.
func printPlan(cmd *cobra.Command, task *models.Task) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Task %s: %s\n", task.ID, task.Goal)
	if task.ManualFallback {
		fmt.Fprintf(out, "  (degraded plan: planning response was unusable, manual review required)\n")
	}
	for i, step := range task.Steps {
		optional := ""
		if step.Optional {
			optional = " [optional]"
		}
		fmt.Fprintf(out, "  %d. %s (%s)%s\n", i+1, step.Title, step.Action.Type, optional)
		fmt.Fprintf(out, "     confidence %d, risk %s, retries %d", step.Confidence, step.Risk, step.MaxRetries)
		if len(step.Fallbacks) > 0 {
			fmt.Fprintf(out, ", %d fallback(s)", len(step.Fallbacks))
		}
		fmt.Fprintln(out)
		for _, fb := range step.Fallbacks {
			fmt.Fprintf(out, "     fallback: %s on %s (confidence %d)\n", fb.Action.Type, fb.TriggerCondition, fb.Confidence)
		}
	}
}
