package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harrison/agentd/internal/actions"
	"github.com/harrison/agentd/internal/approval"
	"github.com/harrison/agentd/internal/checkpoint"
	"github.com/harrison/agentd/internal/confidence"
	"github.com/harrison/agentd/internal/config"
	"github.com/harrison/agentd/internal/corrector"
	"github.com/harrison/agentd/internal/engine"
	"github.com/harrison/agentd/internal/llm"
	"github.com/harrison/agentd/internal/logger"
	"github.com/harrison/agentd/internal/models"
	"github.com/harrison/agentd/internal/pattern"
	"github.com/harrison/agentd/internal/planner"
	"github.com/harrison/agentd/internal/retry"
)

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <goal>...",
		Short: "Plan a goal and execute it",
		Long: `Plan the given natural-language goal into steps and execute them.

Destructive steps (writes, deletes, commands, commits) pass through an
approval gate first. Failed steps retry with backoff and AI
self-correction, then fall back to pre-computed alternatives; a failed
required step rolls back every completed step in reverse order.

Press Ctrl-C once for a cooperative cancel after the current step.
An interrupted task can be picked up again with --resume <task-id>;
steps already checkpointed as completed are not re-executed.

Examples:
  agentd run "add unit tests for the parser package"
  agentd run --approval file --workspace ./svc "migrate config to YAML"
  agentd run --rollback-on-cancel "refactor the storage layer"
  agentd run --resume 6b1f3c9a-4d2e-4f7a-9c1b-8e5d2a7f0c3e`,
		Args: cobra.ArbitraryArgs,
		RunE: runCommand,
	}

	addCommonFlags(cmd)
	cmd.Flags().Bool("rollback-on-cancel", false, "Roll back completed steps when cancelled")
	cmd.Flags().String("resume", "", "Resume an interrupted task by id instead of planning a goal")

	return cmd
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "Path to config file (default: $AGENTD_HOME/config.yaml)")
	cmd.Flags().String("workspace", "", "Workspace root for file actions (default: current directory)")
	cmd.Flags().String("approval", "", "Approval mode: auto, deny, file (default: from config)")
	cmd.Flags().String("log-level", "", "Log level: trace, debug, info, warn, error")
	cmd.Flags().String("llm-binary", "", "AI CLI binary to invoke (default: claude)")
	cmd.Flags().Bool("no-patterns", false, "Disable the historical pattern store")
}

func runCommand(cmd *cobra.Command, args []string) error {
	goal := strings.Join(args, " ")
	resumeID, _ := cmd.Flags().GetString("resume")
	if goal == "" && resumeID == "" {
		return fmt.Errorf("a goal or --resume <task-id> is required")
	}
	if goal != "" && resumeID != "" {
		return fmt.Errorf("--resume takes no goal argument")
	}

	cfg, err := loadConfigFromFlags(cmd)
	if err != nil {
		return err
	}
	applyFlagOverrides(cmd, cfg)

	workspace, err := resolveWorkspace(cmd)
	if err != nil {
		return err
	}

	console := logger.NewConsoleLogger(os.Stdout, cfg.Logging.Level)
	fileLog := openFileLogger(console, cfg.Logging.Dir, cfg.Logging.Level)
	log := newTeeLogger(console)
	if fileLog != nil {
		defer fileLog.Close()
		log = newTeeLogger(console, fileLog)
	}

	stack, err := buildStack(cfg, workspace, cmd)
	if err != nil {
		return err
	}
	defer stack.Close()

	ctx := cmd.Context()

	checkpoints, err := checkpoint.NewStore(cfg.StateDir)
	if err != nil {
		return err
	}

	var task *models.Task
	if resumeID != "" {
		task, err = loadResumableTask(ctx, checkpoints, resumeID)
		if err != nil {
			return err
		}
		console.LogInfo(fmt.Sprintf("resuming task %s: %s", task.ID, task.Goal))
	} else {
		task, err = stack.Planner.PlanTask(ctx, goal, planner.WorkspaceContext{Root: workspace})
		if err != nil {
			return fmt.Errorf("planning failed: %w", err)
		}
		if err := checkpoints.SavePlan(task); err != nil {
			log.LogWarn(fmt.Sprintf("persist plan: %v", err))
		}
	}
	printPlan(cmd, task)

	gate, closeGate, err := buildApprovalGate(cfg, console)
	if err != nil {
		return err
	}
	if closeGate != nil {
		defer closeGate()
	}

	var selfCorrector engine.Corrector
	if cfg.Corrector.Enabled {
		selfCorrector = corrector.New(stack.LLM, cfg.Corrector.MinConfidence)
	}

	var recorder engine.PatternRecorder
	if stack.Patterns != nil {
		recorder = stack.Patterns
	}

	eng, err := engine.New(task, engine.Options{
		Registry:    stack.Registry,
		Backoff:     retry.NewPolicy(cfg.Engine.RetryBaseDelay, cfg.Engine.RetryMaxDelay),
		Corrector:   selfCorrector,
		Approvals:   gate,
		Checkpoints: checkpoints,
		Patterns:    recorder,
		Logger:      log,
		StepTimeout: cfg.Engine.StepTimeout,
	})
	if err != nil {
		return err
	}

	rollbackOnCancel, _ := cmd.Flags().GetBool("rollback-on-cancel")
	stopSignals := watchSignals(eng, rollbackOnCancel, console)
	defer stopSignals()

	console.LogTaskStart(task)
	result, runErr := eng.Run(ctx)

	console.LogSummary(*result)
	if fileLog != nil {
		fileLog.LogSummary(*result)
	}

	if task.Status.IsTerminal() {
		if err := checkpoints.Delete(task.ID); err != nil {
			log.LogWarn(fmt.Sprintf("remove checkpoint: %v", err))
		}
	}

	if runErr != nil {
		return runErr
	}
	if task.Status == models.TaskFailed {
		return fmt.Errorf("task %s failed", task.ID)
	}
	return nil
}

// loadResumableTask reconstructs an interrupted task from its persisted
// plan and checkpoint: checkpointed steps stay completed, everything else
// reverts to pending.
func loadResumableTask(ctx context.Context, store *checkpoint.Store, taskID string) (*models.Task, error) {
	task, err := store.LoadPlan(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("no resumable task %s", taskID)
	}

	cp, err := store.LoadCheckpoint(ctx, taskID)
	if err != nil {
		return nil, err
	}
	checkpoint.Restore(task, cp)
	return task, nil
}

// applyFlagOverrides layers CLI flags over the loaded configuration.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if mode, _ := cmd.Flags().GetString("approval"); mode != "" {
		cfg.Approval.Mode = mode
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if noPatterns, _ := cmd.Flags().GetBool("no-patterns"); noPatterns {
		cfg.Patterns.Enabled = false
	}
}

// stack bundles the collaborators the planner and engine share.
type stack struct {
	LLM      *llm.Client
	Registry *engine.Registry
	Planner  *planner.Planner
	Patterns *pattern.Store
}

// Close releases the pattern store if one was opened.
func (s *stack) Close() {
	if s.Patterns != nil {
		s.Patterns.Close()
	}
}

// buildStack wires the LLM client, pattern store, estimator, handler
// registry, and planner.
func buildStack(cfg *config.Config, workspace string, cmd *cobra.Command) (*stack, error) {
	client := llm.NewClient()
	client.Timeout = cfg.Engine.StepTimeout
	if binary, _ := cmd.Flags().GetString("llm-binary"); binary != "" {
		client.BinaryPath = binary
	}

	var store *pattern.Store
	if cfg.Patterns.Enabled {
		var err error
		store, err = pattern.NewStore(cfg.Patterns.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open pattern store: %w", err)
		}
	}

	var estimator *confidence.Estimator
	if store != nil {
		estimator = confidence.NewEstimator(store)
	} else {
		estimator = confidence.NewEstimator(nil)
	}

	registry := engine.NewRegistry()
	if err := actions.RegisterAll(registry, actions.Options{Root: workspace, LLM: client}); err != nil {
		if store != nil {
			store.Close()
		}
		return nil, err
	}

	pl := planner.New(client, estimator, planner.NewFallbackPlanner(estimator), registry)

	return &stack{
		LLM:      client,
		Registry: registry,
		Planner:  pl,
		Patterns: store,
	}, nil
}

// buildApprovalGate creates the gate the config asks for. In file mode
// the returned closer shuts the fsnotify watcher down.
func buildApprovalGate(cfg *config.Config, console *logger.ConsoleLogger) (engine.ApprovalGate, func(), error) {
	switch cfg.Approval.Mode {
	case config.ApprovalModeAuto:
		return approval.Auto(true), nil, nil
	case config.ApprovalModeDeny:
		return approval.Auto(false), nil, nil
	case config.ApprovalModeFile:
		broker := approval.NewBroker(func(req models.ApprovalRequest) {
			console.LogInfo(fmt.Sprintf(
				"approval needed for step %s (%s risk): answer with %s/%s.json containing {\"approved\": true|false}",
				req.StepID, req.RiskLevel, cfg.Approval.ResponseDir, req.StepID))
		})
		responder, err := approval.NewFileResponder(broker, cfg.Approval.ResponseDir)
		if err != nil {
			return nil, nil, fmt.Errorf("start approval responder: %w", err)
		}
		return broker, func() { responder.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown approval mode %q", cfg.Approval.Mode)
	}
}

// watchSignals converts the first SIGINT/SIGTERM into a cooperative
// cancel; repeating the signal kills the process the normal way.
func watchSignals(eng *engine.Engine, rollback bool, console *logger.ConsoleLogger) func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			console.LogWarn("cancel requested, finishing the current step")
			eng.Cancel(rollback)
			signal.Stop(sigCh)
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}
