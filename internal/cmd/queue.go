package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/harrison/agentd/internal/logger"
	"github.com/harrison/agentd/internal/models"
	"github.com/harrison/agentd/internal/queue"
	"github.com/harrison/agentd/internal/retry"
)

// jobsDocument is the YAML contract for `agentd queue`.
type jobsDocument struct {
	Jobs []jobSpec `yaml:"jobs"`
}

type jobSpec struct {
	Name     string `yaml:"name"`
	Command  string `yaml:"command"`
	Priority string `yaml:"priority"`
}

// NewQueueCommand creates the queue command.
func NewQueueCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue <jobs-file>",
		Short: "Run a batch of shell jobs through the priority queue",
		Long: `Run independent shell jobs from a YAML file through the bounded
worker pool. Jobs dispatch highest priority first (CRITICAL > HIGH >
NORMAL > LOW), ties broken by file order; failed jobs retry with
backoff before landing in the failure history.

Jobs file format:
  jobs:
    - name: lint
      command: golangci-lint run ./...
      priority: HIGH
    - name: tests
      command: go test ./...

Examples:
  agentd queue jobs.yaml
  agentd queue --concurrency 5 jobs.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: queueCommand,
	}

	cmd.Flags().String("config", "", "Path to config file (default: $AGENTD_HOME/config.yaml)")
	cmd.Flags().String("workspace", "", "Directory jobs run in (default: current directory)")
	cmd.Flags().String("log-level", "", "Log level: trace, debug, info, warn, error")
	cmd.Flags().Int("concurrency", 0, "Worker slots (default: from config)")
	cmd.Flags().String("snapshot", "", "Write final queue state to this file (default: from config)")

	return cmd
}

func queueCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigFromFlags(cmd)
	if err != nil {
		return err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if n, _ := cmd.Flags().GetInt("concurrency"); n > 0 {
		cfg.Queue.Concurrency = n
	}
	if path, _ := cmd.Flags().GetString("snapshot"); path != "" {
		cfg.Queue.SnapshotPath = path
	}

	workspace, err := resolveWorkspace(cmd)
	if err != nil {
		return err
	}

	jobs, err := loadJobs(args[0])
	if err != nil {
		return err
	}

	console := logger.NewConsoleLogger(os.Stdout, cfg.Logging.Level)

	q := queue.New(queue.Options{
		Concurrency: cfg.Queue.Concurrency,
		MaxRetries:  cfg.Queue.MaxRetries,
		HistorySize: cfg.Queue.HistorySize,
		Backoff:     retry.NewPolicy(cfg.Engine.RetryBaseDelay, cfg.Engine.RetryMaxDelay),
		Logger:      console,
	})
	q.RegisterHandler("shell", shellJobHandler(workspace))

	// A snapshot left by an interrupted process is restored before the
	// workers start; its RUNNING items revert to QUEUED and re-run.
	var restoredIDs []string
	if cfg.Queue.SnapshotPath != "" {
		items, err := queue.LoadSnapshot(cfg.Queue.SnapshotPath)
		if err != nil {
			console.LogWarn(fmt.Sprintf("load queue snapshot: %v", err))
		} else if len(items) > 0 {
			q.Restore(items)
			for _, item := range items {
				if !item.Status.IsTerminal() {
					console.LogInfo(fmt.Sprintf("restored item %s from snapshot", item.ID))
					restoredIDs = append(restoredIDs, item.ID)
				}
			}
		}
	}

	ctx := cmd.Context()
	q.Start(ctx)
	defer q.Stop()

	ids := make([]string, 0, len(jobs))
	for _, job := range jobs {
		priority, err := models.ParsePriority(job.Priority)
		if err != nil {
			return fmt.Errorf("job %q: %w", job.Name, err)
		}
		id := q.Add("shell", job.Command, priority)
		console.LogInfo(fmt.Sprintf("queued %s [%s] as %s", job.Name, priority, id))
		ids = append(ids, id)
	}

	if err := waitForQueue(ctx, q, append(append([]string{}, ids...), restoredIDs...)); err != nil {
		return err
	}

	failed := printQueueOutcome(cmd, q, jobs, ids)
	for _, id := range restoredIDs {
		if item, err := q.Item(id); err == nil && item.Status == models.ItemFailed {
			failed++
		}
	}

	if cfg.Queue.SnapshotPath != "" {
		if err := q.SaveSnapshot(cfg.Queue.SnapshotPath); err != nil {
			console.LogWarn(fmt.Sprintf("save queue snapshot: %v", err))
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d job(s) failed", failed)
	}
	return nil
}

// loadJobs reads and validates the jobs file.
func loadJobs(path string) ([]jobSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read jobs file: %w", err)
	}

	var doc jobsDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse jobs file: %w", err)
	}
	if len(doc.Jobs) == 0 {
		return nil, fmt.Errorf("jobs file contains no jobs")
	}
	for i, job := range doc.Jobs {
		if job.Command == "" {
			return nil, fmt.Errorf("job %d missing command", i+1)
		}
		if doc.Jobs[i].Name == "" {
			doc.Jobs[i].Name = fmt.Sprintf("job-%d", i+1)
		}
	}
	return doc.Jobs, nil
}

// shellJobHandler runs a queue item's payload via sh -c in dir.
func shellJobHandler(dir string) queue.HandlerFunc {
	return func(ctx context.Context, item *models.QueueItem) error {
		cmd := exec.CommandContext(ctx, "sh", "-c", item.Payload)
		cmd.Dir = dir
		output, err := cmd.CombinedOutput()
		if err != nil {
			return fmt.Errorf("job failed: %w: %s", err, strings.TrimSpace(string(output)))
		}
		return nil
	}
}

// waitForQueue polls until every submitted item reaches a terminal
// status or the context ends.
func waitForQueue(ctx context.Context, q *queue.Queue, ids []string) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		allDone := true
		for _, id := range ids {
			item, err := q.Item(id)
			if err != nil {
				continue
			}
			if !item.Status.IsTerminal() {
				allDone = false
				break
			}
		}
		if allDone {
			return nil
		}
	}
}

// printQueueOutcome renders the final per-job table and returns the
// failure count.
func printQueueOutcome(cmd *cobra.Command, q *queue.Queue, jobs []jobSpec, ids []string) int {
	out := cmd.OutOrStdout()
	failed := 0
	fmt.Fprintf(out, "\nQueue results:\n")
	for i, id := range ids {
		item, err := q.Item(id)
		if err != nil {
			fmt.Fprintf(out, "  %-20s %s\n", jobs[i].Name, "unknown")
			continue
		}
		line := fmt.Sprintf("  %-20s %s", jobs[i].Name, item.Status)
		if item.RetryCount > 0 {
			line += fmt.Sprintf(" (retries: %d)", item.RetryCount)
		}
		if item.LastError != "" {
			line += fmt.Sprintf(" - %s", item.LastError)
		}
		fmt.Fprintln(out, line)
		if item.Status == models.ItemFailed {
			failed++
		}
	}
	return failed
}
