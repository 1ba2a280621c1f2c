// Package main provides the taskpipe binary entry point.
// Taskpipe is a task automation pipeline: tasks are persisted in NATS
// JetStream KV, picked up by a polling scheduler, routed to one of ten
// workflows (by request or by LLM classification), executed against a
// completion endpoint, and finished with a full audit trail.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	// Register LLM providers via init()
	_ "github.com/c360studio/taskpipe/llm/providers"

	"github.com/c360studio/taskpipe/config"
	"github.com/c360studio/taskpipe/storage"
	"github.com/c360studio/taskpipe/workflow"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "taskpipe"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type cliFlags struct {
	configPath  string
	logLevel    string
	natsURL     string
	metricsAddr string
}

func rootCmd() *cobra.Command {
	flags := &cliFlags{}

	cmd := &cobra.Command{
		Use:   "taskpipe",
		Short: "Task automation pipeline",
		Long: `Taskpipe polls for submitted tasks, routes each one to a workflow
(summarization, translation, code generation, and seven others), runs it
against an LLM completion endpoint, and records an audit trail.

Workflows are chosen by the task's requested_workflow field, or detected
automatically when the request is "auto".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), flags)
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&flags.natsURL, "nats-url", "", "NATS server URL (default: embedded server)")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "Metrics listen address (empty = disabled)")

	cmd.AddCommand(runCmd(flags))
	cmd.AddCommand(submitCmd(flags))
	cmd.AddCommand(tasksCmd(flags))
	cmd.AddCommand(logsCmd(flags))
	cmd.AddCommand(modelsCmd(flags))
	cmd.AddCommand(versionCmd())

	return cmd
}

func runCmd(flags *cliFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the task pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), flags)
		},
	}
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "Metrics listen address (empty = disabled)")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	}
}

// runPipeline runs the polling scheduler until interrupted.
func runPipeline(ctx context.Context, flags *cliFlags) error {
	cfg, logger, err := setup(flags)
	if err != nil {
		return err
	}
	if flags.metricsAddr != "" {
		cfg.Metrics.Addr = flags.metricsAddr
	}

	app := NewApp(cfg, logger)
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer app.Shutdown(10 * time.Second)

	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	logger.Info("Taskpipe ready", "version", Version)
	app.Run(signalCtx)
	return nil
}

func submitCmd(flags *cliFlags) *cobra.Command {
	var (
		title       string
		description string
		wf          string
		enqueue     bool
	)

	cmd := &cobra.Command{
		Use:   "submit [input text]",
		Short: "Submit a task",
		Long: `Submit creates a task from the given input text. With --enqueue the
task is immediately marked in_progress so a running pipeline picks it up;
without it the task stays in todo.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(flags)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			app := NewApp(cfg, logger)
			if err := app.Start(ctx); err != nil {
				return err
			}
			defer app.Shutdown(5 * time.Second)

			task := &storage.Task{
				Title:             title,
				Description:       description,
				RequestedWorkflow: wf,
				InputText:         strings.Join(args, " "),
			}
			if task.Title == "" {
				task.Title = truncate(task.InputText, 50)
			}

			id, err := app.tasks.Create(ctx, task)
			if err != nil {
				return fmt.Errorf("create task: %w", err)
			}

			if enqueue {
				if err := app.tasks.MarkInProgress(ctx, id); err != nil {
					return fmt.Errorf("enqueue task: %w", err)
				}
			}

			fmt.Printf("Task created: %s (workflow: %s, enqueued: %t)\n", id, wf, enqueue)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Task title (default: input text)")
	cmd.Flags().StringVar(&description, "description", "", "Task description")
	cmd.Flags().StringVar(&wf, "workflow", workflow.RequestedAuto, "Requested workflow, or auto to detect")
	cmd.Flags().BoolVar(&enqueue, "enqueue", true, "Mark the task in_progress immediately")

	return cmd
}

func tasksCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(flags)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			app := NewApp(cfg, logger)
			if err := app.Start(ctx); err != nil {
				return err
			}
			defer app.Shutdown(5 * time.Second)

			tasks, err := app.tasks.List(ctx)
			if err != nil {
				return fmt.Errorf("list tasks: %w", err)
			}

			if len(tasks) == 0 {
				fmt.Println("No tasks.")
				return nil
			}

			for _, t := range tasks {
				wf := t.RequestedWorkflow
				if t.DetectedWorkflow != nil {
					wf = fmt.Sprintf("%s (detected: %s)", wf, *t.DetectedWorkflow)
				}
				fmt.Printf("%s  %-11s  %-40s  %s\n", t.ID, t.Status, truncate(t.Title, 40), wf)
				if t.Output != nil && t.Output.Error != "" {
					fmt.Printf("    error: %s\n", t.Output.Error)
				}
			}
			return nil
		},
	}
}

func logsCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logs [task-id]",
		Short: "Show the audit trail for a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(flags)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			app := NewApp(cfg, logger)
			if err := app.Start(ctx); err != nil {
				return err
			}
			defer app.Shutdown(5 * time.Second)

			entries, err := app.audit.ListByTask(ctx, args[0])
			if err != nil {
				return fmt.Errorf("list log entries: %w", err)
			}

			if len(entries) == 0 {
				fmt.Println("No log entries.")
				return nil
			}

			for _, e := range entries {
				fmt.Printf("%s  %-18s  %s\n", e.CreatedAt.Format(time.RFC3339), e.Event, e.Message)
			}
			return nil
		},
	}
}

func modelsCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List models available at the configured endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(flags)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			app := NewApp(cfg, logger)
			if err := app.Start(ctx); err != nil {
				return err
			}
			defer app.Shutdown(5 * time.Second)

			models, err := app.client.ListModels(ctx)
			if err != nil {
				return fmt.Errorf("list models: %w", err)
			}

			for _, m := range models {
				marker := " "
				if m.Name == cfg.Model.Name {
					marker = "*"
				}
				fmt.Printf("%s %s\n", marker, m.Name)
			}
			return nil
		},
	}
}

// setup loads and validates config and installs the default logger.
func setup(flags *cliFlags) (*config.Config, *slog.Logger, error) {
	level := slog.LevelInfo
	switch strings.ToLower(flags.logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg := config.DefaultConfig()
	if flags.configPath != "" {
		fileCfg, err := config.LoadFromFile(flags.configPath)
		if err != nil {
			return nil, nil, fmt.Errorf("load config: %w", err)
		}
		cfg.Merge(fileCfg)
	}

	if flags.natsURL != "" {
		cfg.NATS.URL = flags.natsURL
		cfg.NATS.Embedded = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, logger, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
