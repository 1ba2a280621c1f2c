package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360studio/taskpipe/classifier"
	"github.com/c360studio/taskpipe/config"
	"github.com/c360studio/taskpipe/executor"
	"github.com/c360studio/taskpipe/llm"
	"github.com/c360studio/taskpipe/scheduler"
	"github.com/c360studio/taskpipe/storage"
)

// App wires together the NATS backend, storage, LLM client, and scheduler.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	embeddedServer *server.Server
	natsConn       *nats.Conn
	js             jetstream.JetStream

	tasks *storage.TaskStore
	audit *storage.AuditLog

	client    *llm.Client
	scheduler *scheduler.Scheduler

	metricsServer *http.Server
}

// NewApp creates an application from validated config.
func NewApp(cfg *config.Config, logger *slog.Logger) *App {
	return &App{cfg: cfg, logger: logger}
}

// Start brings up NATS, storage, and the processing pipeline. It does not
// start polling; call Run for that.
func (a *App) Start(ctx context.Context) error {
	if err := a.startNATS(ctx); err != nil {
		return fmt.Errorf("start NATS: %w", err)
	}

	tasks, err := storage.NewTaskStore(ctx, a.js)
	if err != nil {
		return fmt.Errorf("initialize task store: %w", err)
	}
	a.tasks = tasks

	audit, err := storage.NewAuditLog(ctx, a.js)
	if err != nil {
		return fmt.Errorf("initialize audit log: %w", err)
	}
	a.audit = audit

	if llm.GetProvider(a.cfg.Model.Provider) == nil {
		return fmt.Errorf("unknown provider %q (available: %v)", a.cfg.Model.Provider, llm.ListProviders())
	}

	a.client = llm.NewClient(a.cfg.Model.Provider, a.cfg.Model.Endpoint, a.cfg.ResolveAPIKey(),
		llm.WithLogger(a.logger.With("component", "llm")))

	cls := classifier.New(a.client, a.cfg.Model.Name,
		classifier.WithTimeout(a.cfg.ClassifyTimeout()),
		classifier.WithLogger(a.logger.With("component", "classifier")))

	exec := executor.New(a.client, a.cfg.Model.Name,
		executor.WithTimeout(a.cfg.ExecuteTimeout()),
		executor.WithLogger(a.logger.With("component", "executor")))

	a.scheduler = scheduler.New(a.tasks, a.audit, cls, exec,
		scheduler.WithPollInterval(a.cfg.PollInterval()),
		scheduler.WithTaskDelay(a.cfg.TaskDelay()),
		scheduler.WithLogger(a.logger.With("component", "scheduler")))

	if a.cfg.Metrics.Addr != "" {
		a.startMetrics()
	}

	a.logger.Info("Components initialized",
		"provider", a.cfg.Model.Provider,
		"model", a.cfg.Model.Name)
	return nil
}

// Run blocks polling for tasks until ctx is cancelled.
func (a *App) Run(ctx context.Context) {
	a.scheduler.Run(ctx)
}

func (a *App) startNATS(ctx context.Context) error {
	if a.cfg.NATS.URL != "" && !a.cfg.NATS.Embedded {
		a.logger.Info("Connecting to NATS", "url", a.cfg.NATS.URL)
		conn, err := nats.Connect(a.cfg.NATS.URL,
			nats.Name("taskpipe"),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(time.Second))
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		a.natsConn = conn
	} else {
		a.logger.Info("Starting embedded NATS server")
		opts := &server.Options{
			Port:      -1, // Random available port
			JetStream: true,
			StoreDir:  a.cfg.NATS.StoreDir,
			NoLog:     true,
			NoSigs:    true,
		}

		ns, err := server.NewServer(opts)
		if err != nil {
			return fmt.Errorf("create embedded NATS server: %w", err)
		}

		go ns.Start()

		if !ns.ReadyForConnections(5 * time.Second) {
			ns.Shutdown()
			return fmt.Errorf("embedded NATS server failed to start")
		}

		a.embeddedServer = ns

		conn, err := nats.Connect(ns.ClientURL())
		if err != nil {
			ns.Shutdown()
			return fmt.Errorf("connect to embedded NATS: %w", err)
		}
		a.natsConn = conn
	}

	js, err := jetstream.New(a.natsConn)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}
	a.js = js

	return nil
}

func (a *App) startMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	a.metricsServer = &http.Server{
		Addr:              a.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("Metrics server listening", "addr", a.cfg.Metrics.Addr)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("Metrics server failed", "error", err)
		}
	}()
}

// Shutdown stops all components, draining NATS before closing.
func (a *App) Shutdown(timeout time.Duration) {
	a.logger.Info("Shutting down")

	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.logger.Warn("Metrics server shutdown", "error", err)
		}
	}

	if a.natsConn != nil {
		if err := a.natsConn.Drain(); err != nil {
			a.logger.Warn("NATS drain", "error", err)
		}
		a.natsConn.Close()
	}

	if a.embeddedServer != nil {
		a.embeddedServer.Shutdown()
		a.embeddedServer.WaitForShutdown()
	}

	a.logger.Info("Shutdown complete")
}
