package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/squireai/squire/internal/backend"
	"github.com/squireai/squire/internal/config"
	"github.com/squireai/squire/internal/logging"
	"github.com/squireai/squire/internal/metrics"
	"github.com/squireai/squire/internal/reconciler"
	"github.com/squireai/squire/internal/task"
	"github.com/squireai/squire/internal/webhook"
)

var runReconcileInterval time.Duration

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the run daemon (webhook ingress + periodic reconciler)",
	Long: `Serves the authenticated webhook ingress and a Prometheus /metrics
endpoint, reconciling the Task Store against the worker backend once at
startup and then on a fixed interval, until interrupted.`,
	RunE: runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadSquire(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := backend.Install(cfg); err != nil {
		return fmt.Errorf("installing backend: %w", err)
	}
	store, err := task.NewFileStore(cfg.TasksDir)
	if err != nil {
		return fmt.Errorf("opening task store: %w", err)
	}

	logger := logging.L(ctx, "run")

	if reconciler.NeedsReconciliation() {
		result, err := reconciler.Reconcile(ctx, store, backend.Current(), reconciler.Options{RemoveOrphanedWorkers: cfg.AutoCleanup})
		if err != nil {
			logger.Error("startup reconciliation failed", "error", err)
		} else {
			logger.Info("startup reconciliation complete",
				"reconciled", result.TasksReconciled,
				"markedFailed", result.TasksMarkedFailed,
				"markedCompleted", result.TasksMarkedCompleted,
				"orphansRemoved", result.OrphanedWorkersRemoved)
		}
	}

	h, err := webhook.NewHandler(cfg.Webhook, store, backend.Current(), cfg.Model, cfg.WorkerImage, cfg.RepoHostToken)
	if err != nil {
		return fmt.Errorf("constructing webhook handler: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/", h.Mux())
	mux.Handle("/metrics", metrics.Default().Handler())

	addr := cfg.Webhook.Addr
	if addr == "" {
		addr = ":8090"
	}
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Info("run daemon listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("webhook server failed", "error", err)
		}
	}()

	interval := runReconcileInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			result, err := reconciler.Reconcile(ctx, store, backend.Current(), reconciler.Options{RemoveOrphanedWorkers: cfg.AutoCleanup})
			if err != nil {
				logger.Error("periodic reconciliation failed", "error", err)
				continue
			}
			if result.TasksReconciled > 0 || result.OrphanedWorkersRemoved > 0 {
				logger.Info("periodic reconciliation complete",
					"reconciled", result.TasksReconciled,
					"orphansRemoved", result.OrphanedWorkersRemoved)
			}
		}
	}

	logger.Info("run daemon shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func init() {
	runCmd.Flags().DurationVar(&runReconcileInterval, "reconcile-interval", 5*time.Minute,
		"how often to run the reconciler after startup")
}
