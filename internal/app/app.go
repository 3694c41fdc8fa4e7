// Package app wires configuration, outputs and the site runner into one
// batch run.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chrissnell/pvreconcile/internal/log"
	"github.com/chrissnell/pvreconcile/internal/metrics"
	"github.com/chrissnell/pvreconcile/internal/reconciler"
	"github.com/chrissnell/pvreconcile/internal/report"
	"github.com/chrissnell/pvreconcile/internal/storage"
	"github.com/chrissnell/pvreconcile/pkg/config"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// App represents the main application
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
	workers        int
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger, workers int) *App {
	return &App{
		configProvider: configProvider,
		logger:         logger,
		workers:        workers,
	}
}

// Run loads the configuration and reconciles every site. It returns the
// per-site results and an error if the run could not start or any site
// aborted.
func (a *App) Run(ctx context.Context) ([]*reconciler.SiteResult, error) {
	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	config.ApplyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		select {
		case <-sigs:
			log.Info("shutdown signal received, cancelling remaining sites...")
			cancel()
		case <-ctx.Done():
		}
	}()

	runID := uuid.NewString()
	a.logger.Infow("starting reconciliation run", "run", runID, "datasets", len(cfg.Datasets), "workers", a.workers)

	sinks, err := storage.OpenSinks(ctx, cfg.Output, runID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := storage.CloseSinks(sinks); err != nil {
			log.Errorf("closing output sinks: %v", err)
		}
	}()

	outs := &reconciler.Outputs{
		Config:  cfg.Output,
		RunID:   runID,
		Sinks:   sinks,
		Metrics: metrics.New(),
	}
	if cfg.Output.AuditDB != "" {
		audit, err := storage.OpenAudit(ctx, cfg.Output.AuditDB)
		if err != nil {
			return nil, err
		}
		defer audit.Close()
		outs.Audit = audit
	}

	results, runErr := reconciler.NewRunner(outs, a.workers).Run(ctx, cfg.Datasets)
	for _, res := range results {
		logResult(a.logger, res)
	}

	if err := outs.Metrics.WriteTextfile(cfg.Output.MetricsFile); err != nil {
		log.Errorf("%v", err)
	}
	return results, runErr
}

func logResult(logger *zap.SugaredLogger, res *reconciler.SiteResult) {
	l := logger.With("site", res.SiteID, "dataset", res.Dataset)
	if res.Err != nil {
		l.Errorw("site aborted", "stage", res.State, "error", res.Err)
		return
	}
	rows := 0
	if res.Table != nil {
		rows = res.Table.Len()
	}
	l.Infow("site summary",
		"accepted_days", res.AcceptedDays(),
		"excluded_days", res.ExcludedDays(),
		"rows_written", rows,
		"skipped_files", len(multierr.Errors(res.ParseErrors)))
	if len(res.Summary) > 0 {
		l.Info("column statistics:\n" + report.Format(res.Summary))
	}
}
