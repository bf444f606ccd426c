// internal/run/orchestrator.go
package run

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/arwahdevops/sxmlsync/internal/config"
	"github.com/arwahdevops/sxmlsync/internal/metrics"
	"github.com/arwahdevops/sxmlsync/internal/reconcile"
	"github.com/arwahdevops/sxmlsync/internal/vcs"
)

// Orchestrator drives one reconciliation run: discover snapshot files under
// the scan directory, process them through a worker pool, and collect the
// per-file results.
type Orchestrator struct {
	cfg     *config.Config
	engine  *reconcile.Engine
	vcsDiff *vcs.GitComparator // nil when the side channel is disabled
	metrics *metrics.Store
	logger  *zap.Logger
}

func NewOrchestrator(cfg *config.Config, engine *reconcile.Engine, vcsDiff *vcs.GitComparator, metricsStore *metrics.Store, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		engine:  engine,
		vcsDiff: vcsDiff,
		metrics: metricsStore,
		logger:  logger.Named("orchestrator"),
	}
}

// Run executes the full pass and returns per-file results keyed by path.
func (o *Orchestrator) Run(ctx context.Context) map[string]FileResult {
	start := time.Now()
	o.metrics.RunRunning.Set(1)
	defer func() {
		o.metrics.RunRunning.Set(0)
		o.metrics.RunDuration.Observe(time.Since(start).Seconds())
	}()

	if o.cfg.CleanStaleReports {
		if err := o.cleanStaleReports(); err != nil {
			o.logger.Warn("Stale report cleanup finished with errors.", zap.Error(err))
		}
	}

	files, err := o.discoverSnapshots()
	if err != nil {
		o.logger.Error("Snapshot discovery failed.", zap.String("scan_dir", o.cfg.ScanDir), zap.Error(err))
		o.metrics.ReconcileErrorsTotal.WithLabelValues("discovery").Inc()
		return map[string]FileResult{
			o.cfg.ScanDir: {Path: o.cfg.ScanDir, ReadError: err},
		}
	}
	o.logger.Info("Snapshot discovery complete.",
		zap.String("scan_dir", o.cfg.ScanDir),
		zap.Int("files", len(files)))
	if len(files) == 0 {
		return map[string]FileResult{}
	}

	return o.runFileProcessingPool(ctx, files)
}

// discoverSnapshots walks the scan directory and returns every .sql file, in
// a stable (walk) order.
func (o *Orchestrator) discoverSnapshots() ([]string, error) {
	var files []string
	err := filepath.WalkDir(o.cfg.ScanDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".sql") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// cleanStaleReports removes report files left by previous runs. Only .log
// files sitting next to a .sql snapshot with the same stem are touched.
func (o *Orchestrator) cleanStaleReports() error {
	var errs error
	removed := 0
	walkErr := filepath.WalkDir(o.cfg.ScanDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".log") {
			return nil
		}
		snapshot := strings.TrimSuffix(path, filepath.Ext(path)) + ".sql"
		if _, statErr := os.Stat(snapshot); statErr != nil {
			return nil
		}
		if o.cfg.DryRun {
			o.logger.Info("Dry run: would remove stale report.", zap.String("path", path))
			return nil
		}
		if rmErr := os.Remove(path); rmErr != nil {
			errs = multierr.Append(errs, rmErr)
			return nil
		}
		removed++
		o.metrics.StaleReportsRemovedTotal.Inc()
		return nil
	})
	if removed > 0 {
		o.logger.Info("Removed stale reports.", zap.Int("count", removed))
	}
	return multierr.Append(errs, walkErr)
}
