// internal/run/file.go
package run

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arwahdevops/sxmlsync/internal/reconcile"
	"github.com/arwahdevops/sxmlsync/internal/snapshot"
	"github.com/arwahdevops/sxmlsync/internal/vcs"
)

// processSingleFile reconciles one snapshot file end to end: read, locate the
// marker, reconcile the metadata against the DDL text, rewrite the file when
// anything changed, and write a discrepancy report when there is something to
// report.
func (o *Orchestrator) processSingleFile(ctx context.Context, path string) FileResult {
	start := time.Now()
	res := FileResult{Path: path}
	log := o.logger.With(zap.String("file", path))
	defer func() { res.Duration = time.Since(start) }()

	fileCtx, cancel := context.WithTimeout(ctx, o.cfg.FileTimeout)
	defer cancel()

	raw, err := os.ReadFile(path)
	if err != nil {
		res.ReadError = fmt.Errorf("reading snapshot: %w", err)
		o.metrics.ReconcileErrorsTotal.WithLabelValues("read_file").Inc()
		log.Error("Failed to read snapshot file.", zap.Error(err))
		return res
	}
	content := string(raw)

	markerIdx, markerLine := snapshot.FindMarker(content, o.cfg.MarkerPrefix)
	if markerIdx < 0 {
		res.Skipped = true
		res.SkipReason = "no snapshot marker line"
		log.Debug("Skipping file without a snapshot marker.")
		return res
	}

	marker, err := snapshot.ParseMarker(markerLine, o.cfg.MarkerPrefix)
	if err != nil {
		res.MarkerError = fmt.Errorf("parsing marker: %w", err)
		o.metrics.ReconcileErrorsTotal.WithLabelValues("marker_parse").Inc()
		log.Error("Failed to parse snapshot marker.", zap.Error(err))
		return res
	}
	originalSXML, err := marker.SXML()
	if err != nil {
		res.MarkerError = fmt.Errorf("parsing marker: %w", err)
		o.metrics.ReconcileErrorsTotal.WithLabelValues("marker_parse").Inc()
		return res
	}

	lines := strings.Split(content, "\n")
	ddl := strings.Join(lines[:markerIdx], "\n")

	result, err := o.engine.Reconcile(fileCtx, ddl, originalSXML)
	if err != nil {
		res.ReconcileError = err
		o.metrics.ReconcileErrorsTotal.WithLabelValues("reconcile").Inc()
		log.Error("Reconciliation failed.", zap.Error(err))
		return res
	}
	res.Repaired = result.Repaired
	res.FixCount = len(result.Fixes)
	res.HasResidual = !result.Residual.Empty()
	for _, kind := range result.FixKinds() {
		o.metrics.FixesAppliedTotal.WithLabelValues(string(kind)).Inc()
	}

	if result.Modified {
		if err := marker.SetSXML(result.CorrectedSXML); err != nil {
			res.WriteError = fmt.Errorf("updating marker: %w", err)
			o.metrics.ReconcileErrorsTotal.WithLabelValues("write_file").Inc()
			return res
		}
		rendered, err := marker.Render()
		if err != nil {
			res.WriteError = fmt.Errorf("rendering marker: %w", err)
			o.metrics.ReconcileErrorsTotal.WithLabelValues("write_file").Inc()
			return res
		}
		lines[markerIdx] = rendered

		if o.cfg.DryRun {
			log.Info("Dry run: snapshot would be rewritten.",
				zap.Int("fixes", res.FixCount),
				zap.Bool("repaired", res.Repaired))
		} else if err := atomicWrite(path, strings.Join(lines, "\n")); err != nil {
			res.WriteError = fmt.Errorf("rewriting snapshot: %w", err)
			o.metrics.ReconcileErrorsTotal.WithLabelValues("write_file").Inc()
			log.Error("Failed to rewrite snapshot file.", zap.Error(err))
			return res
		} else {
			log.Info("Snapshot rewritten.",
				zap.Int("fixes", res.FixCount),
				zap.Bool("repaired", res.Repaired))
		}
	}

	if res.FixCount > 0 || res.HasResidual {
		o.writeReport(fileCtx, &res, result, ddl, originalSXML, log)
	}
	return res
}

func (o *Orchestrator) writeReport(ctx context.Context, res *FileResult, result *reconcile.Result, ddl, originalSXML string, log *zap.Logger) {
	var vcsDiff string
	if o.vcsDiff != nil && o.cfg.EnableVCSDiff {
		diff, err := o.vcsDiff.Diff(ctx, res.Path)
		if err != nil {
			o.metrics.ReconcileErrorsTotal.WithLabelValues("vcs_diff").Inc()
			log.Warn("VCS diff failed; report is written without the appendix.", zap.Error(err))
		} else {
			vcsDiff = semanticDiff(diff, o.cfg.MarkerPrefix)
			if vcsDiff == "" && strings.TrimSpace(diff) != "" {
				log.Debug("VCS diff carries only formatting changes; appendix suppressed.")
			}
		}
	}

	report := reconcile.BuildReport(reconcile.ReportInput{
		Path:         res.Path,
		DDL:          ddl,
		OriginalSXML: originalSXML,
		Result:       result,
		VCSDiff:      vcsDiff,
		GeneratedAt:  time.Now(),
	})
	reportPath := strings.TrimSuffix(res.Path, filepath.Ext(res.Path)) + ".log"

	if o.cfg.DryRun {
		log.Info("Dry run: report would be written.", zap.String("report", reportPath))
		return
	}
	if err := os.WriteFile(reportPath, []byte(report), 0o644); err != nil {
		res.ReportError = fmt.Errorf("writing report: %w", err)
		o.metrics.ReconcileErrorsTotal.WithLabelValues("report_write").Inc()
		log.Error("Failed to write discrepancy report.", zap.Error(err))
		return
	}
	res.ReportPath = reportPath
	log.Info("Discrepancy report written.", zap.String("report", reportPath))
}

// semanticDiff filters a unified diff for the report appendix. An empty diff,
// or one whose only change is the marker line carrying semantically equal
// markup, reports nothing worth a reviewer's attention and yields "".
func semanticDiff(diff, prefix string) string {
	if strings.TrimSpace(diff) == "" {
		return ""
	}
	if markerRewriteOnly(diff, prefix) {
		return ""
	}
	return diff
}

// markerRewriteOnly reports whether every changed line of the unified diff is
// the snapshot marker line, with the removed and added payloads carrying
// semantically equal markup (inter-tag whitespace aside).
func markerRewriteOnly(diff, prefix string) bool {
	var oldSXML, newSXML string
	for _, line := range strings.Split(diff, "\n") {
		if line == "" {
			continue
		}
		sign := line[0]
		if sign != '-' && sign != '+' {
			continue
		}
		body := line[1:]
		// The marker line itself starts with "--", so a removed marker reads
		// "---"; marker-ness must be checked before the file-header prefixes.
		if snapshot.IsMarker(body, prefix) {
			marker, err := snapshot.ParseMarker(body, prefix)
			if err != nil {
				return false
			}
			payload, err := marker.SXML()
			if err != nil {
				return false
			}
			if sign == '-' {
				oldSXML = payload
			} else {
				newSXML = payload
			}
			continue
		}
		if strings.HasPrefix(line, "--- ") || strings.HasPrefix(line, "+++ ") {
			continue
		}
		if strings.TrimSpace(body) != "" {
			return false
		}
	}
	return oldSXML != "" && newSXML != "" && vcs.SemanticallyEqual(oldSXML, newSXML)
}

// atomicWrite replaces the file through a same-directory temp file and
// rename so a crash never leaves a half-written snapshot.
func atomicWrite(path, content string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if info, err := os.Stat(path); err == nil {
		_ = os.Chmod(tmpName, info.Mode())
	}
	return os.Rename(tmpName, path)
}
