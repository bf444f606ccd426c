// internal/run/result.go
package run

import (
	"time"

	"github.com/arwahdevops/sxmlsync/internal/metrics"
)

// FileResult captures the outcome of processing one snapshot file.
type FileResult struct {
	Path     string
	Duration time.Duration

	Skipped    bool
	SkipReason string

	// Fix summary for the file.
	Repaired    bool
	FixCount    int
	HasResidual bool
	ReportPath  string

	// Error fields, one per processing stage.
	ReadError      error
	MarkerError    error
	ReconcileError error
	WriteError     error
	ReportError    error
}

// Failed reports whether any processing stage errored.
func (r FileResult) Failed() bool {
	return r.ReadError != nil || r.MarkerError != nil || r.ReconcileError != nil ||
		r.WriteError != nil || r.ReportError != nil
}

// Outcome maps the result onto a metrics label.
func (r FileResult) Outcome() string {
	switch {
	case r.Skipped:
		return metrics.OutcomeSkipped
	case r.Failed():
		return metrics.OutcomeFailed
	case r.HasResidual:
		return metrics.OutcomeDiscrepancy
	case r.FixCount > 0:
		return metrics.OutcomeFixed
	default:
		return metrics.OutcomeClean
	}
}
