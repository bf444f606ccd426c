// internal/reconcile/engine.go
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/arwahdevops/sxmlsync/internal/schema"
	"github.com/arwahdevops/sxmlsync/internal/sxml"
)

// FixKind classifies one applied correction for reporting and metrics.
type FixKind string

const (
	FixRepairedGenerator FixKind = "repaired_generator"
	FixAddedColumns      FixKind = "added_columns"
	FixForcedNotNull     FixKind = "forced_not_null"
	FixNormalizedStart   FixKind = "normalized_start_with"
	FixReorderedColumns  FixKind = "reordered_columns"
)

// Fix records one correction applied during a pass.
type Fix struct {
	Kind    FixKind
	Message string
	// Only set for FixReorderedColumns.
	OldOrder []string
	NewOrder []string
}

// Result is the outcome of one reconciliation pass over a single snapshot.
type Result struct {
	// CorrectedSXML is only set when Modified is true.
	CorrectedSXML string
	Modified      bool
	Repaired      bool
	Fixes         []Fix
	// Residual holds the discrepancies that remain after all fixes: the
	// attribute mismatches the engine never auto-corrects.
	Residual schema.Diff
}

// Options tune per-pass behavior.
type Options struct {
	// NormalizeStartWith rewrites every identity generator start value to
	// "1" so snapshot diffs stop churning on sequence state.
	NormalizeStartWith bool
}

// Engine reconciles the column metadata of one snapshot against the columns
// declared in its DDL text. The DDL is the source of truth for column
// presence and order; attribute values are compared but never rewritten
// (except the NOT NULL marker on the ID identity column, which the metadata
// extractor is known to drop).
type Engine struct {
	repairer *sxml.Repairer
	opts     Options
	log      *zap.Logger
}

func New(repairer *sxml.Repairer, opts Options, log *zap.Logger) *Engine {
	return &Engine{
		repairer: repairer,
		opts:     opts,
		log:      log.Named("reconcile"),
	}
}

// Reconcile runs one full pass: extract the DDL columns, parse the metadata
// (repairing a known corruption if needed), diff, synthesize missing columns,
// force the dropped NOT NULL marker on the ID identity column, optionally
// normalize start values, and restore DDL column order. A second pass over
// its own output is a no-op.
func (e *Engine) Reconcile(ctx context.Context, ddlText, rawSXML string) (*Result, error) {
	res := &Result{}
	ddlCols := schema.ExtractColumns(ddlText, e.log)

	doc, err := sxml.Parse(rawSXML)
	if err != nil {
		corrected, name, repairErr := e.repairer.Attempt(ctx, rawSXML)
		if repairErr != nil {
			return nil, fmt.Errorf("metadata unusable: %w", repairErr)
		}
		doc, err = sxml.Parse(corrected)
		if err != nil {
			return nil, fmt.Errorf("metadata unusable after repair: %w", err)
		}
		res.Repaired = true
		res.Fixes = append(res.Fixes, Fix{
			Kind:    FixRepairedGenerator,
			Message: fmt.Sprintf("Repaired known corruption: %s.", name),
		})
		e.log.Info("Metadata repaired.", zap.String("repair", name))
	}

	diff := schema.Compare(ddlCols, doc.Columns())

	if len(diff.DDLOnly) > 0 {
		missing := make([]schema.ColumnAttributes, 0, len(diff.DDLOnly))
		for _, name := range diff.DDLOnly {
			if col, ok := ddlCols.Get(name); ok {
				missing = append(missing, col)
			}
		}
		if doc.AppendItems(missing) {
			res.Fixes = append(res.Fixes, Fix{
				Kind:    FixAddedColumns,
				Message: fmt.Sprintf("Added missing column(s) from DDL: %s.", strings.Join(diff.DDLOnly, ", ")),
			})
			e.log.Info("Synthesized missing columns.", zap.Strings("columns", diff.DDLOnly))
		}
	}

	for _, mm := range diff.Mismatches {
		// Narrow, name-specific heuristic: the extractor is known to drop the
		// NOT NULL marker on the ID identity column. Everything else is
		// reported, never corrected.
		if mm.Column != "ID" || !mm.NotNullMismatch() {
			continue
		}
		ddlCol, _ := ddlCols.Get(mm.Column)
		if !ddlCol.NotNull || !doc.HasIdentity(mm.Column) {
			continue
		}
		if doc.ForceNotNull(mm.Column) {
			res.Fixes = append(res.Fixes, Fix{
				Kind:    FixForcedNotNull,
				Message: fmt.Sprintf("Restored NOT NULL on identity column %s.", mm.Column),
			})
			e.log.Info("Restored NOT NULL marker.", zap.String("column", mm.Column))
		}
	}

	if e.opts.NormalizeStartWith {
		for _, ch := range doc.NormalizeStartWith("1") {
			res.Fixes = append(res.Fixes, Fix{
				Kind:    FixNormalizedStart,
				Message: fmt.Sprintf("Normalized START_WITH on %s: %s -> 1.", ch.Column, ch.Original),
			})
		}
	}

	oldOrder := doc.Order()
	newOrder := buildTargetOrder(ddlCols.Names(), oldOrder)
	// Duplicate-named metadata items share one slot in the name sequence; the
	// comparison must not flag them as an order change on every pass.
	if !equalOrder(dedupeNames(oldOrder), newOrder) {
		doc.ReorderColumns(newOrder)
		res.Fixes = append(res.Fixes, Fix{
			Kind:     FixReorderedColumns,
			Message:  "Reordered columns to match DDL declaration order.",
			OldOrder: oldOrder,
			NewOrder: newOrder,
		})
		e.log.Info("Reordered columns.",
			zap.Strings("from", oldOrder),
			zap.Strings("to", newOrder))
	}

	res.Residual = schema.Compare(ddlCols, doc.Columns())

	if len(res.Fixes) > 0 {
		serialized, err := doc.Serialize()
		if err != nil {
			return nil, fmt.Errorf("serializing corrected metadata: %w", err)
		}
		res.CorrectedSXML = serialized
		res.Modified = true
	}
	return res, nil
}

// buildTargetOrder puts DDL-declared names first, in declaration order, then
// every metadata-only name in its current relative order.
func buildTargetOrder(ddlNames, current []string) []string {
	inDDL := make(map[string]bool, len(ddlNames))
	for _, n := range ddlNames {
		inDDL[n] = true
	}
	present := make(map[string]bool, len(current))
	for _, n := range current {
		present[n] = true
	}

	order := make([]string, 0, len(current))
	for _, n := range ddlNames {
		if present[n] {
			order = append(order, n)
		}
	}
	for _, n := range dedupeNames(current) {
		if !inDDL[n] {
			order = append(order, n)
		}
	}
	return order
}

// dedupeNames keeps the first occurrence of every name.
func dedupeNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

func equalOrder(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// FixKinds returns the distinct fix kinds in a result, sorted, for metric
// labels.
func (r *Result) FixKinds() []FixKind {
	seen := make(map[FixKind]bool)
	var kinds []FixKind
	for _, f := range r.Fixes {
		if !seen[f.Kind] {
			seen[f.Kind] = true
			kinds = append(kinds, f.Kind)
		}
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
