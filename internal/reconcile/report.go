// internal/reconcile/report.go
package reconcile

import (
	"fmt"
	"strings"
	"time"

	"github.com/arwahdevops/sxmlsync/internal/sxml"
)

// ReportInput collects everything the report for one snapshot file needs.
type ReportInput struct {
	Path         string
	DDL          string
	OriginalSXML string
	Result       *Result
	// VCSDiff is an optional normalized diff against the committed version;
	// empty means no side-channel comparison ran.
	VCSDiff     string
	GeneratedAt time.Time
}

// BuildReport renders the human-readable discrepancy report written next to
// a snapshot file. The report is itself valid SQL commentary so it can be
// opened with the same tooling as the snapshot.
func BuildReport(in ReportInput) string {
	var b strings.Builder

	b.WriteString("<!--\n")
	fmt.Fprintf(&b, "  Discrepancy Report for %s\n", in.Path)
	fmt.Fprintf(&b, "  Generated: %s\n", in.GeneratedAt.UTC().Format(time.RFC3339))
	b.WriteString("\n")

	if len(in.Result.Fixes) == 0 {
		b.WriteString("  Applied fixes: none\n")
	} else {
		b.WriteString("  Applied fixes:\n")
		for _, fix := range in.Result.Fixes {
			fmt.Fprintf(&b, "    - %s\n", fix.Message)
			if fix.Kind == FixReorderedColumns {
				fmt.Fprintf(&b, "      was: %s\n", strings.Join(fix.OldOrder, ", "))
				fmt.Fprintf(&b, "      now: %s\n", strings.Join(fix.NewOrder, ", "))
			}
		}
	}
	b.WriteString("\n")

	writeResidual(&b, in.Result)
	b.WriteString("-->\n\n")

	b.WriteString("<!-- Original DDL from .sql file -->\n")
	b.WriteString(strings.TrimRight(in.DDL, "\n"))
	b.WriteString("\n\n")

	b.WriteString("<!-- Original SXML from snapshot marker -->\n")
	b.WriteString(sxml.Pretty(in.OriginalSXML))
	b.WriteString("\n")

	if in.Result.Modified {
		b.WriteString("\n<!-- Corrected SXML -->\n")
		b.WriteString(sxml.Pretty(in.Result.CorrectedSXML))
		b.WriteString("\n")
	}

	if in.VCSDiff != "" {
		b.WriteString("\n<!-- Normalized diff against committed version -->\n")
		b.WriteString(strings.TrimRight(in.VCSDiff, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}

func writeResidual(b *strings.Builder, res *Result) {
	if res.Residual.Empty() {
		b.WriteString("  Remaining discrepancies: none\n")
		return
	}
	b.WriteString("  Remaining discrepancies:\n")
	if len(res.Residual.DDLOnly) > 0 {
		fmt.Fprintf(b, "    Columns only in DDL: %s\n", strings.Join(res.Residual.DDLOnly, ", "))
	}
	if len(res.Residual.MetadataOnly) > 0 {
		fmt.Fprintf(b, "    Columns only in SXML: %s\n", strings.Join(res.Residual.MetadataOnly, ", "))
	}
	for _, mm := range res.Residual.Mismatches {
		fmt.Fprintf(b, "    Attribute mismatch on %s:\n", mm.Column)
		for _, detail := range mm.Details {
			fmt.Fprintf(b, "      - %s\n", detail)
		}
	}
}
