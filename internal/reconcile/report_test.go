// internal/reconcile/report_test.go
package reconcile

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/arwahdevops/sxmlsync/internal/schema"
)

func TestBuildReportSections(t *testing.T) {
	res := &Result{
		Modified:      true,
		CorrectedSXML: "<TABLE><NAME>T</NAME></TABLE>",
		Fixes: []Fix{
			{Kind: FixAddedColumns, Message: "Added missing column(s) from DDL: CREATED_AT."},
			{
				Kind:     FixReorderedColumns,
				Message:  "Reordered columns to match DDL declaration order.",
				OldOrder: []string{"NAME", "ID"},
				NewOrder: []string{"ID", "NAME"},
			},
		},
		Residual: schema.Diff{
			MetadataOnly: []string{"NOTES"},
			Mismatches: []schema.AttributeMismatch{
				{Column: "NAME", Details: []string{"length (ddl: '100', sxml: '255')"}},
			},
		},
	}

	report := BuildReport(ReportInput{
		Path:         "hr_employees.sql",
		DDL:          "CREATE TABLE \"HR\".\"EMPLOYEES\" (\n  \"ID\" NUMBER(10,0)\n);\n",
		OriginalSXML: "<TABLE><NAME>T</NAME></TABLE>",
		Result:       res,
		VCSDiff:      "-<LENGTH>100</LENGTH>\n+<LENGTH>255</LENGTH>\n",
		GeneratedAt:  time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC),
	})

	assert.True(t, strings.HasPrefix(report, "<!--\n  Discrepancy Report for hr_employees.sql\n"))
	assert.Contains(t, report, "Generated: 2026-08-23T10:00:00Z")
	assert.Contains(t, report, "- Added missing column(s) from DDL: CREATED_AT.")
	assert.Contains(t, report, "was: NAME, ID")
	assert.Contains(t, report, "now: ID, NAME")
	assert.Contains(t, report, "Columns only in SXML: NOTES")
	assert.Contains(t, report, "Attribute mismatch on NAME:")
	assert.Contains(t, report, "length (ddl: '100', sxml: '255')")
	assert.Contains(t, report, "<!-- Original DDL from .sql file -->")
	assert.Contains(t, report, "<!-- Original SXML from snapshot marker -->")
	assert.Contains(t, report, "<!-- Corrected SXML -->")
	assert.Contains(t, report, "<!-- Normalized diff against committed version -->")
}

func TestBuildReportOmitsEmptySections(t *testing.T) {
	report := BuildReport(ReportInput{
		Path:         "t.sql",
		DDL:          "CREATE TABLE T (X NUMBER);",
		OriginalSXML: "<TABLE/>",
		Result:       &Result{},
		GeneratedAt:  time.Now(),
	})
	assert.Contains(t, report, "Applied fixes: none")
	assert.Contains(t, report, "Remaining discrepancies: none")
	assert.NotContains(t, report, "<!-- Corrected SXML -->")
	assert.NotContains(t, report, "Normalized diff")
}

func TestBuildReportUnparseableSXMLVerbatim(t *testing.T) {
	raw := "<TABLE><broken"
	report := BuildReport(ReportInput{
		Path:         "t.sql",
		DDL:          "CREATE TABLE T (X NUMBER);",
		OriginalSXML: raw,
		Result:       &Result{},
		GeneratedAt:  time.Now(),
	})
	assert.Contains(t, report, raw, "unparseable markup is embedded verbatim")
}
