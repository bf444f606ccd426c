// internal/run/orchestrator_test.go
package run

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arwahdevops/sxmlsync/internal/config"
	"github.com/arwahdevops/sxmlsync/internal/metrics"
	"github.com/arwahdevops/sxmlsync/internal/reconcile"
	"github.com/arwahdevops/sxmlsync/internal/snapshot"
	"github.com/arwahdevops/sxmlsync/internal/sxml"
)

const testDDL = `CREATE TABLE "HR"."T" (
  "ID" NUMBER(10,0) NOT NULL ENABLE,
  "NAME" VARCHAR2(255)
);
`

// Metadata is missing NAME and the NOT_NULL marker on the identity column.
const testMarkerSXML = `<TABLE><SCHEMA>HR</SCHEMA><NAME>T</NAME><RELATIONAL_TABLE><COL_LIST><COL_LIST_ITEM><NAME>ID</NAME><DATATYPE>NUMBER</DATATYPE><PRECISION>10</PRECISION><SCALE>0</SCALE><IDENTITY_COLUMN><SCHEMA>HR</SCHEMA><NAME>ISEQ</NAME><GENERATION>DEFAULT</GENERATION><START_WITH>1</START_WITH><INCREMENT>1</INCREMENT><MINVALUE>1</MINVALUE><MAXVALUE>9999999999999999999999999999</MAXVALUE><CACHE>20</CACHE></IDENTITY_COLUMN></COL_LIST_ITEM></COL_LIST></RELATIONAL_TABLE></TABLE>`

func snapshotContent() string {
	return testDDL + "\n-- sqlcl_snapshot {\"hash\":\"abc\",\"sxml\":\"" + testMarkerSXML + "\"}\n"
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		ScanDir:           dir,
		Workers:           2,
		FileTimeout:       10 * time.Second,
		MarkerPrefix:      snapshot.DefaultMarkerPrefix,
		CleanStaleReports: true,
	}
}

func newTestOrchestrator(t *testing.T, cfg *config.Config) *Orchestrator {
	t.Helper()
	defaults := config.GeneratorDefaults{
		Generation: "DEFAULT",
		Increment:  "1",
		MinValue:   "1",
		MaxValue:   "9999999999999999999999999999",
		Cache:      "20",
	}
	repairer := sxml.NewRepairer(nil, defaults, zap.NewNop())
	engine := reconcile.New(repairer, reconcile.Options{}, zap.NewNop())
	return NewOrchestrator(cfg, engine, nil, metrics.NewMetricsStore(), zap.NewNop())
}

func TestRunFixesSnapshotFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hr_t.sql")
	require.NoError(t, os.WriteFile(path, []byte(snapshotContent()), 0o644))

	cfg := testConfig(dir)
	o := newTestOrchestrator(t, cfg)
	results := o.Run(context.Background())

	require.Len(t, results, 1)
	res := results[path]
	require.False(t, res.Failed(), "result: %+v", res)
	assert.Equal(t, "fixed", res.Outcome())
	assert.Greater(t, res.FixCount, 0)
	assert.False(t, res.HasResidual)

	rewritten, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(rewritten)
	assert.True(t, strings.HasPrefix(content, testDDL), "DDL text above the marker is untouched")

	idx, line := snapshot.FindMarker(content, snapshot.DefaultMarkerPrefix)
	require.GreaterOrEqual(t, idx, 0)
	m, err := snapshot.ParseMarker(line, snapshot.DefaultMarkerPrefix)
	require.NoError(t, err)
	fixed, err := m.SXML()
	require.NoError(t, err)
	doc, err := sxml.Parse(fixed)
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "NAME"}, doc.Order())
	id, _ := doc.Columns().Get("ID")
	assert.True(t, id.NotNull)

	reportPath := filepath.Join(dir, "hr_t.log")
	report, err := os.ReadFile(reportPath)
	require.NoError(t, err, "a report is written when fixes were applied")
	assert.Contains(t, string(report), "Discrepancy Report")

	// A second run over the fixed tree is a clean no-op; the stale report
	// from the first run is cleaned up and not re-created.
	results = o.Run(context.Background())
	res = results[path]
	assert.Equal(t, "clean", res.Outcome())
	_, err = os.Stat(reportPath)
	assert.True(t, os.IsNotExist(err), "stale report is removed on a clean pass")
}

func TestRunSkipsFileWithoutMarker(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plain.sql")
	require.NoError(t, os.WriteFile(path, []byte("CREATE TABLE T (X NUMBER);\n"), 0o644))

	o := newTestOrchestrator(t, testConfig(dir))
	results := o.Run(context.Background())
	res := results[path]
	assert.True(t, res.Skipped)
	assert.Equal(t, "skipped", res.Outcome())
}

func TestRunDryRunWritesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hr_t.sql")
	original := snapshotContent()
	require.NoError(t, os.WriteFile(path, []byte(original), 0o644))

	cfg := testConfig(dir)
	cfg.DryRun = true
	o := newTestOrchestrator(t, cfg)
	results := o.Run(context.Background())

	res := results[path]
	assert.Equal(t, "fixed", res.Outcome(), "fixes are still computed in dry-run mode")

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, string(after), "snapshot file is untouched")
	_, err = os.Stat(filepath.Join(dir, "hr_t.log"))
	assert.True(t, os.IsNotExist(err), "no report in dry-run mode")
}

func TestRunBadMarkerIsFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.sql")
	require.NoError(t, os.WriteFile(path, []byte("CREATE TABLE T (X NUMBER);\n-- sqlcl_snapshot {\"hash\":\"x\"}\n"), 0o644))

	o := newTestOrchestrator(t, testConfig(dir))
	results := o.Run(context.Background())
	res := results[path]
	assert.Equal(t, "failed", res.Outcome())
	assert.Error(t, res.MarkerError)
}

func TestRunCancelledContextSkipsFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.sql", "b.sql"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(snapshotContent()), 0o644))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := newTestOrchestrator(t, testConfig(dir))
	results := o.Run(ctx)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.True(t, res.Skipped, "result: %+v", res)
	}
}
