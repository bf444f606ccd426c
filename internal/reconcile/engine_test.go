// internal/reconcile/engine_test.go
package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arwahdevops/sxmlsync/internal/config"
	"github.com/arwahdevops/sxmlsync/internal/sxml"
)

// DDL declares ID, NAME, CREATED_AT; the metadata below has NAME and ID
// swapped, is missing CREATED_AT, and lost ID's NOT_NULL marker.
const testDDL = `CREATE TABLE "HR"."EMPLOYEES" (
  "ID" NUMBER(10,0) NOT NULL ENABLE,
  "NAME" VARCHAR2(255) NOT NULL ENABLE,
  "CREATED_AT" DATE
);`

const testSXML = `<TABLE xmlns="http://xmlns.oracle.com/ku" version="1.0">
  <SCHEMA>HR</SCHEMA>
  <NAME>EMPLOYEES</NAME>
  <RELATIONAL_TABLE>
    <COL_LIST>
      <COL_LIST_ITEM>
        <NAME>NAME</NAME>
        <DATATYPE>VARCHAR2</DATATYPE>
        <LENGTH>255</LENGTH>
        <NOT_NULL></NOT_NULL>
      </COL_LIST_ITEM>
      <COL_LIST_ITEM>
        <NAME>ID</NAME>
        <DATATYPE>NUMBER</DATATYPE>
        <PRECISION>10</PRECISION>
        <SCALE>0</SCALE>
        <IDENTITY_COLUMN>
          <SCHEMA>HR</SCHEMA>
          <NAME>ISEQ$$_62310</NAME>
          <GENERATION>DEFAULT</GENERATION>
          <START_WITH>500</START_WITH>
          <INCREMENT>1</INCREMENT>
          <MINVALUE>1</MINVALUE>
          <MAXVALUE>9999999999999999999999999999</MAXVALUE>
          <CACHE>20</CACHE>
        </IDENTITY_COLUMN>
      </COL_LIST_ITEM>
      <COL_LIST_ITEM>
        <NAME>NOTES</NAME>
        <DATATYPE>CLOB</DATATYPE>
      </COL_LIST_ITEM>
    </COL_LIST>
  </RELATIONAL_TABLE>
</TABLE>`

func testEngine(opts Options) *Engine {
	defaults := config.GeneratorDefaults{
		Generation: "DEFAULT",
		Increment:  "1",
		MinValue:   "1",
		MaxValue:   "9999999999999999999999999999",
		Cache:      "20",
	}
	repairer := sxml.NewRepairer(nil, defaults, zap.NewNop())
	return New(repairer, opts, zap.NewNop())
}

func fixKinds(res *Result) []FixKind {
	kinds := make([]FixKind, 0, len(res.Fixes))
	for _, f := range res.Fixes {
		kinds = append(kinds, f.Kind)
	}
	return kinds
}

func TestReconcileFullPass(t *testing.T) {
	e := testEngine(Options{})
	res, err := e.Reconcile(context.Background(), testDDL, testSXML)
	require.NoError(t, err)

	require.True(t, res.Modified)
	assert.False(t, res.Repaired)
	assert.Contains(t, fixKinds(res), FixAddedColumns, "CREATED_AT is missing from metadata")
	assert.Contains(t, fixKinds(res), FixForcedNotNull, "ID lost its NOT NULL marker")
	assert.Contains(t, fixKinds(res), FixReorderedColumns)
	assert.NotContains(t, fixKinds(res), FixNormalizedStart, "start normalization is off by default")

	doc, err := sxml.Parse(res.CorrectedSXML)
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "NAME", "CREATED_AT", "NOTES"},
		doc.Order(), "DDL order first, metadata-only columns follow")

	id, _ := doc.Columns().Get("ID")
	assert.True(t, id.NotNull)
	require.NotNil(t, id.Identity)
	assert.Equal(t, "500", id.Identity.StartWith, "start value untouched without the flag")

	created, ok := doc.Columns().Get("CREATED_AT")
	require.True(t, ok)
	assert.Equal(t, "DATE", string(created.Datatype))

	assert.Empty(t, res.Residual.DDLOnly)
	assert.Empty(t, res.Residual.Mismatches)
	assert.Equal(t, []string{"NOTES"}, res.Residual.MetadataOnly, "metadata-only columns are reported, never removed")
}

func TestReconcileIsIdempotent(t *testing.T) {
	e := testEngine(Options{NormalizeStartWith: true})
	first, err := e.Reconcile(context.Background(), testDDL, testSXML)
	require.NoError(t, err)
	require.True(t, first.Modified)

	second, err := e.Reconcile(context.Background(), testDDL, first.CorrectedSXML)
	require.NoError(t, err)
	assert.False(t, second.Modified, "a second pass over corrected output must be a no-op")
	assert.Empty(t, second.Fixes)
	assert.Equal(t, first.Residual, second.Residual)
}

func TestReconcileNormalizesStartWith(t *testing.T) {
	e := testEngine(Options{NormalizeStartWith: true})
	res, err := e.Reconcile(context.Background(), testDDL, testSXML)
	require.NoError(t, err)

	assert.Contains(t, fixKinds(res), FixNormalizedStart)
	doc, err := sxml.Parse(res.CorrectedSXML)
	require.NoError(t, err)
	id, _ := doc.Columns().Get("ID")
	assert.Equal(t, "1", id.Identity.StartWith)

	// The fix record carries the replaced value.
	found := false
	for _, fix := range res.Fixes {
		if fix.Kind == FixNormalizedStart {
			assert.Contains(t, fix.Message, "500")
			found = true
		}
	}
	assert.True(t, found)
}

func TestReconcileCleanSnapshotUntouched(t *testing.T) {
	// Metadata already matches the DDL: same columns, same order, and this
	// DDL does not declare ID as NOT NULL.
	ddl := `CREATE TABLE "HR"."EMPLOYEES" (
  "NAME" VARCHAR2(255) NOT NULL ENABLE,
  "ID" NUMBER(10,0),
  "NOTES" CLOB
);`
	e := testEngine(Options{})
	res, err := e.Reconcile(context.Background(), ddl, testSXML)
	require.NoError(t, err)
	assert.False(t, res.Modified)
	assert.Empty(t, res.CorrectedSXML)
	assert.True(t, res.Residual.Empty())
}

func TestReconcileReportsResidualMismatches(t *testing.T) {
	// Length disagrees; nothing auto-correctable, so order and content stay.
	ddl := `CREATE TABLE "HR"."EMPLOYEES" (
  "NAME" VARCHAR2(100) NOT NULL ENABLE,
  "ID" NUMBER(10,0),
  "NOTES" CLOB
);`
	e := testEngine(Options{})
	res, err := e.Reconcile(context.Background(), ddl, testSXML)
	require.NoError(t, err)

	assert.False(t, res.Modified, "attribute mismatches alone trigger no rewrite")
	require.Len(t, res.Residual.Mismatches, 1)
	assert.Equal(t, "NAME", res.Residual.Mismatches[0].Column)
	assert.Contains(t, res.Residual.Mismatches[0].Details[0], "length")
}

func TestReconcileNotNullFixupIsNarrow(t *testing.T) {
	ddl := `CREATE TABLE "HR"."T" (
  "NAME" VARCHAR2(255) NOT NULL ENABLE,
  "SEQ_NO" NUMBER NOT NULL ENABLE
);`
	testCases := []struct {
		name string
		col  string
		raw  string
	}{
		{
			// NAME has no identity block; the fixup must not apply.
			"no identity block",
			"NAME",
			`<TABLE><RELATIONAL_TABLE><COL_LIST>
      <COL_LIST_ITEM><NAME>NAME</NAME><DATATYPE>VARCHAR2</DATATYPE><LENGTH>255</LENGTH></COL_LIST_ITEM>
    </COL_LIST></RELATIONAL_TABLE></TABLE>`,
		},
		{
			// Identity block present, but the column is not named ID.
			"identity column not named ID",
			"SEQ_NO",
			`<TABLE><RELATIONAL_TABLE><COL_LIST>
      <COL_LIST_ITEM><NAME>SEQ_NO</NAME><DATATYPE>NUMBER</DATATYPE>
        <IDENTITY_COLUMN><GENERATION>DEFAULT</GENERATION><START_WITH>1</START_WITH></IDENTITY_COLUMN>
      </COL_LIST_ITEM>
    </COL_LIST></RELATIONAL_TABLE></TABLE>`,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e := testEngine(Options{})
			res, err := e.Reconcile(context.Background(), ddl, tc.raw)
			require.NoError(t, err)
			assert.NotContains(t, fixKinds(res), FixForcedNotNull)

			mm, ok := res.Residual.MismatchFor(tc.col)
			require.True(t, ok)
			assert.True(t, mm.NotNullMismatch())
		})
	}
}

func TestReconcileKeepsDuplicateMetadataItems(t *testing.T) {
	ddl := `CREATE TABLE "HR"."T" ("ID" NUMBER(10,0));`

	t.Run("in order already", func(t *testing.T) {
		raw := `<TABLE><RELATIONAL_TABLE><COL_LIST>
      <COL_LIST_ITEM><NAME>ID</NAME><DATATYPE>NUMBER</DATATYPE><PRECISION>10</PRECISION><SCALE>0</SCALE></COL_LIST_ITEM>
      <COL_LIST_ITEM><NAME>NOTES</NAME><DATATYPE>CLOB</DATATYPE></COL_LIST_ITEM>
      <COL_LIST_ITEM><NAME>NOTES</NAME><DATATYPE>CLOB</DATATYPE></COL_LIST_ITEM>
    </COL_LIST></RELATIONAL_TABLE></TABLE>`
		e := testEngine(Options{})
		res, err := e.Reconcile(context.Background(), ddl, raw)
		require.NoError(t, err)
		assert.False(t, res.Modified, "a duplicate name alone is not an order change")
		assert.Empty(t, res.Fixes)
	})

	t.Run("reorder keeps every item", func(t *testing.T) {
		raw := `<TABLE><RELATIONAL_TABLE><COL_LIST>
      <COL_LIST_ITEM><NAME>NOTES</NAME><DATATYPE>CLOB</DATATYPE></COL_LIST_ITEM>
      <COL_LIST_ITEM><NAME>ID</NAME><DATATYPE>NUMBER</DATATYPE><PRECISION>10</PRECISION><SCALE>0</SCALE></COL_LIST_ITEM>
      <COL_LIST_ITEM><NAME>NOTES</NAME><DATATYPE>CLOB</DATATYPE></COL_LIST_ITEM>
    </COL_LIST></RELATIONAL_TABLE></TABLE>`
		e := testEngine(Options{})
		res, err := e.Reconcile(context.Background(), ddl, raw)
		require.NoError(t, err)
		require.True(t, res.Modified)
		assert.Equal(t, []FixKind{FixReorderedColumns}, fixKinds(res))

		doc, err := sxml.Parse(res.CorrectedSXML)
		require.NoError(t, err)
		assert.Equal(t, []string{"ID", "NOTES", "NOTES"}, doc.Order(), "no metadata item is ever dropped")

		second, err := e.Reconcile(context.Background(), ddl, res.CorrectedSXML)
		require.NoError(t, err)
		assert.False(t, second.Modified)
	})
}

func TestReconcileRepairsCorruptMetadata(t *testing.T) {
	ddl := `CREATE TABLE "HR"."EMPLOYEES" ("ID" NUMBER(10,0));`
	corrupt := `<TABLE><SCHEMA>HR</SCHEMA><NAME>EMPLOYEES</NAME><RELATIONAL_TABLE><COL_LIST>
      <COL_LIST_ITEM><NAME>ID</NAME><DATATYPE>NUMBER</DATATYPE><PRECISION>10</PRECISION><SCALE>0</SCALE>
        <IDENTITY_COLUMN><SCHEMA>HR</SCHEMA><NAME>ISEQ$$_1</NAME>
      </COL_LIST_ITEM>
    </COL_LIST></RELATIONAL_TABLE></TABLE>`

	e := testEngine(Options{})
	res, err := e.Reconcile(context.Background(), ddl, corrupt)
	require.NoError(t, err)
	assert.True(t, res.Repaired)
	assert.True(t, res.Modified)
	assert.Contains(t, fixKinds(res), FixRepairedGenerator)

	_, err = sxml.Parse(res.CorrectedSXML)
	assert.NoError(t, err)
}

func TestReconcileUnrepairableMetadataFails(t *testing.T) {
	e := testEngine(Options{})
	_, err := e.Reconcile(context.Background(), "", `<TABLE><broken`)
	require.Error(t, err)
	assert.ErrorIs(t, err, sxml.ErrMalformedMetadata)
}
