// internal/schema/diff_test.go
package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setOf(t *testing.T, cols ...ColumnAttributes) *ColumnSet {
	t.Helper()
	s := NewColumnSet()
	for _, c := range cols {
		require.True(t, s.Add(c))
	}
	return s
}

func TestCompareDisjointAndCommon(t *testing.T) {
	ddl := setOf(t,
		ColumnAttributes{Name: "ID", Datatype: DatatypeNumber, Precision: nullStr("10"), Scale: nullStr("0"), NotNull: true},
		ColumnAttributes{Name: "NAME", Datatype: DatatypeVarchar2, Length: nullStr("100")},
		ColumnAttributes{Name: "CREATED_AT", Datatype: DatatypeDate},
	)
	meta := setOf(t,
		ColumnAttributes{Name: "ID", Datatype: DatatypeNumber, Precision: nullStr("10"), Scale: nullStr("0")},
		ColumnAttributes{Name: "NAME", Datatype: DatatypeVarchar2, Length: nullStr("255")},
		ColumnAttributes{Name: "NOTES", Datatype: DatatypeClob},
	)

	diff := Compare(ddl, meta)
	assert.Equal(t, []string{"CREATED_AT"}, diff.DDLOnly)
	assert.Equal(t, []string{"NOTES"}, diff.MetadataOnly)
	require.Len(t, diff.Mismatches, 2)

	idMismatch, ok := diff.MismatchFor("ID")
	require.True(t, ok)
	assert.True(t, idMismatch.NotNullMismatch())
	assert.Equal(t, []string{"not_null (ddl: true, sxml: false)"}, idMismatch.Details)

	nameMismatch, ok := diff.MismatchFor("NAME")
	require.True(t, ok)
	assert.False(t, nameMismatch.NotNullMismatch())
	assert.Equal(t, []string{"length (ddl: '100', sxml: '255')"}, nameMismatch.Details)
}

func TestCompareMissingScaleIsNotDefaultScale(t *testing.T) {
	// NUMBER(10) in DDL means scale 0; metadata with no SCALE element is
	// "unknown", and the two must be reported as different.
	ddl := setOf(t, ColumnAttributes{Name: "N", Datatype: DatatypeNumber, Precision: nullStr("10"), Scale: nullStr("0")})
	meta := setOf(t, ColumnAttributes{Name: "N", Datatype: DatatypeNumber, Precision: nullStr("10")})

	diff := Compare(ddl, meta)
	require.Len(t, diff.Mismatches, 1)
	assert.Equal(t, []string{"scale (ddl: '0', sxml: <unset>)"}, diff.Mismatches[0].Details)
}

func TestCompareEqualSetsIsEmpty(t *testing.T) {
	cols := []ColumnAttributes{
		{Name: "ID", Datatype: DatatypeNumber, Precision: nullStr("10"), Scale: nullStr("0"), NotNull: true},
		{Name: "PAYLOAD", Datatype: DatatypeBlob},
	}
	diff := Compare(setOf(t, cols...), setOf(t, cols...))
	assert.True(t, diff.Empty())
}

func TestColumnAttributesEqual(t *testing.T) {
	gen := &IdentityGenerator{Generation: "DEFAULT", StartWith: "1", Increment: "1", MinValue: "1", MaxValue: "9999999999999999999999999999", Cache: "20"}
	a := ColumnAttributes{Name: "ID", Datatype: DatatypeNumber, NotNull: true, Identity: gen}
	b := a
	assert.True(t, a.Equal(b))

	b.Identity = &IdentityGenerator{Generation: "DEFAULT", StartWith: "500", Increment: "1", MinValue: "1", MaxValue: "9999999999999999999999999999", Cache: "20"}
	assert.False(t, a.Equal(b), "identity start values differ")

	b.Identity = nil
	assert.False(t, a.Equal(b), "missing generator block is not equivalent to a present one")
}

func TestNumericallyEqual(t *testing.T) {
	assert.True(t, NumericallyEqual("1", "1"))
	assert.True(t, NumericallyEqual("01", "1"))
	assert.True(t, NumericallyEqual("9999999999999999999999999999", "9999999999999999999999999999"), "values beyond int64 still compare")
	assert.False(t, NumericallyEqual("500", "1"))
	assert.False(t, NumericallyEqual("", "1"))
}
