// internal/schema/diff.go
package schema

import (
	"database/sql"
	"fmt"
)

// AttributeMismatch lists the differing attributes of one column that exists
// in both representations.
type AttributeMismatch struct {
	Column  string
	Details []string
}

// Diff is the outcome of comparing a DDL-derived column set against a
// metadata-derived one. DDLOnly keeps DDL declaration order; MetadataOnly
// keeps document order.
type Diff struct {
	DDLOnly      []string
	MetadataOnly []string
	Mismatches   []AttributeMismatch
}

func (d Diff) Empty() bool {
	return len(d.DDLOnly) == 0 && len(d.MetadataOnly) == 0 && len(d.Mismatches) == 0
}

// Compare diffs the two column sets. Attribute mismatches cover only the
// fields the DDL extractor models (type, length, precision, scale, not-null);
// the identity block is metadata-only knowledge and is handled by the
// engine's targeted fixups, not by this diff.
func Compare(ddl, meta *ColumnSet) Diff {
	var diff Diff
	for _, name := range ddl.Names() {
		if !meta.Has(name) {
			diff.DDLOnly = append(diff.DDLOnly, name)
		}
	}
	for _, name := range meta.Names() {
		if !ddl.Has(name) {
			diff.MetadataOnly = append(diff.MetadataOnly, name)
		}
	}
	for _, name := range ddl.Names() {
		metaCol, ok := meta.Get(name)
		if !ok {
			continue
		}
		ddlCol, _ := ddl.Get(name)
		if details := columnMismatches(ddlCol, metaCol); len(details) > 0 {
			diff.Mismatches = append(diff.Mismatches, AttributeMismatch{Column: name, Details: details})
		}
	}
	return diff
}

// MismatchFor returns the recorded mismatch for a column, if any.
func (d Diff) MismatchFor(name string) (AttributeMismatch, bool) {
	name = NormalizeName(name)
	for _, m := range d.Mismatches {
		if m.Column == name {
			return m, true
		}
	}
	return AttributeMismatch{}, false
}

func columnMismatches(ddl, meta ColumnAttributes) []string {
	var diffs []string
	if ddl.Datatype != meta.Datatype {
		diffs = append(diffs, fmt.Sprintf("type (ddl: %s, sxml: %s)", formatDatatype(ddl.Datatype), formatDatatype(meta.Datatype)))
	}
	if ddl.Length != meta.Length {
		diffs = append(diffs, fmt.Sprintf("length (ddl: %s, sxml: %s)", formatNullable(ddl.Length), formatNullable(meta.Length)))
	}
	if ddl.Precision != meta.Precision {
		diffs = append(diffs, fmt.Sprintf("precision (ddl: %s, sxml: %s)", formatNullable(ddl.Precision), formatNullable(meta.Precision)))
	}
	if ddl.Scale != meta.Scale {
		diffs = append(diffs, fmt.Sprintf("scale (ddl: %s, sxml: %s)", formatNullable(ddl.Scale), formatNullable(meta.Scale)))
	}
	if ddl.NotNull != meta.NotNull {
		diffs = append(diffs, fmt.Sprintf("not_null (ddl: %t, sxml: %t)", ddl.NotNull, meta.NotNull))
	}
	return diffs
}

// NotNullMismatch reports whether the mismatch details include a not-null
// difference. Used by the engine's ID fixup.
func (m AttributeMismatch) NotNullMismatch() bool {
	for _, d := range m.Details {
		if len(d) >= 8 && d[:8] == "not_null" {
			return true
		}
	}
	return false
}

func formatNullable(v sql.NullString) string {
	if !v.Valid {
		return "<unset>"
	}
	return fmt.Sprintf("'%s'", v.String)
}

func formatDatatype(d Datatype) string {
	if d == DatatypeUnknown {
		return "<unknown>"
	}
	return string(d)
}
