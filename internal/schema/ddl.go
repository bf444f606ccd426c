// internal/schema/ddl.go
package schema

import (
	"database/sql"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// The extractor is deliberately lenient: it locates the single
// column-definition block and classifies the lines that look like column
// declarations. Constraint clauses, comments and anything else it does not
// recognize are skipped, never rejected.
var (
	// Greedy inner group so the block runs to the outermost closing paren.
	reCreateTable = regexp.MustCompile(`(?is)CREATE\s+TABLE\s+.*?\((.*)\)`)
	reColumnLine  = regexp.MustCompile(`(?m)^[ \t]*"([^"]+)"[ \t]+(.+)$`)
	reParenLength = regexp.MustCompile(`\((\d+)`)
	reNumberPS    = regexp.MustCompile(`(?i)NUMBER\s*\(\s*(\d+)\s*,\s*(\d+)\s*\)`)
	reNumberP     = regexp.MustCompile(`(?i)NUMBER\s*\(\s*(\d+)\s*\)`)
	reTimestampS  = regexp.MustCompile(`(?i)TIMESTAMP\s*\(\s*(\d+)\s*\)`)
)

// ExtractColumns pulls the ordered column set out of a CREATE TABLE
// statement. DDL without a recognizable definition block yields an empty set,
// not an error. Declaration order is preserved and later treated as the
// authoritative order.
func ExtractColumns(ddl string, log *zap.Logger) *ColumnSet {
	set := NewColumnSet()
	m := reCreateTable.FindStringSubmatch(ddl)
	if m == nil {
		log.Debug("No recognizable column-definition block found in DDL.")
		return set
	}
	for _, lm := range reColumnLine.FindAllStringSubmatch(m[1], -1) {
		name := NormalizeName(lm[1])
		definition := strings.TrimSuffix(strings.TrimSpace(lm[2]), ",")
		col := classifyDefinition(name, definition)
		if !set.Add(col) {
			log.Warn("Duplicate column declaration in DDL ignored.",
				zap.String("column", name))
		}
	}
	return set
}

// classifyDefinition reads one "NAME TYPE ..." definition. The first
// whitespace-delimited token selects the datatype; the remainder supplies the
// type modifiers and nullability.
func classifyDefinition(name, definition string) ColumnAttributes {
	col := ColumnAttributes{Name: name}
	upper := strings.ToUpper(definition)
	col.NotNull = strings.Contains(upper, "NOT NULL")

	fields := strings.Fields(upper)
	if len(fields) == 0 {
		return col
	}

	switch token := fields[0]; {
	case strings.HasPrefix(token, "VARCHAR2"):
		col.Datatype = DatatypeVarchar2
		if lm := reParenLength.FindStringSubmatch(definition); lm != nil {
			col.Length = sql.NullString{String: lm[1], Valid: true}
		}
	case strings.HasPrefix(token, "NUMBER"):
		col.Datatype = DatatypeNumber
		if pm := reNumberPS.FindStringSubmatch(definition); pm != nil {
			col.Precision = sql.NullString{String: pm[1], Valid: true}
			col.Scale = sql.NullString{String: pm[2], Valid: true}
		} else if pm := reNumberP.FindStringSubmatch(definition); pm != nil {
			// NUMBER(p) means scale 0, which is a known value, not "unset".
			col.Precision = sql.NullString{String: pm[1], Valid: true}
			col.Scale = sql.NullString{String: "0", Valid: true}
		}
	case strings.HasPrefix(token, "DATE"):
		col.Datatype = DatatypeDate
	case strings.HasPrefix(token, "CLOB"):
		col.Datatype = DatatypeClob
	case strings.HasPrefix(token, "BLOB"):
		col.Datatype = DatatypeBlob
	case strings.HasPrefix(token, "TIMESTAMP"):
		// All timestamp flavors are tracked as the local-time-zone variant.
		col.Datatype = DatatypeTimestampLTZ
		if sm := reTimestampS.FindStringSubmatch(definition); sm != nil {
			col.Scale = sql.NullString{String: sm[1], Valid: true}
		}
	default:
		col.Datatype = DatatypeUnknown
	}
	return col
}
