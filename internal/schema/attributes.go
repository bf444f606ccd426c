// internal/schema/attributes.go
package schema

import (
	"database/sql"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// Datatype enumerates the column datatypes modeled by the reconciler.
// Anything else encountered in the metadata is carried through as-is and
// compares as an opaque string.
type Datatype string

const (
	DatatypeUnknown      Datatype = ""
	DatatypeVarchar2     Datatype = "VARCHAR2"
	DatatypeNumber       Datatype = "NUMBER"
	DatatypeDate         Datatype = "DATE"
	DatatypeClob         Datatype = "CLOB"
	DatatypeBlob         Datatype = "BLOB"
	DatatypeTimestampLTZ Datatype = "TIMESTAMP_WITH_LOCAL_TIMEZONE"
)

// IdentityGenerator describes the auto-increment sub-block of a column.
// Values are carried as raw text: MAXVALUE in the wild is 28 nines, which does
// not fit an int64, so numeric comparisons go through apd instead.
type IdentityGenerator struct {
	Generation string
	OnNull     bool
	StartWith  string
	Increment  string
	MinValue   string
	MaxValue   string
	Cache      string
}

// Equal compares two generator blocks field by field. A nil block is only
// equal to another nil block.
func (g *IdentityGenerator) Equal(o *IdentityGenerator) bool {
	if g == nil || o == nil {
		return g == o
	}
	return g.Generation == o.Generation &&
		g.OnNull == o.OnNull &&
		g.StartWith == o.StartWith &&
		g.Increment == o.Increment &&
		g.MinValue == o.MinValue &&
		g.MaxValue == o.MaxValue &&
		g.Cache == o.Cache
}

// ColumnAttributes is the canonical, format-independent record of one column.
// Length/Precision/Scale are nullable: an absent field is "unknown", which is
// not the same as a present default. NUMBER(10) carries an explicit scale "0";
// bare NUMBER carries none.
type ColumnAttributes struct {
	Name      string // normalized to upper case
	Datatype  Datatype
	Length    sql.NullString
	Precision sql.NullString
	Scale     sql.NullString
	NotNull   bool
	Identity  *IdentityGenerator
}

// Equal compares every modeled field, including the identity block. A missing
// optional field never equals a present one.
func (c ColumnAttributes) Equal(o ColumnAttributes) bool {
	return c.Name == o.Name &&
		c.Datatype == o.Datatype &&
		c.Length == o.Length &&
		c.Precision == o.Precision &&
		c.Scale == o.Scale &&
		c.NotNull == o.NotNull &&
		c.Identity.Equal(o.Identity)
}

// NormalizeName upper-cases an identifier. All name lookups in the reconciler
// go through this, never through a case-insensitive comparator.
func NormalizeName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// ColumnSet is an ordered sequence of columns sourced from one representation
// of a table. Names are unique after normalization; the first occurrence wins.
type ColumnSet struct {
	columns []ColumnAttributes
	index   map[string]int
}

func NewColumnSet() *ColumnSet {
	return &ColumnSet{index: make(map[string]int)}
}

// Add appends a column unless its normalized name is already present.
// It reports whether the column was added.
func (s *ColumnSet) Add(col ColumnAttributes) bool {
	col.Name = NormalizeName(col.Name)
	if _, exists := s.index[col.Name]; exists {
		return false
	}
	s.index[col.Name] = len(s.columns)
	s.columns = append(s.columns, col)
	return true
}

func (s *ColumnSet) Get(name string) (ColumnAttributes, bool) {
	i, ok := s.index[NormalizeName(name)]
	if !ok {
		return ColumnAttributes{}, false
	}
	return s.columns[i], true
}

func (s *ColumnSet) Has(name string) bool {
	_, ok := s.index[NormalizeName(name)]
	return ok
}

// Names returns the column names in set order.
func (s *ColumnSet) Names() []string {
	names := make([]string, len(s.columns))
	for i, c := range s.columns {
		names[i] = c.Name
	}
	return names
}

// Columns returns the records in set order. The slice is shared; callers must
// not mutate it.
func (s *ColumnSet) Columns() []ColumnAttributes {
	return s.columns
}

func (s *ColumnSet) Len() int {
	return len(s.columns)
}

// NumericallyEqual reports whether two generator values denote the same
// number. Unparseable values fall back to exact string comparison.
func NumericallyEqual(a, b string) bool {
	x, _, errX := apd.NewFromString(strings.TrimSpace(a))
	y, _, errY := apd.NewFromString(strings.TrimSpace(b))
	if errX != nil || errY != nil {
		return a == b
	}
	return x.Cmp(y) == 0
}
