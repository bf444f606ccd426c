// internal/sxml/item.go
package sxml

import (
	"database/sql"
	"strings"

	"github.com/beevik/etree"

	"github.com/arwahdevops/sxmlsync/internal/schema"
)

// Fixed child element names of a COL_LIST_ITEM. The collation elements are
// not modeled by ColumnAttributes but are emitted on synthesis because the
// tracking system writes them for character types.
const (
	elemName          = "NAME"
	elemDatatype      = "DATATYPE"
	elemLength        = "LENGTH"
	elemPrecision     = "PRECISION"
	elemScale         = "SCALE"
	elemNotNull       = "NOT_NULL"
	elemIdentity      = "IDENTITY_COLUMN"
	elemGeneration    = "GENERATION"
	elemOnNull        = "ON_NULL"
	elemStartWith     = "START_WITH"
	elemIncrement     = "INCREMENT"
	elemMinValue      = "MINVALUE"
	elemMaxValue      = "MAXVALUE"
	elemCache         = "CACHE"
	elemCharSemantics = "CHAR_SEMANTICS"
	elemCollateName   = "COLLATE_NAME"

	defaultCollation = "USING_NLS_COMP"
)

func childText(parent *etree.Element, tag string) sql.NullString {
	e := parent.SelectElement(tag)
	if e == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: strings.TrimSpace(e.Text()), Valid: true}
}

// itemAttributes reads one column item into the canonical record. A child
// element that is absent stays "unknown"; nothing is defaulted here.
func itemAttributes(item *etree.Element) schema.ColumnAttributes {
	col := schema.ColumnAttributes{
		Name:      itemName(item),
		Length:    childText(item, elemLength),
		Precision: childText(item, elemPrecision),
		Scale:     childText(item, elemScale),
		NotNull:   item.SelectElement(elemNotNull) != nil,
	}
	if dt := item.SelectElement(elemDatatype); dt != nil {
		col.Datatype = schema.Datatype(strings.TrimSpace(dt.Text()))
	}
	if gen := item.SelectElement(elemIdentity); gen != nil {
		col.Identity = &schema.IdentityGenerator{
			Generation: childText(gen, elemGeneration).String,
			OnNull:     gen.SelectElement(elemOnNull) != nil,
			StartWith:  childText(gen, elemStartWith).String,
			Increment:  childText(gen, elemIncrement).String,
			MinValue:   childText(gen, elemMinValue).String,
			MaxValue:   childText(gen, elemMaxValue).String,
			Cache:      childText(gen, elemCache).String,
		}
	}
	return col
}

// newItemElement synthesizes a column item from a DDL-derived record using
// the same field-to-element mapping that itemAttributes reads, so a
// synthesized item round-trips loss-free.
func newItemElement(col schema.ColumnAttributes) *etree.Element {
	item := etree.NewElement("COL_LIST_ITEM")
	item.CreateElement(elemName).SetText(col.Name)
	if col.Datatype != schema.DatatypeUnknown {
		item.CreateElement(elemDatatype).SetText(string(col.Datatype))
	}

	switch col.Datatype {
	case schema.DatatypeVarchar2:
		if col.Length.Valid {
			item.CreateElement(elemLength).SetText(col.Length.String)
		}
		item.CreateElement(elemCharSemantics)
		item.CreateElement(elemCollateName).SetText(defaultCollation)
	case schema.DatatypeNumber:
		if col.Precision.Valid {
			item.CreateElement(elemPrecision).SetText(col.Precision.String)
		}
		if col.Scale.Valid {
			item.CreateElement(elemScale).SetText(col.Scale.String)
		}
	case schema.DatatypeTimestampLTZ:
		if col.Scale.Valid {
			item.CreateElement(elemScale).SetText(col.Scale.String)
		}
	case schema.DatatypeClob:
		item.CreateElement(elemCollateName).SetText(defaultCollation)
	}

	if col.Identity != nil {
		gen := item.CreateElement(elemIdentity)
		gen.CreateElement(elemGeneration).SetText(col.Identity.Generation)
		if col.Identity.OnNull {
			gen.CreateElement(elemOnNull)
		}
		gen.CreateElement(elemStartWith).SetText(col.Identity.StartWith)
		gen.CreateElement(elemIncrement).SetText(col.Identity.Increment)
		gen.CreateElement(elemMinValue).SetText(col.Identity.MinValue)
		gen.CreateElement(elemMaxValue).SetText(col.Identity.MaxValue)
		gen.CreateElement(elemCache).SetText(col.Identity.Cache)
	}
	if col.NotNull {
		item.CreateElement(elemNotNull)
	}
	return item
}
