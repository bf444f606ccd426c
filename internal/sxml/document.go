// internal/sxml/document.go
package sxml

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/arwahdevops/sxmlsync/internal/schema"
)

// Document wraps one parsed schema-XML tree. It owns the tree for the
// duration of a single reconciliation pass; elements not modeled by
// ColumnAttributes (namespace declaration, storage clauses, collation hints)
// pass through untouched.
type Document struct {
	doc     *etree.Document
	colList *etree.Element
}

// Parse reads the metadata markup into a tree. Markup that is not well-formed
// yields ErrMalformedMetadata; a well-formed document without a column list
// is accepted (its column set is simply empty).
func Parse(raw string) (*Document, error) {
	doc := etree.NewDocument()
	// The tracking tool writes childless elements with full end tags
	// (<NOT_NULL></NOT_NULL>); self-closing forms would churn every
	// untouched region of a rewritten snapshot.
	doc.WriteSettings.CanonicalEndTags = true
	if err := doc.ReadFromString(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMetadata, err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("%w: no root element", ErrMalformedMetadata)
	}
	d := &Document{doc: doc}
	// The main column list is the first one under the relational table; a
	// bare COL_LIST is tolerated for partially populated snapshots.
	if cl := doc.FindElement("//RELATIONAL_TABLE/COL_LIST"); cl != nil {
		d.colList = cl
	} else {
		d.colList = doc.FindElement("//COL_LIST")
	}
	return d, nil
}

// Serialize renders the tree back to markup. Formatting of untouched regions
// is preserved as parsed.
func (d *Document) Serialize() (string, error) {
	return d.doc.WriteToString()
}

func (d *Document) items() []*etree.Element {
	if d.colList == nil {
		return nil
	}
	return d.colList.SelectElements("COL_LIST_ITEM")
}

func itemName(item *etree.Element) string {
	if e := item.SelectElement("NAME"); e != nil {
		return schema.NormalizeName(e.Text())
	}
	return ""
}

// Columns maps every column item to its canonical attribute record, in
// document order.
func (d *Document) Columns() *schema.ColumnSet {
	set := schema.NewColumnSet()
	for _, item := range d.items() {
		col := itemAttributes(item)
		if col.Name == "" {
			continue
		}
		set.Add(col)
	}
	return set
}

// Order returns the column names in current document order.
func (d *Document) Order() []string {
	var names []string
	for _, item := range d.items() {
		if name := itemName(item); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func (d *Document) item(name string) *etree.Element {
	name = schema.NormalizeName(name)
	for _, item := range d.items() {
		if itemName(item) == name {
			return item
		}
	}
	return nil
}

// HasIdentity reports whether the named column item carries an
// identity-generator block.
func (d *Document) HasIdentity(name string) bool {
	item := d.item(name)
	return item != nil && item.SelectElement("IDENTITY_COLUMN") != nil
}

// AppendItems synthesizes one item per attribute record and appends them to
// the column list, immediately before its closing tag. It reports whether
// anything was appended (false when the document has no column list at all).
func (d *Document) AppendItems(cols []schema.ColumnAttributes) bool {
	if d.colList == nil || len(cols) == 0 {
		return false
	}
	for _, col := range cols {
		d.colList.AddChild(newItemElement(col))
	}
	return true
}

// ForceNotNull inserts a presence-only NOT_NULL marker into the named item.
// It reports whether the marker was inserted (false when the item is missing
// or already marked).
func (d *Document) ForceNotNull(name string) bool {
	item := d.item(name)
	if item == nil || item.SelectElement("NOT_NULL") != nil {
		return false
	}
	item.CreateElement("NOT_NULL")
	return true
}

// StartWithChange records one generator start value rewritten by
// NormalizeStartWith.
type StartWithChange struct {
	Column   string
	Original string
}

// NormalizeStartWith rewrites every generator START_WITH value that is not
// numerically equal to target, returning the original values in document
// order.
func (d *Document) NormalizeStartWith(target string) []StartWithChange {
	var changes []StartWithChange
	for _, item := range d.items() {
		gen := item.SelectElement("IDENTITY_COLUMN")
		if gen == nil {
			continue
		}
		start := gen.SelectElement("START_WITH")
		if start == nil {
			continue
		}
		if old := strings.TrimSpace(start.Text()); !schema.NumericallyEqual(old, target) {
			changes = append(changes, StartWithChange{Column: itemName(item), Original: old})
			start.SetText(target)
		}
	}
	return changes
}

// ReorderColumns rebuilds the column list's item children in the given name
// order. Names without a matching item are skipped; duplicate-named items
// are placed together in their prior relative order; items not named keep
// their relative order and follow the named ones. No item is ever dropped.
// Inter-item whitespace is discarded (the pretty-printer and the normalized
// diff both ignore it).
func (d *Document) ReorderColumns(order []string) {
	if d.colList == nil {
		return
	}
	items := d.items()

	for _, tok := range append([]etree.Token(nil), d.colList.Child...) {
		switch t := tok.(type) {
		case *etree.Element:
			if t.Tag == "COL_LIST_ITEM" {
				d.colList.RemoveChild(t)
			}
		case *etree.CharData:
			if t.IsWhitespace() {
				d.colList.RemoveChild(t)
			}
		}
	}

	// Items are tracked by element identity, not by name, so a snapshot that
	// carries two items with the same name keeps both.
	placed := make(map[*etree.Element]bool, len(items))
	for _, name := range order {
		name = schema.NormalizeName(name)
		for _, item := range items {
			if !placed[item] && itemName(item) == name {
				d.colList.AddChild(item)
				placed[item] = true
			}
		}
	}
	for _, item := range items {
		if !placed[item] {
			d.colList.AddChild(item)
		}
	}
}

// Pretty re-indents metadata markup for reports (two-space indent). When the
// input cannot be parsed, the raw string is returned verbatim so reporting
// never fails on an unfixable document.
func Pretty(raw string) string {
	doc := etree.NewDocument()
	doc.WriteSettings.CanonicalEndTags = true
	if err := doc.ReadFromString(raw); err != nil || doc.Root() == nil {
		return raw
	}
	doc.Indent(2)
	out, err := doc.WriteToString()
	if err != nil {
		return raw
	}
	return strings.TrimRight(out, "\n")
}
