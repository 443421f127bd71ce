package domain

import "strings"

// FieldType constrains which operators a field accepts.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldCategory FieldType = "category"
	FieldNumeric  FieldType = "numeric"
)

// Field is one canonical schema column. Category fields carry their
// controlled vocabulary so value mentions can imply a filter without an
// explicit field name.
type Field struct {
	Name    string
	Type    FieldType
	Aliases []string
	Values  []string
}

// FieldTable is the versioned alias → canonical field mapping the extractor
// resolves against. It is loaded once at startup, validated against the
// live record store schema, and read-only afterwards.
type FieldTable struct {
	Version string
	Fields  []Field

	byAlias map[string]*Field
	byValue map[string]*Field
}

// NewFieldTable builds the lookup maps. Aliases and controlled-vocabulary
// values are folded to lower case; the field's own name is always an alias.
func NewFieldTable(version string, fields []Field) *FieldTable {
	t := &FieldTable{
		Version: version,
		Fields:  fields,
		byAlias: make(map[string]*Field),
		byValue: make(map[string]*Field),
	}
	for i := range t.Fields {
		f := &t.Fields[i]
		t.byAlias[foldKey(f.Name)] = f
		for _, a := range f.Aliases {
			t.byAlias[foldKey(a)] = f
		}
		for _, v := range f.Values {
			t.byValue[foldKey(v)] = f
		}
	}
	return t
}

// Resolve maps a natural-language field mention to its canonical field.
func (t *FieldTable) Resolve(alias string) (*Field, bool) {
	f, ok := t.byAlias[foldKey(alias)]
	return f, ok
}

// OwnerOfValue finds the category field whose controlled vocabulary
// contains the given value mention.
func (t *FieldTable) OwnerOfValue(value string) (*Field, bool) {
	f, ok := t.byValue[foldKey(value)]
	return f, ok
}

// CanonicalValue returns the vocabulary spelling for a folded mention so
// exact filters compare against stored values, not user casing.
func (f *Field) CanonicalValue(mention string) string {
	folded := foldKey(mention)
	for _, v := range f.Values {
		if foldKey(v) == folded {
			return v
		}
	}
	return mention
}

func foldKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
