// Package schema holds the column vocabulary of an extraction: column
// specifications, the validated attribute map built from them, raw records
// as delivered by the search API and the typed rows handed to sinks.
package schema

import (
	"strings"

	"github.com/ajitpratap0/jira-extract/pkg/errors"
)

// TypeTag names the cast applied to a raw field value.
type TypeTag string

const (
	TypeString    TypeTag = "string"
	TypeLong      TypeTag = "long"
	TypeDouble    TypeTag = "double"
	TypeBoolean   TypeTag = "boolean"
	TypeTimestamp TypeTag = "timestamp"
	TypeJSON      TypeTag = "json"
)

// TypeTags lists every supported tag.
var TypeTags = []TypeTag{TypeString, TypeLong, TypeDouble, TypeBoolean, TypeTimestamp, TypeJSON}

// ParseTypeTag resolves a configured type name, case-insensitively.
func ParseTypeTag(s string) (TypeTag, error) {
	tag := TypeTag(strings.ToLower(strings.TrimSpace(s)))
	if tag.Valid() {
		return tag, nil
	}
	return "", errors.Newf(errors.ErrorTypeConfig, "unknown column type %q", s)
}

// Valid reports whether t is one of TypeTags.
func (t TypeTag) Valid() bool {
	for _, known := range TypeTags {
		if t == known {
			return true
		}
	}
	return false
}

func (t TypeTag) String() string { return string(t) }

// ColumnSpec declares one output column.
type ColumnSpec struct {
	Name   string  `yaml:"name" json:"name"`
	Type   TypeTag `yaml:"type" json:"type"`
	Format string  `yaml:"format,omitempty" json:"format,omitempty"`
}

// RawRecord is one search result as decoded from the API.
type RawRecord map[string]interface{}

// Get looks name up in the record. An exact key wins; otherwise name is
// treated as a dotted path ("fields.status.name"), starting from the
// longest prefix that is itself a key so flattened and nested records
// resolve alike.
func (r RawRecord) Get(name string) (interface{}, bool) {
	if v, ok := r[name]; ok {
		return v, true
	}
	parts := strings.Split(name, ".")
	for i := len(parts) - 1; i >= 1; i-- {
		head, ok := r[strings.Join(parts[:i], ".")]
		if !ok {
			continue
		}
		if v, ok := walk(head, parts[i:]); ok {
			return v, true
		}
	}
	return nil, false
}

func walk(cur interface{}, path []string) (interface{}, bool) {
	for _, part := range path {
		m, ok := asObject(cur)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func asObject(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case RawRecord:
		return m, true
	default:
		return nil, false
	}
}

// Row is a typed record, one value per column in declared order. A Row is
// immutable once built.
type Row struct {
	values []interface{}
}

// NewRow copies values into a Row.
func NewRow(values ...interface{}) Row {
	return Row{values: append([]interface{}(nil), values...)}
}

// Len returns the number of columns.
func (r Row) Len() int { return len(r.values) }

// Value returns the i-th column value; nil means null.
func (r Row) Value(i int) interface{} { return r.values[i] }

// Values returns a copy of the row's values.
func (r Row) Values() []interface{} {
	return append([]interface{}(nil), r.values...)
}

type attribute struct {
	index  int
	column ColumnSpec
}

// AttributeMap is the validated, immutable lookup from column name to cast,
// built once per job from the configured column list.
type AttributeMap struct {
	columns []ColumnSpec
	byName  map[string]attribute
}

// NewAttributeMap validates columns and builds the map. Names must be
// non-empty and unique and every type must be known.
func NewAttributeMap(columns []ColumnSpec) (*AttributeMap, error) {
	if len(columns) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "at least one column is required")
	}

	m := &AttributeMap{
		columns: make([]ColumnSpec, 0, len(columns)),
		byName:  make(map[string]attribute, len(columns)),
	}
	for i, c := range columns {
		if strings.TrimSpace(c.Name) == "" {
			return nil, errors.Newf(errors.ErrorTypeConfig, "column %d has no name", i)
		}
		if _, dup := m.byName[c.Name]; dup {
			return nil, errors.Newf(errors.ErrorTypeConfig, "duplicate column %q", c.Name)
		}
		tag, err := ParseTypeTag(string(c.Type))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "column "+c.Name)
		}
		c.Type = tag
		m.byName[c.Name] = attribute{index: i, column: c}
		m.columns = append(m.columns, c)
	}
	return m, nil
}

// Len returns the number of columns.
func (m *AttributeMap) Len() int { return len(m.columns) }

// Columns returns a copy of the normalized column list.
func (m *AttributeMap) Columns() []ColumnSpec {
	return append([]ColumnSpec(nil), m.columns...)
}

// Lookup returns the column spec and position for name.
func (m *AttributeMap) Lookup(name string) (ColumnSpec, int, bool) {
	a, ok := m.byName[name]
	return a.column, a.index, ok
}

// BuildRow casts rec into a Row following the column order. A missing
// field yields null.
func (m *AttributeMap) BuildRow(rec RawRecord) (Row, error) {
	values := make([]interface{}, len(m.columns))
	for i, c := range m.columns {
		raw, _ := rec.Get(c.Name)
		v, err := Cast(raw, c.Type, c.Format)
		if err != nil {
			if e, ok := err.(*errors.Error); ok {
				e.WithDetail("column", c.Name)
			}
			return Row{}, err
		}
		values[i] = v
	}
	return Row{values: values}, nil
}
