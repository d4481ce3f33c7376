package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/jira-extract/pkg/errors"
)

func TestNewAttributeMapValidation(t *testing.T) {
	tests := []struct {
		name    string
		columns []ColumnSpec
	}{
		{"empty", nil},
		{"blank name", []ColumnSpec{{Name: " ", Type: TypeString}}},
		{"duplicate", []ColumnSpec{{Name: "key", Type: TypeString}, {Name: "key", Type: TypeLong}}},
		{"unknown type", []ColumnSpec{{Name: "key", Type: "varchar"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAttributeMap(tt.columns)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
		})
	}
}

func TestAttributeMapNormalizesTypes(t *testing.T) {
	m, err := NewAttributeMap([]ColumnSpec{{Name: "id", Type: "LONG"}})
	require.NoError(t, err)

	col, idx, ok := m.Lookup("id")
	require.True(t, ok)
	assert.Equal(t, 0, idx)
	assert.Equal(t, TypeLong, col.Type)
}

func TestBuildRowFollowsColumnOrder(t *testing.T) {
	columns := []ColumnSpec{
		{Name: "fields.summary", Type: TypeString},
		{Name: "id", Type: TypeLong},
		{Name: "fields.status.name", Type: TypeString},
		{Name: "fields.missing", Type: TypeDouble},
		{Name: "key", Type: TypeString},
	}
	m, err := NewAttributeMap(columns)
	require.NoError(t, err)

	rec := RawRecord{
		"id":  "10001",
		"key": "PROJ-1",
		"fields": map[string]interface{}{
			"summary": "Broken build",
			"status":  map[string]interface{}{"name": "Open"},
		},
	}

	row, err := m.BuildRow(rec)
	require.NoError(t, err)
	require.Equal(t, len(columns), row.Len())
	assert.Equal(t, []interface{}{"Broken build", int64(10001), "Open", nil, "PROJ-1"}, row.Values())
}

func TestBuildRowReportsColumn(t *testing.T) {
	m, err := NewAttributeMap([]ColumnSpec{{Name: "votes", Type: TypeLong}})
	require.NoError(t, err)

	_, err = m.BuildRow(RawRecord{"votes": "many"})
	require.Error(t, err)

	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, errors.ErrorTypeData, e.Type)
	assert.Equal(t, "votes", e.Details["column"])
}

func TestRowIsImmutable(t *testing.T) {
	row := NewRow("a", int64(1))
	vals := row.Values()
	vals[0] = "changed"
	assert.Equal(t, "a", row.Value(0))
}

func TestRawRecordGet(t *testing.T) {
	rec := RawRecord{
		"fields.flat": 1,
		"fields":      map[string]interface{}{"assignee": nil, "project": map[string]interface{}{"key": "P"}},
	}

	v, ok := rec.Get("fields.flat")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = rec.Get("fields.project.key")
	assert.True(t, ok)
	assert.Equal(t, "P", v)

	_, ok = rec.Get("fields.assignee.name")
	assert.False(t, ok)
}

func TestRawRecordGetFlattenedPrefix(t *testing.T) {
	rec := RawRecord{
		"key":           "P-1",
		"fields.status": map[string]interface{}{"name": "Done"},
	}

	v, ok := rec.Get("fields.status.name")
	assert.True(t, ok)
	assert.Equal(t, "Done", v)
}
