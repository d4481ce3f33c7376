package arrow

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/jira-extract/pkg/schema"
	"github.com/ajitpratap0/jira-extract/pkg/sink"
)

func TestArrowSink(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "issues.arrow")
	columns := []schema.ColumnSpec{
		{Name: "key", Type: schema.TypeString},
		{Name: "votes", Type: schema.TypeLong},
		{Name: "score", Type: schema.TypeDouble},
		{Name: "done", Type: schema.TypeBoolean},
		{Name: "created", Type: schema.TypeTimestamp},
		{Name: "fields", Type: schema.TypeJSON},
	}

	s, err := New(ctx, sink.Params{Config: sink.Config{Path: path, BatchSize: 2}, Columns: columns})
	require.NoError(t, err)

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Append(ctx, schema.NewRow("PROJ-1", int64(3), 1.5, true, created, map[string]interface{}{"a": "b"})))
	require.NoError(t, s.Append(ctx, schema.NewRow("PROJ-2", nil, nil, nil, nil, nil)))
	require.NoError(t, s.Append(ctx, schema.NewRow("PROJ-3", int64(4), 2.0, false, created, "raw")))
	require.NoError(t, s.Finish(ctx))
	require.NoError(t, s.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r, err := ipc.NewFileReader(f, ipc.WithAllocator(memory.NewGoAllocator()))
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, 2, r.NumRecords())
	assert.True(t, r.Schema().Equal(Schema(columns)))

	rec, err := r.Record(0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.NumRows())
	assert.Equal(t, "PROJ-1", rec.Column(0).(*array.String).Value(0))
	assert.Equal(t, int64(3), rec.Column(1).(*array.Int64).Value(0))
	assert.True(t, rec.Column(1).IsNull(1))
	assert.Equal(t, 1.5, rec.Column(2).(*array.Float64).Value(0))
	assert.True(t, rec.Column(3).(*array.Boolean).Value(0))
	assert.Equal(t, arrow.Timestamp(created.UnixMicro()), rec.Column(4).(*array.Timestamp).Value(0))
	assert.Equal(t, `{"a":"b"}`, rec.Column(5).(*array.String).Value(0))

	rec, err = r.Record(1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.NumRows())
	assert.Equal(t, `"raw"`, rec.Column(5).(*array.String).Value(0))
}

func TestAppendValueTypeMismatch(t *testing.T) {
	b := array.NewInt64Builder(memory.NewGoAllocator())
	defer b.Release()
	err := appendValue(b, "nope")
	require.Error(t, err)
}
