package sink_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ajitpratap0/jira-extract/pkg/compression"
	"github.com/ajitpratap0/jira-extract/pkg/errors"
	"github.com/ajitpratap0/jira-extract/pkg/schema"
	"github.com/ajitpratap0/jira-extract/pkg/sink"
	"github.com/ajitpratap0/jira-extract/pkg/testutil"
)

var columns = []schema.ColumnSpec{
	{Name: "key", Type: schema.TypeString},
	{Name: "n", Type: schema.TypeLong},
}

// fileSink writes "key,n" lines to its path.
type fileSink struct {
	out      *sink.OutputFile
	finished bool
}

func (f *fileSink) Append(_ context.Context, row schema.Row) error {
	_, err := io.WriteString(f.out, sink.FormatValue(row.Value(0), "")+","+sink.FormatValue(row.Value(1), "")+"\n")
	return err
}

func (f *fileSink) Finish(context.Context) error {
	f.finished = true
	return f.out.Close()
}

func (f *fileSink) Close() error { return f.out.Close() }

func newFileSink(_ context.Context, p sink.Params) (sink.Sink, error) {
	out, err := sink.CreateOutput(p.Config.Path, p.Config.Compression)
	if err != nil {
		return nil, err
	}
	return &fileSink{out: out}, nil
}

type fakeUploader struct {
	objects map[string]string
	meta    map[string]sink.Object
	err     error
}

func (u *fakeUploader) Upload(_ context.Context, obj sink.Object, body io.Reader) error {
	if u.err != nil {
		return u.err
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	u.objects[obj.Key] = string(b)
	u.meta[obj.Key] = obj
	return nil
}

func newRegistry(t *testing.T, up *fakeUploader) *sink.Registry {
	t.Helper()
	r := sink.NewRegistry()
	require.NoError(t, r.Register("lines", newFileSink))
	require.NoError(t, r.RegisterUploader("fake", func(context.Context, sink.UploadConfig, *zap.Logger) (sink.Uploader, error) {
		return up, nil
	}))
	return r
}

func TestRegistry(t *testing.T) {
	r := newRegistry(t, nil)

	t.Run("duplicate", func(t *testing.T) {
		err := r.Register("lines", newFileSink)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	})

	t.Run("unknown sink", func(t *testing.T) {
		_, err := r.New(context.Background(), sink.Config{Type: "parquet"}, columns, nil)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
		assert.Contains(t, err.Error(), "parquet")
	})

	t.Run("unknown uploader", func(t *testing.T) {
		cfg := sink.Config{Type: "lines", Path: filepath.Join(t.TempDir(), "x"), Upload: &sink.UploadConfig{Provider: "ftp"}}
		_, err := r.New(context.Background(), cfg, columns, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ftp")
	})

	t.Run("upload needs a path", func(t *testing.T) {
		cfg := sink.Config{Type: "lines", Upload: &sink.UploadConfig{Provider: "fake"}}
		_, err := r.New(context.Background(), cfg, columns, nil)
		require.Error(t, err)
	})

	t.Run("names", func(t *testing.T) {
		require.NoError(t, r.Register("alpha", newFileSink))
		assert.Equal(t, []string{"alpha", "lines"}, r.Names())
	})
}

func TestUploadingSink(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	up := &fakeUploader{objects: map[string]string{}, meta: map[string]sink.Object{}}
	r := newRegistry(t, up)
	path := filepath.Join(t.TempDir(), "out", "issues.csv")

	s, err := r.New(ctx, sink.Config{
		Type:   "lines",
		Path:   path,
		Upload: &sink.UploadConfig{Provider: "fake", Bucket: "b", Key: "exports/issues.csv"},
	}, columns, testutil.TestLogger(t))
	require.NoError(t, err)

	require.NoError(t, s.Append(ctx, schema.NewRow("PROJ-1", int64(1))))
	require.NoError(t, s.Append(ctx, schema.NewRow("PROJ-2", nil)))
	require.NoError(t, s.Finish(ctx))
	require.NoError(t, s.Close())

	assert.Equal(t, "PROJ-1,1\nPROJ-2,\n", up.objects["exports/issues.csv"])
	assert.Equal(t, "text/csv", up.meta["exports/issues.csv"].ContentType)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "local file is removed after upload")
}

func TestUploadingSinkFailure(t *testing.T) {
	ctx := context.Background()
	up := &fakeUploader{err: errors.New(errors.ErrorTypeConnection, "denied")}
	r := newRegistry(t, up)
	path := filepath.Join(t.TempDir(), "issues.csv")

	s, err := r.New(ctx, sink.Config{Type: "lines", Path: path, Upload: &sink.UploadConfig{Provider: "fake"}}, columns, nil)
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, schema.NewRow("PROJ-1", int64(1))))

	err = s.Finish(ctx)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeSink, errors.TypeOf(err))
	_, statErr := os.Stat(path)
	assert.NoError(t, statErr, "local file is kept when the upload fails")
}

func TestOutputFileCompression(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.txt.zst")
	out, err := sink.CreateOutput(path, "zstd")
	require.NoError(t, err)
	_, err = out.Write([]byte(strings.Repeat("issue ", 100)))
	require.NoError(t, err)
	require.NoError(t, out.Close())
	require.NoError(t, out.Close(), "close is idempotent")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r, err := compression.NewReader(f, compression.Zstd)
	require.NoError(t, err)
	defer r.Close()
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("issue ", 100), string(b))
}

func TestOutputFileUnknownCompression(t *testing.T) {
	_, err := sink.CreateOutput(filepath.Join(t.TempDir(), "x"), "rar")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestBatcher(t *testing.T) {
	var sizes []int
	b := &sink.Batcher{Size: 2, Flush: func(_ context.Context, rows []schema.Row) error {
		sizes = append(sizes, len(rows))
		return nil
	}}
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, b.Add(ctx, schema.NewRow(int64(i))))
	}
	assert.Equal(t, 1, b.Pending())
	require.NoError(t, b.Drain(ctx))
	require.NoError(t, b.Drain(ctx))
	assert.Equal(t, []int{2, 2, 1}, sizes)
	assert.Equal(t, 5, b.Flushed())
}

func TestBatcherFlushError(t *testing.T) {
	boom := errors.New(errors.ErrorTypeSink, "boom")
	b := &sink.Batcher{Size: 1, Flush: func(context.Context, []schema.Row) error { return boom }}
	err := b.Add(context.Background(), schema.NewRow("x"))
	assert.Same(t, boom, err)
	assert.Equal(t, 0, b.Flushed())
	assert.Equal(t, 1, b.Pending())
}

func TestFormatValue(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600))
	tests := []struct {
		in   interface{}
		want string
	}{
		{nil, "NULL"},
		{"a", "a"},
		{int64(-7), "-7"},
		{1.5, "1.5"},
		{true, "true"},
		{ts, "2024-01-02T02:04:05Z"},
		{map[string]interface{}{"a": 1}, `{"a":1}`},
		{[]interface{}{"x", 2}, `["x",2]`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sink.FormatValue(tt.in, "NULL"))
	}
}

func TestRowEncoder(t *testing.T) {
	enc, err := sink.NewRowEncoder([]schema.ColumnSpec{
		{Name: "z", Type: schema.TypeString},
		{Name: "a", Type: schema.TypeTimestamp},
		{Name: "j", Type: schema.TypeJSON},
	})
	require.NoError(t, err)
	b, err := enc.Encode(schema.NewRow("x", time.Unix(0, 0), nil))
	require.NoError(t, err)
	assert.Equal(t, `{"z":"x","a":"1970-01-01T00:00:00Z","j":null}`, string(b))
}

func TestIdentifier(t *testing.T) {
	assert.Equal(t, "fields_status", sink.Identifier("fields.status"))
	assert.Equal(t, "_10", sink.Identifier("10"))
	assert.Equal(t, "a_b", sink.Identifier("a-b"))
	assert.Equal(t, "_", sink.Identifier(""))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/csv", sink.ContentType("a/b.csv.gz"))
	assert.Equal(t, "application/x-ndjson", sink.ContentType("b.jsonl"))
	assert.Equal(t, "application/avro", sink.ContentType("b.avro"))
	assert.Equal(t, "application/octet-stream", sink.ContentType("b.bin"))
}

func TestRequireAndOptions(t *testing.T) {
	err := sink.Require("mysql", "dsn", "x", "table", " ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table is required")
	assert.NoError(t, sink.Require("mysql", "dsn", "x"))

	cfg := sink.Config{Options: map[string]string{"header": "false", "bad": "maybe"}}
	assert.False(t, cfg.BoolOption("header", true))
	assert.True(t, cfg.BoolOption("bad", true))
	assert.Equal(t, "d", cfg.Option("missing", "d"))
	assert.Equal(t, sink.DefaultBatchSize, cfg.Batch())
}
