// Package arrow writes rows to an Arrow IPC file in record batches.
package arrow

import (
	"context"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/jira-extract/pkg/errors"
	"github.com/ajitpratap0/jira-extract/pkg/schema"
	"github.com/ajitpratap0/jira-extract/pkg/sink"
)

func init() {
	sink.Register("arrow", New)
}

// Sink writes an Arrow IPC file.
type Sink struct {
	out     *sink.OutputFile
	fw      *ipc.FileWriter
	builder *array.RecordBuilder
	batch   *sink.Batcher
	closed  bool
}

// Schema maps columns to an Arrow schema. Every field is nullable;
// timestamps are microseconds in UTC and json columns are text.
func Schema(columns []schema.ColumnSpec) *arrow.Schema {
	fields := make([]arrow.Field, len(columns))
	for i, c := range columns {
		fields[i] = arrow.Field{Name: c.Name, Type: dataType(c.Type), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

func dataType(t schema.TypeTag) arrow.DataType {
	switch t {
	case schema.TypeLong:
		return arrow.PrimitiveTypes.Int64
	case schema.TypeDouble:
		return arrow.PrimitiveTypes.Float64
	case schema.TypeBoolean:
		return arrow.FixedWidthTypes.Boolean
	case schema.TypeTimestamp:
		return &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}
	default:
		return arrow.BinaryTypes.String
	}
}

// New creates an Arrow sink.
func New(_ context.Context, p sink.Params) (sink.Sink, error) {
	if err := sink.Require("arrow", "path", p.Config.Path); err != nil {
		return nil, err
	}
	out, err := sink.CreateOutput(p.Config.Path, p.Config.Compression)
	if err != nil {
		return nil, err
	}

	pool := memory.NewGoAllocator()
	sc := Schema(p.Columns)
	fw, err := ipc.NewFileWriter(out, ipc.WithSchema(sc), ipc.WithAllocator(pool))
	if err != nil {
		out.Close()
		return nil, sink.SinkError(err, "failed to create arrow writer")
	}

	s := &Sink{
		out:     out,
		fw:      fw,
		builder: array.NewRecordBuilder(pool, sc),
	}
	s.batch = &sink.Batcher{Size: p.Config.Batch(), Flush: s.flushBatch}
	return s, nil
}

// Append implements core.RecordSink.
func (s *Sink) Append(ctx context.Context, row schema.Row) error {
	for i := 0; i < row.Len(); i++ {
		if err := appendValue(s.builder.Field(i), row.Value(i)); err != nil {
			return err
		}
	}
	return s.batch.Add(ctx, row)
}

// flushBatch writes the builder's rows; the rows themselves were already
// appended column by column.
func (s *Sink) flushBatch(_ context.Context, _ []schema.Row) error {
	rec := s.builder.NewRecord()
	defer rec.Release()
	return sink.SinkError(s.fw.Write(rec), "failed to write arrow batch")
}

func appendValue(b array.Builder, v interface{}) error {
	if v == nil {
		b.AppendNull()
		return nil
	}
	switch fb := b.(type) {
	case *array.Int64Builder:
		if x, ok := v.(int64); ok {
			fb.Append(x)
			return nil
		}
	case *array.Float64Builder:
		if x, ok := v.(float64); ok {
			fb.Append(x)
			return nil
		}
	case *array.BooleanBuilder:
		if x, ok := v.(bool); ok {
			fb.Append(x)
			return nil
		}
	case *array.TimestampBuilder:
		if x, ok := v.(time.Time); ok {
			fb.Append(arrow.Timestamp(x.UnixMicro()))
			return nil
		}
	case *array.StringBuilder:
		if x, ok := v.(string); ok {
			fb.Append(x)
			return nil
		}
		text, err := sink.JSONText(v)
		if err != nil {
			return sink.SinkError(err, "failed to encode json value")
		}
		fb.Append(text)
		return nil
	}
	return errors.Newf(errors.ErrorTypeSink, "arrow: unexpected value %T for %s", v, b.Type())
}

// Finish implements core.RecordSink.
func (s *Sink) Finish(ctx context.Context) error {
	if err := s.batch.Drain(ctx); err != nil {
		return err
	}
	s.closed = true
	if err := s.fw.Close(); err != nil {
		return sink.SinkError(err, "failed to finish arrow file")
	}
	s.builder.Release()
	return s.out.Close()
}

// Close implements sink.Sink.
func (s *Sink) Close() error {
	if !s.closed {
		s.closed = true
		_ = s.fw.Close()
		s.builder.Release()
	}
	return s.out.Close()
}
