// Package avro writes rows to an Avro object container file.
package avro

import (
	"context"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/linkedin/goavro/v2"

	"github.com/ajitpratap0/jira-extract/pkg/errors"
	"github.com/ajitpratap0/jira-extract/pkg/schema"
	"github.com/ajitpratap0/jira-extract/pkg/sink"
)

func init() {
	sink.Register("avro", New)
}

const timestampBranch = "long.timestamp-micros"

// Sink writes Avro OCF.
type Sink struct {
	out    *sink.OutputFile
	ocf    *goavro.OCFWriter
	fields []field
	batch  *sink.Batcher
	buf    []interface{}
}

type field struct {
	name   string
	branch string
	json   bool
}

// buildSchema builds the record schema for columns. Every field is a
// union with null.
func buildSchema(columns []schema.ColumnSpec) (string, []field, error) {
	type avroField struct {
		Name    string        `json:"name"`
		Doc     string        `json:"doc,omitempty"`
		Type    []interface{} `json:"type"`
		Default interface{}   `json:"default"`
	}

	fields := make([]field, len(columns))
	defs := make([]avroField, len(columns))
	seen := make(map[string]bool, len(columns))
	for i, c := range columns {
		name := sink.Identifier(c.Name)
		if seen[name] {
			return "", nil, errors.Newf(errors.ErrorTypeConfig, "avro: columns collide on field name %s", name)
		}
		seen[name] = true

		var typ interface{}
		var branch string
		switch c.Type {
		case schema.TypeLong:
			typ, branch = "long", "long"
		case schema.TypeDouble:
			typ, branch = "double", "double"
		case schema.TypeBoolean:
			typ, branch = "boolean", "boolean"
		case schema.TypeTimestamp:
			typ = map[string]string{"type": "long", "logicalType": "timestamp-micros"}
			branch = timestampBranch
		default:
			typ, branch = "string", "string"
		}
		fields[i] = field{name: name, branch: branch, json: c.Type == schema.TypeJSON}
		defs[i] = avroField{Name: name, Type: []interface{}{"null", typ}}
		if name != c.Name {
			defs[i].Doc = c.Name
		}
	}

	doc := map[string]interface{}{
		"type":      "record",
		"name":      "Issue",
		"namespace": "jira",
		"fields":    defs,
	}
	b, err := gojson.Marshal(doc)
	if err != nil {
		return "", nil, err
	}
	return string(b), fields, nil
}

// New creates an Avro sink. Option codec picks the block compression
// (null, deflate, snappy, zstandard).
func New(_ context.Context, p sink.Params) (sink.Sink, error) {
	if err := sink.Require("avro", "path", p.Config.Path); err != nil {
		return nil, err
	}
	text, fields, err := buildSchema(p.Columns)
	if err != nil {
		return nil, err
	}
	codec, err := goavro.NewCodec(text)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "avro: invalid schema")
	}

	out, err := sink.CreateOutput(p.Config.Path, p.Config.Compression)
	if err != nil {
		return nil, err
	}
	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               out,
		Codec:           codec,
		CompressionName: p.Config.Option("codec", goavro.CompressionNullLabel),
	})
	if err != nil {
		out.Close()
		return nil, sink.SinkError(err, "failed to create avro writer")
	}

	s := &Sink{out: out, ocf: ocf, fields: fields}
	s.batch = &sink.Batcher{Size: p.Config.Batch(), Flush: s.flushBatch}
	return s, nil
}

// Native converts a row to goavro's native form.
func (s *Sink) Native(row schema.Row) (map[string]interface{}, error) {
	rec := make(map[string]interface{}, row.Len())
	for i := 0; i < row.Len(); i++ {
		f := s.fields[i]
		v := row.Value(i)
		if v == nil {
			rec[f.name] = nil
			continue
		}
		if f.json {
			text, err := sink.JSONText(v)
			if err != nil {
				return nil, sink.SinkError(err, "failed to encode json value")
			}
			rec[f.name] = map[string]interface{}{f.branch: text}
			continue
		}
		switch x := v.(type) {
		case time.Time:
			rec[f.name] = map[string]interface{}{f.branch: x.UTC()}
		default:
			rec[f.name] = map[string]interface{}{f.branch: x}
		}
	}
	return rec, nil
}

// Append implements core.RecordSink.
func (s *Sink) Append(ctx context.Context, row schema.Row) error {
	return s.batch.Add(ctx, row)
}

func (s *Sink) flushBatch(_ context.Context, rows []schema.Row) error {
	s.buf = s.buf[:0]
	for _, row := range rows {
		native, err := s.Native(row)
		if err != nil {
			return err
		}
		s.buf = append(s.buf, native)
	}
	return sink.SinkError(s.ocf.Append(s.buf), "failed to append avro block")
}

// Finish implements core.RecordSink.
func (s *Sink) Finish(ctx context.Context) error {
	if err := s.batch.Drain(ctx); err != nil {
		return err
	}
	return s.out.Close()
}

// Close implements sink.Sink.
func (s *Sink) Close() error {
	return s.out.Close()
}
