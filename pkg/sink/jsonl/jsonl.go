// Package jsonl writes one JSON object per row, keys in column order.
package jsonl

import (
	"context"

	"github.com/ajitpratap0/jira-extract/pkg/schema"
	"github.com/ajitpratap0/jira-extract/pkg/sink"
)

func init() {
	sink.Register("jsonl", New)
}

// Sink writes JSON lines.
type Sink struct {
	out *sink.OutputFile
	enc *sink.RowEncoder
}

// New creates a JSON lines sink.
func New(_ context.Context, p sink.Params) (sink.Sink, error) {
	if err := sink.Require("jsonl", "path", p.Config.Path); err != nil {
		return nil, err
	}
	enc, err := sink.NewRowEncoder(p.Columns)
	if err != nil {
		return nil, err
	}
	out, err := sink.CreateOutput(p.Config.Path, p.Config.Compression)
	if err != nil {
		return nil, err
	}
	return &Sink{out: out, enc: enc}, nil
}

// Append implements core.RecordSink.
func (s *Sink) Append(_ context.Context, row schema.Row) error {
	b, err := s.enc.Encode(row)
	if err != nil {
		return err
	}
	if _, err := s.out.Write(b); err != nil {
		return sink.SinkError(err, "failed to write row")
	}
	_, err = s.out.Write([]byte{'\n'})
	return sink.SinkError(err, "failed to write row")
}

// Finish implements core.RecordSink.
func (s *Sink) Finish(context.Context) error {
	return s.out.Close()
}

// Close implements sink.Sink.
func (s *Sink) Close() error {
	return s.out.Close()
}
