// Package csv writes rows as a CSV file with a header line.
package csv

import (
	"context"
	"encoding/csv"

	"github.com/ajitpratap0/jira-extract/pkg/schema"
	"github.com/ajitpratap0/jira-extract/pkg/sink"
)

func init() {
	sink.Register("csv", New)
}

// Sink writes CSV.
type Sink struct {
	out        *sink.OutputFile
	w          *csv.Writer
	nullString string
	record     []string
}

// New creates a CSV sink. Options: delimiter (default ","), null_string
// (default empty), header (default true).
func New(_ context.Context, p sink.Params) (sink.Sink, error) {
	if err := sink.Require("csv", "path", p.Config.Path); err != nil {
		return nil, err
	}

	out, err := sink.CreateOutput(p.Config.Path, p.Config.Compression)
	if err != nil {
		return nil, err
	}

	w := csv.NewWriter(out)
	if d := p.Config.Option("delimiter", ","); len(d) > 0 {
		w.Comma = []rune(d)[0]
	}

	s := &Sink{
		out:        out,
		w:          w,
		nullString: p.Config.Option("null_string", ""),
		record:     make([]string, len(p.Columns)),
	}

	if p.Config.BoolOption("header", true) {
		header := make([]string, len(p.Columns))
		for i, c := range p.Columns {
			header[i] = c.Name
		}
		if err := w.Write(header); err != nil {
			out.Close()
			return nil, sink.SinkError(err, "failed to write csv header")
		}
	}
	return s, nil
}

// Append implements core.RecordSink.
func (s *Sink) Append(_ context.Context, row schema.Row) error {
	for i := 0; i < row.Len(); i++ {
		s.record[i] = sink.FormatValue(row.Value(i), s.nullString)
	}
	return sink.SinkError(s.w.Write(s.record[:row.Len()]), "failed to write csv row")
}

// Finish implements core.RecordSink.
func (s *Sink) Finish(context.Context) error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return sink.SinkError(err, "failed to flush csv")
	}
	return s.out.Close()
}

// Close implements sink.Sink.
func (s *Sink) Close() error {
	return s.out.Close()
}
