// Package stdout prints rows as an aligned table, for previews.
package stdout

import (
	"context"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/ajitpratap0/jira-extract/pkg/schema"
	"github.com/ajitpratap0/jira-extract/pkg/sink"
)

func init() {
	sink.Register("stdout", New)
}

// Sink prints rows.
type Sink struct {
	tw *tabwriter.Writer
}

// New creates a table printer on stdout.
func New(_ context.Context, p sink.Params) (sink.Sink, error) {
	return NewWriter(os.Stdout, p.Columns), nil
}

// NewWriter prints to w.
func NewWriter(w io.Writer, columns []schema.ColumnSpec) *Sink {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name + ":" + string(c.Type)
	}
	_, _ = io.WriteString(tw, strings.Join(names, "\t")+"\n")
	return &Sink{tw: tw}
}

// Append implements core.RecordSink.
func (s *Sink) Append(_ context.Context, row schema.Row) error {
	cells := make([]string, row.Len())
	for i := range cells {
		cells[i] = strings.ReplaceAll(sink.FormatValue(row.Value(i), "NULL"), "\t", " ")
	}
	_, err := io.WriteString(s.tw, strings.Join(cells, "\t")+"\n")
	return sink.SinkError(err, "failed to print row")
}

// Finish implements core.RecordSink.
func (s *Sink) Finish(context.Context) error {
	return sink.SinkError(s.tw.Flush(), "failed to flush table")
}

// Close implements sink.Sink.
func (s *Sink) Close() error { return nil }
