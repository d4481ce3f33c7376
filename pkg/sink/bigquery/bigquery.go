// Package bigquery streams rows into a BigQuery table.
package bigquery

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/jira-extract/pkg/errors"
	"github.com/ajitpratap0/jira-extract/pkg/schema"
	"github.com/ajitpratap0/jira-extract/pkg/sink"
)

func init() {
	sink.Register("bigquery", New)
}

// Sink streams rows with the table inserter.
type Sink struct {
	client   *bigquery.Client
	inserter *bigquery.Inserter
	columns  []schema.ColumnSpec
	names    []string
	batch    *sink.Batcher
	logger   *zap.Logger
}

// Schema maps columns to a BigQuery schema. Field names are sanitized;
// json columns are JSON fields.
func Schema(columns []schema.ColumnSpec) bigquery.Schema {
	out := make(bigquery.Schema, len(columns))
	for i, c := range columns {
		out[i] = &bigquery.FieldSchema{
			Name:        sink.Identifier(c.Name),
			Type:        fieldType(c.Type),
			Description: c.Name,
		}
	}
	return out
}

func fieldType(t schema.TypeTag) bigquery.FieldType {
	switch t {
	case schema.TypeLong:
		return bigquery.IntegerFieldType
	case schema.TypeDouble:
		return bigquery.FloatFieldType
	case schema.TypeBoolean:
		return bigquery.BooleanFieldType
	case schema.TypeTimestamp:
		return bigquery.TimestampFieldType
	case schema.TypeJSON:
		return bigquery.JSONFieldType
	default:
		return bigquery.StringFieldType
	}
}

// New creates a BigQuery sink. table is "dataset.table"; options project
// (required), credentials_file and create_table.
func New(ctx context.Context, p sink.Params) (sink.Sink, error) {
	project := p.Config.Option("project", "")
	if err := sink.Require("bigquery", "table", p.Config.Table, "options.project", project); err != nil {
		return nil, err
	}
	dataset, table, ok := strings.Cut(p.Config.Table, ".")
	if !ok || dataset == "" || table == "" {
		return nil, errors.Newf(errors.ErrorTypeConfig, "bigquery sink: table must be dataset.table, got %q", p.Config.Table)
	}

	var opts []option.ClientOption
	if creds := p.Config.Option("credentials_file", ""); creds != "" {
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	client, err := bigquery.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create BigQuery client")
	}

	t := client.Dataset(dataset).Table(table)
	if p.Config.BoolOption("create_table", false) {
		if _, err := t.Metadata(ctx); err != nil {
			if err := t.Create(ctx, &bigquery.TableMetadata{Schema: Schema(p.Columns)}); err != nil {
				client.Close()
				return nil, sink.SinkError(err, "failed to create table "+p.Config.Table)
			}
			p.Logger.Info("table created", zap.String("table", p.Config.Table))
		}
	}

	names := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		names[i] = sink.Identifier(c.Name)
	}
	s := &Sink{
		client:   client,
		inserter: t.Inserter(),
		columns:  p.Columns,
		names:    names,
		logger:   p.Logger,
	}
	s.batch = &sink.Batcher{Size: p.Config.Batch(), Flush: s.put}
	return s, nil
}

// valueSaver adapts a row to bigquery.ValueSaver.
type valueSaver struct {
	names []string
	types []schema.ColumnSpec
	row   schema.Row
}

// Save implements bigquery.ValueSaver. An empty insert ID lets BigQuery
// skip deduplication.
func (v valueSaver) Save() (map[string]bigquery.Value, string, error) {
	out := make(map[string]bigquery.Value, v.row.Len())
	for i := 0; i < v.row.Len(); i++ {
		val := v.row.Value(i)
		switch {
		case val == nil:
			out[v.names[i]] = nil
		case v.types[i].Type == schema.TypeJSON:
			text, err := sink.JSONText(val)
			if err != nil {
				return nil, "", err
			}
			out[v.names[i]] = text
		default:
			if ts, ok := val.(time.Time); ok {
				val = ts.UTC()
			}
			out[v.names[i]] = val
		}
	}
	return out, "", nil
}

// Append implements core.RecordSink.
func (s *Sink) Append(ctx context.Context, row schema.Row) error {
	return s.batch.Add(ctx, row)
}

func (s *Sink) put(ctx context.Context, rows []schema.Row) error {
	savers := make([]bigquery.ValueSaver, len(rows))
	for i, row := range rows {
		savers[i] = valueSaver{names: s.names, types: s.columns, row: row}
	}
	if err := s.inserter.Put(ctx, savers); err != nil {
		return sink.SinkError(err, "BigQuery insert failed")
	}
	s.logger.Debug("rows streamed", zap.Int("count", len(rows)))
	return nil
}

// Finish implements core.RecordSink.
func (s *Sink) Finish(ctx context.Context) error {
	return s.batch.Drain(ctx)
}

// Close implements sink.Sink.
func (s *Sink) Close() error {
	return s.client.Close()
}
