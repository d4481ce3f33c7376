// Package postgres loads rows into a PostgreSQL table with COPY.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ajitpratap0/jira-extract/pkg/errors"
	"github.com/ajitpratap0/jira-extract/pkg/schema"
	"github.com/ajitpratap0/jira-extract/pkg/sink"
	"github.com/ajitpratap0/jira-extract/pkg/sink/sqlsink"
)

func init() {
	sink.Register("postgres", New)
}

// Sink copies batches into a table.
type Sink struct {
	pool    *pgxpool.Pool
	table   pgx.Identifier
	columns []schema.ColumnSpec
	names   []string
	batch   *sink.Batcher
	logger  *zap.Logger
}

// ColumnType maps a column type to PostgreSQL DDL.
func ColumnType(t schema.TypeTag) string {
	switch t {
	case schema.TypeLong:
		return "bigint"
	case schema.TypeDouble:
		return "double precision"
	case schema.TypeBoolean:
		return "boolean"
	case schema.TypeTimestamp:
		return "timestamptz"
	case schema.TypeJSON:
		return "jsonb"
	default:
		return "text"
	}
}

// CreateTableSQL renders CREATE TABLE IF NOT EXISTS for table.
func CreateTableSQL(table pgx.Identifier, columns []schema.ColumnSpec) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = pgx.Identifier{c.Name}.Sanitize() + " " + ColumnType(c.Type)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table.Sanitize(), strings.Join(defs, ", "))
}

// New creates a PostgreSQL sink. Options: max_conns, create_table.
func New(ctx context.Context, p sink.Params) (sink.Sink, error) {
	if err := sink.Require("postgres", "dsn", p.Config.DSN, "table", p.Config.Table); err != nil {
		return nil, err
	}

	cfg, err := pgxpool.ParseConfig(p.Config.DSN)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse PostgreSQL connection string")
	}
	cfg.MaxConns = 2
	cfg.MaxConnLifetime = time.Hour
	cfg.ConnConfig.ConnectTimeout = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, sink.SinkError(err, "failed to create PostgreSQL connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, sink.SinkError(err, "PostgreSQL ping failed")
	}
	p.Logger.Info("connected", zap.String("dsn", sqlsink.RedactDSN(p.Config.DSN)))

	names := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		names[i] = c.Name
	}
	s := &Sink{
		pool:    pool,
		table:   pgx.Identifier(strings.Split(p.Config.Table, ".")),
		columns: p.Columns,
		names:   names,
		logger:  p.Logger,
	}
	s.batch = &sink.Batcher{Size: p.Config.Batch(), Flush: s.copy}

	if p.Config.BoolOption("create_table", false) {
		if _, err := pool.Exec(ctx, CreateTableSQL(s.table, s.columns)); err != nil {
			pool.Close()
			return nil, sink.SinkError(err, "failed to create table "+p.Config.Table)
		}
	}
	return s, nil
}

// Append implements core.RecordSink.
func (s *Sink) Append(ctx context.Context, row schema.Row) error {
	return s.batch.Add(ctx, row)
}

func (s *Sink) copy(ctx context.Context, rows []schema.Row) error {
	values := make([][]interface{}, len(rows))
	for r, row := range rows {
		vals := make([]interface{}, row.Len())
		for i := range vals {
			v, err := sqlsink.BindValue(s.columns[i].Type, row.Value(i))
			if err != nil {
				return err
			}
			vals[i] = v
		}
		values[r] = vals
	}

	n, err := s.pool.CopyFrom(ctx, s.table, s.names, pgx.CopyFromRows(values))
	if err != nil {
		return sink.SinkError(err, "COPY failed")
	}
	s.logger.Debug("batch copied", zap.Int64("rows", n))
	return nil
}

// Finish implements core.RecordSink.
func (s *Sink) Finish(ctx context.Context) error {
	if err := s.batch.Drain(ctx); err != nil {
		return err
	}
	s.logger.Info("table load complete", zap.Strings("table", s.table), zap.Int("rows", s.batch.Flushed()))
	return nil
}

// Close implements sink.Sink.
func (s *Sink) Close() error {
	s.pool.Close()
	return nil
}
