// Package sqlsink batches rows into multi-row INSERT statements over
// database/sql. Dialects supply quoting, placeholders and column types.
package sqlsink

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/jira-extract/pkg/errors"
	"github.com/ajitpratap0/jira-extract/pkg/schema"
	"github.com/ajitpratap0/jira-extract/pkg/sink"
)

// Dialect describes one SQL flavour.
type Dialect struct {
	Driver string
	// Quote quotes an identifier.
	Quote func(ident string) string
	// Placeholder returns the n-th (1-based) bind marker.
	Placeholder func(n int) string
	// ColumnType maps a column type to DDL.
	ColumnType func(t schema.TypeTag) string
}

// QuoteWith returns a Quote func for the given quote character.
func QuoteWith(q string) func(string) string {
	return func(ident string) string {
		return q + strings.ReplaceAll(ident, q, q+q) + q
	}
}

// QuestionMark is the ? placeholder style.
func QuestionMark(int) string { return "?" }

// Sink writes to a database table.
type Sink struct {
	db      *sql.DB
	dialect Dialect
	table   string
	columns []schema.ColumnSpec
	batch   *sink.Batcher
	logger  *zap.Logger
	args    []interface{}
}

// Open connects with the dialect's driver and verifies the connection.
func Open(ctx context.Context, driver, dsn string, timeout time.Duration) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to open database connection")
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeSink, "database ping failed")
	}
	return db, nil
}

// New creates a table sink on an open database. With option
// create_table=true the table is created when missing.
func New(ctx context.Context, db *sql.DB, d Dialect, p sink.Params) (*Sink, error) {
	s := &Sink{
		db:      db,
		dialect: d,
		table:   p.Config.Table,
		columns: p.Columns,
		logger:  p.Logger,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.batch = &sink.Batcher{Size: p.Config.Batch(), Flush: s.insert}

	if p.Config.BoolOption("create_table", false) {
		if _, err := db.ExecContext(ctx, s.CreateTableSQL()); err != nil {
			return nil, sink.SinkError(err, "failed to create table "+s.table)
		}
		s.logger.Info("table ready", zap.String("table", s.table))
	}
	return s, nil
}

// CreateTableSQL renders CREATE TABLE IF NOT EXISTS for the columns.
func (s *Sink) CreateTableSQL() string {
	defs := make([]string, len(s.columns))
	for i, c := range s.columns {
		defs[i] = s.dialect.Quote(c.Name) + " " + s.dialect.ColumnType(c.Type)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", s.quoteTable(), strings.Join(defs, ", "))
}

// InsertSQL renders an INSERT for n rows.
func (s *Sink) InsertSQL(n int) string {
	names := make([]string, len(s.columns))
	for i, c := range s.columns {
		names[i] = s.dialect.Quote(c.Name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", s.quoteTable(), strings.Join(names, ", "))
	arg := 1
	for r := 0; r < n; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range s.columns {
			if c > 0 {
				b.WriteString(", ")
			}
			b.WriteString(s.dialect.Placeholder(arg))
			arg++
		}
		b.WriteByte(')')
	}
	return b.String()
}

// quoteTable quotes each part of a dotted table name.
func (s *Sink) quoteTable() string {
	parts := strings.Split(s.table, ".")
	for i, p := range parts {
		parts[i] = s.dialect.Quote(p)
	}
	return strings.Join(parts, ".")
}

// Append implements core.RecordSink.
func (s *Sink) Append(ctx context.Context, row schema.Row) error {
	return s.batch.Add(ctx, row)
}

func (s *Sink) insert(ctx context.Context, rows []schema.Row) error {
	s.args = s.args[:0]
	for _, row := range rows {
		for i := 0; i < row.Len(); i++ {
			v, err := BindValue(s.columns[i].Type, row.Value(i))
			if err != nil {
				return err
			}
			s.args = append(s.args, v)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sink.SinkError(err, "failed to begin transaction")
	}
	if _, err := tx.ExecContext(ctx, s.InsertSQL(len(rows)), s.args...); err != nil {
		_ = tx.Rollback()
		return sink.SinkError(err, "failed to insert batch")
	}
	if err := tx.Commit(); err != nil {
		return sink.SinkError(err, "failed to commit batch")
	}
	s.logger.Debug("batch inserted", zap.Int("rows", len(rows)), zap.Int("total", s.batch.Flushed()+len(rows)))
	return nil
}

// BindValue converts a typed value to a driver argument; json columns are
// bound as their JSON text.
func BindValue(t schema.TypeTag, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	if t == schema.TypeJSON {
		text, err := sink.JSONText(v)
		if err != nil {
			return nil, sink.SinkError(err, "failed to encode json value")
		}
		return text, nil
	}
	if ts, ok := v.(time.Time); ok {
		return ts.UTC(), nil
	}
	return v, nil
}

// Finish implements core.RecordSink.
func (s *Sink) Finish(ctx context.Context) error {
	if err := s.batch.Drain(ctx); err != nil {
		return err
	}
	s.logger.Info("table load complete", zap.String("table", s.table), zap.Int("rows", s.batch.Flushed()))
	return nil
}

// Close implements sink.Sink.
func (s *Sink) Close() error {
	return s.db.Close()
}

// RedactDSN hides the password of a URL-style DSN for logging.
func RedactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		if at := strings.LastIndex(dsn, "@"); at > 0 {
			if colon := strings.Index(dsn[:at], ":"); colon >= 0 {
				return dsn[:colon+1] + "xxxxx" + dsn[at:]
			}
		}
		return dsn
	}
	return u.Redacted()
}
