// Package mysql loads rows into a MySQL table.
package mysql

import (
	"context"
	"time"

	_ "github.com/go-sql-driver/mysql" // registers the mysql driver
	"go.uber.org/zap"

	"github.com/ajitpratap0/jira-extract/pkg/schema"
	"github.com/ajitpratap0/jira-extract/pkg/sink"
	"github.com/ajitpratap0/jira-extract/pkg/sink/sqlsink"
)

func init() {
	sink.Register("mysql", New)
}

// Dialect is MySQL's.
var Dialect = sqlsink.Dialect{
	Driver:      "mysql",
	Quote:       sqlsink.QuoteWith("`"),
	Placeholder: sqlsink.QuestionMark,
	ColumnType:  columnType,
}

func columnType(t schema.TypeTag) string {
	switch t {
	case schema.TypeLong:
		return "BIGINT"
	case schema.TypeDouble:
		return "DOUBLE"
	case schema.TypeBoolean:
		return "BOOLEAN"
	case schema.TypeTimestamp:
		return "DATETIME(6)"
	case schema.TypeJSON:
		return "JSON"
	default:
		return "TEXT"
	}
}

// New creates a MySQL sink from dsn (go-sql-driver format) and table.
func New(ctx context.Context, p sink.Params) (sink.Sink, error) {
	if err := sink.Require("mysql", "dsn", p.Config.DSN, "table", p.Config.Table); err != nil {
		return nil, err
	}
	db, err := sqlsink.Open(ctx, Dialect.Driver, p.Config.DSN, 30*time.Second)
	if err != nil {
		return nil, err
	}
	p.Logger.Info("connected", zap.String("dsn", sqlsink.RedactDSN(p.Config.DSN)))

	s, err := sqlsink.New(ctx, db, Dialect, p)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}
