// Package snowflake loads rows into a Snowflake table.
package snowflake

import (
	"context"
	"time"

	_ "github.com/snowflakedb/gosnowflake" // registers the snowflake driver
	"go.uber.org/zap"

	"github.com/ajitpratap0/jira-extract/pkg/schema"
	"github.com/ajitpratap0/jira-extract/pkg/sink"
	"github.com/ajitpratap0/jira-extract/pkg/sink/sqlsink"
)

func init() {
	sink.Register("snowflake", New)
}

// Dialect is Snowflake's. JSON columns are stored as VARCHAR since
// VARIANT values cannot be bound in a VALUES list.
var Dialect = sqlsink.Dialect{
	Driver:      "snowflake",
	Quote:       sqlsink.QuoteWith(`"`),
	Placeholder: sqlsink.QuestionMark,
	ColumnType:  columnType,
}

func columnType(t schema.TypeTag) string {
	switch t {
	case schema.TypeLong:
		return "NUMBER(38,0)"
	case schema.TypeDouble:
		return "FLOAT"
	case schema.TypeBoolean:
		return "BOOLEAN"
	case schema.TypeTimestamp:
		return "TIMESTAMP_TZ"
	default:
		return "VARCHAR"
	}
}

// New creates a Snowflake sink. dsn uses the gosnowflake format
// (user:password@account/database/schema?warehouse=wh).
func New(ctx context.Context, p sink.Params) (sink.Sink, error) {
	if err := sink.Require("snowflake", "dsn", p.Config.DSN, "table", p.Config.Table); err != nil {
		return nil, err
	}
	db, err := sqlsink.Open(ctx, Dialect.Driver, p.Config.DSN, 60*time.Second)
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
