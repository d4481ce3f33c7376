package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/jira-extract/pkg/errors"
	"github.com/ajitpratap0/jira-extract/pkg/schema"
	"github.com/ajitpratap0/jira-extract/pkg/sink"
)

func TestCreateTableSQL(t *testing.T) {
	sql := CreateTableSQL(pgx.Identifier{"jira", "issues"}, []schema.ColumnSpec{
		{Name: "key", Type: schema.TypeString},
		{Name: "fields.votes", Type: schema.TypeLong},
		{Name: "score", Type: schema.TypeDouble},
		{Name: "done", Type: schema.TypeBoolean},
		{Name: "created", Type: schema.TypeTimestamp},
		{Name: "fields", Type: schema.TypeJSON},
	})
	assert.Equal(t,
		`CREATE TABLE IF NOT EXISTS "jira"."issues" ("key" text, "fields.votes" bigint, "score" double precision, `+
			`"done" boolean, "created" timestamptz, "fields" jsonb)`,
		sql)
}

func TestNewRequiresSettings(t *testing.T) {
	_, err := New(context.Background(), sink.Params{Config: sink.Config{Type: "postgres", DSN: "postgres://x"}})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Contains(t, err.Error(), "table")
}

func TestNewRejectsBadDSN(t *testing.T) {
	_, err := New(context.Background(), sink.Params{Config: sink.Config{DSN: "postgres://%zz", Table: "t"}})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
