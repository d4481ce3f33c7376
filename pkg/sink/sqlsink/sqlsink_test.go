package sqlsink

import (
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/jira-extract/pkg/schema"
)

var testDialect = Dialect{
	Driver:      "test",
	Quote:       QuoteWith(`"`),
	Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	ColumnType: func(t schema.TypeTag) string {
		if t == schema.TypeLong {
			return "BIGINT"
		}
		return "TEXT"
	},
}

func testSink() *Sink {
	return &Sink{
		dialect: testDialect,
		table:   "jira.issues",
		columns: []schema.ColumnSpec{
			{Name: "key", Type: schema.TypeString},
			{Name: `we"ird`, Type: schema.TypeLong},
		},
	}
}

func TestInsertSQL(t *testing.T) {
	s := testSink()
	assert.Equal(t,
		`INSERT INTO "jira"."issues" ("key", "we""ird") VALUES ($1, $2), ($3, $4)`,
		s.InsertSQL(2))
}

func TestCreateTableSQL(t *testing.T) {
	s := testSink()
	assert.Equal(t,
		`CREATE TABLE IF NOT EXISTS "jira"."issues" ("key" TEXT, "we""ird" BIGINT)`,
		s.CreateTableSQL())
}

func TestQuestionMarkDialect(t *testing.T) {
	s := testSink()
	s.dialect.Quote = QuoteWith("`")
	s.dialect.Placeholder = QuestionMark
	assert.Equal(t, "INSERT INTO `jira`.`issues` (`key`, `we\"ird`) VALUES (?, ?)", s.InsertSQL(1))
}

func TestBindValue(t *testing.T) {
	v, err := BindValue(schema.TypeJSON, map[string]interface{}{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, v)

	v, err = BindValue(schema.TypeJSON, nil)
	require.NoError(t, err)
	assert.Nil(t, v)

	ts := time.Date(2024, 1, 1, 10, 0, 0, 0, time.FixedZone("x", 7200))
	v, err = BindValue(schema.TypeTimestamp, ts)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, v.(time.Time).Location())

	v, err = BindValue(schema.TypeLong, int64(5))
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)
}

func TestBindValueJSONScalars(t *testing.T) {
	tests := []struct {
		name string
		raw  interface{}
		want string
	}{
		{"string", "In Progress", `"In Progress"`},
		{"string that looks like json", `{"a":1}`, `"{\"a\":1}"`},
		{"number", json.Number("42"), `42`},
		{"bool", true, `true`},
		{"list", []interface{}{"a", "b"}, `["a","b"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cast, err := schema.Cast(tt.raw, schema.TypeJSON, "")
			require.NoError(t, err)
			v, err := BindValue(schema.TypeJSON, cast)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
			assert.True(t, json.Valid([]byte(v.(string))))
		})
	}
}

func TestRedactDSN(t *testing.T) {
	assert.Equal(t, "postgres://jira:xxxxx@db:5432/etl", RedactDSN("postgres://jira:secret@db:5432/etl"))
	assert.Equal(t, "jira:xxxxx@tcp(db:3306)/etl", RedactDSN("jira:secret@tcp(db:3306)/etl"))
	assert.Equal(t, "no-credentials", RedactDSN("no-credentials"))
}
