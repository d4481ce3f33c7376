package sink

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/jira-extract/pkg/schema"
)

// FormatValue renders a typed value as text. Null renders as nullString.
func FormatValue(v interface{}, nullString string) string {
	switch x := v.(type) {
	case nil:
		return nullString
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	default:
		b, err := gojson.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// JSONText renders a json column value as JSON text. A string value is a
// JSON string and comes out quoted.
func JSONText(v interface{}) (string, error) {
	b, err := gojson.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Identifier turns a column name into a letters, digits and underscore
// identifier not starting with a digit, as Avro and BigQuery require.
func Identifier(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

// RowEncoder renders rows as JSON objects with keys in column order.
// Timestamps are RFC 3339 strings in UTC.
type RowEncoder struct {
	keys [][]byte
	buf  bytes.Buffer
}

// NewRowEncoder prepares the encoded keys for columns.
func NewRowEncoder(columns []schema.ColumnSpec) (*RowEncoder, error) {
	keys := make([][]byte, len(columns))
	for i, c := range columns {
		k, err := gojson.Marshal(c.Name)
		if err != nil {
			return nil, SinkError(err, "failed to encode column name")
		}
		keys[i] = k
	}
	return &RowEncoder{keys: keys}, nil
}

// Encode returns the JSON object for row. The slice is reused by the next
// call.
func (e *RowEncoder) Encode(row schema.Row) ([]byte, error) {
	e.buf.Reset()
	e.buf.WriteByte('{')
	for i := 0; i < row.Len(); i++ {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		e.buf.Write(e.keys[i])
		e.buf.WriteByte(':')

		v := row.Value(i)
		if t, ok := v.(time.Time); ok {
			v = t.UTC().Format(time.RFC3339Nano)
		}
		b, err := gojson.Marshal(v)
		if err != nil {
			return nil, SinkError(err, "failed to encode value")
		}
		e.buf.Write(b)
	}
	e.buf.WriteByte('}')
	return e.buf.Bytes(), nil
}
