package schema

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/spf13/cast"

	"github.com/ajitpratap0/jira-extract/pkg/errors"
)

// DefaultTimestampLayouts are tried in order when a timestamp column has no
// format. The second entry is the layout Jira uses for created/updated.
var DefaultTimestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Cast converts a raw API value to the Go representation of tag:
//
//	string    -> string
//	long      -> int64
//	double    -> float64
//	boolean   -> bool
//	timestamp -> time.Time (UTC)
//	json      -> the raw structured value
//
// nil is null for every type and casts to nil. Failures are data errors.
func Cast(raw interface{}, tag TypeTag, format string) (interface{}, error) {
	if raw == nil {
		return nil, nil
	}

	switch tag {
	case TypeString:
		return castString(raw)
	case TypeLong:
		return castLong(raw)
	case TypeDouble:
		return castDouble(raw)
	case TypeBoolean:
		return castBoolean(raw)
	case TypeTimestamp:
		return castTimestamp(raw, format)
	case TypeJSON:
		return raw, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown column type %q", tag)
	}
}

func castError(raw interface{}, tag TypeTag, cause error) error {
	msg := "cannot cast value to " + string(tag)
	var e *errors.Error
	if cause != nil {
		e = errors.Wrap(cause, errors.ErrorTypeData, msg)
	} else {
		e = errors.New(errors.ErrorTypeData, msg)
	}
	return e.WithDetail("type", string(tag)).WithDetail("value", raw)
}

func castString(raw interface{}) (interface{}, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano), nil
	case map[string]interface{}, []interface{}, RawRecord:
		b, err := gojson.Marshal(v)
		if err != nil {
			return nil, castError(raw, TypeString, err)
		}
		return string(b), nil
	}
	s, err := cast.ToStringE(raw)
	if err != nil {
		return nil, castError(raw, TypeString, err)
	}
	return s, nil
}

func castLong(raw interface{}) (interface{}, error) {
	switch v := raw.(type) {
	case bool:
		return nil, castError(raw, TypeLong, nil)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		f, err := v.Float64()
		if err != nil || !integral(f) {
			return nil, castError(raw, TypeLong, err)
		}
		return int64(f), nil
	case float32:
		if !integral(float64(v)) {
			return nil, castError(raw, TypeLong, nil)
		}
		return int64(v), nil
	case float64:
		if !integral(v) {
			return nil, castError(raw, TypeLong, nil)
		}
		return int64(v), nil
	case string:
		// base 10 only: leading zeros in issue numbers are not octal
		i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, castError(raw, TypeLong, err)
		}
		return i, nil
	case uint64:
		if v > math.MaxInt64 {
			return nil, castError(raw, TypeLong, nil)
		}
		return int64(v), nil
	case uint:
		if uint64(v) > math.MaxInt64 {
			return nil, castError(raw, TypeLong, nil)
		}
		return int64(v), nil
	}
	i, err := cast.ToInt64E(raw)
	if err != nil {
		return nil, castError(raw, TypeLong, err)
	}
	return i, nil
}

// integral reports whether f is a whole number int64 can hold. The upper
// bound is strict: float64(math.MaxInt64) rounds up to 2^63.
func integral(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f) && f == math.Trunc(f) &&
		f >= math.MinInt64 && f < math.MaxInt64
}

func castDouble(raw interface{}) (interface{}, error) {
	switch v := raw.(type) {
	case bool:
		return nil, castError(raw, TypeDouble, nil)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, castError(raw, TypeDouble, err)
		}
		return f, nil
	case string:
		s := strings.TrimSpace(v)
		if !hasDigit(s) {
			return nil, castError(raw, TypeDouble, nil)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, castError(raw, TypeDouble, err)
		}
		return f, nil
	}
	f, err := cast.ToFloat64E(raw)
	if err != nil {
		return nil, castError(raw, TypeDouble, err)
	}
	return f, nil
}

func hasDigit(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}

func castBoolean(raw interface{}) (interface{}, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "t", "yes", "y", "on", "1":
			return true, nil
		case "false", "f", "no", "n", "off", "0":
			return false, nil
		}
		return nil, castError(raw, TypeBoolean, nil)
	case json.Number:
		return castBoolean(v.String())
	case float32, float64:
		// only 0 and 1 are accepted below, floats never are
		return nil, castError(raw, TypeBoolean, nil)
	}
	i, err := cast.ToInt64E(raw)
	if err != nil || (i != 0 && i != 1) {
		return nil, castError(raw, TypeBoolean, err)
	}
	return i == 1, nil
}

func castTimestamp(raw interface{}, format string) (interface{}, error) {
	switch v := raw.(type) {
	case time.Time:
		return v.UTC(), nil
	case string:
		t, _, err := ParseTimestamp(v, format)
		if err != nil {
			return nil, castError(raw, TypeTimestamp, err)
		}
		return t, nil
	case json.Number:
		return castTimestamp(v.String(), format)
	}
	secs, err := cast.ToInt64E(raw)
	if err != nil {
		return nil, castError(raw, TypeTimestamp, err)
	}
	return time.Unix(secs, 0).UTC(), nil
}

// ParseTimestamp parses s with format, or with DefaultTimestampLayouts when
// format is empty. Formats containing '%' are read as strftime patterns.
// A purely numeric s is taken as epoch seconds. The layout that matched is
// returned alongside the UTC time.
func ParseTimestamp(s, format string) (time.Time, string, error) {
	s = strings.TrimSpace(s)
	if format != "" {
		layout := format
		if strings.Contains(format, "%") {
			layout = StrftimeToLayout(format)
		}
		t, err := time.Parse(layout, s)
		if err != nil {
			return time.Time{}, "", err
		}
		return t.UTC(), layout, nil
	}

	var firstErr error
	for _, layout := range DefaultTimestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), layout, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), "", nil
	}
	return time.Time{}, "", firstErr
}

var strftimeDirectives = map[byte]string{
	'Y': "2006",
	'y': "06",
	'm': "01",
	'd': "02",
	'e': "_2",
	'H': "15",
	'I': "03",
	'M': "04",
	'S': "05",
	'L': "000",
	'N': "000000000",
	'p': "PM",
	'z': "-0700",
	'Z': "MST",
	'b': "Jan",
	'B': "January",
	'a': "Mon",
	'A': "Monday",
	'j': "002",
	'%': "%",
}

// StrftimeToLayout translates a strftime pattern such as
// "%Y-%m-%dT%H:%M:%S.%L%z" to a Go reference layout. Unknown directives are
// copied through unchanged.
func StrftimeToLayout(format string) string {
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' || i+1 == len(format) {
			b.WriteByte(c)
			continue
		}
		i++
		if layout, ok := strftimeDirectives[format[i]]; ok {
			b.WriteString(layout)
		} else {
			b.WriteByte('%')
			b.WriteByte(format[i])
		}
	}
	return b.String()
}
