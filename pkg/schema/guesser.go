package schema

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// GuessColumns infers a column list from a small sample of records.
//
// Fields appear in first-seen order across the sample; keys inside one
// record are visited in sorted order so the output is stable for a given
// sample. Each field's type is the first of long, double, boolean,
// timestamp, json that every non-null value satisfies, falling back to
// string. A field that is null everywhere is a string.
func GuessColumns(records []RawRecord) []ColumnSpec {
	var order []string
	values := make(map[string][]interface{})

	for _, rec := range records {
		keys := make([]string, 0, len(rec))
		for k := range rec {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			if _, seen := values[k]; !seen {
				order = append(order, k)
				values[k] = nil
			}
			if v := rec[k]; v != nil {
				values[k] = append(values[k], v)
			}
		}
	}

	columns := make([]ColumnSpec, 0, len(order))
	for _, name := range order {
		tag, format := guessType(values[name])
		columns = append(columns, ColumnSpec{Name: name, Type: tag, Format: format})
	}
	return columns
}

// guessType applies the priority rule to the non-null values of one field.
func guessType(values []interface{}) (TypeTag, string) {
	if len(values) == 0 {
		return TypeString, ""
	}
	if all(values, looksLikeInteger) {
		return TypeLong, ""
	}
	if all(values, looksLikeFloat) {
		return TypeDouble, ""
	}
	if all(values, looksLikeBool) {
		return TypeBoolean, ""
	}
	if layout, ok := commonTimestampLayout(values); ok {
		return TypeTimestamp, layout
	}
	if all(values, looksLikeJSON) {
		return TypeJSON, ""
	}
	return TypeString, ""
}

func all(values []interface{}, pred func(interface{}) bool) bool {
	for _, v := range values {
		if !pred(v) {
			return false
		}
	}
	return true
}

func looksLikeInteger(v interface{}) bool {
	switch x := v.(type) {
	case int, int8, int16, int32, int64, uint8, uint16, uint32:
		return true
	case uint:
		return uint64(x) <= math.MaxInt64
	case uint64:
		return x <= math.MaxInt64
	case float64:
		return integral(x)
	case json.Number:
		_, err := x.Int64()
		return err == nil
	case string:
		_, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return err == nil
	default:
		return false
	}
}

func looksLikeFloat(v interface{}) bool {
	switch x := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	case json.Number:
		_, err := x.Float64()
		return err == nil
	case string:
		s := strings.TrimSpace(x)
		if !hasDigit(s) {
			return false
		}
		_, err := strconv.ParseFloat(s, 64)
		return err == nil
	default:
		return false
	}
}

// looksLikeBool accepts real booleans and the literals true/false only;
// the wider set Cast understands would misread y/n style codes.
func looksLikeBool(v interface{}) bool {
	switch x := v.(type) {
	case bool:
		return true
	case string:
		s := strings.ToLower(strings.TrimSpace(x))
		return s == "true" || s == "false"
	default:
		return false
	}
}

func looksLikeJSON(v interface{}) bool {
	switch v.(type) {
	case map[string]interface{}, []interface{}, RawRecord:
		return true
	default:
		return false
	}
}

// commonTimestampLayout returns the first default layout that parses every
// value. time.Time values fit any layout.
func commonTimestampLayout(values []interface{}) (string, bool) {
	for _, layout := range DefaultTimestampLayouts {
		ok := true
		for _, v := range values {
			switch x := v.(type) {
			case time.Time:
				continue
			case string:
				if _, err := time.Parse(layout, strings.TrimSpace(x)); err != nil {
					ok = false
				}
			default:
				ok = false
			}
			if !ok {
				break
			}
		}
		if ok {
			return layout, true
		}
	}
	return "", false
}
