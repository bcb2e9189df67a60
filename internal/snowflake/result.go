package snowflake

import (
	"strconv"
	"strings"
	"time"
)

// Result is a fully collected result set with lowercase column names.
type Result struct {
	Columns []string
	Rows    []Row
}

// Row maps lowercase column names to normalized driver values.
type Row map[string]interface{}

// Empty reports whether the result has no rows.
func (r *Result) Empty() bool {
	return r == nil || len(r.Rows) == 0
}

// First returns the first row, if any.
func (r *Result) First() (Row, bool) {
	if r.Empty() {
		return nil, false
	}
	return r.Rows[0], true
}

// Strings returns a column as a string slice, one entry per row.
func (r *Result) Strings(col string) []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		out = append(out, row.Str(col))
	}
	return out
}

// Has reports whether the row carries a non-nil value for col.
func (row Row) Has(col string) bool {
	v, ok := row[col]
	return ok && v != nil
}

// Str coerces a column to string. Nil becomes "".
func (row Row) Str(col string) string {
	v, ok := row[col]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case time.Time:
		return s.Format(time.RFC3339)
	case bool:
		if s {
			return "true"
		}
		return "false"
	case int64:
		return strconv.FormatInt(s, 10)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}

// Int coerces a column to int64. Unparseable values become 0.
func (row Row) Int(col string) int64 {
	v, ok := row[col]
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			// Snowflake NUMBER columns can surface as decimal strings
			f, ferr := strconv.ParseFloat(strings.TrimSpace(n), 64)
			if ferr != nil {
				return 0
			}
			return int64(f)
		}
		return parsed
	case bool:
		if n {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// Float coerces a column to float64. Unparseable values become 0.
func (row Row) Float(col string) float64 {
	v, ok := row[col]
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// Bool coerces a column to bool. Recognizes the spellings Snowflake
// uses across SHOW output and BOOLEAN columns ("true", "Y", "yes", 1).
func (row Row) Bool(col string) bool {
	v, ok := row[col]
	if !ok || v == nil {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "t", "yes", "y", "1", "on":
			return true
		}
		return false
	case int64:
		return b != 0
	case float64:
		return b != 0
	default:
		return false
	}
}

// Time coerces a column to time.Time, returning the zero value when the
// column is absent or unparseable.
func (row Row) Time(col string) time.Time {
	v, ok := row[col]
	if !ok || v == nil {
		return time.Time{}
	}
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		for _, layout := range []string{
			time.RFC3339Nano,
			time.RFC3339,
			"2006-01-02 15:04:05.999999999 -0700 MST",
			"2006-01-02 15:04:05.999",
			"2006-01-02 15:04:05",
			"2006-01-02",
		} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed
			}
		}
		return time.Time{}
	default:
		return time.Time{}
	}
}
