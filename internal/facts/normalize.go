package facts

import (
	"time"

	"github.com/tmslabs/factsync/internal/db"
)

// Plausible calendar range for date values. Anything outside is a sentinel
// from the source system and becomes nil.
var (
	minPlausibleDate = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	maxPlausibleDate = time.Date(2100, 12, 31, 0, 0, 0, 0, time.UTC)
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
}

// Normalize post-processes an extracted row set: date columns are coerced
// to calendar dates (unparsable or implausible values become nil, never an
// error), and a last_synced timestamp column is appended when missing.
//
// Total: bad input degrades to nil rather than failing the run. Filtering
// and aggregation stay with extraction. The input is not mutated.
func Normalize(rs RowSet, spec Spec, now time.Time) RowSet {
	kinds := spec.Kinds()

	appendSynced := rs.ColumnIndex(LastSyncedColumn) < 0
	columns := make([]string, len(rs.Columns), len(rs.Columns)+1)
	copy(columns, rs.Columns)
	if appendSynced {
		columns = append(columns, LastSyncedColumn)
	}

	out := RowSet{Columns: columns, Rows: make([][]interface{}, 0, len(rs.Rows))}
	for _, row := range rs.Rows {
		next := make([]interface{}, len(row), len(columns))
		copy(next, row)
		for i, col := range rs.Columns {
			if kinds[col] == db.KindDate {
				next[i] = coerceDate(next[i])
			}
		}
		if appendSynced {
			next = append(next, now)
		}
		out.Rows = append(out.Rows, next)
	}
	return out
}

// coerceDate turns whatever representation arrived into a calendar date.
func coerceDate(v interface{}) interface{} {
	var t time.Time
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		t = val
	case string:
		parsed, ok := parseDate(val)
		if !ok {
			return nil
		}
		t = parsed
	case []byte:
		parsed, ok := parseDate(string(val))
		if !ok {
			return nil
		}
		t = parsed
	default:
		return nil
	}

	date := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	if date.Before(minPlausibleDate) || date.After(maxPlausibleDate) {
		return nil
	}
	return date
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
