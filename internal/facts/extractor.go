package facts

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tmslabs/factsync/internal/errors"
)

// Extractor runs fact extraction queries against the operational source
// database. Read-only; it never writes.
type Extractor struct {
	src         *sql.DB
	defaultFrom time.Time
	now         func() time.Time
}

// NewExtractor creates an extractor. defaultFrom is the project's "data
// starts here" date applied when a window omits its lower bound.
func NewExtractor(src *sql.DB, defaultFrom time.Time) *Extractor {
	return &Extractor{src: src, defaultFrom: defaultFrom, now: time.Now}
}

// Extract runs the fact's extraction query over the inclusive date window
// and returns the result with the declared column schema.
func (e *Extractor) Extract(ctx context.Context, spec Spec, window Window) (RowSet, error) {
	from, to := window.Resolve(e.defaultFrom, e.now())

	rows, err := e.src.QueryContext(ctx, spec.query(), from, to)
	if err != nil {
		return RowSet{}, errors.NewQuery(string(spec.Type)+" extraction", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return RowSet{}, errors.NewQuery(string(spec.Type)+" extraction", err)
	}
	if err := matchSchema(spec, columns); err != nil {
		return RowSet{}, err
	}

	out := RowSet{Columns: columns}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return RowSet{}, errors.NewQuery(string(spec.Type)+" extraction", err)
		}
		out.Rows = append(out.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return RowSet{}, errors.NewQuery(string(spec.Type)+" extraction", err)
	}

	return out, nil
}

// matchSchema rejects result sets whose column list drifted from the
// declared fact schema, instead of silently merging whatever came back.
func matchSchema(spec Spec, got []string) error {
	want := spec.ExtractColumns()
	if len(got) != len(want) {
		return errors.NewQuery(string(spec.Type)+" extraction",
			fmt.Errorf("schema drift: query returned %d columns, fact declares %d", len(got), len(want)))
	}
	for i := range want {
		if got[i] != want[i] {
			return errors.NewQuery(string(spec.Type)+" extraction",
				fmt.Errorf("schema drift: column %d is %q, fact declares %q", i, got[i], want[i]))
		}
	}
	return nil
}
