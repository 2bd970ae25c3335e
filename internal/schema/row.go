package schema

import (
	"fmt"

	"github.com/flintdb/flintdb/internal/ferr"
)

// Row is a fixed-length typed value vector matching its schema's column
// order, plus a 64-bit identity that is -1 until the row is assigned one
// by a write.
type Row struct {
	ID     int64
	Values []Value
}

// NewRow builds a row over values, with no id assigned yet.
func NewRow(values []Value) Row {
	return Row{ID: -1, Values: values}
}

// Equal compares two rows: equality ignores row-id when both are -1;
// otherwise row-id equality short-circuits the comparison.
func (r Row) Equal(o Row) bool {
	if r.ID != -1 || o.ID != -1 {
		return r.ID == o.ID
	}

	if len(r.Values) != len(o.Values) {
		return false
	}

	for i := range r.Values {
		if !r.Values[i].Equal(o.Values[i]) {
			return false
		}
	}

	return true
}

// Validate checks the len(values) == len(columns) invariant.
func Validate(columns []Column, r Row) error {
	if len(r.Values) != len(columns) {
		return fmt.Errorf("row has %d values, schema has %d columns: %w", len(r.Values), len(columns), ferr.Format)
	}

	return nil
}
