package database

import (
	"fmt"
	"strings"
)

// Assignments collects the SET clause of a partial UPDATE with positional
// ($n) placeholders.
type Assignments struct {
	cols []string
	args []any
}

// Set adds col = v.
func (a *Assignments) Set(col string, v any) {
	a.cols = append(a.cols, col)
	a.args = append(a.args, v)
}

// Len returns the number of assigned columns.
func (a *Assignments) Len() int {
	return len(a.cols)
}

// Update renders an UPDATE statement that bumps version and updated_at,
// filters on every where column by equality and returns the given columns.
func (a *Assignments) Update(table, returning string, where []string, whereArgs ...any) (string, []any) {
	var b strings.Builder
	args := make([]any, 0, len(a.args)+len(whereArgs))

	fmt.Fprintf(&b, "UPDATE %s SET ", table)
	for i, col := range a.cols {
		fmt.Fprintf(&b, "%s = $%d, ", col, i+1)
	}
	b.WriteString("version = version + 1, updated_at = NOW() WHERE ")
	args = append(args, a.args...)

	for i, col := range where {
		if i > 0 {
			b.WriteString(" AND ")
		}
		fmt.Fprintf(&b, "%s = $%d", col, len(a.cols)+i+1)
	}
	args = append(args, whereArgs...)

	if returning != "" {
		b.WriteString(" RETURNING ")
		b.WriteString(returning)
	}
	return b.String(), args
}
