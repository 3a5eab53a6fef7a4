// Package execution drives the storage API from parsed statements: it looks
// tables up in the catalog, evaluates expressions against rows, and turns
// every outcome into a Result the caller can present.
package execution

import (
	"tinydb/pkg/types"
)

// Result is the outcome of executing one statement. SELECT fills Columns
// and Rows; the mutating statements report RowsAffected. A failed execution
// carries the error message and leaves the rest zero.
type Result struct {
	Success      bool
	Message      string
	RowsAffected int
	Columns      []string
	Rows         [][]types.Value
}

// errorResult packages an error into a failed Result.
func errorResult(err error) Result {
	return Result{Message: err.Error()}
}

// successResult reports a mutation that touched n rows.
func successResult(n int) Result {
	return Result{Success: true, RowsAffected: n}
}
