package adapters

import (
	"context"
	"database/sql"
)

// DBAdapter defines the database operations needed by the delivery journal.
// The journal only ever writes, so a single Exec method suffices.
type DBAdapter interface {
	Exec(ctx context.Context, query string) (DBResult, error)
}

// DBResult defines the interface for execution results.
type DBResult interface {
	RowsAffected() (int64, error)
}

// stdResult wraps standard library sql.Result to implement DBResult.
type stdResult struct {
	result sql.Result
}

// RowsAffected returns the number of rows affected by the command.
func (s *stdResult) RowsAffected() (int64, error) {
	return s.result.RowsAffected()
}
