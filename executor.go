package quorm

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/go-sql-driver/mysql"
)

// Deadlock codes per backend. MySQL reports error 1213; PostgreSQL uses
// SQLSTATE 40P01 (deadlock detected) and 40001 (serialization failure).
const (
	mysqlDeadlock = 1213

	pgDeadlock             = "40P01"
	pgSerializationFailure = "40001"
)

// execWithRetry executes a write statement, re-issuing it exactly once if
// the first attempt dies as a deadlock victim. A second failure of any
// kind propagates.
func execWithRetry(ctx context.Context, q Querier, query string) (sql.Result, error) {
	res, err := q.ExecContext(ctx, query)
	if err == nil || !isDeadlock(err) {
		return res, err
	}
	log.Printf("[quorm] WARNING: deadlock detected, retrying once: %v", err)
	return q.ExecContext(ctx, query)
}

// isDeadlock reports whether err is a backend deadlock error. PostgreSQL
// drivers are detected through the SQLState interface so both pgx and pq
// work without importing either here.
func isDeadlock(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDeadlock
	}

	switch sqlState(err) {
	case pgDeadlock, pgSerializationFailure:
		return true
	}
	return false
}

// sqlState extracts the SQLSTATE code from a PostgreSQL error via
// interface detection:
//   - pgx/pgconn: SQLState() string
//   - lib/pq and wrappers: Code() string
//
// Returns empty string if the error carries no SQLSTATE.
func sqlState(err error) string {
	type sqlStateErr interface{ SQLState() string }
	var se sqlStateErr
	if errors.As(err, &se) {
		return se.SQLState()
	}

	type codeErr interface{ Code() string }
	var ce codeErr
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return ""
}
