package apperr

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// FromSQL classifies a database/sql or pgx error. msg describes the failed
// operation ("failed to insert user"). Errors that are already classified
// pass through unchanged.
func FromSQL(msg string, err error) error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return err
	}

	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
		return &Error{Kind: KindNotFound, Message: msg, Err: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return Query(msg, fmt.Errorf("%w: %w", ErrDuplicate, err))
		case "23503": // foreign_key_violation
			return Query(msg, fmt.Errorf("%w: %w", ErrForeignKey, err))
		case "23514": // check_violation
			return Query(msg, fmt.Errorf("%w: %w", ErrCheck, err))
		case "22003": // numeric_value_out_of_range
			return &Error{Kind: KindValidation, Message: msg, Err: fmt.Errorf("%w: %w", ErrOutOfRange, err)}
		}
		if isConnectionClass(pgErr.Code) {
			return Connection(msg, err)
		}
		return Query(msg, err)
	}

	if isConnectionFailure(err) {
		return Connection(msg, err)
	}

	return Query(msg, err)
}

// SQLSTATE classes 08 (connection exception), 28 (invalid authorization),
// 3D (invalid catalog name) and 57P (operator intervention).
func isConnectionClass(code string) bool {
	if len(code) < 2 {
		return false
	}
	switch code[:2] {
	case "08", "28", "3D":
		return true
	}
	return len(code) >= 3 && code[:3] == "57P"
}

func isConnectionFailure(err error) bool {
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
