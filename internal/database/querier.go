package database

import (
	"context"
	"database/sql"
	"net/url"
	"strings"
)

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Source hands a repository the Querier its next statement runs on.
type Source interface {
	Querier(ctx context.Context) (Querier, error)
}

type txSource struct {
	tx *sql.Tx
}

// TxSource binds statements to an open transaction.
func TxSource(tx *sql.Tx) Source {
	return txSource{tx: tx}
}

func (s txSource) Querier(context.Context) (Querier, error) {
	return s.tx, nil
}

// maskDSN hides credentials embedded in a connection URL.
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	u.User = url.User("xxxxx")
	return u.String()
}

// hasCredentials reports whether dsn itself names a user or a password, in
// URL or keyword/value form.
func hasCredentials(dsn string) bool {
	if u, err := url.Parse(dsn); err == nil && (u.Scheme == "postgres" || u.Scheme == "postgresql") {
		if u.User != nil && u.User.String() != "" {
			return true
		}
		q := u.Query()
		return q.Get("user") != "" || q.Get("password") != ""
	}
	return strings.Contains(dsn, "user=") || strings.Contains(dsn, "password=")
}
