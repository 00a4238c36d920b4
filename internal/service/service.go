// Package service holds the back-office use cases. Every operation checks
// the current session before it touches a repository.
package service

import (
	"context"
	"database/sql"
)

// Transactor runs fn inside one database transaction, committing when fn
// returns nil. *database.Manager satisfies it.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error
}
