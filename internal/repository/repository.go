package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"pos-backoffice/internal/apperr"
)

// Repository is the CRUD contract shared by every entity repository.
//
// FindByID returns a not-found error when no row matches. Update and Delete
// report false, with a nil error, when the key does not exist. Every
// statement is parameterized.
type Repository[T any, K comparable] interface {
	Insert(ctx context.Context, entity *T) (K, error)
	FindByID(ctx context.Context, id K) (*T, error)
	FindAll(ctx context.Context) ([]*T, error)
	Update(ctx context.Context, entity *T) (bool, error)
	Delete(ctx context.Context, id K) (bool, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// changed reports whether res touched at least one row.
func changed(res sql.Result, op string) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Query(fmt.Sprintf("failed to read rows affected by %s", op), err)
	}
	return n > 0, nil
}

// containsPattern turns user input into an ILIKE pattern matching it
// anywhere, with wildcards in the input taken literally.
func containsPattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
