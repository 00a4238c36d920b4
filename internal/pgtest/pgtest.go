// Package pgtest starts a disposable PostgreSQL container for integration
// tests.
package pgtest

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"pos-backoffice/internal/config"
)

const (
	dbName = "testdb"
	dbUser = "user"
	dbPwd  = "password"
)

type Instance struct {
	URL       string
	container *postgres.PostgresContainer
}

func Start(ctx context.Context) (*Instance, error) {
	dbContainer, err := postgres.Run(
		ctx,
		"postgres:15",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, err
	}

	host, err := dbContainer.Host(ctx)
	if err != nil {
		_ = dbContainer.Terminate(ctx)
		return nil, err
	}
	port, err := dbContainer.MappedPort(ctx, "5432/tcp")
	if err != nil {
		_ = dbContainer.Terminate(ctx)
		return nil, err
	}

	return &Instance{
		URL:       fmt.Sprintf("postgres://%s:%s/%s?sslmode=disable", host, port.Port(), dbName),
		container: dbContainer,
	}, nil
}

// Config returns connection settings for the container.
func (i *Instance) Config() config.DatabaseConfig {
	return config.DatabaseConfig{
		URL:            i.URL,
		User:           dbUser,
		Password:       dbPwd,
		ConnectTimeout: 5 * time.Second,
	}
}

func (i *Instance) Terminate(ctx context.Context) error {
	return i.container.Terminate(ctx)
}

// Truncate empties every back-office table and restarts identities.
func Truncate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `TRUNCATE venta_producto, venta, producto_categoria, producto, categoria, usuario RESTART IDENTITY CASCADE`)
	return err
}
