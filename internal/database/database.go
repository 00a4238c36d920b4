package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"pos-backoffice/internal/apperr"
	"pos-backoffice/internal/config"
)

const healthCheckTimeout = 5 * time.Second

// Manager owns the single connection the back office talks to the store
// through. The handle is opened on first use and reopened after Close.
// The pool is capped at one connection, so every statement serializes.
type Manager struct {
	mu     sync.Mutex
	cfg    config.DatabaseConfig
	db     *sql.DB
	logger *zap.Logger
}

func New(cfg config.DatabaseConfig, logger *zap.Logger) *Manager {
	if cfg.URL == "" {
		cfg.URL = config.DefaultDatabaseURL
	}
	return &Manager{cfg: cfg, logger: logger}
}

// DB returns the live handle, opening it if it is absent or was closed.
func (m *Manager) DB(ctx context.Context) (*sql.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db != nil {
		return m.db, nil
	}

	db, err := open(ctx, m.cfg)
	if err != nil {
		m.logger.Error("Failed to connect to database",
			zap.String("url", maskDSN(m.cfg.URL)),
			zap.Error(err),
		)
		return nil, err
	}

	m.db = db
	m.logger.Info("Database connection established", zap.String("url", maskDSN(m.cfg.URL)))
	return db, nil
}

// Querier implements Source.
func (m *Manager) Querier(ctx context.Context) (Querier, error) {
	return m.DB(ctx)
}

// Connect opens the connection, retrying with exponential backoff for up to
// maxElapsed. Used at process start when the store may still be booting.
func (m *Manager) Connect(ctx context.Context, maxElapsed time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxElapsed

	attempt := 0
	operation := func() error {
		attempt++
		if _, err := m.DB(ctx); err != nil {
			m.logger.Warn("Database not reachable yet", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		return nil
	}

	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}

// Close releases the connection. The next DB call reconnects.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	if err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	m.logger.Info("Database connection closed")
	return nil
}

// SetConnectionParameters replaces the connection settings and drops the
// current handle; the next DB call connects with the new settings.
func (m *Manager) SetConnectionParameters(cfg config.DatabaseConfig) error {
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	return m.Close()
}

// IsHealthy pings the store, bounded by five seconds.
func (m *Manager) IsHealthy(ctx context.Context) bool {
	db, err := m.DB(ctx)
	if err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	return db.PingContext(ctx) == nil
}

// Health reports connection status and pool statistics.
func (m *Manager) Health(ctx context.Context) map[string]string {
	stats := make(map[string]string)

	db, err := m.DB(ctx)
	if err != nil {
		stats["status"] = "down"
		stats["error"] = err.Error()
		return stats
	}

	pingCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		stats["status"] = "down"
		stats["error"] = err.Error()
		return stats
	}

	dbStats := db.Stats()
	stats["status"] = "up"
	stats["message"] = "It's healthy"
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	stats["wait_duration"] = dbStats.WaitDuration.String()
	return stats
}

// WithTransaction runs fn in a transaction; commits if fn returns nil,
// rolls back otherwise. Panics roll back and are re-thrown.
// fn must only use tx: the pool holds a single connection, so a statement
// issued through the Manager while tx is open blocks forever.
func (m *Manager) WithTransaction(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	db, err := m.DB(ctx)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.FromSQL("failed to begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				m.logger.Error("Failed to roll back transaction", zap.Error(rbErr))
			}
		} else if cerr := tx.Commit(); cerr != nil {
			err = apperr.FromSQL("failed to commit transaction", cerr)
		}
	}()

	err = fn(tx)
	return err
}

// ConnConfig resolves the driver settings for cfg. Explicit User and
// Password win; otherwise credentials embedded in the URL are kept. The
// package defaults apply only when the URL carries no credentials at all.
func ConnConfig(cfg config.DatabaseConfig) (*pgx.ConnConfig, error) {
	connCfg, err := pgx.ParseConfig(cfg.URL)
	if err != nil {
		return nil, apperr.Connection("invalid database url", err)
	}
	embedded := hasCredentials(cfg.URL)

	switch {
	case cfg.User != "":
		connCfg.User = cfg.User
	case !embedded:
		connCfg.User = config.DefaultDatabaseUser
	}
	switch {
	case cfg.Password != "":
		connCfg.Password = cfg.Password
	case !embedded:
		connCfg.Password = config.DefaultDatabasePassword
	}

	if cfg.ConnectTimeout > 0 {
		connCfg.ConnectTimeout = cfg.ConnectTimeout
	}
	return connCfg, nil
}

func open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	connCfg, err := ConnConfig(cfg)
	if err != nil {
		return nil, err
	}

	db := stdlib.OpenDB(*connCfg)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	pingCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, apperr.Connection("failed to connect to database", err)
	}
	return db, nil
}
