package database

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"pos-backoffice/internal/apperr"
	"pos-backoffice/migrations"
)

// gooseLogger routes goose output through zap.
type gooseLogger struct {
	sugar *zap.SugaredLogger
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) { l.sugar.Fatalf(format, v...) }
func (l gooseLogger) Printf(format string, v ...interface{}) { l.sugar.Infof(format, v...) }

func prepareGoose(logger *zap.Logger) error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(gooseLogger{sugar: logger.Sugar()})
	if err := goose.SetDialect("postgres"); err != nil {
		return apperr.Query("failed to set goose dialect", err)
	}
	return nil
}

// EnsureSchema applies every pending migration. Each migration only creates
// what is absent, so it is safe on every start, including against a schema
// created by hand before goose tracked it.
func EnsureSchema(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	if err := prepareGoose(logger); err != nil {
		return err
	}

	logger.Info("Checking for pending migrations...")

	if err := goose.UpContext(ctx, db, "."); err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return apperr.FromSQL("failed to run migrations", err)
	}

	logger.Info("Migrations completed successfully")
	return nil
}

// SchemaVersion returns the latest applied migration version.
func SchemaVersion(ctx context.Context, db *sql.DB, logger *zap.Logger) (int64, error) {
	if err := prepareGoose(logger); err != nil {
		return 0, err
	}
	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return 0, apperr.FromSQL("failed to read schema version", err)
	}
	return version, nil
}
