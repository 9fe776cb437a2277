// Package repo – database bootstrapping
//
// This file opens the SQL backend (SQLite through the pure Go driver, or
// Postgres through pgx), instruments it with OpenTelemetry and owns the lazy
// schema gate used by the SQL stores.
package repo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-discord-bot/internal/domain"
)

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." && !strings.HasPrefix(path, "file:") {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// OpenPostgres opens a lazily connected Postgres pool. The server is not
// contacted until the first query, so an unreachable database surfaces as
// ErrUnavailable on use instead of failing startup.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: dsn}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	return db, nil
}

// OpenDatabase selects the driver from the URL scheme: postgres:// and
// postgresql:// use Postgres; sqlite: and file: use SQLite. The handle is
// instrumented with OpenTelemetry tracing.
func OpenDatabase(databaseURL string) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	switch u := strings.TrimSpace(databaseURL); {
	case strings.HasPrefix(u, "postgres://"), strings.HasPrefix(u, "postgresql://"):
		db, err = OpenPostgres(u)
	case strings.HasPrefix(u, "sqlite://"):
		db, err = OpenSQLite(strings.TrimPrefix(u, "sqlite://"))
	case strings.HasPrefix(u, "sqlite:"):
		db, err = OpenSQLite(strings.TrimPrefix(u, "sqlite:"))
	case strings.HasPrefix(u, "file:"):
		db, err = OpenSQLite(u)
	default:
		return nil, fmt.Errorf("unsupported database url %q: want postgres://, postgresql://, sqlite: or file:", redactURL(u))
	}
	if err != nil {
		return nil, err
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}
	return db, nil
}

// AutoMigrate creates or updates every table of the SQL backend.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Reminder{},
		&domain.Gif{},
	)
}

// schemaGate runs AutoMigrate for a set of models on first use. A failed
// attempt is retried by the next caller.
type schemaGate struct {
	db     *gorm.DB
	models []any

	mu    sync.Mutex
	ready bool
}

func newSchemaGate(db *gorm.DB, models ...any) *schemaGate {
	return &schemaGate{db: db, models: models}
}

func (g *schemaGate) ensure(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ready {
		return nil
	}
	if err := g.db.WithContext(ctx).AutoMigrate(g.models...); err != nil {
		return unavailable("ensure schema", err)
	}
	g.ready = true
	return nil
}

// unavailable wraps a database failure so callers can match ErrUnavailable.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// isUniqueViolation reports whether err is a unique constraint violation on
// either supported driver.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// redactURL hides credentials of a connection URL for log and error output.
func redactURL(u string) string {
	at := strings.LastIndex(u, "@")
	scheme := strings.Index(u, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return u
	}
	return u[:scheme+3] + "***" + u[at:]
}
