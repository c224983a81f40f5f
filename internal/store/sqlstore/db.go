package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

//go:embed migrations
var migrations embed.FS

type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Open connects to a postgres URL or a sqlite path. SQLite is limited to a
// single connection so writers never contend for the file lock.
func Open(driver, dsn string, pool PoolConfig) (*bun.DB, error) {
	var (
		sqlDB *sql.DB
		err   error
	)
	switch driver {
	case DriverPostgres:
		sqlDB, err = sql.Open("pgx", dsn)
	case DriverSQLite:
		sqlDB, err = sql.Open("sqlite", dsn)
		pool.MaxOpenConns = 1
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	if err != nil {
		return nil, err
	}

	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	if pool.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(pool.ConnMaxIdleTime)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	if driver == DriverSQLite {
		return bun.NewDB(sqlDB, sqlitedialect.New()), nil
	}
	return bun.NewDB(sqlDB, pgdialect.New()), nil
}

func Close(db *bun.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

// Migrate applies the embedded schema migrations for the database's dialect.
func Migrate(ctx context.Context, db *bun.DB) error {
	dir := "migrations/postgres"
	gooseDialect := "postgres"
	if db.Dialect().Name() == dialect.SQLite {
		dir = "migrations/sqlite"
		gooseDialect = "sqlite3"
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect(gooseDialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db.DB, dir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
