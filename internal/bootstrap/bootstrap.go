// Package bootstrap holds the startup steps shared by the binaries.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"studiobook/backend/internal/config"
	"studiobook/backend/internal/domain"
	"studiobook/backend/internal/store"
	"studiobook/backend/internal/store/csvstore"
	"studiobook/backend/internal/store/memstore"
	"studiobook/backend/internal/store/redisstore"
	"studiobook/backend/internal/store/sqlstore"
)

func NewLogger(w io.Writer, level, service string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLogLevel(level)})).With(
		slog.String("service", service),
	)
}

func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// OpenStore initializes the configured backend before any request is served:
// CSV files are created, SQL migrations applied, redis pinged. The returned
// close function releases the backend's connections.
func OpenStore(ctx context.Context, cfg config.Config, log *slog.Logger) (store.Repository, func() error, error) {
	noop := func() error { return nil }

	switch cfg.StoreDriver {
	case config.DriverMemory:
		log.Warn("using in-memory store; data is lost on exit")
		return memstore.New(domain.Snapshot{}), noop, nil

	case config.DriverCSV:
		log.Info("opening csv store", slog.String("data_dir", cfg.DataDir))
		repo, err := csvstore.Open(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return repo, noop, nil

	case config.DriverRedis:
		log.Info("connecting to redis", slog.String("redis_addr", cfg.RedisAddr), slog.Int("redis_db", cfg.RedisDB))
		repo, err := redisstore.Open(ctx, redisstore.Config{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil

	case config.DriverPostgres, config.DriverSQLite:
		dsn := cfg.DatabaseURL
		args := DatabaseLogArgs(cfg.DatabaseURL)
		if cfg.StoreDriver == config.DriverSQLite {
			dsn = cfg.SQLitePath
			args = []any{slog.String("db_path", cfg.SQLitePath)}
		}
		log.Info("connecting to database", args...)
		db, err := sqlstore.Open(cfg.StoreDriver, dsn, sqlstore.PoolConfig{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
			ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		if err := sqlstore.Migrate(ctx, db); err != nil {
			_ = sqlstore.Close(db)
			return nil, nil, err
		}
		return sqlstore.NewStudioRepo(db), func() error { return sqlstore.Close(db) }, nil
	}
	return nil, nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
}

// DatabaseLogArgs describes a database URL without its credentials.
func DatabaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
