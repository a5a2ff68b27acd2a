package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"jobtracker-backend/internal/shared/telemetry"
)

// ErrNoDatabaseURL is returned when no connection string was configured.
var ErrNoDatabaseURL = errors.New("DATABASE_URL is empty")

// Profile names the kind of process owning the pool.
type Profile string

const (
	ProfileServer  Profile = "server"
	ProfileLambda  Profile = "lambda"
	ProfileMigrate Profile = "migrate"
)

// Options controls pool sizing and the connect-time ping.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

var profileDefaults = map[Profile]Options{
	ProfileServer:  {MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetime: time.Hour, ConnMaxIdleTime: 2 * time.Minute, PingTimeout: 5 * time.Second},
	ProfileLambda:  {MaxOpenConns: 2, MaxIdleConns: 1, ConnMaxLifetime: 15 * time.Minute, ConnMaxIdleTime: 30 * time.Second, PingTimeout: 3 * time.Second},
	ProfileMigrate: {MaxOpenConns: 1, MaxIdleConns: 1, ConnMaxLifetime: time.Hour, ConnMaxIdleTime: 2 * time.Minute, PingTimeout: 5 * time.Second},
}

// IsLambdaRuntime reports whether the process runs inside AWS Lambda.
func IsLambdaRuntime() bool {
	return strings.TrimSpace(os.Getenv("AWS_LAMBDA_FUNCTION_NAME")) != ""
}

// PoolOptions returns the defaults for p with DB_* environment overrides applied.
func PoolOptions(p Profile) Options {
	opts, ok := profileDefaults[p]
	if !ok {
		opts = profileDefaults[ProfileServer]
	}
	return opts.Override(os.LookupEnv)
}

// Override replaces fields whose DB_* key lookup returns a parseable value.
func (o Options) Override(lookup func(string) (string, bool)) Options {
	intVar := func(key string, dst *int) {
		if raw, ok := lookup(key); ok && strings.TrimSpace(raw) != "" {
			v, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				telemetry.Warn("db.invalid_env", map[string]any{"key": key, "error": err.Error()})
				return
			}
			*dst = v
		}
	}
	durVar := func(key string, dst *time.Duration) {
		if raw, ok := lookup(key); ok && strings.TrimSpace(raw) != "" {
			v, err := time.ParseDuration(strings.TrimSpace(raw))
			if err != nil {
				telemetry.Warn("db.invalid_env", map[string]any{"key": key, "error": err.Error()})
				return
			}
			*dst = v
		}
	}
	intVar("DB_MAX_OPEN_CONNS", &o.MaxOpenConns)
	intVar("DB_MAX_IDLE_CONNS", &o.MaxIdleConns)
	durVar("DB_CONN_MAX_LIFETIME", &o.ConnMaxLifetime)
	durVar("DB_CONN_MAX_IDLE_TIME", &o.ConnMaxIdleTime)
	durVar("DB_PING_TIMEOUT", &o.PingTimeout)
	return o
}

func (o Options) apply(database *sql.DB) {
	database.SetMaxOpenConns(max(o.MaxOpenConns, 1))
	database.SetMaxIdleConns(max(o.MaxIdleConns, 0))
	if o.ConnMaxLifetime > 0 {
		database.SetConnMaxLifetime(o.ConnMaxLifetime)
	}
	if o.ConnMaxIdleTime > 0 {
		database.SetConnMaxIdleTime(o.ConnMaxIdleTime)
	}
}

var openDB = sql.Open

// Connect parses databaseURL, opens a pgx-backed pool and pings it. Callers
// share the returned handle.
func Connect(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	databaseURL = strings.TrimSpace(databaseURL)
	if databaseURL == "" {
		return nil, ErrNoDatabaseURL
	}
	parsed, err := pgx.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	database, err := openDB("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	opts.apply(database)

	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := database.PingContext(pingCtx); err != nil {
		database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	telemetry.Info("db.connected", map[string]any{
		"host":     parsed.Host,
		"database": parsed.Database,
		"max_open": database.Stats().MaxOpenConnections,
	})
	return database, nil
}

var shared struct {
	mu sync.Mutex
	db *sql.DB
}

// Shared returns the process-wide pool, connecting on first use. A failed
// connect is not cached; the next call tries again.
func Shared(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	shared.mu.Lock()
	defer shared.mu.Unlock()
	if shared.db != nil {
		return shared.db, nil
	}
	database, err := Connect(ctx, databaseURL, opts)
	if err != nil {
		return nil, err
	}
	shared.db = database
	telemetry.Info("db.shared_init", nil)
	return database, nil
}

// Ping verifies connectivity for health checks.
func Ping(ctx context.Context, database *sql.DB) error {
	if database == nil {
		return errors.New("database not configured")
	}
	return database.PingContext(ctx)
}
