// Package store is the persistence gateway for users, missions, tasks and
// mission participants. It runs on bun over SQLite (modernc.org/sqlite) or
// PostgreSQL (pgx pool).
//
// Constraint violations from either driver are translated into the
// pkg/api/v1 error taxonomy, and every multi-statement write runs inside a
// single transaction.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/questd/internal/config"
	"github.com/fyrsmithlabs/questd/pkg/auth"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Store provides access to questd's persistent entities.
type Store struct {
	db     *bun.DB
	pool   *pgxpool.Pool
	driver string

	hasher *auth.PasswordHasher
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithPasswordHasher overrides the bcrypt hasher, e.g. with a low cost in
// tests.
func WithPasswordHasher(h *auth.PasswordHasher) Option {
	return func(s *Store) { s.hasher = h }
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open connects to the configured database. It does not create tables; call
// Migrate for that.
func Open(ctx context.Context, cfg config.DatabaseConfig, opts ...Option) (*Store, error) {
	s := &Store{
		driver: cfg.Driver,
		hasher: auth.NewPasswordHasher(0),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	switch cfg.Driver {
	case config.DriverSQLite:
		sqldb, err := sql.Open("sqlite", sqliteDSN(cfg.DSN.Value()))
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// SQLite serializes writers; one connection avoids SQLITE_BUSY
		// between a transaction and a concurrent statement.
		sqldb.SetMaxOpenConns(1)
		s.db = bun.NewDB(sqldb, sqlitedialect.New())

	case config.DriverPostgres:
		poolCfg, err := pgxpool.ParseConfig(cfg.DSN.Value())
		if err != nil {
			return nil, fmt.Errorf("failed to parse connection string: %w", err)
		}
		if cfg.MaxOpenConns > 0 {
			poolCfg.MaxConns = int32(cfg.MaxOpenConns)
		}
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create connection pool: %w", err)
		}
		s.pool = pool
		s.db = bun.NewDB(stdlib.OpenDBFromPool(pool), pgdialect.New())

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	if err := s.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}

	s.logger.Info("store opened", zap.String("driver", s.driver))
	return s, nil
}

// sqliteDSN enables foreign keys and a busy timeout on every connection.
func sqliteDSN(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", s.driver, err)
	}
	return nil
}

// Driver returns the configured driver name.
func (s *Store) Driver() string {
	return s.driver
}

// Close releases the database handle and, for PostgreSQL, the pool.
func (s *Store) Close() error {
	err := s.db.Close()
	if s.pool != nil {
		s.pool.Close()
	}
	return err
}

// timestamp returns the current time in UTC at microsecond precision, the
// resolution both backends store.
func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}
