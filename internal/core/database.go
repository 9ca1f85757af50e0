// AngelaMos | 2026
// database.go

package core

import (
	"context"
	"database/sql"
	"math/rand/v2"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/samber/oops"

	"github.com/carterperez-dev/templates/account-service/internal/config"
)

const pingTimeout = 5 * time.Second

// Database owns the PostgreSQL pool backing the users table.
type Database struct {
	DB *sqlx.DB
}

func NewDatabase(
	ctx context.Context,
	cfg config.DatabaseConfig,
) (*Database, error) {
	db, err := sqlx.Open("pgx", cfg.URL)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "open pool").
			Wrap(err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(withJitter(cfg.ConnMaxLifetime))
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	d := &Database{DB: db}
	if err := d.Ping(ctx); err != nil {
		_ = db.Close() //nolint:errcheck // the ping error is the one worth returning
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "initial ping").
			Wrap(err)
	}

	return d, nil
}

func (d *Database) Close() error {
	if d.DB == nil {
		return nil
	}
	return d.DB.Close()
}

// Ping satisfies the readiness checker.
func (d *Database) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := d.DB.PingContext(ctx); err != nil {
		return oops.Code("DB_UNAVAILABLE").Wrap(err)
	}
	return nil
}

func (d *Database) Stats() sql.DBStats {
	return d.DB.Stats()
}

// Collector exports pool statistics under the given db_name label.
func (d *Database) Collector(name string) prometheus.Collector {
	return collectors.NewDBStatsCollector(d.DB.DB, name)
}

// DBTX is the query surface the repositories need. Both *sqlx.DB and *sqlx.Tx
// satisfy it.
type DBTX interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// withJitter spreads connection recycling so the pool does not reconnect
// all at once.
func withJitter(base time.Duration) time.Duration {
	if base <= 0 {
		return base
	}
	//nolint:gosec // G404: jitter is not security sensitive
	return base + time.Duration(rand.Int64N(int64(base/7)+1))
}
