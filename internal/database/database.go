// Package database owns the Postgres pool behind the optional upload ledger:
// opening it, bringing the schema up, and answering readiness probes.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"pdfupload/internal/config"
	"pdfupload/internal/database/migration"
)

// ApplicationName tags ledger sessions in pg_stat_activity.
const ApplicationName = "pdfupload"

const (
	pingTimeout    = 5 * time.Second
	connectTimeout = 5
)

// ErrLedgerMissing is returned by Ready when the uploads table is gone.
var ErrLedgerMissing = errors.New("upload ledger table is missing")

// openDB is swapped in tests.
var openDB = func(dsn string, c config.DatabaseConfig) (*sql.DB, error) {
	return otelsql.Open("pgx", dsn,
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL, semconv.DBName(c.Name)),
		otelsql.WithSQLCommenter(true),
	)
}

// Ledger is the pooled connection to the ledger database.
type Ledger struct {
	DB *sql.DB
}

// NewLedger wraps an already open pool.
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{DB: db}
}

// ConnString renders c as a libpq keyword/value string and checks it with
// pgx's parser, so a bad config fails before any socket is opened.
func ConnString(c config.DatabaseConfig) (string, error) {
	if c.Host == "" || c.Port == "" || c.User == "" || c.Name == "" {
		return "", fmt.Errorf("invalid database config: host, port, user, and name are required")
	}

	params := map[string]string{
		"host":             c.Host,
		"port":             c.Port,
		"user":             c.User,
		"dbname":           c.Name,
		"application_name": ApplicationName,
		"connect_timeout":  fmt.Sprint(connectTimeout),
	}
	if c.Password != "" {
		params["password"] = c.Password
	}
	if c.SSLMode != "" {
		params["sslmode"] = c.SSLMode
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+quote(params[k]))
	}
	dsn := strings.Join(parts, " ")

	if _, err := pgx.ParseConfig(dsn); err != nil {
		return "", fmt.Errorf("invalid database config: %w", err)
	}
	return dsn, nil
}

func quote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// Open connects to the ledger database, applies the pool limits from c,
// verifies the connection and makes sure the uploads schema exists.
func Open(ctx context.Context, c config.DatabaseConfig, logger zerolog.Logger) (*Ledger, error) {
	dsn, err := ConnString(c)
	if err != nil {
		return nil, err
	}

	db, err := openDB(dsn, c)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	applyPool(db, c)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	if err := migration.EnsureMigrated(ctx, db, logger, c.Host); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info().
		Str("component", "database").
		Str("db_host", c.Host).
		Str("db_name", c.Name).
		Int("max_open_conns", c.MaxOpenConns).
		Int("max_idle_conns", c.MaxIdleConns).
		Msg("upload ledger ready")
	return NewLedger(db), nil
}

func applyPool(db *sql.DB, c config.DatabaseConfig) {
	if c.MaxOpenConns > 0 {
		db.SetMaxOpenConns(c.MaxOpenConns)
	}
	if c.MaxIdleConns > 0 {
		db.SetMaxIdleConns(c.MaxIdleConns)
	}
	if c.ConnMaxLifetimeSec > 0 {
		db.SetConnMaxLifetime(time.Duration(c.ConnMaxLifetimeSec) * time.Second)
	}
}

// Ready reports whether the ledger can take writes: the server answers and
// the uploads table is present. A nil Ledger is always ready.
func (l *Ledger) Ready(ctx context.Context) error {
	if l == nil || l.DB == nil {
		return nil
	}
	if err := l.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	var exists bool
	if err := l.DB.QueryRowContext(ctx, migration.SentinelQuery).Scan(&exists); err != nil {
		return fmt.Errorf("check ledger table: %w", err)
	}
	if !exists {
		return ErrLedgerMissing
	}
	return nil
}

// Close releases the pool.
func (l *Ledger) Close() error {
	if l == nil || l.DB == nil {
		return nil
	}
	return l.DB.Close()
}
