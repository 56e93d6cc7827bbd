package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	TypePostgres = "postgres"
	TypeSQLite   = "sqlite"
)

// ErrReadFailure marks a query that could not be executed or decoded.
// Callers treat it as "no new information", never as "nothing is active".
var ErrReadFailure = errors.New("store: read failure")

type Config struct {
	Type string
	DSN  string
	// ReadTimeout bounds every read query. Zero means no per-query bound.
	ReadTimeout time.Duration
}

type DB struct {
	conn        *sql.DB
	dbType      string
	readTimeout time.Duration
}

func Open(ctx context.Context, cfg Config) (*DB, error) {
	var (
		conn *sql.DB
		err  error
	)

	switch cfg.Type {
	case TypePostgres:
		conn, err = sql.Open("pgx", cfg.DSN)
	case TypeSQLite:
		conn, err = sql.Open("sqlite", cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.Type == TypeSQLite {
		// In-memory databases are per connection.
		conn.SetMaxOpenConns(1)
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{conn: conn, dbType: cfg.Type, readTimeout: cfg.ReadTimeout}, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS roll_details (
		roll_id INTEGER PRIMARY KEY,
		roll_number TEXT,
		roll_name TEXT,
		revolution INTEGER,
		roll_sts_id INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS cam_details (
		cam_name TEXT PRIMARY KEY,
		camsts_id TEXT NOT NULL DEFAULT '0',
		livecamsts_id TEXT NOT NULL DEFAULT '0'
	)`,
}

// EnsureSchema creates the tables the monitor reads when they are missing.
// Production PostgreSQL schemas are owned by the line controller; this is for
// SQLite deployments and tests.
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
	}

	return nil
}

func (db *DB) Type() string { return db.dbType }

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Conn() *sql.DB {
	return db.conn
}
