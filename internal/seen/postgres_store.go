package seen

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

type queryExecer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore keeps one row per (channel, key). Save only inserts, so the
// table grows the same way the file does.
type PostgresStore struct {
	db      queryExecer
	table   string
	channel string
}

// NewPostgresPool connects a pgx pool for dsn.
func NewPostgresPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("seen.postgres.dsn is required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 2
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}

// NewPostgresStore builds a store for channel using db (a pool or pgxmock).
func NewPostgresStore(db queryExecer, table, channel string) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "seen_keys"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if strings.TrimSpace(channel) == "" {
		return nil, fmt.Errorf("channel is required")
	}
	return &PostgresStore{db: db, table: table, channel: channel}, nil
}

// EnsureSchema creates the backing table when missing.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	channel TEXT NOT NULL,
	key TEXT NOT NULL,
	seen_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (channel, key)
)`, p.table)
	if _, err := p.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", p.table, err)
	}
	return nil
}

// Load returns every key recorded for the channel.
func (p *PostgresStore) Load(ctx context.Context) (Set, error) {
	query := fmt.Sprintf("SELECT key FROM %s WHERE channel = $1", p.table)
	rows, err := p.db.Query(ctx, query, p.channel)
	if err != nil {
		return nil, fmt.Errorf("query seen keys: %w", err)
	}
	defer rows.Close()

	set := Set{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan seen key: %w", err)
		}
		set.Add(key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate seen keys: %w", err)
	}
	return set, nil
}

// Save inserts keys not yet present.
func (p *PostgresStore) Save(ctx context.Context, set Set) error {
	if set.Len() == 0 {
		return nil
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (channel, key) SELECT $1, unnest($2::text[]) ON CONFLICT (channel, key) DO NOTHING",
		p.table,
	)
	if _, err := p.db.Exec(ctx, query, p.channel, set.Sorted()); err != nil {
		return fmt.Errorf("insert seen keys: %w", err)
	}
	return nil
}
