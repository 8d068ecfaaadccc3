package cache

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed 001_classification_cache.sql
var migrationSQL string

// PostgresStore keeps the mapping in the classification_cache table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgresStore connects to dsn and applies the schema migration.
func OpenPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	poolConfig.MaxConns = 2
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := pool.Exec(ctx, migrationSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migration: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Describe implements Store.
func (s *PostgresStore) Describe() string {
	cfg := s.pool.Config().ConnConfig
	return fmt.Sprintf("postgres:%s:%d/%s", cfg.Host, cfg.Port, cfg.Database)
}

// Load implements Store.
func (s *PostgresStore) Load(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, account FROM classification_cache`)
	if err != nil {
		return nil, fmt.Errorf("querying cache: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]string)
	for rows.Next() {
		var key, account string
		if err := rows.Scan(&key, &account); err != nil {
			return nil, fmt.Errorf("scanning cache row: %w", err)
		}
		entries[key] = account
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cache rows: %w", err)
	}
	return entries, nil
}

// Save upserts every mapping inside one transaction.
func (s *PostgresStore) Save(ctx context.Context, entries map[string]string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	batch := &pgx.Batch{}
	for key, account := range entries {
		batch.Queue(`
			INSERT INTO classification_cache (key, account)
			VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET
				account = EXCLUDED.account,
				updated_at = NOW()
			WHERE classification_cache.account <> EXCLUDED.account
		`, key, account)
	}

	results := tx.SendBatch(ctx, batch)
	for range entries {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("upserting mapping: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("closing batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
