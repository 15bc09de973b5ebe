package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a durable Store backed by a single table. It lets a cache
// survive restarts and be shared by several client processes.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const createCacheTableSQL = `
    CREATE TABLE IF NOT EXISTS radar_cache (
        namespace  TEXT        NOT NULL,
        key        TEXT        NOT NULL,
        status     INTEGER     NOT NULL,
        body       BYTEA       NOT NULL,
        stored_at  TIMESTAMPTZ NOT NULL,
        PRIMARY KEY (namespace, key)
    )
`

const listNamespacesSQL = `
    SELECT DISTINCT namespace
    FROM radar_cache
    ORDER BY namespace
`

const getEntrySQL = `
    SELECT status, body, stored_at
    FROM radar_cache
    WHERE namespace = $1 AND key = $2
`

const putEntrySQL = `
    INSERT INTO radar_cache (namespace, key, status, body, stored_at)
    VALUES ($1, $2, $3, $4, $5)
    ON CONFLICT (namespace, key)
    DO UPDATE SET status = EXCLUDED.status, body = EXCLUDED.body, stored_at = EXCLUDED.stored_at
`

const deleteNamespaceSQL = `DELETE FROM radar_cache WHERE namespace = $1`

const deletePrefixSQL = `
    WITH removed AS (
        DELETE FROM radar_cache
        WHERE namespace LIKE $1 ESCAPE '\'
        RETURNING namespace
    )
    SELECT COUNT(DISTINCT namespace) FROM removed
`

// NewPostgresStore connects to databaseURL and ensures the cache table exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect cache database: %w", err)
	}
	if _, err := pool.Exec(ctx, createCacheTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create cache table: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the pool resources.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresStore) Namespaces(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, listNamespacesSQL)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *PostgresStore) Get(ctx context.Context, ns, key string) (Entry, bool, error) {
	var e Entry
	err := s.pool.QueryRow(ctx, getEntrySQL, ns, key).Scan(&e.Status, &e.Body, &e.StoredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

func (s *PostgresStore) Put(ctx context.Context, ns, key string, e Entry) error {
	_, err := s.pool.Exec(ctx, putEntrySQL, ns, key, e.Status, e.Body, e.StoredAt)
	return err
}

func (s *PostgresStore) DeleteNamespace(ctx context.Context, ns string) error {
	_, err := s.pool.Exec(ctx, deleteNamespaceSQL, ns)
	return err
}

func (s *PostgresStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, deletePrefixSQL, likePrefix(prefix)).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// likePrefix escapes LIKE wildcards in prefix and appends %.
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}
