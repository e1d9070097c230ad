package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgClient implementa Client sobre una tabla kv en Postgres.
// Pensado para deployments que ya corren postgres y no quieren redis:
// la durabilidad entre redirects/restarts la da la tabla, la expiración
// se resuelve de forma lazy en cada lectura.
type pgClient struct {
	pool   *pgxpool.Pool
	prefix string
	stop   chan struct{}
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS kv_store (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    expires_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS kv_store_expires_idx ON kv_store (expires_at) WHERE expires_at IS NOT NULL;
`

// NewPostgres crea un cliente Postgres y asegura el schema kv.
func NewPostgres(cfg Config) (*pgClient, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("cache: pg connect failed: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("cache: pg ping failed: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("cache: pg schema failed: %w", err)
	}

	c := &pgClient{pool: pool, prefix: cfg.Prefix, stop: make(chan struct{})}
	go c.cleanupLoop()
	return c, nil
}

// cleanupLoop barre keys expiradas en background hasta que se cierra el cliente.
func (c *pgClient) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			_, _ = c.Cleanup(ctx)
			cancel()
		}
	}
}

func (c *pgClient) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

func (c *pgClient) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := c.pool.QueryRow(ctx,
		`SELECT value FROM kv_store WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`,
		c.key(key),
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (c *pgClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	var expires *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expires = &t
	}
	_, err := c.pool.Exec(ctx,
		`INSERT INTO kv_store (key, value, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		c.key(key), value, expires,
	)
	return err
}

func (c *pgClient) Delete(ctx context.Context, key string) error {
	_, err := c.pool.Exec(ctx, `DELETE FROM kv_store WHERE key = $1`, c.key(key))
	return err
}

func (c *pgClient) Exists(ctx context.Context, key string) (bool, error) {
	var one int
	err := c.pool.QueryRow(ctx,
		`SELECT 1 FROM kv_store WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`,
		c.key(key),
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *pgClient) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

func (c *pgClient) Close() error {
	close(c.stop)
	c.pool.Close()
	return nil
}

// Cleanup borra keys expiradas.
func (c *pgClient) Cleanup(ctx context.Context) (int64, error) {
	tag, err := c.pool.Exec(ctx, `DELETE FROM kv_store WHERE expires_at IS NOT NULL AND expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
