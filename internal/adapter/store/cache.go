package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ReportCache implements port.ReportCache on the report_cache table.
// Entries are shared by every process pointing at the same database.
type ReportCache struct {
	db *sql.DB
}

// Get decodes a live entry into dest.
func (c *ReportCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	var value []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT value FROM report_cache WHERE key = $1 AND expires_at > NOW()`, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get cache entry: %w", err)
	}
	if err := json.Unmarshal(value, dest); err != nil {
		return false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return true, nil
}

// Set upserts value with an expiry ttl from now.
func (c *ReportCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	query := `INSERT INTO report_cache (key, value, expires_at)
	          VALUES ($1, $2, NOW() + $3::float8 * INTERVAL '1 millisecond')
	          ON CONFLICT (key) DO UPDATE SET
	              value = EXCLUDED.value,
	              expires_at = EXCLUDED.expires_at`
	if _, err := c.db.ExecContext(ctx, query, key, data, ttl.Milliseconds()); err != nil {
		return fmt.Errorf("set cache entry: %w", err)
	}
	return nil
}

// PurgeExpired deletes expired entries and returns how many were removed.
func (c *ReportCache) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM report_cache WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	return res.RowsAffected()
}
