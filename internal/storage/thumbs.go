/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvThumbsMaxBytes caps the thumbnail cache size.
const EnvThumbsMaxBytes = "CST_THUMBS_MAX_BYTES"

// ThumbCache stores rendered gallery thumbnails (PNG) keyed by
// (template id, updatedAt, w, h) in SQLite and trims least recently used
// rows when the total size exceeds MaxBytes.
type ThumbCache struct {
	db       *sql.DB
	owner    *SQLStore
	MaxBytes int64
}

// NewThumbCache shares the database of an open SQLite store.
func NewThumbCache(s *SQLStore) (*ThumbCache, error) {
	if s == nil || s.dialect != "sqlite" {
		return nil, errors.New("thumbnail cache needs a sqlite store")
	}
	return &ThumbCache{db: s.db, MaxBytes: MaxThumbBytesFromEnv()}, nil
}

// OpenThumbCache opens a dedicated SQLite file for the cache, used when
// templates live elsewhere.
func OpenThumbCache(path, driver string) (*ThumbCache, error) {
	s, err := OpenSQLite(path, driver)
	if err != nil {
		return nil, err
	}
	c, err := NewThumbCache(s)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	c.owner = s
	return c, nil
}

// Close releases a dedicated cache database; shared ones are left open.
func (c *ThumbCache) Close() error {
	if c.owner != nil {
		return c.owner.Close()
	}
	return nil
}

func stampOf(t time.Time) string { return t.UTC().Format(tsLayout) }

// Get returns the cached PNG or nil on a miss, and refreshes its access time.
func (c *ThumbCache) Get(ctx context.Context, id string, updatedAt time.Time, w, h int) ([]byte, error) {
	var blob []byte
	err := c.db.QueryRowContext(ctx, `SELECT png FROM thumbnails WHERE template_id=? AND updated_at=? AND w=? AND h=?`,
		id, stampOf(updatedAt), w, h).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query thumbnail: %w", err)
	}
	_, _ = c.db.ExecContext(ctx, `UPDATE thumbnails SET last_access=? WHERE template_id=? AND updated_at=? AND w=? AND h=?`,
		stampOf(now()), id, stampOf(updatedAt), w, h)
	return blob, nil
}

// Put upserts a thumbnail, drops stale variants of the same template and
// enforces the size cap.
func (c *ThumbCache) Put(ctx context.Context, id string, updatedAt time.Time, w, h int, png []byte) error {
	ts := stampOf(now())
	_, err := c.db.ExecContext(ctx, `INSERT INTO thumbnails(template_id,updated_at,w,h,png,size,last_access)
		VALUES(?,?,?,?,?,?,?)
		ON CONFLICT(template_id,updated_at,w,h) DO UPDATE SET png=excluded.png, size=excluded.size, last_access=excluded.last_access`,
		id, stampOf(updatedAt), w, h, png, len(png), ts)
	if err != nil {
		return fmt.Errorf("upsert thumbnail: %w", err)
	}
	// Older revisions of this template can never be requested again.
	if _, err := c.db.ExecContext(ctx, `DELETE FROM thumbnails WHERE template_id=? AND updated_at<>?`, id, stampOf(updatedAt)); err != nil {
		return fmt.Errorf("drop stale thumbnails: %w", err)
	}
	if c.MaxBytes > 0 {
		return c.EvictToFit(ctx, c.MaxBytes)
	}
	return nil
}

// GetOrCreate returns a cached thumbnail or renders and stores one with gen.
func (c *ThumbCache) GetOrCreate(ctx context.Context, id string, updatedAt time.Time, w, h int, gen func(context.Context) ([]byte, error)) ([]byte, error) {
	if b, err := c.Get(ctx, id, updatedAt, w, h); err != nil {
		return nil, err
	} else if b != nil {
		return b, nil
	}
	if gen == nil {
		return nil, nil
	}
	data, err := gen(ctx)
	if err != nil || data == nil {
		return nil, err
	}
	if err := c.Put(ctx, id, updatedAt, w, h, data); err != nil {
		return nil, err
	}
	return data, nil
}

// Forget removes every cached variant of a template.
func (c *ThumbCache) Forget(ctx context.Context, id string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM thumbnails WHERE template_id=?`, id); err != nil {
		return fmt.Errorf("forget thumbnails: %w", err)
	}
	return nil
}

// EvictToFit deletes least-recently-used rows until total size <= capBytes.
func (c *ThumbCache) EvictToFit(ctx context.Context, capBytes int64) error {
	total, err := c.TotalBytes(ctx)
	if err != nil {
		return err
	}
	if total <= capBytes {
		return nil
	}
	rows, err := c.db.QueryContext(ctx, `SELECT id, size FROM thumbnails ORDER BY
		CASE WHEN last_access IS NULL THEN 0 ELSE 1 END ASC, last_access ASC, id ASC`)
	if err != nil {
		return fmt.Errorf("select victims: %w", err)
	}
	var victims []any
	cur := total
	for rows.Next() && cur > capBytes {
		var id, sz int64
		if err := rows.Scan(&id, &sz); err != nil {
			_ = rows.Close()
			return err
		}
		victims = append(victims, id)
		cur -= sz
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	// The cursor must be closed before writing on a single connection.
	if err := rows.Close(); err != nil {
		return err
	}
	if len(victims) == 0 {
		return nil
	}
	q := `DELETE FROM thumbnails WHERE id IN (` + strings.TrimSuffix(strings.Repeat("?,", len(victims)), ",") + `)`
	if _, err := c.db.ExecContext(ctx, q, victims...); err != nil {
		return fmt.Errorf("evict delete: %w", err)
	}
	return nil
}

// TotalBytes returns the total size of cached thumbnails.
func (c *ThumbCache) TotalBytes(ctx context.Context) (int64, error) {
	var total int64
	if err := c.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size),0) FROM thumbnails`).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum thumbnails size: %w", err)
	}
	return total, nil
}

// MaxThumbBytesFromEnv reads CST_THUMBS_MAX_BYTES, defaulting to 64MB.
func MaxThumbBytesFromEnv() int64 {
	const def = 64 << 20
	v := os.Getenv(EnvThumbsMaxBytes)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
