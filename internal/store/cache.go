package store

import (
	"context"
	"database/sql"
	"fmt"
)

// CacheEntry is a cached static asset belonging to a cache generation.
type CacheEntry struct {
	CacheName   string
	URL         string
	ContentType string
	Body        []byte
	FetchedAt   string
}

// PutCacheEntry upserts a cached asset. Re-precaching the same URL within
// a generation replaces the stored body.
func (s *Store) PutCacheEntry(ctx context.Context, entry CacheEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (cache_name, url, content_type, body, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(cache_name, url) DO UPDATE SET
			content_type = excluded.content_type,
			body = excluded.body,
			fetched_at = excluded.fetched_at
	`,
		entry.CacheName,
		entry.URL,
		entry.ContentType,
		entry.Body,
		entry.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

// GetCacheEntry retrieves a cached asset by generation name and URL.
// Returns found=false (not an error) on cache miss.
func (s *Store) GetCacheEntry(ctx context.Context, cacheName, url string) (CacheEntry, bool, error) {
	entry := CacheEntry{CacheName: cacheName, URL: url}
	err := s.db.QueryRowContext(ctx, `
		SELECT content_type, body, fetched_at
		FROM cache_entries
		WHERE cache_name = ? AND url = ?
	`, cacheName, url).Scan(&entry.ContentType, &entry.Body, &entry.FetchedAt)
	if err == sql.ErrNoRows {
		return CacheEntry{}, false, nil
	}
	if err != nil {
		return CacheEntry{}, false, fmt.Errorf("get cache entry: %w", err)
	}
	return entry, true, nil
}

// EvictStaleCaches deletes every cached asset belonging to a generation
// other than current. Returns the number of entries removed.
func (s *Store) EvictStaleCaches(ctx context.Context, current string) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM cache_entries WHERE cache_name != ?
	`, current)
	if err != nil {
		return 0, fmt.Errorf("evict stale caches: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("evict stale caches: rows affected: %w", err)
	}
	return int(n), nil
}
