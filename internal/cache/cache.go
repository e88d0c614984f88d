// Package cache provides the keyed TTL page cache used for the global feed.
// Entries expire only by TTL; post mutations never invalidate them, so a
// cached page may briefly show posts that were already deleted.
package cache

import (
	"context"
	"fmt"
	"time"
)

// PageCache stores rendered response bodies under string keys.
type PageCache interface {
	// Get returns (body, true, nil) on hit and (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, body []byte, ttl time.Duration) error
	Close() error
}

// IndexKey is the cache key for one page of the global feed.
func IndexKey(page int) string {
	return fmt.Sprintf("feed:index:page:%d", page)
}
