package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Entry is a cached upstream body.
type Entry struct {
	URL         string    `json:"url"`
	ContentType string    `json:"content_type"`
	Body        []byte    `json:"body"`
	SavedAt     time.Time `json:"saved_at"`
}

// DocumentCache keeps fetched bodies for the freshness window of their endpoint.
// Get returns (nil, nil) on a miss.
type DocumentCache interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, e *Entry, ttl time.Duration) error
	Close()
}

// Key derives a memcached-safe key from the endpoint kind and URL.
func Key(kind, url string) string {
	hash := sha256.Sum256([]byte(url))
	return kind + "-" + hex.EncodeToString(hash[:])
}

// Noop is used when caching is disabled: every fetch goes upstream.
type Noop struct{}

func (Noop) Get(context.Context, string) (*Entry, error)              { return nil, nil }
func (Noop) Set(context.Context, string, *Entry, time.Duration) error { return nil }
func (Noop) Close()                                                   {}
