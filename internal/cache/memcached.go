package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// memcached rejects items over 1MB by default
const maxItemBytes = 1 << 20

type MemcachedClient struct {
	client *memcache.Client
}

// NewMemcachedClient connects to the given servers and pings them once.
func NewMemcachedClient(servers []string, timeout time.Duration) (*MemcachedClient, error) {
	slog.Info("connecting to memcached...")
	ss := new(memcache.ServerList)
	if err := ss.SetServers(servers...); err != nil {
		return nil, err
	}
	c := &MemcachedClient{client: memcache.NewFromSelector(ss)}
	if timeout > 0 {
		c.client.Timeout = timeout
	}
	slog.Info("pinging the memcached.")
	if err := c.client.Ping(); err != nil {
		return nil, err
	}
	slog.Info("connected to memcached!")

	return c, nil
}

func (mc *MemcachedClient) Get(_ context.Context, key string) (*Entry, error) {
	it, err := mc.client.Get(key)
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			slog.Debug("cache not found.", slog.String("key", key))
			return nil, nil
		}
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(it.Value, &e); err != nil {
		slog.Warn("cache entry is corrupted. Ignoring it.", slog.String("key", key),
			slog.String("err", err.Error()))
		return nil, nil
	}

	return &e, nil
}

func (mc *MemcachedClient) Set(_ context.Context, key string, e *Entry, ttl time.Duration) error {
	value, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if len(value) > maxItemBytes {
		slog.Debug("document too large for the cache. Skip caching.", slog.String("key", key),
			slog.Int("size", len(value)))
		return nil
	}

	return mc.client.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: int32(ttl.Seconds()),
	})
}

func (mc *MemcachedClient) Close() {
	slog.Info("closing memcached connection.")
	if err := mc.client.Close(); err != nil {
		slog.Error("failed to close memcached connection.", slog.String("err", err.Error()))
	}
}
