package cache

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type memoryClient struct {
	c      *gocache.Cache
	prefix string
}

// NewMemory returns an in-process client for development and tests.
func NewMemory(prefix string) Client {
	return &memoryClient{c: gocache.New(gocache.NoExpiration, time.Minute), prefix: prefix}
}

func (m *memoryClient) key(k string) string { return prefixed(m.prefix, k) }

func (m *memoryClient) Get(_ context.Context, key string) (string, error) {
	v, ok := m.c.Get(m.key(key))
	if !ok {
		return "", ErrNotFound
	}
	s, _ := v.(string)
	return s, nil
}

func (m *memoryClient) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	m.c.Set(m.key(key), value, ttl)
	return nil
}

func (m *memoryClient) Delete(_ context.Context, key string) error {
	m.c.Delete(m.key(key))
	return nil
}

func (m *memoryClient) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.c.Get(m.key(key))
	return ok, nil
}

func (m *memoryClient) Keys(context.Context) ([]string, error) {
	items := m.c.Items()
	out := make([]string, 0, len(items))
	for k := range items {
		if m.prefix != "" {
			if !strings.HasPrefix(k, m.prefix+":") {
				continue
			}
			k = strings.TrimPrefix(k, m.prefix+":")
		}
		out = append(out, k)
	}
	return out, nil
}

func (m *memoryClient) Clear(context.Context) error {
	m.c.Flush()
	return nil
}

func (m *memoryClient) Ping(context.Context) error { return nil }

func (m *memoryClient) Close() error { return nil }
