package endpoint

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// cachedHandler remembers a handler's successful answer for a TTL. Only
// suitable for answers that rarely change, such as the hostname.
type cachedHandler struct {
	inner Handler
	store *cache.Cache
}

// Cached wraps h with a TTL cache. A non-positive ttl returns h unchanged.
func Cached(h Handler, ttl time.Duration) Handler {
	if ttl <= 0 {
		return h
	}
	return &cachedHandler{inner: h, store: cache.New(ttl, 2*ttl)}
}

func (c *cachedHandler) Name() string { return c.inner.Name() }

func (c *cachedHandler) Handle(ctx context.Context) (string, error) {
	if v, ok := c.store.Get(c.inner.Name()); ok {
		return v.(string), nil
	}
	body, err := c.inner.Handle(ctx)
	if err != nil {
		return "", err
	}
	c.store.SetDefault(c.inner.Name(), body)
	return body, nil
}
