package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/abdusco/linkhub/internal"
	"github.com/abdusco/linkhub/internal/logger"
	"github.com/abdusco/linkhub/internal/metrics"
	"github.com/abdusco/linkhub/internal/redirect"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const DefaultTTL = time.Minute

// LinkCache keeps resolved short links in Redis in front of another gateway.
// Only found links are cached, so a newly created slug is visible at once.
// Redis failures fall through to the wrapped gateway.
type LinkCache struct {
	next   redirect.LinkGateway
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

func New(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: addr, Password: password, DB: db,
	})
}

func NewLinkCache(next redirect.LinkGateway, client *redis.Client, ttl time.Duration) *LinkCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &LinkCache{
		next:   next,
		client: client,
		ttl:    ttl,
		log:    logger.For("cache"),
	}
}

func key(host, slug string) string {
	return "link:" + host + ":" + slug
}

func (c *LinkCache) LookupShortLink(ctx context.Context, host, slug string) (*internal.ShortLink, error) {
	k := key(host, slug)

	raw, err := c.client.Get(ctx, k).Bytes()
	switch {
	case err == nil:
		var link internal.ShortLink
		if err := json.Unmarshal(raw, &link); err == nil {
			metrics.RecordCache("hit")
			return &link, nil
		}
		c.log.Warn().Str("key", k).Msg("discarding undecodable cache entry")
		metrics.RecordCache("error")
	case errors.Is(err, redis.Nil):
		metrics.RecordCache("miss")
	default:
		metrics.RecordCache("error")
		c.log.Warn().Err(err).Str("key", k).Msg("cache read failed")
	}

	link, err := c.next.LookupShortLink(ctx, host, slug)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(link); err == nil {
		if err := c.client.Set(ctx, k, encoded, c.ttl).Err(); err != nil {
			c.log.Warn().Err(err).Str("key", k).Msg("cache write failed")
		}
	}
	return link, nil
}

// Invalidate drops the cached entry for host and slug.
func (c *LinkCache) Invalidate(ctx context.Context, host, slug string) {
	if err := c.client.Del(ctx, key(host, slug)).Err(); err != nil {
		c.log.Warn().Err(err).Str("host", host).Str("slug", slug).Msg("cache invalidation failed")
	}
}
