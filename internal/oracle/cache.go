package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/chigozirigeorge/omnixec-sub000/internal/logging"
)

// CachedOracle wraps a Source with a Redis-backed cache. A short TTL (a few
// seconds) keeps quotes close to the live rate; it never locks against
// concurrent refreshes, so a stampede on expiry is possible but tolerated.
type CachedOracle struct {
	source Source
	rdb    *redis.Client
	ttl    time.Duration
	log    *logging.Logger
}

func NewCachedOracle(source Source, rdb *redis.Client, ttl time.Duration, log *logging.Logger) *CachedOracle {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	if log == nil {
		log = logging.NewDefault("oracle-cache")
	}
	return &CachedOracle{source: source, rdb: rdb, ttl: ttl, log: log}
}

var _ Oracle = (*CachedOracle)(nil)

func cacheKey(base, quote string) string {
	return "oracle:price:" + base + ":" + quote
}

func (c *CachedOracle) GetPrice(ctx context.Context, base, quote string) (Price, error) {
	if c.rdb != nil {
		if cached, ok := c.readCache(ctx, base, quote); ok {
			return cached, nil
		}
	}

	price, err := c.source.GetPrice(ctx, base, quote)
	if err != nil {
		return Price{}, err
	}

	if c.rdb != nil {
		c.writeCache(ctx, base, quote, price)
	}
	return price, nil
}

func (c *CachedOracle) readCache(ctx context.Context, base, quote string) (Price, bool) {
	raw, err := c.rdb.Get(ctx, cacheKey(base, quote)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.WithField("error", err.Error()).Warn("oracle cache read failed")
		}
		return Price{}, false
	}
	var p Price
	if err := json.Unmarshal(raw, &p); err != nil {
		return Price{}, false
	}
	return p, true
}

func (c *CachedOracle) writeCache(ctx context.Context, base, quote string, p Price) {
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, cacheKey(base, quote), raw, c.ttl).Err(); err != nil {
		c.log.WithField("error", err.Error()).Warn("oracle cache write failed")
	}
}

// StaticOracle is a config-backed Source/Oracle used for local development
// and tests: it never calls out to the network.
type StaticOracle struct {
	rates map[string]Price
}

func NewStaticOracle(rates map[string]Price) *StaticOracle {
	return &StaticOracle{rates: rates}
}

var _ Oracle = (*StaticOracle)(nil)

func (s *StaticOracle) GetPrice(ctx context.Context, base, quote string) (Price, error) {
	p, ok := s.rates[base+":"+quote]
	if !ok {
		return Price{}, fmt.Errorf("oracle: no static rate configured for %s/%s", base, quote)
	}
	return p, nil
}
