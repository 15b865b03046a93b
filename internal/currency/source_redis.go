package currency

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"expensio/pkg/platform/sentinel"
)

// RedisSource reads rates from a redis hash per base currency
// (rates:<FROM> → field <TO>), falling back to a wrapped source on miss and
// caching what the fallback returns. Lets ops push rate updates without a
// redeploy.
type RedisSource struct {
	client   *redis.Client
	fallback RateSource
	ttl      time.Duration
}

func NewRedisSource(client *redis.Client, fallback RateSource, ttl time.Duration) *RedisSource {
	return &RedisSource{client: client, fallback: fallback, ttl: ttl}
}

func (s *RedisSource) Rate(ctx context.Context, from, to string) (float64, error) {
	key := "rates:" + from
	raw, err := s.client.HGet(ctx, key, to).Result()
	if err == nil {
		rate, parseErr := strconv.ParseFloat(raw, 64)
		if parseErr == nil {
			return rate, nil
		}
		// Corrupt entry: fall through to the fallback source.
	} else if !errors.Is(err, redis.Nil) {
		// Redis being down must not block conversions.
		return s.fallbackRate(ctx, from, to)
	}

	return s.cacheFromFallback(ctx, key, from, to)
}

func (s *RedisSource) fallbackRate(ctx context.Context, from, to string) (float64, error) {
	if s.fallback == nil {
		return 0, sentinel.ErrNotFound
	}
	return s.fallback.Rate(ctx, from, to)
}

func (s *RedisSource) cacheFromFallback(ctx context.Context, key, from, to string) (float64, error) {
	rate, err := s.fallbackRate(ctx, from, to)
	if err != nil {
		return 0, err
	}
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, to, fmt.Sprintf("%g", rate))
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	// Best effort: a failed cache write only costs the next lookup.
	_, _ = pipe.Exec(ctx)
	return rate, nil
}
