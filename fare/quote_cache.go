// Package fare computes trip fares from configured pricing rules.
package fare

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gatiride/gati-platform/engine/zone"
)

// QuoteCache caches short-lived fare estimates in Redis so repeated quote
// requests for the same trip parameters do not recompute and so the quote a
// rider saw can be re-served while it is still valid.
type QuoteCache struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// NewQuoteCache creates a quote cache.
func NewQuoteCache(client redis.UniversalClient, ttl time.Duration) *QuoteCache {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &QuoteCache{
		client:    client,
		keyPrefix: "fare:quote:",
		ttl:       ttl,
	}
}

// Key derives a deterministic cache key from the quote inputs. Two trips
// with identical priced parameters share a key; the resolved zone fare
// params are part of the key so neither a stale surge multiplier nor an
// edited zone base fare or per-km rate ever serves.
func (c *QuoteCache) Key(t Trip, zp zone.FareParams) string {
	payload := fmt.Sprintf("%s|%s|%.6f,%.6f|%.6f,%.6f|%.3f|%.3f|%d|%d|%.3f|%.3f|%.3f",
		t.BookingType, t.VehicleClass,
		t.Pickup.Lat, t.Pickup.Lng, t.Dropoff.Lat, t.Dropoff.Lng,
		t.DistanceKm, t.DurationMin, t.RentalHours, t.Days,
		zp.BaseFare, zp.PerKmRate, zp.SurgeMultiplier)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:16])
}

// Get retrieves a cached breakdown. Returns (nil, nil) on a miss.
func (c *QuoteCache) Get(ctx context.Context, key string) (*Breakdown, error) {
	val, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get error: %w", err)
	}

	var b Breakdown
	if err := json.Unmarshal(val, &b); err != nil {
		return nil, fmt.Errorf("corrupt cached quote: %w", err)
	}
	return &b, nil
}

// Set stores a breakdown under the key for the cache TTL.
func (c *QuoteCache) Set(ctx context.Context, key string, b Breakdown) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal quote: %w", err)
	}
	if err := c.client.Set(ctx, c.keyPrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

// Invalidate drops a cached quote, e.g. after a zone's surge changes.
func (c *QuoteCache) Invalidate(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del error: %w", err)
	}
	return nil
}
