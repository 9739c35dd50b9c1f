//go:build integration

package fare_test

import (
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/gatiride/gati-platform/engine/fare"
	enginetest "github.com/gatiride/gati-platform/engine/testing"
	"github.com/gatiride/gati-platform/engine/testing/fixtures"
	"github.com/gatiride/gati-platform/engine/vehicle"
	"github.com/gatiride/gati-platform/engine/zone"
)

func TestQuoteCache_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := enginetest.TestContext(t)

	container, err := enginetest.StartRedisContainer(ctx)
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	client := goredis.NewClient(&goredis.Options{Addr: container.Addr})
	t.Cleanup(func() { _ = client.Close() })

	cache := fare.NewQuoteCache(client, time.Minute)

	trip := fare.Trip{
		Pickup:       fixtures.HosurCenter,
		Dropoff:      fixtures.InsideHosur,
		BookingType:  fare.BookingRegular,
		VehicleClass: vehicle.ClassSedan,
		DistanceKm:   5,
		DurationMin:  12,
	}
	key := cache.Key(trip, zone.FareParams{SurgeMultiplier: 1.0})

	// Miss before the first write.
	got, err := cache.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected a miss, got %+v", got)
	}

	want := fare.Breakdown{BaseFare: 70, DistanceFare: 80, TimeFare: 18, SurgeApplied: 1, Total: 168, Currency: "INR"}
	if err := cache.Set(ctx, key, want); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err = cache.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get after Set: %v", err)
	}
	if got == nil || *got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}

	if err := cache.Invalidate(ctx, key); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	got, err = cache.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get after Invalidate: %v", err)
	}
	if got != nil {
		t.Errorf("expected a miss after invalidation, got %+v", got)
	}
}

func TestQuoteCache_TTLExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := enginetest.TestContext(t)

	container, err := enginetest.StartRedisContainer(ctx)
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	client := goredis.NewClient(&goredis.Options{Addr: container.Addr})
	t.Cleanup(func() { _ = client.Close() })

	cache := fare.NewQuoteCache(client, time.Second)
	key := "ttl-probe"

	if err := cache.Set(ctx, key, fare.Breakdown{Total: 100, Currency: "INR"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	time.Sleep(1500 * time.Millisecond)

	got, err := cache.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Errorf("quote outlived its TTL: %+v", got)
	}
}
