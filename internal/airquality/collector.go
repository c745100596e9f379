package airquality

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// DefaultBackfillDays is how far back a backfill run reaches. The
	// upstream history endpoint serves at most five days.
	DefaultBackfillDays = 5

	// DefaultBackfillBuffer widens the requested window so the trailing
	// edge is not starved by upstream latency or clock skew.
	DefaultBackfillBuffer = 3600 * time.Second

	backfillInterval = 1 * time.Second
	collectInterval  = 2 * time.Second
)

// BackfillResult reports the outcome of one location's backfill.
type BackfillResult struct {
	Success bool  `json:"success"`
	Saved   int   `json:"saved"`
	Count   int   `json:"count"`
	Err     error `json:"-"`
}

// LocationResult pairs a location id with its backfill outcome.
type LocationResult struct {
	LocationID string
	Result     BackfillResult
}

// Collector drives collection and backfill across the configured locations.
// Locations are processed sequentially on purpose: the inter-location pause
// keeps us under the upstream rate limits.
type Collector struct {
	locations []Location
	pollution PollutionSource
	weather   CurrentWeatherSource
	cache     *DayCache
	store     Store
	clock     clockwork.Clock

	backfillLimiter *IntervalLimiter
	collectLimiter  *IntervalLimiter
}

// NewCollector creates a Collector. A nil clock means the real clock.
func NewCollector(
	locations []Location,
	pollution PollutionSource,
	weather CurrentWeatherSource,
	cache *DayCache,
	store Store,
	clock clockwork.Clock,
) *Collector {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Collector{
		locations:       locations,
		pollution:       pollution,
		weather:         weather,
		cache:           cache,
		store:           store,
		clock:           clock,
		backfillLimiter: NewIntervalLimiter(backfillInterval, clock),
		collectLimiter:  NewIntervalLimiter(collectInterval, clock),
	}
}

// Locations returns the configured monitoring points.
func (c *Collector) Locations() []Location {
	return c.locations
}

// BackfillWindow fetches the pollution history window for one location,
// joins each sample with the nearest cached weather observation, and upserts
// the merged records. Individual upsert failures are counted, never fatal.
func (c *Collector) BackfillWindow(ctx context.Context, loc Location, days int, buffer time.Duration) BackfillResult {
	end := c.clock.Now().Unix()
	start := end - int64(days)*24*3600 - int64(buffer.Seconds())

	samples, err := c.pollution.History(ctx, loc.Lat, loc.Lon, start, end)
	if err != nil {
		log.Printf("collector: history fetch failed for %s: %v", loc.ID, err)
		return BackfillResult{Success: false, Err: err}
	}

	saved := 0
	for _, sample := range samples {
		var wx *WeatherObservation
		if match, ok := c.cache.Nearest(ctx, loc.Lat, loc.Lon, sample.ObservedAt); ok {
			wx = &match
		}

		rec := NewRecord(loc, sample, wx)
		if err := c.store.Upsert(ctx, rec); err != nil {
			log.Printf("collector: upsert failed for %s @ %s: %v", loc.ID, rec.Timestamp.Format(time.RFC3339), err)
			continue
		}
		saved++
	}

	log.Printf("collector: history saved for %s: %d/%d rows", loc.Name, saved, len(samples))
	return BackfillResult{Success: true, Saved: saved, Count: len(samples)}
}

// BackfillAll runs BackfillWindow for every configured location with the
// default window. One location's failure never stops the rest.
func (c *Collector) BackfillAll(ctx context.Context) []LocationResult {
	results := make([]LocationResult, 0, len(c.locations))
	for i, loc := range c.locations {
		if err := c.backfillLimiter.Wait(ctx); err != nil {
			log.Printf("collector: backfill cancelled: %v", err)
			break
		}
		log.Printf("collector: [%d/%d] backfilling %d days for %s", i+1, len(c.locations), DefaultBackfillDays, loc.Name)
		res := c.BackfillWindow(ctx, loc, DefaultBackfillDays, DefaultBackfillBuffer)
		results = append(results, LocationResult{LocationID: loc.ID, Result: res})
	}
	return results
}

// CollectAll performs one live collection pass over every location and
// returns the number of successful and failed locations.
func (c *Collector) CollectAll(ctx context.Context) (successful, failed int) {
	log.Printf("collector: starting collection for %d locations", len(c.locations))
	for _, loc := range c.locations {
		if err := c.collectLimiter.Wait(ctx); err != nil {
			log.Printf("collector: collection cancelled: %v", err)
			break
		}
		if err := c.collectLocation(ctx, loc); err != nil {
			log.Printf("collector: collection failed for %s: %v", loc.Name, err)
			failed++
			continue
		}
		successful++
	}
	log.Printf("collector: collection finished: %d ok, %d failed", successful, failed)
	return successful, failed
}

// CollectLocation performs a live collection pass for one location by id.
func (c *Collector) CollectLocation(ctx context.Context, locationID string) error {
	for _, loc := range c.locations {
		if loc.ID == locationID {
			return c.collectLocation(ctx, loc)
		}
	}
	return fmt.Errorf("unknown location %q", locationID)
}

func (c *Collector) collectLocation(ctx context.Context, loc Location) error {
	sample, err := c.pollution.Current(ctx, loc.Lat, loc.Lon)
	if err != nil {
		return fmt.Errorf("current pollution: %w", err)
	}
	if sample.ObservedAt == 0 {
		sample.ObservedAt = c.clock.Now().UTC().Unix()
	}

	wx, err := c.weather.CurrentWeather(ctx, loc.Lat, loc.Lon)
	if err != nil {
		return fmt.Errorf("current weather: %w", err)
	}

	rec := NewRecord(loc, sample, &wx)
	if err := c.store.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	log.Printf("collector: saved current conditions for %s", loc.Name)
	return nil
}
