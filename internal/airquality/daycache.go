package airquality

import (
	"context"
	"log"
	"sync"
	"time"
)

// matchTolerance is the maximum distance (inclusive) between a pollution
// sample and the weather observation matched to it.
const matchTolerance = 3600 // seconds

type dayKey struct {
	lat, lon float64
	date     string // UTC calendar day, "2006-01-02"
}

// DayCache caches hourly weather observations per (coordinates, UTC day).
// A day is populated at most once per cache lifetime: the sources are tried
// in priority order and the first success wins, with no merging of partial
// responses across sources. When every source fails the day is cached as
// empty so repeated lookups do not re-issue doomed requests.
type DayCache struct {
	mu      sync.Mutex
	days    map[dayKey]map[int64]WeatherObservation
	sources []HourlyWeatherSource
}

// NewDayCache creates a DayCache over the given sources, tried in order.
func NewDayCache(sources []HourlyWeatherSource) *DayCache {
	return &DayCache{
		days:    make(map[dayKey]map[int64]WeatherObservation),
		sources: sources,
	}
}

// Day returns the observation map for the UTC calendar day containing ts,
// fetching and caching it on first access.
func (c *DayCache) Day(ctx context.Context, lat, lon float64, ts int64) map[int64]WeatherObservation {
	day := time.Unix(ts, 0).UTC()
	key := dayKey{lat: lat, lon: lon, date: day.Format("2006-01-02")}

	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, ok := c.days[key]; ok {
		return cached
	}

	// Representative anchor: UTC noon of the day, so a single timemachine
	// call covers the whole day's hourly series.
	noon := time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, time.UTC).Unix()

	obs := map[int64]WeatherObservation{}
	for _, src := range c.sources {
		m, err := src.FetchDay(ctx, lat, lon, noon)
		if err != nil {
			log.Printf("weather cache: source %s failed for %s: %v", src.Name(), key.date, err)
			continue
		}
		obs = m
		break
	}

	c.days[key] = obs
	return obs
}

// Nearest returns the cached observation closest to ts for the coordinates,
// or false when the day is empty or no observation lies within the one-hour
// tolerance (boundary inclusive).
func (c *DayCache) Nearest(ctx context.Context, lat, lon float64, ts int64) (WeatherObservation, bool) {
	dayMap := c.Day(ctx, lat, lon, ts)
	if len(dayMap) == 0 {
		return WeatherObservation{}, false
	}

	var (
		best     int64
		bestDist int64 = -1
	)
	for k := range dayMap {
		dist := k - ts
		if dist < 0 {
			dist = -dist
		}
		if bestDist < 0 || dist < bestDist {
			best, bestDist = k, dist
		}
	}

	if bestDist > matchTolerance {
		return WeatherObservation{}, false
	}
	return dayMap[best], true
}
