package airquality

import (
	"context"
	"time"
)

// PollutionSource abstracts the air pollution API (current conditions plus a
// bounded history range).
type PollutionSource interface {
	// Current returns the most recent pollution sample for the coordinates.
	Current(ctx context.Context, lat, lon float64) (PollutionSample, error)

	// History returns all pollution samples between start and end (unix
	// seconds). Order is source-defined; callers must not rely on it.
	History(ctx context.Context, lat, lon float64, start, end int64) ([]PollutionSample, error)
}

// HourlyWeatherSource abstracts one generation of the historical weather API.
// FetchDay returns every observation the source has for the UTC calendar day
// containing anchor (unix seconds), keyed by each entry's own timestamp.
type HourlyWeatherSource interface {
	Name() string
	FetchDay(ctx context.Context, lat, lon float64, anchor int64) (map[int64]WeatherObservation, error)
}

// CurrentWeatherSource abstracts the live weather endpoint used during
// real-time collection.
type CurrentWeatherSource interface {
	CurrentWeather(ctx context.Context, lat, lon float64) (WeatherObservation, error)
}

// Store is the contract the durable record store must satisfy. Upsert must be
// atomic per key and apply the non-null-wins merge on conflict: an incoming
// nil never erases a stored value, while location name/lat/lon always take
// the latest write.
type Store interface {
	Upsert(ctx context.Context, rec Record) error
	Latest(ctx context.Context, locationID string) (Record, error)
	History(ctx context.Context, q HistoryQuery) ([]Record, error)
}

// HistoryQuery filters the stored records. Zero values disable a filter.
type HistoryQuery struct {
	LocationID string
	Start      time.Time
	End        time.Time
	Limit      int
}
