package airquality

import (
	"time"
)

// Location represents a fixed monitoring point for which we track air quality.
// Locations are configured statically and never created or destroyed at runtime.
type Location struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Lat  float64 `json:"latitude"`
	Lon  float64 `json:"longitude"`
}

// PollutionSample is a single point-in-time pollutant reading returned by the
// air pollution API. Every measurement is optional; a nil pointer means the
// upstream response did not include the field.
type PollutionSample struct {
	ObservedAt int64 // unix seconds, authoritative time from the source API

	PM25 *float64
	PM10 *float64
	O3   *float64
	NO2  *float64
	AQI  *int // ordinal 1 (good) to 5 (very poor)
}

// WeatherObservation is a normalized hourly weather sample keyed by its own
// observation time.
type WeatherObservation struct {
	ObservedAt int64 // unix seconds

	Temperature *float64
	Humidity    *float64
	Pressure    *float64
	WindSpeed   *float64
}

// Record is the persisted merge target: one pollution sample joined with the
// temporally-nearest weather observation, keyed by (location id, timestamp).
type Record struct {
	LocationID   string    `json:"location_id"`
	LocationName string    `json:"location_name"`
	Lat          float64   `json:"latitude"`
	Lon          float64   `json:"longitude"`
	Timestamp    time.Time `json:"timestamp"` // always UTC

	PM25 *float64 `json:"pm2_5"`
	PM10 *float64 `json:"pm10"`
	O3   *float64 `json:"o3"`
	NO2  *float64 `json:"no2"`
	AQI  *int     `json:"aqi"`

	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	Pressure    *float64 `json:"pressure"`
	WindSpeed   *float64 `json:"wind_speed"`

	CreatedAt time.Time `json:"created_at,omitempty"`
}

// NewRecord builds a Record for a location from a pollution sample and an
// optional matched weather observation (wx may be nil when no observation
// fell within the matching tolerance).
func NewRecord(loc Location, sample PollutionSample, wx *WeatherObservation) Record {
	rec := Record{
		LocationID:   loc.ID,
		LocationName: loc.Name,
		Lat:          loc.Lat,
		Lon:          loc.Lon,
		Timestamp:    time.Unix(sample.ObservedAt, 0).UTC(),

		PM25: sample.PM25,
		PM10: sample.PM10,
		O3:   sample.O3,
		NO2:  sample.NO2,
		AQI:  sample.AQI,
	}
	if wx != nil {
		rec.Temperature = wx.Temperature
		rec.Humidity = wx.Humidity
		rec.Pressure = wx.Pressure
		rec.WindSpeed = wx.WindSpeed
	}
	return rec
}
