package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jsierrab/aguachica-air/internal/stats"
)

// MonthlyStats aggregates one month of particulate readings for a location.
type MonthlyStats struct {
	Count   int      `json:"count"`
	AvgPM25 *float64 `json:"avg_pm25"`
	MinPM25 *float64 `json:"min_pm25"`
	MaxPM25 *float64 `json:"max_pm25"`
	AvgPM10 *float64 `json:"avg_pm10"`
	MinPM10 *float64 `json:"min_pm10"`
	MaxPM10 *float64 `json:"max_pm10"`
}

// MonthlyStatistics returns aggregate particulate stats for a location and
// calendar month, or ErrNotFound when the month holds no rows.
func (s *Store) MonthlyStatistics(ctx context.Context, locationID string, year, month int) (MonthlyStats, error) {
	var (
		stats               MonthlyStats
		avg25, min25, max25 sql.NullFloat64
		avg10, min10, max10 sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       AVG(pm2_5), MIN(pm2_5), MAX(pm2_5),
		       AVG(pm10), MIN(pm10), MAX(pm10)
		FROM air_quality_data
		WHERE location_id = ?
		AND strftime('%Y', timestamp) = ?
		AND strftime('%m', timestamp) = ?`,
		locationID, fmt.Sprintf("%d", year), fmt.Sprintf("%02d", month),
	).Scan(&stats.Count, &avg25, &min25, &max25, &avg10, &min10, &max10)
	if err != nil {
		return MonthlyStats{}, fmt.Errorf("monthly statistics: %w", err)
	}
	if stats.Count == 0 {
		return MonthlyStats{}, ErrNotFound
	}

	stats.AvgPM25 = nullFloat(avg25)
	stats.MinPM25 = nullFloat(min25)
	stats.MaxPM25 = nullFloat(max25)
	stats.AvgPM10 = nullFloat(avg10)
	stats.MinPM10 = nullFloat(min10)
	stats.MaxPM10 = nullFloat(max10)
	return stats, nil
}

// MonthlyValues returns the non-null pm2_5 and pm10 values for a location
// and calendar month, for quartile computation.
func (s *Store) MonthlyValues(ctx context.Context, locationID string, year, month int) (pm25, pm10 []float64, err error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pm2_5, pm10
		FROM air_quality_data
		WHERE location_id = ?
		AND strftime('%Y', timestamp) = ?
		AND strftime('%m', timestamp) = ?`,
		locationID, fmt.Sprintf("%d", year), fmt.Sprintf("%02d", month))
	if err != nil {
		return nil, nil, fmt.Errorf("monthly values: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v25, v10 sql.NullFloat64
		if err := rows.Scan(&v25, &v10); err != nil {
			return nil, nil, err
		}
		if v25.Valid {
			pm25 = append(pm25, v25.Float64)
		}
		if v10.Valid {
			pm10 = append(pm10, v10.Float64)
		}
	}
	return pm25, pm10, rows.Err()
}

// LocationSummary describes one location present in the store.
type LocationSummary struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Lat        float64 `json:"latitude"`
	Lon        float64 `json:"longitude"`
	DataCount  int     `json:"data_count"`
	LastUpdate string  `json:"last_update"`
}

// Locations lists every location with stored data, with row counts and the
// most recent timestamp.
func (s *Store) Locations(ctx context.Context) ([]LocationSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT location_id, location_name, latitude, longitude,
		       COUNT(*), MAX(timestamp)
		FROM air_quality_data
		GROUP BY location_id
		ORDER BY location_name`)
	if err != nil {
		return nil, fmt.Errorf("query locations: %w", err)
	}
	defer rows.Close()

	var locations []LocationSummary
	for rows.Next() {
		var loc LocationSummary
		var lastUpdate sql.NullString
		if err := rows.Scan(&loc.ID, &loc.Name, &loc.Lat, &loc.Lon, &loc.DataCount, &lastUpdate); err != nil {
			return nil, err
		}
		loc.LastUpdate = lastUpdate.String
		locations = append(locations, loc)
	}
	return locations, rows.Err()
}

// Status summarizes the whole store.
type Status struct {
	TotalRecords   int            `json:"total_records"`
	LastUpdate     string         `json:"last_update"`
	LocationCounts map[string]int `json:"location_counts"`
	DatabaseStatus string         `json:"database_status"`
}

// Status reports total row count, the newest timestamp, and rows per
// location.
func (s *Store) Status(ctx context.Context) (Status, error) {
	status := Status{
		LocationCounts: make(map[string]int),
		DatabaseStatus: "active",
	}

	var lastUpdate sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MAX(timestamp) FROM air_quality_data`,
	).Scan(&status.TotalRecords, &lastUpdate)
	if err != nil {
		return Status{}, fmt.Errorf("query status: %w", err)
	}
	status.LastUpdate = lastUpdate.String

	rows, err := s.db.QueryContext(ctx,
		`SELECT location_id, COUNT(*) FROM air_quality_data GROUP BY location_id`)
	if err != nil {
		return Status{}, fmt.Errorf("query status counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var count int
		if err := rows.Scan(&id, &count); err != nil {
			return Status{}, err
		}
		status.LocationCounts[id] = count
	}
	return status, rows.Err()
}

// TrendPoint is one timestamped particulate value in a 24-hour series.
type TrendPoint struct {
	Timestamp string  `json:"t"`
	Value     float64 `json:"v"`
}

// Trends holds the last-24h particulate series and the 7-day AQI category
// distribution for a location.
type Trends struct {
	PM25Series      []TrendPoint   `json:"pm25_24h"`
	PM10Series      []TrendPoint   `json:"pm10_24h"`
	AQIDistribution map[string]int `json:"aqi_distribution_7d"`
}

// Empty reports whether the trends hold too little data to be useful.
func (t Trends) Empty() bool {
	total := 0
	for _, n := range t.AQIDistribution {
		total += n
	}
	return len(t.PM25Series) < 2 && len(t.PM10Series) < 2 && total < 1
}

// Trends returns the 24-hour particulate series and 7-day AQI distribution
// for a location.
func (s *Store) Trends(ctx context.Context, locationID string) (Trends, error) {
	trends := Trends{
		AQIDistribution: map[string]int{"1": 0, "2": 0, "3": 0, "4": 0, "5": 0},
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, pm2_5, pm10
		FROM air_quality_data
		WHERE location_id = ?
		AND timestamp >= datetime('now','-1 day')
		ORDER BY timestamp ASC`, locationID)
	if err != nil {
		return Trends{}, fmt.Errorf("query trends: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ts string
		var pm25, pm10 sql.NullFloat64
		if err := rows.Scan(&ts, &pm25, &pm10); err != nil {
			return Trends{}, err
		}
		if pm25.Valid {
			trends.PM25Series = append(trends.PM25Series, TrendPoint{Timestamp: ts, Value: stats.Round2(pm25.Float64)})
		}
		if pm10.Valid {
			trends.PM10Series = append(trends.PM10Series, TrendPoint{Timestamp: ts, Value: stats.Round2(pm10.Float64)})
		}
	}
	if err := rows.Err(); err != nil {
		return Trends{}, err
	}

	aqiRows, err := s.db.QueryContext(ctx, `
		SELECT aqi
		FROM air_quality_data
		WHERE location_id = ?
		AND timestamp >= datetime('now','-7 day')`, locationID)
	if err != nil {
		return Trends{}, fmt.Errorf("query aqi distribution: %w", err)
	}
	defer aqiRows.Close()

	for aqiRows.Next() {
		var aqi sql.NullInt64
		if err := aqiRows.Scan(&aqi); err != nil {
			return Trends{}, err
		}
		if !aqi.Valid {
			continue
		}
		key := fmt.Sprintf("%d", aqi.Int64)
		if _, ok := trends.AQIDistribution[key]; ok {
			trends.AQIDistribution[key]++
		}
	}
	return trends, aqiRows.Err()
}
