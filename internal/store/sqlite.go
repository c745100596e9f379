// Package store persists merged air quality records in SQLite and serves
// the read projections behind the HTTP API.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jsierrab/aguachica-air/internal/airquality"
)

// ErrNotFound is returned when no rows match a read query.
var ErrNotFound = errors.New("no air quality data found")

// timeLayout is how timestamps are stored, UTC. It matches SQLite's own
// datetime() output so range filters like datetime('now','-1 day') compare
// correctly against stored values.
const timeLayout = "2006-01-02 15:04:05"

// Store is a SQLite-backed implementation of airquality.Store plus the read
// projections used by the HTTP layer.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and bootstraps the
// schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL improves concurrency between the collector and API readers.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS air_quality_data (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			location_id TEXT NOT NULL,
			location_name TEXT NOT NULL,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			timestamp DATETIME NOT NULL,
			pm2_5 REAL,
			pm10 REAL,
			o3 REAL,
			no2 REAL,
			aqi INTEGER,
			temperature REAL,
			humidity REAL,
			pressure REAL,
			wind_speed REAL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(location_id, timestamp)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_location_timestamp
			ON air_quality_data(location_id, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_timestamp
			ON air_quality_data(timestamp)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert inserts a record or, on a (location_id, timestamp) collision,
// merges it into the existing row. Measurement fields follow non-null-wins:
// an incoming NULL never erases a stored value. Location metadata always
// takes the incoming value, and created_at is set only on first insert.
// The whole operation is a single statement, so concurrent writers on the
// same key cannot interleave.
func (s *Store) Upsert(ctx context.Context, rec airquality.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO air_quality_data
		(location_id, location_name, latitude, longitude, timestamp,
		 pm2_5, pm10, o3, no2, aqi, temperature, humidity, pressure, wind_speed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(location_id, timestamp) DO UPDATE SET
		  location_name = excluded.location_name,
		  latitude = excluded.latitude,
		  longitude = excluded.longitude,
		  pm2_5 = COALESCE(excluded.pm2_5, air_quality_data.pm2_5),
		  pm10 = COALESCE(excluded.pm10, air_quality_data.pm10),
		  o3 = COALESCE(excluded.o3, air_quality_data.o3),
		  no2 = COALESCE(excluded.no2, air_quality_data.no2),
		  aqi = COALESCE(excluded.aqi, air_quality_data.aqi),
		  temperature = COALESCE(excluded.temperature, air_quality_data.temperature),
		  humidity = COALESCE(excluded.humidity, air_quality_data.humidity),
		  pressure = COALESCE(excluded.pressure, air_quality_data.pressure),
		  wind_speed = COALESCE(excluded.wind_speed, air_quality_data.wind_speed)`,
		rec.LocationID, rec.LocationName, rec.Lat, rec.Lon,
		rec.Timestamp.UTC().Format(timeLayout),
		rec.PM25, rec.PM10, rec.O3, rec.NO2, rec.AQI,
		rec.Temperature, rec.Humidity, rec.Pressure, rec.WindSpeed,
	)
	if err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

const recordColumns = `location_id, location_name, latitude, longitude, timestamp,
	pm2_5, pm10, o3, no2, aqi, temperature, humidity, pressure, wind_speed, created_at`

// Latest returns the most recent record for a location.
func (s *Store) Latest(ctx context.Context, locationID string) (airquality.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM air_quality_data
		WHERE location_id = ?
		ORDER BY timestamp DESC
		LIMIT 1`, locationID)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return airquality.Record{}, ErrNotFound
	}
	return rec, err
}

// History returns records matching the query, newest first.
func (s *Store) History(ctx context.Context, q airquality.HistoryQuery) ([]airquality.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM air_quality_data WHERE 1=1`
	var args []interface{}

	if q.LocationID != "" {
		query += " AND location_id = ?"
		args = append(args, q.LocationID)
	}
	if !q.Start.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, q.Start.UTC().Format(timeLayout))
	}
	if !q.End.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, q.End.UTC().Format(timeLayout))
	}
	query += " ORDER BY timestamp DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []airquality.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (airquality.Record, error) {
	var (
		rec       airquality.Record
		ts        string
		createdAt sql.NullString
		pm25      sql.NullFloat64
		pm10      sql.NullFloat64
		o3        sql.NullFloat64
		no2       sql.NullFloat64
		aqi       sql.NullInt64
		temp      sql.NullFloat64
		humidity  sql.NullFloat64
		pressure  sql.NullFloat64
		wind      sql.NullFloat64
	)

	err := row.Scan(
		&rec.LocationID, &rec.LocationName, &rec.Lat, &rec.Lon, &ts,
		&pm25, &pm10, &o3, &no2, &aqi, &temp, &humidity, &pressure, &wind,
		&createdAt,
	)
	if err != nil {
		return airquality.Record{}, err
	}

	// Timestamps are always written in timeLayout; anything else in the
	// column signals corruption.
	t, err := time.Parse(timeLayout, ts)
	if err != nil {
		return airquality.Record{}, fmt.Errorf("malformed timestamp %q: %w", ts, err)
	}
	rec.Timestamp = t.UTC()
	if createdAt.Valid {
		t, err := time.Parse(timeLayout, createdAt.String)
		if err != nil {
			return airquality.Record{}, fmt.Errorf("malformed created_at %q: %w", createdAt.String, err)
		}
		rec.CreatedAt = t.UTC()
	}

	rec.PM25 = nullFloat(pm25)
	rec.PM10 = nullFloat(pm10)
	rec.O3 = nullFloat(o3)
	rec.NO2 = nullFloat(no2)
	rec.AQI = nullInt(aqi)
	rec.Temperature = nullFloat(temp)
	rec.Humidity = nullFloat(humidity)
	rec.Pressure = nullFloat(pressure)
	rec.WindSpeed = nullFloat(wind)
	return rec, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
