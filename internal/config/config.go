package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jsierrab/aguachica-air/internal/airquality"
)

// DefaultLocations are the fixed monitoring points around Aguachica.
var DefaultLocations = []airquality.Location{
	{ID: "aguachica_general", Name: "Aguachica - Vista General", Lat: 8.312, Lon: -73.626},
	{ID: "parque_central", Name: "Parque Central", Lat: 8.310675833008426, Lon: -73.62363665855918},
	{ID: "universidad", Name: "Universidad Popular del Cesar", Lat: 8.314789098234467, Lon: -73.59638568793966},
	{ID: "parque_morrocoy", Name: "Parque Morrocoy", Lat: 8.310373774726447, Lon: -73.61670782048647},
	{ID: "patinodromo", Name: "Patinódromo", Lat: 8.297149888853758, Lon: -73.62335200184627},
	{ID: "ciudadela_paz", Name: "Ciudadela de la Paz", Lat: 8.312099985681844, Lon: -73.63467832511535},
	{ID: "bosque", Name: "Bosque", Lat: 8.312303609676293, Lon: -73.61448867800057},
	{ID: "estadio", Name: "Estadio", Lat: 8.30159931733102, Lon: -73.622763654179},
}

// AppConfig holds all service settings.
type AppConfig struct {
	OpenWeatherAPIKey string

	DatabasePath string
	Port         string

	// HTTPTimeout bounds every outbound API call.
	HTTPTimeout time.Duration

	// CollectEvery is the periodic live-collection interval.
	CollectEvery time.Duration

	// Locations to monitor.
	Locations []airquality.Location
}

// Load reads configuration from the environment with sensible defaults.
// The OpenWeather API key falls back to config.json when the environment
// variable is unset; whether a missing key is fatal depends on the run mode,
// so Load does not enforce it.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		OpenWeatherAPIKey: loadAPIKey(),
		DatabasePath:      getenvDefault("DATABASE_PATH", "data/air_quality.db"),
		Port:              getenvDefault("PORT", "8080"),
		Locations:         DefaultLocations,
	}

	timeoutStr := getenvDefault("HTTP_TIMEOUT", "30s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	collectStr := getenvDefault("COLLECT_INTERVAL", "4h")
	collectEvery, err := time.ParseDuration(collectStr)
	if err != nil {
		return nil, fmt.Errorf("invalid COLLECT_INTERVAL: %w", err)
	}
	cfg.CollectEvery = collectEvery

	if path := os.Getenv("LOCATIONS_FILE"); path != "" {
		locs, err := loadLocationsFile(path)
		if err != nil {
			return nil, err
		}
		cfg.Locations = locs
	}

	return cfg, nil
}

// RequireAPIKey returns an error when no OpenWeather API key is configured.
// Entry points that talk to the API treat this as fatal at startup.
func (c *AppConfig) RequireAPIKey() error {
	if c.OpenWeatherAPIKey == "" {
		return fmt.Errorf("OPENWEATHER_API_KEY is not set and config.json has no openweather_api_key entry")
	}
	return nil
}

// loadAPIKey prefers the environment variable and falls back to a local
// config.json with an openweather_api_key field.
func loadAPIKey() string {
	if key := os.Getenv("OPENWEATHER_API_KEY"); key != "" {
		return key
	}

	data, err := os.ReadFile("config.json")
	if err != nil {
		return ""
	}
	var file struct {
		OpenWeatherAPIKey string `json:"openweather_api_key"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return ""
	}
	return file.OpenWeatherAPIKey
}

func loadLocationsFile(path string) ([]airquality.Location, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read locations file: %w", err)
	}
	var locs []airquality.Location
	if err := json.Unmarshal(data, &locs); err != nil {
		return nil, fmt.Errorf("parse locations file: %w", err)
	}
	if len(locs) == 0 {
		return nil, fmt.Errorf("locations file %s holds no locations", path)
	}
	return locs, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
