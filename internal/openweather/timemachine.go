package openweather

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jsierrab/aguachica-air/internal/airquality"
	"github.com/sony/gobreaker"
)

// TimemachineSource implements airquality.HourlyWeatherSource against one
// generation of the one-call timemachine endpoint. The response shape varies
// across generations (an "hourly" list, a single "current" object, a generic
// "data" list); all three are normalized into the same observation map.
type TimemachineSource struct {
	name    string
	client  *http.Client
	apiKey  string
	baseURL string
	circuit *gobreaker.CircuitBreaker
}

// NewTimemachineV3 returns the primary historical weather source (one call
// API 3.0).
func NewTimemachineV3(client *http.Client, apiKey string) *TimemachineSource {
	return newTimemachine("timemachine-v3", client, apiKey,
		"https://api.openweathermap.org/data/3.0/onecall/timemachine")
}

// NewTimemachineV25 returns the legacy fallback source (one call API 2.5).
func NewTimemachineV25(client *http.Client, apiKey string) *TimemachineSource {
	return newTimemachine("timemachine-v2.5", client, apiKey,
		"https://api.openweathermap.org/data/2.5/onecall/timemachine")
}

func newTimemachine(name string, client *http.Client, apiKey, baseURL string) *TimemachineSource {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &TimemachineSource{
		name:    name,
		client:  client,
		apiKey:  apiKey,
		baseURL: baseURL,
		circuit: newBreaker(name),
	}
}

func (s *TimemachineSource) Name() string {
	return s.name
}

// FetchDay queries the timemachine endpoint at the anchor time and returns
// every observation in the response keyed by its own timestamp.
func (s *TimemachineSource) FetchDay(ctx context.Context, lat, lon float64, anchor int64) (map[int64]airquality.WeatherObservation, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	values := url.Values{}
	values.Set("lat", fmt.Sprintf("%f", lat))
	values.Set("lon", fmt.Sprintf("%f", lon))
	values.Set("dt", fmt.Sprintf("%d", anchor))
	values.Set("appid", s.apiKey)
	values.Set("units", "metric")

	var payload timemachinePayload
	if err := getJSON(ctx, s.client, s.circuit, fmt.Sprintf("%s?%s", s.baseURL, values.Encode()), &payload); err != nil {
		return nil, err
	}
	return payload.observations(), nil
}

type timemachinePayload struct {
	Hourly  []flatEntry   `json:"hourly"`
	Current *flatEntry    `json:"current"`
	Data    []nestedEntry `json:"data"`
}

// flatEntry covers the "hourly" and "current" shapes: measurements at the
// top level, with wind speed sometimes nested under a wind object.
type flatEntry struct {
	Dt        int64    `json:"dt"`
	Temp      *float64 `json:"temp"`
	Humidity  *float64 `json:"humidity"`
	Pressure  *float64 `json:"pressure"`
	WindSpeed *float64 `json:"wind_speed"`
	Wind      struct {
		Speed *float64 `json:"speed"`
	} `json:"wind"`
}

func (e flatEntry) observation() airquality.WeatherObservation {
	wind := e.WindSpeed
	if wind == nil {
		wind = e.Wind.Speed
	}
	return airquality.WeatherObservation{
		ObservedAt:  e.Dt,
		Temperature: e.Temp,
		Humidity:    e.Humidity,
		Pressure:    e.Pressure,
		WindSpeed:   wind,
	}
}

// nestedEntry covers the generic "data" shape, where measurements may also
// appear under a main object.
type nestedEntry struct {
	flatEntry
	Main struct {
		Temp     *float64 `json:"temp"`
		Humidity *float64 `json:"humidity"`
		Pressure *float64 `json:"pressure"`
	} `json:"main"`
}

func (e nestedEntry) observation() airquality.WeatherObservation {
	obs := e.flatEntry.observation()
	if obs.Temperature == nil {
		obs.Temperature = e.Main.Temp
	}
	if obs.Humidity == nil {
		obs.Humidity = e.Main.Humidity
	}
	if obs.Pressure == nil {
		obs.Pressure = e.Main.Pressure
	}
	return obs
}

// observations merges all three shapes into one map keyed by each entry's
// timestamp. Entries without one are skipped.
func (p timemachinePayload) observations() map[int64]airquality.WeatherObservation {
	m := make(map[int64]airquality.WeatherObservation, len(p.Hourly)+len(p.Data)+1)
	for _, h := range p.Hourly {
		if h.Dt != 0 {
			m[h.Dt] = h.observation()
		}
	}
	if p.Current != nil && p.Current.Dt != 0 {
		m[p.Current.Dt] = p.Current.observation()
	}
	for _, d := range p.Data {
		if d.Dt != 0 {
			m[d.Dt] = d.observation()
		}
	}
	return m
}
