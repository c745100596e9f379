package openweather

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jsierrab/aguachica-air/internal/airquality"
)

// pollutionPayload is the response shape shared by the air_pollution and
// air_pollution/history endpoints.
type pollutionPayload struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			AQI *int `json:"aqi"`
		} `json:"main"`
		Components struct {
			PM25 *float64 `json:"pm2_5"`
			PM10 *float64 `json:"pm10"`
			O3   *float64 `json:"o3"`
			NO2  *float64 `json:"no2"`
		} `json:"components"`
	} `json:"list"`
}

// Current returns the most recent pollution sample for the coordinates.
func (c *Client) Current(ctx context.Context, lat, lon float64) (airquality.PollutionSample, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	values := url.Values{}
	values.Set("lat", fmt.Sprintf("%f", lat))
	values.Set("lon", fmt.Sprintf("%f", lon))
	values.Set("appid", c.apiKey)

	var payload pollutionPayload
	if err := getJSON(ctx, c.client, c.circuit, fmt.Sprintf("%s/air_pollution?%s", c.baseURL, values.Encode()), &payload); err != nil {
		return airquality.PollutionSample{}, err
	}
	if len(payload.List) == 0 {
		return airquality.PollutionSample{}, fmt.Errorf("empty air pollution response")
	}
	// Keep a zero Dt here: the collector falls back to "now" for live
	// samples instead of dropping them.
	item := payload.List[0]
	return airquality.PollutionSample{
		ObservedAt: item.Dt,
		PM25:       item.Components.PM25,
		PM10:       item.Components.PM10,
		O3:         item.Components.O3,
		NO2:        item.Components.NO2,
		AQI:        item.Main.AQI,
	}, nil
}

// History returns all pollution samples between start and end (unix
// seconds). The endpoint serves at most five days back; entries without a
// timestamp are dropped.
func (c *Client) History(ctx context.Context, lat, lon float64, start, end int64) ([]airquality.PollutionSample, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	values := url.Values{}
	values.Set("lat", fmt.Sprintf("%f", lat))
	values.Set("lon", fmt.Sprintf("%f", lon))
	values.Set("start", fmt.Sprintf("%d", start))
	values.Set("end", fmt.Sprintf("%d", end))
	values.Set("appid", c.apiKey)

	var payload pollutionPayload
	if err := getJSON(ctx, c.client, c.circuit, fmt.Sprintf("%s/air_pollution/history?%s", c.baseURL, values.Encode()), &payload); err != nil {
		return nil, err
	}
	return payload.samples(), nil
}

func (p pollutionPayload) samples() []airquality.PollutionSample {
	samples := make([]airquality.PollutionSample, 0, len(p.List))
	for _, item := range p.List {
		if item.Dt == 0 {
			// No observation time, nothing to key the record by.
			continue
		}
		samples = append(samples, airquality.PollutionSample{
			ObservedAt: item.Dt,
			PM25:       item.Components.PM25,
			PM10:       item.Components.PM10,
			O3:         item.Components.O3,
			NO2:        item.Components.NO2,
			AQI:        item.Main.AQI,
		})
	}
	return samples
}
