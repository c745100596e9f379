package openweather

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jsierrab/aguachica-air/internal/airquality"
)

// CurrentWeather returns the live weather observation for the coordinates.
func (c *Client) CurrentWeather(ctx context.Context, lat, lon float64) (airquality.WeatherObservation, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	values := url.Values{}
	values.Set("lat", fmt.Sprintf("%f", lat))
	values.Set("lon", fmt.Sprintf("%f", lon))
	values.Set("appid", c.apiKey)
	values.Set("units", "metric")

	var payload struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp     *float64 `json:"temp"`
			Humidity *float64 `json:"humidity"`
			Pressure *float64 `json:"pressure"`
		} `json:"main"`
		Wind struct {
			Speed *float64 `json:"speed"`
		} `json:"wind"`
	}

	if err := getJSON(ctx, c.client, c.circuit, fmt.Sprintf("%s/weather?%s", c.baseURL, values.Encode()), &payload); err != nil {
		return airquality.WeatherObservation{}, err
	}

	return airquality.WeatherObservation{
		ObservedAt:  payload.Dt,
		Temperature: payload.Main.Temp,
		Humidity:    payload.Main.Humidity,
		Pressure:    payload.Main.Pressure,
		WindSpeed:   payload.Wind.Speed,
	}, nil
}
