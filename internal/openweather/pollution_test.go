package openweather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pollutionServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := NewClient(server.Client(), "key")
	c.baseURL = server.URL
	return c
}

func TestHistoryParsesSamples(t *testing.T) {
	c := pollutionServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/air_pollution/history", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("start"))
		assert.NotEmpty(t, r.URL.Query().Get("end"))
		w.Write([]byte(`{
			"list": [
				{"dt": 1000, "main": {"aqi": 2}, "components": {"pm2_5": 8.5, "pm10": 14.2, "o3": 41.0, "no2": 3.3}},
				{"dt": 4600, "main": {"aqi": 3}, "components": {"pm2_5": 12.0}}
			]
		}`))
	})

	samples, err := c.History(context.Background(), 8.312, -73.626, 0, 5000)
	require.NoError(t, err)
	require.Len(t, samples, 2)

	assert.Equal(t, int64(1000), samples[0].ObservedAt)
	require.NotNil(t, samples[0].AQI)
	assert.Equal(t, 2, *samples[0].AQI)
	require.NotNil(t, samples[0].PM25)
	assert.Equal(t, 8.5, *samples[0].PM25)

	assert.Nil(t, samples[1].PM10, "absent pollutants stay nil")
	assert.Nil(t, samples[1].O3)
}

func TestHistoryDropsSamplesWithoutTimestamp(t *testing.T) {
	c := pollutionServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"list": [
				{"main": {"aqi": 2}, "components": {"pm2_5": 8.5}},
				{"dt": 2000, "main": {"aqi": 1}, "components": {"pm2_5": 4.0}}
			]
		}`))
	})

	samples, err := c.History(context.Background(), 8.312, -73.626, 0, 5000)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, int64(2000), samples[0].ObservedAt)
}

func TestHistoryTransportError(t *testing.T) {
	c := NewClient(&http.Client{}, "key")
	c.baseURL = "http://127.0.0.1:1"

	_, err := c.History(context.Background(), 8.312, -73.626, 0, 5000)
	assert.Error(t, err)
}

func TestCurrentReturnsFirstListEntry(t *testing.T) {
	c := pollutionServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/air_pollution", r.URL.Path)
		w.Write([]byte(`{
			"list": [{"dt": 9000, "main": {"aqi": 1}, "components": {"pm2_5": 3.1, "pm10": 6.0}}]
		}`))
	})

	sample, err := c.Current(context.Background(), 8.312, -73.626)
	require.NoError(t, err)
	assert.Equal(t, int64(9000), sample.ObservedAt)
	require.NotNil(t, sample.AQI)
	assert.Equal(t, 1, *sample.AQI)
}

func TestCurrentEmptyList(t *testing.T) {
	c := pollutionServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"list": []}`))
	})

	_, err := c.Current(context.Background(), 8.312, -73.626)
	assert.Error(t, err)
}

func TestCurrentWeatherParsesObservation(t *testing.T) {
	c := pollutionServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/weather", r.URL.Path)
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		w.Write([]byte(`{
			"dt": 9000,
			"main": {"temp": 31.2, "humidity": 62, "pressure": 1009},
			"wind": {"speed": 2.7}
		}`))
	})

	obs, err := c.CurrentWeather(context.Background(), 8.312, -73.626)
	require.NoError(t, err)
	assert.Equal(t, int64(9000), obs.ObservedAt)
	require.NotNil(t, obs.Temperature)
	assert.Equal(t, 31.2, *obs.Temperature)
	require.NotNil(t, obs.WindSpeed)
	assert.Equal(t, 2.7, *obs.WindSpeed)
}

func TestRateLimitedStatusIsAnError(t *testing.T) {
	c := pollutionServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.History(context.Background(), 8.312, -73.626, 0, 5000)
	assert.Error(t, err)
}
