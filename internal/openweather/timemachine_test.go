package openweather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timemachineServer(t *testing.T, status int, body string) (*TimemachineSource, *int) {
	t.Helper()
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.NotEmpty(t, r.URL.Query().Get("dt"))
		assert.NotEmpty(t, r.URL.Query().Get("appid"))
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return newTimemachine("test", server.Client(), "key", server.URL), &calls
}

func TestFetchDayNormalizesHourlyShape(t *testing.T) {
	src, _ := timemachineServer(t, http.StatusOK, `{
		"hourly": [
			{"dt": 1000, "temp": 28.5, "humidity": 70, "pressure": 1012, "wind_speed": 3.2},
			{"dt": 4600, "temp": 27.1, "humidity": 74, "pressure": 1011, "wind": {"speed": 2.4}},
			{"temp": 26.0}
		]
	}`)

	obs, err := src.FetchDay(context.Background(), 8.312, -73.626, 1000)
	require.NoError(t, err)
	require.Len(t, obs, 2, "entries without a timestamp are skipped")

	first := obs[1000]
	require.NotNil(t, first.Temperature)
	assert.Equal(t, 28.5, *first.Temperature)
	require.NotNil(t, first.WindSpeed)
	assert.Equal(t, 3.2, *first.WindSpeed)

	second := obs[4600]
	require.NotNil(t, second.WindSpeed, "wind speed under a wind object must be found")
	assert.Equal(t, 2.4, *second.WindSpeed)
}

func TestFetchDayNormalizesCurrentShape(t *testing.T) {
	src, _ := timemachineServer(t, http.StatusOK, `{
		"current": {"dt": 2000, "temp": 29.0, "humidity": 65, "pressure": 1010, "wind_speed": 1.8}
	}`)

	obs, err := src.FetchDay(context.Background(), 8.312, -73.626, 2000)
	require.NoError(t, err)
	require.Len(t, obs, 1)
	cur := obs[2000]
	require.NotNil(t, cur.Temperature)
	assert.Equal(t, 29.0, *cur.Temperature)
	require.NotNil(t, cur.Humidity)
	assert.Equal(t, 65.0, *cur.Humidity)
}

func TestFetchDayNormalizesGenericDataShape(t *testing.T) {
	src, _ := timemachineServer(t, http.StatusOK, `{
		"data": [
			{"dt": 3000, "main": {"temp": 25.5, "humidity": 80, "pressure": 1013}, "wind": {"speed": 4.1}},
			{"dt": 6600, "temp": 24.0, "wind_speed": 3.0}
		]
	}`)

	obs, err := src.FetchDay(context.Background(), 8.312, -73.626, 3000)
	require.NoError(t, err)
	require.Len(t, obs, 2)

	nested := obs[3000]
	require.NotNil(t, nested.Temperature, "temp under main must be found")
	assert.Equal(t, 25.5, *nested.Temperature)
	require.NotNil(t, nested.Pressure)
	assert.Equal(t, 1013.0, *nested.Pressure)
	require.NotNil(t, nested.WindSpeed)
	assert.Equal(t, 4.1, *nested.WindSpeed)

	flat := obs[6600]
	require.NotNil(t, flat.Temperature)
	assert.Equal(t, 24.0, *flat.Temperature)
	assert.Nil(t, flat.Humidity)
}

func TestFetchDayAbsentFieldsStayNil(t *testing.T) {
	src, _ := timemachineServer(t, http.StatusOK, `{
		"hourly": [{"dt": 1000, "temp": 28.5}]
	}`)

	obs, err := src.FetchDay(context.Background(), 8.312, -73.626, 1000)
	require.NoError(t, err)
	entry := obs[1000]
	assert.Nil(t, entry.Humidity)
	assert.Nil(t, entry.Pressure)
	assert.Nil(t, entry.WindSpeed)
}

func TestFetchDayNonSuccessStatus(t *testing.T) {
	src, _ := timemachineServer(t, http.StatusUnauthorized, `{"cod": 401}`)

	_, err := src.FetchDay(context.Background(), 8.312, -73.626, 1000)
	assert.Error(t, err)
}
