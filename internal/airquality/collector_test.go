package airquality

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubPollutionSource serves canned samples per coordinate pair.
type stubPollutionSource struct {
	history map[string][]PollutionSample
	current map[string]PollutionSample
	errs    map[string]error
}

func coordKey(lat, lon float64) string {
	return fmt.Sprintf("%.3f:%.3f", lat, lon)
}

func (s *stubPollutionSource) History(_ context.Context, lat, lon float64, _, _ int64) ([]PollutionSample, error) {
	key := coordKey(lat, lon)
	if err := s.errs[key]; err != nil {
		return nil, err
	}
	return s.history[key], nil
}

func (s *stubPollutionSource) Current(_ context.Context, lat, lon float64) (PollutionSample, error) {
	key := coordKey(lat, lon)
	if err := s.errs[key]; err != nil {
		return PollutionSample{}, err
	}
	return s.current[key], nil
}

// stubCurrentWeather returns one fixed observation.
type stubCurrentWeather struct {
	obs WeatherObservation
	err error
}

func (s *stubCurrentWeather) CurrentWeather(_ context.Context, _, _ float64) (WeatherObservation, error) {
	return s.obs, s.err
}

// memStore records upserts and can be told to fail specific keys.
type memStore struct {
	mu      sync.Mutex
	records map[string]Record
	failKey string
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]Record)}
}

func (m *memStore) key(rec Record) string {
	return rec.LocationID + "|" + rec.Timestamp.Format(time.RFC3339)
}

func (m *memStore) Upsert(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.key(rec)
	if m.failKey != "" && k == m.failKey {
		return errors.New("storage unavailable")
	}
	m.records[k] = rec
	return nil
}

func (m *memStore) Latest(_ context.Context, _ string) (Record, error) {
	return Record{}, errors.New("not implemented")
}

func (m *memStore) History(_ context.Context, _ HistoryQuery) ([]Record, error) {
	return nil, errors.New("not implemented")
}

func (m *memStore) get(locationID string, ts int64) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[locationID+"|"+time.Unix(ts, 0).UTC().Format(time.RFC3339)]
	return rec, ok
}

var testLoc = Location{ID: "parque_central", Name: "Parque Central", Lat: 8.311, Lon: -73.624}

func pmSample(ts int64, pm25 float64) PollutionSample {
	return PollutionSample{ObservedAt: ts, PM25: &pm25}
}

// advanceOnWait unblocks the collector's inter-location waits by advancing
// the fake clock whenever something sleeps on it.
func advanceOnWait(t *testing.T, clock *clockwork.FakeClock, waits int, step time.Duration) {
	t.Helper()
	go func() {
		for i := 0; i < waits; i++ {
			clock.BlockUntil(1)
			clock.Advance(step)
		}
	}()
}

func TestBackfillWindowMergesNearestWeather(t *testing.T) {
	// Base inside a single UTC day, far from midnight so the whole window
	// shares one day-cache entry.
	base := time.Date(2026, 8, 25, 6, 0, 0, 0, time.UTC).Unix()

	pollution := &stubPollutionSource{history: map[string][]PollutionSample{
		coordKey(testLoc.Lat, testLoc.Lon): {
			pmSample(base, 10),
			pmSample(base+3600, 11),
			pmSample(base+7200, 12),
			pmSample(base+10800, 13),
		},
	}}
	weather := &stubWeatherSource{name: "stub", obs: map[int64]WeatherObservation{
		base:        obsAt(base, 28.0),
		base + 3600: obsAt(base+3600, 27.0),
	}}
	st := newMemStore()
	clock := clockwork.NewFakeClockAt(time.Unix(base+10800, 0))

	c := NewCollector([]Location{testLoc}, pollution, nil, NewDayCache([]HourlyWeatherSource{weather}), st, clock)
	res := c.BackfillWindow(context.Background(), testLoc, 1, time.Hour)

	require.True(t, res.Success)
	assert.Equal(t, 4, res.Saved)
	assert.Equal(t, 4, res.Count)

	// First two samples match their exact hour.
	rec, ok := st.get(testLoc.ID, base)
	require.True(t, ok)
	require.NotNil(t, rec.Temperature)
	assert.Equal(t, 28.0, *rec.Temperature)
	assert.Equal(t, 10.0, *rec.PM25)

	// Third sample is exactly one hour from the nearest observation, which
	// still matches (boundary inclusive).
	rec, ok = st.get(testLoc.ID, base+7200)
	require.True(t, ok)
	require.NotNil(t, rec.Temperature)
	assert.Equal(t, 27.0, *rec.Temperature)

	// Fourth sample is two hours away from anything: weather stays absent
	// while pollution is still persisted.
	rec, ok = st.get(testLoc.ID, base+10800)
	require.True(t, ok)
	assert.Nil(t, rec.Temperature)
	assert.Nil(t, rec.WindSpeed)
	assert.Equal(t, 13.0, *rec.PM25)

	assert.Equal(t, 1, weather.calls, "one day needs one weather fetch")
}

func TestBackfillWindowFetchFailure(t *testing.T) {
	pollution := &stubPollutionSource{errs: map[string]error{
		coordKey(testLoc.Lat, testLoc.Lon): errors.New("timeout"),
	}}
	st := newMemStore()
	clock := clockwork.NewFakeClock()

	c := NewCollector([]Location{testLoc}, pollution, nil, NewDayCache(nil), st, clock)
	res := c.BackfillWindow(context.Background(), testLoc, 5, time.Hour)

	assert.False(t, res.Success)
	assert.Error(t, res.Err)
	assert.Zero(t, res.Saved)
}

func TestBackfillWindowContinuesPastUpsertFailure(t *testing.T) {
	base := time.Date(2026, 8, 25, 6, 0, 0, 0, time.UTC).Unix()
	pollution := &stubPollutionSource{history: map[string][]PollutionSample{
		coordKey(testLoc.Lat, testLoc.Lon): {
			pmSample(base, 10),
			pmSample(base+3600, 11),
			pmSample(base+7200, 12),
		},
	}}
	st := newMemStore()
	st.failKey = testLoc.ID + "|" + time.Unix(base+3600, 0).UTC().Format(time.RFC3339)
	clock := clockwork.NewFakeClockAt(time.Unix(base+7200, 0))

	c := NewCollector([]Location{testLoc}, pollution, nil, NewDayCache(nil), st, clock)
	res := c.BackfillWindow(context.Background(), testLoc, 1, time.Hour)

	require.True(t, res.Success, "a failed row must not fail the location")
	assert.Equal(t, 2, res.Saved)
	assert.Equal(t, 3, res.Count)
}

func TestBackfillAllIsolatesLocationFailures(t *testing.T) {
	good := Location{ID: "estadio", Name: "Estadio", Lat: 8.302, Lon: -73.623}
	base := time.Date(2026, 8, 25, 6, 0, 0, 0, time.UTC).Unix()

	pollution := &stubPollutionSource{
		history: map[string][]PollutionSample{
			coordKey(good.Lat, good.Lon): {pmSample(base, 9)},
		},
		errs: map[string]error{
			coordKey(testLoc.Lat, testLoc.Lon): errors.New("connection refused"),
		},
	}
	st := newMemStore()
	clock := clockwork.NewFakeClockAt(time.Unix(base, 0))

	c := NewCollector([]Location{testLoc, good}, pollution, nil, NewDayCache(nil), st, clock)
	advanceOnWait(t, clock, 1, time.Second)

	results := c.BackfillAll(context.Background())
	require.Len(t, results, 2)

	assert.Equal(t, testLoc.ID, results[0].LocationID)
	assert.False(t, results[0].Result.Success)
	assert.Error(t, results[0].Result.Err)

	assert.Equal(t, good.ID, results[1].LocationID)
	assert.True(t, results[1].Result.Success)
	assert.Equal(t, 1, results[1].Result.Saved)
	assert.Equal(t, 1, results[1].Result.Count)
}

func TestCollectAllSavesMergedCurrentConditions(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	sampleTS := now.Add(-10 * time.Minute).Unix()

	pollution := &stubPollutionSource{current: map[string]PollutionSample{
		coordKey(testLoc.Lat, testLoc.Lon): pmSample(sampleTS, 17),
	}}
	temp := 30.1
	weather := &stubCurrentWeather{obs: WeatherObservation{Temperature: &temp}}
	st := newMemStore()
	clock := clockwork.NewFakeClockAt(now)

	c := NewCollector([]Location{testLoc}, pollution, weather, NewDayCache(nil), st, clock)
	successful, failed := c.CollectAll(context.Background())

	assert.Equal(t, 1, successful)
	assert.Zero(t, failed)

	rec, ok := st.get(testLoc.ID, sampleTS)
	require.True(t, ok)
	assert.Equal(t, 17.0, *rec.PM25)
	assert.Equal(t, 30.1, *rec.Temperature)
}

func TestCollectAllCountsFailures(t *testing.T) {
	good := Location{ID: "estadio", Name: "Estadio", Lat: 8.302, Lon: -73.623}
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	pollution := &stubPollutionSource{
		current: map[string]PollutionSample{
			coordKey(good.Lat, good.Lon): pmSample(now.Unix(), 5),
		},
		errs: map[string]error{
			coordKey(testLoc.Lat, testLoc.Lon): errors.New("502"),
		},
	}
	weather := &stubCurrentWeather{obs: WeatherObservation{}}
	st := newMemStore()
	clock := clockwork.NewFakeClockAt(now)

	c := NewCollector([]Location{testLoc, good}, pollution, weather, NewDayCache(nil), st, clock)
	advanceOnWait(t, clock, 1, 2*time.Second)

	successful, failed := c.CollectAll(context.Background())
	assert.Equal(t, 1, successful)
	assert.Equal(t, 1, failed)
}

func TestCollectLocationUnknownID(t *testing.T) {
	c := NewCollector([]Location{testLoc}, &stubPollutionSource{}, &stubCurrentWeather{}, NewDayCache(nil), newMemStore(), clockwork.NewFakeClock())
	err := c.CollectLocation(context.Background(), "atlantis")
	assert.Error(t, err)
}
