package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surfsup-server/internal/modules/climate/types"
)

type mockRepo struct {
	stationIDs []string
	stations   []types.Station
	maxDate    string
	maxDateErr error
	mostActive string
	activeErr  error
	prcp       []types.PrecipitationReading
	prcpErr    error
	obs        []types.TemperatureObservation
	stats      types.TemperatureStats
	statsErr   error

	calls       int
	gotFrom     string
	gotTo       string
	gotStation  string
	statsCalled bool
}

func (m *mockRepo) GetStationIDs(ctx context.Context) ([]string, error) {
	m.calls++
	return m.stationIDs, nil
}

func (m *mockRepo) GetStations(ctx context.Context) ([]types.Station, error) {
	m.calls++
	return m.stations, nil
}

func (m *mockRepo) GetMaxDate(ctx context.Context) (string, error) {
	m.calls++
	return m.maxDate, m.maxDateErr
}

func (m *mockRepo) GetMostActiveStation(ctx context.Context) (string, error) {
	m.calls++
	return m.mostActive, m.activeErr
}

func (m *mockRepo) GetPrecipitation(ctx context.Context, from, to string) ([]types.PrecipitationReading, error) {
	m.calls++
	m.gotFrom, m.gotTo = from, to
	return m.prcp, m.prcpErr
}

func (m *mockRepo) GetTemperatureObservations(ctx context.Context, station, from, to string) ([]types.TemperatureObservation, error) {
	m.calls++
	m.gotStation, m.gotFrom, m.gotTo = station, from, to
	return m.obs, nil
}

func (m *mockRepo) GetTemperatureStats(ctx context.Context, from, to string) (types.TemperatureStats, error) {
	m.calls++
	m.statsCalled = true
	m.gotFrom, m.gotTo = from, to
	st := m.stats
	st.Window = types.DateWindow{Start: from, End: to}
	return st, m.statsErr
}

// memCache is an in-process cache.Cache for exercising the read-through path.
type memCache struct {
	entries    map[string][]byte
	getErr     error
	setErr     error
	invalidate int
}

func newMemCache() *memCache { return &memCache{entries: map[string][]byte{}} }

func f(v float64) *float64 { return &v }

func TestTrailingWindow(t *testing.T) {
	w, err := TrailingWindow("2017-08-23")
	require.NoError(t, err)
	assert.Equal(t, types.DateWindow{Start: "2016-08-23", End: "2017-08-23"}, w)

	// 2016 is a leap year: 365 days back from 2016-03-01 lands on 2015-03-02.
	w, err = TrailingWindow("2016-03-01")
	require.NoError(t, err)
	assert.Equal(t, "2015-03-02", w.Start)

	_, err = TrailingWindow("23/08/2017")
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		value string
		ok    bool
	}{
		{value: "2017-08-18", ok: true},
		{value: "2016-02-29", ok: true},
		{value: "2017-02-29", ok: false},
		{value: "2017-8-18", ok: false},
		{value: "20170818", ok: false},
		{value: "yesterday", ok: false},
		{value: "", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := ParseDate("start", tt.value)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.value, got)
				return
			}
			var dateErr *types.InvalidDateError
			require.ErrorAs(t, err, &dateErr)
			assert.Equal(t, "start", dateErr.Param)
			assert.Equal(t, tt.value, dateErr.Value)
		})
	}
}

func TestPrecipitation(t *testing.T) {
	t.Run("window from max date", func(t *testing.T) {
		repo := &mockRepo{
			maxDate: "2017-08-23",
			prcp: []types.PrecipitationReading{
				{Date: "2016-08-23", Precipitation: f(0.7)},
				{Date: "2017-08-23", Precipitation: nil},
			},
		}
		svc := NewService(repo, nil, time.Minute, nil)

		got, err := svc.Precipitation(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "2016-08-23", repo.gotFrom)
		assert.Equal(t, "2017-08-23", repo.gotTo)
		assert.Equal(t, types.DateWindow{Start: "2016-08-23", End: "2017-08-23"}, got.Window)
		assert.Len(t, got.ByDate(), 2)
	})

	t.Run("empty store", func(t *testing.T) {
		svc := NewService(&mockRepo{maxDateErr: types.ErrNoData}, nil, time.Minute, nil)
		got, err := svc.Precipitation(context.Background())
		require.NoError(t, err)
		assert.Empty(t, got.ByDate())
	})

	t.Run("store failure", func(t *testing.T) {
		svc := NewService(&mockRepo{maxDateErr: errors.New("disk I/O error")}, nil, time.Minute, nil)
		_, err := svc.Precipitation(context.Background())
		assert.ErrorContains(t, err, "disk I/O error")
	})
}

func TestMostActiveTemperatures(t *testing.T) {
	t.Run("uses global window", func(t *testing.T) {
		repo := &mockRepo{
			maxDate:    "2017-08-23",
			mostActive: "USC00519281",
			obs: []types.TemperatureObservation{
				{Date: "2016-08-23", Tobs: f(77)},
				{Date: "2016-08-24", Tobs: f(77)},
			},
		}
		svc := NewService(repo, nil, time.Minute, nil)

		got, err := svc.MostActiveTemperatures(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "USC00519281", repo.gotStation)
		assert.Equal(t, "2016-08-23", repo.gotFrom)
		assert.Equal(t, "USC00519281", got.StationID)
		assert.Equal(t, []any{"2016-08-23", f(77), "2016-08-24", f(77)}, got.Flat())
	})

	t.Run("empty store", func(t *testing.T) {
		svc := NewService(&mockRepo{activeErr: types.ErrNoData}, nil, time.Minute, nil)
		got, err := svc.MostActiveTemperatures(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []any{}, got.Flat())
	})
}

func TestTemperatureStats(t *testing.T) {
	t.Run("explicit range", func(t *testing.T) {
		repo := &mockRepo{stats: types.TemperatureStats{Min: f(70), Avg: f(72.5), Max: f(75)}}
		svc := NewService(repo, nil, time.Minute, nil)

		got, err := svc.TemperatureStats(context.Background(), "2017-08-18", "2017-08-19")
		require.NoError(t, err)
		assert.Equal(t, []*float64{f(70), f(72.5), f(75)}, got.Triple())
		assert.Equal(t, "2017-08-19", repo.gotTo)
	})

	t.Run("open end uses max date", func(t *testing.T) {
		repo := &mockRepo{maxDate: "2017-08-23"}
		svc := NewService(repo, nil, time.Minute, nil)

		_, err := svc.TemperatureStats(context.Background(), "2017-08-01", "")
		require.NoError(t, err)
		assert.Equal(t, "2017-08-01", repo.gotFrom)
		assert.Equal(t, "2017-08-23", repo.gotTo)
	})

	t.Run("open end on empty store", func(t *testing.T) {
		repo := &mockRepo{maxDateErr: types.ErrNoData}
		svc := NewService(repo, nil, time.Minute, nil)

		got, err := svc.TemperatureStats(context.Background(), "2017-08-01", "")
		require.NoError(t, err)
		assert.Equal(t, []*float64{nil, nil, nil}, got.Triple())
		assert.False(t, repo.statsCalled)
	})

	t.Run("invalid start never reaches the store", func(t *testing.T) {
		repo := &mockRepo{}
		svc := NewService(repo, nil, time.Minute, nil)

		_, err := svc.TemperatureStats(context.Background(), "2017-13-01", "")
		var dateErr *types.InvalidDateError
		require.ErrorAs(t, err, &dateErr)
		assert.Equal(t, "start", dateErr.Param)
		assert.Zero(t, repo.calls)
	})

	t.Run("invalid end", func(t *testing.T) {
		svc := NewService(&mockRepo{}, nil, time.Minute, nil)
		_, err := svc.TemperatureStats(context.Background(), "2017-08-01", "soon")
		var dateErr *types.InvalidDateError
		require.ErrorAs(t, err, &dateErr)
		assert.Equal(t, "end", dateErr.Param)
	})
}

func TestCaching(t *testing.T) {
	t.Run("second call is served from cache", func(t *testing.T) {
		repo := &mockRepo{stationIDs: []string{"USC00519397", "USC00513117"}}
		mc := newMemCache()
		svc := NewService(repo, mc, time.Minute, nil)

		first, err := svc.Stations(context.Background())
		require.NoError(t, err)
		second, err := svc.Stations(context.Background())
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, 1, repo.calls)
	})

	t.Run("cache errors fall through to the store", func(t *testing.T) {
		repo := &mockRepo{stationIDs: []string{"USC00519397"}}
		mc := newMemCache()
		mc.getErr = errors.New("redis down")
		mc.setErr = errors.New("redis down")
		svc := NewService(repo, mc, time.Minute, nil)

		got, err := svc.Stations(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"USC00519397"}, got)
	})

	t.Run("store errors are not cached", func(t *testing.T) {
		repo := &mockRepo{maxDate: "2017-08-23", prcpErr: errors.New("locked")}
		mc := newMemCache()
		svc := NewService(repo, mc, time.Minute, nil)

		_, err := svc.Precipitation(context.Background())
		require.Error(t, err)
		assert.Empty(t, mc.entries)
	})

	t.Run("invalidate", func(t *testing.T) {
		mc := newMemCache()
		svc := NewService(&mockRepo{}, mc, time.Minute, nil)
		require.NoError(t, svc.InvalidateCache(context.Background()))
		assert.Equal(t, 1, mc.invalidate)
	})
}
