package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"surfsup-server/internal/cache"
	"surfsup-server/internal/modules/climate/repository"
	"surfsup-server/internal/modules/climate/types"
)

// trailingDays is the length of the "last year" window, counted back from the newest measurement.
const trailingDays = 365

type Service struct {
	repository repository.ClimateRepository
	cache      cache.Cache
	ttl        time.Duration
	logger     *slog.Logger
}

// NewService wires the climate queries. A nil cache disables caching.
func NewService(repo repository.ClimateRepository, c cache.Cache, ttl time.Duration, logger *slog.Logger) *Service {
	if c == nil {
		c = cache.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repository: repo, cache: c, ttl: ttl, logger: logger}
}

// TrailingWindow returns [maxDate - 365 days, maxDate].
func TrailingWindow(maxDate string) (types.DateWindow, error) {
	end, err := time.Parse(types.DateLayout, maxDate)
	if err != nil {
		return types.DateWindow{}, fmt.Errorf("max date %q: %w", maxDate, err)
	}
	return types.DateWindow{
		Start: end.AddDate(0, 0, -trailingDays).Format(types.DateLayout),
		End:   maxDate,
	}, nil
}

// ParseDate checks that value is a real calendar date in YYYY-MM-DD form.
func ParseDate(param, value string) (string, error) {
	if _, err := time.Parse(types.DateLayout, value); err != nil {
		return "", &types.InvalidDateError{Param: param, Value: value}
	}
	return value, nil
}

func (s *Service) trailingWindow(ctx context.Context) (types.DateWindow, error) {
	maxDate, err := s.repository.GetMaxDate(ctx)
	if err != nil {
		return types.DateWindow{}, err
	}
	return TrailingWindow(maxDate)
}

// Precipitation returns every precipitation reading in the trailing year.
// An empty store yields an empty report.
func (s *Service) Precipitation(ctx context.Context) (types.PrecipitationReport, error) {
	return cached(ctx, s, "precipitation", func(ctx context.Context) (types.PrecipitationReport, error) {
		window, err := s.trailingWindow(ctx)
		if errors.Is(err, types.ErrNoData) {
			return types.PrecipitationReport{Readings: []types.PrecipitationReading{}}, nil
		}
		if err != nil {
			return types.PrecipitationReport{}, err
		}
		readings, err := s.repository.GetPrecipitation(ctx, window.Start, window.End)
		if err != nil {
			return types.PrecipitationReport{}, err
		}
		return types.PrecipitationReport{Window: window, Readings: readings}, nil
	})
}

func (s *Service) Stations(ctx context.Context) ([]string, error) {
	return cached(ctx, s, "stations", s.repository.GetStationIDs)
}

func (s *Service) StationDetails(ctx context.Context) ([]types.Station, error) {
	return cached(ctx, s, "stations:details", s.repository.GetStations)
}

// MostActiveTemperatures returns the trailing-year observations of the station with the
// most measurements overall. The window is anchored on the newest date in the whole table.
func (s *Service) MostActiveTemperatures(ctx context.Context) (types.TemperatureReport, error) {
	return cached(ctx, s, "tobs", func(ctx context.Context) (types.TemperatureReport, error) {
		empty := types.TemperatureReport{Observations: []types.TemperatureObservation{}}

		station, err := s.repository.GetMostActiveStation(ctx)
		if errors.Is(err, types.ErrNoData) {
			return empty, nil
		}
		if err != nil {
			return types.TemperatureReport{}, err
		}
		window, err := s.trailingWindow(ctx)
		if errors.Is(err, types.ErrNoData) {
			return empty, nil
		}
		if err != nil {
			return types.TemperatureReport{}, err
		}
		obs, err := s.repository.GetTemperatureObservations(ctx, station, window.Start, window.End)
		if err != nil {
			return types.TemperatureReport{}, err
		}
		return types.TemperatureReport{StationID: station, Window: window, Observations: obs}, nil
	})
}

// TemperatureStats returns min, avg and max tobs over [start, end]. An empty end means
// the newest date in the store. No matching rows, including end < start, gives nulls.
func (s *Service) TemperatureStats(ctx context.Context, start, end string) (types.TemperatureStats, error) {
	if _, err := ParseDate("start", start); err != nil {
		return types.TemperatureStats{}, err
	}
	if end != "" {
		if _, err := ParseDate("end", end); err != nil {
			return types.TemperatureStats{}, err
		}
	}

	return cached(ctx, s, "stats:"+start+":"+end, func(ctx context.Context) (types.TemperatureStats, error) {
		to := end
		if to == "" {
			maxDate, err := s.repository.GetMaxDate(ctx)
			if errors.Is(err, types.ErrNoData) {
				return types.TemperatureStats{Window: types.DateWindow{Start: start}}, nil
			}
			if err != nil {
				return types.TemperatureStats{}, err
			}
			to = maxDate
		}
		return s.repository.GetTemperatureStats(ctx, start, to)
	})
}

// InvalidateCache drops every cached report, e.g. after the store was refreshed.
func (s *Service) InvalidateCache(ctx context.Context) error {
	return s.cache.Invalidate(ctx)
}

// cached serves key from the cache or computes it with load. Cache failures are logged
// and never fail the request.
func cached[T any](ctx context.Context, s *Service, key string, load func(context.Context) (T, error)) (T, error) {
	var v T
	hit, err := s.cache.GetJSON(ctx, key, &v)
	if err != nil {
		s.logger.Warn("cache read failed", "key", key, "error", err)
	} else if hit {
		return v, nil
	}

	v, err = load(ctx)
	if err != nil {
		return v, err
	}

	if err := s.cache.SetJSON(ctx, key, v, s.ttl); err != nil {
		s.logger.Warn("cache write failed", "key", key, "error", err)
	}
	return v, nil
}
