package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"surfsup-server/internal/db"
	"surfsup-server/internal/modules/climate/types"
)

//go:embed sql/get-station-ids.sql
var getStationIDsSQL string

//go:embed sql/get-stations.sql
var getStationsSQL string

//go:embed sql/get-max-date.sql
var getMaxDateSQL string

//go:embed sql/get-most-active-station.sql
var getMostActiveStationSQL string

//go:embed sql/get-precipitation.sql
var getPrecipitationSQL string

//go:embed sql/get-temperature-observations.sql
var getTemperatureObservationsSQL string

//go:embed sql/get-temperature-stats.sql
var getTemperatureStatsSQL string

// ClimateRepository reads the station and measurement tables. Dates are passed and
// returned as YYYY-MM-DD strings; windows are inclusive on both ends.
type ClimateRepository interface {
	GetStationIDs(ctx context.Context) ([]string, error)
	GetStations(ctx context.Context) ([]types.Station, error)
	// GetMaxDate returns types.ErrNoData when the measurement table is empty.
	GetMaxDate(ctx context.Context) (string, error)
	// GetMostActiveStation returns types.ErrNoData when the measurement table is empty.
	GetMostActiveStation(ctx context.Context) (string, error)
	GetPrecipitation(ctx context.Context, from, to string) ([]types.PrecipitationReading, error)
	GetTemperatureObservations(ctx context.Context, station, from, to string) ([]types.TemperatureObservation, error)
	GetTemperatureStats(ctx context.Context, from, to string) (types.TemperatureStats, error)
}

type queries struct {
	stationIDs, stations, maxDate, mostActive, precipitation, observations, stats string
}

type repositoryImpl struct {
	db      *sql.DB
	timeout time.Duration
	q       queries
}

// NewRepository binds the embedded queries to driverName's placeholder style.
// A positive queryTimeout bounds every query on top of the caller's context.
func NewRepository(conn *sql.DB, driverName string, queryTimeout time.Duration) ClimateRepository {
	return &repositoryImpl{
		db:      conn,
		timeout: queryTimeout,
		q: queries{
			stationIDs:    db.Rebind(driverName, getStationIDsSQL),
			stations:      db.Rebind(driverName, getStationsSQL),
			maxDate:       db.Rebind(driverName, getMaxDateSQL),
			mostActive:    db.Rebind(driverName, getMostActiveStationSQL),
			precipitation: db.Rebind(driverName, getPrecipitationSQL),
			observations:  db.Rebind(driverName, getTemperatureObservationsSQL),
			stats:         db.Rebind(driverName, getTemperatureStatsSQL),
		},
	}
}

func (r *repositoryImpl) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *repositoryImpl) GetStationIDs(ctx context.Context) ([]string, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, r.q.stationIDs)
	if err != nil {
		return nil, fmt.Errorf("get station ids: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close station id rows", "error", err)
		}
	}()
	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan station id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get station ids: %w", err)
	}
	return out, nil
}

func (r *repositoryImpl) GetStations(ctx context.Context) ([]types.Station, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, r.q.stations)
	if err != nil {
		return nil, fmt.Errorf("get stations: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close stations rows", "error", err)
		}
	}()
	out := []types.Station{}
	for rows.Next() {
		var (
			s             types.Station
			name          sql.NullString
			lat, lng, elv sql.NullFloat64
		)
		if err := rows.Scan(&s.Station, &name, &lat, &lng, &elv); err != nil {
			return nil, fmt.Errorf("scan station: %w", err)
		}
		s.Name = name.String
		s.Latitude = floatPtr(lat)
		s.Longitude = floatPtr(lng)
		s.Elevation = floatPtr(elv)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get stations: %w", err)
	}
	return out, nil
}

func (r *repositoryImpl) GetMaxDate(ctx context.Context) (string, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var maxDate sql.NullString
	if err := r.db.QueryRowContext(ctx, r.q.maxDate).Scan(&maxDate); err != nil {
		return "", fmt.Errorf("get max date: %w", err)
	}
	if !maxDate.Valid || maxDate.String == "" {
		return "", types.ErrNoData
	}
	return normalizeDate(maxDate.String), nil
}

func (r *repositoryImpl) GetMostActiveStation(ctx context.Context) (string, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var (
		station string
		count   int64
	)
	err := r.db.QueryRowContext(ctx, r.q.mostActive).Scan(&station, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return "", types.ErrNoData
	}
	if err != nil {
		return "", fmt.Errorf("get most active station: %w", err)
	}
	return station, nil
}

func (r *repositoryImpl) GetPrecipitation(ctx context.Context, from, to string) ([]types.PrecipitationReading, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, r.q.precipitation, from, to)
	if err != nil {
		return nil, fmt.Errorf("get precipitation: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close precipitation rows", "error", err)
		}
	}()
	out := []types.PrecipitationReading{}
	for rows.Next() {
		var (
			date string
			prcp sql.NullFloat64
		)
		if err := rows.Scan(&date, &prcp); err != nil {
			return nil, fmt.Errorf("scan precipitation: %w", err)
		}
		out = append(out, types.PrecipitationReading{Date: normalizeDate(date), Precipitation: floatPtr(prcp)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get precipitation: %w", err)
	}
	return out, nil
}

func (r *repositoryImpl) GetTemperatureObservations(ctx context.Context, station, from, to string) ([]types.TemperatureObservation, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, r.q.observations, station, from, to)
	if err != nil {
		return nil, fmt.Errorf("get temperature observations: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close temperature rows", "error", err)
		}
	}()
	out := []types.TemperatureObservation{}
	for rows.Next() {
		var (
			date string
			tobs sql.NullFloat64
		)
		if err := rows.Scan(&date, &tobs); err != nil {
			return nil, fmt.Errorf("scan temperature observation: %w", err)
		}
		out = append(out, types.TemperatureObservation{Date: normalizeDate(date), Tobs: floatPtr(tobs)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get temperature observations: %w", err)
	}
	return out, nil
}

func (r *repositoryImpl) GetTemperatureStats(ctx context.Context, from, to string) (types.TemperatureStats, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var minT, avgT, maxT sql.NullFloat64
	if err := r.db.QueryRowContext(ctx, r.q.stats, from, to).Scan(&minT, &avgT, &maxT); err != nil {
		return types.TemperatureStats{}, fmt.Errorf("get temperature stats: %w", err)
	}
	return types.TemperatureStats{
		Window: types.DateWindow{Start: from, End: to},
		Min:    floatPtr(minT),
		Avg:    floatPtr(avgT),
		Max:    floatPtr(maxT),
	}, nil
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// normalizeDate trims drivers that hand DATE columns back as full timestamps.
func normalizeDate(s string) string {
	if len(s) > len(types.DateLayout) {
		return s[:len(types.DateLayout)]
	}
	return s
}
