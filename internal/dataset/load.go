package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"surfsup-server/internal/modules/climate/types"
)

type Options struct {
	// Replace deletes existing station and measurement rows before loading.
	Replace bool
}

type Result struct {
	Stations     int
	Measurements int
}

// Load parses both CSV streams, makes sure the tables exist and inserts every row
// in a single transaction. Nothing is written when either file fails to parse.
func Load(ctx context.Context, db *sql.DB, stationsCSV, measurementsCSV io.Reader, opts Options, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	stations, err := ReadStations(stationsCSV)
	if err != nil {
		return Result{}, fmt.Errorf("read stations: %w", err)
	}
	measurements, err := ReadMeasurements(measurementsCSV)
	if err != nil {
		return Result{}, fmt.Errorf("read measurements: %w", err)
	}

	if _, err := EnsureSchema(ctx, db, logger); err != nil {
		return Result{}, fmt.Errorf("ensure schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, fmt.Errorf("begin: %w", err)
	}
	if err := insertAll(ctx, tx, stations, measurements, opts); err != nil {
		_ = tx.Rollback()
		return Result{}, err
	}
	if err := tx.Commit(); err != nil {
		return Result{}, fmt.Errorf("commit: %w", err)
	}

	res := Result{Stations: len(stations), Measurements: len(measurements)}
	logger.Info("dataset loaded", "stations", res.Stations, "measurements", res.Measurements, "replace", opts.Replace)
	return res, nil
}

func insertAll(ctx context.Context, tx *sql.Tx, stations []types.Station, measurements []types.Measurement, opts Options) error {
	if opts.Replace {
		for _, table := range []string{"measurement", "station"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
	}

	stStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO station (station, name, latitude, longitude, elevation) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare station insert: %w", err)
	}
	defer func() { _ = stStmt.Close() }()

	for _, s := range stations {
		if _, err := stStmt.ExecContext(ctx, s.Station, s.Name, nullFloat(s.Latitude), nullFloat(s.Longitude), nullFloat(s.Elevation)); err != nil {
			return fmt.Errorf("insert station %q: %w", s.Station, err)
		}
	}

	mStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO measurement (station, date, prcp, tobs) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare measurement insert: %w", err)
	}
	defer func() { _ = mStmt.Close() }()

	for _, m := range measurements {
		if _, err := mStmt.ExecContext(ctx, m.Station, m.Date, nullFloat(m.Precipitation), nullFloat(m.Tobs)); err != nil {
			return fmt.Errorf("insert measurement %s/%s: %w", m.Station, m.Date, err)
		}
	}
	return nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
