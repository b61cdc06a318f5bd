package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"surfsup-server/internal/dataset"
)

const usage = `usage: %s <command> [flags]
  schema   create the station/measurement tables in the fixture database
  load     load hawaii_stations.csv and hawaii_measurements.csv into the fixture database
`

func main() {
	_ = godotenv.Load()

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{TimeFormat: time.Kitchen}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, usage, os.Args[0])
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "schema":
		err = runSchema(ctx, os.Args[2:], logger)
	case "load":
		err = runLoad(ctx, os.Args[2:], logger)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		fmt.Fprintf(os.Stderr, usage, os.Args[0])
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func defaultDBPath() string {
	p := os.Getenv("SQLITE_PATH")
	if p == "" {
		p = "Resources/hawaii.sqlite"
	}
	return filepath.Clean(p)
}

func runSchema(ctx context.Context, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("schema", flag.ContinueOnError)
	dbPath := fs.String("db", defaultDBPath(), "SQLite fixture path (default from SQLITE_PATH)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	conn, err := dataset.OpenFixture(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer closeDB(conn.Close)

	applied, err := dataset.EnsureSchema(ctx, conn, logger)
	if err != nil {
		return err
	}
	fmt.Printf("schema up to date (%d step(s) applied)\n", len(applied))
	return nil
}

func runLoad(ctx context.Context, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("load", flag.ContinueOnError)
	dbPath := fs.String("db", defaultDBPath(), "SQLite fixture path (default from SQLITE_PATH)")
	stationsPath := fs.String("stations", "Resources/hawaii_stations.csv", "stations CSV")
	measurementsPath := fs.String("measurements", "Resources/hawaii_measurements.csv", "measurements CSV")
	replace := fs.Bool("replace", false, "delete existing rows before loading")
	if err := fs.Parse(args); err != nil {
		return err
	}

	stations, err := os.Open(*stationsPath)
	if err != nil {
		return err
	}
	defer func() { _ = stations.Close() }()

	measurements, err := os.Open(*measurementsPath)
	if err != nil {
		return err
	}
	defer func() { _ = measurements.Close() }()

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0o755); err != nil {
		return fmt.Errorf("create fixture dir: %w", err)
	}

	conn, err := dataset.OpenFixture(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer closeDB(conn.Close)

	res, err := dataset.Load(ctx, conn, stations, measurements, dataset.Options{Replace: *replace}, logger)
	if err != nil {
		return err
	}
	fmt.Printf("loaded %d stations and %d measurements into %s\n", res.Stations, res.Measurements, *dbPath)
	return nil
}

func closeDB(closeFn func() error) {
	if err := closeFn(); err != nil {
		slog.Error("db close", "err", err)
	}
}
