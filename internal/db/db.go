package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"surfsup-server/internal/config"

	mysql "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/stdlib"
	sqlite3 "github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
	DriverMySQL    = "mysql"
)

// Open returns a pooled handle on the climate store and verifies it answers a ping.
// The store is only ever read; SQLite files are opened with mode=ro.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*sql.DB, error) {
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	var db *sql.DB
	if cfg.LogSQL {
		drv, err := driverFor(cfg.Driver)
		if err != nil {
			return nil, err
		}
		connector, err := NewLoggingConnector(drv, dsn, logger)
		if err != nil {
			return nil, fmt.Errorf("db connector: %w", err)
		}
		db = sql.OpenDB(connector)
	} else {
		db, err = sql.Open(cfg.Driver, dsn)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns >= 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx := ctx
	if cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.QueryTimeout)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return db, nil
}

func Close(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

func driverFor(name string) (driver.Driver, error) {
	switch name {
	case DriverSQLite:
		return &sqlite3.SQLiteDriver{}, nil
	case DriverPostgres:
		return stdlib.GetDefaultDriver(), nil
	case DriverMySQL:
		return &mysql.MySQLDriver{}, nil
	default:
		return nil, fmt.Errorf("unsupported db driver %q", name)
	}
}

func buildDSN(cfg config.Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	if cfg.Driver != DriverSQLite {
		return "", fmt.Errorf("db driver %q needs a DSN", cfg.Driver)
	}

	path := cfg.Path
	plain := strings.TrimPrefix(path, "file:")
	if i := strings.IndexByte(plain, '?'); i >= 0 {
		plain = plain[:i]
	}
	// A missing file would otherwise be created empty by sqlite.
	if _, err := os.Stat(plain); err != nil {
		return "", fmt.Errorf("sqlite database %s: %w", plain, err)
	}

	params := []string{
		"mode=ro",
		"_busy_timeout=5000",
	}

	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}

	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}

// Rebind rewrites '?' placeholders into the form the driver expects.
// Postgres wants $1..$n; sqlite3 and mysql take '?' as is.
func Rebind(driverName, query string) string {
	if driverName != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// IsUnavailable reports whether err means the store could not be reached, as opposed
// to a query that ran and failed.
func IsUnavailable(err error) bool {
	return errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded)
}
