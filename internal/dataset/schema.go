// Package dataset builds local SQLite fixtures of the climate store.
// Schema files are named with a 4-digit prefix for order: 0001_name.sql, 0002_other.sql.
package dataset

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"regexp"
	"sort"
)

//go:embed sql/*.sql
var sqlFS embed.FS

const (
	schemaDir = "sql"
	tableName = "schema_versions"
)

var schemaFileRe = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

type schemaStep struct {
	version string
	name    string
	body    string
}

// EnsureSchema creates the station and measurement tables in a fixture database,
// applying the embedded steps that are not recorded in schema_versions yet.
// It returns the versions it applied.
func EnsureSchema(ctx context.Context, db *sql.DB, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+tableName+` (
			version    TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		)
	`); err != nil {
		return nil, fmt.Errorf("ensure %s table: %w", tableName, err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("list applied schema versions: %w", err)
	}

	pending, err := pendingSteps(applied)
	if err != nil {
		return nil, err
	}

	var done []string
	for _, s := range pending {
		if err := applyStep(ctx, db, s); err != nil {
			return done, fmt.Errorf("apply %s_%s.sql: %w", s.version, s.name, err)
		}
		logger.Info("schema step applied", "version", s.version, "name", s.name)
		done = append(done, s.version)
	}
	return done, nil
}

func pendingSteps(applied map[string]bool) ([]schemaStep, error) {
	entries, err := fs.ReadDir(sqlFS, schemaDir)
	if err != nil {
		return nil, fmt.Errorf("read schema dir: %w", err)
	}

	var pending []schemaStep
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		version, name, ok := parseSchemaFilename(e.Name())
		if !ok || applied[version] {
			continue
		}
		body, err := fs.ReadFile(sqlFS, schemaDir+"/"+e.Name())
		if err != nil {
			return nil, fmt.Errorf("read schema step %s: %w", e.Name(), err)
		}
		pending = append(pending, schemaStep{version: version, name: name, body: string(body)})
	}

	sort.Slice(pending, func(i, j int) bool { return pending[i].version < pending[j].version })
	return pending, nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM "+tableName)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Error("rows close", "err", closeErr)
		}
	}()

	out := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out[v] = true
	}
	return out, rows.Err()
}

func parseSchemaFilename(filename string) (version, name string, ok bool) {
	m := schemaFileRe.FindStringSubmatch(filename)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

func applyStep(ctx context.Context, db *sql.DB, s schemaStep) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, s.body); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO "+tableName+" (version, name) VALUES (?, ?)",
		s.version, s.name,
	); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
