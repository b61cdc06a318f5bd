package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// OpenFixture opens (creating if needed) a writable SQLite file for the loader.
// The server opens the same file with mode=ro, so the journal stays in rollback
// mode: a WAL database cannot be opened read-only without its -shm file.
func OpenFixture(ctx context.Context, dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fixtureDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func fixtureDSN(dbPath string) string {
	params := []string{
		"mode=rwc",
		"_busy_timeout=5000",
		"_journal_mode=DELETE",
	}

	if strings.HasPrefix(dbPath, "file:") {
		sep := "?"
		if strings.Contains(dbPath, "?") {
			sep = "&"
		}
		return dbPath + sep + strings.Join(params, "&")
	}
	return fmt.Sprintf("file:%s?%s", dbPath, strings.Join(params, "&"))
}
