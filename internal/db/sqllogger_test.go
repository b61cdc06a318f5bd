package db

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"testing"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// captureHandler records log records for assertion in tests.
type captureHandler struct {
	mu    sync.Mutex
	attrs []map[string]slog.Value
}

func (h *captureHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *captureHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	m := make(map[string]slog.Value)
	m["msg"] = slog.StringValue(r.Message)
	r.Attrs(func(a slog.Attr) bool {
		m[a.Key] = a.Value
		return true
	})
	h.attrs = append(h.attrs, m)
	return nil
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }

func (h *captureHandler) WithGroup(name string) slog.Handler { return h }

func (h *captureHandler) recordsFor(t *testing.T, msg string) []map[string]slog.Value {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []map[string]slog.Value
	for _, m := range h.attrs {
		if m["msg"].String() == msg {
			out = append(out, m)
		}
	}
	return out
}

func (h *captureHandler) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attrs = nil
}

func openLogged(t *testing.T, logger *slog.Logger) *sql.DB {
	t.Helper()
	connector, err := NewLoggingConnector(&sqlite3.SQLiteDriver{}, ":memory:", logger)
	if err != nil {
		t.Fatalf("NewLoggingConnector: %v", err)
	}
	db := sql.OpenDB(connector)
	// :memory: is per connection; pin the pool so the schema survives between calls.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewLoggingConnector_nilLoggerUsesDefault(t *testing.T) {
	conn, err := NewLoggingConnector(&sqlite3.SQLiteDriver{}, ":memory:", nil)
	if err != nil {
		t.Fatalf("NewLoggingConnector: %v", err)
	}
	lc := conn.(*loggingConnector)
	if lc.logger == nil {
		t.Fatal("logger is nil, want slog.Default()")
	}
}

func TestNewLoggingConnector_nilDriver(t *testing.T) {
	if _, err := NewLoggingConnector(nil, ":memory:", nil); err == nil {
		t.Fatal("NewLoggingConnector(nil driver) error = nil, want non-nil")
	}
}

func TestLoggingConnector_ExecAndQueryLogged(t *testing.T) {
	handler := &captureHandler{}
	db := openLogged(t, slog.New(handler))

	if _, err := db.Exec(`CREATE TABLE station (station TEXT PRIMARY KEY)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	recs := handler.recordsFor(t, "sql")
	if len(recs) == 0 {
		t.Fatal("expected at least one sql log record for Exec")
	}
	got := recs[len(recs)-1]
	if got["op"].String() != "exec" {
		t.Errorf("op: got %q, want exec", got["op"].String())
	}
	if got["sql"].String() != `CREATE TABLE station (station TEXT PRIMARY KEY)` {
		t.Errorf("sql: got %q", got["sql"].String())
	}
	if _, ok := got["duration_ms"]; !ok {
		t.Error("expected duration_ms attribute in log")
	}

	handler.reset()
	var one int
	if err := db.QueryRow(`SELECT 1`).Scan(&one); err != nil {
		t.Fatalf("query row: %v", err)
	}
	recs = handler.recordsFor(t, "sql")
	if len(recs) == 0 {
		t.Fatal("expected sql log record for QueryRow")
	}
	got = recs[len(recs)-1]
	if got["op"].String() != "query" {
		t.Errorf("op: got %q, want query", got["op"].String())
	}
	if got["sql"].String() != `SELECT 1` {
		t.Errorf("sql: got %q", got["sql"].String())
	}
}

func TestLoggingConnector_QueryWithArgsLogged(t *testing.T) {
	handler := &captureHandler{}
	db := openLogged(t, slog.New(handler))

	if _, err := db.Exec(`CREATE TABLE measurement (station TEXT, date TEXT, tobs REAL)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO measurement VALUES ('USC001', '2017-08-18', 70)`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	handler.reset()

	rows, err := db.Query(`SELECT tobs FROM measurement WHERE date >= ? AND date <= ?`, "2017-08-01", "2017-08-31")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	_ = rows.Close()

	recs := handler.recordsFor(t, "sql")
	if len(recs) == 0 {
		t.Fatal("expected sql log for Query with args")
	}
	got := recs[len(recs)-1]
	if got["op"].String() != "query" {
		t.Errorf("op: got %q, want query", got["op"].String())
	}
	if _, hasArgs := got["args"]; !hasArgs {
		t.Error("expected args attribute in log")
	}
}

func TestLoggingConnector_FailedStatementLogsError(t *testing.T) {
	handler := &captureHandler{}
	db := openLogged(t, slog.New(handler))

	if _, err := db.Query(`SELECT * FROM missing_table`); err == nil {
		t.Fatal("query on missing table error = nil, want non-nil")
	}
	// sqlite rejects the statement at prepare time, so nothing reaches the stmt wrapper.
	for _, rec := range handler.recordsFor(t, "sql") {
		if rec["sql"].String() == `SELECT * FROM missing_table` {
			t.Errorf("unexpected sql record for a statement that never prepared: %v", rec)
		}
	}
}

func TestLoggingConnector_PingSucceeds(t *testing.T) {
	db := openLogged(t, slog.Default())
	if err := db.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestFormatArg(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{in: nil, want: "NULL"},
		{in: []byte("USC001"), want: "USC001"},
		{in: int64(7), want: "7"},
		{in: "2017-08-23", want: "2017-08-23"},
	}
	for _, tt := range tests {
		if got := formatArg(tt.in); got != tt.want {
			t.Errorf("formatArg(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
