package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), Config{
		Path:        filepath.Join(t.TempDir(), "cadbridge.db"),
		WALMode:     true,
		BusyTimeout: 1,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	return db
}

func TestConfig_DSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "wal",
			cfg:  Config{Path: "/var/lib/cadbridge/cadbridge.db", WALMode: true, BusyTimeout: 5},
			want: "file:/var/lib/cadbridge/cadbridge.db?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL&_synchronous=NORMAL",
		},
		{
			name: "rollback journal",
			cfg:  Config{Path: "j.db"},
			want: "file:j.db?_busy_timeout=0&_foreign_keys=on",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.DSN(); got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOpen_CreatesDirectoryOwnerOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "journal", "cadbridge.db")
	db, err := Open(context.Background(), Config{Path: path, WALMode: true, BusyTimeout: 1})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // test cleanup

	if err := db.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("database file missing: %v", err)
	}
	if perm := info.Mode().Perm(); perm != fileMode {
		t.Errorf("file mode = %o, want %o", perm, fileMode)
	}

	var mode string
	if err := db.QueryRowContext(context.Background(), "PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestOpen_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Open(ctx, Config{Path: filepath.Join(t.TempDir(), "x.db")}); err == nil {
		t.Error("Open() with cancelled context succeeded")
	}
}

func TestClose_NilSafe(t *testing.T) {
	var db *DB
	if err := db.Close(); err != nil {
		t.Errorf("nil Close() = %v", err)
	}
	if err := (&DB{}).Close(); err != nil {
		t.Errorf("zero Close() = %v", err)
	}
}

func TestBeginTx_RollbackDiscardsJournalRow(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "CREATE TABLE task_journal (id TEXT PRIMARY KEY)"); err != nil {
		t.Fatalf("CREATE TABLE: %v", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx() error = %v", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO task_journal (id) VALUES ('t-1')"); err != nil {
		t.Fatalf("INSERT: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}

	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM task_journal").Scan(&n); err != nil {
		t.Fatalf("COUNT: %v", err)
	}
	if n != 0 {
		t.Errorf("rows after rollback = %d, want 0", n)
	}
}

func TestParseMigrationName(t *testing.T) {
	tests := []struct {
		file    string
		version string
		name    string
		up      bool
		ok      bool
	}{
		{"20261018_090000_create_task_journal.up.sql", "20261018_090000", "create_task_journal", true, true},
		{"20261018_091500_create_admin_events.down.sql", "20261018_091500", "create_admin_events", false, true},
		{"20261018_091500.up.sql", "20261018_091500", "20261018_091500", true, true},
		{"20261018_090000_create_task_journal.sql", "", "", false, false},
		{"2026_0900_short.up.sql", "", "", false, false},
		{"README.md", "", "", false, false},
		{"journal.up.sql", "", "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			version, name, up, ok := parseMigrationName(tt.file)
			if version != tt.version || name != tt.name || up != tt.up || ok != tt.ok {
				t.Errorf("parseMigrationName(%q) = (%q, %q, %v, %v), want (%q, %q, %v, %v)",
					tt.file, version, name, up, ok, tt.version, tt.name, tt.up, tt.ok)
			}
		})
	}
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"20261101_000000_b.up.sql":   {Data: []byte("CREATE TABLE b (id INTEGER);")},
		"20261018_090000_a.up.sql":   {Data: []byte("CREATE TABLE a (id INTEGER);")},
		"20261018_090000_a.down.sql": {Data: []byte("DROP TABLE a;")},
		"notes.txt":                  {Data: []byte("ignored")},
	}
	got, err := LoadMigrations(fsys)
	if err != nil {
		t.Fatalf("LoadMigrations() error = %v", err)
	}
	if len(got) != 2 || got[0].Name != "a" || got[1].Name != "b" {
		t.Fatalf("migrations = %+v, want a then b", got)
	}
	if got[0].Down != "DROP TABLE a;" || got[1].Down != "" {
		t.Errorf("down bodies = %q, %q", got[0].Down, got[1].Down)
	}

	orphan := fstest.MapFS{"20261018_090000_a.down.sql": {Data: []byte("DROP TABLE a;")}}
	if _, err := LoadMigrations(orphan); err == nil {
		t.Error("down-only migration accepted")
	}

	if got, err := LoadMigrations(nil); err != nil || got != nil {
		t.Errorf("LoadMigrations(nil) = %v, %v", got, err)
	}
}
