package migrate

import (
	"context"
	"database/sql"
	"testing"
	"testing/fstest"

	_ "github.com/mattn/go-sqlite3"

	"cloudpico-bridge/internal/logging"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRun_AppliesEmbeddedOnce(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	n, err := Run(ctx, db, logging.Discard())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n == 0 {
		t.Fatal("no migrations applied on empty database")
	}
	for _, table := range []string{"uplink_messages", "downlink_commands"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}

	n, err = Run(ctx, db, logging.Discard())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if n != 0 {
		t.Errorf("second Run applied %d migrations, want 0", n)
	}
}

func TestRun_OrdersByVersionAndSkipsOtherFiles(t *testing.T) {
	db := openMemory(t)
	fsys := fstest.MapFS{
		"sql/0002_add.sql":  {Data: []byte(`INSERT INTO t (v) VALUES ('second');`)},
		"sql/0001_init.sql": {Data: []byte(`CREATE TABLE t (v TEXT);`)},
		"sql/README.md":     {Data: []byte(`not a migration`)},
	}

	n, err := run(context.Background(), db, fsys, logging.Discard())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if n != 2 {
		t.Fatalf("applied %d, want 2", n)
	}
	var v string
	if err := db.QueryRow(`SELECT v FROM t`).Scan(&v); err != nil || v != "second" {
		t.Fatalf("SELECT v = %q, %v", v, err)
	}
}

func TestRun_FailedMigrationIsNotRecorded(t *testing.T) {
	db := openMemory(t)
	fsys := fstest.MapFS{
		"sql/0001_broken.sql": {Data: []byte(`CREATE TABLE (;`)},
	}
	if _, err := run(context.Background(), db, fsys, logging.Discard()); err == nil {
		t.Fatal("expected error for broken migration")
	}
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM ` + tableName).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("broken migration recorded as applied")
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		in      string
		version string
		name    string
		ok      bool
	}{
		{"0001_journal.sql", "0001", "journal", true},
		{"12_x.sql", "", "", false},
		{"0001_journal.txt", "", "", false},
	}
	for _, tt := range tests {
		v, n, ok := parseMigrationFilename(tt.in)
		if v != tt.version || n != tt.name || ok != tt.ok {
			t.Errorf("parseMigrationFilename(%q) = %q, %q, %v", tt.in, v, n, ok)
		}
	}
}
