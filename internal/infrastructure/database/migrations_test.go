package database

import (
	"context"
	"testing"
	"testing/fstest"
)

func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"001_widgets.up.sql":   {Data: []byte("CREATE TABLE widgets (id TEXT PRIMARY KEY);")},
		"001_widgets.down.sql": {Data: []byte("DROP TABLE widgets;")},
		"002_gears.up.sql":     {Data: []byte("CREATE TABLE gears (id TEXT PRIMARY KEY);")},
		"002_gears.down.sql":   {Data: []byte("DROP TABLE gears;")},
		"README.md":            {Data: []byte("ignored")},
		"notes.sql":            {Data: []byte("ignored too")},
	}
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n)
	if err != nil {
		t.Fatalf("querying sqlite_master: %v", err)
	}
	return n == 1
}

func TestMigrate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	fsys := testMigrations()

	if err := db.Migrate(ctx, fsys); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !tableExists(t, db, "widgets") || !tableExists(t, db, "gears") {
		t.Fatal("migrated tables missing")
	}

	// Idempotent.
	if err := db.Migrate(ctx, fsys); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	versions, err := db.AppliedVersions(ctx)
	if err != nil {
		t.Fatalf("AppliedVersions() error = %v", err)
	}
	if len(versions) != 2 || versions[0] != 1 || versions[1] != 2 {
		t.Errorf("AppliedVersions() = %v, want [1 2]", versions)
	}
}

func TestMigrateDown(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	fsys := testMigrations()

	if err := db.Migrate(ctx, fsys); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx, fsys); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if tableExists(t, db, "gears") {
		t.Error("gears table should be dropped")
	}
	if !tableExists(t, db, "widgets") {
		t.Error("widgets table should remain")
	}
}

func TestMigrate_FailureKeepsEarlier(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	fsys := fstest.MapFS{
		"001_ok.up.sql":     {Data: []byte("CREATE TABLE ok_table (id INTEGER);")},
		"002_broken.up.sql": {Data: []byte("CREATE TABLE nonsense (;")},
	}

	if err := db.Migrate(ctx, fsys); err == nil {
		t.Fatal("Migrate() should fail on broken SQL")
	}
	versions, _ := db.AppliedVersions(ctx)
	if len(versions) != 1 || versions[0] != 1 {
		t.Errorf("AppliedVersions() = %v, want [1]", versions)
	}
}

func TestLoadMigrations(t *testing.T) {
	ms, err := LoadMigrations(testMigrations())
	if err != nil {
		t.Fatalf("LoadMigrations() error = %v", err)
	}
	if len(ms) != 2 {
		t.Fatalf("len = %d, want 2", len(ms))
	}
	if ms[0].Version != 1 || ms[0].Name != "widgets" || ms[0].DownSQL == "" {
		t.Errorf("first migration = %+v", ms[0])
	}

	if ms, err := LoadMigrations(nil); err != nil || ms != nil {
		t.Errorf("LoadMigrations(nil) = %v, %v", ms, err)
	}

	_, err = LoadMigrations(fstest.MapFS{"003_orphan.down.sql": {Data: []byte("SELECT 1;")}})
	if err == nil {
		t.Error("down file without up file should fail")
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		file    string
		version int
		name    string
		up      bool
		ok      bool
	}{
		{"001_command_audit.up.sql", 1, "command_audit", true, true},
		{"012_add_index.down.sql", 12, "add_index", false, true},
		{"001_command_audit.sql", 0, "", false, false},
		{"abc_name.up.sql", 0, "", false, false},
		{"000_zero.up.sql", 0, "", false, false},
		{"001.up.sql", 0, "", false, false},
		{"001_x.up.txt", 0, "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			v, n, up, ok := parseMigrationFilename(tt.file)
			if v != tt.version || n != tt.name || up != tt.up || ok != tt.ok {
				t.Errorf("parseMigrationFilename() = (%d, %q, %v, %v), want (%d, %q, %v, %v)",
					v, n, up, ok, tt.version, tt.name, tt.up, tt.ok)
			}
		})
	}
}
