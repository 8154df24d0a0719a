package store

import (
	"io/fs"
	"regexp"
	"testing"
)

func TestMigrationsHaveMatchingUpAndDownFiles(t *testing.T) {
	entries, err := fs.ReadDir(Migrations(""), ".")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}

	pattern := regexp.MustCompile(`^(\d+)_.*\.(up|down)\.sql$`)
	byVersion := map[string]map[string]bool{}

	for _, entry := range entries {
		match := pattern.FindStringSubmatch(entry.Name())
		if match == nil {
			t.Fatalf("unexpected file in migrations: %s", entry.Name())
		}
		version, direction := match[1], match[2]
		if byVersion[version] == nil {
			byVersion[version] = map[string]bool{}
		}
		if byVersion[version][direction] {
			t.Fatalf("duplicate %s migration file for version %s", direction, version)
		}
		byVersion[version][direction] = true
	}

	if len(byVersion) == 0 {
		t.Fatal("no migrations discovered")
	}
	for version, dirs := range byVersion {
		if !dirs["up"] || !dirs["down"] {
			t.Fatalf("version %s must include both up and down files", version)
		}
	}
}

func TestMigrationsDirOverride(t *testing.T) {
	dir := t.TempDir()
	files, err := migrationFiles(Migrations(dir), ".up.sql")
	if err != nil {
		t.Fatalf("list override dir: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("expected empty override dir, got %v", files)
	}

	embedded, err := migrationFiles(Migrations(""), ".up.sql")
	if err != nil {
		t.Fatalf("list embedded: %v", err)
	}
	if len(embedded) == 0 || embedded[0] != "0001_timeline_entries.up.sql" {
		t.Fatalf("unexpected embedded order: %v", embedded)
	}
}
