package database

import (
	"testing"
	"testing/fstest"
)

func TestListMigrationFilesAndSelectApplied(t *testing.T) {
	source := fstest.MapFS{
		"0002_reminders.up.sql":     {Data: []byte("SELECT 1;")},
		"0001_registrants.up.sql":   {Data: []byte("SELECT 1;")},
		"0001_registrants.down.sql": {Data: []byte("SELECT 1;")},
		"README.md":                 {Data: []byte("notes")},
	}

	files := listMigrationFiles(source)
	if len(files) != 2 || files[0] != "0001_registrants.up.sql" || files[1] != "0002_reminders.up.sql" {
		t.Fatalf("unexpected files: %v", files)
	}

	applied := selectApplied(files, 1, 2)
	if len(applied) != 1 || applied[0] != "0002_reminders.up.sql" {
		t.Fatalf("unexpected applied set: %v", applied)
	}
	if got := selectApplied(files, 2, 2); len(got) != 0 {
		t.Fatalf("no files should apply when versions match, got %v", got)
	}
}

func TestConfigDSN(t *testing.T) {
	cfg := Config{Host: "db", User: "mane", Password: "p@ss", Name: "retreat"}
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want := "postgres://mane:p%40ss@db:5432/retreat?sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Fatalf("DSN = %s, want %s", got, want)
	}

	cfg.URL = "postgres://u@h/x"
	if got := cfg.DSN(); got != cfg.URL {
		t.Fatalf("URL should win, got %s", got)
	}

	if err := (&Config{}).Normalize(); err == nil {
		t.Fatal("expected error for empty config")
	}
}
