package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	settings, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if settings.ExportDir != filepath.Join("data", "export") {
		t.Errorf("export_dir = %q", settings.ExportDir)
	}
	if settings.DBPath != filepath.Join("data", "easy_access.db") {
		t.Errorf("db_path = %q", settings.DBPath)
	}
	if settings.DashboardPort != 8080 {
		t.Errorf("dashboard_port = %d", settings.DashboardPort)
	}
	if settings.WatchDebounce != 2*time.Second {
		t.Errorf("watch_debounce = %v", settings.WatchDebounce)
	}
}

func TestLoad_FromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eacli.yaml")
	content := "export_dir: /srv/exports\ndb_path: /srv/ea.db\ndashboard_port: 9090\nwatch_debounce: 5s\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	settings, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if settings.ExportDir != "/srv/exports" {
		t.Errorf("export_dir = %q", settings.ExportDir)
	}
	if settings.DBPath != "/srv/ea.db" {
		t.Errorf("db_path = %q", settings.DBPath)
	}
	if settings.DashboardPort != 9090 {
		t.Errorf("dashboard_port = %d", settings.DashboardPort)
	}
	if settings.WatchDebounce != 5*time.Second {
		t.Errorf("watch_debounce = %v", settings.WatchDebounce)
	}
	// Untouched keys keep their defaults.
	if settings.SheetsDir != filepath.Join("data", "sheets") {
		t.Errorf("sheets_dir = %q", settings.SheetsDir)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for explicitly named missing config")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("EACLI_DB_PATH", "/override/ea.db")
	settings, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if settings.DBPath != "/override/ea.db" {
		t.Errorf("db_path = %q, want env override", settings.DBPath)
	}
}
