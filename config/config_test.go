package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ExportDir != "exports" {
		t.Errorf("ExportDir = %q, want 'exports'", cfg.ExportDir)
	}
	if cfg.DefaultLocale != "en" {
		t.Errorf("DefaultLocale = %q, want 'en'", cfg.DefaultLocale)
	}
	if cfg.RenderWorkers != 4 {
		t.Errorf("RenderWorkers = %d, want 4", cfg.RenderWorkers)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("BOQ_RENDER_WORKERS", "8")
	t.Setenv("BOQ_DEFAULT_LOCALE", "he")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RenderWorkers != 8 {
		t.Errorf("RenderWorkers = %d, want 8", cfg.RenderWorkers)
	}
	if cfg.DefaultLocale != "he" {
		t.Errorf("DefaultLocale = %q, want 'he'", cfg.DefaultLocale)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boq.yaml")
	content := "export_dir: /var/boq/exports\nrender_workers: 2\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ExportDir != "/var/boq/exports" {
		t.Errorf("ExportDir = %q", cfg.ExportDir)
	}
	if cfg.RenderWorkers != 2 {
		t.Errorf("RenderWorkers = %d, want 2", cfg.RenderWorkers)
	}
}

func TestLoad_InvalidWorkers(t *testing.T) {
	t.Setenv("BOQ_RENDER_WORKERS", "0")
	if _, err := Load(""); err == nil {
		t.Error("expected error for render_workers = 0")
	}
}

func TestResolveExportDir(t *testing.T) {
	tests := []struct {
		name    string
		dir     string
		dataDir string
		want    string
	}{
		{"relative", "exports", "/data/pb_data", "/data/pb_data/exports"},
		{"absolute", "/srv/exports", "/data/pb_data", "/srv/exports"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{ExportDir: tt.dir}
			if got := c.ResolveExportDir(tt.dataDir); got != tt.want {
				t.Errorf("ResolveExportDir() = %q, want %q", got, tt.want)
			}
		})
	}
}
