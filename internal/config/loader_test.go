package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWhenNoConfigFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Retry.MaxRetries != 3 {
		t.Fatalf("MaxRetries = %d", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.BaseDelay != time.Second {
		t.Fatalf("BaseDelay = %s", cfg.Retry.BaseDelay)
	}
	if cfg.List.PerPage != 30 {
		t.Fatalf("PerPage = %d", cfg.List.PerPage)
	}
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
retry:
  max_retries: 5
  base_delay_ms: 250
list:
  per_page: 50
collections:
  tasks:
    sort: "-created"
    expand: "assignee"
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Retry.MaxRetries != 5 {
		t.Fatalf("MaxRetries = %d", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.BaseDelay != 250*time.Millisecond {
		t.Fatalf("BaseDelay = %s", cfg.Retry.BaseDelay)
	}
	if cfg.List.PerPage != 50 {
		t.Fatalf("PerPage = %d", cfg.List.PerPage)
	}

	defaults := cfg.DefaultsFor("tasks")
	if defaults.Sort != "-created" || defaults.Expand != "assignee" {
		t.Fatalf("defaults = %+v", defaults)
	}
	if got := cfg.DefaultsFor("unknown"); got != (CollectionDefaults{}) {
		t.Fatalf("unknown collection must have zero defaults: %+v", got)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("STORE_RETRY_MAX_RETRIES", "7")
	t.Setenv("STORE_LIST_PER_PAGE", "100")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Retry.MaxRetries != 7 {
		t.Fatalf("MaxRetries = %d", cfg.Retry.MaxRetries)
	}
	if cfg.List.PerPage != 100 {
		t.Fatalf("PerPage = %d", cfg.List.PerPage)
	}
}
