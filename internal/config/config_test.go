package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_defaults(t *testing.T) {
	c := Load()
	if c.CacheTTL != time.Hour {
		t.Errorf("CacheTTL = %v, want 1h", c.CacheTTL)
	}
	if c.ConnectionTimeout != 10*time.Second {
		t.Errorf("ConnectionTimeout = %v, want 10s", c.ConnectionTimeout)
	}
	if c.BouquetNamePrefix != "e2garden" {
		t.Errorf("BouquetNamePrefix = %q", c.BouquetNamePrefix)
	}
	if !c.ExportEnabled || !c.AutoRefreshBouquet {
		t.Error("export toggles should default on")
	}
}

func TestLoad_envOverridesAndClamp(t *testing.T) {
	t.Setenv("E2GARDEN_CACHE_TTL", "120")
	t.Setenv("E2GARDEN_CONNECTION_TIMEOUT", "600") // clamped to 30s
	t.Setenv("E2GARDEN_MAX_CHANNELS", "-5")        // clamped to 0
	t.Setenv("E2GARDEN_EXPORT_ENABLED", "no")

	c := Load()
	if c.CacheTTL != 120*time.Second {
		t.Errorf("CacheTTL = %v, want 120s", c.CacheTTL)
	}
	if c.ConnectionTimeout != 30*time.Second {
		t.Errorf("ConnectionTimeout = %v, want clamped 30s", c.ConnectionTimeout)
	}
	if c.MaxChannels != 0 {
		t.Errorf("MaxChannels = %d, want 0", c.MaxChannels)
	}
	if c.ExportEnabled {
		t.Error("ExportEnabled should be off")
	}
}

func TestLoad_settingsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	body := "cache_ttl: 7200\nbouquet_name_prefix: garden\nmax_channels_per_bouquet: 100\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("E2GARDEN_SETTINGS", path)

	c := Load()
	if c.CacheTTL != 2*time.Hour {
		t.Errorf("CacheTTL = %v, want 2h", c.CacheTTL)
	}
	if c.BouquetNamePrefix != "garden" {
		t.Errorf("BouquetNamePrefix = %q, want garden", c.BouquetNamePrefix)
	}
	if c.MaxChannelsPerBouquet != 100 {
		t.Errorf("MaxChannelsPerBouquet = %d, want 100", c.MaxChannelsPerBouquet)
	}
}

func TestLoad_envWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	os.WriteFile(path, []byte("cache_ttl: 7200\n"), 0o644)
	t.Setenv("E2GARDEN_SETTINGS", path)
	t.Setenv("E2GARDEN_CACHE_TTL", "60")

	if c := Load(); c.CacheTTL != time.Minute {
		t.Errorf("CacheTTL = %v, want env-supplied 60s", c.CacheTTL)
	}
}

func TestLoad_brokenSettingsFileIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	os.WriteFile(path, []byte(":\n\t- not yaml"), 0o644)
	t.Setenv("E2GARDEN_SETTINGS", path)

	if c := Load(); c.CacheTTL != time.Hour {
		t.Errorf("broken file should leave defaults; CacheTTL = %v", c.CacheTTL)
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	body := "# comment\nE2GARDEN_TEST_KEY=\"quoted value\"\n\nBAD LINE\n"
	os.WriteFile(path, []byte(body), 0o644)

	if err := LoadEnvFile(path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("E2GARDEN_TEST_KEY"); got != "quoted value" {
		t.Errorf("E2GARDEN_TEST_KEY = %q", got)
	}
	os.Unsetenv("E2GARDEN_TEST_KEY")

	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing")); err != nil {
		t.Errorf("missing env file should be nil error, got %v", err)
	}
}
