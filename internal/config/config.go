// Package config builds the single configuration object handed to every
// component at startup. No ambient globals: construct once in main, pass by
// reference.
//
// Sources, later wins: built-in defaults, optional YAML settings file,
// E2GARDEN_* environment variables.
package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config carries every setting the core reads. Field defaults mirror the
// receiver plugin's settings store.
type Config struct {
	// Paths
	CacheDir      string // disk cache directory
	FavoritesPath string // favorites JSON document
	BouquetDir    string // receiver bouquet directory (holds bouquets.tv index)

	// Fetch
	CacheTTL          time.Duration // entry lifetime; settings key cache_ttl (seconds)
	ConnectionTimeout time.Duration // settings key connection_timeout (seconds)

	// Browse / export caps (0 = unlimited)
	MaxChannels           int // per-browse input cap; settings key max_channels
	MaxChannelsForBouquet int // all-database export input cap; settings key max_channels_for_bouquet
	MaxChannelsPerBouquet int // per-file cap for split export; settings key max_channels_per_bouquet

	// Export behaviour
	BouquetNamePrefix  string // settings key bouquet_name_prefix
	ExportEnabled      bool   // settings key export_enabled
	AutoRefreshBouquet bool   // settings key auto_refresh_bouquet
	ConfirmBeforeExport bool  // settings key confirm_before_export; enforced by the UI, carried here for it

	// Reload signal
	OpenWebifBase string // local control interface, e.g. http://127.0.0.1
}

// Load reads config from the environment after applying defaults and the
// optional settings file named by E2GARDEN_SETTINGS (YAML). Call
// LoadEnvFile(".env") first if a .env file should participate.
func Load() *Config {
	c := defaults()
	if path := os.Getenv("E2GARDEN_SETTINGS"); path != "" {
		if err := c.applyFile(path); err != nil {
			// A broken settings file must not stop the receiver; defaults win.
			warnf("settings file %s ignored: %v", path, err)
		}
	}
	c.applyEnv()
	c.clamp()
	return c
}

func defaults() *Config {
	return &Config{
		CacheDir:              "/tmp/e2garden/cache",
		FavoritesPath:         "/etc/enigma2/e2garden.favorites.json",
		BouquetDir:            "/etc/enigma2",
		CacheTTL:              time.Hour,
		ConnectionTimeout:     10 * time.Second,
		MaxChannels:           0,
		MaxChannelsForBouquet: 0,
		MaxChannelsPerBouquet: 0,
		BouquetNamePrefix:     "e2garden",
		ExportEnabled:         true,
		AutoRefreshBouquet:    true,
		ConfirmBeforeExport:   true,
		OpenWebifBase:         "http://127.0.0.1",
	}
}

func (c *Config) applyEnv() {
	c.CacheDir = getEnv("E2GARDEN_CACHE_DIR", c.CacheDir)
	c.FavoritesPath = getEnv("E2GARDEN_FAVORITES", c.FavoritesPath)
	c.BouquetDir = getEnv("E2GARDEN_BOUQUET_DIR", c.BouquetDir)
	c.CacheTTL = getEnvSeconds("E2GARDEN_CACHE_TTL", c.CacheTTL)
	c.ConnectionTimeout = getEnvSeconds("E2GARDEN_CONNECTION_TIMEOUT", c.ConnectionTimeout)
	c.MaxChannels = getEnvInt("E2GARDEN_MAX_CHANNELS", c.MaxChannels)
	c.MaxChannelsForBouquet = getEnvInt("E2GARDEN_MAX_CHANNELS_FOR_BOUQUET", c.MaxChannelsForBouquet)
	c.MaxChannelsPerBouquet = getEnvInt("E2GARDEN_MAX_CHANNELS_PER_BOUQUET", c.MaxChannelsPerBouquet)
	c.BouquetNamePrefix = getEnv("E2GARDEN_BOUQUET_PREFIX", c.BouquetNamePrefix)
	c.ExportEnabled = getEnvBool("E2GARDEN_EXPORT_ENABLED", c.ExportEnabled)
	c.AutoRefreshBouquet = getEnvBool("E2GARDEN_AUTO_REFRESH_BOUQUET", c.AutoRefreshBouquet)
	c.ConfirmBeforeExport = getEnvBool("E2GARDEN_CONFIRM_BEFORE_EXPORT", c.ConfirmBeforeExport)
	c.OpenWebifBase = getEnv("E2GARDEN_OPENWEBIF", c.OpenWebifBase)
}

// clamp keeps user-supplied values inside sane operating bounds.
func (c *Config) clamp() {
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Hour
	}
	if c.ConnectionTimeout <= 0 {
		c.ConnectionTimeout = 10 * time.Second
	}
	if c.ConnectionTimeout > 30*time.Second {
		c.ConnectionTimeout = 30 * time.Second
	}
	if c.MaxChannels < 0 {
		c.MaxChannels = 0
	}
	if c.MaxChannelsForBouquet < 0 {
		c.MaxChannelsForBouquet = 0
	}
	if c.MaxChannelsPerBouquet < 0 {
		c.MaxChannelsPerBouquet = 0
	}
	if c.BouquetNamePrefix == "" {
		c.BouquetNamePrefix = "e2garden"
	}
}

// LoadEnvFile reads "KEY=value" lines from path into the environment.
// Missing file is fine; # comments and blank lines are skipped.
func LoadEnvFile(path string) error {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(key) == "" {
			continue
		}
		os.Setenv(strings.TrimSpace(key), unquote(strings.TrimSpace(value)))
	}
	return sc.Err()
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// getEnvSeconds parses a bare integer as seconds, matching the settings-store
// convention; "90s"/"2m" duration syntax is accepted too.
func getEnvSeconds(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
	}
	return def
}
