package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileSettings mirrors the receiver settings keys one-to-one. All fields are
// optional; absent keys keep their current value. Durations are plain
// seconds, like the settings store.
type fileSettings struct {
	CacheDir              *string `yaml:"cache_dir"`
	FavoritesPath         *string `yaml:"favorites_path"`
	BouquetDir            *string `yaml:"bouquet_dir"`
	CacheTTL              *int    `yaml:"cache_ttl"`
	ConnectionTimeout     *int    `yaml:"connection_timeout"`
	MaxChannels           *int    `yaml:"max_channels"`
	MaxChannelsForBouquet *int    `yaml:"max_channels_for_bouquet"`
	MaxChannelsPerBouquet *int    `yaml:"max_channels_per_bouquet"`
	BouquetNamePrefix     *string `yaml:"bouquet_name_prefix"`
	ExportEnabled         *bool   `yaml:"export_enabled"`
	AutoRefreshBouquet    *bool   `yaml:"auto_refresh_bouquet"`
	ConfirmBeforeExport   *bool   `yaml:"confirm_before_export"`
	OpenWebifBase         *string `yaml:"openwebif_base"`
}

// applyFile overlays settings from a YAML file onto c.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var f fileSettings
	if err := yaml.Unmarshal(data, &f); err != nil {
		return err
	}

	setStr(&c.CacheDir, f.CacheDir)
	setStr(&c.FavoritesPath, f.FavoritesPath)
	setStr(&c.BouquetDir, f.BouquetDir)
	setSeconds(&c.CacheTTL, f.CacheTTL)
	setSeconds(&c.ConnectionTimeout, f.ConnectionTimeout)
	setInt(&c.MaxChannels, f.MaxChannels)
	setInt(&c.MaxChannelsForBouquet, f.MaxChannelsForBouquet)
	setInt(&c.MaxChannelsPerBouquet, f.MaxChannelsPerBouquet)
	setStr(&c.BouquetNamePrefix, f.BouquetNamePrefix)
	setBool(&c.ExportEnabled, f.ExportEnabled)
	setBool(&c.AutoRefreshBouquet, f.AutoRefreshBouquet)
	setBool(&c.ConfirmBeforeExport, f.ConfirmBeforeExport)
	setStr(&c.OpenWebifBase, f.OpenWebifBase)
	return nil
}

func setStr(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setSeconds(dst *time.Duration, v *int) {
	if v != nil {
		*dst = time.Duration(*v) * time.Second
	}
}

func warnf(format string, args ...any) {
	log.Printf("config: "+format, args...)
}
