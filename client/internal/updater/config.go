package updater

import (
	"fmt"
	"os"

	"github.com/updraftio/updraft/util"
)

const (
	// DefaultUpdateURL is the update server queried when no URL is configured
	DefaultUpdateURL = "https://updates.updraft.io"
	// DefaultChannel is the release channel used when none is configured
	DefaultChannel = "production"
)

// Config holds the updater configuration
type Config struct {
	// UpdateURL is the base URL of the update server
	UpdateURL string `json:"updateUrl"`
	// Channel is the release channel requested from the server
	Channel string `json:"channel"`
	// RuntimeVersion is the native runtime this client can load
	RuntimeVersion string `json:"runtimeVersion"`
	// UpdatesDir is where downloaded update bundles are stored
	UpdatesDir string `json:"updatesDir"`
	// UpdateID identifies the embedded update shipped with the binary
	UpdateID string `json:"updateId"`
	// CreatedAt is the embedded update build timestamp, RFC 3339
	CreatedAt string `json:"createdAt"`
}

// ReadConfig loads configuration from the given JSON file, filling defaults
// for absent fields. A missing file yields a pure-default config.
func ReadConfig(path string) (Config, error) {
	var cfg Config

	if path != "" {
		if err := util.ReadJson(path, &cfg); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if cfg.UpdateURL == "" {
		cfg.UpdateURL = DefaultUpdateURL
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.RuntimeVersion == "" {
		cfg.RuntimeVersion = "1.0.0"
	}
	if cfg.UpdatesDir == "" {
		cfg.UpdatesDir = defaultUpdatesDir()
	}

	return cfg, nil
}

func defaultUpdatesDir() string {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return ".updraft/updates"
	}
	return cacheDir + "/updraft/updates"
}
