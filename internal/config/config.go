package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds everterm process settings sourced from the environment.
type Config struct {
	// Port is the data-server bind port (PORT, default 6380).
	Port int
	// DatafetchURL is where the backend finds the data server
	// (DATAFETCH_URL, default http://0.0.0.0:6380).
	DatafetchURL string
	// SSO credentials for resolving private-structure names. Consulted only
	// by the backend's struct_names path.
	StructRefreshToken string
	ClientID           string
	ClientSecret       string
	// CacheDir roots the ESI caches (EVERTERM_CACHE_DIR, default
	// <user cache>/everterm/esi).
	CacheDir string
}

// FromEnv builds a Config from the environment.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:               6380,
		DatafetchURL:       "http://0.0.0.0:6380",
		StructRefreshToken: os.Getenv("PUB_STRUCT_ESI_REFRESH"),
		ClientID:           os.Getenv("CLIENT_ID"),
		ClientSecret:       os.Getenv("CLIENT_SECRET"),
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("invalid PORT %q", v)
		}
		cfg.Port = port
	}
	if v := os.Getenv("DATAFETCH_URL"); v != "" {
		cfg.DatafetchURL = strings.TrimRight(v, "/")
	}

	if v := os.Getenv("EVERTERM_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	} else {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("determine cache directory: %w", err)
		}
		cfg.CacheDir = filepath.Join(base, "everterm", "esi")
	}
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	return cfg, nil
}

// RegionsCachePath is the on-disk region catalog location.
func (c *Config) RegionsCachePath() string {
	return filepath.Join(c.CacheDir, "regions.json")
}

// StationDBPath is the SQLite station-name cache location.
func (c *Config) StationDBPath() string {
	return filepath.Join(c.CacheDir, "stations.db")
}

// LoadDotEnv loads KEY=VALUE pairs from ./.env and then from the binary's
// directory. A key that already has a non-empty value (from the OS env or an
// earlier file) is never overridden; a missing file is a no-op.
func LoadDotEnv() {
	paths := []string{".env"}
	if exePath, err := os.Executable(); err == nil {
		if exeDir := filepath.Dir(exePath); exeDir != "" {
			paths = append(paths, filepath.Join(exeDir, ".env"))
		}
	}

	seen := make(map[string]bool)
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true

		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		for _, line := range strings.Split(string(data), "\n") {
			l := strings.TrimSpace(line)
			if l == "" || strings.HasPrefix(l, "#") {
				continue
			}
			parts := strings.SplitN(l, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			val := strings.TrimSpace(parts[1])
			if key == "" {
				continue
			}
			if os.Getenv(key) == "" {
				os.Setenv(key, val)
			}
		}
	}
}
