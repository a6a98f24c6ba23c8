package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// fileConfig mirrors config.toml. Pointer fields distinguish "unset" from
// the zero value so flags and defaults can be layered on top.
type fileConfig struct {
	Timeout      string `toml:"timeout"`
	ReadTimeout  string `toml:"read_timeout"`
	MaxRedirects *int   `toml:"max_redirects"`
	ForwardAuth  *bool  `toml:"forward_auth"`
	User         string `toml:"user"`
	Quiet        *bool  `toml:"quiet"`
}

// settings are the resolved values after applying the config file.
type settings struct {
	connTimeout  time.Duration
	readTimeout  time.Duration
	maxRedirects int
	forwardAuth  bool
	user         string
	quiet        bool
}

func configPath() string {
	if override := os.Getenv("HTTPGET_CONFIG"); override != "" {
		return override
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "httpget", "config.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "httpget", "config.toml")
}

// loadConfig reads path, or the default location when path is empty. A
// missing default file is not an error; a missing explicit one is.
func loadConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	explicit := path != ""
	if !explicit {
		path = configPath()
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// apply overlays cfg onto s.
func (cfg fileConfig) apply(s *settings) error {
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("config timeout: %w", err)
		}
		s.connTimeout = d
	}
	if cfg.ReadTimeout != "" {
		d, err := time.ParseDuration(cfg.ReadTimeout)
		if err != nil {
			return fmt.Errorf("config read_timeout: %w", err)
		}
		s.readTimeout = d
	}
	if cfg.MaxRedirects != nil {
		s.maxRedirects = *cfg.MaxRedirects
	}
	if cfg.ForwardAuth != nil {
		s.forwardAuth = *cfg.ForwardAuth
	}
	if cfg.User != "" {
		s.user = cfg.User
	}
	if cfg.Quiet != nil {
		s.quiet = *cfg.Quiet
	}
	return nil
}
