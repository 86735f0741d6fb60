package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	toml "github.com/pelletier/go-toml/v2"
)

// EnvConfigFile names the environment variable carrying an override path to
// the configuration file. It has the highest priority in the search order.
const EnvConfigFile = "ARCHAPPL_CONFIG_FILE"

const (
	userConfigPath   = "~/.config/goarchappl/config.toml"
	systemConfigPath = "/etc/goarchappl/config.toml"
)

//go:embed default.toml
var defaultConfig []byte

// Config is the resolved, flattened site configuration. It is produced once
// at startup and treated as immutable afterwards.
type Config struct {
	// AdminURL is the base URL of the management (BPL) endpoint.
	AdminURL string `env:"ARCHAPPL_ADMIN_URL"`
	// DataURL is the base URL of the data retrieval endpoint.
	DataURL string `env:"ARCHAPPL_DATA_URL"`
	// AdminDisabled refuses mutating management calls when set.
	AdminDisabled bool `env:"ARCHAPPL_ADMIN_DISABLED"`
	// Format is the default output format for archappl-get.
	Format string `env:"ARCHAPPL_FORMAT"`
	// DefaultWindow is the retrieval window used when no time range is given.
	DefaultWindow time.Duration `env:"ARCHAPPL_DEFAULT_WINDOW"`
	// Timezone names the zone naive time strings are interpreted in.
	Timezone string `env:"ARCHAPPL_TIMEZONE"`

	// Source is the path of the file the configuration was read from, or
	// "builtin" for the bundled default.
	Source string
}

// Error reports a configuration resolution failure. No network call is made
// after a configuration error.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// rawConfig mirrors the on-disk TOML layout.
type rawConfig struct {
	Main struct {
		Use string `toml:"use"`
	} `toml:"main"`
	Servers map[string]serverSection `toml:"servers"`
	CLI     struct {
		Get getSection `toml:"get"`
	} `toml:"cli"`
	Misc struct {
		Timezone string `toml:"timezone"`
	} `toml:"misc"`
}

type serverSection struct {
	URL           string `toml:"url"`
	AdminPort     int    `toml:"admin_port"`
	DataPort      int    `toml:"data_port"`
	AdminDisabled bool   `toml:"admin_disabled"`
}

type getSection struct {
	Format        string `toml:"format"`
	DefaultWindow string `toml:"default_window"`
}

// Resolve locates and parses the site configuration. The search order is:
//
//  1. $ARCHAPPL_CONFIG_FILE
//  2. ~/.config/goarchappl/config.toml
//  3. /etc/goarchappl/config.toml
//  4. the bundled default
//
// The first file that exists wins; a parse failure of the chosen file aborts
// resolution rather than falling back. Per-option environment overrides
// (ARCHAPPL_ADMIN_URL, ...) are applied on top of the parsed file.
func Resolve() (Config, error) {
	path, data, err := locate()
	if err != nil {
		return Config{}, err
	}

	cfg, err := parse(path, data)
	if err != nil {
		return Config{}, err
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, &Error{Path: path, Err: fmt.Errorf("apply env overrides: %w", err)}
	}
	return cfg, nil
}

// Load parses an explicit configuration file, bypassing the search order.
func Load(path string) (Config, error) {
	resolved, err := expandPath(path)
	if err != nil {
		return Config{}, &Error{Path: path, Err: err}
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return Config{}, &Error{Path: resolved, Err: err}
	}
	cfg, err := parse(resolved, data)
	if err != nil {
		return Config{}, err
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, &Error{Path: resolved, Err: fmt.Errorf("apply env overrides: %w", err)}
	}
	return cfg, nil
}

func locate() (string, []byte, error) {
	if override := strings.TrimSpace(os.Getenv(EnvConfigFile)); override != "" {
		resolved, err := expandPath(override)
		if err != nil {
			return "", nil, &Error{Path: override, Err: err}
		}
		data, err := os.ReadFile(resolved)
		if err != nil {
			// An explicit override that cannot be read is fatal, never a
			// silent fallback to the next candidate.
			return "", nil, &Error{Path: resolved, Err: err}
		}
		return resolved, data, nil
	}

	for _, candidate := range []string{userConfigPath, systemConfigPath} {
		resolved, err := expandPath(candidate)
		if err != nil {
			continue
		}
		data, err := os.ReadFile(resolved)
		if err == nil {
			return resolved, data, nil
		}
		if !os.IsNotExist(err) {
			return "", nil, &Error{Path: resolved, Err: err}
		}
	}

	return "builtin", defaultConfig, nil
}

func parse(path string, data []byte) (Config, error) {
	var raw rawConfig
	decoder := toml.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&raw); err != nil {
		return Config{}, &Error{Path: path, Err: fmt.Errorf("parse: %w", err)}
	}

	use := strings.TrimSpace(raw.Main.Use)
	if use == "" {
		return Config{}, &Error{Path: path, Err: fmt.Errorf("[main] use is not set")}
	}
	server, ok := raw.Servers[use]
	if !ok {
		return Config{}, &Error{Path: path, Err: fmt.Errorf("[servers.%s] section not found", use)}
	}
	base := strings.TrimSpace(server.URL)
	if base == "" {
		return Config{}, &Error{Path: path, Err: fmt.Errorf("[servers.%s] url is not set", use)}
	}

	cfg := Config{
		AdminURL:      urlWithPort(base, server.AdminPort),
		DataURL:       urlWithPort(base, server.DataPort),
		AdminDisabled: server.AdminDisabled,
		Format:        strings.TrimSpace(raw.CLI.Get.Format),
		Timezone:      strings.TrimSpace(raw.Misc.Timezone),
		Source:        path,
	}
	if cfg.Format == "" {
		cfg.Format = "table"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}

	window := strings.TrimSpace(raw.CLI.Get.DefaultWindow)
	if window == "" {
		window = "1h"
	}
	d, err := time.ParseDuration(window)
	if err != nil {
		return Config{}, &Error{Path: path, Err: fmt.Errorf("parse default_window %q: %w", window, err)}
	}
	cfg.DefaultWindow = d

	return cfg, nil
}

// Location resolves the configured timezone name to a *time.Location.
func (c Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" || strings.EqualFold(name, "Local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, &Error{Path: c.Source, Err: fmt.Errorf("timezone %q: %w", name, err)}
	}
	return loc, nil
}

func urlWithPort(base string, port int) string {
	base = strings.TrimRight(base, "/")
	if port <= 0 {
		return base
	}
	return fmt.Sprintf("%s:%d", base, port)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
