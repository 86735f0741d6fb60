package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const siteConfig = `
[main]
use = "site"

[servers.site]
url = "http://arch.example.org"
admin_port = 17665
data_port = 17668
admin_disabled = true

[cli.get]
format = "csv"
default_window = "30m"

[misc]
timezone = "UTC"
`

func writeConfig(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestResolve_BundledDefaultWhenNoFilesExist(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(EnvConfigFile, "")

	cfg, err := Resolve()
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if cfg.Source != "builtin" {
		t.Fatalf("Source = %q, want builtin", cfg.Source)
	}
	if cfg.AdminURL != "http://127.0.0.1:17665" {
		t.Fatalf("AdminURL = %q, want bundled default", cfg.AdminURL)
	}
	if cfg.DataURL != "http://127.0.0.1:17665" {
		t.Fatalf("DataURL = %q, want bundled default", cfg.DataURL)
	}
	if cfg.DefaultWindow != time.Hour {
		t.Fatalf("DefaultWindow = %v, want 1h", cfg.DefaultWindow)
	}
	if cfg.AdminDisabled {
		t.Fatalf("AdminDisabled = true, want false")
	}
}

func TestResolve_UserFileWinsOverBundledDefault(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(EnvConfigFile, "")
	writeConfig(t, home, ".config/goarchappl/config.toml", siteConfig)

	cfg, err := Resolve()
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if cfg.AdminURL != "http://arch.example.org:17665" {
		t.Fatalf("AdminURL = %q, want user file value", cfg.AdminURL)
	}
	if cfg.DataURL != "http://arch.example.org:17668" {
		t.Fatalf("DataURL = %q, want user file value", cfg.DataURL)
	}
	if !cfg.AdminDisabled {
		t.Fatalf("AdminDisabled = false, want true")
	}
	if cfg.Format != "csv" {
		t.Fatalf("Format = %q, want csv", cfg.Format)
	}
	if cfg.DefaultWindow != 30*time.Minute {
		t.Fatalf("DefaultWindow = %v, want 30m", cfg.DefaultWindow)
	}
}

func TestResolve_EnvFileOverrideWinsOverUserFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	writeConfig(t, home, ".config/goarchappl/config.toml", siteConfig)

	override := writeConfig(t, t.TempDir(), "override.toml", `
[main]
use = "other"

[servers.other]
url = "http://override.example.org"
`)
	t.Setenv(EnvConfigFile, override)

	cfg, err := Resolve()
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if cfg.AdminURL != "http://override.example.org" {
		t.Fatalf("AdminURL = %q, want override value", cfg.AdminURL)
	}
	if cfg.Source != override {
		t.Fatalf("Source = %q, want %q", cfg.Source, override)
	}
}

func TestResolve_MissingEnvFileIsFatal(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	writeConfig(t, home, ".config/goarchappl/config.toml", siteConfig)
	t.Setenv(EnvConfigFile, filepath.Join(home, "nope.toml"))

	_, err := Resolve()
	if err == nil {
		t.Fatalf("Resolve returned nil error, want missing override error")
	}
	var cfgErr *Error
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Resolve error = %T, want *config.Error", err)
	}
}

func TestResolve_MalformedFileDoesNotFallBack(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(EnvConfigFile, "")
	writeConfig(t, home, ".config/goarchappl/config.toml", `[main`)

	_, err := Resolve()
	if err == nil {
		t.Fatalf("Resolve returned nil error, want parse error")
	}
	if !strings.Contains(err.Error(), "parse") {
		t.Fatalf("Resolve error = %q, want it to mention parse", err.Error())
	}
}

func TestResolve_EnvOptionOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(EnvConfigFile, "")
	t.Setenv("ARCHAPPL_DATA_URL", "http://data.example.org:9000")
	t.Setenv("ARCHAPPL_DEFAULT_WINDOW", "15m")

	cfg, err := Resolve()
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if cfg.DataURL != "http://data.example.org:9000" {
		t.Fatalf("DataURL = %q, want env override", cfg.DataURL)
	}
	if cfg.DefaultWindow != 15*time.Minute {
		t.Fatalf("DefaultWindow = %v, want 15m", cfg.DefaultWindow)
	}
	if cfg.AdminURL != "http://127.0.0.1:17665" {
		t.Fatalf("AdminURL = %q, want bundled default untouched", cfg.AdminURL)
	}
}

func TestLoad_MissingUseSectionFails(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.toml", `
[main]
use = "ghost"

[servers.local]
url = "http://127.0.0.1"
`)
	_, err := Load(path)
	if err == nil {
		t.Fatalf("Load returned nil error, want missing section error")
	}
	if !strings.Contains(err.Error(), "servers.ghost") {
		t.Fatalf("Load error = %q, want it to name the missing section", err.Error())
	}
}

func TestLoad_MissingURLFails(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.toml", `
[main]
use = "local"

[servers.local]
admin_port = 17665
`)
	_, err := Load(path)
	if err == nil {
		t.Fatalf("Load returned nil error, want missing url error")
	}
}

func TestConfig_Location(t *testing.T) {
	cfg := Config{Timezone: "UTC"}
	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("Location returned error: %v", err)
	}
	if loc != time.UTC {
		t.Fatalf("Location = %v, want UTC", loc)
	}

	cfg = Config{Timezone: "Local"}
	if loc, err = cfg.Location(); err != nil || loc != time.Local {
		t.Fatalf("Location = %v, %v, want local zone", loc, err)
	}

	cfg = Config{Timezone: "Not/AZone"}
	if _, err = cfg.Location(); err == nil {
		t.Fatalf("Location returned nil error, want unknown zone error")
	}
}
