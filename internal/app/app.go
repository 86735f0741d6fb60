// Package app is the shared startup layer for the CLI tools: it resolves the
// site configuration once, builds the logger, and constructs clients with
// command-line overrides applied.
package app

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/archman/goarchappl/archiver"
	"github.com/archman/goarchappl/config"
)

// Options carry the flags every CLI tool shares.
type Options struct {
	// URL overrides both the data and admin base URLs from configuration.
	URL string
	// Timeout overrides the HTTP client timeout.
	Timeout time.Duration
	// Verbose raises log verbosity: 0 warnings, 1 info, 2 debug.
	Verbose int
	// LogFile redirects log output from stderr to a file.
	LogFile string
}

// Env is the resolved process environment handed to command runners.
type Env struct {
	Cfg config.Config
	Log *Logger

	opts Options
}

// Setup resolves configuration and logging. It is called exactly once per
// process, before any network I/O.
func Setup(opts Options) (*Env, error) {
	cfg, err := config.Resolve()
	if err != nil {
		return nil, err
	}
	log, err := NewLogger(opts.Verbose, opts.LogFile)
	if err != nil {
		return nil, err
	}
	log.Debug("resolved configuration",
		"source", cfg.Source,
		"data_url", cfg.DataURL,
		"admin_url", cfg.AdminURL,
	)
	return &Env{Cfg: cfg, Log: log, opts: opts}, nil
}

// Close releases the log file, if any.
func (e *Env) Close() error { return e.Log.Close() }

// DataClient builds a data retrieval client from the resolved configuration
// and the command-line overrides.
func (e *Env) DataClient() (*archiver.DataClient, error) {
	url := e.Cfg.DataURL
	if e.opts.URL != "" {
		url = e.opts.URL
	}
	return archiver.NewDataClient(archiver.DataOptions{
		Options: archiver.Options{
			URL:     url,
			Timeout: e.opts.Timeout,
			Logger:  e.Log.Logger,
		},
		Window: e.Cfg.DefaultWindow,
	})
}

// MgmtClient builds a management client from the resolved configuration and
// the command-line overrides.
func (e *Env) MgmtClient() (*archiver.MgmtClient, error) {
	url := e.Cfg.AdminURL
	if e.opts.URL != "" {
		url = e.opts.URL
	}
	return archiver.NewMgmtClient(archiver.MgmtOptions{
		Options: archiver.Options{
			URL:     url,
			Timeout: e.opts.Timeout,
			Logger:  e.Log.Logger,
		},
		Disabled: e.Cfg.AdminDisabled,
	})
}

// Location resolves the configured timezone for naive time strings.
func (e *Env) Location() (*time.Location, error) {
	return e.Cfg.Location()
}

// LoadPVList assembles the PV list from repeated --pv flags and an optional
// --pv-file (one PV per line, # comments and blank lines skipped). Duplicates
// are dropped, first occurrence wins.
func LoadPVList(flagPVs []string, file string) ([]string, error) {
	seen := make(map[string]bool)
	pvs := make([]string, 0, len(flagPVs))
	add := func(pv string) {
		if pv == "" || seen[pv] {
			return
		}
		seen[pv] = true
		pvs = append(pvs, pv)
	}
	for _, pv := range flagPVs {
		add(strings.TrimSpace(pv))
	}

	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("open pv file: %w", err)
		}
		defer func() { _ = f.Close() }()

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			add(line)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read pv file: %w", err)
		}
	}
	return pvs, nil
}

// PVFlag collects repeated --pv flags.
type PVFlag []string

func (f *PVFlag) String() string { return strings.Join(*f, ",") }

func (f *PVFlag) Set(v string) error {
	*f = append(*f, v)
	return nil
}
