package app

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoadPVList_MergesFlagsAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pvlist.txt")
	body := `# header comment
TST:a

TST:b
TST:a
# trailing comment
CAV:amp
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	pvs, err := LoadPVList([]string{"TST:flagged", "TST:a", " TST:flagged "}, path)
	if err != nil {
		t.Fatalf("LoadPVList returned error: %v", err)
	}
	want := []string{"TST:flagged", "TST:a", "TST:b", "CAV:amp"}
	if !reflect.DeepEqual(pvs, want) {
		t.Fatalf("LoadPVList = %v, want %v", pvs, want)
	}
}

func TestLoadPVList_MissingFileErrors(t *testing.T) {
	_, err := LoadPVList(nil, filepath.Join(t.TempDir(), "nope.txt"))
	if err == nil {
		t.Fatalf("LoadPVList returned nil error, want open error")
	}
}

func TestLoadPVList_FlagsOnly(t *testing.T) {
	pvs, err := LoadPVList([]string{"TST:a"}, "")
	if err != nil {
		t.Fatalf("LoadPVList returned error: %v", err)
	}
	if len(pvs) != 1 || pvs[0] != "TST:a" {
		t.Fatalf("LoadPVList = %v", pvs)
	}
}

func TestSetup_UsesConfigAndOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("ARCHAPPL_CONFIG_FILE", "")

	env, err := Setup(Options{URL: "http://override.example.org:9999", Timeout: time.Second})
	if err != nil {
		t.Fatalf("Setup returned error: %v", err)
	}
	t.Cleanup(func() { _ = env.Close() })

	client, err := env.DataClient()
	if err != nil {
		t.Fatalf("DataClient returned error: %v", err)
	}
	if client.URL() != "http://override.example.org:9999" {
		t.Fatalf("client URL = %q, want the --url override", client.URL())
	}

	mgmt, err := env.MgmtClient()
	if err != nil {
		t.Fatalf("MgmtClient returned error: %v", err)
	}
	if mgmt.URL() != "http://override.example.org:9999" {
		t.Fatalf("mgmt URL = %q, want the --url override", mgmt.URL())
	}
}

func TestNewLogger_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.log")
	log, err := NewLogger(1, path)
	if err != nil {
		t.Fatalf("NewLogger returned error: %v", err)
	}
	log.Info("hello", "pv", "TST:a")
	if err := log.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("log file is empty")
	}
}
