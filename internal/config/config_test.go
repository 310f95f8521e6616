package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

func testFlags() *pflag.FlagSet {
	f := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.String("listen", "127.0.0.1:8080", "")
	f.String("db", "lecturelens.db", "")
	f.String("repos", "repos", "")
	return f
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", testFlags())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != "127.0.0.1:8080" || cfg.DB != "lecturelens.db" || cfg.Repos != "repos" {
		t.Errorf("defaults not applied: %+v", cfg)
	}

	p := cfg.Sched.Params()
	if p.InitialEase != 2.5 || p.MinEase != 1.3 || p.SecondIntervalDays != 6 {
		t.Errorf("scheduler defaults wrong: %+v", p)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
listen: "0.0.0.0:9000"
scheduler:
  min_ease: 1.5
  max_interval_days: 365
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path, testFlags())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != "0.0.0.0:9000" {
		t.Errorf("listen = %s, want file value", cfg.Listen)
	}
	// Keys absent from the file keep flag defaults.
	if cfg.DB != "lecturelens.db" {
		t.Errorf("db = %s, want flag default", cfg.DB)
	}

	p := cfg.Sched.Params()
	if p.MinEase != 1.5 || p.MaxIntervalDays != 365 {
		t.Errorf("overrides not applied: %+v", p)
	}
	if p.InitialEase != 2.5 {
		t.Errorf("untouched param changed: %+v", p)
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("LECTURELENS_LISTEN", "0.0.0.0:7000")
	t.Setenv("LECTURELENS_SCHEDULER__MIN_EASE", "1.4")

	cfg, err := Load("", testFlags())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != "0.0.0.0:7000" {
		t.Errorf("listen = %s, want env value", cfg.Listen)
	}
	if cfg.Sched.Params().MinEase != 1.4 {
		t.Errorf("scheduler env override not applied: %+v", cfg.Sched)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("LECTURELENS_LISTEN", "not-an-address")
	if _, err := Load("", testFlags()); err == nil {
		t.Error("want validation error for bad listen address")
	}
}

func TestLoadMissingFileIsFine(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), testFlags()); err != nil {
		t.Errorf("missing optional config file must not fail: %v", err)
	}
}
