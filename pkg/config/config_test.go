package config

import (
	"os"
	"testing"

	"github.com/user/hardenctl/pkg/stig"
)

func TestLoadConfigDefaultsWhenMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SelectedProvider != "gemini" {
		t.Errorf("default provider = %q", cfg.SelectedProvider)
	}
	if cfg.Profile != "stig" {
		t.Errorf("default profile = %q", cfg.Profile)
	}
	if cfg.MinSeverity != string(stig.FloorCatII) {
		t.Errorf("default min severity = %q", cfg.MinSeverity)
	}
	if cfg.Engines.Scanner != "" {
		t.Error("default deployment must be in-process")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	cfg.SetAPIKey("gemini", "secret-key")
	cfg.SelectedModel = "gemini-1.5-pro"
	cfg.MinSeverity = string(stig.FloorCatI)
	cfg.AutoApplyLow = true

	if err := SaveConfig(cfg); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if loaded.GetAPIKey("gemini") != "secret-key" {
		t.Error("api key did not survive the round trip")
	}
	if loaded.SelectedModel != "gemini-1.5-pro" {
		t.Errorf("model = %q", loaded.SelectedModel)
	}
	if loaded.Floor() != stig.FloorCatI {
		t.Errorf("floor = %q", loaded.Floor())
	}
	if !loaded.AutoApplyLow {
		t.Error("auto_apply_low_severity lost")
	}
}

func TestConfigFilePermissions(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if err := SaveConfig(cfg); err != nil {
		t.Fatal(err)
	}

	path, err := GetConfigPath()
	if err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("config file mode = %o, want 600", perm)
	}
}

func TestValidate(t *testing.T) {
	cfg := defaults()
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}

	cfg.MinSeverity = "CAT_IV"
	if err := cfg.Validate(); err == nil {
		t.Error("bogus severity floor should fail validation")
	}

	cfg = defaults()
	cfg.Profile = ""
	if err := cfg.Validate(); err == nil {
		t.Error("empty profile should fail validation")
	}
}

func TestFloorFallsBackToCatII(t *testing.T) {
	cfg := defaults()
	cfg.MinSeverity = "garbage"
	if cfg.Floor() != stig.FloorCatII {
		t.Errorf("Floor() on invalid config = %q, want CAT_II", cfg.Floor())
	}
}
