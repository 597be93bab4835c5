package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/user/hardenctl/pkg/stig"
)

type ProviderConfig struct {
	APIKey string `yaml:"api_key"`
}

// EngineURLs configures the remote deployment; empty means in-process.
type EngineURLs struct {
	Scanner     string `yaml:"scanner"`
	Analyst     string `yaml:"analyst"`
	Remediation string `yaml:"remediation"`
	Compliance  string `yaml:"compliance"`
}

type Config struct {
	SelectedProvider string                    `yaml:"selected_provider"`
	SelectedModel    string                    `yaml:"selected_model"`
	Providers        map[string]ProviderConfig `yaml:"providers"`

	Profile      string `yaml:"profile"`
	SCAPContent  string `yaml:"scap_content"`
	MinSeverity  string `yaml:"min_severity"`
	DryRun       bool   `yaml:"dry_run"`
	AutoApplyLow bool   `yaml:"auto_apply_low_severity"`

	ReportsDir   string `yaml:"reports_dir"`
	PlaybooksDir string `yaml:"playbooks_dir"`
	LedgerPath   string `yaml:"ledger_path"`

	Engines EngineURLs `yaml:"engines"`
}

func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".hardenctl")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

func defaults() *Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".hardenctl")
	return &Config{
		SelectedProvider: "gemini",
		SelectedModel:    "gemini-pro",
		Providers:        make(map[string]ProviderConfig),
		Profile:          "stig",
		SCAPContent:      "/usr/share/xml/scap/ssg/content/ssg-rhel9-ds.xml",
		MinSeverity:      string(stig.FloorCatII),
		ReportsDir:       filepath.Join(base, "reports"),
		PlaybooksDir:     filepath.Join(base, "playbooks"),
		LedgerPath:       filepath.Join(base, "ledger.db"),
	}
}

func LoadConfig() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return defaults(), nil
	}
	if err != nil {
		return nil, err
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// 0600 permissions for security (api keys)
	return os.WriteFile(path, data, 0600)
}

func (c *Config) Validate() error {
	if _, err := stig.ParseFloor(c.MinSeverity); err != nil {
		return err
	}
	if c.Profile == "" {
		return fmt.Errorf("profile must not be empty")
	}
	return nil
}

// Floor returns the parsed severity floor.
func (c *Config) Floor() stig.Floor {
	floor, err := stig.ParseFloor(c.MinSeverity)
	if err != nil {
		return stig.FloorCatII
	}
	return floor
}

func (c *Config) SetAPIKey(provider, key string) {
	p := c.Providers[provider]
	p.APIKey = key
	c.Providers[provider] = p
}

func (c *Config) GetAPIKey(provider string) string {
	return c.Providers[provider].APIKey
}
