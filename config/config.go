package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config carries the daemon configuration. Vault economics (owner, fee policy,
// agent linkage) are fixed here and immutable for the life of the vault.
type Config struct {
	RPCAddress        string   `toml:"RPCAddress"`
	DataDir           string   `toml:"DataDir"`
	Environment       string   `toml:"Environment"`
	Owner             string   `toml:"Owner"`
	FeeRecipient      string   `toml:"FeeRecipient"`
	PerformanceFeeBps uint64   `toml:"PerformanceFeeBps"`
	AgentID           uint64   `toml:"AgentID"`
	AgentMetadataURI  string   `toml:"AgentMetadataURI"`
	MockAsset         bool     `toml:"MockAsset"`
	PausedModules     []string `toml:"PausedModules"`
}

// Load loads the configuration from the given path, writing a commented
// default file when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = "127.0.0.1:8645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./vault-data"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "local"
	}
	if cfg.PausedModules == nil {
		cfg.PausedModules = []string{}
	}
}

func validate(cfg *Config) error {
	if cfg.PerformanceFeeBps > 10_000 {
		return fmt.Errorf("config: PerformanceFeeBps %d exceeds 10000", cfg.PerformanceFeeBps)
	}
	if strings.TrimSpace(cfg.Owner) == "" {
		return fmt.Errorf("config: Owner address is required")
	}
	if strings.TrimSpace(cfg.FeeRecipient) == "" {
		return fmt.Errorf("config: FeeRecipient address is required")
	}
	return nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		PerformanceFeeBps: 1500,
		MockAsset:         true,
	}
	applyDefaults(cfg)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("config: wrote default config to %s; set Owner and FeeRecipient before starting", path)
}

// IsPaused implements the native module pause view over the static config
// list.
func (c *Config) IsPaused(module string) bool {
	if c == nil {
		return false
	}
	for _, name := range c.PausedModules {
		if strings.EqualFold(strings.TrimSpace(name), module) {
			return true
		}
	}
	return false
}
