package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the leasehubd daemon configuration.
type Config struct {
	RPCAddress      string `toml:"RPCAddress"`
	DataDir         string `toml:"DataDir"`
	JournalPath     string `toml:"JournalPath"`
	Env             string `toml:"Env"`
	FeeBps          uint32 `toml:"FeeBps"`
	FeeCollector    string `toml:"FeeCollector"`
	RateLimitPerMin int    `toml:"RateLimitPerMin"`
}

// Default returns the configuration written on first run.
func Default() *Config {
	return &Config{
		RPCAddress:      "127.0.0.1:8645",
		DataDir:         "./leasehub-data",
		JournalPath:     "./leasehub-journal.db",
		FeeBps:          500,
		RateLimitPerMin: 600,
	}
}

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s contains unknown field %s", path, undecoded[0])
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.RPCAddress == "" {
		cfg.RPCAddress = def.RPCAddress
	}
	if cfg.DataDir == "" {
		cfg.DataDir = def.DataDir
	}
	if cfg.JournalPath == "" {
		cfg.JournalPath = def.JournalPath
	}
	if cfg.RateLimitPerMin <= 0 {
		cfg.RateLimitPerMin = def.RateLimitPerMin
	}
}

func createDefault(path string) (*Config, error) {
	cfg := Default()
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
	return cfg, nil
}
