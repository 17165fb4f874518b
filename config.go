package main

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is loaded from ~/.tanglerc.toml; every field has a working default
// so the file is optional. Command-line flags override file values.
type Config struct {
	DataDir       string   `toml:"data_dir"`
	LogFile       string   `toml:"log_file"`
	Workspace     string   `toml:"workspace"`
	Confirmations bool     `toml:"confirmations"`
	AI            AIConfig `toml:"ai"`
}

type AIConfig struct {
	Enabled bool   `toml:"enabled"`
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
}

func defaultConfig() *Config {
	config := &Config{
		Workspace:     "default",
		Confirmations: true,
		AI: AIConfig{
			Enabled: true,
			Model:   "gpt-4o-mini",
		},
	}
	if home, err := os.UserHomeDir(); err == nil {
		config.DataDir = filepath.Join(home, ".local", "share", "tangle")
		config.LogFile = filepath.Join(home, ".local", "state", "tangle", "tangle.log")
	}
	return config
}

func loadConfig() *Config {
	path := ""
	if home, err := os.UserHomeDir(); err == nil {
		path = filepath.Join(home, ".tanglerc.toml")
	}
	return loadConfigFrom(path)
}

func loadConfigFrom(path string) *Config {
	config := defaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			// A malformed file falls back to defaults; the TUI has no
			// place to report it and refusing to start would be worse.
			if _, err := toml.DecodeFile(path, config); err != nil {
				config = defaultConfig()
			}
		}
	}
	if config.AI.APIKey == "" {
		config.AI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	return config
}

// DatabasePath returns the SQLite file location, creating the data dir.
func (c *Config) DatabasePath() string {
	if c.DataDir == "" {
		return "tangle.db"
	}
	os.MkdirAll(c.DataDir, 0o755)
	return filepath.Join(c.DataDir, "tangle.db")
}
