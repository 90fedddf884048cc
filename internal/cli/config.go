package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultServerURL = "http://localhost:8080"

// CLIConfig is what `hd login` stores in ~/.config/hd/config.yaml.
type CLIConfig struct {
	ServerURL string `yaml:"server_url,omitempty"`
	Token     string `yaml:"token,omitempty"`
}

func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "hd", "config.yaml"), nil
}

// loadConfig returns the stored CLI config, or a zero value when none is saved.
func loadConfig() (CLIConfig, error) {
	var cfg CLIConfig

	path, err := configPath()
	if err != nil {
		return cfg, err
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return cfg, nil
	case err != nil:
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return CLIConfig{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// saveConfig writes cfg readable by the current user only.
func saveConfig(cfg CLIConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// resolve picks env over the stored config. A config file that cannot be
// read counts as empty.
func resolve(env string, pick func(CLIConfig) string) string {
	if v := os.Getenv(env); v != "" {
		return v
	}
	cfg, err := loadConfig()
	if err != nil {
		return ""
	}
	return pick(cfg)
}

// getServerURL returns HD_SERVER_URL, the stored server URL, or the local default.
func getServerURL() string {
	url := resolve("HD_SERVER_URL", func(c CLIConfig) string { return c.ServerURL })
	if url == "" {
		return defaultServerURL
	}
	return strings.TrimRight(url, "/")
}

// getToken returns HD_TOKEN or the stored bearer token.
func getToken() string {
	return resolve("HD_TOKEN", func(c CLIConfig) string { return c.Token })
}
