package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigSaveAndLoad(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)

	cfg := CLIConfig{
		ServerURL: "http://myhost:9090",
		Token:     "aaa.bbb.ccc",
	}

	if err := saveConfig(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	path := filepath.Join(tmp, ".config", "hd", "config.yaml")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not found: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("config mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := loadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded != cfg {
		t.Errorf("loaded = %+v, want %+v", loaded, cfg)
	}
}

func TestConfigLoadMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("load missing: %v", err)
	}
	if cfg.ServerURL != "" || cfg.Token != "" {
		t.Error("expected zero-value config for missing file")
	}
}

func TestGetServerURLFromEnv(t *testing.T) {
	t.Setenv("HD_SERVER_URL", "http://custom:1234")
	t.Setenv("HOME", t.TempDir())

	if url := getServerURL(); url != "http://custom:1234" {
		t.Errorf("url = %q, want %q", url, "http://custom:1234")
	}
}

func TestGetServerURLTrimsSlash(t *testing.T) {
	t.Setenv("HD_SERVER_URL", "")
	t.Setenv("HOME", t.TempDir())

	if err := saveConfig(CLIConfig{ServerURL: "https://deals.example.com/"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if url := getServerURL(); url != "https://deals.example.com" {
		t.Errorf("url = %q, want %q", url, "https://deals.example.com")
	}
}

func TestGetServerURLDefault(t *testing.T) {
	t.Setenv("HD_SERVER_URL", "")
	t.Setenv("HOME", t.TempDir())

	if url := getServerURL(); url != "http://localhost:8080" {
		t.Errorf("url = %q, want %q", url, "http://localhost:8080")
	}
}

func TestGetTokenFromEnv(t *testing.T) {
	t.Setenv("HD_TOKEN", "env.token.value")
	t.Setenv("HOME", t.TempDir())

	if token := getToken(); token != "env.token.value" {
		t.Errorf("token = %q, want %q", token, "env.token.value")
	}
}

func TestGetTokenFromConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("HD_TOKEN", "")

	if err := saveConfig(CLIConfig{Token: "cfg.token.value"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	if token := getToken(); token != "cfg.token.value" {
		t.Errorf("token = %q, want %q", token, "cfg.token.value")
	}
}

func TestGetTokenEmpty(t *testing.T) {
	t.Setenv("HD_TOKEN", "")
	t.Setenv("HOME", t.TempDir())

	if token := getToken(); token != "" {
		t.Errorf("token = %q, want empty", token)
	}
}
