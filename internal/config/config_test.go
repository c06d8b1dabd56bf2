package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
[overseerr]
url = "http://overseerr:5055"
api_key = "key"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Host = %q, want default", cfg.Server.Host)
	}
	if cfg.Server.Port != 8686 {
		t.Errorf("Port = %d, want 8686", cfg.Server.Port)
	}
	if cfg.Server.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.Server.LogLevel)
	}
	if cfg.QBittorrent.Category != "pickrr" {
		t.Errorf("Category = %q, want pickrr", cfg.QBittorrent.Category)
	}
	if cfg.Database.Path != "./data/pickrr.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
}

func TestLoad_EnvSubstitution(t *testing.T) {
	t.Setenv("TEST_OVERSEERR_KEY", "secret-from-env")
	path := writeConfig(t, `
[overseerr]
url = "http://overseerr:5055"
api_key = "${TEST_OVERSEERR_KEY}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Overseerr.APIKey != "secret-from-env" {
		t.Errorf("APIKey = %q, want substituted value", cfg.Overseerr.APIKey)
	}
}

func TestLoad_UnsetEnvLeftAlone(t *testing.T) {
	path := writeConfig(t, `
[overseerr]
url = "http://overseerr:5055"
api_key = "${DEFINITELY_NOT_SET_ANYWHERE}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Overseerr.APIKey != "${DEFINITELY_NOT_SET_ANYWHERE}" {
		t.Errorf("unset variables should be left unchanged, got %q", cfg.Overseerr.APIKey)
	}
}

func TestLoad_OptionalArrSections(t *testing.T) {
	path := writeConfig(t, `
[radarr]
url = "http://radarr:7878"
api_key = "rkey"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Radarr == nil {
		t.Fatal("Radarr section should be parsed")
	}
	if cfg.Sonarr != nil {
		t.Error("absent Sonarr section should stay nil")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/does/not/exist.toml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_BadTOML(t *testing.T) {
	path := writeConfig(t, `not valid [toml`)
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}
