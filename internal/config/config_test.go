package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.DefaultProfile = "work"
	cfg.Server.Port = 9000
	cfg.Feed.ReconnectDelay = Duration(5 * time.Second)
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultProfile != "work" {
		t.Errorf("DefaultProfile = %q, want %q", loaded.DefaultProfile, "work")
	}
	if loaded.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", loaded.Server.Port)
	}
	if loaded.Feed.ReconnectDelay.D() != 5*time.Second {
		t.Errorf("ReconnectDelay = %v, want 5s", loaded.Feed.ReconnectDelay.D())
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := "[server]\nhost = \"mac.local\"\n\n[feed]\nheartbeat_interval = \"10s\"\n"
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Host != "mac.local" {
		t.Errorf("Host = %q, want mac.local", cfg.Server.Host)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("Port = %d, want default 8000", cfg.Server.Port)
	}
	if cfg.Feed.HeartbeatInterval.D() != 10*time.Second {
		t.Errorf("HeartbeatInterval = %v, want 10s", cfg.Feed.HeartbeatInterval.D())
	}
	if cfg.View.SeparatorGap.D() != time.Hour {
		t.Errorf("SeparatorGap = %v, want 1h", cfg.View.SeparatorGap.D())
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load("/nonexistent/config.toml"); err == nil {
		t.Error("Load() expected error for missing file")
	}
	cfg, err := LoadOrDefault("/nonexistent/config.toml")
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.View.PageSize != 50 {
		t.Errorf("PageSize = %d, want 50", cfg.View.PageSize)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := "[contacts]\nttl = \"1m\"\nnegative_ttl = \"1h\"\n"
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() expected validation error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero page size", func(c *Config) { c.View.PageSize = 0 }, true},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, true},
		{"max below base delay", func(c *Config) { c.Feed.MaxReconnectDelay = Duration(time.Second) }, true},
		{"exponential", func(c *Config) { c.Feed.MaxReconnectDelay = Duration(time.Minute) }, false},
		{"zero heartbeat", func(c *Config) { c.Feed.HeartbeatInterval = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBaseURL(t *testing.T) {
	s := Server{Host: "localhost", Port: 8000}
	if got := s.BaseURL(); got != "http://localhost:8000" {
		t.Errorf("BaseURL() = %q", got)
	}
	s.TLS = true
	if got := s.BaseURL(); got != "https://localhost:8000" {
		t.Errorf("BaseURL() = %q", got)
	}
}

func TestSavePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
