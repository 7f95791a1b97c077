package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration that reads and writes as a string ("30s").
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

// Config represents ~/.msgview/config.toml.
type Config struct {
	DefaultProfile string        `toml:"default_profile"`
	Server         Server        `toml:"server"`
	View           View          `toml:"view"`
	Feed           Feed          `toml:"feed"`
	Contacts       Contacts      `toml:"contacts"`
	Notifications  Notifications `toml:"notifications"`
	Search         Search        `toml:"search"`
	Log            Log           `toml:"log"`
}

// Server locates the iMessage gateway.
type Server struct {
	Host    string   `toml:"host"`
	Port    int      `toml:"port"`
	TLS     bool     `toml:"tls"`
	Token   string   `toml:"token"`
	Timeout Duration `toml:"timeout"`
}

// BaseURL returns the HTTP base URL of the gateway.
func (s Server) BaseURL() string {
	scheme := "http"
	if s.TLS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, s.Host, s.Port)
}

// View controls timeline paging and rendering.
type View struct {
	PageSize        int      `toml:"page_size"`
	ChatLimit       int      `toml:"chat_limit"`
	SeparatorGap    Duration `toml:"separator_gap"`
	ScrollThreshold int      `toml:"scroll_threshold"`
}

// Feed controls the live websocket.
type Feed struct {
	ReconnectDelay    Duration `toml:"reconnect_delay"`
	MaxReconnectDelay Duration `toml:"max_reconnect_delay"`
	HeartbeatInterval Duration `toml:"heartbeat_interval"`
}

// Contacts controls the contact resolution cache.
type Contacts struct {
	TTL              Duration `toml:"ttl"`
	NegativeTTL      Duration `toml:"negative_ttl"`
	Capacity         int      `toml:"capacity"`
	LookupsPerSecond int      `toml:"lookups_per_second"`
}

// Notifications toggles new-message notifications.
type Notifications struct {
	Enabled bool `toml:"enabled"`
}

// Search controls message search.
type Search struct {
	Debounce Duration `toml:"debounce"`
	PageSize int      `toml:"page_size"`
}

// Log controls the log file.
type Log struct {
	Level string `toml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DefaultProfile: "main",
		Server: Server{
			Host:    "localhost",
			Port:    8000,
			Timeout: Duration(30 * time.Second),
		},
		View: View{
			PageSize:        50,
			ChatLimit:       100,
			SeparatorGap:    Duration(60 * time.Minute),
			ScrollThreshold: 2,
		},
		Feed: Feed{
			ReconnectDelay:    Duration(3 * time.Second),
			HeartbeatInterval: Duration(30 * time.Second),
		},
		Contacts: Contacts{
			TTL:              Duration(24 * time.Hour),
			NegativeTTL:      Duration(time.Hour),
			Capacity:         2000,
			LookupsPerSecond: 20,
		},
		Notifications: Notifications{Enabled: true},
		Search: Search{
			Debounce: Duration(300 * time.Millisecond),
			PageSize: 50,
		},
		Log: Log{Level: "info"},
	}
}

// Load reads config from the given path on top of the defaults.
// Returns the error from the decoder if the file is missing or malformed.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, falling back to Default when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Validate rejects values the client cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Host == "" {
		errs = append(errs, errors.New("server.host is empty"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.View.PageSize <= 0 {
		errs = append(errs, errors.New("view.page_size must be positive"))
	}
	if c.View.ChatLimit <= 0 {
		errs = append(errs, errors.New("view.chat_limit must be positive"))
	}
	if c.View.SeparatorGap <= 0 {
		errs = append(errs, errors.New("view.separator_gap must be positive"))
	}
	if c.Feed.ReconnectDelay <= 0 {
		errs = append(errs, errors.New("feed.reconnect_delay must be positive"))
	}
	if c.Feed.MaxReconnectDelay != 0 && c.Feed.MaxReconnectDelay < c.Feed.ReconnectDelay {
		errs = append(errs, errors.New("feed.max_reconnect_delay is below feed.reconnect_delay"))
	}
	if c.Feed.HeartbeatInterval <= 0 {
		errs = append(errs, errors.New("feed.heartbeat_interval must be positive"))
	}
	if c.Contacts.TTL <= 0 || c.Contacts.NegativeTTL <= 0 {
		errs = append(errs, errors.New("contacts ttl values must be positive"))
	}
	if c.Contacts.NegativeTTL > c.Contacts.TTL {
		errs = append(errs, errors.New("contacts.negative_ttl exceeds contacts.ttl"))
	}
	if c.Contacts.Capacity <= 0 || c.Contacts.LookupsPerSecond <= 0 {
		errs = append(errs, errors.New("contacts capacity and lookups_per_second must be positive"))
	}
	if c.Search.PageSize <= 0 {
		errs = append(errs, errors.New("search.page_size must be positive"))
	}
	return errors.Join(errs...)
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
