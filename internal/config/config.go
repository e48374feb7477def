package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every environment variable that overrides the file.
const EnvPrefix = "FLYER_"

type Config struct {
	Site    SiteConfig    `toml:"site" envPrefix:"SITE_"`
	Storage StorageConfig `toml:"storage" envPrefix:"STORAGE_"`
	HTTP    HTTPConfig    `toml:"http" envPrefix:"HTTP_"`
	SSH     SSHConfig     `toml:"ssh" envPrefix:"SSH_"`
	Editor  EditorConfig  `toml:"editor" envPrefix:"EDITOR_"`
	Logging LoggingConfig `toml:"logging" envPrefix:"LOG_"`
}

type SiteConfig struct {
	Page    string `toml:"page" env:"PAGE"` // YAML page definition; empty uses the built-in page
	DataDir string `toml:"data_dir" env:"DATA_DIR"`
}

type StorageConfig struct {
	Backend       string   `toml:"backend" env:"BACKEND"`
	Slot          string   `toml:"slot" env:"SLOT"`
	Codec         string   `toml:"codec" env:"CODEC"`
	FilePath      string   `toml:"file_path" env:"FILE_PATH"`
	RemoteURL     string   `toml:"remote_url" env:"REMOTE_URL"`
	RemoteTimeout Duration `toml:"remote_timeout" env:"REMOTE_TIMEOUT"`
}

type HTTPConfig struct {
	Listen string `toml:"listen" env:"LISTEN"`
}

type SSHConfig struct {
	Listen         string `toml:"listen" env:"LISTEN"` // empty disables the SSH console
	AuthorizedKeys string `toml:"authorized_keys" env:"AUTHORIZED_KEYS"`
}

type EditorConfig struct {
	Sanitize bool `toml:"sanitize" env:"SANITIZE"`
	Watch    bool `toml:"watch" env:"WATCH"` // reload when a file backend changes on disk
}

type LoggingConfig struct {
	Level  string `toml:"level" env:"LEVEL"`
	Format string `toml:"format" env:"FORMAT"`
}

// Duration wraps time.Duration for TOML and environment decoding.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Defaults returns a Config with sane defaults.
func Defaults() *Config {
	return &Config{
		Site: SiteConfig{
			DataDir: "~/.flyer",
		},
		Storage: StorageConfig{
			Backend:       "bolt",
			Slot:          "flyer-content",
			Codec:         "json",
			RemoteTimeout: Duration{10 * time.Second},
		},
		HTTP: HTTPConfig{
			Listen: "127.0.0.1:8080",
		},
		SSH: SSHConfig{
			AuthorizedKeys: "~/.flyer/authorized_keys",
		},
		Editor: EditorConfig{
			Sanitize: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a TOML config file, then applies FLYER_* environment
// overrides. If path is empty, the default location is tried and a missing
// file yields defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = expandHome("~/.flyer/config.toml")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			path = ""
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with any FLYER_* variables that are set.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Expand resolves ~/ in every path setting.
func (c *Config) Expand() {
	c.Site.DataDir = expandHome(c.Site.DataDir)
	c.Site.Page = expandHome(c.Site.Page)
	c.Storage.FilePath = expandHome(c.Storage.FilePath)
	c.SSH.AuthorizedKeys = expandHome(c.SSH.AuthorizedKeys)
}

// expandHome resolves a leading ~/ to the user's home directory.
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
