package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.HTTP.Listen != "127.0.0.1:8080" {
		t.Errorf("HTTP listen: got %q, want 127.0.0.1:8080", cfg.HTTP.Listen)
	}
	if cfg.SSH.Listen != "" {
		t.Errorf("SSH console should be off by default, got %q", cfg.SSH.Listen)
	}
	if cfg.Site.DataDir != "~/.flyer" {
		t.Errorf("DataDir: got %q, want ~/.flyer", cfg.Site.DataDir)
	}
	if cfg.Storage.Backend != "bolt" || cfg.Storage.Codec != "json" || cfg.Storage.Slot != "flyer-content" {
		t.Errorf("unexpected storage defaults: %+v", cfg.Storage)
	}
	if !cfg.Editor.Sanitize {
		t.Error("sanitizing should be on by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadNoFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Listen != "127.0.0.1:8080" {
		t.Errorf("HTTP listen: got %q, want 127.0.0.1:8080", cfg.HTTP.Listen)
	}
}

func TestLoadDefaultLocation(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if err := os.MkdirAll(filepath.Join(home, ".flyer"), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(home, ".flyer", "config.toml"), []byte("[http]\nlisten = \"127.0.0.1:9999\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Listen != "127.0.0.1:9999" {
		t.Errorf("HTTP listen: got %q, want 127.0.0.1:9999", cfg.HTTP.Listen)
	}
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	toml := `
[site]
page = "/srv/flyer/page.yaml"
data_dir = "/tmp/flyer-test"

[storage]
backend = "remote"
slot = "staging"
codec = "proto"
remote_url = "http://127.0.0.1:8080/api/blob"
remote_timeout = "3s"

[http]
listen = "0.0.0.0:8000"

[ssh]
listen = "127.0.0.1:2222"

[editor]
sanitize = false
watch = true

[logging]
level = "debug"
format = "json"
`
	if err := os.WriteFile(path, []byte(toml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Site.Page != "/srv/flyer/page.yaml" || cfg.Site.DataDir != "/tmp/flyer-test" {
		t.Errorf("site: %+v", cfg.Site)
	}
	if cfg.Storage.Backend != "remote" || cfg.Storage.Slot != "staging" || cfg.Storage.Codec != "proto" {
		t.Errorf("storage: %+v", cfg.Storage)
	}
	if cfg.Storage.RemoteTimeout.Duration != 3*time.Second {
		t.Errorf("remote timeout: got %s, want 3s", cfg.Storage.RemoteTimeout)
	}
	if cfg.HTTP.Listen != "0.0.0.0:8000" || cfg.SSH.Listen != "127.0.0.1:2222" {
		t.Errorf("listen: http=%q ssh=%q", cfg.HTTP.Listen, cfg.SSH.Listen)
	}
	if cfg.Editor.Sanitize || !cfg.Editor.Watch {
		t.Errorf("editor: %+v", cfg.Editor)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("logging: %+v", cfg.Logging)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config should validate: %v", err)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"warn\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("level: got %q, want warn", cfg.Logging.Level)
	}
	if cfg.Storage.Backend != "bolt" || !cfg.Editor.Sanitize {
		t.Errorf("defaults lost: %+v %+v", cfg.Storage, cfg.Editor)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing explicit file")
	}
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[http\nlisten = "), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[http]\nlisten = \"127.0.0.1:7000\"\n[storage]\nbackend = \"sqlite\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FLYER_HTTP_LISTEN", "127.0.0.1:7001")
	t.Setenv("FLYER_EDITOR_SANITIZE", "false")
	t.Setenv("FLYER_STORAGE_REMOTE_TIMEOUT", "250ms")
	t.Setenv("FLYER_LOG_LEVEL", "error")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Listen != "127.0.0.1:7001" {
		t.Errorf("env should win over file: got %q", cfg.HTTP.Listen)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("unset env should keep file value: got %q", cfg.Storage.Backend)
	}
	if cfg.Editor.Sanitize {
		t.Error("FLYER_EDITOR_SANITIZE=false ignored")
	}
	if cfg.Storage.RemoteTimeout.Duration != 250*time.Millisecond {
		t.Errorf("remote timeout: got %s", cfg.Storage.RemoteTimeout)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("level: got %q", cfg.Logging.Level)
	}
}

func TestEnvBadValue(t *testing.T) {
	t.Setenv("FLYER_STORAGE_REMOTE_TIMEOUT", "soon")
	if err := ApplyEnv(Defaults()); err == nil {
		t.Fatal("expected error for unparsable duration")
	}
}

func TestExpand(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	cfg := Defaults()
	cfg.Site.Page = "~/page.yaml"
	cfg.Storage.FilePath = "/abs/content.json"
	cfg.Expand()
	if cfg.Site.DataDir != filepath.Join(home, ".flyer") {
		t.Errorf("DataDir: got %q", cfg.Site.DataDir)
	}
	if cfg.Site.Page != filepath.Join(home, "page.yaml") {
		t.Errorf("Page: got %q", cfg.Site.Page)
	}
	if cfg.Storage.FilePath != "/abs/content.json" {
		t.Errorf("absolute path changed: %q", cfg.Storage.FilePath)
	}
	if expandHome("relative/x") != "relative/x" {
		t.Error("relative path should be left alone")
	}
}
