package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults_AllFields(t *testing.T) {
	home, _ := os.UserHomeDir()
	cfg := Defaults()

	if cfg.HomeDir != filepath.Join(home, ".push-updater") {
		t.Errorf("HomeDir = %q", cfg.HomeDir)
	}
	if cfg.Source != SourceGitHub || cfg.GitHubOwner != "pushchain" || cfg.GitHubRepo != "push-updater" {
		t.Errorf("source = %q %s/%s", cfg.Source, cfg.GitHubOwner, cfg.GitHubRepo)
	}
	if cfg.Channel != "stable" || cfg.Locale != "en" || cfg.Schedule != "@every 1h" {
		t.Errorf("channel=%q locale=%q schedule=%q", cfg.Channel, cfg.Locale, cfg.Schedule)
	}
	if cfg.HTTPTimeout != 30*time.Second {
		t.Errorf("HTTPTimeout = %v", cfg.HTTPTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_NoFile(t *testing.T) {
	home := t.TempDir()
	cfg, err := Load(WithHomeDir(home))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HomeDir != home || cfg.ConfigFile != "" {
		t.Errorf("HomeDir=%q ConfigFile=%q", cfg.HomeDir, cfg.ConfigFile)
	}
	if cfg.DevMode {
		t.Error("DevMode should default to false")
	}
}

func TestLoad_FileInHome(t *testing.T) {
	home := t.TempDir()
	path := writeConfig(t, home, `
source: manifest
manifest_url: https://updates.example.com/manifest
channel: beta
locale: zh
http_timeout: 5s
github:
  owner: acme
`)
	cfg, err := Load(WithHomeDir(home))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile = %q, want %q", cfg.ConfigFile, path)
	}
	if cfg.Source != SourceManifest || cfg.ManifestURL != "https://updates.example.com/manifest" {
		t.Errorf("source = %q url = %q", cfg.Source, cfg.ManifestURL)
	}
	if cfg.Channel != "beta" || cfg.Locale != "zh" || cfg.HTTPTimeout != 5*time.Second {
		t.Errorf("channel=%q locale=%q timeout=%v", cfg.Channel, cfg.Locale, cfg.HTTPTimeout)
	}
	if cfg.GitHubOwner != "acme" || cfg.GitHubRepo != "push-updater" {
		t.Errorf("nested keys should merge with defaults: %s/%s", cfg.GitHubOwner, cfg.GitHubRepo)
	}
}

func TestLoad_Precedence(t *testing.T) {
	home := t.TempDir()
	writeConfig(t, home, "channel: beta\nlocale: zh\nschedule: \"*/5 * * * *\"\n")
	t.Setenv("PUSH_UPDATER_LOCALE", "en")
	t.Setenv("PUSH_UPDATER_GITHUB_REPO", "from-env")

	cfg, err := Load(WithHomeDir(home), WithOverrides(map[string]any{KeyChannel: "prerelease"}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Channel != "prerelease" {
		t.Errorf("override lost: channel = %q", cfg.Channel)
	}
	if cfg.Locale != "en" {
		t.Errorf("env should beat file: locale = %q", cfg.Locale)
	}
	if cfg.GitHubRepo != "from-env" {
		t.Errorf("nested env key: repo = %q", cfg.GitHubRepo)
	}
	if cfg.Schedule != "*/5 * * * *" {
		t.Errorf("schedule = %q", cfg.Schedule)
	}
}

func TestLoad_DevMode(t *testing.T) {
	tests := []struct {
		name       string
		defaultDev bool
		file       string
		env        string
		want       bool
	}{
		{"default off", false, "", "", false},
		{"dev build default", true, "", "", true},
		{"file disables dev build default", true, "dev_mode: false\n", "", false},
		{"env enables", false, "", "true", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home := t.TempDir()
			if tt.file != "" {
				writeConfig(t, home, tt.file)
			}
			if tt.env != "" {
				t.Setenv("PUSH_UPDATER_DEV_MODE", tt.env)
			}
			cfg, err := Load(WithHomeDir(home), WithDefaultDevMode(tt.defaultDev))
			if err != nil {
				t.Fatal(err)
			}
			if cfg.DevMode != tt.want {
				t.Errorf("DevMode = %v, want %v", cfg.DevMode, tt.want)
			}
		})
	}
}

func TestLoad_HomeResolution(t *testing.T) {
	t.Run("legacy HOME_DIR", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("HOME_DIR", dir)
		cfg, err := Load()
		if err != nil {
			t.Fatal(err)
		}
		if cfg.HomeDir != dir {
			t.Errorf("HomeDir = %q, want %q", cfg.HomeDir, dir)
		}
	})

	t.Run("prefixed env beats HOME_DIR", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("HOME_DIR", "/legacy")
		t.Setenv("PUSH_UPDATER_HOME", dir)
		cfg, err := Load()
		if err != nil {
			t.Fatal(err)
		}
		if cfg.HomeDir != dir {
			t.Errorf("HomeDir = %q, want %q", cfg.HomeDir, dir)
		}
	})

	t.Run("explicit beats env", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("PUSH_UPDATER_HOME", "/from-env")
		cfg, err := Load(WithHomeDir(dir))
		if err != nil {
			t.Fatal(err)
		}
		if cfg.HomeDir != dir {
			t.Errorf("HomeDir = %q, want %q", cfg.HomeDir, dir)
		}
	})
}

func TestLoad_ExplicitConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "app_name: myapp\n")

	cfg, err := Load(WithHomeDir(t.TempDir()), WithConfigFile(path))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AppName != "myapp" {
		t.Errorf("AppName = %q", cfg.AppName)
	}

	if _, err := Load(WithConfigFile(filepath.Join(dir, "missing.yaml"))); err == nil {
		t.Error("missing explicit config file should fail")
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Run("bad yaml", func(t *testing.T) {
		home := t.TempDir()
		writeConfig(t, home, "source: [unterminated")
		if _, err := Load(WithHomeDir(home)); err == nil || !strings.Contains(err.Error(), "parse") {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("config path is directory", func(t *testing.T) {
		dir := t.TempDir()
		if _, err := Load(WithConfigFile(dir)); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("empty file is ignored", func(t *testing.T) {
		home := t.TempDir()
		writeConfig(t, home, "   \n")
		cfg, err := Load(WithHomeDir(home))
		if err != nil {
			t.Fatal(err)
		}
		if cfg.ConfigFile != "" {
			t.Errorf("ConfigFile = %q", cfg.ConfigFile)
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"unknown source", func(c *Config) { c.Source = "ftp" }, "unknown source"},
		{"github without repo", func(c *Config) { c.GitHubRepo = "" }, "github.repo"},
		{"manifest without url", func(c *Config) { c.Source = SourceManifest }, "manifest_url"},
		{"manifest with url", func(c *Config) { c.Source = SourceManifest; c.ManifestURL = "https://x" }, ""},
		{"bad schedule", func(c *Config) { c.Schedule = "every tuesday" }, "invalid schedule"},
		{"cron schedule", func(c *Config) { c.Schedule = "0 */6 * * *" }, ""},
		{"no schedule", func(c *Config) { c.Schedule = "" }, ""},
		{"zero timeout", func(c *Config) { c.HTTPTimeout = 0 }, "http_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
