package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

const (
	KeyHome           = "home"
	KeyAppName        = "app_name"
	KeyBinaryPath     = "binary_path"
	KeyBinaryName     = "binary_name"
	KeyCurrentVersion = "current_version"
	KeySource         = "source"
	KeyGitHubOwner    = "github.owner"
	KeyGitHubRepo     = "github.repo"
	KeyGitHubAPI      = "github.api"
	KeyManifestURL    = "manifest_url"
	KeyChannel        = "channel"
	KeyDevMode        = "dev_mode"
	KeyLocale         = "locale"
	KeySchedule       = "schedule"
	KeyControlAddr    = "control_addr"
	KeyPushURL        = "push_url"
	KeyReloadCommand  = "reload_command"
	KeySkipVerify     = "skip_verify"
	KeyHTTPTimeout    = "http_timeout"
)

const (
	SourceGitHub   = "github"
	SourceManifest = "manifest"

	envPrefix      = "PUSH_UPDATER"
	configFileName = "config.yaml"
)

// Config holds the resolved updater configuration.
type Config struct {
	HomeDir        string
	ConfigFile     string // file that was merged, empty when none existed
	AppName        string
	BinaryPath     string // empty means the running executable
	BinaryName     string
	CurrentVersion string
	Source         string
	GitHubOwner    string
	GitHubRepo     string
	GitHubAPI      string
	ManifestURL    string
	Channel        string
	DevMode        bool
	Locale         string
	Schedule       string
	ControlAddr    string
	PushURL        string
	ReloadCommand  string // empty means exec the new binary in place
	SkipVerify     bool
	HTTPTimeout    time.Duration
}

type loadSettings struct {
	homeDir        string
	configFile     string
	defaultDevMode bool
	overrides      map[string]any
}

// Option configures Load. Useful for tests and for CLI flag wiring.
type Option func(*loadSettings)

// WithHomeDir sets the state directory, taking precedence over env.
func WithHomeDir(dir string) Option {
	return func(s *loadSettings) { s.homeDir = dir }
}

// WithConfigFile reads path instead of <home>/config.yaml.
func WithConfigFile(path string) Option {
	return func(s *loadSettings) { s.configFile = path }
}

// WithDefaultDevMode sets dev_mode when neither file nor env sets it.
func WithDefaultDevMode(on bool) Option {
	return func(s *loadSettings) { s.defaultDevMode = on }
}

// WithOverrides injects values typically coming from CLI flags.
func WithOverrides(overrides map[string]any) Option {
	return func(s *loadSettings) {
		if s.overrides == nil {
			s.overrides = map[string]any{}
		}
		for k, v := range overrides {
			s.overrides[k] = v
		}
	}
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	home, _ := os.UserHomeDir()
	return Config{
		HomeDir:     filepath.Join(home, ".push-updater"),
		AppName:     "push-updater",
		Source:      SourceGitHub,
		GitHubOwner: "pushchain",
		GitHubRepo:  "push-updater",
		GitHubAPI:   "https://api.github.com",
		Channel:     "stable",
		Locale:      "en",
		Schedule:    "@every 1h",
		ControlAddr: "127.0.0.1:8790",
		HTTPTimeout: 30 * time.Second,
	}
}

// Load resolves configuration with the precedence
// defaults < config file < PUSH_UPDATER_* env < overrides.
func Load(opts ...Option) (Config, error) {
	settings := loadSettings{}
	for _, opt := range opts {
		opt(&settings)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, settings.defaultDevMode)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	home := resolveHome(v, settings.homeDir)
	configFile := settings.configFile
	if configFile == "" {
		configFile = filepath.Join(home, configFileName)
	}
	merged, err := mergeConfigFile(v, configFile, settings.configFile != "")
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	for k, val := range settings.overrides {
		v.Set(k, val)
	}

	cfg := Config{
		HomeDir:        home,
		AppName:        v.GetString(KeyAppName),
		BinaryPath:     v.GetString(KeyBinaryPath),
		BinaryName:     v.GetString(KeyBinaryName),
		CurrentVersion: v.GetString(KeyCurrentVersion),
		Source:         strings.ToLower(v.GetString(KeySource)),
		GitHubOwner:    v.GetString(KeyGitHubOwner),
		GitHubRepo:     v.GetString(KeyGitHubRepo),
		GitHubAPI:      v.GetString(KeyGitHubAPI),
		ManifestURL:    v.GetString(KeyManifestURL),
		Channel:        v.GetString(KeyChannel),
		DevMode:        v.GetBool(KeyDevMode),
		Locale:         v.GetString(KeyLocale),
		Schedule:       v.GetString(KeySchedule),
		ControlAddr:    v.GetString(KeyControlAddr),
		PushURL:        v.GetString(KeyPushURL),
		ReloadCommand:  v.GetString(KeyReloadCommand),
		SkipVerify:     v.GetBool(KeySkipVerify),
		HTTPTimeout:    v.GetDuration(KeyHTTPTimeout),
	}
	if merged {
		cfg.ConfigFile = configFile
	}
	return cfg, nil
}

// Validate reports settings that would make every check fail.
func (c Config) Validate() error {
	switch c.Source {
	case SourceGitHub:
		if c.GitHubOwner == "" || c.GitHubRepo == "" {
			return fmt.Errorf("github source requires github.owner and github.repo")
		}
	case SourceManifest:
		if c.ManifestURL == "" {
			return fmt.Errorf("manifest source requires manifest_url")
		}
	default:
		return fmt.Errorf("unknown source %q (want %s or %s)", c.Source, SourceGitHub, SourceManifest)
	}
	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			return fmt.Errorf("invalid schedule %q: %w", c.Schedule, err)
		}
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http_timeout must be positive")
	}
	return nil
}

// resolveHome picks the state directory: explicit option, then
// PUSH_UPDATER_HOME, then the legacy HOME_DIR variable, then the default.
func resolveHome(v *viper.Viper, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if h := v.GetString(KeyHome); h != "" {
		return h
	}
	if h := os.Getenv("HOME_DIR"); h != "" {
		return h
	}
	return Defaults().HomeDir
}

func mergeConfigFile(v *viper.Viper, path string, required bool) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		if required {
			return false, fmt.Errorf("config file %s not found", path)
		}
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return false, fmt.Errorf("config path %s is a directory", path)
	}
	//nolint:gosec // G304: the config path is user supplied
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return false, nil
	}
	if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

func setDefaults(v *viper.Viper, devMode bool) {
	d := Defaults()
	v.SetDefault(KeyAppName, d.AppName)
	v.SetDefault(KeyBinaryPath, "")
	v.SetDefault(KeyBinaryName, "")
	v.SetDefault(KeyCurrentVersion, "")
	v.SetDefault(KeySource, d.Source)
	v.SetDefault(KeyGitHubOwner, d.GitHubOwner)
	v.SetDefault(KeyGitHubRepo, d.GitHubRepo)
	v.SetDefault(KeyGitHubAPI, d.GitHubAPI)
	v.SetDefault(KeyManifestURL, "")
	v.SetDefault(KeyChannel, d.Channel)
	v.SetDefault(KeyDevMode, devMode)
	v.SetDefault(KeyLocale, d.Locale)
	v.SetDefault(KeySchedule, d.Schedule)
	v.SetDefault(KeyControlAddr, d.ControlAddr)
	v.SetDefault(KeyPushURL, "")
	v.SetDefault(KeyReloadCommand, "")
	v.SetDefault(KeySkipVerify, false)
	v.SetDefault(KeyHTTPTimeout, d.HTTPTimeout)
}
