// Package config parses sathub.toml hub configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file looked up by Load.
const FileName = "sathub.toml"

// DefaultAccentColor is the default TUI accent color (indigo).
const DefaultAccentColor = "#7D56F4"

// hexColorRe matches a 6-digit hex color string like "#7D56F4".
var hexColorRe = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Config is the top-level sathub.toml configuration.
type Config struct {
	Hub           HubConfig           `toml:"hub"`
	Integrador    IntegradorConfig    `toml:"integrador"`
	Fiscal        FiscalConfig        `toml:"fiscal"`
	Journal       JournalConfig       `toml:"journal"`
	HTTP          HTTPConfig          `toml:"http"`
	Log           LogConfig           `toml:"log"`
	Notifications NotificationsConfig `toml:"notifications"`
	TUI           TUIConfig           `toml:"tui"`
}

// HubConfig holds the terminal identity and data locations.
type HubConfig struct {
	DataDir     string `toml:"data_dir"`     // session and journal files live here
	Caixa       int    `toml:"caixa"`        // default terminal index (0..999)
	HistorySize int    `toml:"history_size"` // session numbers kept per terminal
}

// IntegradorConfig controls the file-system exchange with the Integrador.
type IntegradorConfig struct {
	Path                 string `toml:"path"` // base dir holding input/ and output/
	Pattern              string `toml:"pattern"`
	GracePeriodMS        int    `toml:"grace_period_ms"`
	PollIntervalMS       int    `toml:"poll_interval_ms"`
	TimeoutSeconds       int    `toml:"timeout_seconds"` // 0 = wait forever
	ChaveAcessoValidador string `toml:"chave_acesso_validador"`
	RestartRetries       int    `toml:"restart_retries"`    // watcher restarts before giving up
	RestartBackoffMS     int    `toml:"restart_backoff_ms"` // pause between watcher restarts
}

// FiscalConfig points at the external fiscal device driver.
type FiscalConfig struct {
	Driver         string `toml:"driver"`
	CodigoAtivacao string `toml:"codigo_ativacao"`
}

// JournalConfig bounds the persisted journals and their write policy.
type JournalConfig struct {
	SalesCapacity  int `toml:"sales_capacity"`
	ErrorsCapacity int `toml:"errors_capacity"`
	WriteRetries   int `toml:"write_retries"`
	LockWaitMS     int `toml:"lock_wait_ms"`
}

// HTTPConfig controls the HTTP surface started by `sathub serve`.
type HTTPConfig struct {
	Addr string `toml:"addr"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error, critical
	Format string `toml:"format"` // text or json
}

// NotificationsConfig controls webhook notifications for recorded errors.
type NotificationsConfig struct {
	URL     string `toml:"url"`
	OnError bool   `toml:"on_error"`
}

// TUIConfig controls the monitor appearance.
type TUIConfig struct {
	AccentColor string `toml:"accent_color"`
}

// GracePeriod returns the Integrador grace period as a duration.
func (c IntegradorConfig) GracePeriod() time.Duration {
	return time.Duration(c.GracePeriodMS) * time.Millisecond
}

// PollInterval returns the Integrador poll interval as a duration.
func (c IntegradorConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// Timeout returns the correlation timeout. Zero means no timeout.
func (c IntegradorConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RestartBackoff returns the pause between watcher restarts.
func (c IntegradorConfig) RestartBackoff() time.Duration {
	return time.Duration(c.RestartBackoffMS) * time.Millisecond
}

// InputDir is where request documents are written.
func (c IntegradorConfig) InputDir() string {
	return filepath.Join(NormalizePath(c.Path), "input")
}

// OutputDir is where the Integrador writes its responses.
func (c IntegradorConfig) OutputDir() string {
	return filepath.Join(NormalizePath(c.Path), "output")
}

// LockWait returns the bounded wait for the journal advisory lock.
func (c JournalConfig) LockWait() time.Duration {
	return time.Duration(c.LockWaitMS) * time.Millisecond
}

// NormalizePath converts Windows-style separators used by Integrador installs
// into forward slashes and cleans the result.
func NormalizePath(p string) string {
	if p == "" {
		return p
	}
	return filepath.Clean(strings.ReplaceAll(p, `\`, "/"))
}

// Validate checks the configuration for issues that would cause confusing
// runtime failures. It returns all found issues joined together.
func (c *Config) Validate() error {
	var errs []error

	if c.Hub.DataDir == "" {
		errs = append(errs, fmt.Errorf("hub.data_dir must not be empty"))
	}
	if c.Hub.Caixa < 0 || c.Hub.Caixa > 999 {
		errs = append(errs, fmt.Errorf("hub.caixa must be between 0 and 999"))
	}
	if c.Hub.HistorySize <= 0 {
		errs = append(errs, fmt.Errorf("hub.history_size must be > 0"))
	}

	if c.Integrador.Pattern == "" {
		errs = append(errs, fmt.Errorf("integrador.pattern must not be empty"))
	} else if _, err := filepath.Match(c.Integrador.Pattern, "x"); err != nil {
		errs = append(errs, fmt.Errorf("integrador.pattern is not a valid glob: %v", err))
	}
	if c.Integrador.GracePeriodMS < 0 {
		errs = append(errs, fmt.Errorf("integrador.grace_period_ms must be >= 0"))
	}
	if c.Integrador.PollIntervalMS <= 0 {
		errs = append(errs, fmt.Errorf("integrador.poll_interval_ms must be > 0"))
	}
	if c.Integrador.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("integrador.timeout_seconds must be >= 0 (0 = wait forever)"))
	}
	if c.Integrador.RestartRetries < 0 {
		errs = append(errs, fmt.Errorf("integrador.restart_retries must be >= 0"))
	}
	if c.Integrador.RestartBackoffMS < 0 {
		errs = append(errs, fmt.Errorf("integrador.restart_backoff_ms must be >= 0"))
	}

	if c.Journal.SalesCapacity <= 0 {
		errs = append(errs, fmt.Errorf("journal.sales_capacity must be > 0"))
	}
	if c.Journal.ErrorsCapacity <= 0 {
		errs = append(errs, fmt.Errorf("journal.errors_capacity must be > 0"))
	}
	if c.Journal.WriteRetries <= 0 {
		errs = append(errs, fmt.Errorf("journal.write_retries must be > 0"))
	}
	if c.Journal.LockWaitMS < 0 {
		errs = append(errs, fmt.Errorf("journal.lock_wait_ms must be >= 0"))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "critical":
	default:
		errs = append(errs, fmt.Errorf("log.level must be one of debug, info, warn, error, critical"))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be \"text\" or \"json\""))
	}

	if c.TUI.AccentColor != "" && !hexColorRe.MatchString(c.TUI.AccentColor) {
		errs = append(errs, fmt.Errorf("tui.accent_color must be a hex color (e.g. \"#7D56F4\")"))
	}

	if c.Notifications.URL != "" {
		u, parseErr := url.ParseRequestURI(c.Notifications.URL)
		if parseErr != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Errorf("notifications.url must be a valid http or https URL"))
		}
	}

	return errors.Join(errs...)
}

// Defaults returns a Config with the hub defaults.
func Defaults() Config {
	return Config{
		Hub: HubConfig{
			DataDir:     ".",
			Caixa:       1,
			HistorySize: 100,
		},
		Integrador: IntegradorConfig{
			Path:             "/opt/Integrador",
			Pattern:          "*.xml",
			GracePeriodMS:    2000,
			PollIntervalMS:   1000,
			TimeoutSeconds:   60,
			RestartRetries:   5,
			RestartBackoffMS: 2000,
		},
		Journal: JournalConfig{
			SalesCapacity:  20,
			ErrorsCapacity: 1000,
			WriteRetries:   3,
			LockWaitMS:     250,
		},
		HTTP: HTTPConfig{
			Addr: ":5000",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Notifications: NotificationsConfig{
			OnError: true,
		},
		TUI: TUIConfig{
			AccentColor: DefaultAccentColor,
		},
	}
}

// Load reads sathub.toml from the given path. If path is empty, it walks up
// from the current working directory looking for sathub.toml; when none is
// found the defaults are returned. Returns an error if the file contains
// unknown keys (likely typos).
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		found, err := findConfig()
		if err != nil {
			return &cfg, nil
		}
		path = found
	}

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config: unknown keys in %s: %s (possible typos?)", path, joinKeys(keys))
	}

	// Relative data dirs resolve against the config file location.
	if !filepath.IsAbs(cfg.Hub.DataDir) {
		cfg.Hub.DataDir = filepath.Join(filepath.Dir(path), cfg.Hub.DataDir)
	}

	return &cfg, nil
}

// joinKeys formats a slice of key names for display.
func joinKeys(keys []string) string {
	return strings.Join(keys, ", ")
}

// findConfig walks up from the current directory looking for sathub.toml.
func findConfig() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("config: get working directory: %w", err)
	}

	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("config: %s not found (searched up from %s)", FileName, dir)
		}
		dir = parent
	}
}

// InitFile writes a default sathub.toml template to the given directory.
func InitFile(dir string) (string, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("config: %s already exists at %s", FileName, path)
	}

	content := `# sathub.toml — SATHub configuration
# Place this file next to the hub data directory.

[hub]
data_dir = "."      # sessoes-cx-N.json, ultima-venda-cx-N.json, ultimos-erros.json
caixa = 1           # default terminal (0..999)
history_size = 100  # session numbers that must not repeat

[integrador]
path = "/opt/Integrador"  # holds input/ and output/
pattern = "*.xml"
grace_period_ms = 2000    # wait for the Integrador to finish writing
poll_interval_ms = 1000
timeout_seconds = 60      # 0 = wait forever
chave_acesso_validador = ""
restart_retries = 5       # watcher restarts when output/ becomes unreadable
restart_backoff_ms = 2000

[fiscal]
driver = ""          # executable bridging to the fiscal device library
codigo_ativacao = ""

[journal]
sales_capacity = 20
errors_capacity = 1000
write_retries = 3
lock_wait_ms = 250

[http]
addr = ":5000"

[log]
level = "info"   # debug, info, warn, error, critical
format = "text"  # text or json

[notifications]
url = ""         # HTTP webhook for recorded errors (empty = disabled)
on_error = true

[tui]
accent_color = "#7D56F4"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("config: write %s: %w", path, err)
	}
	return path, nil
}
