package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"hub.caixa", cfg.Hub.Caixa, 1},
		{"hub.history_size", cfg.Hub.HistorySize, 100},
		{"integrador.pattern", cfg.Integrador.Pattern, "*.xml"},
		{"integrador.grace_period_ms", cfg.Integrador.GracePeriodMS, 2000},
		{"integrador.poll_interval_ms", cfg.Integrador.PollIntervalMS, 1000},
		{"integrador.timeout_seconds", cfg.Integrador.TimeoutSeconds, 60},
		{"integrador.restart_retries", cfg.Integrador.RestartRetries, 5},
		{"integrador.restart_backoff", cfg.Integrador.RestartBackoff(), 2 * time.Second},
		{"journal.sales_capacity", cfg.Journal.SalesCapacity, 20},
		{"journal.errors_capacity", cfg.Journal.ErrorsCapacity, 1000},
		{"journal.write_retries", cfg.Journal.WriteRetries, 3},
		{"http.addr", cfg.HTTP.Addr, ":5000"},
		{"log.level", cfg.Log.Level, "info"},
		{"log.format", cfg.Log.Format, "text"},
		{"tui.accent_color", cfg.TUI.AccentColor, DefaultAccentColor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		dir := t.TempDir()
		content := `
[hub]
data_dir = "dados"
caixa = 7
history_size = 50

[integrador]
path = 'C:\Integrador'
timeout_seconds = 5
grace_period_ms = 10

[journal]
sales_capacity = 10

[log]
level = "debug"
format = "json"
`
		path := filepath.Join(dir, FileName)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		cfg, err := Load(path)
		if err != nil {
			t.Fatal(err)
		}

		if cfg.Hub.Caixa != 7 {
			t.Errorf("hub.caixa = %d, want 7", cfg.Hub.Caixa)
		}
		if cfg.Hub.HistorySize != 50 {
			t.Errorf("hub.history_size = %d, want 50", cfg.Hub.HistorySize)
		}
		if want := filepath.Join(dir, "dados"); cfg.Hub.DataDir != want {
			t.Errorf("hub.data_dir = %q, want %q", cfg.Hub.DataDir, want)
		}
		if cfg.Integrador.Timeout() != 5*time.Second {
			t.Errorf("timeout = %v, want 5s", cfg.Integrador.Timeout())
		}
		if cfg.Integrador.GracePeriod() != 10*time.Millisecond {
			t.Errorf("grace period = %v, want 10ms", cfg.Integrador.GracePeriod())
		}
		if got := cfg.Integrador.InputDir(); got != filepath.Join("C:/Integrador", "input") {
			t.Errorf("input dir = %q", got)
		}
		if cfg.Journal.SalesCapacity != 10 {
			t.Errorf("journal.sales_capacity = %d, want 10", cfg.Journal.SalesCapacity)
		}
		// untouched keys keep their defaults
		if cfg.Journal.ErrorsCapacity != 1000 {
			t.Errorf("journal.errors_capacity = %d, want 1000", cfg.Journal.ErrorsCapacity)
		}
		if cfg.Log.Format != "json" {
			t.Errorf("log.format = %q, want json", cfg.Log.Format)
		}
	})

	t.Run("unknown keys rejected", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, FileName)
		if err := os.WriteFile(path, []byte("[hub]\ncaxia = 3\n"), 0644); err != nil {
			t.Fatal(err)
		}
		_, err := Load(path)
		if err == nil {
			t.Fatal("expected error for unknown key")
		}
		if !strings.Contains(err.Error(), "hub.caxia") {
			t.Errorf("error should name the key: %v", err)
		}
	})

	t.Run("invalid toml", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, FileName)
		if err := os.WriteFile(path, []byte("[hub\n"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Fatal("expected decode error")
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"caixa too large", func(c *Config) { c.Hub.Caixa = 1000 }, "hub.caixa"},
		{"caixa negative", func(c *Config) { c.Hub.Caixa = -1 }, "hub.caixa"},
		{"empty data dir", func(c *Config) { c.Hub.DataDir = "" }, "hub.data_dir"},
		{"zero history", func(c *Config) { c.Hub.HistorySize = 0 }, "hub.history_size"},
		{"bad pattern", func(c *Config) { c.Integrador.Pattern = "[" }, "integrador.pattern"},
		{"negative timeout", func(c *Config) { c.Integrador.TimeoutSeconds = -1 }, "integrador.timeout_seconds"},
		{"zero poll", func(c *Config) { c.Integrador.PollIntervalMS = 0 }, "integrador.poll_interval_ms"},
		{"negative restarts", func(c *Config) { c.Integrador.RestartRetries = -1 }, "integrador.restart_retries"},
		{"zero retries", func(c *Config) { c.Journal.WriteRetries = 0 }, "journal.write_retries"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad color", func(c *Config) { c.TUI.AccentColor = "purple" }, "tui.accent_color"},
		{"bad url", func(c *Config) { c.Notifications.URL = "ftp://x" }, "notifications.url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}

	t.Run("all issues joined", func(t *testing.T) {
		cfg := Defaults()
		cfg.Hub.Caixa = 5000
		cfg.Log.Format = "xml"
		err := cfg.Validate()
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "hub.caixa") || !strings.Contains(err.Error(), "log.format") {
			t.Errorf("expected both issues, got %v", err)
		}
	})
}

func TestNormalizePath(t *testing.T) {
	tests := []struct{ in, want string }{
		{`C:\Integrador\`, "C:/Integrador"},
		{"/opt/Integrador/", "/opt/Integrador"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizePath(tt.in); got != tt.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestInitFile(t *testing.T) {
	dir := t.TempDir()
	path, err := InitFile(dir)
	if err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("generated file should load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("generated file should validate: %v", err)
	}

	if _, err := InitFile(dir); err == nil {
		t.Error("expected error when file already exists")
	}
}
