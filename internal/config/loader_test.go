package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/routevox/routevox/internal/config"
)

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader(empty): %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr=%q, want :8080", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level=%q, want info", cfg.Server.LogLevel)
	}
	if cfg.Matching.Cutoff != 0.6 {
		t.Errorf("cutoff=%v, want 0.6", cfg.Matching.Cutoff)
	}
	if cfg.Session.CountdownDelay.Std() != 3*time.Second {
		t.Errorf("countdown_delay=%v, want 3s", cfg.Session.CountdownDelay.Std())
	}
	if cfg.Session.ErrorClearDelay.Std() != 1500*time.Millisecond {
		t.Errorf("error_clear_delay=%v, want 1.5s", cfg.Session.ErrorClearDelay.Std())
	}
}

func TestLoadFromReader_FullFile(t *testing.T) {
	t.Parallel()

	const yaml = `
server:
  listen_addr: ":9090"
  log_level: debug
matching:
  cutoff: 0.5
  phonetic_threshold: 0.65
  fuzzy_threshold: 0.9
session:
  auto_confirm_threshold: 0.8
  countdown_delay: 5s
  error_clear_delay: 750ms
  success_delay: 1s
aliases:
  db_path: /var/lib/routevox/aliases.db
analytics:
  postgres_dsn: postgres://localhost:5432/routevox
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("listen_addr=%q, want :9090", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("log_level=%q, want debug", cfg.Server.LogLevel)
	}
	if cfg.Matching.PhoneticThreshold != 0.65 {
		t.Errorf("phonetic_threshold=%v, want 0.65", cfg.Matching.PhoneticThreshold)
	}
	if cfg.Session.CountdownDelay.Std() != 5*time.Second {
		t.Errorf("countdown_delay=%v, want 5s", cfg.Session.CountdownDelay.Std())
	}
	if cfg.Session.ErrorClearDelay.Std() != 750*time.Millisecond {
		t.Errorf("error_clear_delay=%v, want 750ms", cfg.Session.ErrorClearDelay.Std())
	}
	if cfg.Aliases.DBPath != "/var/lib/routevox/aliases.db" {
		t.Errorf("db_path=%q", cfg.Aliases.DBPath)
	}
	if cfg.Analytics.PostgresDSN == "" {
		t.Error("postgres_dsn not loaded")
	}
}

func TestLoadFromReader_PartialOverlay(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader("matching:\n  cutoff: 0.4\n"))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Matching.Cutoff != 0.4 {
		t.Errorf("cutoff=%v, want 0.4", cfg.Matching.Cutoff)
	}
	// Untouched fields keep their defaults.
	if cfg.Matching.FuzzyThreshold != 0.85 {
		t.Errorf("fuzzy_threshold=%v, want default 0.85", cfg.Matching.FuzzyThreshold)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader("server:\n  listne_addr: \":8080\"\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantSub string
	}{
		{
			name:    "missing listen addr",
			mutate:  func(c *config.Config) { c.Server.ListenAddr = "" },
			wantSub: "server.listen_addr",
		},
		{
			name:    "bad log level",
			mutate:  func(c *config.Config) { c.Server.LogLevel = "verbose" },
			wantSub: "server.log_level",
		},
		{
			name:    "tls missing key",
			mutate:  func(c *config.Config) { c.Server.TLS = &config.TLSConfig{CertFile: "cert.pem"} },
			wantSub: "server.tls",
		},
		{
			name:    "cutoff out of range",
			mutate:  func(c *config.Config) { c.Matching.Cutoff = 1.5 },
			wantSub: "matching.cutoff",
		},
		{
			name:    "cutoff zero",
			mutate:  func(c *config.Config) { c.Matching.Cutoff = 0 },
			wantSub: "matching.cutoff",
		},
		{
			name: "phonetic above fuzzy",
			mutate: func(c *config.Config) {
				c.Matching.PhoneticThreshold = 0.9
				c.Matching.FuzzyThreshold = 0.8
			},
			wantSub: "must not exceed",
		},
		{
			name:    "negative countdown",
			mutate:  func(c *config.Config) { c.Session.CountdownDelay = config.Duration(-time.Second) },
			wantSub: "session.countdown_delay",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.Default()
			tt.mutate(cfg)
			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("Validate returned nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestValidate_DefaultsAreValid(t *testing.T) {
	t.Parallel()

	if err := config.Validate(config.Default()); err != nil {
		t.Errorf("Validate(Default())=%v, want nil", err)
	}
}
