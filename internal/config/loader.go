package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. Values not present in the file keep their [Default] values.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required"))
	}
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	errs = append(errs, validateRatio("matching.cutoff", cfg.Matching.Cutoff)...)
	errs = append(errs, validateRatio("matching.phonetic_threshold", cfg.Matching.PhoneticThreshold)...)
	errs = append(errs, validateRatio("matching.fuzzy_threshold", cfg.Matching.FuzzyThreshold)...)
	if cfg.Matching.PhoneticThreshold > cfg.Matching.FuzzyThreshold {
		errs = append(errs, fmt.Errorf("matching.phonetic_threshold %.2f must not exceed matching.fuzzy_threshold %.2f",
			cfg.Matching.PhoneticThreshold, cfg.Matching.FuzzyThreshold))
	}

	errs = append(errs, validateRatio("session.auto_confirm_threshold", cfg.Session.AutoConfirmThreshold)...)
	if cfg.Session.CountdownDelay < 0 {
		errs = append(errs, fmt.Errorf("session.countdown_delay %v must not be negative", cfg.Session.CountdownDelay.Std()))
	}
	if cfg.Session.ErrorClearDelay < 0 {
		errs = append(errs, fmt.Errorf("session.error_clear_delay %v must not be negative", cfg.Session.ErrorClearDelay.Std()))
	}
	if cfg.Session.SuccessDelay < 0 {
		errs = append(errs, fmt.Errorf("session.success_delay %v must not be negative", cfg.Session.SuccessDelay.Std()))
	}

	if cfg.Aliases.DBPath == "" {
		slog.Warn("aliases.db_path is empty; learned aliases will not survive a restart")
	}
	if cfg.Analytics.PostgresDSN == "" {
		slog.Warn("analytics.postgres_dsn is empty; session events are kept in memory only")
	}

	return errors.Join(errs...)
}

// validateRatio checks that v lies in (0, 1].
func validateRatio(name string, v float64) []error {
	if v <= 0 || v > 1 {
		return []error{fmt.Errorf("%s %.2f is out of range (0, 1]", name, v)}
	}
	return nil
}
