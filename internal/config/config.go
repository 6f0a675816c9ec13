// Package config supplies the runtime settings for scraping sessions:
// rate limits, error thresholds and per-agency feature flags. Values come from
// an optional config file and environment variables, falling back to
// hard-coded defaults when the configuration source is unavailable.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/regscan/enforcement-ingest/internal/domain/enforcement"
)

// Default values used when no configuration source overrides them.
const (
	DefaultMaxPagesPerSession           = 50
	DefaultNetworkTimeout               = 30 * time.Second
	DefaultMaxConsecutiveErrors         = 5
	DefaultPauseBetweenPages            = 2 * time.Second
	DefaultBatchSize                    = 25
	DefaultConsecutiveExistingThreshold = 1
)

// Default agency endpoints; overridable for tests and proxies.
const (
	DefaultHSEBaseURL = "https://resources.hse.gov.uk"
	DefaultEABaseURL  = "https://environment.data.gov.uk"
)

// Settings holds the active run-time configuration for the scraping engine.
type Settings struct {
	// MaxPagesPerSession caps the page budget when the caller does not supply
	// one.
	MaxPagesPerSession int `mapstructure:"max_pages_per_session"`

	// NetworkTimeout bounds each list or detail fetch.
	NetworkTimeout time.Duration `mapstructure:"network_timeout"`

	// MaxConsecutiveErrors is the cumulative error count that fails a session.
	MaxConsecutiveErrors int `mapstructure:"max_consecutive_errors"`

	// PauseBetweenPages is the politeness delay between page/batch fetches.
	PauseBetweenPages time.Duration `mapstructure:"pause_between_pages"`

	// BatchSize caps how many item summaries a processing log captures.
	BatchSize int `mapstructure:"batch_size"`

	// ConsecutiveExistingThreshold is the minimum number of records a
	// boundary must contain before the all-exist heuristic may fire.
	ConsecutiveExistingThreshold int `mapstructure:"consecutive_existing_threshold"`

	// HSEBaseURL is the root of the HSE public register site.
	HSEBaseURL string `mapstructure:"hse_base_url"`

	// EABaseURL is the root of the EA enforcement action API.
	EABaseURL string `mapstructure:"ea_base_url"`

	// Agencies enables or disables scraping per agency and enforcement type.
	// Missing entries default to enabled.
	Agencies map[string]AgencyFlags `mapstructure:"agencies"`
}

// AgencyFlags are the per-agency feature-enable flags.
type AgencyFlags struct {
	Cases   *bool `mapstructure:"cases"`
	Notices *bool `mapstructure:"notices"`
}

// Enabled reports whether scraping is switched on for the agency and
// enforcement type. Agencies without explicit flags are enabled.
func (s *Settings) Enabled(agency enforcement.Agency, enforcementType enforcement.Type) bool {
	flags, ok := s.Agencies[string(agency)]
	if !ok {
		return true
	}

	var flag *bool
	switch enforcementType {
	case enforcement.TypeCase:
		flag = flags.Cases
	case enforcement.TypeNotice:
		flag = flags.Notices
	}
	if flag == nil {
		return true
	}
	return *flag
}

// Load reads settings from the optional config file and SCRAPER_* environment
// variables. A missing config file is not an error; defaults apply.
func Load(path string) (*Settings, error) {
	v := viper.New()

	v.SetDefault("max_pages_per_session", DefaultMaxPagesPerSession)
	v.SetDefault("network_timeout", DefaultNetworkTimeout)
	v.SetDefault("max_consecutive_errors", DefaultMaxConsecutiveErrors)
	v.SetDefault("pause_between_pages", DefaultPauseBetweenPages)
	v.SetDefault("batch_size", DefaultBatchSize)
	v.SetDefault("consecutive_existing_threshold", DefaultConsecutiveExistingThreshold)
	v.SetDefault("hse_base_url", DefaultHSEBaseURL)
	v.SetDefault("ea_base_url", DefaultEABaseURL)

	v.SetEnvPrefix("SCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config file %s: %w", path, err)
			}
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("unmarshaling settings: %w", err)
	}

	if err := settings.validate(); err != nil {
		return nil, err
	}

	return &settings, nil
}

func (s *Settings) validate() error {
	if s.MaxPagesPerSession <= 0 {
		return fmt.Errorf("max_pages_per_session must be positive, got %d", s.MaxPagesPerSession)
	}
	if s.NetworkTimeout <= 0 {
		return fmt.Errorf("network_timeout must be positive, got %s", s.NetworkTimeout)
	}
	if s.MaxConsecutiveErrors <= 0 {
		return fmt.Errorf("max_consecutive_errors must be positive, got %d", s.MaxConsecutiveErrors)
	}
	if s.PauseBetweenPages < 0 {
		return fmt.Errorf("pause_between_pages must not be negative, got %s", s.PauseBetweenPages)
	}
	if s.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", s.BatchSize)
	}
	if s.ConsecutiveExistingThreshold <= 0 {
		return fmt.Errorf("consecutive_existing_threshold must be positive, got %d", s.ConsecutiveExistingThreshold)
	}
	return nil
}
