// Package config loads response-guard settings from defaults, an optional
// config file and RESPONSE_GUARD_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rcliao/response-guard/internal/chunker"
	"github.com/rcliao/response-guard/internal/detector"
	"github.com/rcliao/response-guard/internal/memory"
	"github.com/rcliao/response-guard/internal/session"
	"github.com/rcliao/response-guard/internal/similarity"
	"github.com/rcliao/response-guard/internal/verify"
)

const (
	envPrefix  = "RESPONSE_GUARD"
	configDir  = ".response-guard"
	configName = "config"
)

// Config is the full application configuration.
type Config struct {
	Memory       MemoryConfig       `mapstructure:"memory"`
	Session      SessionConfig      `mapstructure:"session"`
	Verifier     VerifierConfig     `mapstructure:"verifier"`
	Similarity   SimilarityConfig   `mapstructure:"similarity"`
	Policy       PolicyConfig       `mapstructure:"policy"`
	Intervention InterventionConfig `mapstructure:"intervention"`
	Store        StoreConfig        `mapstructure:"store"`
	Log          LogConfig          `mapstructure:"log"`
}

type MemoryConfig struct {
	ShortTermCapacity   int     `mapstructure:"short_term_capacity"`
	LongTermCapacity    int     `mapstructure:"long_term_capacity"`
	ImportanceThreshold float64 `mapstructure:"importance_threshold"`
	SummaryEvery        int     `mapstructure:"summary_every"`
	RelevantLimit       int     `mapstructure:"relevant_limit"`
}

type SessionConfig struct {
	IdleTimeout        time.Duration `mapstructure:"idle_timeout"`
	GreetingMinRecords int           `mapstructure:"greeting_min_records"`
}

type VerifierConfig struct {
	NewSessionTurns int `mapstructure:"new_session_turns"`
	RecentInputs    int `mapstructure:"recent_inputs"`
}

type SimilarityConfig struct {
	Threshold     float64 `mapstructure:"threshold"`
	MinNGramChars int     `mapstructure:"min_ngram_chars"`
}

type PolicyConfig struct {
	EscalateFlagCount      int  `mapstructure:"escalate_flag_count"`
	CoOccurrenceSevere     bool `mapstructure:"co_occurrence_severe"`
	ImmediateHighFlagCount int  `mapstructure:"immediate_high_flag_count"`
}

type InterventionConfig struct {
	AppendGuidance bool `mapstructure:"append_guidance"`
}

type StoreConfig struct {
	DBPath        string `mapstructure:"db_path"`
	SaveEveryTurn bool   `mapstructure:"save_every_turn"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	mem := memory.DefaultOptions()
	v.SetDefault("memory.short_term_capacity", mem.ShortTermCapacity)
	v.SetDefault("memory.long_term_capacity", mem.LongTermCapacity)
	v.SetDefault("memory.importance_threshold", mem.ImportanceThreshold)
	v.SetDefault("memory.summary_every", mem.SummaryEvery)
	v.SetDefault("memory.relevant_limit", mem.RelevantLimit)

	v.SetDefault("session.idle_timeout", session.DefaultIdleTimeout)
	v.SetDefault("session.greeting_min_records", session.DefaultGreetingMinRecords)

	v.SetDefault("verifier.new_session_turns", verify.DefaultNewSessionTurns)
	v.SetDefault("verifier.recent_inputs", verify.DefaultRecentInputs)

	v.SetDefault("similarity.threshold", similarity.DefaultThreshold)
	v.SetDefault("similarity.min_ngram_chars", similarity.DefaultMinNGramChars)

	pol := detector.DefaultPolicy()
	v.SetDefault("policy.escalate_flag_count", pol.EscalateFlagCount)
	v.SetDefault("policy.co_occurrence_severe", pol.CoOccurrenceSevere)
	v.SetDefault("policy.immediate_high_flag_count", pol.ImmediateHighFlagCount)

	v.SetDefault("intervention.append_guidance", true)

	v.SetDefault("store.db_path", filepath.Join("~", configDir, "memory.db"))
	v.SetDefault("store.save_every_turn", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Load reads the configuration. An empty path looks for config.{yaml,toml,json}
// in ~/.response-guard and falls back to defaults when none exists; an
// explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName(configName)
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, configDir))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	dbPath, err := expandHome(cfg.Store.DBPath)
	if err != nil {
		return nil, err
	}
	cfg.Store.DBPath = dbPath

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the components cannot run with.
func (c *Config) Validate() error {
	var errs []error
	positive := func(key string, n int) {
		if n <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0, got %d", key, n))
		}
	}
	nonNegative := func(key string, n int) {
		if n < 0 {
			errs = append(errs, fmt.Errorf("%s must be >= 0, got %d", key, n))
		}
	}
	fraction := func(key string, f float64) {
		if f <= 0 || f > 1 {
			errs = append(errs, fmt.Errorf("%s must be in (0,1], got %g", key, f))
		}
	}

	positive("memory.short_term_capacity", c.Memory.ShortTermCapacity)
	positive("memory.long_term_capacity", c.Memory.LongTermCapacity)
	fraction("memory.importance_threshold", c.Memory.ImportanceThreshold)
	positive("memory.summary_every", c.Memory.SummaryEvery)
	positive("memory.relevant_limit", c.Memory.RelevantLimit)
	if c.Session.IdleTimeout <= 0 {
		errs = append(errs, fmt.Errorf("session.idle_timeout must be > 0, got %s", c.Session.IdleTimeout))
	}
	nonNegative("session.greeting_min_records", c.Session.GreetingMinRecords)
	positive("verifier.new_session_turns", c.Verifier.NewSessionTurns)
	positive("verifier.recent_inputs", c.Verifier.RecentInputs)
	fraction("similarity.threshold", c.Similarity.Threshold)
	positive("similarity.min_ngram_chars", c.Similarity.MinNGramChars)
	nonNegative("policy.escalate_flag_count", c.Policy.EscalateFlagCount)
	nonNegative("policy.immediate_high_flag_count", c.Policy.ImmediateHighFlagCount)
	if c.Store.DBPath == "" {
		errs = append(errs, errors.New("store.db_path is empty"))
	}
	return errors.Join(errs...)
}

// MemoryOptions returns the memory store options.
func (c *Config) MemoryOptions() memory.Options {
	return memory.Options{
		ShortTermCapacity:   c.Memory.ShortTermCapacity,
		LongTermCapacity:    c.Memory.LongTermCapacity,
		ImportanceThreshold: c.Memory.ImportanceThreshold,
		SummaryEvery:        c.Memory.SummaryEvery,
		RelevantLimit:       c.Memory.RelevantLimit,
	}
}

// BoundaryDetector returns a session boundary detector.
func (c *Config) BoundaryDetector() *session.Detector {
	d := session.NewDetector()
	d.IdleTimeout = c.Session.IdleTimeout
	d.GreetingMinRecords = c.Session.GreetingMinRecords
	return d
}

// VerifierOptions returns the memory verifier options.
func (c *Config) VerifierOptions() verify.Options {
	return verify.Options{
		NewSessionTurns: c.Verifier.NewSessionTurns,
		RecentInputs:    c.Verifier.RecentInputs,
	}
}

// SimilarityOptions returns the repetition analyzer options.
func (c *Config) SimilarityOptions() similarity.Options {
	return similarity.Options{
		Threshold:     c.Similarity.Threshold,
		MinNGramChars: c.Similarity.MinNGramChars,
		WindowSizes:   chunker.DefaultWindowSizes,
	}
}

// DetectorPolicy returns the severity aggregation policy.
func (c *Config) DetectorPolicy() detector.Policy {
	return detector.Policy{
		EscalateFlagCount:      c.Policy.EscalateFlagCount,
		CoOccurrenceSevere:     c.Policy.CoOccurrenceSevere,
		ImmediateHighFlagCount: c.Policy.ImmediateHighFlagCount,
	}
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
