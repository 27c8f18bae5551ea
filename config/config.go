// Package config loads and validates simulation settings from defaults, a
// YAML file and BANDIT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/n0madic/go-bernoulli-bandits/environment"
)

// ErrInvalidParameter is the environment package's sentinel, shared so callers
// can match configuration errors with errors.Is.
var ErrInvalidParameter = environment.ErrInvalidParameter

// Defaults follow the classic five slot machine setup.
const (
	DefaultNumArms     = 5
	DefaultMaxWinRatio = 0.2
	DefaultNumTrials   = 10000
	DefaultRuns        = 1
)

// Config holds every recognized simulation option.
type Config struct {
	// NumArms is the number of machines. Replaced by len(WinRates) when those are given.
	NumArms int `yaml:"num_arms" validate:"gte=0"`
	// MaxWinRatio bounds randomly generated win rates. Ignored with WinRates.
	MaxWinRatio float64 `yaml:"max_win_ratio"`
	// WinRates fixes the hidden win rate of every arm.
	WinRates []float64 `yaml:"win_rates" validate:"omitempty,dive,gt=0,lt=1"`
	// NumTrials is the number of rounds per run.
	NumTrials int `yaml:"num_trials" validate:"gt=0"`
	// Seed makes runs reproducible; nil means a time based seed.
	Seed *uint64 `yaml:"seed"`

	// Runs is the number of independent simulations; run i uses Seed+i.
	Runs int `yaml:"runs" validate:"gt=0"`
	// Workers limits concurrent runs in a batch; 0 means one per CPU.
	Workers int `yaml:"workers" validate:"gte=0"`
	// LazyOutcomes draws rewards on demand instead of precomputing the table.
	LazyOutcomes bool `yaml:"lazy_outcomes"`
}

var validate = validator.New()

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		NumArms:     DefaultNumArms,
		MaxWinRatio: DefaultMaxWinRatio,
		NumTrials:   DefaultNumTrials,
		Runs:        DefaultRuns,
	}
}

// Load builds a configuration from defaults, the optional YAML file at path and
// environment overrides, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("BANDIT_NUM_ARMS"); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: BANDIT_NUM_ARMS: %v", ErrInvalidParameter, err)
		}
		cfg.NumArms = i
	}
	if v := os.Getenv("BANDIT_MAX_WIN_RATIO"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: BANDIT_MAX_WIN_RATIO: %v", ErrInvalidParameter, err)
		}
		cfg.MaxWinRatio = f
	}
	if v := os.Getenv("BANDIT_WIN_RATES"); v != "" {
		rates, err := ParseWinRates(v)
		if err != nil {
			return err
		}
		cfg.WinRates = rates
	}
	if v := os.Getenv("BANDIT_NUM_TRIALS"); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: BANDIT_NUM_TRIALS: %v", ErrInvalidParameter, err)
		}
		cfg.NumTrials = i
	}
	if v := os.Getenv("BANDIT_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: BANDIT_SEED: %v", ErrInvalidParameter, err)
		}
		cfg.Seed = &seed
	}
	if v := os.Getenv("BANDIT_RUNS"); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: BANDIT_RUNS: %v", ErrInvalidParameter, err)
		}
		cfg.Runs = i
	}
	if v := os.Getenv("BANDIT_WORKERS"); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: BANDIT_WORKERS: %v", ErrInvalidParameter, err)
		}
		cfg.Workers = i
	}
	if v := os.Getenv("BANDIT_LAZY_OUTCOMES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: BANDIT_LAZY_OUTCOMES: %v", ErrInvalidParameter, err)
		}
		cfg.LazyOutcomes = b
	}
	return nil
}

// ParseWinRates parses a comma separated list such as "0.15,0.04,0.13".
func ParseWinRates(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	rates := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: win rate %q: %v", ErrInvalidParameter, p, err)
		}
		rates = append(rates, f)
	}
	return rates, nil
}

// Validate checks every value against its domain. When WinRates is set,
// NumArms is taken from its length and MaxWinRatio is not checked.
func (c *Config) Validate() error {
	if len(c.WinRates) > 0 {
		c.NumArms = len(c.WinRates)
	} else {
		if c.NumArms <= 0 {
			return fmt.Errorf("%w: num_arms must be positive, got %d", ErrInvalidParameter, c.NumArms)
		}
		if !(c.MaxWinRatio > 0 && c.MaxWinRatio <= 1) {
			return fmt.Errorf("%w: max_win_ratio must be in (0, 1], got %v", ErrInvalidParameter, c.MaxWinRatio)
		}
	}

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidParameter, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	return nil
}

