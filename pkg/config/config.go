// Package config handles loading and managing SignalScope scoring configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/signalscope/signalscope/pkg/scoring"
	"github.com/signalscope/signalscope/pkg/signal"
)

// Config is the top-level configuration file for SignalScope.
type Config struct {
	Scoring ScoringConfig `yaml:"scoring"`
}

// ScoringConfig is the file form of scoring.WeightConfig. Every field is an
// overlay: unset maps and zero numbers keep the built-in default.
type ScoringConfig struct {
	Weights              map[string]float64            `yaml:"weights,omitempty"`
	DecayHalfLifeDays    map[string]float64            `yaml:"decay_half_life_days,omitempty"`
	RetentionHorizonDays int                           `yaml:"retention_horizon_days,omitempty"`
	MinSampleSize        int                           `yaml:"min_sample_size,omitempty"`
	Thresholds           map[string]signal.Thresholds  `yaml:"thresholds,omitempty"`
	BaseWeights          map[string]float64            `yaml:"base_weights,omitempty"`
	Coefficients         map[string]map[string]float64 `yaml:"coefficients,omitempty"`
	TrendWindowDays      int                           `yaml:"trend_window_days,omitempty"`
	PriorityBands        *scoring.PriorityBands        `yaml:"priority_bands,omitempty"`
	MaxActions           int                           `yaml:"max_actions,omitempty"`
	InvalidSignalPolicy  string                        `yaml:"invalid_signal_policy,omitempty"`
}

// DefaultConfig returns a Config with no overrides.
func DefaultConfig() *Config {
	return &Config{}
}

// Load reads a config file from the given path.
// If the file does not exist, it returns the default config.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// LoadWeightConfig loads path (or the discovered config file when path is
// empty) and returns the effective scoring configuration.
func LoadWeightConfig(path string) (scoring.WeightConfig, error) {
	if path == "" {
		if wd, err := os.Getwd(); err == nil {
			path = FindConfigFile(wd)
		}
	}
	if path == "" {
		return scoring.DefaultWeightConfig(), nil
	}
	cfg, err := Load(path)
	if err != nil {
		return scoring.WeightConfig{}, err
	}
	return cfg.Scoring.WeightConfig()
}

// WeightConfig overlays the file settings on scoring.DefaultWeightConfig.
// Unknown dimension, signal type or strength names are rejected.
func (s ScoringConfig) WeightConfig() (scoring.WeightConfig, error) {
	wc := scoring.DefaultWeightConfig()

	for name, w := range s.Weights {
		d, err := parseDimension(name)
		if err != nil {
			return wc, fmt.Errorf("weights: %w", err)
		}
		wc.Weights[d] = w
	}
	for name, hl := range s.DecayHalfLifeDays {
		t, err := parseType(name)
		if err != nil {
			return wc, fmt.Errorf("decay_half_life_days: %w", err)
		}
		wc.DecayHalfLifeDays[t] = hl
	}
	for name, th := range s.Thresholds {
		t, err := parseType(name)
		if err != nil {
			return wc, fmt.Errorf("thresholds: %w", err)
		}
		wc.Thresholds[t] = th
	}
	for name, w := range s.BaseWeights {
		st := signal.Strength(name)
		if !knownStrength(st) {
			return wc, fmt.Errorf("base_weights: unknown strength %q", name)
		}
		wc.BaseWeights[st] = w
	}
	for dimName, coeffs := range s.Coefficients {
		d, err := parseDimension(dimName)
		if err != nil {
			return wc, fmt.Errorf("coefficients: %w", err)
		}
		if wc.Coefficients[d] == nil {
			wc.Coefficients[d] = make(map[signal.Type]float64)
		}
		for typeName, v := range coeffs {
			t, err := parseType(typeName)
			if err != nil {
				return wc, fmt.Errorf("coefficients.%s: %w", dimName, err)
			}
			wc.Coefficients[d][t] = v
		}
	}

	if s.RetentionHorizonDays != 0 {
		wc.RetentionHorizonDays = s.RetentionHorizonDays
	}
	if s.MinSampleSize != 0 {
		wc.MinSampleSize = s.MinSampleSize
	}
	if s.TrendWindowDays != 0 {
		wc.TrendWindowDays = s.TrendWindowDays
	}
	if s.PriorityBands != nil {
		wc.PriorityBands = *s.PriorityBands
	}
	if s.MaxActions != 0 {
		wc.MaxActions = s.MaxActions
	}
	if s.InvalidSignalPolicy != "" {
		wc.InvalidSignalPolicy = scoring.InvalidSignalPolicy(s.InvalidSignalPolicy)
	}
	return wc, nil
}

// FromWeightConfig renders a full WeightConfig in file form.
func FromWeightConfig(wc scoring.WeightConfig) ScoringConfig {
	s := ScoringConfig{
		Weights:              make(map[string]float64, len(wc.Weights)),
		DecayHalfLifeDays:    make(map[string]float64, len(wc.DecayHalfLifeDays)),
		RetentionHorizonDays: wc.RetentionHorizonDays,
		MinSampleSize:        wc.MinSampleSize,
		Thresholds:           make(map[string]signal.Thresholds, len(wc.Thresholds)),
		BaseWeights:          make(map[string]float64, len(wc.BaseWeights)),
		Coefficients:         make(map[string]map[string]float64, len(wc.Coefficients)),
		TrendWindowDays:      wc.TrendWindowDays,
		MaxActions:           wc.MaxActions,
		InvalidSignalPolicy:  string(wc.InvalidSignalPolicy),
	}
	bands := wc.PriorityBands
	s.PriorityBands = &bands
	for d, w := range wc.Weights {
		s.Weights[string(d)] = w
	}
	for t, hl := range wc.DecayHalfLifeDays {
		s.DecayHalfLifeDays[string(t)] = hl
	}
	for t, th := range wc.Thresholds {
		s.Thresholds[string(t)] = th
	}
	for st, w := range wc.BaseWeights {
		s.BaseWeights[string(st)] = w
	}
	for d, coeffs := range wc.Coefficients {
		m := make(map[string]float64, len(coeffs))
		for t, v := range coeffs {
			m[string(t)] = v
		}
		s.Coefficients[string(d)] = m
	}
	return s
}

func parseDimension(name string) (scoring.Dimension, error) {
	for _, d := range scoring.AllDimensions() {
		if string(d) == name {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown dimension %q", name)
}

func parseType(name string) (signal.Type, error) {
	t := signal.Type(name)
	if !t.IsKnown() {
		return "", fmt.Errorf("unknown signal type %q", name)
	}
	return t, nil
}

func knownStrength(s signal.Strength) bool {
	for _, k := range signal.Strengths() {
		if k == s {
			return true
		}
	}
	return false
}

// FindConfigFile looks for .signalscope/config.yaml in the given directory
// and its parents, returning the path if found, or "" if not.
func FindConfigFile(dir string) string {
	for {
		candidate := filepath.Join(dir, ".signalscope", "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// CacheDir returns the per-user SignalScope cache directory.
func CacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to temp dir if HOME isn't available
		home = os.TempDir()
	}
	return filepath.Join(home, ".cache", "signalscope")
}

// RecordDir returns where the CLI archives score records locally.
func RecordDir() string {
	return filepath.Join(CacheDir(), "records")
}
