package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/signalscope/signalscope/pkg/scoring"
	"github.com/signalscope/signalscope/pkg/signal"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		missing bool
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name:    "non-existent file returns defaults",
			missing: true,
			check: func(t *testing.T, cfg *Config) {
				if cfg.Scoring.Weights != nil {
					t.Errorf("expected no weight overrides, got %v", cfg.Scoring.Weights)
				}
			},
		},
		{
			name: "valid YAML",
			yaml: `
scoring:
  weights:
    intent: 0.5
    moat: 0
  decay_half_life_days:
    job_posting: 45
  min_sample_size: 5
  thresholds:
    funding_round:
      moderate: 2000000
      strong: 20000000
      very_strong: 100000000
  coefficients:
    intent:
      partnership: 10
  priority_bands:
    immediate: 85
    high: 70
    medium: 45
  invalid_signal_policy: skip
`,
			check: func(t *testing.T, cfg *Config) {
				if cfg.Scoring.Weights["intent"] != 0.5 {
					t.Errorf("expected intent weight 0.5, got %f", cfg.Scoring.Weights["intent"])
				}
				if cfg.Scoring.MinSampleSize != 5 {
					t.Errorf("expected min_sample_size 5, got %d", cfg.Scoring.MinSampleSize)
				}
				if cfg.Scoring.Thresholds["funding_round"].VeryStrong != 100_000_000 {
					t.Errorf("unexpected funding thresholds %+v", cfg.Scoring.Thresholds["funding_round"])
				}
				if cfg.Scoring.PriorityBands == nil || cfg.Scoring.PriorityBands.Immediate != 85 {
					t.Errorf("expected immediate band 85, got %+v", cfg.Scoring.PriorityBands)
				}
			},
		},
		{
			name:    "invalid YAML returns error",
			yaml:    "{{invalid yaml",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "config.yaml")

			if !tc.missing {
				if err := os.WriteFile(path, []byte(tc.yaml), 0o644); err != nil {
					t.Fatalf("write test config: %v", err)
				}
			}

			cfg, err := Load(path)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.check != nil {
				tc.check(t, cfg)
			}
		})
	}
}

func TestWeightConfigOverlay(t *testing.T) {
	bands := scoring.PriorityBands{Immediate: 85, High: 70, Medium: 45}
	sc := ScoringConfig{
		Weights:             map[string]float64{"intent": 0.5},
		DecayHalfLifeDays:   map[string]float64{"job_posting": 45},
		Coefficients:        map[string]map[string]float64{"intent": {"partnership": 10}},
		PriorityBands:       &bands,
		InvalidSignalPolicy: "skip",
	}

	wc, err := sc.WeightConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	def := scoring.DefaultWeightConfig()

	if wc.Weights[scoring.DimensionIntent] != 0.5 {
		t.Errorf("intent weight = %f, want 0.5", wc.Weights[scoring.DimensionIntent])
	}
	if wc.Weights[scoring.DimensionTiming] != def.Weights[scoring.DimensionTiming] {
		t.Error("timing weight should keep its default")
	}
	if wc.DecayHalfLifeDays[signal.TypeJobPosting] != 45 {
		t.Errorf("job posting half-life = %f, want 45", wc.DecayHalfLifeDays[signal.TypeJobPosting])
	}
	if wc.Coefficients[scoring.DimensionIntent][signal.TypePartnership] != 10 {
		t.Error("expected partnership coefficient merged into intent")
	}
	if wc.Coefficients[scoring.DimensionIntent][signal.TypeFundingRound] != def.Coefficients[scoring.DimensionIntent][signal.TypeFundingRound] {
		t.Error("funding coefficient should keep its default")
	}
	if wc.PriorityBands != bands {
		t.Errorf("bands = %+v, want %+v", wc.PriorityBands, bands)
	}
	if wc.InvalidSignalPolicy != scoring.PolicySkip {
		t.Errorf("policy = %q, want skip", wc.InvalidSignalPolicy)
	}
	if wc.MinSampleSize != def.MinSampleSize {
		t.Errorf("min sample size = %d, want default %d", wc.MinSampleSize, def.MinSampleSize)
	}
	if _, err := scoring.NewEngine(wc); err != nil {
		t.Errorf("overlay should produce a valid config: %v", err)
	}
}

func TestWeightConfigRejectsUnknownNames(t *testing.T) {
	tests := []struct {
		name string
		sc   ScoringConfig
	}{
		{"dimension", ScoringConfig{Weights: map[string]float64{"vibes": 1}}},
		{"signal type", ScoringConfig{DecayHalfLifeDays: map[string]float64{"rumor": 10}}},
		{"strength", ScoringConfig{BaseWeights: map[string]float64{"huge": 2}}},
		{"coefficient type", ScoringConfig{Coefficients: map[string]map[string]float64{"fit": {"rumor": 1}}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.sc.WeightConfig(); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestFromWeightConfigRoundTrip(t *testing.T) {
	def := scoring.DefaultWeightConfig()

	data, err := yaml.Marshal(&Config{Scoring: FromWeightConfig(def)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), "funding_round") {
		t.Errorf("expected rendered config to list funding_round, got:\n%s", data)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	wc, err := cfg.Scoring.WeightConfig()
	if err != nil {
		t.Fatalf("overlay: %v", err)
	}
	if wc.Weights[scoring.DimensionMoat] != def.Weights[scoring.DimensionMoat] {
		t.Errorf("moat weight changed across round trip")
	}
	if wc.Thresholds[signal.TypeTechnologyAdoption] != def.Thresholds[signal.TypeTechnologyAdoption] {
		t.Errorf("technology thresholds changed across round trip")
	}
}

func TestLoadWeightConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("scoring:\n  max_actions: 5\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	wc, err := LoadWeightConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wc.MaxActions != 5 {
		t.Errorf("max actions = %d, want 5", wc.MaxActions)
	}
}

func TestRecordDir(t *testing.T) {
	dir := RecordDir()
	if !strings.HasSuffix(dir, filepath.Join("signalscope", "records")) {
		t.Errorf("RecordDir should end with signalscope/records, got %q", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	root := t.TempDir()
	cfgDir := filepath.Join(root, ".signalscope")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	cfgPath := filepath.Join(cfgDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("scoring: {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	if got := FindConfigFile(nested); got != cfgPath {
		t.Errorf("FindConfigFile(%q) = %q, want %q", nested, got, cfgPath)
	}
	if got := FindConfigFile(t.TempDir()); got != "" {
		t.Errorf("expected no config file, got %q", got)
	}
}
