// Package config loads and validates the YAML configuration files:
// the main benchmark config, topics, debater models, and judge models.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"debatebench/internal/schema"
)

// DefaultMainConfig returns the built-in benchmark configuration used
// when no config file exists yet.
func DefaultMainConfig() schema.MainConfig {
	return schema.MainConfig{
		BenchmarkVersion: "v0",
		RubricVersion:    "v0",
		Rounds: []schema.RoundConfig{
			{Speaker: schema.SidePro, Stage: "opening", TokenLimit: 4096, Language: "en"},
			{Speaker: schema.SideCon, Stage: "opening", TokenLimit: 4096, Language: "en"},
		},
		Scoring: schema.ScoringConfig{
			Dimensions: []schema.DimensionConfig{
				{ID: "persuasion", Name: "Persuasion"},
				{ID: "reasoning", Name: "Reasoning"},
				{ID: "factuality", Name: "Factuality"},
				{ID: "clarity", Name: "Clarity"},
				{ID: "safety", Name: "Safety"},
			},
			ScaleMin: 1,
			ScaleMax: 10,
		},
		NumJudges: 3,
		Elo:       schema.EloConfig{InitialRating: 400.0, KFactor: 32.0},
		Language:  "en",
	}
}

func loadYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

// nestedMainConfig is the richer benchmark/debate/scoring/elo layout
// some deployments use instead of the flat schema.
type nestedMainConfig struct {
	Benchmark struct {
		Version       string `yaml:"version"`
		RubricVersion string `yaml:"rubric_version"`
	} `yaml:"benchmark"`
	Debate struct {
		Language        string `yaml:"language"`
		SystemPromptPro string `yaml:"system_prompt_pro"`
		SystemPromptCon string `yaml:"system_prompt_con"`
		Rounds          []struct {
			Role       string `yaml:"role"`
			Speaker    string `yaml:"speaker"`
			Stage      string `yaml:"stage"`
			MaxTokens  int    `yaml:"max_tokens"`
			TokenLimit int    `yaml:"token_limit"`
			Language   string `yaml:"language"`
		} `yaml:"rounds"`
	} `yaml:"debate"`
	Scoring struct {
		Dimensions map[string]struct {
			Min *int `yaml:"min"`
			Max *int `yaml:"max"`
		} `yaml:"dimensions"`
		JudgesPerDebate   int    `yaml:"judges_per_debate"`
		NumJudges         int    `yaml:"num_judges"`
		JudgeSystemPrompt string `yaml:"judge_system_prompt"`
	} `yaml:"scoring"`
	Elo struct {
		InitialRating *float64 `yaml:"initial_rating"`
		KFactor       *float64 `yaml:"k_factor"`
	} `yaml:"elo"`
}

// LoadMainConfig reads the main benchmark config, accepting both the
// flat schema and the nested benchmark/debate/scoring/elo layout.
func LoadMainConfig(path string) (schema.MainConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return schema.MainConfig{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var probe map[string]any
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return schema.MainConfig{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if len(probe) == 0 {
		return DefaultMainConfig(), nil
	}

	_, hasBenchmark := probe["benchmark"]
	_, hasDebate := probe["debate"]
	_, hasRounds := probe["rounds"]
	if (hasBenchmark || hasDebate) && !hasRounds {
		var nested nestedMainConfig
		if err := yaml.Unmarshal(data, &nested); err != nil {
			return schema.MainConfig{}, fmt.Errorf("config: parsing %s: %w", path, err)
		}
		return fromNested(nested), nil
	}

	cfg := DefaultMainConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return schema.MainConfig{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return normalize(cfg), nil
}

func fromNested(n nestedMainConfig) schema.MainConfig {
	cfg := DefaultMainConfig()

	if n.Benchmark.Version != "" {
		cfg.BenchmarkVersion = n.Benchmark.Version
		cfg.RubricVersion = n.Benchmark.Version
	}
	if n.Benchmark.RubricVersion != "" {
		cfg.RubricVersion = n.Benchmark.RubricVersion
	}
	if n.Debate.Language != "" {
		cfg.Language = n.Debate.Language
	}
	cfg.SystemPromptPro = n.Debate.SystemPromptPro
	cfg.SystemPromptCon = n.Debate.SystemPromptCon
	cfg.JudgeSystemPrompt = n.Scoring.JudgeSystemPrompt

	if len(n.Debate.Rounds) > 0 {
		rounds := make([]schema.RoundConfig, 0, len(n.Debate.Rounds))
		for _, r := range n.Debate.Rounds {
			speaker := r.Speaker
			if speaker == "" {
				speaker = r.Role
			}
			stage := r.Stage
			if stage == "" {
				stage = "turn"
			}
			limit := r.TokenLimit
			if r.MaxTokens > 0 {
				limit = r.MaxTokens
			}
			if limit <= 0 {
				limit = 4096
			}
			lang := r.Language
			if lang == "" {
				lang = cfg.Language
			}
			rounds = append(rounds, schema.RoundConfig{
				Speaker: speaker, Stage: stage, TokenLimit: limit, Language: lang,
			})
		}
		cfg.Rounds = rounds
	}

	if len(n.Scoring.Dimensions) > 0 {
		var dims []schema.DimensionConfig
		scaleMin, scaleMax := 0, 0
		haveMin, haveMax := false, false
		for id, d := range n.Scoring.Dimensions {
			dims = append(dims, schema.DimensionConfig{ID: id, Name: id})
			if d.Min != nil && (!haveMin || *d.Min < scaleMin) {
				scaleMin, haveMin = *d.Min, true
			}
			if d.Max != nil && (!haveMax || *d.Max > scaleMax) {
				scaleMax, haveMax = *d.Max, true
			}
		}
		sort.Slice(dims, func(i, j int) bool { return dims[i].ID < dims[j].ID })
		cfg.Scoring.Dimensions = dims
		if haveMin {
			cfg.Scoring.ScaleMin = scaleMin
		}
		if haveMax {
			cfg.Scoring.ScaleMax = scaleMax
		}
	}

	if n.Scoring.JudgesPerDebate > 0 {
		cfg.NumJudges = n.Scoring.JudgesPerDebate
	} else if n.Scoring.NumJudges > 0 {
		cfg.NumJudges = n.Scoring.NumJudges
	}
	if n.Elo.InitialRating != nil {
		cfg.Elo.InitialRating = *n.Elo.InitialRating
	}
	if n.Elo.KFactor != nil {
		cfg.Elo.KFactor = *n.Elo.KFactor
	}
	return normalize(cfg)
}

func normalize(cfg schema.MainConfig) schema.MainConfig {
	for i := range cfg.Rounds {
		if cfg.Rounds[i].TokenLimit <= 0 {
			cfg.Rounds[i].TokenLimit = 4096
		}
		if cfg.Rounds[i].Stage == "" {
			cfg.Rounds[i].Stage = "turn"
		}
	}
	if cfg.Scoring.ScaleMin == 0 && cfg.Scoring.ScaleMax == 0 {
		cfg.Scoring.ScaleMin = 1
		cfg.Scoring.ScaleMax = 10
	}
	if cfg.NumJudges <= 0 {
		cfg.NumJudges = 3
	}
	return cfg
}

// Validate reports configuration problems that would break a run.
func Validate(cfg schema.MainConfig) error {
	if len(cfg.Rounds) == 0 {
		return fmt.Errorf("config: rounds list is empty")
	}
	for i, r := range cfg.Rounds {
		if r.Speaker != schema.SidePro && r.Speaker != schema.SideCon {
			return fmt.Errorf("config: round %d has invalid speaker %q", i, r.Speaker)
		}
	}
	if len(cfg.Scoring.Dimensions) == 0 {
		return fmt.Errorf("config: scoring dimensions list is empty")
	}
	if cfg.Scoring.ScaleMin >= cfg.Scoring.ScaleMax {
		return fmt.Errorf("config: scale_min (%d) must be below scale_max (%d)",
			cfg.Scoring.ScaleMin, cfg.Scoring.ScaleMax)
	}
	return nil
}

// LoadTopics reads the topics file: either a bare list or a document
// with a top-level "topics" key.
func LoadTopics(path string) ([]schema.Topic, error) {
	var wrapped struct {
		Topics []schema.Topic `yaml:"topics"`
	}
	if err := loadYAML(path, &wrapped); err == nil && len(wrapped.Topics) > 0 {
		return wrapped.Topics, nil
	}
	var topics []schema.Topic
	if err := loadYAML(path, &topics); err != nil {
		return nil, err
	}
	return topics, nil
}

// LoadDebaterModels reads the debater models file: a bare list or a
// document with a top-level "models" key.
func LoadDebaterModels(path string) ([]schema.DebaterModelConfig, error) {
	var wrapped struct {
		Models []schema.DebaterModelConfig `yaml:"models"`
	}
	if err := loadYAML(path, &wrapped); err == nil && len(wrapped.Models) > 0 {
		return wrapped.Models, nil
	}
	var models []schema.DebaterModelConfig
	if err := loadYAML(path, &models); err != nil {
		return nil, err
	}
	return models, nil
}

// LoadJudgeModels reads the judge models file: a bare list or a
// document with a top-level "judges" key.
func LoadJudgeModels(path string) ([]schema.JudgeModelConfig, error) {
	var wrapped struct {
		Judges []schema.JudgeModelConfig `yaml:"judges"`
	}
	if err := loadYAML(path, &wrapped); err == nil && len(wrapped.Judges) > 0 {
		return wrapped.Judges, nil
	}
	var judges []schema.JudgeModelConfig
	if err := loadYAML(path, &judges); err != nil {
		return nil, err
	}
	return judges, nil
}

// WriteDefaults creates template config files under root/configs,
// skipping files that already exist unless overwrite is set.
func WriteDefaults(root string, overwrite bool) error {
	dir := filepath.Join(root, "configs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	write := func(name string, payload any) error {
		path := filepath.Join(dir, name)
		if !overwrite {
			if _, err := os.Stat(path); err == nil {
				return nil
			}
		}
		data, err := yaml.Marshal(payload)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("config: writing %s: %w", path, err)
		}
		return nil
	}

	if err := write("config.yaml", DefaultMainConfig()); err != nil {
		return err
	}
	if err := write("topics.yaml", []schema.Topic{}); err != nil {
		return err
	}
	if err := write("models.yaml", []schema.DebaterModelConfig{}); err != nil {
		return err
	}
	return write("judges.yaml", []schema.JudgeModelConfig{})
}
