// Package schema defines the typed records shared across debatebench:
// benchmark configuration, transcripts, judge results, and ratings.
package schema

import "time"

// Speaker side labels.
const (
	SidePro = "pro"
	SideCon = "con"
	SideTie = "tie"
)

// RoundConfig is one entry in the ordered turn template of a debate.
type RoundConfig struct {
	Speaker    string `yaml:"speaker" json:"speaker"`
	Stage      string `yaml:"stage" json:"stage"`
	TokenLimit int    `yaml:"token_limit" json:"token_limit"`
	Language   string `yaml:"language,omitempty" json:"language,omitempty"`
}

// DimensionConfig names one rubric dimension judges score on.
type DimensionConfig struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
}

// ScoringConfig is the rubric: dimensions plus the integer scale bounds.
type ScoringConfig struct {
	Dimensions []DimensionConfig `yaml:"dimensions" json:"dimensions"`
	ScaleMin   int               `yaml:"scale_min" json:"scale_min"`
	ScaleMax   int               `yaml:"scale_max" json:"scale_max"`
}

// DimensionIDs returns the configured dimension ids in order.
func (s ScoringConfig) DimensionIDs() []string {
	ids := make([]string, len(s.Dimensions))
	for i, d := range s.Dimensions {
		ids[i] = d.ID
	}
	return ids
}

// EloConfig holds the rating engine constants.
type EloConfig struct {
	InitialRating float64 `yaml:"initial_rating" json:"initial_rating"`
	KFactor       float64 `yaml:"k_factor" json:"k_factor"`
}

// MainConfig is the benchmark-wide configuration: the round schedule,
// the scoring rubric, panel size, and Elo constants.
type MainConfig struct {
	BenchmarkVersion  string        `yaml:"benchmark_version" json:"benchmark_version"`
	RubricVersion     string        `yaml:"rubric_version" json:"rubric_version"`
	Rounds            []RoundConfig `yaml:"rounds" json:"rounds"`
	Scoring           ScoringConfig `yaml:"scoring" json:"scoring"`
	NumJudges         int           `yaml:"num_judges" json:"num_judges"`
	Elo               EloConfig     `yaml:"elo" json:"elo"`
	Language          string        `yaml:"language,omitempty" json:"language,omitempty"`
	SystemPromptPro   string        `yaml:"system_prompt_pro,omitempty" json:"system_prompt_pro,omitempty"`
	SystemPromptCon   string        `yaml:"system_prompt_con,omitempty" json:"system_prompt_con,omitempty"`
	JudgeSystemPrompt string        `yaml:"judge_system_prompt,omitempty" json:"judge_system_prompt,omitempty"`
}

// Topic is one debate motion. Loaded once, immutable.
type Topic struct {
	ID       string `yaml:"id" json:"id"`
	Motion   string `yaml:"motion" json:"motion"`
	Category string `yaml:"category,omitempty" json:"category,omitempty"`
}

// DebaterModelConfig identifies one debater model and its call parameters.
type DebaterModelConfig struct {
	ID         string            `yaml:"id" json:"id"`
	Provider   string            `yaml:"provider" json:"provider"`
	Model      string            `yaml:"model" json:"model"`
	TokenLimit int               `yaml:"token_limit,omitempty" json:"token_limit,omitempty"`
	Endpoint   string            `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Parameters map[string]string `yaml:"parameters,omitempty" json:"parameters,omitempty"`
}

// JudgeModelConfig identifies one judge model and its call parameters.
type JudgeModelConfig struct {
	ID          string            `yaml:"id" json:"id"`
	Provider    string            `yaml:"provider" json:"provider"`
	Model       string            `yaml:"model" json:"model"`
	TokenLimit  int               `yaml:"token_limit,omitempty" json:"token_limit,omitempty"`
	Endpoint    string            `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	PromptStyle string            `yaml:"prompt_style,omitempty" json:"prompt_style,omitempty"`
	Parameters  map[string]string `yaml:"parameters,omitempty" json:"parameters,omitempty"`
}

// Turn is one validated debater contribution. Content never contains
// the raw end-of-turn marker and is never empty.
type Turn struct {
	Index            int       `json:"index"`
	Speaker          string    `json:"speaker"`
	Stage            string    `json:"stage"`
	Content          string    `json:"content"`
	CreatedAt        time.Time `json:"created_at"`
	DurationMs       float64   `json:"duration_ms,omitempty"`
	PromptTokens     int       `json:"prompt_tokens,omitempty"`
	CompletionTokens int       `json:"completion_tokens,omitempty"`
	TotalTokens      int       `json:"total_tokens,omitempty"`
	Cost             float64   `json:"cost,omitempty"`
}

// Transcript is the full record of one debate, created once by the
// runner and immutable afterwards.
type Transcript struct {
	DebateID         string `json:"debate_id"`
	BenchmarkVersion string `json:"benchmark_version"`
	RubricVersion    string `json:"rubric_version"`
	Topic            Topic  `json:"topic"`
	ProModelID       string `json:"pro_model_id"`
	ConModelID       string `json:"con_model_id"`
	Turns            []Turn `json:"turns"`
	Seed             int64  `json:"seed,omitempty"`
}

// JudgeScores maps rubric dimension id to an integer score.
type JudgeScores struct {
	Scores map[string]int `json:"scores"`
}

// JudgeResult is one judge's validated verdict on a transcript. Winner
// is always derived from the two sides' mean dimension scores.
type JudgeResult struct {
	JudgeID          string      `json:"judge_id"`
	Pro              JudgeScores `json:"pro"`
	Con              JudgeScores `json:"con"`
	Winner           string      `json:"winner"`
	RawResponse      string      `json:"raw_response,omitempty"`
	LatencyMs        float64     `json:"latency_ms,omitempty"`
	PromptTokens     int         `json:"prompt_tokens,omitempty"`
	CompletionTokens int         `json:"completion_tokens,omitempty"`
	TotalTokens      int         `json:"total_tokens,omitempty"`
	Cost             float64     `json:"cost,omitempty"`
}

// AggregatedResult combines a judge panel into one verdict.
type AggregatedResult struct {
	Winner  string             `json:"winner"`
	MeanPro map[string]float64 `json:"mean_pro"`
	MeanCon map[string]float64 `json:"mean_con"`
}

// DebateRecord is the unit of persistence: one fully completed debate.
type DebateRecord struct {
	Transcript     Transcript       `json:"transcript"`
	Judges         []JudgeResult    `json:"judges"`
	Aggregate      AggregatedResult `json:"aggregate"`
	CreatedAt      time.Time        `json:"created_at"`
	JudgesExpected int              `json:"judges_expected"`
	JudgesActual   int              `json:"judges_actual"`
	PanelComplete  bool             `json:"panel_complete"`
	PanelLatencyMs float64          `json:"panel_latency_ms"`
	DebateSeed     int64            `json:"debate_seed"`
	Elo            EloConfig        `json:"elo"`
}

// RatingEntry is one model's standing in the ratings table.
type RatingEntry struct {
	Rating        float64            `json:"rating"`
	GamesPlayed   int                `json:"games_played"`
	Wins          int                `json:"wins"`
	Losses        int                `json:"losses"`
	Ties          int                `json:"ties"`
	DimensionAvgs map[string]float64 `json:"dimension_avgs,omitempty"`
}

// RatingsFile is the full ratings table, always rebuilt from the
// complete record history.
type RatingsFile struct {
	BenchmarkVersion string                 `json:"benchmark_version"`
	RubricVersion    string                 `json:"rubric_version"`
	Elo              EloConfig              `json:"elo"`
	Models           map[string]RatingEntry `json:"models"`
}
