package schedule

import (
	"fmt"
	"math/rand"

	"debatebench/internal/schema"
)

// Pair is an ordered debater matchup: first plays pro, second plays con
// (before any seeded side swap).
type Pair struct {
	A schema.DebaterModelConfig
	B schema.DebaterModelConfig
}

// BuildPairs returns the matchups for a run. With balancedSides every
// ordered permutation of two distinct debaters is played, so each pair
// appears once per side; otherwise each unordered pair appears once.
func BuildPairs(models []schema.DebaterModelConfig, balancedSides bool) []Pair {
	var pairs []Pair
	if balancedSides {
		for i := range models {
			for j := range models {
				if i == j {
					continue
				}
				pairs = append(pairs, Pair{A: models[i], B: models[j]})
			}
		}
		return pairs
	}
	for i := 0; i < len(models); i++ {
		for j := i + 1; j < len(models); j++ {
			pairs = append(pairs, Pair{A: models[i], B: models[j]})
		}
	}
	return pairs
}

// PairKey is the ordered matchup key used by judge fairness counters.
func PairKey(proID, conID string) string {
	return proID + "|" + conID
}

// DebateTask is a single debate instance: topic, ordered models, and
// repetition index, with its derived seed.
type DebateTask struct {
	Topic   schema.Topic
	Pro     schema.DebaterModelConfig
	Con     schema.DebaterModelConfig
	Rep     int
	Seed    int64
	PairKey string
	TaskID  string
}

// Plan is the concrete schedule for one run.
type Plan struct {
	Tasks             []DebateTask
	TotalRuns         int
	ExistingCompleted int
	DebatesPerPair    int
}

// Options configures plan construction.
type Options struct {
	RunTag         string
	DebatesPerPair int
	BalancedSides  bool
	// SwapSides randomizes which model plays pro when sides are not
	// balanced; the choice is driven by the debate seed.
	SwapSides bool
	// OnlyInvolving restricts the plan to pairs containing at least one
	// of the listed model ids, so newly added models can be played
	// against the field without rerunning every existing matchup.
	OnlyInvolving []string
}

// CompletedKey identifies a finished (topic, pro, con) triple.
type CompletedKey struct {
	TopicID string
	ProID   string
	ConID   string
}

// CompletedCounts tallies finished debates per triple from an existing
// record log, for resume filtering.
func CompletedCounts(records []schema.DebateRecord) map[CompletedKey]int {
	counts := make(map[CompletedKey]int)
	for _, rec := range records {
		key := CompletedKey{
			TopicID: rec.Transcript.Topic.ID,
			ProID:   rec.Transcript.ProModelID,
			ConID:   rec.Transcript.ConModelID,
		}
		counts[key]++
	}
	return counts
}

// BuildPlan expands (topic x pair x repetition) into the ordered task
// list, skipping repetitions already satisfied by completed counts.
func BuildPlan(
	topics []schema.Topic,
	debaters []schema.DebaterModelConfig,
	completed map[CompletedKey]int,
	opts Options,
) (Plan, error) {
	if opts.DebatesPerPair <= 0 {
		return Plan{}, fmt.Errorf("schedule: debates_per_pair must be positive, got %d", opts.DebatesPerPair)
	}
	if len(topics) == 0 {
		return Plan{}, fmt.Errorf("schedule: topics list is empty")
	}
	if len(debaters) < 2 {
		return Plan{}, fmt.Errorf("schedule: need at least 2 debaters, got %d", len(debaters))
	}

	pairs := BuildPairs(debaters, opts.BalancedSides)
	if len(opts.OnlyInvolving) > 0 {
		keep := make(map[string]bool, len(opts.OnlyInvolving))
		for _, id := range opts.OnlyInvolving {
			keep[id] = true
		}
		filtered := pairs[:0]
		for _, pair := range pairs {
			if keep[pair.A.ID] || keep[pair.B.ID] {
				filtered = append(filtered, pair)
			}
		}
		pairs = filtered
	}

	existing := 0
	for _, n := range completed {
		existing += n
	}

	plan := Plan{
		ExistingCompleted: existing,
		DebatesPerPair:    opts.DebatesPerPair,
	}

	for _, topic := range topics {
		for _, pair := range pairs {
			done := completed[CompletedKey{TopicID: topic.ID, ProID: pair.A.ID, ConID: pair.B.ID}]
			if !opts.BalancedSides {
				// With a seeded side swap a record may be keyed with the
				// models reversed; the unordered pair owns both counts.
				done += completed[CompletedKey{TopicID: topic.ID, ProID: pair.B.ID, ConID: pair.A.ID}]
			}
			remaining := Remaining(opts.DebatesPerPair, done)
			if remaining == 0 {
				continue
			}
			for rep := opts.DebatesPerPair - remaining; rep < opts.DebatesPerPair; rep++ {
				seed := DeriveDebateSeed(opts.RunTag, topic.ID, pair.A.ID, pair.B.ID, rep)
				pro, con := pair.A, pair.B
				if !opts.BalancedSides && opts.SwapSides {
					rng := rand.New(rand.NewSource(seed))
					if rng.Float64() < 0.5 {
						pro, con = con, pro
					}
				}
				plan.Tasks = append(plan.Tasks, DebateTask{
					Topic:   topic,
					Pro:     pro,
					Con:     con,
					Rep:     rep,
					Seed:    seed,
					PairKey: PairKey(pro.ID, con.ID),
					TaskID:  fmt.Sprintf("%s|%s|%s|%d", topic.ID, pro.ID, con.ID, rep),
				})
			}
		}
	}
	plan.TotalRuns = len(plan.Tasks)
	return plan, nil
}

// Remaining returns how many debates are still owed for one pair.
func Remaining(debatesPerPair, alreadyDone int) int {
	if r := debatesPerPair - alreadyDone; r > 0 {
		return r
	}
	return 0
}
