package judge

import (
	"fmt"
	"math/rand"
	"sort"

	"debatebench/internal/schema"
)

// ErrInsufficientJudges is returned when the candidate pool cannot
// supply the requested panel size.
type ErrInsufficientJudges struct {
	Expected int
	Found    int
}

func (e *ErrInsufficientJudges) Error() string {
	return fmt.Sprintf("judge: need at least %d judges after exclusions; found %d", e.Expected, e.Found)
}

// SelectorInput configures one panel selection.
type SelectorInput struct {
	Pool     []schema.JudgeModelConfig
	Exclude  map[string]bool // debating model ids when judges share the pool
	Expected int
	Seed     int64
	Balanced bool
	TopicID  string
	PairKey  string
}

// SelectPanel chooses exactly Expected judges and returns both the
// panel and the leftover candidates in the same priority order, so the
// evaluator can promote alternates when a selected judge fails.
//
// Balanced mode orders candidates by ascending (uses for this topic,
// uses for this ordered pair, total uses, seeded random tiebreak,
// judge id). Unbalanced mode samples uniformly with the debate seed.
func SelectPanel(in SelectorInput, counters *UsageCounters) (panel, leftovers []schema.JudgeModelConfig, err error) {
	candidates := make([]schema.JudgeModelConfig, 0, len(in.Pool))
	for _, j := range in.Pool {
		if in.Exclude[j.ID] {
			continue
		}
		candidates = append(candidates, j)
	}
	if len(candidates) < in.Expected {
		return nil, nil, &ErrInsufficientJudges{Expected: in.Expected, Found: len(candidates)}
	}

	rng := rand.New(rand.NewSource(in.Seed))

	if !in.Balanced {
		rng.Shuffle(len(candidates), func(i, j int) {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		})
		return candidates[:in.Expected], candidates[in.Expected:], nil
	}

	// The random tiebreak must be reproducible for a given seed, so
	// assign draws in a deterministic candidate order.
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	tiebreak := make(map[string]float64, len(candidates))
	for _, c := range candidates {
		tiebreak[c.ID] = rng.Float64()
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	used := counters.snapshot(ids, in.TopicID, in.PairKey)

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		ua, ub := used[a.ID], used[b.ID]
		if ua.topic != ub.topic {
			return ua.topic < ub.topic
		}
		if ua.pair != ub.pair {
			return ua.pair < ub.pair
		}
		if ua.global != ub.global {
			return ua.global < ub.global
		}
		if tiebreak[a.ID] != tiebreak[b.ID] {
			return tiebreak[a.ID] < tiebreak[b.ID]
		}
		return a.ID < b.ID
	})

	return candidates[:in.Expected], candidates[in.Expected:], nil
}
