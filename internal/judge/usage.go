// Package judge selects fairness-balanced judge panels, obtains valid
// rubric scores from them, and aggregates panel verdicts.
package judge

import (
	"sync"

	"debatebench/internal/schedule"
	"debatebench/internal/schema"
)

// UsageCounters tracks how often each judge has contributed, per topic,
// per ordered matchup, and run-wide. The selector reads it and the
// evaluator writes it after every valid result, so concurrent debates
// balance against up-to-date state. Approximate fairness is enough; a
// single lock keeps updates atomic.
type UsageCounters struct {
	mu     sync.Mutex
	topic  map[[2]string]int // (judge, topic) -> uses
	pair   map[[2]string]int // (judge, pair key) -> uses
	global map[string]int    // judge -> uses
}

// NewUsageCounters returns an empty counter set.
func NewUsageCounters() *UsageCounters {
	return &UsageCounters{
		topic:  make(map[[2]string]int),
		pair:   make(map[[2]string]int),
		global: make(map[string]int),
	}
}

// Prime loads counters from previously completed records so a resumed
// run keeps balancing against history.
func (c *UsageCounters) Prime(records []schema.DebateRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rec := range records {
		topicID := rec.Transcript.Topic.ID
		pairKey := schedule.PairKey(rec.Transcript.ProModelID, rec.Transcript.ConModelID)
		for _, jr := range rec.Judges {
			c.topic[[2]string{jr.JudgeID, topicID}]++
			c.pair[[2]string{jr.JudgeID, pairKey}]++
			c.global[jr.JudgeID]++
		}
	}
}

// Record registers one valid judge contribution.
func (c *UsageCounters) Record(judgeID, topicID, pairKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topic[[2]string{judgeID, topicID}]++
	c.pair[[2]string{judgeID, pairKey}]++
	c.global[judgeID]++
}

// usage is a point-in-time view of one judge's counters.
type usage struct {
	topic  int
	pair   int
	global int
}

// snapshot reads the counters for a set of judges under one lock
// acquisition, so a single selection sees a consistent view.
func (c *UsageCounters) snapshot(judgeIDs []string, topicID, pairKey string) map[string]usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]usage, len(judgeIDs))
	for _, id := range judgeIDs {
		out[id] = usage{
			topic:  c.topic[[2]string{id, topicID}],
			pair:   c.pair[[2]string{id, pairKey}],
			global: c.global[id],
		}
	}
	return out
}
