// Package output renders run progress and results to the terminal.
package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"debatebench/internal/events"
	"debatebench/internal/rating"
	"debatebench/internal/schema"
)

const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
)

// Colorize wraps s with an ANSI color code and reset.
func Colorize(color, s string) string { return color + s + ansiReset }

// Bold wraps s with ANSI bold and reset.
func Bold(s string) string { return ansiBold + s + ansiReset }

// Consumer drains an event bus and prints one line per event.
type Consumer struct {
	w     io.Writer
	color bool
	done  sync.WaitGroup
}

// NewConsumer creates a consumer writing to w. With color disabled all
// output is plain text, which keeps piped logs clean.
func NewConsumer(w io.Writer, color bool) *Consumer {
	return &Consumer{w: w, color: color}
}

func (c *Consumer) paint(color, s string) string {
	if !c.color {
		return s
	}
	return Colorize(color, s)
}

// Start begins draining the bus in a goroutine; it returns immediately.
// Call Wait after closing the bus to flush the final lines.
func (c *Consumer) Start(bus *events.Bus) {
	c.done.Add(1)
	go func() {
		defer c.done.Done()
		for ev := range bus.Events() {
			c.render(ev)
		}
	}()
}

// Wait blocks until the bus is closed and every event is printed.
func (c *Consumer) Wait() { c.done.Wait() }

func (c *Consumer) render(ev events.Event) {
	switch e := ev.(type) {
	case events.TurnStarted:
		fmt.Fprintf(c.w, "%s %s %s (%s)\n",
			c.paint(ansiYellow, fmt.Sprintf("[round %d]", e.RoundIndex+1)),
			e.TaskID, e.Speaker, e.Stage)
	case events.JudgingStarted:
		fmt.Fprintf(c.w, "%s %s\n", c.paint(ansiCyan, "[judging]"), e.TaskID)
	case events.JudgeCompleted:
		fmt.Fprintf(c.w, "%s %s %s (%d/%d)\n",
			c.paint(ansiCyan, "[judge]"), e.TaskID, e.JudgeID, e.Done, e.Expected)
	case events.TaskFinished:
		switch e.Status {
		case "completed":
			fmt.Fprintf(c.w, "%s %s\n", c.paint(ansiGreen, "[done]"), e.TaskID)
		case "skipped":
			fmt.Fprintf(c.w, "%s %s\n", c.paint(ansiYellow, "[skipped]"), e.TaskID)
		default:
			fmt.Fprintf(c.w, "%s %s: %s\n", c.paint(ansiRed, "[failed]"), e.TaskID, e.Err)
		}
	}
}

// PrintSummary prints the end-of-run tallies.
func PrintSummary(w io.Writer, completed, failed, skipped int, banned []string) {
	fmt.Fprintf(w, "\n%s\n", Bold("=== Run Summary ==="))
	fmt.Fprintf(w, "Completed: %d\n", completed)
	fmt.Fprintf(w, "Failed:    %d\n", failed)
	fmt.Fprintf(w, "Skipped:   %d\n", skipped)
	if len(banned) > 0 {
		fmt.Fprintf(w, "Banned:    %s\n", strings.Join(banned, ", "))
	}
}

// PrintLeaderboard prints models ordered by rating, then games, then id.
func PrintLeaderboard(w io.Writer, ratings schema.RatingsFile, limit int) {
	rows := rating.Leaderboard(ratings)
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	fmt.Fprintf(w, "%-4s %-48s %8s %6s %4s %4s %4s\n",
		"#", "MODEL", "RATING", "GAMES", "W", "L", "T")
	for i, row := range rows {
		fmt.Fprintf(w, "%-4d %-48s %8.1f %6d %4d %4d %4d\n",
			i+1, row.ModelID, row.Rating, row.GamesPlayed, row.Wins, row.Losses, row.Ties)
	}
}

// PrintRecord prints a human-readable view of one debate record.
func PrintRecord(w io.Writer, rec schema.DebateRecord) {
	t := rec.Transcript
	fmt.Fprintf(w, "%s\n", Bold(t.Topic.Motion))
	fmt.Fprintf(w, "pro: %s\ncon: %s\nseed: %d\n\n", t.ProModelID, t.ConModelID, rec.DebateSeed)
	for _, turn := range t.Turns {
		model := t.ProModelID
		if turn.Speaker == schema.SideCon {
			model = t.ConModelID
		}
		fmt.Fprintf(w, "%s [%s] %s\n%s\n\n",
			Bold(strings.ToUpper(turn.Speaker)), turn.Stage, model, turn.Content)
	}
	fmt.Fprintf(w, "%s\n", Bold("=== Verdict ==="))
	fmt.Fprintf(w, "winner: %s (panel %d/%d)\n", rec.Aggregate.Winner, rec.JudgesActual, rec.JudgesExpected)
	dims := make([]string, 0, len(rec.Aggregate.MeanPro))
	for dim := range rec.Aggregate.MeanPro {
		dims = append(dims, dim)
	}
	sort.Strings(dims)
	for _, dim := range dims {
		fmt.Fprintf(w, "  %-12s pro %.2f  con %.2f\n",
			dim, rec.Aggregate.MeanPro[dim], rec.Aggregate.MeanCon[dim])
	}
}
