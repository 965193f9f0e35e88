// Package rating rebuilds the Elo ratings table by replaying the full
// debate record history.
package rating

import (
	"math"
	"sort"

	"debatebench/internal/schema"
)

// ExpectedScore is the logistic expected outcome for a player rated
// ra against one rated rb.
func ExpectedScore(ra, rb float64) float64 {
	return 1.0 / (1.0 + math.Pow(10.0, (rb-ra)/400.0))
}

// UpdateElo applies one game outcome (scoreA in {1, 0.5, 0}) and
// returns both new ratings. The update is zero-sum.
func UpdateElo(ra, rb, scoreA, k float64) (float64, float64) {
	delta := k * (scoreA - ExpectedScore(ra, rb))
	return ra + delta, rb - delta
}

// Recompute replays every record in (created_at, debate_id) order and
// builds the ratings table from scratch. Rerunning over the same
// records always produces the same table.
func Recompute(records []schema.DebateRecord, cfg schema.MainConfig) schema.RatingsFile {
	elo := cfg.Elo

	sorted := make([]schema.DebateRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].Transcript.DebateID < sorted[j].Transcript.DebateID
	})

	ratings := map[string]float64{}
	games := map[string]int{}
	wins := map[string]int{}
	losses := map[string]int{}
	ties := map[string]int{}
	dimSums := map[string]map[string]float64{}
	dimCounts := map[string]map[string]int{}

	ratingOf := func(id string) float64 {
		if r, ok := ratings[id]; ok {
			return r
		}
		return elo.InitialRating
	}
	accumulate := func(id string, means map[string]float64) {
		if dimSums[id] == nil {
			dimSums[id] = map[string]float64{}
			dimCounts[id] = map[string]int{}
		}
		for dim, score := range means {
			dimSums[id][dim] += score
			dimCounts[id][dim]++
		}
	}

	for _, rec := range sorted {
		pro := rec.Transcript.ProModelID
		con := rec.Transcript.ConModelID

		scorePro := 0.5
		switch rec.Aggregate.Winner {
		case schema.SidePro:
			scorePro = 1.0
			wins[pro]++
			losses[con]++
		case schema.SideCon:
			scorePro = 0.0
			wins[con]++
			losses[pro]++
		default:
			ties[pro]++
			ties[con]++
		}

		newPro, newCon := UpdateElo(ratingOf(pro), ratingOf(con), scorePro, elo.KFactor)
		ratings[pro], ratings[con] = newPro, newCon
		games[pro]++
		games[con]++

		accumulate(pro, rec.Aggregate.MeanPro)
		accumulate(con, rec.Aggregate.MeanCon)
	}

	entries := make(map[string]schema.RatingEntry, len(ratings))
	for id, r := range ratings {
		avgs := map[string]float64{}
		for dim, sum := range dimSums[id] {
			if n := dimCounts[id][dim]; n > 0 {
				avgs[dim] = sum / float64(n)
			}
		}
		entries[id] = schema.RatingEntry{
			Rating:        r,
			GamesPlayed:   games[id],
			Wins:          wins[id],
			Losses:        losses[id],
			Ties:          ties[id],
			DimensionAvgs: avgs,
		}
	}

	return schema.RatingsFile{
		BenchmarkVersion: cfg.BenchmarkVersion,
		RubricVersion:    cfg.RubricVersion,
		Elo:              elo,
		Models:           entries,
	}
}

// Row is one leaderboard line.
type Row struct {
	ModelID string
	schema.RatingEntry
}

// Leaderboard orders models by rating descending, breaking ties by
// games played then id so the order is stable across runs.
func Leaderboard(ratings schema.RatingsFile) []Row {
	rows := make([]Row, 0, len(ratings.Models))
	for id, entry := range ratings.Models {
		rows = append(rows, Row{ModelID: id, RatingEntry: entry})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Rating != rows[j].Rating {
			return rows[i].Rating > rows[j].Rating
		}
		if rows[i].GamesPlayed != rows[j].GamesPlayed {
			return rows[i].GamesPlayed > rows[j].GamesPlayed
		}
		return rows[i].ModelID < rows[j].ModelID
	})
	return rows
}
