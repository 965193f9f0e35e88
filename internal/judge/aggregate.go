package judge

import "debatebench/internal/schema"

// Aggregate combines a judge panel into one verdict: majority vote
// over judge winners (vote ties go to "tie") and per-dimension means
// for each side over the union of dimensions any judge reported.
func Aggregate(results []schema.JudgeResult) schema.AggregatedResult {
	votes := map[string]int{}
	for _, r := range results {
		votes[r.Winner]++
	}

	winner := schema.SideTie
	switch {
	case votes[schema.SidePro] > votes[schema.SideCon]:
		winner = schema.SidePro
	case votes[schema.SideCon] > votes[schema.SidePro]:
		winner = schema.SideCon
	}

	dims := map[string]struct{}{}
	for _, r := range results {
		for d := range r.Pro.Scores {
			dims[d] = struct{}{}
		}
		for d := range r.Con.Scores {
			dims[d] = struct{}{}
		}
	}

	meanPro := make(map[string]float64, len(dims))
	meanCon := make(map[string]float64, len(dims))
	if len(results) > 0 {
		for d := range dims {
			sumPro, sumCon := 0, 0
			for _, r := range results {
				sumPro += r.Pro.Scores[d]
				sumCon += r.Con.Scores[d]
			}
			meanPro[d] = float64(sumPro) / float64(len(results))
			meanCon[d] = float64(sumCon) / float64(len(results))
		}
	}

	return schema.AggregatedResult{Winner: winner, MeanPro: meanPro, MeanCon: meanCon}
}
