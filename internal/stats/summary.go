// Package stats derives per-population summaries from recorded frequency
// histories and exports them for plotting tools.
package stats

import (
	"sort"

	"demesim/internal/model"
)

// fixationThreshold treats frequencies within floating-point noise of the
// boundaries as fixed or lost.
const fixationThreshold = 1e-9

// TrajectorySummary condenses one population's history.
type TrajectorySummary struct {
	Population       string            `json:"population"`
	BirthGeneration  int               `json:"birth_generation"`
	Generations      int               `json:"generations"`
	FinalFrequencies model.Frequencies `json:"final_frequencies"`
	Fixed            model.Allele      `json:"fixed,omitempty"`
	Lost             []model.Allele    `json:"lost,omitempty"`
	Segregating      int               `json:"segregating"`
	Extinct          bool              `json:"extinct"`
}

// Summarize produces one summary per population, sorted by name.
func Summarize(histories []model.PopulationHistory) []TrajectorySummary {
	out := make([]TrajectorySummary, 0, len(histories))
	for _, history := range histories {
		out = append(out, summarizeOne(history))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Population < out[j].Population
	})
	return out
}

func summarizeOne(history model.PopulationHistory) TrajectorySummary {
	summary := TrajectorySummary{
		Population:      history.Population,
		BirthGeneration: history.BirthGeneration,
		Generations:     len(history.Records),
	}
	if len(history.Records) == 0 {
		summary.Extinct = true
		return summary
	}

	final := history.Records[len(history.Records)-1]
	summary.FinalFrequencies = final.Clone()
	summary.Extinct = final.Sum() < fixationThreshold

	alleles := make([]model.Allele, 0, len(final))
	for allele := range final {
		alleles = append(alleles, allele)
	}
	sort.Slice(alleles, func(i, j int) bool { return alleles[i] < alleles[j] })

	for _, allele := range alleles {
		freq := final[allele]
		switch {
		case freq <= fixationThreshold:
			summary.Lost = append(summary.Lost, allele)
		case freq >= 1.0-fixationThreshold:
			summary.Fixed = allele
		default:
			summary.Segregating++
		}
	}
	return summary
}
