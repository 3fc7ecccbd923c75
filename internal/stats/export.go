package stats

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"demesim/internal/model"
)

// WriteHistoryCSV writes the long-form trajectory table
// (population, generation, allele, frequency) for a run. Record i of a
// history belongs to generation birth_generation - i of the backward-time
// clock, so generations count down within each population block.
func WriteHistoryCSV(dir, runID string, histories []model.PopulationHistory) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, runID+"_history.csv")
	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"population", "generation", "allele", "frequency"}); err != nil {
		return "", err
	}
	for _, history := range histories {
		for i, record := range history.Records {
			generation := history.BirthGeneration - i

			alleles := make([]model.Allele, 0, len(record))
			for allele := range record {
				alleles = append(alleles, allele)
			}
			sort.Slice(alleles, func(a, b int) bool { return alleles[a] < alleles[b] })

			for _, allele := range alleles {
				if err := writer.Write([]string{
					history.Population,
					strconv.Itoa(generation),
					string(allele),
					strconv.FormatFloat(record[allele], 'f', -1, 64),
				}); err != nil {
					return "", err
				}
			}
		}
	}
	writer.Flush()
	return path, writer.Error()
}
