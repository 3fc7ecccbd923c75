package sim

import (
	"demesim/internal/demograph"
	"demesim/internal/model"
)

// initializePopulation creates a population at its birth generation. With
// no ancestors the collection is sampled from the initial-frequency
// distribution; otherwise each ancestor contributes floor(size*proportion)
// draws with replacement, the rounding shortfall is filled per the ancestry
// policy, and the assembled collection is shuffled so nothing downstream
// can rely on ancestry blocks being positionally grouped.
func (e *Engine) initializePopulation(st *State, deme *demograph.Deme, generation int) {
	size := int(deme.Epochs[0].StartSize)
	if size < 0 {
		size = 0
	}

	var individuals []model.Allele
	if len(deme.Ancestors) == 0 {
		total := 0.0
		for _, w := range e.reg.initialWeights {
			total += w
		}
		individuals = weightedSample(e.rng, e.reg.initialAlleles, e.reg.initialWeights, total, size)
	} else {
		proportions := deme.Proportions
		if len(proportions) == 0 {
			proportions = make([]float64, len(deme.Ancestors))
			for i := range proportions {
				proportions[i] = 1.0 / float64(len(deme.Ancestors))
			}
		}

		individuals = make([]model.Allele, 0, size)
		for i, ancestor := range deme.Ancestors {
			if !st.Contains(ancestor) {
				continue
			}
			count := int(float64(size) * proportions[i])
			source := st.Individuals(ancestor)
			if len(source) == 0 {
				// Defensive fallback for an empty ancestor: fill with
				// wild type rather than fail the birth.
				for j := 0; j < count; j++ {
					individuals = append(individuals, e.reg.wildType)
				}
				continue
			}
			for j := 0; j < count; j++ {
				individuals = append(individuals, choice(e.rng, source))
			}
		}

		individuals = e.fillShortfall(st, deme, individuals, size)
		e.rng.Shuffle(len(individuals), func(i, j int) {
			individuals[i], individuals[j] = individuals[j], individuals[i]
		})
	}

	st.Add(deme.Name, individuals, generation)
	if e.logf != nil {
		e.logf("population %s initialized at generation %d (size %d)", deme.Name, generation, len(individuals))
	}
}

func (e *Engine) fillShortfall(st *State, deme *demograph.Deme, individuals []model.Allele, size int) []model.Allele {
	if e.ancestry == AncestryStrictProportional {
		return individuals
	}
	for len(individuals) < size {
		if e.ancestry == AncestryFallbackToPrimary {
			primary := st.Individuals(deme.Ancestors[0])
			if len(primary) > 0 {
				individuals = append(individuals, choice(e.rng, primary))
				continue
			}
		}
		individuals = append(individuals, choice(e.rng, e.reg.active))
	}
	return individuals
}
