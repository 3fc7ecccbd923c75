package sim

import (
	"math"

	"demesim/internal/model"
)

// sizeQueryEpsilon nudges size queries just inside the current epoch so
// boundary generations resolve to the epoch being simulated rather than the
// one ending at the same time.
const sizeQueryEpsilon = 1e-5

// birthPhase creates populations whose birth condition holds this
// generation: a finite start time truncating to t, or an infinite start
// time at the horizon (root populations are born at the start of the
// window).
type birthPhase struct{ e *Engine }

func (p *birthPhase) Name() string { return "births" }

func (p *birthPhase) Apply(st *State, generation int) error {
	for i := range p.e.graph.Demes {
		deme := &p.e.graph.Demes[i]
		finiteBirth := !math.IsInf(deme.StartTime, 1) && int(deme.StartTime) == generation
		rootBirth := math.IsInf(deme.StartTime, 1) && generation == p.e.horizon
		if !finiteBirth && !rootBirth {
			continue
		}
		if st.Contains(deme.Name) {
			continue
		}
		p.e.initializePopulation(st, deme, generation)
	}
	return nil
}

// introductionPhase fires the scheduled new-allele conversions for this
// generation.
type introductionPhase struct{ e *Engine }

func (p *introductionPhase) Name() string { return "introductions" }

func (p *introductionPhase) Apply(st *State, generation int) error {
	p.e.introduceNewAlleles(st, generation)
	return nil
}

// reproductionPhase applies drift/selection resampling followed by mutation
// to every stored population.
type reproductionPhase struct{ e *Engine }

func (p *reproductionPhase) Name() string { return "reproduction" }

func (p *reproductionPhase) Apply(st *State, generation int) error {
	for _, name := range st.Names() {
		queryTime := float64(generation) - sizeQueryEpsilon
		if queryTime < 0 {
			queryTime = 0
		}
		targetSize := int(p.e.graph.SizeAt(name, queryTime))
		if targetSize <= 0 {
			st.SetIndividuals(name, nil)
			continue
		}

		current := st.Individuals(name)
		if len(current) == 0 {
			// Empty but with a positive target size: nothing to sample
			// from. The population stays empty until migration or a later
			// birth repopulates it.
			continue
		}

		weights := make([]float64, len(current))
		total := 0.0
		for i, allele := range current {
			w := p.e.reg.Fitness(allele)
			weights[i] = w
			total += w
		}
		if total == 0 {
			st.SetIndividuals(name, nil)
			continue
		}

		st.SetIndividuals(name, weightedSample(p.e.rng, current, weights, total, targetSize))
		p.e.applyMutations(st, name)
	}
	return nil
}

// migrationPhase applies every active continuous migration interval.
type migrationPhase struct{ e *Engine }

func (p *migrationPhase) Name() string { return "migration" }

func (p *migrationPhase) Apply(st *State, generation int) error {
	p.e.applyMigration(st, generation)
	return nil
}

// pulsePhase applies the pulses firing at this generation.
type pulsePhase struct{ e *Engine }

func (p *pulsePhase) Name() string { return "pulses" }

func (p *pulsePhase) Apply(st *State, generation int) error {
	p.e.applyPulses(st, generation)
	return nil
}

// censusPhase records every stored population's frequency distribution.
// Empty populations record the generation's zero-filled baseline.
type censusPhase struct{ e *Engine }

func (p *censusPhase) Name() string { return "census" }

func (p *censusPhase) Apply(st *State, generation int) error {
	for _, name := range st.Names() {
		individuals := st.Individuals(name)
		if len(individuals) == 0 {
			st.AppendRecord(name, p.e.baseline.Clone())
			continue
		}
		counts := make(map[model.Allele]int, len(p.e.reg.Active()))
		for _, allele := range individuals {
			counts[allele]++
		}
		record := make(model.Frequencies, len(p.e.reg.Active()))
		size := float64(len(individuals))
		for _, allele := range p.e.reg.Active() {
			record[allele] = float64(counts[allele]) / size
		}
		st.AppendRecord(name, record)
	}
	return nil
}
