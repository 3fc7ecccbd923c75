package sim

import "demesim/internal/model"

// introduceNewAlleles fires the scheduled introductions for this generation.
// Each one converts max(1, floor(size*frequency)) individuals at distinct
// positions. Introductions targeting absent or extinct populations are
// dropped with a warning.
func (e *Engine) introduceNewAlleles(st *State, generation int) {
	for _, intro := range e.reg.IntroductionsAt(generation) {
		if !st.Contains(intro.Population) {
			e.warnf("allele %s scheduled for generation %d, but population %s does not exist", intro.Allele, generation, intro.Population)
			continue
		}
		individuals := st.Individuals(intro.Population)
		if len(individuals) == 0 {
			e.warnf("allele %s scheduled for generation %d, but population %s is extinct", intro.Allele, generation, intro.Population)
			continue
		}

		if e.reg.IsActive(intro.Allele) {
			e.warnf("allele %s is already segregating at its scheduled introduction (generation %d)", intro.Allele, generation)
		} else {
			e.reg.Activate(intro.Allele)
		}

		count := int(float64(len(individuals)) * intro.InitialFrequency)
		if count < 1 {
			count = 1
		}
		for _, idx := range sampleIndices(e.rng, len(individuals), count) {
			individuals[idx] = intro.Allele
		}
	}
}

// applyMutations flips each individual with probability mutationRate: wild
// type to a uniformly chosen mutant allele, mutants back to wild type. The
// per-individual uniform draw happens whether or not a flip follows, so the
// stream of consumed randomness depends only on the population size.
func (e *Engine) applyMutations(st *State, name string) {
	if e.mutationRate <= 0 {
		return
	}
	mutants := e.reg.MutantAlleles()
	if len(mutants) == 0 {
		return
	}
	individuals := st.Individuals(name)
	for i, allele := range individuals {
		if e.rng.Float64() >= e.mutationRate {
			continue
		}
		if allele == e.reg.WildType() {
			individuals[i] = choice(e.rng, mutants)
		} else {
			individuals[i] = e.reg.WildType()
		}
	}
}

// applyMigration applies every continuous migration interval covering this
// generation. The migrant count is the destination size times the rate,
// rounded stochastically: the fractional part becomes a probability of one
// extra migrant, keeping the long-run expectation exact even for small
// populations.
func (e *Engine) applyMigration(st *State, generation int) {
	t := float64(generation)
	for _, mig := range e.graph.Migrations {
		if t > mig.StartTime || t < mig.EndTime {
			continue
		}
		src := st.Individuals(mig.Source)
		dst := st.Individuals(mig.Dest)
		if !st.Contains(mig.Source) || !st.Contains(mig.Dest) || len(src) == 0 || len(dst) == 0 {
			continue
		}

		expected := float64(len(dst)) * mig.Rate
		count := int(expected)
		if e.rng.Float64() < expected-float64(count) {
			count++
		}
		e.placeMigrants(src, dst, count)
	}
}

// applyPulses applies the instantaneous pulses firing at this generation.
// Pulse counts truncate; a pulse too small to move one individual moves
// none.
func (e *Engine) applyPulses(st *State, generation int) {
	for _, pulse := range e.graph.Pulses {
		if int(pulse.Time) != generation {
			continue
		}
		src := st.Individuals(pulse.Source)
		dst := st.Individuals(pulse.Dest)
		if !st.Contains(pulse.Source) || !st.Contains(pulse.Dest) || len(src) == 0 || len(dst) == 0 {
			continue
		}
		e.placeMigrants(src, dst, int(float64(len(dst))*pulse.Proportion))
	}
}

// placeMigrants draws count migrants with replacement from the source, then
// writes them into the destination. All source draws happen before any
// placement draw. The default placement overwrites an independently drawn
// position per migrant, so colliding positions reduce the realized count;
// distinct placement avoids collisions.
func (e *Engine) placeMigrants(src, dst []model.Allele, count int) {
	if count <= 0 {
		return
	}
	migrants := make([]model.Allele, count)
	for i := range migrants {
		migrants[i] = choice(e.rng, src)
	}
	switch e.place {
	case PlaceDistinctPositions:
		for i, idx := range sampleIndices(e.rng, len(dst), count) {
			dst[idx] = migrants[i]
		}
	default:
		for _, m := range migrants {
			dst[e.rng.Intn(len(dst))] = m
		}
	}
}
