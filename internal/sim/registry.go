// Package sim implements the backward-time Wright-Fisher engine: population
// lifecycle, drift/selection resampling, mutation, continuous and pulse
// migration, scheduled allele introduction, and per-generation censuses.
// All randomness flows through one seeded source; the per-generation phase
// order is part of the observable contract.
package sim

import (
	"fmt"
	"math"

	"demesim/internal/model"
)

// Introduction schedules an allele to appear in a population at the
// generation its StartTime truncates to.
type Introduction struct {
	Allele           model.Allele
	Population       string
	StartTime        float64
	InitialFrequency float64
}

// InitialFrequency configures the de-novo sampling distribution: either a
// scalar (frequency of the first active allele, meaningful only when exactly
// two alleles are active) or ordered per-allele weights.
type InitialFrequency struct {
	Scalar  *float64
	Alleles []model.Allele
	Weights []float64
}

// RegistryConfig describes the allele universe and selection regime.
type RegistryConfig struct {
	// Alleles is the full universe, including alleles only introduced
	// later. Defaults to {0, 1}.
	Alleles []model.Allele
	// WildType is the mutation operator's fixed point. Defaults to 0.
	WildType              model.Allele
	SelectionCoefficients map[model.Allele]float64
	InitialFrequency      *InitialFrequency
	Introductions         []Introduction
}

// Registry owns the allele universe, the currently active subset, the
// fitness map and the introduction schedule. The active set grows when a
// scheduled allele fires.
type Registry struct {
	universe  []model.Allele
	wildType  model.Allele
	active    []model.Allele
	activeSet map[model.Allele]struct{}
	fitness   map[model.Allele]float64

	initialAlleles []model.Allele
	initialWeights []float64

	introductions map[int][]Introduction
}

// NewRegistry validates the configuration and resolves the active allele
// set, fitness map and initial-frequency distribution.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	universe := append([]model.Allele(nil), cfg.Alleles...)
	if len(universe) == 0 {
		universe = []model.Allele{"0", "1"}
	}
	inUniverse := make(map[model.Allele]struct{}, len(universe))
	for _, allele := range universe {
		inUniverse[allele] = struct{}{}
	}

	wildType := cfg.WildType
	if wildType == "" {
		wildType = "0"
	}
	if _, ok := inUniverse[wildType]; !ok {
		return nil, fmt.Errorf("wild type %q is not in the allele universe %v", wildType, universe)
	}

	future := make(map[model.Allele]struct{})
	introductions := make(map[int][]Introduction)
	for i, intro := range cfg.Introductions {
		if intro.Allele == "" || intro.Population == "" {
			return nil, fmt.Errorf("new allele entry %d: missing required fields: allele, population, start_time", i)
		}
		if _, ok := inUniverse[intro.Allele]; !ok {
			return nil, fmt.Errorf("new allele entry %d: allele %q is not in the allele universe %v", i, intro.Allele, universe)
		}
		if intro.InitialFrequency <= 0 {
			intro.InitialFrequency = 0.05
		}
		if intro.InitialFrequency > 1 {
			return nil, fmt.Errorf("new allele entry %d: initial_frequency must be in (0, 1]", i)
		}
		future[intro.Allele] = struct{}{}
		generation := int(intro.StartTime)
		introductions[generation] = append(introductions[generation], intro)
	}

	// Future alleles are held out of the active set so they are not
	// generated before their scheduled introduction.
	active := make([]model.Allele, 0, len(universe))
	for _, allele := range universe {
		if _, held := future[allele]; !held {
			active = append(active, allele)
		}
	}
	if len(active) == 0 {
		active = []model.Allele{wildType}
	}

	fitness := make(map[model.Allele]float64, len(universe))
	for _, allele := range universe {
		fitness[allele] = math.Max(0, 1.0+cfg.SelectionCoefficients[allele])
	}

	r := &Registry{
		universe:      universe,
		wildType:      wildType,
		active:        active,
		activeSet:     make(map[model.Allele]struct{}, len(universe)),
		fitness:       fitness,
		introductions: introductions,
	}
	for _, allele := range active {
		r.activeSet[allele] = struct{}{}
	}
	if err := r.resolveInitialFrequencies(cfg.InitialFrequency); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) resolveInitialFrequencies(freq *InitialFrequency) error {
	switch {
	case freq == nil:
		r.applyScalarFrequency(0.5)
	case freq.Scalar != nil:
		if *freq.Scalar < 0 || *freq.Scalar > 1 {
			return fmt.Errorf("initial frequency scalar must be in [0, 1], got %g", *freq.Scalar)
		}
		r.applyScalarFrequency(*freq.Scalar)
	default:
		if len(freq.Alleles) != len(freq.Weights) {
			return fmt.Errorf("initial frequency alleles and weights must match")
		}
		for i, allele := range freq.Alleles {
			if freq.Weights[i] < 0 {
				return fmt.Errorf("initial frequency for allele %q must be non-negative", allele)
			}
			if r.IsActive(allele) {
				r.initialAlleles = append(r.initialAlleles, allele)
				r.initialWeights = append(r.initialWeights, freq.Weights[i])
			}
		}
		if len(r.initialAlleles) == 0 {
			return fmt.Errorf("initial frequencies do not reference any active allele")
		}
	}

	total := 0.0
	for _, w := range r.initialWeights {
		total += w
	}
	if total <= 0 {
		return fmt.Errorf("initial allele frequencies must have positive total mass")
	}
	if math.Abs(total-1.0) > 1e-9 {
		for i := range r.initialWeights {
			r.initialWeights[i] /= total
		}
	}
	return nil
}

// applyScalarFrequency mirrors the scalar shorthand: with exactly two
// active alleles the scalar is the first allele's frequency; with one the
// distribution is degenerate; otherwise it falls back to uniform.
func (r *Registry) applyScalarFrequency(f float64) {
	r.initialAlleles = append([]model.Allele(nil), r.active...)
	switch len(r.active) {
	case 1:
		r.initialWeights = []float64{1.0}
	case 2:
		r.initialWeights = []float64{f, 1.0 - f}
	default:
		r.initialWeights = make([]float64, len(r.active))
		for i := range r.initialWeights {
			r.initialWeights[i] = 1.0 / float64(len(r.active))
		}
	}
}

// Active returns the active allele set in deterministic order. Callers must
// not modify the returned slice.
func (r *Registry) Active() []model.Allele {
	return r.active
}

func (r *Registry) IsActive(allele model.Allele) bool {
	_, ok := r.activeSet[allele]
	return ok
}

// Activate adds an allele to the active set.
func (r *Registry) Activate(allele model.Allele) {
	if r.IsActive(allele) {
		return
	}
	r.active = append(r.active, allele)
	r.activeSet[allele] = struct{}{}
}

func (r *Registry) WildType() model.Allele {
	return r.wildType
}

// Fitness returns 1 + selection coefficient floored at 0. Alleles outside
// the universe are neutral.
func (r *Registry) Fitness(allele model.Allele) float64 {
	if w, ok := r.fitness[allele]; ok {
		return w
	}
	return 1.0
}

// MutantAlleles returns the active alleles other than the wild type.
func (r *Registry) MutantAlleles() []model.Allele {
	out := make([]model.Allele, 0, len(r.active))
	for _, allele := range r.active {
		if allele != r.wildType {
			out = append(out, allele)
		}
	}
	return out
}

// IntroductionsAt returns the scheduled introductions firing at the given
// generation, in configuration order.
func (r *Registry) IntroductionsAt(generation int) []Introduction {
	return r.introductions[generation]
}

// ZeroFrequencies returns an all-zero distribution over the active set.
func (r *Registry) ZeroFrequencies() model.Frequencies {
	out := make(model.Frequencies, len(r.active))
	for _, allele := range r.active {
		out[allele] = 0.0
	}
	return out
}
