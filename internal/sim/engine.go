package sim

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"demesim/internal/demograph"
	"demesim/internal/model"
)

// AncestrySourcePolicy names the strategy for filling the shortfall left by
// per-ancestor proportion rounding when a population is born from ancestry.
type AncestrySourcePolicy string

const (
	// AncestryFallbackToPrimary tops up from the first ancestor's
	// collection, or uniformly from the active allele set when that
	// ancestor is empty or absent.
	AncestryFallbackToPrimary AncestrySourcePolicy = "fallback_to_primary"
	// AncestryStrictProportional leaves the shortfall unfilled.
	AncestryStrictProportional AncestrySourcePolicy = "strict_proportional"
	// AncestryFallbackToUniform tops up uniformly from the active set.
	AncestryFallbackToUniform AncestrySourcePolicy = "fallback_to_uniform"
)

// MigrantPlacement names how migrants land in the destination.
type MigrantPlacement string

const (
	// PlaceOverwriteRandom overwrites an independently drawn position per
	// migrant. Duplicate positions can shrink the realized migrant count;
	// this matches the historical behavior and is the default.
	PlaceOverwriteRandom MigrantPlacement = "overwrite_random"
	// PlaceDistinctPositions overwrites distinct positions.
	PlaceDistinctPositions MigrantPlacement = "distinct_positions"
)

// Config assembles an Engine.
type Config struct {
	Graph        *demograph.Graph
	Registry     RegistryConfig
	MutationRate float64
	Seed         int64

	AncestryPolicy AncestrySourcePolicy
	Placement      MigrantPlacement

	// Logf receives run-time anomaly messages. Nil disables logging; the
	// messages are always collected into the result's Warnings.
	Logf func(format string, args ...any)
}

// Result carries the per-population census histories, oldest first, along
// with the generation each population was born at.
type Result struct {
	History  map[string][]model.Frequencies
	Births   map[string]int
	Horizon  int
	Warnings []string
}

// Engine drives the backward-time generation loop. A single seeded random
// source serves every operator, so the phase order is part of the
// reproducibility contract.
type Engine struct {
	graph    *demograph.Graph
	reg      *Registry
	rng      *rand.Rand
	phases   []Phase
	ancestry AncestrySourcePolicy
	place    MigrantPlacement

	mutationRate float64
	logf         func(format string, args ...any)

	horizon  int
	baseline model.Frequencies
	warnings []string
}

// Phase is one named step of the per-generation pipeline. Phases run in a
// fixed order; reordering them changes results even with the same seed.
type Phase interface {
	Name() string
	Apply(st *State, generation int) error
}

func New(cfg Config) (*Engine, error) {
	if cfg.Graph == nil {
		return nil, fmt.Errorf("demographic graph is required")
	}
	if len(cfg.Graph.Demes) == 0 {
		return nil, fmt.Errorf("demographic graph has no demes")
	}
	if cfg.MutationRate > 1 {
		return nil, fmt.Errorf("mutation rate must be <= 1, got %g", cfg.MutationRate)
	}
	switch cfg.AncestryPolicy {
	case "", AncestryFallbackToPrimary, AncestryStrictProportional, AncestryFallbackToUniform:
	default:
		return nil, fmt.Errorf("unsupported ancestry policy: %s", cfg.AncestryPolicy)
	}
	switch cfg.Placement {
	case "", PlaceOverwriteRandom, PlaceDistinctPositions:
	default:
		return nil, fmt.Errorf("unsupported migrant placement: %s", cfg.Placement)
	}

	reg, err := NewRegistry(cfg.Registry)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		graph:        cfg.Graph,
		reg:          reg,
		rng:          rand.New(rand.NewSource(cfg.Seed)),
		ancestry:     cfg.AncestryPolicy,
		place:        cfg.Placement,
		mutationRate: cfg.MutationRate,
		logf:         cfg.Logf,
	}
	if e.ancestry == "" {
		e.ancestry = AncestryFallbackToPrimary
	}
	if e.place == "" {
		e.place = PlaceOverwriteRandom
	}
	e.phases = []Phase{
		&birthPhase{e},
		&introductionPhase{e},
		&reproductionPhase{e},
		&migrationPhase{e},
		&pulsePhase{e},
		&censusPhase{e},
	}
	return e, nil
}

// Registry exposes the engine's allele registry, mainly for inspection in
// tests and summaries.
func (e *Engine) Registry() *Registry {
	return e.reg
}

// Horizon is the oldest simulated generation: 100 when every deme is a
// root, otherwise the oldest finite start time (truncated) plus a
// 50-generation buffer for the ancestral population to equilibrate.
func (e *Engine) Horizon() int {
	finiteMax := math.Inf(-1)
	found := false
	for _, deme := range e.graph.Demes {
		if math.IsInf(deme.StartTime, 1) {
			continue
		}
		found = true
		if deme.StartTime > finiteMax {
			finiteMax = deme.StartTime
		}
	}
	if !found {
		return 100
	}
	return int(math.Floor(finiteMax)) + 50
}

// Run executes the generation loop from the horizon down to generation 0
// inclusive and returns the recorded histories.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	e.horizon = e.Horizon()
	e.warnings = nil
	st := NewState()

	for t := e.horizon; t >= 0; t-- {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		// Snapshot the zero-filled baseline before introductions can
		// grow the active set: an extinct population's record this
		// generation spans the alleles known at the generation's start.
		e.baseline = e.reg.ZeroFrequencies()
		for _, phase := range e.phases {
			if err := phase.Apply(st, t); err != nil {
				return Result{}, fmt.Errorf("generation %d, phase %s: %w", t, phase.Name(), err)
			}
		}
	}

	return Result{
		History:  st.Histories(),
		Births:   st.BirthGenerations(),
		Horizon:  e.horizon,
		Warnings: e.warnings,
	}, nil
}

func (e *Engine) warnf(format string, args ...any) {
	e.warnings = append(e.warnings, fmt.Sprintf(format, args...))
	if e.logf != nil {
		e.logf(format, args...)
	}
}
