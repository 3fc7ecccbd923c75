package sim

import (
	"math"
	"strings"
	"testing"

	"demesim/internal/model"
)

func TestRegistryDefaults(t *testing.T) {
	reg, err := NewRegistry(RegistryConfig{})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if got := reg.Active(); len(got) != 2 || got[0] != "0" || got[1] != "1" {
		t.Fatalf("default active set = %v, want [0 1]", got)
	}
	if reg.WildType() != "0" {
		t.Fatalf("default wild type = %s, want 0", reg.WildType())
	}
	if len(reg.initialAlleles) != 2 || reg.initialWeights[0] != 0.5 || reg.initialWeights[1] != 0.5 {
		t.Fatalf("default initial distribution = %v %v", reg.initialAlleles, reg.initialWeights)
	}
}

func TestRegistryFutureAllelesHeldOut(t *testing.T) {
	reg, err := NewRegistry(RegistryConfig{
		Alleles: []model.Allele{"0", "1", "2"},
		Introductions: []Introduction{
			{Allele: "2", Population: "A", StartTime: 30},
		},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if reg.IsActive("2") {
		t.Fatalf("scheduled allele 2 must not start active")
	}
	if got := reg.Active(); len(got) != 2 {
		t.Fatalf("active set = %v, want two alleles", got)
	}
	intros := reg.IntroductionsAt(30)
	if len(intros) != 1 || intros[0].Allele != "2" {
		t.Fatalf("IntroductionsAt(30) = %v", intros)
	}
	if intros[0].InitialFrequency != 0.05 {
		t.Fatalf("default introduction frequency = %g, want 0.05", intros[0].InitialFrequency)
	}

	reg.Activate("2")
	if !reg.IsActive("2") {
		t.Fatalf("allele 2 should be active after Activate")
	}
	if got := reg.Active(); got[len(got)-1] != "2" {
		t.Fatalf("activated allele must append to the ordered set, got %v", got)
	}
}

func TestRegistryFitness(t *testing.T) {
	reg, err := NewRegistry(RegistryConfig{
		SelectionCoefficients: map[model.Allele]float64{"1": 1.0, "0": -2.0},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if got := reg.Fitness("1"); got != 2.0 {
		t.Fatalf("fitness(1) = %g, want 2.0", got)
	}
	if got := reg.Fitness("0"); got != 0.0 {
		t.Fatalf("fitness(0) = %g, want 0 (floored)", got)
	}
	if got := reg.Fitness("unknown"); got != 1.0 {
		t.Fatalf("fitness of unknown allele = %g, want neutral 1.0", got)
	}
}

func TestRegistryScalarInitialFrequency(t *testing.T) {
	scalar := 0.2
	reg, err := NewRegistry(RegistryConfig{InitialFrequency: &InitialFrequency{Scalar: &scalar}})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if reg.initialWeights[0] != 0.2 || reg.initialWeights[1] != 0.8 {
		t.Fatalf("scalar weights = %v, want [0.2 0.8]", reg.initialWeights)
	}
}

func TestRegistryMapInitialFrequencyNormalized(t *testing.T) {
	reg, err := NewRegistry(RegistryConfig{
		InitialFrequency: &InitialFrequency{
			Alleles: []model.Allele{"0", "1"},
			Weights: []float64{3, 1},
		},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if math.Abs(reg.initialWeights[0]-0.75) > 1e-12 || math.Abs(reg.initialWeights[1]-0.25) > 1e-12 {
		t.Fatalf("normalized weights = %v, want [0.75 0.25]", reg.initialWeights)
	}
}

func TestRegistryErrors(t *testing.T) {
	cases := []struct {
		name string
		cfg  RegistryConfig
		want string
	}{
		{
			name: "schedule missing fields",
			cfg:  RegistryConfig{Introductions: []Introduction{{Allele: "1"}}},
			want: "missing required fields",
		},
		{
			name: "schedule allele outside universe",
			cfg:  RegistryConfig{Introductions: []Introduction{{Allele: "7", Population: "A", StartTime: 5}}},
			want: "not in the allele universe",
		},
		{
			name: "wild type outside universe",
			cfg:  RegistryConfig{Alleles: []model.Allele{"A", "B"}},
			want: "not in the allele universe",
		},
		{
			name: "explicit wild type outside universe",
			cfg:  RegistryConfig{Alleles: []model.Allele{"0", "1"}, WildType: "2"},
			want: "not in the allele universe",
		},
		{
			name: "zero initial mass",
			cfg: RegistryConfig{InitialFrequency: &InitialFrequency{
				Alleles: []model.Allele{"0", "1"},
				Weights: []float64{0, 0},
			}},
			want: "positive total mass",
		},
		{
			name: "no active allele referenced",
			cfg: RegistryConfig{InitialFrequency: &InitialFrequency{
				Alleles: []model.Allele{"9"},
				Weights: []float64{1},
			}},
			want: "active allele",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRegistry(tc.cfg)
			if err == nil {
				t.Fatalf("expected error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error = %v, want substring %q", err, tc.want)
			}
		})
	}
}

func TestMutantAlleles(t *testing.T) {
	reg, err := NewRegistry(RegistryConfig{Alleles: []model.Allele{"0", "1", "2"}})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	got := reg.MutantAlleles()
	if len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Fatalf("MutantAlleles = %v, want [1 2]", got)
	}
}
