package simconfig

import (
	"strings"
	"testing"
)

func TestDecodeFull(t *testing.T) {
	doc := `
alleles: [0, 1, 2]
wild_type: 0
initial_frequency: 0.5
mutation_rate: 0.001
seed: 42
selection_coefficients:
  1: 0.5
  2: -0.25
new_alleles:
  - allele: 2
    population: island
    start_time: 30
`
	cfg, err := Decode([]byte(doc))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(cfg.Alleles) != 3 || cfg.Alleles[2] != "2" {
		t.Fatalf("alleles should normalize to scalar text, got %v", cfg.Alleles)
	}
	if cfg.WildType != "0" {
		t.Fatalf("unexpected wild type: %s", cfg.WildType)
	}
	if cfg.InitialFrequency == nil || cfg.InitialFrequency.Scalar == nil || *cfg.InitialFrequency.Scalar != 0.5 {
		t.Fatalf("unexpected initial frequency: %+v", cfg.InitialFrequency)
	}
	if cfg.MutationRate != 0.001 {
		t.Fatalf("unexpected mutation rate: %g", cfg.MutationRate)
	}
	if cfg.Seed == nil || *cfg.Seed != 42 {
		t.Fatalf("unexpected seed: %v", cfg.Seed)
	}
	if got := cfg.SelectionCoefficients["1"]; got != 0.5 {
		t.Fatalf("unexpected selection coefficient: %g", got)
	}
	if len(cfg.NewAlleles) != 1 {
		t.Fatalf("unexpected schedule: %+v", cfg.NewAlleles)
	}
	entry := cfg.NewAlleles[0]
	if entry.Allele != "2" || entry.Population != "island" || entry.StartTime != 30 {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.InitialFrequency != 0.05 {
		t.Fatalf("initial_frequency should default to 0.05, got %g", entry.InitialFrequency)
	}
}

func TestDecodeInitialFrequencyMap(t *testing.T) {
	doc := `
alleles: [a, b]
wild_type: a
initial_frequency:
  a: 0.9
  b: 0.1
`
	cfg, err := Decode([]byte(doc))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	freq := cfg.InitialFrequency
	if freq == nil || freq.ByAllele == nil {
		t.Fatalf("expected mapping form, got %+v", freq)
	}
	if freq.ByAllele["a"] != 0.9 || freq.ByAllele["b"] != 0.1 {
		t.Fatalf("unexpected frequencies: %v", freq.ByAllele)
	}
	if len(freq.ByAlleleOrder) != 2 || freq.ByAlleleOrder[0] != "a" {
		t.Fatalf("document order not preserved: %v", freq.ByAlleleOrder)
	}
}

func TestDecodeErrors(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{
			"missing schedule fields",
			"alleles: [0, 1]\nnew_alleles:\n  - population: p\n    start_time: 10\n",
			"missing required fields",
		},
		{
			"schedule allele outside universe",
			"alleles: [0, 1]\nnew_alleles:\n  - allele: 9\n    population: p\n    start_time: 10\n",
			"not in the alleles list",
		},
		{
			"mutation rate out of range",
			"mutation_rate: 1.5\n",
			"mutation_rate",
		},
		{
			"bad scalar frequency",
			"initial_frequency: 2.0\n",
			"initial_frequency",
		},
		{
			"negative map frequency",
			"initial_frequency:\n  0: -0.5\n  1: 1.5\n",
			"non-negative",
		},
		{
			"duplicate allele",
			"alleles: [0, 0]\n",
			"duplicate allele",
		},
		{
			"default wild type outside alleles",
			"alleles: [A, B]\n",
			"wild_type",
		},
		{
			"explicit wild type outside alleles",
			"alleles: [0, 1]\nwild_type: 2\n",
			"wild_type",
		},
		{
			"bad schedule frequency",
			"alleles: [0, 1]\nnew_alleles:\n  - allele: 1\n    population: p\n    start_time: 10\n    initial_frequency: 0\n",
			"initial_frequency",
		},
	}
	for _, tc := range cases {
		_, err := Decode([]byte(tc.doc))
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: error %q does not mention %q", tc.name, err, tc.want)
		}
	}
}

func TestDecodeEmptyDocument(t *testing.T) {
	cfg, err := Decode([]byte(""))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.WildType != "0" {
		t.Fatalf("wild type should default to 0, got %s", cfg.WildType)
	}
	if cfg.InitialFrequency != nil || cfg.MutationRate != 0 || cfg.Seed != nil {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}
