// Package simconfig loads the allele/selection configuration and the
// new-allele schedule that accompany a demographic graph. Malformed entries
// fail at load time; the simulation core never re-reads files.
package simconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"demesim/internal/model"
)

// InitialFrequency is either a scalar (the frequency of the first active
// allele, valid only when exactly two alleles are active) or an explicit
// per-allele map.
type InitialFrequency struct {
	Scalar   *float64
	ByAllele map[model.Allele]float64
	// ByAlleleOrder preserves the document order of map keys so weighted
	// draws consume randomness deterministically.
	ByAlleleOrder []model.Allele
}

// NewAllele schedules the introduction of an allele into a population at a
// generation. InitialFrequency defaults to 0.05.
type NewAllele struct {
	Allele           model.Allele
	Population       string
	StartTime        float64
	InitialFrequency float64
}

// Config is the resolved simulation configuration.
type Config struct {
	Alleles               []model.Allele
	WildType              model.Allele
	InitialFrequency      *InitialFrequency
	MutationRate          float64
	Seed                  *int64
	SelectionCoefficients map[model.Allele]float64
	NewAlleles            []NewAllele
}

// The yaml.v3 decoder only defers decoding for value-typed yaml.Node fields
// (it rejects *yaml.Node), so optional nodes are value fields and absence is
// detected with Node.IsZero.
type rawNewAllele struct {
	Allele           yaml.Node `yaml:"allele"`
	Population       *string   `yaml:"population"`
	StartTime        *float64  `yaml:"start_time"`
	InitialFrequency *float64  `yaml:"initial_frequency"`
}

type rawConfig struct {
	Alleles               []yaml.Node    `yaml:"alleles"`
	WildType              yaml.Node      `yaml:"wild_type"`
	InitialFrequency      yaml.Node      `yaml:"initial_frequency"`
	MutationRate          *float64       `yaml:"mutation_rate"`
	Seed                  *int64         `yaml:"seed"`
	SelectionCoefficients yaml.Node      `yaml:"selection_coefficients"`
	NewAlleles            []rawNewAllele `yaml:"new_alleles"`
}

// Load reads a simulation config from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode parses a simulation config document.
func Decode(data []byte) (*Config, error) {
	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	cfg := &Config{WildType: "0"}

	for i := range raw.Alleles {
		allele, err := alleleFromNode(&raw.Alleles[i])
		if err != nil {
			return nil, fmt.Errorf("alleles[%d]: %w", i, err)
		}
		cfg.Alleles = append(cfg.Alleles, allele)
	}
	if !raw.WildType.IsZero() {
		allele, err := alleleFromNode(&raw.WildType)
		if err != nil {
			return nil, fmt.Errorf("wild_type: %w", err)
		}
		cfg.WildType = allele
	}

	if !raw.InitialFrequency.IsZero() {
		freq, err := decodeInitialFrequency(&raw.InitialFrequency)
		if err != nil {
			return nil, err
		}
		cfg.InitialFrequency = freq
	}

	if raw.MutationRate != nil {
		cfg.MutationRate = *raw.MutationRate
		if cfg.MutationRate < 0 || cfg.MutationRate > 1 {
			return nil, fmt.Errorf("mutation_rate must be in [0, 1], got %g", cfg.MutationRate)
		}
	}
	cfg.Seed = raw.Seed

	if !raw.SelectionCoefficients.IsZero() {
		coefficients, _, err := alleleMapFromNode(&raw.SelectionCoefficients, "selection_coefficients")
		if err != nil {
			return nil, err
		}
		cfg.SelectionCoefficients = coefficients
	}

	for i, entry := range raw.NewAlleles {
		if entry.Allele.IsZero() || entry.Population == nil || entry.StartTime == nil {
			return nil, fmt.Errorf("new_alleles[%d]: missing required fields: allele, population, start_time", i)
		}
		allele, err := alleleFromNode(&entry.Allele)
		if err != nil {
			return nil, fmt.Errorf("new_alleles[%d]: %w", i, err)
		}
		if *entry.Population == "" {
			return nil, fmt.Errorf("new_alleles[%d]: population must not be empty", i)
		}
		frequency := 0.05
		if entry.InitialFrequency != nil {
			frequency = *entry.InitialFrequency
			if frequency <= 0 || frequency > 1 {
				return nil, fmt.Errorf("new_alleles[%d]: initial_frequency must be in (0, 1]", i)
			}
		}
		cfg.NewAlleles = append(cfg.NewAlleles, NewAllele{
			Allele:           allele,
			Population:       *entry.Population,
			StartTime:        *entry.StartTime,
			InitialFrequency: frequency,
		})
	}

	if len(cfg.Alleles) > 0 {
		seen := make(map[model.Allele]struct{}, len(cfg.Alleles))
		for _, allele := range cfg.Alleles {
			if _, dup := seen[allele]; dup {
				return nil, fmt.Errorf("duplicate allele %q", allele)
			}
			seen[allele] = struct{}{}
		}
		for i, entry := range cfg.NewAlleles {
			if _, ok := seen[entry.Allele]; !ok {
				return nil, fmt.Errorf("new_alleles[%d]: allele %q is not in the alleles list", i, entry.Allele)
			}
		}
		if _, ok := seen[cfg.WildType]; !ok {
			return nil, fmt.Errorf("wild_type %q is not in the alleles list", cfg.WildType)
		}
	}

	return cfg, nil
}

func decodeInitialFrequency(node *yaml.Node) (*InitialFrequency, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		var scalar float64
		if err := node.Decode(&scalar); err != nil {
			return nil, fmt.Errorf("initial_frequency: %w", err)
		}
		if scalar < 0 || scalar > 1 {
			return nil, fmt.Errorf("initial_frequency scalar must be in [0, 1], got %g", scalar)
		}
		return &InitialFrequency{Scalar: &scalar}, nil
	case yaml.MappingNode:
		byAllele, order, err := alleleMapFromNode(node, "initial_frequency")
		if err != nil {
			return nil, err
		}
		for allele, freq := range byAllele {
			if freq < 0 {
				return nil, fmt.Errorf("initial_frequency[%s] must be non-negative", allele)
			}
		}
		return &InitialFrequency{ByAllele: byAllele, ByAlleleOrder: order}, nil
	default:
		return nil, fmt.Errorf("initial_frequency must be a scalar or a mapping")
	}
}

func alleleFromNode(node *yaml.Node) (model.Allele, error) {
	if node.Kind != yaml.ScalarNode {
		return "", fmt.Errorf("allele must be a scalar")
	}
	if node.Value == "" {
		return "", fmt.Errorf("allele must not be empty")
	}
	return model.Allele(node.Value), nil
}

func alleleMapFromNode(node *yaml.Node, field string) (map[model.Allele]float64, []model.Allele, error) {
	if node.Kind != yaml.MappingNode {
		return nil, nil, fmt.Errorf("%s must be a mapping", field)
	}
	out := make(map[model.Allele]float64, len(node.Content)/2)
	order := make([]model.Allele, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		allele, err := alleleFromNode(node.Content[i])
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", field, err)
		}
		var value float64
		if err := node.Content[i+1].Decode(&value); err != nil {
			return nil, nil, fmt.Errorf("%s[%s]: %w", field, allele, err)
		}
		if _, dup := out[allele]; dup {
			return nil, nil, fmt.Errorf("%s: duplicate allele %q", field, allele)
		}
		out[allele] = value
		order = append(order, allele)
	}
	return out, order, nil
}
