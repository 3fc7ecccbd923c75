// Package demograph models a time-varying demographic topology in the
// demes style: named demes with backward-time epochs, ancestry relations,
// continuous migration intervals and instantaneous pulses. Times count
// generations before present; a deme's start_time is older than its
// end_time.
package demograph

import (
	"fmt"
	"math"
)

const (
	SizeFunctionConstant    = "constant"
	SizeFunctionExponential = "exponential"
	SizeFunctionLinear      = "linear"
)

// Epoch is one resolved interval of a deme's existence. StartTime may be
// +Inf for the oldest epoch of a root deme, in which case the size function
// is constant.
type Epoch struct {
	StartTime    float64 `yaml:"start_time" json:"start_time"`
	EndTime      float64 `yaml:"end_time" json:"end_time"`
	StartSize    float64 `yaml:"start_size" json:"start_size"`
	EndSize      float64 `yaml:"end_size" json:"end_size"`
	SizeFunction string  `yaml:"size_function" json:"size_function"`
}

// Deme is a resolved population description. A root deme has no ancestors
// and an infinite StartTime.
type Deme struct {
	Name        string    `yaml:"name" json:"name"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	StartTime   float64   `yaml:"start_time" json:"start_time"`
	Ancestors   []string  `yaml:"ancestors,omitempty" json:"ancestors,omitempty"`
	Proportions []float64 `yaml:"proportions,omitempty" json:"proportions,omitempty"`
	Epochs      []Epoch   `yaml:"epochs" json:"epochs"`
}

// EndTime is the most recent time the deme exists, i.e. the end of its last
// epoch.
func (d *Deme) EndTime() float64 {
	if len(d.Epochs) == 0 {
		return 0
	}
	return d.Epochs[len(d.Epochs)-1].EndTime
}

// SizeAt returns the deme's census size at time t, or 0 when the deme does
// not exist at t.
func (d *Deme) SizeAt(t float64) float64 {
	if t > d.StartTime || t < d.EndTime() {
		return 0
	}
	for _, epoch := range d.Epochs {
		if t > epoch.StartTime || t < epoch.EndTime {
			continue
		}
		switch epoch.SizeFunction {
		case SizeFunctionConstant:
			return epoch.StartSize
		case SizeFunctionLinear:
			frac := (epoch.StartTime - t) / (epoch.StartTime - epoch.EndTime)
			return epoch.StartSize + (epoch.EndSize-epoch.StartSize)*frac
		default: // exponential
			frac := (epoch.StartTime - t) / (epoch.StartTime - epoch.EndTime)
			return epoch.StartSize * math.Pow(epoch.EndSize/epoch.StartSize, frac)
		}
	}
	return 0
}

// Migration is a continuous migration interval. Rate is the expected
// per-generation fraction of the destination replaced by source-drawn
// individuals, active while EndTime <= t <= StartTime.
type Migration struct {
	Source    string  `yaml:"source" json:"source"`
	Dest      string  `yaml:"dest" json:"dest"`
	Rate      float64 `yaml:"rate" json:"rate"`
	StartTime float64 `yaml:"start_time" json:"start_time"`
	EndTime   float64 `yaml:"end_time" json:"end_time"`
}

// Pulse is an instantaneous replacement of a proportion of Dest with
// individuals drawn from Source at the given time.
type Pulse struct {
	Source     string  `yaml:"source" json:"source"`
	Dest       string  `yaml:"dest" json:"dest"`
	Proportion float64 `yaml:"proportion" json:"proportion"`
	Time       float64 `yaml:"time" json:"time"`
}

// Graph is a fully resolved demographic model.
type Graph struct {
	TimeUnits  string      `yaml:"time_units,omitempty" json:"time_units,omitempty"`
	Demes      []Deme      `yaml:"demes" json:"demes"`
	Migrations []Migration `yaml:"migrations,omitempty" json:"migrations,omitempty"`
	Pulses     []Pulse     `yaml:"pulses,omitempty" json:"pulses,omitempty"`
}

// Deme returns the named deme, if present.
func (g *Graph) Deme(name string) (*Deme, bool) {
	for i := range g.Demes {
		if g.Demes[i].Name == name {
			return &g.Demes[i], true
		}
	}
	return nil, false
}

// SizeAt returns the census size of the named deme at time t, or 0 when the
// deme is unknown or does not exist at t.
func (g *Graph) SizeAt(name string, t float64) float64 {
	deme, ok := g.Deme(name)
	if !ok {
		return 0
	}
	return deme.SizeAt(t)
}

// Validate checks a hand-constructed graph for the invariants Load
// guarantees. Loaded graphs are always valid.
func (g *Graph) Validate() error {
	if len(g.Demes) == 0 {
		return fmt.Errorf("graph requires at least one deme")
	}
	seen := make(map[string]struct{}, len(g.Demes))
	for i := range g.Demes {
		d := &g.Demes[i]
		if d.Name == "" {
			return fmt.Errorf("deme %d: name is required", i)
		}
		if _, dup := seen[d.Name]; dup {
			return fmt.Errorf("duplicate deme: %s", d.Name)
		}
		seen[d.Name] = struct{}{}
		if len(d.Epochs) == 0 {
			return fmt.Errorf("deme %s: at least one epoch is required", d.Name)
		}
		if err := validateEpochs(d); err != nil {
			return err
		}
		if len(d.Proportions) > 0 && len(d.Proportions) != len(d.Ancestors) {
			return fmt.Errorf("deme %s: proportions must match ancestors", d.Name)
		}
		for _, ancestor := range d.Ancestors {
			if ancestor == d.Name {
				return fmt.Errorf("deme %s: cannot be its own ancestor", d.Name)
			}
			if _, ok := seen[ancestor]; !ok {
				return fmt.Errorf("deme %s: unknown ancestor %s (ancestors must be declared first)", d.Name, ancestor)
			}
		}
	}
	for i, m := range g.Migrations {
		if err := g.validateEndpoints("migration", i, m.Source, m.Dest); err != nil {
			return err
		}
		if m.Rate <= 0 || m.Rate > 1 {
			return fmt.Errorf("migration %d: rate must be in (0, 1]", i)
		}
		if m.EndTime > m.StartTime {
			return fmt.Errorf("migration %d: end_time must not exceed start_time", i)
		}
	}
	for i, p := range g.Pulses {
		if err := g.validateEndpoints("pulse", i, p.Source, p.Dest); err != nil {
			return err
		}
		if p.Proportion <= 0 || p.Proportion > 1 {
			return fmt.Errorf("pulse %d: proportion must be in (0, 1]", i)
		}
	}
	return nil
}

func (g *Graph) validateEndpoints(kind string, index int, source, dest string) error {
	if source == "" || dest == "" {
		return fmt.Errorf("%s %d: source and dest are required", kind, index)
	}
	if source == dest {
		return fmt.Errorf("%s %d: source and dest must differ", kind, index)
	}
	if _, ok := g.Deme(source); !ok {
		return fmt.Errorf("%s %d: unknown deme %s", kind, index, source)
	}
	if _, ok := g.Deme(dest); !ok {
		return fmt.Errorf("%s %d: unknown deme %s", kind, index, dest)
	}
	return nil
}

func validateEpochs(d *Deme) error {
	prevEnd := d.StartTime
	for i, epoch := range d.Epochs {
		if epoch.StartTime != prevEnd {
			return fmt.Errorf("deme %s epoch %d: start_time must equal previous end_time", d.Name, i)
		}
		if epoch.EndTime >= epoch.StartTime {
			return fmt.Errorf("deme %s epoch %d: end_time must precede start_time", d.Name, i)
		}
		if epoch.StartSize < 0 || epoch.EndSize < 0 {
			return fmt.Errorf("deme %s epoch %d: sizes must be non-negative", d.Name, i)
		}
		switch epoch.SizeFunction {
		case SizeFunctionConstant, SizeFunctionExponential, SizeFunctionLinear:
		default:
			return fmt.Errorf("deme %s epoch %d: unsupported size_function %q", d.Name, i, epoch.SizeFunction)
		}
		if math.IsInf(epoch.StartTime, 1) && epoch.SizeFunction != SizeFunctionConstant {
			return fmt.Errorf("deme %s epoch %d: infinite epoch must have constant size", d.Name, i)
		}
		prevEnd = epoch.EndTime
	}
	return nil
}
