package demograph

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

type rawEpoch struct {
	EndTime      *float64 `yaml:"end_time"`
	StartSize    *float64 `yaml:"start_size"`
	EndSize      *float64 `yaml:"end_size"`
	SizeFunction string   `yaml:"size_function"`
}

type rawDeme struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	StartTime   *float64   `yaml:"start_time"`
	Ancestors   []string   `yaml:"ancestors"`
	Proportions []float64  `yaml:"proportions"`
	Epochs      []rawEpoch `yaml:"epochs"`
}

type rawMigration struct {
	Demes     []string `yaml:"demes"`
	Source    string   `yaml:"source"`
	Dest      string   `yaml:"dest"`
	Rate      float64  `yaml:"rate"`
	StartTime *float64 `yaml:"start_time"`
	EndTime   *float64 `yaml:"end_time"`
}

type rawPulse struct {
	Source      string    `yaml:"source"`
	Sources     []string  `yaml:"sources"`
	Dest        string    `yaml:"dest"`
	Proportion  *float64  `yaml:"proportion"`
	Proportions []float64 `yaml:"proportions"`
	Time        *float64  `yaml:"time"`
}

type rawGraph struct {
	TimeUnits  string         `yaml:"time_units"`
	Demes      []rawDeme      `yaml:"demes"`
	Migrations []rawMigration `yaml:"migrations"`
	Pulses     []rawPulse     `yaml:"pulses"`
}

// Load reads and resolves a demes-style YAML graph from disk.
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	graph, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("load graph %s: %w", path, err)
	}
	return graph, nil
}

// Decode parses and resolves a demes-style YAML document. Defaults follow
// the demes conventions: a deme without ancestors starts at infinity, a sole
// ancestor supplies the default start time, the last epoch ends at 0, epoch
// sizes inherit, and proportions default to uniform. Symmetric migrations
// declared with a demes list expand to all ordered pairs.
func Decode(data []byte) (*Graph, error) {
	var raw rawGraph
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if len(raw.Demes) == 0 {
		return nil, fmt.Errorf("graph requires at least one deme")
	}

	graph := &Graph{TimeUnits: raw.TimeUnits}
	for i, rd := range raw.Demes {
		deme, err := resolveDeme(graph, i, rd)
		if err != nil {
			return nil, err
		}
		graph.Demes = append(graph.Demes, deme)
	}
	for i, rm := range raw.Migrations {
		migrations, err := resolveMigration(graph, i, rm)
		if err != nil {
			return nil, err
		}
		graph.Migrations = append(graph.Migrations, migrations...)
	}
	for i, rp := range raw.Pulses {
		pulses, err := resolvePulse(graph, i, rp)
		if err != nil {
			return nil, err
		}
		graph.Pulses = append(graph.Pulses, pulses...)
	}
	if err := graph.Validate(); err != nil {
		return nil, err
	}
	return graph, nil
}

func resolveDeme(graph *Graph, index int, rd rawDeme) (Deme, error) {
	if rd.Name == "" {
		return Deme{}, fmt.Errorf("deme %d: name is required", index)
	}
	if _, dup := graph.Deme(rd.Name); dup {
		return Deme{}, fmt.Errorf("duplicate deme: %s", rd.Name)
	}
	for _, ancestor := range rd.Ancestors {
		if ancestor == rd.Name {
			return Deme{}, fmt.Errorf("deme %s: cannot be its own ancestor", rd.Name)
		}
		if _, ok := graph.Deme(ancestor); !ok {
			return Deme{}, fmt.Errorf("deme %s: unknown ancestor %s (ancestors must be declared first)", rd.Name, ancestor)
		}
	}

	startTime, err := resolveStartTime(graph, rd)
	if err != nil {
		return Deme{}, err
	}

	proportions := append([]float64(nil), rd.Proportions...)
	if len(rd.Ancestors) > 0 && len(proportions) == 0 {
		proportions = make([]float64, len(rd.Ancestors))
		for i := range proportions {
			proportions[i] = 1.0 / float64(len(rd.Ancestors))
		}
	}
	if len(proportions) > 0 {
		if len(proportions) != len(rd.Ancestors) {
			return Deme{}, fmt.Errorf("deme %s: proportions must match ancestors", rd.Name)
		}
		total := 0.0
		for _, p := range proportions {
			if p < 0 {
				return Deme{}, fmt.Errorf("deme %s: proportions must be non-negative", rd.Name)
			}
			total += p
		}
		if math.Abs(total-1.0) > 1e-6 {
			return Deme{}, fmt.Errorf("deme %s: proportions must sum to 1", rd.Name)
		}
	}

	if len(rd.Epochs) == 0 {
		return Deme{}, fmt.Errorf("deme %s: at least one epoch is required", rd.Name)
	}
	epochs, err := resolveEpochs(rd.Name, startTime, rd.Epochs)
	if err != nil {
		return Deme{}, err
	}

	return Deme{
		Name:        rd.Name,
		Description: rd.Description,
		StartTime:   startTime,
		Ancestors:   append([]string(nil), rd.Ancestors...),
		Proportions: proportions,
		Epochs:      epochs,
	}, nil
}

func resolveStartTime(graph *Graph, rd rawDeme) (float64, error) {
	if rd.StartTime != nil {
		if len(rd.Ancestors) == 0 && !math.IsInf(*rd.StartTime, 1) && *rd.StartTime <= 0 {
			return 0, fmt.Errorf("deme %s: start_time must be positive", rd.Name)
		}
		return *rd.StartTime, nil
	}
	switch len(rd.Ancestors) {
	case 0:
		return math.Inf(1), nil
	case 1:
		ancestor, _ := graph.Deme(rd.Ancestors[0])
		end := ancestor.EndTime()
		if end <= 0 {
			return 0, fmt.Errorf("deme %s: start_time is required (ancestor %s exists until 0)", rd.Name, rd.Ancestors[0])
		}
		return end, nil
	default:
		return 0, fmt.Errorf("deme %s: start_time is required with multiple ancestors", rd.Name)
	}
}

func resolveEpochs(name string, startTime float64, raws []rawEpoch) ([]Epoch, error) {
	epochs := make([]Epoch, 0, len(raws))
	prevStart := startTime
	var prevEndSize float64
	for i, re := range raws {
		epoch := Epoch{StartTime: prevStart}

		switch {
		case re.EndTime != nil:
			epoch.EndTime = *re.EndTime
		case i == len(raws)-1:
			epoch.EndTime = 0
		default:
			return nil, fmt.Errorf("deme %s epoch %d: end_time is required for non-final epochs", name, i)
		}
		if epoch.EndTime < 0 || epoch.EndTime >= epoch.StartTime {
			return nil, fmt.Errorf("deme %s epoch %d: end_time must be in [0, start_time)", name, i)
		}

		switch {
		case re.StartSize != nil:
			epoch.StartSize = *re.StartSize
		case i > 0:
			epoch.StartSize = prevEndSize
		default:
			return nil, fmt.Errorf("deme %s epoch 0: start_size is required", name)
		}
		if re.EndSize != nil {
			epoch.EndSize = *re.EndSize
		} else {
			epoch.EndSize = epoch.StartSize
		}
		if epoch.StartSize < 0 || epoch.EndSize < 0 {
			return nil, fmt.Errorf("deme %s epoch %d: sizes must be non-negative", name, i)
		}

		epoch.SizeFunction = re.SizeFunction
		if epoch.SizeFunction == "" {
			if epoch.StartSize == epoch.EndSize {
				epoch.SizeFunction = SizeFunctionConstant
			} else {
				epoch.SizeFunction = SizeFunctionExponential
			}
		}
		switch epoch.SizeFunction {
		case SizeFunctionConstant, SizeFunctionExponential, SizeFunctionLinear:
		default:
			return nil, fmt.Errorf("deme %s epoch %d: unsupported size_function %q", name, i, epoch.SizeFunction)
		}
		if epoch.SizeFunction == SizeFunctionConstant && epoch.StartSize != epoch.EndSize {
			return nil, fmt.Errorf("deme %s epoch %d: constant epoch requires start_size == end_size", name, i)
		}
		if math.IsInf(epoch.StartTime, 1) && epoch.SizeFunction != SizeFunctionConstant {
			return nil, fmt.Errorf("deme %s epoch %d: infinite epoch must have constant size", name, i)
		}

		epochs = append(epochs, epoch)
		prevStart = epoch.EndTime
		prevEndSize = epoch.EndSize
	}
	return epochs, nil
}

func resolveMigration(graph *Graph, index int, rm rawMigration) ([]Migration, error) {
	if rm.Rate <= 0 || rm.Rate > 1 {
		return nil, fmt.Errorf("migration %d: rate must be in (0, 1]", index)
	}

	var pairs [][2]string
	switch {
	case len(rm.Demes) > 0:
		if rm.Source != "" || rm.Dest != "" {
			return nil, fmt.Errorf("migration %d: demes list and source/dest are mutually exclusive", index)
		}
		if len(rm.Demes) < 2 {
			return nil, fmt.Errorf("migration %d: demes list requires at least two demes", index)
		}
		for _, a := range rm.Demes {
			for _, b := range rm.Demes {
				if a != b {
					pairs = append(pairs, [2]string{a, b})
				}
			}
		}
	case rm.Source != "" && rm.Dest != "":
		pairs = append(pairs, [2]string{rm.Source, rm.Dest})
	default:
		return nil, fmt.Errorf("migration %d: source and dest (or a demes list) are required", index)
	}

	out := make([]Migration, 0, len(pairs))
	for _, pair := range pairs {
		source, dest := pair[0], pair[1]
		start, end, err := migrationWindow(graph, index, source, dest, rm.StartTime, rm.EndTime)
		if err != nil {
			return nil, err
		}
		out = append(out, Migration{
			Source:    source,
			Dest:      dest,
			Rate:      rm.Rate,
			StartTime: start,
			EndTime:   end,
		})
	}
	return out, nil
}

// migrationWindow defaults the interval to the full overlap of the two
// demes' existence: oldest shared time down to the latest shared end.
func migrationWindow(graph *Graph, index int, source, dest string, start, end *float64) (float64, float64, error) {
	sourceDeme, ok := graph.Deme(source)
	if !ok {
		return 0, 0, fmt.Errorf("migration %d: unknown deme %s", index, source)
	}
	destDeme, ok := graph.Deme(dest)
	if !ok {
		return 0, 0, fmt.Errorf("migration %d: unknown deme %s", index, dest)
	}

	oldest := math.Min(sourceDeme.StartTime, destDeme.StartTime)
	newest := math.Max(sourceDeme.EndTime(), destDeme.EndTime())

	startTime := oldest
	if start != nil {
		startTime = *start
	}
	endTime := newest
	if end != nil {
		endTime = *end
	}
	if startTime > oldest || endTime < newest {
		return 0, 0, fmt.Errorf("migration %d: interval [%g, %g] exceeds the coexistence of %s and %s", index, endTime, startTime, source, dest)
	}
	if endTime > startTime {
		return 0, 0, fmt.Errorf("migration %d: end_time must not exceed start_time", index)
	}
	return startTime, endTime, nil
}

func resolvePulse(graph *Graph, index int, rp rawPulse) ([]Pulse, error) {
	if rp.Time == nil {
		return nil, fmt.Errorf("pulse %d: time is required", index)
	}
	if rp.Dest == "" {
		return nil, fmt.Errorf("pulse %d: dest is required", index)
	}

	sources := rp.Sources
	proportions := rp.Proportions
	if rp.Source != "" {
		if len(sources) > 0 {
			return nil, fmt.Errorf("pulse %d: source and sources are mutually exclusive", index)
		}
		sources = []string{rp.Source}
	}
	if rp.Proportion != nil {
		if len(proportions) > 0 {
			return nil, fmt.Errorf("pulse %d: proportion and proportions are mutually exclusive", index)
		}
		proportions = []float64{*rp.Proportion}
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("pulse %d: source is required", index)
	}
	if len(proportions) != len(sources) {
		return nil, fmt.Errorf("pulse %d: proportions must match sources", index)
	}

	out := make([]Pulse, 0, len(sources))
	for i, source := range sources {
		if _, ok := graph.Deme(source); !ok {
			return nil, fmt.Errorf("pulse %d: unknown deme %s", index, source)
		}
		if _, ok := graph.Deme(rp.Dest); !ok {
			return nil, fmt.Errorf("pulse %d: unknown deme %s", index, rp.Dest)
		}
		if proportions[i] <= 0 || proportions[i] > 1 {
			return nil, fmt.Errorf("pulse %d: proportion must be in (0, 1]", index)
		}
		out = append(out, Pulse{
			Source:     source,
			Dest:       rp.Dest,
			Proportion: proportions[i],
			Time:       *rp.Time,
		})
	}
	return out, nil
}
