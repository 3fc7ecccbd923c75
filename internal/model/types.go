package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Allele identifies one allelic state. Values are opaque labels; the YAML
// loaders normalize scalar alleles (0, 1, "A") to their scalar text.
type Allele string

// Frequencies maps alleles to their share of a population. A census of a
// non-extinct population sums to 1 over the active allele set; an extinct
// population records all zeros.
type Frequencies map[Allele]float64

func (f Frequencies) Clone() Frequencies {
	out := make(Frequencies, len(f))
	for allele, freq := range f {
		out[allele] = freq
	}
	return out
}

// Sum returns the total mass of the distribution.
func (f Frequencies) Sum() float64 {
	total := 0.0
	for _, freq := range f {
		total += freq
	}
	return total
}

// PopulationHistory is the ordered census sequence for one population,
// oldest generation first. Record i belongs to generation
// BirthGeneration - i of the backward-time clock.
type PopulationHistory struct {
	VersionedRecord
	Population      string        `json:"population"`
	BirthGeneration int           `json:"birth_generation"`
	Records         []Frequencies `json:"records"`
}

// RunRecord describes one completed simulation run.
type RunRecord struct {
	VersionedRecord
	ID           string   `json:"id"`
	CreatedAtUTC string   `json:"created_at_utc"`
	GraphPath    string   `json:"graph_path"`
	ConfigPath   string   `json:"config_path,omitempty"`
	Seed         int64    `json:"seed"`
	Horizon      int      `json:"horizon"`
	Populations  []string `json:"populations"`
	Warnings     []string `json:"warnings,omitempty"`
}
