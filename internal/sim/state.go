package sim

import "demesim/internal/model"

// State is the explicitly-owned simulation state: the population store and
// the per-population census history. Populations are kept in creation order
// so iteration consumes randomness deterministically. A population is never
// removed once created; extinction empties its collection while its history
// keeps recording zeros.
type State struct {
	names       []string
	populations map[string][]model.Allele
	history     map[string][]model.Frequencies
	births      map[string]int
}

func NewState() *State {
	return &State{
		populations: make(map[string][]model.Allele),
		history:     make(map[string][]model.Frequencies),
		births:      make(map[string]int),
	}
}

// Add registers a newly born population with an empty history.
func (s *State) Add(name string, individuals []model.Allele, generation int) {
	if _, exists := s.populations[name]; exists {
		return
	}
	s.names = append(s.names, name)
	s.populations[name] = individuals
	s.history[name] = []model.Frequencies{}
	s.births[name] = generation
}

func (s *State) Contains(name string) bool {
	_, ok := s.populations[name]
	return ok
}

// Individuals returns the population's current collection. The slice is the
// live backing store; operators mutate it in place.
func (s *State) Individuals(name string) []model.Allele {
	return s.populations[name]
}

func (s *State) SetIndividuals(name string, individuals []model.Allele) {
	s.populations[name] = individuals
}

// Names returns a snapshot of the population names in creation order.
func (s *State) Names() []string {
	return append([]string(nil), s.names...)
}

func (s *State) AppendRecord(name string, record model.Frequencies) {
	s.history[name] = append(s.history[name], record)
}

// Histories returns the recorded census sequences, oldest first.
func (s *State) Histories() map[string][]model.Frequencies {
	return s.history
}

// BirthGenerations maps each population to the generation it was created.
func (s *State) BirthGenerations() map[string]int {
	return s.births
}
