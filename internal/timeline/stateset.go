package timeline

// StateSet is an insertion-ordered set of states, each paired with the
// local percent it was resolved at. Membership comparisons ignore order.
//
// States are used as map keys, so implementations must be comparable
// (pointer receivers in practice).
type StateSet struct {
	order   []PlayableState
	percent map[PlayableState]float64
}

// NewStateSet returns an empty set.
func NewStateSet() *StateSet {
	return &StateSet{percent: make(map[PlayableState]float64)}
}

// Add inserts s. When s is already present the higher percent is kept.
func (s *StateSet) Add(state PlayableState, percent float64) {
	if prev, ok := s.percent[state]; ok {
		if percent > prev {
			s.percent[state] = percent
		}
		return
	}
	s.order = append(s.order, state)
	s.percent[state] = percent
}

// Has reports membership.
func (s *StateSet) Has(state PlayableState) bool {
	if s == nil {
		return false
	}
	_, ok := s.percent[state]
	return ok
}

// Percent returns the local percent recorded for state.
func (s *StateSet) Percent(state PlayableState) (float64, bool) {
	if s == nil {
		return 0, false
	}
	p, ok := s.percent[state]
	return p, ok
}

// Len returns the number of states.
func (s *StateSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// States returns the members in discovery order.
func (s *StateSet) States() []PlayableState {
	if s == nil {
		return nil
	}
	out := make([]PlayableState, len(s.order))
	copy(out, s.order)
	return out
}

// SameMembers reports whether both sets hold exactly the same states.
func (s *StateSet) SameMembers(other *StateSet) bool {
	if s.Len() != other.Len() {
		return false
	}
	for _, st := range s.States() {
		if !other.Has(st) {
			return false
		}
	}
	return true
}
