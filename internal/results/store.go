package results

import (
	"slices"
	"sync"

	"github.com/roman-kulish/attenuator-bench/internal/reduce"
)

// Store holds the result set of the latest measurement run. Readers only
// ever receive copies; the set is replaced as a whole.
type Store struct {
	mu  sync.RWMutex
	set reduce.ResultSet
}

// New creates an empty store
func New() *Store {
	return &Store{set: empty()}
}

// Clear resets every field to an empty sequence
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set = empty()
}

// Replace installs a copy of rs as the current result set
func (s *Store) Replace(rs *reduce.ResultSet) {
	if rs == nil {
		s.Clear()
		return
	}

	c := clone(rs)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.set = c
}

// Empty returns true if the store holds no results
func (s *Store) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.set.Freqs) == 0 && len(s.set.NormalizedAtt) == 0
}

// Snapshot returns a deep copy of the current result set
func (s *Store) Snapshot() reduce.ResultSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(&s.set)
}

// Freqs returns the frequency axis in Hz
func (s *Store) Freqs() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.set.Freqs)
}

// Baseline returns the S21 trace of the first code applied
func (s *Store) Baseline() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.set.Baseline)
}

// NormalizedAtt returns the S21 traces relative to the baseline
func (s *Store) NormalizedAtt() [][]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone2D(s.set.NormalizedAtt)
}

// S11 returns the input reflection traces, one per code
func (s *Store) S11() [][]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone2D(s.set.S11)
}

// S22 returns the output reflection traces, one per code
func (s *Store) S22() [][]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone2D(s.set.S22)
}

// AttErrPerCode returns the deviation of each code from its nominal attenuation
func (s *Store) AttErrPerCode() [][]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone2D(s.set.AttErrPerCode)
}

// Att returns the uncalibrated S21 traces
func (s *Store) Att() [][]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone2D(s.set.Att)
}

func empty() reduce.ResultSet {
	return reduce.ResultSet{
		Freqs:         []float64{},
		Baseline:      []float64{},
		NormalizedAtt: [][]float64{},
		S11:           [][]float64{},
		S22:           [][]float64{},
		AttErrPerCode: [][]float64{},
		Att:           [][]float64{},
	}
}

func clone(rs *reduce.ResultSet) reduce.ResultSet {
	return reduce.ResultSet{
		Freqs:         cloneOrEmpty(rs.Freqs),
		Baseline:      cloneOrEmpty(rs.Baseline),
		NormalizedAtt: clone2D(rs.NormalizedAtt),
		S11:           clone2D(rs.S11),
		S22:           clone2D(rs.S22),
		AttErrPerCode: clone2D(rs.AttErrPerCode),
		Att:           clone2D(rs.Att),
	}
}

func cloneOrEmpty(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return slices.Clone(v)
}

func clone2D(v [][]float64) [][]float64 {
	out := make([][]float64, len(v))
	for i := range v {
		out[i] = cloneOrEmpty(v[i])
	}
	return out
}
