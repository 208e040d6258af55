package results

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/attenuator-bench/internal/reduce"
)

func sampleSet() *reduce.ResultSet {
	return &reduce.ResultSet{
		Freqs:         []float64{1e6, 2e6},
		Baseline:      []float64{-30, -31},
		NormalizedAtt: [][]float64{{0, 0}, {29, 30}},
		S11:           [][]float64{{-20, -21}, {-19, -18}},
		S22:           [][]float64{{-22, -23}, {-17, -16}},
		AttErrPerCode: [][]float64{{-1.5, -0.5}, {59, 61}},
		Att:           [][]float64{{-30, -31}, {-1, -1}},
	}
}

func assertEmpty(t *testing.T, s *Store) {
	t.Helper()

	assert.True(t, s.Empty())
	snap := s.Snapshot()
	for _, v := range [][]float64{snap.Freqs, snap.Baseline, s.Freqs(), s.Baseline()} {
		assert.NotNil(t, v)
		assert.Empty(t, v)
	}
	for _, v := range [][][]float64{snap.NormalizedAtt, snap.S11, snap.S22, snap.AttErrPerCode, snap.Att,
		s.NormalizedAtt(), s.S11(), s.S22(), s.AttErrPerCode(), s.Att()} {
		assert.NotNil(t, v)
		assert.Empty(t, v)
	}
}

func TestStore_StartsEmpty(t *testing.T) {
	assertEmpty(t, New())
}

func TestStore_ReplaceAndClear(t *testing.T) {
	s := New()
	s.Replace(sampleSet())

	require.False(t, s.Empty())
	assert.Equal(t, *sampleSet(), s.Snapshot())
	assert.Equal(t, []float64{-30, -31}, s.Baseline())
	assert.Equal(t, [][]float64{{-1.5, -0.5}, {59, 61}}, s.AttErrPerCode())

	s.Clear()
	assertEmpty(t, s)

	s.Replace(sampleSet())
	s.Replace(nil)
	assertEmpty(t, s)
}

func TestStore_ReadersGetCopies(t *testing.T) {
	rs := sampleSet()
	s := New()
	s.Replace(rs)

	rs.Baseline[0] = 99
	assert.Equal(t, -30.0, s.Baseline()[0])

	snap := s.Snapshot()
	snap.S11[0][0] = 99
	got := s.NormalizedAtt()
	got[1][1] = 99

	assert.Equal(t, -20.0, s.S11()[0][0])
	assert.Equal(t, 30.0, s.NormalizedAtt()[1][1])
}

func TestStore_ConcurrentReaders(t *testing.T) {
	s := New()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				s.Replace(sampleSet())
				return
			}
			snap := s.Snapshot()
			assert.Equal(t, len(snap.NormalizedAtt), len(snap.Att))
		}(i)
	}
	wg.Wait()
}
