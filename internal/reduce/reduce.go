package reduce

import (
	"errors"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/roman-kulish/attenuator-bench/internal/profile"
)

var (
	// ErrLengthMismatch is returned when captured traces differ in length
	ErrLengthMismatch = errors.New("trace length mismatch")

	// ErrCodeCountMismatch is returned when the number of captured sweeps
	// differs from the number of levels in the code table
	ErrCodeCountMismatch = errors.New("sweep count does not match code table")
)

// RawSweep is the trace triple captured at one applied code
type RawSweep struct {
	S21 []float64 // Forward transmission, dB
	S11 []float64 // Input reflection, dB
	S22 []float64 // Output reflection, dB
}

// Len returns the number of points of the sweep, or -1 if its traces
// differ in length.
func (s RawSweep) Len() int {
	if len(s.S11) != len(s.S21) || len(s.S22) != len(s.S21) {
		return -1
	}
	return len(s.S21)
}

// ResultSet holds the derived quantities of one measurement run. Outer
// sequences are indexed in the order codes were applied.
type ResultSet struct {
	Freqs         []float64   `json:"freqs"`
	Baseline      []float64   `json:"baseline"`
	NormalizedAtt [][]float64 `json:"normalizedAtt"`
	S11           [][]float64 `json:"s11"`
	S22           [][]float64 `json:"s22"`
	AttErrPerCode [][]float64 `json:"attErrPerCode"`
	Att           [][]float64 `json:"att"`
}

// Frequencies returns n points evenly spaced over [start, stop], both
// endpoints included.
func Frequencies(start, stop float64, n int) ([]float64, error) {
	if n < 2 {
		return nil, fmt.Errorf("frequency axis needs at least 2 points: %d given", n)
	}
	return floats.Span(make([]float64, n), start, stop), nil
}

// Reduce turns the sweeps captured for p into a result set. sweeps[k] must
// have been captured at table.ApplicationOrder()[k].
//
// The baseline is the S21 trace of the first applied code, which is the
// highest attenuation state. The per-code error subtracts the baseline a
// second time from the already normalized attenuation. Att carries the raw
// S21 traces; no calibration is applied.
func Reduce(sweeps []RawSweep, table profile.Table, p profile.Profile) (*ResultSet, error) {
	order := table.ApplicationOrder()
	if len(sweeps) == 0 || len(sweeps) != len(order) {
		return nil, fmt.Errorf("%w: %d sweeps, %d levels", ErrCodeCountMismatch, len(sweeps), len(order))
	}

	n := sweeps[0].Len()
	for k, s := range sweeps {
		if l := s.Len(); l != n || l <= 0 {
			return nil, fmt.Errorf("%w: sweep %d (%g dB) has S21/S11/S22 of %d/%d/%d points, expected %d",
				ErrLengthMismatch, k, order[k].Attenuation, len(s.S21), len(s.S11), len(s.S22), n)
		}
	}

	freqs, err := Frequencies(p.StartFreq, p.StopFreq, p.PointCount)
	if err != nil {
		return nil, err
	}

	rs := ResultSet{
		Freqs:         freqs,
		Baseline:      slices.Clone(sweeps[0].S21),
		NormalizedAtt: make([][]float64, len(sweeps)),
		S11:           make([][]float64, len(sweeps)),
		S22:           make([][]float64, len(sweeps)),
		AttErrPerCode: make([][]float64, len(sweeps)),
		Att:           make([][]float64, len(sweeps)),
	}

	for k, s := range sweeps {
		normalized := floats.SubTo(make([]float64, n), s.S21, rs.Baseline)

		attErr := floats.SubTo(make([]float64, n), normalized, rs.Baseline)
		floats.AddConst(-order[k].Attenuation, attErr)

		rs.NormalizedAtt[k] = normalized
		rs.AttErrPerCode[k] = attErr
		rs.S11[k] = slices.Clone(s.S11)
		rs.S22[k] = slices.Clone(s.S22)
		rs.Att[k] = slices.Clone(s.S21)
	}

	return &rs, nil
}
