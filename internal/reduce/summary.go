package reduce

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/roman-kulish/attenuator-bench/internal/profile"
)

// CodeSummary condenses the results of one applied code
type CodeSummary struct {
	Level            profile.Level
	MeanNormalized   float64 // dB
	MeanError        float64 // dB
	MaxAbsError      float64 // dB
	MeanInputReturn  float64 // S11, dB
	MeanOutputReturn float64 // S22, dB
}

// Summarize returns one summary per applied code, in application order.
// It returns nil if rs was not produced from table.
func Summarize(rs *ResultSet, table profile.Table) []CodeSummary {
	order := table.ApplicationOrder()
	if rs == nil || len(rs.NormalizedAtt) != len(order) {
		return nil
	}

	summaries := make([]CodeSummary, len(order))
	for k, level := range order {
		summaries[k] = CodeSummary{
			Level:            level,
			MeanNormalized:   stat.Mean(rs.NormalizedAtt[k], nil),
			MeanError:        stat.Mean(rs.AttErrPerCode[k], nil),
			MaxAbsError:      maxAbs(rs.AttErrPerCode[k]),
			MeanInputReturn:  stat.Mean(rs.S11[k], nil),
			MeanOutputReturn: stat.Mean(rs.S22[k], nil),
		}
	}
	return summaries
}

func maxAbs(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return max(floats.Max(x), -floats.Min(x))
}
