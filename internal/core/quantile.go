package core

import (
	"fmt"
	"math"
	"strings"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// QuantileMethod selects how Q1 and Q3 are estimated for the IQR filter.
type QuantileMethod string

const (
	// QuantileLinear interpolates between the two closest ranks
	// (position p*(n-1)). This is the common dataframe default.
	QuantileLinear QuantileMethod = "linear"
	// QuantileEmpirical returns the smallest value with cumulative
	// probability at least p.
	QuantileEmpirical QuantileMethod = "empirical"
	// QuantileNearest uses the nearest-rank percentile.
	QuantileNearest QuantileMethod = "nearest"
)

// ParseQuantileMethod validates a method name. Empty selects QuantileLinear.
func ParseQuantileMethod(s string) (QuantileMethod, error) {
	switch m := QuantileMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return QuantileLinear, nil
	case QuantileLinear, QuantileEmpirical, QuantileNearest:
		return m, nil
	default:
		return "", fmt.Errorf("unknown quantile method %q", s)
	}
}

// Quantile returns the p-quantile (0 <= p <= 1) of sorted using method m.
// sorted must be non-empty and in ascending order.
func Quantile(m QuantileMethod, sorted []float64, p float64) (float64, error) {
	if len(sorted) == 0 {
		return 0, fmt.Errorf("quantile of empty sample")
	}
	if p < 0 || p > 1 || math.IsNaN(p) {
		return 0, fmt.Errorf("quantile probability %v out of range", p)
	}

	switch m {
	case QuantileLinear, "":
		return linearQuantile(sorted, p), nil
	case QuantileEmpirical:
		return stat.Quantile(p, stat.Empirical, sorted, nil), nil
	case QuantileNearest:
		if p == 0 {
			return sorted[0], nil
		}
		return stats.PercentileNearestRank(sorted, p*100)
	default:
		return 0, fmt.Errorf("unknown quantile method %q", m)
	}
}

func linearQuantile(sorted []float64, p float64) float64 {
	pos := p * float64(len(sorted)-1)
	lo := math.Floor(pos)
	hi := math.Ceil(pos)
	if lo == hi {
		return sorted[int(lo)]
	}
	frac := pos - lo
	return sorted[int(lo)] + frac*(sorted[int(hi)]-sorted[int(lo)])
}
