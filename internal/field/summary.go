package field

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Moments describes the distribution of one scalar channel across the lattice.
type Moments struct {
	Mean   float64 `json:"mean" csv:"mean"`
	StdDev float64 `json:"stdDev" csv:"std_dev"`
	Min    float64 `json:"min" csv:"min"`
	Max    float64 `json:"max" csv:"max"`
}

// Summary aggregates the scalar channels of a State.
type Summary struct {
	Cells int     `json:"cells"`
	Phi   Moments `json:"phi"`
	S     Moments `json:"s"`
	Speed Moments `json:"speed"`
}

// Summarize computes per-channel moments. An empty state yields a zero Summary.
func Summarize(st State) Summary {
	n := len(st.Samples)
	if n == 0 {
		return Summary{}
	}
	phi := make([]float64, n)
	ent := make([]float64, n)
	speed := make([]float64, n)
	for i, sample := range st.Samples {
		phi[i] = sample.Phi
		ent[i] = sample.S
		speed[i] = floats.Norm([]float64{sample.Vx, sample.Vy}, 2)
	}
	return Summary{
		Cells: n,
		Phi:   moments(phi),
		S:     moments(ent),
		Speed: moments(speed),
	}
}

func moments(values []float64) Moments {
	mean, std := stat.MeanStdDev(values, nil)
	if len(values) < 2 {
		std = 0
	}
	return Moments{
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(values),
		Max:    floats.Max(values),
	}
}
