package solver

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidParams reports a configuration the solver cannot be built from.
var ErrInvalidParams = errors.New("solver: invalid params")

// Params configures the lattice dynamics. Width and Height are fixed for the
// lifetime of a Solver; the tile grid shape may change between steps.
type Params struct {
	Width           int     `yaml:"width" json:"width"`
	Height          int     `yaml:"height" json:"height"`
	TilesX          int     `yaml:"tiles_x" json:"tilesX"`
	TilesY          int     `yaml:"tiles_y" json:"tilesY"`
	DT              float64 `yaml:"dt" json:"dt"`
	NoiseAmplitude  float64 `yaml:"noise_amplitude" json:"noiseAmplitude"`
	AdvectionScale  float64 `yaml:"advection_scale" json:"advectionScale"`
	Diffusion       float64 `yaml:"diffusion" json:"diffusion"`
	EntropyCoupling float64 `yaml:"entropy_coupling" json:"entropyCoupling"`
	// Seed roots the per-tile noise sources. Empty means a fresh seed per run.
	Seed string `yaml:"seed" json:"seed,omitempty"`
}

// DefaultParams mirrors the baseline deployment: a 64x64 lattice in 4x4 tiles.
func DefaultParams() Params {
	return Params{
		Width:           64,
		Height:          64,
		TilesX:          4,
		TilesY:          4,
		DT:              0.05,
		NoiseAmplitude:  0.02,
		AdvectionScale:  0.6,
		Diffusion:       0.08,
		EntropyCoupling: 0.03,
	}
}

// Validate rejects parameters that would make stepping meaningless.
func (p Params) Validate() error {
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("%w: grid %dx%d must be positive", ErrInvalidParams, p.Width, p.Height)
	}
	if math.IsNaN(p.DT) || math.IsInf(p.DT, 0) || p.DT < 0 {
		return fmt.Errorf("%w: dt %v must be finite and non-negative", ErrInvalidParams, p.DT)
	}
	coefficients := []struct {
		name  string
		value float64
	}{
		{"noise_amplitude", p.NoiseAmplitude},
		{"advection_scale", p.AdvectionScale},
		{"diffusion", p.Diffusion},
		{"entropy_coupling", p.EntropyCoupling},
	}
	for _, c := range coefficients {
		if math.IsNaN(c.value) || math.IsInf(c.value, 0) {
			return fmt.Errorf("%w: %s must be finite", ErrInvalidParams, c.name)
		}
	}
	return nil
}

func (p Params) tileShape() (int, int) {
	tx, ty := p.TilesX, p.TilesY
	if tx < 1 {
		tx = 1
	}
	if ty < 1 {
		ty = 1
	}
	return tx, ty
}
