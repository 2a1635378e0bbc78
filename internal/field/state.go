package field

import (
	"errors"
	"fmt"
)

// ErrInvalidDimensions reports a lattice with a non-positive width or height.
var ErrInvalidDimensions = errors.New("field: invalid dimensions")

// Sample is a single lattice cell. It has no identity beyond its coordinates.
type Sample struct {
	X   int     `json:"x"`
	Y   int     `json:"y"`
	Phi float64 `json:"phi"`
	Vx  float64 `json:"vx"`
	Vy  float64 `json:"vy"`
	S   float64 `json:"s"`
}

// State is the full lattice. Samples are stored row-major (y outer, x inner)
// and that order is never permuted: sample (x, y) always lives at y*Width+x.
type State struct {
	Width   int      `json:"width" jsonschema:"required,minimum=1"`
	Height  int      `json:"height" jsonschema:"required,minimum=1"`
	Samples []Sample `json:"samples" jsonschema:"required"`
}

// NewState allocates a zeroed lattice covering [0,width)x[0,height).
func NewState(width, height int) (State, error) {
	if width <= 0 || height <= 0 {
		return State{}, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	samples := make([]Sample, 0, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			samples = append(samples, Sample{X: x, Y: y})
		}
	}
	return State{Width: width, Height: height, Samples: samples}, nil
}

// Index returns the row-major position of cell (x, y).
func (s State) Index(x, y int) int {
	return y*s.Width + x
}

// Len returns the number of cells the dimensions describe.
func (s State) Len() int {
	return s.Width * s.Height
}

// Clone returns a copy that shares no sample storage with s.
func (s State) Clone() State {
	cloned := State{Width: s.Width, Height: s.Height}
	if s.Samples != nil {
		cloned.Samples = make([]Sample, len(s.Samples))
		copy(cloned.Samples, s.Samples)
	}
	return cloned
}

// Validate checks the dimensions and the row-major placement of every sample.
func (s State) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, s.Width, s.Height)
	}
	if len(s.Samples) != s.Len() {
		return fmt.Errorf("field: expected %d samples for %dx%d, got %d", s.Len(), s.Width, s.Height, len(s.Samples))
	}
	for i, sample := range s.Samples {
		if sample.X < 0 || sample.X >= s.Width || sample.Y < 0 || sample.Y >= s.Height {
			return fmt.Errorf("field: sample %d at (%d,%d) is outside the lattice", i, sample.X, sample.Y)
		}
		if s.Index(sample.X, sample.Y) != i {
			return fmt.Errorf("field: sample %d at (%d,%d) is out of row-major order", i, sample.X, sample.Y)
		}
	}
	return nil
}
