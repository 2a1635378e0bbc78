package solver

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"flyxion/internal/field"
)

// driftEpsilon keeps the rotation field finite at the grid center.
const driftEpsilon = 1e-6

// Solver owns one lattice and advances it one dt at a time. A single
// sync.RWMutex guards the state: Step holds it exclusively for the whole step
// including the copy-back, State holds it shared only while copying.
type Solver struct {
	mu sync.RWMutex

	params  Params
	seed    string
	state   field.State
	tiles   []field.Tile
	rngs    []*rand.Rand
	elapsed float64
	steps   uint64

	// Pre-step channel buffers, reused between steps.
	prevPhi []float64
	prevS   []float64
	// Post-step channel buffers written by tile workers.
	nextPhi []float64
	nextVx  []float64
	nextVy  []float64
	nextS   []float64
}

// NewSolver validates p, allocates a zeroed lattice, partitions it once and
// seeds one noise source per tile.
func NewSolver(p Params) (*Solver, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	state, err := field.NewState(p.Width, p.Height)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	s := &Solver{
		params: p,
		seed:   runSeed(p.Seed),
		state:  state,
	}
	s.retile(p)

	n := p.Width * p.Height
	s.prevPhi = make([]float64, n)
	s.prevS = make([]float64, n)
	s.nextPhi = make([]float64, n)
	s.nextVx = make([]float64, n)
	s.nextVy = make([]float64, n)
	s.nextS = make([]float64, n)
	return s, nil
}

func (s *Solver) retile(p Params) {
	tx, ty := p.tileShape()
	s.tiles = field.Partition(s.state.Width, s.state.Height, tx, ty)
	root := s.seed
	if s.steps > 0 {
		root = fmt.Sprintf("%s/%dx%d@%d", s.seed, tx, ty, s.steps)
	}
	s.rngs = newTileRNGs(root, len(s.tiles))
	s.params.TilesX, s.params.TilesY = p.TilesX, p.TilesY
}

// State returns a deep copy of the current lattice. The copy is taken under
// the shared lock, so it never mixes samples from two steps and is safe to
// retain or mutate.
func (s *Solver) State() field.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Load replaces the lattice with st. The dimensions must match the solver.
func (s *Solver) Load(st field.State) error {
	if err := st.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.Width != s.state.Width || st.Height != s.state.Height {
		return fmt.Errorf("%w: state is %dx%d, solver is %dx%d", field.ErrInvalidDimensions, st.Width, st.Height, s.state.Width, s.state.Height)
	}
	s.state = st.Clone()
	return nil
}

// Step advances the lattice by p.DT. The lattice dimensions are fixed at
// construction and p.Width/p.Height are ignored; a changed tile shape triggers
// a single re-partition before the step runs.
func (s *Solver) Step(p Params) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx, ty := p.tileShape(); !s.sameShape(tx, ty) {
		s.retile(p)
	}

	w := s.state.Width
	for i, sample := range s.state.Samples {
		s.prevPhi[i] = sample.Phi
		s.prevS[i] = sample.S
	}

	var wg sync.WaitGroup
	for i, tile := range s.tiles {
		if tile.Empty() {
			continue
		}
		wg.Add(1)
		go func(tile field.Tile, rng *rand.Rand) {
			defer wg.Done()
			s.stepTile(tile, rng, p)
		}(tile, s.rngs[i])
	}
	wg.Wait()

	for i := range s.state.Samples {
		sample := &s.state.Samples[i]
		idx := sample.Y*w + sample.X
		sample.Phi = s.nextPhi[idx]
		sample.Vx = s.nextVx[idx]
		sample.Vy = s.nextVy[idx]
		sample.S = s.nextS[idx]
	}
	s.elapsed += p.DT
	s.steps++
	s.params.DT = p.DT
	s.params.NoiseAmplitude = p.NoiseAmplitude
	s.params.AdvectionScale = p.AdvectionScale
	s.params.Diffusion = p.Diffusion
	s.params.EntropyCoupling = p.EntropyCoupling
}

func (s *Solver) sameShape(tx, ty int) bool {
	curX, curY := s.params.tileShape()
	return curX == tx && curY == ty
}

// stepTile reads only the pre-step buffers and writes only cells inside tile.
func (s *Solver) stepTile(tile field.Tile, rng *rand.Rand, p Params) {
	w, h := s.state.Width, s.state.Height
	phi := s.prevPhi
	d := p.Diffusion

	for y := tile.Y0; y < tile.Y1; y++ {
		for x := tile.X0; x < tile.X1; x++ {
			i := y*w + x

			acc := phi[i] * (1 - 4*d)
			if x > 0 {
				acc += d * phi[i-1]
			}
			if x < w-1 {
				acc += d * phi[i+1]
			}
			if y > 0 {
				acc += d * phi[i-w]
			}
			if y < h-1 {
				acc += d * phi[i+w]
			}

			wx, wy := Drift(x, y, w, h)

			ax := clamp(x-int(math.Round(p.AdvectionScale*wx)), w)
			ay := clamp(y-int(math.Round(p.AdvectionScale*wy)), h)
			acc = 0.5*acc + 0.5*phi[ay*w+ax]

			ent := s.prevS[i]
			ent += p.EntropyCoupling * (1 - ent) * p.DT

			acc += p.NoiseAmplitude * uniform(rng)

			s.nextPhi[i] = acc
			s.nextVx[i] = wx
			s.nextVy[i] = wy
			s.nextS[i] = ent
		}
	}
}

// Drift returns the unit tangential rotation vector at (x, y) about the
// integer grid center (w/2, h/2).
func Drift(x, y, w, h int) (float64, float64) {
	cx, cy := float64(x-w/2), float64(y-h/2)
	r := math.Hypot(cx, cy) + driftEpsilon
	return -cy / r, cx / r
}

func clamp(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}

// Tiles returns a copy of the current partition.
func (s *Solver) Tiles() []field.Tile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]field.Tile, len(s.tiles))
	copy(out, s.tiles)
	return out
}

// Params returns the parameters of the most recent step, or the construction
// parameters before the first step.
func (s *Solver) Params() Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params
}

// Elapsed returns the accumulated simulation time.
func (s *Solver) Elapsed() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.elapsed
}

// Steps returns the number of completed steps.
func (s *Solver) Steps() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.steps
}

// Seed returns the root seed of the per-tile noise sources.
func (s *Solver) Seed() string {
	return s.seed
}
