package solver

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"strconv"
	"time"
)

// DeterministicSeed derives a stable source seed for label under rootSeed.
func DeterministicSeed(rootSeed, label string) int64 {
	hasher := fnv.New64a()
	hasher.Write([]byte(rootSeed))
	hasher.Write([]byte{0})
	hasher.Write([]byte(label))
	sum := hasher.Sum64()
	if sum == 0 {
		sum = 1
	}
	return int64(sum)
}

func newTileRNGs(rootSeed string, count int) []*rand.Rand {
	rngs := make([]*rand.Rand, count)
	for i := range rngs {
		rngs[i] = rand.New(rand.NewSource(DeterministicSeed(rootSeed, fmt.Sprintf("tile-%d", i))))
	}
	return rngs
}

func runSeed(configured string) string {
	if configured != "" {
		return configured
	}
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}

// uniform draws from [-1, 1).
func uniform(rng *rand.Rand) float64 {
	return rng.Float64()*2 - 1
}
