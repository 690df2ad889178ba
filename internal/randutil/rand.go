// Package randutil derives reproducible random streams from a single int64
// seed.
package randutil

import (
	rand "math/rand/v2"

	"github.com/coder/quartz"
)

const goldenRatio64 = 0x9e3779b97f4a7c15

// New returns a PCG-backed *rand.Rand for seed. Equal seeds give equal
// streams.
func New(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(splitmix(u), splitmix(u+goldenRatio64)))
}

// Resolve returns the configured seed, or one taken from the clock when the
// configured seed is zero. The second result reports whether the seed was
// configured.
func Resolve(configured int64, clock quartz.Clock) (int64, bool) {
	if configured != 0 {
		return configured, true
	}
	return clock.Now("randutil", "seed").UnixNano(), false
}

func splitmix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
