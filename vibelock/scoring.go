package vibelock

import "math/rand/v2"

// UnlockThreshold is the minimum score that unlocks chat.
const UnlockThreshold = 70

// Score bands, inclusive.
const (
	MatchBandMin    = 85
	MatchBandMax    = 100
	MismatchBandMin = 60
	MismatchBandMax = 80
)

// Rand is the randomness source for question draws and scores. The
// package-level functions of math/rand/v2 satisfy it via DefaultRand.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// DefaultRand draws from the goroutine-safe global source.
var DefaultRand Rand = globalRand{}

// Score draws a compatibility score: equal answers land in the high band,
// differing answers in the low band.
func Score(r Rand, a1, a2 string) int {
	if r == nil {
		r = DefaultRand
	}
	if a1 == a2 {
		return MatchBandMin + r.IntN(MatchBandMax-MatchBandMin+1)
	}
	return MismatchBandMin + r.IntN(MismatchBandMax-MismatchBandMin+1)
}

// Pick draws one question from pool. It panics on an empty pool.
func Pick(r Rand, pool []Question) Question {
	if r == nil {
		r = DefaultRand
	}
	return pool[r.IntN(len(pool))]
}
