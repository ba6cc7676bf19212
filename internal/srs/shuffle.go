package srs

import "math/rand"

// Interleave shuffles items in place so a session does not open with a block
// of all-new or all-review cards. A nil rng uses the global source.
func Interleave[T any](items []T, rng *rand.Rand) {
	swap := func(i, j int) { items[i], items[j] = items[j], items[i] }
	if rng == nil {
		rand.Shuffle(len(items), swap)
		return
	}
	rng.Shuffle(len(items), swap)
}
