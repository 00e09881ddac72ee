// Package matching pairs each participant of a resolved party with the
// participant they give a gift to.
package matching

import (
	"errors"
	"math/rand/v2"
	"slices"
)

// ErrNoDerangement is returned when no fixed-point-free permutation can be
// produced. Only degenerate input (a single id) can hit this.
var ErrNoDerangement = errors.New("no derangement exists for input")

// For n >= 2 a uniform permutation is a derangement with probability ~1/e,
// so the retry loop finishes almost immediately; the cap only exists to
// turn degenerate input into an error instead of a spin.
const maxAttempts = 1000

// Derange returns a permutation of ids in which no element stays at its
// original index. The accepted permutation is reversed before returning;
// the reversal is deliberate and order-cosmetic, and callers that pair by
// popping receivers from the end rely on it to line indices back up.
func Derange(ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) == 1 {
		return nil, ErrNoDerangement
	}

	out := slices.Clone(ids)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		rand.Shuffle(len(out), func(i, j int) {
			out[i], out[j] = out[j], out[i]
		})
		if hasFixedPoint(out, ids) {
			continue
		}
		slices.Reverse(out)
		return out, nil
	}
	return nil, ErrNoDerangement
}

func hasFixedPoint(perm, ids []string) bool {
	for i := range perm {
		if perm[i] == ids[i] {
			return true
		}
	}
	return false
}
