package queue

import (
	"math/rand/v2"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/rhinomusic/rhino/internal/domain"
)

// shuffled builds a presentation -> canonical mapping over n songs.
// When pin is a valid canonical index it is placed at presentation slot 0;
// pin == -1 means no song is pinned.
func shuffled(rng *rand.Rand, n, pin int) []int {
	rest := lo.Filter(lo.Range(n), func(c, _ int) bool { return c != pin })
	rng.Shuffle(len(rest), func(i, j int) {
		rest[i], rest[j] = rest[j], rest[i]
	})
	if pin < 0 {
		return rest
	}
	return append([]int{pin}, rest...)
}

// insertCanonical makes room for a new canonical index c: entries >= c move up by one
// and c itself takes presentation slot c.
func insertCanonical(perm []int, c int) []int {
	for i, v := range perm {
		if v >= c {
			perm[i] = v + 1
		}
	}
	slot := min(c, len(perm))
	return slices.Insert(perm, slot, c)
}

// removeCanonical drops canonical index c and closes the gap above it.
func removeCanonical(perm []int, c int) []int {
	slot := lo.IndexOf(perm, c)
	if slot >= 0 {
		perm = slices.Delete(perm, slot, slot+1)
	}
	for i, v := range perm {
		if v > c {
			perm[i] = v - 1
		}
	}
	return perm
}

// moveSlot relocates a presentation slot, shifting the slots in between.
func moveSlot[T any](s []T, from, to int) []T {
	v := s[from]
	s = slices.Delete(s, from, from+1)
	return slices.Insert(s, to, v)
}

// verify panics with an assertion failure if perm is not a bijection onto [0,n).
func verify(perm []int, n int) {
	if perm == nil {
		return
	}
	if len(perm) != n {
		panic(errors.WithAssertionFailure(
			errors.Wrapf(domain.ErrPermutationInvariant, "length %d, queue length %d", len(perm), n)))
	}
	seen := make([]bool, n)
	for slot, c := range perm {
		if c < 0 || c >= n || seen[c] {
			panic(errors.WithAssertionFailure(
				errors.Wrapf(domain.ErrPermutationInvariant, "slot %d holds %d", slot, c)))
		}
		seen[c] = true
	}
}

// ShiftForMove returns where canonical index i ends up after the song at from
// is moved to to in an unshuffled queue.
func ShiftForMove(i, from, to int) int {
	switch {
	case i == from:
		return to
	case from < i && to >= i:
		return i - 1
	case from > i && to <= i:
		return i + 1
	}
	return i
}
