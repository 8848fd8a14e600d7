// Package queue holds the ordered song list and its optional shuffle permutation.
//
// Two index spaces exist. A canonical index is a song's position in insertion
// order and never changes under shuffle. A presentation index is where the song
// appears to a listener; while shuffled it is mapped to a canonical index through
// the permutation. Canonical and Presentation are the only conversions between
// the two.
//
// Queue is not safe for concurrent use; the player owns it on a single goroutine.
package queue

import (
	"math/rand/v2"
	"slices"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/rhinomusic/rhino/internal/domain"
)

// Queue is an ordered sequence of songs with an optional shuffle permutation.
type Queue struct {
	songs []domain.Song
	perm  []int // presentation -> canonical, nil when not shuffled
	rng   *rand.Rand
}

// New creates an empty queue. A nil rng is replaced with a time-seeded source.
func New(rng *rand.Rand) *Queue {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>32))
	}
	return &Queue{
		songs: make([]domain.Song, 0),
		rng:   rng,
	}
}

// Len returns the number of songs.
func (q *Queue) Len() int {
	return len(q.songs)
}

// IsShuffled reports whether a permutation is active.
func (q *Queue) IsShuffled() bool {
	return q.perm != nil
}

// Append adds a song at the canonical end and returns its canonical index.
// While shuffled the song is also placed last in presentation order.
func (q *Queue) Append(song domain.Song) int {
	c := len(q.songs)
	q.songs = append(q.songs, song)
	if q.perm != nil {
		q.perm = append(q.perm, c)
	}
	verify(q.perm, len(q.songs))
	return c
}

// InsertAt inserts a song at canonical index c, valid for c in [0, Len()].
// While shuffled the new song takes presentation slot c.
func (q *Queue) InsertAt(song domain.Song, c int) error {
	if c < 0 || c > len(q.songs) {
		return errors.Wrapf(domain.ErrInvalidIndex, "insert at %d, length %d", c, len(q.songs))
	}
	q.songs = slices.Insert(q.songs, c, song)
	if q.perm != nil {
		q.perm = insertCanonical(q.perm, c)
	}
	verify(q.perm, len(q.songs))
	return nil
}

// RemoveAt removes the song at canonical index c.
func (q *Queue) RemoveAt(c int) error {
	if !q.validCanonical(c) {
		return errors.Wrapf(domain.ErrInvalidIndex, "remove %d, length %d", c, len(q.songs))
	}
	q.songs = slices.Delete(q.songs, c, c+1)
	if q.perm != nil {
		q.perm = removeCanonical(q.perm, c)
	}
	verify(q.perm, len(q.songs))
	return nil
}

// RemoveMany removes several canonical indices, highest first.
// All indices are validated before anything is removed. Duplicates are ignored.
// It returns the indices actually removed, in removal order.
func (q *Queue) RemoveMany(indices []int) ([]int, error) {
	for _, c := range indices {
		if !q.validCanonical(c) {
			return nil, errors.Wrapf(domain.ErrInvalidIndex, "remove %d, length %d", c, len(q.songs))
		}
	}
	ordered := lo.Uniq(indices)
	slices.Sort(ordered)
	slices.Reverse(ordered)
	for _, c := range ordered {
		if err := q.RemoveAt(c); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}

// Clear empties the song list and drops the permutation.
func (q *Queue) Clear() {
	q.songs = make([]domain.Song, 0)
	q.perm = nil
}

// Song returns the song at canonical index c.
func (q *Queue) Song(c int) (domain.Song, error) {
	if !q.validCanonical(c) {
		return domain.Song{}, errors.Wrapf(domain.ErrInvalidIndex, "song %d, length %d", c, len(q.songs))
	}
	return q.songs[c], nil
}

// SongAt returns the song at presentation index p.
func (q *Queue) SongAt(p int) (domain.Song, error) {
	c, err := q.Canonical(p)
	if err != nil {
		return domain.Song{}, err
	}
	return q.songs[c], nil
}

// Canonical resolves a presentation index to a canonical index.
func (q *Queue) Canonical(p int) (int, error) {
	if p < 0 || p >= len(q.songs) {
		return -1, errors.Wrapf(domain.ErrInvalidIndex, "presentation %d, length %d", p, len(q.songs))
	}
	if q.perm == nil {
		return p, nil
	}
	return q.perm[p], nil
}

// Presentation resolves a canonical index to a presentation index.
func (q *Queue) Presentation(c int) (int, error) {
	if !q.validCanonical(c) {
		return -1, errors.Wrapf(domain.ErrInvalidIndex, "canonical %d, length %d", c, len(q.songs))
	}
	if q.perm == nil {
		return c, nil
	}
	return lo.IndexOf(q.perm, c), nil
}

// Shuffle builds a new permutation. When nowPlaying is a canonical index it is
// pinned to presentation slot 0; -1 pins nothing. It returns false and leaves
// the queue untouched when there is at most one song or nowPlaying is out of [-1, Len()).
// Calling Shuffle on a shuffled queue reshuffles it.
func (q *Queue) Shuffle(nowPlaying int) bool {
	n := len(q.songs)
	if n <= 1 || nowPlaying < -1 || nowPlaying >= n {
		return false
	}
	q.perm = shuffled(q.rng, n, nowPlaying)
	verify(q.perm, n)
	return true
}

// Unshuffle drops the permutation and returns the canonical index of the song
// that was playing. Canonical indices are stable under shuffle, so the result is
// nowPlaying itself.
func (q *Queue) Unshuffle(nowPlaying int) int {
	q.perm = nil
	return nowPlaying
}

// Move relocates the song at presentation index from to presentation index to.
// While shuffled only the permutation changes; otherwise the song moves canonically
// and callers tracking a canonical index should remap it with ShiftForMove.
func (q *Queue) Move(from, to int) error {
	n := len(q.songs)
	if from < 0 || from >= n || to < 0 || to >= n {
		return errors.Wrapf(domain.ErrInvalidIndex, "move %d to %d, length %d", from, to, n)
	}
	if from == to {
		return nil
	}
	if q.perm != nil {
		q.perm = moveSlot(q.perm, from, to)
	} else {
		q.songs = moveSlot(q.songs, from, to)
	}
	verify(q.perm, n)
	return nil
}

// Songs returns a copy of the songs in presentation order.
func (q *Queue) Songs() []domain.Song {
	if q.perm == nil {
		return slices.Clone(q.songs)
	}
	return lo.Map(q.perm, func(c, _ int) domain.Song { return q.songs[c] })
}

// Permutation returns a copy of the active permutation, nil when not shuffled.
func (q *Queue) Permutation() []int {
	return slices.Clone(q.perm)
}

func (q *Queue) validCanonical(c int) bool {
	return c >= 0 && c < len(q.songs)
}
