package simhash

import (
	"hash/fnv"
	"math/bits"
	"strings"
	"sync"
)

// Fingerprint computes a 64-bit SimHash over the whitespace-separated
// tokens of text. Empty input yields 0.
func Fingerprint(text string) uint64 {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return 0
	}

	var weights [64]int
	h := fnv.New64a()
	for _, tok := range tokens {
		h.Reset()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		for i := range weights {
			if sum&(1<<uint(i)) != 0 {
				weights[i]++
			} else {
				weights[i]--
			}
		}
	}

	var fp uint64
	for i, w := range weights {
		if w > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

// Distance returns the Hamming distance between two fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Similar reports whether a and b are within threshold bits of each other.
func Similar(a, b uint64, threshold int) bool {
	return Distance(a, b) <= threshold
}

// Tracker remembers fingerprints and reports near-duplicates.
// It is safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	threshold int
	seen      []uint64
}

// NewTracker returns a Tracker treating fingerprints within threshold bits
// as repeats.
func NewTracker(threshold int) *Tracker {
	return &Tracker{threshold: threshold}
}

// Observe records fp and reports whether a similar fingerprint was already
// observed. The zero fingerprint (empty text) is never a repeat.
func (t *Tracker) Observe(fp uint64) bool {
	if fp == 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, prev := range t.seen {
		if Similar(prev, fp, t.threshold) {
			return true
		}
	}
	t.seen = append(t.seen, fp)
	return false
}
