// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

package ntn

import "math/bits"

// IDSet is a bitset over SatelliteID, used for candidate and pool membership.
// The zero value is an empty set.
type IDSet struct {
	words []uint64
}

// NewIDSet creates a set sized for ids below n.
func NewIDSet(n int) *IDSet {
	return &IDSet{words: make([]uint64, (n+63)/64)}
}

func (s *IDSet) grow(id SatelliteID) {
	need := int(id)/64 + 1
	for len(s.words) < need {
		s.words = append(s.words, 0)
	}
}

// Add inserts id into the set.
func (s *IDSet) Add(id SatelliteID) {
	s.grow(id)
	s.words[id/64] |= 1 << (id % 64)
}

// Remove deletes id from the set.
func (s *IDSet) Remove(id SatelliteID) {
	if int(id)/64 < len(s.words) {
		s.words[id/64] &^= 1 << (id % 64)
	}
}

// Has reports whether id is in the set.
func (s *IDSet) Has(id SatelliteID) bool {
	return int(id)/64 < len(s.words) && s.words[id/64]&(1<<(id%64)) != 0
}

// Count returns the number of ids in the set.
func (s *IDSet) Count() int {
	total := 0
	for _, w := range s.words {
		total += bits.OnesCount64(w)
	}
	return total
}

// Clone returns an independent copy.
func (s *IDSet) Clone() *IDSet {
	words := make([]uint64, len(s.words))
	copy(words, s.words)
	return &IDSet{words: words}
}

// Intersects reports whether the two sets share any id.
func (s *IDSet) Intersects(other *IDSet) bool {
	n := len(s.words)
	if len(other.words) < n {
		n = len(other.words)
	}
	for i := 0; i < n; i++ {
		if s.words[i]&other.words[i] != 0 {
			return true
		}
	}
	return false
}

// IDs returns the member ids in ascending order.
func (s *IDSet) IDs() []SatelliteID {
	ids := make([]SatelliteID, 0, s.Count())
	for wi, w := range s.words {
		for w != 0 {
			bit := bits.TrailingZeros64(w)
			ids = append(ids, SatelliteID(wi*64+bit))
			w &= w - 1
		}
	}
	return ids
}
