package utils

import (
	"math/rand"
)

// Sampler draws k distinct indices uniformly from [0, n).
type Sampler interface {
	Sample(k, n int) []int
}

// RejectionSampler is a Sampler backed by a set of already drawn indices; a draw that
// collides with the set is rejected and redrawn. It is fast when k is much smaller than n.
type RejectionSampler struct {
	rng *rand.Rand
}

// NewRejectionSampler returns a RejectionSampler seeded with seed.
func NewRejectionSampler(seed int64) *RejectionSampler {
	//nolint:gosec
	return &RejectionSampler{rng: rand.New(rand.NewSource(seed))}
}

// Sample returns k distinct integers in [0, n) in draw order, or nil if k > n or k <= 0.
func (s *RejectionSampler) Sample(k, n int) []int {
	return SampleUniqueIntegers(k, n, s.rng)
}

// SampleUniqueIntegers draws k distinct integers uniformly from [0, n) using r.
func SampleUniqueIntegers(k, n int, r *rand.Rand) []int {
	if k <= 0 || k > n {
		return nil
	}
	seen := make(map[int]struct{}, k)
	out := make([]int, 0, k)
	for len(out) < k {
		v := SampleRandomIntRange(0, n-1, r)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
