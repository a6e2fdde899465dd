package utils

import (
	"math/bits"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// HammingDistance computes the number of differing bits between two packed binary descriptors.
func HammingDistance(p1, p2 []uint64) (int, error) {
	if len(p1) != len(p2) {
		return -1, errors.Errorf("descriptors must have same length, got %d and %d", len(p1), len(p2))
	}
	distance := 0
	for i := range p1 {
		distance += bits.OnesCount64(p1[i] ^ p2[i])
	}
	return distance, nil
}

// EuclideanDistance computes the euclidean distance between 2 vectors.
func EuclideanDistance(p1, p2 []float64) (float64, error) {
	if len(p1) != len(p2) {
		return -1, errors.New("must have same length")
	}
	return floats.Distance(p1, p2, 2), nil
}
