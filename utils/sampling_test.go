package utils

import (
	"math"
	"math/rand"
	"testing"

	"go.viam.com/test"
)

func TestSampleUniqueIntegers(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		s := SampleUniqueIntegers(3, 10, r)
		test.That(t, s, test.ShouldHaveLength, 3)
		seen := map[int]bool{}
		for _, v := range s {
			test.That(t, v, test.ShouldBeGreaterThanOrEqualTo, 0)
			test.That(t, v, test.ShouldBeLessThan, 10)
			test.That(t, seen[v], test.ShouldBeFalse)
			seen[v] = true
		}
	}

	test.That(t, SampleUniqueIntegers(4, 3, r), test.ShouldBeNil)
	test.That(t, SampleUniqueIntegers(0, 3, r), test.ShouldBeNil)

	all := SampleUniqueIntegers(5, 5, r)
	test.That(t, all, test.ShouldHaveLength, 5)
}

func TestRejectionSamplerUniform(t *testing.T) {
	s := NewRejectionSampler(7)
	const n = 6
	const trials = 6000
	counts := make([]int, n)
	for i := 0; i < trials; i++ {
		for _, v := range s.Sample(3, n) {
			counts[v]++
		}
	}
	// each index is expected in half of the draws
	expected := float64(trials) * 3 / n
	for _, c := range counts {
		test.That(t, math.Abs(float64(c)-expected)/expected, test.ShouldBeLessThan, 0.1)
	}
}

func TestRejectionSamplerDeterministic(t *testing.T) {
	a := NewRejectionSampler(42)
	b := NewRejectionSampler(42)
	for i := 0; i < 10; i++ {
		test.That(t, a.Sample(3, 100), test.ShouldResemble, b.Sample(3, 100))
	}
}
