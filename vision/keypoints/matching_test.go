package keypoints

import (
	"context"
	"math/rand"
	"testing"

	"go.viam.com/test"
)

func TestWindowedMatchingMask(t *testing.T) {
	query := KeyPoints{{100, 100}}
	train := KeyPoints{{100, 100}, {129, 100}, {130, 100}, {100, 119}, {100, 80}}
	m := NewWindowedMatchingMask(query, train, 30, 20)
	test.That(t, m.Allowed(0, 0), test.ShouldBeTrue)
	test.That(t, m.Allowed(0, 1), test.ShouldBeTrue)
	test.That(t, m.Allowed(0, 2), test.ShouldBeFalse)
	test.That(t, m.Allowed(0, 3), test.ShouldBeTrue)
	test.That(t, m.Allowed(0, 4), test.ShouldBeFalse)

	mt := m.Transposed()
	test.That(t, mt.Allowed(1, 0), test.ShouldBeTrue)
	test.That(t, mt.Allowed(2, 0), test.ShouldBeFalse)
}

func TestMatchDescriptors(t *testing.T) {
	query := Descriptors{{0b1111}, {0b0000}, {0b1010}}
	train := Descriptors{{0b0001}, {0b1110}, {0b1010}}
	m, err := MatchDescriptors(query, train, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m, test.ShouldResemble, []int{1, 0, 2})

	// with every train keypoint out of reach nothing matches
	far := NewWindowedMatchingMask(KeyPoints{{0, 0}, {0, 0}, {0, 0}}, KeyPoints{{500, 0}, {500, 0}, {500, 0}}, 300, 200)
	m, err = MatchDescriptors(query, train, far)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m, test.ShouldResemble, []int{NoMatch, NoMatch, NoMatch})

	_, err = MatchDescriptors(Descriptors{{0, 1}}, train, nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestMutualMatchesSymmetry(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for trial := 0; trial < 100; trial++ {
		nq, nt := 1+r.Intn(30), 1+r.Intn(30)
		forward := make([]int, nq)
		for i := range forward {
			forward[i] = r.Intn(nt+1) - 1
		}
		reverse := make([]int, nt)
		for j := range reverse {
			reverse[j] = r.Intn(nq+1) - 1
		}
		mutual := MutualMatches(forward, reverse)
		for _, m := range mutual {
			test.That(t, forward[m.Idx1], test.ShouldEqual, m.Idx2)
			test.That(t, reverse[m.Idx2], test.ShouldEqual, m.Idx1)
		}
		expected := 0
		for i, j := range forward {
			if j >= 0 && reverse[j] == i {
				expected++
			}
		}
		test.That(t, mutual, test.ShouldHaveLength, expected)
	}
}

func TestCrossCheckMatch(t *testing.T) {
	query := Descriptors{{0b1111}, {0b0000}, {0b1011}}
	train := Descriptors{{0b0001}, {0b1110}, {0b1010}}
	res, err := CrossCheckMatch(context.Background(), query, train, nil, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Forward, test.ShouldResemble, []int{1, 0, 2})
	test.That(t, res.RawMatches(), test.ShouldEqual, 3)
	for _, m := range res.Mutual {
		test.That(t, res.Forward[m.Idx1], test.ShouldEqual, m.Idx2)
		test.That(t, res.Reverse[m.Idx2], test.ShouldEqual, m.Idx1)
	}

	_, err = CrossCheckMatch(context.Background(), Descriptors{{0, 1}}, train, nil, nil)
	test.That(t, err, test.ShouldNotBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = CrossCheckMatch(ctx, query, train, nil, nil)
	test.That(t, err, test.ShouldNotBeNil)
}
