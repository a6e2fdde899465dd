package keypoints

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"go.viam.com/vo/utils"
)

// NoMatch marks a query descriptor without any admissible train descriptor.
const NoMatch = -1

// DescriptorMatch contains the index of a match in the first and second set of descriptors.
type DescriptorMatch struct {
	Idx1 int
	Idx2 int
}

// MatchDescriptors returns, for each query descriptor, the index of the train descriptor with the
// lowest Hamming distance among the pairs admitted by mask (nil admits all). Ties go to the lower
// train index and a query with no admissible candidate gets NoMatch.
func MatchDescriptors(query, train Descriptors, mask MatchingMask) ([]int, error) {
	matches := make([]int, len(query))
	for i, q := range query {
		best, bestDist := NoMatch, -1
		for j, tr := range train {
			if mask != nil && !mask.Allowed(i, j) {
				continue
			}
			d, err := utils.HammingDistance(q, tr)
			if err != nil {
				return nil, errors.Wrapf(err, "query %d, train %d", i, j)
			}
			if best == NoMatch || d < bestDist {
				best, bestDist = j, d
			}
		}
		matches[i] = best
	}
	return matches, nil
}

// MutualMatches keeps the pairs (i, forward[i]) for which reverse[forward[i]] == i.
func MutualMatches(forward, reverse []int) []DescriptorMatch {
	var out []DescriptorMatch
	for i, j := range forward {
		if j < 0 || j >= len(reverse) {
			continue
		}
		if reverse[j] == i {
			out = append(out, DescriptorMatch{Idx1: i, Idx2: j})
		}
	}
	return out
}

// CrossCheckResult holds both directional matches and their mutual subset.
type CrossCheckResult struct {
	Forward []int
	Reverse []int
	Mutual  []DescriptorMatch
}

// RawMatches counts the query descriptors that found some train descriptor.
func (r *CrossCheckResult) RawMatches() int {
	n := 0
	for _, j := range r.Forward {
		if j != NoMatch {
			n++
		}
	}
	return n
}

// CrossCheckMatch matches query against train and train against query concurrently, each under
// its own mask, then keeps the mutual matches. Idx1 indexes query and Idx2 indexes train.
func CrossCheckMatch(ctx context.Context, query, train Descriptors, forwardMask, reverseMask MatchingMask,
) (*CrossCheckResult, error) {
	res := &CrossCheckResult{}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := MatchDescriptors(query, train, forwardMask)
		if err != nil {
			return errors.Wrap(err, "forward matching")
		}
		res.Forward = m
		return ctx.Err()
	})
	g.Go(func() error {
		m, err := MatchDescriptors(train, query, reverseMask)
		if err != nil {
			return errors.Wrap(err, "reverse matching")
		}
		res.Reverse = m
		return ctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	res.Mutual = MutualMatches(res.Forward, res.Reverse)
	return res, nil
}
