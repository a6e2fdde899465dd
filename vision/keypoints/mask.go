package keypoints

// MatchingMask restricts which (query, train) pairs a matcher may consider.
type MatchingMask interface {
	Allowed(queryIdx, trainIdx int) bool
}

// WindowedMatchingMask admits a pair when the train keypoint lies strictly inside a
// 2*Width x 2*Height window centered on the query keypoint.
type WindowedMatchingMask struct {
	Query  KeyPoints
	Train  KeyPoints
	Width  int
	Height int
}

// NewWindowedMatchingMask returns the window mask between query and train keypoints.
func NewWindowedMatchingMask(query, train KeyPoints, width, height int) *WindowedMatchingMask {
	return &WindowedMatchingMask{Query: query, Train: train, Width: width, Height: height}
}

// Allowed implements MatchingMask.
func (m *WindowedMatchingMask) Allowed(queryIdx, trainIdx int) bool {
	q, t := m.Query[queryIdx], m.Train[trainIdx]
	return absInt(q.X-t.X) < m.Width && absInt(q.Y-t.Y) < m.Height
}

// Transposed returns the same window with the roles of query and train swapped.
func (m *WindowedMatchingMask) Transposed() *WindowedMatchingMask {
	return &WindowedMatchingMask{Query: m.Train, Train: m.Query, Width: m.Width, Height: m.Height}
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
