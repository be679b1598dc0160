package keyboard

import (
	"sort"

	"github.com/ayusman/ivory/internal/geometry"
)

// FingertipSample is one fingertip position in camera pixels.
type FingertipSample struct {
	Hand     HandSide `json:"hand"`
	Landmark int      `json:"landmark"`
	X        int      `json:"x"`
	Y        int      `json:"y"`
}

// MatchResult holds the key under each fingertip slot, NoKey when the slot's
// fingertip is absent or not over a key.
type MatchResult [NumSlots]int

// EmptyResult returns a MatchResult with every slot set to NoKey.
func EmptyResult() MatchResult {
	var r MatchResult
	for i := range r {
		r[i] = NoKey
	}
	return r
}

// Pressed returns the distinct keys in r, ascending.
func (r MatchResult) Pressed() []int {
	seen := make(map[int]bool, NumSlots)
	var keys []int
	for _, k := range r {
		if k == NoKey || seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// Matcher resolves fingertip positions to keys against a fixed model. It
// holds no mutable state and may be shared across goroutines.
type Matcher struct {
	model *Model
}

// NewMatcher returns a Matcher over m.
func NewMatcher(m *Model) *Matcher {
	return &Matcher{model: m}
}

// Model returns the model the matcher was built with.
func (m *Matcher) Model() *Model {
	return m.model
}

// Locate returns the key under a single camera-space point, or NoKey.
//
// The boundary bisect narrows the search to one white-key column and at most
// two black keys; black keys are tested first because they overlap the
// white-key rectangles.
func (m *Matcher) Locate(x, y int) int {
	p := m.model.orientation.Apply(geometry.Pt(x, y))
	pos := sort.SearchFloat64s(m.model.boundaries[:], float64(p.X))

	if pos == 0 {
		last := NumWhiteKeys - 1
		if m.model.white[last].Polygon.Contains(p) {
			return m.model.white[last].Number
		}
		return NoKey
	}

	for _, i := range candidateBlackKeys[pos] {
		if m.model.black[i].Polygon.Contains(p) {
			return m.model.black[i].Number
		}
	}
	w := m.model.white[NumWhiteKeys-1-pos]
	if w.Polygon.Contains(p) {
		return w.Number
	}
	return NoKey
}

// Match resolves every sample into its fingertip slot. Samples for landmarks
// other than the five fingertips are ignored. A later hit for a slot replaces
// an earlier one; a later miss does not clear it.
func (m *Matcher) Match(samples []FingertipSample) MatchResult {
	r := EmptyResult()
	for _, s := range samples {
		slot, ok := FingertipSlot(s.Hand, s.Landmark)
		if !ok {
			continue
		}
		if key := m.Locate(s.X, s.Y); key != NoKey {
			r[slot] = key
		}
	}
	return r
}
