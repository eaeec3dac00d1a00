package clip

import "sort"

// Range is a half-open frame interval [Start, End).
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r Range) Frames() int {
	return r.End - r.Start
}

// Resolve produces one range per selected position, ordered by position. A
// range runs from its cut point to the next cut point, or to totalFrames for
// the last one. Zero-length ranges are returned as is, and a cut lying at or
// past totalFrames yields a zero-length range rather than an inverted one.
// Positions outside cuts are skipped.
func Resolve(cuts []int, selected []int, totalFrames int) []Range {
	positions := make([]int, len(selected))
	copy(positions, selected)
	sort.Ints(positions)

	ranges := make([]Range, 0, len(positions))
	for n, i := range positions {
		if i < 0 || i >= len(cuts) {
			continue
		}
		if n > 0 && positions[n-1] == i {
			continue
		}
		end := totalFrames
		if i+1 < len(cuts) {
			end = cuts[i+1]
		}
		ranges = append(ranges, Range{Start: cuts[i], End: max(end, cuts[i])})
	}
	return ranges
}
