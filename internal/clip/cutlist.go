// Package clip holds the editable cut-point list and turns a selection into clip ranges.
package clip

import (
	"errors"
	"fmt"
	"sort"
)

// DefaultPageSize is the number of cut points shown per page by list views.
const DefaultPageSize = 20

var (
	ErrCutExists       = errors.New("cut point already exists")
	ErrIndexOutOfRange = errors.New("cut point index out of range")
	ErrNegativeFrame   = errors.New("cut point frame must not be negative")
	ErrNothingSelected = errors.New("no cut points selected")
)

// CutPoint marks the first frame of a shot. EndFrame is the detector's end
// marker for the shot and is zero for manually added points.
type CutPoint struct {
	Frame    int  `json:"frame"`
	EndFrame int  `json:"end_frame,omitempty"`
	Manual   bool `json:"manual"`
}

// CutList keeps cut points strictly ascending with no duplicate frames, plus a
// selection addressed by position. Mutations keep the same logical points
// selected. A CutList is not safe for concurrent use.
type CutList struct {
	points   []CutPoint
	selected map[int]struct{}
}

// NewCutList builds a list from detector output. Duplicates collapse to the
// first occurrence and nothing is selected.
func NewCutList(points []CutPoint) *CutList {
	l := &CutList{selected: make(map[int]struct{})}
	sorted := make([]CutPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Frame < sorted[j].Frame })
	for _, p := range sorted {
		if n := len(l.points); n > 0 && l.points[n-1].Frame == p.Frame {
			continue
		}
		l.points = append(l.points, p)
	}
	return l
}

func (l *CutList) Len() int {
	return len(l.points)
}

// Points returns a copy of the cut points in order.
func (l *CutList) Points() []CutPoint {
	out := make([]CutPoint, len(l.points))
	copy(out, l.points)
	return out
}

// Frames returns the start frame of every cut point in order.
func (l *CutList) Frames() []int {
	out := make([]int, len(l.points))
	for i, p := range l.points {
		out[i] = p.Frame
	}
	return out
}

// At returns the cut point at position i.
func (l *CutList) At(i int) (CutPoint, error) {
	if i < 0 || i >= len(l.points) {
		return CutPoint{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	return l.points[i], nil
}

// Add inserts a manual cut point at frame, selects it and returns its position.
func (l *CutList) Add(frame int) (int, error) {
	if frame < 0 {
		return 0, ErrNegativeFrame
	}
	pos := sort.Search(len(l.points), func(i int) bool { return l.points[i].Frame >= frame })
	if pos < len(l.points) && l.points[pos].Frame == frame {
		return pos, fmt.Errorf("%w: frame %d", ErrCutExists, frame)
	}

	l.points = append(l.points, CutPoint{})
	copy(l.points[pos+1:], l.points[pos:])
	l.points[pos] = CutPoint{Frame: frame, Manual: true}

	shifted := make(map[int]struct{}, len(l.selected)+1)
	for i := range l.selected {
		if i >= pos {
			i++
		}
		shifted[i] = struct{}{}
	}
	shifted[pos] = struct{}{}
	l.selected = shifted
	return pos, nil
}

// Delete removes the cut point at position i. Selected positions above i move
// down by one; a selection of i itself is dropped.
func (l *CutList) Delete(i int) (CutPoint, error) {
	if i < 0 || i >= len(l.points) {
		return CutPoint{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	removed := l.points[i]
	l.points = append(l.points[:i], l.points[i+1:]...)

	shifted := make(map[int]struct{}, len(l.selected))
	for s := range l.selected {
		switch {
		case s < i:
			shifted[s] = struct{}{}
		case s > i:
			shifted[s-1] = struct{}{}
		}
	}
	l.selected = shifted
	return removed, nil
}

func (l *CutList) IsSelected(i int) bool {
	_, ok := l.selected[i]
	return ok
}

// SetSelected marks position i as selected or not.
func (l *CutList) SetSelected(i int, on bool) error {
	if i < 0 || i >= len(l.points) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	if on {
		l.selected[i] = struct{}{}
	} else {
		delete(l.selected, i)
	}
	return nil
}

// Replace sets the selection to exactly positions.
func (l *CutList) Replace(positions []int) error {
	next := make(map[int]struct{}, len(positions))
	for _, i := range positions {
		if i < 0 || i >= len(l.points) {
			return fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
		}
		next[i] = struct{}{}
	}
	l.selected = next
	return nil
}

func (l *CutList) SelectAll() {
	l.selected = make(map[int]struct{}, len(l.points))
	for i := range l.points {
		l.selected[i] = struct{}{}
	}
}

func (l *CutList) ClearSelection() {
	l.selected = make(map[int]struct{})
}

// ToggleAll selects everything unless everything is already selected, in
// which case it clears the selection.
func (l *CutList) ToggleAll() {
	if len(l.points) > 0 && len(l.selected) == len(l.points) {
		l.ClearSelection()
		return
	}
	l.SelectAll()
}

// TogglePage applies the same rule as ToggleAll to one page of perPage items.
// Pages are zero-based.
func (l *CutList) TogglePage(page, perPage int) error {
	if perPage <= 0 {
		perPage = DefaultPageSize
	}
	start := page * perPage
	if page < 0 || start >= len(l.points) {
		return fmt.Errorf("%w: page %d", ErrIndexOutOfRange, page)
	}
	end := min(start+perPage, len(l.points))

	all := true
	for i := start; i < end; i++ {
		if !l.IsSelected(i) {
			all = false
			break
		}
	}
	for i := start; i < end; i++ {
		if all {
			delete(l.selected, i)
		} else {
			l.selected[i] = struct{}{}
		}
	}
	return nil
}

// Selected returns the selected positions in ascending order.
func (l *CutList) Selected() []int {
	out := make([]int, 0, len(l.selected))
	for i := range l.selected {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Ranges resolves the current selection against totalFrames.
func (l *CutList) Ranges(totalFrames int) []Range {
	return Resolve(l.Frames(), l.Selected(), totalFrames)
}
