package clip

import (
	"errors"
	"reflect"
	"testing"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		cuts     []int
		selected []int
		total    int
		want     []Range
	}{
		{
			name:     "first and last",
			cuts:     []int{30, 90, 150},
			selected: []int{0, 2},
			total:    200,
			want:     []Range{{30, 90}, {150, 200}},
		},
		{
			name:     "unsorted selection",
			cuts:     []int{30, 90, 150},
			selected: []int{2, 1},
			total:    200,
			want:     []Range{{90, 150}, {150, 200}},
		},
		{
			name:     "empty selection",
			cuts:     []int{30, 90},
			selected: nil,
			total:    200,
			want:     []Range{},
		},
		{
			name:     "degenerate last range passes through",
			cuts:     []int{30, 200},
			selected: []int{1},
			total:    200,
			want:     []Range{{200, 200}},
		},
		{
			name:     "cut past total is clamped",
			cuts:     []int{0, 5000},
			selected: []int{0, 1},
			total:    4000,
			want:     []Range{{0, 5000}, {5000, 5000}},
		},
		{
			name:     "out of range position skipped",
			cuts:     []int{30},
			selected: []int{0, 5},
			total:    100,
			want:     []Range{{30, 100}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Resolve(tc.cuts, tc.selected, tc.total)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Resolve() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNewCutListSortsAndDedupes(t *testing.T) {
	l := NewCutList([]CutPoint{{Frame: 90}, {Frame: 30}, {Frame: 90, EndFrame: 7}})
	if got := l.Frames(); !reflect.DeepEqual(got, []int{30, 90}) {
		t.Fatalf("Frames() = %v, want [30 90]", got)
	}
	if len(l.Selected()) != 0 {
		t.Fatalf("new list should have empty selection, got %v", l.Selected())
	}
}

func TestAddRejectsDuplicate(t *testing.T) {
	l := NewCutList([]CutPoint{{Frame: 30}})
	if _, err := l.Add(30); !errors.Is(err, ErrCutExists) {
		t.Fatalf("Add(30) error = %v, want ErrCutExists", err)
	}
	if l.Len() != 1 {
		t.Fatalf("duplicate add changed length to %d", l.Len())
	}
}

func TestAddShiftsSelectionAndSelectsNewPoint(t *testing.T) {
	l := NewCutList([]CutPoint{{Frame: 30}, {Frame: 90}, {Frame: 150}})
	_ = l.Replace([]int{0, 2})

	pos, err := l.Add(60)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if pos != 1 {
		t.Fatalf("Add position = %d, want 1", pos)
	}
	if got := l.Frames(); !reflect.DeepEqual(got, []int{30, 60, 90, 150}) {
		t.Fatalf("Frames() = %v", got)
	}
	if got := l.Selected(); !reflect.DeepEqual(got, []int{0, 1, 3}) {
		t.Fatalf("Selected() = %v, want [0 1 3]", got)
	}
	p, _ := l.At(1)
	if !p.Manual {
		t.Fatal("added point should be marked manual")
	}
}

func TestDeleteReindexesSelection(t *testing.T) {
	l := NewCutList([]CutPoint{{Frame: 30}, {Frame: 90}, {Frame: 150}, {Frame: 180}})
	_ = l.Replace([]int{0, 1, 3})

	if _, err := l.Delete(1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := l.Selected(); !reflect.DeepEqual(got, []int{0, 2}) {
		t.Fatalf("Selected() = %v, want [0 2]", got)
	}

	ranges := l.Ranges(200)
	want := []Range{{30, 150}, {180, 200}}
	if !reflect.DeepEqual(ranges, want) {
		t.Fatalf("Ranges() = %v, want %v", ranges, want)
	}
}

func TestDeleteNeverLeavesDanglingSelection(t *testing.T) {
	frames := []CutPoint{{Frame: 10}, {Frame: 20}, {Frame: 30}, {Frame: 40}, {Frame: 50}}
	for del := 0; del < len(frames); del++ {
		l := NewCutList(frames)
		l.SelectAll()
		if _, err := l.Delete(del); err != nil {
			t.Fatalf("Delete(%d): %v", del, err)
		}
		for _, s := range l.Selected() {
			if s >= l.Len() {
				t.Fatalf("after Delete(%d) selection %d exceeds length %d", del, s, l.Len())
			}
		}
		if got := len(l.Ranges(60)); got != l.Len() {
			t.Fatalf("after Delete(%d) got %d ranges, want %d", del, got, l.Len())
		}
	}
}

func TestDeleteOutOfRange(t *testing.T) {
	l := NewCutList(nil)
	if _, err := l.Delete(0); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("Delete on empty list error = %v", err)
	}
}

func TestToggleAll(t *testing.T) {
	l := NewCutList([]CutPoint{{Frame: 1}, {Frame: 2}})
	l.ToggleAll()
	if len(l.Selected()) != 2 {
		t.Fatalf("first toggle should select all, got %v", l.Selected())
	}
	l.ToggleAll()
	if len(l.Selected()) != 0 {
		t.Fatalf("second toggle should clear, got %v", l.Selected())
	}
}

func TestTogglePage(t *testing.T) {
	points := make([]CutPoint, 45)
	for i := range points {
		points[i] = CutPoint{Frame: (i + 1) * 10}
	}
	l := NewCutList(points)

	if err := l.TogglePage(2, DefaultPageSize); err != nil {
		t.Fatalf("TogglePage: %v", err)
	}
	if got := l.Selected(); !reflect.DeepEqual(got, []int{40, 41, 42, 43, 44}) {
		t.Fatalf("Selected() = %v", got)
	}

	_ = l.SetSelected(0, true)
	if err := l.TogglePage(0, DefaultPageSize); err != nil {
		t.Fatalf("TogglePage: %v", err)
	}
	if got := len(l.Selected()); got != 25 {
		t.Fatalf("partially selected page should become fully selected, got %d selected", got)
	}

	if err := l.TogglePage(3, DefaultPageSize); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("TogglePage past end error = %v", err)
	}
}
