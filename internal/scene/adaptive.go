package scene

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/autocut/autocut-agent/internal/video"
)

const (
	// DefaultWindow is the number of frames either side of the target frame
	// averaged to form the adaptive baseline.
	DefaultWindow = 2
	// DefaultMinContentValue is the smallest raw content score that may
	// produce a cut regardless of the adaptive ratio.
	DefaultMinContentValue = 15.0

	flatRatio = 255.0
)

// AdaptiveDetector finds hard cuts by comparing each frame's HSV content
// change with the average change of its neighbours.
type AdaptiveDetector struct {
	Threshold       float64
	MinSceneLen     int
	Window          int
	MinContentValue float64
}

// NewAdaptiveDetector is the DetectorFactory used in production.
func NewAdaptiveDetector(threshold float64, minSceneLen int) Detector {
	return &AdaptiveDetector{
		Threshold:       threshold,
		MinSceneLen:     minSceneLen,
		Window:          DefaultWindow,
		MinContentValue: DefaultMinContentValue,
	}
}

type scoredFrame struct {
	index int
	score float64
}

func (d *AdaptiveDetector) Detect(src video.FrameSource) ([]Scene, error) {
	window := d.Window
	if window <= 0 {
		window = DefaultWindow
	}

	var (
		prev *hsvFrame
		buf  []scoredFrame
		cuts []int
		read int
	)
	last := -1

	for {
		f, err := src.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if f == nil {
			break
		}
		idx := read
		read++

		cur, err := toHSV(f)
		if err != nil {
			return nil, err
		}
		score := 0.0
		if prev != nil {
			score = contentScore(prev, cur)
		}
		prev = cur

		buf = append(buf, scoredFrame{index: idx, score: score})
		if len(buf) < 2*window+1 {
			continue
		}

		target := buf[window]
		if d.isCut(buf, window) && (last < 0 || target.index-last >= d.MinSceneLen) {
			cuts = append(cuts, target.index)
			last = target.index
		}
		buf = buf[1:]
	}

	return scenesFromCuts(cuts, read), nil
}

func (d *AdaptiveDetector) isCut(buf []scoredFrame, window int) bool {
	target := buf[window].score
	sum := 0.0
	for i, sf := range buf {
		if i != window {
			sum += sf.score
		}
	}
	avg := sum / float64(2*window)

	ratio := 0.0
	switch {
	case avg > 1e-5:
		ratio = target / avg
	case target >= d.MinContentValue:
		ratio = flatRatio
	}
	return ratio >= d.Threshold && target >= d.MinContentValue
}

func scenesFromCuts(cuts []int, framesRead int) []Scene {
	if framesRead == 0 {
		return nil
	}
	bounds := append([]int{0}, cuts...)
	bounds = append(bounds, framesRead)

	scenes := make([]Scene, 0, len(bounds)-1)
	for i := 0; i+1 < len(bounds); i++ {
		if bounds[i+1] <= bounds[i] {
			continue
		}
		scenes = append(scenes, Scene{Start: bounds[i], End: bounds[i+1]})
	}
	return scenes
}

// hsvFrame holds per-pixel hue on 0..180 and saturation and value on 0..255.
type hsvFrame struct {
	h, s, v []float64
}

func toHSV(f *video.Frame) (*hsvFrame, error) {
	n := f.Width * f.Height
	if n <= 0 || len(f.Pix) < n*3 {
		return nil, fmt.Errorf("frame %d: short pixel buffer", f.Index)
	}
	out := &hsvFrame{h: make([]float64, n), s: make([]float64, n), v: make([]float64, n)}
	for i := 0; i < n; i++ {
		c := colorful.Color{
			R: float64(f.Pix[i*3]) / 255,
			G: float64(f.Pix[i*3+1]) / 255,
			B: float64(f.Pix[i*3+2]) / 255,
		}
		h, s, v := c.Hsv()
		out.h[i] = h / 2
		out.s[i] = s * 255
		out.v[i] = v * 255
	}
	return out, nil
}

// contentScore is the mean absolute per-channel HSV difference, averaged over
// the three channels.
func contentScore(a, b *hsvFrame) float64 {
	n := min(len(a.h), len(b.h))
	if n == 0 {
		return 0
	}
	var dh, ds, dv float64
	for i := 0; i < n; i++ {
		dh += math.Abs(a.h[i] - b.h[i])
		ds += math.Abs(a.s[i] - b.s[i])
		dv += math.Abs(a.v[i] - b.v[i])
	}
	total := float64(n)
	return (dh/total + ds/total + dv/total) / 3
}
