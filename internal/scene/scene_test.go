package scene

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"reflect"
	"testing"

	"github.com/autocut/autocut-agent/internal/video"
)

type rgb [3]byte

var (
	black = rgb{0, 0, 0}
	red   = rgb{255, 0, 0}
	blue  = rgb{0, 0, 255}
)

// solidSource yields frames of a single colour chosen per frame index.
type solidSource struct {
	n       int
	colorAt func(i int) rgb
	count   int
	next    int
	closed  bool
	failAt  int
}

func (s *solidSource) Read() (*video.Frame, error) {
	if s.failAt > 0 && s.next == s.failAt {
		return nil, errors.New("corrupt packet")
	}
	if s.next >= s.n {
		return nil, io.EOF
	}
	c := s.colorAt(s.next)
	const w, h = 4, 2
	pix := make([]byte, w*h*3)
	for i := 0; i < w*h; i++ {
		pix[i*3], pix[i*3+1], pix[i*3+2] = c[0], c[1], c[2]
	}
	f := &video.Frame{Index: s.next, Width: w, Height: h, Pix: pix}
	s.next++
	return f, nil
}

func (s *solidSource) FrameRate() float64 { return 24 }
func (s *solidSource) Close() error       { s.closed = true; return nil }
func (s *solidSource) CountFrames() int   { return s.count }

type fakeOpener struct {
	src *solidSource
	err error
}

func (o *fakeOpener) Open(ctx context.Context, path string) (video.FrameSource, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.src, nil
}

type failingDetector struct{}

func (failingDetector) Detect(src video.FrameSource) ([]Scene, error) {
	return nil, errors.New("model exploded")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func threeShots(i int) rgb {
	switch {
	case i < 30:
		return black
	case i < 90:
		return red
	default:
		return blue
	}
}

func TestAdaptiveDetectorFindsHardCuts(t *testing.T) {
	src := &solidSource{n: 120, colorAt: threeShots}
	scenes, err := NewAdaptiveDetector(DefaultThreshold, DefaultMinSceneLen).Detect(src)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	want := []Scene{{0, 30}, {30, 90}, {90, 120}}
	if !reflect.DeepEqual(scenes, want) {
		t.Fatalf("scenes = %v, want %v", scenes, want)
	}
}

func TestAdaptiveDetectorHonoursMinSceneLen(t *testing.T) {
	src := &solidSource{n: 60, colorAt: func(i int) rgb {
		switch {
		case i < 30:
			return black
		case i < 35:
			return red
		default:
			return blue
		}
	}}
	scenes, err := NewAdaptiveDetector(DefaultThreshold, 12).Detect(src)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	want := []Scene{{0, 30}, {30, 60}}
	if !reflect.DeepEqual(scenes, want) {
		t.Fatalf("scenes = %v, want %v", scenes, want)
	}
}

func TestAdaptiveDetectorStaticVideo(t *testing.T) {
	src := &solidSource{n: 50, colorAt: func(int) rgb { return red }}
	scenes, err := NewAdaptiveDetector(DefaultThreshold, DefaultMinSceneLen).Detect(src)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(scenes) != 1 || scenes[0] != (Scene{0, 50}) {
		t.Fatalf("scenes = %v, want one scene spanning the video", scenes)
	}
}

func TestAdaptiveDetectorPropagatesReadError(t *testing.T) {
	src := &solidSource{n: 50, colorAt: threeShots, failAt: 10}
	if _, err := NewAdaptiveDetector(DefaultThreshold, DefaultMinSceneLen).Detect(src); err == nil {
		t.Fatal("expected read error")
	}
}

func TestFindScenesDropsFirstSceneAndCompletes(t *testing.T) {
	src := &solidSource{n: 120, colorAt: threeShots, count: 120}
	ex := NewExtractor(&fakeOpener{src: src}, nil, nil, testLogger())

	var updates []float64
	res, err := ex.FindScenes(context.Background(), "/media/a.mp4", Options{}, func(f float64) {
		updates = append(updates, f)
	})
	if err != nil {
		t.Fatalf("FindScenes: %v", err)
	}

	if len(res.Cuts) != 2 || res.Cuts[0].Frame != 30 || res.Cuts[1].Frame != 90 {
		t.Fatalf("cuts = %+v, want frames 30 and 90", res.Cuts)
	}
	if res.Cuts[0].EndFrame != 90 || res.Cuts[1].EndFrame != 120 {
		t.Fatalf("unexpected end frames: %+v", res.Cuts)
	}
	if res.FrameRate != 24 {
		t.Fatalf("FrameRate = %v", res.FrameRate)
	}
	if res.Cancelled {
		t.Fatal("result should not be marked cancelled")
	}
	if !src.closed {
		t.Fatal("source was not closed")
	}

	if len(updates) == 0 || updates[len(updates)-1] != 1.0 {
		t.Fatalf("final progress = %v, want 1.0", updates)
	}
	for i := 1; i < len(updates); i++ {
		if updates[i] < updates[i-1] {
			t.Fatalf("progress not monotonic: %v", updates)
		}
	}
}

func TestFindScenesOpenFailure(t *testing.T) {
	ex := NewExtractor(&fakeOpener{err: errors.New("no such file")}, nil, nil, testLogger())
	res, err := ex.FindScenes(context.Background(), "/missing.mp4", Options{}, nil)

	var openErr *MediaOpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("err = %v, want *MediaOpenError", err)
	}
	if openErr.Path != "/missing.mp4" {
		t.Fatalf("Path = %q", openErr.Path)
	}
	if res != nil {
		t.Fatalf("expected nil result, got %+v", res)
	}
}

func TestFindScenesDetectorFailure(t *testing.T) {
	src := &solidSource{n: 10, colorAt: threeShots}
	factory := func(float64, int) Detector { return failingDetector{} }
	ex := NewExtractor(&fakeOpener{src: src}, nil, factory, testLogger())

	res, err := ex.FindScenes(context.Background(), "/media/a.mp4", Options{}, nil)
	var detErr *DetectionError
	if !errors.As(err, &detErr) {
		t.Fatalf("err = %v, want *DetectionError", err)
	}
	if res != nil {
		t.Fatal("hard failure must not return partial scenes")
	}
}

func TestFindScenesCancelledReturnsPartial(t *testing.T) {
	src := &solidSource{n: 240, colorAt: func(i int) rgb {
		if i < 10 {
			return black
		}
		return red
	}, count: 240}
	ex := NewExtractor(&fakeOpener{src: src}, nil, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var updates []float64
	res, err := ex.FindScenes(ctx, "/media/a.mp4", Options{}, func(f float64) {
		updates = append(updates, f)
		cancel()
	})
	if err != nil {
		t.Fatalf("cancellation should not be an error: %v", err)
	}
	if !res.Cancelled {
		t.Fatal("result should be marked cancelled")
	}
	if res.FramesRead != 24 {
		t.Fatalf("FramesRead = %d, want 24", res.FramesRead)
	}
	if len(res.Cuts) != 1 || res.Cuts[0].Frame != 10 {
		t.Fatalf("cuts = %+v, want the cut at frame 10", res.Cuts)
	}
	for _, u := range updates {
		if u == 1.0 {
			t.Fatalf("cancelled run must not report completion: %v", updates)
		}
	}
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	if o.Threshold != DefaultThreshold || o.MinSceneLen != DefaultMinSceneLen {
		t.Fatalf("defaults = %+v", o)
	}
}
