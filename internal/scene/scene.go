// Package scene finds shot boundaries in a media file.
package scene

import (
	"context"
	"log/slog"
	"time"

	"github.com/autocut/autocut-agent/internal/clip"
	"github.com/autocut/autocut-agent/internal/progress"
	"github.com/autocut/autocut-agent/internal/video"
)

const (
	DefaultThreshold   = 5.0
	DefaultMinSceneLen = 12
)

// Scene is a detected shot, [Start, End) in frames.
type Scene struct {
	Start int
	End   int
}

// Detector consumes a frame source until it reports io.EOF and returns the
// scenes it found. A source that ends early yields the scenes seen so far.
type Detector interface {
	Detect(src video.FrameSource) ([]Scene, error)
}

// DetectorFactory builds a detector for one run.
type DetectorFactory func(threshold float64, minSceneLen int) Detector

// Options tune the detector for a single analysis.
type Options struct {
	Threshold   float64
	MinSceneLen int
}

func (o Options) withDefaults() Options {
	if o.Threshold <= 0 {
		o.Threshold = DefaultThreshold
	}
	if o.MinSceneLen <= 0 {
		o.MinSceneLen = DefaultMinSceneLen
	}
	return o
}

// Result is the outcome of FindScenes. Cancelled is set when the run stopped
// early; Cuts then covers only the frames read before cancellation.
type Result struct {
	Cuts       []clip.CutPoint
	FrameRate  float64
	TotalHint  int
	FramesRead int
	Cancelled  bool
}

// Extractor runs a Detector over a media file with progress and cancellation.
type Extractor struct {
	opener      video.Opener
	counter     video.Counter
	newDetector DetectorFactory
	logger      *slog.Logger
}

func NewExtractor(opener video.Opener, counter video.Counter, newDetector DetectorFactory, logger *slog.Logger) *Extractor {
	if newDetector == nil {
		newDetector = NewAdaptiveDetector
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		opener:      opener,
		counter:     counter,
		newDetector: newDetector,
		logger:      logger,
	}
}

// FindScenes detects shot boundaries in path. Scenes starting at frame 0 are
// not cut points and are dropped. Cancelling ctx stops detection and returns
// the partial result without error; progress reaches 1.0 only when the run
// completes.
func (e *Extractor) FindScenes(ctx context.Context, path string, opts Options, onProgress progress.Func) (*Result, error) {
	opts = opts.withDefaults()
	if onProgress == nil {
		onProgress = progress.Nop
	}
	start := time.Now()

	src, err := e.opener.Open(ctx, path)
	if err != nil {
		return nil, &MediaOpenError{Path: path, Err: err}
	}
	defer src.Close()

	ps := video.NewProgressSource(ctx, src, video.ProgressOptions{
		Path:     path,
		Fallback: e.counter,
		OnUpdate: onProgress,
		Logger:   e.logger,
	})

	e.logger.Info("scene detection started",
		"threshold", opts.Threshold,
		"min_scene_len", opts.MinSceneLen,
		"total_frames", ps.Total(),
	)

	scenes, err := e.newDetector(opts.Threshold, opts.MinSceneLen).Detect(ps)
	if err != nil {
		e.logger.Warn("scene detection failed", "error", err, "frames_read", ps.Consumed())
		return nil, &DetectionError{Path: path, Err: err}
	}

	res := &Result{
		Cuts:       make([]clip.CutPoint, 0, len(scenes)),
		FrameRate:  ps.FrameRate(),
		TotalHint:  ps.Total(),
		FramesRead: ps.Consumed(),
		Cancelled:  ctx.Err() != nil,
	}
	for _, s := range scenes {
		if s.Start == 0 {
			continue
		}
		res.Cuts = append(res.Cuts, clip.CutPoint{Frame: s.Start, EndFrame: s.End})
	}

	if !res.Cancelled {
		onProgress(1.0)
	}

	e.logger.Info("scene detection finished",
		"cuts", len(res.Cuts),
		"frames_read", res.FramesRead,
		"cancelled", res.Cancelled,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}
