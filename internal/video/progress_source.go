package video

import (
	"context"
	"io"
	"log/slog"

	"github.com/autocut/autocut-agent/internal/progress"
)

// ProgressEvery is how many frames are consumed between progress reports.
const ProgressEvery = 24

// ProgressSource wraps a FrameSource, reporting the fraction of frames
// consumed and ending the stream early once ctx is cancelled. Methods other
// than Read are served by the wrapped source.
type ProgressSource struct {
	FrameSource

	ctx      context.Context
	onUpdate progress.Func
	total    int
	consumed int
}

// ProgressOptions configures NewProgressSource.
type ProgressOptions struct {
	// Path is the media file the source was opened from, used for the fallback count.
	Path string
	// Fallback is consulted when the source cannot count its own frames.
	Fallback Counter
	OnUpdate progress.Func
	Logger   *slog.Logger
}

// NewProgressSource resolves the total frame estimate up front: the source's
// own count, then the fallback counter, then 1 so the ratio stays defined.
func NewProgressSource(ctx context.Context, src FrameSource, opts ProgressOptions) *ProgressSource {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	total := 0
	if fc, ok := src.(FrameCounter); ok {
		total = fc.CountFrames()
	}
	if total <= 0 && opts.Fallback != nil && opts.Path != "" {
		n, err := opts.Fallback.CountFrames(ctx, opts.Path)
		if err != nil {
			logger.Warn("fallback frame count failed", "error", err)
		}
		total = n
	}
	if total <= 0 {
		logger.Warn("frame count unknown, progress will saturate early")
		total = 1
	}

	return &ProgressSource{
		FrameSource: src,
		ctx:         ctx,
		onUpdate:    opts.OnUpdate,
		total:       total,
	}
}

// Read returns io.EOF without touching the underlying source once the
// context is done.
func (p *ProgressSource) Read() (*Frame, error) {
	if p.ctx.Err() != nil {
		return nil, io.EOF
	}

	f, err := p.FrameSource.Read()
	if err != nil || f == nil {
		return f, err
	}

	p.consumed++
	if p.onUpdate != nil && p.consumed%ProgressEvery == 0 {
		p.onUpdate(min(1.0, float64(p.consumed)/float64(p.total)))
	}
	return f, nil
}

// Total is the frame estimate used as the progress denominator.
func (p *ProgressSource) Total() int {
	return p.total
}

// CountFrames reports the resolved estimate, so a ProgressSource is itself a
// FrameCounter for anything that wraps it further.
func (p *ProgressSource) CountFrames() int {
	return p.total
}

// Consumed is the number of frames successfully read so far.
func (p *ProgressSource) Consumed() int {
	return p.consumed
}
