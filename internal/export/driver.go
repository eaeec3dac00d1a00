package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/autocut/autocut-agent/internal/clip"
	"github.com/autocut/autocut-agent/internal/progress"
	"github.com/autocut/autocut-agent/internal/timecode"
	"github.com/autocut/autocut-agent/internal/transcode"
	"github.com/autocut/autocut-agent/internal/video"
)

// Driver exports frame ranges one clip at a time.
type Driver struct {
	transcoder transcode.Transcoder
	prober     video.Prober
	logger     *slog.Logger
}

func NewDriver(transcoder transcode.Transcoder, prober video.Prober, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{transcoder: transcoder, prober: prober, logger: logger}
}

// Export writes one file per range to req.OutputDir, named
// {prefix}_{NNN}.{container}. Cancellation is checked before each clip; the
// clip already running is allowed to finish. A failed clip is recorded in
// Result.Failed and the batch moves on.
func (d *Driver) Export(ctx context.Context, req Request, onProgress progress.Func) (*Result, error) {
	if onProgress == nil {
		onProgress = progress.Nop
	}
	if len(req.Ranges) == 0 {
		return nil, clip.ErrNothingSelected
	}
	if err := CleanOutputDir(req.OutputDir); err != nil {
		return nil, &FilesystemError{Path: req.OutputDir, Err: err}
	}

	prefix := SanitizeName(req.NamePrefix, 80)
	if prefix == "" {
		prefix = DefaultPrefix
	}
	container := ContainerExt(req.Container)

	res := &Result{Requested: len(req.Ranges), Files: []string{}}

	if err := os.MkdirAll(req.OutputDir, 0755); err != nil {
		return res, &FilesystemError{Path: req.OutputDir, Err: err}
	}

	if ctx.Err() != nil {
		res.Cancelled = true
		return res, nil
	}

	info, err := d.prober.Probe(ctx, req.MediaPath)
	if err != nil {
		if ctx.Err() != nil {
			res.Cancelled = true
			return res, nil
		}
		return res, fmt.Errorf("probe %s: %w", req.MediaPath, err)
	}
	if info.FrameRate <= 0 {
		return res, fmt.Errorf("probe %s: no usable frame rate", req.MediaPath)
	}
	fps := info.FrameRate
	res.FrameRate = fps

	d.logger.Info("export started",
		"clips", len(req.Ranges),
		"fps", fps,
		"prefix", prefix,
		"container", container,
	)
	started := time.Now()

	total := len(req.Ranges)
	for i, r := range req.Ranges {
		if ctx.Err() != nil {
			res.Cancelled = true
			d.logger.Info("export cancelled", "exported", res.Exported, "remaining", total-i)
			break
		}

		ordinal := i + 1
		out := filepath.Join(req.OutputDir, ClipFileName(prefix, ordinal, container))
		if r.End < r.Start {
			res.Attempted++
			d.recordFailure(res, ordinal, r, &TranscodeError{
				Path:     out,
				ExitCode: -1,
				Err:      fmt.Errorf("%w: frames %d-%d", ErrInvertedRange, r.Start, r.End),
			})
			onProgress(float64(ordinal) / float64(total))
			continue
		}
		tr, err := d.transcoder.Transcode(ctx, transcode.Request{
			Input:    req.MediaPath,
			Output:   out,
			Start:    timecode.Seconds(r.Start, fps),
			Duration: timecode.Seconds(r.End-r.Start, fps),
		})
		res.Attempted++

		switch {
		case err != nil:
			d.recordFailure(res, ordinal, r, &TranscodeError{Path: out, ExitCode: tr.ExitCode, Err: err})
		case !tr.IsSuccess():
			d.recordFailure(res, ordinal, r, &TranscodeError{Path: out, ExitCode: tr.ExitCode, StderrTail: tr.StderrTail})
		default:
			res.Exported++
			res.Files = append(res.Files, out)
		}

		onProgress(float64(ordinal) / float64(total))
	}

	d.logger.Info("export finished",
		"exported", res.Exported,
		"failed", len(res.Failed),
		"cancelled", res.Cancelled,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return res, nil
}

func (d *Driver) recordFailure(res *Result, ordinal int, r clip.Range, terr *TranscodeError) {
	d.logger.Warn("clip export failed", "ordinal", ordinal, "error", terr)
	res.Failed = append(res.Failed, Failure{
		Ordinal:  ordinal,
		Range:    r,
		Path:     terr.Path,
		ExitCode: terr.ExitCode,
		Message:  terr.Error(),
	})
}

// ClipFileName is {prefix}_{ordinal:03d}.{container}.
func ClipFileName(prefix string, ordinal int, container string) string {
	return fmt.Sprintf("%s_%03d.%s", prefix, ordinal, container)
}
