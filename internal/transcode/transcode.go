// Package transcode cuts a time range out of a media file with ffmpeg.
package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics
)

// Request describes one clip to encode. Times are in seconds.
type Request struct {
	Input    string
	Output   string
	Start    float64
	Duration float64
}

// Result is the outcome of one transcoder run.
type Result struct {
	ExitCode   int           `json:"exit_code"`
	OutputPath string        `json:"output_path,omitempty"`
	StderrTail string        `json:"stderr_tail,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// IsSuccess returns true when the transcoder exited cleanly.
func (r Result) IsSuccess() bool { return r.ExitCode == 0 }

// Transcoder encodes a single clip. The returned error is reserved for
// failures to launch; a non-zero exit is reported through Result.
type Transcoder interface {
	Transcode(ctx context.Context, req Request) (Result, error)
}

// Config holds the encoder settings.
type Config struct {
	Binary     string // ffmpeg executable; empty = "ffmpeg" on PATH
	VideoCodec string
	CRF        int
	Preset     string
	AudioCodec string
	Logger     *slog.Logger
	DebugPaths bool // if true, log full file paths; otherwise sanitise
}

// DefaultConfig returns H.264 at CRF 18 with AAC audio.
func DefaultConfig(logger *slog.Logger) Config {
	return Config{
		VideoCodec: "libx264",
		CRF:        18,
		Preset:     "fast",
		AudioCodec: "aac",
		Logger:     logger,
	}
}

// FFmpeg is the production Transcoder.
type FFmpeg struct {
	cfg Config
}

func NewFFmpeg(cfg Config) *FFmpeg {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Binary == "" {
		cfg.Binary = "ffmpeg"
	}
	return &FFmpeg{cfg: cfg}
}

// Args returns the ffmpeg arguments for req, seeking on the input side.
func (f *FFmpeg) Args(req Request) []string {
	return f.stream(req).GetArgs()
}

func (f *FFmpeg) stream(req Request) *ffmpeg.Stream {
	return ffmpeg.Input(req.Input, ffmpeg.KwArgs{"ss": fmt.Sprintf("%.3f", req.Start)}).
		Output(req.Output, ffmpeg.KwArgs{
			"t":      fmt.Sprintf("%.3f", req.Duration),
			"c:v":    f.cfg.VideoCodec,
			"crf":    f.cfg.CRF,
			"preset": f.cfg.Preset,
			"c:a":    f.cfg.AudioCodec,
		}).
		OverWriteOutput()
}

// Transcode runs ffmpeg to completion. Cancelling ctx does not interrupt a
// clip that has already started.
func (f *FFmpeg) Transcode(ctx context.Context, req Request) (Result, error) {
	start := time.Now()

	if err := os.MkdirAll(filepath.Dir(req.Output), 0755); err != nil {
		return Result{ExitCode: -1, StderrTail: err.Error(), Duration: time.Since(start)}, fmt.Errorf("cannot create output dir: %w", err)
	}

	cmd := exec.CommandContext(context.WithoutCancel(ctx), f.cfg.Binary, f.Args(req)...)

	var stderrBuf bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}
	cmd.Stdout = io.Discard

	f.cfg.Logger.Info("executing transcode",
		"output", f.safePath(req.Output),
		"start", req.Start,
		"duration", req.Duration,
	)

	err := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			f.cfg.Logger.Error("transcode could not start", "error", err)
			return Result{ExitCode: -1, StderrTail: err.Error(), Duration: elapsed}, fmt.Errorf("start ffmpeg: %w", err)
		}
		exitCode = exitErr.ExitCode()
	}

	stderrTail := stderrBuf.String()
	if exitCode != 0 {
		f.cfg.Logger.Warn("transcode failed",
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(stderrTail, 512),
		)
	} else {
		f.cfg.Logger.Info("transcode succeeded",
			"duration_ms", elapsed.Milliseconds(),
			"output", f.safePath(req.Output),
		)
	}

	return Result{
		ExitCode:   exitCode,
		OutputPath: req.Output,
		StderrTail: stderrTail,
		Duration:   elapsed,
	}, nil
}

func (f *FFmpeg) safePath(path string) string {
	if f.cfg.DebugPaths {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Base(path)
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return filepath.Base(path)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}
