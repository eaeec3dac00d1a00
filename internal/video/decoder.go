package video

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

const (
	// DefaultDetectWidth is the width frames are scaled to before analysis.
	DefaultDetectWidth = 128

	maxStderrBytes = 8 * 1024
)

// DecoderConfig configures the ffmpeg frame decoder.
type DecoderConfig struct {
	DetectWidth int
	Prober      Prober
	Logger      *slog.Logger
}

// Decoder opens media files as downscaled RGB24 frame streams piped out of ffmpeg.
type Decoder struct {
	cfg DecoderConfig
}

func NewDecoder(cfg DecoderConfig) *Decoder {
	if cfg.DetectWidth <= 0 {
		cfg.DetectWidth = DefaultDetectWidth
	}
	if cfg.Prober == nil {
		cfg.Prober = FFprobe{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Decoder{cfg: cfg}
}

// Open probes path and starts an ffmpeg process that writes raw frames to a pipe.
func (d *Decoder) Open(ctx context.Context, path string) (FrameSource, error) {
	info, err := d.cfg.Prober.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	if info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("%s: invalid frame size %dx%d", path, info.Width, info.Height)
	}

	w, h := ScaledSize(info.Width, info.Height, d.cfg.DetectWidth)

	cmd := ffmpeg.Input(path).
		Output("pipe:", ffmpeg.KwArgs{
			"format":  "rawvideo",
			"pix_fmt": "rgb24",
			"s":       fmt.Sprintf("%dx%d", w, h),
			"map":     "0:v:0",
		}).
		Compile()

	stderr := &limitedWriter{w: &bytes.Buffer{}, limit: maxStderrBytes}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg decoder: %w", err)
	}

	d.cfg.Logger.Debug("decoder started",
		"width", w,
		"height", h,
		"fps", info.FrameRate,
		"frames", info.Frames,
	)

	return &pipeSource{
		cmd:    cmd,
		r:      bufio.NewReaderSize(stdout, w*h*3),
		stderr: stderr,
		info:   info,
		width:  w,
		height: h,
	}, nil
}

// ScaledSize fits width to target keeping the aspect ratio with an even height.
func ScaledSize(width, height, target int) (int, int) {
	if target <= 0 || width <= target {
		return width, height &^ 1
	}
	h := height * target / width
	h &^= 1
	if h < 2 {
		h = 2
	}
	return target, h
}

type pipeSource struct {
	cmd    *exec.Cmd
	r      *bufio.Reader
	stderr *limitedWriter
	info   *ProbeResult
	width  int
	height int

	next     int
	done     bool
	waitOnce sync.Once
	waitErr  error
}

func (s *pipeSource) Read() (*Frame, error) {
	if s.done {
		return nil, io.EOF
	}

	buf := make([]byte, s.width*s.height*3)
	_, err := io.ReadFull(s.r, buf)
	if err != nil {
		s.done = true
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			if werr := s.wait(); werr != nil && s.next == 0 {
				return nil, fmt.Errorf("ffmpeg decoder: %w: %s", werr, s.stderr.String())
			}
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read frame %d: %w", s.next, err)
	}

	f := &Frame{Index: s.next, Width: s.width, Height: s.height, Pix: buf}
	s.next++
	return f, nil
}

func (s *pipeSource) FrameRate() float64 {
	return s.info.FrameRate
}

// CountFrames reports the container's frame count, or zero when the container does not record it.
func (s *pipeSource) CountFrames() int {
	return s.info.Frames
}

func (s *pipeSource) Close() error {
	if !s.done && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	s.done = true
	err := s.wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// A killed or finished decoder is the normal way to stop.
		return nil
	}
	return err
}

func (s *pipeSource) wait() error {
	s.waitOnce.Do(func() {
		s.waitErr = s.cmd.Wait()
	})
	return s.waitErr
}

// limitedWriter keeps only the last limit bytes written to it.
type limitedWriter struct {
	mu    sync.Mutex
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		tail := make([]byte, lw.limit)
		copy(tail, b[len(b)-lw.limit:])
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}

func (lw *limitedWriter) String() string {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.String()
}
