// Package tools checks that the external media binaries the agent shells out
// to are installed and reports their versions.
package tools

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const (
	defaultCacheTTL = 5 * time.Minute
	versionTimeout  = 10 * time.Second
)

// ToolInfo is the availability of one executable.
type ToolInfo struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Path      string `json:"path,omitempty"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Capabilities is what the host can do with the tools found on PATH.
type Capabilities struct {
	FFmpeg  ToolInfo `json:"ffmpeg"`
	FFprobe ToolInfo `json:"ffprobe"`

	CanAnalyze bool      `json:"can_analyze"`
	CanExport  bool      `json:"can_export"`
	ProbedAt   time.Time `json:"probed_at"`
}

// OK reports whether every operation is available.
func (c *Capabilities) OK() bool {
	return c.CanAnalyze && c.CanExport
}

type Doctor interface {
	RunDoctor(ctx context.Context) (*Capabilities, error)
}

// ExecDoctor looks binaries up on PATH and runs them with -version.
type ExecDoctor struct {
	FFmpeg  string
	FFprobe string
}

func NewExecDoctor() *ExecDoctor {
	return &ExecDoctor{FFmpeg: "ffmpeg", FFprobe: "ffprobe"}
}

func (d *ExecDoctor) RunDoctor(ctx context.Context) (*Capabilities, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	caps := &Capabilities{
		FFmpeg:   probeTool(ctx, d.FFmpeg),
		FFprobe:  probeTool(ctx, d.FFprobe),
		ProbedAt: time.Now(),
	}
	// Decoding and transcoding need ffmpeg; frame rate and counts need ffprobe.
	caps.CanAnalyze = caps.FFmpeg.Available && caps.FFprobe.Available
	caps.CanExport = caps.FFmpeg.Available && caps.FFprobe.Available
	return caps, nil
}

func probeTool(ctx context.Context, name string) ToolInfo {
	info := ToolInfo{Name: name}
	path, err := exec.LookPath(name)
	if err != nil {
		info.Error = err.Error()
		return info
	}
	info.Path = path

	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			info.Error = fmt.Sprintf("%s -version exited %d", name, exitErr.ExitCode())
		} else {
			info.Error = err.Error()
		}
		return info
	}
	info.Available = true
	info.Version = ParseVersion(out)
	return info
}

// ParseVersion extracts the version token from the first line of
// "ffmpeg -version" style output.
func ParseVersion(out []byte) string {
	sc := bufio.NewScanner(bytes.NewReader(out))
	if !sc.Scan() {
		return ""
	}
	fields := strings.Fields(sc.Text())
	for i, f := range fields {
		if f == "version" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return strings.TrimSpace(sc.Text())
}

// CachedDoctor caches doctor results for a TTL so status endpoints do not
// spawn processes on every request.
type CachedDoctor struct {
	doctor Doctor
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	cached *Capabilities
}

func NewCachedDoctor(doctor Doctor, logger *slog.Logger) *CachedDoctor {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedDoctor{
		doctor: doctor,
		ttl:    defaultCacheTTL,
		logger: logger,
	}
}

// Get returns cached capabilities if fresh, otherwise re-probes.
func (d *CachedDoctor) Get(ctx context.Context) (*Capabilities, error) {
	d.mu.RLock()
	if d.cached != nil && time.Since(d.cached.ProbedAt) < d.ttl {
		caps := d.cached
		d.mu.RUnlock()
		return caps, nil
	}
	d.mu.RUnlock()

	return d.Refresh(ctx)
}

func (d *CachedDoctor) Peek() *Capabilities {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cached
}

// Refresh probes again regardless of cache age. On failure a stale result
// is returned if there is one.
func (d *CachedDoctor) Refresh(ctx context.Context) (*Capabilities, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	caps, err := d.doctor.RunDoctor(ctx)
	if err != nil {
		d.logger.Warn("doctor probe failed", "error", err)
		if d.cached != nil {
			d.logger.Info("returning stale capabilities cache")
			return d.cached, nil
		}
		return nil, err
	}

	d.cached = caps
	return caps, nil
}

func (d *CachedDoctor) Invalidate() {
	d.mu.Lock()
	d.cached = nil
	d.mu.Unlock()
}
