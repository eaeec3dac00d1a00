package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

var ErrNoVideoStream = errors.New("no video stream")

// ProbeTimeout bounds a single ffprobe run; a context deadline that is
// sooner wins.
const ProbeTimeout = 30 * time.Second

// runProbe is swapped out in tests.
var runProbe = ffmpeg.ProbeWithTimeout

// ProbeResult is the subset of ffprobe metadata the agent relies on.
type ProbeResult struct {
	Duration    float64
	Width       int
	Height      int
	Codec       string
	Bitrate     int64
	FrameRate   float64
	Frames      int
	AudioCodec  string
	AudioSample int
}

// EstimatedFrames prefers the container's frame count and falls back to
// duration times frame rate.
func (p *ProbeResult) EstimatedFrames() int {
	if p.Frames > 0 {
		return p.Frames
	}
	if p.Duration > 0 && p.FrameRate > 0 {
		return int(math.Round(p.Duration * p.FrameRate))
	}
	return 0
}

// Prober reads stream metadata from a media file.
type Prober interface {
	Probe(ctx context.Context, path string) (*ProbeResult, error)
}

// FFprobe probes through the ffprobe binary on PATH.
type FFprobe struct{}

func (FFprobe) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type probeOutput struct {
		out string
		err error
	}
	done := make(chan probeOutput, 1)
	timeout := probeTimeout(ctx)
	probe := runProbe
	go func() {
		out, err := probe(path, timeout, nil)
		done <- probeOutput{out, err}
	}()

	// ffprobe itself cannot observe ctx; on cancel it is left to the timeout.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("ffprobe %s: %w", path, res.err)
		}
		return ParseProbe([]byte(res.out))
	}
}

func probeTimeout(ctx context.Context) time.Duration {
	timeout := ProbeTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = max(remaining, time.Millisecond)
		}
	}
	return timeout
}

// CountFrames implements Counter with a fresh probe of path.
func (f FFprobe) CountFrames(ctx context.Context, path string) (int, error) {
	res, err := f.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	return res.EstimatedFrames(), nil
}

type probeJSON struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		NbFrames     string `json:"nb_frames"`
		Duration     string `json:"duration"`
		SampleRate   string `json:"sample_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
}

// ParseProbe decodes ffprobe's `-show_format -show_streams -of json` output.
func ParseProbe(data []byte) (*ProbeResult, error) {
	var raw probeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("cannot parse ffprobe JSON: %w", err)
	}

	res := &ProbeResult{
		Duration: parseFloat(raw.Format.Duration),
		Bitrate:  int64(parseFloat(raw.Format.BitRate)),
	}

	foundVideo := false
	for _, s := range raw.Streams {
		switch s.CodecType {
		case "video":
			if foundVideo {
				continue
			}
			foundVideo = true
			res.Codec = s.CodecName
			res.Width = s.Width
			res.Height = s.Height
			res.FrameRate = parseRate(s.AvgFrameRate)
			if res.FrameRate <= 0 {
				res.FrameRate = parseRate(s.RFrameRate)
			}
			res.Frames, _ = strconv.Atoi(s.NbFrames)
			if d := parseFloat(s.Duration); d > 0 {
				res.Duration = d
			}
		case "audio":
			if res.AudioCodec == "" {
				res.AudioCodec = s.CodecName
				res.AudioSample, _ = strconv.Atoi(s.SampleRate)
			}
		}
	}

	if !foundVideo {
		return res, ErrNoVideoStream
	}
	return res, nil
}

// parseRate handles ffprobe rationals like "30000/1001".
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return parseFloat(s)
	}
	n := parseFloat(num)
	d := parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
