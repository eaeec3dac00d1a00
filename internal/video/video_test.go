package video

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

type fakeSource struct {
	frames int
	count  int
	failAt int
	reads  int
	closed bool
}

func (f *fakeSource) Read() (*Frame, error) {
	f.reads++
	if f.failAt > 0 && f.reads == f.failAt {
		return nil, errors.New("decode failed")
	}
	if f.reads > f.frames {
		return nil, io.EOF
	}
	return &Frame{Index: f.reads - 1, Width: 1, Height: 1, Pix: []byte{0, 0, 0}}, nil
}

func (f *fakeSource) FrameRate() float64 { return 24 }
func (f *fakeSource) Close() error       { f.closed = true; return nil }

type countingSource struct {
	*fakeSource
}

func (c countingSource) CountFrames() int { return c.count }

type fakeCounter struct {
	n     int
	err   error
	calls int
}

func (c *fakeCounter) CountFrames(ctx context.Context, path string) (int, error) {
	c.calls++
	return c.n, c.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func drain(t *testing.T, src FrameSource) int {
	t.Helper()
	n := 0
	for {
		f, err := src.Read()
		if errors.Is(err, io.EOF) {
			return n
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if f == nil {
			t.Fatal("nil frame without error")
		}
		n++
	}
}

func TestProgressSourceReportsEvery24Frames(t *testing.T) {
	src := countingSource{&fakeSource{frames: 100, count: 96}}
	var got []float64
	ps := NewProgressSource(context.Background(), src, ProgressOptions{
		OnUpdate: func(f float64) { got = append(got, f) },
		Logger:   quietLogger(),
	})

	if n := drain(t, ps); n != 100 {
		t.Fatalf("read %d frames, want 100", n)
	}

	want := []float64{0.25, 0.5, 0.75, 1}
	if len(got) != len(want) {
		t.Fatalf("got %d updates %v, want %v", len(got), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("update %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestProgressSourceMonotonicAndCapped(t *testing.T) {
	src := countingSource{&fakeSource{frames: 500, count: 100}}
	last := -1.0
	ps := NewProgressSource(context.Background(), src, ProgressOptions{
		OnUpdate: func(f float64) {
			if f < last {
				t.Fatalf("progress went backwards: %v after %v", f, last)
			}
			if f > 1 {
				t.Fatalf("progress exceeded 1: %v", f)
			}
			last = f
		},
		Logger: quietLogger(),
	})
	drain(t, ps)
	if last != 1 {
		t.Fatalf("last progress = %v, want 1", last)
	}
}

func TestProgressSourceUsesFallbackCounter(t *testing.T) {
	src := countingSource{&fakeSource{frames: 10, count: 0}}
	counter := &fakeCounter{n: 48}
	ps := NewProgressSource(context.Background(), src, ProgressOptions{
		Path:     "/media/a.mp4",
		Fallback: counter,
		Logger:   quietLogger(),
	})
	if counter.calls != 1 {
		t.Fatalf("fallback called %d times, want 1", counter.calls)
	}
	if ps.Total() != 48 {
		t.Fatalf("Total() = %d, want 48", ps.Total())
	}
}

func TestProgressSourceZeroCountSaturates(t *testing.T) {
	src := &fakeSource{frames: 48}
	counter := &fakeCounter{err: errors.New("probe failed")}
	var got []float64
	ps := NewProgressSource(context.Background(), src, ProgressOptions{
		Path:     "/media/a.mp4",
		Fallback: counter,
		OnUpdate: func(f float64) { got = append(got, f) },
		Logger:   quietLogger(),
	})
	if ps.Total() != 1 {
		t.Fatalf("Total() = %d, want 1", ps.Total())
	}
	drain(t, ps)
	for _, f := range got {
		if f != 1 {
			t.Fatalf("expected saturated progress of 1, got %v", f)
		}
	}
	if len(got) != 2 {
		t.Fatalf("got %d updates, want 2", len(got))
	}
}

func TestProgressSourceStopsOnCancel(t *testing.T) {
	src := countingSource{&fakeSource{frames: 1000, count: 1000}}
	ctx, cancel := context.WithCancel(context.Background())
	ps := NewProgressSource(ctx, src, ProgressOptions{Logger: quietLogger()})

	for i := 0; i < 30; i++ {
		if _, err := ps.Read(); err != nil {
			t.Fatalf("Read %d: %v", i, err)
		}
	}
	cancel()

	if _, err := ps.Read(); !errors.Is(err, io.EOF) {
		t.Fatalf("Read after cancel = %v, want io.EOF", err)
	}
	if src.reads != 30 {
		t.Fatalf("underlying source read %d times, want 30", src.reads)
	}
	if ps.Consumed() != 30 {
		t.Fatalf("Consumed() = %d, want 30", ps.Consumed())
	}
}

func TestProgressSourceNoUpdateOnFailure(t *testing.T) {
	src := countingSource{&fakeSource{frames: 100, count: 100, failAt: 24}}
	calls := 0
	ps := NewProgressSource(context.Background(), src, ProgressOptions{
		OnUpdate: func(float64) { calls++ },
		Logger:   quietLogger(),
	})
	for i := 0; i < 23; i++ {
		if _, err := ps.Read(); err != nil {
			t.Fatalf("Read %d: %v", i, err)
		}
	}
	if _, err := ps.Read(); err == nil {
		t.Fatal("expected decode error")
	}
	if calls != 0 {
		t.Fatalf("failed read triggered %d updates", calls)
	}
}

func TestProgressSourceForwardsMethods(t *testing.T) {
	src := &fakeSource{frames: 1}
	ps := NewProgressSource(context.Background(), src, ProgressOptions{Logger: quietLogger()})
	if ps.FrameRate() != 24 {
		t.Fatalf("FrameRate() = %v", ps.FrameRate())
	}
	if err := ps.Close(); err != nil || !src.closed {
		t.Fatalf("Close not forwarded: err=%v closed=%v", err, src.closed)
	}
}

func TestProgressSourceIsFrameCounter(t *testing.T) {
	src := countingSource{&fakeSource{frames: 10, count: 240}}
	ps := NewProgressSource(context.Background(), src, ProgressOptions{Logger: quietLogger()})

	var fc FrameCounter = ps
	if got := fc.CountFrames(); got != 240 {
		t.Fatalf("CountFrames() = %d, want 240", got)
	}

	// A second wrapper takes its estimate from the first without a fallback.
	outer := NewProgressSource(context.Background(), ps, ProgressOptions{Logger: quietLogger()})
	if outer.Total() != 240 {
		t.Fatalf("outer Total() = %d, want 240", outer.Total())
	}
}

func stubProbe(t *testing.T, fn func(path string, timeout time.Duration, kw ffmpeg.KwArgs) (string, error)) {
	t.Helper()
	orig := runProbe
	runProbe = fn
	t.Cleanup(func() { runProbe = orig })
}

func TestFFprobeBoundedByTimeout(t *testing.T) {
	var got time.Duration
	stubProbe(t, func(path string, timeout time.Duration, kw ffmpeg.KwArgs) (string, error) {
		got = timeout
		return `{"streams":[{"codec_type":"video","r_frame_rate":"25/1","nb_frames":"50"}],"format":{"duration":"2.0"}}`, nil
	})

	if _, err := (FFprobe{}).Probe(context.Background(), "/media/a.mp4"); err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if got != ProbeTimeout {
		t.Errorf("timeout = %v, want %v", got, ProbeTimeout)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := (FFprobe{}).Probe(ctx, "/media/a.mp4"); err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if got <= 0 || got > 2*time.Second {
		t.Errorf("timeout = %v, want within the 2s deadline", got)
	}
}

func TestFFprobeReturnsOnCancel(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	stubProbe(t, func(path string, timeout time.Duration, kw ffmpeg.KwArgs) (string, error) {
		<-release
		return "", errors.New("killed")
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := (FFprobe{}).Probe(ctx, "/media/hung.mp4")
		errCh <- err
	}()
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Probe did not return after cancellation")
	}
}

func TestParseProbe(t *testing.T) {
	data := []byte(`{
		"streams": [
			{"codec_type": "audio", "codec_name": "aac", "sample_rate": "48000"},
			{"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080,
			 "r_frame_rate": "30000/1001", "avg_frame_rate": "30000/1001", "nb_frames": "1798", "duration": "59.993"}
		],
		"format": {"duration": "60.0", "bit_rate": "5000000"}
	}`)

	res, err := ParseProbe(data)
	if err != nil {
		t.Fatalf("ParseProbe: %v", err)
	}
	if res.Codec != "h264" || res.Width != 1920 || res.Height != 1080 {
		t.Fatalf("unexpected video fields: %+v", res)
	}
	if res.FrameRate < 29.96 || res.FrameRate > 29.98 {
		t.Fatalf("FrameRate = %v", res.FrameRate)
	}
	if res.Frames != 1798 {
		t.Fatalf("Frames = %d", res.Frames)
	}
	if res.Duration != 59.993 {
		t.Fatalf("Duration = %v", res.Duration)
	}
	if res.AudioCodec != "aac" || res.AudioSample != 48000 {
		t.Fatalf("unexpected audio fields: %+v", res)
	}
	if res.Bitrate != 5000000 {
		t.Fatalf("Bitrate = %d", res.Bitrate)
	}
}

func TestParseProbeNoVideo(t *testing.T) {
	_, err := ParseProbe([]byte(`{"streams":[{"codec_type":"audio"}],"format":{}}`))
	if !errors.Is(err, ErrNoVideoStream) {
		t.Fatalf("err = %v, want ErrNoVideoStream", err)
	}
}

func TestEstimatedFrames(t *testing.T) {
	tests := []struct {
		name string
		in   ProbeResult
		want int
	}{
		{name: "container count", in: ProbeResult{Frames: 100, Duration: 10, FrameRate: 24}, want: 100},
		{name: "duration fallback", in: ProbeResult{Duration: 10, FrameRate: 24}, want: 240},
		{name: "unknown", in: ProbeResult{}, want: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.in.EstimatedFrames(); got != tc.want {
				t.Fatalf("EstimatedFrames() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestScaledSize(t *testing.T) {
	tests := []struct {
		w, h, target int
		wantW, wantH int
	}{
		{1920, 1080, 128, 128, 72},
		{640, 481, 128, 128, 96},
		{100, 51, 128, 100, 50},
		{4000, 10, 128, 128, 2},
	}
	for _, tc := range tests {
		w, h := ScaledSize(tc.w, tc.h, tc.target)
		if w != tc.wantW || h != tc.wantH {
			t.Fatalf("ScaledSize(%d, %d, %d) = %dx%d, want %dx%d", tc.w, tc.h, tc.target, w, h, tc.wantW, tc.wantH)
		}
	}
}

func TestLimitedWriterKeepsTail(t *testing.T) {
	lw := &limitedWriter{w: &bytes.Buffer{}, limit: 4}
	_, _ = lw.Write([]byte("abc"))
	_, _ = lw.Write([]byte("defg"))
	if got := lw.String(); got != "defg" {
		t.Fatalf("String() = %q, want %q", got, "defg")
	}
}
