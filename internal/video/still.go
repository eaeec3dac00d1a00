package video

import (
	"bytes"
	"context"
	"fmt"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Still renders a single frame of path as a JPEG scaled to width pixels wide.
func Still(ctx context.Context, path string, frame int, fps float64, width int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fps <= 0 {
		return nil, fmt.Errorf("invalid frame rate %v", fps)
	}
	if width <= 0 {
		width = 320
	}

	var out bytes.Buffer
	stderr := &limitedWriter{w: &bytes.Buffer{}, limit: maxStderrBytes}
	err := ffmpeg.Input(path, ffmpeg.KwArgs{"ss": fmt.Sprintf("%.3f", float64(frame)/fps)}).
		Output("pipe:", ffmpeg.KwArgs{
			"vframes": 1,
			"format":  "image2",
			"vcodec":  "mjpeg",
			"vf":      fmt.Sprintf("scale=%d:-2", width),
		}).
		WithOutput(&out, stderr).
		Run()
	if err != nil {
		return nil, fmt.Errorf("render frame %d: %w: %s", frame, err, stderr.String())
	}
	if out.Len() == 0 {
		return nil, fmt.Errorf("render frame %d: no image produced", frame)
	}
	return out.Bytes(), nil
}
