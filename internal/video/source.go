// Package video decodes media into frames for analysis and reports progress
// while a detector consumes them.
package video

import (
	"context"
)

// Frame is one decoded picture in packed RGB24.
type Frame struct {
	Index  int
	Width  int
	Height int
	Pix    []byte
}

// At returns the RGB triple of the pixel at (x, y).
func (f *Frame) At(x, y int) (r, g, b uint8) {
	i := (y*f.Width + x) * 3
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

// FrameSource yields frames in order. Read returns io.EOF once no frame
// remains; any other error is a decode failure.
type FrameSource interface {
	Read() (*Frame, error)
	FrameRate() float64
	Close() error
}

// FrameCounter is implemented by sources that know their own frame count.
// A non-positive result means the count is unknown.
type FrameCounter interface {
	CountFrames() int
}

// Opener opens a FrameSource for a media file.
type Opener interface {
	Open(ctx context.Context, path string) (FrameSource, error)
}

// Counter estimates the frame count of a media file through a handle that is
// independent of any open FrameSource.
type Counter interface {
	CountFrames(ctx context.Context, path string) (int, error)
}
