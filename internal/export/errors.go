package export

import (
	"errors"
	"fmt"
)

// ErrInvertedRange marks a range whose end lies before its start.
var ErrInvertedRange = errors.New("range ends before it starts")

// FilesystemError reports that the destination could not be prepared.
type FilesystemError struct {
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("cannot prepare output directory %s: %v", e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }

// TranscodeError reports that the transcoder failed for one clip.
type TranscodeError struct {
	Path       string
	ExitCode   int
	StderrTail string
	Err        error
}

func (e *TranscodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transcode %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("transcode %s: exit status %d", e.Path, e.ExitCode)
}

func (e *TranscodeError) Unwrap() error { return e.Err }
