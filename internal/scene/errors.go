package scene

import "fmt"

// MediaOpenError reports that a media file could not be opened for decoding.
type MediaOpenError struct {
	Path string
	Err  error
}

func (e *MediaOpenError) Error() string {
	return fmt.Sprintf("cannot open media %s: %v", e.Path, e.Err)
}

func (e *MediaOpenError) Unwrap() error { return e.Err }

// DetectionError reports a failure while the detector was consuming frames.
type DetectionError struct {
	Path string
	Err  error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("scene detection failed for %s: %v", e.Path, e.Err)
}

func (e *DetectionError) Unwrap() error { return e.Err }
