// Package playback streams local media files over HTTP with single byte-range
// support so browser video elements can seek.
package playback

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrMalformedRange = errors.New("malformed range header")
	ErrUnsatisfiable  = errors.New("range not satisfiable")
)

// ByteRange is an inclusive byte interval of a file.
type ByteRange struct {
	First int64
	Last  int64
}

func (b ByteRange) Len() int64 {
	return b.Last - b.First + 1
}

// ContentRange formats the Content-Range header value for a file of size bytes.
func (b ByteRange) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", b.First, b.Last, size)
}

// ParseByteRange reads a Range header against a file of size bytes. An empty
// header returns nil, nil. Only the first range of a multi-range request is
// honoured, and a Last past the end is clamped.
func ParseByteRange(header string, size int64) (*ByteRange, error) {
	if header == "" {
		return nil, nil
	}

	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return nil, ErrMalformedRange
	}
	if first, _, multi := strings.Cut(spec, ","); multi {
		spec = first
	}
	spec = strings.TrimSpace(spec)

	from, to, ok := strings.Cut(spec, "-")
	if !ok {
		return nil, ErrMalformedRange
	}

	if from == "" {
		n, err := strconv.ParseInt(to, 10, 64)
		if err != nil || n <= 0 {
			return nil, ErrMalformedRange
		}
		if size == 0 {
			return nil, ErrUnsatisfiable
		}
		return &ByteRange{First: max(size-n, 0), Last: size - 1}, nil
	}

	first, err := strconv.ParseInt(from, 10, 64)
	if err != nil || first < 0 {
		return nil, ErrMalformedRange
	}
	last := size - 1
	if to != "" {
		if last, err = strconv.ParseInt(to, 10, 64); err != nil {
			return nil, ErrMalformedRange
		}
	}

	if first >= size || first > last {
		return nil, ErrUnsatisfiable
	}
	return &ByteRange{First: first, Last: min(last, size-1)}, nil
}
