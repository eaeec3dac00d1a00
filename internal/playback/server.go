package playback

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrNotFound is returned when the file to stream does not exist.
var ErrNotFound = errors.New("media file not found")

var videoTypes = map[string]string{
	".mp4": "video/mp4",
	".m4v": "video/mp4",
	".mov": "video/quicktime",
	".mkv": "video/x-matroska",
	".avi": "video/x-msvideo",
	".mxf": "application/mxf",
}

// Streamer writes media files to HTTP responses.
type Streamer struct {
	logger *slog.Logger
}

func NewStreamer(logger *slog.Logger) *Streamer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Streamer{logger: logger}
}

// Stream serves path, answering a Range request with 206 and a bad range
// with 416. Headers are not written when an error is returned.
func (s *Streamer) Stream(w http.ResponseWriter, r *http.Request, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("open media: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat media: %w", err)
	}
	if info.IsDir() {
		return ErrNotFound
	}
	size := info.Size()

	h := w.Header()
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Type", ContentType(path))

	br, err := ParseByteRange(r.Header.Get("Range"), size)
	switch {
	case errors.Is(err, ErrUnsatisfiable):
		h.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return nil
	case errors.Is(err, ErrMalformedRange):
		// Clients fall back to the full body for a range they cannot express.
		br = nil
	case err != nil:
		return err
	}

	body := io.Reader(f)
	length := size
	status := http.StatusOK
	if br != nil {
		if _, err := f.Seek(br.First, io.SeekStart); err != nil {
			return fmt.Errorf("seek media: %w", err)
		}
		body = io.LimitReader(f, br.Len())
		length = br.Len()
		status = http.StatusPartialContent
		h.Set("Content-Range", br.ContentRange(size))
	}

	h.Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return nil
	}
	if _, err := io.Copy(w, body); err != nil {
		// The client went away mid-stream; nothing left to report to it.
		s.logger.Debug("media stream interrupted", "file", filepath.Base(path), "error", err)
	}
	return nil
}

// ContentType picks the response type from the file extension.
func ContentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := videoTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
