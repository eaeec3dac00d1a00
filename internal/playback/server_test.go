package playback

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func writeMedia(t *testing.T, name string, size int) string {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newStreamer() *Streamer {
	return NewStreamer(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestStream_FullBody(t *testing.T) {
	path := writeMedia(t, "clip_001.mp4", 1000)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/media", nil)
	if err := newStreamer().Stream(rr, req, path); err != nil {
		t.Fatal(err)
	}

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if got := rr.Header().Get("Content-Type"); got != "video/mp4" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rr.Header().Get("Content-Length"); got != "1000" {
		t.Errorf("Content-Length = %q", got)
	}
	if rr.Body.Len() != 1000 {
		t.Errorf("body length = %d", rr.Body.Len())
	}
}

func TestStream_Partial(t *testing.T) {
	path := writeMedia(t, "source.mov", 1000)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/media", nil)
	req.Header.Set("Range", "bytes=100-199")
	if err := newStreamer().Stream(rr, req, path); err != nil {
		t.Fatal(err)
	}

	if rr.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rr.Code)
	}
	if got := rr.Header().Get("Content-Range"); got != "bytes 100-199/1000" {
		t.Errorf("Content-Range = %q", got)
	}
	body := rr.Body.Bytes()
	if len(body) != 100 || body[0] != byte(100%251) {
		t.Errorf("unexpected body: len %d first %d", len(body), body[0])
	}
	if got := rr.Header().Get("Content-Type"); got != "video/quicktime" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestStream_Unsatisfiable(t *testing.T) {
	path := writeMedia(t, "clip.mp4", 10)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/media", nil)
	req.Header.Set("Range", "bytes=50-")
	if err := newStreamer().Stream(rr, req, path); err != nil {
		t.Fatal(err)
	}
	if rr.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Fatalf("status = %d, want 416", rr.Code)
	}
	if got := rr.Header().Get("Content-Range"); got != "bytes */10" {
		t.Errorf("Content-Range = %q", got)
	}
}

func TestStream_MalformedRangeServesWholeFile(t *testing.T) {
	path := writeMedia(t, "clip.mp4", 10)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/media", nil)
	req.Header.Set("Range", "frames=0-3")
	if err := newStreamer().Stream(rr, req, path); err != nil {
		t.Fatal(err)
	}
	if rr.Code != http.StatusOK || rr.Body.Len() != 10 {
		t.Errorf("status = %d, body = %d bytes", rr.Code, rr.Body.Len())
	}
}

func TestStream_Head(t *testing.T) {
	path := writeMedia(t, "clip.mkv", 64)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodHead, "/media", nil)
	if err := newStreamer().Stream(rr, req, path); err != nil {
		t.Fatal(err)
	}
	if rr.Code != http.StatusOK || rr.Body.Len() != 0 {
		t.Errorf("status = %d, body = %d bytes", rr.Code, rr.Body.Len())
	}
	if got := rr.Header().Get("Content-Length"); got != "64" {
		t.Errorf("Content-Length = %q", got)
	}
}

func TestStream_Missing(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/media", nil)

	err := newStreamer().Stream(rr, req, filepath.Join(t.TempDir(), "gone.mp4"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}

	err = newStreamer().Stream(rr, req, t.TempDir())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("directory error = %v, want ErrNotFound", err)
	}
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"a.mp4":  "video/mp4",
		"a.MKV":  "video/x-matroska",
		"a.Mov":  "video/quicktime",
		"noext":  "application/octet-stream",
		"a.json": "application/json",
	}
	for path, want := range tests {
		if got := ContentType(path); got != want {
			t.Errorf("ContentType(%q) = %q, want %q", path, got, want)
		}
	}
}
