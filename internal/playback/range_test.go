package playback

import (
	"errors"
	"testing"
)

func TestParseByteRange(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		size      int64
		wantFirst int64
		wantLast  int64
		wantNil   bool
		wantErr   error
	}{
		{"empty header", "", 1000, 0, 0, true, nil},
		{"whole file", "bytes=0-999", 1000, 0, 999, false, nil},
		{"open end", "bytes=500-", 1000, 500, 999, false, nil},
		{"suffix", "bytes=-500", 1000, 500, 999, false, nil},
		{"single byte", "bytes=0-0", 1000, 0, 0, false, nil},
		{"last clamped", "bytes=0-2000", 1000, 0, 999, false, nil},
		{"suffix longer than file", "bytes=-2000", 500, 0, 499, false, nil},
		{"first of many", "bytes=0-99, 200-299", 1000, 0, 99, false, nil},

		{"start at size", "bytes=1000-", 1000, 0, 0, false, ErrUnsatisfiable},
		{"start past size", "bytes=1500-2000", 1000, 0, 0, false, ErrUnsatisfiable},
		{"reversed", "bytes=200-100", 1000, 0, 0, false, ErrUnsatisfiable},
		{"suffix of empty file", "bytes=-10", 0, 0, 0, false, ErrUnsatisfiable},
		{"no unit", "0-100", 1000, 0, 0, false, ErrMalformedRange},
		{"wrong unit", "frames=0-100", 1000, 0, 0, false, ErrMalformedRange},
		{"no dash", "bytes=100", 1000, 0, 0, false, ErrMalformedRange},
		{"bad first", "bytes=abc-100", 1000, 0, 0, false, ErrMalformedRange},
		{"bad last", "bytes=0-abc", 1000, 0, 0, false, ErrMalformedRange},
		{"zero suffix", "bytes=-0", 1000, 0, 0, false, ErrMalformedRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseByteRange(tt.header, tt.size)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ParseByteRange() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseByteRange() unexpected error: %v", err)
			}
			if tt.wantNil {
				if got != nil {
					t.Errorf("ParseByteRange() = %+v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("ParseByteRange() = nil, want range")
			}
			if got.First != tt.wantFirst || got.Last != tt.wantLast {
				t.Errorf("ParseByteRange() = {%d, %d}, want {%d, %d}", got.First, got.Last, tt.wantFirst, tt.wantLast)
			}
		})
	}
}

func TestByteRangeHeaders(t *testing.T) {
	br := ByteRange{First: 500, Last: 999}
	if got := br.Len(); got != 500 {
		t.Errorf("Len() = %d, want 500", got)
	}
	if got := br.ContentRange(1000); got != "bytes 500-999/1000" {
		t.Errorf("ContentRange() = %q", got)
	}
}
