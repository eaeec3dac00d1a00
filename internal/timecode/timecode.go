// Package timecode converts frame indices to editor-style HH:MM:SS:FF labels.
package timecode

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FromFrames renders frame as HH:MM:SS:FF at the nearest integer frame rate.
// Hours do not wrap at 24. fps must be positive.
func FromFrames(frame int, fps float64) string {
	fpsInt := nominal(fps)
	ff := frame % fpsInt
	totalSeconds := frame / fpsInt
	ss := totalSeconds % 60
	mm := (totalSeconds / 60) % 60
	hh := totalSeconds / 3600
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hh, mm, ss, ff)
}

// ToFrames parses an HH:MM:SS:FF label back into a frame index.
func ToFrames(tc string, fps float64) (int, error) {
	parts := strings.Split(strings.TrimSpace(tc), ":")
	if len(parts) != 4 {
		return 0, fmt.Errorf("invalid timecode %q: want HH:MM:SS:FF", tc)
	}

	fpsInt := nominal(fps)
	var vals [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid timecode %q: bad field %q", tc, p)
		}
		vals[i] = n
	}

	hh, mm, ss, ff := vals[0], vals[1], vals[2], vals[3]
	if mm > 59 || ss > 59 {
		return 0, fmt.Errorf("invalid timecode %q: minutes and seconds must be below 60", tc)
	}
	if ff >= fpsInt {
		return 0, fmt.Errorf("invalid timecode %q: frame field %d exceeds %d fps", tc, ff, fpsInt)
	}

	return ((hh*60+mm)*60+ss)*fpsInt + ff, nil
}

// Seconds converts a frame index to a position in seconds at the exact rate.
func Seconds(frame int, fps float64) float64 {
	return float64(frame) / fps
}

func nominal(fps float64) int {
	n := int(math.Round(fps))
	if n < 1 {
		// Callers must pass a positive rate; clamp so sub-0.5 rates do not divide by zero.
		n = 1
	}
	return n
}
