package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/autocut/autocut-agent/internal/clip"
	"github.com/autocut/autocut-agent/internal/timecode"
)

// GenerateEDL renders ranges as a CMX3600 edit decision list. Events are laid
// end to end on the record side; source timecodes are non-drop at the
// nominal frame rate.
func GenerateEDL(ranges []clip.Range, title, mediaPath, prefix string, frameRate float64) string {
	if frameRate <= 0 {
		frameRate = 30
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}

	lines := []string{
		fmt.Sprintf("TITLE: %s", title),
		"FCM: NON-DROP FRAME",
		"",
	}

	record := 0
	for i, r := range ranges {
		length := r.Frames()
		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s",
				i+1, "AX", "V",
				timecode.FromFrames(r.Start, frameRate),
				timecode.FromFrames(r.End, frameRate),
				timecode.FromFrames(record, frameRate),
				timecode.FromFrames(record+length, frameRate),
			),
			fmt.Sprintf("* FROM CLIP NAME:  %s", fmt.Sprintf("%s_%03d", prefix, i+1)),
			fmt.Sprintf("* MEDIA PATH:  %s", mediaPath),
		)
		record += length
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

// WriteEDL generates the list for req and writes it to {OutputDir}/{Title}.edl.
func WriteEDL(req EDLRequest) (string, error) {
	if err := ValidateOutputDir(req.OutputDir); err != nil {
		return "", err
	}
	if len(req.Ranges) == 0 {
		return "", clip.ErrNothingSelected
	}

	title := SanitizeName(req.Title, 120)
	if title == "" {
		title = "autocut_export"
	}
	prefix := SanitizeName(req.NamePrefix, 80)

	edl := GenerateEDL(req.Ranges, title, req.MediaPath, prefix, req.FrameRate)
	outputPath := filepath.Join(req.OutputDir, title+".edl")
	if err := os.WriteFile(outputPath, []byte(edl), 0o644); err != nil {
		return "", &FilesystemError{Path: outputPath, Err: err}
	}
	return outputPath, nil
}
