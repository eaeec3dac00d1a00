// Package session holds the analysis session for the loaded video, persists
// it, and runs analysis and export jobs one at a time.
package session

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/autocut/autocut-agent/internal/clip"
)

// Session is the working state for one loaded video. Loading another video
// replaces it.
type Session struct {
	ID          string        `json:"id"`
	VideoPath   string        `json:"video_path"`
	FrameRate   float64       `json:"frame_rate"`
	TotalFrames int           `json:"total_frames"`
	Analyzed    bool          `json:"analyzed"`
	Threshold   float64       `json:"threshold,omitempty"`
	MinSceneLen int           `json:"min_scene_len,omitempty"`
	Cuts        *clip.CutList `json:"-"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Ranges resolves the current selection against the session's frame count.
func (s *Session) Ranges() []clip.Range {
	return s.Cuts.Ranges(s.TotalFrames)
}

const (
	JobTypeAnalyze = "analyze"
	JobTypeExport  = "export"

	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusCancelled = "cancelled"
	JobStatusFailed    = "failed"
)

type Job struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	SessionID string    `json:"session_id,omitempty"`
	Progress  int       `json:"progress"`
	Exported  int       `json:"exported"`
	Failed    int       `json:"failed"`
	OutputDir string    `json:"output_dir,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Finished reports whether the job has reached a terminal status.
func (j *Job) Finished() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusCancelled, JobStatusFailed:
		return true
	}
	return false
}

var VideoExtensions = map[string]bool{
	".mp4": true,
	".mov": true,
	".mkv": true,
	".avi": true,
	".m4v": true,
	".mxf": true,
}

func NewID() string {
	return uuid.NewString()
}

func IsVideoFile(filename string) bool {
	return VideoExtensions[strings.ToLower(filepath.Ext(filename))]
}
