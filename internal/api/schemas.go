package api

import (
	"time"

	"github.com/autocut/autocut-agent/internal/clip"
	"github.com/autocut/autocut-agent/internal/export"
	"github.com/autocut/autocut-agent/internal/session"
	"github.com/autocut/autocut-agent/internal/timecode"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	State     string               `json:"state"`
	LastError string               `json:"last_error,omitempty"`
	Progress  int                  `json:"progress"`
	SessionID string               `json:"session_id,omitempty"`
	ActiveJob *JobResponse         `json:"active_job,omitempty"`
	Tools     *ToolsStatusResponse `json:"tools,omitempty"`
}

type ToolsStatusResponse struct {
	FFmpeg      string `json:"ffmpeg,omitempty"`
	FFprobe     string `json:"ffprobe,omitempty"`
	CanAnalyze  bool   `json:"can_analyze"`
	CanExport   bool   `json:"can_export"`
	LastProbeAt string `json:"last_probe_at,omitempty"`
}

type OpenSessionRequest struct {
	Path string `json:"path"`
}

type CutResponse struct {
	Index    int     `json:"index"`
	Frame    int     `json:"frame"`
	EndFrame int     `json:"end_frame,omitempty"`
	Timecode string  `json:"timecode"`
	Seconds  float64 `json:"seconds"`
	Manual   bool    `json:"manual"`
	Selected bool    `json:"selected"`
}

type SessionResponse struct {
	ID            string        `json:"id"`
	VideoPath     string        `json:"video_path"`
	FrameRate     float64       `json:"frame_rate"`
	TotalFrames   int           `json:"total_frames"`
	Duration      string        `json:"duration"`
	Analyzed      bool          `json:"analyzed"`
	Threshold     float64       `json:"threshold,omitempty"`
	MinSceneLen   int           `json:"min_scene_len,omitempty"`
	Cuts          []CutResponse `json:"cuts"`
	SelectedCount int           `json:"selected_count"`
	CreatedAt     string        `json:"created_at"`
	UpdatedAt     string        `json:"updated_at"`
}

type AnalyzeRequest struct {
	Threshold   float64 `json:"threshold,omitempty"`
	MinSceneLen int     `json:"min_scene_len,omitempty"`
}

type JobAcceptedResponse struct {
	JobID string `json:"job_id"`
}

// AddCutRequest names the new cut by frame or by timecode. Frame wins when both are set.
type AddCutRequest struct {
	Frame    *int   `json:"frame,omitempty"`
	Timecode string `json:"timecode,omitempty"`
}

type AddCutResponse struct {
	Index   int             `json:"index"`
	Session SessionResponse `json:"session"`
}

type SelectionRequest struct {
	Selected []int `json:"selected"`
}

// ToggleRequest flips a whole page when Page is set, otherwise the whole list.
type ToggleRequest struct {
	Page    *int `json:"page,omitempty"`
	PerPage int  `json:"per_page,omitempty"`
}

type RangeResponse struct {
	Ordinal       int    `json:"ordinal"`
	Start         int    `json:"start"`
	End           int    `json:"end"`
	Frames        int    `json:"frames"`
	StartTimecode string `json:"start_timecode"`
	EndTimecode   string `json:"end_timecode"`
}

type RangesResponse struct {
	FrameRate float64         `json:"frame_rate"`
	Ranges    []RangeResponse `json:"ranges"`
}

type ExportRequest struct {
	OutputDir  string `json:"output_dir,omitempty"`
	NamePrefix string `json:"name_prefix,omitempty"`
	Container  string `json:"container,omitempty"`
}

type EDLRequest struct {
	OutputDir  string `json:"output_dir,omitempty"`
	Title      string `json:"title,omitempty"`
	NamePrefix string `json:"name_prefix,omitempty"`
}

type EDLResponse struct {
	Path   string `json:"path"`
	Events int    `json:"events"`
}

type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

type JobResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	SessionID string `json:"session_id,omitempty"`
	Progress  int    `json:"progress"`
	Exported  int    `json:"exported"`
	Failed    int    `json:"failed"`
	OutputDir string `json:"output_dir,omitempty"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func SessionToResponse(s *session.Session) SessionResponse {
	points := s.Cuts.Points()
	cuts := make([]CutResponse, len(points))
	for i, p := range points {
		cuts[i] = CutResponse{
			Index:    i,
			Frame:    p.Frame,
			EndFrame: p.EndFrame,
			Timecode: timecode.FromFrames(p.Frame, s.FrameRate),
			Seconds:  timecode.Seconds(p.Frame, s.FrameRate),
			Manual:   p.Manual,
			Selected: s.Cuts.IsSelected(i),
		}
	}
	return SessionResponse{
		ID:            s.ID,
		VideoPath:     s.VideoPath,
		FrameRate:     s.FrameRate,
		TotalFrames:   s.TotalFrames,
		Duration:      timecode.FromFrames(s.TotalFrames, s.FrameRate),
		Analyzed:      s.Analyzed,
		Threshold:     s.Threshold,
		MinSceneLen:   s.MinSceneLen,
		Cuts:          cuts,
		SelectedCount: len(s.Cuts.Selected()),
		CreatedAt:     s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     s.UpdatedAt.Format(time.RFC3339),
	}
}

func RangesToResponse(ranges []clip.Range, fps float64) RangesResponse {
	resp := RangesResponse{FrameRate: fps, Ranges: make([]RangeResponse, len(ranges))}
	for i, r := range ranges {
		resp.Ranges[i] = RangeResponse{
			Ordinal:       i + 1,
			Start:         r.Start,
			End:           r.End,
			Frames:        r.Frames(),
			StartTimecode: timecode.FromFrames(r.Start, fps),
			EndTimecode:   timecode.FromFrames(r.End, fps),
		}
	}
	return resp
}

func JobToResponse(j *session.Job) JobResponse {
	return JobResponse{
		ID:        j.ID,
		Type:      j.Type,
		Status:    j.Status,
		SessionID: j.SessionID,
		Progress:  j.Progress,
		Exported:  j.Exported,
		Failed:    j.Failed,
		OutputDir: j.OutputDir,
		Error:     j.Error,
		CreatedAt: j.CreatedAt.Format(time.RFC3339),
		UpdatedAt: j.UpdatedAt.Format(time.RFC3339),
	}
}

// clipPrefix falls back to def and then to the export package default.
func clipPrefix(requested, def string) string {
	if p := export.SanitizeName(requested, 80); p != "" {
		return p
	}
	if def != "" {
		return def
	}
	return export.DefaultPrefix
}
