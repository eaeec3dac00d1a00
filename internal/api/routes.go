package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/autocut/autocut-agent/internal/clip"
	"github.com/autocut/autocut-agent/internal/export"
	"github.com/autocut/autocut-agent/internal/playback"
	"github.com/autocut/autocut-agent/internal/progress"
	"github.com/autocut/autocut-agent/internal/scene"
	"github.com/autocut/autocut-agent/internal/session"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	if cfg.Media == nil {
		cfg.Media = playback.NewStreamer(cfg.Logger)
	}
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Post("/sessions", openSessionHandler(cfg))
		r.Get("/sessions/current", currentSessionHandler(cfg))
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", getSessionHandler(cfg))
			r.Post("/analyze", analyzeHandler(cfg))
			r.Post("/cuts", addCutHandler(cfg))
			r.Delete("/cuts/{index}", deleteCutHandler(cfg))
			r.Put("/selection", setSelectionHandler(cfg))
			r.Post("/selection/toggle", toggleSelectionHandler(cfg))
			r.Get("/ranges", rangesHandler(cfg))
			r.Get("/frames/{frame}", frameHandler(cfg))
			r.Get("/media", sessionMediaHandler(cfg))
			r.Head("/media", sessionMediaHandler(cfg))
			r.Post("/export", exportHandler(cfg))
			r.Post("/export/edl", exportEDLHandler(cfg))
		})

		r.Post("/cancel", cancelHandler(cfg))
		r.Get("/jobs", listJobsHandler(cfg))
		r.Get("/jobs/{id}", getJobHandler(cfg))
		r.Get("/jobs/{id}/files/{name}", jobFileHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		version := cfg.Version
		if version == "" {
			version = "dev"
		}
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  version,
			UptimeS:  int64(time.Since(cfg.StartTime).Seconds()),
			DeviceID: cfg.DeviceID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		resp := StatusResponse{State: "idle"}

		if cfg.Runner != nil {
			st := cfg.Runner.Status()
			if st.Busy {
				switch st.JobType {
				case session.JobTypeAnalyze:
					resp.State = "analyzing"
				case session.JobTypeExport:
					resp.State = "exporting"
				}
				resp.Progress = progress.Percent(st.Progress)
				resp.SessionID = st.SessionID
			}
		}

		jobs, _ := cfg.Repository.ListJobs(ctx, 10)
		for _, j := range jobs {
			if j.Status == session.JobStatusRunning && resp.ActiveJob == nil {
				jr := JobToResponse(j)
				resp.ActiveJob = &jr
			}
			if j.Status == session.JobStatusFailed && resp.LastError == "" {
				resp.LastError = j.Error
			}
		}
		if resp.LastError != "" && resp.State == "idle" {
			resp.State = "error"
		}

		// Peek so a status poll never spawns processes.
		if cfg.Doctor != nil {
			if caps := cfg.Doctor.Peek(); caps != nil {
				ts := &ToolsStatusResponse{
					FFmpeg:     caps.FFmpeg.Version,
					FFprobe:    caps.FFprobe.Version,
					CanAnalyze: caps.CanAnalyze,
					CanExport:  caps.CanExport,
				}
				if !caps.ProbedAt.IsZero() {
					ts.LastProbeAt = caps.ProbedAt.Format(time.RFC3339)
				}
				resp.Tools = ts
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func cancelHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, CancelResponse{Cancelled: cfg.Runner.Cancel()})
	}
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := cfg.Repository.ListJobs(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}

		resp := JobsResponse{Jobs: make([]JobResponse, len(jobs))}
		for i, j := range jobs {
			resp.Jobs[i] = JobToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "job id required", "BAD_REQUEST")
			return
		}

		job, err := cfg.Repository.GetJob(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to get job", "INTERNAL_ERROR")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}

		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}

// writeServiceError maps domain errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var openErr *scene.MediaOpenError
	var fsErr *export.FilesystemError

	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrNoSession):
		WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.Is(err, session.ErrBusy):
		WriteError(w, http.StatusConflict, err.Error(), "BUSY")
	case errors.Is(err, clip.ErrCutExists):
		WriteError(w, http.StatusConflict, err.Error(), "CUT_EXISTS")
	case errors.Is(err, clip.ErrNothingSelected):
		WriteError(w, http.StatusBadRequest, err.Error(), "NOTHING_SELECTED")
	case errors.Is(err, clip.ErrIndexOutOfRange), errors.Is(err, clip.ErrNegativeFrame):
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	case errors.As(err, &openErr):
		WriteError(w, http.StatusUnprocessableEntity, err.Error(), "MEDIA_OPEN_FAILED")
	case errors.As(err, &fsErr):
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_OUTPUT_DIR")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}
