package api

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/autocut/autocut-agent/internal/playback"
	"github.com/autocut/autocut-agent/internal/session"
)

// sessionMediaHandler streams the session's source video for the preview player.
func sessionMediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := cfg.Service.GetSession(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		streamMedia(cfg, w, r, sess.VideoPath)
	}
}

// jobFileHandler streams one file written by an export job.
func jobFileHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := cfg.Repository.GetJob(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to get job", "INTERNAL_ERROR")
			return
		}
		if job == nil || job.Type != session.JobTypeExport || job.OutputDir == "" {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}

		name := chi.URLParam(r, "name")
		if !isPlainFileName(name) {
			WriteError(w, http.StatusBadRequest, "invalid file name", "BAD_REQUEST")
			return
		}
		streamMedia(cfg, w, r, filepath.Join(job.OutputDir, name))
	}
}

func streamMedia(cfg ServerConfig, w http.ResponseWriter, r *http.Request, path string) {
	err := cfg.Media.Stream(w, r, path)
	switch {
	case err == nil:
	case errors.Is(err, playback.ErrNotFound):
		WriteError(w, http.StatusNotFound, "media file not found", "NOT_FOUND")
	default:
		cfg.Logger.Error("failed to stream media", "error", err)
		WriteError(w, http.StatusInternalServerError, "failed to stream media", "INTERNAL_ERROR")
	}
}

func isPlainFileName(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	return filepath.Base(name) == name && !strings.ContainsAny(name, `/\`)
}
