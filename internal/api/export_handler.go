package api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/autocut/autocut-agent/internal/export"
	"github.com/autocut/autocut-agent/internal/session"
)

func exportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExportRequest
		if err := decodeOptional(r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		outDir := req.OutputDir
		if outDir == "" {
			outDir = cfg.Defaults.ExportDir
		}
		if err := export.CleanOutputDir(outDir); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_OUTPUT_DIR")
			return
		}
		container := req.Container
		if container == "" {
			container = cfg.Defaults.Container
		}

		job, err := cfg.Runner.StartExport(r.Context(), chi.URLParam(r, "id"), session.ExportOptions{
			OutputDir:  outDir,
			NamePrefix: clipPrefix(req.NamePrefix, cfg.Defaults.ClipPrefix),
			Container:  container,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusAccepted, JobAcceptedResponse{JobID: job.ID})
	}
}

func exportEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req EDLRequest
		if err := decodeOptional(r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		sess, ranges, err := cfg.Service.Ranges(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}

		outDir := req.OutputDir
		if outDir == "" {
			outDir = cfg.Defaults.ExportDir
			if err := os.MkdirAll(outDir, 0755); err != nil {
				writeServiceError(w, &export.FilesystemError{Path: outDir, Err: err})
				return
			}
		}
		if err := export.ValidateOutputDir(outDir); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_OUTPUT_DIR")
			return
		}

		title := req.Title
		if title == "" {
			base := filepath.Base(sess.VideoPath)
			title = base[:len(base)-len(filepath.Ext(base))]
		}

		path, err := export.WriteEDL(export.EDLRequest{
			Title:      title,
			MediaPath:  sess.VideoPath,
			Ranges:     ranges,
			NamePrefix: clipPrefix(req.NamePrefix, cfg.Defaults.ClipPrefix),
			FrameRate:  sess.FrameRate,
			OutputDir:  outDir,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		cfg.Logger.Info("edl written", "session_id", sess.ID, "events", len(ranges))
		WriteJSON(w, http.StatusCreated, EDLResponse{Path: path, Events: len(ranges)})
	}
}
