package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/autocut/autocut-agent/internal/clip"
	"github.com/autocut/autocut-agent/internal/scene"
	"github.com/autocut/autocut-agent/internal/timecode"
)

const previewWidth = 320

func openSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req OpenSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Path == "" {
			WriteError(w, http.StatusBadRequest, "path is required", "BAD_REQUEST")
			return
		}
		// Opening a new video while a job runs on the old one would delete
		// the session out from under it.
		if cfg.Runner != nil && cfg.Runner.IsBusy() {
			WriteError(w, http.StatusConflict, "an operation is running", "BUSY")
			return
		}

		sess, err := cfg.Service.OpenVideo(r.Context(), req.Path)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, SessionToResponse(sess))
	}
}

func currentSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := cfg.Service.CurrentSession(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, SessionToResponse(sess))
	}
}

func getSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := cfg.Service.GetSession(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, SessionToResponse(sess))
	}
}

func analyzeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AnalyzeRequest
		if err := decodeOptional(r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Threshold < 0 || req.MinSceneLen < 0 {
			WriteError(w, http.StatusBadRequest, "threshold and min_scene_len must not be negative", "BAD_REQUEST")
			return
		}

		opts := scene.Options{Threshold: req.Threshold, MinSceneLen: req.MinSceneLen}
		if opts.Threshold == 0 {
			opts.Threshold = cfg.Defaults.Threshold
		}
		if opts.MinSceneLen == 0 {
			opts.MinSceneLen = cfg.Defaults.MinSceneLen
		}

		job, err := cfg.Runner.StartAnalysis(r.Context(), chi.URLParam(r, "id"), opts)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusAccepted, JobAcceptedResponse{JobID: job.ID})
	}
}

func addCutHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddCutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if cfg.Runner != nil && cfg.Runner.IsBusy() {
			WriteError(w, http.StatusConflict, "an operation is running", "BUSY")
			return
		}

		id := chi.URLParam(r, "id")
		var frame int
		switch {
		case req.Frame != nil:
			frame = *req.Frame
		case req.Timecode != "":
			sess, err := cfg.Service.GetSession(r.Context(), id)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			frame, err = timecode.ToFrames(req.Timecode, sess.FrameRate)
			if err != nil {
				WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
				return
			}
		default:
			WriteError(w, http.StatusBadRequest, "frame or timecode is required", "BAD_REQUEST")
			return
		}

		sess, index, err := cfg.Service.AddCut(r.Context(), id, frame)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, AddCutResponse{Index: index, Session: SessionToResponse(sess)})
	}
}

func deleteCutHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			WriteError(w, http.StatusBadRequest, "index must be an integer", "BAD_REQUEST")
			return
		}
		if cfg.Runner != nil && cfg.Runner.IsBusy() {
			WriteError(w, http.StatusConflict, "an operation is running", "BUSY")
			return
		}

		sess, err := cfg.Service.DeleteCut(r.Context(), chi.URLParam(r, "id"), index)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, SessionToResponse(sess))
	}
}

func setSelectionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SelectionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		sess, err := cfg.Service.SetSelection(r.Context(), chi.URLParam(r, "id"), req.Selected)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, SessionToResponse(sess))
	}
}

func toggleSelectionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ToggleRequest
		if err := decodeOptional(r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		id := chi.URLParam(r, "id")
		var err error
		if req.Page != nil {
			_, err = cfg.Service.TogglePage(r.Context(), id, *req.Page, req.PerPage)
		} else {
			_, err = cfg.Service.ToggleAll(r.Context(), id)
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}

		sess, err := cfg.Service.GetSession(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, SessionToResponse(sess))
	}
}

func rangesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := cfg.Service.GetSession(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, RangesToResponse(sess.Ranges(), sess.FrameRate))
	}
}

func frameHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		frame, err := strconv.Atoi(chi.URLParam(r, "frame"))
		if err != nil || frame < 0 {
			WriteError(w, http.StatusBadRequest, "frame must be a non-negative integer", "BAD_REQUEST")
			return
		}
		width := previewWidth
		if ws := r.URL.Query().Get("width"); ws != "" {
			width, err = strconv.Atoi(ws)
			if err != nil || width < 16 || width > 3840 {
				WriteError(w, http.StatusBadRequest, "width must be between 16 and 3840", "BAD_REQUEST")
				return
			}
		}

		sess, err := cfg.Service.GetSession(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if sess.TotalFrames > 0 && frame >= sess.TotalFrames {
			writeServiceError(w, clip.ErrIndexOutOfRange)
			return
		}

		img, err := cfg.Still(r.Context(), sess.VideoPath, frame, sess.FrameRate, width)
		if err != nil {
			cfg.Logger.Error("frame preview failed", "session_id", sess.ID, "frame", frame, "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to render frame", "INTERNAL_ERROR")
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Cache-Control", "private, max-age=300")
		w.WriteHeader(http.StatusOK)
		w.Write(img)
	}
}

// decodeOptional decodes a JSON body, treating an empty body as zero values.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
