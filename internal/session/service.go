package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/autocut/autocut-agent/internal/clip"
	"github.com/autocut/autocut-agent/internal/scene"
	"github.com/autocut/autocut-agent/internal/video"
)

var (
	ErrNotFound  = errors.New("session not found")
	ErrNoSession = errors.New("no video loaded")
)

// Service owns session edits. All mutations are serialised so the analysis
// worker and API callers never interleave a read-modify-write.
type Service struct {
	repo   Repository
	prober video.Prober
	logger *slog.Logger

	mu sync.Mutex
}

func NewService(repo Repository, prober video.Prober, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, prober: prober, logger: logger}
}

// OpenVideo probes path and makes it the current session, discarding every
// earlier session and its cut points.
func (s *Service) OpenVideo(ctx context.Context, path string) (*Session, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, &scene.MediaOpenError{Path: absPath, Err: err}
	}
	if info.IsDir() {
		return nil, &scene.MediaOpenError{Path: absPath, Err: errors.New("path is a directory")}
	}
	if !IsVideoFile(absPath) {
		s.logger.Warn("opening file with unrecognised extension", "ext", filepath.Ext(absPath))
	}

	probe, err := s.prober.Probe(ctx, absPath)
	if err != nil {
		return nil, &scene.MediaOpenError{Path: absPath, Err: err}
	}

	now := time.Now()
	sess := &Session{
		ID:          NewID(),
		VideoPath:   absPath,
		FrameRate:   probe.FrameRate,
		TotalFrames: probe.EstimatedFrames(),
		Cuts:        clip.NewCutList(nil),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	if err := s.repo.DeleteSessionsExcept(ctx, sess.ID); err != nil {
		return nil, fmt.Errorf("discard previous sessions: %w", err)
	}

	s.logger.Info("video opened",
		"session_id", sess.ID,
		"fps", sess.FrameRate,
		"total_frames", sess.TotalFrames,
	)
	return sess, nil
}

func (s *Service) GetSession(ctx context.Context, id string) (*Session, error) {
	sess, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNotFound
	}
	return sess, nil
}

// CurrentSession returns the session for the most recently opened video.
func (s *Service) CurrentSession(ctx context.Context) (*Session, error) {
	sess, err := s.repo.GetLatestSession(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNoSession
	}
	return sess, nil
}

// ApplyAnalysis replaces the session's cut points with the detector output
// and selects all of them.
func (s *Service) ApplyAnalysis(ctx context.Context, id string, res *scene.Result, opts scene.Options) (*Session, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		sess.Cuts = clip.NewCutList(res.Cuts)
		sess.Cuts.SelectAll()
		sess.Analyzed = true
		sess.Threshold = opts.Threshold
		sess.MinSceneLen = opts.MinSceneLen
		if res.FrameRate > 0 {
			sess.FrameRate = res.FrameRate
		}
		// A full pass counts frames exactly; container metadata can be wrong.
		// A partial pass only proves the video is at least that long.
		switch {
		case !res.Cancelled && res.FramesRead > 0:
			sess.TotalFrames = res.FramesRead
		case res.FramesRead > sess.TotalFrames:
			sess.TotalFrames = res.FramesRead
		}
		return nil
	})
}

// AddCut inserts a manual cut point and returns its position.
func (s *Service) AddCut(ctx context.Context, id string, frame int) (*Session, int, error) {
	pos := -1
	sess, err := s.mutate(ctx, id, func(sess *Session) error {
		if sess.TotalFrames > 0 && frame >= sess.TotalFrames {
			return fmt.Errorf("%w: frame %d beyond end (%d frames)", clip.ErrIndexOutOfRange, frame, sess.TotalFrames)
		}
		p, err := sess.Cuts.Add(frame)
		pos = p
		return err
	})
	return sess, pos, err
}

func (s *Service) DeleteCut(ctx context.Context, id string, position int) (*Session, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		_, err := sess.Cuts.Delete(position)
		return err
	})
}

// SetSelection replaces the selection with positions.
func (s *Service) SetSelection(ctx context.Context, id string, positions []int) (*Session, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		return sess.Cuts.Replace(positions)
	})
}

func (s *Service) ToggleAll(ctx context.Context, id string) (*Session, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		sess.Cuts.ToggleAll()
		return nil
	})
}

func (s *Service) TogglePage(ctx context.Context, id string, page, perPage int) (*Session, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		return sess.Cuts.TogglePage(page, perPage)
	})
}

// Ranges resolves the session's selection. An empty selection is an error.
func (s *Service) Ranges(ctx context.Context, id string) (*Session, []clip.Range, error) {
	sess, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	ranges := sess.Ranges()
	if len(ranges) == 0 {
		return sess, nil, clip.ErrNothingSelected
	}
	return sess, ranges, nil
}

func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.GetJob(ctx, id)
}

func (s *Service) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	return s.repo.ListJobs(ctx, limit)
}

func (s *Service) mutate(ctx context.Context, id string, fn func(*Session) error) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return sess, err
	}
	sess.UpdatedAt = time.Now()
	if err := s.repo.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}
