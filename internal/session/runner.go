package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/autocut/autocut-agent/internal/export"
	"github.com/autocut/autocut-agent/internal/logging"
	"github.com/autocut/autocut-agent/internal/progress"
	"github.com/autocut/autocut-agent/internal/scene"
)

var ErrBusy = errors.New("another operation is already running")

type Analyzer interface {
	FindScenes(ctx context.Context, path string, opts scene.Options, onProgress progress.Func) (*scene.Result, error)
}

type Exporter interface {
	Export(ctx context.Context, req export.Request, onProgress progress.Func) (*export.Result, error)
}

// ExportOptions are the caller-chosen parts of an export request; the media
// path and ranges come from the session.
type ExportOptions struct {
	OutputDir  string `json:"output_dir"`
	NamePrefix string `json:"name_prefix"`
	Container  string `json:"container"`
}

// Status is a snapshot of the runner for the API and the tray.
type Status struct {
	Busy      bool    `json:"busy"`
	JobID     string  `json:"job_id,omitempty"`
	JobType   string  `json:"job_type,omitempty"`
	SessionID string  `json:"session_id,omitempty"`
	Progress  float64 `json:"progress"`
}

// Runner executes at most one analysis or export at a time. Each operation
// gets a fresh cancellable context; Cancel stops whichever one is active.
type Runner struct {
	service  *Service
	repo     Repository
	analyzer Analyzer
	exporter Exporter
	logger   *slog.Logger
	mailbox  *progress.Mailbox

	busy    atomic.Bool
	running atomic.Bool

	mu       sync.Mutex
	cancel   context.CancelFunc
	current  Status
	watchers []func(Status)

	wg sync.WaitGroup
}

func NewRunner(service *Service, repo Repository, analyzer Analyzer, exporter Exporter, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		service:  service,
		repo:     repo,
		analyzer: analyzer,
		exporter: exporter,
		logger:   logger,
		mailbox:  progress.NewMailbox(),
	}
}

// Start drains progress posted by the worker until ctx is done, persisting
// it on the active job and notifying subscribers.
func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}
	defer r.running.Store(false)

	r.logger.Info("job runner started")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("job runner stopping")
			return
		case u := <-r.mailbox.C():
			r.applyProgress(ctx, u)
		}
	}
}

// applyProgress drops values posted by an operation that is no longer the
// active one, so a finished job never leaks progress into its successor.
func (r *Runner) applyProgress(ctx context.Context, u progress.Update) {
	r.mu.Lock()
	if !r.current.Busy || u.Tag != r.current.JobID {
		r.mu.Unlock()
		return
	}
	r.current.Progress = u.Fraction
	snap := r.current
	r.mu.Unlock()

	if err := r.repo.UpdateJobProgress(ctx, snap.JobID, progress.Percent(u.Fraction)); err != nil {
		r.logger.Warn("failed to persist progress", "job_id", snap.JobID, "error", err)
	}
	r.notify(snap)
}

func (r *Runner) IsBusy() bool {
	return r.busy.Load()
}

func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Subscribe registers fn to receive every status change. fn runs on the
// runner's goroutines and must not block.
func (r *Runner) Subscribe(fn func(Status)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watchers = append(r.watchers, fn)
}

func (r *Runner) notify(s Status) {
	r.mu.Lock()
	watchers := append([]func(Status){}, r.watchers...)
	r.mu.Unlock()
	for _, fn := range watchers {
		fn(s)
	}
}

// Cancel requests cancellation of the active operation. It reports whether
// there was one.
func (r *Runner) Cancel() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel == nil {
		return false
	}
	r.cancel()
	r.logger.Info("cancellation requested", "job_id", r.current.JobID)
	return true
}

// Wait blocks until the active operation, if any, has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// StartAnalysis runs scene detection over the session's video in the background.
func (r *Runner) StartAnalysis(ctx context.Context, sessionID string, opts scene.Options) (*Job, error) {
	if !r.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}

	sess, err := r.service.GetSession(ctx, sessionID)
	if err != nil {
		r.busy.Store(false)
		return nil, err
	}
	if opts.Threshold <= 0 {
		opts.Threshold = scene.DefaultThreshold
	}
	if opts.MinSceneLen <= 0 {
		opts.MinSceneLen = scene.DefaultMinSceneLen
	}

	job, opCtx, err := r.begin(ctx, JobTypeAnalyze, sess.ID, "")
	if err != nil {
		return nil, err
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.runAnalysis(opCtx, job, sess, opts)
	}()
	return job, nil
}

func (r *Runner) runAnalysis(ctx context.Context, job *Job, sess *Session, opts scene.Options) {
	logger := logging.WithSessionID(logging.WithJobID(r.logger, job.ID), sess.ID)
	logger.Info("analysis started", "path", sess.VideoPath, "threshold", opts.Threshold, "min_scene_len", opts.MinSceneLen)
	start := time.Now()

	res, err := r.analyzer.FindScenes(ctx, sess.VideoPath, opts, r.mailbox.Tagged(job.ID))
	if err != nil {
		logger.Error("analysis failed", "error", err)
		r.finish(job.ID, JobStatusFailed, err.Error(), -1)
		return
	}

	if _, err := r.service.ApplyAnalysis(context.Background(), sess.ID, res, opts); err != nil {
		logger.Error("failed to store analysis", "error", err)
		r.finish(job.ID, JobStatusFailed, fmt.Sprintf("store analysis: %v", err), -1)
		return
	}

	if res.Cancelled {
		logger.Info("analysis cancelled", "cuts", len(res.Cuts), "frames_read", res.FramesRead)
		r.finish(job.ID, JobStatusCancelled, "", -1)
		return
	}

	logger.Info("analysis completed", "cuts", len(res.Cuts), "frames_read", res.FramesRead, "duration", time.Since(start))
	r.finish(job.ID, JobStatusCompleted, "", 100)
}

// StartExport transcodes the session's selected ranges in the background.
func (r *Runner) StartExport(ctx context.Context, sessionID string, opts ExportOptions) (*Job, error) {
	if !r.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}

	sess, ranges, err := r.service.Ranges(ctx, sessionID)
	if err != nil {
		r.busy.Store(false)
		return nil, err
	}

	req := export.Request{
		MediaPath:  sess.VideoPath,
		Ranges:     ranges,
		OutputDir:  opts.OutputDir,
		NamePrefix: opts.NamePrefix,
		Container:  opts.Container,
	}

	job, opCtx, err := r.begin(ctx, JobTypeExport, sess.ID, opts.OutputDir)
	if err != nil {
		return nil, err
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.runExport(opCtx, job, req)
	}()
	return job, nil
}

func (r *Runner) runExport(ctx context.Context, job *Job, req export.Request) {
	logger := logging.WithSessionID(logging.WithJobID(r.logger, job.ID), job.SessionID)
	logger.Info("export started", "clips", len(req.Ranges), "output_dir", req.OutputDir)
	start := time.Now()

	res, err := r.exporter.Export(ctx, req, r.mailbox.Tagged(job.ID))
	if res != nil {
		if uerr := r.repo.UpdateJobResult(context.Background(), job.ID, res.Exported, len(res.Failed), req.OutputDir); uerr != nil {
			logger.Warn("failed to store export result", "error", uerr)
		}
	}
	if err != nil {
		logger.Error("export failed", "error", err)
		r.finish(job.ID, JobStatusFailed, err.Error(), -1)
		return
	}

	if res.Cancelled {
		logger.Info("export cancelled", "exported", res.Exported, "requested", res.Requested)
		r.finish(job.ID, JobStatusCancelled, "", -1)
		return
	}

	msg := ""
	if len(res.Failed) > 0 {
		msg = fmt.Sprintf("%d of %d clips failed", len(res.Failed), res.Attempted)
	}
	logger.Info("export completed",
		"exported", res.Exported,
		"failed", len(res.Failed),
		"duration", time.Since(start),
	)
	r.finish(job.ID, JobStatusCompleted, msg, 100)
}

// begin records a running job and installs a fresh cancellable context for
// it. The caller must hold the busy flag; it is released on error.
func (r *Runner) begin(ctx context.Context, jobType, sessionID, outputDir string) (*Job, context.Context, error) {
	now := time.Now()
	job := &Job{
		ID:        NewID(),
		Type:      jobType,
		Status:    JobStatusRunning,
		SessionID: sessionID,
		OutputDir: outputDir,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.repo.CreateJob(ctx, job); err != nil {
		r.busy.Store(false)
		return nil, nil, fmt.Errorf("create job: %w", err)
	}

	opCtx, cancel := context.WithCancel(context.Background())
	r.mailbox.Reset()

	r.mu.Lock()
	r.cancel = cancel
	r.current = Status{Busy: true, JobID: job.ID, JobType: jobType, SessionID: sessionID}
	snap := r.current
	r.mu.Unlock()

	r.notify(snap)
	return job, opCtx, nil
}

// finish stores the terminal status and releases the runner. A negative
// finalProgress leaves the stored progress as the worker last reported it.
func (r *Runner) finish(jobID, status, errMsg string, finalProgress int) {
	ctx := context.Background()
	if finalProgress >= 0 {
		if err := r.repo.UpdateJobProgress(ctx, jobID, finalProgress); err != nil {
			r.logger.Warn("failed to persist progress", "job_id", jobID, "error", err)
		}
	}
	if err := r.repo.UpdateJobStatus(ctx, jobID, status, errMsg); err != nil {
		r.logger.Error("failed to update job status", "job_id", jobID, "error", err)
	}

	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.current = Status{}
	r.mu.Unlock()

	r.busy.Store(false)
	r.notify(Status{})
}
