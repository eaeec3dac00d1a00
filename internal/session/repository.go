package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/autocut/autocut-agent/internal/clip"
)

type Repository interface {
	SaveSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	GetLatestSession(ctx context.Context) (*Session, error)
	DeleteSessionsExcept(ctx context.Context, keepID string) error

	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
	UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateJobProgress(ctx context.Context, id string, progress int) error
	UpdateJobResult(ctx context.Context, id string, exported, failed int, outputDir string) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

// timeLayout is fixed width so created_at sorts correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// SaveSession upserts the session row and rewrites its cut points in one transaction.
func (r *SQLiteRepository) SaveSession(ctx context.Context, s *Session) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, video_path, frame_rate, total_frames, analyzed, threshold, min_scene_len, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			video_path = excluded.video_path,
			frame_rate = excluded.frame_rate,
			total_frames = excluded.total_frames,
			analyzed = excluded.analyzed,
			threshold = excluded.threshold,
			min_scene_len = excluded.min_scene_len,
			updated_at = excluded.updated_at
	`, s.ID, s.VideoPath, s.FrameRate, s.TotalFrames, boolToInt(s.Analyzed), s.Threshold, s.MinSceneLen,
		s.CreatedAt.UTC().Format(timeLayout), s.UpdatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM cut_points WHERE session_id = ?", s.ID); err != nil {
		return fmt.Errorf("clear cut points: %w", err)
	}

	if s.Cuts != nil && s.Cuts.Len() > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO cut_points (session_id, position, frame, end_frame, manual, selected)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, p := range s.Cuts.Points() {
			if _, err := stmt.ExecContext(ctx, s.ID, i, p.Frame, p.EndFrame, boolToInt(p.Manual), boolToInt(s.Cuts.IsSelected(i))); err != nil {
				return fmt.Errorf("insert cut point %d: %w", i, err)
			}
		}
	}

	return tx.Commit()
}

func (r *SQLiteRepository) GetSession(ctx context.Context, id string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, video_path, frame_rate, total_frames, analyzed, threshold, min_scene_len, created_at, updated_at
		FROM sessions WHERE id = ?
	`, id)
	return r.scanSession(ctx, row)
}

func (r *SQLiteRepository) GetLatestSession(ctx context.Context) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, video_path, frame_rate, total_frames, analyzed, threshold, min_scene_len, created_at, updated_at
		FROM sessions ORDER BY created_at DESC LIMIT 1
	`)
	return r.scanSession(ctx, row)
}

func (r *SQLiteRepository) scanSession(ctx context.Context, row *sql.Row) (*Session, error) {
	var s Session
	var analyzed int
	var createdAt, updatedAt string

	err := row.Scan(&s.ID, &s.VideoPath, &s.FrameRate, &s.TotalFrames, &analyzed, &s.Threshold, &s.MinSceneLen, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Analyzed = analyzed == 1
	s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	s.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	cuts, err := r.loadCuts(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	s.Cuts = cuts
	return &s, nil
}

func (r *SQLiteRepository) loadCuts(ctx context.Context, sessionID string) (*clip.CutList, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT frame, end_frame, manual, selected
		FROM cut_points WHERE session_id = ? ORDER BY position
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []clip.CutPoint
	var selected []int
	for rows.Next() {
		var p clip.CutPoint
		var manual, sel int
		if err := rows.Scan(&p.Frame, &p.EndFrame, &manual, &sel); err != nil {
			return nil, err
		}
		p.Manual = manual == 1
		if sel == 1 {
			selected = append(selected, len(points))
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	cuts := clip.NewCutList(points)
	if err := cuts.Replace(selected); err != nil {
		return nil, fmt.Errorf("restore selection: %w", err)
	}
	return cuts, nil
}

func (r *SQLiteRepository) DeleteSessionsExcept(ctx context.Context, keepID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE id != ?", keepID)
	return err
}

func (r *SQLiteRepository) CreateJob(ctx context.Context, j *Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, type, status, session_id, progress, exported, failed, output_dir, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.Type, j.Status, nullString(j.SessionID), j.Progress, j.Exported, j.Failed,
		nullString(j.OutputDir), nullString(j.Error),
		j.CreatedAt.UTC().Format(timeLayout), j.UpdatedAt.UTC().Format(timeLayout))
	return err
}

const jobColumns = `id, type, status, session_id, progress, exported, failed, output_dir, error, created_at, updated_at`

func (r *SQLiteRepository) GetJob(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return j, err
}

func (r *SQLiteRepository) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, "SELECT "+jobColumns+" FROM jobs ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	var sessionID, outputDir, errMsg sql.NullString
	var createdAt, updatedAt string

	if err := row.Scan(&j.ID, &j.Type, &j.Status, &sessionID, &j.Progress, &j.Exported, &j.Failed,
		&outputDir, &errMsg, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	j.SessionID = sessionID.String
	j.OutputDir = outputDir.String
	j.Error = errMsg.String
	j.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	j.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &j, nil
}

func (r *SQLiteRepository) UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?
	`, status, nullString(errorMsg), now(), id)
	return err
}

func (r *SQLiteRepository) UpdateJobProgress(ctx context.Context, id string, progress int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET progress = MAX(progress, ?), updated_at = ? WHERE id = ?
	`, progress, now(), id)
	return err
}

func (r *SQLiteRepository) UpdateJobResult(ctx context.Context, id string, exported, failed int, outputDir string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET exported = ?, failed = ?, output_dir = ?, updated_at = ? WHERE id = ?
	`, exported, failed, nullString(outputDir), now(), id)
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func now() string {
	return time.Now().UTC().Format(timeLayout)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
