package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmlat/STT-Telegram/internal/app/model"
)

const selectJobSQL = `
	SELECT id, user_id, duration_seconds, transcription_chars, processing_seconds, status, error_reason, transcription_text, created_at
	FROM jobs`

func (sdb *SQLiteDB) InsertJob(ctx context.Context, rec *model.JobRecord) (int64, error) {
	res, err := sdb.db.ExecContext(ctx, `
		INSERT INTO jobs (user_id, duration_seconds, transcription_chars, processing_seconds, status, error_reason, transcription_text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.UserID, rec.DurationSeconds, rec.TranscriptionChars, rec.ProcessingSeconds,
		string(rec.Status), rec.ErrorReason, rec.TranscriptionText, rec.CreatedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("insert job for user %d: %w", rec.UserID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert job for user %d: %w", rec.UserID, err)
	}
	return id, nil
}

func (sdb *SQLiteDB) JobsByUser(ctx context.Context, userID int64) ([]model.JobRecord, error) {
	rows, err := sdb.db.QueryContext(ctx, selectJobSQL+`
		WHERE user_id = ?
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list jobs for user %d: %w", userID, err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

func (sdb *SQLiteDB) ListJobsSince(ctx context.Context, since time.Time) ([]model.JobRecord, error) {
	query := selectJobSQL + ` ORDER BY created_at`
	args := []any{}
	if !since.IsZero() {
		query = selectJobSQL + ` WHERE created_at >= ? ORDER BY created_at`
		args = append(args, since.UTC())
	}
	rows, err := sdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

func (sdb *SQLiteDB) UserStats(ctx context.Context, userID int64, now time.Time) (*model.UserStats, error) {
	stats := model.UserStats{UserID: userID}
	err := sdb.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0),
		       COALESCE(AVG(duration_seconds), 0),
		       COALESCE(AVG(transcription_chars), 0)
		FROM jobs
		WHERE user_id = ?`,
		now.UTC().AddDate(0, 0, -30), now.UTC().AddDate(0, 0, -7), userID).
		Scan(&stats.TotalJobs, &stats.Jobs30d, &stats.Jobs7d, &stats.AvgDurationSeconds, &stats.AvgChars)
	if err != nil {
		return nil, fmt.Errorf("stats for user %d: %w", userID, err)
	}

	// Timestamps stay zero for users that never materialized a row.
	err = sdb.db.QueryRowContext(ctx,
		`SELECT created_at, last_activity_at FROM users WHERE id = ?`, userID).
		Scan(&stats.RegisteredAt, &stats.LastActivityAt)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("stats for user %d: %w", userID, err)
	}
	return &stats, nil
}

func collectJobs(rows *sql.Rows) ([]model.JobRecord, error) {
	jobs := make([]model.JobRecord, 0)
	for rows.Next() {
		var j model.JobRecord
		var status string
		if err := rows.Scan(&j.ID, &j.UserID, &j.DurationSeconds, &j.TranscriptionChars, &j.ProcessingSeconds,
			&status, &j.ErrorReason, &j.TranscriptionText, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		j.Status = model.JobStatus(status)
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
