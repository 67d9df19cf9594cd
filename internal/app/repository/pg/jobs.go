package pg

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

func (pdb *PostgresDB) InsertJob(ctx context.Context, rec *model.JobRecord) (int64, error) {
	var id int64
	err := pdb.db.QueryRowContext(ctx, `
		INSERT INTO jobs (user_id, duration_seconds, transcription_chars, processing_seconds, status, error_reason, transcription_text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		rec.UserID, rec.DurationSeconds, rec.TranscriptionChars, rec.ProcessingSeconds,
		string(rec.Status), rec.ErrorReason, rec.TranscriptionText, rec.CreatedAt.UTC()).
		Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert job for user %d: %w", rec.UserID, err)
	}
	return id, nil
}

func (pdb *PostgresDB) JobsByUser(ctx context.Context, userID int64) ([]model.JobRecord, error) {
	rows, err := pdb.db.QueryContext(ctx, selectJobSQL+`
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list jobs for user %d: %w", userID, err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

func (pdb *PostgresDB) ListJobsSince(ctx context.Context, since time.Time) ([]model.JobRecord, error) {
	query := selectJobSQL + ` ORDER BY created_at`
	args := []any{}
	if !since.IsZero() {
		query = selectJobSQL + ` WHERE created_at >= $1 ORDER BY created_at`
		args = append(args, since.UTC())
	}
	rows, err := pdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

func (pdb *PostgresDB) UserStats(ctx context.Context, userID int64, now time.Time) (*model.UserStats, error) {
	stats := model.UserStats{UserID: userID}
	err := pdb.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE created_at >= $1),
		       COUNT(*) FILTER (WHERE created_at >= $2),
		       COALESCE(AVG(duration_seconds), 0),
		       COALESCE(AVG(transcription_chars), 0)
		FROM jobs
		WHERE user_id = $3`,
		now.UTC().AddDate(0, 0, -30), now.UTC().AddDate(0, 0, -7), userID).
		Scan(&stats.TotalJobs, &stats.Jobs30d, &stats.Jobs7d, &stats.AvgDurationSeconds, &stats.AvgChars)
	if err != nil {
		return nil, fmt.Errorf("stats for user %d: %w", userID, err)
	}

	// Timestamps stay zero for users that never materialized a row.
	err = pdb.db.QueryRowContext(ctx,
		`SELECT created_at, last_activity_at FROM users WHERE id = $1`, userID).
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
