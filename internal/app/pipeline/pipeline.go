package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/dmlat/STT-Telegram/internal/app/analytics"
	"github.com/dmlat/STT-Telegram/internal/app/api"
	"github.com/dmlat/STT-Telegram/internal/app/archive"
	"github.com/dmlat/STT-Telegram/internal/app/audio"
	"github.com/dmlat/STT-Telegram/internal/app/filestore"
	"github.com/dmlat/STT-Telegram/internal/app/ledger"
	"github.com/dmlat/STT-Telegram/internal/app/model"
	"github.com/dmlat/STT-Telegram/internal/app/repository"
	"github.com/dmlat/STT-Telegram/internal/metrics"
)

// Compressor shrinks an audio file and returns the output path.
// audio.Compressor is the production implementation.
type Compressor interface {
	Compress(ctx context.Context, inputPath string) (string, error)
}

// ProbeFunc measures the duration of a local audio file in seconds.
type ProbeFunc func(ctx context.Context, filePath string) (float64, error)

// Config carries the pipeline knobs that come from the environment.
type Config struct {
	// MaxRawSizeBytes is the transcription backend's upload ceiling.
	// Files above it are compressed once; if still above, the job fails.
	MaxRawSizeBytes int64

	// TempDir is where per-job working directories are created. Empty
	// means the system default.
	TempDir string

	// TranscribeTimeout bounds the backend call. Zero disables the bound.
	TranscribeTimeout time.Duration
}

// Deps bundles the pipeline's collaborators.
type Deps struct {
	Ledger      *ledger.Ledger
	Users       repository.UserDAO
	Jobs        repository.JobDAO
	Files       filestore.FileStore
	Transcriber api.Transcriber
	Compressor  Compressor
	Probe       ProbeFunc
	Analytics   analytics.Sink
	Archive     archive.Archiver
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
}

// Pipeline drives one audio reference from intake to a terminal state:
// quota check, fetch, optional compression, transcription, settlement.
// Every run leaves no temp files behind regardless of how it exits.
type Pipeline struct {
	cfg  Config
	deps Deps
}

func New(cfg Config, deps Deps) *Pipeline {
	if deps.Probe == nil {
		deps.Probe = audio.ProbeDuration
	}
	if deps.Analytics == nil {
		deps.Analytics = analytics.Nop{}
	}
	if deps.Archive == nil {
		deps.Archive = archive.Nop{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New(prometheus.NewRegistry())
	}
	return &Pipeline{cfg: cfg, deps: deps}
}

// Run processes one job to a terminal Result. It never returns an
// error: failures are classified into Result.Reason so callers can map
// them to user-facing responses without string matching.
func (p *Pipeline) Run(ctx context.Context, req Request) Result {
	logger := p.deps.Logger.With(
		zap.Int64("user_id", req.UserID),
		zap.String("audio_ref", req.AudioRef))
	logger.Info("job received",
		zap.Float64("reported_duration_seconds", req.DurationSeconds),
		zap.Int64("reported_size_bytes", req.SizeBytes))

	if _, err := p.deps.Users.UpsertUser(ctx, req.UserID, req.Username, req.FirstName); err != nil {
		return p.fail(ctx, req, req.DurationSeconds, &JobError{Reason: ReasonInternalError, Err: fmt.Errorf("upsert user: %w", err)}, logger)
	}

	duration := req.DurationSeconds

	// When the source already knows the duration, reject before paying
	// for the download.
	if duration > 0 {
		if res, done := p.checkQuota(ctx, req, duration, logger); done {
			return res
		}
	}

	workDir, err := os.MkdirTemp(p.cfg.TempDir, "sttd-job-*")
	if err != nil {
		return p.fail(ctx, req, duration, &JobError{Reason: ReasonInternalError, Err: fmt.Errorf("create work dir: %w", err)}, logger)
	}
	defer func() {
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			logger.Warn("remove work dir", zap.String("dir", workDir), zap.Error(rmErr))
		}
	}()

	localPath, stagedSize, err := p.deps.Files.Fetch(ctx, req.AudioRef, workDir)
	if err != nil {
		return p.fail(ctx, req, duration, &JobError{Reason: ReasonInternalError, Err: fmt.Errorf("fetch audio: %w", err)}, logger)
	}

	if duration <= 0 {
		duration, err = p.deps.Probe(ctx, localPath)
		if err != nil {
			return p.fail(ctx, req, duration, &JobError{Reason: ReasonInternalError, Err: fmt.Errorf("probe duration: %w", err)}, logger)
		}
		if res, done := p.checkQuota(ctx, req, duration, logger); done {
			return res
		}
	}

	inputPath := localPath
	sizeDetail := SizeOriginal
	if stagedSize > p.cfg.MaxRawSizeBytes {
		logger.Info("audio above size ceiling, compressing",
			zap.Int64("size_bytes", stagedSize),
			zap.Int64("ceiling_bytes", p.cfg.MaxRawSizeBytes))

		compressedPath, cErr := p.deps.Compressor.Compress(ctx, inputPath)
		if cErr != nil {
			p.deps.Metrics.RecordCompression("error")
			return p.fail(ctx, req, duration, &JobError{Reason: ReasonCompressionFailed, Err: cErr}, logger)
		}
		info, sErr := os.Stat(compressedPath)
		if sErr != nil {
			p.deps.Metrics.RecordCompression("error")
			return p.fail(ctx, req, duration, &JobError{Reason: ReasonInternalError, Err: fmt.Errorf("stat compressed file: %w", sErr)}, logger)
		}
		if info.Size() > p.cfg.MaxRawSizeBytes {
			// The intermediate goes right away, not just with the work
			// dir at exit.
			if rmErr := os.Remove(compressedPath); rmErr != nil {
				logger.Warn("remove oversized compressed file", zap.Error(rmErr))
			}
			p.deps.Metrics.RecordCompression("still_too_large")
			return p.fail(ctx, req, duration, &JobError{
				Reason: ReasonFileTooLarge,
				Err:    fmt.Errorf("compressed size %d still exceeds ceiling %d", info.Size(), p.cfg.MaxRawSizeBytes),
			}, logger)
		}
		p.deps.Metrics.RecordCompression("ok")
		inputPath = compressedPath
		sizeDetail = SizeCompressed
	}

	text, processing, err := p.transcribe(ctx, inputPath)
	if err != nil {
		return p.fail(ctx, req, duration, classifyTranscription(err), logger)
	}

	// Settlement happens only now. A failure anywhere above leaves the
	// counters untouched.
	if err := p.deps.Ledger.Debit(ctx, req.UserID, duration); err != nil {
		return p.fail(ctx, req, duration, &JobError{Reason: ReasonInternalError, Err: err}, logger)
	}
	p.deps.Metrics.RecordDebit(duration)

	chars := int64(utf8.RuneCountInString(text))
	rec := &model.JobRecord{
		UserID:             req.UserID,
		DurationSeconds:    duration,
		TranscriptionChars: &chars,
		ProcessingSeconds:  &processing,
		Status:             model.JobSuccess,
		TranscriptionText:  &text,
		CreatedAt:          time.Now().UTC(),
	}
	jobID, err := p.deps.Jobs.InsertJob(ctx, rec)
	if err != nil {
		// The debit is committed and the transcript exists, so the job
		// still completes. Only the history row is lost.
		logger.Error("insert job record", zap.Error(err))
	}

	p.deps.Metrics.RecordJob(string(OutcomeCompleted))
	p.deps.Metrics.RecordTranscription(processing, duration)
	logger.Info("job completed",
		zap.Int64("job_id", jobID),
		zap.String("size_detail", string(sizeDetail)),
		zap.Float64("duration_seconds", duration),
		zap.Float64("processing_seconds", processing),
		zap.Int64("transcription_chars", chars))

	now := time.Now().UTC()
	p.deps.Analytics.Emit(analytics.Event{
		Kind: analytics.EventJobCompleted,
		At:   now,
		Job: &analytics.JobEvent{
			UserID:             req.UserID,
			DurationSeconds:    duration,
			ProcessingSeconds:  processing,
			TranscriptionChars: chars,
		},
	})
	p.emitUserStats(ctx, req.UserID, now, logger)

	if jobID > 0 {
		if aErr := p.deps.Archive.Store(ctx, req.UserID, jobID, text); aErr != nil {
			logger.Warn("archive transcript", zap.Int64("job_id", jobID), zap.Error(aErr))
		}
	}

	return Result{
		Outcome:           OutcomeCompleted,
		Text:              text,
		SizeDetail:        sizeDetail,
		DurationSeconds:   duration,
		ProcessingSeconds: processing,
		JobID:             jobID,
	}
}

// checkQuota returns (result, true) when the run is over: either the
// user cannot afford the job or the availability lookup itself broke.
func (p *Pipeline) checkQuota(ctx context.Context, req Request, duration float64, logger *zap.Logger) (Result, bool) {
	avail, err := p.deps.Ledger.Availability(ctx, req.UserID, duration)
	if err != nil {
		return p.fail(ctx, req, duration, &JobError{Reason: ReasonInternalError, Err: err}, logger), true
	}
	if avail.Allowed {
		return Result{}, false
	}

	// Rejections leave no trace in the job history.
	logger.Info("job rejected",
		zap.Float64("duration_seconds", duration),
		zap.Float64("missing_seconds", avail.MissingSeconds))
	p.deps.Metrics.RecordJob(string(OutcomeRejected))
	return Result{
		Outcome:         OutcomeRejected,
		Reason:          ReasonInsufficientBalance,
		MissingSeconds:  avail.MissingSeconds,
		DurationSeconds: duration,
	}, true
}

func (p *Pipeline) transcribe(ctx context.Context, inputPath string) (string, float64, error) {
	if p.cfg.TranscribeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.TranscribeTimeout)
		defer cancel()
	}
	start := time.Now()
	text, err := p.deps.Transcriber.Transcribe(ctx, inputPath)
	return text, time.Since(start).Seconds(), err
}

// fail records the terminal failure: a job row with the reason, the
// failure counters, and the analytics events. The debit never happened.
func (p *Pipeline) fail(ctx context.Context, req Request, duration float64, jErr *JobError, logger *zap.Logger) Result {
	logger.Warn("job failed",
		zap.String("reason", string(jErr.Reason)),
		zap.Float64("duration_seconds", duration),
		zap.Error(jErr.Err))
	p.deps.Metrics.RecordJob(string(OutcomeFailed))
	p.deps.Metrics.RecordFailure(string(jErr.Reason))

	reason := string(jErr.Reason)
	rec := &model.JobRecord{
		UserID:          req.UserID,
		DurationSeconds: duration,
		Status:          model.JobFailed,
		ErrorReason:     &reason,
		CreatedAt:       time.Now().UTC(),
	}
	jobID, err := p.deps.Jobs.InsertJob(ctx, rec)
	if err != nil {
		logger.Error("insert failed job record", zap.Error(err))
	}

	now := time.Now().UTC()
	p.deps.Analytics.Emit(analytics.Event{
		Kind: analytics.EventJobFailed,
		At:   now,
		Job: &analytics.JobEvent{
			UserID:          req.UserID,
			DurationSeconds: duration,
			Reason:          reason,
		},
	})
	p.emitUserStats(ctx, req.UserID, now, logger)

	return Result{
		Outcome:         OutcomeFailed,
		Reason:          jErr.Reason,
		DurationSeconds: duration,
		JobID:           jobID,
	}
}

func (p *Pipeline) emitUserStats(ctx context.Context, userID int64, at time.Time, logger *zap.Logger) {
	stats, err := p.deps.Jobs.UserStats(ctx, userID, at)
	if err != nil {
		logger.Warn("collect user stats", zap.Error(err))
		return
	}
	p.deps.Analytics.Emit(analytics.Event{Kind: analytics.EventUserStats, At: at, Stats: stats})
}
