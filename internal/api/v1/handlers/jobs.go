package handlers

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dmlat/STT-Telegram/internal/api/errors"
	"github.com/dmlat/STT-Telegram/internal/api/middleware"
	"github.com/dmlat/STT-Telegram/internal/api/v1/dto"
	"github.com/dmlat/STT-Telegram/internal/app/pipeline"
)

// JobRunner drives one job to a terminal result.
type JobRunner interface {
	Run(ctx context.Context, req pipeline.Request) pipeline.Result
}

// JobsHandler handles transcription job submission.
type JobsHandler struct {
	runner  JobRunner
	tempDir string
	logger  *zap.Logger
}

func NewJobsHandler(runner JobRunner, tempDir string, logger *zap.Logger) *JobsHandler {
	return &JobsHandler{
		runner:  runner,
		tempDir: tempDir,
		logger:  logger,
	}
}

// Create handles POST /api/v1/jobs. A JSON body references audio by
// URL; a multipart body carries the file itself. The call blocks until
// the job reaches a terminal state.
func (h *JobsHandler) Create(c *gin.Context) {
	if strings.HasPrefix(c.ContentType(), "application/json") {
		h.createFromURL(c)
		return
	}
	h.createFromUpload(c)
}

func (h *JobsHandler) createFromURL(c *gin.Context) {
	var req dto.CreateJobURLRequest
	if err := middleware.ValidateRequest(c, &req); err != nil {
		middleware.HandleError(c, err)
		return
	}

	res := h.runner.Run(c.Request.Context(), pipeline.Request{
		UserID:          req.UserID,
		Username:        req.Username,
		FirstName:       req.FirstName,
		AudioRef:        req.URL,
		DurationSeconds: req.DurationSeconds,
	})
	respondJob(c, res)
}

func (h *JobsHandler) createFromUpload(c *gin.Context) {
	var form dto.CreateJobForm
	if err := middleware.ValidateForm(c, &form); err != nil {
		middleware.HandleError(c, err)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		middleware.HandleError(c, errors.NewBadRequestError("audio file is required"))
		return
	}

	// The upload is staged outside the pipeline's own work dir and
	// removed here; the pipeline copies what it needs.
	stageDir, err := os.MkdirTemp(h.tempDir, "upload-*")
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	defer func() {
		if rmErr := os.RemoveAll(stageDir); rmErr != nil {
			h.logger.Warn("remove upload stage dir", zap.Error(rmErr))
		}
	}()

	name := filepath.Base(fileHeader.Filename)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "upload.bin"
	}
	staged := filepath.Join(stageDir, name)
	if err := c.SaveUploadedFile(fileHeader, staged); err != nil {
		middleware.HandleError(c, err)
		return
	}

	res := h.runner.Run(c.Request.Context(), pipeline.Request{
		UserID:          form.UserID,
		Username:        form.Username,
		FirstName:       form.FirstName,
		AudioRef:        staged,
		DurationSeconds: form.DurationSeconds,
		SizeBytes:       fileHeader.Size,
	})
	respondJob(c, res)
}

// respondJob keeps the closed outcome taxonomy on the wire: the body is
// always a JobResponse, the status code tells the class apart.
func respondJob(c *gin.Context, res pipeline.Result) {
	c.JSON(jobStatus(res), dto.JobResponseFrom(res))
}

func jobStatus(res pipeline.Result) int {
	switch res.Outcome {
	case pipeline.OutcomeCompleted:
		return http.StatusOK
	case pipeline.OutcomeRejected:
		return http.StatusPaymentRequired
	}
	switch res.Reason {
	case pipeline.ReasonFileTooLarge, pipeline.ReasonCompressionFailed:
		return http.StatusUnprocessableEntity
	case pipeline.ReasonTranscriptionServiceError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
