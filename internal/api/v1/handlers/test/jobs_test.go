package test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dmlat/STT-Telegram/internal/api/middleware"
	"github.com/dmlat/STT-Telegram/internal/api/v1/handlers"
	"github.com/dmlat/STT-Telegram/internal/app/pipeline"
)

// stubRunner returns a canned result and records what the handler
// asked for. It checks the staged file while the run is in flight,
// before the handler cleans it up.
type stubRunner struct {
	mu       sync.Mutex
	result   pipeline.Result
	requests []pipeline.Request
	sawFile  bool
}

func (s *stubRunner) Run(_ context.Context, req pipeline.Request) pipeline.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if _, err := os.Stat(req.AudioRef); err == nil {
		s.sawFile = true
	}
	return s.result
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.ErrorHandler(zap.NewNop()))
	return router
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestJobsHandler_CreateJSON(t *testing.T) {
	tests := []struct {
		name           string
		request        map[string]interface{}
		result         pipeline.Result
		expectedStatus int
		validateBody   func(*testing.T, map[string]interface{})
	}{
		{
			name: "completed job",
			request: map[string]interface{}{
				"user_id":          7,
				"url":              "https://files.example.com/voice.ogg",
				"duration_seconds": 42.5,
			},
			result: pipeline.Result{
				Outcome:           pipeline.OutcomeCompleted,
				Text:              "hello world",
				SizeDetail:        pipeline.SizeOriginal,
				DurationSeconds:   42.5,
				ProcessingSeconds: 1.2,
				JobID:             3,
			},
			expectedStatus: http.StatusOK,
			validateBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "completed", body["outcome"])
				assert.Equal(t, "hello world", body["text"])
				assert.Equal(t, "original", body["size_detail"])
				assert.Equal(t, float64(3), body["job_id"])
			},
		},
		{
			name: "rejected job",
			request: map[string]interface{}{
				"user_id":          7,
				"url":              "https://files.example.com/voice.ogg",
				"duration_seconds": 500,
			},
			result: pipeline.Result{
				Outcome:         pipeline.OutcomeRejected,
				Reason:          pipeline.ReasonInsufficientBalance,
				MissingSeconds:  200,
				DurationSeconds: 500,
			},
			expectedStatus: http.StatusPaymentRequired,
			validateBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "rejected", body["outcome"])
				assert.Equal(t, "insufficient_balance", body["reason"])
				assert.Equal(t, float64(200), body["missing_seconds"])
			},
		},
		{
			name: "file too large",
			request: map[string]interface{}{
				"user_id": 7,
				"url":     "https://files.example.com/voice.ogg",
			},
			result: pipeline.Result{
				Outcome: pipeline.OutcomeFailed,
				Reason:  pipeline.ReasonFileTooLarge,
			},
			expectedStatus: http.StatusUnprocessableEntity,
			validateBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "failed", body["outcome"])
				assert.Equal(t, "file_too_large", body["reason"])
			},
		},
		{
			name: "backend outage",
			request: map[string]interface{}{
				"user_id": 7,
				"url":     "https://files.example.com/voice.ogg",
			},
			result: pipeline.Result{
				Outcome: pipeline.OutcomeFailed,
				Reason:  pipeline.ReasonTranscriptionServiceError,
			},
			expectedStatus: http.StatusBadGateway,
			validateBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "transcription_service_error", body["reason"])
			},
		},
		{
			name: "internal failure",
			request: map[string]interface{}{
				"user_id": 7,
				"url":     "https://files.example.com/voice.ogg",
			},
			result: pipeline.Result{
				Outcome: pipeline.OutcomeFailed,
				Reason:  pipeline.ReasonInternalError,
			},
			expectedStatus: http.StatusInternalServerError,
			validateBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "internal_error", body["reason"])
			},
		},
		{
			name: "missing user id",
			request: map[string]interface{}{
				"url": "https://files.example.com/voice.ogg",
			},
			expectedStatus: http.StatusUnprocessableEntity,
			validateBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "validation", body["kind"])
			},
		},
		{
			name: "invalid url",
			request: map[string]interface{}{
				"user_id": 7,
				"url":     "not-a-url",
			},
			expectedStatus: http.StatusUnprocessableEntity,
			validateBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "validation", body["kind"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter()
			runner := &stubRunner{result: tt.result}
			handler := handlers.NewJobsHandler(runner, t.TempDir(), zap.NewNop())
			router.POST("/api/v1/jobs", handler.Create)

			payload, err := json.Marshal(tt.request)
			require.NoError(t, err)

			req := httptest.NewRequest("POST", "/api/v1/jobs", bytes.NewReader(payload))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			tt.validateBody(t, decodeBody(t, rec))
		})
	}
}

func TestJobsHandler_CreateJSON_PassesRequestThrough(t *testing.T) {
	router := setupTestRouter()
	runner := &stubRunner{result: pipeline.Result{Outcome: pipeline.OutcomeCompleted}}
	handler := handlers.NewJobsHandler(runner, t.TempDir(), zap.NewNop())
	router.POST("/api/v1/jobs", handler.Create)

	payload := []byte(`{"user_id":9,"username":"kira","first_name":"Kira","url":"https://files.example.com/a.ogg","duration_seconds":12.5}`)
	req := httptest.NewRequest("POST", "/api/v1/jobs", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, runner.requests, 1)
	got := runner.requests[0]
	assert.Equal(t, int64(9), got.UserID)
	assert.Equal(t, "kira", got.Username)
	assert.Equal(t, "Kira", got.FirstName)
	assert.Equal(t, "https://files.example.com/a.ogg", got.AudioRef)
	assert.Equal(t, 12.5, got.DurationSeconds)
}

func TestJobsHandler_CreateUpload(t *testing.T) {
	router := setupTestRouter()
	runner := &stubRunner{result: pipeline.Result{
		Outcome: pipeline.OutcomeCompleted,
		Text:    "uploaded audio",
	}}
	tempDir := t.TempDir()
	handler := handlers.NewJobsHandler(runner, tempDir, zap.NewNop())
	router.POST("/api/v1/jobs", handler.Create)

	audio := []byte("fake-ogg-bytes")
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	require.NoError(t, w.WriteField("user_id", "7"))
	require.NoError(t, w.WriteField("username", "ann"))
	require.NoError(t, w.WriteField("duration_seconds", "42.5"))
	fw, err := w.CreateFormFile("file", "voice.ogg")
	require.NoError(t, err)
	_, err = fw.Write(audio)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/api/v1/jobs", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, runner.requests, 1)
	got := runner.requests[0]
	assert.Equal(t, int64(7), got.UserID)
	assert.Equal(t, 42.5, got.DurationSeconds)
	assert.Equal(t, int64(len(audio)), got.SizeBytes)
	assert.True(t, runner.sawFile, "the staged upload existed during the run")

	// The staging directory is gone once the response is out.
	_, statErr := os.Stat(got.AudioRef)
	assert.True(t, os.IsNotExist(statErr), "staged upload should be removed")

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestJobsHandler_CreateUpload_MissingFile(t *testing.T) {
	router := setupTestRouter()
	runner := &stubRunner{}
	handler := handlers.NewJobsHandler(runner, t.TempDir(), zap.NewNop())
	router.POST("/api/v1/jobs", handler.Create)

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	require.NoError(t, w.WriteField("user_id", "7"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/api/v1/jobs", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", decodeBody(t, rec)["kind"])
	assert.Empty(t, runner.requests)
}
