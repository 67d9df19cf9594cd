package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmlat/STT-Telegram/internal/api/errors"
	"github.com/dmlat/STT-Telegram/internal/api/middleware"
	"github.com/dmlat/STT-Telegram/internal/api/v1/dto"
	"github.com/dmlat/STT-Telegram/internal/app/ledger"
	"github.com/dmlat/STT-Telegram/internal/app/repository"
)

// UsersHandler serves per-user quota and history reads.
type UsersHandler struct {
	ledger *ledger.Ledger
	jobs   repository.JobDAO
}

func NewUsersHandler(l *ledger.Ledger, jobs repository.JobDAO) *UsersHandler {
	return &UsersHandler{
		ledger: l,
		jobs:   jobs,
	}
}

// GetBalance handles GET /api/v1/users/:id/balance. With
// ?required_seconds=N it additionally previews whether N would fit.
func (h *UsersHandler) GetBalance(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	var query dto.BalanceQuery
	if err := middleware.ValidateQuery(c, &query); err != nil {
		middleware.HandleError(c, err)
		return
	}

	avail, err := h.ledger.Availability(c.Request.Context(), userID, query.RequiredSeconds)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	resp := dto.BalanceResponse{
		UserID:                userID,
		FreeRemainingSeconds:  avail.FreeRemaining,
		BalanceSeconds:        avail.BalanceSeconds,
		TotalAvailableSeconds: avail.FreeRemaining + avail.BalanceSeconds,
	}
	if query.RequiredSeconds > 0 {
		allowed := avail.Allowed
		resp.Allowed = &allowed
		resp.MissingSeconds = avail.MissingSeconds
	}
	c.JSON(http.StatusOK, resp)
}

// GetStats handles GET /api/v1/users/:id/stats. Users that never sent
// a job get zero aggregates, matching their treatment by the quota
// check.
func (h *UsersHandler) GetStats(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	stats, err := h.jobs.UserStats(c.Request.Context(), userID, time.Now().UTC())
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetJobs handles GET /api/v1/users/:id/jobs.
func (h *UsersHandler) GetJobs(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	recs, err := h.jobs.JobsByUser(c.Request.Context(), userID)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"jobs":    recs,
	})
}

func userIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		middleware.HandleError(c, errors.NewBadRequestError("Invalid user ID"))
		return 0, false
	}
	return id, true
}
