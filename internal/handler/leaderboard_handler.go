package handler

import (
	"net/http"

	"github.com/classplay/classplay-backend/internal/middleware"
	"github.com/classplay/classplay-backend/internal/model"
	"github.com/classplay/classplay-backend/internal/response"
	"github.com/classplay/classplay-backend/internal/service"
	"github.com/gin-gonic/gin"
)

// LeaderboardHandler serves ranking views to students.
type LeaderboardHandler struct {
	leaderboardService *service.LeaderboardService
}

// NewLeaderboardHandler creates a new LeaderboardHandler.
func NewLeaderboardHandler(leaderboardService *service.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboardService: leaderboardService}
}

// GetRanking godoc
// GET /api/v1/student/leaderboard/:subject?window=daily|weekly|all-time
// GET /api/v1/teacher/leaderboard/:subject?window=daily|weekly|all-time
// Returns the top-N ranking of a subject in the caller's class. Students
// also get their own rank, even when they fall outside the top N. The
// subject path segment is "quiz:<id>" or "game:<slug>".
func (h *LeaderboardHandler) GetRanking(c *gin.Context) {
	claims := middleware.GetClaims(c)

	subject, err := model.ParseSubjectKey(c.Param("subject"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	window, err := model.ParseWindow(c.Query("window"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	var requester *int
	if claims.TokenType == service.TokenTypeStudent {
		requester = &claims.UserID
	}

	view, err := h.leaderboardService.Ranking(c.Request.Context(), subject, claims.ClassID, window, requester)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, view)
}
