package handler

import (
	"errors"
	"net/http"

	"github.com/classplay/classplay-backend/internal/middleware"
	"github.com/classplay/classplay-backend/internal/model"
	"github.com/classplay/classplay-backend/internal/response"
	"github.com/classplay/classplay-backend/internal/service"
	"github.com/classplay/classplay-backend/internal/validator"
	"github.com/gin-gonic/gin"
)

// GameHandler accepts mini-game score submissions.
type GameHandler struct {
	gameService *service.GameService
}

// NewGameHandler creates a new GameHandler.
func NewGameHandler(gameService *service.GameService) *GameHandler {
	return &GameHandler{gameService: gameService}
}

// SubmitScore godoc
// POST /api/v1/student/games/scores
// Queues a mini-game score for the persistence worker. The 202 ack means
// the score is queued, not yet on the board.
func (h *GameHandler) SubmitScore(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.SubmitGameScoreRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.gameService.Submit(c.Request.Context(), claims.UserID, claims.ClassID, &req); err != nil {
		if errors.Is(err, service.ErrUnknownGame) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{"status": "queued"})
}
