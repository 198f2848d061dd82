package handler

import (
	"errors"
	"net/http"

	"github.com/classplay/classplay-backend/internal/middleware"
	"github.com/classplay/classplay-backend/internal/model"
	"github.com/classplay/classplay-backend/internal/repository"
	"github.com/classplay/classplay-backend/internal/response"
	"github.com/classplay/classplay-backend/internal/service"
	"github.com/classplay/classplay-backend/internal/session"
	"github.com/classplay/classplay-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// StudentPortalHandler handles the student-facing quiz endpoints.
type StudentPortalHandler struct {
	quizService    *service.QuizService
	attemptService *service.AttemptService
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(quizService *service.QuizService, attemptService *service.AttemptService) *StudentPortalHandler {
	return &StudentPortalHandler{
		quizService:    quizService,
		attemptService: attemptService,
	}
}

// ListQuizzes godoc
// GET /api/v1/student/quizzes
// Lists the quizzes posted to the student's class with their own usage
// and best score overlaid.
func (h *StudentPortalHandler) ListQuizzes(c *gin.Context) {
	claims := middleware.GetClaims(c)

	quizzes, err := h.quizService.ListForStudent(c.Request.Context(), claims.ClassID, claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"quizzes": quizzes})
}

// GetQuiz godoc
// GET /api/v1/student/quizzes/:id
// Returns the quiz payload with questions stripped of correct answers.
// Denied once the student has used every attempt slot.
func (h *StudentPortalHandler) GetQuiz(c *gin.Context) {
	claims := middleware.GetClaims(c)

	quizID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	payload, err := h.quizService.GetPayload(c.Request.Context(), quizID, claims.ClassID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrQuizNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrClassMismatch):
			response.Fail(c, http.StatusForbidden, response.ErrClassMismatch)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	used, err := h.attemptService.AttemptsUsed(c.Request.Context(), quizID, claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if used >= payload.MaxAttempts {
		response.Fail(c, http.StatusConflict, response.ErrQuotaExceeded)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"quiz":          payload,
		"attempts_used": used,
	})
}

// StartAttempt godoc
// POST /api/v1/student/quizzes/:id/attempt
// Claims one attempt slot and starts the countdown on the first question.
func (h *StudentPortalHandler) StartAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)

	quizID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	ctrl, used, err := h.attemptService.Start(c.Request.Context(), quizID, claims.UserID, claims.ClassID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrQuizNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrClassMismatch):
			response.Fail(c, http.StatusForbidden, response.ErrClassMismatch)
		case errors.Is(err, service.ErrNoQuestions):
			response.Fail(c, http.StatusConflict, response.ErrNoQuestions)
		case errors.Is(err, repository.ErrQuotaExceeded):
			response.Fail(c, http.StatusConflict, response.ErrQuotaExceeded)
		case errors.Is(err, session.ErrAlreadyActive):
			response.Fail(c, http.StatusConflict, response.ErrAttemptActive)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"attempt":       ctrl.Snapshot(),
		"attempts_used": used,
	})
}

// RecordAnswer godoc
// POST /api/v1/student/quizzes/:id/attempt/answer
// Answers (or skips) the current question. On the last question the graded
// result comes back; otherwise the snapshot of the next question does.
func (h *StudentPortalHandler) RecordAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)

	quizID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.RecordAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, snap, err := h.attemptService.RecordAnswer(c.Request.Context(), quizID, claims.UserID, req.SelectedIndex)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotActive):
			response.Fail(c, http.StatusConflict, response.ErrAttemptNotActive)
		case errors.Is(err, session.ErrInvalidOption):
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	if result != nil {
		response.Success(c, http.StatusOK, gin.H{"result": result})
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": snap})
}

// GetAttemptState godoc
// GET /api/v1/student/quizzes/:id/attempt/state
// Returns the live session snapshot so a reloaded client can resynchronize.
func (h *StudentPortalHandler) GetAttemptState(c *gin.Context) {
	claims := middleware.GetClaims(c)

	quizID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	snap, err := h.attemptService.State(quizID, claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrAttemptNotActive)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": snap})
}
