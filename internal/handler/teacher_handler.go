package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/classplay/classplay-backend/internal/middleware"
	"github.com/classplay/classplay-backend/internal/model"
	"github.com/classplay/classplay-backend/internal/repository"
	"github.com/classplay/classplay-backend/internal/response"
	"github.com/classplay/classplay-backend/internal/service"
	"github.com/classplay/classplay-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TeacherHandler handles the teacher-facing quiz and leaderboard endpoints.
type TeacherHandler struct {
	quizService        *service.QuizService
	authService        *service.AuthService
	leaderboardService *service.LeaderboardService
	submissionRepo     *repository.SubmissionRepository
}

// NewTeacherHandler creates a new TeacherHandler.
func NewTeacherHandler(
	quizService *service.QuizService,
	authService *service.AuthService,
	leaderboardService *service.LeaderboardService,
	submissionRepo *repository.SubmissionRepository,
) *TeacherHandler {
	return &TeacherHandler{
		quizService:        quizService,
		authService:        authService,
		leaderboardService: leaderboardService,
		submissionRepo:     submissionRepo,
	}
}

// CreateQuiz godoc
// POST /api/v1/teacher/quizzes
// Publishes a new quiz with its full question set in one shot.
func (h *TeacherHandler) CreateQuiz(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.CreateQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	quiz, err := h.quizService.Create(c.Request.Context(), claims.UserID, claims.ClassID, &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidQuestion) {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"quiz": quiz})
}

// ListQuizzes godoc
// GET /api/v1/teacher/quizzes
// Lists the quizzes published by the authenticated teacher.
func (h *TeacherHandler) ListQuizzes(c *gin.Context) {
	claims := middleware.GetClaims(c)

	quizzes, err := h.quizService.ListByAuthor(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"quizzes": quizzes})
}

// GetQuizResults godoc
// GET /api/v1/teacher/quizzes/:id/results?page=1&per_page=20
// Lists all submissions of a quiz joined with student names, newest first.
func (h *TeacherHandler) GetQuizResults(c *gin.Context) {
	claims := middleware.GetClaims(c)

	quizID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if _, err := h.quizService.GetForClass(c.Request.Context(), quizID, claims.ClassID); err != nil {
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

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	results, total, err := h.submissionRepo.ListByQuiz(c.Request.Context(), quizID, perPage, (page-1)*perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	totalPages := int((total + int64(perPage) - 1) / int64(perPage))
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results}, &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	})
}

// ResetLeaderboard godoc
// DELETE /api/v1/teacher/leaderboard/:subject
// Wipes every ledger entry of a subject within the teacher's class. The
// reset is idempotent; repeating it reports zero removed entries.
func (h *TeacherHandler) ResetLeaderboard(c *gin.Context) {
	claims := middleware.GetClaims(c)

	subject, err := model.ParseSubjectKey(c.Param("subject"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	// A quiz-scoped reset is only allowed on the teacher's own quiz.
	if subject.Type == model.SubjectQuiz {
		quizID, err := uuid.Parse(subject.Ref)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}
		if _, err := h.quizService.GetForClass(c.Request.Context(), quizID, claims.ClassID); err != nil {
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
	}

	removed, err := h.leaderboardService.Reset(c.Request.Context(), subject, claims.ClassID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"removed": removed})
}

// ResetStudentSession godoc
// DELETE /api/v1/teacher/students/:id/session
// Clears a student's single-device login session so they can log in again.
func (h *TeacherHandler) ResetStudentSession(c *gin.Context) {
	studentID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.authService.ResetStudentSession(c.Request.Context(), studentID); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}
