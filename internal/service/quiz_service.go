package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/classplay/classplay-backend/internal/config"
	"github.com/classplay/classplay-backend/internal/model"
	"github.com/classplay/classplay-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Common quiz errors.
var (
	ErrQuizNotFound    = errors.New("quiz not found")
	ErrClassMismatch   = errors.New("quiz belongs to another class")
	ErrNoQuestions     = errors.New("quiz has no questions")
	ErrInvalidQuestion = errors.New("correct index out of range for question options")
)

const (
	quizPayloadTTL    = 10 * time.Minute
	defaultBasePoints = 100
)

// QuizService handles quiz publishing and retrieval.
type QuizService struct {
	quizRepo *repository.QuizRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewQuizService creates a new QuizService.
func NewQuizService(quizRepo *repository.QuizRepository, rdb *redis.Client, log zerolog.Logger) *QuizService {
	return &QuizService{
		quizRepo: quizRepo,
		rdb:      rdb,
		log:      log.With().Str("component", "quiz_service").Logger(),
	}
}

// Create publishes a new quiz authored by a teacher for their class.
func (s *QuizService) Create(ctx context.Context, authorID, classID int, req *model.CreateQuizRequest) (*model.Quiz, error) {
	for i, q := range req.Questions {
		if q.CorrectIndex >= len(q.Options) {
			return nil, fmt.Errorf("question %d: %w", i, ErrInvalidQuestion)
		}
	}

	basePoints := req.BasePoints
	if basePoints == 0 {
		basePoints = defaultBasePoints
	}

	quiz := &model.Quiz{
		ID:                 uuid.New(),
		Title:              req.Title,
		AuthorID:           authorID,
		ClassID:            classID,
		PerQuestionSeconds: req.PerQuestionSeconds,
		MaxAttempts:        req.MaxAttempts,
		BasePoints:         basePoints,
		QuestionCount:      len(req.Questions),
	}

	questions := make([]model.Question, len(req.Questions))
	for i, q := range req.Questions {
		questions[i] = model.Question{
			ID:           uuid.New(),
			QuizID:       quiz.ID,
			OrderNum:     i,
			QuestionText: q.QuestionText,
			Options:      q.Options,
			CorrectIndex: q.CorrectIndex,
		}
	}

	if err := s.quizRepo.Create(ctx, quiz, questions); err != nil {
		return nil, fmt.Errorf("create quiz: %w", err)
	}
	return quiz, nil
}

// ListForStudent returns the quizzes posted to the student's class, with
// their own usage and best score overlaid.
func (s *QuizService) ListForStudent(ctx context.Context, classID, studentID int) ([]model.QuizListItem, error) {
	return s.quizRepo.ListForStudent(ctx, classID, studentID)
}

// ListByAuthor returns a teacher's published quizzes.
func (s *QuizService) ListByAuthor(ctx context.Context, authorID int) ([]model.Quiz, error) {
	return s.quizRepo.ListByAuthor(ctx, authorID)
}

// Get fetches a quiz by ID without a class check. Grading paths use it;
// anything client-facing goes through GetForClass instead.
func (s *QuizService) Get(ctx context.Context, quizID uuid.UUID) (*model.Quiz, error) {
	quiz, err := s.quizRepo.GetByID(ctx, quizID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("get quiz: %w", err)
	}
	return quiz, nil
}

// GetForClass fetches a quiz and verifies it belongs to the caller's class.
func (s *QuizService) GetForClass(ctx context.Context, quizID uuid.UUID, classID int) (*model.Quiz, error) {
	quiz, err := s.quizRepo.GetByID(ctx, quizID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("get quiz: %w", err)
	}
	if quiz.ClassID != classID {
		return nil, ErrClassMismatch
	}
	return quiz, nil
}

// GetPayload returns the full quiz payload with questions stripped of
// correct answers, suitable for sending to a student client. The payload
// is cached in Redis since every student in a class loads the same one.
func (s *QuizService) GetPayload(ctx context.Context, quizID uuid.UUID, classID int) (*model.QuizPayload, error) {
	cacheKey := config.CacheKey.QuizPayloadKey(quizID.String())

	cached, err := s.rdb.Get(ctx, cacheKey).Result()
	if err == nil {
		var payload model.QuizPayload
		if err := json.Unmarshal([]byte(cached), &payload); err == nil {
			if payload.ClassID != classID {
				return nil, ErrClassMismatch
			}
			return &payload, nil
		}
		// Corrupt cache entry, rebuild below.
		s.rdb.Del(ctx, cacheKey)
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Str("quiz_id", quizID.String()).Msg("quiz payload cache read failed")
	}

	quiz, err := s.quizRepo.GetByID(ctx, quizID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("get quiz: %w", err)
	}

	questions, err := s.quizRepo.GetQuestions(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}

	payload := &model.QuizPayload{
		QuizID:             quiz.ID,
		ClassID:            quiz.ClassID,
		Title:              quiz.Title,
		PerQuestionSeconds: quiz.PerQuestionSeconds,
		MaxAttempts:        quiz.MaxAttempts,
		Questions:          make([]model.QuestionForStudent, len(questions)),
	}
	for i, q := range questions {
		payload.Questions[i] = model.QuestionForStudent{
			OrderNum:     q.OrderNum,
			QuestionText: q.QuestionText,
			Options:      q.Options,
		}
	}

	if data, err := json.Marshal(payload); err == nil {
		if err := s.rdb.Set(ctx, cacheKey, data, quizPayloadTTL).Err(); err != nil {
			s.log.Warn().Err(err).Str("quiz_id", quizID.String()).Msg("quiz payload cache write failed")
		}
	}

	if payload.ClassID != classID {
		return nil, ErrClassMismatch
	}
	return payload, nil
}

// GetQuestions returns the graded question set, correct answers included.
// Only server-side grading paths may call this.
func (s *QuizService) GetQuestions(ctx context.Context, quizID uuid.UUID) ([]model.Question, error) {
	questions, err := s.quizRepo.GetQuestions(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	return questions, nil
}
