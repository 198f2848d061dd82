package service

import (
	"context"
	"fmt"
	"time"

	"github.com/classplay/classplay-backend/internal/model"
	"github.com/classplay/classplay-backend/internal/scoring"
	"github.com/classplay/classplay-backend/internal/session"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// QuizSource supplies quiz metadata and graded question sets.
type QuizSource interface {
	Get(ctx context.Context, quizID uuid.UUID) (*model.Quiz, error)
	GetQuestions(ctx context.Context, quizID uuid.UUID) ([]model.Question, error)
}

// AttemptPersistence is the storage surface of the attempt lifecycle.
type AttemptPersistence interface {
	ConsumeQuota(ctx context.Context, quizID uuid.UUID, studentID, maxAttempts int) (int, error)
	AttemptsUsed(ctx context.Context, quizID uuid.UUID, studentID int) (int, error)
	PersistSubmission(ctx context.Context, sub *model.AttemptSubmission, scopeID int) error
}

// RankInvalidator drops cached leaderboard snapshots after a score lands.
type RankInvalidator interface {
	InvalidateSubject(ctx context.Context, subject model.SubjectKey, scopeID int)
}

// AttemptService runs the server-owned attempt sessions. It starts them
// behind the quota guard, routes answers into the live controller, and is
// itself the Submitter that settles a finished run.
type AttemptService struct {
	quizzes QuizSource
	store   AttemptPersistence
	boards  RankInvalidator
	manager *session.Manager
	log     zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(quizzes QuizSource, store AttemptPersistence, boards RankInvalidator, manager *session.Manager, log zerolog.Logger) *AttemptService {
	return &AttemptService{
		quizzes: quizzes,
		store:   store,
		boards:  boards,
		manager: manager,
		log:     log.With().Str("component", "attempt_service").Logger(),
	}
}

// Start claims one attempt slot and spins up a live session for the
// student. It returns the controller plus the usage counter after the
// claim. Starting while another session is live fails without consuming
// a slot.
func (s *AttemptService) Start(ctx context.Context, quizID uuid.UUID, studentID, classID int) (*session.Controller, int, error) {
	quiz, err := s.quizzes.Get(ctx, quizID)
	if err != nil {
		return nil, 0, err
	}
	if quiz.ClassID != classID {
		return nil, 0, ErrClassMismatch
	}

	questions, err := s.quizzes.GetQuestions(ctx, quizID)
	if err != nil {
		return nil, 0, err
	}

	if _, ok := s.manager.Get(quizID, studentID); ok {
		return nil, 0, session.ErrAlreadyActive
	}

	used, err := s.store.ConsumeQuota(ctx, quizID, studentID, quiz.MaxAttempts)
	if err != nil {
		return nil, 0, err
	}

	optionCounts := make([]int, len(questions))
	for i, q := range questions {
		optionCounts[i] = len(q.Options)
	}

	ctrl, err := s.manager.Start(quizID, studentID, quiz.PerQuestionSeconds, optionCounts, s)
	if err != nil {
		// The racing start that won the map slot consumed its own quota;
		// this slot is burned. The manager pre-check keeps the window tiny.
		return nil, 0, err
	}

	s.log.Info().
		Str("quiz_id", quizID.String()).
		Int("student_id", studentID).
		Int("attempts_used", used).
		Msg("Attempt started")
	return ctrl, used, nil
}

// AttemptsUsed reports the student's authoritative usage counter on a quiz.
func (s *AttemptService) AttemptsUsed(ctx context.Context, quizID uuid.UUID, studentID int) (int, error) {
	return s.store.AttemptsUsed(ctx, quizID, studentID)
}

// RecordAnswer forwards an answer (or explicit skip, when selected is nil)
// into the live session. On the last question the result of the finished
// attempt comes back; otherwise the snapshot of the next question does.
func (s *AttemptService) RecordAnswer(ctx context.Context, quizID uuid.UUID, studentID int, selected *int) (*model.AttemptResult, *model.AttemptStateResponse, error) {
	ctrl, ok := s.manager.Get(quizID, studentID)
	if !ok {
		return nil, nil, session.ErrNotActive
	}

	result, err := ctrl.RecordAnswer(ctx, selected)
	if err != nil {
		return nil, nil, err
	}
	if result != nil {
		return result, nil, nil
	}

	snap := ctrl.Snapshot()
	return nil, &snap, nil
}

// State reports the live session snapshot so a reloaded client can
// resynchronize mid-attempt.
func (s *AttemptService) State(quizID uuid.UUID, studentID int) (*model.AttemptStateResponse, error) {
	ctrl, ok := s.manager.Get(quizID, studentID)
	if !ok {
		return nil, session.ErrNotActive
	}
	snap := ctrl.Snapshot()
	return &snap, nil
}

// Live returns the live controller for a websocket subscription.
func (s *AttemptService) Live(quizID uuid.UUID, studentID int) (*session.Controller, bool) {
	return s.manager.Get(quizID, studentID)
}

// SubmitAttempt grades the finished answer set and persists the outcome
// atomically. The session controller calls this exactly once per attempt.
func (s *AttemptService) SubmitAttempt(ctx context.Context, quizID uuid.UUID, studentID int, answers []model.AnswerRecord) (*model.AttemptResult, error) {
	quiz, err := s.quizzes.Get(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("load quiz: %w", err)
	}
	questions, err := s.quizzes.GetQuestions(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}

	result := scoring.Grade(questions, answers, quiz.BasePoints, quiz.PerQuestionSeconds)

	sub := &model.AttemptSubmission{
		QuizID:       quizID,
		StudentID:    studentID,
		CorrectCount: result.CorrectCount,
		TotalPoints:  result.TotalPoints,
		SubmittedAt:  time.Now().UTC(),
	}
	if err := s.store.PersistSubmission(ctx, sub, quiz.ClassID); err != nil {
		return nil, fmt.Errorf("persist submission: %w", err)
	}

	s.boards.InvalidateSubject(ctx, model.SubjectKey{Type: model.SubjectQuiz, Ref: quizID.String()}, quiz.ClassID)

	s.log.Info().
		Str("quiz_id", quizID.String()).
		Int("student_id", studentID).
		Int("total_points", result.TotalPoints).
		Int("correct", result.CorrectCount).
		Msg("Attempt submitted")
	return &result, nil
}
