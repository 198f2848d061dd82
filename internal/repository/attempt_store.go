package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/classplay/classplay-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAttemptNotStarted is returned when a submission arrives for a
// (quiz, student) pair that never consumed an attempt slot.
var ErrAttemptNotStarted = errors.New("no started attempt to submit")

// AttemptStore bundles the persistence of a whole attempt lifecycle:
// quota consumption at start, then the submission row and its ledger
// upserts committed as one transaction at the end.
type AttemptStore struct {
	pool   *pgxpool.Pool
	quotas *QuotaRepository
	subs   *SubmissionRepository
	ledger *LedgerRepository
}

// NewAttemptStore creates a new AttemptStore.
func NewAttemptStore(pool *pgxpool.Pool, quotas *QuotaRepository, subs *SubmissionRepository, ledger *LedgerRepository) *AttemptStore {
	return &AttemptStore{pool: pool, quotas: quotas, subs: subs, ledger: ledger}
}

// ConsumeQuota atomically claims one attempt slot.
func (s *AttemptStore) ConsumeQuota(ctx context.Context, quizID uuid.UUID, studentID, maxAttempts int) (int, error) {
	return s.quotas.Consume(ctx, quizID, studentID, maxAttempts)
}

// AttemptsUsed returns the student's usage counter on a quiz.
func (s *AttemptStore) AttemptsUsed(ctx context.Context, quizID uuid.UUID, studentID int) (int, error) {
	return s.quotas.AttemptsUsed(ctx, quizID, studentID)
}

// PersistSubmission writes the submission row and the three ledger bucket
// upserts in a single transaction, after verifying on the locked quota row
// that the attempt was actually started. Either everything lands or
// nothing does.
func (s *AttemptStore) PersistSubmission(ctx context.Context, sub *model.AttemptSubmission, scopeID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	used, err := s.quotas.LockUsage(ctx, tx, sub.QuizID, sub.StudentID)
	if err != nil {
		return fmt.Errorf("lock quota: %w", err)
	}
	if used < 1 {
		return ErrAttemptNotStarted
	}

	if err := s.subs.InsertTx(ctx, tx, sub); err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}

	subject := model.SubjectKey{Type: model.SubjectQuiz, Ref: sub.QuizID.String()}
	if err := s.ledger.RecordScoreTx(ctx, tx, subject, scopeID, sub.StudentID, sub.TotalPoints, sub.SubmittedAt); err != nil {
		return fmt.Errorf("record score: %w", err)
	}

	return tx.Commit(ctx)
}
