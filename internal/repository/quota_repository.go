package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrQuotaExceeded is returned when a student has no attempts left on a quiz.
var ErrQuotaExceeded = errors.New("attempt quota exceeded")

// QuotaRepository tracks per-student attempt usage on quizzes.
type QuotaRepository struct {
	pool *pgxpool.Pool
}

// NewQuotaRepository creates a new QuotaRepository.
func NewQuotaRepository(pool *pgxpool.Pool) *QuotaRepository {
	return &QuotaRepository{pool: pool}
}

// Consume atomically increments the student's usage counter if it is still
// below maxAttempts, returning the new count. Two concurrent calls on the
// last remaining slot resolve on the row: exactly one succeeds, the other
// gets ErrQuotaExceeded.
func (r *QuotaRepository) Consume(ctx context.Context, quizID uuid.UUID, studentID, maxAttempts int) (int, error) {
	if maxAttempts < 1 {
		return 0, ErrQuotaExceeded
	}
	var used int
	err := r.pool.QueryRow(ctx,
		`INSERT INTO attempt_quotas (quiz_id, student_id, attempts_used)
		 VALUES ($1, $2, 1)
		 ON CONFLICT (quiz_id, student_id)
		 DO UPDATE SET attempts_used = attempt_quotas.attempts_used + 1, updated_at = NOW()
		 WHERE attempt_quotas.attempts_used < $3
		 RETURNING attempts_used`,
		quizID, studentID, maxAttempts).Scan(&used)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrQuotaExceeded
		}
		return 0, err
	}
	return used, nil
}

// AttemptsUsed returns the current usage counter, zero when no row exists.
func (r *QuotaRepository) AttemptsUsed(ctx context.Context, quizID uuid.UUID, studentID int) (int, error) {
	var used int
	err := r.pool.QueryRow(ctx,
		`SELECT attempts_used FROM attempt_quotas WHERE quiz_id = $1 AND student_id = $2`,
		quizID, studentID).Scan(&used)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return used, nil
}

// LockUsage reads the usage counter under FOR UPDATE inside tx, so a
// submission can verify the attempt it is settling was legitimately started.
func (r *QuotaRepository) LockUsage(ctx context.Context, tx pgx.Tx, quizID uuid.UUID, studentID int) (int, error) {
	var used int
	err := tx.QueryRow(ctx,
		`SELECT attempts_used FROM attempt_quotas WHERE quiz_id = $1 AND student_id = $2 FOR UPDATE`,
		quizID, studentID).Scan(&used)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return used, nil
}
