package repository

import (
	"context"

	"github.com/classplay/classplay-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SubmissionRepository persists finished attempts.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// InsertTx records a submission inside a caller-owned transaction, so the
// submission row and its ledger upserts commit together.
func (r *SubmissionRepository) InsertTx(ctx context.Context, tx DBTX, sub *model.AttemptSubmission) error {
	return tx.QueryRow(ctx,
		`INSERT INTO attempt_submissions (quiz_id, student_id, correct_count, total_points, submitted_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		sub.QuizID, sub.StudentID, sub.CorrectCount, sub.TotalPoints, sub.SubmittedAt,
	).Scan(&sub.ID)
}

// ListByQuiz returns all submissions of a quiz joined with student names,
// newest first, paginated. The second return value is the total row count.
func (r *SubmissionRepository) ListByQuiz(ctx context.Context, quizID uuid.UUID, limit, offset int) ([]model.SubmissionResult, int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM attempt_submissions WHERE quiz_id = $1`, quizID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT sub.student_id, s.name, sub.correct_count, sub.total_points, sub.submitted_at
		 FROM attempt_submissions sub
		 JOIN students s ON s.id = sub.student_id
		 WHERE sub.quiz_id = $1
		 ORDER BY sub.submitted_at DESC
		 LIMIT $2 OFFSET $3`, quizID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []model.SubmissionResult
	for rows.Next() {
		var res model.SubmissionResult
		if err := rows.Scan(&res.StudentID, &res.StudentName, &res.CorrectCount, &res.TotalPoints, &res.SubmittedAt); err != nil {
			return nil, 0, err
		}
		results = append(results, res)
	}
	return results, total, rows.Err()
}
