package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/classplay/classplay-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QuizRepository handles quiz and question data access.
type QuizRepository struct {
	pool *pgxpool.Pool
}

// NewQuizRepository creates a new QuizRepository.
func NewQuizRepository(pool *pgxpool.Pool) *QuizRepository {
	return &QuizRepository{pool: pool}
}

// Create inserts a quiz with its ordered questions in one transaction.
func (r *QuizRepository) Create(ctx context.Context, quiz *model.Quiz, questions []model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO quizzes (id, title, author_id, class_id, per_question_seconds, max_attempts, base_points, question_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at, updated_at`,
		quiz.ID, quiz.Title, quiz.AuthorID, quiz.ClassID,
		quiz.PerQuestionSeconds, quiz.MaxAttempts, quiz.BasePoints, quiz.QuestionCount,
	).Scan(&quiz.CreatedAt, &quiz.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert quiz: %w", err)
	}

	for i := range questions {
		q := &questions[i]
		_, err = tx.Exec(ctx,
			`INSERT INTO questions (id, quiz_id, order_num, question_text, options, correct_index)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			q.ID, q.QuizID, q.OrderNum, q.QuestionText, q.Options, q.CorrectIndex,
		)
		if err != nil {
			return fmt.Errorf("insert question %d: %w", i, err)
		}
	}

	return tx.Commit(ctx)
}

// GetByID retrieves a quiz by ID.
func (r *QuizRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Quiz, error) {
	q := &model.Quiz{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, author_id, class_id, per_question_seconds, max_attempts, base_points, question_count, created_at, updated_at
		 FROM quizzes WHERE id = $1`, id,
	).Scan(&q.ID, &q.Title, &q.AuthorID, &q.ClassID, &q.PerQuestionSeconds,
		&q.MaxAttempts, &q.BasePoints, &q.QuestionCount, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// GetQuestions retrieves the ordered questions of a quiz, correct answers included.
func (r *QuizRepository) GetQuestions(ctx context.Context, quizID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, quiz_id, order_num, question_text, options, correct_index
		 FROM questions WHERE quiz_id = $1 ORDER BY order_num ASC`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.QuizID, &q.OrderNum, &q.QuestionText, &q.Options, &q.CorrectIndex); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// ListForStudent retrieves every quiz posted to the student's class,
// overlaid with their own attempt usage and all-time best score.
func (r *QuizRepository) ListForStudent(ctx context.Context, classID, studentID int) ([]model.QuizListItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT q.id, q.title, q.per_question_seconds, q.question_count, q.max_attempts,
		        COALESCE(aq.attempts_used, 0),
		        le.best_points
		 FROM quizzes q
		 LEFT JOIN attempt_quotas aq
		   ON aq.quiz_id = q.id AND aq.student_id = $2
		 LEFT JOIN ledger_entries le
		   ON le.subject_type = 'quiz' AND le.subject_ref = q.id::text
		  AND le.scope_id = q.class_id AND le.student_id = $2 AND le.bucket = 'all'
		 WHERE q.class_id = $1
		 ORDER BY q.created_at DESC`, classID, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.QuizListItem
	for rows.Next() {
		var it model.QuizListItem
		if err := rows.Scan(&it.ID, &it.Title, &it.PerQuestionSeconds, &it.QuestionCount,
			&it.MaxAttempts, &it.AttemptsUsed, &it.BestPoints); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListByAuthor retrieves all quizzes published by a teacher.
func (r *QuizRepository) ListByAuthor(ctx context.Context, authorID int) ([]model.Quiz, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, author_id, class_id, per_question_seconds, max_attempts, base_points, question_count, created_at, updated_at
		 FROM quizzes WHERE author_id = $1 ORDER BY created_at DESC`, authorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quizzes []model.Quiz
	for rows.Next() {
		var q model.Quiz
		if err := rows.Scan(&q.ID, &q.Title, &q.AuthorID, &q.ClassID, &q.PerQuestionSeconds,
			&q.MaxAttempts, &q.BasePoints, &q.QuestionCount, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, err
		}
		quizzes = append(quizzes, q)
	}
	return quizzes, rows.Err()
}

// IsNotFound reports whether err is the pgx no-rows sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
