package model

import (
	"time"

	"github.com/google/uuid"
)

// Quiz represents a posted assessment.
type Quiz struct {
	ID                 uuid.UUID `json:"id"`
	Title              string    `json:"title"`
	AuthorID           int       `json:"author_id"`
	ClassID            int       `json:"class_id"`
	PerQuestionSeconds int       `json:"per_question_seconds"`
	MaxAttempts        int       `json:"max_attempts"`
	BasePoints         int       `json:"base_points"`
	QuestionCount      int       `json:"question_count"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Question represents a single quiz question. CorrectIndex is never
// serialized to students — QuestionForStudent is the outbound shape.
type Question struct {
	ID           uuid.UUID `json:"id"`
	QuizID       uuid.UUID `json:"quiz_id"`
	OrderNum     int       `json:"order_num"`
	QuestionText string    `json:"question_text"`
	Options      []string  `json:"options"`
	CorrectIndex int       `json:"-"`
}

// QuestionForStudent is a question without the correct answer, sent to students.
type QuestionForStudent struct {
	OrderNum     int      `json:"order_num"`
	QuestionText string   `json:"question_text"`
	Options      []string `json:"options"`
}

// QuizPayload is the cached student-facing quiz shape (no correct answers).
type QuizPayload struct {
	QuizID             uuid.UUID            `json:"quiz_id"`
	ClassID            int                  `json:"class_id"`
	Title              string               `json:"title"`
	PerQuestionSeconds int                  `json:"per_question_seconds"`
	MaxAttempts        int                  `json:"max_attempts"`
	Questions          []QuestionForStudent `json:"questions"`
}

// QuizListItem is one row of the student quiz list, overlaid with the
// student's own attempt usage and best score.
type QuizListItem struct {
	ID                 uuid.UUID `json:"id"`
	Title              string    `json:"title"`
	PerQuestionSeconds int       `json:"per_question_seconds"`
	QuestionCount      int       `json:"question_count"`
	AttemptsUsed       int       `json:"attempts_used"`
	MaxAttempts        int       `json:"max_attempts"`
	BestPoints         *int      `json:"best_points,omitempty"`
}

// CreateQuestionRequest is one question inside a quiz create payload.
type CreateQuestionRequest struct {
	QuestionText string   `json:"question_text" binding:"required,min=1,max=2000"`
	Options      []string `json:"options" binding:"required,min=2,max=8,dive,required,max=500"`
	CorrectIndex int      `json:"correct_index" binding:"min=0"`
}

// CreateQuizRequest is the payload for publishing a new quiz in one shot.
type CreateQuizRequest struct {
	Title              string                  `json:"title" binding:"required,min=3,max=255"`
	PerQuestionSeconds int                     `json:"per_question_seconds" binding:"required,min=5,max=600"`
	MaxAttempts        int                     `json:"max_attempts" binding:"required,min=1,max=10"`
	BasePoints         int                     `json:"base_points" binding:"omitempty,min=1,max=1000"`
	Questions          []CreateQuestionRequest `json:"questions" binding:"required,min=1,dive"`
}
