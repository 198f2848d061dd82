package model

import (
	"time"

	"github.com/google/uuid"
)

// NoAnswerIndex is the sentinel selected index recorded for a skipped or
// timed-out question. It can never collide with a valid option index.
const NoAnswerIndex = -1

// AnswerRecord is one answered (or skipped) question inside an attempt.
type AnswerRecord struct {
	QuestionIndex int `json:"question_index"`
	SelectedIndex int `json:"selected_index"`
	TimeTakenSec  int `json:"time_taken_sec"`
}

// TimedOut reports whether this record was produced by timer expiry rather
// than an explicit answer or skip.
func (a AnswerRecord) TimedOut(perQuestionSeconds int) bool {
	return a.SelectedIndex == NoAnswerIndex && a.TimeTakenSec == perQuestionSeconds
}

// AttemptResult is the finalized outcome of one attempt.
type AttemptResult struct {
	CorrectCount int    `json:"correct_count"`
	TotalPoints  int    `json:"total_points"`
	PerAnswer    []bool `json:"per_answer"`
}

// AttemptSubmission is the persisted record of a finished attempt.
type AttemptSubmission struct {
	ID           int       `json:"id"`
	QuizID       uuid.UUID `json:"quiz_id"`
	StudentID    int       `json:"student_id"`
	CorrectCount int       `json:"correct_count"`
	TotalPoints  int       `json:"total_points"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// SubmissionResult is one row of the teacher-facing results listing.
type SubmissionResult struct {
	StudentID    int       `json:"student_id"`
	StudentName  string    `json:"student_name"`
	CorrectCount int       `json:"correct_count"`
	TotalPoints  int       `json:"total_points"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// RecordAnswerRequest is the payload for answering the current question.
// A null selected_index is an explicit skip.
type RecordAnswerRequest struct {
	SelectedIndex *int `json:"selected_index" binding:"omitempty,min=0,max=7"`
}

// AttemptStateResponse lets a reloaded client resynchronize with its
// server-owned attempt session.
type AttemptStateResponse struct {
	QuizID           uuid.UUID `json:"quiz_id"`
	QuestionIndex    int       `json:"question_index"`
	QuestionCount    int       `json:"question_count"`
	AnsweredCount    int       `json:"answered_count"`
	RemainingSeconds int       `json:"remaining_seconds"`
}
