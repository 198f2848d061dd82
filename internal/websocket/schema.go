package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer Action = "answer"
	ActionPing   Action = "ping"
)

// AnswerRequest answers (or skips, when SelectedIndex is null) the
// current question over the live channel.
type AnswerRequest struct {
	Action        Action `json:"action"`
	SelectedIndex *int   `json:"selected_index"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError     Event = "error"
	EventTick      Event = "tick"
	EventAdvance   Event = "advance"
	EventCompleted Event = "completed"
	EventPong      Event = "pong"
)

// TickResponse carries the countdown of the current question.
type TickResponse struct {
	Event            Event `json:"event"`
	QuestionIndex    int   `json:"question_index"`
	RemainingSeconds int   `json:"remaining_seconds"`
}

// AdvanceResponse announces forced or voluntary progression to the next
// question.
type AdvanceResponse struct {
	Event            Event `json:"event"`
	QuestionIndex    int   `json:"question_index"`
	RemainingSeconds int   `json:"remaining_seconds"`
	TimedOut         bool  `json:"timed_out"`
}

// CompletedResponse closes an attempt with its graded result.
type CompletedResponse struct {
	Event        Event `json:"event"`
	CorrectCount int   `json:"correct_count"`
	TotalPoints  int   `json:"total_points"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
