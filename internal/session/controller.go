package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/classplay/classplay-backend/internal/model"
	"github.com/google/uuid"
)

// State enumerates the attempt session lifecycle.
type State string

const (
	StateLoading    State = "LOADING"
	StateActive     State = "ACTIVE"
	StateSubmitting State = "SUBMITTING"
	StateCompleted  State = "COMPLETED"
	StateErrored    State = "ERRORED"
	StateBlocked    State = "BLOCKED"
)

// Controller errors.
var (
	ErrNotActive     = errors.New("attempt is not active")
	ErrInvalidOption = errors.New("selected index is out of range for this question")
)

// Submitter issues the single authoritative submission for a finished
// attempt. Implementations re-check the attempt quota and persist the
// result atomically.
type Submitter interface {
	SubmitAttempt(ctx context.Context, quizID uuid.UUID, studentID int, answers []model.AnswerRecord) (*model.AttemptResult, error)
}

// EventKind tags controller events pushed to live subscribers.
type EventKind string

const (
	EventTick      EventKind = "tick"
	EventAdvance   EventKind = "advance"
	EventCompleted EventKind = "completed"
	EventErrored   EventKind = "errored"
)

// Event is one state-change notification for a live attempt channel.
type Event struct {
	Kind             EventKind            `json:"event"`
	QuestionIndex    int                  `json:"question_index"`
	RemainingSeconds int                  `json:"remaining_seconds,omitempty"`
	TimedOut         bool                 `json:"timed_out,omitempty"`
	Result           *model.AttemptResult `json:"result,omitempty"`
	Error            string               `json:"error,omitempty"`
}

// Controller drives one student's run through one quiz: per-question
// countdown, forced progression on timeout, and an exactly-once submission.
// All transitions are serialized on an internal mutex; the timer callbacks
// and HTTP calls never interleave inside a transition.
type Controller struct {
	mu           sync.Mutex
	state        State
	quizID       uuid.UUID
	studentID    int
	perQuestion  int
	optionCounts []int
	qIndex       int
	answers      []model.AnswerRecord
	startedAt    time.Time
	result       *model.AttemptResult
	err          error
	timer        *Timer
	submitter    Submitter
	subscribers  map[chan Event]struct{}
	onDone       func()
}

// NewController creates a session in Loading. optionCounts carries the
// option count of each question in order, used to reject out-of-range
// answer indices.
func NewController(quizID uuid.UUID, studentID, perQuestionSeconds int, optionCounts []int, submitter Submitter) *Controller {
	return &Controller{
		state:        StateLoading,
		quizID:       quizID,
		studentID:    studentID,
		perQuestion:  perQuestionSeconds,
		optionCounts: optionCounts,
		answers:      make([]model.AnswerRecord, 0, len(optionCounts)),
		startedAt:    time.Now(),
		timer:        NewTimer(),
		submitter:    submitter,
		subscribers:  make(map[chan Event]struct{}),
	}
}

// newControllerWithTimer is test-only, for compressed countdowns.
func newControllerWithTimer(quizID uuid.UUID, studentID, perQuestionSeconds int, optionCounts []int, submitter Submitter, timer *Timer) *Controller {
	c := NewController(quizID, studentID, perQuestionSeconds, optionCounts, submitter)
	c.timer = timer
	return c
}

// Begin transitions Loading → Active(0) and starts the first countdown.
func (c *Controller) Begin() error {
	c.mu.Lock()
	if c.state != StateLoading {
		c.mu.Unlock()
		return ErrNotActive
	}
	c.state = StateActive
	c.qIndex = 0
	c.startQuestionTimerLocked(0)
	c.mu.Unlock()
	return nil
}

// Block transitions Loading → Blocked when the quota guard denies the start.
func (c *Controller) Block() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateLoading {
		c.state = StateBlocked
	}
}

// RecordAnswer records the student's answer for the current question, or an
// explicit skip when selected is nil. On the last question it issues the
// one and only submission and returns the result. A second call racing into
// Submitting is a no-op returning ErrNotActive.
func (c *Controller) RecordAnswer(ctx context.Context, selected *int) (*model.AttemptResult, error) {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return nil, ErrNotActive
	}
	if selected != nil && (*selected < 0 || *selected >= c.optionCounts[c.qIndex]) {
		c.mu.Unlock()
		return nil, ErrInvalidOption
	}

	taken := c.perQuestion - c.timer.Remaining()
	return c.recordLocked(ctx, selected, taken)
}

// expireQuestion is the timer's onExpire hook. Expiry is answer-equivalent
// to a skip with the full question time consumed. The index guard discards
// a stale expiry racing a manual answer, so no duplicate record is ever
// appended for an already-answered question.
func (c *Controller) expireQuestion(qIndex int) {
	c.mu.Lock()
	if c.state != StateActive || c.qIndex != qIndex {
		c.mu.Unlock()
		return
	}
	_, _ = c.recordLocked(context.Background(), nil, c.perQuestion)
}

// recordLocked appends the answer record and advances the state machine.
// Called with c.mu held; always releases it.
func (c *Controller) recordLocked(ctx context.Context, selected *int, taken int) (*model.AttemptResult, error) {
	if taken < 0 {
		taken = 0
	}
	if taken > c.perQuestion {
		taken = c.perQuestion
	}

	idx := model.NoAnswerIndex
	if selected != nil {
		idx = *selected
	}
	c.answers = append(c.answers, model.AnswerRecord{
		QuestionIndex: c.qIndex,
		SelectedIndex: idx,
		TimeTakenSec:  taken,
	})

	// Leaving Active always releases the timer before anything else.
	c.timer.Cancel()

	if c.qIndex+1 < len(c.optionCounts) {
		c.qIndex++
		next := c.qIndex
		timedOut := selected == nil && taken == c.perQuestion
		c.broadcastLocked(Event{
			Kind:             EventAdvance,
			QuestionIndex:    next,
			RemainingSeconds: c.perQuestion,
			TimedOut:         timedOut,
		})
		// Arm the next countdown before releasing the lock, so an answer
		// racing into the new question always finds a live timer behind it.
		c.startQuestionTimerLocked(next)
		c.mu.Unlock()
		return nil, nil
	}

	c.state = StateSubmitting
	answers := make([]model.AnswerRecord, len(c.answers))
	copy(answers, c.answers)
	c.mu.Unlock()

	return c.submit(ctx, answers)
}

// submit issues the single submission call and settles the terminal state.
func (c *Controller) submit(ctx context.Context, answers []model.AnswerRecord) (*model.AttemptResult, error) {
	result, err := c.submitter.SubmitAttempt(ctx, c.quizID, c.studentID, answers)

	c.mu.Lock()
	if err != nil {
		c.state = StateErrored
		c.err = err
		c.broadcastLocked(Event{Kind: EventErrored, QuestionIndex: c.qIndex, Error: err.Error()})
	} else {
		c.state = StateCompleted
		c.result = result
		c.broadcastLocked(Event{Kind: EventCompleted, QuestionIndex: c.qIndex, Result: result})
	}
	done := c.onDone
	c.mu.Unlock()

	if done != nil {
		done()
	}
	return result, err
}

// startQuestionTimerLocked arms the countdown for qIndex. Called with c.mu
// held; Timer.Start only takes the timer's own lock and its callbacks fire
// from the timer goroutine.
func (c *Controller) startQuestionTimerLocked(qIndex int) {
	c.timer.Start(c.perQuestion,
		func(remaining int) {
			c.mu.Lock()
			if c.state == StateActive && c.qIndex == qIndex {
				c.broadcastLocked(Event{
					Kind:             EventTick,
					QuestionIndex:    qIndex,
					RemainingSeconds: remaining,
				})
			}
			c.mu.Unlock()
		},
		func() { c.expireQuestion(qIndex) },
	)
}

// Abort tears the session down from any non-terminal state, releasing the
// timer so nothing fires into a discarded session.
func (c *Controller) Abort(err error) {
	c.mu.Lock()
	if c.state == StateCompleted || c.state == StateErrored {
		c.mu.Unlock()
		return
	}
	c.timer.Cancel()
	c.state = StateErrored
	c.err = err
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	c.broadcastLocked(Event{Kind: EventErrored, QuestionIndex: c.qIndex, Error: msg})
	done := c.onDone
	c.mu.Unlock()

	if done != nil {
		done()
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Result returns the attempt result once Completed, nil otherwise.
func (c *Controller) Result() *model.AttemptResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Err returns the terminal error once Errored, nil otherwise.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Answers returns a copy of the records appended so far.
func (c *Controller) Answers() []model.AnswerRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.AnswerRecord, len(c.answers))
	copy(out, c.answers)
	return out
}

// Snapshot reports the session state for a reloaded client.
func (c *Controller) Snapshot() model.AttemptStateResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	return model.AttemptStateResponse{
		QuizID:           c.quizID,
		QuestionIndex:    c.qIndex,
		QuestionCount:    len(c.optionCounts),
		AnsweredCount:    len(c.answers),
		RemainingSeconds: c.timer.Remaining(),
	}
}

// Subscribe returns a channel receiving live events for this session. The
// caller must invoke the cancel function to avoid leaks.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)

	c.mu.Lock()
	c.subscribers[ch] = struct{}{}
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		if _, ok := c.subscribers[ch]; ok {
			delete(c.subscribers, ch)
			close(ch)
		}
		c.mu.Unlock()
	}
	return ch, cancel
}

// broadcastLocked fans an event out to subscribers, dropping the oldest
// buffered event for a slow consumer rather than blocking a transition.
func (c *Controller) broadcastLocked(ev Event) {
	for ch := range c.subscribers {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}
