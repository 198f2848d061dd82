package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/classplay/classplay-backend/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSubmitter records submissions and fabricates a result.
type fakeSubmitter struct {
	mu      sync.Mutex
	calls   int32
	answers []model.AnswerRecord
	delay   time.Duration
	err     error
}

func (f *fakeSubmitter) SubmitAttempt(_ context.Context, _ uuid.UUID, _ int, answers []model.AnswerRecord) (*model.AttemptResult, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	f.answers = append([]model.AnswerRecord(nil), answers...)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &model.AttemptResult{CorrectCount: 1, TotalPoints: 100, PerAnswer: make([]bool, len(answers))}, nil
}

func (f *fakeSubmitter) submissions() int {
	return int(atomic.LoadInt32(&f.calls))
}

func newTestController(t *testing.T, perQuestion int, optionCounts []int, sub Submitter) *Controller {
	t.Helper()
	return newControllerWithTimer(uuid.New(), 7, perQuestion, optionCounts, sub, newTimerWithInterval(testInterval))
}

func intp(v int) *int { return &v }

func TestControllerManualAnswersThroughSubmission(t *testing.T) {
	sub := &fakeSubmitter{}
	ctrl := newTestController(t, 10, []int{3, 2}, sub)

	require.NoError(t, ctrl.Begin())
	assert.Equal(t, StateActive, ctrl.State())

	result, err := ctrl.RecordAnswer(context.Background(), intp(1))
	require.NoError(t, err)
	assert.Nil(t, result) // Not the last question yet.

	result, err = ctrl.RecordAnswer(context.Background(), intp(0))
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, StateCompleted, ctrl.State())
	assert.Equal(t, 1, sub.submissions())
	require.Len(t, sub.answers, 2)
	assert.Equal(t, 0, sub.answers[0].QuestionIndex)
	assert.Equal(t, 1, sub.answers[1].QuestionIndex)
}

func TestControllerTimeoutRecordsSentinelAndSubmits(t *testing.T) {
	sub := &fakeSubmitter{}
	ctrl := newTestController(t, 2, []int{2, 2}, sub)
	require.NoError(t, ctrl.Begin())

	// Let both questions expire.
	settle(2)
	settle(2)

	assert.Equal(t, StateCompleted, ctrl.State())
	assert.Equal(t, 1, sub.submissions())
	require.Len(t, sub.answers, 2)
	for i, ans := range sub.answers {
		assert.Equal(t, i, ans.QuestionIndex)
		assert.Equal(t, model.NoAnswerIndex, ans.SelectedIndex)
		assert.Equal(t, 2, ans.TimeTakenSec)
		assert.True(t, ans.TimedOut(2))
	}
}

func TestControllerAnswerThenTimeoutScenario(t *testing.T) {
	// The canonical 2-question run: Q1 answered, Q2 times out. Every
	// completed attempt carries one record per question.
	sub := &fakeSubmitter{}
	ctrl := newTestController(t, 2, []int{3, 3}, sub)
	require.NoError(t, ctrl.Begin())

	_, err := ctrl.RecordAnswer(context.Background(), intp(1))
	require.NoError(t, err)

	settle(2) // Q2 expires.

	assert.Equal(t, StateCompleted, ctrl.State())
	require.Len(t, sub.answers, 2)
	assert.Equal(t, 1, sub.answers[0].SelectedIndex)
	assert.Equal(t, model.NoAnswerIndex, sub.answers[1].SelectedIndex)
	assert.Equal(t, 2, sub.answers[1].TimeTakenSec)
}

func TestControllerManualAnswerCancelsQuestionTimer(t *testing.T) {
	sub := &fakeSubmitter{}
	ctrl := newTestController(t, 2, []int{2, 2}, sub)
	require.NoError(t, ctrl.Begin())

	_, err := ctrl.RecordAnswer(context.Background(), intp(0))
	require.NoError(t, err)

	// Wait past where Q1's expiry would have fired. Only Q2's own expiry
	// may append a record; Q1 must never be double-recorded.
	settle(2)
	settle(2)

	require.Len(t, sub.answers, 2)
	assert.Equal(t, 0, sub.answers[0].SelectedIndex)
	assert.Equal(t, model.NoAnswerIndex, sub.answers[1].SelectedIndex)
	assert.Equal(t, 1, sub.submissions())
}

func TestControllerNoDoubleSubmitOnRacedLastAnswer(t *testing.T) {
	sub := &fakeSubmitter{delay: 30 * time.Millisecond}
	ctrl := newTestController(t, 10, []int{2}, sub)
	require.NoError(t, ctrl.Begin())

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = ctrl.RecordAnswer(context.Background(), intp(1))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, sub.submissions())
	// Exactly one of the two calls was rejected as a no-op.
	if errs[0] == nil {
		assert.ErrorIs(t, errs[1], ErrNotActive)
	} else {
		assert.ErrorIs(t, errs[0], ErrNotActive)
		assert.NoError(t, errs[1])
	}
}

func TestControllerRacedAnswersNeverLeaveQuestionWithoutTimer(t *testing.T) {
	// Two answers landing back to back must not let a stale Timer.Start
	// supersede the countdown of the question now on screen. Whatever the
	// interleaving, forced progression has to finish the session.
	for i := 0; i < 50; i++ {
		sub := &fakeSubmitter{}
		ctrl := newTestController(t, 2, []int{2, 2, 2}, sub)
		require.NoError(t, ctrl.Begin())

		var wg sync.WaitGroup
		for g := 0; g < 2; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = ctrl.RecordAnswer(context.Background(), intp(0))
			}()
		}
		wg.Wait()

		deadline := time.Now().Add(2 * time.Second)
		for ctrl.State() != StateCompleted && time.Now().Before(deadline) {
			settle(2)
		}
		require.Equal(t, StateCompleted, ctrl.State(), "iteration %d stalled", i)
		require.Len(t, sub.answers, 3)
	}
}

func TestControllerRejectsOutOfRangeOption(t *testing.T) {
	sub := &fakeSubmitter{}
	ctrl := newTestController(t, 10, []int{3}, sub)
	require.NoError(t, ctrl.Begin())

	_, err := ctrl.RecordAnswer(context.Background(), intp(3))
	assert.ErrorIs(t, err, ErrInvalidOption)

	_, err = ctrl.RecordAnswer(context.Background(), intp(-1))
	assert.ErrorIs(t, err, ErrInvalidOption)

	// The rejected calls consumed nothing.
	assert.Empty(t, ctrl.Answers())
	assert.Equal(t, StateActive, ctrl.State())
}

func TestControllerSubmissionFailureEndsInErrored(t *testing.T) {
	boom := errors.New("submission rejected")
	sub := &fakeSubmitter{err: boom}
	ctrl := newTestController(t, 10, []int{2}, sub)
	require.NoError(t, ctrl.Begin())

	result, err := ctrl.RecordAnswer(context.Background(), intp(0))
	assert.Nil(t, result)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateErrored, ctrl.State())
	assert.ErrorIs(t, ctrl.Err(), boom)

	// Errored is terminal: no further answers are accepted.
	_, err = ctrl.RecordAnswer(context.Background(), intp(0))
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestControllerBlockFromLoading(t *testing.T) {
	sub := &fakeSubmitter{}
	ctrl := newTestController(t, 10, []int{2}, sub)

	ctrl.Block()
	assert.Equal(t, StateBlocked, ctrl.State())
	assert.ErrorIs(t, ctrl.Begin(), ErrNotActive)
}

func TestControllerAbortReleasesTimer(t *testing.T) {
	sub := &fakeSubmitter{}
	ctrl := newTestController(t, 2, []int{2, 2}, sub)
	require.NoError(t, ctrl.Begin())

	ctrl.Abort(errors.New("teardown"))
	assert.Equal(t, StateErrored, ctrl.State())

	// Nothing fires into the discarded session.
	settle(2)
	assert.Equal(t, 0, sub.submissions())
	assert.Empty(t, sub.answers)
}

func TestControllerSubscribeReceivesLifecycleEvents(t *testing.T) {
	sub := &fakeSubmitter{}
	ctrl := newTestController(t, 10, []int{2, 2}, sub)

	ch, cancel := ctrl.Subscribe()
	defer cancel()

	require.NoError(t, ctrl.Begin())
	_, err := ctrl.RecordAnswer(context.Background(), intp(0))
	require.NoError(t, err)
	_, err = ctrl.RecordAnswer(context.Background(), intp(1))
	require.NoError(t, err)

	var kinds []EventKind
	deadline := time.After(time.Second)
	for len(kinds) < 2 {
		select {
		case ev := <-ch:
			if ev.Kind == EventAdvance || ev.Kind == EventCompleted {
				kinds = append(kinds, ev.Kind)
			}
		case <-deadline:
			t.Fatal("timed out waiting for events")
		}
	}

	assert.Equal(t, []EventKind{EventAdvance, EventCompleted}, kinds)
}

func TestControllerSnapshot(t *testing.T) {
	sub := &fakeSubmitter{}
	ctrl := newTestController(t, 10, []int{2, 2, 2}, sub)
	require.NoError(t, ctrl.Begin())

	_, err := ctrl.RecordAnswer(context.Background(), intp(0))
	require.NoError(t, err)

	snap := ctrl.Snapshot()
	assert.Equal(t, 1, snap.QuestionIndex)
	assert.Equal(t, 3, snap.QuestionCount)
	assert.Equal(t, 1, snap.AnsweredCount)
}

func TestManagerOneActiveSessionPerQuizStudent(t *testing.T) {
	mgr := NewManager(zerolog.Nop())
	sub := &fakeSubmitter{}
	quizID := uuid.New()

	ctrl, err := mgr.Start(quizID, 7, 10, []int{2, 2}, sub)
	require.NoError(t, err)
	require.NotNil(t, ctrl)
	assert.Equal(t, 1, mgr.Count())

	_, err = mgr.Start(quizID, 7, 10, []int{2, 2}, sub)
	assert.ErrorIs(t, err, ErrAlreadyActive)

	// A different student on the same quiz is unaffected.
	_, err = mgr.Start(quizID, 8, 10, []int{2, 2}, sub)
	require.NoError(t, err)
	assert.Equal(t, 2, mgr.Count())
}

func TestManagerDropsSessionAfterCompletion(t *testing.T) {
	mgr := NewManager(zerolog.Nop())
	sub := &fakeSubmitter{}
	quizID := uuid.New()

	ctrl, err := mgr.Start(quizID, 7, 10, []int{1}, sub)
	require.NoError(t, err)
	// Override the real-time timer for the test run.
	_, err = ctrl.RecordAnswer(context.Background(), intp(0))
	require.NoError(t, err)

	_, ok := mgr.Get(quizID, 7)
	assert.False(t, ok)

	// The slot is free again for a fresh session.
	_, err = mgr.Start(quizID, 7, 10, []int{1}, sub)
	require.NoError(t, err)
}

func TestManagerAbortAll(t *testing.T) {
	mgr := NewManager(zerolog.Nop())
	sub := &fakeSubmitter{}

	c1, err := mgr.Start(uuid.New(), 1, 10, []int{2}, sub)
	require.NoError(t, err)
	c2, err := mgr.Start(uuid.New(), 2, 10, []int{2}, sub)
	require.NoError(t, err)

	mgr.AbortAll(errors.New("shutdown"))

	assert.Equal(t, StateErrored, c1.State())
	assert.Equal(t, StateErrored, c2.State())
	assert.Equal(t, 0, mgr.Count())
}
