package scoring

import (
	"testing"

	"github.com/classplay/classplay-backend/internal/model"
	"github.com/stretchr/testify/assert"
)

func twoQuestionQuiz() []model.Question {
	return []model.Question{
		{OrderNum: 0, QuestionText: "2+2?", Options: []string{"3", "4", "5"}, CorrectIndex: 1},
		{OrderNum: 1, QuestionText: "Capital of France?", Options: []string{"Paris", "Lyon"}, CorrectIndex: 0},
	}
}

func TestQuestionPointsBounds(t *testing.T) {
	base, limit := 100, 10

	// Instant answer hits the cap, last-second answer earns exactly base.
	assert.Equal(t, 150, QuestionPoints(base, limit, limit))
	assert.Equal(t, 100, QuestionPoints(base, 0, limit))

	// Monotone in remaining time.
	prev := 0
	for remaining := 0; remaining <= limit; remaining++ {
		p := QuestionPoints(base, remaining, limit)
		assert.GreaterOrEqual(t, p, prev)
		assert.GreaterOrEqual(t, p, base)
		assert.LessOrEqual(t, p, base+base/TimeBonusDivisor)
		prev = p
	}

	// Out-of-range remaining values are clamped, not amplified.
	assert.Equal(t, QuestionPoints(base, limit, limit), QuestionPoints(base, limit+5, limit))
	assert.Equal(t, QuestionPoints(base, 0, limit), QuestionPoints(base, -3, limit))
}

func TestGradeAnsweredAndTimedOut(t *testing.T) {
	// Q1 answered correctly with 3s remaining, Q2 timed out.
	answers := []model.AnswerRecord{
		{QuestionIndex: 0, SelectedIndex: 1, TimeTakenSec: 7},
		{QuestionIndex: 1, SelectedIndex: model.NoAnswerIndex, TimeTakenSec: 10},
	}

	result := Grade(twoQuestionQuiz(), answers, 100, 10)

	assert.Equal(t, 1, result.CorrectCount)
	assert.Equal(t, QuestionPoints(100, 3, 10), result.TotalPoints)
	assert.Equal(t, []bool{true, false}, result.PerAnswer)
	assert.True(t, answers[1].TimedOut(10))
	assert.False(t, answers[0].TimedOut(10))
}

func TestGradeWrongAnswerScoresZero(t *testing.T) {
	answers := []model.AnswerRecord{
		{QuestionIndex: 0, SelectedIndex: 0, TimeTakenSec: 1},
		{QuestionIndex: 1, SelectedIndex: 1, TimeTakenSec: 1},
	}

	result := Grade(twoQuestionQuiz(), answers, 100, 10)

	assert.Equal(t, 0, result.CorrectCount)
	assert.Equal(t, 0, result.TotalPoints)
}

func TestGradeSentinelNeverMatchesAnOption(t *testing.T) {
	questions := []model.Question{
		{Options: []string{"a", "b"}, CorrectIndex: 0},
	}
	answers := []model.AnswerRecord{
		{QuestionIndex: 0, SelectedIndex: model.NoAnswerIndex, TimeTakenSec: 0},
	}

	result := Grade(questions, answers, 100, 10)
	assert.Equal(t, 0, result.CorrectCount)
}

func TestGradeIsDeterministic(t *testing.T) {
	answers := []model.AnswerRecord{
		{QuestionIndex: 0, SelectedIndex: 1, TimeTakenSec: 4},
		{QuestionIndex: 1, SelectedIndex: 0, TimeTakenSec: 9},
	}

	first := Grade(twoQuestionQuiz(), answers, 100, 10)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Grade(twoQuestionQuiz(), answers, 100, 10))
	}
}

func TestGamePoints(t *testing.T) {
	assert.Equal(t, 300, GamePoints(30, 10))
	assert.Equal(t, 0, GamePoints(-5, 10))
	assert.Equal(t, 0, GamePoints(30, -1))
	assert.Equal(t, 0, GamePoints(0, 10))
}
