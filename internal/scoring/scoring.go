// Package scoring contains the pure scoring rules shared by quiz grading
// and mini-game score normalization. Nothing here touches storage or time:
// the same inputs always produce the same result.
package scoring

import (
	"github.com/classplay/classplay-backend/internal/model"
)

// TimeBonusDivisor controls how steep the speed bonus is. With a divisor of
// 2 a full-speed answer earns 1.5x the base points and a last-second answer
// earns exactly the base.
const TimeBonusDivisor = 2

// QuestionPoints returns the points awarded for one correctly answered
// question. remainingSec is how many seconds were left on the countdown
// when the answer was recorded. The result is monotone in remainingSec,
// never below base and never above base + base/TimeBonusDivisor.
func QuestionPoints(base, remainingSec, perQuestionSec int) int {
	if remainingSec < 0 {
		remainingSec = 0
	}
	if remainingSec > perQuestionSec {
		remainingSec = perQuestionSec
	}
	if perQuestionSec <= 0 {
		return base
	}
	return base + base*remainingSec/(TimeBonusDivisor*perQuestionSec)
}

// Grade maps a full answer set onto an AttemptResult. Answers are matched
// to questions by position; a missing or sentinel selected index is wrong
// by definition. The session controller guarantees len(answers) equals
// len(questions) for completed attempts.
func Grade(questions []model.Question, answers []model.AnswerRecord, basePoints, perQuestionSec int) model.AttemptResult {
	result := model.AttemptResult{
		PerAnswer: make([]bool, len(answers)),
	}

	for i, ans := range answers {
		if i >= len(questions) {
			break
		}
		correct := ans.SelectedIndex != model.NoAnswerIndex &&
			ans.SelectedIndex == questions[i].CorrectIndex
		result.PerAnswer[i] = correct
		if !correct {
			continue
		}
		result.CorrectCount++
		remaining := perQuestionSec - ans.TimeTakenSec
		result.TotalPoints += QuestionPoints(basePoints, remaining, perQuestionSec)
	}

	return result
}

// GamePoints normalizes a mini-game raw score into ledger points. Games
// apply their own fixed multiplier; the result is clamped non-negative so a
// buggy client can never produce a negative ledger entry.
func GamePoints(rawScore, multiplier int) int {
	if rawScore < 0 || multiplier < 0 {
		return 0
	}
	return rawScore * multiplier
}
