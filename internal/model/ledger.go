package model

import (
	"fmt"
	"strings"
	"time"
)

// SubjectType distinguishes the two scorable activity families.
type SubjectType string

const (
	SubjectQuiz SubjectType = "quiz"
	SubjectGame SubjectType = "game"
)

// SubjectKey identifies a scorable activity: a quiz by ID or a mini-game by
// slug. Game refs may embed a level, e.g. "mathtrail-lv3".
type SubjectKey struct {
	Type SubjectType `json:"type"`
	Ref  string      `json:"ref"`
}

func (k SubjectKey) String() string {
	return fmt.Sprintf("%s:%s", k.Type, k.Ref)
}

// ParseSubjectKey parses "quiz:<id>" / "game:<slug>" back into a SubjectKey.
func ParseSubjectKey(s string) (SubjectKey, error) {
	typ, ref, ok := strings.Cut(s, ":")
	if !ok || ref == "" {
		return SubjectKey{}, fmt.Errorf("malformed subject key %q", s)
	}
	switch SubjectType(typ) {
	case SubjectQuiz, SubjectGame:
		return SubjectKey{Type: SubjectType(typ), Ref: ref}, nil
	default:
		return SubjectKey{}, fmt.Errorf("unknown subject type %q", typ)
	}
}

// LedgerEntry is one best-score row, keyed by
// (subject, scope, student, window bucket).
type LedgerEntry struct {
	Subject    SubjectKey `json:"subject"`
	ScopeID    int        `json:"scope_id"`
	StudentID  int        `json:"student_id"`
	Bucket     string     `json:"bucket"`
	BestPoints int        `json:"best_points"`
	AchievedAt time.Time  `json:"achieved_at"`
}

// RankedEntry is one row of a ranking view.
type RankedEntry struct {
	Rank       int    `json:"rank"`
	StudentID  int    `json:"student_id"`
	Name       string `json:"name"`
	BestPoints int    `json:"best_points"`
}

// OwnRank is the requester's own placement; absent when unranked.
type OwnRank struct {
	Rank       int `json:"rank"`
	BestPoints int `json:"best_points"`
}

// RankingView is a derived leaderboard snapshot: top N plus the requester's
// own rank, which is present even when they fall outside the top N.
type RankingView struct {
	Subject SubjectKey    `json:"subject"`
	Window  Window        `json:"window"`
	Top     []RankedEntry `json:"top"`
	You     *OwnRank      `json:"you,omitempty"`
}

// SubmitGameScoreRequest is the payload for a mini-game score submission.
type SubmitGameScoreRequest struct {
	Type   string `json:"type" binding:"required,oneof=game"`
	Ref    string `json:"ref" binding:"required,min=1,max=64"`
	Points int    `json:"points" binding:"min=0,max=1000000"`
	Meta   string `json:"meta" binding:"omitempty,max=512"`
}
