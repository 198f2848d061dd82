package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/classplay/classplay-backend/internal/config"
	"github.com/classplay/classplay-backend/internal/model"
	"github.com/classplay/classplay-backend/internal/scoring"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrUnknownGame is returned for a score submission naming a game that is
// not in the catalog.
var ErrUnknownGame = errors.New("unknown game")

// gameCatalog maps a game slug to its ledger point multiplier. Refs may
// carry a level suffix ("mathtrail-lv3"); the catalog is keyed by the base
// slug.
var gameCatalog = map[string]int{
	"mathtrail": 10,
	"wordhunt":  10,
	"memorymix": 5,
}

// GameScoreJob is the queue payload carrying one mini-game score from the
// HTTP surface to the persistence worker.
type GameScoreJob struct {
	SubjectRef string    `json:"subject_ref"`
	ScopeID    int       `json:"scope_id"`
	StudentID  int       `json:"student_id"`
	Points     int       `json:"points"`
	AchievedAt time.Time `json:"achieved_at"`
}

// GameService accepts mini-game score submissions and hands them to the
// background worker through Redis. Game scores are best-effort: the client
// gets an ack as soon as the job is queued.
type GameService struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewGameService creates a new GameService.
func NewGameService(rdb *redis.Client, log zerolog.Logger) *GameService {
	return &GameService{
		rdb: rdb,
		log: log.With().Str("component", "game_service").Logger(),
	}
}

// Submit validates a score submission against the game catalog, normalizes
// the raw score, and queues it for the persistence worker.
func (s *GameService) Submit(ctx context.Context, studentID, classID int, req *model.SubmitGameScoreRequest) error {
	base, _, _ := strings.Cut(req.Ref, "-lv")
	multiplier, ok := gameCatalog[base]
	if !ok {
		return ErrUnknownGame
	}

	job := GameScoreJob{
		SubjectRef: req.Ref,
		ScopeID:    classID,
		StudentID:  studentID,
		Points:     scoring.GamePoints(req.Points, multiplier),
		AchievedAt: time.Now().UTC(),
	}

	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.GameScoresQueue, raw).Err(); err != nil {
		return fmt.Errorf("enqueue score: %w", err)
	}

	s.log.Debug().
		Str("ref", req.Ref).
		Int("student_id", studentID).
		Int("points", job.Points).
		Msg("Game score queued")
	return nil
}
