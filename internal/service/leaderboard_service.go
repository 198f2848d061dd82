package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/classplay/classplay-backend/internal/config"
	"github.com/classplay/classplay-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// LedgerStore is the persistence surface the leaderboard needs.
type LedgerStore interface {
	TopN(ctx context.Context, subject model.SubjectKey, scopeID int, bucket string, limit int) ([]model.RankedEntry, error)
	RankOf(ctx context.Context, subject model.SubjectKey, scopeID, studentID int, bucket string) (*model.OwnRank, error)
	RecordScore(ctx context.Context, subject model.SubjectKey, scopeID, studentID, points int, achievedAt time.Time) error
	DeleteScope(ctx context.Context, subject model.SubjectKey, scopeID int) (int64, error)
}

// LeaderboardService assembles ranking views and owns the top-N cache.
type LeaderboardService struct {
	ledger LedgerStore
	rdb    *redis.Client
	cfg    *config.Config
	log    zerolog.Logger
}

// NewLeaderboardService creates a new LeaderboardService.
func NewLeaderboardService(ledger LedgerStore, rdb *redis.Client, cfg *config.Config, log zerolog.Logger) *LeaderboardService {
	return &LeaderboardService{
		ledger: ledger,
		rdb:    rdb,
		cfg:    cfg,
		log:    log.With().Str("component", "leaderboard_service").Logger(),
	}
}

// Ranking returns the top-N entries of a window plus, when studentID is
// given, that student's own placement even if it falls outside the top N.
// The top slice is cached briefly in Redis; the own-rank lookup always
// hits the database since it is a cheap two-row query.
func (s *LeaderboardService) Ranking(ctx context.Context, subject model.SubjectKey, scopeID int, window model.Window, studentID *int) (*model.RankingView, error) {
	bucket := window.Bucket(time.Now())

	top, err := s.cachedTop(ctx, subject, scopeID, bucket)
	if err != nil {
		return nil, fmt.Errorf("top entries: %w", err)
	}

	view := &model.RankingView{
		Subject: subject,
		Window:  window,
		Top:     top,
	}

	if studentID != nil {
		you, err := s.ledger.RankOf(ctx, subject, scopeID, *studentID, bucket)
		if err != nil {
			return nil, fmt.Errorf("own rank: %w", err)
		}
		view.You = you
	}

	return view, nil
}

func (s *LeaderboardService) cachedTop(ctx context.Context, subject model.SubjectKey, scopeID int, bucket string) ([]model.RankedEntry, error) {
	cacheKey := config.CacheKey.LeaderboardTopKey(subject.String(), strconv.Itoa(scopeID), bucket)

	cached, err := s.rdb.Get(ctx, cacheKey).Result()
	if err == nil {
		var top []model.RankedEntry
		if err := json.Unmarshal([]byte(cached), &top); err == nil {
			return top, nil
		}
		s.rdb.Del(ctx, cacheKey)
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Str("key", cacheKey).Msg("leaderboard cache read failed")
	}

	top, err := s.ledger.TopN(ctx, subject, scopeID, bucket, s.cfg.LeaderboardTopN)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(top); err == nil {
		if err := s.rdb.Set(ctx, cacheKey, data, s.cfg.LeaderboardCacheTTL).Err(); err != nil {
			s.log.Warn().Err(err).Str("key", cacheKey).Msg("leaderboard cache write failed")
		}
	}
	return top, nil
}

// RecordScore upserts a score into every window bucket and drops the
// affected cached snapshots so the next read sees it.
func (s *LeaderboardService) RecordScore(ctx context.Context, subject model.SubjectKey, scopeID, studentID, points int, achievedAt time.Time) error {
	if err := s.ledger.RecordScore(ctx, subject, scopeID, studentID, points, achievedAt); err != nil {
		return fmt.Errorf("record score: %w", err)
	}
	s.InvalidateSubject(ctx, subject, scopeID)
	return nil
}

// Reset wipes every ledger entry of a subject within one class scope.
// Returns the number of entries removed; resetting an empty board is a
// no-op, so teachers can safely press the button twice.
func (s *LeaderboardService) Reset(ctx context.Context, subject model.SubjectKey, scopeID int) (int64, error) {
	removed, err := s.ledger.DeleteScope(ctx, subject, scopeID)
	if err != nil {
		return 0, fmt.Errorf("delete scope: %w", err)
	}
	s.InvalidateSubject(ctx, subject, scopeID)

	s.log.Info().
		Str("subject", subject.String()).
		Int("scope_id", scopeID).
		Int64("removed", removed).
		Msg("Leaderboard reset")
	return removed, nil
}

// InvalidateSubject drops the cached top-N snapshots of the subject's
// currently-live buckets. Best effort; a stale snapshot expires on its
// own TTL anyway.
func (s *LeaderboardService) InvalidateSubject(ctx context.Context, subject model.SubjectKey, scopeID int) {
	scope := strconv.Itoa(scopeID)
	for _, bucket := range model.BucketsFor(time.Now()) {
		key := config.CacheKey.LeaderboardTopKey(subject.String(), scope, bucket)
		if err := s.rdb.Del(ctx, key).Err(); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("leaderboard cache invalidation failed")
		}
	}
}
