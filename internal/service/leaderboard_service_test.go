package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/classplay/classplay-backend/internal/config"
	"github.com/classplay/classplay-backend/internal/model"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLedgerStore struct {
	mu        sync.Mutex
	topNCalls int
	top       []model.RankedEntry
	ranks     map[int]*model.OwnRank
	recorded  []model.LedgerEntry
	deleted   int64
}

func (f *fakeLedgerStore) TopN(ctx context.Context, subject model.SubjectKey, scopeID int, bucket string, limit int) ([]model.RankedEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topNCalls++
	if len(f.top) > limit {
		return f.top[:limit], nil
	}
	return f.top, nil
}

func (f *fakeLedgerStore) RankOf(ctx context.Context, subject model.SubjectKey, scopeID, studentID int, bucket string) (*model.OwnRank, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ranks[studentID], nil
}

func (f *fakeLedgerStore) RecordScore(ctx context.Context, subject model.SubjectKey, scopeID, studentID, points int, achievedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, model.LedgerEntry{
		Subject: subject, ScopeID: scopeID, StudentID: studentID,
		BestPoints: points, AchievedAt: achievedAt,
	})
	return nil
}

func (f *fakeLedgerStore) DeleteScope(ctx context.Context, subject model.SubjectKey, scopeID int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleted, nil
}

func newTestLeaderboard(t *testing.T) (*LeaderboardService, *fakeLedgerStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cfg := &config.Config{
		LeaderboardTopN:     3,
		LeaderboardCacheTTL: time.Minute,
	}
	ledger := &fakeLedgerStore{
		top: []model.RankedEntry{
			{Rank: 1, StudentID: 1, Name: "Ayu", BestPoints: 450},
			{Rank: 2, StudentID: 2, Name: "Budi", BestPoints: 300},
			{Rank: 2, StudentID: 3, Name: "Citra", BestPoints: 300},
		},
		ranks: map[int]*model.OwnRank{
			9: {Rank: 5, BestPoints: 120},
		},
	}
	return NewLeaderboardService(ledger, client, cfg, zerolog.Nop()), ledger, mr
}

var testSubject = model.SubjectKey{Type: model.SubjectGame, Ref: "mathtrail"}

func TestRankingIncludesOwnRankOutsideTop(t *testing.T) {
	svc, _, _ := newTestLeaderboard(t)

	studentID := 9
	view, err := svc.Ranking(context.Background(), testSubject, 7, model.WindowAllTime, &studentID)
	require.NoError(t, err)

	assert.Len(t, view.Top, 3)
	require.NotNil(t, view.You)
	assert.Equal(t, 5, view.You.Rank)
	assert.Equal(t, 120, view.You.BestPoints)
}

func TestRankingUnrankedStudentHasNoYou(t *testing.T) {
	svc, _, _ := newTestLeaderboard(t)

	studentID := 777
	view, err := svc.Ranking(context.Background(), testSubject, 7, model.WindowDaily, &studentID)
	require.NoError(t, err)
	assert.Nil(t, view.You)
}

func TestRankingTopIsCached(t *testing.T) {
	svc, ledger, _ := newTestLeaderboard(t)
	ctx := context.Background()

	_, err := svc.Ranking(ctx, testSubject, 7, model.WindowAllTime, nil)
	require.NoError(t, err)
	_, err = svc.Ranking(ctx, testSubject, 7, model.WindowAllTime, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, ledger.topNCalls)
}

func TestRankingWindowsCacheSeparately(t *testing.T) {
	svc, ledger, _ := newTestLeaderboard(t)
	ctx := context.Background()

	_, err := svc.Ranking(ctx, testSubject, 7, model.WindowDaily, nil)
	require.NoError(t, err)
	_, err = svc.Ranking(ctx, testSubject, 7, model.WindowWeekly, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, ledger.topNCalls)
}

func TestRecordScoreInvalidatesCache(t *testing.T) {
	svc, ledger, _ := newTestLeaderboard(t)
	ctx := context.Background()

	_, err := svc.Ranking(ctx, testSubject, 7, model.WindowAllTime, nil)
	require.NoError(t, err)

	err = svc.RecordScore(ctx, testSubject, 7, 2, 500, time.Now())
	require.NoError(t, err)
	require.Len(t, ledger.recorded, 1)

	_, err = svc.Ranking(ctx, testSubject, 7, model.WindowAllTime, nil)
	require.NoError(t, err)

	// The second read must rebuild from storage.
	assert.Equal(t, 2, ledger.topNCalls)
}

func TestResetInvalidatesCache(t *testing.T) {
	svc, ledger, _ := newTestLeaderboard(t)
	ledger.deleted = 4
	ctx := context.Background()

	_, err := svc.Ranking(ctx, testSubject, 7, model.WindowAllTime, nil)
	require.NoError(t, err)

	removed, err := svc.Reset(ctx, testSubject, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(4), removed)

	_, err = svc.Ranking(ctx, testSubject, 7, model.WindowAllTime, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, ledger.topNCalls)
}

func TestRankingScopesCacheSeparately(t *testing.T) {
	svc, ledger, _ := newTestLeaderboard(t)
	ctx := context.Background()

	_, err := svc.Ranking(ctx, testSubject, 7, model.WindowAllTime, nil)
	require.NoError(t, err)
	_, err = svc.Ranking(ctx, testSubject, 8, model.WindowAllTime, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, ledger.topNCalls)
}
