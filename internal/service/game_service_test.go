package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/classplay/classplay-backend/internal/config"
	"github.com/classplay/classplay-backend/internal/model"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGameService(t *testing.T) (*GameService, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewGameService(client, zerolog.Nop()), mr
}

func TestGameSubmitQueuesNormalizedScore(t *testing.T) {
	svc, mr := newTestGameService(t)

	err := svc.Submit(context.Background(), 42, 7, &model.SubmitGameScoreRequest{
		Type:   "game",
		Ref:    "mathtrail",
		Points: 37,
	})
	require.NoError(t, err)

	items, err := mr.List(config.WorkerKey.GameScoresQueue)
	require.NoError(t, err)
	require.Len(t, items, 1)

	var job GameScoreJob
	require.NoError(t, json.Unmarshal([]byte(items[0]), &job))
	assert.Equal(t, "mathtrail", job.SubjectRef)
	assert.Equal(t, 42, job.StudentID)
	assert.Equal(t, 7, job.ScopeID)
	assert.Equal(t, 370, job.Points) // raw 37 x catalog multiplier 10
	assert.False(t, job.AchievedAt.IsZero())
}

func TestGameSubmitAcceptsLevelSuffix(t *testing.T) {
	svc, mr := newTestGameService(t)

	err := svc.Submit(context.Background(), 42, 7, &model.SubmitGameScoreRequest{
		Type:   "game",
		Ref:    "mathtrail-lv3",
		Points: 10,
	})
	require.NoError(t, err)

	items, err := mr.List(config.WorkerKey.GameScoresQueue)
	require.NoError(t, err)
	require.Len(t, items, 1)

	var job GameScoreJob
	require.NoError(t, json.Unmarshal([]byte(items[0]), &job))
	// Level suffix is kept in the ref so each level ranks separately.
	assert.Equal(t, "mathtrail-lv3", job.SubjectRef)
}

func TestGameSubmitRejectsUnknownGame(t *testing.T) {
	svc, mr := newTestGameService(t)

	err := svc.Submit(context.Background(), 42, 7, &model.SubmitGameScoreRequest{
		Type:   "game",
		Ref:    "no-such-game",
		Points: 10,
	})
	assert.ErrorIs(t, err, ErrUnknownGame)
	assert.False(t, mr.Exists(config.WorkerKey.GameScoresQueue))
}
