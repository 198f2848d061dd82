package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/classplay/classplay-backend/internal/config"
	"github.com/classplay/classplay-backend/internal/model"
	"github.com/classplay/classplay-backend/internal/service"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	mu     sync.Mutex
	err    error
	scores []model.LedgerEntry
}

func (f *fakeSink) RecordScore(ctx context.Context, subject model.SubjectKey, scopeID, studentID, points int, achievedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.scores = append(f.scores, model.LedgerEntry{
		Subject: subject, ScopeID: scopeID, StudentID: studentID,
		BestPoints: points, AchievedAt: achievedAt,
	})
	return nil
}

func (f *fakeSink) recorded() []model.LedgerEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.LedgerEntry, len(f.scores))
	copy(out, f.scores)
	return out
}

func enqueueJob(t *testing.T, client *redis.Client, job service.GameScoreJob) {
	t.Helper()
	raw, err := json.Marshal(job)
	require.NoError(t, err)
	require.NoError(t, client.RPush(context.Background(), config.WorkerKey.GameScoresQueue, raw).Err())
}

func TestScoreWorkerDrainsQueueOnShutdown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	sink := &fakeSink{}
	w := NewScoreWorker(sink, client, zerolog.Nop())

	now := time.Now().UTC().Truncate(time.Second)
	enqueueJob(t, client, service.GameScoreJob{SubjectRef: "mathtrail", ScopeID: 7, StudentID: 1, Points: 300, AchievedAt: now})
	enqueueJob(t, client, service.GameScoreJob{SubjectRef: "wordhunt-lv2", ScopeID: 7, StudentID: 2, Points: 150, AchievedAt: now})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	// Let the worker pop both jobs into its batch, then shut down; the
	// drain flush must land them.
	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not stop")
	}

	scores := sink.recorded()
	require.Len(t, scores, 2)
	assert.Equal(t, model.SubjectKey{Type: model.SubjectGame, Ref: "mathtrail"}, scores[0].Subject)
	assert.Equal(t, 300, scores[0].BestPoints)
	assert.Equal(t, model.SubjectKey{Type: model.SubjectGame, Ref: "wordhunt-lv2"}, scores[1].Subject)
	assert.Equal(t, 2, scores[1].StudentID)
}

func TestScoreWorkerRequeuesFailedJobs(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	sink := &fakeSink{err: errors.New("ledger down")}
	w := NewScoreWorker(sink, client, zerolog.Nop())

	enqueueJob(t, client, service.GameScoreJob{SubjectRef: "mathtrail", ScopeID: 7, StudentID: 1, Points: 300, AchievedAt: time.Now()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not stop")
	}

	// The failed job must be back on the queue for a later pass.
	items, err := mr.List(config.WorkerKey.GameScoresQueue)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Empty(t, sink.recorded())
}

func TestScoreWorkerRequeuesDuringShutdownFlush(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	sink := &fakeSink{err: errors.New("ledger down")}
	w := NewScoreWorker(sink, client, zerolog.Nop())

	// A flush running under an already-cancelled context must still get the
	// failed job back on the queue.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	job := &service.GameScoreJob{SubjectRef: "mathtrail", ScopeID: 7, StudentID: 1, Points: 300, AchievedAt: time.Now()}
	w.flush(ctx, []*service.GameScoreJob{job})

	items, err := mr.List(config.WorkerKey.GameScoresQueue)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestScoreWorkerSkipsMalformedPayload(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	sink := &fakeSink{}
	w := NewScoreWorker(sink, client, zerolog.Nop())

	require.NoError(t, client.RPush(context.Background(), config.WorkerKey.GameScoresQueue, "not json").Err())
	enqueueJob(t, client, service.GameScoreJob{SubjectRef: "memorymix", ScopeID: 7, StudentID: 3, Points: 50, AchievedAt: time.Now()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not stop")
	}

	scores := sink.recorded()
	require.Len(t, scores, 1)
	assert.Equal(t, "memorymix", scores[0].Subject.Ref)
}
