package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/classplay/classplay-backend/internal/config"
	"github.com/classplay/classplay-backend/internal/model"
	"github.com/classplay/classplay-backend/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	ScoreBatchSize    = 50
	ScoreBatchTimeout = 2 * time.Second
	ScorePollTimeout  = 1 * time.Second
)

// ScoreSink receives drained game scores. The leaderboard service
// satisfies it.
type ScoreSink interface {
	RecordScore(ctx context.Context, subject model.SubjectKey, scopeID, studentID, points int, achievedAt time.Time) error
}

// ScoreWorker drains queued mini-game scores from Redis into the ledger.
// Scores are idempotent best-max upserts, so a requeued job replayed after
// a crash cannot lower anyone's standing.
type ScoreWorker struct {
	sink ScoreSink
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewScoreWorker creates a new ScoreWorker.
func NewScoreWorker(sink ScoreSink, rdb *redis.Client, log zerolog.Logger) *ScoreWorker {
	return &ScoreWorker{
		sink: sink,
		rdb:  rdb,
		log:  log.With().Str("component", "score_worker").Logger(),
	}
}

// Start runs the drain loop until ctx is canceled, then flushes whatever
// is still batched before returning.
func (w *ScoreWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ScoreWorker started")

	batch := make([]*service.GameScoreJob, 0, ScoreBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= ScoreBatchSize || time.Since(lastFlush) >= ScoreBatchTimeout) {

			w.flush(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flush(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, ScorePollTimeout, config.WorkerKey.GameScoresQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var job service.GameScoreJob
			if err := json.Unmarshal([]byte(item[1]), &job); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &job)
		}
	}
}

// flush lands every batched job in the ledger. A job that fails goes back
// on the queue for a later pass.
func (w *ScoreWorker) flush(ctx context.Context, batch []*service.GameScoreJob) {
	for _, job := range batch {
		subject := model.SubjectKey{Type: model.SubjectGame, Ref: job.SubjectRef}
		if err := w.sink.RecordScore(ctx, subject, job.ScopeID, job.StudentID, job.Points, job.AchievedAt); err != nil {
			w.log.Error().Err(err).
				Str("ref", job.SubjectRef).
				Int("student_id", job.StudentID).
				Msg("record score failed, requeueing")
			w.requeue(job)
		}
	}
}

// requeue pushes a failed job back for a later pass. It runs on the
// background context so a flush racing shutdown can still return the job
// to the queue.
func (w *ScoreWorker) requeue(job *service.GameScoreJob) {
	raw, err := json.Marshal(job)
	if err != nil {
		w.log.Error().Err(err).Str("ref", job.SubjectRef).Msg("requeue marshal failed, score dropped")
		return
	}
	if err := w.rdb.RPush(context.Background(), config.WorkerKey.GameScoresQueue, raw).Err(); err != nil {
		w.log.Error().Err(err).
			Str("ref", job.SubjectRef).
			Int("student_id", job.StudentID).
			Msg("requeue failed, score dropped")
	}
}
