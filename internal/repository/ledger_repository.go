package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/classplay/classplay-backend/internal/model"
	"github.com/jackc/pgx/v5"
)

// LedgerRepository stores best-score-per-student ledger entries across
// the daily, weekly and all-time buckets.
type LedgerRepository struct {
	db DB
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(db DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

const ledgerUpsertSQL = `INSERT INTO ledger_entries (subject_type, subject_ref, scope_id, student_id, bucket, best_points, achieved_at)
	 VALUES ($1, $2, $3, $4, $5, $6, $7)
	 ON CONFLICT (subject_type, subject_ref, scope_id, student_id, bucket)
	 DO UPDATE SET best_points = EXCLUDED.best_points, achieved_at = EXCLUDED.achieved_at
	 WHERE ledger_entries.best_points < EXCLUDED.best_points`

// RecordScore upserts a score into all three window buckets for the
// subject, committed as one transaction so no bucket can land without the
// others. Each upsert keeps the existing entry unless the new score is
// strictly higher, so re-delivery of the same score is harmless.
func (r *LedgerRepository) RecordScore(ctx context.Context, subject model.SubjectKey, scopeID, studentID, points int, achievedAt time.Time) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := r.recordScore(ctx, tx, subject, scopeID, studentID, points, achievedAt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// RecordScoreTx is RecordScore running on a caller-owned transaction.
func (r *LedgerRepository) RecordScoreTx(ctx context.Context, tx DBTX, subject model.SubjectKey, scopeID, studentID, points int, achievedAt time.Time) error {
	return r.recordScore(ctx, tx, subject, scopeID, studentID, points, achievedAt)
}

func (r *LedgerRepository) recordScore(ctx context.Context, db DBTX, subject model.SubjectKey, scopeID, studentID, points int, achievedAt time.Time) error {
	for _, bucket := range model.BucketsFor(achievedAt) {
		_, err := db.Exec(ctx, ledgerUpsertSQL,
			subject.Type, subject.Ref, scopeID, studentID, bucket, points, achievedAt)
		if err != nil {
			return fmt.Errorf("upsert bucket %s: %w", bucket, err)
		}
	}
	return nil
}

// TopN returns the highest-ranked entries of a bucket, joined with
// student names. Ties on points are broken by earliest achievement,
// then by student ID, so the ordering is stable across reads.
func (r *LedgerRepository) TopN(ctx context.Context, subject model.SubjectKey, scopeID int, bucket string, limit int) ([]model.RankedEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT le.student_id, s.name, le.best_points
		 FROM ledger_entries le
		 JOIN students s ON s.id = le.student_id
		 WHERE le.subject_type = $1 AND le.subject_ref = $2 AND le.scope_id = $3 AND le.bucket = $4
		 ORDER BY le.best_points DESC, le.achieved_at ASC, le.student_id ASC
		 LIMIT $5`,
		subject.Type, subject.Ref, scopeID, bucket, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.RankedEntry
	var prevPoints int
	rank := 0
	for rows.Next() {
		var e model.RankedEntry
		if err := rows.Scan(&e.StudentID, &e.Name, &e.BestPoints); err != nil {
			return nil, err
		}
		// dense ranking: equal points share a rank
		if rank == 0 || e.BestPoints != prevPoints {
			rank++
		}
		e.Rank = rank
		prevPoints = e.BestPoints
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RankOf returns the student's dense rank and best points in a bucket,
// or nil when they have no entry there.
func (r *LedgerRepository) RankOf(ctx context.Context, subject model.SubjectKey, scopeID, studentID int, bucket string) (*model.OwnRank, error) {
	var points int
	err := r.db.QueryRow(ctx,
		`SELECT best_points FROM ledger_entries
		 WHERE subject_type = $1 AND subject_ref = $2 AND scope_id = $3 AND bucket = $4 AND student_id = $5`,
		subject.Type, subject.Ref, scopeID, bucket, studentID).Scan(&points)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var ahead int
	err = r.db.QueryRow(ctx,
		`SELECT COUNT(DISTINCT best_points) FROM ledger_entries
		 WHERE subject_type = $1 AND subject_ref = $2 AND scope_id = $3 AND bucket = $4 AND best_points > $5`,
		subject.Type, subject.Ref, scopeID, bucket, points).Scan(&ahead)
	if err != nil {
		return nil, err
	}
	return &model.OwnRank{Rank: ahead + 1, BestPoints: points}, nil
}

// DeleteScope wipes every bucket of a subject within one scope. Deleting
// an already-empty scope is a no-op, so repeated resets are safe.
func (r *LedgerRepository) DeleteScope(ctx context.Context, subject model.SubjectKey, scopeID int) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM ledger_entries
		 WHERE subject_type = $1 AND subject_ref = $2 AND scope_id = $3`,
		subject.Type, subject.Ref, scopeID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
