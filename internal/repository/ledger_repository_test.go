package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/classplay/classplay-backend/internal/model"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// upsertPattern pins the shape of the ledger upsert: the conflict key and
// the strictly-less guard that keeps a stored best score from ever being
// lowered. Weakening either clause fails these tests.
const upsertPattern = `INSERT INTO ledger_entries .+ ` +
	`ON CONFLICT \(subject_type, subject_ref, scope_id, student_id, bucket\) ` +
	`DO UPDATE SET best_points = EXCLUDED\.best_points, achieved_at = EXCLUDED\.achieved_at ` +
	`WHERE ledger_entries\.best_points < EXCLUDED\.best_points`

func newLedgerMock(t *testing.T) (pgxmock.PgxPoolIface, *LedgerRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewLedgerRepository(mock)
}

func TestLedgerRecordScoreUpsertsEveryBucketInOneTx(t *testing.T) {
	mock, repo := newLedgerMock(t)
	subject := model.SubjectKey{Type: model.SubjectQuiz, Ref: "a3f0"}
	// Wednesday 2026-01-07, ISO week 2.
	at := time.Date(2026, 1, 7, 15, 30, 0, 0, time.UTC)

	mock.ExpectBegin()
	for _, bucket := range []string{"d:20260107", "w:2026-W02", "all"} {
		mock.ExpectExec(upsertPattern).
			WithArgs(subject.Type, subject.Ref, 7, 42, bucket, 300, at).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	require.NoError(t, repo.RecordScore(context.Background(), subject, 7, 42, 300, at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRecordScoreRollsBackOnBucketFailure(t *testing.T) {
	mock, repo := newLedgerMock(t)
	subject := model.SubjectKey{Type: model.SubjectGame, Ref: "mathtrail"}
	at := time.Date(2026, 1, 7, 15, 30, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(upsertPattern).
		WithArgs(subject.Type, subject.Ref, 7, 42, "d:20260107", 300, at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(upsertPattern).
		WithArgs(subject.Type, subject.Ref, 7, 42, "w:2026-W02", 300, at).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.RecordScore(context.Background(), subject, 7, 42, 300, at)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "w:2026-W02")
	// No further upsert and no commit: the daily write rolls back with the rest.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerTopNDenseRanksTiedScores(t *testing.T) {
	mock, repo := newLedgerMock(t)
	subject := model.SubjectKey{Type: model.SubjectQuiz, Ref: "a3f0"}

	rows := pgxmock.NewRows([]string{"student_id", "name", "best_points"}).
		AddRow(3, "Raka", 150).
		AddRow(9, "Sinta", 150).
		AddRow(4, "Dewi", 100)
	mock.ExpectQuery(`ORDER BY le\.best_points DESC, le\.achieved_at ASC, le\.student_id ASC`).
		WithArgs(subject.Type, subject.Ref, 7, "all", 10).
		WillReturnRows(rows)

	entries, err := repo.TopN(context.Background(), subject, 7, "all", 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	// Students tied on points share a rank; the next score drops to rank 2.
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, 1, entries[1].Rank)
	assert.Equal(t, 2, entries[2].Rank)
	assert.Equal(t, "Sinta", entries[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRankOfCountsDistinctHigherScores(t *testing.T) {
	mock, repo := newLedgerMock(t)
	subject := model.SubjectKey{Type: model.SubjectQuiz, Ref: "a3f0"}

	mock.ExpectQuery(`SELECT best_points FROM ledger_entries`).
		WithArgs(subject.Type, subject.Ref, 7, "all", 42).
		WillReturnRows(pgxmock.NewRows([]string{"best_points"}).AddRow(100))
	mock.ExpectQuery(`SELECT COUNT\(DISTINCT best_points\) FROM ledger_entries`).
		WithArgs(subject.Type, subject.Ref, 7, "all", 100).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))

	own, err := repo.RankOf(context.Background(), subject, 7, 42, "all")
	require.NoError(t, err)
	require.NotNil(t, own)
	assert.Equal(t, 3, own.Rank)
	assert.Equal(t, 100, own.BestPoints)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRankOfNoEntryReturnsNil(t *testing.T) {
	mock, repo := newLedgerMock(t)
	subject := model.SubjectKey{Type: model.SubjectQuiz, Ref: "a3f0"}

	mock.ExpectQuery(`SELECT best_points FROM ledger_entries`).
		WithArgs(subject.Type, subject.Ref, 7, "all", 42).
		WillReturnError(pgx.ErrNoRows)

	own, err := repo.RankOf(context.Background(), subject, 7, 42, "all")
	require.NoError(t, err)
	assert.Nil(t, own)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerDeleteScopeIsKeyedBySubjectAndScope(t *testing.T) {
	mock, repo := newLedgerMock(t)
	subject := model.SubjectKey{Type: model.SubjectQuiz, Ref: "a3f0"}

	mock.ExpectExec(`DELETE FROM ledger_entries WHERE subject_type = \$1 AND subject_ref = \$2 AND scope_id = \$3`).
		WithArgs(subject.Type, subject.Ref, 7).
		WillReturnResult(pgxmock.NewResult("DELETE", 5))

	n, err := repo.DeleteScope(context.Background(), subject, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
