package calls

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var callCols = []string{"id", "session_id", "caller_id", "caller_name", "agent_id", "status", "start_time", "end_time", "duration"}

func newMockRepo(t *testing.T) (*PostgresRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepo(db), mock
}

func pendingRow(start time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(callCols).AddRow("id1", "s1", "caller_7", "Anonymous", nil, "pending", start, nil, nil)
}

func TestPostgresAccept_ConsumesQuotaInTx(t *testing.T) {
	repo, mock := newMockRepo(t)
	start := time.Unix(1700000000, 0).UTC()
	day := QuotaDay(start)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM calls WHERE session_id = $1 FOR UPDATE")).
		WithArgs("s1").
		WillReturnRows(pendingRow(start))
	mock.ExpectQuery("INSERT INTO daily_call_quota").
		WithArgs(day, 10).
		WillReturnRows(sqlmock.NewRows([]string{"accepted"}).AddRow(4))
	mock.ExpectExec("UPDATE calls SET status").
		WithArgs("id1", StatusAccepted, "agent_3").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, err := repo.Accept(context.Background(), "s1", "agent_3", day, 10)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, c.Status)
	assert.Equal(t, "agent_3", c.AgentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAccept_QuotaExceededRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)
	start := time.Unix(1700000000, 0).UTC()
	day := QuotaDay(start)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WithArgs("s1").WillReturnRows(pendingRow(start))
	mock.ExpectQuery("INSERT INTO daily_call_quota").
		WithArgs(day, 10).
		WillReturnRows(sqlmock.NewRows([]string{"accepted"}))
	mock.ExpectRollback()

	_, err := repo.Accept(context.Background(), "s1", "agent_3", day, 10)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAccept_NotPending(t *testing.T) {
	repo, mock := newMockRepo(t)
	start := time.Unix(1700000000, 0).UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(callCols).AddRow("id1", "s1", "caller_7", "A", "agent_1", "accepted", start, nil, nil))
	mock.ExpectRollback()

	_, err := repo.Accept(context.Background(), "s1", "agent_3", QuotaDay(start), 10)
	assert.ErrorIs(t, err, ErrNotPending)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAccept_Missing(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WithArgs("s9").WillReturnRows(sqlmock.NewRows(callCols))
	mock.ExpectRollback()

	_, err := repo.Accept(context.Background(), "s9", "agent_3", time.Now(), 10)
	assert.ErrorIs(t, err, ErrCallNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEnd_StampsDuration(t *testing.T) {
	repo, mock := newMockRepo(t)
	start := time.Unix(1700000000, 0).UTC()
	at := start.Add(61*time.Second + 500*time.Millisecond)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(callCols).AddRow("id1", "s1", "caller_7", "A", "agent_3", "accepted", start, nil, nil))
	mock.ExpectExec("UPDATE calls SET status").
		WithArgs("id1", StatusEnded, at, 61).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, changed, err := repo.End(context.Background(), "s1", at)
	require.NoError(t, err)
	assert.True(t, changed)
	require.NotNil(t, c.DurationSeconds)
	assert.Equal(t, 61, *c.DurationSeconds)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEnd_NoopOnEnded(t *testing.T) {
	repo, mock := newMockRepo(t)
	start := time.Unix(1700000000, 0).UTC()
	end := start.Add(time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(callCols).AddRow("id1", "s1", "caller_7", "A", "agent_3", "ended", start, end, 60))
	mock.ExpectCommit()

	c, changed, err := repo.End(context.Background(), "s1", end.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)
	require.NotNil(t, c.EndTime)
	assert.True(t, c.EndTime.Equal(end))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreate_DuplicateSession(t *testing.T) {
	repo, mock := newMockRepo(t)
	start := time.Unix(1700000000, 0).UTC()

	mock.ExpectExec("INSERT INTO calls").
		WithArgs("id1", "s1", "caller_7", "Anonymous", StatusPending, start).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), Call{
		ID: "id1", SessionID: "s1", CallerID: "caller_7", CallerName: "Anonymous",
		Status: StatusPending, StartTime: start,
	})
	assert.True(t, errors.Is(err, ErrSessionExists))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresList_BuildsFilteredQuery(t *testing.T) {
	repo, mock := newMockRepo(t)
	start := time.Unix(1700000000, 0).UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM calls WHERE status = $1 ORDER BY start_time DESC LIMIT 5")).
		WithArgs(StatusPending).
		WillReturnRows(pendingRow(start))

	got, err := repo.List(context.Background(), ListQuery{Status: StatusPending, Limit: 5})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].SessionID)
	assert.Nil(t, got[0].EndTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQuotaUsed_MissingRowIsZero(t *testing.T) {
	repo, mock := newMockRepo(t)
	day := QuotaDay(time.Unix(1700000000, 0))

	mock.ExpectQuery("SELECT accepted FROM daily_call_quota").
		WithArgs(day).
		WillReturnRows(sqlmock.NewRows([]string{"accepted"}))

	n, err := repo.QuotaUsed(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
