package sqlstore

import (
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/codewandler/esc-go/core/es"
)

const (
	infoQuery = "SELECT state, version FROM esc_streams WHERE name = $1"
	lockQuery = "SELECT state, version FROM esc_streams WHERE name = $1 FOR UPDATE"
)

func newMockBackend(t *testing.T) (*Backend, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	b, err := Open(t.Context(), Config{DB: db, Dialect: Postgres, SkipMigrations: true})
	require.NoError(t, err)
	return b, mock
}

func streamRow(state, version int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"state", "version"}).AddRow(state, version)
}

func TestMock_InfoError(t *testing.T) {
	b, mock := newMockBackend(t)
	boom := errors.New("connection reset")

	mock.ExpectQuery(regexp.QuoteMeta(infoQuery)).WithArgs("orders-1").WillReturnError(boom)

	_, err := b.Info(t.Context(), "orders-1")
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMock_InfoMissing(t *testing.T) {
	b, mock := newMockBackend(t)

	mock.ExpectQuery(regexp.QuoteMeta(infoQuery)).WithArgs("orders-1").WillReturnRows(sqlmock.NewRows([]string{"state", "version"}))

	info, err := b.Info(t.Context(), "orders-1")
	require.NoError(t, err)
	require.False(t, info.Exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMock_InvalidState(t *testing.T) {
	b, mock := newMockBackend(t)

	mock.ExpectQuery(regexp.QuoteMeta(infoQuery)).WithArgs("orders-1").WillReturnRows(streamRow(7, 0))

	_, err := b.Info(t.Context(), "orders-1")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMock_CreateExists(t *testing.T) {
	b, mock := newMockBackend(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO esc_streams")).
		WithArgs("orders-1").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	mock.ExpectQuery(regexp.QuoteMeta(infoQuery)).WithArgs("orders-1").WillReturnRows(streamRow(0, 2))

	err := b.Create(t.Context(), es.MustSimpleStreamID("orders-1"))
	require.ErrorIs(t, err, es.ErrBackendStreamExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMock_CreateHardDeleted(t *testing.T) {
	b, mock := newMockBackend(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO esc_streams")).
		WithArgs("orders-1").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectQuery(regexp.QuoteMeta(infoQuery)).WithArgs("orders-1").WillReturnRows(streamRow(int64(es.StreamHardDeleted), 0))

	err := b.Create(t.Context(), es.MustSimpleStreamID("orders-1"))
	var deleted *es.BackendDeletedError
	require.ErrorAs(t, err, &deleted)
	require.Equal(t, es.StreamHardDeleted, deleted.State)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMock_AppendMissingStream(t *testing.T) {
	b, mock := newMockBackend(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).WithArgs("orders-1").WillReturnRows(sqlmock.NewRows([]string{"state", "version"}))
	mock.ExpectRollback()

	_, err := b.Append(t.Context(), "orders-1", es.AnyVersion, []es.Record{record("a")})
	require.ErrorIs(t, err, es.ErrBackendStreamNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMock_AppendWrongVersion(t *testing.T) {
	b, mock := newMockBackend(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).WithArgs("orders-1").WillReturnRows(streamRow(0, 3))
	mock.ExpectRollback()

	_, err := b.Append(t.Context(), "orders-1", es.MustExactVersion(2), []es.Record{record("a")})
	var conflict *es.BackendConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, int64(3), conflict.Actual)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMock_AppendRace(t *testing.T) {
	b, mock := newMockBackend(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).WithArgs("orders-1").WillReturnRows(streamRow(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO esc_events")).WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()
	mock.ExpectQuery(regexp.QuoteMeta(infoQuery)).WithArgs("orders-1").WillReturnRows(streamRow(0, 3))

	_, err := b.Append(t.Context(), "orders-1", es.MustExactVersion(2), []es.Record{record("a")})
	var conflict *es.BackendConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, int64(3), conflict.Actual)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMock_AppendCommitFails(t *testing.T) {
	b, mock := newMockBackend(t)
	boom := errors.New("disk full")
	r := record("a")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).WithArgs("orders-1").WillReturnRows(streamRow(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO esc_events")).
		WithArgs("orders-1", int64(0), r.EventID.String(), "Comment", "text/plain", []byte("a")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE esc_streams SET version = $1 WHERE name = $2")).
		WithArgs(int64(1), "orders-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(boom)

	_, err := b.Append(t.Context(), "orders-1", es.NoOrEmptyStream, []es.Record{r})
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMock_HardDeleteOfSoftDeleted(t *testing.T) {
	b, mock := newMockBackend(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).WithArgs("orders-1").WillReturnRows(streamRow(1, 4))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM esc_events WHERE stream_name = $1")).
		WithArgs("orders-1").
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE esc_streams SET state = $1, version = $2 WHERE name = $3")).
		WithArgs(int64(2), int64(0), "orders-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, b.Delete(t.Context(), "orders-1", es.AnyVersion, true))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMock_ReadScanError(t *testing.T) {
	b, mock := newMockBackend(t)

	mock.ExpectQuery(regexp.QuoteMeta(infoQuery)).WithArgs("orders-1").WillReturnRows(streamRow(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT event_number, event_id")).
		WithArgs("orders-1", int64(0), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"event_number", "event_id", "data_type", "mime_type", "data"}).
			AddRow(int64(0), "not-a-uuid", "Comment", "text/plain", []byte("a")))

	_, err := b.Read(t.Context(), "orders-1", 0, 10, es.Forward)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
