package sqldb_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x-research-team/dtx-query/query"
	"github.com/x-research-team/dtx-query/session/sqldb"
)

func newMock(t *testing.T, opts ...sqldb.Option) (*sqldb.Session, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return sqldb.New(db, opts...), mock
}

// Тест: ошибка драйвера доставляется как ExecutionError.
func TestSQLMock_QueryError(t *testing.T) {
	t.Parallel()

	s, mock := newMock(t)
	driverErr := errors.New("connection refused")
	mock.ExpectQuery("SELECT id FROM users").WillReturnError(driverErr)

	_, err := query.NewSelectUnique(query.NewQv("SELECT id FROM users"), query.CountFromRow).Select(context.Background(), s)

	var execErr *query.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.ErrorIs(t, err, driverErr)
	assert.Equal(t, "SELECT id FROM users", execErr.Statement)
}

// Тест: запрос без строк выполняется через Exec и сообщает количество строк.
func TestSQLMock_Exec(t *testing.T) {
	t.Parallel()

	s, mock := newMock(t)
	mock.ExpectExec("DELETE FROM users WHERE id = ?").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := query.NewDeleteUnique(query.NewQv("DELETE FROM users WHERE id = ?", int64(7))).DeleteUnique(context.Background(), s)

	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RowsAffected)
	assert.Empty(t, res.Rows)
}

// Тест: страница запрашивается окном с плейсхолдерами выбранного синтаксиса.
func TestSQLMock_SinglePage_DollarPlaceholders(t *testing.T) {
	t.Parallel()

	s, mock := newMock(t, sqldb.WithPlaceholder(sqldb.DollarPlaceholder))
	mock.ExpectQuery("SELECT * FROM (SELECT id FROM users WHERE org = $1 ORDER BY id\n) AS dtx_page LIMIT $2 OFFSET $3").
		WithArgs("acme", int64(3), int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(2)).AddRow(int64(3)))

	res, paging, err := s.ExecuteSinglePage(context.Background(), "SELECT id FROM users WHERE org = $1 ORDER BY id;", []any{"acme"}, 2, query.StartPageState())

	require.NoError(t, err)
	assert.Len(t, res.Rows, 2, "Лишняя строка должна быть отрезана")
	assert.True(t, paging.HasMorePages)
}

// Тест: размер страницы по умолчанию берется из опции.
func TestSQLMock_SinglePage_DefaultPageSize(t *testing.T) {
	t.Parallel()

	s, mock := newMock(t, sqldb.WithDefaultPageSize(10))
	mock.ExpectQuery("SELECT * FROM (SELECT id FROM users\n) AS dtx_page LIMIT ? OFFSET ?").
		WithArgs(int64(11), int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	res, paging, err := s.ExecuteSinglePage(context.Background(), "SELECT id FROM users", nil, 0, query.StartPageState())

	require.NoError(t, err)
	assert.Len(t, res.Rows, 1)
	assert.False(t, paging.HasMorePages)
}

// Тест: чужой токен страницы отклоняется без обращения к базе.
func TestSQLMock_SinglePage_InvalidState(t *testing.T) {
	t.Parallel()

	s, _ := newMock(t)

	_, _, err := s.ExecuteSinglePage(context.Background(), "SELECT id FROM users", nil, 2, query.NewPageState([]byte("x")))

	assert.Error(t, err)
}

// Тест: ошибка чтения строки в потоке доступна через Err.
func TestSQLMock_IterRowError(t *testing.T) {
	t.Parallel()

	s, mock := newMock(t)
	rowErr := errors.New("обрыв соединения")
	mock.ExpectQuery("SELECT id FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(2)).RowError(1, rowErr))

	it, err := s.ExecuteIter(context.Background(), "SELECT id FROM users", nil, 0)
	require.NoError(t, err)

	count := 0
	for it.Next() {
		count++
	}

	assert.Equal(t, 1, count)
	assert.ErrorIs(t, it.Err(), rowErr)
	require.NoError(t, it.Close())
	require.NoError(t, it.Close())
}

// Тест: ошибка чтения строки при полной выборке.
func TestSQLMock_UnpagedRowError(t *testing.T) {
	t.Parallel()

	s, mock := newMock(t)
	rowErr := errors.New("обрыв соединения")
	mock.ExpectQuery("SELECT id FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)).RowError(0, rowErr))

	_, err := s.ExecuteUnpaged(context.Background(), "SELECT id FROM users", nil)

	assert.ErrorIs(t, err, rowErr)
}
