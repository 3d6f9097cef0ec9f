package query_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x-research-team/dtx-query/query"
)

const selectUsers = "SELECT id, name FROM users"

// Тест: SelectUnique возвращает найденную сущность и передает параметры сессии.
func TestSelectUnique_Select(t *testing.T) {
	t.Parallel()

	s := newFakeSession(10)
	calls := 0
	sel := query.NewSelectUnique(query.NewQv(selectUsers+" WHERE id = ?", int64(10)), userFromRow(&calls))

	row, err := sel.Select(context.Background(), s)

	require.NoError(t, err)
	assert.True(t, row.Found)
	assert.Equal(t, int64(10), row.Entity.ID)
	assert.Equal(t, []any{int64(10)}, s.lastArgs)
	assert.Equal(t, []string{query.OperationSelect}, s.operations)
	assert.Equal(t, 1, s.unpagedCalls)
}

// Тест: Expect на пустом результате эквивалентен прямому SelectUniqueExpect.
func TestSelectUnique_ExpectEqualsSelectUniqueExpect(t *testing.T) {
	t.Parallel()

	qv := query.NewQv(selectUsers)
	calls := 0

	_, expectErr := query.NewSelectUnique(qv, userFromRow(&calls)).Expect().Select(context.Background(), newFakeSession())
	_, directErr := query.NewSelectUniqueExpect(qv, userFromRow(&calls)).Select(context.Background(), newFakeSession())

	require.Error(t, expectErr)
	require.Error(t, directErr)
	assert.Equal(t, directErr, expectErr)
	assert.True(t, query.IsNoRows(expectErr))
}

// Тест: ошибка сессии доставляется как ExecutionError с текстом запроса.
func TestSelectUnique_ExecutionError(t *testing.T) {
	t.Parallel()

	backendErr := errors.New("нет соединения")
	s := newFakeSession()
	s.err = backendErr
	calls := 0

	_, err := query.NewSelectUnique(query.NewQv(selectUsers), userFromRow(&calls)).Select(context.Background(), s)

	var execErr *query.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, selectUsers, execErr.Statement)
	assert.Equal(t, query.OperationSelect, execErr.Operation)
	assert.ErrorIs(t, err, backendErr)
	assert.Zero(t, calls)
}

// Тест: ошибка привязки параметров не доходит до сессии.
func TestSelectUnique_BindError(t *testing.T) {
	t.Parallel()

	s := newFakeSession(1)
	bindErr := errors.New("неподдерживаемый тип")
	qv := query.Qv{Query: selectUsers, Values: query.BinderFunc(func() ([]any, error) { return nil, bindErr })}
	calls := 0

	_, err := query.NewSelectUnique(qv, userFromRow(&calls)).Select(context.Background(), s)

	var execErr *query.ExecutionError
	require.ErrorAs(t, err, &execErr)
	var bErr *query.BindError
	require.ErrorAs(t, err, &bErr)
	assert.ErrorIs(t, err, bindErr)
	assert.Zero(t, s.unpagedCalls, "Сессия не должна вызываться")
}

// Тест: десериализатор обязателен.
func TestNewSelectMultiple_NilFromRowPanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		query.NewSelectMultiple[user](query.NewQv(selectUsers), nil)
	})
}

// Тест: постраничная выборка возвращает страницу и токен продолжения.
func TestSelectMultiple_SelectPaged(t *testing.T) {
	t.Parallel()

	s := newFakeSession(1, 2, 3)
	calls := 0
	sel := query.NewSelectMultiple(query.NewQv(selectUsers), userFromRow(&calls))

	first, err := sel.SelectPaged(context.Background(), s, 2, query.StartPageState())
	require.NoError(t, err)
	require.Len(t, first.Entities, 2)
	assert.True(t, first.Paging.HasMorePages)
	assert.Empty(t, first.Result.Rows)

	second, err := sel.SelectPaged(context.Background(), s, 2, first.Paging.State)
	require.NoError(t, err)
	require.Len(t, second.Entities, 1)
	assert.Equal(t, int64(3), second.Entities[0].ID)
	assert.False(t, second.Paging.HasMorePages)
}

// Тест: ошибка выполнения постраничной выборки оборачивается в MultipleSelectError.
func TestSelectMultiple_SelectPaged_ExecutionError(t *testing.T) {
	t.Parallel()

	s := newFakeSession()
	s.err = errors.New("таймаут")
	calls := 0

	_, err := query.NewSelectMultiple(query.NewQv(selectUsers), userFromRow(&calls)).
		SelectPaged(context.Background(), s, 10, query.StartPageState())

	var multiErr *query.MultipleSelectError
	require.ErrorAs(t, err, &multiErr)
	assert.True(t, query.IsExecution(err))
}

// Тест: SelectAllInMemory равен ручному циклу по страницам.
func TestSelectMultiple_SelectAllInMemory_EqualsManualLoop(t *testing.T) {
	t.Parallel()

	s := newFakeSession(1, 2, 3, 4, 5)
	calls := 0
	sel := query.NewSelectMultiple(query.NewQv(selectUsers), userFromRow(&calls))

	all, err := sel.SelectAllInMemory(context.Background(), s, 2)
	require.NoError(t, err)

	var manual []user
	state := query.StartPageState()
	for {
		page, err := sel.SelectPaged(context.Background(), s, 2, state)
		require.NoError(t, err)
		manual = append(manual, page.Entities...)
		if !page.Paging.HasMorePages {
			break
		}
		state = page.Paging.State
	}

	assert.Equal(t, manual, all.Entities)
	assert.Len(t, all.Entities, 5)
	assert.Equal(t, 6, s.pageCalls, "Ожидалось по три страницы на каждый способ")
}

// Тест: SelectAllInMemoryTransform применяет преобразование ко всем страницам.
func TestSelectAllInMemoryTransform(t *testing.T) {
	t.Parallel()

	s := newFakeSession(1, 2, 3)
	calls := 0
	sel := query.NewSelectMultiple(query.NewQv(selectUsers), userFromRow(&calls))

	names, err := query.SelectAllInMemoryTransform(context.Background(), sel, s, 1, func(u user) string { return u.Name })

	require.NoError(t, err)
	assert.Equal(t, []string{"user-1", "user-2", "user-3"}, names.Entities)
}

// Тест: номер строки в ошибке считается от начала всей выборки.
func TestSelectAllInMemory_RowIndexAcrossPages(t *testing.T) {
	t.Parallel()

	s := newFakeSession(1, 2, 3, -4)
	calls := 0
	sel := query.NewSelectMultiple(query.NewQv(selectUsers), userFromRow(&calls))

	all, err := sel.SelectAllInMemory(context.Background(), s, 2)

	var multiErr *query.MultipleSelectError
	require.ErrorAs(t, err, &multiErr)
	rowErr, ok := query.AsFromRow(err)
	require.True(t, ok)
	assert.Equal(t, 3, rowErr.Row)
	assert.Nil(t, all.Entities)
}

// stalledSession сообщает о следующей странице без токена.
type stalledSession struct {
	*fakeSession
}

func (s stalledSession) ExecuteSinglePage(ctx context.Context, stmt string, args []any, pageSize int, state query.PageState) (*query.Result, query.PagingResponse, error) {
	res, _, err := s.fakeSession.ExecuteSinglePage(ctx, stmt, args, pageSize, state)
	return res, query.PagingResponse{HasMorePages: true}, err
}

// Тест: зацикливание выборки прерывается ошибкой.
func TestSelectAllInMemory_StalledPaging(t *testing.T) {
	t.Parallel()

	s := stalledSession{newFakeSession(1, 2, 3)}
	calls := 0
	sel := query.NewSelectMultiple(query.NewQv(selectUsers), userFromRow(&calls))

	_, err := sel.SelectAllInMemory(context.Background(), s, 2)

	assert.ErrorIs(t, err, query.ErrPagingStalled)
	assert.True(t, query.IsExecution(err))
	assert.Equal(t, 1, s.pageCalls)
}

// Тест: копия запроса не разделяет параметры с оригиналом.
func TestSelectMultiple_Clone(t *testing.T) {
	t.Parallel()

	args := query.Args{int64(1)}
	calls := 0
	sel := query.NewSelectMultiple(query.Qv{Query: selectUsers, Values: args}, userFromRow(&calls))

	clone := sel.Clone()
	args[0] = int64(2)

	bound, err := clone.Qv.Values.Bind()
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1)}, bound)
	assert.Equal(t, selectUsers, clone.Qv.String())
}
