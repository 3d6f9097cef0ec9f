package query_test

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/x-research-team/dtx-query/query"
)

// fakeSession - сессия в памяти. Токен страницы - смещение в виде строки.
type fakeSession struct {
	mu sync.Mutex

	columns []query.Column
	rows    [][]any

	err     error
	iterErr error

	unpagedCalls int
	pageCalls    int
	iterCalls    int
	operations   []string
	lastArgs     []any
	iterators    []*fakeIterator
}

var idColumns = []query.Column{{Name: "id", Type: "bigint"}, {Name: "name", Type: "text"}}

// newFakeSession создает сессию со строками (id, name).
func newFakeSession(ids ...int64) *fakeSession {
	s := &fakeSession{columns: idColumns}
	for _, id := range ids {
		s.rows = append(s.rows, []any{id, "user-" + strconv.FormatInt(id, 10)})
	}
	return s
}

func (s *fakeSession) record(ctx context.Context, args []any) {
	s.operations = append(s.operations, query.OperationFromContext(ctx))
	s.lastArgs = args
}

func (s *fakeSession) makeRows(values [][]any) []query.Row {
	rows := make([]query.Row, 0, len(values))
	for _, v := range values {
		rows = append(rows, query.Row{Columns: s.columns, Values: v})
	}
	return rows
}

func (s *fakeSession) ExecuteUnpaged(ctx context.Context, _ string, args []any) (*query.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.unpagedCalls++
	s.record(ctx, args)
	if s.err != nil {
		return nil, s.err
	}
	return &query.Result{Columns: s.columns, Rows: s.makeRows(s.rows), RowsAffected: int64(len(s.rows))}, nil
}

func (s *fakeSession) ExecuteSinglePage(ctx context.Context, _ string, args []any, pageSize int, state query.PageState) (*query.Result, query.PagingResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pageCalls++
	s.record(ctx, args)
	if s.err != nil {
		return nil, query.PagingResponse{}, s.err
	}

	offset := 0
	if !state.IsStart() {
		n, err := strconv.Atoi(string(state.Bytes()))
		if err != nil {
			return nil, query.PagingResponse{}, err
		}
		offset = n
	}
	if pageSize <= 0 {
		pageSize = 2
	}
	end := min(offset+pageSize, len(s.rows))

	res := &query.Result{Columns: s.columns, Rows: s.makeRows(s.rows[offset:end]), RowsAffected: -1}
	if end >= len(s.rows) {
		return res, query.NoMorePages(), nil
	}
	return res, query.MorePages(query.NewPageState([]byte(strconv.Itoa(end)))), nil
}

func (s *fakeSession) ExecuteIter(ctx context.Context, _ string, args []any, _ int) (query.RowIterator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.iterCalls++
	s.record(ctx, args)
	if s.err != nil {
		return nil, s.err
	}
	it := &fakeIterator{columns: s.columns, rows: s.makeRows(s.rows), err: s.iterErr, pos: -1}
	s.iterators = append(s.iterators, it)
	return it, nil
}

// fakeIterator отдает строки по одной, ошибка err возникает после последней строки.
type fakeIterator struct {
	columns []query.Column
	rows    []query.Row
	err     error
	pos     int
	failed  bool
	closes  int
}

func (it *fakeIterator) Next() bool {
	if it.closes > 0 || it.failed {
		return false
	}
	if it.pos+1 >= len(it.rows) {
		it.failed = it.err != nil
		return false
	}
	it.pos++
	return true
}

func (it *fakeIterator) Row() query.Row          { return it.rows[it.pos] }
func (it *fakeIterator) Columns() []query.Column { return it.columns }

func (it *fakeIterator) Err() error {
	if it.failed {
		return it.err
	}
	return nil
}

func (it *fakeIterator) Close() error {
	it.closes++
	return nil
}

// user - тестовая сущность.
type user struct {
	ID   int64
	Name string
}

var errBadRow = errors.New("некорректная строка")

// userFromRow возвращает десериализатор, считающий свои вызовы.
// Строки с отрицательным id не десериализуются.
func userFromRow(calls *int) query.FromRow[user] {
	return func(row query.Row) (user, error) {
		*calls++
		id, _ := row.Value("id")
		name, _ := row.Value("name")
		n, ok := id.(int64)
		if !ok || n < 0 {
			return user{}, &query.ColumnError{Column: "id", Err: errBadRow}
		}
		return user{ID: n, Name: name.(string)}, nil
	}
}
