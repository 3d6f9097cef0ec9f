// Package cql реализует query.Session поверх gocql с собственной постраничной
// выборкой Cassandra/Scylla: токен страницы - paging state драйвера.
package cql

import (
	"context"
	"fmt"

	"github.com/gocql/gocql"

	"github.com/x-research-team/dtx-query/query"
)

// DefaultPageSize - размер страницы, если вызывающий его не задал.
const DefaultPageSize = 5000

// rowSource - часть *gocql.Iter, которую использует сессия.
type rowSource interface {
	Columns() []gocql.ColumnInfo
	MapScan(m map[string]any) bool
	PageState() []byte
	Warnings() []string
	Close() error
}

type request struct {
	pageSize int
	// single отключает автоматическую подгрузку страниц.
	single bool
	state  []byte
}

// Session выполняет CQL-запросы через *gocql.Session.
type Session struct {
	pageSize    int
	consistency *gocql.Consistency
	open        func(ctx context.Context, statement string, args []any, req request) rowSource
}

// Option определяет тип для функциональных опций New.
type Option func(*Session)

// WithDefaultPageSize задает размер страницы для вызовов без явного размера.
func WithDefaultPageSize(n int) Option {
	return func(s *Session) {
		s.pageSize = n
	}
}

// WithConsistency задает уровень согласованности для всех запросов сессии.
func WithConsistency(c gocql.Consistency) Option {
	return func(s *Session) {
		s.consistency = &c
	}
}

// New создает сессию поверх *gocql.Session. Соединениями, повторами и
// балансировкой управляет gocql. Логи, метрики и спаны добавляет обертка,
// поэтому обычно сессию строят так: query.NewSession(cql.New(session)).
func New(session *gocql.Session, opts ...Option) *Session {
	s := &Session{pageSize: DefaultPageSize}
	for _, opt := range opts {
		opt(s)
	}

	s.open = func(ctx context.Context, statement string, args []any, req request) rowSource {
		q := session.Query(statement, args...).WithContext(ctx).PageSize(req.pageSize)
		if s.consistency != nil {
			q = q.Consistency(*s.consistency)
		}
		if req.single {
			q = q.PageState(req.state)
		}
		return q.Iter()
	}
	return s
}

var _ query.Session = (*Session)(nil)

func (s *Session) size(pageSize int) int {
	if pageSize > 0 {
		return pageSize
	}
	if s.pageSize > 0 {
		return s.pageSize
	}
	return DefaultPageSize
}

// ExecuteUnpaged выполняет запрос без постраничной выборки.
func (s *Session) ExecuteUnpaged(ctx context.Context, statement string, args []any) (*query.Result, error) {
	it := s.open(ctx, statement, args, request{pageSize: 0})
	return collect(it)
}

// ExecuteSinglePage читает ровно одну страницу, начиная с state.
func (s *Session) ExecuteSinglePage(ctx context.Context, statement string, args []any, pageSize int, state query.PageState) (*query.Result, query.PagingResponse, error) {
	it := s.open(ctx, statement, args, request{
		pageSize: s.size(pageSize),
		single:   true,
		state:    state.Bytes(),
	})
	next := it.PageState()

	res, err := collect(it)
	if err != nil {
		return nil, query.PagingResponse{}, err
	}
	if len(next) == 0 {
		return res, query.NoMorePages(), nil
	}
	return res, query.MorePages(query.NewPageState(next)), nil
}

// ExecuteIter возвращает поток, gocql подгружает страницы по мере чтения.
func (s *Session) ExecuteIter(ctx context.Context, statement string, args []any, pageSize int) (query.RowIterator, error) {
	it := s.open(ctx, statement, args, request{pageSize: s.size(pageSize)})
	return &rowIterator{src: it, columns: columnsOf(it)}, nil
}

func columnsOf(it rowSource) []query.Column {
	infos := it.Columns()
	columns := make([]query.Column, len(infos))
	for i, c := range infos {
		columns[i] = query.Column{Name: c.Name}
		if c.TypeInfo != nil {
			columns[i].Type = c.TypeInfo.Type().String()
		}
	}
	return columns
}

// scan читает следующую строку в порядке колонок.
func scan(it rowSource, columns []query.Column) ([]any, bool) {
	m := make(map[string]any, len(columns))
	if !it.MapScan(m) {
		return nil, false
	}
	values := make([]any, len(columns))
	for i, c := range columns {
		values[i] = m[c.Name]
	}
	return values, true
}

func collect(it rowSource) (*query.Result, error) {
	columns := columnsOf(it)
	rows := make([]query.Row, 0)
	for {
		values, ok := scan(it, columns)
		if !ok {
			break
		}
		rows = append(rows, query.Row{Columns: columns, Values: values})
	}
	warnings := it.Warnings()
	if err := it.Close(); err != nil {
		return nil, fmt.Errorf("не удалось выполнить запрос: %w", err)
	}

	return &query.Result{
		Columns:      columns,
		Rows:         rows,
		RowsAffected: -1,
		Warnings:     warnings,
	}, nil
}

// rowIterator адаптирует *gocql.Iter к query.RowIterator.
// Ошибка gocql становится известна только при Close, поэтому поток
// закрывается сразу после последней строки.
type rowIterator struct {
	src     rowSource
	columns []query.Column
	row     query.Row
	err     error
	closed  bool
}

func (it *rowIterator) Next() bool {
	if it.closed {
		return false
	}
	values, ok := scan(it.src, it.columns)
	if !ok {
		it.finish()
		return false
	}
	it.row = query.Row{Columns: it.columns, Values: values}
	return true
}

func (it *rowIterator) finish() {
	if it.closed {
		return
	}
	it.closed = true
	if err := it.src.Close(); err != nil {
		it.err = fmt.Errorf("ошибка чтения результата: %w", err)
	}
}

func (it *rowIterator) Row() query.Row          { return it.row }
func (it *rowIterator) Columns() []query.Column { return it.columns }
func (it *rowIterator) Err() error              { return it.err }

func (it *rowIterator) Close() error {
	it.finish()
	return nil
}
