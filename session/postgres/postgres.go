// Package postgres реализует query.Session поверх pgx v5.
package postgres

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/x-research-team/dtx-query/internal/offsetpage"
	"github.com/x-research-team/dtx-query/query"
)

// Session выполняет запросы PostgreSQL через Querier.
// Постраничная выборка строится окном LIMIT/OFFSET вокруг исходного запроса.
type Session struct {
	q        Querier
	pageSize int
	types    *pgtype.Map
}

// Option определяет тип для функциональных опций New.
type Option func(*Session)

// WithDefaultPageSize задает размер страницы для вызовов без явного размера.
func WithDefaultPageSize(n int) Option {
	return func(s *Session) {
		s.pageSize = n
	}
}

// New создает сессию поверх пула, соединения или транзакции.
// Логи, метрики и спаны добавляет обертка, поэтому обычно сессию строят так:
// query.NewSession(postgres.New(pool)).
func New(q Querier, opts ...Option) *Session {
	s := &Session{
		q:        q,
		pageSize: offsetpage.DefaultPageSize,
		types:    pgtype.NewMap(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ query.Session = (*Session)(nil)

// ExecuteUnpaged выполняет запрос и читает все строки.
func (s *Session) ExecuteUnpaged(ctx context.Context, statement string, args []any) (*query.Result, error) {
	rows, err := s.q.Query(ctx, statement, args...)
	if err != nil {
		return nil, fmt.Errorf("не удалось выполнить запрос: %w", err)
	}
	return s.collect(rows)
}

// ExecuteSinglePage выполняет запрос в окне LIMIT $n OFFSET $n+1.
func (s *Session) ExecuteSinglePage(ctx context.Context, statement string, args []any, pageSize int, state query.PageState) (*query.Result, query.PagingResponse, error) {
	offset, err := offsetpage.Decode(state)
	if err != nil {
		return nil, query.PagingResponse{}, err
	}
	size := offsetpage.PageSize(pageSize, s.pageSize)

	n := len(args)
	windowed := offsetpage.Wrap(statement, "$"+strconv.Itoa(n+1), "$"+strconv.Itoa(n+2))
	pageArgs := append(slices.Clone(args), offsetpage.Limit(size), offset)

	rows, err := s.q.Query(ctx, windowed, pageArgs...)
	if err != nil {
		return nil, query.PagingResponse{}, fmt.Errorf("не удалось выполнить запрос страницы: %w", err)
	}
	res, err := s.collect(rows)
	if err != nil {
		return nil, query.PagingResponse{}, err
	}
	res.RowsAffected = -1

	var paging query.PagingResponse
	res.Rows, paging = offsetpage.Trim(res.Rows, size, offset)
	return res, paging, nil
}

// ExecuteIter возвращает поток строк. pgx читает строки из соединения по мере
// продвижения, поэтому размер страницы не используется.
func (s *Session) ExecuteIter(ctx context.Context, statement string, args []any, _ int) (query.RowIterator, error) {
	rows, err := s.q.Query(ctx, statement, args...)
	if err != nil {
		return nil, fmt.Errorf("не удалось выполнить запрос: %w", err)
	}
	return &rowIterator{rows: rows, columns: s.columns(rows)}, nil
}

func (s *Session) columns(rows pgx.Rows) []query.Column {
	fields := rows.FieldDescriptions()
	columns := make([]query.Column, len(fields))
	for i, f := range fields {
		columns[i] = query.Column{Name: f.Name, Type: s.typeName(f.DataTypeOID)}
	}
	return columns
}

func (s *Session) typeName(oid uint32) string {
	if t, ok := s.types.TypeForOID(oid); ok {
		return t.Name
	}
	return strconv.FormatUint(uint64(oid), 10)
}

// collect читает все строки, закрывает их и берет количество строк из CommandTag.
func (s *Session) collect(rows pgx.Rows) (*query.Result, error) {
	defer rows.Close()

	columns := s.columns(rows)
	out := make([]query.Row, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("не удалось прочитать строку: %w", err)
		}
		out = append(out, query.Row{Columns: columns, Values: values})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения результата: %w", err)
	}

	return &query.Result{
		Columns:      columns,
		Rows:         out,
		RowsAffected: rows.CommandTag().RowsAffected(),
	}, nil
}

// rowIterator адаптирует pgx.Rows к query.RowIterator.
type rowIterator struct {
	rows    pgx.Rows
	columns []query.Column
	row     query.Row
	err     error
	closed  bool
}

func (it *rowIterator) Next() bool {
	if it.closed || it.err != nil || !it.rows.Next() {
		return false
	}
	values, err := it.rows.Values()
	if err != nil {
		it.err = fmt.Errorf("не удалось прочитать строку: %w", err)
		return false
	}
	it.row = query.Row{Columns: it.columns, Values: values}
	return true
}

func (it *rowIterator) Row() query.Row          { return it.row }
func (it *rowIterator) Columns() []query.Column { return it.columns }

func (it *rowIterator) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.rows.Err()
}

func (it *rowIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	it.rows.Close()
	return nil
}
