// Package sqldb реализует query.Session поверх database/sql.
//
// Постраничная выборка строится окном LIMIT/OFFSET вокруг исходного запроса,
// поэтому для стабильных страниц запрос должен задавать ORDER BY.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/x-research-team/dtx-query/internal/offsetpage"
	"github.com/x-research-team/dtx-query/query"
)

// Querier определяет интерфейс, который абстрагирует выполнение SQL-запросов.
// Он совместим с *sql.DB, *sql.Tx и *sql.Conn.
type Querier interface {
	// QueryContext выполняет запрос, возвращающий строки.
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)

	// ExecContext выполняет запрос, который не возвращает строк.
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Placeholder возвращает плейсхолдер параметра с порядковым номером n (с единицы).
type Placeholder func(n int) string

// QuestionPlaceholder - плейсхолдер "?" (SQLite, MySQL).
func QuestionPlaceholder(int) string {
	return "?"
}

// DollarPlaceholder - плейсхолдер "$n" (PostgreSQL).
func DollarPlaceholder(n int) string {
	return "$" + strconv.Itoa(n)
}

// Session выполняет запросы через Querier.
type Session struct {
	q           Querier
	pageSize    int
	placeholder Placeholder
}

// Option определяет тип для функциональных опций New.
type Option func(*Session)

// WithDefaultPageSize задает размер страницы для вызовов без явного размера.
func WithDefaultPageSize(n int) Option {
	return func(s *Session) {
		s.pageSize = n
	}
}

// WithPlaceholder задает синтаксис плейсхолдеров для параметров окна LIMIT/OFFSET.
func WithPlaceholder(p Placeholder) Option {
	return func(s *Session) {
		if p != nil {
			s.placeholder = p
		}
	}
}

// New создает сессию поверх Querier. Сессия не пишет логов, метрик и спанов,
// поэтому обычно ее сразу оборачивают: query.NewSession(sqldb.New(db)).
// Только так текст запроса попадает в лог перед отправкой.
func New(q Querier, opts ...Option) *Session {
	s := &Session{
		q:           q,
		pageSize:    offsetpage.DefaultPageSize,
		placeholder: QuestionPlaceholder,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ query.Session = (*Session)(nil)

// ExecuteUnpaged выполняет запрос. Выборки (операция query.OperationSelect
// в контексте) всегда читаются через QueryContext. Прочие запросы без строк
// результата выполняются через ExecContext и сообщают количество затронутых строк.
func (s *Session) ExecuteUnpaged(ctx context.Context, statement string, args []any) (*query.Result, error) {
	if query.OperationFromContext(ctx) != query.OperationSelect && !returnsRows(statement) {
		r, err := s.q.ExecContext(ctx, statement, args...)
		if err != nil {
			return nil, fmt.Errorf("не удалось выполнить запрос: %w", err)
		}
		affected, err := r.RowsAffected()
		if err != nil {
			affected = -1
		}
		return &query.Result{RowsAffected: affected}, nil
	}

	rows, err := s.q.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, fmt.Errorf("не удалось выполнить запрос: %w", err)
	}
	return collect(rows)
}

// ExecuteSinglePage выполняет запрос в окне LIMIT/OFFSET.
func (s *Session) ExecuteSinglePage(ctx context.Context, statement string, args []any, pageSize int, state query.PageState) (*query.Result, query.PagingResponse, error) {
	offset, err := offsetpage.Decode(state)
	if err != nil {
		return nil, query.PagingResponse{}, err
	}
	size := offsetpage.PageSize(pageSize, s.pageSize)

	n := len(args)
	windowed := offsetpage.Wrap(statement, s.placeholder(n+1), s.placeholder(n+2))
	pageArgs := append(slices.Clone(args), offsetpage.Limit(size), offset)

	rows, err := s.q.QueryContext(ctx, windowed, pageArgs...)
	if err != nil {
		return nil, query.PagingResponse{}, fmt.Errorf("не удалось выполнить запрос страницы: %w", err)
	}
	res, err := collect(rows)
	if err != nil {
		return nil, query.PagingResponse{}, err
	}

	var paging query.PagingResponse
	res.Rows, paging = offsetpage.Trim(res.Rows, size, offset)
	return res, paging, nil
}

// ExecuteIter возвращает поток строк курсора. Драйвер читает строки по мере
// продвижения курсора, поэтому размер страницы не используется.
func (s *Session) ExecuteIter(ctx context.Context, statement string, args []any, _ int) (query.RowIterator, error) {
	rows, err := s.q.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, fmt.Errorf("не удалось выполнить запрос: %w", err)
	}
	columns, err := columnsOf(rows)
	if err != nil {
		rows.Close()
		return nil, err
	}
	return &rowIterator{rows: rows, columns: columns}, nil
}

// rowKeywords - первые слова запросов, возвращающих строки.
var rowKeywords = map[string]struct{}{
	"select":   {},
	"with":     {},
	"values":   {},
	"show":     {},
	"explain":  {},
	"pragma":   {},
	"describe": {},
	"table":    {},
}

// returnsRows определяет по тексту, вернет ли запрос строки.
// Комментарии и литералы в расчет не берутся.
func returnsRows(statement string) bool {
	words := strings.FieldsFunc(strings.ToLower(stripComments(statement)), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	if len(words) == 0 {
		return false
	}
	if _, ok := rowKeywords[words[0]]; ok {
		return true
	}
	return slices.Contains(words, "returning")
}

// stripComments удаляет из запроса комментарии "--" и "/* */", а содержимое
// строковых литералов и идентификаторов в кавычках заменяет пустым.
func stripComments(statement string) string {
	var b strings.Builder
	b.Grow(len(statement))

	for i := 0; i < len(statement); i++ {
		c := statement[i]
		switch {
		case c == '-' && strings.HasPrefix(statement[i:], "--"):
			end := strings.IndexByte(statement[i:], '\n')
			if end < 0 {
				return b.String()
			}
			i += end
			b.WriteByte('\n')

		case c == '/' && strings.HasPrefix(statement[i:], "/*"):
			end := strings.Index(statement[i+2:], "*/")
			if end < 0 {
				return b.String()
			}
			i += end + 3
			b.WriteByte(' ')

		case c == '\'' || c == '"' || c == '`':
			end := strings.IndexByte(statement[i+1:], c)
			if end < 0 {
				return b.String()
			}
			i += end + 1
			b.WriteByte(c)
			b.WriteByte(c)

		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func columnsOf(rows *sql.Rows) ([]query.Column, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("не удалось получить описание колонок: %w", err)
	}
	columns := make([]query.Column, len(types))
	for i, ct := range types {
		columns[i] = query.Column{Name: ct.Name(), Type: ct.DatabaseTypeName()}
	}
	return columns, nil
}

func scanRow(rows *sql.Rows, n int) ([]any, error) {
	values := make([]any, n)
	dest := make([]any, n)
	for i := range values {
		dest[i] = &values[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("не удалось прочитать строку: %w", err)
	}
	return values, nil
}

// collect читает все строки и закрывает курсор.
func collect(rows *sql.Rows) (*query.Result, error) {
	defer rows.Close()

	columns, err := columnsOf(rows)
	if err != nil {
		return nil, err
	}

	out := make([]query.Row, 0)
	for rows.Next() {
		values, err := scanRow(rows, len(columns))
		if err != nil {
			return nil, err
		}
		out = append(out, query.Row{Columns: columns, Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения результата: %w", err)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("не удалось закрыть курсор: %w", err)
	}
	return &query.Result{Columns: columns, Rows: out, RowsAffected: -1}, nil
}

// rowIterator адаптирует *sql.Rows к query.RowIterator.
type rowIterator struct {
	rows    *sql.Rows
	columns []query.Column
	row     query.Row
	err     error
	closed  bool
}

func (it *rowIterator) Next() bool {
	if it.closed || it.err != nil || !it.rows.Next() {
		return false
	}
	values, err := scanRow(it.rows, len(it.columns))
	if err != nil {
		it.err = err
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
	return it.rows.Close()
}
