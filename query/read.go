package query

import (
	"context"
	"errors"
)

// readStatement - запрос выборки вместе с десериализатором строк.
type readStatement[T any] struct {
	Qv      Qv
	fromRow FromRow[T]
}

func newReadStatement[T any](qv Qv, fromRow FromRow[T]) readStatement[T] {
	if fromRow == nil {
		panic("query: десериализатор строк не задан")
	}
	return readStatement[T]{Qv: qv, fromRow: fromRow}
}

// FromRow возвращает десериализатор строк запроса.
func (r readStatement[T]) FromRow() FromRow[T] {
	return r.fromRow
}

func selectContext(ctx context.Context) context.Context {
	return WithOperation(ctx, OperationSelect)
}

// SelectUnique - выборка не более чем одной строки.
type SelectUnique[T any] struct {
	readStatement[T]
}

// NewSelectUnique создает выборку не более чем одной строки.
func NewSelectUnique[T any](qv Qv, fromRow FromRow[T]) SelectUnique[T] {
	return SelectUnique[T]{newReadStatement(qv, fromRow)}
}

// Select выполняет запрос. Пустой результат не является ошибкой: Found будет false.
func (q SelectUnique[T]) Select(ctx context.Context, s Session) (UniqueRow[T], error) {
	res, err := q.Qv.Execute(selectContext(ctx), s)
	if err != nil {
		return UniqueRow[T]{}, err
	}
	return ToOptionalUnique(res, q.fromRow)
}

// Expect превращает выборку в выборку ровно одной строки.
func (q SelectUnique[T]) Expect() SelectUniqueExpect[T] {
	return SelectUniqueExpect[T](q)
}

// Clone возвращает независимую копию запроса.
func (q SelectUnique[T]) Clone() SelectUnique[T] {
	return NewSelectUnique(q.Qv.Clone(), q.fromRow)
}

// SelectUniqueExpect - выборка ровно одной строки.
type SelectUniqueExpect[T any] struct {
	readStatement[T]
}

// NewSelectUniqueExpect создает выборку ровно одной строки.
func NewSelectUniqueExpect[T any](qv Qv, fromRow FromRow[T]) SelectUniqueExpect[T] {
	return SelectUniqueExpect[T]{newReadStatement(qv, fromRow)}
}

// Select выполняет запрос. Пустой результат - ошибка ErrNoRows.
func (q SelectUniqueExpect[T]) Select(ctx context.Context, s Session) (UniqueRowExpect[T], error) {
	res, err := q.Qv.Execute(selectContext(ctx), s)
	if err != nil {
		return UniqueRowExpect[T]{}, err
	}
	return ToMandatoryUnique(res, q.fromRow)
}

// Clone возвращает независимую копию запроса.
func (q SelectUniqueExpect[T]) Clone() SelectUniqueExpect[T] {
	return NewSelectUniqueExpect(q.Qv.Clone(), q.fromRow)
}

// SelectMultiple - выборка произвольного количества строк.
type SelectMultiple[T any] struct {
	readStatement[T]
}

// NewSelectMultiple создает выборку произвольного количества строк.
func NewSelectMultiple[T any](qv Qv, fromRow FromRow[T]) SelectMultiple[T] {
	return SelectMultiple[T]{newReadStatement(qv, fromRow)}
}

// Clone возвращает независимую копию запроса.
func (q SelectMultiple[T]) Clone() SelectMultiple[T] {
	return NewSelectMultiple(q.Qv.Clone(), q.fromRow)
}

// Select возвращает ленивый поток сущностей. Страницы запрашиваются по мере чтения.
// Поток нужно закрыть.
func (q SelectMultiple[T]) Select(ctx context.Context, s Session, pageSize int) (*TypedRowIterator[T], error) {
	rows, err := q.Qv.ExecuteIter(selectContext(ctx), s, pageSize)
	if err != nil {
		return nil, &MultipleSelectError{Err: err}
	}
	return newTypedRowIterator(rows, q.fromRow, q.Qv.Query), nil
}

// SelectPaged возвращает одну страницу, начиная с state.
func (q SelectMultiple[T]) SelectPaged(ctx context.Context, s Session, pageSize int, state PageState) (EntityVecResult[T], error) {
	return SelectPagedTransform(ctx, q, s, pageSize, state, identity[T])
}

// SelectAllInMemory читает все страницы и возвращает все сущности.
func (q SelectMultiple[T]) SelectAllInMemory(ctx context.Context, s Session, pageSize int) (EntityVec[T], error) {
	return SelectAllInMemoryTransform(ctx, q, s, pageSize, identity[T])
}

// SelectPagedTransform возвращает одну страницу, применяя transform к каждой сущности.
func SelectPagedTransform[T, N any](ctx context.Context, q SelectMultiple[T], s Session, pageSize int, state PageState, transform func(T) N) (EntityVecResult[N], error) {
	res, paging, err := q.Qv.ExecuteSinglePage(selectContext(ctx), s, pageSize, state)
	if err != nil {
		return EntityVecResult[N]{}, &MultipleSelectError{Err: err}
	}
	page, err := ToOwnedListPaged(res, paging, q.fromRow, transform)
	if err != nil {
		return EntityVecResult[N]{}, &MultipleSelectError{Err: err}
	}
	return page, nil
}

// SelectAllInMemoryTransform читает страницы, пока они есть, и склеивает
// результат. Номер строки в ошибке десериализации считается от начала выборки.
func SelectAllInMemoryTransform[T, N any](ctx context.Context, q SelectMultiple[T], s Session, pageSize int, transform func(T) N) (EntityVec[N], error) {
	entities := make([]N, 0)
	state := StartPageState()

	for {
		page, err := SelectPagedTransform(ctx, q, s, pageSize, state, transform)
		if err != nil {
			var rowErr *FromRowError
			if errors.As(err, &rowErr) {
				rowErr.Row += len(entities)
			}
			return EntityVec[N]{}, err
		}
		entities = append(entities, page.Entities...)

		if !page.Paging.HasMorePages {
			return EntityVec[N]{Entities: entities}, nil
		}
		if page.Paging.State.IsStart() || page.Paging.State.Equal(state) {
			return EntityVec[N]{}, &MultipleSelectError{
				Err: newExecutionError(OperationSelect, q.Qv.Query, ErrPagingStalled),
			}
		}
		if err := ctx.Err(); err != nil {
			return EntityVec[N]{}, &MultipleSelectError{
				Err: newExecutionError(OperationSelect, q.Qv.Query, err),
			}
		}
		state = page.Paging.State
	}
}
