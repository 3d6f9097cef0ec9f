package query

import (
	"github.com/goccy/go-reflect"
)

// FromRow десериализует сырую строку в значение типа T.
type FromRow[T any] func(Row) (T, error)

// UniqueRow - результат выборки не более чем одной строки.
type UniqueRow[T any] struct {
	// Entity заполнено, только если Found.
	Entity T
	Found  bool
	// Result - исходный ответ сессии без строк.
	Result *Result
}

// UniqueRowExpect - результат выборки ровно одной строки.
type UniqueRowExpect[T any] struct {
	Entity T
	Result *Result
}

// EntityVecResult - одна страница десериализованных строк.
type EntityVecResult[N any] struct {
	Entities []N
	// Result - исходный ответ сессии без строк.
	Result *Result
	Paging PagingResponse
}

// EntityVec - все строки выборки.
type EntityVec[N any] struct {
	Entities []N
}

// typeName возвращает имя Go-типа для диагностики.
func typeName[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}

// ToOptionalUnique проверяет, что в результате не более одной строки, и
// десериализует ее. Несколько строк - ошибка ErrMoreThanOneRow, при этом
// десериализатор не вызывается.
func ToOptionalUnique[T any](res *Result, fromRow FromRow[T]) (UniqueRow[T], error) {
	rows := res.TakeRows()
	switch len(rows) {
	case 0:
		return UniqueRow[T]{Result: res}, nil
	case 1:
		entity, err := fromRow(rows[0])
		if err != nil {
			return UniqueRow[T]{}, &UniqueRowError{Err: newFromRowError(0, typeName[T](), err)}
		}
		return UniqueRow[T]{Entity: entity, Found: true, Result: res}, nil
	default:
		return UniqueRow[T]{}, &UniqueRowError{Err: ErrMoreThanOneRow}
	}
}

// ToMandatoryUnique проверяет, что в результате ровно одна строка, и десериализует ее.
func ToMandatoryUnique[T any](res *Result, fromRow FromRow[T]) (UniqueRowExpect[T], error) {
	if res.RowCount() == 0 {
		res.TakeRows()
		return UniqueRowExpect[T]{}, &UniqueRowError{Err: ErrNoRows}
	}
	row, err := ToOptionalUnique(res, fromRow)
	if err != nil {
		return UniqueRowExpect[T]{}, err
	}
	return UniqueRowExpect[T]{Entity: row.Entity, Result: row.Result}, nil
}

// ToOwnedList десериализует все строки результата и применяет transform к каждой.
// При первой ошибке возвращается *FromRowError с номером строки, частичный список не возвращается.
func ToOwnedList[T, N any](res *Result, fromRow FromRow[T], transform func(T) N) ([]N, error) {
	rows := res.TakeRows()
	entities := make([]N, 0, len(rows))
	for i, row := range rows {
		entity, err := fromRow(row)
		if err != nil {
			return nil, newFromRowError(i, typeName[T](), err)
		}
		entities = append(entities, transform(entity))
	}
	return entities, nil
}

// ToOwnedListPaged - ToOwnedList для одной страницы, сохраняющий состояние выборки.
func ToOwnedListPaged[T, N any](res *Result, paging PagingResponse, fromRow FromRow[T], transform func(T) N) (EntityVecResult[N], error) {
	entities, err := ToOwnedList(res, fromRow, transform)
	if err != nil {
		return EntityVecResult[N]{}, err
	}
	return EntityVecResult[N]{Entities: entities, Result: res, Paging: paging}, nil
}

// identity используется, когда преобразование сущностей не требуется.
func identity[T any](v T) T {
	return v
}
