package query

import "iter"

// TypedRowIterator - ленивый поток десериализованных сущностей.
//
// Ошибка десериализации строки относится только к ней: Entity возвращает ее,
// а поток продолжается. Ошибка выполнения завершает поток и доступна через Err.
type TypedRowIterator[T any] struct {
	rows      RowIterator
	fromRow   FromRow[T]
	statement string
	index     int
	entity    T
	err       error
	closed    bool
	closeErr  error
}

func newTypedRowIterator[T any](rows RowIterator, fromRow FromRow[T], statement string) *TypedRowIterator[T] {
	return &TypedRowIterator[T]{
		rows:      rows,
		fromRow:   fromRow,
		statement: statement,
		index:     -1,
	}
}

// Next переходит к следующей строке и десериализует ее.
// Исчерпанный поток закрывается сразу.
func (it *TypedRowIterator[T]) Next() bool {
	if it.closed || !it.rows.Next() {
		var zero T
		it.entity, it.err = zero, nil
		it.Close()
		return false
	}
	it.index++

	entity, err := it.fromRow(it.rows.Row())
	if err != nil {
		var zero T
		it.entity = zero
		it.err = &MultipleSelectError{Err: newFromRowError(it.index, typeName[T](), err)}
		return true
	}
	it.entity, it.err = entity, nil
	return true
}

// Entity возвращает текущую сущность или ошибку ее десериализации.
func (it *TypedRowIterator[T]) Entity() (T, error) {
	return it.entity, it.err
}

// Columns возвращает описание колонок потока.
func (it *TypedRowIterator[T]) Columns() []Column {
	return it.rows.Columns()
}

// Err возвращает ошибку выполнения, прервавшую поток.
func (it *TypedRowIterator[T]) Err() error {
	if err := it.rows.Err(); err != nil {
		return &MultipleSelectError{Err: newExecutionError(OperationSelect, it.statement, err)}
	}
	return nil
}

// Close освобождает поток. После закрытия страницы больше не запрашиваются.
func (it *TypedRowIterator[T]) Close() error {
	if it.closed {
		return it.closeErr
	}
	it.closed = true
	if err := it.rows.Close(); err != nil {
		it.closeErr = &MultipleSelectError{Err: newExecutionError(OperationSelect, it.statement, err)}
	}
	return it.closeErr
}

// All возвращает поток как iter.Seq2. Поток закрывается по завершении цикла,
// в том числе при break. Ошибка выполнения передается последним элементом.
func (it *TypedRowIterator[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer it.Close()

		for it.Next() {
			if !yield(it.Entity()) {
				return
			}
		}

		var zero T
		if err := it.Err(); err != nil {
			yield(zero, err)
			return
		}
		if err := it.Close(); err != nil {
			yield(zero, err)
		}
	}
}
