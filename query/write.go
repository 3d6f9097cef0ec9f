package query

import "context"

// operation - тег семейства запросов на изменение данных.
type operation interface {
	name() string
}

type (
	opInsert         struct{}
	opUpdate         struct{}
	opDeleteUnique   struct{}
	opDeleteMultiple struct{}
	opTruncate       struct{}
)

func (opInsert) name() string         { return OperationInsert }
func (opUpdate) name() string         { return OperationUpdate }
func (opDeleteUnique) name() string   { return OperationDeleteUnique }
func (opDeleteMultiple) name() string { return OperationDeleteMultiple }
func (opTruncate) name() string       { return OperationTruncate }

// writeStatement выполняет запрос без выборки строк. Ответ сессии
// возвращается без изменений, семейства отличаются только именем операции.
type writeStatement[O operation] struct {
	Qv Qv
}

func (w writeStatement[O]) exec(ctx context.Context, s Session) (*Result, error) {
	var op O
	return w.Qv.Execute(WithOperation(ctx, op.name()), s)
}

// Insert - запрос вставки.
type Insert struct {
	writeStatement[opInsert]
}

// NewInsert создает запрос вставки.
func NewInsert(qv Qv) Insert {
	return Insert{writeStatement[opInsert]{Qv: qv}}
}

// Insert выполняет запрос.
func (w Insert) Insert(ctx context.Context, s Session) (*Result, error) {
	return w.exec(ctx, s)
}

// Clone возвращает независимую копию запроса.
func (w Insert) Clone() Insert {
	return NewInsert(w.Qv.Clone())
}

// Update - запрос обновления.
type Update struct {
	writeStatement[opUpdate]
}

// NewUpdate создает запрос обновления.
func NewUpdate(qv Qv) Update {
	return Update{writeStatement[opUpdate]{Qv: qv}}
}

// Update выполняет запрос.
func (w Update) Update(ctx context.Context, s Session) (*Result, error) {
	return w.exec(ctx, s)
}

// Clone возвращает независимую копию запроса.
func (w Update) Clone() Update {
	return NewUpdate(w.Qv.Clone())
}

// DeleteUnique - удаление одной строки по ключу.
type DeleteUnique struct {
	writeStatement[opDeleteUnique]
}

// NewDeleteUnique создает запрос удаления одной строки.
func NewDeleteUnique(qv Qv) DeleteUnique {
	return DeleteUnique{writeStatement[opDeleteUnique]{Qv: qv}}
}

// DeleteUnique выполняет запрос.
func (w DeleteUnique) DeleteUnique(ctx context.Context, s Session) (*Result, error) {
	return w.exec(ctx, s)
}

// Clone возвращает независимую копию запроса.
func (w DeleteUnique) Clone() DeleteUnique {
	return NewDeleteUnique(w.Qv.Clone())
}

// DeleteMultiple - удаление нескольких строк.
type DeleteMultiple struct {
	writeStatement[opDeleteMultiple]
}

// NewDeleteMultiple создает запрос удаления нескольких строк.
func NewDeleteMultiple(qv Qv) DeleteMultiple {
	return DeleteMultiple{writeStatement[opDeleteMultiple]{Qv: qv}}
}

// DeleteMultiple выполняет запрос.
func (w DeleteMultiple) DeleteMultiple(ctx context.Context, s Session) (*Result, error) {
	return w.exec(ctx, s)
}

// Clone возвращает независимую копию запроса.
func (w DeleteMultiple) Clone() DeleteMultiple {
	return NewDeleteMultiple(w.Qv.Clone())
}

// Truncate - очистка таблицы.
type Truncate struct {
	writeStatement[opTruncate]
}

// NewTruncate создает запрос очистки таблицы.
func NewTruncate(qv Qv) Truncate {
	return Truncate{writeStatement[opTruncate]{Qv: qv}}
}

// Truncate выполняет запрос.
func (w Truncate) Truncate(ctx context.Context, s Session) (*Result, error) {
	return w.exec(ctx, s)
}

// Clone возвращает независимую копию запроса.
func (w Truncate) Clone() Truncate {
	return NewTruncate(w.Qv.Clone())
}
