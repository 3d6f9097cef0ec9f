package query

import (
	"context"
	"log/slog"
	"slices"
)

// Binder сериализует параметры запроса в аргументы драйвера.
type Binder interface {
	Bind() ([]any, error)
}

// Args - позиционные параметры запроса, передаются драйверу как есть.
type Args []any

// Bind реализует Binder.
func (a Args) Bind() ([]any, error) {
	return []any(a), nil
}

// BinderFunc является адаптером, позволяющим использовать функцию как Binder.
type BinderFunc func() ([]any, error)

// Bind реализует Binder.
func (f BinderFunc) Bind() ([]any, error) {
	return f()
}

// Qv - текст запроса вместе с его параметрами.
type Qv struct {
	Query  string
	Values Binder
}

// NewQv создает Qv с позиционными параметрами.
func NewQv(statement string, args ...any) Qv {
	return Qv{Query: statement, Values: Args(args)}
}

// Clone возвращает копию, срез параметров которой не разделяется с исходной.
func (q Qv) Clone() Qv {
	if args, ok := q.Values.(Args); ok {
		q.Values = slices.Clone(args)
	}
	return q
}

// String возвращает только текст запроса: параметры не попадают в логи.
func (q Qv) String() string {
	return q.Query
}

// LogValue реализует slog.LogValuer.
func (q Qv) LogValue() slog.Value {
	return slog.StringValue(q.Query)
}

func (q Qv) bind(ctx context.Context) ([]any, error) {
	if q.Values == nil {
		return nil, nil
	}
	args, err := q.Values.Bind()
	if err != nil {
		return nil, newExecutionError(OperationFromContext(ctx), q.Query, &BindError{Err: err})
	}
	return args, nil
}

// Execute выполняет запрос без постраничной выборки.
// Текст запроса пишется в лог перед отправкой, только если s обернута
// через NewSession: сами адаптеры бэкендов ничего не логируют.
func (q Qv) Execute(ctx context.Context, s Session) (*Result, error) {
	args, err := q.bind(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.ExecuteUnpaged(ctx, q.Query, args)
	if err != nil {
		return nil, newExecutionError(OperationFromContext(ctx), q.Query, err)
	}
	return res, nil
}

// ExecuteSinglePage выполняет запрос и возвращает одну страницу, начиная с state.
func (q Qv) ExecuteSinglePage(ctx context.Context, s Session, pageSize int, state PageState) (*Result, PagingResponse, error) {
	args, err := q.bind(ctx)
	if err != nil {
		return nil, PagingResponse{}, err
	}
	res, paging, err := s.ExecuteSinglePage(ctx, q.Query, args, pageSize, state)
	if err != nil {
		return nil, PagingResponse{}, newExecutionError(OperationFromContext(ctx), q.Query, err)
	}
	return res, paging, nil
}

// ExecuteIter возвращает ленивый поток строк.
func (q Qv) ExecuteIter(ctx context.Context, s Session, pageSize int) (RowIterator, error) {
	args, err := q.bind(ctx)
	if err != nil {
		return nil, err
	}
	it, err := s.ExecuteIter(ctx, q.Query, args, pageSize)
	if err != nil {
		return nil, newExecutionError(OperationFromContext(ctx), q.Query, err)
	}
	return it, nil
}
