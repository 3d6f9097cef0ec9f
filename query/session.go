// Package query превращает сырой поток строк табличной базы данных в строго
// типизированные значения и следит за кардинальностью результата: ровно одна
// строка, не более одной строки или произвольное количество строк.
//
// Пакет не управляет соединениями, повторами и кешированием запросов: все это
// обязанности Session. Адаптеры к конкретным драйверам лежат в session/*.
package query

import (
	"context"
	"log/slog"
)

// Session определяет контракт сессии базы данных, через которую выполняются запросы.
// Реализации обязаны быть безопасными для конкурентного использования в той мере,
// в какой это гарантирует драйвер.
type Session interface {
	// ExecuteUnpaged выполняет запрос без постраничной выборки и возвращает все строки.
	ExecuteUnpaged(ctx context.Context, statement string, args []any) (*Result, error)

	// ExecuteSinglePage выполняет запрос и возвращает ровно одну страницу, начиная с state.
	// pageSize <= 0 означает размер страницы по умолчанию для бэкенда.
	ExecuteSinglePage(ctx context.Context, statement string, args []any, pageSize int, state PageState) (*Result, PagingResponse, error)

	// ExecuteIter возвращает ленивый поток строк. Следующие страницы
	// запрашиваются по мере чтения потока.
	ExecuteIter(ctx context.Context, statement string, args []any, pageSize int) (RowIterator, error)
}

// RowIterator - ленивый поток сырых строк.
type RowIterator interface {
	// Next переходит к следующей строке. Возвращает false, когда поток исчерпан
	// или произошла ошибка.
	Next() bool

	// Row возвращает текущую строку.
	Row() Row

	// Columns возвращает описание колонок потока.
	Columns() []Column

	// Err возвращает ошибку, прервавшую поток.
	Err() error

	// Close освобождает ресурсы потока. Повторный вызов безопасен.
	Close() error
}

// NewSession оборачивает базовую сессию в цепочку middleware: логирование,
// метрики, трассировку и пользовательские middleware в порядке добавления.
func NewSession(base Session, opts ...Option) Session {
	cfg := &config{
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	allMiddlewares := []Middleware{
		NewLoggingMiddleware(cfg.logger),
		NewMetricsMiddleware(cfg.meterProvider),
		NewTracingMiddleware(cfg.tracerProvider),
	}
	allMiddlewares = append(allMiddlewares, cfg.middlewares...)

	return applyMiddlewares(base, allMiddlewares...)
}
