package query

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName    = "github.com/x-research-team/dtx-query/query"
	instrumentationVersion = "0.1.0"
	metricKeyPrefix        = "db.client."
)

// Виды вызова сессии.
const (
	callUnpaged = "unpaged"
	callPage    = "page"
	callIter    = "iter"
)

// Middleware определяет интерфейс для middleware сессии.
type Middleware interface {
	// Wrap оборачивает следующую сессию в цепочке, добавляя свою логику.
	Wrap(next Session) Session
}

// MiddlewareFunc является адаптером, позволяющим использовать обычные функции как middleware.
type MiddlewareFunc func(next Session) Session

// Wrap реализует интерфейс Middleware.
func (f MiddlewareFunc) Wrap(next Session) Session {
	return f(next)
}

// loggingMiddleware реализует Middleware для логирования запросов.
type loggingMiddleware struct {
	logger *slog.Logger
}

// NewLoggingMiddleware создает новое middleware для логирования.
// Если логгер не предоставлен (nil), возвращается no-op middleware.
func NewLoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		return &noopMiddleware{}
	}
	return &loggingMiddleware{
		logger: logger,
	}
}

// Wrap оборачивает сессию для добавления логирования.
func (m *loggingMiddleware) Wrap(next Session) Session {
	return &loggingSession{
		next:   next,
		logger: m.logger,
	}
}

// loggingSession - это обертка над сессией, которая пишет текст запроса перед
// отправкой и ошибку после.
type loggingSession struct {
	next   Session
	logger *slog.Logger
}

// start пишет запрос в лог и возвращает функцию завершения.
func (s *loggingSession) start(ctx context.Context, call, statement string, pageSize int) func(rows int, err error) {
	operation := OperationFromContext(ctx)
	executionID := uuid.NewString()
	s.logger.DebugContext(ctx, "выполнение запроса",
		slog.String("operation", operation),
		slog.String("call", call),
		slog.Int("page_size", pageSize),
		slog.String("execution_id", executionID),
		slog.String("statement", statement),
	)

	startTime := time.Now()
	return func(rows int, err error) {
		duration := time.Since(startTime)
		if err != nil {
			s.logger.ErrorContext(ctx, "ошибка выполнения запроса",
				slog.String("operation", operation),
				slog.String("call", call),
				slog.String("execution_id", executionID),
				slog.String("statement", statement),
				slog.Any("error", err),
				slog.Duration("duration", duration),
			)
			return
		}
		s.logger.DebugContext(ctx, "запрос выполнен",
			slog.String("operation", operation),
			slog.String("execution_id", executionID),
			slog.Int("rows", rows),
			slog.Duration("duration", duration),
		)
	}
}

// ExecuteUnpaged логирует и выполняет запрос.
func (s *loggingSession) ExecuteUnpaged(ctx context.Context, statement string, args []any) (*Result, error) {
	finish := s.start(ctx, callUnpaged, statement, 0)
	res, err := s.next.ExecuteUnpaged(ctx, statement, args)
	finish(res.RowCount(), err)
	return res, err
}

// ExecuteSinglePage логирует и выполняет запрос одной страницы.
func (s *loggingSession) ExecuteSinglePage(ctx context.Context, statement string, args []any, pageSize int, state PageState) (*Result, PagingResponse, error) {
	finish := s.start(ctx, callPage, statement, pageSize)
	res, paging, err := s.next.ExecuteSinglePage(ctx, statement, args, pageSize, state)
	finish(res.RowCount(), err)
	return res, paging, err
}

// ExecuteIter логирует открытие потока, а его итог - при закрытии.
func (s *loggingSession) ExecuteIter(ctx context.Context, statement string, args []any, pageSize int) (RowIterator, error) {
	finish := s.start(ctx, callIter, statement, pageSize)
	it, err := s.next.ExecuteIter(ctx, statement, args, pageSize)
	if err != nil {
		finish(0, err)
		return nil, err
	}
	return observe(it, finish), nil
}

// metricsMiddleware реализует Middleware для сбора метрик OpenTelemetry.
type metricsMiddleware struct {
	executionCounter metric.Int64Counter
	rowsCounter      metric.Int64Counter
	durationHist     metric.Float64Histogram
}

// NewMetricsMiddleware создает новое middleware для сбора метрик.
func NewMetricsMiddleware(provider metric.MeterProvider) Middleware {
	if provider == nil {
		return &noopMiddleware{}
	}

	meter := provider.Meter(instrumentationName, metric.WithInstrumentationVersion(instrumentationVersion))

	executionCounter, err := meter.Int64Counter(
		metricKeyPrefix+"executions",
		metric.WithDescription("Количество выполненных запросов"),
		metric.WithUnit("{executions}"),
	)
	if err != nil {
		panic(fmt.Sprintf("не удалось создать счетчик executions: %v", err))
	}

	rowsCounter, err := meter.Int64Counter(
		metricKeyPrefix+"rows",
		metric.WithDescription("Количество строк, полученных из базы"),
		metric.WithUnit("{rows}"),
	)
	if err != nil {
		panic(fmt.Sprintf("не удалось создать счетчик rows: %v", err))
	}

	durationHist, err := meter.Float64Histogram(
		metricKeyPrefix+"duration",
		metric.WithDescription("Длительность выполнения запроса"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		panic(fmt.Sprintf("не удалось создать гистограмму duration: %v", err))
	}

	return &metricsMiddleware{
		executionCounter: executionCounter,
		rowsCounter:      rowsCounter,
		durationHist:     durationHist,
	}
}

// Wrap оборачивает сессию для добавления сбора метрик.
func (m *metricsMiddleware) Wrap(next Session) Session {
	return &metricsSession{
		next:             next,
		executionCounter: m.executionCounter,
		rowsCounter:      m.rowsCounter,
		durationHist:     m.durationHist,
	}
}

// metricsSession - это обертка над сессией, которая собирает метрики.
type metricsSession struct {
	next             Session
	executionCounter metric.Int64Counter
	rowsCounter      metric.Int64Counter
	durationHist     metric.Float64Histogram
}

func (s *metricsSession) start(ctx context.Context, call string) func(rows int, err error) {
	operation := OperationFromContext(ctx)
	startTime := time.Now()
	return func(rows int, err error) {
		duration := float64(time.Since(startTime).Milliseconds())

		status := "success"
		if err != nil {
			status = "error"
		}
		attrs := metric.WithAttributes(
			attribute.String("db.operation", operation),
			attribute.String("db.call", call),
			attribute.String("status", status),
		)

		s.executionCounter.Add(ctx, 1, attrs)
		s.durationHist.Record(ctx, duration, attrs)
		s.rowsCounter.Add(ctx, int64(rows), attrs)
	}
}

// ExecuteUnpaged собирает метрики и выполняет запрос.
func (s *metricsSession) ExecuteUnpaged(ctx context.Context, statement string, args []any) (*Result, error) {
	finish := s.start(ctx, callUnpaged)
	res, err := s.next.ExecuteUnpaged(ctx, statement, args)
	finish(res.RowCount(), err)
	return res, err
}

// ExecuteSinglePage собирает метрики и выполняет запрос одной страницы.
func (s *metricsSession) ExecuteSinglePage(ctx context.Context, statement string, args []any, pageSize int, state PageState) (*Result, PagingResponse, error) {
	finish := s.start(ctx, callPage)
	res, paging, err := s.next.ExecuteSinglePage(ctx, statement, args, pageSize, state)
	finish(res.RowCount(), err)
	return res, paging, err
}

// ExecuteIter учитывает поток при его закрытии.
func (s *metricsSession) ExecuteIter(ctx context.Context, statement string, args []any, pageSize int) (RowIterator, error) {
	finish := s.start(ctx, callIter)
	it, err := s.next.ExecuteIter(ctx, statement, args, pageSize)
	if err != nil {
		finish(0, err)
		return nil, err
	}
	return observe(it, finish), nil
}

// tracingMiddleware реализует Middleware для распределенной трассировки OpenTelemetry.
type tracingMiddleware struct {
	tracer trace.Tracer
}

// NewTracingMiddleware создает новое middleware для трассировки.
func NewTracingMiddleware(tp trace.TracerProvider) Middleware {
	if tp == nil {
		return &noopMiddleware{}
	}

	return &tracingMiddleware{
		tracer: tp.Tracer(
			instrumentationName,
			trace.WithInstrumentationVersion(instrumentationVersion),
		),
	}
}

// Wrap оборачивает сессию для добавления логики трассировки.
func (m *tracingMiddleware) Wrap(next Session) Session {
	return &tracingSession{
		next:   next,
		tracer: m.tracer,
	}
}

// tracingSession - это обертка над сессией, которая открывает спан на каждый запрос.
type tracingSession struct {
	next   Session
	tracer trace.Tracer
}

func (s *tracingSession) start(ctx context.Context, call, statement string, pageSize int) (context.Context, func(rows int, err error)) {
	operation := OperationFromContext(ctx)
	ctx, span := s.tracer.Start(ctx, operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.operation", operation),
			attribute.String("db.statement", statement),
			attribute.String("db.call", call),
			attribute.Int("db.page_size", pageSize),
		),
	)

	return ctx, func(rows int, err error) {
		span.SetAttributes(attribute.Int("db.rows", rows))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// ExecuteUnpaged выполняет запрос внутри спана.
func (s *tracingSession) ExecuteUnpaged(ctx context.Context, statement string, args []any) (*Result, error) {
	ctx, finish := s.start(ctx, callUnpaged, statement, 0)
	res, err := s.next.ExecuteUnpaged(ctx, statement, args)
	finish(res.RowCount(), err)
	return res, err
}

// ExecuteSinglePage выполняет запрос одной страницы внутри спана.
func (s *tracingSession) ExecuteSinglePage(ctx context.Context, statement string, args []any, pageSize int, state PageState) (*Result, PagingResponse, error) {
	ctx, finish := s.start(ctx, callPage, statement, pageSize)
	res, paging, err := s.next.ExecuteSinglePage(ctx, statement, args, pageSize, state)
	finish(res.RowCount(), err)
	return res, paging, err
}

// ExecuteIter открывает спан, который закрывается вместе с потоком.
func (s *tracingSession) ExecuteIter(ctx context.Context, statement string, args []any, pageSize int) (RowIterator, error) {
	ctx, finish := s.start(ctx, callIter, statement, pageSize)
	it, err := s.next.ExecuteIter(ctx, statement, args, pageSize)
	if err != nil {
		finish(0, err)
		return nil, err
	}
	return observe(it, finish), nil
}

// observedIterator считает прочитанные строки и сообщает итог один раз при Close.
type observedIterator struct {
	RowIterator
	rows     int
	once     sync.Once
	closeErr error
	onClose  func(rows int, err error)
}

func observe(it RowIterator, onClose func(rows int, err error)) RowIterator {
	return &observedIterator{RowIterator: it, onClose: onClose}
}

// Next переходит к следующей строке и учитывает ее.
func (it *observedIterator) Next() bool {
	if it.RowIterator.Next() {
		it.rows++
		return true
	}
	return false
}

// Close закрывает поток и сообщает итог.
func (it *observedIterator) Close() error {
	it.once.Do(func() {
		it.closeErr = it.RowIterator.Close()
		err := it.RowIterator.Err()
		if err == nil {
			err = it.closeErr
		}
		it.onClose(it.rows, err)
	})
	return it.closeErr
}

// applyMiddlewares применяет цепочку middleware к базовой сессии.
func applyMiddlewares(session Session, middlewares ...Middleware) Session {
	s := session
	for i := len(middlewares) - 1; i >= 0; i-- {
		s = middlewares[i].Wrap(s)
	}
	return s
}

// noopMiddleware представляет собой пустое middleware.
type noopMiddleware struct{}

// Wrap просто возвращает следующую сессию без изменений.
func (m *noopMiddleware) Wrap(next Session) Session {
	return next
}
