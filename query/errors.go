package query

import (
	"errors"
	"fmt"
)

// Ошибки кардинальности результата.
var (
	// ErrNoRows возвращается, когда уникальная строка обязательна, но результат пуст.
	ErrNoRows = errors.New("в результате запроса нет строк")

	// ErrMoreThanOneRow возвращается, когда ожидалась не более чем одна строка.
	ErrMoreThanOneRow = errors.New("в результате запроса больше одной строки")
)

// ErrPagingStalled возвращается, когда сессия сообщила о следующей странице,
// но не вернула нового токена продолжения.
var ErrPagingStalled = errors.New("сессия не вернула токен следующей страницы")

// ColumnError описывает ошибку преобразования конкретной колонки.
// Десериализаторы возвращают ее, чтобы FromRowError указывал проблемную колонку.
type ColumnError struct {
	Column string
	Err    error
}

// Error реализует интерфейс error.
func (e *ColumnError) Error() string {
	return fmt.Sprintf("колонка '%s': %v", e.Column, e.Err)
}

// Unwrap возвращает исходную ошибку.
func (e *ColumnError) Unwrap() error {
	return e.Err
}

// FromRowError - ошибка десериализации одной строки результата в тип Type.
type FromRowError struct {
	// Row - порядковый номер строки в пределах вызова (с нуля).
	Row int
	// Column - имя колонки, если десериализатор смог ее указать.
	Column string
	// Type - имя целевого Go-типа.
	Type string
	Err  error
}

// Error реализует интерфейс error.
func (e *FromRowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("не удалось преобразовать строку %d в %s (колонка '%s'): %v", e.Row, e.Type, e.Column, e.Err)
	}
	return fmt.Sprintf("не удалось преобразовать строку %d в %s: %v", e.Row, e.Type, e.Err)
}

// Unwrap возвращает исходную ошибку.
func (e *FromRowError) Unwrap() error {
	return e.Err
}

// UniqueRowError возвращается, когда результат не соответствует ожиданию
// уникальной строки. Err - ErrNoRows, ErrMoreThanOneRow или *FromRowError.
type UniqueRowError struct {
	Err error
}

// Error реализует интерфейс error.
func (e *UniqueRowError) Error() string {
	return fmt.Sprintf("ошибка выборки уникальной строки: %v", e.Err)
}

// Unwrap возвращает исходную ошибку.
func (e *UniqueRowError) Unwrap() error {
	return e.Err
}

// BindError - ошибка сериализации параметров запроса.
// Всегда доставляется внутри *ExecutionError: запрос до базы не дошел.
type BindError struct {
	Err error
}

// Error реализует интерфейс error.
func (e *BindError) Error() string {
	return fmt.Sprintf("не удалось сериализовать параметры запроса: %v", e.Err)
}

// Unwrap возвращает исходную ошибку.
func (e *BindError) Unwrap() error {
	return e.Err
}

// ExecutionError - запрос не был выполнен: ошибка сессии, соединения,
// таймаут, некорректный запрос или ошибка привязки параметров.
type ExecutionError struct {
	Operation string
	Statement string
	Err       error
}

// Error реализует интерфейс error.
func (e *ExecutionError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("ошибка выполнения %s '%s': %v", e.Operation, e.Statement, e.Err)
	}
	return fmt.Sprintf("ошибка выполнения запроса '%s': %v", e.Statement, e.Err)
}

// Unwrap возвращает исходную ошибку.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// MultipleSelectError возвращается операциями выборки нескольких строк.
// Err - *FromRowError или *ExecutionError.
type MultipleSelectError struct {
	Err error
}

// Error реализует интерфейс error.
func (e *MultipleSelectError) Error() string {
	return fmt.Sprintf("ошибка выборки строк: %v", e.Err)
}

// Unwrap возвращает исходную ошибку.
func (e *MultipleSelectError) Unwrap() error {
	return e.Err
}

// IsNoRows сообщает, что обязательная уникальная строка не найдена.
func IsNoRows(err error) bool {
	return errors.Is(err, ErrNoRows)
}

// IsMoreThanOneRow сообщает, что вместо уникальной строки вернулось несколько.
func IsMoreThanOneRow(err error) bool {
	return errors.Is(err, ErrMoreThanOneRow)
}

// IsFromRow сообщает, что строку не удалось десериализовать.
func IsFromRow(err error) bool {
	var e *FromRowError
	return errors.As(err, &e)
}

// IsExecution сообщает, что запрос не был выполнен.
func IsExecution(err error) bool {
	var e *ExecutionError
	return errors.As(err, &e)
}

// AsFromRow извлекает *FromRowError из цепочки ошибок.
func AsFromRow(err error) (*FromRowError, bool) {
	var e *FromRowError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func newExecutionError(operation, statement string, err error) *ExecutionError {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr
	}
	return &ExecutionError{Operation: operation, Statement: statement, Err: err}
}

func newFromRowError(row int, typeName string, err error) *FromRowError {
	e := &FromRowError{Row: row, Type: typeName, Err: err}
	var colErr *ColumnError
	if errors.As(err, &colErr) {
		e.Column = colErr.Column
	}
	return e
}
