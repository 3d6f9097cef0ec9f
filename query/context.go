package query

import "context"

// Имена операций, под которыми запросы попадают в логи, метрики и трассировку.
const (
	OperationExecute        = "execute"
	OperationInsert         = "insert"
	OperationUpdate         = "update"
	OperationDeleteUnique   = "delete_unique"
	OperationDeleteMultiple = "delete_multiple"
	OperationTruncate       = "truncate"
	OperationSelect         = "select"
)

type operationKey struct{}

// WithOperation возвращает контекст с именем операции.
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, operationKey{}, operation)
}

// OperationFromContext возвращает имя операции из контекста
// или OperationExecute, если оно не задано.
func OperationFromContext(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey{}).(string); ok && op != "" {
		return op
	}
	return OperationExecute
}
