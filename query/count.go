package query

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CountType - тип результата COUNT.
type CountType = int64

// TtlType - тип значения TTL колонки.
type TtlType = int32

// Count - строка результата SELECT COUNT(*).
type Count struct {
	Count CountType `db:"count"`
}

var errCountColumn = errors.New("нет колонки count")

// CountFromRow десериализует строку с колонкой count.
// Если колонка в строке одна, ее имя не проверяется.
func CountFromRow(row Row) (Count, error) {
	value, ok := row.Value("count")
	if !ok {
		if row.Len() != 1 {
			return Count{}, &ColumnError{Column: "count", Err: errCountColumn}
		}
		value = row.Values[0]
	}

	n, err := toCount(value)
	if err != nil {
		return Count{}, &ColumnError{Column: "count", Err: err}
	}
	return Count{Count: n}, nil
}

func toCount(value any) (CountType, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("значение %d не помещается в int64", v)
		}
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, fmt.Errorf("значение %d не помещается в int64", v)
		}
		return int64(v), nil
	case []byte:
		return parseCount(string(v))
	case string:
		return parseCount(v)
	case nil:
		return 0, errors.New("значение NULL")
	default:
		return 0, fmt.Errorf("неподдерживаемый тип %T", value)
	}
}

func parseCount(s string) (CountType, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное значение count: %w", err)
	}
	return n, nil
}

// NewSelectCount создает выборку количества строк.
func NewSelectCount(qv Qv) SelectUniqueExpect[Count] {
	return NewSelectUniqueExpect(qv, CountFromRow)
}

// SelectCount выполняет выборку количества строк и возвращает само число.
func SelectCount(ctx context.Context, q SelectUniqueExpect[Count], s Session) (UniqueRowExpect[CountType], error) {
	row, err := q.Select(ctx, s)
	if err != nil {
		return UniqueRowExpect[CountType]{}, err
	}
	return UniqueRowExpect[CountType]{Entity: row.Entity.Count, Result: row.Result}, nil
}
