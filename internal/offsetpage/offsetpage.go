// Package offsetpage реализует токены продолжения для бэкендов без
// собственной постраничной выборки: запрос оборачивается в окно LIMIT/OFFSET,
// а токен хранит смещение следующей страницы.
package offsetpage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/x-research-team/dtx-query/query"
)

// DefaultPageSize - размер страницы, если вызывающий его не задал.
const DefaultPageSize = 5000

// ErrInvalidState возвращается для токена, выданного не этим пакетом.
var ErrInvalidState = errors.New("некорректный токен страницы")

const tokenSize = 8

// Encode возвращает токен, указывающий на смещение offset.
func Encode(offset int64) query.PageState {
	if offset <= 0 {
		return query.StartPageState()
	}
	token := make([]byte, tokenSize)
	binary.BigEndian.PutUint64(token, uint64(offset))
	return query.NewPageState(token)
}

// Decode возвращает смещение из токена. Начальный токен - смещение 0.
func Decode(state query.PageState) (int64, error) {
	if state.IsStart() {
		return 0, nil
	}
	token := state.Bytes()
	if len(token) != tokenSize {
		return 0, fmt.Errorf("%w: длина %d", ErrInvalidState, len(token))
	}
	offset := int64(binary.BigEndian.Uint64(token))
	if offset < 0 {
		return 0, fmt.Errorf("%w: отрицательное смещение", ErrInvalidState)
	}
	return offset, nil
}

// PageSize возвращает размер страницы с учетом значения по умолчанию.
func PageSize(pageSize, fallback int) int {
	if pageSize > 0 {
		return pageSize
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultPageSize
}

// Wrap оборачивает запрос в окно LIMIT/OFFSET с заданными плейсхолдерами.
// Скобка закрывается с новой строки: строчный комментарий в конце запроса
// не должен поглотить окно.
func Wrap(statement, limitPlaceholder, offsetPlaceholder string) string {
	inner := strings.TrimRight(strings.TrimSpace(statement), "; \t\n")
	return fmt.Sprintf("SELECT * FROM (%s\n) AS dtx_page LIMIT %s OFFSET %s", inner, limitPlaceholder, offsetPlaceholder)
}

// Limit возвращает количество строк для запроса страницы: на одну больше
// размера страницы, чтобы узнать, есть ли следующая.
func Limit(pageSize int) int {
	return pageSize + 1
}

// Trim отрезает лишнюю строку и возвращает состояние выборки.
// Отрезанная строка не остается в емкости возвращаемого среза.
func Trim(rows []query.Row, pageSize int, offset int64) ([]query.Row, query.PagingResponse) {
	if len(rows) <= pageSize {
		return rows, query.NoMorePages()
	}
	clear(rows[pageSize:])
	return slices.Clip(rows[:pageSize]), query.MorePages(Encode(offset + int64(pageSize)))
}
