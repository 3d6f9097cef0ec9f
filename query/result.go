package query

import "strings"

// Column описывает колонку результата.
type Column struct {
	Name string
	// Type - имя типа в терминах драйвера, только для диагностики.
	Type string
}

// Row - сырая, еще не десериализованная строка результата.
// Columns разделяется всеми строками одного результата и не должен изменяться.
type Row struct {
	Columns []Column
	Values  []any
}

// Len возвращает количество значений в строке.
func (r Row) Len() int {
	return len(r.Values)
}

// Value возвращает значение колонки по имени без учета регистра.
func (r Row) Value(name string) (any, bool) {
	for i, c := range r.Columns {
		if i < len(r.Values) && strings.EqualFold(c.Name, name) {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Result - ответ сессии на выполнение одного запроса.
type Result struct {
	Columns []Column
	Rows    []Row
	// RowsAffected - количество затронутых строк, если бэкенд его сообщает, иначе -1.
	RowsAffected int64
	Warnings     []string
}

// RowCount возвращает количество строк, еще не извлеченных из результата.
func (r *Result) RowCount() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// TakeRows забирает строки результата, оставляя его без строк.
// Строки принадлежат вызывающему, результат больше на них не ссылается.
func (r *Result) TakeRows() []Row {
	if r == nil {
		return nil
	}
	rows := r.Rows
	r.Rows = nil
	return rows
}
