// Package rowmap десериализует строки результата в структуры по тегам `db`.
//
// Имя колонки берется из тега `db:"name"`, без тега - имя поля в snake_case.
// Тег `db:"-"` исключает поле. Встроенные структуры без тега раскрываются.
// Сравнение имен колонок не учитывает регистр, лишние колонки игнорируются.
package rowmap

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-reflect"
	"github.com/iancoleman/strcase"

	"github.com/x-research-team/dtx-query/query"
)

var (
	// ErrMissingColumn возвращается, когда в строке нет колонки, нужной полю.
	ErrMissingColumn = errors.New("колонка отсутствует в результате")

	// ErrNull возвращается при попытке записать NULL в поле, не допускающее NULL.
	ErrNull = errors.New("значение NULL для поля, не допускающего NULL")
)

var (
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	timeType    = reflect.TypeOf(time.Time{})
	plans       sync.Map // reflect.Type -> *plan
)

type field struct {
	column string
	index  []int
}

// plan - разобранное описание целевого типа.
type plan struct {
	single bool
	fields []field
	err    error
}

// Of возвращает десериализатор строк в тип T.
// T - структура, указатель на структуру или скалярный тип для результата из одной колонки.
func Of[T any]() query.FromRow[T] {
	return func(row query.Row) (T, error) {
		var v T
		err := scanValue(row, reflect.ValueOf(&v).Elem())
		return v, err
	}
}

// Scan записывает строку в dest, который должен быть непустым указателем.
func Scan(row query.Row, dest any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("rowmap: ожидался непустой указатель, получен %T", dest)
	}
	return scanValue(row, rv.Elem())
}

func scanValue(row query.Row, v reflect.Value) error {
	t := v.Type()
	if t.Kind() == reflect.Ptr && !isScalar(t.Elem()) {
		elem := reflect.New(t.Elem())
		if err := scanValue(row, elem.Elem()); err != nil {
			return err
		}
		v.Set(elem)
		return nil
	}

	p := planFor(t)
	if p.err != nil {
		return p.err
	}

	if p.single {
		if row.Len() != 1 {
			return fmt.Errorf("для типа %s ожидалась одна колонка, получено %d", t, row.Len())
		}
		if err := assign(v, row.Values[0]); err != nil {
			return &query.ColumnError{Column: columnName(row, 0), Err: err}
		}
		return nil
	}

	index := make(map[string]int, len(row.Columns))
	for i, c := range row.Columns {
		name := strings.ToLower(c.Name)
		if _, ok := index[name]; !ok {
			index[name] = i
		}
	}

	for _, f := range p.fields {
		i, ok := index[f.column]
		if !ok || i >= row.Len() {
			return &query.ColumnError{Column: f.column, Err: ErrMissingColumn}
		}
		if err := assign(v.FieldByIndex(f.index), row.Values[i]); err != nil {
			return &query.ColumnError{Column: f.column, Err: err}
		}
	}
	return nil
}

func columnName(row query.Row, i int) string {
	if i < len(row.Columns) {
		return row.Columns[i].Name
	}
	return ""
}

// isScalar сообщает, что тип заполняется одним значением, а не по полям.
func isScalar(t reflect.Type) bool {
	if t == timeType || reflect.PtrTo(t).Implements(scannerType) {
		return true
	}
	return t.Kind() != reflect.Struct
}

func planFor(t reflect.Type) *plan {
	if cached, ok := plans.Load(t); ok {
		return cached.(*plan)
	}

	p := &plan{single: isScalar(t)}
	if !p.single {
		seen := make(map[string]string)
		p.err = collectFields(t, nil, seen, &p.fields)
	}

	actual, _ := plans.LoadOrStore(t, p)
	return actual.(*plan)
}

func collectFields(t reflect.Type, prefix []int, seen map[string]string, out *[]field) error {
	for i := range t.NumField() {
		f := t.Field(i)
		tag, hasTag := f.Tag.Lookup("db")
		if tag == "-" {
			continue
		}

		index := make([]int, len(prefix)+1)
		copy(index, prefix)
		index[len(prefix)] = i

		if f.Anonymous && !hasTag && f.Type.Kind() == reflect.Struct && !isScalar(f.Type) {
			if err := collectFields(f.Type, index, seen, out); err != nil {
				return err
			}
			continue
		}
		if f.PkgPath != "" {
			continue
		}

		name, _, _ := strings.Cut(tag, ",")
		if name == "" {
			name = strcase.ToSnake(f.Name)
		}
		name = strings.ToLower(name)

		if other, ok := seen[name]; ok {
			return fmt.Errorf("rowmap: поля %s и %s типа %s ссылаются на одну колонку '%s'", other, f.Name, t, name)
		}
		seen[name] = f.Name
		*out = append(*out, field{column: name, index: index})
	}
	return nil
}
