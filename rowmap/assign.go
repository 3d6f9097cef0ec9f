package rowmap

import (
	"bytes"
	"database/sql"
	"fmt"
	"math"
	"strconv"

	"github.com/goccy/go-reflect"
)

// assign записывает значение драйвера в dst с проверкой переполнения.
func assign(dst reflect.Value, src any) error {
	if dst.CanAddr() {
		if scanner, ok := dst.Addr().Interface().(sql.Scanner); ok {
			return scanner.Scan(src)
		}
	}

	if src == nil {
		switch dst.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map:
			dst.Set(reflect.Zero(dst.Type()))
			return nil
		default:
			return ErrNull
		}
	}

	if dst.Kind() == reflect.Ptr {
		elem := reflect.New(dst.Type().Elem())
		if err := assign(elem.Elem(), src); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	}

	if b, ok := src.([]byte); ok {
		src = bytes.Clone(b)
	}

	sv := reflect.ValueOf(src)
	if sv.Type().AssignableTo(dst.Type()) {
		dst.Set(sv)
		return nil
	}

	switch dst.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := toInt64(sv)
		if err != nil {
			return err
		}
		if dst.OverflowInt(n) {
			return fmt.Errorf("значение %d не помещается в %s", n, dst.Type())
		}
		dst.SetInt(n)
		return nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := toUint64(sv)
		if err != nil {
			return err
		}
		if dst.OverflowUint(n) {
			return fmt.Errorf("значение %d не помещается в %s", n, dst.Type())
		}
		dst.SetUint(n)
		return nil

	case reflect.Float32, reflect.Float64:
		f, err := toFloat64(sv)
		if err != nil {
			return err
		}
		if dst.OverflowFloat(f) {
			return fmt.Errorf("значение %v не помещается в %s", f, dst.Type())
		}
		dst.SetFloat(f)
		return nil

	case reflect.String:
		if s, ok := textOf(sv); ok {
			dst.SetString(s)
			return nil
		}

	case reflect.Bool:
		switch sv.Kind() {
		case reflect.Bool:
			dst.SetBool(sv.Bool())
			return nil
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if n := sv.Int(); n == 0 || n == 1 {
				dst.SetBool(n == 1)
				return nil
			}
		}

	case reflect.Slice:
		if dst.Type().Elem().Kind() == reflect.Uint8 && sv.Kind() == reflect.String {
			dst.SetBytes([]byte(sv.String()))
			return nil
		}
	}

	if sv.Kind() == dst.Kind() && sv.Type().ConvertibleTo(dst.Type()) {
		dst.Set(sv.Convert(dst.Type()))
		return nil
	}
	return fmt.Errorf("невозможно записать %T в поле типа %s", src, dst.Type())
}

func textOf(sv reflect.Value) (string, bool) {
	switch {
	case sv.Kind() == reflect.String:
		return sv.String(), true
	case sv.Kind() == reflect.Slice && sv.Type().Elem().Kind() == reflect.Uint8:
		return string(sv.Bytes()), true
	default:
		return "", false
	}
}

func toInt64(sv reflect.Value) (int64, error) {
	switch sv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return sv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := sv.Uint()
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("значение %d не помещается в int64", u)
		}
		return int64(u), nil
	}
	if s, ok := textOf(sv); ok {
		return strconv.ParseInt(s, 10, 64)
	}
	return 0, fmt.Errorf("невозможно преобразовать %s в целое число", sv.Type())
}

func toUint64(sv reflect.Value) (uint64, error) {
	switch sv.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return sv.Uint(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := sv.Int()
		if n < 0 {
			return 0, fmt.Errorf("отрицательное значение %d для беззнакового поля", n)
		}
		return uint64(n), nil
	}
	if s, ok := textOf(sv); ok {
		return strconv.ParseUint(s, 10, 64)
	}
	return 0, fmt.Errorf("невозможно преобразовать %s в беззнаковое число", sv.Type())
}

func toFloat64(sv reflect.Value) (float64, error) {
	switch sv.Kind() {
	case reflect.Float32, reflect.Float64:
		return sv.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(sv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(sv.Uint()), nil
	}
	if s, ok := textOf(sv); ok {
		return strconv.ParseFloat(s, 64)
	}
	return 0, fmt.Errorf("невозможно преобразовать %s в число с плавающей точкой", sv.Type())
}
