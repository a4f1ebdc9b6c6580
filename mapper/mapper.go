// Package mapper shapes the engine's dynamic map[string]any rows into
// caller-defined structs (spec §9.1). It is grounded on the teacher's
// schema.go, which keyed a per-type registry off reflect.Type; this package
// adapts that idea from query-building metadata to result-row mapping,
// compiling the column-to-field table once per type (via sync.Once) instead
// of reflecting on every row.
package mapper

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

type fieldMapping struct {
	index  int
	column string
}

type compiledType struct {
	fields []fieldMapping
}

var (
	compileOnce sync.Map // reflect.Type -> *sync.Once
	compiled    sync.Map // reflect.Type -> *compiledType
)

// Into maps rows into a freshly allocated []T, matching each row's keys
// against T's exported fields by "db" struct tag (falling back to the
// lowercased field name, matching sqlx's own convention since the engine's
// demo driver is sqlx-backed). Unmatched columns are ignored; unmatched
// fields are left zero.
func Into[T any](rows []map[string]any) ([]T, error) {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("mapper: %T is not a struct", zero)
	}

	ct, err := compiledFor(t)
	if err != nil {
		return nil, err
	}

	out := make([]T, len(rows))
	for i, row := range rows {
		rv := reflect.ValueOf(&out[i]).Elem()
		for _, fm := range ct.fields {
			val, ok := row[fm.column]
			if !ok || val == nil {
				continue
			}
			if err := assign(rv.Field(fm.index), val); err != nil {
				return nil, fmt.Errorf("mapper: column %q into %s.%s: %w",
					fm.column, t.Name(), t.Field(fm.index).Name, err)
			}
		}
	}
	return out, nil
}

func compiledFor(t reflect.Type) (*compiledType, error) {
	onceAny, _ := compileOnce.LoadOrStore(t, &sync.Once{})
	once := onceAny.(*sync.Once)

	var buildErr error
	once.Do(func() {
		ct := &compiledType{}
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if f.PkgPath != "" {
				continue // unexported
			}
			column := f.Tag.Get("db")
			if column == "" {
				column = strings.ToLower(f.Name)
			} else if column == "-" {
				continue
			}
			ct.fields = append(ct.fields, fieldMapping{index: i, column: column})
		}
		compiled.Store(t, ct)
	})

	ctAny, ok := compiled.Load(t)
	if !ok {
		return nil, buildErr
	}
	return ctAny.(*compiledType), nil
}

// assign sets dst from src, converting when the underlying types differ but
// are convertible (e.g. a driver returning int64 for a struct's int field).
func assign(dst reflect.Value, src any) error {
	sv := reflect.ValueOf(src)
	if !dst.CanSet() {
		return nil
	}
	if sv.Type().AssignableTo(dst.Type()) {
		dst.Set(sv)
		return nil
	}
	if sv.Type().ConvertibleTo(dst.Type()) {
		dst.Set(sv.Convert(dst.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %s to %s", sv.Type(), dst.Type())
}
