package postgres

import (
	"reflect"
	"sync"
)

// column is one `db`-tagged field, addressed by its index path so fields of
// embedded structs (entity.BaseEntity) resolve in one FieldByIndex call.
type column struct {
	name string
	path []int
}

var columnCache sync.Map // reflect.Type -> []column

func columnsOf(t reflect.Type) []column {
	if cached, ok := columnCache.Load(t); ok {
		return cached.([]column)
	}
	cols := collectColumns(t, nil)
	columnCache.Store(t, cols)
	return cols
}

func collectColumns(t reflect.Type, prefix []int) []column {
	var cols []column
	for i := range t.NumField() {
		f := t.Field(i)
		path := append(append([]int(nil), prefix...), i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			cols = append(cols, collectColumns(f.Type, path)...)
			continue
		}
		if tag := f.Tag.Get("db"); tag != "" && tag != "-" {
			cols = append(cols, column{name: tag, path: path})
		}
	}
	return cols
}

func structType(t reflect.Type) (reflect.Type, bool) {
	if t == nil {
		return nil, false
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t, t.Kind() == reflect.Struct
}

// ExtractDBColumns lists T's column names in declaration order, embedded
// structs expanded in place. Repositories use it for SELECT and COPY lists.
func ExtractDBColumns[T any]() []string {
	t, ok := structType(reflect.TypeFor[T]())
	if !ok {
		return nil
	}
	cols := columnsOf(t)
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	return names
}

// StructToMap returns {column: value} for a struct or non-nil struct pointer,
// ready for squirrel's SetMap. Anything else yields nil.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	cols := columnsOf(rv.Type())
	out := make(map[string]any, len(cols))
	for _, c := range cols {
		out[c.name] = rv.FieldByIndex(c.path).Interface()
	}
	return out
}
