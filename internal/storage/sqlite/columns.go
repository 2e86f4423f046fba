package sqlite

import (
	"reflect"
	"strings"
)

// columnsOf returns the column names of a record type, taken from its json
// tags in field order.
func columnsOf(t reflect.Type) []string {
	cols := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		name, _, _ := strings.Cut(tag, ",")
		if name == "" || name == "-" {
			continue
		}
		cols = append(cols, name)
	}
	return cols
}

// pointersOf returns pointers to the tagged fields of the struct pointed to
// by rec, in the order of columnsOf.
func pointersOf(rec interface{}) []interface{} {
	v := reflect.ValueOf(rec).Elem()
	t := v.Type()
	ptrs := make([]interface{}, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		ptrs = append(ptrs, v.Field(i).Addr().Interface())
	}
	return ptrs
}

// valuesOf returns the tagged fields of the struct pointed to by rec as
// driver values, in the order of columnsOf.
func valuesOf(rec interface{}) []interface{} {
	v := reflect.ValueOf(rec).Elem()
	t := v.Type()
	vals := make([]interface{}, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		f := v.Field(i)
		switch f.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			vals = append(vals, f.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			vals = append(vals, int64(f.Uint()))
		case reflect.Float32, reflect.Float64:
			vals = append(vals, f.Float())
		case reflect.Bool:
			vals = append(vals, f.Bool())
		default:
			vals = append(vals, f.Interface())
		}
	}
	return vals
}

func insertQuery(table string, cols []string) string {
	return "INSERT INTO " + table + " (run_id, " + strings.Join(cols, ", ") + ") VALUES (?" +
		strings.Repeat(", ?", len(cols)) + ")"
}
