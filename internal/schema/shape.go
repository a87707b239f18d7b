package schema

import (
	"math"
	"reflect"
	"strconv"
	"strings"
)

// checkShape walks decoded JSON against a Go type, reporting keys the type does not
// declare, declared keys without omitempty that are absent, and JSON kinds that
// cannot decode into the field. Maps are open: any key is accepted.
func checkShape(v any, t reflect.Type, path string) []FieldError {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if v == nil {
		switch t.Kind() {
		case reflect.Slice, reflect.Map:
			return nil
		}
		return []FieldError{{Path: pathOrRoot(path), Message: "must not be null"}}
	}

	switch t.Kind() {
	case reflect.Struct:
		obj, ok := v.(map[string]any)
		if !ok {
			return kindError(path, "object")
		}
		var errs []FieldError
		known := make(map[string]bool, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			name, omitempty := jsonName(f)
			if name == "" {
				continue
			}
			known[name] = true
			child, present := obj[name]
			if !present {
				if !omitempty {
					errs = append(errs, FieldError{Path: join(path, name), Message: "is required"})
				}
				continue
			}
			if child == nil && f.Type.Kind() == reflect.Ptr {
				continue
			}
			errs = append(errs, checkShape(child, f.Type, join(path, name))...)
		}
		for key := range obj {
			if !known[key] {
				errs = append(errs, FieldError{Path: join(path, key), Message: "unknown field"})
			}
		}
		return errs
	case reflect.Slice:
		list, ok := v.([]any)
		if !ok {
			return kindError(path, "array")
		}
		var errs []FieldError
		for i, child := range list {
			errs = append(errs, checkShape(child, t.Elem(), path+"["+strconv.Itoa(i)+"]")...)
		}
		return errs
	case reflect.Map:
		obj, ok := v.(map[string]any)
		if !ok {
			return kindError(path, "object")
		}
		var errs []FieldError
		for key, child := range obj {
			errs = append(errs, checkShape(child, t.Elem(), join(path, key))...)
		}
		return errs
	case reflect.String:
		if _, ok := v.(string); !ok {
			return kindError(path, "string")
		}
	case reflect.Bool:
		if _, ok := v.(bool); !ok {
			return kindError(path, "boolean")
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := v.(float64)
		if !ok || n != math.Trunc(n) {
			return kindError(path, "integer")
		}
		limit := math.Ldexp(1, t.Bits()-1)
		if n < -limit || n >= limit {
			return []FieldError{{Path: pathOrRoot(path), Message: "integer out of range"}}
		}
	case reflect.Float32, reflect.Float64:
		if _, ok := v.(float64); !ok {
			return kindError(path, "number")
		}
	}
	return nil
}

func jsonName(f reflect.StructField) (string, bool) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", false
	}
	parts := strings.Split(tag, ",")
	name := parts[0]
	if name == "" {
		name = f.Name
	}
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			return name, true
		}
	}
	return name, false
}

func kindError(path, want string) []FieldError {
	return []FieldError{{Path: pathOrRoot(path), Message: "must be " + want}}
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func pathOrRoot(path string) string {
	if path == "" {
		return "$"
	}
	return path
}

// pathLess orders document paths with array indexes compared as numbers,
// so blocks[2] sorts before blocks[10].
func pathLess(a, b string) bool {
	for a != "" && b != "" {
		da, db := digitRun(a), digitRun(b)
		if da > 0 && db > 0 {
			na, _ := strconv.Atoi(a[:da])
			nb, _ := strconv.Atoi(b[:db])
			if na != nb {
				return na < nb
			}
			a, b = a[da:], b[db:]
			continue
		}
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

func digitRun(s string) int {
	n := 0
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		n++
	}
	return n
}
