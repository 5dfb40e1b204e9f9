package preferences

import (
	"errors"
	"reflect"
	"sort"
	"strings"
)

// ErrUnknownField indicates a path that names no field of a category.
var ErrUnknownField = errors.New("preferences: unknown field")

// FieldDescriptor describes a field path and its Go type.
type FieldDescriptor struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

// Fields lists the fields of category c sorted by path.
func Fields(c Category) ([]FieldDescriptor, error) {
	baseline, err := Baseline(c)
	if err != nil {
		return nil, err
	}
	return deriveFieldDescriptors(reflect.TypeOf(baseline), ""), nil
}

func deriveFieldDescriptors(t reflect.Type, prefix string) []FieldDescriptor {
	var fields []FieldDescriptor
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := jsonName(f)
		if name == "" {
			continue
		}
		ft := f.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		path := joinPath(prefix, name)
		if ft.Kind() == reflect.Struct {
			fields = append(fields, deriveFieldDescriptors(ft, path)...)
			continue
		}
		fields = append(fields, FieldDescriptor{Path: path, Type: ft.String()})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Path < fields[j].Path })
	return fields
}

func knownField(c Category, path string) bool {
	fields, err := Fields(c)
	if err != nil {
		return false
	}
	i := sort.Search(len(fields), func(i int) bool { return fields[i].Path >= path })
	return i < len(fields) && fields[i].Path == path
}

func jsonName(f reflect.StructField) string {
	if !f.IsExported() {
		return ""
	}
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	default:
		return name
	}
}

func joinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return prefix + "." + segment
}
