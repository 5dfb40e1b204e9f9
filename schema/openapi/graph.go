package openapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-accountstate/preferences"
)

// enumerations lists the accepted values of the enumerated preference fields,
// keyed by category and JSON field path.
var enumerations = map[string][]string{
	"general.theme": {preferences.ThemeAuto, preferences.ThemeDark, preferences.ThemeLight},
	"general.diff_view": {
		preferences.DiffViewSideBySide,
		preferences.DiffViewUnified,
	},
	"general.email_strategy": {
		preferences.EmailStrategyEnabled,
		preferences.EmailStrategyCCOnOwnComments,
		preferences.EmailStrategyAttentionSetOnly,
		preferences.EmailStrategyDisabled,
	},
	"general.email_format": {preferences.EmailFormatPlaintext, preferences.EmailFormatHTMLPlaintext},
	"general.default_base_for_merges": {
		preferences.DefaultBaseAutoMerge,
		preferences.DefaultBaseFirstParent,
	},
	"diff.ignore_whitespace": {
		preferences.IgnoreWhitespaceNone,
		preferences.IgnoreWhitespaceTrailing,
		preferences.IgnoreWhitespaceLeadingTrailing,
		preferences.IgnoreWhitespaceAll,
	},
}

type schemaNode struct {
	Type       string
	Format     string
	Properties map[string]*schemaNode
	Required   []string
	Items      *schemaNode
	Enum       []any
	Default    any
	Nullable   bool
}

func newObjectNode() *schemaNode {
	return &schemaNode{
		Type:       "object",
		Properties: map[string]*schemaNode{},
	}
}

func (n *schemaNode) baseMap() map[string]any {
	result := map[string]any{}
	if n.Type != "" {
		result["type"] = n.Type
	}
	if n.Format != "" {
		result["format"] = n.Format
	}
	if n.Default != nil {
		result["default"] = n.Default
	}
	if len(n.Enum) > 0 {
		result["enum"] = n.Enum
	}
	if n.Nullable {
		result["nullable"] = true
	}
	return result
}

func (n *schemaNode) inlineOpenAPI() map[string]any {
	result := n.baseMap()

	if len(n.Properties) > 0 || n.Type == "object" {
		props := make(map[string]any, len(n.Properties))
		for _, name := range sortedKeys(n.Properties) {
			props[name] = n.Properties[name].inlineOpenAPI()
		}
		result["properties"] = props
	}

	if len(n.Required) > 0 {
		names := append([]string{}, n.Required...)
		sort.Strings(names)
		result["required"] = names
	}

	if n.Items != nil {
		result["items"] = n.Items.inlineOpenAPI()
	}
	return result
}

// Digest identifies structurally equal schemas.
func (n *schemaNode) Digest() string {
	data, err := json.Marshal(n.inlineOpenAPI())
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

type schemaBuilder struct {
	visited      map[reflect.Type]bool
	withDefaults bool
}

func newSchemaBuilder(withDefaults bool) *schemaBuilder {
	return &schemaBuilder{
		visited:      map[reflect.Type]bool{},
		withDefaults: withDefaults,
	}
}

// buildSchemaGraph derives the schema of value. Present pointer fields of
// value become defaults; path is the enumeration prefix of value's fields.
func buildSchemaGraph(value any, path string, withDefaults bool) (*schemaNode, error) {
	builder := newSchemaBuilder(withDefaults)
	rv := reflect.ValueOf(value)
	if !rv.IsValid() {
		return newObjectNode(), nil
	}
	node, err := builder.build(rv, rv.Type(), path)
	if err != nil {
		return nil, err
	}
	if node.Type == "object" && node.Properties == nil {
		node.Properties = map[string]*schemaNode{}
	}
	return node, nil
}

func (b *schemaBuilder) build(rv reflect.Value, rt reflect.Type, path string) (*schemaNode, error) {
	present := false
	for rt.Kind() == reflect.Pointer {
		if rv.IsValid() {
			if rv.IsNil() {
				rv = reflect.Value{}
			} else {
				rv = rv.Elem()
				present = true
			}
		}
		rt = rt.Elem()
	}

	if rt == reflect.TypeOf(time.Time{}) {
		return &schemaNode{Type: "string", Format: "date-time"}, nil
	}

	var node *schemaNode
	switch rt.Kind() {
	case reflect.Bool:
		node = &schemaNode{Type: "boolean"}
	case reflect.Int64, reflect.Uint64:
		node = &schemaNode{Type: "integer", Format: "int64"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		node = &schemaNode{Type: "integer", Format: "int32"}
	case reflect.Float32, reflect.Float64:
		node = &schemaNode{Type: "number"}
	case reflect.String:
		node = &schemaNode{Type: "string"}
		if values, ok := enumerations[path]; ok {
			for _, v := range values {
				node.Enum = append(node.Enum, v)
			}
		}
	case reflect.Struct:
		return b.buildStruct(rv, rt, path)
	case reflect.Slice, reflect.Array:
		return b.buildSlice(rt, path)
	default:
		return nil, fmt.Errorf("openapi: %s at %q unsupported", rt, path)
	}

	if b.withDefaults && present {
		node.Default = rv.Interface()
	}
	return node, nil
}

func (b *schemaBuilder) buildStruct(rv reflect.Value, rt reflect.Type, path string) (*schemaNode, error) {
	if b.visited[rt] {
		return newObjectNode(), nil
	}
	b.visited[rt] = true
	defer delete(b.visited, rt)

	node := newObjectNode()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name, omitEmpty, skip := parseJSONName(field)
		if skip {
			continue
		}
		fieldValue := reflect.Value{}
		if rv.IsValid() {
			fieldValue = rv.Field(i)
		}

		child, err := b.build(fieldValue, field.Type, joinPath(path, name))
		if err != nil {
			return nil, err
		}
		node.Properties[name] = child
		if isFieldRequired(field, omitEmpty) {
			node.Required = append(node.Required, name)
		}
	}
	return node, nil
}

// buildSlice describes a list. Lists of a document are nullable: null marks
// the list as absent, [] as present and empty.
func (b *schemaBuilder) buildSlice(rt reflect.Type, path string) (*schemaNode, error) {
	child, err := b.build(reflect.Value{}, rt.Elem(), path)
	if err != nil {
		return nil, err
	}
	return &schemaNode{Type: "array", Items: child, Nullable: true}, nil
}

func parseJSONName(field reflect.StructField) (name string, omitEmpty bool, skip bool) {
	tag := field.Tag.Get("json")
	if tag == "" {
		return field.Name, false, false
	}

	segments := strings.Split(tag, ",")
	if segments[0] == "-" {
		return "", false, true
	}

	name = segments[0]
	if name == "" {
		name = field.Name
	}
	for _, segment := range segments[1:] {
		if segment == "omitempty" {
			omitEmpty = true
		}
	}
	return name, omitEmpty, false
}

func isFieldRequired(field reflect.StructField, omitEmpty bool) bool {
	if omitEmpty {
		return false
	}
	switch field.Type.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map:
		return false
	default:
		return true
	}
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
