package openapi

import (
	"fmt"
	"regexp"
	"strings"
)

const componentPrefix = "#/components/schemas/"

// componentRegistry publishes schemas under components/schemas. Named
// schemas are always published; anonymous object schemas are published once
// they occur a second time.
type componentRegistry struct {
	entries   map[string]*componentEntry
	order     []*componentEntry
	usedNames map[string]struct{}
}

type componentEntry struct {
	name   string
	schema map[string]any
	uses   int
	named  bool
}

func (e *componentEntry) published() bool {
	return e.named || e.uses >= 2
}

func newComponentRegistry() *componentRegistry {
	return &componentRegistry{
		entries:   map[string]*componentEntry{},
		usedNames: map[string]struct{}{},
	}
}

// name publishes node as name and returns its reference.
func (r *componentRegistry) name(name string, node *schemaNode, schema map[string]any) string {
	entry := r.lookup(name, node, schema)
	entry.named = true
	return componentPrefix + entry.name
}

// reuse records a use of node and returns a reference once node is shared.
func (r *componentRegistry) reuse(nameHint string, node *schemaNode, schema map[string]any) string {
	entry := r.lookup(nameHint, node, schema)
	entry.uses++
	if entry.published() {
		return componentPrefix + entry.name
	}
	return ""
}

func (r *componentRegistry) lookup(nameHint string, node *schemaNode, schema map[string]any) *componentEntry {
	digest := node.Digest()
	if entry, ok := r.entries[digest]; ok {
		return entry
	}
	entry := &componentEntry{name: r.uniqueName(nameHint), schema: schema}
	r.entries[digest] = entry
	r.order = append(r.order, entry)
	return entry
}

func (r *componentRegistry) uniqueName(name string) string {
	safe := sanitizeComponentName(name)
	if safe == "" {
		safe = "Schema"
	}
	candidate := safe
	for suffix := 1; ; suffix++ {
		if _, exists := r.usedNames[candidate]; !exists {
			r.usedNames[candidate] = struct{}{}
			return candidate
		}
		candidate = fmt.Sprintf("%s%d", safe, suffix)
	}
}

func (r *componentRegistry) componentsMap() map[string]any {
	out := map[string]any{}
	for _, entry := range r.order {
		if entry.published() {
			out[entry.name] = entry.schema
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

var componentNameRegexp = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

func sanitizeComponentName(name string) string {
	name = strings.Trim(componentNameRegexp.ReplaceAllString(name, "_"), "_")
	if name != "" && name[0] >= '0' && name[0] <= '9' {
		name = "_" + name
	}
	return name
}

// componentName turns snake_case path segments into a component name, e.g.
// ("General", "my") becomes "GeneralMy".
func componentName(parts ...string) string {
	var b strings.Builder
	for _, part := range parts {
		for _, word := range strings.FieldsFunc(part, func(r rune) bool { return r == '_' || r == '.' || r == ' ' }) {
			b.WriteString(strings.ToUpper(word[:1]))
			b.WriteString(word[1:])
		}
	}
	if b.Len() == 0 {
		return "Schema"
	}
	return b.String()
}
