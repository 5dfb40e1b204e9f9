package preferences

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goliatone/go-accountstate/layering"
	"github.com/goliatone/go-accountstate/revision"
)

// Trace captures how each layer contributed to one field of a category.
type Trace struct {
	Category Category     `json:"category"`
	Path     string       `json:"path"`
	Value    any          `json:"value,omitempty"`
	Layers   []Provenance `json:"layers"`
}

// Provenance details the contribution of one layer to a traced path.
type Provenance struct {
	Level    string      `json:"level"`
	Owner    string      `json:"owner,omitempty"`
	Revision revision.ID `json:"revision,omitempty"`
	Value    any         `json:"value,omitempty"`
	Found    bool        `json:"found"`
}

// Effective returns the layer whose value won, strongest first.
func (t Trace) Effective() (Provenance, bool) {
	for _, p := range t.Layers {
		if p.Found {
			return p, true
		}
	}
	return Provenance{}, false
}

// ToJSON serialises the trace.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON decodes a payload produced by ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var out alias
	if err := json.Unmarshal(payload, &out); err != nil {
		return Trace{}, err
	}
	return Trace(out), nil
}

// TraceField reports, strongest layer first, whether each layer of category c
// sets the field at path (dot separated JSON names) and the value it holds.
func TraceField(c Category, path string, defaults, user *Document) (Trace, error) {
	if err := c.Validate(); err != nil {
		return Trace{}, err
	}
	if !knownField(c, path) {
		return Trace{}, fmt.Errorf("%w: %s.%s", ErrUnknownField, c, path)
	}
	switch c {
	case CategoryGeneral:
		return traceStack(c, path, StackFor(BaselineGeneral(), generalOf, defaults, user))
	case CategoryDiff:
		return traceStack(c, path, StackFor(BaselineDiff(), diffOf, defaults, user))
	default:
		return traceStack(c, path, StackFor(BaselineEdit(), editOf, defaults, user))
	}
}

func traceStack[T any](c Category, path string, stack *Stack[T]) (Trace, error) {
	out := Trace{Category: c, Path: path}
	for _, layer := range stack.Layers() {
		value, found, err := lookupPath(layer.Snapshot, path)
		if err != nil {
			return Trace{}, err
		}
		out.Layers = append(out.Layers, Provenance{
			Level:    layer.Source.Level.String(),
			Owner:    layer.Source.Owner,
			Revision: layer.Revision,
			Value:    value,
			Found:    found,
		})
	}
	if eff, ok := out.Effective(); ok {
		out.Value = eff.Value
	}
	return out, nil
}

func lookupPath(snapshot any, path string) (any, bool, error) {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil, false, fmt.Errorf("preferences: encode layer: %w", err)
	}
	var current any
	if err := json.Unmarshal(raw, &current); err != nil {
		return nil, false, fmt.Errorf("preferences: decode layer: %w", err)
	}
	for _, segment := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false, nil
		}
		current, ok = m[segment]
		if !ok || current == nil {
			return nil, false, nil
		}
	}
	return current, true, nil
}

// Sources lists the layering chain used for the given documents.
func Sources(defaults, user *Document) layering.Chain {
	return StackFor(BaselineGeneral(), generalOf, defaults, user).Chain()
}
