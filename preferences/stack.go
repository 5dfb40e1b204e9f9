package preferences

import (
	"errors"
	"fmt"
	"slices"

	"github.com/goliatone/go-accountstate/layering"
	"github.com/goliatone/go-accountstate/revision"
)

var (
	// ErrUnknownLevel indicates a layer without precedence.
	ErrUnknownLevel = errors.New("preferences: layer level must be set")
	// ErrDuplicateLevel indicates two layers sharing a precedence level.
	ErrDuplicateLevel = errors.New("preferences: layer levels must be unique")
)

// Layer pairs the settings one source contributes with the source metadata.
type Layer[T any] struct {
	Source   layering.Source
	Revision revision.ID
	Snapshot T
}

// NewLayer deep copies snapshot into a layer.
func NewLayer[T any](src layering.Source, rev revision.ID, snapshot T) Layer[T] {
	return Layer[T]{Source: src, Revision: rev, Snapshot: layering.Clone(snapshot)}
}

func (l Layer[T]) clone() Layer[T] {
	return Layer[T]{Source: l.Source, Revision: l.Revision, Snapshot: layering.Clone(l.Snapshot)}
}

// Stack is an immutable set of layers ordered strongest first.
type Stack[T any] struct {
	layers []Layer[T]
}

// NewStack validates the layers and orders them strongest first. Layers are
// deep copied so the stack stays read-only after construction.
func NewStack[T any](layers ...Layer[T]) (*Stack[T], error) {
	seen := make(map[layering.Level]struct{}, len(layers))
	copied := make([]Layer[T], 0, len(layers))
	for _, layer := range layers {
		if layer.Source.Level == layering.LevelUnknown {
			return nil, ErrUnknownLevel
		}
		if _, ok := seen[layer.Source.Level]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateLevel, layer.Source.Level)
		}
		seen[layer.Source.Level] = struct{}{}
		copied = append(copied, layer.clone())
	}
	slices.SortFunc(copied, func(a, b Layer[T]) int {
		return int(b.Source.Level) - int(a.Source.Level)
	})
	return &Stack[T]{layers: copied}, nil
}

// Layers returns a deep copy of the layers, strongest first.
func (s *Stack[T]) Layers() []Layer[T] {
	if s == nil || len(s.layers) == 0 {
		return nil
	}
	out := make([]Layer[T], len(s.layers))
	for i := range s.layers {
		out[i] = s.layers[i].clone()
	}
	return out
}

// Len returns the number of layers.
func (s *Stack[T]) Len() int {
	if s == nil {
		return 0
	}
	return len(s.layers)
}

// Chain returns the layer sources, strongest first.
func (s *Stack[T]) Chain() layering.Chain {
	if s == nil {
		return layering.NewChain()
	}
	sources := make([]layering.Source, len(s.layers))
	for i := range s.layers {
		sources[i] = s.layers[i].Source
	}
	return layering.NewChain(sources...)
}

// Merge folds the stack into effective settings. An empty stack yields the
// zero value.
func (s *Stack[T]) Merge() T {
	if s == nil || len(s.layers) == 0 {
		var zero T
		return zero
	}
	snapshots := make([]T, len(s.layers))
	for i := range s.layers {
		snapshots[i] = s.layers[i].Snapshot
	}
	return layering.Merge(snapshots...)
}
