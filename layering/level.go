package layering

import (
	"fmt"
	"slices"
	"strings"
)

// Level identifies the precedence of a layer. Higher levels override lower
// levels when merging.
type Level int

const (
	// LevelUnknown marks a layer without precedence metadata.
	LevelUnknown Level = iota
	// LevelBaseline is the built-in layer every field is populated in.
	LevelBaseline
	// LevelDefault is the installation-wide default document.
	LevelDefault
	// LevelUser is the per-account override document.
	LevelUser
)

func (l Level) String() string {
	switch l {
	case LevelBaseline:
		return "baseline"
	case LevelDefault:
		return "default"
	case LevelUser:
		return "user"
	default:
		return "unknown"
	}
}

// ParseLevel converts the String form back into a Level. Unrecognised values
// yield LevelUnknown.
func ParseLevel(value string) Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "baseline":
		return LevelBaseline
	case "default":
		return LevelDefault
	case "user":
		return LevelUser
	default:
		return LevelUnknown
	}
}

// Source names one layer within a chain.
type Source struct {
	Level Level
	// Owner is the account the layer belongs to when Level == LevelUser.
	Owner string
}

// Identifier returns a stable slug for the source, e.g. "user/1000".
func (s Source) Identifier() string {
	if s.Level == LevelUser {
		return fmt.Sprintf("user/%s", s.Owner)
	}
	return s.Level.String()
}

// Chain is the ordered layering sequence from strongest to weakest.
type Chain struct {
	ordered []Source
}

// NewChain orders sources strongest first and drops unknown levels and
// duplicate identifiers, keeping the first occurrence.
func NewChain(sources ...Source) Chain {
	filtered := make([]Source, 0, len(sources))
	seen := map[string]struct{}{}
	for _, src := range sources {
		if src.Level == LevelUnknown {
			continue
		}
		id := src.Identifier()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		filtered = append(filtered, src)
	}
	slices.SortStableFunc(filtered, func(a, b Source) int {
		return int(b.Level) - int(a.Level)
	})
	return Chain{ordered: filtered}
}

// Ordered returns a copy of the chain, strongest first.
func (c Chain) Ordered() []Source {
	return slices.Clone(c.ordered)
}

// Len returns the number of sources.
func (c Chain) Len() int {
	return len(c.ordered)
}

// Strongest returns the first source, or the zero Source for an empty chain.
func (c Chain) Strongest() Source {
	if len(c.ordered) == 0 {
		return Source{}
	}
	return c.ordered[0]
}

// Weakest returns the last source, or the zero Source for an empty chain.
func (c Chain) Weakest() Source {
	if len(c.ordered) == 0 {
		return Source{}
	}
	return c.ordered[len(c.ordered)-1]
}
