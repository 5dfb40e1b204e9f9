// Package watch models the project watches of an account and matches change
// events against their filter expressions.
package watch

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ErrUnknownNotifyType indicates a notify type name that is not recognised.
var ErrUnknownNotifyType = errors.New("watch: unknown notify type")

// NotifyType is a single notification trigger.
type NotifyType uint8

const (
	NewChanges NotifyType = 1 << iota
	NewPatchSets
	AllComments
	SubmittedChanges
	AbandonedChanges
)

var notifyNames = []struct {
	t    NotifyType
	name string
}{
	{NewChanges, "NEW_CHANGES"},
	{NewPatchSets, "NEW_PATCHSETS"},
	{AllComments, "ALL_COMMENTS"},
	{SubmittedChanges, "SUBMITTED_CHANGES"},
	{AbandonedChanges, "ABANDONED_CHANGES"},
}

func (t NotifyType) String() string {
	for _, n := range notifyNames {
		if n.t == t {
			return n.name
		}
	}
	return fmt.Sprintf("NotifyType(%d)", uint8(t))
}

// ParseNotifyType parses the upper snake case name of a notify type.
func ParseNotifyType(value string) (NotifyType, error) {
	v := strings.ToUpper(strings.TrimSpace(value))
	for _, n := range notifyNames {
		if n.name == v {
			return n.t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownNotifyType, value)
}

// NotifyTypes is a set of notify types.
type NotifyTypes uint8

// Notify builds a set from the given types.
func Notify(types ...NotifyType) NotifyTypes {
	var out NotifyTypes
	for _, t := range types {
		out |= NotifyTypes(t)
	}
	return out
}

// Has reports whether t is part of the set.
func (n NotifyTypes) Has(t NotifyType) bool {
	return n&NotifyTypes(t) != 0
}

// With returns the set extended by t.
func (n NotifyTypes) With(t NotifyType) NotifyTypes {
	return n | NotifyTypes(t)
}

// IsEmpty reports whether the set holds no type.
func (n NotifyTypes) IsEmpty() bool {
	return n == 0
}

// Types lists the members in declaration order.
func (n NotifyTypes) Types() []NotifyType {
	var out []NotifyType
	for _, entry := range notifyNames {
		if n.Has(entry.t) {
			out = append(out, entry.t)
		}
	}
	return out
}

func (n NotifyTypes) String() string {
	types := n.Types()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return "[" + strings.Join(names, ",") + "]"
}

// MarshalJSON encodes the set as a list of names.
func (n NotifyTypes) MarshalJSON() ([]byte, error) {
	types := n.Types()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return json.Marshal(names)
}

// UnmarshalJSON decodes a list of names.
func (n *NotifyTypes) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	var out NotifyTypes
	for _, name := range names {
		t, err := ParseNotifyType(name)
		if err != nil {
			return err
		}
		out = out.With(t)
	}
	*n = out
	return nil
}

// Key identifies a watch: a project and an optional filter expression. An
// empty filter or "*" watches every change of the project.
type Key struct {
	Project string `json:"project"`
	Filter  string `json:"filter,omitempty"`
}

// MatchesAll reports whether the key has no effective filter.
func (k Key) MatchesAll() bool {
	f := strings.TrimSpace(k.Filter)
	return f == "" || f == "*"
}

func (k Key) String() string {
	if k.Filter == "" {
		return k.Project
	}
	return k.Project + "?" + k.Filter
}

func (k Key) compare(other Key) int {
	if c := strings.Compare(k.Project, other.Project); c != 0 {
		return c
	}
	return strings.Compare(k.Filter, other.Filter)
}

// Set is an immutable mapping of watch keys to notify types. The zero Set is
// empty and ready to use.
type Set struct {
	entries map[Key]NotifyTypes
}

// NewSet copies entries into a set. Keys with an empty project are rejected.
func NewSet(entries map[Key]NotifyTypes) (Set, error) {
	for k := range entries {
		if strings.TrimSpace(k.Project) == "" {
			return Set{}, fmt.Errorf("watch: key %q has no project", k.String())
		}
	}
	if len(entries) == 0 {
		return Set{}, nil
	}
	return Set{entries: maps.Clone(entries)}, nil
}

// Len returns the number of watches.
func (s Set) Len() int {
	return len(s.entries)
}

// IsEmpty reports whether the set has no watches.
func (s Set) IsEmpty() bool {
	return len(s.entries) == 0
}

// Get returns the notify types watched under k.
func (s Set) Get(k Key) (NotifyTypes, bool) {
	n, ok := s.entries[k]
	return n, ok
}

// Keys returns the keys sorted by project then filter.
func (s Set) Keys() []Key {
	keys := slices.Collect(maps.Keys(s.entries))
	slices.SortFunc(keys, Key.compare)
	return keys
}

// All returns a copy of the underlying mapping.
func (s Set) All() map[Key]NotifyTypes {
	return maps.Clone(s.entries)
}

// Projects returns the distinct watched projects in sorted order.
func (s Set) Projects() []string {
	var out []string
	for _, k := range s.Keys() {
		out = append(out, k.Project)
	}
	return slices.Compact(out)
}

// Equal reports whether both sets hold the same watches.
func (s Set) Equal(other Set) bool {
	return maps.Equal(s.entries, other.entries)
}

type setEntry struct {
	Key
	Notify NotifyTypes `json:"notify"`
}

// MarshalJSON encodes the set as a list sorted by key.
func (s Set) MarshalJSON() ([]byte, error) {
	entries := make([]setEntry, 0, len(s.entries))
	for _, k := range s.Keys() {
		entries = append(entries, setEntry{Key: k, Notify: s.entries[k]})
	}
	return json.Marshal(entries)
}

// UnmarshalJSON decodes the list form produced by MarshalJSON.
func (s *Set) UnmarshalJSON(data []byte) error {
	var entries []setEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	m := make(map[Key]NotifyTypes, len(entries))
	for _, e := range entries {
		if _, dup := m[e.Key]; dup {
			return fmt.Errorf("watch: duplicate key %q", e.Key.String())
		}
		m[e.Key] = e.Notify
	}
	out, err := NewSet(m)
	if err != nil {
		return err
	}
	*s = out
	return nil
}
