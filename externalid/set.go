package externalid

import (
	"fmt"
	"slices"

	"github.com/goliatone/go-accountstate/revision"
)

// Set is an immutable collection of identities, unique by key, resolved at one
// revision of the identity collection. Identities are held in key order so
// iteration is deterministic.
type Set struct {
	ids []ExternalID
	rev revision.ID
}

// EmptySet returns an empty set read at rev.
func EmptySet(rev revision.ID) Set {
	return Set{rev: rev}
}

// NewSet builds a set read at rev. Two identities with the same key yield
// ErrDuplicateKey.
func NewSet(rev revision.ID, ids ...ExternalID) (Set, error) {
	if len(ids) == 0 {
		return Set{rev: rev}, nil
	}
	sorted := slices.Clone(ids)
	slices.SortStableFunc(sorted, func(a, b ExternalID) int {
		return a.Key.compare(b.Key)
	})
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].Key == sorted[i].Key {
			return Set{}, fmt.Errorf("%w: %s", ErrDuplicateKey, sorted[i].Key)
		}
	}
	return Set{ids: sorted, rev: rev}, nil
}

// Revision returns the revision of the identity collection the set was read at.
func (s Set) Revision() revision.ID {
	return s.rev
}

// Len returns the number of identities.
func (s Set) Len() int {
	return len(s.ids)
}

// IsEmpty reports whether the set has no identities.
func (s Set) IsEmpty() bool {
	return len(s.ids) == 0
}

// All returns a copy of the identities in key order.
func (s Set) All() []ExternalID {
	if len(s.ids) == 0 {
		return nil
	}
	return slices.Clone(s.ids)
}

// Get returns the identity stored under key.
func (s Set) Get(key Key) (ExternalID, bool) {
	i, found := slices.BinarySearchFunc(s.ids, key, func(e ExternalID, k Key) int {
		return e.Key.compare(k)
	})
	if !found {
		return ExternalID{}, false
	}
	return s.ids[i], true
}

// Contains reports whether key is part of the set.
func (s Set) Contains(key Key) bool {
	_, ok := s.Get(key)
	return ok
}

// ByScheme returns the identities using scheme, in key order.
func (s Set) ByScheme(scheme string) []ExternalID {
	var out []ExternalID
	for _, id := range s.ids {
		if id.Key.IsScheme(scheme) {
			out = append(out, id)
		}
	}
	return out
}

// Emails returns the distinct, sorted email addresses carried by the set.
func (s Set) Emails() []string {
	var out []string
	for _, id := range s.ids {
		if id.Email == "" {
			continue
		}
		out = append(out, id.Email)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Equal reports whether both sets hold the same identities at the same revision.
func (s Set) Equal(other Set) bool {
	return s.rev == other.rev && slices.Equal(s.ids, other.ids)
}

// UserName derives the username of the set. No username identity, or one with
// an empty id, yields ok == false. More than one yields ErrAmbiguousUserName.
func UserName(s Set) (name string, ok bool, err error) {
	usernames := s.ByScheme(SchemeUsername)
	switch len(usernames) {
	case 0:
		return "", false, nil
	case 1:
		name = usernames[0].Key.ID
		return name, name != "", nil
	default:
		keys := make([]string, len(usernames))
		for i, id := range usernames {
			keys[i] = id.Key.String()
		}
		return "", false, fmt.Errorf("%w: %v", ErrAmbiguousUserName, keys)
	}
}
