// Package revision models opaque, comparable markers that identify one state
// of a logical data source in the backing store. Two reads of the same source
// at the same revision are expected to observe identical data.
package revision

import (
	"encoding/hex"

	"github.com/zeebo/xxh3"
)

// ID identifies a single revision. The zero value means "no revision".
type ID string

// Zero is the empty revision marker.
const Zero ID = ""

// IsZero reports whether id is the empty revision marker.
func (id ID) IsZero() bool {
	return id == Zero
}

func (id ID) String() string {
	return string(id)
}

// Short returns an abbreviated form suitable for logs.
func (id ID) Short() string {
	if len(id) <= 12 {
		return string(id)
	}
	return string(id[:12])
}

// Or returns id unless it is zero, in which case fallback is returned.
func (id ID) Or(fallback ID) ID {
	if id.IsZero() {
		return fallback
	}
	return id
}

// Of derives a revision from the parent revision and the encoded content of
// the new state. Identical content on top of the same parent always yields the
// same revision, while the parent chaining keeps revisions distinct across
// history even when content repeats.
func Of(parent ID, payload []byte) ID {
	h := xxh3.New()
	_, _ = h.WriteString(string(parent))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(payload)
	sum := h.Sum128().Bytes()
	return ID(hex.EncodeToString(sum[:]))
}
