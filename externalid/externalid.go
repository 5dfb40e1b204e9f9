// Package externalid models the external identities linked to an account and
// resolves the identity set of an account at a pinned revision of the identity
// collection.
package externalid

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-accountstate/account"
	"github.com/goliatone/go-accountstate/revision"
)

// Reserved schemes.
const (
	SchemeUsername    = "username"
	SchemeMailto      = "mailto"
	SchemeGerrit      = "gerrit"
	SchemeUUID        = "uuid"
	SchemeExternal    = "external"
	SchemeGoogleOAuth = "google-oauth"
)

var (
	// ErrInvalidKey indicates a key without scheme or id.
	ErrInvalidKey = errors.New("externalid: invalid key")
	// ErrDuplicateKey indicates a set was built with two identities sharing a key.
	ErrDuplicateKey = errors.New("externalid: duplicate key")
	// ErrAmbiguousUserName indicates more than one username identity for one
	// account. Uniqueness must be enforced before identities reach a Set.
	ErrAmbiguousUserName = errors.New("externalid: more than one username identity")
)

// Key identifies an external identity. It is unique across the collection.
type Key struct {
	Scheme string `json:"scheme"`
	ID     string `json:"id"`
}

// NewKey builds a key for scheme and id.
func NewKey(scheme, id string) Key {
	return Key{Scheme: scheme, ID: id}
}

// ParseKey parses the `scheme:id` form. Keys without scheme are rejected.
func ParseKey(value string) (Key, error) {
	scheme, id, ok := strings.Cut(value, ":")
	if !ok || scheme == "" {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, value)
	}
	return Key{Scheme: scheme, ID: id}, nil
}

// IsScheme reports whether the key uses scheme.
func (k Key) IsScheme(scheme string) bool {
	return k.Scheme == scheme
}

func (k Key) String() string {
	return k.Scheme + ":" + k.ID
}

func (k Key) compare(other Key) int {
	if c := strings.Compare(k.Scheme, other.Scheme); c != 0 {
		return c
	}
	return strings.Compare(k.ID, other.ID)
}

// ExternalID links an external identity to an account.
type ExternalID struct {
	Key       Key        `json:"key"`
	AccountID account.ID `json:"account_id"`
	Email     string     `json:"email,omitempty"`
	// Password holds a hashed credential token, never a plain password.
	Password string `json:"password,omitempty"`
	// BlobRevision marks the last update of this identity.
	BlobRevision revision.ID `json:"blob_revision,omitempty"`
}

// New constructs an identity for key owned by accountID.
func New(key Key, accountID account.ID) ExternalID {
	return ExternalID{Key: key, AccountID: accountID}
}

// NewWithEmail constructs an identity carrying an email address.
func NewWithEmail(key Key, accountID account.ID, email string) ExternalID {
	return ExternalID{Key: key, AccountID: accountID, Email: email}
}

// NewUsername constructs the username identity for accountID.
func NewUsername(name string, accountID account.ID) ExternalID {
	return ExternalID{Key: NewKey(SchemeUsername, name), AccountID: accountID}
}

// NewEmail constructs the mailto identity for accountID.
func NewEmail(email string, accountID account.ID) ExternalID {
	return ExternalID{Key: NewKey(SchemeMailto, email), AccountID: accountID, Email: email}
}

// Validate checks the identity is addressable and owned by a real account.
func (e ExternalID) Validate() error {
	if e.Key.Scheme == "" || e.Key.ID == "" {
		return fmt.Errorf("%w: %q", ErrInvalidKey, e.Key.String())
	}
	if e.AccountID.IsInstallation() {
		return fmt.Errorf("externalid: %s has no owning account", e.Key)
	}
	return nil
}

func (e ExternalID) String() string {
	return fmt.Sprintf("%s(account=%s)", e.Key, e.AccountID)
}
