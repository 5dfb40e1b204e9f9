// Package account defines the account identifier and the core account record
// as read from the backing store. Records are plain values; this package never
// holds references into storage.
package account

import (
	"fmt"
	"strconv"
	"time"

	"github.com/goliatone/go-accountstate/revision"
)

// ID is the opaque numeric identifier of an account. The zero ID is reserved
// for installation-wide documents and never names a real account.
type ID int64

// Installation is the reserved owner of installation-wide documents.
const Installation ID = 0

// IsInstallation reports whether id is the reserved installation id.
func (id ID) IsInstallation() bool {
	return id == Installation
}

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseID parses the decimal form produced by ID.String.
func ParseID(value string) (ID, error) {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("account: invalid id %q: %w", value, err)
	}
	return ID(n), nil
}

// Account holds the core identity fields of an account. Optional string fields
// use the empty string for "not set".
type Account struct {
	ID             ID          `json:"id"`
	RegisteredOn   time.Time   `json:"registered_on"`
	Inactive       bool        `json:"inactive,omitempty"`
	FullName       string      `json:"full_name,omitempty"`
	DisplayName    string      `json:"display_name,omitempty"`
	PreferredEmail string      `json:"preferred_email,omitempty"`
	Status         string      `json:"status,omitempty"`
	MetaRevision   revision.ID `json:"meta_revision,omitempty"`
}

// Active reports whether the account is active.
func (a Account) Active() bool {
	return !a.Inactive
}

// Name returns the most descriptive name available: the display name, then the
// full name, then the preferred email, falling back to "Account <id>".
func (a Account) Name() string {
	switch {
	case a.DisplayName != "":
		return a.DisplayName
	case a.FullName != "":
		return a.FullName
	case a.PreferredEmail != "":
		return a.PreferredEmail
	default:
		return "Account " + a.ID.String()
	}
}

// NameEmail formats the account as `Name <email>` when an email is present.
func (a Account) NameEmail() string {
	if a.PreferredEmail == "" {
		return a.Name()
	}
	name := a.FullName
	if name == "" {
		name = a.Name()
	}
	if name == a.PreferredEmail {
		return "<" + a.PreferredEmail + ">"
	}
	return name + " <" + a.PreferredEmail + ">"
}
