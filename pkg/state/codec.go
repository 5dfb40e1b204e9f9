package state

import (
	"bytes"
	"encoding/json"
	"fmt"

	accountstate "github.com/goliatone/go-accountstate"
	"github.com/goliatone/go-accountstate/account"
	"github.com/goliatone/go-accountstate/externalid"
	"github.com/goliatone/go-accountstate/preferences"
	"github.com/goliatone/go-accountstate/revision"
	"github.com/goliatone/go-accountstate/watch"
)

// The helpers below define the stored payload of each source. Store
// implementations persist these bytes verbatim and hash them with revision.Of,
// so two stores fed the same writes agree on every revision.

type storedConfig struct {
	Account     account.Account       `json:"account"`
	Watches     watch.Set             `json:"watches"`
	Preferences *preferences.Document `json:"preferences,omitempty"`
}

// CheckExpected enforces the optimistic concurrency rule shared by all writers.
func CheckExpected(expected, head revision.ID) error {
	if expected.IsZero() || expected == head {
		return nil
	}
	return fmt.Errorf("%w: expected %q, got %q", ErrRevisionMismatch, expected, head)
}

// EncodeAccountUpdate validates u and returns its stored payload. Revision
// markers are stripped; they are assigned by the store on read.
func EncodeAccountUpdate(u AccountUpdate) ([]byte, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	stored := storedConfig{Account: u.Account, Watches: u.Watches}
	stored.Account.MetaRevision = revision.Zero
	if u.Preferences != nil {
		doc := u.Preferences.Clone()
		doc.Revision = revision.Zero
		stored.Preferences = &doc
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("state: encode account %s: %w", u.Account.ID, err)
	}
	return raw, nil
}

// DecodeAccountConfig rebuilds the account configuration stored at rev.
func DecodeAccountConfig(raw []byte, rev, externalIDsRev revision.ID) (accountstate.AccountConfig, error) {
	var stored storedConfig
	if err := json.Unmarshal(raw, &stored); err != nil {
		return accountstate.AccountConfig{}, fmt.Errorf("state: decode account config %s: %w", rev.Short(), err)
	}
	acct := stored.Account
	acct.MetaRevision = rev
	if stored.Preferences != nil {
		stored.Preferences.Revision = rev
	}
	return accountstate.AccountConfig{
		Account:             &acct,
		Watches:             stored.Watches,
		Preferences:         stored.Preferences,
		Revision:            rev,
		ExternalIDsRevision: externalIDsRev,
	}, nil
}

// NextExternalIDs applies remove then upsert to the stored identity collection
// current (nil when the collection has no revision yet). It reports whether the
// collection changed and returns the payload of the next revision.
func NextExternalIDs(current []byte, upsert []externalid.ExternalID, remove []externalid.Key) ([]byte, bool, error) {
	ids, err := DecodeExternalIDs(current)
	if err != nil {
		return nil, false, err
	}
	before, err := encodeExternalIDs(ids)
	if err != nil {
		return nil, false, err
	}

	byKey := make(map[externalid.Key]externalid.ExternalID, len(ids)+len(upsert))
	for _, e := range ids {
		byKey[e.Key] = e
	}
	for _, k := range remove {
		delete(byKey, k)
	}
	seen := make(map[externalid.Key]struct{}, len(upsert))
	for _, e := range upsert {
		if err := e.Validate(); err != nil {
			return nil, false, fmt.Errorf("%w: %w", ErrInvalidUpdate, err)
		}
		if _, dup := seen[e.Key]; dup {
			return nil, false, fmt.Errorf("%w: %s", externalid.ErrDuplicateKey, e.Key)
		}
		seen[e.Key] = struct{}{}
		if prev, ok := byKey[e.Key]; ok && prev.AccountID != e.AccountID {
			return nil, false, fmt.Errorf("%w: %s is owned by account %s", ErrKeyConflict, e.Key, prev.AccountID)
		}
		byKey[e.Key] = e
	}

	next := make([]externalid.ExternalID, 0, len(byKey))
	for _, e := range byKey {
		next = append(next, e)
	}
	set, err := externalid.NewSet(revision.Zero, next...)
	if err != nil {
		return nil, false, err
	}
	next = set.All()

	usernames := make(map[account.ID]externalid.Key)
	for _, e := range next {
		if !e.Key.IsScheme(externalid.SchemeUsername) {
			continue
		}
		if other, ok := usernames[e.AccountID]; ok {
			return nil, false, fmt.Errorf("%w: account %s already has %s, cannot add %s",
				ErrKeyConflict, e.AccountID, other, e.Key)
		}
		usernames[e.AccountID] = e.Key
	}

	after, err := encodeExternalIDs(next)
	if err != nil {
		return nil, false, err
	}
	return after, !bytes.Equal(before, after), nil
}

// DecodeExternalIDs decodes a stored identity collection.
func DecodeExternalIDs(raw []byte) ([]externalid.ExternalID, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var ids []externalid.ExternalID
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("state: decode external ids: %w", err)
	}
	return ids, nil
}

// ExternalIDsOf selects the identities of id from a stored collection.
func ExternalIDsOf(raw []byte, id account.ID, rev revision.ID) (externalid.Set, error) {
	ids, err := DecodeExternalIDs(raw)
	if err != nil {
		return externalid.Set{}, err
	}
	var owned []externalid.ExternalID
	for _, e := range ids {
		if e.AccountID == id {
			owned = append(owned, e)
		}
	}
	return externalid.NewSet(rev, owned...)
}

func encodeExternalIDs(ids []externalid.ExternalID) ([]byte, error) {
	if ids == nil {
		ids = []externalid.ExternalID{}
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("state: encode external ids: %w", err)
	}
	return raw, nil
}

// EncodeDefaults returns the stored payload of the installation defaults.
func EncodeDefaults(doc preferences.Document) ([]byte, error) {
	if !doc.IsDefault() {
		return nil, fmt.Errorf("%w: default preferences owned by account %s", ErrInvalidUpdate, doc.AccountID)
	}
	doc = doc.Clone()
	doc.Revision = revision.Zero
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("state: encode default preferences: %w", err)
	}
	return raw, nil
}

// DecodeDefaults rebuilds the installation defaults stored at rev.
func DecodeDefaults(raw []byte, rev revision.ID) (preferences.Document, error) {
	doc := preferences.NewDefaultDocument()
	if err := json.Unmarshal(raw, &doc); err != nil {
		return preferences.Document{}, fmt.Errorf("state: decode default preferences %s: %w", rev.Short(), err)
	}
	doc.Revision = rev
	return doc, nil
}
