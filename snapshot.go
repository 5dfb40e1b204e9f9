// Package accountstate assembles immutable account snapshots from the account
// configuration, the external identity set and the preference documents held
// by a versioned backing store.
package accountstate

import (
	"encoding/json"
	"fmt"

	"github.com/goliatone/go-accountstate/account"
	"github.com/goliatone/go-accountstate/externalid"
	"github.com/goliatone/go-accountstate/layering"
	"github.com/goliatone/go-accountstate/preferences"
	"github.com/goliatone/go-accountstate/revision"
	"github.com/goliatone/go-accountstate/watch"
)

// SnapshotKey identifies the inputs a snapshot was built from. Snapshots with
// equal keys are interchangeable. When any input carries no revision, the key
// also holds a Fingerprint of the full content.
type SnapshotKey struct {
	AccountID           account.ID
	ConfigRevision      revision.ID
	ExternalIDsRevision revision.ID
	DefaultsRevision    revision.ID
	Fingerprint         revision.ID
}

// Pinned reports whether every input is identified by a revision.
func (k SnapshotKey) Pinned() bool {
	return !k.ConfigRevision.IsZero() && !k.ExternalIDsRevision.IsZero() && !k.DefaultsRevision.IsZero()
}

func (k SnapshotKey) String() string {
	out := fmt.Sprintf("%s@%s/%s/%s", k.AccountID, k.ConfigRevision.Short(), k.ExternalIDsRevision.Short(), k.DefaultsRevision.Short())
	if !k.Fingerprint.IsZero() {
		out += "#" + k.Fingerprint.Short()
	}
	return out
}

// Snapshot is the immutable state of one account. It holds copies only and is
// safe for concurrent use. Accessors return copies.
type Snapshot struct {
	account     account.Account
	externalIDs externalid.Set
	userName    string
	hasUserName bool
	watches     watch.Set
	defaults    *preferences.Document
	user        *preferences.Document
	general     preferences.General
	diff        preferences.Diff
	edit        preferences.Edit
	key         SnapshotKey
}

func newSnapshot(acct account.Account, ids externalid.Set, watches watch.Set, defaults, user *preferences.Document, configRev revision.ID) (*Snapshot, error) {
	for _, id := range ids.All() {
		if id.AccountID != acct.ID {
			return nil, mismatch("identity %s belongs to account %s, not %s", id.Key, id.AccountID, acct.ID)
		}
	}
	if defaults != nil && !defaults.IsDefault() {
		return nil, mismatch("default preferences owned by account %s", defaults.AccountID)
	}
	if user != nil && user.AccountID != acct.ID {
		return nil, mismatch("user preferences owned by account %s, not %s", user.AccountID, acct.ID)
	}
	name, ok, err := externalid.UserName(ids)
	if err != nil {
		return nil, inconsistent(err)
	}

	s := &Snapshot{
		account:     acct,
		externalIDs: ids,
		userName:    name,
		hasUserName: ok,
		watches:     watches,
		defaults:    cloneDocument(defaults),
		user:        cloneDocument(user),
	}
	s.general = preferences.ResolveGeneral(s.defaults, s.user)
	s.diff = preferences.ResolveDiff(s.defaults, s.user)
	s.edit = preferences.ResolveEdit(s.defaults, s.user)
	s.key = SnapshotKey{
		AccountID:           acct.ID,
		ConfigRevision:      configRev,
		ExternalIDsRevision: ids.Revision(),
	}
	if s.defaults != nil {
		s.key.DefaultsRevision = s.defaults.Revision
	}
	if !s.key.Pinned() {
		fp, err := s.fingerprint()
		if err != nil {
			return nil, inconsistent(err)
		}
		s.key.Fingerprint = fp
	}
	return s, nil
}

type snapshotContent struct {
	Account     account.Account         `json:"account"`
	ExternalIDs []externalid.ExternalID `json:"external_ids"`
	Watches     watch.Set               `json:"watches"`
	Defaults    *preferences.Document   `json:"defaults"`
	User        *preferences.Document   `json:"user"`
}

func (s *Snapshot) fingerprint() (revision.ID, error) {
	payload, err := json.Marshal(snapshotContent{
		Account:     s.account,
		ExternalIDs: s.externalIDs.All(),
		Watches:     s.watches,
		Defaults:    s.defaults,
		User:        s.user,
	})
	if err != nil {
		return revision.Zero, fmt.Errorf("fingerprint account %s: %w", s.account.ID, err)
	}
	return revision.Of(revision.Zero, payload), nil
}

func cloneDocument(doc *preferences.Document) *preferences.Document {
	if doc == nil {
		return nil
	}
	out := doc.Clone()
	return &out
}

// Account returns the account record.
func (s *Snapshot) Account() account.Account {
	return s.account
}

// ID returns the account id.
func (s *Snapshot) ID() account.ID {
	return s.account.ID
}

// ExternalIDs returns the identity set the snapshot was built with.
func (s *Snapshot) ExternalIDs() externalid.Set {
	return s.externalIDs
}

// UserName returns the username derived from the identity set.
func (s *Snapshot) UserName() (string, bool) {
	return s.userName, s.hasUserName
}

// ProjectWatches returns the watches of the account. It is empty, never nil,
// for accounts without watches.
func (s *Snapshot) ProjectWatches() watch.Set {
	return s.watches
}

// GeneralPreferences returns the effective general settings.
func (s *Snapshot) GeneralPreferences() preferences.General {
	return layering.Clone(s.general)
}

// DiffPreferences returns the effective diff settings.
func (s *Snapshot) DiffPreferences() preferences.Diff {
	return layering.Clone(s.diff)
}

// EditPreferences returns the effective edit settings.
func (s *Snapshot) EditPreferences() preferences.Edit {
	return layering.Clone(s.edit)
}

// EffectivePreferences returns the effective settings of category c.
func (s *Snapshot) EffectivePreferences(c preferences.Category) (preferences.Settings, error) {
	switch c {
	case preferences.CategoryGeneral:
		return s.GeneralPreferences(), nil
	case preferences.CategoryDiff:
		return s.DiffPreferences(), nil
	case preferences.CategoryEdit:
		return s.EditPreferences(), nil
	default:
		return nil, c.Validate()
	}
}

// DefaultPreferences returns the installation default document, if attached.
func (s *Snapshot) DefaultPreferences() (preferences.Document, bool) {
	if s.defaults == nil {
		return preferences.Document{}, false
	}
	return s.defaults.Clone(), true
}

// UserPreferences returns the user override document, if attached.
func (s *Snapshot) UserPreferences() (preferences.Document, bool) {
	if s.user == nil {
		return preferences.Document{}, false
	}
	return s.user.Clone(), true
}

// Key returns the cache identity of the snapshot.
func (s *Snapshot) Key() SnapshotKey {
	return s.key
}

// Equivalent reports whether other was built from the same inputs.
func (s *Snapshot) Equivalent(other *Snapshot) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.key == other.key
}

// Cached returns the pre-resolved form of the snapshot used to rebuild it after
// an identity-only change.
func (s *Snapshot) Cached() CachedAccount {
	return CachedAccount{
		Account:     s.account,
		Watches:     s.watches,
		Preferences: cloneDocument(s.user),
		Revision:    s.key.ConfigRevision,
	}
}

func (s *Snapshot) String() string {
	name := "-"
	if s.hasUserName {
		name = s.userName
	}
	return fmt.Sprintf("Snapshot{account=%s, username=%s, external_ids=%d, watches=%d, key=%s}",
		s.account.ID, name, s.externalIDs.Len(), s.watches.Len(), s.key)
}
