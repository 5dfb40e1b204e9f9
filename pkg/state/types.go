package state

import (
	"context"
	"errors"
	"fmt"

	accountstate "github.com/goliatone/go-accountstate"
	"github.com/goliatone/go-accountstate/account"
	"github.com/goliatone/go-accountstate/externalid"
	"github.com/goliatone/go-accountstate/preferences"
	"github.com/goliatone/go-accountstate/revision"
	"github.com/goliatone/go-accountstate/watch"
)

var ErrRevisionMismatch = errors.New("state: revision mismatch")

var ErrUnknownRevision = errors.New("state: unknown revision")

var ErrNotFound = errors.New("state: account not found")

var ErrInvalidUpdate = errors.New("state: invalid update")

// ErrKeyConflict reports an identity key that is already claimed by another
// account, or a second username for the same account.
var ErrKeyConflict = errors.New("state: identity key conflict")

// AccountUpdate is one coherent write of an account configuration.
type AccountUpdate struct {
	Account     account.Account
	Watches     watch.Set
	Preferences *preferences.Document
}

// Validate checks the update addresses a real account and that the override
// document, when present, belongs to it.
func (u AccountUpdate) Validate() error {
	if u.Account.ID.IsInstallation() {
		return fmt.Errorf("%w: account id is required", ErrInvalidUpdate)
	}
	if u.Preferences != nil && u.Preferences.AccountID != u.Account.ID {
		return fmt.Errorf("%w: preferences owned by %s, account is %s",
			ErrInvalidUpdate, u.Preferences.AccountID, u.Account.ID)
	}
	return nil
}

// Store is the full backing store: the three loaders the snapshot builder reads
// from plus the writers that advance each source.
type Store interface {
	accountstate.ConfigLoader
	accountstate.DefaultsLoader
	externalid.Source

	// SaveAccountConfig writes a new revision of the account configuration.
	SaveAccountConfig(ctx context.Context, update AccountUpdate, expected revision.ID) (revision.ID, error)
	// UpdateExternalIDs applies removals then upserts to the identity
	// collection and returns the new head.
	UpdateExternalIDs(ctx context.Context, upsert []externalid.ExternalID, remove []externalid.Key) (revision.ID, error)
	// SaveDefaultPreferences writes a new revision of the installation defaults.
	SaveDefaultPreferences(ctx context.Context, doc preferences.Document) (revision.ID, error)
	// ExternalIDsHead returns the current identity collection revision.
	ExternalIDsHead(ctx context.Context) (revision.ID, error)
}

// Mutator edits a value in place.
type Mutator[T any] func(*T) error

// UpdatePreferences loads the account configuration, applies fn to its user
// override document and saves the result. A non-zero expected revision must
// match the loaded configuration revision.
func UpdatePreferences(ctx context.Context, store Store, id account.ID, expected revision.ID, fn Mutator[preferences.Document]) (revision.ID, error) {
	if fn == nil {
		return revision.Zero, fmt.Errorf("state: mutator is required")
	}
	return update(ctx, store, id, expected, func(u *AccountUpdate) error {
		doc := preferences.NewUserDocument(id)
		if u.Preferences != nil {
			doc = u.Preferences.Clone()
		}
		if err := fn(&doc); err != nil {
			return err
		}
		if doc.AccountID != id {
			return fmt.Errorf("%w: preferences reassigned to %s", ErrInvalidUpdate, doc.AccountID)
		}
		doc.Revision = revision.Zero
		if doc.IsEmpty() {
			u.Preferences = nil
			return nil
		}
		u.Preferences = &doc
		return nil
	})
}

// UpdateWatches loads the account configuration, applies fn to a copy of its
// watch entries and saves the result.
func UpdateWatches(ctx context.Context, store Store, id account.ID, expected revision.ID, fn Mutator[map[watch.Key]watch.NotifyTypes]) (revision.ID, error) {
	if fn == nil {
		return revision.Zero, fmt.Errorf("state: mutator is required")
	}
	return update(ctx, store, id, expected, func(u *AccountUpdate) error {
		entries := u.Watches.All()
		if entries == nil {
			entries = map[watch.Key]watch.NotifyTypes{}
		}
		if err := fn(&entries); err != nil {
			return err
		}
		set, err := watch.NewSet(entries)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidUpdate, err)
		}
		u.Watches = set
		return nil
	})
}

func update(ctx context.Context, store Store, id account.ID, expected revision.ID, fn func(*AccountUpdate) error) (revision.ID, error) {
	if store == nil {
		return revision.Zero, fmt.Errorf("state: store is required")
	}
	cfg, err := store.LoadAccountConfig(ctx, id)
	if err != nil {
		return revision.Zero, fmt.Errorf("state: load account %s: %w", id, err)
	}
	if cfg.Account == nil {
		return revision.Zero, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !expected.IsZero() && expected != cfg.Revision {
		return cfg.Revision, fmt.Errorf("%w: expected %q, got %q", ErrRevisionMismatch, expected, cfg.Revision)
	}

	next := AccountUpdate{Account: *cfg.Account, Watches: cfg.Watches, Preferences: cfg.Preferences}
	next.Account.MetaRevision = revision.Zero
	if err := fn(&next); err != nil {
		return cfg.Revision, err
	}

	rev, err := store.SaveAccountConfig(ctx, next, cfg.Revision)
	if err != nil {
		return cfg.Revision, fmt.Errorf("state: save account %s: %w", id, err)
	}
	return rev, nil
}
