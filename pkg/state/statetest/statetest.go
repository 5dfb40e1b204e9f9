// Package statetest holds the behavioural contract every state.Store
// implementation must satisfy. Implementations call Run from their own tests.
package statetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accountstate "github.com/goliatone/go-accountstate"
	"github.com/goliatone/go-accountstate/account"
	"github.com/goliatone/go-accountstate/externalid"
	"github.com/goliatone/go-accountstate/pkg/state"
	"github.com/goliatone/go-accountstate/preferences"
	"github.com/goliatone/go-accountstate/revision"
	"github.com/goliatone/go-accountstate/watch"
)

// Factory returns an empty store for one subtest.
type Factory func(t *testing.T) state.Store

// Bob is the account used throughout the contract.
const Bob account.ID = 1000

// BobAccount returns the fixture record for Bob.
func BobAccount() account.Account {
	return account.Account{
		ID:             Bob,
		RegisteredOn:   time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
		FullName:       "Bob Builder",
		PreferredEmail: "bob@example.com",
	}
}

// Run executes the store contract against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("missing account is absent", func(t *testing.T) {
		store := newStore(t)
		cfg, err := store.LoadAccountConfig(context.Background(), Bob)
		require.NoError(t, err)
		assert.Nil(t, cfg.Account)
		assert.True(t, cfg.Revision.IsZero())
	})

	t.Run("account config round trip", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		watches, err := watch.NewSet(map[watch.Key]watch.NotifyTypes{
			{Project: "core"}:                       watch.Notify(watch.NewChanges),
			{Project: "docs", Filter: "owner == 1"}: watch.Notify(watch.AllComments, watch.SubmittedChanges),
		})
		require.NoError(t, err)
		prefs := preferences.NewUserDocument(Bob)
		prefs.General.FontSize = preferences.Ptr(12)
		prefs.General.ChangeTable = []string{}

		rev, err := store.SaveAccountConfig(ctx, state.AccountUpdate{
			Account:     BobAccount(),
			Watches:     watches,
			Preferences: &prefs,
		}, revision.Zero)
		require.NoError(t, err)
		require.False(t, rev.IsZero())

		cfg, err := store.LoadAccountConfig(ctx, Bob)
		require.NoError(t, err)
		require.NotNil(t, cfg.Account)
		assert.Equal(t, rev, cfg.Revision)
		assert.Equal(t, rev, cfg.Account.MetaRevision)
		assert.Equal(t, "Bob Builder", cfg.Account.FullName)
		assert.True(t, cfg.Account.RegisteredOn.Equal(BobAccount().RegisteredOn))
		assert.True(t, cfg.Watches.Equal(watches))
		require.NotNil(t, cfg.Preferences)
		assert.Equal(t, Bob, cfg.Preferences.AccountID)
		assert.Equal(t, rev, cfg.Preferences.Revision)
		require.NotNil(t, cfg.Preferences.General.FontSize)
		assert.Equal(t, 12, *cfg.Preferences.General.FontSize)
		assert.NotNil(t, cfg.Preferences.General.ChangeTable, "explicit empty list must stay present")
		assert.Nil(t, cfg.Preferences.General.Theme)
	})

	t.Run("optimistic concurrency", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		first, err := store.SaveAccountConfig(ctx, state.AccountUpdate{Account: BobAccount()}, revision.Zero)
		require.NoError(t, err)

		renamed := BobAccount()
		renamed.DisplayName = "bob"
		second, err := store.SaveAccountConfig(ctx, state.AccountUpdate{Account: renamed}, first)
		require.NoError(t, err)
		assert.NotEqual(t, first, second)

		renamed.DisplayName = "robert"
		got, err := store.SaveAccountConfig(ctx, state.AccountUpdate{Account: renamed}, first)
		require.ErrorIs(t, err, state.ErrRevisionMismatch)
		assert.Equal(t, second, got)

		cfg, err := store.LoadAccountConfig(ctx, Bob)
		require.NoError(t, err)
		assert.Equal(t, "bob", cfg.Account.DisplayName)
	})

	t.Run("identical save keeps the revision", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		first, err := store.SaveAccountConfig(ctx, state.AccountUpdate{Account: BobAccount()}, revision.Zero)
		require.NoError(t, err)
		again, err := store.SaveAccountConfig(ctx, state.AccountUpdate{Account: BobAccount()}, first)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	})

	t.Run("invalid account update", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		_, err := store.SaveAccountConfig(ctx, state.AccountUpdate{}, revision.Zero)
		require.ErrorIs(t, err, state.ErrInvalidUpdate)

		foreign := preferences.NewUserDocument(Bob + 1)
		_, err = store.SaveAccountConfig(ctx, state.AccountUpdate{Account: BobAccount(), Preferences: &foreign}, revision.Zero)
		require.ErrorIs(t, err, state.ErrInvalidUpdate)
	})

	t.Run("identity history", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		headRev, err := store.ExternalIDsHead(ctx)
		require.NoError(t, err)
		assert.True(t, headRev.IsZero())
		empty, err := store.ByAccount(ctx, Bob)
		require.NoError(t, err)
		assert.True(t, empty.IsEmpty())

		ext1, err := store.UpdateExternalIDs(ctx, []externalid.ExternalID{
			externalid.NewUsername("bob", Bob),
			externalid.NewEmail("bob@example.com", Bob),
			externalid.NewUsername("alice", Bob+1),
		}, nil)
		require.NoError(t, err)
		require.False(t, ext1.IsZero())

		ext2, err := store.UpdateExternalIDs(ctx, []externalid.ExternalID{
			externalid.New(externalid.NewKey(externalid.SchemeGerrit, "bob"), Bob),
		}, []externalid.Key{externalid.NewKey(externalid.SchemeMailto, "bob@example.com")})
		require.NoError(t, err)
		assert.NotEqual(t, ext1, ext2)

		headRev, err = store.ExternalIDsHead(ctx)
		require.NoError(t, err)
		assert.Equal(t, ext2, headRev)

		old, err := store.ByAccountAt(ctx, Bob, ext1)
		require.NoError(t, err)
		assert.Equal(t, ext1, old.Revision())
		assert.Equal(t, 2, old.Len())
		assert.True(t, old.Contains(externalid.NewKey(externalid.SchemeMailto, "bob@example.com")))

		current, err := store.ByAccount(ctx, Bob)
		require.NoError(t, err)
		assert.Equal(t, ext2, current.Revision())
		assert.Equal(t, 2, current.Len())
		assert.False(t, current.Contains(externalid.NewKey(externalid.SchemeMailto, "bob@example.com")))

		_, err = store.ByAccountAt(ctx, Bob, revision.ID("no-such-revision"))
		require.ErrorIs(t, err, state.ErrUnknownRevision)
	})

	t.Run("identity update without changes keeps the head", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		rev, err := store.UpdateExternalIDs(ctx, nil, nil)
		require.NoError(t, err)
		assert.True(t, rev.IsZero())

		first, err := store.UpdateExternalIDs(ctx, []externalid.ExternalID{externalid.NewUsername("bob", Bob)}, nil)
		require.NoError(t, err)
		again, err := store.UpdateExternalIDs(ctx, []externalid.ExternalID{externalid.NewUsername("bob", Bob)}, nil)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	})

	t.Run("identity conflicts", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		base, err := store.UpdateExternalIDs(ctx, []externalid.ExternalID{externalid.NewUsername("bob", Bob)}, nil)
		require.NoError(t, err)

		_, err = store.UpdateExternalIDs(ctx, []externalid.ExternalID{externalid.NewUsername("bob", Bob+1)}, nil)
		require.ErrorIs(t, err, state.ErrKeyConflict)

		_, err = store.UpdateExternalIDs(ctx, []externalid.ExternalID{externalid.NewUsername("robert", Bob)}, nil)
		require.ErrorIs(t, err, state.ErrKeyConflict)

		_, err = store.UpdateExternalIDs(ctx, []externalid.ExternalID{
			externalid.NewEmail("x@example.com", Bob),
			externalid.NewEmail("x@example.com", Bob),
		}, nil)
		require.ErrorIs(t, err, externalid.ErrDuplicateKey)

		_, err = store.UpdateExternalIDs(ctx, []externalid.ExternalID{externalid.NewUsername("", Bob)}, nil)
		require.ErrorIs(t, err, state.ErrInvalidUpdate)

		headRev, err := store.ExternalIDsHead(ctx)
		require.NoError(t, err)
		assert.Equal(t, base, headRev, "failed updates must not advance the head")

		renamed, err := store.UpdateExternalIDs(ctx,
			[]externalid.ExternalID{externalid.NewUsername("robert", Bob)},
			[]externalid.Key{externalid.NewKey(externalid.SchemeUsername, "bob")})
		require.NoError(t, err)
		assert.NotEqual(t, base, renamed)
	})

	t.Run("config references the identity head", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		_, err := store.SaveAccountConfig(ctx, state.AccountUpdate{Account: BobAccount()}, revision.Zero)
		require.NoError(t, err)
		cfg, err := store.LoadAccountConfig(ctx, Bob)
		require.NoError(t, err)
		assert.True(t, cfg.ExternalIDsRevision.IsZero())

		ext, err := store.UpdateExternalIDs(ctx, []externalid.ExternalID{externalid.NewUsername("bob", Bob)}, nil)
		require.NoError(t, err)
		cfg, err = store.LoadAccountConfig(ctx, Bob)
		require.NoError(t, err)
		assert.Equal(t, ext, cfg.ExternalIDsRevision)
	})

	t.Run("default preferences", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		doc, err := store.LoadDefaultPreferences(ctx)
		require.NoError(t, err)
		assert.True(t, doc.IsDefault())
		assert.True(t, doc.IsEmpty())
		assert.True(t, doc.Revision.IsZero())

		_, err = store.SaveDefaultPreferences(ctx, preferences.NewUserDocument(Bob))
		require.ErrorIs(t, err, state.ErrInvalidUpdate)

		defaults := preferences.NewDefaultDocument()
		defaults.General.Theme = preferences.Ptr(preferences.ThemeDark)
		rev, err := store.SaveDefaultPreferences(ctx, defaults)
		require.NoError(t, err)
		again, err := store.SaveDefaultPreferences(ctx, defaults)
		require.NoError(t, err)
		assert.Equal(t, rev, again)

		doc, err = store.LoadDefaultPreferences(ctx)
		require.NoError(t, err)
		assert.Equal(t, rev, doc.Revision)
		require.NotNil(t, doc.General.Theme)
		assert.Equal(t, preferences.ThemeDark, *doc.General.Theme)
	})

	t.Run("update preferences", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		_, err := state.UpdatePreferences(ctx, store, Bob, revision.Zero, func(*preferences.Document) error { return nil })
		require.ErrorIs(t, err, state.ErrNotFound)

		base, err := store.SaveAccountConfig(ctx, state.AccountUpdate{Account: BobAccount()}, revision.Zero)
		require.NoError(t, err)

		next, err := state.UpdatePreferences(ctx, store, Bob, base, func(doc *preferences.Document) error {
			doc.Diff.TabSize = preferences.Ptr(4)
			return nil
		})
		require.NoError(t, err)
		assert.NotEqual(t, base, next)

		_, err = state.UpdatePreferences(ctx, store, Bob, base, func(*preferences.Document) error { return nil })
		require.ErrorIs(t, err, state.ErrRevisionMismatch)

		boom := errors.New("boom")
		_, err = state.UpdatePreferences(ctx, store, Bob, next, func(*preferences.Document) error { return boom })
		require.ErrorIs(t, err, boom)

		_, err = state.UpdatePreferences(ctx, store, Bob, next, func(doc *preferences.Document) error {
			doc.AccountID = Bob + 1
			return nil
		})
		require.ErrorIs(t, err, state.ErrInvalidUpdate)

		cfg, err := store.LoadAccountConfig(ctx, Bob)
		require.NoError(t, err)
		assert.Equal(t, next, cfg.Revision)
		require.NotNil(t, cfg.Preferences)
		assert.Equal(t, 4, *cfg.Preferences.Diff.TabSize)
	})

	t.Run("update watches", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		base, err := store.SaveAccountConfig(ctx, state.AccountUpdate{Account: BobAccount()}, revision.Zero)
		require.NoError(t, err)

		_, err = state.UpdateWatches(ctx, store, Bob, base, func(entries *map[watch.Key]watch.NotifyTypes) error {
			(*entries)[watch.Key{Project: "core"}] = watch.Notify(watch.NewPatchSets)
			return nil
		})
		require.NoError(t, err)

		_, err = state.UpdateWatches(ctx, store, Bob, revision.Zero, func(entries *map[watch.Key]watch.NotifyTypes) error {
			(*entries)[watch.Key{Project: " "}] = watch.Notify(watch.NewChanges)
			return nil
		})
		require.ErrorIs(t, err, state.ErrInvalidUpdate)

		cfg, err := store.LoadAccountConfig(ctx, Bob)
		require.NoError(t, err)
		notify, ok := cfg.Watches.Get(watch.Key{Project: "core"})
		require.True(t, ok)
		assert.True(t, notify.Has(watch.NewPatchSets))
	})

	t.Run("snapshot from store", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		defaults := preferences.NewDefaultDocument()
		defaults.General.Theme = preferences.Ptr(preferences.ThemeDark)
		_, err := store.SaveDefaultPreferences(ctx, defaults)
		require.NoError(t, err)
		_, err = store.UpdateExternalIDs(ctx, []externalid.ExternalID{
			externalid.NewUsername("bob", Bob),
			externalid.NewEmail("bob@example.com", Bob),
		}, nil)
		require.NoError(t, err)
		prefs := preferences.NewUserDocument(Bob)
		prefs.General.FontSize = preferences.Ptr(12)
		_, err = store.SaveAccountConfig(ctx, state.AccountUpdate{Account: BobAccount(), Preferences: &prefs}, revision.Zero)
		require.NoError(t, err)

		builder := accountstate.NewBuilder(store, store, store)
		snap, ok, err := builder.FromConfig(ctx, Bob)
		require.NoError(t, err)
		require.True(t, ok)
		name, ok := snap.UserName()
		require.True(t, ok)
		assert.Equal(t, "bob", name)
		assert.Equal(t, 2, snap.ExternalIDs().Len())
		general := snap.GeneralPreferences()
		assert.Equal(t, preferences.ThemeDark, *general.Theme)
		assert.Equal(t, 12, *general.FontSize)
		assert.Equal(t, *preferences.BaselineGeneral().ChangesPerPage, *general.ChangesPerPage)
	})

	t.Run("concurrent writers", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		base, err := store.SaveAccountConfig(ctx, state.AccountUpdate{Account: BobAccount()}, revision.Zero)
		require.NoError(t, err)

		const writers = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
		)
		for i := range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := state.UpdatePreferences(ctx, store, Bob, base, func(doc *preferences.Document) error {
					doc.Edit.TabSize = preferences.Ptr(i + 1)
					return nil
				})
				if err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
					return
				}
				if !errors.Is(err, state.ErrRevisionMismatch) {
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, succeeded)
	})
}
