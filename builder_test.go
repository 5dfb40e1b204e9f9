package accountstate_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	accountstate "github.com/goliatone/go-accountstate"
	"github.com/goliatone/go-accountstate/account"
	"github.com/goliatone/go-accountstate/externalid"
	"github.com/goliatone/go-accountstate/preferences"
	"github.com/goliatone/go-accountstate/revision"
	"github.com/goliatone/go-accountstate/watch"
)

type fakeConfigs struct {
	mu      sync.Mutex
	configs map[account.ID]accountstate.AccountConfig
	err     error
	calls   int
}

func (f *fakeConfigs) LoadAccountConfig(_ context.Context, id account.ID) (accountstate.AccountConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return accountstate.AccountConfig{}, f.err
	}
	return f.configs[id], nil
}

type fakeIdentities struct {
	mu    sync.Mutex
	head  revision.ID
	sets  map[revision.ID][]externalid.ExternalID
	err   error
	reads []revision.ID
}

func (f *fakeIdentities) ByAccount(ctx context.Context, id account.ID) (externalid.Set, error) {
	return f.ByAccountAt(ctx, id, f.head)
}

func (f *fakeIdentities) ByAccountAt(_ context.Context, id account.ID, rev revision.ID) (externalid.Set, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, rev)
	if f.err != nil {
		return externalid.Set{}, f.err
	}
	var owned []externalid.ExternalID
	for _, e := range f.sets[rev] {
		if e.AccountID == id {
			owned = append(owned, e)
		}
	}
	return externalid.NewSet(rev, owned...)
}

const bob account.ID = 1000

func bobFixture() (*fakeConfigs, *fakeIdentities, preferences.Document) {
	registered := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)
	userDoc := preferences.NewUserDocument(bob)
	userDoc.Revision = "cfg1"
	userDoc.General.FontSize = preferences.Ptr(12)
	watches, _ := watch.NewSet(map[watch.Key]watch.NotifyTypes{
		{Project: "core"}: watch.Notify(watch.NewChanges),
	})
	configs := &fakeConfigs{configs: map[account.ID]accountstate.AccountConfig{
		bob: {
			Account: &account.Account{
				ID:             bob,
				RegisteredOn:   registered,
				FullName:       "Bob Builder",
				PreferredEmail: "bob@example.com",
			},
			Watches:             watches,
			Preferences:         &userDoc,
			Revision:            "cfg1",
			ExternalIDsRevision: "ext1",
		},
	}}
	ids := &fakeIdentities{
		head: "ext2",
		sets: map[revision.ID][]externalid.ExternalID{
			"ext1": {
				externalid.NewUsername("bob", bob),
				externalid.NewEmail("bob@example.com", bob),
			},
			"ext2": {
				externalid.NewUsername("bob", bob),
				externalid.NewEmail("bob@example.com", bob),
				externalid.New(externalid.NewKey(externalid.SchemeGoogleOAuth, "12345"), bob),
			},
		},
	}
	defaults := preferences.NewDefaultDocument()
	defaults.Revision = "def1"
	defaults.General.Theme = preferences.Ptr(preferences.ThemeDark)
	return configs, ids, defaults
}

func TestFromConfigBuildsSnapshot(t *testing.T) {
	configs, ids, defaults := bobFixture()
	b := accountstate.NewBuilder(configs, ids, accountstate.StaticDefaults(defaults))

	snap, found, err := b.FromConfig(context.Background(), bob)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if !found || snap == nil {
		t.Fatalf("expected snapshot for existing account")
	}
	if name, ok := snap.UserName(); !ok || name != "bob" {
		t.Fatalf("UserName = (%q, %v), want bob", name, ok)
	}
	if snap.ExternalIDs().Len() != 2 {
		t.Fatalf("expected 2 identities at the config revision, got %d", snap.ExternalIDs().Len())
	}
	if snap.ProjectWatches().Len() != 1 {
		t.Fatalf("expected 1 watch, got %d", snap.ProjectWatches().Len())
	}

	general := snap.GeneralPreferences()
	want := preferences.BaselineGeneral()
	want.Theme = preferences.Ptr(preferences.ThemeDark)
	want.FontSize = preferences.Ptr(12)
	if !reflect.DeepEqual(want, general) {
		t.Fatalf("general mismatch:\nwant: %#v\n got: %#v", want, general)
	}

	key := snap.Key()
	wantKey := accountstate.SnapshotKey{AccountID: bob, ConfigRevision: "cfg1", ExternalIDsRevision: "ext1", DefaultsRevision: "def1"}
	if key != wantKey {
		t.Fatalf("unexpected key %+v", key)
	}
	if _, ok := snap.DefaultPreferences(); !ok {
		t.Fatalf("expected default document")
	}
	if doc, ok := snap.UserPreferences(); !ok || doc.AccountID != bob {
		t.Fatalf("expected user document for bob")
	}
}

func TestFromConfigAtPinsIdentityRevision(t *testing.T) {
	configs, ids, defaults := bobFixture()
	b := accountstate.NewBuilder(configs, ids, accountstate.StaticDefaults(defaults))

	snap, _, err := b.FromConfigAt(context.Background(), bob, "ext2")
	if err != nil {
		t.Fatalf("FromConfigAt: %v", err)
	}
	if snap.ExternalIDs().Revision() != "ext2" || snap.ExternalIDs().Len() != 3 {
		t.Fatalf("expected pinned revision ext2 with 3 identities, got %s/%d",
			snap.ExternalIDs().Revision(), snap.ExternalIDs().Len())
	}
	if snap.Key().ConfigRevision != "cfg1" {
		t.Fatalf("config revision must stay with the account config")
	}
}

func TestFromConfigIsStableAtPinnedRevisions(t *testing.T) {
	configs, ids, defaults := bobFixture()
	b := accountstate.NewBuilder(configs, ids, accountstate.StaticDefaults(defaults))

	first, _, err := b.FromConfig(context.Background(), bob)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	second, _, err := b.FromConfig(context.Background(), bob)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if !first.Equivalent(second) {
		t.Fatalf("expected equivalent snapshots: %s vs %s", first, second)
	}
	if !first.ExternalIDs().Equal(second.ExternalIDs()) {
		t.Fatalf("identity sets differ across reads at the same revision")
	}
	n1, _ := first.UserName()
	n2, _ := second.UserName()
	if n1 != n2 {
		t.Fatalf("usernames differ: %q vs %q", n1, n2)
	}
}

func TestFromConfigMissingAccount(t *testing.T) {
	configs, ids, _ := bobFixture()
	defaultsCalls := 0
	defaults := accountstate.DefaultsLoaderFunc(func(context.Context) (preferences.Document, error) {
		defaultsCalls++
		return preferences.NewDefaultDocument(), nil
	})
	b := accountstate.NewBuilder(configs, ids, defaults)

	snap, found, err := b.FromConfig(context.Background(), 4242)
	if err != nil || found || snap != nil {
		t.Fatalf("expected absent result, got (%v, %v, %v)", snap, found, err)
	}
	if defaultsCalls != 0 || len(ids.reads) != 0 {
		t.Fatalf("absent account must not trigger further reads")
	}
}

func TestFromConfigPropagatesReadFailures(t *testing.T) {
	ioErr := errors.New("disk on fire")
	cases := []struct {
		name  string
		setup func(*fakeConfigs, *fakeIdentities) accountstate.DefaultsLoader
		op    string
	}{
		{
			name: "account config",
			setup: func(c *fakeConfigs, _ *fakeIdentities) accountstate.DefaultsLoader {
				c.err = ioErr
				return nil
			},
			op: "load account config",
		},
		{
			name: "external ids",
			setup: func(_ *fakeConfigs, i *fakeIdentities) accountstate.DefaultsLoader {
				i.err = ioErr
				return nil
			},
			op: "load external ids",
		},
		{
			name: "default preferences",
			setup: func(*fakeConfigs, *fakeIdentities) accountstate.DefaultsLoader {
				return accountstate.DefaultsLoaderFunc(func(context.Context) (preferences.Document, error) {
					return preferences.Document{}, ioErr
				})
			},
			op: "load default preferences",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			configs, ids, _ := bobFixture()
			b := accountstate.NewBuilder(configs, ids, tc.setup(configs, ids))

			snap, found, err := b.FromConfig(context.Background(), bob)
			if snap != nil || found {
				t.Fatalf("no snapshot may be returned on failure")
			}
			if !errors.Is(err, accountstate.ErrBackingStoreRead) {
				t.Fatalf("expected ErrBackingStoreRead, got %v", err)
			}
			if !errors.Is(err, ioErr) {
				t.Fatalf("expected the cause to be preserved, got %v", err)
			}
			var readErr *accountstate.ReadError
			if !errors.As(err, &readErr) || readErr.Op != tc.op || readErr.AccountID != bob {
				t.Fatalf("unexpected read error %#v", err)
			}
		})
	}
}

func TestFromConfigRejectsInconsistentInput(t *testing.T) {
	t.Run("foreign user document", func(t *testing.T) {
		configs, ids, defaults := bobFixture()
		cfg := configs.configs[bob]
		foreign := preferences.NewUserDocument(7)
		cfg.Preferences = &foreign
		configs.configs[bob] = cfg

		b := accountstate.NewBuilder(configs, ids, accountstate.StaticDefaults(defaults))
		_, _, err := b.FromConfig(context.Background(), bob)
		if !errors.Is(err, accountstate.ErrAccountMismatch) || !errors.Is(err, accountstate.ErrInconsistentInput) {
			t.Fatalf("expected ErrAccountMismatch, got %v", err)
		}
	})

	t.Run("default document owned by an account", func(t *testing.T) {
		configs, ids, _ := bobFixture()
		b := accountstate.NewBuilder(configs, ids, accountstate.StaticDefaults(preferences.NewUserDocument(bob)))
		_, _, err := b.FromConfig(context.Background(), bob)
		if !errors.Is(err, accountstate.ErrAccountMismatch) {
			t.Fatalf("expected ErrAccountMismatch, got %v", err)
		}
	})

	t.Run("two usernames", func(t *testing.T) {
		configs, ids, defaults := bobFixture()
		ids.sets["ext1"] = append(ids.sets["ext1"], externalid.NewUsername("robert", bob))
		b := accountstate.NewBuilder(configs, ids, accountstate.StaticDefaults(defaults))
		_, _, err := b.FromConfig(context.Background(), bob)
		if !errors.Is(err, externalid.ErrAmbiguousUserName) || !errors.Is(err, accountstate.ErrInconsistentInput) {
			t.Fatalf("expected ErrAmbiguousUserName, got %v", err)
		}
	})
}

func TestFromCachedAccountReadsOnlyIdentities(t *testing.T) {
	configs, ids, defaults := bobFixture()
	b := accountstate.NewBuilder(configs, ids, accountstate.StaticDefaults(defaults))
	snap, _, err := b.FromConfig(context.Background(), bob)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	callsBefore := configs.calls

	rebuilt, err := b.FromCachedAccount(context.Background(), snap.Cached(), &defaults)
	if err != nil {
		t.Fatalf("FromCachedAccount: %v", err)
	}
	if configs.calls != callsBefore {
		t.Fatalf("path B must not re-read the account config")
	}
	if rebuilt.ExternalIDs().Revision() != "ext2" || rebuilt.ExternalIDs().Len() != 3 {
		t.Fatalf("expected identities at head ext2, got %s", rebuilt.ExternalIDs().Revision())
	}
	if !rebuilt.ProjectWatches().Equal(snap.ProjectWatches()) {
		t.Fatalf("watches must be reused verbatim")
	}
	if !reflect.DeepEqual(rebuilt.GeneralPreferences(), snap.GeneralPreferences()) {
		t.Fatalf("preferences must be reused verbatim")
	}
	if rebuilt.Key().ConfigRevision != "cfg1" || rebuilt.Equivalent(snap) {
		t.Fatalf("unexpected key %s", rebuilt.Key())
	}
}

func TestFromCachedPayloadRoundTrip(t *testing.T) {
	configs, ids, defaults := bobFixture()
	b := accountstate.NewBuilder(configs, ids, accountstate.StaticDefaults(defaults))
	snap, _, err := b.FromConfigAt(context.Background(), bob, "ext2")
	if err != nil {
		t.Fatalf("FromConfigAt: %v", err)
	}

	payload, err := accountstate.EncodeCachedAccount(snap.Cached())
	if err != nil {
		t.Fatalf("EncodeCachedAccount: %v", err)
	}
	rebuilt, err := b.FromCachedPayload(context.Background(), payload, &defaults)
	if err != nil {
		t.Fatalf("FromCachedPayload: %v", err)
	}
	if !rebuilt.Equivalent(snap) {
		t.Fatalf("expected equivalent snapshot, got %s vs %s", rebuilt.Key(), snap.Key())
	}
	if !rebuilt.Account().RegisteredOn.Equal(snap.Account().RegisteredOn) {
		t.Fatalf("registration time lost in payload")
	}
	if !reflect.DeepEqual(rebuilt.DiffPreferences(), snap.DiffPreferences()) {
		t.Fatalf("diff preferences differ after round trip")
	}

	for _, bad := range []string{`{}`, `{"version": 9, "account": {"id": 1}}`, `{"version": 1, "account": {"id": 0}}`, `not json`} {
		if _, err := b.FromCachedPayload(context.Background(), []byte(bad), &defaults); !errors.Is(err, accountstate.ErrInvalidPayload) {
			t.Fatalf("payload %s: expected ErrInvalidPayload, got %v", bad, err)
		}
	}
}

func TestForAccountUsesBaseline(t *testing.T) {
	snap, err := accountstate.ForAccount(account.Account{ID: 5, FullName: "Service"})
	if err != nil {
		t.Fatalf("ForAccount: %v", err)
	}
	for _, c := range preferences.Categories() {
		got, err := snap.EffectivePreferences(c)
		if err != nil {
			t.Fatalf("EffectivePreferences(%s): %v", c, err)
		}
		want, _ := preferences.Baseline(c)
		if !reflect.DeepEqual(want, got) {
			t.Fatalf("%s: expected baseline", c)
		}
	}
	if !snap.ProjectWatches().IsEmpty() {
		t.Fatalf("expected no watches")
	}
	if _, ok := snap.DefaultPreferences(); ok {
		t.Fatalf("expected no default document")
	}
	if _, ok := snap.UserPreferences(); ok {
		t.Fatalf("expected no user document")
	}
	if _, ok := snap.UserName(); ok {
		t.Fatalf("expected no username")
	}
	if _, err := snap.EffectivePreferences("menus"); !errors.Is(err, preferences.ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
}

func TestForAccountWithIdentities(t *testing.T) {
	snap, err := accountstate.ForAccount(account.Account{ID: 5},
		externalid.NewUsername("alice", 5),
		externalid.NewEmail("alice@example.com", 5),
	)
	if err != nil {
		t.Fatalf("ForAccount: %v", err)
	}
	if name, ok := snap.UserName(); !ok || name != "alice" {
		t.Fatalf("UserName = (%q, %v)", name, ok)
	}

	_, err = accountstate.ForAccount(account.Account{ID: 5}, externalid.NewUsername("alice", 6))
	if !errors.Is(err, accountstate.ErrAccountMismatch) {
		t.Fatalf("expected ErrAccountMismatch, got %v", err)
	}
	_, err = accountstate.ForAccount(account.Account{ID: 5}, externalid.NewUsername("a", 5), externalid.NewUsername("a", 5))
	if !errors.Is(err, externalid.ErrDuplicateKey) || !errors.Is(err, accountstate.ErrInconsistentInput) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestForAccountKeyReflectsContent(t *testing.T) {
	alice, err := accountstate.ForAccount(account.Account{ID: 9, FullName: "A"}, externalid.NewUsername("alice", 9))
	if err != nil {
		t.Fatalf("ForAccount: %v", err)
	}
	again, err := accountstate.ForAccount(account.Account{ID: 9, FullName: "A"}, externalid.NewUsername("alice", 9))
	if err != nil {
		t.Fatalf("ForAccount: %v", err)
	}
	bobby, err := accountstate.ForAccount(account.Account{ID: 9, FullName: "B"}, externalid.NewUsername("bob", 9))
	if err != nil {
		t.Fatalf("ForAccount: %v", err)
	}

	if alice.Key().Pinned() || alice.Key().Fingerprint.IsZero() {
		t.Fatalf("expected an unpinned key with a fingerprint, got %s", alice.Key())
	}
	if !alice.Equivalent(again) {
		t.Fatalf("identical content must be equivalent: %s vs %s", alice.Key(), again.Key())
	}
	if alice.Equivalent(bobby) || alice.Key() == bobby.Key() {
		t.Fatalf("different content must not be equivalent: %s", alice.Key())
	}
}

func TestUnrevisionedDefaultsKeyReflectsContent(t *testing.T) {
	configs, ids, _ := bobFixture()
	cfg := configs.configs[bob]
	b := accountstate.NewBuilder(configs, ids, nil)

	dark := preferences.NewDefaultDocument()
	dark.General.Theme = preferences.Ptr(preferences.ThemeDark)
	empty := preferences.NewDefaultDocument()

	first, _, err := b.FromAccountConfig(context.Background(), cfg, revision.Zero, &dark)
	if err != nil {
		t.Fatalf("FromAccountConfig: %v", err)
	}
	second, _, err := b.FromAccountConfig(context.Background(), cfg, revision.Zero, &empty)
	if err != nil {
		t.Fatalf("FromAccountConfig: %v", err)
	}
	if *first.GeneralPreferences().Theme == *second.GeneralPreferences().Theme {
		t.Fatalf("expected different themes")
	}
	if first.Equivalent(second) {
		t.Fatalf("snapshots with different defaults must not be equivalent: %s", first.Key())
	}

	third, _, err := b.FromAccountConfig(context.Background(), cfg, revision.Zero, &dark)
	if err != nil {
		t.Fatalf("FromAccountConfig: %v", err)
	}
	if !first.Equivalent(third) {
		t.Fatalf("expected equivalent snapshots: %s vs %s", first.Key(), third.Key())
	}
}

func TestPinnedKeyHasNoFingerprint(t *testing.T) {
	configs, ids, defaults := bobFixture()
	b := accountstate.NewBuilder(configs, ids, accountstate.StaticDefaults(defaults))
	snap, _, err := b.FromConfig(context.Background(), bob)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if !snap.Key().Pinned() || !snap.Key().Fingerprint.IsZero() {
		t.Fatalf("expected a pinned key without fingerprint, got %s", snap.Key())
	}
}

func TestFromCachedAccountRejectsInstallationID(t *testing.T) {
	configs, ids, defaults := bobFixture()
	b := accountstate.NewBuilder(configs, ids, accountstate.StaticDefaults(defaults))
	readsBefore := len(ids.reads)

	_, err := b.FromCachedAccount(context.Background(), accountstate.CachedAccount{
		Account: account.Account{ID: account.Installation},
	}, &defaults)
	if !errors.Is(err, accountstate.ErrInconsistentInput) {
		t.Fatalf("expected ErrInconsistentInput, got %v", err)
	}
	if len(ids.reads) != readsBefore {
		t.Fatalf("no identities may be read for the installation id")
	}
}

func TestSnapshotAccessorsReturnCopies(t *testing.T) {
	configs, ids, defaults := bobFixture()
	b := accountstate.NewBuilder(configs, ids, accountstate.StaticDefaults(defaults))
	snap, _, err := b.FromConfig(context.Background(), bob)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}

	general := snap.GeneralPreferences()
	*general.Theme = preferences.ThemeLight
	general.My = nil
	doc, _ := snap.UserPreferences()
	doc.General.FontSize = preferences.Ptr(40)

	again := snap.GeneralPreferences()
	if *again.Theme != preferences.ThemeDark || len(again.My) == 0 || *again.FontSize != 12 {
		t.Fatalf("snapshot state changed through an accessor: %#v", again)
	}

	cfg := configs.configs[bob]
	cfg.Preferences.General.FontSize = preferences.Ptr(99)
	if *snap.GeneralPreferences().FontSize != 12 {
		t.Fatalf("snapshot aliases the loaded config")
	}
}

func TestSnapshotConcurrentReads(t *testing.T) {
	configs, ids, defaults := bobFixture()
	b := accountstate.NewBuilder(configs, ids, accountstate.StaticDefaults(defaults))
	snap, _, err := b.FromConfig(context.Background(), bob)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, c := range preferences.Categories() {
				if _, err := snap.EffectivePreferences(c); err != nil {
					t.Errorf("EffectivePreferences: %v", err)
				}
			}
			_ = snap.String()
		}()
	}
	wg.Wait()
}
