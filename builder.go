package accountstate

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/goliatone/go-accountstate/account"
	"github.com/goliatone/go-accountstate/externalid"
	"github.com/goliatone/go-accountstate/preferences"
	"github.com/goliatone/go-accountstate/revision"
	"github.com/goliatone/go-accountstate/watch"
)

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets the logger used for build diagnostics.
func WithLogger(logger Logger) BuilderOption {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithTracerProvider starts spans from provider instead of the global one.
func WithTracerProvider(provider trace.TracerProvider) BuilderOption {
	return func(b *Builder) {
		if provider != nil {
			b.tracer = provider.Tracer(TracerName)
		}
	}
}

// Builder assembles snapshots from backing store reads. It keeps no mutable
// state; concurrent builds share nothing.
type Builder struct {
	configs     ConfigLoader
	externalIDs externalid.Source
	defaults    DefaultsLoader
	logger      Logger
	tracer      trace.Tracer
}

// NewBuilder returns a Builder reading through the given collaborators.
func NewBuilder(configs ConfigLoader, externalIDs externalid.Source, defaults DefaultsLoader, opts ...BuilderOption) *Builder {
	b := &Builder{
		configs:     configs,
		externalIDs: externalIDs,
		defaults:    defaults,
		logger:      NopLogger{},
		tracer:      defaultTracer(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// FromConfig loads the configuration of id and the default preferences and
// builds a snapshot. A missing account yields (nil, false, nil).
func (b *Builder) FromConfig(ctx context.Context, id account.ID) (*Snapshot, bool, error) {
	return b.FromConfigAt(ctx, id, revision.Zero)
}

// FromConfigAt is FromConfig with the identity set pinned to externalIDsRev
// when non-zero. Callers that just advanced the identity collection pass the
// new head so the stale reference in the account configuration is not used.
func (b *Builder) FromConfigAt(ctx context.Context, id account.ID, externalIDsRev revision.ID) (snap *Snapshot, found bool, err error) {
	ctx, span := b.startSpan(ctx, "accountstate.FromConfig", id)
	defer func() { endSpan(span, err) }()

	cfg, err := b.configs.LoadAccountConfig(ctx, id)
	if err != nil {
		b.logger.Error(ctx, "load account config failed", "account", id, "error", err)
		return nil, false, readError("load account config", id, err)
	}
	if cfg.Account == nil {
		b.logger.Debug(ctx, "account not found", "account", id)
		return nil, false, nil
	}
	if cfg.Account.ID != id {
		return nil, false, mismatch("config for %s holds account %s", id, cfg.Account.ID)
	}
	defaults, err := b.loadDefaults(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return b.FromAccountConfig(ctx, cfg, externalIDsRev, &defaults)
}

// FromAccountConfig builds a snapshot from an already loaded configuration.
// The identity set is read at externalIDsRev when non-zero, else at the
// revision cfg references.
func (b *Builder) FromAccountConfig(ctx context.Context, cfg AccountConfig, externalIDsRev revision.ID, defaults *preferences.Document) (*Snapshot, bool, error) {
	if cfg.Account == nil {
		return nil, false, nil
	}
	acct := *cfg.Account
	ids, err := externalid.Resolve(ctx, b.externalIDs, acct.ID, cfg.ExternalIDsRevision, externalIDsRev)
	if err != nil {
		b.logger.Error(ctx, "load external ids failed", "account", acct.ID, "revision", externalIDsRev.Or(cfg.ExternalIDsRevision), "error", err)
		return nil, false, readError("load external ids", acct.ID, err)
	}
	snap, err := newSnapshot(acct, ids, cfg.Watches, defaults, cfg.Preferences, cfg.Revision)
	if err != nil {
		b.logger.Warn(ctx, "inconsistent account config", "account", acct.ID, "error", err)
		return nil, false, err
	}
	b.logger.Debug(ctx, "snapshot built", "account", acct.ID, "key", snap.Key().String())
	return snap, true, nil
}

// FromCachedAccount rebuilds a snapshot from a pre-resolved account, reading
// only the identity set at the current head of the identity collection.
func (b *Builder) FromCachedAccount(ctx context.Context, cached CachedAccount, defaults *preferences.Document) (snap *Snapshot, err error) {
	id := cached.Account.ID
	ctx, span := b.startSpan(ctx, "accountstate.FromCachedAccount", id)
	defer func() { endSpan(span, err) }()

	if id.IsInstallation() {
		return nil, fmt.Errorf("%w: cached account has no id", ErrInconsistentInput)
	}
	ids, err := b.externalIDs.ByAccount(ctx, id)
	if err != nil {
		b.logger.Error(ctx, "load external ids failed", "account", id, "error", err)
		return nil, readError("load external ids", id, err)
	}
	snap, err = newSnapshot(cached.Account, ids, cached.Watches, defaults, cached.Preferences, cached.Revision)
	if err != nil {
		b.logger.Warn(ctx, "inconsistent cached account", "account", id, "error", err)
		return nil, err
	}
	return snap, nil
}

// FromCachedPayload decodes a payload written by EncodeCachedAccount and
// rebuilds the snapshot through FromCachedAccount.
func (b *Builder) FromCachedPayload(ctx context.Context, payload []byte, defaults *preferences.Document) (*Snapshot, error) {
	cached, err := DecodeCachedAccount(payload)
	if err != nil {
		return nil, err
	}
	return b.FromCachedAccount(ctx, cached, defaults)
}

// DefaultPreferences reads the installation default document.
func (b *Builder) DefaultPreferences(ctx context.Context) (preferences.Document, error) {
	return b.loadDefaults(ctx, account.Installation)
}

func (b *Builder) loadDefaults(ctx context.Context, id account.ID) (preferences.Document, error) {
	if b.defaults == nil {
		return preferences.NewDefaultDocument(), nil
	}
	doc, err := b.defaults.LoadDefaultPreferences(ctx)
	if err != nil {
		b.logger.Error(ctx, "load default preferences failed", "error", err)
		return preferences.Document{}, readError("load default preferences", id, err)
	}
	return doc, nil
}

// ForAccount builds a snapshot for an account materialised outside the
// backing store. No reads happen; no preference documents or watches are
// attached, so effective settings are the built-in baseline. The identity set
// has no revision.
func ForAccount(acct account.Account, ids ...externalid.ExternalID) (*Snapshot, error) {
	set, err := externalid.NewSet(revision.Zero, ids...)
	if err != nil {
		return nil, inconsistent(err)
	}
	return newSnapshot(acct, set, watch.Set{}, nil, nil, revision.Zero)
}
