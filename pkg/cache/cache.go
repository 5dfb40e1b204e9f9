// Package cache keeps account snapshots close to their readers. A process
// local tier (go-cache) holds built snapshots; an optional PayloadStore shares
// encoded accounts between processes so a cold process rebuilds from the
// payload with a single identity read.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	accountstate "github.com/goliatone/go-accountstate"
	"github.com/goliatone/go-accountstate/account"
	"github.com/goliatone/go-accountstate/pkg/activity"
	"github.com/goliatone/go-accountstate/preferences"
	"github.com/goliatone/go-accountstate/revision"
)

const (
	DefaultTTL       = 10 * time.Minute
	DefaultKeyPrefix = "accountstate:account:"

	tracerName  = "github.com/goliatone/go-accountstate/pkg/cache"
	defaultsKey = "defaults"
)

// Option configures an AccountCache.
type Option func(*AccountCache)

// WithTTL sets the lifetime of cached entries in both tiers.
func WithTTL(ttl time.Duration) Option {
	return func(c *AccountCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithPayloadStore enables the shared payload tier.
func WithPayloadStore(store PayloadStore) Option {
	return func(c *AccountCache) {
		c.remote = store
	}
}

// WithKeyPrefix namespaces payload keys in the shared tier.
func WithKeyPrefix(prefix string) Option {
	return func(c *AccountCache) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

func WithLogger(logger accountstate.Logger) Option {
	return func(c *AccountCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithEmitter reports snapshot lifecycle events.
func WithEmitter(emitter *activity.Emitter) Option {
	return func(c *AccountCache) {
		c.emitter = emitter
	}
}

func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(c *AccountCache) {
		if provider != nil {
			c.tracer = provider.Tracer(tracerName)
		}
	}
}

// AccountCache serves snapshots from the local tier, then the payload tier,
// then the backing store through the Builder. Absent accounts are not cached.
type AccountCache struct {
	builder *accountstate.Builder
	local   *gocache.Cache
	remote  PayloadStore
	ttl     time.Duration
	prefix  string
	logger  accountstate.Logger
	emitter *activity.Emitter
	tracer  trace.Tracer
}

// New returns a cache reading through builder.
func New(builder *accountstate.Builder, opts ...Option) (*AccountCache, error) {
	if builder == nil {
		return nil, fmt.Errorf("cache: builder is required")
	}
	c := &AccountCache{
		builder: builder,
		ttl:     DefaultTTL,
		prefix:  DefaultKeyPrefix,
		logger:  accountstate.NopLogger{},
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.local = gocache.New(c.ttl, c.ttl+c.ttl/2)
	return c, nil
}

func (c *AccountCache) key(id account.ID) string {
	return c.prefix + id.String()
}

// Get returns the snapshot of id. A missing account yields (nil, false, nil).
func (c *AccountCache) Get(ctx context.Context, id account.ID) (snap *accountstate.Snapshot, found bool, err error) {
	ctx, span := c.startSpan(ctx, "cache.Get", id)
	defer func() { endSpan(span, err) }()

	key := c.key(id)
	if v, ok := c.local.Get(key); ok {
		snap = v.(*accountstate.Snapshot)
		span.SetAttributes(attribute.String("cache.source", activity.SourceLocal))
		c.emit(ctx, activity.BuildSnapshotLoadedEvent, snap.ID(), snap.Key(), activity.SourceLocal)
		return snap, true, nil
	}

	if snap, ok, err := c.fromRemote(ctx, id, key); err != nil || ok {
		if ok {
			span.SetAttributes(attribute.String("cache.source", activity.SourceRemote))
		}
		return snap, ok, err
	}

	snap, found, err = c.builder.FromConfig(ctx, id)
	if err != nil || !found {
		return nil, false, err
	}
	span.SetAttributes(attribute.String("cache.source", activity.SourceStore))
	c.put(ctx, key, snap)
	c.emit(ctx, activity.BuildSnapshotLoadedEvent, id, snap.Key(), activity.SourceStore)
	return snap, true, nil
}

func (c *AccountCache) fromRemote(ctx context.Context, id account.ID, key string) (*accountstate.Snapshot, bool, error) {
	if c.remote == nil {
		return nil, false, nil
	}
	payload, ok, err := c.remote.Get(ctx, key)
	if err != nil {
		c.logger.Warn(ctx, "payload tier read failed", "account", id, "error", err)
		return nil, false, nil
	}
	if !ok {
		return nil, false, nil
	}

	defaults, err := c.defaults(ctx)
	if err != nil {
		return nil, false, err
	}
	snap, err := c.builder.FromCachedPayload(ctx, payload, &defaults)
	if err != nil {
		if errors.Is(err, accountstate.ErrInvalidPayload) || errors.Is(err, accountstate.ErrInconsistentInput) {
			c.logger.Warn(ctx, "discarding cached payload", "account", id, "error", err)
			c.discardRemote(ctx, id, key)
			return nil, false, nil
		}
		return nil, false, err
	}
	if snap.ID() != id {
		c.logger.Warn(ctx, "discarding cached payload", "account", id, "payload_account", snap.ID())
		c.discardRemote(ctx, id, key)
		return nil, false, nil
	}
	c.local.SetDefault(key, snap)
	c.emit(ctx, activity.BuildSnapshotLoadedEvent, id, snap.Key(), activity.SourceRemote)
	return snap, true, nil
}

func (c *AccountCache) discardRemote(ctx context.Context, id account.ID, key string) {
	if err := c.remote.Delete(ctx, key); err != nil {
		c.logger.Warn(ctx, "payload tier delete failed", "account", id, "error", err)
	}
}

// defaults serves the installation document from the local tier.
func (c *AccountCache) defaults(ctx context.Context) (preferences.Document, error) {
	if v, ok := c.local.Get(defaultsKey); ok {
		return v.(preferences.Document).Clone(), nil
	}
	doc, err := c.builder.DefaultPreferences(ctx)
	if err != nil {
		return preferences.Document{}, err
	}
	c.local.SetDefault(defaultsKey, doc.Clone())
	return doc, nil
}

func (c *AccountCache) put(ctx context.Context, key string, snap *accountstate.Snapshot) {
	c.local.SetDefault(key, snap)
	if c.remote == nil {
		return
	}
	payload, err := accountstate.EncodeCachedAccount(snap.Cached())
	if err != nil {
		c.logger.Warn(ctx, "encode cached account failed", "account", snap.ID(), "error", err)
		return
	}
	if err := c.remote.Set(ctx, key, payload, c.ttl); err != nil {
		c.logger.Warn(ctx, "payload tier write failed", "account", snap.ID(), "error", err)
	}
}

// Evict drops id from both tiers. The next Get reloads from the store.
func (c *AccountCache) Evict(ctx context.Context, id account.ID) (err error) {
	ctx, span := c.startSpan(ctx, "cache.Evict", id)
	defer func() { endSpan(span, err) }()

	key := c.key(id)
	var prev accountstate.SnapshotKey
	if v, ok := c.local.Get(key); ok {
		prev = v.(*accountstate.Snapshot).Key()
	}
	c.local.Delete(key)
	if c.remote != nil {
		if err := c.remote.Delete(ctx, key); err != nil {
			return err
		}
	}
	c.emit(ctx, activity.BuildSnapshotEvictedEvent, id, prev, "")
	return nil
}

// RefreshExternalIDs rebuilds the snapshot of id with its identity set read
// at externalIDsRev, the identity head the caller just produced. The account
// configuration is reloaded; cached entries are replaced.
func (c *AccountCache) RefreshExternalIDs(ctx context.Context, id account.ID, externalIDsRev revision.ID) (snap *accountstate.Snapshot, found bool, err error) {
	ctx, span := c.startSpan(ctx, "cache.RefreshExternalIDs", id)
	defer func() { endSpan(span, err) }()

	key := c.key(id)
	snap, found, err = c.builder.FromConfigAt(ctx, id, externalIDsRev)
	if err != nil {
		return nil, false, err
	}
	if !found {
		c.local.Delete(key)
		if c.remote != nil {
			if err := c.remote.Delete(ctx, key); err != nil {
				return nil, false, err
			}
		}
		return nil, false, nil
	}
	c.put(ctx, key, snap)
	c.emit(ctx, activity.BuildExternalIDsRefreshedEvent, id, snap.Key(), activity.SourceStore)
	return snap, true, nil
}

// InvalidateDefaults drops every local entry. Built snapshots embed the
// installation defaults, so a defaults change invalidates all of them. Shared
// payloads do not carry defaults and stay valid.
func (c *AccountCache) InvalidateDefaults() {
	c.local.Flush()
}

// Len reports the number of locally cached entries, including the defaults
// document.
func (c *AccountCache) Len() int {
	return c.local.ItemCount()
}

type eventBuilder func(activity.SnapshotEventInput) activity.Event

func (c *AccountCache) emit(ctx context.Context, build eventBuilder, id account.ID, key accountstate.SnapshotKey, source string) {
	if !c.emitter.Enabled() {
		return
	}
	event := build(activity.SnapshotEventInput{AccountID: id, Key: key, Source: source})
	if err := c.emitter.Emit(ctx, event); err != nil {
		c.logger.Warn(ctx, "activity hook failed", "account", id, "verb", event.Verb, "error", err)
	}
}

func (c *AccountCache) startSpan(ctx context.Context, name string, id account.ID) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, name, trace.WithAttributes(attribute.Int64("account.id", int64(id))))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
