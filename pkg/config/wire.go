package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	accountstate "github.com/goliatone/go-accountstate"
	"github.com/goliatone/go-accountstate/pkg/activity"
	"github.com/goliatone/go-accountstate/pkg/cache"
	"github.com/goliatone/go-accountstate/pkg/state"
	"github.com/goliatone/go-accountstate/pkg/state/sqlstore"
	"github.com/goliatone/go-accountstate/watch"
)

// Logger builds the structured logger writing to w.
func (c Config) Logger(w io.Writer) (*accountstate.SlogLogger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return nil, fmt.Errorf("%w: log.level %q", ErrInvalidConfig, c.Log.Level)
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(c.Log.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return accountstate.NewSlogLogger(slog.New(handler)), nil
}

// OpenStore opens the configured backing store. The returned close function
// is never nil.
func (c Config) OpenStore(ctx context.Context) (state.Store, func() error, error) {
	if strings.EqualFold(c.Store.Driver, "memory") {
		return state.NewMemoryStore(), func() error { return nil }, nil
	}
	dialect, err := sqlstore.ParseDialect(c.Store.Driver)
	if err != nil {
		return nil, nil, err
	}
	store, err := sqlstore.Open(ctx, dialect, c.Store.DSN)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

// PayloadStore builds the shared cache tier, nil when disabled.
func (c Config) PayloadStore() (cache.PayloadStore, error) {
	switch strings.ToLower(c.Cache.Remote) {
	case "", "none":
		return nil, nil
	case "redis":
		client := cache.NewRedisClient(c.Cache.RedisAddr, c.Cache.RedisPassword, c.Cache.RedisDB)
		return cache.NewRedisPayloadStore(client), nil
	case "memcached":
		return cache.NewMemcachePayloadStore(cache.NewMemcacheClient(c.Cache.MemcachedAddr)), nil
	default:
		return nil, fmt.Errorf("%w: cache.remote %q", ErrInvalidConfig, c.Cache.Remote)
	}
}

// CacheOptions translates the cache section into cache options.
func (c Config) CacheOptions(logger accountstate.Logger, hooks activity.Hooks) ([]cache.Option, error) {
	remote, err := c.PayloadStore()
	if err != nil {
		return nil, err
	}
	opts := []cache.Option{
		cache.WithTTL(c.Cache.TTL.Std()),
		cache.WithKeyPrefix(c.Cache.KeyPrefix),
		cache.WithLogger(logger),
		cache.WithEmitter(activity.NewEmitter(hooks, activity.Config{
			Enabled: c.Activity.Enabled,
			Channel: c.Activity.Channel,
		})),
	}
	if remote != nil {
		opts = append(opts, cache.WithPayloadStore(remote))
	}
	return opts, nil
}

// Evaluator builds the watch filter evaluator.
func (c Config) Evaluator(registry *watch.FunctionRegistry) (watch.Evaluator, error) {
	programs := watch.NewProgramCache(c.Watch.ProgramCacheTTL.Std())
	switch strings.ToLower(c.Watch.Engine) {
	case "", "expr":
		return watch.NewExprEvaluator(
			watch.ExprWithProgramCache(programs),
			watch.ExprWithFunctionRegistry(registry),
		), nil
	case "cel":
		return watch.NewCELEvaluator(
			watch.CELWithProgramCache(programs),
			watch.CELWithFunctionRegistry(registry),
		), nil
	case "js":
		if !watch.JSEvaluatorAvailable() {
			return nil, fmt.Errorf("%w: watch.engine js requires the js_eval build tag", ErrInvalidConfig)
		}
		return watch.NewJSEvaluator(
			watch.JSWithProgramCache(programs),
			watch.JSWithFunctionRegistry(registry),
		), nil
	default:
		return nil, fmt.Errorf("%w: watch.engine %q", ErrInvalidConfig, c.Watch.Engine)
	}
}
