package accountstate

import (
	"context"

	"github.com/goliatone/go-accountstate/account"
	"github.com/goliatone/go-accountstate/preferences"
	"github.com/goliatone/go-accountstate/revision"
	"github.com/goliatone/go-accountstate/watch"
)

// AccountConfig is one coherent read of an account's own configuration. The
// record, watches and user preferences always come from the same revision.
type AccountConfig struct {
	// Account is nil when the account does not exist.
	Account     *account.Account
	Watches     watch.Set
	Preferences *preferences.Document
	// Revision of the account configuration that was read.
	Revision revision.ID
	// ExternalIDsRevision is the identity collection revision the account
	// configuration references.
	ExternalIDsRevision revision.ID
}

// ConfigLoader reads account configurations from the backing store.
type ConfigLoader interface {
	LoadAccountConfig(ctx context.Context, id account.ID) (AccountConfig, error)
}

// DefaultsLoader reads the installation default preference document.
type DefaultsLoader interface {
	LoadDefaultPreferences(ctx context.Context) (preferences.Document, error)
}

// ConfigLoaderFunc adapts a function to ConfigLoader.
type ConfigLoaderFunc func(ctx context.Context, id account.ID) (AccountConfig, error)

// LoadAccountConfig implements ConfigLoader.
func (f ConfigLoaderFunc) LoadAccountConfig(ctx context.Context, id account.ID) (AccountConfig, error) {
	return f(ctx, id)
}

// DefaultsLoaderFunc adapts a function to DefaultsLoader.
type DefaultsLoaderFunc func(ctx context.Context) (preferences.Document, error)

// LoadDefaultPreferences implements DefaultsLoader.
func (f DefaultsLoaderFunc) LoadDefaultPreferences(ctx context.Context) (preferences.Document, error) {
	return f(ctx)
}

// StaticDefaults serves a fixed default document.
func StaticDefaults(doc preferences.Document) DefaultsLoader {
	doc = doc.Clone()
	return DefaultsLoaderFunc(func(context.Context) (preferences.Document, error) {
		return doc.Clone(), nil
	})
}
