package externalid

import (
	"context"

	"github.com/goliatone/go-accountstate/account"
	"github.com/goliatone/go-accountstate/revision"
)

// Source reads identity sets from the identity collection of the backing store.
type Source interface {
	// ByAccount reads the identities of accountID at the current head.
	ByAccount(ctx context.Context, accountID account.ID) (Set, error)
	// ByAccountAt reads the identities of accountID at rev exactly.
	ByAccountAt(ctx context.Context, accountID account.ID, rev revision.ID) (Set, error)
}

// Resolve reads the identity set of accountID. A non-zero hint pins the read to
// that revision; callers pass it after advancing the identity collection so the
// revision referenced by the account configuration (accountRef) is not used. With
// neither revision available the account has never had identities and an empty
// set is returned without reading.
func Resolve(ctx context.Context, src Source, accountID account.ID, accountRef, hint revision.ID) (Set, error) {
	rev := hint.Or(accountRef)
	if rev.IsZero() {
		return EmptySet(revision.Zero), nil
	}
	return src.ByAccountAt(ctx, accountID, rev)
}
