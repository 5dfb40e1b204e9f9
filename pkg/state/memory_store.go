package state

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	accountstate "github.com/goliatone/go-accountstate"
	"github.com/goliatone/go-accountstate/account"
	"github.com/goliatone/go-accountstate/externalid"
	"github.com/goliatone/go-accountstate/preferences"
	"github.com/goliatone/go-accountstate/revision"
)

// MemoryStore is an in-memory Store intended for tests and examples. It keeps
// the full revision history of every source; payloads are stored encoded so
// reads never share memory with earlier writes.
type MemoryStore struct {
	mu          sync.RWMutex
	configs     map[account.ID][]memoryRecord
	externalIDs []memoryRecord
	byRevision  map[revision.ID]int
	defaults    []memoryRecord
}

type memoryRecord struct {
	rev     revision.ID
	payload []byte
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		configs:    map[account.ID][]memoryRecord{},
		byRevision: map[revision.ID]int{},
	}
}

func head(records []memoryRecord) memoryRecord {
	if len(records) == 0 {
		return memoryRecord{}
	}
	return records[len(records)-1]
}

func (s *MemoryStore) LoadAccountConfig(ctx context.Context, id account.ID) (accountstate.AccountConfig, error) {
	if err := ctx.Err(); err != nil {
		return accountstate.AccountConfig{}, err
	}
	s.mu.RLock()
	record := head(s.configs[id])
	extRev := head(s.externalIDs).rev
	s.mu.RUnlock()

	if record.rev.IsZero() {
		return accountstate.AccountConfig{}, nil
	}
	return DecodeAccountConfig(record.payload, record.rev, extRev)
}

func (s *MemoryStore) SaveAccountConfig(ctx context.Context, update AccountUpdate, expected revision.ID) (revision.ID, error) {
	if err := ctx.Err(); err != nil {
		return revision.Zero, err
	}
	payload, err := EncodeAccountUpdate(update)
	if err != nil {
		return revision.Zero, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current := head(s.configs[update.Account.ID])
	if err := CheckExpected(expected, current.rev); err != nil {
		return current.rev, err
	}
	if !current.rev.IsZero() && bytes.Equal(current.payload, payload) {
		return current.rev, nil
	}
	rev := revision.Of(current.rev, payload)
	s.configs[update.Account.ID] = append(s.configs[update.Account.ID], memoryRecord{rev: rev, payload: payload})
	return rev, nil
}

func (s *MemoryStore) ByAccount(ctx context.Context, id account.ID) (externalid.Set, error) {
	if err := ctx.Err(); err != nil {
		return externalid.Set{}, err
	}
	s.mu.RLock()
	record := head(s.externalIDs)
	s.mu.RUnlock()

	if record.rev.IsZero() {
		return externalid.EmptySet(revision.Zero), nil
	}
	return ExternalIDsOf(record.payload, id, record.rev)
}

func (s *MemoryStore) ByAccountAt(ctx context.Context, id account.ID, rev revision.ID) (externalid.Set, error) {
	if err := ctx.Err(); err != nil {
		return externalid.Set{}, err
	}
	s.mu.RLock()
	idx, ok := s.byRevision[rev]
	var record memoryRecord
	if ok {
		record = s.externalIDs[idx]
	}
	s.mu.RUnlock()

	if !ok {
		return externalid.Set{}, fmt.Errorf("%w: external ids %q", ErrUnknownRevision, rev)
	}
	return ExternalIDsOf(record.payload, id, record.rev)
}

func (s *MemoryStore) ExternalIDsHead(ctx context.Context) (revision.ID, error) {
	if err := ctx.Err(); err != nil {
		return revision.Zero, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return head(s.externalIDs).rev, nil
}

func (s *MemoryStore) UpdateExternalIDs(ctx context.Context, upsert []externalid.ExternalID, remove []externalid.Key) (revision.ID, error) {
	if err := ctx.Err(); err != nil {
		return revision.Zero, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current := head(s.externalIDs)
	payload, changed, err := NextExternalIDs(current.payload, upsert, remove)
	if err != nil {
		return current.rev, err
	}
	if !changed {
		return current.rev, nil
	}
	rev := revision.Of(current.rev, payload)
	s.byRevision[rev] = len(s.externalIDs)
	s.externalIDs = append(s.externalIDs, memoryRecord{rev: rev, payload: payload})
	return rev, nil
}

func (s *MemoryStore) LoadDefaultPreferences(ctx context.Context) (preferences.Document, error) {
	if err := ctx.Err(); err != nil {
		return preferences.Document{}, err
	}
	s.mu.RLock()
	record := head(s.defaults)
	s.mu.RUnlock()

	if record.rev.IsZero() {
		return preferences.NewDefaultDocument(), nil
	}
	return DecodeDefaults(record.payload, record.rev)
}

func (s *MemoryStore) SaveDefaultPreferences(ctx context.Context, doc preferences.Document) (revision.ID, error) {
	if err := ctx.Err(); err != nil {
		return revision.Zero, err
	}
	payload, err := EncodeDefaults(doc)
	if err != nil {
		return revision.Zero, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current := head(s.defaults)
	if !current.rev.IsZero() && bytes.Equal(current.payload, payload) {
		return current.rev, nil
	}
	rev := revision.Of(current.rev, payload)
	s.defaults = append(s.defaults, memoryRecord{rev: rev, payload: payload})
	return rev, nil
}
