package activity

import (
	"strings"
	"time"

	accountstate "github.com/goliatone/go-accountstate"
	"github.com/goliatone/go-accountstate/account"
)

const (
	VerbSnapshotLoaded       = "account.snapshot.loaded"
	VerbSnapshotEvicted      = "account.snapshot.evicted"
	VerbExternalIDsRefreshed = "account.external_ids.refreshed"

	ObjectTypeSnapshot = "account.snapshot"
)

// Snapshot sources reported in event metadata.
const (
	SourceLocal  = "local"
	SourceRemote = "remote"
	SourceStore  = "store"
)

// SnapshotEventInput describes the common fields of snapshot lifecycle events.
type SnapshotEventInput struct {
	ActorID   string
	AccountID account.ID
	// Key is the revision key of the snapshot involved, zero when unknown.
	Key        accountstate.SnapshotKey
	Source     string
	Channel    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildSnapshotLoadedEvent reports a snapshot served to a caller.
func BuildSnapshotLoadedEvent(input SnapshotEventInput) Event {
	return buildSnapshotEvent(VerbSnapshotLoaded, input)
}

// BuildSnapshotEvictedEvent reports a snapshot dropped from the cache.
func BuildSnapshotEvictedEvent(input SnapshotEventInput) Event {
	return buildSnapshotEvent(VerbSnapshotEvicted, input)
}

// BuildExternalIDsRefreshedEvent reports a snapshot rebuilt after the identity
// collection advanced.
func BuildExternalIDsRefreshedEvent(input SnapshotEventInput) Event {
	return buildSnapshotEvent(VerbExternalIDsRefreshed, input)
}

func buildSnapshotEvent(verb string, input SnapshotEventInput) Event {
	metadata := cloneMap(input.Metadata)
	set := func(key string, value string) {
		if value == "" {
			return
		}
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata[key] = value
	}
	set("source", strings.TrimSpace(input.Source))
	set("config_revision", input.Key.ConfigRevision.String())
	set("external_ids_revision", input.Key.ExternalIDsRevision.String())
	set("defaults_revision", input.Key.DefaultsRevision.String())
	set("fingerprint", input.Key.Fingerprint.String())

	id := input.AccountID.String()
	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		AccountID:  id,
		ObjectType: ObjectTypeSnapshot,
		ObjectID:   id,
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}
