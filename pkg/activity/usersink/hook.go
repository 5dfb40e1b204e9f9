package usersink

import (
	"context"
	"strings"
	"time"

	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"

	"github.com/goliatone/go-accountstate/account"
	"github.com/goliatone/go-accountstate/pkg/activity"
)

// AccountNamespace seeds the name-based UUIDs derived from numeric account ids.
var AccountNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:go-accountstate:account"))

// AccountUUID maps a numeric account id onto a stable UUID.
func AccountUUID(id account.ID) uuid.UUID {
	return uuid.NewSHA1(AccountNamespace, []byte(id.String()))
}

// Hook adapts activity events to a go-users ActivitySink.
type Hook struct {
	Sink usertypes.ActivitySink
}

// Notify maps the event into an ActivityRecord and forwards it to the sink.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}

	normalized := activity.NormalizeEvent(event)
	if normalized.Verb == "" || normalized.ObjectType == "" || normalized.ObjectID == "" {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	record := usertypes.ActivityRecord{
		ActorID:    toUUID(normalized.ActorID),
		UserID:     toUUID(normalized.AccountID),
		Verb:       normalized.Verb,
		ObjectType: normalized.ObjectType,
		ObjectID:   normalized.ObjectID,
		Channel:    normalized.Channel,
		Data:       normalized.Metadata,
		OccurredAt: normalized.OccurredAt,
	}
	if record.OccurredAt.IsZero() {
		record.OccurredAt = time.Now()
	}
	if normalized.AccountID != "" {
		if record.Data == nil {
			record.Data = map[string]any{}
		}
		record.Data["account_id"] = normalized.AccountID
	}

	return h.Sink.Log(ctx, record)
}

// toUUID accepts either a UUID or a numeric account id.
func toUUID(input string) uuid.UUID {
	value := strings.TrimSpace(input)
	if value == "" {
		return uuid.Nil
	}
	if id, err := uuid.Parse(value); err == nil {
		return id
	}
	if id, err := account.ParseID(value); err == nil {
		return AccountUUID(id)
	}
	return uuid.Nil
}
