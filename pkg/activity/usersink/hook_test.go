package usersink_test

import (
	"context"
	"errors"
	"testing"
	"time"

	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"

	"github.com/goliatone/go-accountstate/pkg/activity"
	"github.com/goliatone/go-accountstate/pkg/activity/usersink"
)

type recordingSink struct {
	records []usertypes.ActivityRecord
	err     error
}

func (s *recordingSink) Log(_ context.Context, record usertypes.ActivityRecord) error {
	s.records = append(s.records, record)
	return s.err
}

func TestHookNotifyMapsEvent(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	actorID := uuid.New()
	event := activity.BuildSnapshotLoadedEvent(activity.SnapshotEventInput{
		ActorID:    actorID.String(),
		AccountID:  1000,
		Source:     activity.SourceRemote,
		Channel:    "accounts",
		OccurredAt: now,
	})

	if err := hook.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
	record := sink.records[0]
	if record.ActorID != actorID {
		t.Fatalf("expected actor %s got %s", actorID, record.ActorID)
	}
	if record.UserID != usersink.AccountUUID(1000) {
		t.Fatalf("expected derived account uuid, got %s", record.UserID)
	}
	if record.Verb != activity.VerbSnapshotLoaded || record.ObjectType != activity.ObjectTypeSnapshot || record.ObjectID != "1000" {
		t.Fatalf("unexpected record payload: %+v", record)
	}
	if record.Channel != "accounts" {
		t.Fatalf("expected channel accounts got %q", record.Channel)
	}
	if !record.OccurredAt.Equal(now) {
		t.Fatalf("expected occurred_at %v got %v", now, record.OccurredAt)
	}
	if record.Data["source"] != activity.SourceRemote || record.Data["account_id"] != "1000" {
		t.Fatalf("unexpected data: %+v", record.Data)
	}
}

func TestAccountUUIDIsStable(t *testing.T) {
	if usersink.AccountUUID(1000) != usersink.AccountUUID(1000) {
		t.Fatalf("expected stable uuid")
	}
	if usersink.AccountUUID(1000) == usersink.AccountUUID(1001) {
		t.Fatalf("expected distinct uuids per account")
	}
	if usersink.AccountUUID(1000).Version() != 5 {
		t.Fatalf("expected name-based uuid")
	}
}

func TestHookNotifySkipsIncompleteEvents(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	_ = hook.Notify(context.Background(), activity.Event{})

	if len(sink.records) != 0 {
		t.Fatalf("expected no records for empty event, got %d", len(sink.records))
	}
	if err := (usersink.Hook{}).Notify(context.Background(), activity.Event{Verb: "x", ObjectType: "y", ObjectID: "z"}); err != nil {
		t.Fatalf("nil sink must be a no-op, got %v", err)
	}
}

func TestHookNotifyDefaultsTimestampAndPropagatesErrors(t *testing.T) {
	boom := errors.New("sink down")
	sink := &recordingSink{err: boom}
	hook := usersink.Hook{Sink: sink}

	err := hook.Notify(context.Background(), activity.Event{
		Verb:       activity.VerbSnapshotEvicted,
		ActorID:    "not-a-uuid",
		ObjectType: activity.ObjectTypeSnapshot,
		ObjectID:   "1000",
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected sink error, got %v", err)
	}
	if sink.records[0].OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be defaulted")
	}
	if sink.records[0].ActorID != uuid.Nil {
		t.Fatalf("unparseable actor must map to uuid.Nil")
	}
}
