package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"Lee_Social/internal/model"
	"Lee_Social/internal/repository/sqlstore"
	"Lee_Social/internal/repository/sqlstore/dbtest"
)

func TestOutboxRelayerMarksSentAndRetries(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	a, b, c := uint64(1), uint64(2), uint64(3)
	for i, target := range []uint64{b, c} {
		if err := db.Create(&model.SocialOutbox{
			ID: uint64(i + 1), EventType: model.EventFollowed, ActorID: a, TargetID: target, Payload: "{}",
		}).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	var delivered []uint64
	sender := func(_ context.Context, ob *model.SocialOutbox) error {
		if ob.TargetID == c {
			return errors.New("broker unavailable")
		}
		delivered = append(delivered, ob.ID)
		return nil
	}
	r := NewOutboxRelayer(db, sender, time.Second, discardLogger())

	if sent := r.drainOnce(ctx); sent != 1 {
		t.Fatalf("expected 1 sent, got %d", sent)
	}
	var ok, failed model.SocialOutbox
	db.First(&ok, 1)
	db.First(&failed, 2)
	if ok.Status != model.OutboxSent {
		t.Fatalf("expected sent status, got %d", ok.Status)
	}
	if failed.Status != model.OutboxFailed || failed.Retry != 1 {
		t.Fatalf("expected failed with one retry, got status=%d retry=%d", failed.Status, failed.Retry)
	}

	for i := 1; i < sqlstore.MaxOutboxRetry; i++ {
		r.drainOnce(ctx)
	}
	db.First(&failed, 2)
	if failed.Retry != sqlstore.MaxOutboxRetry {
		t.Fatalf("expected retries to stop at %d, got %d", sqlstore.MaxOutboxRetry, failed.Retry)
	}
	r.drainOnce(ctx)
	db.First(&failed, 2)
	if failed.Retry != sqlstore.MaxOutboxRetry {
		t.Fatalf("expected no delivery after max retries, got %d", failed.Retry)
	}
	if len(delivered) != 1 {
		t.Fatalf("expected the sent event to be delivered once, got %v", delivered)
	}
}

func TestRelationEventsReachSender(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a, b := h.f.User("a", false), h.f.User("b", false)
	if _, err := h.rel.RequestFollow(ctx, a, b); err != nil {
		t.Fatalf("follow: %v", err)
	}
	if _, err := h.rel.RequestFriend(ctx, a, b); err != nil {
		t.Fatalf("friend: %v", err)
	}

	var types []string
	r := NewOutboxRelayer(h.db, func(_ context.Context, ob *model.SocialOutbox) error {
		types = append(types, ob.EventType)
		return nil
	}, time.Second, discardLogger())
	if sent := r.drainOnce(ctx); sent != 2 {
		t.Fatalf("expected 2 events, got %d", sent)
	}
	if types[0] != model.EventFollowed || types[1] != model.EventFriendRequested {
		t.Fatalf("unexpected event order %v", types)
	}
}
