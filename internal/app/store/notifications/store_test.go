package notifications_test

import (
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/dalemusser/hearthgate/internal/app/store/notifications"
	"github.com/dalemusser/hearthgate/internal/domain/models"
	"github.com/dalemusser/hearthgate/internal/testutil"
)

func newStore(t *testing.T) *notifications.Store {
	t.Helper()
	db := testutil.SetupTestDB(t)
	store := notifications.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes: %v", err)
	}
	return store
}

func TestSaveAssignsIdentity(t *testing.T) {
	store := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	n := &models.Notification{Title: "Dinner time", Target: "/meals"}
	if err := store.Save(ctx, n); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if n.ID == "" {
		t.Error("Save should assign an id")
	}
	if n.CreatedAt.IsZero() {
		t.Error("Save should stamp CreatedAt")
	}
}

func TestPending_RedeliversUntilAcked(t *testing.T) {
	store := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	base := time.Now().UTC().Add(-time.Minute)
	for i, title := range []string{"first", "second", "third"} {
		n := &models.Notification{
			Title:     title,
			Target:    "/",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := store.Save(ctx, n); err != nil {
			t.Fatal(err)
		}
	}

	pending, err := store.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("pending: %d", len(pending))
	}
	for i, want := range []string{"first", "second", "third"} {
		if pending[i].Title != want {
			t.Errorf("pending[%d]: got %q, want %q (arrival order)", i, pending[i].Title, want)
		}
	}

	// Nothing acked yet: a poll whose response was lost sees them again.
	again, err := store.Pending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 3 {
		t.Fatalf("unacked poll should redeliver, got %d", len(again))
	}

	if err := store.Ack(ctx, []string{pending[0].ID, pending[2].ID}); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	left, err := store.Pending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 1 || left[0].Title != "second" {
		t.Fatalf("after ack: %+v", left)
	}

	// Acking nothing or unknown ids is a no-op.
	if err := store.Ack(ctx, nil); err != nil {
		t.Errorf("empty Ack: %v", err)
	}
	if err := store.Ack(ctx, []string{"no-such-id"}); err != nil {
		t.Errorf("unknown-id Ack: %v", err)
	}
}

func TestInteract_ReturnsTargetAndStamps(t *testing.T) {
	store := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	n := &models.Notification{Title: "Homework due", Target: "/homework"}
	if err := store.Save(ctx, n); err != nil {
		t.Fatal(err)
	}

	target, err := store.Interact(ctx, n.ID)
	if err != nil {
		t.Fatalf("Interact: %v", err)
	}
	if target != "/homework" {
		t.Errorf("target: got %q", target)
	}
}

func TestInteract_UnknownID(t *testing.T) {
	store := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.Interact(ctx, "no-such-id")
	if !errors.Is(err, mongo.ErrNoDocuments) {
		t.Fatalf("got %v, want mongo.ErrNoDocuments", err)
	}
}
