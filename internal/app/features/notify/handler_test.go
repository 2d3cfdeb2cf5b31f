package notify_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/dalemusser/hearthgate/internal/app/features/notify"
	"github.com/dalemusser/hearthgate/internal/domain/models"
	"github.com/dalemusser/hearthgate/internal/testutil"
)

func newNotifyServer(t *testing.T) (*httptest.Server, *testutil.MemoryNotifications) {
	t.Helper()
	store := testutil.NewMemoryNotifications()
	h := notify.NewHandler(store, zap.NewNop())
	srv := httptest.NewServer(notify.Routes(h))
	t.Cleanup(srv.Close)
	return srv, store
}

func push(t *testing.T, srv *httptest.Server, payload string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/push", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	return resp
}

func TestPush_StoresNotification(t *testing.T) {
	srv, store := newNotifyServer(t)

	resp := push(t, srv, `{"title":"Dinner time","body":"Food is ready","target":"/meals"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected an assigned id")
	}

	pending, err := store.Pending(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending: %d", len(pending))
	}
	n := pending[0]
	if n.ID != created.ID || n.Title != "Dinner time" || n.Target != "/meals" {
		t.Errorf("stored notification: %+v", n)
	}
}

func TestPush_RejectsMissingTitle(t *testing.T) {
	srv, _ := newNotifyServer(t)

	resp := push(t, srv, `{"body":"no title"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}

func TestPush_SanitizesMarkup(t *testing.T) {
	srv, store := newNotifyServer(t)

	resp := push(t, srv, `{"title":"<script>alert(1)</script>Chores","body":"<b>sweep</b> the floor","actions":[{"action":"open","title":"<img src=x>View"}]}`)
	resp.Body.Close()

	pending, err := store.Pending(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending: %d", len(pending))
	}
	n := pending[0]
	if strings.Contains(n.Title, "<script>") {
		t.Errorf("title not sanitized: %q", n.Title)
	}
	if !strings.Contains(n.Title, "Chores") {
		t.Errorf("sanitizing should keep the text content: %q", n.Title)
	}
	if strings.Contains(n.Body, "<b>") {
		t.Errorf("body not sanitized: %q", n.Body)
	}
	if len(n.Actions) != 1 || strings.Contains(n.Actions[0].Title, "<img") {
		t.Errorf("action title not sanitized: %+v", n.Actions)
	}
}

func TestPending_RedeliversUntilAcked(t *testing.T) {
	srv, _ := newNotifyServer(t)

	push(t, srv, `{"title":"first"}`).Body.Close()
	push(t, srv, `{"title":"second"}`).Body.Close()

	pending := func() []models.Notification {
		t.Helper()
		resp, err := http.Get(srv.URL + "/pending")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		var batch []models.Notification
		if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
			t.Fatalf("decode pending: %v", err)
		}
		return batch
	}

	batch := pending()
	if len(batch) != 2 {
		t.Fatalf("first poll: %d notifications", len(batch))
	}

	// A poll whose response got lost must see the same notifications again.
	if again := pending(); len(again) != 2 {
		t.Fatalf("unacked poll should redeliver, got %d", len(again))
	}

	// Ack one; only the other keeps being delivered.
	ack, err := json.Marshal(map[string][]string{"ids": {batch[0].ID}})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(srv.URL+"/ack", "application/json", bytes.NewReader(ack))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("ack status: %d", resp.StatusCode)
	}

	left := pending()
	if len(left) != 1 || left[0].ID != batch[1].ID {
		t.Fatalf("after ack: %+v", left)
	}
}

func TestInteract_ReturnsTarget(t *testing.T) {
	srv, _ := newNotifyServer(t)

	resp := push(t, srv, `{"title":"Homework due","target":"/homework"}`)
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	resp, err := http.Post(srv.URL+"/"+created.ID+"/interact", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	var out struct {
		Target string `json:"target"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Target != "/homework" {
		t.Errorf("target: got %q, want /homework", out.Target)
	}
}

func TestInteract_UnknownIDIs404(t *testing.T) {
	srv, _ := newNotifyServer(t)

	resp, err := http.Post(srv.URL+"/no-such-id/interact", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}
