// internal/app/system/strategy/offline.go
package strategy

import (
	_ "embed"
	"encoding/json"
	"net/http"
	"time"
)

//go:embed static/offline.html
var offlinePage []byte

// offlinePayload is the structured body returned for critical endpoints when
// both network and cache fail. The explicit offline marker lets the dashboard
// distinguish "no data" from "no connectivity".
type offlinePayload struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Offline   bool   `json:"offline"`
	Queued    bool   `json:"queued,omitempty"`
	ActionID  string `json:"action_id,omitempty"`
}

const offlineMessage = "You appear to be offline. Cached data is unavailable for this request; it will load once the connection returns."

// OfflineBody builds the offline payload for a failed critical read.
func OfflineBody() []byte {
	return marshalOffline(offlinePayload{
		Error:     "Offline",
		Message:   offlineMessage,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Offline:   true,
	})
}

// QueuedBody builds the offline payload for a mutation that has been
// captured in the pending-action queue for later replay.
func QueuedBody(actionID string) []byte {
	return marshalOffline(offlinePayload{
		Error:     "Offline",
		Message:   "You appear to be offline. The action has been saved and will be retried automatically.",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Offline:   true,
		Queued:    true,
		ActionID:  actionID,
	})
}

func marshalOffline(p offlinePayload) []byte {
	// Marshal of a flat struct of strings and bools cannot fail.
	data, _ := json.Marshal(p)
	return data
}

func offlineResult() *Result {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return &Result{
		Status: http.StatusServiceUnavailable,
		Header: h,
		Body:   OfflineBody(),
		Source: SourceOffline,
	}
}

// offlinePageResult is the inline-generated fallback document for failed
// navigations when no pre-seeded root entry exists.
func offlinePageResult() *Result {
	h := http.Header{}
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("Retry-After", "30")
	return &Result{
		Status: http.StatusServiceUnavailable,
		Header: h,
		Body:   offlinePage,
		Source: SourceOffline,
	}
}
