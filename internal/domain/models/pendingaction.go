// internal/domain/models/pendingaction.go
package models

import (
	"time"
)

// PendingAction is one deferred mutating request. A record exists from the
// moment a mutation fails to reach the upstream until a replay succeeds, the
// record exceeds its attempt budget (marked dead), or the retention TTL
// removes it.
type PendingAction struct {
	ID            string              `bson:"_id"` // uuid, assigned at enqueue
	URL           string              `bson:"url"`
	Method        string              `bson:"method"`
	Header        map[string][]string `bson:"header"`
	Body          []byte              `bson:"body"`
	EnqueuedAt    time.Time           `bson:"enqueued_at"`
	Attempts      int                 `bson:"attempts"`
	NextAttemptAt time.Time           `bson:"next_attempt_at"`
	Dead          bool                `bson:"dead"`
	LastError     string              `bson:"last_error,omitempty"`
}

// ReplayBackoff computes the delay before the next replay attempt:
// 30s doubled per failed attempt, capped at one hour.
func ReplayBackoff(attempts int) time.Duration {
	const (
		base     = 30 * time.Second
		maxDelay = 1 * time.Hour
	)
	d := base
	for i := 0; i < attempts; i++ {
		d *= 2
		if d >= maxDelay {
			return maxDelay
		}
	}
	return d
}
