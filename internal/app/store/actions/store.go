// internal/app/store/actions/store.go
package actions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dalemusser/hearthgate/internal/domain/models"
)

// Store is the durable pending-action queue, backed by MongoDB.
// Records are replayed in enqueue order; concurrent enqueue and remove are
// commutative because every record is keyed by its own uuid.
type Store struct {
	c         *mongo.Collection
	retention time.Duration
}

// New creates the pending-action Store. retention bounds how long a record
// may sit in the queue before the TTL index removes it.
func New(db *mongo.Database, retention time.Duration) *Store {
	return &Store{c: db.Collection("pending_actions"), retention: retention}
}

// EnsureIndexes creates the retention TTL index (which doubles as the
// replay-order index) and the due-time index the replay scan uses.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	ttl := int32(s.retention / time.Second)
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "enqueued_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(ttl).SetName("idx_actions_ttl"),
		},
		{
			Keys:    bson.D{{Key: "dead", Value: 1}, {Key: "next_attempt_at", Value: 1}},
			Options: options.Index().SetName("idx_actions_due"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Enqueue appends a new pending action. The record's ID and EnqueuedAt are
// assigned here; the caller provides the request snapshot.
func (s *Store) Enqueue(ctx context.Context, action *models.PendingAction) error {
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	if action.EnqueuedAt.IsZero() {
		action.EnqueuedAt = time.Now().UTC()
	}
	action.NextAttemptAt = action.EnqueuedAt
	_, err := s.c.InsertOne(ctx, action)
	return err
}

// Due returns live records whose next attempt time has passed, in enqueue
// order. Dead records are excluded; they stay only until the TTL reaps them.
func (s *Store) Due(ctx context.Context, now time.Time) ([]models.PendingAction, error) {
	cur, err := s.c.Find(ctx,
		bson.M{
			"dead":            false,
			"next_attempt_at": bson.M{"$lte": now},
		},
		options.Find().SetSort(bson.D{{Key: "enqueued_at", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var records []models.PendingAction
	if err := cur.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Remove deletes a record after a confirmed successful replay.
func (s *Store) Remove(ctx context.Context, id string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// RecordFailure notes a failed replay: increments the attempt count, stores
// the error, and pushes the next attempt out by the backoff for the new
// attempt count.
func (s *Store) RecordFailure(ctx context.Context, id string, attempts int, lastErr string, now time.Time) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"attempts":        attempts,
			"last_error":      lastErr,
			"next_attempt_at": now.Add(models.ReplayBackoff(attempts)),
		}},
	)
	return err
}

// MarkDead retires a record that can never succeed (attempt budget exhausted
// or the upstream rejected it outright). Dead records are kept for operator
// inspection until the retention TTL removes them.
func (s *Store) MarkDead(ctx context.Context, id, reason string) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"dead": true, "last_error": reason}},
	)
	return err
}

// Counts returns the number of live and dead records in the queue.
func (s *Store) Counts(ctx context.Context) (pending, dead int64, err error) {
	pending, err = s.c.CountDocuments(ctx, bson.M{"dead": false})
	if err != nil {
		return 0, 0, err
	}
	dead, err = s.c.CountDocuments(ctx, bson.M{"dead": true})
	if err != nil {
		return 0, 0, err
	}
	return pending, dead, nil
}
