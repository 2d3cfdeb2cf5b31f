// internal/app/store/notifications/store.go
package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dalemusser/hearthgate/internal/domain/models"
)

// retention is how long notifications are kept before the TTL index
// removes them. Interacted or not, a month-old notification is noise.
const retention = 30 * 24 * time.Hour

// Store persists push notifications until the dashboard has rendered them
// and the user has (or has not) interacted.
type Store struct {
	c *mongo.Collection
}

// New creates the notification Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("notifications")}
}

// EnsureIndexes creates the delivery lookup index and the retention TTL index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "delivered", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("idx_notif_pending"),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(retention / time.Second)).SetName("idx_notif_ttl"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Save stores a new notification, assigning its ID and creation time.
func (s *Store) Save(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, n)
	return err
}

// Pending returns undelivered notifications in arrival order. Records stay
// undelivered until the client acks them, so a response lost in transit is
// simply redelivered on the next poll; clients dedupe by id.
func (s *Store) Pending(ctx context.Context) ([]models.Notification, error) {
	cur, err := s.c.Find(ctx,
		bson.M{"delivered": false},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var pending []models.Notification
	if err := cur.All(ctx, &pending); err != nil {
		return nil, err
	}
	return pending, nil
}

// Ack marks notifications delivered once the client confirms it rendered
// them. Unknown ids are ignored.
func (s *Store) Ack(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.c.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		bson.M{"$set": bson.M{"delivered": true}},
	)
	return err
}

// Interact marks a notification as interacted with and returns its target
// path. Returns mongo.ErrNoDocuments when the ID is unknown.
func (s *Store) Interact(ctx context.Context, id string) (target string, err error) {
	now := time.Now().UTC()
	var n models.Notification
	err = s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"interacted_at": now}},
	).Decode(&n)
	if err != nil {
		return "", err
	}
	return n.Target, nil
}
