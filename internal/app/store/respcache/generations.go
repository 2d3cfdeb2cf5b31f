// internal/app/store/respcache/generations.go
package respcache

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// generationMarker records which deployed version currently controls the
// caches. Activation of a new generation defers until the previous one has
// released control, unless activation is forced.
type generationMarker struct {
	ID          string    `bson:"_id"` // fixed marker id
	Version     string    `bson:"version"`
	ActivatedAt time.Time `bson:"activated_at"`
}

const markerID = "controlling"

func (s *Store) markers() *mongo.Collection {
	// Deliberately outside collectionPrefix so ListInstances never sees it.
	return s.db.Collection("generations")
}

// Controlling returns the version token currently controlling the caches,
// or "" when none has ever taken control.
func (s *Store) Controlling(ctx context.Context) (string, error) {
	var m generationMarker
	err := s.markers().FindOne(ctx, bson.M{"_id": markerID}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return m.Version, nil
}

// SetControlling records that version now controls the caches.
func (s *Store) SetControlling(ctx context.Context, version string) error {
	_, err := s.markers().ReplaceOne(ctx,
		bson.M{"_id": markerID},
		generationMarker{ID: markerID, Version: version, ActivatedAt: time.Now().UTC()},
		options.Replace().SetUpsert(true),
	)
	return err
}
