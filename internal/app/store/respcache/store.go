// internal/app/store/respcache/store.go
package respcache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dalemusser/hearthgate/internal/domain/models"
)

// collectionPrefix namespaces cache-instance collections so ListInstances
// never sweeps up unrelated collections (actions, notifications, markers).
const collectionPrefix = "cache_"

// StaticInstance returns the static cache-instance name for a version token.
func StaticInstance(version string) string {
	return "static-" + version
}

// APIInstance returns the api-responses cache-instance name for a version token.
func APIInstance(version string) string {
	return "api-responses-" + version
}

// Store manages named, versioned response-cache instances in MongoDB.
// Each instance is its own collection; dropping a collection retires a
// whole cache generation in one operation.
type Store struct {
	db *mongo.Database
}

// New creates a response-cache Store on the given database.
func New(db *mongo.Database) *Store {
	return &Store{db: db}
}

func (s *Store) coll(instance string) *mongo.Collection {
	return s.db.Collection(collectionPrefix + instance)
}

// EnsureInstance creates the instance's collection and its unique key index.
// Used at install time for the static instance; the api-responses instance
// is created lazily by the first Put.
func (s *Store) EnsureInstance(ctx context.Context, instance string) error {
	_, err := s.coll(instance).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "key", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("idx_cache_key"),
	})
	if err != nil {
		return fmt.Errorf("ensure cache instance %q: %w", instance, err)
	}
	return nil
}

// Get returns the cached response stored under key, or nil when there is no
// entry. A miss is not an error.
func (s *Store) Get(ctx context.Context, instance, key string) (*models.CachedResponse, error) {
	var entry models.CachedResponse
	err := s.coll(instance).FindOne(ctx, bson.M{"key": key}).Decode(&entry)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Put stores a response under its key, overwriting any previous entry
// (last writer wins). The instance's collection is created on first use.
func (s *Store) Put(ctx context.Context, instance string, entry *models.CachedResponse) error {
	if entry.FetchedAt.IsZero() {
		entry.FetchedAt = time.Now().UTC()
	}
	_, err := s.coll(instance).ReplaceOne(ctx,
		bson.M{"key": entry.Key},
		entry,
		options.Replace().SetUpsert(true),
	)
	return err
}

// Delete removes the entry stored under key. Deleting a missing key is a no-op.
func (s *Store) Delete(ctx context.Context, instance, key string) error {
	_, err := s.coll(instance).DeleteOne(ctx, bson.M{"key": key})
	return err
}

// Count returns the number of entries in an instance.
func (s *Store) Count(ctx context.Context, instance string) (int64, error) {
	return s.coll(instance).CountDocuments(ctx, bson.M{})
}

// ListInstances enumerates every existing cache-instance name.
func (s *Store) ListInstances(ctx context.Context) ([]string, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.M{
		"name": bson.M{"$regex": "^" + collectionPrefix},
	})
	if err != nil {
		return nil, err
	}
	instances := make([]string, 0, len(names))
	for _, name := range names {
		instances = append(instances, strings.TrimPrefix(name, collectionPrefix))
	}
	return instances, nil
}

// DropInstance deletes an entire cache instance and everything in it.
// This is the sole eviction path for whole generations.
func (s *Store) DropInstance(ctx context.Context, instance string) error {
	return s.coll(instance).Drop(ctx)
}
