// Package storage provides persistent registry stores: NATS JetStream KV
// and SQLite. Both implement registry.Store with an optimistic revision
// check.
package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/c360studio/semcnl/registry"
	"github.com/nats-io/nats.go/jetstream"
)

// DefaultRegistryBucket is the KV bucket holding user registries.
const DefaultRegistryBucket = "SEMCNL_REGISTRY"

// KVStore keeps one registry snapshot per user in a JetStream KV bucket.
// The KV revision of the user's key is the snapshot revision.
type KVStore struct {
	kv jetstream.KeyValue
}

// NewKVStore opens the bucket, creating it if it does not exist.
func NewKVStore(ctx context.Context, js jetstream.JetStream, bucket string) (*KVStore, error) {
	if bucket == "" {
		bucket = DefaultRegistryBucket
	}
	kv, err := getOrCreateBucket(ctx, js, bucket)
	if err != nil {
		return nil, fmt.Errorf("create registry bucket: %w", err)
	}
	return &KVStore{kv: kv}, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	// Bucket doesn't exist, create it
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: "semcnl per-user node registries",
		History:     5, // Keep last 5 revisions
	})
}

// Load returns the user's snapshot at its current KV revision.
func (s *KVStore) Load(ctx context.Context, userID string) (*registry.Snapshot, error) {
	entry, err := s.kv.Get(ctx, userKey(userID))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return registry.NewSnapshot(), nil
		}
		return nil, fmt.Errorf("get registry: %w", err)
	}

	snap, err := registry.UnmarshalSnapshot(entry.Value())
	if err != nil {
		return nil, err
	}
	snap.Revision = entry.Revision()
	return snap, nil
}

// Save writes the snapshot with a compare-and-set on the KV revision.
func (s *KVStore) Save(ctx context.Context, userID string, snap *registry.Snapshot) error {
	data, err := registry.MarshalSnapshot(snap)
	if err != nil {
		return err
	}

	key := userKey(userID)
	var rev uint64
	if snap.Revision == 0 {
		rev, err = s.kv.Create(ctx, key, data)
	} else {
		rev, err = s.kv.Update(ctx, key, data, snap.Revision)
	}
	if err != nil {
		if isRevisionMismatch(err) {
			return fmt.Errorf("%w: user %s changed since revision %d", registry.ErrConflict, userID, snap.Revision)
		}
		return fmt.Errorf("put registry: %w", err)
	}

	snap.Revision = rev
	return nil
}

// Delete removes the user's registry.
func (s *KVStore) Delete(ctx context.Context, userID string) error {
	if err := s.kv.Delete(ctx, userKey(userID)); err != nil {
		return fmt.Errorf("delete registry: %w", err)
	}
	return nil
}

// isRevisionMismatch reports whether err is JetStream rejecting a write
// because the key moved past the expected revision.
func isRevisionMismatch(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	var apiErr *jetstream.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
	}
	return false
}

// userKey encodes a user id into a valid KV key.
func userKey(userID string) string {
	return "user." + base64.RawURLEncoding.EncodeToString([]byte(userID))
}
