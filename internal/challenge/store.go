// Package challenge keeps the outstanding sign-in challenge per identity.
package challenge

import (
	"context"
	"errors"

	"zerolag/internal/domain"
	"zerolag/internal/kv"
)

// Store holds at most one challenge per canonical identity.
type Store interface {
	Put(ctx context.Context, identity string, c domain.Challenge) error
	Get(ctx context.Context, identity string) (domain.Challenge, bool, error)
	Clear(ctx context.Context, identity string) error
}

const bucket = "challenges"

// KVStore persists challenges in a kv bucket.
type KVStore struct {
	KV kv.Store
}

func NewKVStore(store kv.Store) *KVStore {
	return &KVStore{KV: store}
}

func (s *KVStore) Put(ctx context.Context, identity string, c domain.Challenge) error {
	key := domain.CanonicalIdentity(identity)
	return s.KV.Update(ctx, func(tx kv.Tx) error {
		return kv.PutJSON(tx, bucket, key, c)
	})
}

func (s *KVStore) Get(ctx context.Context, identity string) (domain.Challenge, bool, error) {
	var c domain.Challenge
	err := s.KV.View(ctx, func(tx kv.Tx) error {
		return kv.GetJSON(tx, bucket, domain.CanonicalIdentity(identity), &c)
	})
	if errors.Is(err, kv.ErrNotFound) {
		return domain.Challenge{}, false, nil
	}
	if err != nil {
		return domain.Challenge{}, false, err
	}
	return c, true, nil
}

func (s *KVStore) Clear(ctx context.Context, identity string) error {
	return s.KV.Update(ctx, func(tx kv.Tx) error {
		return tx.Delete(bucket, domain.CanonicalIdentity(identity))
	})
}
