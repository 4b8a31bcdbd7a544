// Package kv is the opaque persistent mapping behind the ledger, the challenge
// store and the attachment store. Values are grouped in buckets and listed in
// insertion order; overwriting a key keeps its original position.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

// StorageError wraps a failure of the underlying backend. Callers treat it as
// unrecoverable for the operation in progress.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) || errors.Is(err, ErrNotFound) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// Tx is a view of the store inside View or Update.
type Tx interface {
	Get(bucket, key string) ([]byte, error)
	Put(bucket, key string, value []byte) error
	Delete(bucket, key string) error
	List(bucket string) ([][]byte, error)
}

// Store runs callbacks atomically. Update callbacks that return an error leave
// the store unchanged.
type Store interface {
	View(ctx context.Context, fn func(Tx) error) error
	Update(ctx context.Context, fn func(Tx) error) error
	Close() error
}

func GetJSON(tx Tx, bucket, key string, v any) error {
	raw, err := tx.Get(bucket, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s/%s: %w", bucket, key, err)
	}
	return nil
}

func PutJSON(tx Tx, bucket, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", bucket, key, err)
	}
	return tx.Put(bucket, key, raw)
}

// ListJSON decodes every value of a bucket in insertion order.
func ListJSON[T any](tx Tx, bucket string) ([]T, error) {
	raws, err := tx.List(bucket)
	if err != nil {
		return nil, err
	}
	res := make([]T, 0, len(raws))
	for _, raw := range raws {
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("decode %s: %w", bucket, err)
		}
		res = append(res, item)
	}
	return res, nil
}
