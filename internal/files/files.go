// Package files stores task and proof attachments. Small files keep their
// bytes inline; larger ones are recorded by metadata only.
package files

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"zerolag/internal/domain"
	"zerolag/internal/kv"
)

const (
	bucket           = "files"
	DefaultMaxInline = 1_000_000
)

var (
	ErrNotFound = kv.ErrNotFound
	ErrNoData   = errors.New("file not found or too large")
	ErrEmpty    = errors.New("file name is required")
)

type Store struct {
	KV        kv.Store
	Now       func() time.Time
	MaxInline int64
	NewID     func() string
}

func New(store kv.Store) *Store {
	return &Store{KV: store, Now: time.Now, MaxInline: DefaultMaxInline, NewID: uuid.NewString}
}

// Save records a file. Data is retained only when it is smaller than MaxInline.
func (s *Store) Save(ctx context.Context, name, contentType string, data []byte) (domain.FileRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.FileRecord{}, ErrEmpty
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	newID := uuid.NewString
	if s.NewID != nil {
		newID = s.NewID
	}
	limit := s.MaxInline
	if limit <= 0 {
		limit = DefaultMaxInline
	}
	id := newID()
	rec := domain.FileRecord{
		ID:         id,
		Name:       name,
		Type:       contentType,
		Size:       int64(len(data)),
		UploadedAt: now().UTC(),
		URL:        "/api/files/" + id,
	}
	if rec.Size < limit {
		rec.Data = data
	}
	err := s.KV.Update(ctx, func(tx kv.Tx) error {
		return kv.PutJSON(tx, bucket, id, rec)
	})
	if err != nil {
		return domain.FileRecord{}, fmt.Errorf("save file: %w", err)
	}
	meta := rec
	meta.Data = nil
	return meta, nil
}

// Get returns the record with its data, or ErrNoData when only metadata was kept.
func (s *Store) Get(ctx context.Context, id string) (domain.FileRecord, error) {
	var rec domain.FileRecord
	err := s.KV.View(ctx, func(tx kv.Tx) error {
		return kv.GetJSON(tx, bucket, id, &rec)
	})
	if err != nil {
		return domain.FileRecord{}, err
	}
	if rec.Data == nil && rec.Size > 0 {
		return rec, ErrNoData
	}
	return rec, nil
}
