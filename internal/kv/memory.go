package kv

import (
	"context"
	"errors"
	"sync"
)

type memBucket struct {
	order []string
	vals  map[string][]byte
}

func (b *memBucket) clone() *memBucket {
	c := &memBucket{
		order: append([]string(nil), b.order...),
		vals:  make(map[string][]byte, len(b.vals)),
	}
	for k, v := range b.vals {
		c.vals[k] = v
	}
	return c
}

// Memory is a volatile Store used by tests and the "memory" backend.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]*memBucket
	closed  bool
}

func NewMemory() *Memory {
	return &Memory{buckets: make(map[string]*memBucket)}
}

func (m *Memory) View(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return storageErr("view", errors.New("store closed"))
	}
	return fn(&memTx{base: m.buckets})
}

func (m *Memory) Update(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return storageErr("update", errors.New("store closed"))
	}
	tx := &memTx{base: m.buckets, dirty: make(map[string]*memBucket), writable: true}
	if err := fn(tx); err != nil {
		return err
	}
	for name, b := range tx.dirty {
		m.buckets[name] = b
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

type memTx struct {
	base     map[string]*memBucket
	dirty    map[string]*memBucket
	writable bool
}

func (t *memTx) read(bucket string) *memBucket {
	if b, ok := t.dirty[bucket]; ok {
		return b
	}
	return t.base[bucket]
}

// write returns a private copy of the bucket that is published on commit.
func (t *memTx) write(bucket string) (*memBucket, error) {
	if !t.writable {
		return nil, storageErr("write", errors.New("read-only transaction"))
	}
	if b, ok := t.dirty[bucket]; ok {
		return b, nil
	}
	var b *memBucket
	if existing := t.base[bucket]; existing != nil {
		b = existing.clone()
	} else {
		b = &memBucket{vals: make(map[string][]byte)}
	}
	t.dirty[bucket] = b
	return b, nil
}

func (t *memTx) Get(bucket, key string) ([]byte, error) {
	b := t.read(bucket)
	if b == nil {
		return nil, ErrNotFound
	}
	v, ok := b.vals[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (t *memTx) Put(bucket, key string, value []byte) error {
	b, err := t.write(bucket)
	if err != nil {
		return err
	}
	if _, ok := b.vals[key]; !ok {
		b.order = append(b.order, key)
	}
	b.vals[key] = append([]byte(nil), value...)
	return nil
}

func (t *memTx) Delete(bucket, key string) error {
	if existing := t.read(bucket); existing == nil {
		return nil
	} else if _, ok := existing.vals[key]; !ok {
		return nil
	}
	b, err := t.write(bucket)
	if err != nil {
		return err
	}
	delete(b.vals, key)
	for i, k := range b.order {
		if k == key {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return nil
}

func (t *memTx) List(bucket string) ([][]byte, error) {
	b := t.read(bucket)
	if b == nil {
		return nil, nil
	}
	res := make([][]byte, 0, len(b.order))
	for _, k := range b.order {
		res = append(res, append([]byte(nil), b.vals[k]...))
	}
	return res, nil
}
