package kv

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bolt keeps each bucket as a pair of bbolt buckets: values keyed by record
// key, and an order index keyed by big-endian sequence number.
type Bolt struct {
	DB *bolt.DB
}

const orderSuffix = "\x00order"

func OpenBolt(path string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, storageErr("open", err)
	}
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, storageErr("open", err)
	}
	return &Bolt{DB: bdb}, nil
}

func (b *Bolt) View(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.DB.View(func(tx *bolt.Tx) error {
		return fn(&boltTx{tx: tx})
	})
}

func (b *Bolt) Update(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.DB.Update(func(tx *bolt.Tx) error {
		return fn(&boltTx{tx: tx})
	})
}

func (b *Bolt) Close() error {
	return b.DB.Close()
}

type boltTx struct {
	tx *bolt.Tx
}

// Stored values carry their 8-byte sequence number as a prefix so Delete can
// find the order entry.
func (t *boltTx) Get(bucket, key string) ([]byte, error) {
	data := t.tx.Bucket([]byte(bucket))
	if data == nil {
		return nil, ErrNotFound
	}
	v := data.Get([]byte(key))
	if v == nil {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v[8:]...), nil
}

func (t *boltTx) buckets(bucket string) (*bolt.Bucket, *bolt.Bucket, error) {
	if !t.tx.Writable() {
		return nil, nil, storageErr("write", errors.New("read-only transaction"))
	}
	data, err := t.tx.CreateBucketIfNotExists([]byte(bucket))
	if err != nil {
		return nil, nil, storageErr("bucket", err)
	}
	order, err := t.tx.CreateBucketIfNotExists([]byte(bucket + orderSuffix))
	if err != nil {
		return nil, nil, storageErr("bucket", err)
	}
	return data, order, nil
}

func (t *boltTx) Put(bucket, key string, value []byte) error {
	data, order, err := t.buckets(bucket)
	if err != nil {
		return err
	}
	var seq []byte
	if existing := data.Get([]byte(key)); existing != nil {
		seq = append([]byte(nil), existing[:8]...)
	} else {
		n, err := order.NextSequence()
		if err != nil {
			return storageErr("put", err)
		}
		seq = make([]byte, 8)
		binary.BigEndian.PutUint64(seq, n)
		if err := order.Put(seq, []byte(key)); err != nil {
			return storageErr("put", err)
		}
	}
	stored := make([]byte, 0, 8+len(value))
	stored = append(stored, seq...)
	stored = append(stored, value...)
	return storageErr("put", data.Put([]byte(key), stored))
}

func (t *boltTx) Delete(bucket, key string) error {
	if t.tx.Bucket([]byte(bucket)) == nil {
		return nil
	}
	data, order, err := t.buckets(bucket)
	if err != nil {
		return err
	}
	existing := data.Get([]byte(key))
	if existing == nil {
		return nil
	}
	if err := order.Delete(append([]byte(nil), existing[:8]...)); err != nil {
		return storageErr("delete", err)
	}
	return storageErr("delete", data.Delete([]byte(key)))
}

func (t *boltTx) List(bucket string) ([][]byte, error) {
	data := t.tx.Bucket([]byte(bucket))
	order := t.tx.Bucket([]byte(bucket + orderSuffix))
	if data == nil || order == nil {
		return nil, nil
	}
	var res [][]byte
	err := order.ForEach(func(_, key []byte) error {
		v := data.Get(key)
		if v == nil {
			return storageErr("list", errors.New("order index references missing key "+string(key)))
		}
		res = append(res, append([]byte(nil), v[8:]...))
		return nil
	})
	return res, err
}
