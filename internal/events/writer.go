package events

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"zerolag/internal/domain"
	"zerolag/internal/kv"
)

const (
	Bucket     = "events"
	metaBucket = "meta"
	seqKey     = "events.seq"
)

type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

// Append records an event inside the caller's transaction so it commits or
// rolls back with the mutation it describes.
func (w Writer) Append(tx kv.Tx, evtType, entityKind, entityID, actor string, payload EventPayload) (domain.Event, error) {
	if w.Now == nil {
		w.Now = time.Now
	}
	if payload == nil {
		payload = EventPayload{}
	}
	id, err := nextSeq(tx)
	if err != nil {
		return domain.Event{}, err
	}
	evt := domain.Event{
		ID:         id,
		TS:         w.Now().UTC(),
		Type:       evtType,
		EntityKind: entityKind,
		EntityID:   entityID,
		Actor:      actor,
		Payload:    payload,
	}
	if err := kv.PutJSON(tx, Bucket, fmt.Sprintf("%020d", id), evt); err != nil {
		return domain.Event{}, fmt.Errorf("append event: %w", err)
	}
	return evt, nil
}

func nextSeq(tx kv.Tx) (int64, error) {
	var cur int64
	raw, err := tx.Get(metaBucket, seqKey)
	switch {
	case errors.Is(err, kv.ErrNotFound):
	case err != nil:
		return 0, err
	default:
		cur, err = strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("event sequence: %w", err)
		}
	}
	cur++
	if err := tx.Put(metaBucket, seqKey, []byte(strconv.FormatInt(cur, 10))); err != nil {
		return 0, err
	}
	return cur, nil
}

// Tail returns the last limit events, oldest first. A limit of zero returns all.
func Tail(tx kv.Tx, limit int) ([]domain.Event, error) {
	all, err := kv.ListJSON[domain.Event](tx, Bucket)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}
