package challenge_test

import (
	"context"
	"testing"
	"time"

	"zerolag/internal/challenge"
	"zerolag/internal/domain"
	"zerolag/internal/kv"
)

func exerciseStore(t *testing.T, s challenge.Store) {
	t.Helper()
	ctx := context.Background()
	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if _, ok, err := s.Get(ctx, "0xAbC"); err != nil || ok {
		t.Fatalf("expected empty store, ok=%v err=%v", ok, err)
	}
	first := domain.Challenge{Identity: "0xAbC", Secret: "one", IssuedAt: issued}
	if err := s.Put(ctx, "0xAbC", first); err != nil {
		t.Fatalf("put: %v", err)
	}
	second := domain.Challenge{Identity: "0xabc", Secret: "two", IssuedAt: issued.Add(time.Minute)}
	if err := s.Put(ctx, "0xabc", second); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := s.Get(ctx, "0XABC")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Secret != "two" {
		t.Fatalf("expected overwrite, got secret %q", got.Secret)
	}
	if err := s.Clear(ctx, "0xABC"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := s.Clear(ctx, "0xABC"); err != nil {
		t.Fatalf("second clear should be a no-op: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "0xabc"); ok {
		t.Fatalf("challenge still present after clear")
	}
}

func TestKVStoreOverwriteAndClear(t *testing.T) {
	exerciseStore(t, challenge.NewKVStore(kv.NewMemory()))
}
