package kv_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"zerolag/internal/db"
	"zerolag/internal/kv"
)

func backends(t *testing.T) map[string]kv.Store {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	sq, err := kv.OpenSQLite(ctx, db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	bo, err := kv.OpenBolt(filepath.Join(dir, "kv.bolt"))
	if err != nil {
		t.Fatalf("open bolt: %v", err)
	}
	stores := map[string]kv.Store{
		"memory": kv.NewMemory(),
		"sqlite": sq,
		"bolt":   bo,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func listStrings(t *testing.T, s kv.Store, bucket string) []string {
	t.Helper()
	var out []string
	err := s.View(context.Background(), func(tx kv.Tx) error {
		vals, err := tx.List(bucket)
		for _, v := range vals {
			out = append(out, string(v))
		}
		return err
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	return out
}

func TestInsertionOrderSurvivesOverwrite(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			err := s.Update(ctx, func(tx kv.Tx) error {
				for _, k := range []string{"c", "a", "b"} {
					if err := tx.Put("items", k, []byte(k+"1")); err != nil {
						return err
					}
				}
				return tx.Put("items", "c", []byte("c2"))
			})
			if err != nil {
				t.Fatalf("update: %v", err)
			}
			got := listStrings(t, s, "items")
			want := []string{"c2", "a1", "b1"}
			if len(got) != len(want) {
				t.Fatalf("got %v want %v", got, want)
			}
			for i := range want {
				if got[i] != want[i] {
					t.Fatalf("got %v want %v", got, want)
				}
			}
		})
	}
}

func TestDeleteAndMissingKeys(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			err := s.Update(ctx, func(tx kv.Tx) error {
				if err := tx.Put("items", "a", []byte("1")); err != nil {
					return err
				}
				if err := tx.Put("items", "b", []byte("2")); err != nil {
					return err
				}
				if err := tx.Delete("items", "a"); err != nil {
					return err
				}
				return tx.Delete("nothing", "here")
			})
			if err != nil {
				t.Fatalf("update: %v", err)
			}
			err = s.View(ctx, func(tx kv.Tx) error {
				if _, err := tx.Get("items", "a"); !errors.Is(err, kv.ErrNotFound) {
					t.Fatalf("expected not found, got %v", err)
				}
				if _, err := tx.Get("empty", "a"); !errors.Is(err, kv.ErrNotFound) {
					t.Fatalf("expected not found for missing bucket, got %v", err)
				}
				return nil
			})
			if err != nil {
				t.Fatalf("view: %v", err)
			}
			if got := listStrings(t, s, "items"); len(got) != 1 || got[0] != "2" {
				t.Fatalf("unexpected list %v", got)
			}
			if got := listStrings(t, s, "empty"); len(got) != 0 {
				t.Fatalf("expected empty bucket, got %v", got)
			}
		})
	}
}

func TestFailedUpdateRollsBack(t *testing.T) {
	boom := errors.New("boom")
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := s.Update(ctx, func(tx kv.Tx) error {
				return tx.Put("items", "kept", []byte("v"))
			}); err != nil {
				t.Fatalf("seed: %v", err)
			}
			err := s.Update(ctx, func(tx kv.Tx) error {
				if err := tx.Put("items", "lost", []byte("v")); err != nil {
					return err
				}
				if err := tx.Delete("items", "kept"); err != nil {
					return err
				}
				return boom
			})
			if !errors.Is(err, boom) {
				t.Fatalf("expected callback error, got %v", err)
			}
			if got := listStrings(t, s, "items"); len(got) != 1 {
				t.Fatalf("rollback failed, got %v", got)
			}
		})
	}
}

func TestJSONHelpers(t *testing.T) {
	type rec struct {
		Name string `json:"name"`
		N    int    `json:"n"`
	}
	s := kv.NewMemory()
	ctx := context.Background()
	err := s.Update(ctx, func(tx kv.Tx) error {
		if err := kv.PutJSON(tx, "recs", "x", rec{Name: "x", N: 1}); err != nil {
			return err
		}
		return kv.PutJSON(tx, "recs", "y", rec{Name: "y", N: 2})
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	err = s.View(ctx, func(tx kv.Tx) error {
		var r rec
		if err := kv.GetJSON(tx, "recs", "y", &r); err != nil {
			return err
		}
		if r.N != 2 {
			t.Fatalf("unexpected record %+v", r)
		}
		all, err := kv.ListJSON[rec](tx, "recs")
		if err != nil {
			return err
		}
		if len(all) != 2 || all[0].Name != "x" {
			t.Fatalf("unexpected list %+v", all)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	cfg := db.Config{Workspace: t.TempDir()}
	s, err := kv.OpenSQLite(ctx, cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Update(ctx, func(tx kv.Tx) error { return tx.Put("b", "k", []byte("v")) }); err != nil {
		t.Fatalf("put: %v", err)
	}
	s.Close()
	s, err = kv.OpenSQLite(ctx, cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if got := listStrings(t, s, "b"); len(got) != 1 || got[0] != "v" {
		t.Fatalf("unexpected data after reopen: %v", got)
	}
}
