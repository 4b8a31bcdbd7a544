package app_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"zerolag/internal/app"
	"zerolag/internal/config"
	"zerolag/internal/ledger"
)

func TestOpenEachStoreBackend(t *testing.T) {
	for _, backend := range []string{"memory", "sqlite", "bolt"} {
		t.Run(backend, func(t *testing.T) {
			cfg := config.Default()
			cfg.Store.Backend = backend
			a, err := app.Open(context.Background(), t.TempDir(), cfg, nil)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			defer a.Close()
			if a.Chain != nil {
				t.Fatalf("chain should be disabled by default")
			}
			ctx := context.Background()
			if _, err := a.Auth.IssueChallenge(ctx, "0xabc"); err != nil {
				t.Fatalf("issue: %v", err)
			}
			stats, err := a.Ledger.Stats(ctx, "0xabc")
			if err != nil || stats.TotalTasks != 0 {
				t.Fatalf("stats: %+v %v", stats, err)
			}
			if _, err := a.Ledger.SubmitProof(ctx, "missing", ledger.SubmitProofInput{ProofText: "x"}); err == nil {
				t.Fatalf("expected error for missing task")
			}
		})
	}
}

func TestSetClockReachesEveryService(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Backend = "memory"
	a, err := app.Open(context.Background(), t.TempDir(), cfg, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer a.Close()
	fixed := time.Date(2030, 5, 1, 12, 0, 0, 0, time.UTC)
	a.SetClock(func() time.Time { return fixed })

	ctx := context.Background()
	task, err := a.Ledger.CreateTask(ctx, ledger.CreateTaskInput{
		Owner:        "0xabc",
		Title:        "clocked",
		StakedAmount: 1,
		Deadline:     fixed.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if !task.CreatedAt.Equal(fixed) {
		t.Fatalf("ledger ignored clock: %v", task.CreatedAt)
	}
	rec, err := a.Files.Save(ctx, "a.txt", "text/plain", []byte("hi"))
	if err != nil {
		t.Fatalf("save file: %v", err)
	}
	if !rec.UploadedAt.Equal(fixed) {
		t.Fatalf("files ignored clock: %v", rec.UploadedAt)
	}
	c, ok, err := a.Challenges.Get(ctx, "0xabc")
	if err != nil || ok {
		t.Fatalf("expected no challenge yet: %+v %v %v", c, ok, err)
	}
	if _, err := a.Auth.IssueChallenge(ctx, "0xabc"); err != nil {
		t.Fatalf("issue: %v", err)
	}
	c, ok, err = a.Challenges.Get(ctx, "0xabc")
	if err != nil || !ok || !c.IssuedAt.Equal(fixed) {
		t.Fatalf("auth ignored clock: %+v %v %v", c, ok, err)
	}
}

func TestNewLoggerHonorsFormatAndLevel(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Format = "json"
	cfg.Log.Level = "warn"
	var buf bytes.Buffer
	logger := app.NewLogger(&buf, cfg)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"msg":"shown"`) {
		t.Fatalf("unexpected log output %q", out)
	}
}
