package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"zerolag/internal/db"
	"zerolag/internal/domain"
	"zerolag/internal/kv"
	"zerolag/internal/ledger"
)

const owner = "0xAAAaaaAAAaaaAAAaaaAAAaaaAAAaaaAAAaaaAAAa"

type testEnv struct {
	Ledger *ledger.Ledger
	Ctx    context.Context
	now    time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := kv.OpenSQLite(context.Background(), db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	env := &testEnv{Ctx: context.Background(), now: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
	env.Ledger = ledger.New(store)
	env.Ledger.Now = func() time.Time { return env.now }
	n := 0
	env.Ledger.NewID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return env
}

func (e *testEnv) createTask(t *testing.T, stake float64) domain.Task {
	t.Helper()
	task, err := e.Ledger.CreateTask(e.Ctx, ledger.CreateTaskInput{
		Owner:        owner,
		Title:        "Ship it",
		StakedAmount: stake,
		Deadline:     e.now.Add(48 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func (e *testEnv) submit(t *testing.T, taskID string) domain.Proof {
	t.Helper()
	p, err := e.Ledger.SubmitProof(e.Ctx, taskID, ledger.SubmitProofInput{ProofText: "done"})
	if err != nil {
		t.Fatalf("submit proof: %v", err)
	}
	return p
}

func (e *testEnv) review(t *testing.T, proofID string, approve bool) domain.Proof {
	t.Helper()
	p, err := e.Ledger.ReviewProof(e.Ctx, proofID, approve, "")
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	return p
}

func (e *testEnv) stats(t *testing.T) domain.Stats {
	t.Helper()
	s, err := e.Ledger.Stats(e.Ctx, owner)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	return s
}

func TestCreateTaskUpdatesStats(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, 2.5)
	if task.Status != domain.TaskActive || task.ProofSubmitted {
		t.Fatalf("unexpected task %+v", task)
	}
	if !task.CreatedAt.Equal(env.now) || !task.UpdatedAt.Equal(env.now) {
		t.Fatalf("timestamps not set: %+v", task)
	}
	s := env.stats(t)
	if s.TotalTasks != 1 || s.TotalStaked != 2.5 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	env := newTestEnv(t)
	cases := []ledger.CreateTaskInput{
		{Owner: "", Title: "x", StakedAmount: 1, Deadline: env.now.Add(time.Hour)},
		{Owner: owner, Title: "  ", StakedAmount: 1, Deadline: env.now.Add(time.Hour)},
		{Owner: owner, Title: "x", StakedAmount: 0, Deadline: env.now.Add(time.Hour)},
		{Owner: owner, Title: "x", StakedAmount: -1, Deadline: env.now.Add(time.Hour)},
		{Owner: owner, Title: "x", StakedAmount: 1, Deadline: env.now},
	}
	for i, in := range cases {
		if _, err := env.Ledger.CreateTask(env.Ctx, in); !errors.Is(err, ledger.ErrValidation) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
	if s := env.stats(t); s.TotalTasks != 0 {
		t.Fatalf("rejected creations must not touch stats: %+v", s)
	}
}

func TestListTasksByOwnerIsCaseInsensitive(t *testing.T) {
	env := newTestEnv(t)
	first := env.createTask(t, 1)
	second := env.createTask(t, 2)
	if _, err := env.Ledger.CreateTask(env.Ctx, ledger.CreateTaskInput{
		Owner: "0xbbb", Title: "other", StakedAmount: 1, Deadline: env.now.Add(time.Hour),
	}); err != nil {
		t.Fatal(err)
	}
	tasks, err := env.Ledger.ListTasksByOwner(env.Ctx, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 2 || tasks[0].ID != first.ID || tasks[1].ID != second.ID {
		t.Fatalf("unexpected tasks %+v", tasks)
	}
	all, err := env.Ledger.ListAllTasks(env.Ctx)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 tasks, got %d (%v)", len(all), err)
	}
	if _, err := env.Ledger.GetTask(env.Ctx, "missing"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSubmitProofRules(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, 1)
	if _, err := env.Ledger.SubmitProof(env.Ctx, "missing", ledger.SubmitProofInput{ProofText: "x"}); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := env.Ledger.SubmitProof(env.Ctx, "missing", ledger.SubmitProofInput{ProofText: "  "}); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("unknown task with empty body: expected not found, got %v", err)
	}
	if _, err := env.Ledger.SubmitProof(env.Ctx, task.ID, ledger.SubmitProofInput{ProofText: "   "}); !errors.Is(err, ledger.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	p := env.submit(t, task.ID)
	if p.Status != domain.ProofPending {
		t.Fatalf("unexpected proof %+v", p)
	}
	got, err := env.Ledger.GetTask(env.Ctx, task.ID)
	if err != nil || !got.ProofSubmitted {
		t.Fatalf("proofSubmitted not latched: %+v %v", got, err)
	}
	if _, err := env.Ledger.SubmitProof(env.Ctx, task.ID, ledger.SubmitProofInput{ProofText: "again"}); !errors.Is(err, ledger.ErrAlreadyPending) {
		t.Fatalf("expected already pending, got %v", err)
	}
	env.review(t, p.ID, true)
	if _, err := env.Ledger.SubmitProof(env.Ctx, task.ID, ledger.SubmitProofInput{ProofText: "late"}); !errors.Is(err, ledger.ErrTaskClosed) {
		t.Fatalf("expected task closed, got %v", err)
	}
}

func TestSubmitProofWithFileOnly(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, 1)
	ref := &domain.FileRef{FileID: "f1", FileName: "shot.png", FileSize: 10}
	p, err := env.Ledger.SubmitProof(env.Ctx, task.ID, ledger.SubmitProofInput{File: ref})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if p.FileData == nil || p.FileData.FileID != "f1" {
		t.Fatalf("file not attached: %+v", p)
	}
}

func TestResubmissionAllowed(t *testing.T) {
	env := newTestEnv(t)
	env.Ledger.AllowResubmission = true
	task := env.createTask(t, 1)
	first := env.submit(t, task.ID)
	second := env.submit(t, task.ID)
	pending, err := env.Ledger.ListPendingProofs(env.Ctx)
	if err != nil || len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d (%v)", len(pending), err)
	}
	env.review(t, first.ID, true)
	if _, err := env.Ledger.ReviewProof(env.Ctx, second.ID, true, ""); !errors.Is(err, ledger.ErrTaskClosed) {
		t.Fatalf("expected task closed, got %v", err)
	}
	if s := env.stats(t); s.CompletedTasks != 1 {
		t.Fatalf("stats double counted: %+v", s)
	}
}

func TestApprovalCompletesTask(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, 1.0)
	p := env.submit(t, task.ID)
	reviewed := env.review(t, p.ID, true)
	if reviewed.Status != domain.ProofApproved || reviewed.ReviewedAt == nil {
		t.Fatalf("unexpected proof %+v", reviewed)
	}
	got, _ := env.Ledger.GetTask(env.Ctx, task.ID)
	if got.Status != domain.TaskCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	s := env.stats(t)
	if s.CompletedTasks != 1 || s.TotalReturned != 1.0 || s.CurrentStreak != 1 || s.LongestStreak != 1 {
		t.Fatalf("unexpected stats %+v", s)
	}
	if s.LastCompletedAt == nil || !s.LastCompletedAt.Equal(env.now) {
		t.Fatalf("lastCompletedAt not set: %+v", s)
	}
	if _, err := env.Ledger.ReviewProof(env.Ctx, p.ID, false, ""); !errors.Is(err, ledger.ErrAlreadyReviewed) {
		t.Fatalf("expected already reviewed, got %v", err)
	}
	if _, err := env.Ledger.ReviewProof(env.Ctx, "missing", true, ""); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStreakAcrossDays(t *testing.T) {
	env := newTestEnv(t)
	approveOne := func() {
		task := env.createTask(t, 1)
		env.review(t, env.submit(t, task.ID).ID, true)
	}
	approveOne()
	env.now = env.now.Add(24 * time.Hour)
	approveOne()
	if s := env.stats(t); s.CurrentStreak != 2 || s.LongestStreak != 2 {
		t.Fatalf("expected streak 2, got %+v", s)
	}
	env.now = env.now.Add(3 * 24 * time.Hour)
	approveOne()
	s := env.stats(t)
	if s.CurrentStreak != 1 || s.LongestStreak != 2 {
		t.Fatalf("expected reset streak, got %+v", s)
	}
	if s.CompletedTasks+s.FailedTasks > s.TotalTasks {
		t.Fatalf("stats invariant broken: %+v", s)
	}
}

func TestStreakGapBoundary(t *testing.T) {
	cases := []struct {
		name   string
		gap    time.Duration
		streak int
	}{
		{"just under two days", 47*time.Hour + 59*time.Minute, 2},
		{"exactly two days", 48 * time.Hour, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			approveOne := func() {
				task := env.createTask(t, 1)
				env.review(t, env.submit(t, task.ID).ID, true)
			}
			approveOne()
			env.now = env.now.Add(tc.gap)
			approveOne()
			if s := env.stats(t); s.CurrentStreak != tc.streak {
				t.Fatalf("gap %s: expected streak %d, got %+v", tc.gap, tc.streak, s)
			}
		})
	}
}

func TestRejectionBurnsStake(t *testing.T) {
	env := newTestEnv(t)
	first := env.createTask(t, 1)
	env.review(t, env.submit(t, first.ID).ID, true)
	task := env.createTask(t, 3)
	p := env.submit(t, task.ID)
	reviewed, err := env.Ledger.ReviewProof(env.Ctx, p.ID, false, "blurry photo")
	if err != nil {
		t.Fatal(err)
	}
	if reviewed.Status != domain.ProofRejected || reviewed.ReviewNotes != "blurry photo" {
		t.Fatalf("unexpected proof %+v", reviewed)
	}
	got, _ := env.Ledger.GetTask(env.Ctx, task.ID)
	if got.Status != domain.TaskFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	s := env.stats(t)
	if s.FailedTasks != 1 || s.TotalBurned != 3 || s.CurrentStreak != 0 || s.LongestStreak != 1 {
		t.Fatalf("unexpected stats %+v", s)
	}
	if s.TotalTasks != 2 || s.TotalStaked != 4 {
		t.Fatalf("totals must never decrease: %+v", s)
	}
}

func TestConcurrentApprovalsCountOnce(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, 1)
	p := env.submit(t, task.ID)
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.Ledger.ReviewProof(env.Ctx, p.ID, true, "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	ok := 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ledger.ErrAlreadyReviewed):
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("expected one successful review, got %d", ok)
	}
	if s := env.stats(t); s.CompletedTasks != 1 || s.TotalReturned != 1 {
		t.Fatalf("stats double counted: %+v", s)
	}
}

func TestEventsAppendedForMutations(t *testing.T) {
	env := newTestEnv(t)
	ctx := ledger.WithActor(env.Ctx, "0xADMIN")
	task := env.createTask(t, 1)
	p := env.submit(t, task.ID)
	if _, err := env.Ledger.ReviewProof(ctx, p.ID, true, ""); err != nil {
		t.Fatal(err)
	}
	evts, err := env.Ledger.RecentEvents(env.Ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"task.created", "proof.submitted", "proof.reviewed"}
	if len(evts) != len(want) {
		t.Fatalf("expected %d events, got %+v", len(want), evts)
	}
	for i, typ := range want {
		if evts[i].Type != typ {
			t.Fatalf("event %d: expected %s, got %s", i, typ, evts[i].Type)
		}
	}
	if evts[2].Actor != "0xadmin" {
		t.Fatalf("review actor not recorded: %+v", evts[2])
	}
}

func TestListProofsForTask(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, 1)
	p := env.submit(t, task.ID)
	proofs, err := env.Ledger.ListProofsForTask(env.Ctx, task.ID)
	if err != nil || len(proofs) != 1 || proofs[0].ID != p.ID {
		t.Fatalf("unexpected proofs %+v (%v)", proofs, err)
	}
	if _, err := env.Ledger.ListProofsForTask(env.Ctx, "missing"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	all, err := env.Ledger.AllStats(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := all[domain.CanonicalIdentity(owner)]; !ok || len(all) != 1 {
		t.Fatalf("unexpected stats map %+v", all)
	}
}
