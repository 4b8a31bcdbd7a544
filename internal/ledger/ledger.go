// Package ledger owns tasks, proofs and per-identity stats. Every mutation
// is a single kv update so reads and writes of one operation cannot interleave
// with another.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"zerolag/internal/domain"
	"zerolag/internal/events"
	"zerolag/internal/kv"
	"zerolag/internal/repo"
)

type Ledger struct {
	Store             kv.Store
	Events            events.Writer
	Now               func() time.Time
	AllowResubmission bool
	NewID             func() string
}

func New(store kv.Store) *Ledger {
	return &Ledger{
		Store: store,
		Now:   time.Now,
		NewID: uuid.NewString,
	}
}

func (l *Ledger) now() time.Time {
	if l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

func (l *Ledger) newID() string {
	if l.NewID != nil {
		return l.NewID()
	}
	return uuid.NewString()
}

type actorKey struct{}

// WithActor tags ctx with the identity recorded on audit events.
func WithActor(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, actorKey{}, domain.CanonicalIdentity(identity))
}

func actorFrom(ctx context.Context) string {
	v, _ := ctx.Value(actorKey{}).(string)
	return v
}

type CreateTaskInput struct {
	Owner        string
	Title        string
	Description  string
	StakedAmount float64
	Deadline     time.Time
	File         *domain.FileRef
}

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func (l *Ledger) CreateTask(ctx context.Context, in CreateTaskInput) (domain.Task, error) {
	now := l.now()
	owner := strings.TrimSpace(in.Owner)
	switch {
	case owner == "":
		return domain.Task{}, validationErr("owner is required")
	case strings.TrimSpace(in.Title) == "":
		return domain.Task{}, validationErr("title is required")
	case math.IsNaN(in.StakedAmount) || math.IsInf(in.StakedAmount, 0) || in.StakedAmount <= 0:
		return domain.Task{}, validationErr("stakedAmount must be positive")
	case !in.Deadline.After(now):
		return domain.Task{}, validationErr("deadline must be in the future")
	}
	t := domain.Task{
		ID:           l.newID(),
		UserAddress:  owner,
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		StakedAmount: in.StakedAmount,
		Deadline:     in.Deadline.UTC(),
		Status:       domain.TaskActive,
		FileData:     in.File,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := l.Store.Update(ctx, func(tx kv.Tx) error {
		r := repo.With(tx)
		if err := r.PutTask(t); err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		stats, _, err := r.GetStats(owner)
		if err != nil {
			return err
		}
		recordCreated(&stats, t.StakedAmount)
		if err := r.PutStats(owner, stats); err != nil {
			return fmt.Errorf("update stats: %w", err)
		}
		_, err = l.Events.Append(tx, "task.created", "task", t.ID, actorOr(ctx, owner), events.EventPayload{
			"owner":        domain.CanonicalIdentity(owner),
			"stakedAmount": t.StakedAmount,
			"deadline":     t.Deadline.Format(time.RFC3339),
		})
		return err
	})
	if err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func actorOr(ctx context.Context, fallback string) string {
	if a := actorFrom(ctx); a != "" {
		return a
	}
	return domain.CanonicalIdentity(fallback)
}

func (l *Ledger) GetTask(ctx context.Context, id string) (domain.Task, error) {
	var t domain.Task
	err := l.Store.View(ctx, func(tx kv.Tx) error {
		var err error
		t, err = repo.With(tx).GetTask(id)
		return err
	})
	return t, err
}

func (l *Ledger) ListTasksByOwner(ctx context.Context, identity string) ([]domain.Task, error) {
	var res []domain.Task
	err := l.Store.View(ctx, func(tx kv.Tx) error {
		var err error
		res, err = repo.With(tx).ListTasksByOwner(identity)
		return err
	})
	return res, err
}

func (l *Ledger) ListAllTasks(ctx context.Context) ([]domain.Task, error) {
	var res []domain.Task
	err := l.Store.View(ctx, func(tx kv.Tx) error {
		var err error
		res, err = repo.With(tx).ListTasks()
		return err
	})
	return res, err
}

type SubmitProofInput struct {
	ProofText string
	File      *domain.FileRef
}

func (l *Ledger) SubmitProof(ctx context.Context, taskID string, in SubmitProofInput) (domain.Proof, error) {
	text := strings.TrimSpace(in.ProofText)
	now := l.now()
	p := domain.Proof{
		ID:          l.newID(),
		TaskID:      taskID,
		ProofText:   text,
		FileData:    in.File,
		Status:      domain.ProofPending,
		SubmittedAt: now,
	}
	err := l.Store.Update(ctx, func(tx kv.Tx) error {
		r := repo.With(tx)
		// Unknown task wins over an empty body.
		t, err := r.GetTask(taskID)
		if err != nil {
			return err
		}
		if text == "" && in.File == nil {
			return validationErr("proof text or file is required")
		}
		if t.Status != domain.TaskActive {
			return ErrTaskClosed
		}
		if !l.AllowResubmission {
			pending, err := r.ListProofs(func(existing domain.Proof) bool {
				return existing.TaskID == taskID && existing.Status == domain.ProofPending
			})
			if err != nil {
				return err
			}
			if len(pending) > 0 {
				return ErrAlreadyPending
			}
		}
		if err := r.PutProof(p); err != nil {
			return fmt.Errorf("insert proof: %w", err)
		}
		t.ProofSubmitted = true
		t.UpdatedAt = now
		if err := r.PutTask(t); err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		_, err = l.Events.Append(tx, "proof.submitted", "proof", p.ID, actorOr(ctx, t.UserAddress), events.EventPayload{
			"taskId":  taskID,
			"hasFile": p.FileData != nil,
		})
		return err
	})
	if err != nil {
		return domain.Proof{}, err
	}
	return p, nil
}

// ReviewProof settles a pending proof and the task it belongs to. A proof
// whose task has disappeared is still marked reviewed.
func (l *Ledger) ReviewProof(ctx context.Context, proofID string, approve bool, notes string) (domain.Proof, error) {
	now := l.now()
	var p domain.Proof
	err := l.Store.Update(ctx, func(tx kv.Tx) error {
		r := repo.With(tx)
		var err error
		p, err = r.GetProof(proofID)
		if err != nil {
			return err
		}
		if p.Status != domain.ProofPending {
			return ErrAlreadyReviewed
		}
		t, err := r.GetTask(p.TaskID)
		taskFound := err == nil
		if err != nil && !errors.Is(err, kv.ErrNotFound) {
			return err
		}
		if taskFound && t.Status != domain.TaskActive {
			return ErrTaskClosed
		}

		p.Status = domain.ProofRejected
		if approve {
			p.Status = domain.ProofApproved
		}
		p.ReviewNotes = notes
		reviewed := now
		p.ReviewedAt = &reviewed
		if err := r.PutProof(p); err != nil {
			return fmt.Errorf("update proof: %w", err)
		}

		if taskFound {
			t.Status = domain.TaskFailed
			if approve {
				t.Status = domain.TaskCompleted
			}
			t.UpdatedAt = now
			if err := r.PutTask(t); err != nil {
				return fmt.Errorf("update task: %w", err)
			}
			stats, ok, err := r.GetStats(t.UserAddress)
			if err != nil {
				return err
			}
			if ok {
				if approve {
					recordApproved(&stats, t.StakedAmount, now)
				} else {
					recordRejected(&stats, t.StakedAmount)
				}
				if err := r.PutStats(t.UserAddress, stats); err != nil {
					return fmt.Errorf("update stats: %w", err)
				}
			}
		}
		_, err = l.Events.Append(tx, "proof.reviewed", "proof", p.ID, actorFrom(ctx), events.EventPayload{
			"taskId":    p.TaskID,
			"status":    p.Status,
			"taskFound": taskFound,
		})
		return err
	})
	if err != nil {
		return domain.Proof{}, err
	}
	return p, nil
}

func (l *Ledger) GetProof(ctx context.Context, id string) (domain.Proof, error) {
	var p domain.Proof
	err := l.Store.View(ctx, func(tx kv.Tx) error {
		var err error
		p, err = repo.With(tx).GetProof(id)
		return err
	})
	return p, err
}

func (l *Ledger) ListPendingProofs(ctx context.Context) ([]domain.Proof, error) {
	return l.listProofs(ctx, func(p domain.Proof) bool { return p.Status == domain.ProofPending })
}

// ListProofsForTask returns ErrNotFound when the task does not exist.
func (l *Ledger) ListProofsForTask(ctx context.Context, taskID string) ([]domain.Proof, error) {
	var res []domain.Proof
	err := l.Store.View(ctx, func(tx kv.Tx) error {
		r := repo.With(tx)
		if _, err := r.GetTask(taskID); err != nil {
			return err
		}
		var err error
		res, err = r.ListProofs(func(p domain.Proof) bool { return p.TaskID == taskID })
		return err
	})
	return res, err
}

func (l *Ledger) listProofs(ctx context.Context, keep func(domain.Proof) bool) ([]domain.Proof, error) {
	var res []domain.Proof
	err := l.Store.View(ctx, func(tx kv.Tx) error {
		var err error
		res, err = repo.With(tx).ListProofs(keep)
		return err
	})
	return res, err
}

// Stats returns zero stats for an identity that never created a task.
func (l *Ledger) Stats(ctx context.Context, identity string) (domain.Stats, error) {
	var s domain.Stats
	err := l.Store.View(ctx, func(tx kv.Tx) error {
		var err error
		s, _, err = repo.With(tx).GetStats(identity)
		return err
	})
	return s, err
}

func (l *Ledger) AllStats(ctx context.Context) (map[string]domain.Stats, error) {
	var res map[string]domain.Stats
	err := l.Store.View(ctx, func(tx kv.Tx) error {
		var err error
		res, err = repo.With(tx).AllStats()
		return err
	})
	return res, err
}

// RecentEvents returns the most recent audit events, oldest first.
func (l *Ledger) RecentEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	var res []domain.Event
	err := l.Store.View(ctx, func(tx kv.Tx) error {
		var err error
		res, err = events.Tail(tx, limit)
		return err
	})
	return res, err
}
