// Package repo gives typed access to ledger records inside a kv transaction.
package repo

import (
	"errors"

	"zerolag/internal/domain"
	"zerolag/internal/kv"
)

const (
	TasksBucket  = "tasks"
	ProofsBucket = "proofs"
	StatsBucket  = "stats"
)

var ErrNotFound = kv.ErrNotFound

type Repo struct {
	Tx kv.Tx
}

func With(tx kv.Tx) Repo {
	return Repo{Tx: tx}
}

func (r Repo) GetTask(id string) (domain.Task, error) {
	var t domain.Task
	err := kv.GetJSON(r.Tx, TasksBucket, id, &t)
	return t, err
}

func (r Repo) PutTask(t domain.Task) error {
	return kv.PutJSON(r.Tx, TasksBucket, t.ID, t)
}

func (r Repo) ListTasks() ([]domain.Task, error) {
	return kv.ListJSON[domain.Task](r.Tx, TasksBucket)
}

func (r Repo) ListTasksByOwner(identity string) ([]domain.Task, error) {
	all, err := r.ListTasks()
	if err != nil {
		return nil, err
	}
	res := make([]domain.Task, 0, len(all))
	for _, t := range all {
		if domain.SameIdentity(t.UserAddress, identity) {
			res = append(res, t)
		}
	}
	return res, nil
}

func (r Repo) GetProof(id string) (domain.Proof, error) {
	var p domain.Proof
	err := kv.GetJSON(r.Tx, ProofsBucket, id, &p)
	return p, err
}

func (r Repo) PutProof(p domain.Proof) error {
	return kv.PutJSON(r.Tx, ProofsBucket, p.ID, p)
}

// ListProofs returns proofs in submission order, optionally filtered.
func (r Repo) ListProofs(keep func(domain.Proof) bool) ([]domain.Proof, error) {
	all, err := kv.ListJSON[domain.Proof](r.Tx, ProofsBucket)
	if err != nil {
		return nil, err
	}
	if keep == nil {
		return all, nil
	}
	res := make([]domain.Proof, 0, len(all))
	for _, p := range all {
		if keep(p) {
			res = append(res, p)
		}
	}
	return res, nil
}

// GetStats reports whether a stats record exists for identity.
func (r Repo) GetStats(identity string) (domain.Stats, bool, error) {
	var s domain.Stats
	err := kv.GetJSON(r.Tx, StatsBucket, domain.CanonicalIdentity(identity), &s)
	if errors.Is(err, kv.ErrNotFound) {
		return domain.Stats{}, false, nil
	}
	if err != nil {
		return domain.Stats{}, false, err
	}
	return s, true, nil
}

func (r Repo) PutStats(identity string, s domain.Stats) error {
	key := domain.CanonicalIdentity(identity)
	return kv.PutJSON(r.Tx, StatsBucket, key, statsEntry{Identity: key, Stats: s})
}

// statsEntry carries the key alongside the record so listings can be keyed.
type statsEntry struct {
	Identity string `json:"identity"`
	domain.Stats
}

// AllStats returns every stats record keyed by canonical identity.
func (r Repo) AllStats() (map[string]domain.Stats, error) {
	entries, err := kv.ListJSON[statsEntry](r.Tx, StatsBucket)
	if err != nil {
		return nil, err
	}
	res := make(map[string]domain.Stats, len(entries))
	for _, e := range entries {
		res[e.Identity] = e.Stats
	}
	return res, nil
}
