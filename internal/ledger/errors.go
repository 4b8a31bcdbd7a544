package ledger

import (
	"errors"

	"zerolag/internal/kv"
)

var (
	// ErrNotFound is kv.ErrNotFound so storage lookups surface unchanged.
	ErrNotFound        = kv.ErrNotFound
	ErrValidation      = errors.New("validation failed")
	ErrTaskClosed      = errors.New("task is no longer active")
	ErrAlreadyPending  = errors.New("a proof is already pending review")
	ErrAlreadyReviewed = errors.New("proof already reviewed")
)
