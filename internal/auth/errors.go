package auth

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrChallengeNotFound  = errors.New("no challenge on record")
	ErrChallengeExpired   = errors.New("challenge expired")
	ErrSignatureMismatch  = errors.New("signature does not match identity")
	ErrMalformedSignature = errors.New("signature could not be verified")
)

// ForbiddenError indicates missing permission.
type ForbiddenError struct {
	Permission string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("permission %s required", e.Permission)
}
