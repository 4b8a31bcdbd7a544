// Package auth implements the wallet challenge/response sign-in.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"zerolag/internal/challenge"
	"zerolag/internal/domain"
	"zerolag/internal/ethsig"
)

const (
	secretBytes = 32
	DefaultTTL  = 10 * time.Minute
)

type Result struct {
	Identity string `json:"address"`
	Verified bool   `json:"authenticated"`
}

// Authenticator issues single-use challenges and verifies signed responses.
// A zero TTL disables expiry.
type Authenticator struct {
	Store            challenge.Store
	Now              func() time.Time
	Random           io.Reader
	TTL              time.Duration
	ConsumeOnFailure bool
	Logger           *slog.Logger

	locks identityLocks
}

func New(store challenge.Store) *Authenticator {
	return &Authenticator{Store: store, TTL: DefaultTTL}
}

func (a *Authenticator) now() time.Time {
	if a.Now != nil {
		return a.Now().UTC()
	}
	return time.Now().UTC()
}

func (a *Authenticator) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// IssueChallenge stores a fresh challenge for identity, replacing any
// outstanding one, and returns the message to sign.
func (a *Authenticator) IssueChallenge(ctx context.Context, identity string) (string, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return "", fmt.Errorf("%w: identity required", ErrInvalidInput)
	}
	random := a.Random
	if random == nil {
		random = rand.Reader
	}
	buf := make([]byte, secretBytes)
	if _, err := io.ReadFull(random, buf); err != nil {
		return "", fmt.Errorf("generate challenge: %w", err)
	}
	now := a.now()
	c := domain.Challenge{
		Identity: identity,
		Secret:   hex.EncodeToString(buf),
		IssuedAt: now,
	}
	if a.TTL > 0 {
		c.ExpiresAt = now.Add(a.TTL)
	}

	key := domain.CanonicalIdentity(identity)
	unlock := a.locks.lock(key)
	defer unlock()
	if err := a.Store.Put(ctx, key, c); err != nil {
		return "", err
	}
	a.logger().InfoContext(ctx, "challenge issued", slog.String("identity", key))
	return c.Message(), nil
}

// Verify checks signature against the outstanding challenge for identity and
// consumes the challenge on success.
func (a *Authenticator) Verify(ctx context.Context, identity, signature string) (Result, error) {
	identity = strings.TrimSpace(identity)
	signature = strings.TrimSpace(signature)
	if identity == "" || signature == "" {
		return Result{}, fmt.Errorf("%w: identity and signature required", ErrInvalidInput)
	}
	key := domain.CanonicalIdentity(identity)
	unlock := a.locks.lock(key)
	defer unlock()

	log := a.logger().With(slog.String("identity", key))
	c, ok, err := a.Store.Get(ctx, key)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		log.InfoContext(ctx, "verify rejected", slog.String("outcome", "no_challenge"))
		return Result{}, ErrChallengeNotFound
	}
	if c.Expired(a.now()) {
		if err := a.Store.Clear(ctx, key); err != nil {
			return Result{}, err
		}
		log.InfoContext(ctx, "verify rejected", slog.String("outcome", "expired"))
		return Result{}, ErrChallengeExpired
	}

	recovered, err := ethsig.RecoverPersonal(c.Message(), signature)
	if err != nil {
		log.WarnContext(ctx, "verify rejected", slog.String("outcome", "malformed"), slog.Any("err", err))
		return Result{}, a.fail(ctx, key, fmt.Errorf("%w: %v", ErrMalformedSignature, err))
	}
	if !domain.SameIdentity(recovered, identity) {
		log.InfoContext(ctx, "verify rejected", slog.String("outcome", "mismatch"))
		return Result{}, a.fail(ctx, key, ErrSignatureMismatch)
	}
	if err := a.Store.Clear(ctx, key); err != nil {
		return Result{}, err
	}
	log.InfoContext(ctx, "verify succeeded")
	return Result{Identity: identity, Verified: true}, nil
}

func (a *Authenticator) fail(ctx context.Context, key string, cause error) error {
	if !a.ConsumeOnFailure {
		return cause
	}
	if err := a.Store.Clear(ctx, key); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}
