// Package app wires stores, services and the logger from a Config.
package app

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"zerolag/internal/auth"
	"zerolag/internal/chain"
	"zerolag/internal/challenge"
	"zerolag/internal/config"
	"zerolag/internal/db"
	"zerolag/internal/ethsig"
	"zerolag/internal/events"
	"zerolag/internal/files"
	"zerolag/internal/kv"
	"zerolag/internal/ledger"
)

type App struct {
	Config     *config.Config
	KV         kv.Store
	Challenges challenge.Store
	Auth       *auth.Authenticator
	Ledger     *ledger.Ledger
	Files      *files.Store
	// Chain is nil unless an RPC endpoint and contract are configured.
	Chain  *chain.Contract
	Logger *slog.Logger

	closers []func() error
}

// Open builds every service for workspace. Callers must Close the App.
func Open(ctx context.Context, workspace string, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	a := &App{Config: cfg, Logger: logger}

	store, err := OpenStore(ctx, workspace, cfg)
	if err != nil {
		return nil, err
	}
	a.KV = store
	a.closers = append(a.closers, store.Close)

	switch cfg.Challenges.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.Challenges.RedisAddr, DB: cfg.Challenges.RedisDB})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			a.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.Challenges.RedisAddr, err)
		}
		a.closers = append(a.closers, client.Close)
		a.Challenges = challenge.NewRedisStore(client, cfg.Challenges.RedisPrefix)
	default:
		a.Challenges = challenge.NewKVStore(store)
	}

	a.Auth = auth.New(a.Challenges)
	a.Auth.TTL = cfg.Auth.ChallengeTTL
	a.Auth.ConsumeOnFailure = cfg.Auth.ConsumeOnFailure
	a.Auth.Logger = logger.With(slog.String("component", "auth"))

	a.Ledger = ledger.New(store)
	a.Ledger.AllowResubmission = cfg.Ledger.AllowResubmission

	a.Files = files.New(store)
	a.Files.MaxInline = cfg.Files.MaxInlineBytes

	if cfg.ChainEnabled() {
		c, err := DialChain(ctx, cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Chain = c
		if cl, ok := c.Backend.(interface{ Close() }); ok {
			a.closers = append(a.closers, func() error { cl.Close(); return nil })
		}
	}
	return a, nil
}

// SetClock makes every service read time from now.
func (a *App) SetClock(now func() time.Time) {
	a.Auth.Now = now
	a.Ledger.Now = now
	a.Ledger.Events = events.Writer{Now: now}
	a.Files.Now = now
	if rs, ok := a.Challenges.(*challenge.RedisStore); ok {
		rs.Now = now
	}
}

// OpenStore opens the configured kv backend and migrates it when needed.
func OpenStore(ctx context.Context, workspace string, cfg *config.Config) (kv.Store, error) {
	switch cfg.Store.Backend {
	case "memory":
		return kv.NewMemory(), nil
	case "bolt":
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return nil, err
		}
		return kv.OpenBolt(db.BoltPath(workspace, cfg.Store.BoltFile))
	case "sqlite", "":
		return kv.OpenSQLite(ctx, db.Config{Workspace: workspace, File: cfg.Store.SQLiteFile})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// DialChain connects to the configured staking contract. Without a private
// key the contract is read-only.
func DialChain(ctx context.Context, cfg *config.Config) (*chain.Contract, error) {
	var signer *ecdsa.PrivateKey
	if cfg.Chain.PrivateKey != "" {
		key, err := ethsig.ParseKey(cfg.Chain.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("config.chain.private_key: %w", err)
		}
		signer = key
	}
	return chain.Dial(ctx, cfg.Chain.RPCURL, cfg.Chain.Contract, signer, cfg.Chain.GasLimit)
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// NewLogger builds the slog logger described by cfg.Log.
func NewLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
