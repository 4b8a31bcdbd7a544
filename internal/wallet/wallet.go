// Package wallet is the client side of sign-in: it holds a key, answers
// challenges and submits staking calls.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"

	"zerolag/internal/chain"
	"zerolag/internal/domain"
	"zerolag/internal/ethsig"
)

var ErrNoContract = errors.New("no staking contract configured")

// Provider is the capability set an injected browser wallet offers.
type Provider interface {
	RequestAccounts(ctx context.Context) ([]string, error)
	SignMessage(ctx context.Context, message string) (string, error)
	SendContractCall(ctx context.Context, method string, value *big.Int, args ...any) (chain.Receipt, error)
}

// KeyWallet is a Provider backed by a local secp256k1 key.
type KeyWallet struct {
	key      *ecdsa.PrivateKey
	Contract *chain.Contract
}

var _ Provider = (*KeyWallet)(nil)

func New(key *ecdsa.PrivateKey) *KeyWallet {
	return &KeyWallet{key: key}
}

func FromHex(hexKey string) (*KeyWallet, error) {
	key, err := ethsig.ParseKey(hexKey)
	if err != nil {
		return nil, err
	}
	return New(key), nil
}

func Generate() (*KeyWallet, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return New(key), nil
}

func (w *KeyWallet) Key() *ecdsa.PrivateKey { return w.key }

func (w *KeyWallet) Address() string {
	return ethsig.Address(w.key)
}

func (w *KeyWallet) PrivateKeyHex() string {
	return "0x" + hex.EncodeToString(crypto.FromECDSA(w.key))
}

func (w *KeyWallet) RequestAccounts(context.Context) ([]string, error) {
	return []string{w.Address()}, nil
}

func (w *KeyWallet) SignMessage(_ context.Context, message string) (string, error) {
	return ethsig.SignPersonal(w.key, message)
}

func (w *KeyWallet) SendContractCall(ctx context.Context, method string, value *big.Int, args ...any) (chain.Receipt, error) {
	if w.Contract == nil {
		return chain.Receipt{}, ErrNoContract
	}
	return w.Contract.Transact(ctx, method, value, args...)
}

// StakeTask locks the task's stake in the contract until its deadline.
func StakeTask(ctx context.Context, p Provider, t domain.Task) (chain.Receipt, error) {
	value, err := chain.EtherFromFloat(t.StakedAmount)
	if err != nil {
		return chain.Receipt{}, fmt.Errorf("stake amount: %w", err)
	}
	return p.SendContractCall(ctx, "createTask", value, t.ID, big.NewInt(t.Deadline.Unix()))
}

// ClaimStake asks the contract to release the stake of a completed task.
func ClaimStake(ctx context.Context, p Provider, taskID string) (chain.Receipt, error) {
	return p.SendContractCall(ctx, "claimStake", nil, taskID)
}
