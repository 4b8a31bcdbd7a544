// Package chain talks to the staking contract over JSON-RPC.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

var (
	ErrReverted       = errors.New("transaction reverted")
	ErrInvalidAddress = errors.New("invalid address")
)

// Staking is the contract surface the ledger's callers use.
type Staking interface {
	CreateTask(ctx context.Context, taskID string, deadline time.Time, value *big.Int) (Receipt, error)
	ClaimStake(ctx context.Context, taskID string) (Receipt, error)
	FailTask(ctx context.Context, taskID string) (Receipt, error)
	Balance(ctx context.Context, address string) (*big.Int, error)
}

// Backend is the subset of *ethclient.Client the contract needs.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

var _ Backend = (*ethclient.Client)(nil)

type Receipt struct {
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
	Status      uint64 `json:"status"`
	GasUsed     uint64 `json:"gasUsed"`
}

type TaskDetails struct {
	User      string    `json:"user"`
	Amount    *big.Int  `json:"amount"`
	Deadline  time.Time `json:"deadline"`
	Completed bool      `json:"completed"`
}

type Contract struct {
	Backend      Backend
	Address      common.Address
	Key          *ecdsa.PrivateKey
	GasLimit     uint64
	PollInterval time.Duration

	abi abi.ABI
}

var _ Staking = (*Contract)(nil)

// Dial connects to rpcURL and binds the contract at address.
func Dial(ctx context.Context, rpcURL, address string, key *ecdsa.PrivateKey, gasLimit uint64) (*Contract, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	c, err := NewContract(client, address, key, gasLimit)
	if err != nil {
		client.Close()
		return nil, err
	}
	return c, nil
}

func NewContract(backend Backend, address string, key *ecdsa.PrivateKey, gasLimit uint64) (*Contract, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	parsed, err := abi.JSON(strings.NewReader(stakingABI))
	if err != nil {
		return nil, fmt.Errorf("parse staking ABI: %w", err)
	}
	return &Contract{
		Backend:      backend,
		Address:      common.HexToAddress(address),
		Key:          key,
		GasLimit:     gasLimit,
		PollInterval: time.Second,
		abi:          parsed,
	}, nil
}

// From is the account that signs contract transactions.
func (c *Contract) From() common.Address {
	return crypto.PubkeyToAddress(c.Key.PublicKey)
}

func (c *Contract) CreateTask(ctx context.Context, taskID string, deadline time.Time, value *big.Int) (Receipt, error) {
	return c.Transact(ctx, "createTask", value, taskID, big.NewInt(deadline.Unix()))
}

func (c *Contract) ClaimStake(ctx context.Context, taskID string) (Receipt, error) {
	return c.Transact(ctx, "claimStake", nil, taskID)
}

func (c *Contract) FailTask(ctx context.Context, taskID string) (Receipt, error) {
	return c.Transact(ctx, "failTask", nil, taskID)
}

func (c *Contract) Balance(ctx context.Context, address string) (*big.Int, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	bal, err := c.Backend.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return bal, nil
}

func (c *Contract) TaskDetails(ctx context.Context, taskID string) (TaskDetails, error) {
	data, err := c.abi.Pack("getTaskDetails", taskID)
	if err != nil {
		return TaskDetails{}, fmt.Errorf("encode getTaskDetails: %w", err)
	}
	out, err := c.Backend.CallContract(ctx, ethereum.CallMsg{To: &c.Address, Data: data}, nil)
	if err != nil {
		return TaskDetails{}, fmt.Errorf("call getTaskDetails: %w", err)
	}
	vals, err := c.abi.Unpack("getTaskDetails", out)
	if err != nil {
		return TaskDetails{}, fmt.Errorf("decode getTaskDetails: %w", err)
	}
	if len(vals) != 4 {
		return TaskDetails{}, fmt.Errorf("decode getTaskDetails: expected 4 values, got %d", len(vals))
	}
	user, _ := vals[0].(common.Address)
	amount, _ := vals[1].(*big.Int)
	deadline, _ := vals[2].(*big.Int)
	completed, _ := vals[3].(bool)
	d := TaskDetails{User: user.Hex(), Amount: amount, Completed: completed}
	if deadline != nil {
		d.Deadline = time.Unix(deadline.Int64(), 0).UTC()
	}
	return d, nil
}

// Transact packs method with args, signs a legacy transaction from Key and
// waits until it is mined.
func (c *Contract) Transact(ctx context.Context, method string, value *big.Int, args ...any) (Receipt, error) {
	if c.Key == nil {
		return Receipt{}, errors.New("no signing key configured")
	}
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return Receipt{}, fmt.Errorf("encode %s: %w", method, err)
	}
	if value == nil {
		value = new(big.Int)
	}
	from := c.From()

	chainID, err := c.Backend.ChainID(ctx)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to get chain id: %w", err)
	}
	nonce, err := c.Backend.PendingNonceAt(ctx, from)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to get pending nonce: %w", err)
	}
	gasPrice, err := c.Backend.SuggestGasPrice(ctx)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to get gas price: %w", err)
	}
	gas := c.GasLimit
	if gas == 0 {
		gas, err = c.Backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &c.Address, Value: value, Data: data})
		if err != nil {
			return Receipt{}, fmt.Errorf("failed to estimate gas: %w", err)
		}
	}

	tx := types.NewTransaction(nonce, c.Address, value, gas, gasPrice, data)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), c.Key)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := c.Backend.SendTransaction(ctx, signed); err != nil {
		return Receipt{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	return c.waitMined(ctx, signed.Hash())
}

func (c *Contract) waitMined(ctx context.Context, hash common.Hash) (Receipt, error) {
	interval := c.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		receipt, err := c.Backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			r := Receipt{TxHash: receipt.TxHash.Hex(), Status: receipt.Status, GasUsed: receipt.GasUsed}
			if receipt.BlockNumber != nil {
				r.BlockNumber = receipt.BlockNumber.Uint64()
			}
			if receipt.Status != types.ReceiptStatusSuccessful {
				return r, fmt.Errorf("%w: %s", ErrReverted, r.TxHash)
			}
			return r, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return Receipt{}, fmt.Errorf("failed to get receipt: %w", err)
		}
		select {
		case <-ctx.Done():
			return Receipt{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
