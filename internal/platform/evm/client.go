// Package evm talks to the EVM ledger over JSON-RPC: contract reads for the
// epoch engine and signed EIP-1559 redeem transactions.
package evm

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Backend is the subset of ethclient.Client used by the gateway and the
// submitter.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

// Client wraps an ethclient connection.
type Client struct {
	*ethclient.Client
	chainID *big.Int
}

// Dial connects to the RPC endpoint and checks the reported chain ID against
// the expected one. An expected chain ID of zero accepts whatever the node
// reports.
func Dial(ctx context.Context, rawURL string, expectedChainID int64, logger *slog.Logger) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("evm: dial: %w", err)
	}

	chainID, err := ec.ChainID(ctx)
	if err != nil {
		ec.Close()
		return nil, fmt.Errorf("evm: chain id: %w", err)
	}
	if expectedChainID != 0 && chainID.Int64() != expectedChainID {
		ec.Close()
		return nil, fmt.Errorf("evm: connected to chain %s, expected %d", chainID, expectedChainID)
	}

	logger.Info("evm client connected", slog.String("chain_id", chainID.String()))
	return &Client{Client: ec, chainID: chainID}, nil
}

// ChainIDValue returns the chain ID observed at dial time.
func (c *Client) ChainIDValue() *big.Int {
	return new(big.Int).Set(c.chainID)
}

var _ Backend = (*Client)(nil)
