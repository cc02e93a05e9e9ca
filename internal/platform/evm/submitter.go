package evm

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/epochkeeper/internal/domain"
)

const (
	defaultPollInterval = 2 * time.Second
	// gasHeadroomPct is added on top of the node's gas estimate.
	gasHeadroomPct = 20
)

// Signer signs transactions for the account that pays for them.
type Signer interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// Submitter implements domain.TxSubmitter. Each call builds, signs and sends
// one transaction; nothing is resent on failure.
type Submitter struct {
	backend      Backend
	signer       Signer
	chainID      *big.Int
	redeemHelper common.Address
	pollInterval time.Duration
	logger       *slog.Logger
}

// SubmitterOption configures a Submitter.
type SubmitterOption func(*Submitter)

// WithPollInterval sets how often the chain head is polled while awaiting
// confirmation depth.
func WithPollInterval(d time.Duration) SubmitterOption {
	return func(s *Submitter) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// NewSubmitter creates a Submitter. A nil signer yields a Submitter whose
// sends fail with domain.ErrNoSigner.
func NewSubmitter(backend Backend, signer Signer, chainID *big.Int, redeemHelper common.Address, logger *slog.Logger, opts ...SubmitterOption) *Submitter {
	s := &Submitter{
		backend:      backend,
		signer:       signer,
		chainID:      chainID,
		redeemHelper: redeemHelper,
		pollInterval: defaultPollInterval,
		logger:       logger.With(slog.String("component", "evm_submitter")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RedeemAll calls RedeemHelper.redeemAll(recipient, stake).
func (s *Submitter) RedeemAll(ctx context.Context, recipient common.Address, stake bool) (domain.PendingTx, error) {
	data, err := redeemHelperABI.Pack("redeemAll", recipient, stake)
	if err != nil {
		return domain.PendingTx{}, fmt.Errorf("evm: pack redeemAll: %w", err)
	}
	hash, err := s.send(ctx, s.redeemHelper, data)
	if err != nil {
		return domain.PendingTx{}, fmt.Errorf("evm: redeemAll: %w", err)
	}
	return domain.PendingTx{Hash: hash, Kind: domain.RedeemBulk}, nil
}

// Redeem calls Bond.redeem(recipient, stake) on a single bond.
func (s *Submitter) Redeem(ctx context.Context, bond, recipient common.Address, stake bool) (domain.PendingTx, error) {
	data, err := bondABI.Pack("redeem", recipient, stake)
	if err != nil {
		return domain.PendingTx{}, fmt.Errorf("evm: pack redeem: %w", err)
	}
	hash, err := s.send(ctx, bond, data)
	if err != nil {
		return domain.PendingTx{}, fmt.Errorf("evm: redeem %s: %w", bond.Hex(), err)
	}
	return domain.PendingTx{Hash: hash, Kind: domain.RedeemIndividual, Position: bond}, nil
}

// send builds a transaction to `to`, signs and broadcasts it. London chains
// get an EIP-1559 transaction, older ones a legacy one.
func (s *Submitter) send(ctx context.Context, to common.Address, data []byte) (common.Hash, error) {
	if s.signer == nil {
		return common.Hash{}, domain.ErrNoSigner
	}
	from := s.signer.Address()

	nonce, err := s.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("nonce: %w", err)
	}
	gas, err := s.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}
	gas += gas * gasHeadroomPct / 100

	head, err := s.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("head header: %w", err)
	}

	var unsigned *types.Transaction
	if head.BaseFee != nil {
		tip, err := s.backend.SuggestGasTipCap(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("gas tip: %w", err)
		}
		feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
		unsigned = types.NewTx(&types.DynamicFeeTx{
			ChainID:   s.chainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Gas:       gas,
			To:        &to,
			Value:     new(big.Int),
			Data:      data,
		})
	} else {
		price, err := s.backend.SuggestGasPrice(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("gas price: %w", err)
		}
		unsigned = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: price,
			Gas:      gas,
			To:       &to,
			Value:    new(big.Int),
			Data:     data,
		})
	}

	signed, err := s.signer.SignTx(unsigned, s.chainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign: %w", err)
	}
	if err := s.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send: %w", err)
	}

	s.logger.InfoContext(ctx, "transaction sent",
		slog.String("tx", signed.Hash().Hex()),
		slog.String("to", to.Hex()),
		slog.Uint64("nonce", nonce),
		slog.Uint64("gas", gas),
	)
	return signed.Hash(), nil
}

// AwaitConfirmation waits for the receipt with bind.WaitMined, then polls the
// chain head until it reaches the requested depth. The inclusion block counts
// as the first confirmation.
func (s *Submitter) AwaitConfirmation(ctx context.Context, tx domain.PendingTx, confirmations uint64) (domain.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, s.backend, tx.Hash)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("evm: await receipt %s: %w", tx.Hash.Hex(), err)
	}

	block := receipt.BlockNumber.Uint64()
	if receipt.Status == types.ReceiptStatusFailed {
		return domain.Receipt{}, fmt.Errorf("evm: tx %s in block %d: %w", tx.Hash.Hex(), block, domain.ErrTxReverted)
	}

	if confirmations > 1 {
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		target := block + confirmations - 1
		for {
			head, err := s.backend.BlockNumber(ctx)
			if err == nil && head >= target {
				break
			}
			if err != nil {
				s.logger.WarnContext(ctx, "head lookup failed", slog.String("error", err.Error()))
			}
			if err := wait(ctx, ticker); err != nil {
				return domain.Receipt{}, fmt.Errorf("evm: await confirmations %s: %w", tx.Hash.Hex(), err)
			}
		}
	}

	return domain.Receipt{
		TxHash:      tx.Hash,
		BlockNumber: block,
		Kind:        tx.Kind,
		Position:    tx.Position,
		GasUsed:     receipt.GasUsed,
	}, nil
}

func wait(ctx context.Context, ticker *time.Ticker) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ticker.C:
		return nil
	}
}

var _ domain.TxSubmitter = (*Submitter)(nil)
