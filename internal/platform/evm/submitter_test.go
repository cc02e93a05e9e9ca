package evm

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/epochkeeper/internal/domain"
)

var chainID = big.NewInt(43114)

func testSubmitter(t *testing.T, b *fakeBackend) (*Submitter, keySigner) {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	signer := keySigner{key: key}
	return NewSubmitter(b, signer, chainID, helperAddr, testLogger(), WithPollInterval(time.Millisecond)), signer
}

func TestSubmitter_RedeemAllBuildsDynamicFeeTx(t *testing.T) {
	b := newFakeBackend()
	b.setHeaders(5, func(n uint64) uint64 { return n }, big.NewInt(25_000_000_000))
	b.nonce = 7
	s, signer := testSubmitter(t, b)

	pending, err := s.RedeemAll(context.Background(), holder, true)
	require.NoError(t, err)

	require.Len(t, b.sent, 1)
	tx := b.sent[0]
	assert.Equal(t, pending.Hash, tx.Hash())
	assert.Equal(t, domain.RedeemBulk, pending.Kind)
	assert.Equal(t, uint8(types.DynamicFeeTxType), tx.Type())
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(120_000), tx.Gas())
	assert.Equal(t, helperAddr, *tx.To())
	assert.Equal(t, big.NewInt(52_000_000_000), tx.GasFeeCap())

	from, err := types.Sender(types.LatestSignerForChainID(chainID), tx)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), from)

	method, err := redeemHelperABI.MethodById(tx.Data()[:4])
	require.NoError(t, err)
	assert.Equal(t, "redeemAll", method.Name)
	args, err := method.Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, holder, args[0])
	assert.Equal(t, true, args[1])
}

func TestSubmitter_RedeemLegacyChain(t *testing.T) {
	b := newFakeBackend()
	b.setHeaders(5, func(n uint64) uint64 { return n }, nil)
	s, _ := testSubmitter(t, b)

	pending, err := s.Redeem(context.Background(), bondAddr, holder, false)
	require.NoError(t, err)

	require.Len(t, b.sent, 1)
	assert.Equal(t, uint8(types.LegacyTxType), b.sent[0].Type())
	assert.Equal(t, bondAddr, *b.sent[0].To())
	assert.Equal(t, bondAddr, pending.Position)
	assert.Equal(t, domain.RedeemIndividual, pending.Kind)
}

func TestSubmitter_NoSigner(t *testing.T) {
	b := newFakeBackend()
	s := NewSubmitter(b, nil, chainID, helperAddr, testLogger())

	_, err := s.RedeemAll(context.Background(), holder, true)
	assert.ErrorIs(t, err, domain.ErrNoSigner)
	assert.Empty(t, b.sent)
}

func TestSubmitter_AwaitConfirmation(t *testing.T) {
	b := newFakeBackend()
	b.head = 100
	hash := common.HexToHash("0xabc")
	b.receipts[hash] = &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(100), GasUsed: 80_000}
	b.receiptAfter = 1
	s, _ := testSubmitter(t, b)

	rc, err := s.AwaitConfirmation(context.Background(), domain.PendingTx{Hash: hash, Kind: domain.RedeemBulk}, 2)
	require.NoError(t, err)

	assert.Equal(t, uint64(100), rc.BlockNumber)
	assert.Equal(t, uint64(80_000), rc.GasUsed)
	assert.Equal(t, domain.RedeemBulk, rc.Kind)
	assert.GreaterOrEqual(t, b.head, uint64(101))
	assert.Equal(t, 2, b.lookups)
}

func TestSubmitter_AwaitConfirmationWaitsForDepth(t *testing.T) {
	b := newFakeBackend()
	b.head = 100
	hash := common.HexToHash("0xdef")
	b.receipts[hash] = &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(100)}
	s, _ := testSubmitter(t, b)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// The fake only advances the head on receipt lookups, so a depth of 5
	// is never reached.
	_, err := s.AwaitConfirmation(ctx, domain.PendingTx{Hash: hash}, 5)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubmitter_AwaitConfirmationReverted(t *testing.T) {
	b := newFakeBackend()
	hash := common.HexToHash("0x123")
	b.receipts[hash] = &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(50)}
	s, _ := testSubmitter(t, b)

	_, err := s.AwaitConfirmation(context.Background(), domain.PendingTx{Hash: hash}, 2)
	assert.ErrorIs(t, err, domain.ErrTxReverted)
}
