package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/epochkeeper/internal/domain"
)

func TestRedeemer_BulkZeroOnlyIndividual(t *testing.T) {
	f := newFixture(t, 0, 7)

	receipts, err := f.redeemer.Redeem(context.Background(), account)
	require.NoError(t, err)

	assert.Equal(t, 0, f.tx.RedeemAllCalls)
	require.Len(t, receipts, 1)
	assert.Equal(t, domain.RedeemIndividual, receipts[0].Kind)
	assert.Equal(t, bondFRAX, receipts[0].Position)
}

func TestRedeemer_BothPaths(t *testing.T) {
	f := newFixture(t, 5, 3)

	receipts, err := f.redeemer.Redeem(context.Background(), account)
	require.NoError(t, err)

	require.Len(t, receipts, 2)
	assert.Equal(t, domain.RedeemBulk, receipts[0].Kind)
	assert.Equal(t, domain.RedeemIndividual, receipts[1].Kind)
	assert.Less(t, receipts[0].BlockNumber, receipts[1].BlockNumber)
	assert.Equal(t, []uint64{DefaultConfirmations, DefaultConfirmations}, f.tx.Confirmations)
}

func TestRedeemer_NothingPending(t *testing.T) {
	f := newFixture(t, 0, 0)

	receipts, err := f.redeemer.Redeem(context.Background(), account)
	require.NoError(t, err)
	assert.Empty(t, receipts)
	assert.Empty(t, f.tx.RedeemCalls)
}

func TestRedeemer_SupplementalFailureKeepsReceipts(t *testing.T) {
	f := newFixture(t, 5, 3)
	f.tx.FailRedeem[bondFRAX] = errors.New("nonce too low")

	receipts, err := f.redeemer.Redeem(context.Background(), account)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPartialRedeem)
	require.Len(t, receipts, 1)
	assert.Equal(t, domain.RedeemBulk, receipts[0].Kind)
}

func TestRedeemer_BulkFailureAborts(t *testing.T) {
	f := newFixture(t, 5, 3)
	f.tx.FailRedeemAll = errors.New("insufficient funds for gas")

	receipts, err := f.redeemer.Redeem(context.Background(), account)

	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrPartialRedeem)
	assert.Empty(t, receipts)
	assert.Empty(t, f.tx.RedeemCalls)
}

func TestRedeemer_RevertedConfirmationIsNotRetried(t *testing.T) {
	f := newFixture(t, 0, 3)
	// first submission gets hash 0x..01
	f.tx.FailConfirm[hashOf(1)] = domain.ErrTxReverted

	receipts, err := f.redeemer.Redeem(context.Background(), account)

	assert.ErrorIs(t, err, domain.ErrTxReverted)
	assert.Empty(t, receipts)
	assert.Len(t, f.tx.RedeemCalls, 1)
}

func TestRedeemer_SetConfirmations(t *testing.T) {
	f := newFixture(t, 5, 0)
	f.redeemer.SetConfirmations(0)
	f.redeemer.SetConfirmations(6)

	_, err := f.redeemer.Redeem(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, []uint64{6}, f.tx.Confirmations)
}
