// internal/services/shares_service_test.go
package services

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafat/cronosflow/internal/apperrors"
	"github.com/rafat/cronosflow/internal/models"
)

func TestMintRequiresWhitelist(t *testing.T) {
	env := setupVault(t)

	outsider := env.f.identity(t, "outsider", models.RoleInvestor)
	_, err := env.f.shares.Mint(*env.asset.ShareLedgerID, outsider.ID, big.NewInt(100))
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthorization))
}

func TestMintEnforcesMaxSupply(t *testing.T) {
	env := setupVault(t)

	// 1000 of the 10000 cap is already minted.
	_, err := env.f.shares.Mint(*env.asset.ShareLedgerID, env.investorA.ID, big.NewInt(9001))
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	ledger, err := env.f.shares.Mint(*env.asset.ShareLedgerID, env.investorA.ID, big.NewInt(9000))
	require.NoError(t, err)
	bigEq(t, 10000, ledger.TotalSupply)
}

func TestBurnReducesSupply(t *testing.T) {
	env := setupVault(t)

	ledger, err := env.f.shares.Burn(*env.asset.ShareLedgerID, env.investorA.ID, big.NewInt(200))
	require.NoError(t, err)
	bigEq(t, 800, ledger.TotalSupply)

	balance, err := env.f.shares.BalanceOf(*env.asset.ShareLedgerID, env.investorA.ID)
	require.NoError(t, err)
	bigEq(t, 400, balance)

	_, err = env.f.shares.Burn(*env.asset.ShareLedgerID, env.investorA.ID, big.NewInt(401))
	assert.True(t, apperrors.IsKind(err, apperrors.KindInsufficientFunds))
}

func TestTransferGuards(t *testing.T) {
	env := setupVault(t)
	f := env.f
	ledgerID := *env.asset.ShareLedgerID

	err := f.shares.Transfer(ledgerID, env.investorA.ID, env.investorA.ID, big.NewInt(100))
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	err = f.shares.Transfer(ledgerID, env.investorA.ID, env.investorB.ID, big.NewInt(601))
	assert.True(t, apperrors.IsKind(err, apperrors.KindInsufficientFunds))

	outsider := f.identity(t, "outsider", models.RoleInvestor)
	err = f.shares.Transfer(ledgerID, env.investorA.ID, outsider.ID, big.NewInt(100))
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthorization))

	err = f.shares.Transfer(ledgerID, env.investorA.ID, env.investorB.ID, big.NewInt(100))
	require.NoError(t, err)

	balanceA, err := f.shares.BalanceOf(ledgerID, env.investorA.ID)
	require.NoError(t, err)
	bigEq(t, 500, balanceA)
	balanceB, err := f.shares.BalanceOf(ledgerID, env.investorB.ID)
	require.NoError(t, err)
	bigEq(t, 500, balanceB)

	// Transfers move balances, never supply.
	ledger, err := f.shares.GetLedger(ledgerID)
	require.NoError(t, err)
	bigEq(t, 1000, ledger.TotalSupply)
}

func TestOwnershipShareBps(t *testing.T) {
	env := setupVault(t)

	bps, err := env.f.shares.OwnershipShareBps(*env.asset.ShareLedgerID, env.investorA.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(6000), bps)

	bps, err = env.f.shares.OwnershipShareBps(*env.asset.ShareLedgerID, env.investorB.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), bps)

	stranger := env.f.identity(t, "stranger", models.RoleInvestor)
	bps, err = env.f.shares.OwnershipShareBps(*env.asset.ShareLedgerID, stranger.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), bps)
}

func TestOwnershipShareBpsZeroSupply(t *testing.T) {
	f := newFixture(t)
	originator := f.identity(t, "originator", models.RoleOriginator)
	manager := f.identity(t, "manager", models.RoleManager)
	asset := f.linkedAsset(t, originator, manager)

	bps, err := f.shares.OwnershipShareBps(*asset.ShareLedgerID, originator.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), bps)
}
