package market

import (
	"testing"

	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/migration"
	"github.com/iov-one/weave/store"
	"github.com/iov-one/weave/weavetest"
	"github.com/iov-one/weave/x/cash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerDepositAndRelease(t *testing.T) {
	db := store.MemStore()
	migration.MustInitPkg(db, "cash")

	ctrl := cash.NewController(cash.NewBucket())
	l := newLedger(ctrl)

	txID := weavetest.SequenceID(1)
	alice := weavetest.NewCondition().Address()
	bob := weavetest.NewCondition().Address()

	require.NoError(t, ctrl.CoinMint(db, alice, coin.NewCoin(100, 0, "IOV")))

	require.NoError(t, l.deposit(db, txID, alice, coin.NewCoin(60, 0, "IOV")))
	// The remaining wallet balance is too small for a second deposit.
	require.Error(t, l.deposit(db, txID, alice, coin.NewCoin(60, 0, "IOV")))

	require.NoError(t, l.release(db, txID, bob, coin.NewCoin(10, 0, "IOV")))
	err := l.release(db, txID, bob, coin.NewCoin(60, 0, "IOV"))
	assert.True(t, ErrInsufficientEscrow.Is(err), "%+v", err)

	funds, err := l.releaseAll(db, txID, bob)
	require.NoError(t, err)
	assert.True(t, funds.Equals(coin.Coins{coin.NewCoinp(50, 0, "IOV")}), "%q", funds)

	_, err = l.releaseAll(db, txID, bob)
	assert.True(t, ErrInsufficientEscrow.Is(err), "%+v", err)
}

func TestLedgerSplit(t *testing.T) {
	db := store.MemStore()
	migration.MustInitPkg(db, "cash")

	ctrl := cash.NewController(cash.NewBucket())
	l := newLedger(ctrl)

	txID := weavetest.SequenceID(1)
	funder := weavetest.NewCondition().Address()
	first := weavetest.NewCondition().Address()
	second := weavetest.NewCondition().Address()

	require.NoError(t, ctrl.CoinMint(db, funder, coin.NewCoin(111, 3, "IOV")))
	require.NoError(t, l.deposit(db, txID, funder, coin.NewCoin(111, 3, "IOV")))

	require.NoError(t, l.split(db, txID, first, second))

	// 111.000000003 halves into 55.500000001 with a remainder of one
	// fractional unit that goes to the first wallet.
	firstFunds, err := ctrl.Balance(db, first)
	require.NoError(t, err)
	assert.True(t, firstFunds.Equals(coin.Coins{coin.NewCoinp(55, 500000002, "IOV")}), "%q", firstFunds)

	secondFunds, err := ctrl.Balance(db, second)
	require.NoError(t, err)
	assert.True(t, secondFunds.Equals(coin.Coins{coin.NewCoinp(55, 500000001, "IOV")}), "%q", secondFunds)

	err = l.split(db, txID, first, second)
	assert.True(t, ErrInsufficientEscrow.Is(err), "%+v", err)
}
