package market

import (
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/x/cash"
)

// ledger moves value between the parties and the per transaction escrow
// accounts. It is the only place in this package that touches wallets.
type ledger struct {
	cashctrl cash.Controller
}

func newLedger(ctrl cash.Controller) *ledger {
	return &ledger{cashctrl: ctrl}
}

func escrowAccount(transactionID []byte) weave.Address {
	return Condition(transactionID).Address()
}

// deposit locks funds for a transaction by moving them away from the payer
// account.
func (l *ledger) deposit(db weave.KVStore, transactionID []byte, from weave.Address, amount coin.Coin) error {
	if err := cash.MoveCoins(db, l.cashctrl, from, escrowAccount(transactionID), coin.Coins{&amount}); err != nil {
		return errors.Wrap(err, "deposit funds")
	}
	return nil
}

// release pays the given amount out of the transaction escrow. The
// orchestration computes amounts from the recorded deposits, so a shortfall
// here means corrupted bookkeeping and is not recoverable.
func (l *ledger) release(db weave.KVStore, transactionID []byte, to weave.Address, amount coin.Coin) error {
	if err := l.hasFunds(db, escrowAccount(transactionID), amount); err != nil {
		return err
	}
	if err := cash.MoveCoins(db, l.cashctrl, escrowAccount(transactionID), to, coin.Coins{&amount}); err != nil {
		return errors.Wrap(err, "release funds")
	}
	return nil
}

// releaseAll empties the transaction escrow into the given wallet and
// returns the released funds.
func (l *ledger) releaseAll(db weave.KVStore, transactionID []byte, to weave.Address) (coin.Coins, error) {
	funds, err := l.balance(db, transactionID)
	if err != nil {
		return nil, err
	}
	if len(funds) == 0 {
		return nil, errors.Wrap(ErrInsufficientEscrow, "nothing to release")
	}
	if err := cash.MoveCoins(db, l.cashctrl, escrowAccount(transactionID), to, funds); err != nil {
		return nil, errors.Wrap(err, "release funds")
	}
	return funds, nil
}

// split divides the remaining escrow balance between both parties. Every
// coin is halved, an odd remainder goes to the first wallet.
func (l *ledger) split(db weave.KVStore, transactionID []byte, first, second weave.Address) error {
	funds, err := l.balance(db, transactionID)
	if err != nil {
		return err
	}
	if len(funds) == 0 {
		return errors.Wrap(ErrInsufficientEscrow, "nothing to release")
	}
	for _, c := range funds {
		half, rest, err := c.Divide(2)
		if err != nil {
			return errors.Wrap(err, "divide funds")
		}
		firstShare, err := half.Add(rest)
		if err != nil {
			return errors.Wrap(err, "combine remainder")
		}
		if firstShare.IsPositive() {
			if err := l.release(db, transactionID, first, firstShare); err != nil {
				return err
			}
		}
		if half.IsPositive() {
			if err := l.release(db, transactionID, second, half); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *ledger) balance(db weave.KVStore, transactionID []byte) (coin.Coins, error) {
	funds, err := l.cashctrl.Balance(db, escrowAccount(transactionID))
	if err != nil && !errors.ErrNotFound.Is(err) {
		return nil, errors.Wrap(err, "escrow balance")
	}
	return funds, nil
}

// hasFunds returns no error if the given wallet holds at least the given
// amount.
func (l *ledger) hasFunds(db weave.KVStore, wallet weave.Address, amount coin.Coin) error {
	funds, err := l.cashctrl.Balance(db, wallet)
	if err != nil {
		return errors.Wrap(err, "wallet balance")
	}
	for _, c := range funds {
		if c.Ticker != amount.Ticker {
			continue
		}
		if c.Compare(amount) >= 0 {
			return nil
		}
	}
	return errors.Wrap(ErrInsufficientEscrow, "not enough funds in escrow")
}
