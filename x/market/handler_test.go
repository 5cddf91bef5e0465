package market

import (
	"context"
	"testing"
	"time"

	weave "github.com/iov-one/weave"
	"github.com/iov-one/weave/app"
	coin "github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/gconf"
	"github.com/iov-one/weave/migration"
	"github.com/iov-one/weave/store"
	"github.com/iov-one/weave/weavetest"
	"github.com/iov-one/weave/x/cash"
)

const day = 24 * time.Hour

func TestUseCases(t *testing.T) {
	type Request struct {
		Now            weave.UnixTime
		Conditions     []weave.Condition
		Tx             weave.Tx
		BlockHeight    int64
		WantCheckErr   *errors.Error
		WantDeliverErr *errors.Error
	}

	type AccountBalance struct {
		Wallet weave.Address
		Amount coin.Coin
	}

	var (
		adminCond      = weavetest.NewCondition()
		sellerCond     = weavetest.NewCondition()
		buyerCond      = weavetest.NewCondition()
		arbitratorCond = weavetest.NewCondition()
		eveCond        = weavetest.NewCondition()

		now = weave.UnixTime(1572247483)
	)

	// The dispute deadline math below follows from this setup. A listing is
	// bought one second after creation, the arbitration cost is 10 IOV and
	// an appeal costs 15 IOV. Fee deposits must land within two days, the
	// appeal window the arbitrator reports ends twenty days in.
	appealMock := &arbitratorMock{
		cost:       coin.NewCoin(10, 0, "IOV"),
		appealCost: coin.NewCoin(15, 0, "IOV"),
		appealEnd:  now.Add(20 * day),
		nextID:     44,
	}

	cases := map[string]struct {
		Requests   []Request
		Funds      []AccountBalance
		Arbitrator *arbitratorMock
		AfterTest  func(t *testing.T, db weave.KVStore)
	}{
		"only the seller can create a listing": {
			Requests: []Request{
				{
					Now:        now,
					Conditions: []weave.Condition{eveCond},
					Tx: &weavetest.Tx{
						Msg: &CreateListingMsg{
							Metadata:   &weave.Metadata{Schema: 1},
							Seller:     sellerCond.Address(),
							ItemDigest: []byte("item-hash"),
							Price:      coin.NewCoinp(100, 0, "IOV"),
						},
					},
					BlockHeight:    100,
					WantCheckErr:   errors.ErrUnauthorized,
					WantDeliverErr: errors.ErrUnauthorized,
				},
				{
					Now:        now,
					Conditions: []weave.Condition{sellerCond},
					Tx: &weavetest.Tx{
						Msg: &CreateListingMsg{
							Metadata:   &weave.Metadata{Schema: 1},
							Seller:     sellerCond.Address(),
							ItemDigest: []byte("item-hash"),
							Price:      coin.NewCoinp(100, 0, "IOV"),
						},
					},
					BlockHeight: 101,
				},
			},
			AfterTest: func(t *testing.T, db weave.KVStore) {
				var listing Transaction
				if err := NewTransactionBucket().One(db, weavetest.SequenceID(1), &listing); err != nil {
					t.Fatalf("cannot get the listing: %s", err)
				}
				if listing.State != TransactionListed {
					t.Fatalf("unexpected listing state: %s", listing.State)
				}
			},
		},
		"a purchase locks the price in escrow": {
			Funds: []AccountBalance{
				{Wallet: buyerCond.Address(), Amount: coin.NewCoin(130, 0, "IOV")},
				{Wallet: eveCond.Address(), Amount: coin.NewCoin(100, 0, "IOV")},
			},
			Requests: []Request{
				{
					Now:        now,
					Conditions: []weave.Condition{sellerCond},
					Tx: &weavetest.Tx{
						Msg: &CreateListingMsg{
							Metadata:   &weave.Metadata{Schema: 1},
							Seller:     sellerCond.Address(),
							ItemDigest: []byte("item-hash"),
							Price:      coin.NewCoinp(100, 0, "IOV"),
						},
					},
					BlockHeight: 100,
				},
				{
					Now:        now + 1,
					Conditions: []weave.Condition{buyerCond},
					Tx: &weavetest.Tx{
						Msg: &PurchaseMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(5),
							Payment:       coin.NewCoinp(100, 0, "IOV"),
						},
					},
					BlockHeight:    101,
					WantCheckErr:   errors.ErrNotFound,
					WantDeliverErr: errors.ErrNotFound,
				},
				{
					Now:        now + 1,
					Conditions: []weave.Condition{buyerCond},
					Tx: &weavetest.Tx{
						Msg: &PurchaseMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							Payment:       coin.NewCoinp(99, 0, "IOV"),
						},
					},
					BlockHeight:    101,
					WantCheckErr:   ErrWrongAmount,
					WantDeliverErr: ErrWrongAmount,
				},
				{
					Now:        now + 1,
					Conditions: []weave.Condition{buyerCond},
					Tx: &weavetest.Tx{
						Msg: &PurchaseMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							Payment:       coin.NewCoinp(100, 0, "IOV"),
							MetaEvidence:  `{"fileURI":"/ipfs/meta.json"}`,
						},
					},
					BlockHeight: 101,
				},
				{
					Now:        now + 2,
					Conditions: []weave.Condition{eveCond},
					Tx: &weavetest.Tx{
						Msg: &PurchaseMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							Payment:       coin.NewCoinp(100, 0, "IOV"),
						},
					},
					BlockHeight:    102,
					WantCheckErr:   errors.ErrState,
					WantDeliverErr: errors.ErrState,
				},
				{
					Now:        now + 2,
					Conditions: []weave.Condition{sellerCond},
					Tx: &weavetest.Tx{
						Msg: &RevealItemMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
						},
					},
					BlockHeight:    102,
					WantCheckErr:   errors.ErrUnauthorized,
					WantDeliverErr: errors.ErrUnauthorized,
				},
				{
					Now:        now + 2,
					Conditions: []weave.Condition{buyerCond},
					Tx: &weavetest.Tx{
						Msg: &RevealItemMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
						},
					},
					BlockHeight: 102,
				},
			},
			AfterTest: func(t *testing.T, db weave.KVStore) {
				assertFunds(t, db, buyerCond.Address(), coin.NewCoin(30, 0, "IOV"))
				assertFunds(t, db, eveCond.Address(), coin.NewCoin(100, 0, "IOV"))
				assertFunds(t, db, escrowAccount(weavetest.SequenceID(1)), coin.NewCoin(100, 0, "IOV"))
			},
		},
		"the reclaim window separates reclaim from withdraw": {
			Funds: []AccountBalance{
				{Wallet: buyerCond.Address(), Amount: coin.NewCoin(110, 0, "IOV")},
			},
			Requests: []Request{
				{
					Now:        now,
					Conditions: []weave.Condition{sellerCond},
					Tx: &weavetest.Tx{
						Msg: &CreateListingMsg{
							Metadata:   &weave.Metadata{Schema: 1},
							Seller:     sellerCond.Address(),
							ItemDigest: []byte("item-hash"),
							Price:      coin.NewCoinp(100, 0, "IOV"),
						},
					},
					BlockHeight: 100,
				},
				{
					Now:        now + 1,
					Conditions: []weave.Condition{buyerCond},
					Tx: &weavetest.Tx{
						Msg: &PurchaseMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							Payment:       coin.NewCoinp(100, 0, "IOV"),
						},
					},
					BlockHeight: 101,
				},
				{
					Now:        now.Add(7*day) + 1,
					Conditions: []weave.Condition{eveCond},
					Tx: &weavetest.Tx{
						Msg: &WithdrawMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
						},
					},
					BlockHeight:    102,
					WantCheckErr:   errors.ErrUnauthorized,
					WantDeliverErr: errors.ErrUnauthorized,
				},
				{
					// One second before the window closes.
					Now:        now.Add(7 * day),
					Conditions: []weave.Condition{sellerCond},
					Tx: &weavetest.Tx{
						Msg: &WithdrawMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
						},
					},
					BlockHeight:    102,
					WantCheckErr:   ErrWindowOpen,
					WantDeliverErr: ErrWindowOpen,
				},
				{
					// The window closes exactly at funding time plus the
					// reclaim window. At that moment a reclaim is too late.
					Now:        now.Add(7*day) + 1,
					Conditions: []weave.Condition{buyerCond},
					Tx: &weavetest.Tx{
						Msg: &ReclaimMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							FeeDeposit:    coin.NewCoinp(10, 0, "IOV"),
						},
					},
					BlockHeight:    103,
					WantCheckErr:   ErrWindowClosed,
					WantDeliverErr: ErrWindowClosed,
				},
				{
					Now:        now.Add(7*day) + 1,
					Conditions: []weave.Condition{sellerCond},
					Tx: &weavetest.Tx{
						Msg: &WithdrawMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
						},
					},
					BlockHeight: 103,
				},
				{
					Now:        now.Add(7*day) + 2,
					Conditions: []weave.Condition{sellerCond},
					Tx: &weavetest.Tx{
						Msg: &WithdrawMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
						},
					},
					BlockHeight:    104,
					WantCheckErr:   ErrAlreadyResolved,
					WantDeliverErr: ErrAlreadyResolved,
				},
				{
					Now:        now.Add(7*day) + 2,
					Conditions: []weave.Condition{buyerCond},
					Tx: &weavetest.Tx{
						Msg: &ReclaimMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							FeeDeposit:    coin.NewCoinp(10, 0, "IOV"),
						},
					},
					BlockHeight:    104,
					WantCheckErr:   ErrAlreadyResolved,
					WantDeliverErr: ErrAlreadyResolved,
				},
			},
			AfterTest: func(t *testing.T, db weave.KVStore) {
				assertFunds(t, db, sellerCond.Address(), coin.NewCoin(100, 0, "IOV"))
				assertFunds(t, db, buyerCond.Address(), coin.NewCoin(10, 0, "IOV"))
			},
		},
		"a reclaim takes only the quoted arbitration cost": {
			Funds: []AccountBalance{
				{Wallet: buyerCond.Address(), Amount: coin.NewCoin(160, 0, "IOV")},
			},
			Requests: []Request{
				{
					Now:        now,
					Conditions: []weave.Condition{sellerCond},
					Tx: &weavetest.Tx{
						Msg: &CreateListingMsg{
							Metadata:   &weave.Metadata{Schema: 1},
							Seller:     sellerCond.Address(),
							ItemDigest: []byte("item-hash"),
							Price:      coin.NewCoinp(100, 0, "IOV"),
						},
					},
					BlockHeight: 100,
				},
				{
					Now:        now + 1,
					Conditions: []weave.Condition{buyerCond},
					Tx: &weavetest.Tx{
						Msg: &PurchaseMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							Payment:       coin.NewCoinp(100, 0, "IOV"),
						},
					},
					BlockHeight: 101,
				},
				{
					Now:        now.Add(day),
					Conditions: []weave.Condition{eveCond},
					Tx: &weavetest.Tx{
						Msg: &ReclaimMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							FeeDeposit:    coin.NewCoinp(10, 0, "IOV"),
						},
					},
					BlockHeight:    102,
					WantCheckErr:   errors.ErrUnauthorized,
					WantDeliverErr: errors.ErrUnauthorized,
				},
				{
					Now:        now.Add(day),
					Conditions: []weave.Condition{buyerCond},
					Tx: &weavetest.Tx{
						Msg: &ReclaimMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							FeeDeposit:    coin.NewCoinp(9, 0, "IOV"),
						},
					},
					BlockHeight:    102,
					WantDeliverErr: ErrInsufficientFee,
				},
				{
					// Any deposit above the quoted cost is fine but only
					// the cost itself is taken.
					Now:        now.Add(day),
					Conditions: []weave.Condition{buyerCond},
					Tx: &weavetest.Tx{
						Msg: &ReclaimMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							FeeDeposit:    coin.NewCoinp(50, 0, "IOV"),
						},
					},
					BlockHeight: 102,
				},
				{
					Now:        now.Add(day) + 1,
					Conditions: []weave.Condition{buyerCond},
					Tx: &weavetest.Tx{
						Msg: &ReclaimMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							FeeDeposit:    coin.NewCoinp(10, 0, "IOV"),
						},
					},
					BlockHeight:    103,
					WantCheckErr:   ErrAlreadyDisputed,
					WantDeliverErr: ErrAlreadyDisputed,
				},
				{
					Now:        now.Add(8 * day),
					Conditions: []weave.Condition{sellerCond},
					Tx: &weavetest.Tx{
						Msg: &WithdrawMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
						},
					},
					BlockHeight:    104,
					WantCheckErr:   ErrAlreadyDisputed,
					WantDeliverErr: ErrAlreadyDisputed,
				},
			},
			AfterTest: func(t *testing.T, db weave.KVStore) {
				assertFunds(t, db, buyerCond.Address(), coin.NewCoin(50, 0, "IOV"))
				assertFunds(t, db, escrowAccount(weavetest.SequenceID(1)), coin.NewCoin(110, 0, "IOV"))
			},
		},
		"a seller ignoring the reclaim forfeits the dispute": {
			Funds: []AccountBalance{
				{Wallet: buyerCond.Address(), Amount: coin.NewCoin(110, 0, "IOV")},
				{Wallet: sellerCond.Address(), Amount: coin.NewCoin(10, 0, "IOV")},
			},
			Requests: []Request{
				{
					Now:        now,
					Conditions: []weave.Condition{sellerCond},
					Tx: &weavetest.Tx{
						Msg: &CreateListingMsg{
							Metadata:   &weave.Metadata{Schema: 1},
							Seller:     sellerCond.Address(),
							ItemDigest: []byte("item-hash"),
							Price:      coin.NewCoinp(100, 0, "IOV"),
						},
					},
					BlockHeight: 100,
				},
				{
					Now:        now + 1,
					Conditions: []weave.Condition{buyerCond},
					Tx: &weavetest.Tx{
						Msg: &PurchaseMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							Payment:       coin.NewCoinp(100, 0, "IOV"),
						},
					},
					BlockHeight: 101,
				},
				{
					Now:        now.Add(day),
					Conditions: []weave.Condition{buyerCond},
					Tx: &weavetest.Tx{
						Msg: &ReclaimMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							FeeDeposit:    coin.NewCoinp(10, 0, "IOV"),
						},
					},
					BlockHeight: 102,
				},
				{
					// The fee deposit period ended exactly now.
					Now:        now.Add(3 * day),
					Conditions: []weave.Condition{sellerCond},
					Tx: &weavetest.Tx{
						Msg: &PayArbitrationFeeMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							FeeDeposit:    coin.NewCoinp(10, 0, "IOV"),
						},
					},
					BlockHeight:    103,
					WantDeliverErr: ErrDeadlineElapsed,
				},
				{
					Now:        now.Add(3*day) - 1,
					Conditions: []weave.Condition{eveCond},
					Tx: &weavetest.Tx{
						Msg: &ExecuteRulingMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
						},
					},
					BlockHeight:    103,
					WantDeliverErr: ErrNotYetFinal,
				},
				{
					Now:        now.Add(3 * day),
					Conditions: []weave.Condition{eveCond},
					Tx: &weavetest.Tx{
						Msg: &ExecuteRulingMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
						},
					},
					BlockHeight: 104,
				},
				{
					Now:        now.Add(3*day) + 1,
					Conditions: []weave.Condition{eveCond},
					Tx: &weavetest.Tx{
						Msg: &ExecuteRulingMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
						},
					},
					BlockHeight:    105,
					WantCheckErr:   ErrAlreadyResolved,
					WantDeliverErr: ErrAlreadyResolved,
				},
			},
			AfterTest: func(t *testing.T, db weave.KVStore) {
				assertFunds(t, db, buyerCond.Address(), coin.NewCoin(110, 0, "IOV"))
				assertFunds(t, db, sellerCond.Address(), coin.NewCoin(10, 0, "IOV"))
				assertNoFunds(t, db, escrowAccount(weavetest.SequenceID(1)))
			},
		},
		"a funded dispute is ruled by the arbitrator": {
			Funds: []AccountBalance{
				{Wallet: buyerCond.Address(), Amount: coin.NewCoin(110, 0, "IOV")},
				{Wallet: sellerCond.Address(), Amount: coin.NewCoin(10, 0, "IOV")},
			},
			Requests: []Request{
				{
					Now:        now,
					Conditions: []weave.Condition{sellerCond},
					Tx: &weavetest.Tx{
						Msg: &CreateListingMsg{
							Metadata:   &weave.Metadata{Schema: 1},
							Seller:     sellerCond.Address(),
							ItemDigest: []byte("item-hash"),
							Price:      coin.NewCoinp(100, 0, "IOV"),
						},
					},
					BlockHeight: 100,
				},
				{
					Now:        now + 1,
					Conditions: []weave.Condition{buyerCond},
					Tx: &weavetest.Tx{
						Msg: &PurchaseMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							Payment:       coin.NewCoinp(100, 0, "IOV"),
						},
					},
					BlockHeight: 101,
				},
				{
					Now:        now.Add(day),
					Conditions: []weave.Condition{buyerCond},
					Tx: &weavetest.Tx{
						Msg: &ReclaimMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							FeeDeposit:    coin.NewCoinp(10, 0, "IOV"),
						},
					},
					BlockHeight: 102,
				},
				{
					// No dispute exists before the seller matched the fee.
					Now:        now.Add(day) + 1,
					Conditions: []weave.Condition{arbitratorCond},
					Tx: &weavetest.Tx{
						Msg: &DeliverRulingMsg{
							Metadata:  &weave.Metadata{Schema: 1},
							DisputeID: 44,
							Ruling:    1,
						},
					},
					BlockHeight:    103,
					WantDeliverErr: ErrUnknownDispute,
				},
				{
					Now:        now.Add(2 * day),
					Conditions: []weave.Condition{buyerCond},
					Tx: &weavetest.Tx{
						Msg: &PayArbitrationFeeMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							FeeDeposit:    coin.NewCoinp(10, 0, "IOV"),
						},
					},
					BlockHeight:    104,
					WantCheckErr:   errors.ErrUnauthorized,
					WantDeliverErr: errors.ErrUnauthorized,
				},
				{
					Now:        now.Add(2 * day),
					Conditions: []weave.Condition{sellerCond},
					Tx: &weavetest.Tx{
						Msg: &PayArbitrationFeeMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							FeeDeposit:    coin.NewCoinp(9, 0, "IOV"),
						},
					},
					BlockHeight:    104,
					WantDeliverErr: ErrInsufficientFee,
				},
				{
					Now:        now.Add(2 * day),
					Conditions: []weave.Condition{sellerCond},
					Tx: &weavetest.Tx{
						Msg: &PayArbitrationFeeMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							FeeDeposit:    coin.NewCoinp(10, 0, "IOV"),
						},
					},
					BlockHeight: 104,
				},
				{
					Now:        now.Add(2*day) + 1,
					Conditions: []weave.Condition{sellerCond},
					Tx: &weavetest.Tx{
						Msg: &PayArbitrationFeeMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							FeeDeposit:    coin.NewCoinp(10, 0, "IOV"),
						},
					},
					BlockHeight:    105,
					WantDeliverErr: ErrNotYourTurn,
				},
				{
					Now:        now.Add(2*day) + 1,
					Conditions: []weave.Condition{buyerCond},
					Tx: &weavetest.Tx{
						Msg: &PayAppealFeeMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							FeeDeposit:    coin.NewCoinp(15, 0, "IOV"),
						},
					},
					BlockHeight:    105,
					WantDeliverErr: ErrNotYetFinal,
				},
				{
					Now:        now.Add(3 * day),
					Conditions: []weave.Condition{eveCond},
					Tx: &weavetest.Tx{
						Msg: &ExecuteRulingMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
						},
					},
					BlockHeight:    106,
					WantDeliverErr: ErrNotYetFinal,
				},
				{
					Now:        now.Add(4 * day),
					Conditions: []weave.Condition{eveCond},
					Tx: &weavetest.Tx{
						Msg: &DeliverRulingMsg{
							Metadata:  &weave.Metadata{Schema: 1},
							DisputeID: 44,
							Ruling:    1,
						},
					},
					BlockHeight:    107,
					WantCheckErr:   errors.ErrUnauthorized,
					WantDeliverErr: errors.ErrUnauthorized,
				},
				{
					Now:        now.Add(4 * day),
					Conditions: []weave.Condition{arbitratorCond},
					Tx: &weavetest.Tx{
						Msg: &DeliverRulingMsg{
							Metadata:  &weave.Metadata{Schema: 1},
							DisputeID: 44,
							Ruling:    3,
						},
					},
					BlockHeight:    107,
					WantDeliverErr: errors.ErrInput,
				},
				{
					Now:        now.Add(4 * day),
					Conditions: []weave.Condition{arbitratorCond},
					Tx: &weavetest.Tx{
						Msg: &DeliverRulingMsg{
							Metadata:  &weave.Metadata{Schema: 1},
							DisputeID: 99,
							Ruling:    1,
						},
					},
					BlockHeight:    107,
					WantDeliverErr: ErrUnknownDispute,
				},
				{
					Now:        now.Add(4 * day),
					Conditions: []weave.Condition{arbitratorCond},
					Tx: &weavetest.Tx{
						Msg: &DeliverRulingMsg{
							Metadata:  &weave.Metadata{Schema: 1},
							DisputeID: 44,
							Ruling:    1,
						},
					},
					BlockHeight: 107,
				},
				{
					// The appeal window is still open.
					Now:        now.Add(19 * day),
					Conditions: []weave.Condition{eveCond},
					Tx: &weavetest.Tx{
						Msg: &ExecuteRulingMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
						},
					},
					BlockHeight:    108,
					WantDeliverErr: ErrNotYetFinal,
				},
				{
					Now:        now.Add(20 * day),
					Conditions: []weave.Condition{eveCond},
					Tx: &weavetest.Tx{
						Msg: &ExecuteRulingMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
						},
					},
					BlockHeight: 109,
				},
			},
			AfterTest: func(t *testing.T, db weave.KVStore) {
				assertFunds(t, db, buyerCond.Address(), coin.NewCoin(110, 0, "IOV"))
				assertFunds(t, db, arbitratorCond.Address(), coin.NewCoin(10, 0, "IOV"))
				assertNoFunds(t, db, sellerCond.Address())
				assertNoFunds(t, db, escrowAccount(weavetest.SequenceID(1)))

				var arb Arbitration
				if err := NewArbitrationBucket().One(db, weavetest.SequenceID(1), &arb); err != nil {
					t.Fatalf("cannot get the arbitration: %s", err)
				}
				if arb.State != ArbitrationRulingExecuted {
					t.Fatalf("unexpected arbitration state: %s", arb.State)
				}
				if arb.Ruling != RulingBuyerWins {
					t.Fatalf("unexpected ruling: %s", arb.Ruling)
				}
			},
		},
		"the losing side opens and funds an appeal": {
			Funds: []AccountBalance{
				{Wallet: buyerCond.Address(), Amount: coin.NewCoin(125, 0, "IOV")},
				{Wallet: sellerCond.Address(), Amount: coin.NewCoin(25, 0, "IOV")},
			},
			Arbitrator: appealMock,
			Requests: []Request{
				{
					Now:        now,
					Conditions: []weave.Condition{sellerCond},
					Tx: &weavetest.Tx{
						Msg: &CreateListingMsg{
							Metadata:   &weave.Metadata{Schema: 1},
							Seller:     sellerCond.Address(),
							ItemDigest: []byte("item-hash"),
							Price:      coin.NewCoinp(100, 0, "IOV"),
						},
					},
					BlockHeight: 100,
				},
				{
					Now:        now + 1,
					Conditions: []weave.Condition{buyerCond},
					Tx: &weavetest.Tx{
						Msg: &PurchaseMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							Payment:       coin.NewCoinp(100, 0, "IOV"),
						},
					},
					BlockHeight: 101,
				},
				{
					Now:        now.Add(day),
					Conditions: []weave.Condition{buyerCond},
					Tx: &weavetest.Tx{
						Msg: &ReclaimMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							FeeDeposit:    coin.NewCoinp(10, 0, "IOV"),
						},
					},
					BlockHeight: 102,
				},
				{
					Now:        now.Add(2 * day),
					Conditions: []weave.Condition{sellerCond},
					Tx: &weavetest.Tx{
						Msg: &PayArbitrationFeeMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							FeeDeposit:    coin.NewCoinp(10, 0, "IOV"),
						},
					},
					BlockHeight: 103,
				},
				{
					Now:        now.Add(4 * day),
					Conditions: []weave.Condition{arbitratorCond},
					Tx: &weavetest.Tx{
						Msg: &DeliverRulingMsg{
							Metadata:  &weave.Metadata{Schema: 1},
							DisputeID: 44,
							Ruling:    2,
						},
					},
					BlockHeight: 104,
				},
				{
					// The seller won the first round, it is not his turn.
					Now:        now.Add(5 * day),
					Conditions: []weave.Condition{sellerCond},
					Tx: &weavetest.Tx{
						Msg: &PayAppealFeeMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							FeeDeposit:    coin.NewCoinp(15, 0, "IOV"),
						},
					},
					BlockHeight:    105,
					WantDeliverErr: ErrNotYourTurn,
				},
				{
					Now:        now.Add(5 * day),
					Conditions: []weave.Condition{eveCond},
					Tx: &weavetest.Tx{
						Msg: &PayAppealFeeMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							FeeDeposit:    coin.NewCoinp(15, 0, "IOV"),
						},
					},
					BlockHeight:    105,
					WantCheckErr:   errors.ErrUnauthorized,
					WantDeliverErr: errors.ErrUnauthorized,
				},
				{
					Now:        now.Add(5 * day),
					Conditions: []weave.Condition{buyerCond},
					Tx: &weavetest.Tx{
						Msg: &PayAppealFeeMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							FeeDeposit:    coin.NewCoinp(14, 0, "IOV"),
						},
					},
					BlockHeight:    105,
					WantDeliverErr: ErrInsufficientFee,
				},
				{
					Now:        now.Add(5 * day),
					Conditions: []weave.Condition{buyerCond},
					Tx: &weavetest.Tx{
						Msg: &PayAppealFeeMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							FeeDeposit:    coin.NewCoinp(15, 0, "IOV"),
						},
					},
					BlockHeight: 105,
				},
				{
					Now:        now.Add(5*day) + 1,
					Conditions: []weave.Condition{eveCond},
					Tx: &weavetest.Tx{
						Msg: &ExecuteRulingMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
						},
					},
					BlockHeight:    106,
					WantDeliverErr: ErrNotYetFinal,
				},
				{
					Now:        now.Add(5*day) + 1,
					Conditions: []weave.Condition{buyerCond},
					Tx: &weavetest.Tx{
						Msg: &PayAppealFeeMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							FeeDeposit:    coin.NewCoinp(15, 0, "IOV"),
						},
					},
					BlockHeight:    106,
					WantDeliverErr: ErrNotYourTurn,
				},
				{
					Now:        now.Add(6 * day),
					Conditions: []weave.Condition{sellerCond},
					Tx: &weavetest.Tx{
						Msg: &PayAppealFeeMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							FeeDeposit:    coin.NewCoinp(15, 0, "IOV"),
						},
					},
					BlockHeight: 107,
				},
				{
					// The appeal voids the first ruling.
					Now:        now.Add(7 * day),
					Conditions: []weave.Condition{eveCond},
					Tx: &weavetest.Tx{
						Msg: &ExecuteRulingMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
						},
					},
					BlockHeight:    108,
					WantDeliverErr: ErrNotYetFinal,
				},
				{
					Now:        now.Add(7 * day),
					Conditions: []weave.Condition{arbitratorCond},
					Tx: &weavetest.Tx{
						Msg: &DeliverRulingMsg{
							Metadata:  &weave.Metadata{Schema: 1},
							DisputeID: 44,
							Ruling:    1,
						},
					},
					BlockHeight: 108,
				},
				{
					Now:        now.Add(20 * day),
					Conditions: []weave.Condition{eveCond},
					Tx: &weavetest.Tx{
						Msg: &ExecuteRulingMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
						},
					},
					BlockHeight: 109,
				},
			},
			AfterTest: func(t *testing.T, db weave.KVStore) {
				assertFunds(t, db, buyerCond.Address(), coin.NewCoin(125, 0, "IOV"))
				assertFunds(t, db, arbitratorCond.Address(), coin.NewCoin(25, 0, "IOV"))
				assertNoFunds(t, db, sellerCond.Address())

				if appealMock.created != 1 {
					t.Fatalf("want one dispute created, got %d", appealMock.created)
				}
				if appealMock.appealed != 1 {
					t.Fatalf("want one appeal, got %d", appealMock.appealed)
				}
				var arb Arbitration
				if err := NewArbitrationBucket().One(db, weavetest.SequenceID(1), &arb); err != nil {
					t.Fatalf("cannot get the arbitration: %s", err)
				}
				if arb.AppealRound != 1 {
					t.Fatalf("unexpected appeal round: %d", arb.AppealRound)
				}
				if arb.Ruling != RulingBuyerWins {
					t.Fatalf("unexpected ruling: %s", arb.Ruling)
				}
			},
		},
		"an unmatched appeal deposit forfeits the dispute": {
			Funds: []AccountBalance{
				{Wallet: buyerCond.Address(), Amount: coin.NewCoin(125, 0, "IOV")},
				{Wallet: sellerCond.Address(), Amount: coin.NewCoin(10, 0, "IOV")},
			},
			Requests: []Request{
				{
					Now:        now,
					Conditions: []weave.Condition{sellerCond},
					Tx: &weavetest.Tx{
						Msg: &CreateListingMsg{
							Metadata:   &weave.Metadata{Schema: 1},
							Seller:     sellerCond.Address(),
							ItemDigest: []byte("item-hash"),
							Price:      coin.NewCoinp(100, 0, "IOV"),
						},
					},
					BlockHeight: 100,
				},
				{
					Now:        now + 1,
					Conditions: []weave.Condition{buyerCond},
					Tx: &weavetest.Tx{
						Msg: &PurchaseMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							Payment:       coin.NewCoinp(100, 0, "IOV"),
						},
					},
					BlockHeight: 101,
				},
				{
					Now:        now.Add(day),
					Conditions: []weave.Condition{buyerCond},
					Tx: &weavetest.Tx{
						Msg: &ReclaimMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							FeeDeposit:    coin.NewCoinp(10, 0, "IOV"),
						},
					},
					BlockHeight: 102,
				},
				{
					Now:        now.Add(2 * day),
					Conditions: []weave.Condition{sellerCond},
					Tx: &weavetest.Tx{
						Msg: &PayArbitrationFeeMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							FeeDeposit:    coin.NewCoinp(10, 0, "IOV"),
						},
					},
					BlockHeight: 103,
				},
				{
					Now:        now.Add(4 * day),
					Conditions: []weave.Condition{arbitratorCond},
					Tx: &weavetest.Tx{
						Msg: &DeliverRulingMsg{
							Metadata:  &weave.Metadata{Schema: 1},
							DisputeID: 44,
							Ruling:    2,
						},
					},
					BlockHeight: 104,
				},
				{
					Now:        now.Add(5 * day),
					Conditions: []weave.Condition{buyerCond},
					Tx: &weavetest.Tx{
						Msg: &PayAppealFeeMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							FeeDeposit:    coin.NewCoinp(15, 0, "IOV"),
						},
					},
					BlockHeight: 105,
				},
				{
					// The appeal window ended, the seller never matched.
					Now:        now.Add(20 * day),
					Conditions: []weave.Condition{sellerCond},
					Tx: &weavetest.Tx{
						Msg: &PayAppealFeeMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							FeeDeposit:    coin.NewCoinp(15, 0, "IOV"),
						},
					},
					BlockHeight:    106,
					WantDeliverErr: ErrDeadlineElapsed,
				},
				{
					Now:        now.Add(20 * day),
					Conditions: []weave.Condition{eveCond},
					Tx: &weavetest.Tx{
						Msg: &ExecuteRulingMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
						},
					},
					BlockHeight: 107,
				},
			},
			AfterTest: func(t *testing.T, db weave.KVStore) {
				// The seller deposit of the first round is what paid the
				// arbitrator, everything left goes to the buyer.
				assertFunds(t, db, buyerCond.Address(), coin.NewCoin(125, 0, "IOV"))
				assertFunds(t, db, arbitratorCond.Address(), coin.NewCoin(10, 0, "IOV"))
				assertNoFunds(t, db, sellerCond.Address())
			},
		},
		"an unappealed ruling for the seller becomes final": {
			Funds: []AccountBalance{
				{Wallet: buyerCond.Address(), Amount: coin.NewCoin(110, 0, "IOV")},
				{Wallet: sellerCond.Address(), Amount: coin.NewCoin(10, 0, "IOV")},
			},
			Requests: []Request{
				{
					Now:        now,
					Conditions: []weave.Condition{sellerCond},
					Tx: &weavetest.Tx{
						Msg: &CreateListingMsg{
							Metadata:   &weave.Metadata{Schema: 1},
							Seller:     sellerCond.Address(),
							ItemDigest: []byte("item-hash"),
							Price:      coin.NewCoinp(100, 0, "IOV"),
						},
					},
					BlockHeight: 100,
				},
				{
					Now:        now + 1,
					Conditions: []weave.Condition{buyerCond},
					Tx: &weavetest.Tx{
						Msg: &PurchaseMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							Payment:       coin.NewCoinp(100, 0, "IOV"),
						},
					},
					BlockHeight: 101,
				},
				{
					Now:        now.Add(day),
					Conditions: []weave.Condition{buyerCond},
					Tx: &weavetest.Tx{
						Msg: &ReclaimMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							FeeDeposit:    coin.NewCoinp(10, 0, "IOV"),
						},
					},
					BlockHeight: 102,
				},
				{
					Now:        now.Add(2 * day),
					Conditions: []weave.Condition{sellerCond},
					Tx: &weavetest.Tx{
						Msg: &PayArbitrationFeeMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							FeeDeposit:    coin.NewCoinp(10, 0, "IOV"),
						},
					},
					BlockHeight: 103,
				},
				{
					Now:        now.Add(4 * day),
					Conditions: []weave.Condition{arbitratorCond},
					Tx: &weavetest.Tx{
						Msg: &DeliverRulingMsg{
							Metadata:  &weave.Metadata{Schema: 1},
							DisputeID: 44,
							Ruling:    2,
						},
					},
					BlockHeight: 104,
				},
				{
					// Nobody appealed, the ruling is final once the
					// window elapsed.
					Now:        now.Add(20 * day),
					Conditions: []weave.Condition{eveCond},
					Tx: &weavetest.Tx{
						Msg: &ExecuteRulingMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
						},
					},
					BlockHeight: 105,
				},
			},
			AfterTest: func(t *testing.T, db weave.KVStore) {
				assertFunds(t, db, sellerCond.Address(), coin.NewCoin(110, 0, "IOV"))
				assertFunds(t, db, arbitratorCond.Address(), coin.NewCoin(10, 0, "IOV"))
				assertNoFunds(t, db, buyerCond.Address())
				assertNoFunds(t, db, escrowAccount(weavetest.SequenceID(1)))

				var arb Arbitration
				if err := NewArbitrationBucket().One(db, weavetest.SequenceID(1), &arb); err != nil {
					t.Fatalf("cannot get the arbitration: %s", err)
				}
				if arb.Ruling != RulingSellerWins {
					t.Fatalf("unexpected ruling: %s", arb.Ruling)
				}
			},
		},
		"a refused ruling splits the pot between both sides": {
			Funds: []AccountBalance{
				{Wallet: buyerCond.Address(), Amount: coin.NewCoin(111, 0, "IOV")},
				{Wallet: sellerCond.Address(), Amount: coin.NewCoin(10, 0, "IOV")},
			},
			Requests: []Request{
				{
					Now:        now,
					Conditions: []weave.Condition{sellerCond},
					Tx: &weavetest.Tx{
						Msg: &CreateListingMsg{
							Metadata:   &weave.Metadata{Schema: 1},
							Seller:     sellerCond.Address(),
							ItemDigest: []byte("item-hash"),
							Price:      coin.NewCoinp(100, 1, "IOV"),
						},
					},
					BlockHeight: 100,
				},
				{
					Now:        now + 1,
					Conditions: []weave.Condition{buyerCond},
					Tx: &weavetest.Tx{
						Msg: &PurchaseMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							Payment:       coin.NewCoinp(100, 1, "IOV"),
						},
					},
					BlockHeight: 101,
				},
				{
					Now:        now.Add(day),
					Conditions: []weave.Condition{buyerCond},
					Tx: &weavetest.Tx{
						Msg: &ReclaimMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							FeeDeposit:    coin.NewCoinp(10, 0, "IOV"),
						},
					},
					BlockHeight: 102,
				},
				{
					Now:        now.Add(2 * day),
					Conditions: []weave.Condition{sellerCond},
					Tx: &weavetest.Tx{
						Msg: &PayArbitrationFeeMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							FeeDeposit:    coin.NewCoinp(10, 0, "IOV"),
						},
					},
					BlockHeight: 103,
				},
				{
					Now:        now.Add(4 * day),
					Conditions: []weave.Condition{arbitratorCond},
					Tx: &weavetest.Tx{
						Msg: &DeliverRulingMsg{
							Metadata:  &weave.Metadata{Schema: 1},
							DisputeID: 44,
							Ruling:    0,
						},
					},
					BlockHeight: 104,
				},
				{
					Now:        now.Add(4 * day),
					Conditions: []weave.Condition{buyerCond},
					Tx: &weavetest.Tx{
						Msg: &PayAppealFeeMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
							FeeDeposit:    coin.NewCoinp(15, 0, "IOV"),
						},
					},
					BlockHeight:    104,
					WantDeliverErr: ErrNotYourTurn,
				},
				{
					// A refusal is final at once, there is no appeal window.
					Now:        now.Add(4 * day),
					Conditions: []weave.Condition{eveCond},
					Tx: &weavetest.Tx{
						Msg: &ExecuteRulingMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							TransactionID: weavetest.SequenceID(1),
						},
					},
					BlockHeight: 105,
				},
			},
			AfterTest: func(t *testing.T, db weave.KVStore) {
				// The pot of 110.000000001 IOV is halved, the remainder
				// of a single fractional unit goes to the buyer.
				assertFunds(t, db, buyerCond.Address(), coin.NewCoin(56, 0, "IOV"))
				assertFunds(t, db, sellerCond.Address(), coin.NewCoin(55, 0, "IOV"))
				assertFunds(t, db, arbitratorCond.Address(), coin.NewCoin(10, 0, "IOV"))
				assertNoFunds(t, db, escrowAccount(weavetest.SequenceID(1)))

				var arb Arbitration
				if err := NewArbitrationBucket().One(db, weavetest.SequenceID(1), &arb); err != nil {
					t.Fatalf("cannot get the arbitration: %s", err)
				}
				if arb.Ruling != RulingRefused {
					t.Fatalf("unexpected ruling: %s", arb.Ruling)
				}
			},
		},
		"only the configuration owner can update it": {
			Requests: []Request{
				{
					Now:        now,
					Conditions: []weave.Condition{eveCond},
					Tx: &weavetest.Tx{
						Msg: &UpdateConfigurationMsg{
							Metadata: &weave.Metadata{Schema: 1},
							Patch: &Configuration{
								Metadata:         &weave.Metadata{Schema: 1},
								Owner:            adminCond.Address(),
								Arbitrator:       arbitratorCond.Address(),
								ReclaimWindow:    weave.AsUnixDuration(7 * day),
								FeeDepositPeriod: weave.AsUnixDuration(2 * day),
								RulingChoices:    3,
							},
						},
					},
					BlockHeight:    100,
					WantCheckErr:   errors.ErrUnauthorized,
					WantDeliverErr: errors.ErrUnauthorized,
				},
				{
					Now:        now,
					Conditions: []weave.Condition{adminCond},
					Tx: &weavetest.Tx{
						Msg: &UpdateConfigurationMsg{
							Metadata: &weave.Metadata{Schema: 1},
							Patch: &Configuration{
								Metadata:         &weave.Metadata{Schema: 1},
								Owner:            adminCond.Address(),
								Arbitrator:       arbitratorCond.Address(),
								ReclaimWindow:    weave.AsUnixDuration(7 * day),
								FeeDepositPeriod: weave.AsUnixDuration(2 * day),
								RulingChoices:    3,
							},
						},
					},
					BlockHeight: 101,
				},
			},
			AfterTest: func(t *testing.T, db weave.KVStore) {
				conf, err := loadConf(db)
				if err != nil {
					t.Fatalf("cannot load configuration: %s", err)
				}
				if conf.RulingChoices != 3 {
					t.Fatalf("unexpected ruling choices: %d", conf.RulingChoices)
				}
			},
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			db := store.MemStore()
			migration.MustInitPkg(db, "market", "cash")

			rt := app.NewRouter()
			auth := &weavetest.CtxAuth{Key: "auth"}
			ctrl := cash.NewController(cash.NewBucket())
			arbitrator := tc.Arbitrator
			if arbitrator == nil {
				arbitrator = &arbitratorMock{
					cost:       coin.NewCoin(10, 0, "IOV"),
					appealCost: coin.NewCoin(15, 0, "IOV"),
					appealEnd:  now.Add(20 * day),
					nextID:     44,
				}
			}
			RegisterRoutes(rt, auth, ctrl, arbitrator)

			for _, b := range tc.Funds {
				if err := ctrl.CoinMint(db, b.Wallet, b.Amount); err != nil {
					t.Fatalf("cannot mint coins for %q: %s", b.Wallet, err)
				}
			}

			config := Configuration{
				Metadata:         &weave.Metadata{Schema: 1},
				Owner:            adminCond.Address(),
				Arbitrator:       arbitratorCond.Address(),
				ReclaimWindow:    weave.AsUnixDuration(7 * day),
				FeeDepositPeriod: weave.AsUnixDuration(2 * day),
				RulingChoices:    2,
			}
			if err := gconf.Save(db, "market", &config); err != nil {
				t.Fatalf("cannot save configuration: %s", err)
			}

			for i, req := range tc.Requests {
				ctx := weave.WithHeight(context.Background(), req.BlockHeight)
				ctx = weave.WithChainID(ctx, "testchain-123")
				ctx = auth.SetConditions(ctx, req.Conditions...)
				ctx = weave.WithBlockTime(ctx, req.Now.Time())

				cache := db.CacheWrap()
				if _, err := rt.Check(ctx, cache, req.Tx); !req.WantCheckErr.Is(err) {
					t.Fatalf("unexpected %d check error: want %q, got %+v", i, req.WantCheckErr, err)
				}
				cache.Discard()

				cache = db.CacheWrap()
				_, err := rt.Deliver(ctx, cache, req.Tx)
				if !req.WantDeliverErr.Is(err) {
					t.Fatalf("unexpected %d deliver error: want %q, got %+v", i, req.WantDeliverErr, err)
				}
				if err == nil {
					if err := cache.Write(); err != nil {
						t.Fatalf("cannot write cache: %s", err)
					}
				}
			}

			if tc.AfterTest != nil {
				tc.AfterTest(t, db)
			}
		})
	}
}

// arbitratorMock quotes fixed prices and accepts every dispute.
type arbitratorMock struct {
	cost       coin.Coin
	appealCost coin.Coin
	appealEnd  weave.UnixTime
	nextID     int64
	created    int
	appealed   int
}

var _ Arbitrator = (*arbitratorMock)(nil)

func (a *arbitratorMock) Cost(weave.ReadOnlyKVStore) (coin.Coin, error) {
	return a.cost, nil
}

func (a *arbitratorMock) CreateDispute(db weave.KVStore, choices uint32, extraData []byte) (int64, error) {
	a.created++
	id := a.nextID
	a.nextID++
	return id, nil
}

func (a *arbitratorMock) AppealCost(weave.ReadOnlyKVStore, int64) (coin.Coin, error) {
	return a.appealCost, nil
}

func (a *arbitratorMock) AppealPeriod(weave.ReadOnlyKVStore, int64) (weave.UnixTime, weave.UnixTime, error) {
	return 0, a.appealEnd, nil
}

func (a *arbitratorMock) Appeal(weave.KVStore, int64, []byte) error {
	a.appealed++
	return nil
}

func assertFunds(t testing.TB, db weave.KVStore, wallet weave.Address, funds coin.Coin) {
	t.Helper()

	ctrl := cash.NewController(cash.NewBucket())
	coins, err := ctrl.Balance(db, wallet)
	if err != nil {
		t.Fatalf("balance: %s", err)
	}
	if len(coins) != 1 {
		t.Fatalf("want %q funds, found %d coins: %q", funds, len(coins), coins)
	}
	if !coins[0].Equals(funds) {
		t.Fatalf("unexpected funds found: %q", coins[0])
	}
}

func assertNoFunds(t testing.TB, db weave.KVStore, wallet weave.Address) {
	t.Helper()

	ctrl := cash.NewController(cash.NewBucket())
	coins, err := ctrl.Balance(db, wallet)
	if err != nil && !errors.ErrNotFound.Is(err) {
		t.Fatalf("balance: %s", err)
	}
	if len(coins) != 0 {
		t.Fatalf("want an empty wallet, found: %q", coins)
	}
}
