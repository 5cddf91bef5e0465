package market

import (
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/orm"
)

// coordinator runs the bilateral deposit protocol. Both the initial dispute
// and every appeal round follow the same pattern: one side deposits the
// quoted fee, the other side must match it before a deadline, and a missed
// deadline forfeits the dispute to the side that paid.
//
// At most one side is ever awaited. Whose turn it is derives from the state
// tag alone, never from message arrival order.
type coordinator struct {
	arbitrations orm.ModelBucket
	arbitrator   Arbitrator
	ledger       *ledger
}

func newCoordinator(arbitrations orm.ModelBucket, arbitrator Arbitrator, ledger *ledger) *coordinator {
	return &coordinator{
		arbitrations: arbitrations,
		arbitrator:   arbitrator,
		ledger:       ledger,
	}
}

// begin opens a dispute for the given transaction. The buyer deposit is
// checked against the cost quoted right now and only that cost is taken.
// The seller is awaited next, within the configured fee deposit period.
func (c *coordinator) begin(ctx weave.Context, db weave.KVStore, conf Configuration, tx *Transaction, transactionID []byte, deposit *coin.Coin) (*Arbitration, error) {
	var existing Arbitration
	switch err := c.arbitrations.One(db, transactionID, &existing); {
	case err == nil:
		return nil, errors.Wrap(ErrAlreadyDisputed, "dispute history exists")
	case !errors.ErrNotFound.Is(err):
		return nil, errors.Wrap(err, "arbitration lookup")
	}

	cost, err := c.arbitrator.Cost(db)
	if err != nil {
		return nil, errors.Wrap(err, "arbitration cost")
	}
	if !deposit.IsGTE(cost) {
		return nil, errors.Wrapf(ErrInsufficientFee, "arbitration costs %s", cost)
	}
	if err := c.ledger.deposit(db, transactionID, tx.Buyer, cost); err != nil {
		return nil, err
	}
	now, err := weave.BlockTime(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "block time")
	}
	arb := &Arbitration{
		Metadata:           &weave.Metadata{Schema: 1},
		TransactionID:      transactionID,
		State:              ArbitrationWaitingSellerFee,
		BuyerFeePaid:       &cost,
		FeeDepositDeadline: weave.AsUnixTime(now).Add(conf.FeeDepositPeriod.Duration()),
	}
	if _, err := c.arbitrations.Put(db, transactionID, arb); err != nil {
		return nil, errors.Wrap(err, "store arbitration")
	}
	return arb, nil
}

// sellerFee processes the seller's matching deposit of the initial round.
// Once it lands the dispute is funded and created with the arbitrator.
func (c *coordinator) sellerFee(ctx weave.Context, db weave.KVStore, conf Configuration, tx *Transaction, arb *Arbitration, deposit *coin.Coin) error {
	if arb.State != ArbitrationWaitingSellerFee || arb.Ruling != RulingNone {
		return errors.Wrap(ErrNotYourTurn, "no initial seller fee awaited")
	}
	if isExpired(ctx, arb.FeeDepositDeadline) {
		return errors.Wrap(ErrDeadlineElapsed, "fee deposit period is over")
	}
	cost, err := c.arbitrator.Cost(db)
	if err != nil {
		return errors.Wrap(err, "arbitration cost")
	}
	if !deposit.IsGTE(cost) {
		return errors.Wrapf(ErrInsufficientFee, "arbitration costs %s", cost)
	}
	if err := c.ledger.deposit(db, arb.TransactionID, tx.Seller, cost); err != nil {
		return err
	}
	if arb.SellerFeePaid, err = addFee(arb.SellerFeePaid, cost); err != nil {
		return err
	}

	// Both sides deposited. Forward one arbitration cost to the
	// arbitrator, the rest of the pot stays escrowed for the winner.
	if err := c.ledger.release(db, arb.TransactionID, conf.Arbitrator, cost); err != nil {
		return err
	}
	disputeID, err := c.arbitrator.CreateDispute(db, conf.RulingChoices, arb.TransactionID)
	if err != nil {
		return errors.Wrap(err, "create dispute")
	}
	arb.DisputeID = disputeID
	arb.State = ArbitrationDisputeCreated
	arb.FeeDepositDeadline = 0
	if _, err := c.arbitrations.Put(db, arb.TransactionID, arb); err != nil {
		return errors.Wrap(err, "store arbitration")
	}
	return nil
}

// appealFee processes an appeal round deposit. The losing side of the
// current ruling must deposit first, the winning side must match within the
// same appeal window. When both matched the appeal is funded and the
// arbitration restarts.
func (c *coordinator) appealFee(ctx weave.Context, db weave.KVStore, conf Configuration, tx *Transaction, arb *Arbitration, payer weave.Address, deposit *coin.Coin) error {
	switch arb.State {
	case ArbitrationRulingExecuted:
		return errors.Wrap(ErrAlreadyResolved, "dispute already executed")

	case ArbitrationDisputeCreated, ArbitrationAppealCreated:
		switch arb.Ruling {
		case RulingNone:
			return errors.Wrap(ErrNotYetFinal, "no ruling delivered yet")
		case RulingRefused:
			return errors.Wrap(ErrNotYourTurn, "a refusal cannot be appealed")
		}
		if isExpired(ctx, arb.FeeDepositDeadline) {
			return errors.Wrap(ErrDeadlineElapsed, "appeal window is over")
		}
		loser, next := tx.Seller, ArbitrationWaitingBuyerFee
		if arb.Ruling == RulingSellerWins {
			loser, next = tx.Buyer, ArbitrationWaitingSellerFee
		}
		if !payer.Equals(loser) {
			return errors.Wrap(ErrNotYourTurn, "the losing side opens the appeal")
		}
		if err := c.collect(ctx, db, tx, arb, payer, deposit); err != nil {
			return err
		}
		// The winner must match within the remaining appeal window, the
		// deadline does not move.
		arb.State = next

	case ArbitrationWaitingSellerFee, ArbitrationWaitingBuyerFee:
		if arb.Ruling == RulingNone {
			return errors.Wrap(ErrNotYourTurn, "initial fee round, no appeal in progress")
		}
		awaited := tx.Seller
		if arb.State == ArbitrationWaitingBuyerFee {
			awaited = tx.Buyer
		}
		if !payer.Equals(awaited) {
			return errors.Wrap(ErrNotYourTurn, "waiting for the other side")
		}
		if isExpired(ctx, arb.FeeDepositDeadline) {
			return errors.Wrap(ErrDeadlineElapsed, "appeal window is over")
		}
		if err := c.collect(ctx, db, tx, arb, payer, deposit); err != nil {
			return err
		}

		// Both sides matched. Forward one appeal cost and restart the
		// arbitration, the previous ruling is void.
		cost, err := c.arbitrator.AppealCost(db, arb.DisputeID)
		if err != nil {
			return errors.Wrap(err, "appeal cost")
		}
		if err := c.ledger.release(db, arb.TransactionID, conf.Arbitrator, cost); err != nil {
			return err
		}
		if err := c.arbitrator.Appeal(db, arb.DisputeID, arb.TransactionID); err != nil {
			return errors.Wrap(err, "appeal")
		}
		arb.State = ArbitrationAppealCreated
		arb.Ruling = RulingNone
		arb.AppealRound++
		arb.FeeDepositDeadline = 0

	default:
		return errors.Wrapf(errors.ErrState, "invalid arbitration state %d", arb.State)
	}

	if _, err := c.arbitrations.Put(db, arb.TransactionID, arb); err != nil {
		return errors.Wrap(err, "store arbitration")
	}
	return nil
}

// collect debits the appeal cost quoted right now from the payer and
// credits it to the payer's cumulative fee account.
func (c *coordinator) collect(ctx weave.Context, db weave.KVStore, tx *Transaction, arb *Arbitration, payer weave.Address, deposit *coin.Coin) error {
	cost, err := c.arbitrator.AppealCost(db, arb.DisputeID)
	if err != nil {
		return errors.Wrap(err, "appeal cost")
	}
	if !deposit.IsGTE(cost) {
		return errors.Wrapf(ErrInsufficientFee, "appeal costs %s", cost)
	}
	if err := c.ledger.deposit(db, arb.TransactionID, payer, cost); err != nil {
		return err
	}
	if payer.Equals(tx.Buyer) {
		arb.BuyerFeePaid, err = addFee(arb.BuyerFeePaid, cost)
	} else {
		arb.SellerFeePaid, err = addFee(arb.SellerFeePaid, cost)
	}
	return err
}

// deliverRuling records an arbitrator decision for a live dispute. A ruling
// for the buyer or the seller opens the appeal window the arbitrator
// reports. A refusal to arbitrate is final at once, there is nothing to
// appeal.
func (c *coordinator) deliverRuling(db weave.KVStore, conf Configuration, disputeID int64, choice uint32) (*Arbitration, error) {
	if choice > conf.RulingChoices {
		return nil, errors.Wrapf(errors.ErrInput, "ruling above %d", conf.RulingChoices)
	}
	var arbs []Arbitration
	if _, err := c.arbitrations.ByIndex(db, "dispute", disputeKey(disputeID), &arbs); err != nil {
		return nil, errors.Wrap(err, "dispute lookup")
	}
	if len(arbs) == 0 {
		return nil, errors.Wrapf(ErrUnknownDispute, "dispute %d", disputeID)
	}
	arb := &arbs[0]

	switch choice {
	case 0:
		arb.Ruling = RulingRefused
		arb.FeeDepositDeadline = 0
	case 1:
		arb.Ruling = RulingBuyerWins
	case 2:
		arb.Ruling = RulingSellerWins
	default:
		return nil, errors.Wrapf(errors.ErrInput, "unsupported ruling %d", choice)
	}
	if arb.Ruling != RulingRefused {
		_, end, err := c.arbitrator.AppealPeriod(db, disputeID)
		if err != nil {
			return nil, errors.Wrap(err, "appeal period")
		}
		arb.FeeDepositDeadline = end
	}
	if _, err := c.arbitrations.Put(db, arb.TransactionID, arb); err != nil {
		return nil, errors.Wrap(err, "store arbitration")
	}
	return arb, nil
}

// outcome decides how a dispute resolves right now. A waiting state past
// its deadline resolves against the side that did not pay. A delivered
// ruling becomes final once its appeal window elapsed. ErrNotYetFinal is
// returned while any deadline still runs.
func (c *coordinator) outcome(ctx weave.Context, arb *Arbitration) (Ruling, error) {
	switch arb.State {
	case ArbitrationRulingExecuted:
		return RulingNone, errors.Wrap(ErrAlreadyResolved, "dispute already executed")
	case ArbitrationWaitingSellerFee:
		if !isExpired(ctx, arb.FeeDepositDeadline) {
			return RulingNone, errors.Wrap(ErrNotYetFinal, "the seller can still deposit")
		}
		return RulingBuyerWins, nil
	case ArbitrationWaitingBuyerFee:
		if !isExpired(ctx, arb.FeeDepositDeadline) {
			return RulingNone, errors.Wrap(ErrNotYetFinal, "the buyer can still deposit")
		}
		return RulingSellerWins, nil
	case ArbitrationDisputeCreated, ArbitrationAppealCreated:
		switch arb.Ruling {
		case RulingNone:
			return RulingNone, errors.Wrap(ErrNotYetFinal, "waiting for the arbitrator")
		case RulingRefused:
			return RulingRefused, nil
		}
		if !isExpired(ctx, arb.FeeDepositDeadline) {
			return RulingNone, errors.Wrap(ErrNotYetFinal, "appeal window still open")
		}
		return arb.Ruling, nil
	}
	return RulingNone, errors.Wrapf(errors.ErrState, "invalid arbitration state %d", arb.State)
}

func addFee(sum *coin.Coin, amount coin.Coin) (*coin.Coin, error) {
	if sum == nil {
		return &amount, nil
	}
	total, err := sum.Add(amount)
	if err != nil {
		return nil, errors.Wrap(err, "fee accounting")
	}
	return &total, nil
}
