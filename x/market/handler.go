package market

import (
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/gconf"
	"github.com/iov-one/weave/migration"
	"github.com/iov-one/weave/orm"
	"github.com/iov-one/weave/x"
	"github.com/iov-one/weave/x/cash"
	"github.com/tendermint/tendermint/libs/common"
)

const (
	tagAction        = "action"
	tagTransactionID = "transaction-id"
	tagState         = "transaction-state"
	tagArbitration   = "arbitration-state"
	tagDisputeID     = "dispute-id"
	tagAwaiting      = "awaiting"
	tagRuling        = "ruling"
)

func RegisterQuery(qr weave.QueryRouter) {
	NewTransactionBucket().Register("transactions", qr)
	NewArbitrationBucket().Register("arbitrations", qr)
}

func RegisterRoutes(r weave.Registry, auth x.Authenticator, cashctrl cash.Controller, arbitrator Arbitrator) {
	r = migration.SchemaMigratingRegistry("market", r)

	transactions := NewTransactionBucket()
	arbitrations := NewArbitrationBucket()
	ledger := newLedger(cashctrl)
	coord := newCoordinator(arbitrations, arbitrator, ledger)

	r.Handle(&CreateListingMsg{}, &createListingHandler{
		auth:         auth,
		transactions: transactions,
	})
	r.Handle(&PurchaseMsg{}, &purchaseHandler{
		auth:         auth,
		transactions: transactions,
		ledger:       ledger,
	})
	r.Handle(&ReclaimMsg{}, &reclaimHandler{
		auth:         auth,
		transactions: transactions,
		coord:        coord,
	})
	r.Handle(&PayArbitrationFeeMsg{}, &payArbitrationFeeHandler{
		auth:         auth,
		transactions: transactions,
		arbitrations: arbitrations,
		coord:        coord,
	})
	r.Handle(&PayAppealFeeMsg{}, &payAppealFeeHandler{
		auth:         auth,
		transactions: transactions,
		arbitrations: arbitrations,
		coord:        coord,
	})
	r.Handle(&DeliverRulingMsg{}, &deliverRulingHandler{
		auth:  auth,
		coord: coord,
	})
	r.Handle(&ExecuteRulingMsg{}, &executeRulingHandler{
		auth:         auth,
		transactions: transactions,
		arbitrations: arbitrations,
		coord:        coord,
		ledger:       ledger,
	})
	r.Handle(&WithdrawMsg{}, &withdrawHandler{
		auth:         auth,
		transactions: transactions,
		ledger:       ledger,
	})
	r.Handle(&RevealItemMsg{}, &revealItemHandler{
		auth:         auth,
		transactions: transactions,
	})
	r.Handle(&UpdateConfigurationMsg{},
		gconf.NewUpdateConfigurationHandler("market", &Configuration{}, auth, migration.CurrentAdmin))
}

// ------------------- create listing -------------------

type createListingHandler struct {
	auth         x.Authenticator
	transactions orm.ModelBucket
}

func (h *createListingHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	if _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: 0}, nil
}

func (h *createListingHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	listing := Transaction{
		Metadata:   &weave.Metadata{Schema: 1},
		Seller:     msg.Seller,
		ItemDigest: msg.ItemDigest,
		Price:      msg.Price,
		State:      TransactionListed,
	}
	key, err := h.transactions.Put(db, nil, &listing)
	if err != nil {
		return nil, errors.Wrap(err, "store transaction")
	}
	return &weave.DeliverResult{
		Data: key,
		Tags: []common.KVPair{
			{Key: []byte(tagAction), Value: []byte("create_listing")},
			{Key: []byte(tagTransactionID), Value: key},
			{Key: []byte(tagState), Value: []byte(TransactionListed.String())},
		},
	}, nil
}

func (h *createListingHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*CreateListingMsg, error) {
	var msg CreateListingMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	if !h.auth.HasAddress(ctx, msg.Seller) {
		return nil, errors.Wrap(errors.ErrUnauthorized, "seller signature missing")
	}
	return &msg, nil
}

// ------------------- purchase -------------------

type purchaseHandler struct {
	auth         x.Authenticator
	transactions orm.ModelBucket
	ledger       *ledger
}

func (h *purchaseHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	if _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: 0}, nil
}

func (h *purchaseHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, listing, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	buyer := x.AnySigner(ctx, h.auth).Address()
	if err := h.ledger.deposit(db, msg.TransactionID, buyer, *listing.Price); err != nil {
		return nil, err
	}
	now, err := weave.BlockTime(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "block time")
	}
	listing.Buyer = buyer
	listing.State = TransactionFunded
	listing.FundedAt = weave.AsUnixTime(now)
	listing.MetaEvidence = msg.MetaEvidence
	if _, err := h.transactions.Put(db, msg.TransactionID, listing); err != nil {
		return nil, errors.Wrap(err, "store transaction")
	}
	return &weave.DeliverResult{
		Data: msg.TransactionID,
		Tags: []common.KVPair{
			{Key: []byte(tagAction), Value: []byte("purchase")},
			{Key: []byte(tagTransactionID), Value: msg.TransactionID},
			{Key: []byte(tagState), Value: []byte(TransactionFunded.String())},
		},
	}, nil
}

func (h *purchaseHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*PurchaseMsg, *Transaction, error) {
	var msg PurchaseMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, nil, errors.Wrap(err, "load msg")
	}
	if x.AnySigner(ctx, h.auth) == nil {
		return nil, nil, errors.Wrap(errors.ErrUnauthorized, "buyer signature missing")
	}
	var listing Transaction
	if err := h.transactions.One(db, msg.TransactionID, &listing); err != nil {
		return nil, nil, errors.Wrap(err, "transaction lookup")
	}
	if listing.State != TransactionListed {
		return nil, nil, errors.Wrap(errors.ErrState, "already sold")
	}
	if msg.Payment == nil || !msg.Payment.Equals(*listing.Price) {
		return nil, nil, errors.Wrapf(ErrWrongAmount, "price is %s", listing.Price)
	}
	return &msg, &listing, nil
}

// ------------------- reclaim -------------------

type reclaimHandler struct {
	auth         x.Authenticator
	transactions orm.ModelBucket
	coord        *coordinator
}

func (h *reclaimHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	if _, _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: 0}, nil
}

func (h *reclaimHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, listing, conf, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	arb, err := h.coord.begin(ctx, db, conf, listing, msg.TransactionID, msg.FeeDeposit)
	if err != nil {
		return nil, err
	}
	listing.State = TransactionDisputed
	if _, err := h.transactions.Put(db, msg.TransactionID, listing); err != nil {
		return nil, errors.Wrap(err, "store transaction")
	}
	return &weave.DeliverResult{
		Data: msg.TransactionID,
		Tags: []common.KVPair{
			{Key: []byte(tagAction), Value: []byte("reclaim")},
			{Key: []byte(tagTransactionID), Value: msg.TransactionID},
			{Key: []byte(tagState), Value: []byte(TransactionDisputed.String())},
			{Key: []byte(tagArbitration), Value: []byte(arb.State.String())},
			{Key: []byte(tagAwaiting), Value: []byte("seller")},
		},
	}, nil
}

func (h *reclaimHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*ReclaimMsg, *Transaction, Configuration, error) {
	var conf Configuration
	var msg ReclaimMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, nil, conf, errors.Wrap(err, "load msg")
	}
	var listing Transaction
	if err := h.transactions.One(db, msg.TransactionID, &listing); err != nil {
		return nil, nil, conf, errors.Wrap(err, "transaction lookup")
	}
	switch listing.State {
	case TransactionFunded:
		// The only state a reclaim is allowed in.
	case TransactionDisputed:
		return nil, nil, conf, errors.Wrap(ErrAlreadyDisputed, "reclaim was already raised")
	case TransactionResolved:
		return nil, nil, conf, errors.Wrap(ErrAlreadyResolved, "transaction is settled")
	default:
		return nil, nil, conf, errors.Wrap(errors.ErrState, "transaction is not funded")
	}
	if !h.auth.HasAddress(ctx, listing.Buyer) {
		return nil, nil, conf, errors.Wrap(errors.ErrUnauthorized, "only the buyer can reclaim")
	}
	conf, err := loadConf(db)
	if err != nil {
		return nil, nil, conf, err
	}
	if isExpired(ctx, listing.FundedAt.Add(conf.ReclaimWindow.Duration())) {
		return nil, nil, conf, errors.Wrap(ErrWindowClosed, "reclaim window is over")
	}
	return &msg, &listing, conf, nil
}

// ------------------- pay arbitration fee -------------------

type payArbitrationFeeHandler struct {
	auth         x.Authenticator
	transactions orm.ModelBucket
	arbitrations orm.ModelBucket
	coord        *coordinator
}

func (h *payArbitrationFeeHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	if _, _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: 0}, nil
}

func (h *payArbitrationFeeHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, listing, arb, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	conf, err := loadConf(db)
	if err != nil {
		return nil, err
	}
	if err := h.coord.sellerFee(ctx, db, conf, listing, arb, msg.FeeDeposit); err != nil {
		return nil, err
	}
	return &weave.DeliverResult{
		Data: msg.TransactionID,
		Tags: []common.KVPair{
			{Key: []byte(tagAction), Value: []byte("pay_arbitration_fee")},
			{Key: []byte(tagTransactionID), Value: msg.TransactionID},
			{Key: []byte(tagArbitration), Value: []byte(arb.State.String())},
			{Key: []byte(tagDisputeID), Value: disputeKey(arb.DisputeID)},
		},
	}, nil
}

func (h *payArbitrationFeeHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*PayArbitrationFeeMsg, *Transaction, *Arbitration, error) {
	var msg PayArbitrationFeeMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, nil, nil, errors.Wrap(err, "load msg")
	}
	var listing Transaction
	if err := h.transactions.One(db, msg.TransactionID, &listing); err != nil {
		return nil, nil, nil, errors.Wrap(err, "transaction lookup")
	}
	switch listing.State {
	case TransactionDisputed:
	case TransactionResolved:
		return nil, nil, nil, errors.Wrap(ErrAlreadyResolved, "transaction is settled")
	default:
		return nil, nil, nil, errors.Wrap(errors.ErrState, "no dispute raised")
	}
	if !h.auth.HasAddress(ctx, listing.Seller) {
		return nil, nil, nil, errors.Wrap(errors.ErrUnauthorized, "only the seller responds to a reclaim")
	}
	var arb Arbitration
	if err := h.arbitrations.One(db, msg.TransactionID, &arb); err != nil {
		return nil, nil, nil, errors.Wrap(err, "arbitration lookup")
	}
	return &msg, &listing, &arb, nil
}

// ------------------- pay appeal fee -------------------

type payAppealFeeHandler struct {
	auth         x.Authenticator
	transactions orm.ModelBucket
	arbitrations orm.ModelBucket
	coord        *coordinator
}

func (h *payAppealFeeHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	if _, _, _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: 0}, nil
}

func (h *payAppealFeeHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, listing, arb, payer, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	conf, err := loadConf(db)
	if err != nil {
		return nil, err
	}
	if err := h.coord.appealFee(ctx, db, conf, listing, arb, payer, msg.FeeDeposit); err != nil {
		return nil, err
	}
	tags := []common.KVPair{
		{Key: []byte(tagAction), Value: []byte("pay_appeal_fee")},
		{Key: []byte(tagTransactionID), Value: msg.TransactionID},
		{Key: []byte(tagArbitration), Value: []byte(arb.State.String())},
		{Key: []byte(tagDisputeID), Value: disputeKey(arb.DisputeID)},
	}
	switch arb.State {
	case ArbitrationWaitingSellerFee:
		tags = append(tags, common.KVPair{Key: []byte(tagAwaiting), Value: []byte("seller")})
	case ArbitrationWaitingBuyerFee:
		tags = append(tags, common.KVPair{Key: []byte(tagAwaiting), Value: []byte("buyer")})
	}
	return &weave.DeliverResult{Data: msg.TransactionID, Tags: tags}, nil
}

func (h *payAppealFeeHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*PayAppealFeeMsg, *Transaction, *Arbitration, weave.Address, error) {
	var msg PayAppealFeeMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, nil, nil, nil, errors.Wrap(err, "load msg")
	}
	var listing Transaction
	if err := h.transactions.One(db, msg.TransactionID, &listing); err != nil {
		return nil, nil, nil, nil, errors.Wrap(err, "transaction lookup")
	}
	switch listing.State {
	case TransactionDisputed:
	case TransactionResolved:
		return nil, nil, nil, nil, errors.Wrap(ErrAlreadyResolved, "transaction is settled")
	default:
		return nil, nil, nil, nil, errors.Wrap(errors.ErrState, "no dispute raised")
	}
	var payer weave.Address
	switch {
	case h.auth.HasAddress(ctx, listing.Buyer):
		payer = listing.Buyer
	case h.auth.HasAddress(ctx, listing.Seller):
		payer = listing.Seller
	default:
		return nil, nil, nil, nil, errors.Wrap(errors.ErrUnauthorized, "neither buyer nor seller signature")
	}
	var arb Arbitration
	if err := h.arbitrations.One(db, msg.TransactionID, &arb); err != nil {
		return nil, nil, nil, nil, errors.Wrap(err, "arbitration lookup")
	}
	return &msg, &listing, &arb, payer, nil
}

// ------------------- deliver ruling -------------------

type deliverRulingHandler struct {
	auth  x.Authenticator
	coord *coordinator
}

func (h *deliverRulingHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	if _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: 0}, nil
}

func (h *deliverRulingHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, conf, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	arb, err := h.coord.deliverRuling(db, conf, msg.DisputeID, msg.Ruling)
	if err != nil {
		return nil, err
	}
	tags := []common.KVPair{
		{Key: []byte(tagAction), Value: []byte("deliver_ruling")},
		{Key: []byte(tagTransactionID), Value: arb.TransactionID},
		{Key: []byte(tagDisputeID), Value: disputeKey(msg.DisputeID)},
		{Key: []byte(tagRuling), Value: []byte(arb.Ruling.String())},
	}
	switch arb.Ruling {
	case RulingBuyerWins:
		tags = append(tags, common.KVPair{Key: []byte(tagAwaiting), Value: []byte("seller")})
	case RulingSellerWins:
		tags = append(tags, common.KVPair{Key: []byte(tagAwaiting), Value: []byte("buyer")})
	}
	return &weave.DeliverResult{Data: arb.TransactionID, Tags: tags}, nil
}

func (h *deliverRulingHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*DeliverRulingMsg, Configuration, error) {
	var conf Configuration
	var msg DeliverRulingMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, conf, errors.Wrap(err, "load msg")
	}
	conf, err := loadConf(db)
	if err != nil {
		return nil, conf, err
	}
	if !h.auth.HasAddress(ctx, conf.Arbitrator) {
		return nil, conf, errors.Wrap(errors.ErrUnauthorized, "arbitrator signature missing")
	}
	return &msg, conf, nil
}

// ------------------- execute ruling -------------------

type executeRulingHandler struct {
	auth         x.Authenticator
	transactions orm.ModelBucket
	arbitrations orm.ModelBucket
	coord        *coordinator
	ledger       *ledger
}

func (h *executeRulingHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	if _, _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: 0}, nil
}

func (h *executeRulingHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, listing, arb, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	final, err := h.coord.outcome(ctx, arb)
	if err != nil {
		return nil, err
	}
	switch final {
	case RulingBuyerWins:
		if _, err := h.ledger.releaseAll(db, msg.TransactionID, listing.Buyer); err != nil {
			return nil, err
		}
	case RulingSellerWins:
		if _, err := h.ledger.releaseAll(db, msg.TransactionID, listing.Seller); err != nil {
			return nil, err
		}
	case RulingRefused:
		// The arbitrator refused to rule, both sides split the pot. An
		// odd remainder goes to the buyer who funded the escrow.
		if err := h.ledger.split(db, msg.TransactionID, listing.Buyer, listing.Seller); err != nil {
			return nil, err
		}
	default:
		return nil, errors.Wrapf(errors.ErrState, "cannot execute ruling %d", final)
	}
	arb.State = ArbitrationRulingExecuted
	arb.Ruling = final
	arb.FeeDepositDeadline = 0
	if _, err := h.arbitrations.Put(db, msg.TransactionID, arb); err != nil {
		return nil, errors.Wrap(err, "store arbitration")
	}
	listing.State = TransactionResolved
	if _, err := h.transactions.Put(db, msg.TransactionID, listing); err != nil {
		return nil, errors.Wrap(err, "store transaction")
	}
	return &weave.DeliverResult{
		Data: msg.TransactionID,
		Tags: []common.KVPair{
			{Key: []byte(tagAction), Value: []byte("execute_ruling")},
			{Key: []byte(tagTransactionID), Value: msg.TransactionID},
			{Key: []byte(tagState), Value: []byte(TransactionResolved.String())},
			{Key: []byte(tagRuling), Value: []byte(final.String())},
		},
	}, nil
}

func (h *executeRulingHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*ExecuteRulingMsg, *Transaction, *Arbitration, error) {
	var msg ExecuteRulingMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, nil, nil, errors.Wrap(err, "load msg")
	}
	var listing Transaction
	if err := h.transactions.One(db, msg.TransactionID, &listing); err != nil {
		return nil, nil, nil, errors.Wrap(err, "transaction lookup")
	}
	switch listing.State {
	case TransactionDisputed:
	case TransactionResolved:
		return nil, nil, nil, errors.Wrap(ErrAlreadyResolved, "transaction is settled")
	default:
		return nil, nil, nil, errors.Wrap(errors.ErrState, "no dispute raised")
	}
	var arb Arbitration
	if err := h.arbitrations.One(db, msg.TransactionID, &arb); err != nil {
		return nil, nil, nil, errors.Wrap(err, "arbitration lookup")
	}
	// Anyone can execute a final ruling, there is no signature check.
	return &msg, &listing, &arb, nil
}

// ------------------- withdraw -------------------

type withdrawHandler struct {
	auth         x.Authenticator
	transactions orm.ModelBucket
	ledger       *ledger
}

func (h *withdrawHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	if _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: 0}, nil
}

func (h *withdrawHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, listing, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	if _, err := h.ledger.releaseAll(db, msg.TransactionID, listing.Seller); err != nil {
		return nil, err
	}
	listing.State = TransactionResolved
	if _, err := h.transactions.Put(db, msg.TransactionID, listing); err != nil {
		return nil, errors.Wrap(err, "store transaction")
	}
	return &weave.DeliverResult{
		Data: msg.TransactionID,
		Tags: []common.KVPair{
			{Key: []byte(tagAction), Value: []byte("withdraw")},
			{Key: []byte(tagTransactionID), Value: msg.TransactionID},
			{Key: []byte(tagState), Value: []byte(TransactionResolved.String())},
		},
	}, nil
}

func (h *withdrawHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*WithdrawMsg, *Transaction, error) {
	var msg WithdrawMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, nil, errors.Wrap(err, "load msg")
	}
	var listing Transaction
	if err := h.transactions.One(db, msg.TransactionID, &listing); err != nil {
		return nil, nil, errors.Wrap(err, "transaction lookup")
	}
	switch listing.State {
	case TransactionFunded:
	case TransactionDisputed:
		return nil, nil, errors.Wrap(ErrAlreadyDisputed, "a reclaim was raised")
	case TransactionResolved:
		return nil, nil, errors.Wrap(ErrAlreadyResolved, "transaction is settled")
	default:
		return nil, nil, errors.Wrap(errors.ErrState, "transaction is not funded")
	}
	if !h.auth.HasAddress(ctx, listing.Seller) {
		return nil, nil, errors.Wrap(errors.ErrUnauthorized, "only the seller can withdraw")
	}
	conf, err := loadConf(db)
	if err != nil {
		return nil, nil, err
	}
	if !isExpired(ctx, listing.FundedAt.Add(conf.ReclaimWindow.Duration())) {
		return nil, nil, errors.Wrap(ErrWindowOpen, "the buyer can still reclaim")
	}
	return &msg, &listing, nil
}

// ------------------- reveal item -------------------

type revealItemHandler struct {
	auth         x.Authenticator
	transactions orm.ModelBucket
}

func (h *revealItemHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	if _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: 0}, nil
}

func (h *revealItemHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	listing, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	return &weave.DeliverResult{Data: listing.ItemDigest}, nil
}

func (h *revealItemHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*Transaction, error) {
	var msg RevealItemMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	var listing Transaction
	if err := h.transactions.One(db, msg.TransactionID, &listing); err != nil {
		return nil, errors.Wrap(err, "transaction lookup")
	}
	if listing.State == TransactionListed {
		return nil, errors.Wrap(errors.ErrState, "not purchased yet")
	}
	if !h.auth.HasAddress(ctx, listing.Buyer) {
		return nil, errors.Wrap(errors.ErrUnauthorized, "only the buyer can read the item")
	}
	return &listing, nil
}
