package market

import (
	"encoding/binary"

	"github.com/iov-one/weave"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/migration"
	"github.com/iov-one/weave/orm"
)

func init() {
	migration.MustRegister(1, &Transaction{}, migration.NoModification)
	migration.MustRegister(1, &Arbitration{}, migration.NoModification)
}

var _ orm.Model = (*Transaction)(nil)

func (m *Transaction) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	errs = errors.AppendField(errs, "Seller", m.Seller.Validate())
	if len(m.ItemDigest) == 0 {
		errs = errors.AppendField(errs, "ItemDigest", errors.ErrEmpty)
	}
	if m.Price == nil {
		errs = errors.AppendField(errs, "Price", errors.ErrEmpty)
	} else if err := m.Price.Validate(); err != nil {
		errs = errors.AppendField(errs, "Price", err)
	} else if !m.Price.IsPositive() {
		errs = errors.AppendField(errs, "Price", errors.Wrap(errors.ErrAmount, "must be greater than zero"))
	}
	switch m.State {
	case TransactionListed:
		if len(m.Buyer) != 0 {
			errs = errors.AppendField(errs, "Buyer", errors.Wrap(errors.ErrState, "must be empty before the purchase"))
		}
		if m.FundedAt != 0 {
			errs = errors.AppendField(errs, "FundedAt", errors.Wrap(errors.ErrState, "must be zero before the purchase"))
		}
	case TransactionFunded, TransactionDisputed, TransactionResolved:
		errs = errors.AppendField(errs, "Buyer", m.Buyer.Validate())
		errs = errors.AppendField(errs, "FundedAt", m.FundedAt.Validate())
		if m.FundedAt == 0 {
			errs = errors.AppendField(errs, "FundedAt", errors.Wrap(errors.ErrEmpty, "funded transaction requires a timestamp"))
		}
	default:
		errs = errors.AppendField(errs, "State", errors.Wrapf(errors.ErrState, "invalid state %d", m.State))
	}
	return errs
}

var _ orm.Model = (*Arbitration)(nil)

func (m *Arbitration) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	if len(m.TransactionID) == 0 {
		errs = errors.AppendField(errs, "TransactionID", errors.ErrEmpty)
	}
	switch m.State {
	case ArbitrationWaitingSellerFee, ArbitrationWaitingBuyerFee,
		ArbitrationDisputeCreated, ArbitrationAppealCreated, ArbitrationRulingExecuted:
		// Valid.
	default:
		errs = errors.AppendField(errs, "State", errors.Wrapf(errors.ErrState, "invalid state %d", m.State))
	}
	if m.BuyerFeePaid == nil {
		errs = errors.AppendField(errs, "BuyerFeePaid", errors.Wrap(errors.ErrEmpty, "dispute starts with the buyer deposit"))
	} else if err := m.BuyerFeePaid.Validate(); err != nil {
		errs = errors.AppendField(errs, "BuyerFeePaid", err)
	}
	if m.SellerFeePaid != nil {
		errs = errors.AppendField(errs, "SellerFeePaid", m.SellerFeePaid.Validate())
	}
	switch m.Ruling {
	case RulingNone, RulingRefused, RulingBuyerWins, RulingSellerWins:
		// Valid.
	default:
		errs = errors.AppendField(errs, "Ruling", errors.Wrapf(errors.ErrState, "invalid ruling %d", m.Ruling))
	}
	return errs
}

// hasDispute returns true when the arbitrator assigned a dispute to this
// record and the dispute was not executed yet.
func (m *Arbitration) hasDispute() bool {
	return m.State == ArbitrationDisputeCreated || m.State == ArbitrationAppealCreated
}

func NewTransactionBucket() orm.ModelBucket {
	b := orm.NewModelBucket("txn", &Transaction{},
		orm.WithIDSequence(transactionSeq),
		orm.WithNativeIndex("seller", transactionSeller),
		orm.WithNativeIndex("buyer", transactionBuyer),
	)
	return migration.NewModelBucket("market", b)
}

var transactionSeq = orm.NewSequence("market", "id")

func transactionSeller(o orm.Object) ([][]byte, error) {
	tx, ok := o.Value().(*Transaction)
	if !ok {
		return nil, errors.Wrap(errors.ErrType, "not a Transaction")
	}
	return [][]byte{tx.Seller}, nil
}

func transactionBuyer(o orm.Object) ([][]byte, error) {
	tx, ok := o.Value().(*Transaction)
	if !ok {
		return nil, errors.Wrap(errors.ErrType, "not a Transaction")
	}
	if len(tx.Buyer) == 0 {
		return nil, nil
	}
	return [][]byte{tx.Buyer}, nil
}

// NewArbitrationBucket returns a bucket of Arbitration records keyed by the
// disputed transaction ID. The dispute index is maintained only while a
// dispute is live at the arbitrator, so ruling delivery cannot address a
// record that was already executed or is still collecting deposits.
func NewArbitrationBucket() orm.ModelBucket {
	b := orm.NewModelBucket("arb", &Arbitration{},
		orm.WithNativeIndex("dispute", arbitrationDispute),
	)
	return migration.NewModelBucket("market", b)
}

func arbitrationDispute(o orm.Object) ([][]byte, error) {
	arb, ok := o.Value().(*Arbitration)
	if !ok {
		return nil, errors.Wrap(errors.ErrType, "not an Arbitration")
	}
	if !arb.hasDispute() {
		return nil, nil
	}
	return [][]byte{disputeKey(arb.DisputeID)}, nil
}

func disputeKey(disputeID int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(disputeID))
	return key
}

// Condition returns the per transaction escrow condition. Funds held for a
// transaction live at the address of this condition.
func Condition(transactionID []byte) weave.Condition {
	return weave.NewCondition("market", "escrow", transactionID)
}
