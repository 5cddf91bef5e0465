package market

import (
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/migration"
)

func init() {
	migration.MustRegister(1, &CreateListingMsg{}, migration.NoModification)
	migration.MustRegister(1, &PurchaseMsg{}, migration.NoModification)
	migration.MustRegister(1, &ReclaimMsg{}, migration.NoModification)
	migration.MustRegister(1, &PayArbitrationFeeMsg{}, migration.NoModification)
	migration.MustRegister(1, &PayAppealFeeMsg{}, migration.NoModification)
	migration.MustRegister(1, &DeliverRulingMsg{}, migration.NoModification)
	migration.MustRegister(1, &ExecuteRulingMsg{}, migration.NoModification)
	migration.MustRegister(1, &WithdrawMsg{}, migration.NoModification)
	migration.MustRegister(1, &RevealItemMsg{}, migration.NoModification)
	migration.MustRegister(1, &UpdateConfigurationMsg{}, migration.NoModification)
}

const (
	// maxItemDigestSize bounds the commitment blob. A content hash fits
	// with a wide margin.
	maxItemDigestSize = 128
	// maxMetaEvidenceSize bounds the evidence blob attached at purchase.
	maxMetaEvidenceSize = 1024
)

var _ weave.Msg = (*CreateListingMsg)(nil)

func (CreateListingMsg) Path() string {
	return "market/create_listing"
}

func (m *CreateListingMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	errs = errors.AppendField(errs, "Seller", m.Seller.Validate())
	switch n := len(m.ItemDigest); {
	case n == 0:
		errs = errors.AppendField(errs, "ItemDigest", errors.ErrEmpty)
	case n > maxItemDigestSize:
		errs = errors.AppendField(errs, "ItemDigest", errors.Wrapf(errors.ErrInput, "length above %d", maxItemDigestSize))
	}
	if m.Price == nil {
		errs = errors.AppendField(errs, "Price", errors.ErrEmpty)
	} else if err := m.Price.Validate(); err != nil {
		errs = errors.AppendField(errs, "Price", err)
	} else if !m.Price.IsPositive() {
		errs = errors.AppendField(errs, "Price", errors.Wrap(errors.ErrAmount, "must be greater than zero"))
	}
	return errs
}

var _ weave.Msg = (*PurchaseMsg)(nil)

func (PurchaseMsg) Path() string {
	return "market/purchase"
}

func (m *PurchaseMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	errs = errors.AppendField(errs, "TransactionID", validateTransactionID(m.TransactionID))
	if m.Payment == nil {
		errs = errors.AppendField(errs, "Payment", errors.ErrEmpty)
	} else if err := m.Payment.Validate(); err != nil {
		errs = errors.AppendField(errs, "Payment", err)
	} else if !m.Payment.IsPositive() {
		errs = errors.AppendField(errs, "Payment", errors.Wrap(errors.ErrAmount, "must be greater than zero"))
	}
	if len(m.MetaEvidence) > maxMetaEvidenceSize {
		errs = errors.AppendField(errs, "MetaEvidence", errors.Wrapf(errors.ErrInput, "length above %d", maxMetaEvidenceSize))
	}
	return errs
}

var _ weave.Msg = (*ReclaimMsg)(nil)

func (ReclaimMsg) Path() string {
	return "market/reclaim"
}

func (m *ReclaimMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	errs = errors.AppendField(errs, "TransactionID", validateTransactionID(m.TransactionID))
	errs = errors.AppendField(errs, "FeeDeposit", validateFeeDeposit(m.FeeDeposit))
	return errs
}

var _ weave.Msg = (*PayArbitrationFeeMsg)(nil)

func (PayArbitrationFeeMsg) Path() string {
	return "market/pay_arbitration_fee"
}

func (m *PayArbitrationFeeMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	errs = errors.AppendField(errs, "TransactionID", validateTransactionID(m.TransactionID))
	errs = errors.AppendField(errs, "FeeDeposit", validateFeeDeposit(m.FeeDeposit))
	return errs
}

var _ weave.Msg = (*PayAppealFeeMsg)(nil)

func (PayAppealFeeMsg) Path() string {
	return "market/pay_appeal_fee"
}

func (m *PayAppealFeeMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	errs = errors.AppendField(errs, "TransactionID", validateTransactionID(m.TransactionID))
	errs = errors.AppendField(errs, "FeeDeposit", validateFeeDeposit(m.FeeDeposit))
	return errs
}

var _ weave.Msg = (*DeliverRulingMsg)(nil)

func (DeliverRulingMsg) Path() string {
	return "market/deliver_ruling"
}

func (m *DeliverRulingMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	if m.DisputeID < 0 {
		errs = errors.AppendField(errs, "DisputeID", errors.Wrap(errors.ErrInput, "must not be negative"))
	}
	// The upper bound of the ruling value depends on the configured number
	// of choices and is checked by the handler.
	return errs
}

var _ weave.Msg = (*ExecuteRulingMsg)(nil)

func (ExecuteRulingMsg) Path() string {
	return "market/execute_ruling"
}

func (m *ExecuteRulingMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	errs = errors.AppendField(errs, "TransactionID", validateTransactionID(m.TransactionID))
	return errs
}

var _ weave.Msg = (*WithdrawMsg)(nil)

func (WithdrawMsg) Path() string {
	return "market/withdraw"
}

func (m *WithdrawMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	errs = errors.AppendField(errs, "TransactionID", validateTransactionID(m.TransactionID))
	return errs
}

var _ weave.Msg = (*RevealItemMsg)(nil)

func (RevealItemMsg) Path() string {
	return "market/reveal_item"
}

func (m *RevealItemMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	errs = errors.AppendField(errs, "TransactionID", validateTransactionID(m.TransactionID))
	return errs
}

var _ weave.Msg = (*UpdateConfigurationMsg)(nil)

func (UpdateConfigurationMsg) Path() string {
	return "market/update_configuration"
}

func (m *UpdateConfigurationMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	if m.Patch == nil {
		errs = errors.AppendField(errs, "Patch", errors.ErrEmpty)
	}
	return errs
}

func validateTransactionID(id []byte) error {
	if len(id) != 8 {
		return errors.Wrap(errors.ErrInput, "transaction ID must be 8 bytes")
	}
	return nil
}

func validateFeeDeposit(c *coin.Coin) error {
	if c == nil {
		return errors.ErrEmpty
	}
	if err := c.Validate(); err != nil {
		return err
	}
	if !c.IsPositive() {
		return errors.Wrap(errors.ErrAmount, "must be greater than zero")
	}
	return nil
}
