package market

import (
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/coin"
)

// Arbitrator is the capability through which disputes are resolved. The
// module never inspects the arbitrator's decision logic. It forwards the
// quoted fee to the configured arbitrator address before invoking
// CreateDispute or Appeal, and accepts rulings only through messages signed
// by that address.
//
// Costs are quoted at call time and may differ between rounds.
type Arbitrator interface {
	// Cost returns the fee required to create a dispute.
	Cost(db weave.ReadOnlyKVStore) (coin.Coin, error)

	// CreateDispute registers a new dispute with the given number of
	// ruling choices and returns its ID. ExtraData is an opaque reference
	// for the arbitrator, here the disputed transaction ID.
	CreateDispute(db weave.KVStore, choices uint32, extraData []byte) (int64, error)

	// AppealCost returns the fee required to appeal the current ruling of
	// the given dispute.
	AppealCost(db weave.ReadOnlyKVStore, disputeID int64) (coin.Coin, error)

	// AppealPeriod returns the window during which the current ruling of
	// the given dispute can be appealed.
	AppealPeriod(db weave.ReadOnlyKVStore, disputeID int64) (start, end weave.UnixTime, err error)

	// Appeal restarts the arbitration of the given dispute. The previous
	// ruling is void once this call returns.
	Appeal(db weave.KVStore, disputeID int64, extraData []byte) error
}
