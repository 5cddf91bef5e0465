package market

import (
	"github.com/iov-one/weave/errors"
)

// Error codes
// x/market reserves 1200 ~ 1219.

var (
	ErrWrongAmount        = errors.Register(1200, "payment does not match the price")
	ErrInsufficientFee    = errors.Register(1201, "deposit below the quoted arbitration cost")
	ErrNotYourTurn        = errors.Register(1202, "not this party's turn to deposit")
	ErrDeadlineElapsed    = errors.Register(1203, "fee deposit deadline elapsed")
	ErrWindowOpen         = errors.Register(1204, "reclaim window still open")
	ErrWindowClosed       = errors.Register(1205, "reclaim window closed")
	ErrAlreadyDisputed    = errors.Register(1206, "transaction already disputed")
	ErrAlreadyResolved    = errors.Register(1207, "transaction already resolved")
	ErrNotYetFinal        = errors.Register(1208, "ruling not yet final")
	ErrUnknownDispute     = errors.Register(1209, "unknown dispute")
	ErrInsufficientEscrow = errors.Register(1210, "insufficient escrow balance")
)
