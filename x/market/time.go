package market

import (
	"github.com/iov-one/weave"
)

// isExpired returns true if the given time is not after the block time
// declared in the context. Expiration is inclusive, so a deadline equal to
// the current block time counts as elapsed.
//
// This function panics if the block time is not present in the context. A
// store without a block time is a broken setup that must not process any
// message.
func isExpired(ctx weave.Context, t weave.UnixTime) bool {
	blockNow, err := weave.BlockTime(ctx)
	if err != nil {
		panic("block time is not present")
	}
	return t <= weave.AsUnixTime(blockNow)
}
