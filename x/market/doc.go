/*

Package market implements an escrow marketplace with external arbitration.

A seller lists a digital good by committing to an item digest and a fixed
price. A buyer funds the purchase by paying exactly the price into an escrow
account derived from the transaction. From that moment a reclaim window is
ticking: the seller can withdraw the escrow once the window elapsed, while
the buyer can reclaim before that by depositing the arbitration fee and
forcing the seller to match it.

When both initial fees are deposited a dispute is created with the external
arbitrator. The arbitrator delivers a ruling which opens an appeal window.
The losing side can keep the dispute alive by depositing the appeal fee,
which the winning side must match for the appeal to be created. Any missed
deadline is a forfeit: executing the ruling resolves the dispute in favor of
the party who did pay, without any action from the other side.

All deadlines are evaluated lazily against the block time when a message
touches the record. Funds only ever move through the cash controller and the
per-transaction escrow account, so the whole flow is deterministic and
auditable.

*/
package market
