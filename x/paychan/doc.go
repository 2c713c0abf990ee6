/*
Package paychan implements two party micropayment channels.

A sender locks funds under the custodian and exchanges signed balance
updates with the recipient off the ledger. Only four operations touch the
ledger: opening a channel, closing it with the latest signed balance
split, settling a disputed close after the timeout and force-closing an
uncontested channel after the timeout.

A close submitted by the recipient distributes the funds immediately: the
recipient accepting a split that pays them has no incentive to submit a
worse state for themselves. A close submitted by anyone else only marks
the channel disputed and records the split; once the timeout height is
reached anyone can settle it.

Every state transition is gated by three rules: the balance split must
redistribute exactly the locked total, the nonce must strictly increase,
and the update must carry a valid signature by the sender's key. A closed
channel is terminal and kept forever as an audit record.
*/
package paychan
