package cash

import (
	"github.com/iov-one/canal"
	"github.com/iov-one/canal/errors"
)

// ErrInsufficientFunds is returned when the source account cannot cover a
// transfer. Cash extension takes error codes 1010-1019.
var ErrInsufficientFunds = errors.Register(1010, "insufficient funds")

// Controller is the functionality all other extensions use to move value
// between accounts. It is the fund transfer primitive of the engine: a
// failed move must abort the enclosing operation.
type Controller interface {
	// MoveCoins transfers amount from src to dst, failing with
	// ErrInsufficientFunds when src cannot cover it.
	MoveCoins(db canal.KVStore, src, dst canal.Address, amount int64) error

	// Balance returns the current balance of the account, zero for an
	// account that was never funded.
	Balance(db canal.ReadOnlyKVStore, addr canal.Address) (int64, error)
}

// BankController implements Controller on top of the wallet bucket.
type BankController struct {
	bucket Bucket
}

var _ Controller = (*BankController)(nil)

// NewController returns a controller using the given bucket for wallet
// state.
func NewController(bucket Bucket) *BankController {
	return &BankController{bucket: bucket}
}

// MoveCoins transfers the given amount from src to dst. If src doesn't
// exist, or doesn't have sufficient funds, it fails.
func (c *BankController) MoveCoins(db canal.KVStore, src, dst canal.Address, amount int64) error {
	if amount <= 0 {
		return errors.ErrAmount.Newf("non-positive transfer: %d", amount)
	}

	sender, err := c.bucket.GetWallet(db, src)
	if err != nil {
		return err
	}
	if sender == nil {
		return ErrInsufficientFunds.Newf("empty account %s", src)
	}
	if err := sender.Add(-amount); err != nil {
		return err
	}

	recipient, err := c.bucket.GetWallet(db, dst)
	if err != nil {
		return err
	}
	if recipient == nil {
		recipient = &Wallet{}
	}
	if err := recipient.Add(amount); err != nil {
		return err
	}

	if err := c.bucket.SaveWallet(db, src, sender); err != nil {
		return err
	}
	return c.bucket.SaveWallet(db, dst, recipient)
}

// Balance returns the funds held by the account, zero if it was never
// funded.
func (c *BankController) Balance(db canal.ReadOnlyKVStore, addr canal.Address) (int64, error) {
	w, err := c.bucket.GetWallet(db, addr)
	if err != nil {
		return 0, err
	}
	if w == nil {
		return 0, nil
	}
	return w.Balance, nil
}

// IssueCoins attempts to add the given amount of funds to the destination
// account. This is how genesis state and tests fund accounts; it mints
// value and must never be reachable from a user facing operation.
func (c *BankController) IssueCoins(db canal.KVStore, dst canal.Address, amount int64) error {
	recipient, err := c.bucket.GetWallet(db, dst)
	if err != nil {
		return err
	}
	if recipient == nil {
		recipient = &Wallet{}
	}
	if err := recipient.Add(amount); err != nil {
		return err
	}
	return c.bucket.SaveWallet(db, dst, recipient)
}
