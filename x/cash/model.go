package cash

import (
	"math"

	"github.com/iov-one/canal"
	"github.com/iov-one/canal/errors"
	"github.com/iov-one/canal/orm"
	amino "github.com/tendermint/go-amino"
)

// BucketName is where we store the balances.
const BucketName = "cash"

var _ orm.CloneableData = (*Wallet)(nil)

// Wallet holds the funds of a single account in the smallest currency unit.
type Wallet struct {
	Balance int64
}

// Marshal implements canal.Persistent.
func (w *Wallet) Marshal() ([]byte, error) {
	return amino.MarshalBinaryBare(w)
}

// Unmarshal implements canal.Persistent.
func (w *Wallet) Unmarshal(bz []byte) error {
	return amino.UnmarshalBinaryBare(bz, w)
}

// Validate ensures the wallet may be persisted.
func (w *Wallet) Validate() error {
	if w.Balance < 0 {
		return errors.ErrModel.Newf("negative balance: %d", w.Balance)
	}
	return nil
}

// Copy returns a shallow copy of this wallet.
func (w Wallet) Copy() orm.CloneableData {
	return &w
}

// Add changes the balance by the given delta, failing on negative result or
// overflow.
func (w *Wallet) Add(delta int64) error {
	if delta > 0 && w.Balance > math.MaxInt64-delta {
		return errors.ErrOverflow.New("wallet balance")
	}
	next := w.Balance + delta
	if next < 0 {
		return ErrInsufficientFunds.Newf("balance %d, withdraw %d", w.Balance, -delta)
	}
	w.Balance = next
	return nil
}

// Bucket is a wrapper over orm.Bucket that ensures that only Wallet entities
// can be persisted, keyed by account address.
type Bucket struct {
	orm.Bucket
}

// NewBucket returns a bucket for storing wallet state.
func NewBucket() Bucket {
	return Bucket{
		Bucket: orm.NewBucket(BucketName, orm.NewSimpleObj(nil, &Wallet{})),
	}
}

// GetWallet returns the wallet stored under the given address or nil if the
// account does not exist.
func (b Bucket) GetWallet(db canal.ReadOnlyKVStore, addr canal.Address) (*Wallet, error) {
	obj, err := b.Get(db, addr)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, nil
	}
	w, ok := obj.Value().(*Wallet)
	if !ok {
		return nil, errors.WithType(errors.ErrModel, obj.Value())
	}
	return w, nil
}

// Save persists the wallet state under the given address.
func (b Bucket) SaveWallet(db canal.KVStore, addr canal.Address, w *Wallet) error {
	return b.Bucket.Save(db, orm.NewSimpleObj(addr, w))
}
