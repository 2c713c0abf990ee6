package paychan

import (
	"encoding/hex"

	"github.com/iov-one/canal"
	"github.com/iov-one/canal/errors"
	"github.com/iov-one/canal/orm"
)

// lockedFundsKey stores the total funds locked across all non closed
// channels. It follows the sequence key naming pattern so it can never
// collide with a bucket entry.
var lockedFundsKey = []byte("_t." + BucketName + ":locked")

// ChannelBucket is a wrapper over orm.Bucket that ensures that only
// PaymentChannel entities can be persisted. It owns creation, lookup and
// replacement of channel records, together with the locked funds
// accounting. No business rule enforcement happens here.
type ChannelBucket struct {
	orm.Bucket
}

// NewChannelBucket returns a bucket for storing PaymentChannel state.
func NewChannelBucket() ChannelBucket {
	return ChannelBucket{
		Bucket: orm.NewBucket(BucketName, orm.NewSimpleObj(nil, &PaymentChannel{})),
	}
}

// Create adds the channel record under the given identifier. It fails with
// ErrChannelExists when the identifier is already taken. The combined
// balance of the record is added to the locked funds total.
func (b ChannelBucket) Create(db canal.KVStore, channelID []byte, pc *PaymentChannel) error {
	if b.Has(db, channelID) {
		return ErrChannelExists.Newf("%X", channelID)
	}
	if err := b.Save(db, orm.NewSimpleObj(channelID, pc)); err != nil {
		return err
	}
	adjustLockedFunds(db, pc.Total())
	return nil
}

// GetChannel returns the channel record stored under the given identifier
// or fails with ErrChannelNotFound.
func (b ChannelBucket) GetChannel(db canal.ReadOnlyKVStore, channelID []byte) (*PaymentChannel, error) {
	obj, err := b.Get(db, channelID)
	if err != nil {
		return nil, err
	}
	if obj == nil || obj.Value() == nil {
		return nil, ErrChannelNotFound.Newf("%X", channelID)
	}
	pc, ok := obj.Value().(*PaymentChannel)
	if !ok {
		return nil, errors.WithType(errors.ErrModel, obj.Value())
	}
	return pc, nil
}

// Replace overwrites the record stored under the given identifier. It fails
// with ErrChannelNotFound when the channel was never created. The locked
// funds total is adjusted by the change in combined balance.
func (b ChannelBucket) Replace(db canal.KVStore, channelID []byte, pc *PaymentChannel) error {
	prev, err := b.GetChannel(db, channelID)
	if err != nil {
		return err
	}
	if err := b.Save(db, orm.NewSimpleObj(channelID, pc)); err != nil {
		return err
	}
	adjustLockedFunds(db, pc.Total()-prev.Total())
	return nil
}

// NextNonce returns the sender's channel counter value and then increments
// it. The counter starts at 0 and is used solely to derive fresh channel
// identifiers.
func (b ChannelBucket) NextNonce(db canal.KVStore, sender canal.Address) int64 {
	seq := b.Sequence("nonce:" + hex.EncodeToString(sender))
	// the sequence hands out values starting with 1
	return seq.NextInt(db) - 1
}

// LockedFunds returns the sum of all non closed channels' combined
// balances, as maintained by Create and Replace. It is a sanity check
// against the custodian's actual held balance.
func LockedFunds(db canal.ReadOnlyKVStore) int64 {
	return orm.DecodeSequence(db.Get(lockedFundsKey))
}

// RecomputeLockedFunds walks every channel record and sums the combined
// balances of the non closed ones. The result must always equal
// LockedFunds; use it to audit the accumulator.
func (b ChannelBucket) RecomputeLockedFunds(db canal.ReadOnlyKVStore) (int64, error) {
	var total int64
	for _, m := range b.All(db) {
		obj, err := b.Parse(m.Key, m.Value)
		if err != nil {
			return 0, err
		}
		pc := obj.Value().(*PaymentChannel)
		if pc.Status != StatusClosed {
			total += pc.Total()
		}
	}
	return total, nil
}

func adjustLockedFunds(db canal.KVStore, delta int64) {
	total := orm.DecodeSequence(db.Get(lockedFundsKey))
	db.Set(lockedFundsKey, orm.EncodeSequence(total+delta))
}
