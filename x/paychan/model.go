package paychan

import (
	"github.com/iov-one/canal"
	"github.com/iov-one/canal/crypto"
	"github.com/iov-one/canal/errors"
	"github.com/iov-one/canal/orm"
	amino "github.com/tendermint/go-amino"
)

// BucketName is where we store the channel records.
const BucketName = "paychan"

// Status describes where in its lifecycle a channel is.
type Status int32

const (
	// StatusOpen accepts off chain balance updates.
	StatusOpen Status = 1
	// StatusDisputed was closed unilaterally and waits out the timeout
	// before the recorded split can be settled.
	StatusDisputed Status = 2
	// StatusClosed is terminal. The record is kept for audit only.
	StatusClosed Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusDisputed:
		return "disputed"
	case StatusClosed:
		return "closed"
	default:
		return "invalid"
	}
}

var _ orm.CloneableData = (*PaymentChannel)(nil)

// PaymentChannel is the record kept per channel identifier. Sender and
// recipient are immutable for the lifetime of the channel. The two balances
// always sum to the locked total, except in the terminal record where both
// are zero after being paid out.
type PaymentChannel struct {
	// Sender is the party that deposited the funds.
	Sender canal.Address
	// Recipient is the party the sender pays off the ledger.
	Recipient canal.Address
	// SenderPubkey authenticates every off chain balance update. It may
	// differ from the key the sender signs transactions with.
	SenderPubkey crypto.PublicKey
	// SenderBalance and RecipientBalance is the last split recorded on
	// the ledger, in the smallest currency unit.
	SenderBalance    int64
	RecipientBalance int64
	// Timeout is the absolute height after which unilateral resolution
	// is permitted. Fixed at open time.
	Timeout int64
	// Nonce of the last recorded balance update. A fresh update must
	// carry a strictly greater value.
	Nonce int64
	// Status is one of open, disputed, closed.
	Status Status
	// Memo is a note attached by the last operation, max 128 bytes.
	Memo string
}

// Marshal implements canal.Persistent.
func (pc *PaymentChannel) Marshal() ([]byte, error) {
	return amino.MarshalBinaryBare(pc)
}

// Unmarshal implements canal.Persistent.
func (pc *PaymentChannel) Unmarshal(bz []byte) error {
	return amino.UnmarshalBinaryBare(bz, pc)
}

// Validate ensures the payment channel is valid.
func (pc *PaymentChannel) Validate() error {
	if err := pc.Sender.Validate(); err != nil {
		return errors.Wrap(err, "sender")
	}
	if err := pc.Recipient.Validate(); err != nil {
		return errors.Wrap(err, "recipient")
	}
	if pc.Sender.Equals(pc.Recipient) {
		return errors.ErrModel.New("sender and recipient are the same")
	}
	if err := pc.SenderPubkey.Validate(); err != nil {
		return errors.Wrap(err, "sender public key")
	}
	if pc.SenderBalance < 0 || pc.RecipientBalance < 0 {
		return errors.ErrModel.New("negative balance")
	}
	if pc.Timeout <= 0 {
		return errors.ErrModel.New("timeout in the past")
	}
	if pc.Nonce < 0 {
		return errors.ErrModel.New("negative nonce")
	}
	switch pc.Status {
	case StatusOpen, StatusDisputed, StatusClosed:
	default:
		return errors.ErrModel.Newf("invalid status: %d", pc.Status)
	}
	if len(pc.Memo) > 128 {
		return errors.ErrModel.New("memo too long")
	}
	return nil
}

// Copy returns a shallow copy of this PaymentChannel.
func (pc PaymentChannel) Copy() orm.CloneableData {
	return &pc
}

// Total returns the combined funds locked in this channel.
func (pc *PaymentChannel) Total() int64 {
	return pc.SenderBalance + pc.RecipientBalance
}

// DeriveChannelID computes the deterministic channel identifier for given
// parties and the sender's nonce counter value. Same inputs always yield the
// same identifier; the counter makes repeated opens by the same pair unique.
func DeriveChannelID(sender, recipient canal.Address, nonce int64) []byte {
	data := make([]byte, 0, len(sender)+len(recipient)+8)
	data = append(data, sender...)
	data = append(data, recipient...)
	data = append(data, orm.EncodeSequence(nonce)...)
	return canal.NewCondition(BucketName, "seq", data).Address()
}

// escrowAccount returns the custodian sub-account address holding the funds
// locked in the channel with the given identifier. Each channel deposits its
// total there at open time so it is guaranteed to be available on close.
func escrowAccount(channelID []byte) canal.Address {
	return canal.NewCondition(BucketName, "escrow", channelID).Address()
}
