package paychan

import (
	"fmt"

	"github.com/iov-one/canal"
	"github.com/iov-one/canal/crypto"
	"github.com/iov-one/canal/errors"
	"github.com/iov-one/canal/x"
	"github.com/iov-one/canal/x/cash"
	"github.com/tendermint/tendermint/libs/log"
)

// ChannelIDFunc derives a channel identifier from the parties and the
// sender's channel counter. It must be deterministic and collision
// resistant given distinct inputs.
type ChannelIDFunc func(sender, recipient canal.Address, nonce int64) []byte

// VerifyFunc authenticates that the message was signed by the private key
// corresponding to the given public key. It is injected so the controller
// can be tested with a deterministic stub.
type VerifyFunc func(signer crypto.PublicKey, message []byte, sig crypto.Signature) bool

// CloseOutcome tags which branch a close took.
type CloseOutcome byte

const (
	// OutcomeClosed means the funds were distributed and the channel is
	// terminal.
	OutcomeClosed CloseOutcome = iota + 1
	// OutcomeDisputed means the submitted split was recorded and waits
	// out the timeout before it can be settled.
	OutcomeDisputed
)

// Controller decides all channel state transitions. Given a channel record,
// an operation and the environment (current height, caller identity,
// signature verification) it either commits the next state together with
// the fund movements, or rejects with a specific error. Operations on the
// same channel must be serialized by the caller; operations on distinct
// channels are independent.
type Controller struct {
	auth     x.Authenticator
	bucket   ChannelBucket
	cash     cash.Controller
	deriveID ChannelIDFunc
	verify   VerifyFunc
	logger   log.Logger
}

// NewController returns a controller with the production collaborators: the
// condition derived channel identifiers and ed25519 signature checks.
func NewController(auth x.Authenticator, cashCtrl cash.Controller) *Controller {
	return &Controller{
		auth:     auth,
		bucket:   NewChannelBucket(),
		cash:     cashCtrl,
		deriveID: DeriveChannelID,
		verify:   crypto.PublicKey.Verify,
		logger:   canal.DefaultLogger,
	}
}

// SetIDDeriver replaces the channel identifier derivation.
func (c *Controller) SetIDDeriver(fn ChannelIDFunc) {
	c.deriveID = fn
}

// SetVerifier replaces the signature verification.
func (c *Controller) SetVerifier(fn VerifyFunc) {
	c.verify = fn
}

// SetLogger replaces the no-op default logger.
func (c *Controller) SetLogger(logger log.Logger) {
	c.logger = logger
}

// Open locks the sender's deposit under the custodian and creates the
// channel record. It returns the new channel identifier.
func (c *Controller) Open(ctx canal.Context, db canal.CacheableKVStore, msg *OpenChannelMsg) ([]byte, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	if !c.auth.HasAddress(ctx, msg.Sender) {
		return nil, errors.ErrUnauthorized.New("sender did not authorize")
	}
	height, ok := canal.GetHeight(ctx)
	if !ok {
		return nil, errors.ErrHuman.New("block height missing")
	}

	cache := db.CacheWrap()
	defer cache.Discard()

	channelID := c.deriveID(msg.Sender, msg.Recipient, c.bucket.NextNonce(cache, msg.Sender))
	if c.bucket.Has(cache, channelID) {
		return nil, ErrChannelExists.Newf("%X", channelID)
	}

	// Deposit the total on the channel escrow account so it is
	// guaranteed to be available on close.
	if err := c.cash.MoveCoins(cache, msg.Sender, escrowAccount(channelID), msg.Amount); err != nil {
		return nil, err
	}

	pc := &PaymentChannel{
		Sender:           msg.Sender,
		Recipient:        msg.Recipient,
		SenderPubkey:     msg.SenderPubkey,
		SenderBalance:    msg.Amount,
		RecipientBalance: 0,
		Timeout:          height + msg.TimeoutDelta,
		Nonce:            0,
		Status:           StatusOpen,
		Memo:             msg.Memo,
	}
	if err := c.bucket.Create(cache, channelID, pc); err != nil {
		return nil, err
	}

	cache.Write()
	c.logger.Info("payment channel opened",
		"channel", fmt.Sprintf("%X", channelID),
		"total", msg.Amount,
		"timeout", pc.Timeout)
	return channelID, nil
}

// Close applies a sender signed settlement. Submitted by the recipient it
// distributes the funds immediately and the channel is terminal. Submitted
// by anyone else it records the split and marks the channel disputed;
// settlement then waits out the channel timeout.
//
// Both branches share all precondition checks: the channel must still
// accept updates, the nonce must strictly supersede the recorded one, the
// split must redistribute exactly the locked total and the signature must
// authenticate the settlement as the sender's.
func (c *Controller) Close(ctx canal.Context, db canal.CacheableKVStore, msg *CloseChannelMsg) (CloseOutcome, error) {
	if err := msg.Validate(); err != nil {
		return 0, err
	}

	cache := db.CacheWrap()
	defer cache.Discard()

	st := msg.Settlement
	pc, err := c.bucket.GetChannel(cache, st.ChannelID)
	if err != nil {
		return 0, err
	}

	if pc.Status != StatusOpen {
		return 0, ErrChannelClosed.Newf("status %s", pc.Status)
	}
	// Replay protection: only accept an update that supersedes the last
	// recorded one. Equal or lower nonces are stale or replayed.
	if st.Nonce <= pc.Nonce {
		return 0, ErrInvalidState.Newf("stale nonce: %d <= %d", st.Nonce, pc.Nonce)
	}
	// Conservation: the new split must redistribute exactly the locked
	// total, never mint or burn funds.
	if st.SenderAmount+st.RecipientAmount != pc.Total() {
		return 0, ErrInvalidAmount.Newf("split %d+%d does not preserve total %d",
			st.SenderAmount, st.RecipientAmount, pc.Total())
	}
	raw, err := st.Marshal()
	if err != nil {
		return 0, errors.Wrap(err, "marshal settlement")
	}
	if !c.verify(pc.SenderPubkey, raw, msg.Signature) {
		return 0, ErrInvalidSignature.New("settlement not signed by sender")
	}

	pc.SenderBalance = st.SenderAmount
	pc.RecipientBalance = st.RecipientAmount
	pc.Nonce = st.Nonce
	pc.Memo = msg.Memo

	outcome := OutcomeDisputed
	if c.auth.HasAddress(ctx, pc.Recipient) {
		// A recipient attested settlement needs no dispute window.
		if err := c.distribute(cache, st.ChannelID, pc); err != nil {
			return 0, err
		}
		outcome = OutcomeClosed
	} else {
		pc.Status = StatusDisputed
		if err := c.bucket.Replace(cache, st.ChannelID, pc); err != nil {
			return 0, err
		}
	}

	cache.Write()
	c.logger.Info("payment channel close submitted",
		"channel", fmt.Sprintf("%X", st.ChannelID),
		"nonce", st.Nonce,
		"status", pc.Status.String())
	return outcome, nil
}

// SettleDisputed resolves a disputed channel once the timeout height was
// reached, distributing the recorded balances. Anyone may submit it.
func (c *Controller) SettleDisputed(ctx canal.Context, db canal.CacheableKVStore, msg *SettleDisputedMsg) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	height, ok := canal.GetHeight(ctx)
	if !ok {
		return errors.ErrHuman.New("block height missing")
	}

	cache := db.CacheWrap()
	defer cache.Discard()

	pc, err := c.bucket.GetChannel(cache, msg.ChannelID)
	if err != nil {
		return err
	}
	if pc.Status != StatusDisputed {
		return ErrInvalidState.Newf("status %s", pc.Status)
	}
	if height < pc.Timeout {
		return ErrTimeoutNotReached.Newf("height %d < %d", height, pc.Timeout)
	}

	pc.Memo = msg.Memo
	if err := c.distribute(cache, msg.ChannelID, pc); err != nil {
		return err
	}

	cache.Write()
	c.logger.Info("disputed payment channel settled",
		"channel", fmt.Sprintf("%X", msg.ChannelID))
	return nil
}

// ForceClose closes an uncontested open channel after the timeout,
// distributing the last recorded balances. Only the sender may call it: the
// recipient has no signed update to submit this way and should have closed
// cooperatively or disputed before the timeout. A disputed channel must go
// through SettleDisputed instead.
func (c *Controller) ForceClose(ctx canal.Context, db canal.CacheableKVStore, msg *ForceCloseMsg) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	height, ok := canal.GetHeight(ctx)
	if !ok {
		return errors.ErrHuman.New("block height missing")
	}

	cache := db.CacheWrap()
	defer cache.Discard()

	pc, err := c.bucket.GetChannel(cache, msg.ChannelID)
	if err != nil {
		return err
	}
	if pc.Status != StatusOpen {
		return ErrInvalidState.Newf("status %s", pc.Status)
	}
	if height < pc.Timeout {
		return ErrTimeoutNotReached.Newf("height %d < %d", height, pc.Timeout)
	}
	if !c.auth.HasAddress(ctx, pc.Sender) {
		return errors.ErrUnauthorized.New("only the sender may force close")
	}

	pc.Memo = msg.Memo
	if err := c.distribute(cache, msg.ChannelID, pc); err != nil {
		return err
	}

	cache.Write()
	c.logger.Info("payment channel force closed",
		"channel", fmt.Sprintf("%X", msg.ChannelID))
	return nil
}

// GetChannelDetails returns the channel record, or nil if no channel is
// stored under the identifier. Unlike GetChannel this never fails for a
// missing channel.
func (c *Controller) GetChannelDetails(db canal.ReadOnlyKVStore, channelID []byte) (*PaymentChannel, error) {
	obj, err := c.bucket.Get(db, channelID)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, nil
	}
	return obj.Value().(*PaymentChannel), nil
}

// LockedFunds returns the accumulator of all non closed channels' combined
// balances.
func (c *Controller) LockedFunds(db canal.ReadOnlyKVStore) int64 {
	return LockedFunds(db)
}

// AuditLockedFunds recomputes the locked funds total from the channel
// records and returns both the accumulator and the recomputed value. The
// two differing means the store was corrupted.
func (c *Controller) AuditLockedFunds(db canal.ReadOnlyKVStore) (accumulated, recomputed int64, err error) {
	recomputed, err = c.bucket.RecomputeLockedFunds(db)
	if err != nil {
		return 0, 0, err
	}
	return LockedFunds(db), recomputed, nil
}

// distribute pays the current balances out of the escrow account, zeroes
// them and makes the record terminal. It runs inside the caller's cache
// wrap so the record write and the fund movements commit as a single unit
// of work; a failed movement discards the state transition with it.
func (c *Controller) distribute(cache canal.KVStore, channelID []byte, pc *PaymentChannel) error {
	escrow := escrowAccount(channelID)
	if pc.SenderBalance > 0 {
		if err := c.cash.MoveCoins(cache, escrow, pc.Sender, pc.SenderBalance); err != nil {
			return err
		}
	}
	if pc.RecipientBalance > 0 {
		if err := c.cash.MoveCoins(cache, escrow, pc.Recipient, pc.RecipientBalance); err != nil {
			return err
		}
	}

	pc.SenderBalance = 0
	pc.RecipientBalance = 0
	pc.Status = StatusClosed
	return c.bucket.Replace(cache, channelID, pc)
}
