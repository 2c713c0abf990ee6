package paychan

import (
	"github.com/iov-one/canal"
	"github.com/iov-one/canal/crypto"
	"github.com/iov-one/canal/errors"
	amino "github.com/tendermint/go-amino"
)

// Settlement is the balance update tuple the sender signs off the ledger.
// Its canonical binary encoding is the signed message, so it must stay
// deterministic.
type Settlement struct {
	ChannelID       []byte
	SenderAmount    int64
	RecipientAmount int64
	Nonce           int64
}

// Marshal returns the canonical encoding of the settlement. This is the
// exact byte sequence the sender signs.
func (s *Settlement) Marshal() ([]byte, error) {
	return amino.MarshalBinaryBare(s)
}

// Unmarshal implements canal.Persistent.
func (s *Settlement) Unmarshal(bz []byte) error {
	return amino.UnmarshalBinaryBare(bz, s)
}

// Validate ensures the settlement tuple is well formed. Whether it matches
// the stored channel state is decided by the controller.
func (s *Settlement) Validate() error {
	if len(s.ChannelID) == 0 {
		return errors.ErrMsg.New("missing channel id")
	}
	if s.SenderAmount < 0 || s.RecipientAmount < 0 {
		return ErrInvalidAmount.New("negative settlement amount")
	}
	if s.Nonce <= 0 {
		return ErrInvalidState.Newf("nonce must be positive: %d", s.Nonce)
	}
	return nil
}

var _ canal.Msg = (*OpenChannelMsg)(nil)

// OpenChannelMsg locks the sender's deposit under the custodian and creates
// the channel record.
type OpenChannelMsg struct {
	Sender       canal.Address
	Recipient    canal.Address
	SenderPubkey crypto.PublicKey
	// Amount is the deposit, all of it initially on the sender's side.
	Amount int64
	// TimeoutDelta is added to the current height to fix the absolute
	// timeout of the channel.
	TimeoutDelta int64
	Memo         string
}

func (m *OpenChannelMsg) Marshal() ([]byte, error) {
	return amino.MarshalBinaryBare(m)
}

func (m *OpenChannelMsg) Unmarshal(bz []byte) error {
	return amino.UnmarshalBinaryBare(bz, m)
}

func (m *OpenChannelMsg) Validate() error {
	if err := m.Sender.Validate(); err != nil {
		return errors.Wrap(err, "sender")
	}
	if err := m.Recipient.Validate(); err != nil {
		return errors.Wrap(err, "recipient")
	}
	if m.Sender.Equals(m.Recipient) {
		return errors.ErrMsg.New("sender and recipient are the same")
	}
	if m.SenderPubkey == nil {
		return errors.ErrMsg.New("missing sender public key")
	}
	if err := m.SenderPubkey.Validate(); err != nil {
		return errors.Wrap(err, "sender public key")
	}
	if m.Amount <= 0 {
		return ErrInvalidAmount.Newf("deposit: %d", m.Amount)
	}
	if m.TimeoutDelta <= 0 {
		return errors.ErrMsg.Newf("timeout delta: %d", m.TimeoutDelta)
	}
	if len(m.Memo) > 128 {
		return errors.ErrMsg.New("memo too long")
	}
	return nil
}

func (OpenChannelMsg) Path() string {
	return "paychan/open"
}

var _ canal.Msg = (*CloseChannelMsg)(nil)

// CloseChannelMsg submits a sender signed settlement. Submitted by the
// recipient it finalizes the channel immediately; submitted by anyone else
// it only marks the channel disputed.
type CloseChannelMsg struct {
	Settlement *Settlement
	// Signature is the sender's signature over the canonical settlement
	// encoding. The signing party is always the sender, regardless of
	// who submits the message.
	Signature crypto.Signature
	Memo      string
}

func (m *CloseChannelMsg) Marshal() ([]byte, error) {
	return amino.MarshalBinaryBare(m)
}

func (m *CloseChannelMsg) Unmarshal(bz []byte) error {
	return amino.UnmarshalBinaryBare(bz, m)
}

func (m *CloseChannelMsg) Validate() error {
	if m.Settlement == nil {
		return errors.ErrMsg.New("missing settlement")
	}
	if err := m.Settlement.Validate(); err != nil {
		return err
	}
	if m.Signature == nil {
		return ErrInvalidSignature.New("missing signature")
	}
	if len(m.Memo) > 128 {
		return errors.ErrMsg.New("memo too long")
	}
	return nil
}

func (CloseChannelMsg) Path() string {
	return "paychan/close"
}

var _ canal.Msg = (*SettleDisputedMsg)(nil)

// SettleDisputedMsg resolves a disputed channel once the timeout height was
// reached, distributing the disputed balances. Anyone may submit it.
type SettleDisputedMsg struct {
	ChannelID []byte
	Memo      string
}

func (m *SettleDisputedMsg) Marshal() ([]byte, error) {
	return amino.MarshalBinaryBare(m)
}

func (m *SettleDisputedMsg) Unmarshal(bz []byte) error {
	return amino.UnmarshalBinaryBare(bz, m)
}

func (m *SettleDisputedMsg) Validate() error {
	if len(m.ChannelID) == 0 {
		return errors.ErrMsg.New("missing channel id")
	}
	if len(m.Memo) > 128 {
		return errors.ErrMsg.New("memo too long")
	}
	return nil
}

func (SettleDisputedMsg) Path() string {
	return "paychan/settle"
}

var _ canal.Msg = (*ForceCloseMsg)(nil)

// ForceCloseMsg closes an uncontested open channel after the timeout,
// distributing the last recorded balances. Only the sender may submit it.
type ForceCloseMsg struct {
	ChannelID []byte
	Memo      string
}

func (m *ForceCloseMsg) Marshal() ([]byte, error) {
	return amino.MarshalBinaryBare(m)
}

func (m *ForceCloseMsg) Unmarshal(bz []byte) error {
	return amino.UnmarshalBinaryBare(bz, m)
}

func (m *ForceCloseMsg) Validate() error {
	if len(m.ChannelID) == 0 {
		return errors.ErrMsg.New("missing channel id")
	}
	if len(m.Memo) > 128 {
		return errors.ErrMsg.New("memo too long")
	}
	return nil
}

func (ForceCloseMsg) Path() string {
	return "paychan/forceclose"
}
