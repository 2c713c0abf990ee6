package paychan

import (
	"context"
	"testing"

	"github.com/iov-one/canal"
	"github.com/iov-one/canal/canaltest"
	"github.com/iov-one/canal/crypto"
	"github.com/iov-one/canal/errors"
	"github.com/iov-one/canal/store"
	"github.com/iov-one/canal/x/cash"
)

func TestPaymentChannelOperations(t *testing.T) {
	var (
		src       = canaltest.NewCondition()
		recipient = canaltest.NewCondition()
		bystander = canaltest.NewCondition()

		// Because it is allowed, the channel is signed with a key
		// different from the one authorizing the transactions.
		senderKey = canaltest.NewKey()
		otherKey  = canaltest.NewKey()
	)

	// Every test case starts with a fresh store, so the first channel of
	// the pair is always derived from counter value 0.
	chID := DeriveChannelID(src.Address(), recipient.Address(), 0)

	const initialFunds = 1500000000

	openMsg := func(amount, timeoutDelta int64) *OpenChannelMsg {
		return &OpenChannelMsg{
			Sender:       src.Address(),
			Recipient:    recipient.Address(),
			SenderPubkey: senderKey.PublicKey(),
			Amount:       amount,
			TimeoutDelta: timeoutDelta,
			Memo:         "start",
		}
	}

	cases := map[string]struct {
		actions []action
		dbtests []dbcheck
	}{
		"opening a channel locks the deposit under the custodian": {
			actions: []action{
				{
					conditions: []canal.Condition{src},
					msg:        openMsg(1000000000, 1000),
					height:     100,
				},
			},
			dbtests: []dbcheck{
				wantBalance{addr: src.Address(), want: 500000000},
				wantBalance{addr: escrowAccount(chID), want: 1000000000},
				wantChannel{
					id:            chID,
					status:        StatusOpen,
					senderBalance: 1000000000,
					timeout:       1100,
				},
				wantLocked{total: 1000000000},
			},
		},
		"opening a channel without the sender authorization fails": {
			actions: []action{
				{
					conditions: []canal.Condition{recipient},
					msg:        openMsg(1000000000, 1000),
					height:     100,
					wantErr:    errors.ErrUnauthorized,
				},
			},
		},
		"opening a channel with a non positive deposit fails": {
			actions: []action{
				{
					conditions: []canal.Condition{src},
					msg:        openMsg(0, 1000),
					height:     100,
					wantErr:    ErrInvalidAmount,
				},
			},
		},
		"opening a channel the sender cannot fund fails without side effects": {
			actions: []action{
				{
					conditions: []canal.Condition{src},
					msg:        openMsg(initialFunds+1, 1000),
					height:     100,
					wantErr:    cash.ErrInsufficientFunds,
				},
			},
			dbtests: []dbcheck{
				wantBalance{addr: src.Address(), want: initialFunds},
				wantChannel{id: chID, absent: true},
				wantLocked{total: 0},
			},
		},
		"recipient close distributes the settled split immediately": {
			actions: []action{
				{
					conditions: []canal.Condition{src},
					msg:        openMsg(1000000000, 1000),
					height:     100,
				},
				{
					conditions: []canal.Condition{recipient},
					msg: signedClose(senderKey, Settlement{
						ChannelID:       chID,
						SenderAmount:    400000000,
						RecipientAmount: 600000000,
						Nonce:           1,
					}, "end"),
					height:      101,
					wantOutcome: OutcomeClosed,
				},
			},
			dbtests: []dbcheck{
				wantBalance{addr: src.Address(), want: 900000000},
				wantBalance{addr: recipient.Address(), want: 600000000},
				wantBalance{addr: escrowAccount(chID), want: 0},
				wantChannel{
					id:     chID,
					status: StatusClosed,
					nonce:  1,
				},
				wantLocked{total: 0},
			},
		},
		"a close with a non positive nonce is rejected": {
			actions: []action{
				{
					conditions: []canal.Condition{src},
					msg:        openMsg(1000000000, 1000),
					height:     100,
				},
				{
					conditions: []canal.Condition{recipient},
					msg: signedClose(senderKey, Settlement{
						ChannelID:       chID,
						SenderAmount:    400000000,
						RecipientAmount: 600000000,
						Nonce:           0,
					}, "end"),
					height:  101,
					wantErr: ErrInvalidState,
				},
			},
		},
		"a split that does not preserve the total is rejected": {
			actions: []action{
				{
					conditions: []canal.Condition{src},
					msg:        openMsg(1000000000, 1000),
					height:     100,
				},
				{
					conditions: []canal.Condition{recipient},
					msg: signedClose(senderKey, Settlement{
						ChannelID:       chID,
						SenderAmount:    400000000,
						RecipientAmount: 700000000,
						Nonce:           1,
					}, "end"),
					height:  101,
					wantErr: ErrInvalidAmount,
				},
			},
			dbtests: []dbcheck{
				// The rejected settlement must not leave a trace.
				wantChannel{
					id:            chID,
					status:        StatusOpen,
					senderBalance: 1000000000,
					timeout:       1100,
				},
				wantBalance{addr: escrowAccount(chID), want: 1000000000},
				wantLocked{total: 1000000000},
			},
		},
		"a settlement signed with the wrong key is rejected": {
			actions: []action{
				{
					conditions: []canal.Condition{src},
					msg:        openMsg(1000000000, 1000),
					height:     100,
				},
				{
					conditions: []canal.Condition{recipient},
					msg: signedClose(otherKey, Settlement{
						ChannelID:       chID,
						SenderAmount:    400000000,
						RecipientAmount: 600000000,
						Nonce:           1,
					}, "end"),
					height:  101,
					wantErr: ErrInvalidSignature,
				},
			},
		},
		"sender close starts a dispute that settles after the timeout": {
			actions: []action{
				{
					conditions: []canal.Condition{src},
					msg:        openMsg(1000000000, 1000),
					height:     100,
				},
				{
					conditions: []canal.Condition{src},
					msg: signedClose(senderKey, Settlement{
						ChannelID:       chID,
						SenderAmount:    300000000,
						RecipientAmount: 700000000,
						Nonce:           1,
					}, "sender says"),
					height:      101,
					wantOutcome: OutcomeDisputed,
				},
				{
					conditions: []canal.Condition{recipient},
					msg:        &SettleDisputedMsg{ChannelID: chID},
					height:     1000,
					wantErr:    ErrTimeoutNotReached,
				},
				{
					conditions: []canal.Condition{bystander},
					msg:        &SettleDisputedMsg{ChannelID: chID},
					height:     1100,
				},
			},
			dbtests: []dbcheck{
				wantBalance{addr: src.Address(), want: 800000000},
				wantBalance{addr: recipient.Address(), want: 700000000},
				wantBalance{addr: escrowAccount(chID), want: 0},
				wantChannel{
					id:     chID,
					status: StatusClosed,
					nonce:  1,
				},
				wantLocked{total: 0},
			},
		},
		"a disputed channel accepts no further settlements": {
			actions: []action{
				{
					conditions: []canal.Condition{src},
					msg:        openMsg(1000000000, 1000),
					height:     100,
				},
				{
					conditions: []canal.Condition{src},
					msg: signedClose(senderKey, Settlement{
						ChannelID:       chID,
						SenderAmount:    300000000,
						RecipientAmount: 700000000,
						Nonce:           1,
					}, "sender says"),
					height:      101,
					wantOutcome: OutcomeDisputed,
				},
				{
					conditions: []canal.Condition{recipient},
					msg: signedClose(senderKey, Settlement{
						ChannelID:       chID,
						SenderAmount:    200000000,
						RecipientAmount: 800000000,
						Nonce:           2,
					}, "newer"),
					height:  102,
					wantErr: ErrChannelClosed,
				},
			},
			dbtests: []dbcheck{
				wantChannel{
					id:               chID,
					status:           StatusDisputed,
					senderBalance:    300000000,
					recipientBalance: 700000000,
					nonce:            1,
					timeout:          1100,
				},
			},
		},
		"force close after the timeout returns the last agreed split": {
			actions: []action{
				{
					conditions: []canal.Condition{src},
					msg:        openMsg(1000000000, 10),
					height:     100,
				},
				{
					conditions: []canal.Condition{src},
					msg:        &ForceCloseMsg{ChannelID: chID},
					height:     111,
				},
			},
			dbtests: []dbcheck{
				wantBalance{addr: src.Address(), want: initialFunds},
				wantBalance{addr: recipient.Address(), want: 0},
				wantChannel{id: chID, status: StatusClosed},
				wantLocked{total: 0},
			},
		},
		"force close before the timeout is rejected": {
			actions: []action{
				{
					conditions: []canal.Condition{src},
					msg:        openMsg(1000000000, 10),
					height:     100,
				},
				{
					conditions: []canal.Condition{src},
					msg:        &ForceCloseMsg{ChannelID: chID},
					height:     109,
					wantErr:    ErrTimeoutNotReached,
				},
			},
		},
		"only the sender may force close, even after the timeout": {
			actions: []action{
				{
					conditions: []canal.Condition{src},
					msg:        openMsg(1000000000, 10),
					height:     100,
				},
				{
					conditions: []canal.Condition{recipient},
					msg:        &ForceCloseMsg{ChannelID: chID},
					height:     200,
					wantErr:    errors.ErrUnauthorized,
				},
			},
		},
		"a disputed channel cannot be force closed": {
			actions: []action{
				{
					conditions: []canal.Condition{src},
					msg:        openMsg(1000000000, 10),
					height:     100,
				},
				{
					conditions: []canal.Condition{src},
					msg: signedClose(senderKey, Settlement{
						ChannelID:       chID,
						SenderAmount:    1000000000,
						RecipientAmount: 0,
						Nonce:           1,
					}, "sender says"),
					height:      101,
					wantOutcome: OutcomeDisputed,
				},
				{
					conditions: []canal.Condition{src},
					msg:        &ForceCloseMsg{ChannelID: chID},
					height:     200,
					wantErr:    ErrInvalidState,
				},
			},
		},
		"operations on a missing channel fail with channel not found": {
			actions: []action{
				{
					conditions: []canal.Condition{recipient},
					msg: signedClose(senderKey, Settlement{
						ChannelID:       chID,
						SenderAmount:    400000000,
						RecipientAmount: 600000000,
						Nonce:           1,
					}, "end"),
					height:  101,
					wantErr: ErrChannelNotFound,
				},
				{
					conditions: []canal.Condition{recipient},
					msg:        &SettleDisputedMsg{ChannelID: chID},
					height:     101,
					wantErr:    ErrChannelNotFound,
				},
				{
					conditions: []canal.Condition{src},
					msg:        &ForceCloseMsg{ChannelID: chID},
					height:     101,
					wantErr:    ErrChannelNotFound,
				},
			},
		},
		"a closed channel rejects every operation": {
			actions: []action{
				{
					conditions: []canal.Condition{src},
					msg:        openMsg(1000000000, 10),
					height:     100,
				},
				{
					conditions: []canal.Condition{recipient},
					msg: signedClose(senderKey, Settlement{
						ChannelID:       chID,
						SenderAmount:    400000000,
						RecipientAmount: 600000000,
						Nonce:           1,
					}, "end"),
					height:      101,
					wantOutcome: OutcomeClosed,
				},
				{
					conditions: []canal.Condition{recipient},
					msg: signedClose(senderKey, Settlement{
						ChannelID:       chID,
						SenderAmount:    0,
						RecipientAmount: 1000000000,
						Nonce:           2,
					}, "again"),
					height:  200,
					wantErr: ErrChannelClosed,
				},
				{
					conditions: []canal.Condition{recipient},
					msg:        &SettleDisputedMsg{ChannelID: chID},
					height:     200,
					wantErr:    ErrInvalidState,
				},
				{
					conditions: []canal.Condition{src},
					msg:        &ForceCloseMsg{ChannelID: chID},
					height:     200,
					wantErr:    ErrInvalidState,
				},
			},
			dbtests: []dbcheck{
				// The terminal record must not have changed.
				wantBalance{addr: src.Address(), want: 900000000},
				wantBalance{addr: recipient.Address(), want: 600000000},
				wantChannel{id: chID, status: StatusClosed, nonce: 1},
			},
		},
		"the same pair can hold multiple channels": {
			actions: []action{
				{
					conditions: []canal.Condition{src},
					msg:        openMsg(1000000000, 1000),
					height:     100,
				},
				{
					conditions: []canal.Condition{src},
					msg:        openMsg(500000000, 1000),
					height:     102,
				},
			},
			dbtests: []dbcheck{
				wantBalance{addr: src.Address(), want: 0},
				wantChannel{
					id:            chID,
					status:        StatusOpen,
					senderBalance: 1000000000,
					timeout:       1100,
				},
				wantChannel{
					id:            DeriveChannelID(src.Address(), recipient.Address(), 1),
					status:        StatusOpen,
					senderBalance: 500000000,
					timeout:       1102,
				},
				wantLocked{total: 1500000000},
			},
		},
	}

	auth := &canaltest.CtxAuth{Key: "auth"}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			db := store.MemStore()
			bank := cash.NewController(cash.NewBucket())
			ctrl := NewController(auth, bank)

			if err := bank.IssueCoins(db, src.Address(), initialFunds); err != nil {
				t.Fatalf("fund sender: %s", err)
			}

			for i, a := range tc.actions {
				ctx := canal.WithHeight(context.Background(), a.height)
				ctx = auth.SetConditions(ctx, a.conditions...)

				var err error
				switch msg := a.msg.(type) {
				case *OpenChannelMsg:
					_, err = ctrl.Open(ctx, db, msg)
				case *CloseChannelMsg:
					var outcome CloseOutcome
					outcome, err = ctrl.Close(ctx, db, msg)
					if err == nil && outcome != a.wantOutcome {
						t.Fatalf("action %d: want outcome %d, got %d", i, a.wantOutcome, outcome)
					}
				case *SettleDisputedMsg:
					err = ctrl.SettleDisputed(ctx, db, msg)
				case *ForceCloseMsg:
					err = ctrl.ForceClose(ctx, db, msg)
				default:
					t.Fatalf("action %d: unsupported message %T", i, a.msg)
				}
				if !a.wantErr.Is(err) {
					t.Logf("want: %+v", a.wantErr)
					t.Logf(" got: %+v", err)
					t.Fatalf("action %d (%T)", i, a.msg)
				}
			}
			for _, check := range tc.dbtests {
				check.test(t, db, ctrl, bank)
			}
		})
	}
}

func TestGetChannelDetailsOnMissingChannel(t *testing.T) {
	db := store.MemStore()
	ctrl := NewController(&canaltest.Auth{}, cash.NewController(cash.NewBucket()))

	pc, err := ctrl.GetChannelDetails(db, []byte("no such channel"))
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	if pc != nil {
		t.Fatalf("want no channel, got %+v", pc)
	}
}

// action describes a single operation submitted to the controller as part
// of a longer scenario.
type action struct {
	conditions []canal.Condition
	msg        canal.Msg
	height     int64
	wantErr    *errors.Error
	// wantOutcome applies to close actions that are expected to succeed.
	wantOutcome CloseOutcome
}

// dbcheck inspects the state left behind by a scenario.
type dbcheck interface {
	test(t *testing.T, db canal.KVStore, ctrl *Controller, bank *cash.BankController)
}

type wantBalance struct {
	addr canal.Address
	want int64
}

func (c wantBalance) test(t *testing.T, db canal.KVStore, ctrl *Controller, bank *cash.BankController) {
	t.Helper()
	got, err := bank.Balance(db, c.addr)
	if err != nil {
		t.Fatalf("balance of %s: %s", c.addr, err)
	}
	if got != c.want {
		t.Fatalf("balance of %s: want %d, got %d", c.addr, c.want, got)
	}
}

type wantChannel struct {
	id               []byte
	absent           bool
	status           Status
	senderBalance    int64
	recipientBalance int64
	nonce            int64
	// timeout is compared only when set.
	timeout int64
}

func (c wantChannel) test(t *testing.T, db canal.KVStore, ctrl *Controller, bank *cash.BankController) {
	t.Helper()
	pc, err := ctrl.GetChannelDetails(db, c.id)
	if err != nil {
		t.Fatalf("channel %X: %s", c.id, err)
	}
	if c.absent {
		if pc != nil {
			t.Fatalf("channel %X: want absent, got %+v", c.id, pc)
		}
		return
	}
	if pc == nil {
		t.Fatalf("channel %X: not found", c.id)
	}
	if pc.Status != c.status {
		t.Fatalf("channel %X: want status %s, got %s", c.id, c.status, pc.Status)
	}
	if pc.SenderBalance != c.senderBalance || pc.RecipientBalance != c.recipientBalance {
		t.Fatalf("channel %X: want balances %d/%d, got %d/%d",
			c.id, c.senderBalance, c.recipientBalance, pc.SenderBalance, pc.RecipientBalance)
	}
	if pc.Nonce != c.nonce {
		t.Fatalf("channel %X: want nonce %d, got %d", c.id, c.nonce, pc.Nonce)
	}
	if c.timeout != 0 && pc.Timeout != c.timeout {
		t.Fatalf("channel %X: want timeout %d, got %d", c.id, c.timeout, pc.Timeout)
	}
}

type wantLocked struct {
	total int64
}

func (c wantLocked) test(t *testing.T, db canal.KVStore, ctrl *Controller, bank *cash.BankController) {
	t.Helper()
	accumulated, recomputed, err := ctrl.AuditLockedFunds(db)
	if err != nil {
		t.Fatalf("audit locked funds: %s", err)
	}
	if accumulated != c.total {
		t.Fatalf("locked funds: want %d, got %d", c.total, accumulated)
	}
	if recomputed != accumulated {
		t.Fatalf("locked funds accumulator %d does not match recomputed %d",
			accumulated, recomputed)
	}
}

// signedClose builds a close message carrying the settlement signed with
// the given key.
func signedClose(key crypto.PrivateKey, s Settlement, memo string) *CloseChannelMsg {
	raw, err := (&s).Marshal()
	if err != nil {
		panic(err)
	}
	sig, err := key.Sign(raw)
	if err != nil {
		panic(err)
	}
	return &CloseChannelMsg{
		Settlement: &s,
		Signature:  sig,
		Memo:       memo,
	}
}
