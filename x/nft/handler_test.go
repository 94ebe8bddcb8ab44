package nft

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	weft "github.com/tokenvault/weft"
	"github.com/tokenvault/weft/coin"
	"github.com/tokenvault/weft/errors"
	"github.com/tokenvault/weft/store"
	"github.com/tokenvault/weft/wefttest"
	"github.com/tokenvault/weft/x/cash"
	"github.com/tokenvault/weft/x/collateral"
)

var conf = collateral.Configuration{
	Owner:            wefttest.NewCondition().Address(),
	BytePrice:        coin.NewCoin(0, 10, "IOV"),
	BaseUnit:         coin.NewCoin(0, 1, "IOV"),
	ListingSlotBytes: 1000,
}

type router map[string]weft.Handler

func (r router) Handle(path string, h weft.Handler) { r[path] = h }

// recordingScheduler captures scheduled tasks instead of queueing them.
type recordingScheduler struct {
	tasks []scheduledTask
}

type scheduledTask struct {
	runAt  time.Time
	caller weft.Address
	conds  []weft.Condition
	msg    weft.Msg
}

func (s *recordingScheduler) Schedule(db weft.KVStore, runAt time.Time, caller weft.Address, conds []weft.Condition, msg weft.Msg) ([]byte, error) {
	s.tasks = append(s.tasks, scheduledTask{runAt: runAt, caller: caller, conds: conds, msg: msg})
	return wefttest.SequenceID(uint64(len(s.tasks))), nil
}

func (s *recordingScheduler) Delete(db weft.KVStore, taskID []byte) error {
	return nil
}

type fixture struct {
	db       weft.CacheableKVStore
	r        router
	ctrl     cash.Controller
	sched    *recordingScheduler
	registry *ReceiverRegistry
	auth     *wefttest.CtxAuth
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		db:       store.MemStore(),
		r:        router{},
		ctrl:     cash.NewController(),
		sched:    &recordingScheduler{},
		registry: NewReceiverRegistry(),
		auth:     &wefttest.CtxAuth{Key: "auth"},
	}
	require.NoError(t, collateral.SaveConf(f.db, conf))
	RegisterRoutes(f.r, f.auth, f.ctrl, f.sched, f.registry)
	return f
}

func (f *fixture) fund(t *testing.T, addr weft.Address) {
	t.Helper()
	require.NoError(t, f.ctrl.IssueCoins(f.db, addr, coin.NewCoin(100, 0, "IOV")))
}

func (f *fixture) ctx(cond weft.Condition, payment coin.Coin) weft.Context {
	ctx := f.auth.SetConditions(context.Background(), cond)
	ctx = weft.WithBlockTime(ctx, time.Unix(1600000000, 0))
	return weft.WithPayment(ctx, payment)
}

// resolveCtx builds the execution context of a scheduled resolution task.
func (f *fixture) resolveCtx(transferID []byte) weft.Context {
	ctx := f.auth.SetConditions(context.Background(), resolutionCondition(transferID))
	ctx = weft.WithBlockTime(ctx, time.Unix(1600000600, 0))
	return weft.WithCaller(ctx, LedgerCondition.Address())
}

func (f *fixture) mint(t *testing.T, owner weft.Condition, tokenID string, royalties []Royalty) {
	t.Helper()
	ctx := f.ctx(owner, coin.NewCoin(0, 10000, "IOV"))
	tx := &wefttest.Tx{Msg: &MintMsg{TokenID: tokenID, Metadata: "warbler", Royalties: royalties}}
	_, err := f.r[pathMint].Deliver(ctx, f.db, tx)
	require.NoError(t, err)
}

func (f *fixture) approve(t *testing.T, owner weft.Condition, tokenID string, grantee weft.Address, payload []byte) {
	t.Helper()
	tx := &wefttest.Tx{Msg: &ApproveMsg{TokenID: tokenID, Grantee: grantee, Payload: payload}}
	_, err := f.r[pathApprove].Deliver(f.ctx(owner, conf.BaseUnit), f.db, tx)
	require.NoError(t, err)
}

func TestMint(t *testing.T) {
	f := newFixture(t)
	alice := wefttest.NewCondition()
	f.fund(t, alice.Address())

	f.mint(t, alice, "bird-1", nil)

	token, err := GetToken(f.db, "bird-1")
	require.NoError(t, err)
	assert.True(t, token.Owner.Equals(alice.Address()))
	assert.Equal(t, "warbler", token.Metadata)

	// storage charge went to the pool
	pool, err := f.ctrl.Balance(f.db, collateral.PoolAddress())
	require.NoError(t, err)
	assert.True(t, pool.IsPositive())

	owned, err := OwnedTokens(f.db, alice.Address())
	require.NoError(t, err)
	assert.Equal(t, []string{"bird-1"}, owned)

	// the same ID cannot be minted twice
	tx := &wefttest.Tx{Msg: &MintMsg{TokenID: "bird-1"}}
	_, err = f.r[pathMint].Deliver(f.ctx(alice, coin.NewCoin(0, 10000, "IOV")), f.db, tx)
	assert.True(t, errors.ErrDuplicate.Is(err))
}

func TestMintChargesExactly(t *testing.T) {
	f := newFixture(t)
	alice := wefttest.NewCondition()
	f.fund(t, alice.Address())

	// not enough payment attached for the stored bytes
	tx := &wefttest.Tx{Msg: &MintMsg{TokenID: "bird-1", Metadata: "warbler"}}
	_, err := f.r[pathMint].Deliver(f.ctx(alice, coin.NewCoin(0, 1, "IOV")), f.db, tx)
	assert.True(t, collateral.ErrInsufficientCollateral.Is(err))
}

func TestMintRoyaltyValidation(t *testing.T) {
	f := newFixture(t)
	alice := wefttest.NewCondition()
	f.fund(t, alice.Address())

	over := []Royalty{
		{Account: wefttest.NewCondition().Address(), BasisPoints: 6000},
		{Account: wefttest.NewCondition().Address(), BasisPoints: 5000},
	}
	tx := &wefttest.Tx{Msg: &MintMsg{TokenID: "bird-1", Royalties: over}}
	_, err := f.r[pathMint].Deliver(f.ctx(alice, coin.NewCoin(0, 10000, "IOV")), f.db, tx)
	assert.True(t, ErrRoyalties.Is(err))

	var many []Royalty
	for i := 0; i < 7; i++ {
		many = append(many, Royalty{Account: wefttest.NewCondition().Address(), BasisPoints: 10})
	}
	tx = &wefttest.Tx{Msg: &MintMsg{TokenID: "bird-1", Royalties: many}}
	_, err = f.r[pathMint].Deliver(f.ctx(alice, coin.NewCoin(0, 10000, "IOV")), f.db, tx)
	assert.True(t, ErrRoyalties.Is(err))
}

func TestApprove(t *testing.T) {
	f := newFixture(t)
	alice := wefttest.NewCondition()
	market := wefttest.NewCondition()
	other := wefttest.NewCondition()
	f.fund(t, alice.Address())

	f.mint(t, alice, "bird-1", nil)

	// only the owner can approve
	tx := &wefttest.Tx{Msg: &ApproveMsg{TokenID: "bird-1", Grantee: market.Address()}}
	_, err := f.r[pathApprove].Deliver(f.ctx(other, conf.BaseUnit), f.db, tx)
	assert.True(t, errors.ErrUnauthorized.Is(err))

	// requires exactly one base unit
	_, err = f.r[pathApprove].Deliver(f.ctx(alice, coin.NewCoin(0, 2, "IOV")), f.db, tx)
	assert.True(t, collateral.ErrPayment.Is(err))

	balanceBefore, err := f.ctrl.Balance(f.db, alice.Address())
	require.NoError(t, err)

	f.approve(t, alice, "bird-1", market.Address(), nil)

	token, err := GetToken(f.db, "bird-1")
	require.NoError(t, err)
	grant, ok := token.Approved(market.Address())
	require.True(t, ok)
	assert.Equal(t, int64(0), grant.ApprovalID)
	assert.Equal(t, int64(1), token.NextApprovalID)

	// the new approval entry was paid from the wallet:
	// (20 address + 12 fixed) bytes * 10 per byte
	balanceAfter, err := f.ctrl.Balance(f.db, alice.Address())
	require.NoError(t, err)
	diff, err := balanceBefore.Amount("IOV").Subtract(balanceAfter.Amount("IOV"))
	require.NoError(t, err)
	assert.True(t, diff.Equals(coin.NewCoin(0, 320, "IOV")), "got %v", diff)

	// a re-approval bumps the identifier but charges nothing
	f.approve(t, alice, "bird-1", market.Address(), nil)
	token, err = GetToken(f.db, "bird-1")
	require.NoError(t, err)
	grant, ok = token.Approved(market.Address())
	require.True(t, ok)
	assert.Equal(t, int64(1), grant.ApprovalID)
	assert.Equal(t, int64(2), token.NextApprovalID)
	assert.Len(t, token.Approvals, 1)

	balanceFinal, err := f.ctrl.Balance(f.db, alice.Address())
	require.NoError(t, err)
	assert.True(t, balanceAfter.Equals(balanceFinal))

	// no payload, no notification
	assert.Empty(t, f.sched.tasks)
}

func TestApproveWithPayloadSchedulesNotification(t *testing.T) {
	f := newFixture(t)
	alice := wefttest.NewCondition()
	market := wefttest.NewCondition()
	f.fund(t, alice.Address())

	f.mint(t, alice, "bird-1", nil)
	f.approve(t, alice, "bird-1", market.Address(), []byte(`{"price":"10 IOV"}`))

	require.Len(t, f.sched.tasks, 1)
	task := f.sched.tasks[0]
	assert.True(t, task.caller.Equals(LedgerCondition.Address()))
	require.Len(t, task.conds, 1)
	assert.True(t, task.conds[0].Equals(alice))

	notify, ok := task.msg.(*NotifyApprovalMsg)
	require.True(t, ok)
	assert.Equal(t, "bird-1", notify.TokenID)
	assert.True(t, notify.Grantee.Equals(market.Address()))
	assert.True(t, notify.Owner.Equals(alice.Address()))
	assert.Equal(t, int64(0), notify.ApprovalID)
}

func TestRevoke(t *testing.T) {
	f := newFixture(t)
	alice := wefttest.NewCondition()
	market := wefttest.NewCondition()
	f.fund(t, alice.Address())

	f.mint(t, alice, "bird-1", nil)
	f.approve(t, alice, "bird-1", market.Address(), nil)

	balanceBefore, err := f.ctrl.Balance(f.db, alice.Address())
	require.NoError(t, err)

	tx := &wefttest.Tx{Msg: &RevokeMsg{TokenID: "bird-1", Grantee: market.Address()}}
	_, err = f.r[pathRevoke].Deliver(f.ctx(alice, conf.BaseUnit), f.db, tx)
	require.NoError(t, err)

	token, err := GetToken(f.db, "bird-1")
	require.NoError(t, err)
	assert.Empty(t, token.Approvals)
	// revoking does not reset the identifier counter
	assert.Equal(t, int64(1), token.NextApprovalID)

	// the approval collateral came back
	balanceAfter, err := f.ctrl.Balance(f.db, alice.Address())
	require.NoError(t, err)
	diff, err := balanceAfter.Amount("IOV").Subtract(balanceBefore.Amount("IOV"))
	require.NoError(t, err)
	assert.True(t, diff.Equals(coin.NewCoin(0, 320, "IOV")), "got %v", diff)

	// revoking an absent grantee is a no-op
	_, err = f.r[pathRevoke].Deliver(f.ctx(alice, conf.BaseUnit), f.db, tx)
	require.NoError(t, err)
}

func TestRevokeAll(t *testing.T) {
	f := newFixture(t)
	alice := wefttest.NewCondition()
	f.fund(t, alice.Address())

	f.mint(t, alice, "bird-1", nil)
	f.approve(t, alice, "bird-1", wefttest.NewCondition().Address(), nil)
	f.approve(t, alice, "bird-1", wefttest.NewCondition().Address(), nil)

	balanceBefore, err := f.ctrl.Balance(f.db, alice.Address())
	require.NoError(t, err)

	tx := &wefttest.Tx{Msg: &RevokeAllMsg{TokenID: "bird-1"}}
	_, err = f.r[pathRevokeAll].Deliver(f.ctx(alice, conf.BaseUnit), f.db, tx)
	require.NoError(t, err)

	token, err := GetToken(f.db, "bird-1")
	require.NoError(t, err)
	assert.Empty(t, token.Approvals)

	balanceAfter, err := f.ctrl.Balance(f.db, alice.Address())
	require.NoError(t, err)
	diff, err := balanceAfter.Amount("IOV").Subtract(balanceBefore.Amount("IOV"))
	require.NoError(t, err)
	assert.True(t, diff.Equals(coin.NewCoin(0, 640, "IOV")), "got %v", diff)
}

func TestTransfer(t *testing.T) {
	f := newFixture(t)
	alice := wefttest.NewCondition()
	bob := wefttest.NewCondition()
	market := wefttest.NewCondition()
	f.fund(t, alice.Address())

	f.mint(t, alice, "bird-1", nil)
	f.approve(t, alice, "bird-1", market.Address(), nil)

	// transfer to self is rejected
	tx := &wefttest.Tx{Msg: &TransferMsg{TokenID: "bird-1", Receiver: alice.Address()}}
	_, err := f.r[pathTransfer].Deliver(f.ctx(alice, conf.BaseUnit), f.db, tx)
	assert.True(t, ErrSelfTransfer.Is(err))

	balanceBefore, err := f.ctrl.Balance(f.db, alice.Address())
	require.NoError(t, err)

	tx = &wefttest.Tx{Msg: &TransferMsg{TokenID: "bird-1", Receiver: bob.Address()}}
	_, err = f.r[pathTransfer].Deliver(f.ctx(alice, conf.BaseUnit), f.db, tx)
	require.NoError(t, err)

	token, err := GetToken(f.db, "bird-1")
	require.NoError(t, err)
	assert.True(t, token.Owner.Equals(bob.Address()))
	// the record starts over: no approvals, counter at zero
	assert.Empty(t, token.Approvals)
	assert.Equal(t, int64(0), token.NextApprovalID)

	// the owner index follows
	owned, err := OwnedTokens(f.db, bob.Address())
	require.NoError(t, err)
	assert.Equal(t, []string{"bird-1"}, owned)
	owned, err = OwnedTokens(f.db, alice.Address())
	require.NoError(t, err)
	assert.Empty(t, owned)

	// the cleared approval refunds the previous owner
	balanceAfter, err := f.ctrl.Balance(f.db, alice.Address())
	require.NoError(t, err)
	diff, err := balanceAfter.Amount("IOV").Subtract(balanceBefore.Amount("IOV"))
	require.NoError(t, err)
	assert.True(t, diff.Equals(coin.NewCoin(0, 320, "IOV")), "got %v", diff)
}

func TestTransferByApproved(t *testing.T) {
	f := newFixture(t)
	alice := wefttest.NewCondition()
	bob := wefttest.NewCondition()
	market := wefttest.NewCondition()
	intruder := wefttest.NewCondition()
	f.fund(t, alice.Address())

	f.mint(t, alice, "bird-1", nil)
	f.approve(t, alice, "bird-1", market.Address(), nil)

	// a stranger cannot transfer
	tx := &wefttest.Tx{Msg: &TransferMsg{TokenID: "bird-1", Receiver: bob.Address()}}
	_, err := f.r[pathTransfer].Deliver(f.ctx(intruder, conf.BaseUnit), f.db, tx)
	assert.True(t, errors.ErrUnauthorized.Is(err))

	// a pinned approval id must match the stored one
	stale := int64(7)
	tx = &wefttest.Tx{Msg: &TransferMsg{TokenID: "bird-1", Receiver: bob.Address(), ApprovalID: &stale}}
	_, err = f.r[pathTransfer].Deliver(f.ctx(market, conf.BaseUnit), f.db, tx)
	assert.True(t, errors.ErrUnauthorized.Is(err))

	current := int64(0)
	tx = &wefttest.Tx{Msg: &TransferMsg{TokenID: "bird-1", Receiver: bob.Address(), ApprovalID: &current}}
	_, err = f.r[pathTransfer].Deliver(f.ctx(market, conf.BaseUnit), f.db, tx)
	require.NoError(t, err)

	token, err := GetToken(f.db, "bird-1")
	require.NoError(t, err)
	assert.True(t, token.Owner.Equals(bob.Address()))
}

// acceptingReceiver keeps every token offered.
type acceptingReceiver struct{ notified []TransferNotification }

func (r *acceptingReceiver) OnTransfer(ctx weft.Context, db weft.KVStore, n TransferNotification) (bool, error) {
	r.notified = append(r.notified, n)
	return true, nil
}

// rejectingReceiver declines every token offered.
type rejectingReceiver struct{}

func (rejectingReceiver) OnTransfer(weft.Context, weft.KVStore, TransferNotification) (bool, error) {
	return false, nil
}

// failingReceiver errors instead of answering.
type failingReceiver struct{}

func (failingReceiver) OnTransfer(weft.Context, weft.KVStore, TransferNotification) (bool, error) {
	return true, errors.Wrap(errors.ErrHuman, "boom")
}

func (f *fixture) transferAndCall(t *testing.T, sender weft.Condition, tokenID string, receiver weft.Address) []byte {
	t.Helper()
	tx := &wefttest.Tx{Msg: &TransferAndCallMsg{TokenID: tokenID, Receiver: receiver, Payload: []byte("hi")}}
	res, err := f.r[pathTransferAndCall].Deliver(f.ctx(sender, conf.BaseUnit), f.db, tx)
	require.NoError(t, err)
	return res.Data
}

func (f *fixture) resolve(t *testing.T, transferID []byte) *weft.DeliverResult {
	t.Helper()
	tx := &wefttest.Tx{Msg: &ResolveTransferMsg{TransferID: transferID}}
	res, err := f.r[pathResolveTransfer].Deliver(f.resolveCtx(transferID), f.db, tx)
	require.NoError(t, err)
	return res
}

func TestTransferAndCallAccepted(t *testing.T) {
	f := newFixture(t)
	alice := wefttest.NewCondition()
	vault := wefttest.NewCondition()
	market := wefttest.NewCondition()
	f.fund(t, alice.Address())

	rcv := &acceptingReceiver{}
	f.registry.RegisterReceiver(vault.Address(), rcv)

	f.mint(t, alice, "bird-1", nil)
	f.approve(t, alice, "bird-1", market.Address(), nil)

	balanceBefore, err := f.ctrl.Balance(f.db, alice.Address())
	require.NoError(t, err)

	transferID := f.transferAndCall(t, alice, "bird-1", vault.Address())

	// the token moved immediately
	token, err := GetToken(f.db, "bird-1")
	require.NoError(t, err)
	assert.True(t, token.Owner.Equals(vault.Address()))

	// the resolution task was scheduled under the per-transfer authority
	require.Len(t, f.sched.tasks, 1)
	require.Len(t, f.sched.tasks[0].conds, 1)
	assert.True(t, f.sched.tasks[0].conds[0].Equals(resolutionCondition(transferID)))

	f.resolve(t, transferID)

	require.Len(t, rcv.notified, 1)
	assert.Equal(t, "bird-1", rcv.notified[0].TokenID)
	assert.True(t, rcv.notified[0].PreviousOwner.Equals(alice.Address()))

	var pt PendingTransfer
	require.NoError(t, NewPendingTransferBucket().One(f.db, transferID, &pt))
	assert.Equal(t, TransferCommitted, pt.State)

	// the carried approval was refunded to the previous owner
	balanceAfter, err := f.ctrl.Balance(f.db, alice.Address())
	require.NoError(t, err)
	diff, err := balanceAfter.Amount("IOV").Subtract(balanceBefore.Amount("IOV"))
	require.NoError(t, err)
	assert.True(t, diff.Equals(coin.NewCoin(0, 320, "IOV")), "got %v", diff)

	// a second resolution is rejected
	tx := &wefttest.Tx{Msg: &ResolveTransferMsg{TransferID: transferID}}
	_, err = f.r[pathResolveTransfer].Deliver(f.resolveCtx(transferID), f.db, tx)
	assert.True(t, errors.ErrState.Is(err))
}

func TestTransferAndCallRejectedRollsBack(t *testing.T) {
	f := newFixture(t)
	alice := wefttest.NewCondition()
	vault := wefttest.NewCondition()
	market := wefttest.NewCondition()
	f.fund(t, alice.Address())
	f.fund(t, vault.Address())

	f.registry.RegisterReceiver(vault.Address(), rejectingReceiver{})

	f.mint(t, alice, "bird-1", nil)
	f.approve(t, alice, "bird-1", market.Address(), nil)

	transferID := f.transferAndCall(t, alice, "bird-1", vault.Address())

	// while holding, the receiver approves somebody else
	other := wefttest.NewCondition()
	f.approve(t, vault, "bird-1", other.Address(), nil)

	f.resolve(t, transferID)

	// the token is back with the previous approval set and counter
	token, err := GetToken(f.db, "bird-1")
	require.NoError(t, err)
	assert.True(t, token.Owner.Equals(alice.Address()))
	require.Len(t, token.Approvals, 1)
	assert.True(t, token.Approvals[0].Account.Equals(market.Address()))
	assert.Equal(t, int64(0), token.Approvals[0].ApprovalID)
	assert.Equal(t, int64(1), token.NextApprovalID)

	// the owner index is consistent again
	owned, err := OwnedTokens(f.db, alice.Address())
	require.NoError(t, err)
	assert.Equal(t, []string{"bird-1"}, owned)
	owned, err = OwnedTokens(f.db, vault.Address())
	require.NoError(t, err)
	assert.Empty(t, owned)

	var pt PendingTransfer
	require.NoError(t, NewPendingTransferBucket().One(f.db, transferID, &pt))
	assert.Equal(t, TransferRolledBack, pt.State)
}

func TestTransferAndCallRejectedButMovedOn(t *testing.T) {
	f := newFixture(t)
	alice := wefttest.NewCondition()
	vault := wefttest.NewCondition()
	market := wefttest.NewCondition()
	carol := wefttest.NewCondition()
	f.fund(t, alice.Address())

	f.registry.RegisterReceiver(vault.Address(), rejectingReceiver{})

	f.mint(t, alice, "bird-1", nil)
	f.approve(t, alice, "bird-1", market.Address(), nil)

	balanceBefore, err := f.ctrl.Balance(f.db, alice.Address())
	require.NoError(t, err)

	transferID := f.transferAndCall(t, alice, "bird-1", vault.Address())

	// the receiver passes the token on before the resolution runs
	tx := &wefttest.Tx{Msg: &TransferMsg{TokenID: "bird-1", Receiver: carol.Address()}}
	_, err = f.r[pathTransfer].Deliver(f.ctx(vault, conf.BaseUnit), f.db, tx)
	require.NoError(t, err)

	f.resolve(t, transferID)

	// no rollback: the current owner keeps the token
	token, err := GetToken(f.db, "bird-1")
	require.NoError(t, err)
	assert.True(t, token.Owner.Equals(carol.Address()))

	var pt PendingTransfer
	require.NoError(t, NewPendingTransferBucket().One(f.db, transferID, &pt))
	assert.Equal(t, TransferCommitted, pt.State)

	// the stranded approval collateral still comes back
	balanceAfter, err := f.ctrl.Balance(f.db, alice.Address())
	require.NoError(t, err)
	diff, err := balanceAfter.Amount("IOV").Subtract(balanceBefore.Amount("IOV"))
	require.NoError(t, err)
	assert.True(t, diff.Equals(coin.NewCoin(0, 320, "IOV")), "got %v", diff)
}

func TestTransferAndCallFailClosed(t *testing.T) {
	cases := map[string]struct {
		register func(f *fixture, addr weft.Address)
	}{
		"unknown receiver": {
			register: func(*fixture, weft.Address) {},
		},
		"failing receiver": {
			register: func(f *fixture, addr weft.Address) {
				f.registry.RegisterReceiver(addr, failingReceiver{})
			},
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			f := newFixture(t)
			alice := wefttest.NewCondition()
			vault := wefttest.NewCondition()
			f.fund(t, alice.Address())
			tc.register(f, vault.Address())

			f.mint(t, alice, "bird-1", nil)
			transferID := f.transferAndCall(t, alice, "bird-1", vault.Address())
			f.resolve(t, transferID)

			// treated as a rejection, the token goes back
			token, err := GetToken(f.db, "bird-1")
			require.NoError(t, err)
			assert.True(t, token.Owner.Equals(alice.Address()))
		})
	}
}

func TestResolveRequiresAuthority(t *testing.T) {
	f := newFixture(t)
	alice := wefttest.NewCondition()
	vault := wefttest.NewCondition()
	f.fund(t, alice.Address())

	f.mint(t, alice, "bird-1", nil)
	transferID := f.transferAndCall(t, alice, "bird-1", vault.Address())

	// a regular signer cannot resolve, not even the sender
	tx := &wefttest.Tx{Msg: &ResolveTransferMsg{TransferID: transferID}}
	_, err := f.r[pathResolveTransfer].Deliver(f.ctx(alice, coin.Coin{}), f.db, tx)
	assert.True(t, errors.ErrUnauthorized.Is(err))
}

func TestNotifyApprovalGating(t *testing.T) {
	f := newFixture(t)
	alice := wefttest.NewCondition()
	market := wefttest.NewCondition()

	msg := &NotifyApprovalMsg{
		TokenID:    "bird-1",
		Grantee:    market.Address(),
		Owner:      alice.Address(),
		ApprovalID: 0,
	}

	// without the ledger as the caller the message is rejected
	ctx := f.auth.SetConditions(context.Background(), alice)
	_, err := f.r[pathNotifyApproval].Deliver(ctx, f.db, &wefttest.Tx{Msg: msg})
	assert.True(t, errors.ErrUnauthorized.Is(err))

	// with it, an unregistered grantee is a silent no-op
	ctx = weft.WithCaller(ctx, LedgerCondition.Address())
	res, err := f.r[pathNotifyApproval].Deliver(ctx, f.db, &wefttest.Tx{Msg: msg})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Log)
}

func TestPayout(t *testing.T) {
	seller := wefttest.NewCondition().Address()
	artist := wefttest.NewCondition().Address()
	fund := wefttest.NewCondition().Address()

	royalties := []Royalty{
		{Account: artist, BasisPoints: 3000},
		{Account: fund, BasisPoints: 500},
	}

	shares, err := Payout(royalties, coin.NewCoin(1000, 0, "IOV"), seller)
	require.NoError(t, err)
	require.Len(t, shares, 3)
	assert.True(t, shares[0].Account.Equals(artist))
	assert.True(t, shares[0].Amount.Equals(coin.NewCoin(300, 0, "IOV")))
	assert.True(t, shares[1].Account.Equals(fund))
	assert.True(t, shares[1].Amount.Equals(coin.NewCoin(50, 0, "IOV")))
	assert.True(t, shares[2].Account.Equals(seller))
	assert.True(t, shares[2].Amount.Equals(coin.NewCoin(650, 0, "IOV")))

	// without royalties everything goes to the seller
	shares, err = Payout(nil, coin.NewCoin(5, 0, "IOV"), seller)
	require.NoError(t, err)
	require.Len(t, shares, 1)
	assert.True(t, shares[0].Amount.Equals(coin.NewCoin(5, 0, "IOV")))
}
