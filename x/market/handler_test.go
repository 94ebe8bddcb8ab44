package market

import (
	"context"
	"fmt"
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
	"github.com/tokenvault/weft/x/nft"
)

var conf = collateral.Configuration{
	Owner:            wefttest.NewCondition().Address(),
	BytePrice:        coin.NewCoin(0, 10, "IOV"),
	BaseUnit:         coin.NewCoin(0, 1, "IOV"),
	ListingSlotBytes: 1000,
}

// one listing slot costs 10000 fractionals
var slotCost = coin.NewCoin(0, 10000, "IOV")

type router map[string]weft.Handler

func (r router) Handle(path string, h weft.Handler) { r[path] = h }

type noopScheduler struct{ n uint64 }

func (s *noopScheduler) Schedule(weft.KVStore, time.Time, weft.Address, []weft.Condition, weft.Msg) ([]byte, error) {
	s.n++
	return wefttest.SequenceID(s.n), nil
}

func (s *noopScheduler) Delete(weft.KVStore, []byte) error { return nil }

type fixture struct {
	db     weft.CacheableKVStore
	r      router
	ctrl   cash.Controller
	auth   *wefttest.CtxAuth
	market *Marketplace
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		db:   store.MemStore(),
		r:    router{},
		ctrl: cash.NewController(),
		auth: &wefttest.CtxAuth{Key: "auth"},
	}
	require.NoError(t, collateral.SaveConf(f.db, conf))

	f.market = NewMarketplace(f.auth, "birds")
	registry := nft.NewReceiverRegistry()
	registry.RegisterApprovalReceiver(MarketAddress(), f.market)

	nft.RegisterRoutes(f.r, f.auth, f.ctrl, &noopScheduler{}, registry)
	RegisterRoutes(f.r, f.auth, f.ctrl, f.market)
	collateral.RegisterRoutes(f.r, f.auth, f.ctrl, f.market)
	return f
}

func (f *fixture) ctx(cond weft.Condition, payment coin.Coin) weft.Context {
	ctx := f.auth.SetConditions(context.Background(), cond)
	ctx = weft.WithBlockTime(ctx, time.Unix(1600000000, 0))
	return weft.WithPayment(ctx, payment)
}

// notifyCtx mimics the execution context of the scheduled approval
// notification task: the approver's conditions, the ledger as caller.
func (f *fixture) notifyCtx(approver weft.Condition) weft.Context {
	ctx := f.auth.SetConditions(context.Background(), approver)
	ctx = weft.WithBlockTime(ctx, time.Unix(1600000300, 0))
	return weft.WithCaller(ctx, nft.LedgerCondition.Address())
}

func (f *fixture) mint(t *testing.T, owner weft.Condition, tokenID string, royalties []nft.Royalty) {
	t.Helper()
	require.NoError(t, f.ctrl.IssueCoins(f.db, owner.Address(), coin.NewCoin(1000, 0, "IOV")))
	tx := &wefttest.Tx{Msg: &nft.MintMsg{TokenID: tokenID, Royalties: royalties}}
	_, err := f.r["nft/mint"].Deliver(f.ctx(owner, coin.NewCoin(0, 50000, "IOV")), f.db, tx)
	require.NoError(t, err)
}

func (f *fixture) deposit(t *testing.T, owner weft.Condition, amount coin.Coin) {
	t.Helper()
	tx := &wefttest.Tx{Msg: &collateral.DepositMsg{}}
	_, err := f.r["collateral/deposit"].Deliver(f.ctx(owner, amount), f.db, tx)
	require.NoError(t, err)
}

// approveForSale walks the full listing path: the owner approves the
// marketplace with sale terms and the notification task is delivered.
func (f *fixture) approveForSale(t *testing.T, owner weft.Condition, tokenID string, price coin.Coin) error {
	t.Helper()
	payload := []byte(fmt.Sprintf(`{"price": {"whole": %d, "fractional": %d, "ticker": %q}}`, price.Whole, price.Fractional, price.Ticker))
	tx := &wefttest.Tx{Msg: &nft.ApproveMsg{TokenID: tokenID, Grantee: MarketAddress(), Payload: payload}}
	_, err := f.r["nft/approve"].Deliver(f.ctx(owner, conf.BaseUnit), f.db, tx)
	require.NoError(t, err)

	token, err := nft.GetToken(f.db, tokenID)
	require.NoError(t, err)
	grant, ok := token.Approved(MarketAddress())
	require.True(t, ok)

	notify := &nft.NotifyApprovalMsg{
		TokenID:    tokenID,
		Grantee:    MarketAddress(),
		Owner:      token.Owner,
		ApprovalID: grant.ApprovalID,
		Payload:    payload,
	}
	res, err := f.r["nft/notify_approval"].Deliver(f.notifyCtx(owner), f.db, &wefttest.Tx{Msg: notify})
	if err != nil {
		return err
	}
	// a receiver failure surfaces only in the task log
	if res.Log != "" {
		return fmt.Errorf("receiver: %s", res.Log)
	}
	return nil
}

func TestListingLifecycle(t *testing.T) {
	f := newFixture(t)
	alice := wefttest.NewCondition()

	f.mint(t, alice, "bird-1", nil)
	f.deposit(t, alice, slotCost)

	require.NoError(t, f.approveForSale(t, alice, "bird-1", coin.NewCoin(100, 0, "IOV")))

	var listing Listing
	require.NoError(t, f.market.listings.One(f.db, ListingKey("birds", "bird-1"), &listing))
	assert.True(t, listing.Owner.Equals(alice.Address()))
	assert.Equal(t, int64(0), listing.ApprovalID)
	assert.True(t, listing.Price.Equals(coin.NewCoin(100, 0, "IOV")))

	count, err := f.market.CountReservations(f.db, alice.Address())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// re-approving replaces the listing, last write wins
	require.NoError(t, f.approveForSale(t, alice, "bird-1", coin.NewCoin(80, 0, "IOV")))
	require.NoError(t, f.market.listings.One(f.db, ListingKey("birds", "bird-1"), &listing))
	assert.Equal(t, int64(1), listing.ApprovalID)
	assert.True(t, listing.Price.Equals(coin.NewCoin(80, 0, "IOV")))
	count, err = f.market.CountReservations(f.db, alice.Address())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestListingRequiresDeposit(t *testing.T) {
	f := newFixture(t)
	alice := wefttest.NewCondition()

	f.mint(t, alice, "bird-1", nil)
	f.mint(t, alice, "bird-2", nil)
	f.deposit(t, alice, slotCost)

	// the first listing fits the deposit, the second does not
	require.NoError(t, f.approveForSale(t, alice, "bird-1", coin.NewCoin(10, 0, "IOV")))
	err := f.approveForSale(t, alice, "bird-2", coin.NewCoin(10, 0, "IOV"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient collateral")

	// the failed notification never created a listing, the grant stays
	assert.True(t, errors.ErrNotFound.Is(f.market.listings.Has(f.db, ListingKey("birds", "bird-2"))))
	approved, err := nft.IsApproved(f.db, "bird-2", MarketAddress(), nil)
	require.NoError(t, err)
	assert.True(t, approved)

	// re-listing the already listed token reuses its slot, while a fresh
	// listing for another token still needs a second one
	require.NoError(t, f.approveForSale(t, alice, "bird-1", coin.NewCoin(8, 0, "IOV")))
	err = f.approveForSale(t, alice, "bird-2", coin.NewCoin(10, 0, "IOV"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient collateral")
}

func TestListingGenuineness(t *testing.T) {
	f := newFixture(t)
	alice := wefttest.NewCondition()
	mallory := wefttest.NewCondition()

	f.mint(t, alice, "bird-1", nil)
	f.deposit(t, alice, slotCost)

	payload := []byte(`{"price": {"whole": 10, "ticker": "IOV"}}`)
	notify := nft.ApprovalNotification{
		TokenID:    "bird-1",
		Owner:      alice.Address(),
		ApprovalID: 0,
		Payload:    payload,
	}

	// self-submitted: the caller equals the signer
	ctx := f.auth.SetConditions(context.Background(), alice)
	ctx = weft.WithCaller(ctx, alice.Address())
	_, err := f.market.OnApprove(ctx, f.db, notify)
	assert.True(t, ErrNotGenuine.Is(err))

	// signed by somebody who is not the token owner
	ctx = f.auth.SetConditions(context.Background(), mallory)
	ctx = weft.WithCaller(ctx, nft.LedgerCondition.Address())
	_, err = f.market.OnApprove(ctx, f.db, notify)
	assert.True(t, ErrNotGenuine.Is(err))

	// malformed terms
	ctx = f.notifyCtx(alice)
	_, err = f.market.OnApprove(ctx, f.db, nft.ApprovalNotification{
		TokenID: "bird-1",
		Owner:   alice.Address(),
		Payload: []byte("not json"),
	})
	assert.True(t, ErrTerms.Is(err))
}

func TestRemoveListing(t *testing.T) {
	f := newFixture(t)
	alice := wefttest.NewCondition()
	mallory := wefttest.NewCondition()

	f.mint(t, alice, "bird-1", nil)
	f.deposit(t, alice, slotCost)
	require.NoError(t, f.approveForSale(t, alice, "bird-1", coin.NewCoin(10, 0, "IOV")))

	key := string(ListingKey("birds", "bird-1"))

	// only the owner can remove
	tx := &wefttest.Tx{Msg: &RemoveListingMsg{ListingKey: key}}
	_, err := f.r[pathRemoveListing].Deliver(f.ctx(mallory, conf.BaseUnit), f.db, tx)
	assert.True(t, errors.ErrUnauthorized.Is(err))

	res, err := f.r[pathRemoveListing].Deliver(f.ctx(alice, conf.BaseUnit), f.db, tx)
	require.NoError(t, err)

	// the removed listing is returned
	var removed Listing
	require.NoError(t, removed.Unmarshal(res.Data))
	assert.Equal(t, "bird-1", removed.TokenID)

	// gone from the store and the indexes
	assert.True(t, errors.ErrNotFound.Is(f.market.listings.Has(f.db, []byte(key))))
	count, err := f.market.CountReservations(f.db, alice.Address())
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// removing again reports not found
	_, err = f.r[pathRemoveListing].Deliver(f.ctx(alice, conf.BaseUnit), f.db, tx)
	assert.True(t, errors.ErrNotFound.Is(err))
}

func TestBuy(t *testing.T) {
	f := newFixture(t)
	alice := wefttest.NewCondition()
	bob := wefttest.NewCondition()
	artist := wefttest.NewCondition()

	royalties := []nft.Royalty{{Account: artist.Address(), BasisPoints: 3000}}
	f.mint(t, alice, "bird-1", royalties)
	f.deposit(t, alice, slotCost)
	require.NoError(t, f.approveForSale(t, alice, "bird-1", coin.NewCoin(1000, 0, "IOV")))

	require.NoError(t, f.ctrl.IssueCoins(f.db, bob.Address(), coin.NewCoin(2000, 0, "IOV")))

	sellerBefore, err := f.ctrl.Balance(f.db, alice.Address())
	require.NoError(t, err)

	key := string(ListingKey("birds", "bird-1"))
	tx := &wefttest.Tx{Msg: &BuyMsg{ListingKey: key}}

	// payment below the price is rejected
	_, err = f.r[pathBuy].Deliver(f.ctx(bob, coin.NewCoin(999, 0, "IOV")), f.db, tx)
	assert.True(t, errors.ErrAmount.Is(err))

	_, err = f.r[pathBuy].Deliver(f.ctx(bob, coin.NewCoin(1000, 0, "IOV")), f.db, tx)
	require.NoError(t, err)

	// the token changed hands
	token, err := nft.GetToken(f.db, "bird-1")
	require.NoError(t, err)
	assert.True(t, token.Owner.Equals(bob.Address()))

	// 30% royalty to the artist, the rest to the seller
	artistBalance, err := f.ctrl.Balance(f.db, artist.Address())
	require.NoError(t, err)
	assert.True(t, artistBalance.Contains(coin.NewCoin(300, 0, "IOV")))

	sellerAfter, err := f.ctrl.Balance(f.db, alice.Address())
	require.NoError(t, err)
	gain, err := sellerAfter.Amount("IOV").Subtract(sellerBefore.Amount("IOV"))
	require.NoError(t, err)
	// 700 from the sale plus the refunded approval collateral
	assert.True(t, gain.IsGTE(coin.NewCoin(700, 0, "IOV")), "got %v", gain)

	// the listing is gone
	assert.True(t, errors.ErrNotFound.Is(f.market.listings.Has(f.db, []byte(key))))
}

func TestBuyStaleApproval(t *testing.T) {
	f := newFixture(t)
	alice := wefttest.NewCondition()
	bob := wefttest.NewCondition()
	carol := wefttest.NewCondition()

	f.mint(t, alice, "bird-1", nil)
	f.deposit(t, alice, slotCost)
	require.NoError(t, f.approveForSale(t, alice, "bird-1", coin.NewCoin(10, 0, "IOV")))

	// the token moves outside the market, clearing all approvals
	transferTx := &wefttest.Tx{Msg: &nft.TransferMsg{TokenID: "bird-1", Receiver: carol.Address()}}
	_, err := f.r["nft/transfer"].Deliver(f.ctx(alice, conf.BaseUnit), f.db, transferTx)
	require.NoError(t, err)

	require.NoError(t, f.ctrl.IssueCoins(f.db, bob.Address(), coin.NewCoin(100, 0, "IOV")))

	key := string(ListingKey("birds", "bird-1"))
	tx := &wefttest.Tx{Msg: &BuyMsg{ListingKey: key}}
	_, err = f.r[pathBuy].Deliver(f.ctx(bob, coin.NewCoin(10, 0, "IOV")), f.db, tx)
	assert.True(t, errors.ErrUnauthorized.Is(err))

	// the purchase changed nothing: carol keeps the token, the stale
	// listing stays for explicit removal
	token, err := nft.GetToken(f.db, "bird-1")
	require.NoError(t, err)
	assert.True(t, token.Owner.Equals(carol.Address()))
	assert.NoError(t, f.market.listings.Has(f.db, []byte(key)))
}

func TestWithdrawRespectsListings(t *testing.T) {
	f := newFixture(t)
	alice := wefttest.NewCondition()

	f.mint(t, alice, "bird-1", nil)
	f.deposit(t, alice, coin.NewCoin(0, 20000, "IOV"))
	require.NoError(t, f.approveForSale(t, alice, "bird-1", coin.NewCoin(10, 0, "IOV")))

	// one slot stays locked by the active listing
	tx := &wefttest.Tx{Msg: &collateral.WithdrawMsg{}}
	_, err := f.r["collateral/withdraw"].Deliver(f.ctx(alice, conf.BaseUnit), f.db, tx)
	require.NoError(t, err)

	balance, err := collateral.Deposit(f.db, conf, alice.Address())
	require.NoError(t, err)
	assert.True(t, balance.Equals(slotCost), "got %v", balance)

	// with the balance fully reserved, another withdraw is a no-op
	_, err = f.r["collateral/withdraw"].Deliver(f.ctx(alice, conf.BaseUnit), f.db, tx)
	require.NoError(t, err)
	balance, err = collateral.Deposit(f.db, conf, alice.Address())
	require.NoError(t, err)
	assert.True(t, balance.Equals(slotCost))
}
