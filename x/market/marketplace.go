package market

import (
	"encoding/json"

	weft "github.com/tokenvault/weft"
	"github.com/tokenvault/weft/errors"
	"github.com/tokenvault/weft/orm"
	"github.com/tokenvault/weft/x"
	"github.com/tokenvault/weft/x/collateral"
	"github.com/tokenvault/weft/x/nft"
)

// MarketCondition is the identity of the marketplace. Its address is the
// grantee of sale approvals.
var MarketCondition = weft.NewCondition("market", "escrow", []byte("main"))

// MarketAddress is the account tokens are approved to for sale.
func MarketAddress() weft.Address {
	return MarketCondition.Address()
}

// Marketplace creates listings out of approval notifications and counts
// the deposit slots they reserve.
type Marketplace struct {
	auth     x.Authenticator
	origin   string
	listings orm.ModelBucket
	deposits orm.ModelBucket
}

var (
	_ nft.ApprovalReceiver          = (*Marketplace)(nil)
	_ collateral.ReservationCounter = (*Marketplace)(nil)
)

// NewMarketplace returns a marketplace for tokens of the given origin
// ledger.
func NewMarketplace(auth x.Authenticator, origin string) *Marketplace {
	return &Marketplace{
		auth:     auth,
		origin:   origin,
		listings: NewListingBucket(),
		deposits: collateral.NewDepositBucket(),
	}
}

// OnApprove turns a sale approval into a listing. The notification must
// be genuine: issued by the ledger on behalf of the token owner, not
// self-submitted. The owner's deposit must cover one more listing slot.
func (m *Marketplace) OnApprove(ctx weft.Context, db weft.KVStore, n nft.ApprovalNotification) ([]weft.Event, error) {
	var terms SaleTerms
	if err := json.Unmarshal(n.Payload, &terms); err != nil {
		return nil, errors.Wrapf(ErrTerms, "payload: %s", err)
	}
	if err := terms.Price.Validate(); err != nil {
		return nil, errors.Wrap(ErrTerms, "price")
	}
	if !terms.Price.IsPositive() {
		return nil, errors.Wrap(ErrTerms, "price must be positive")
	}

	signer := x.MainSigner(ctx, m.auth)
	if signer == nil {
		return nil, errors.Wrap(ErrNotGenuine, "no signer")
	}
	caller := weft.Caller(ctx)
	if caller.Equals(signer.Address()) {
		return nil, errors.Wrap(ErrNotGenuine, "self-submitted notification")
	}
	if !signer.Address().Equals(n.Owner) {
		return nil, errors.Wrap(ErrNotGenuine, "signer is not the token owner")
	}

	conf, err := collateral.LoadConf(db)
	if err != nil {
		return nil, errors.Wrap(err, "load configuration")
	}
	count, err := m.CountReservations(db, n.Owner)
	if err != nil {
		return nil, err
	}
	key := ListingKey(m.origin, n.TokenID)
	// a replaced listing keeps its slot, only a fresh one needs another
	switch err := m.listings.Has(db, key); {
	case err == nil:
		count--
	case !errors.ErrNotFound.Is(err):
		return nil, errors.Wrap(err, "listing lookup")
	}
	slot, err := collateral.SlotCost(conf)
	if err != nil {
		return nil, err
	}
	required, err := slot.Multiply(count + 1)
	if err != nil {
		return nil, errors.Wrap(err, "required deposit")
	}
	available, err := collateral.Deposit(db, conf, n.Owner)
	if err != nil {
		return nil, errors.Wrap(err, "deposit balance")
	}
	if !available.IsGTE(required) {
		return nil, errors.Wrapf(collateral.ErrInsufficientCollateral, "requires %s, available %s", required, available)
	}

	// a repeated approval replaces the previous listing
	listing := Listing{
		Owner:      n.Owner,
		ApprovalID: n.ApprovalID,
		Origin:     m.origin,
		TokenID:    n.TokenID,
		Price:      terms.Price,
	}
	if _, err := m.listings.Put(db, key, &listing); err != nil {
		return nil, errors.Wrap(err, "store listing")
	}

	return []weft.Event{
		weft.NewEvent("listing",
			"key", string(key),
			"owner", n.Owner.String(),
			"price", terms.Price.String(),
		),
	}, nil
}

// CountReservations returns how many listings the account currently
// holds. Every listing reserves one deposit slot.
func (m *Marketplace) CountReservations(db weft.ReadOnlyKVStore, owner weft.Address) (int64, error) {
	keys, err := m.listings.ByIndex(db, "owner", owner, nil)
	if err != nil {
		return 0, errors.Wrap(err, "listings by owner")
	}
	return int64(len(keys)), nil
}
