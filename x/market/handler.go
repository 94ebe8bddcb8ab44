package market

import (
	weft "github.com/tokenvault/weft"
	"github.com/tokenvault/weft/errors"
	"github.com/tokenvault/weft/orm"
	"github.com/tokenvault/weft/x"
	"github.com/tokenvault/weft/x/cash"
	"github.com/tokenvault/weft/x/collateral"
	"github.com/tokenvault/weft/x/nft"
)

const (
	removeCost int64 = 200
	buyCost    int64 = 700
)

// RegisterRoutes will instantiate and register all handlers in this
// package.
func RegisterRoutes(r weft.Registry, auth x.Authenticator, ctrl cash.Controller, m *Marketplace) {
	r.Handle(pathRemoveListing, &removeListingHandler{auth: auth, listings: m.listings})
	r.Handle(pathBuy, &buyHandler{auth: auth, ctrl: ctrl, listings: m.listings})
}

type removeListingHandler struct {
	auth     x.Authenticator
	listings orm.ModelBucket
}

var _ weft.Handler = (*removeListingHandler)(nil)

func (h *removeListingHandler) Check(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*weft.CheckResult, error) {
	if _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weft.CheckResult{GasAllocated: removeCost}, nil
}

func (h *removeListingHandler) Deliver(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*weft.DeliverResult, error) {
	msg, listing, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}

	if err := h.listings.Delete(db, []byte(msg.ListingKey)); err != nil {
		return nil, errors.Wrap(err, "delete listing")
	}

	// hand the removed listing back to the caller
	raw, err := listing.Marshal()
	if err != nil {
		return nil, errors.Wrap(err, "marshal listing")
	}
	return &weft.DeliverResult{
		Data: raw,
		Events: []weft.Event{
			weft.NewEvent("delisting", "key", msg.ListingKey),
		},
	}, nil
}

func (h *removeListingHandler) validate(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*RemoveListingMsg, *Listing, error) {
	var msg RemoveListingMsg
	if err := weft.LoadMsg(tx, &msg); err != nil {
		return nil, nil, errors.Wrap(err, "load msg")
	}
	conf, err := collateral.LoadConf(db)
	if err != nil {
		return nil, nil, errors.Wrap(err, "load configuration")
	}
	if err := collateral.RequireBaseUnit(ctx, conf); err != nil {
		return nil, nil, err
	}
	var listing Listing
	if err := h.listings.One(db, []byte(msg.ListingKey), &listing); err != nil {
		return nil, nil, errors.Wrapf(err, "listing %q", msg.ListingKey)
	}
	if !h.auth.HasAddress(ctx, listing.Owner) {
		return nil, nil, errors.Wrap(errors.ErrUnauthorized, "only the listing owner can remove it")
	}
	return &msg, &listing, nil
}

type buyHandler struct {
	auth     x.Authenticator
	ctrl     cash.Controller
	listings orm.ModelBucket
}

var _ weft.Handler = (*buyHandler)(nil)

func (h *buyHandler) Check(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*weft.CheckResult, error) {
	if _, _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weft.CheckResult{GasAllocated: buyCost}, nil
}

func (h *buyHandler) Deliver(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*weft.DeliverResult, error) {
	msg, listing, buyer, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	conf, err := collateral.LoadConf(db)
	if err != nil {
		return nil, errors.Wrap(err, "load configuration")
	}

	token, err := nft.GetToken(db, listing.TokenID)
	if err != nil {
		return nil, err
	}

	// moving the token first enforces the approval staleness check
	// before any funds change hands
	if err := nft.TransferUnderApproval(db, h.ctrl, conf, listing.TokenID, MarketAddress(), listing.ApprovalID, buyer.Address()); err != nil {
		return nil, err
	}

	shares, err := nft.Payout(token.Royalties, listing.Price, listing.Owner)
	if err != nil {
		return nil, err
	}
	for _, share := range shares {
		if err := h.ctrl.MoveCoins(db, buyer.Address(), share.Account, share.Amount); err != nil {
			return nil, errors.Wrap(err, "payout")
		}
	}

	if err := h.listings.Delete(db, []byte(msg.ListingKey)); err != nil {
		return nil, errors.Wrap(err, "delete listing")
	}

	return &weft.DeliverResult{
		Events: []weft.Event{
			weft.NewEvent("sale",
				"key", msg.ListingKey,
				"buyer", buyer.Address().String(),
				"price", listing.Price.String(),
			),
		},
	}, nil
}

func (h *buyHandler) validate(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*BuyMsg, *Listing, weft.Condition, error) {
	var msg BuyMsg
	if err := weft.LoadMsg(tx, &msg); err != nil {
		return nil, nil, nil, errors.Wrap(err, "load msg")
	}
	buyer := x.MainSigner(ctx, h.auth)
	if buyer == nil {
		return nil, nil, nil, errors.Wrap(errors.ErrUnauthorized, "no signer")
	}
	var listing Listing
	if err := h.listings.One(db, []byte(msg.ListingKey), &listing); err != nil {
		return nil, nil, nil, errors.Wrapf(err, "listing %q", msg.ListingKey)
	}
	payment := weft.Payment(ctx)
	if !payment.IsGTE(listing.Price) {
		return nil, nil, nil, errors.Wrapf(errors.ErrAmount, "price is %s, attached %s", listing.Price, payment)
	}
	return &msg, &listing, buyer, nil
}
