package collateral

import (
	weft "github.com/tokenvault/weft"
	"github.com/tokenvault/weft/coin"
	"github.com/tokenvault/weft/errors"
	"github.com/tokenvault/weft/x/cash"
)

// ReservationCounter reports how many marketplace listings an account
// currently holds. Implemented by x/market, declared here to avoid a
// package cycle.
type ReservationCounter interface {
	CountReservations(db weft.ReadOnlyKVStore, owner weft.Address) (int64, error)
}

// PoolCondition guards the funds held as storage collateral.
var PoolCondition = weft.NewCondition("collateral", "pool", []byte("main"))

// PoolAddress is where charged collateral and deposits are held until
// refunded or withdrawn.
func PoolAddress() weft.Address {
	return PoolCondition.Address()
}

// RequireBaseUnit ensures the payment attached to the context is exactly
// one base unit.
func RequireBaseUnit(ctx weft.Context, conf Configuration) error {
	payment := weft.Payment(ctx)
	if !payment.Equals(conf.BaseUnit) {
		return errors.Wrapf(ErrPayment, "requires exactly %s, attached %s", conf.BaseUnit, payment)
	}
	return nil
}

// Charge collects the cost of storing the given number of bytes from the
// payer. The payment attached to the context must cover the full cost.
// The cost moves to the collateral pool, any excess stays with the payer.
// A non-positive byte count charges nothing.
func Charge(ctx weft.Context, db weft.KVStore, ctrl cash.Controller, conf Configuration, payer weft.Address, bytes int64) error {
	if bytes <= 0 {
		return nil
	}
	cost, err := conf.BytePrice.Multiply(bytes)
	if err != nil {
		return errors.Wrap(err, "storage cost")
	}
	payment := weft.Payment(ctx)
	if !payment.IsGTE(cost) {
		return errors.Wrapf(ErrInsufficientCollateral, "requires %s, attached %s", cost, payment)
	}
	if err := ctrl.MoveCoins(db, payer, PoolAddress(), cost); err != nil {
		return errors.Wrap(err, "collect storage cost")
	}
	return nil
}

// Refund returns the collateral that backed the given number of freed
// bytes from the pool to the account. A non-positive byte count refunds
// nothing.
func Refund(db weft.KVStore, ctrl cash.Controller, conf Configuration, to weft.Address, bytes int64) error {
	if bytes <= 0 {
		return nil
	}
	amount, err := conf.BytePrice.Multiply(bytes)
	if err != nil {
		return errors.Wrap(err, "refund amount")
	}
	if err := ctrl.MoveCoins(db, PoolAddress(), to, amount); err != nil {
		return errors.Wrap(err, "refund collateral")
	}
	return nil
}

// Reserved returns the deposit amount locked by the account's active
// marketplace listings.
func Reserved(db weft.ReadOnlyKVStore, conf Configuration, counter ReservationCounter, owner weft.Address) (coin.Coin, error) {
	count, err := counter.CountReservations(db, owner)
	if err != nil {
		return coin.Coin{}, errors.Wrap(err, "count reservations")
	}
	slot, err := SlotCost(conf)
	if err != nil {
		return coin.Coin{}, err
	}
	reserved, err := slot.Multiply(count)
	if err != nil {
		return coin.Coin{}, errors.Wrap(err, "reserved amount")
	}
	return reserved, nil
}
