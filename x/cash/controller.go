package cash

import (
	weft "github.com/tokenvault/weft"
	"github.com/tokenvault/weft/coin"
	"github.com/tokenvault/weft/errors"
	"github.com/tokenvault/weft/orm"
)

// Controller is the functionality needed by other extensions to move
// funds between accounts.
type Controller interface {
	// Balance returns the coins held by the given account. Missing
	// accounts report ErrNotFound.
	Balance(db weft.ReadOnlyKVStore, addr weft.Address) (coin.Coins, error)

	// MoveCoins transfers the given amount between two accounts.
	MoveCoins(db weft.KVStore, src, dest weft.Address, amount coin.Coin) error

	// IssueCoins creates the given amount out of thin air and adds it to
	// the destination account. A negative amount burns funds.
	IssueCoins(db weft.KVStore, dest weft.Address, amount coin.Coin) error
}

// CashController implements the Controller interface on top of a wallet
// bucket.
type CashController struct {
	bucket orm.ModelBucket
}

var _ Controller = CashController{}

// NewController returns a base Controller implementation.
func NewController() CashController {
	return CashController{bucket: NewWalletBucket()}
}

func (c CashController) Balance(db weft.ReadOnlyKVStore, addr weft.Address) (coin.Coins, error) {
	var set Set
	if err := c.bucket.One(db, addr, &set); err != nil {
		return nil, errors.Wrap(err, "wallet")
	}
	return set.Coins, nil
}

// MoveCoins moves the given amount from src to dest. If src doesn't
// exist, or doesn't have sufficient coins, it fails.
func (c CashController) MoveCoins(db weft.KVStore, src, dest weft.Address, amount coin.Coin) error {
	if !amount.IsPositive() {
		return errors.Wrapf(errors.ErrAmount, "non-positive transfer: %v", &amount)
	}

	var sender Set
	if err := c.bucket.One(db, src, &sender); err != nil {
		return errors.Wrap(err, "source wallet")
	}
	if !sender.Coins.Contains(amount) {
		return errors.Wrapf(ErrInsufficientFunds, "wallet %s has %s", src, sender.Coins.Amount(amount.Ticker))
	}

	var recipient Set
	switch err := c.bucket.One(db, dest, &recipient); {
	case err == nil, errors.ErrNotFound.Is(err):
		// a missing destination wallet is created on first receive
	default:
		return errors.Wrap(err, "destination wallet")
	}

	if err := sender.add(amount.Negative()); err != nil {
		return err
	}
	if err := recipient.add(amount); err != nil {
		return err
	}

	if _, err := c.bucket.Put(db, src, &sender); err != nil {
		return errors.Wrap(err, "save source")
	}
	if _, err := c.bucket.Put(db, dest, &recipient); err != nil {
		return errors.Wrap(err, "save destination")
	}
	return nil
}

// IssueCoins attempts to add the given amount of coins to the destination
// address. Fails if it overflows the wallet.
//
// Note the amount may also be negative:
// "the lord giveth and the lord taketh away"
func (c CashController) IssueCoins(db weft.KVStore, dest weft.Address, amount coin.Coin) error {
	var recipient Set
	switch err := c.bucket.One(db, dest, &recipient); {
	case err == nil, errors.ErrNotFound.Is(err):
	default:
		return errors.Wrap(err, "wallet")
	}

	if err := recipient.add(amount); err != nil {
		return err
	}
	if _, err := c.bucket.Put(db, dest, &recipient); err != nil {
		return errors.Wrap(err, "save wallet")
	}
	return nil
}
