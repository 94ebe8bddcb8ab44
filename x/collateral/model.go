package collateral

import (
	"github.com/fxamacker/cbor/v2"

	weft "github.com/tokenvault/weft"
	"github.com/tokenvault/weft/coin"
	"github.com/tokenvault/weft/errors"
	"github.com/tokenvault/weft/orm"
)

// DepositAccount is the deposit balance an account maintains to back its
// marketplace listings. Stored in a bucket keyed by the account address.
type DepositAccount struct {
	Balance coin.Coin `cbor:"1,keyasint"`
}

var _ orm.Model = (*DepositAccount)(nil)

func (d *DepositAccount) Marshal() ([]byte, error) {
	return cbor.Marshal(d)
}

func (d *DepositAccount) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, d)
}

func (d *DepositAccount) Validate() error {
	if err := d.Balance.Validate(); err != nil {
		return errors.Wrap(err, "balance")
	}
	if !d.Balance.IsNonNegative() {
		return errors.Wrap(errors.ErrAmount, "negative balance")
	}
	return nil
}

// NewDepositBucket returns a bucket for managing deposit accounts.
func NewDepositBucket() orm.ModelBucket {
	return orm.NewModelBucket("deposits", &DepositAccount{})
}

// Deposit returns the deposit balance of the given account. A missing
// record reports a zero balance in the configured currency.
func Deposit(db weft.ReadOnlyKVStore, conf Configuration, addr weft.Address) (coin.Coin, error) {
	var acc DepositAccount
	switch err := NewDepositBucket().One(db, addr, &acc); {
	case err == nil:
		return acc.Balance, nil
	case errors.ErrNotFound.Is(err):
		return coin.Coin{Ticker: conf.BytePrice.Ticker}, nil
	default:
		return coin.Coin{}, err
	}
}
