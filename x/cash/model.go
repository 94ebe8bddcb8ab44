package cash

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/tokenvault/weft/coin"
	"github.com/tokenvault/weft/errors"
	"github.com/tokenvault/weft/orm"
)

// Set keeps a set of coins that belong to one account.
type Set struct {
	Coins coin.Coins `cbor:"1,keyasint,omitempty"`
}

var _ orm.Model = (*Set)(nil)

func (s *Set) Marshal() ([]byte, error) {
	return cbor.Marshal(s)
}

func (s *Set) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, s)
}

// Validate requires that all coins are in alphabetical order and that
// each coin is valid in its own right.
func (s *Set) Validate() error {
	return s.Coins.Validate()
}

// NewWalletBucket returns a bucket for managing wallets. Wallets are
// keyed by the owner address.
func NewWalletBucket() orm.ModelBucket {
	return orm.NewModelBucket("cash", &Set{})
}

// add modifies the wallet to add the given coin. A negative coin removes
// funds and may produce a negative balance, which is rejected.
func (s *Set) add(c coin.Coin) error {
	coins, err := s.Coins.Add(c)
	if err != nil {
		return err
	}
	if !coins.IsNonNegative() {
		return errors.Wrap(errors.ErrAmount, "negative balance")
	}
	s.Coins = coins
	return nil
}
