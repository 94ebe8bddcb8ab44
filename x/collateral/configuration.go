package collateral

import (
	"github.com/fxamacker/cbor/v2"

	weft "github.com/tokenvault/weft"
	"github.com/tokenvault/weft/coin"
	"github.com/tokenvault/weft/errors"
	"github.com/tokenvault/weft/orm"
)

// Configuration is the chain wide storage pricing. It is stored as a
// singleton and can only be modified by the configured owner.
type Configuration struct {
	// Owner is authorized to update this configuration.
	Owner weft.Address `cbor:"1,keyasint,omitempty"`
	// BytePrice is the cost of storing a single byte.
	BytePrice coin.Coin `cbor:"2,keyasint"`
	// BaseUnit is the exact payment that confirmation-only operations
	// must attach.
	BaseUnit coin.Coin `cbor:"3,keyasint"`
	// ListingSlotBytes is the storage footprint accounted for a single
	// marketplace listing.
	ListingSlotBytes int64 `cbor:"4,keyasint"`
}

var _ orm.Model = (*Configuration)(nil)

// DefaultListingSlotBytes is the listing footprint used unless configured
// otherwise.
const DefaultListingSlotBytes = 1000

func (c *Configuration) Marshal() ([]byte, error) {
	return cbor.Marshal(c)
}

func (c *Configuration) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, c)
}

func (c *Configuration) Validate() error {
	if err := c.Owner.Validate(); err != nil {
		return errors.Wrap(err, "owner")
	}
	if err := c.BytePrice.Validate(); err != nil {
		return errors.Wrap(err, "byte price")
	}
	if !c.BytePrice.IsPositive() {
		return errors.Wrap(errors.ErrAmount, "byte price must be positive")
	}
	if err := c.BaseUnit.Validate(); err != nil {
		return errors.Wrap(err, "base unit")
	}
	if !c.BaseUnit.IsPositive() {
		return errors.Wrap(errors.ErrAmount, "base unit must be positive")
	}
	if !c.BytePrice.SameType(c.BaseUnit) {
		return errors.Wrap(errors.ErrAmount, "byte price and base unit currency mismatch")
	}
	if c.ListingSlotBytes <= 0 {
		return errors.Wrap(errors.ErrInput, "listing slot bytes must be positive")
	}
	return nil
}

var confKey = []byte("collateral")

func newConfBucket() orm.ModelBucket {
	return orm.NewModelBucket("cfg", &Configuration{})
}

// LoadConf returns the current storage pricing configuration.
func LoadConf(db weft.ReadOnlyKVStore) (Configuration, error) {
	var c Configuration
	err := newConfBucket().One(db, confKey, &c)
	return c, err
}

// SaveConf persists the given configuration.
func SaveConf(db weft.KVStore, c Configuration) error {
	if c.ListingSlotBytes == 0 {
		c.ListingSlotBytes = DefaultListingSlotBytes
	}
	_, err := newConfBucket().Put(db, confKey, &c)
	return err
}

// SlotCost returns the funds that back the storage of a single
// marketplace listing.
func SlotCost(c Configuration) (coin.Coin, error) {
	return c.BytePrice.Multiply(c.ListingSlotBytes)
}
