package market

import (
	"github.com/fxamacker/cbor/v2"

	weft "github.com/tokenvault/weft"
)

const (
	pathRemoveListing = "market/remove_listing"
	pathBuy           = "market/buy"
)

// RemoveListingMsg takes a listing off the market. Only the listing owner
// can remove it.
type RemoveListingMsg struct {
	ListingKey string `cbor:"1,keyasint"`
}

var _ weft.Msg = (*RemoveListingMsg)(nil)

func (RemoveListingMsg) Path() string {
	return pathRemoveListing
}

func (m *RemoveListingMsg) Marshal() ([]byte, error) {
	return cbor.Marshal(m)
}

func (m *RemoveListingMsg) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, m)
}

func (m *RemoveListingMsg) Validate() error {
	_, _, err := SplitListingKey(m.ListingKey)
	return err
}

// BuyMsg purchases a listed token. The attached payment must cover the
// price, it is split between the royalty beneficiaries and the seller.
type BuyMsg struct {
	ListingKey string `cbor:"1,keyasint"`
}

var _ weft.Msg = (*BuyMsg)(nil)

func (BuyMsg) Path() string {
	return pathBuy
}

func (m *BuyMsg) Marshal() ([]byte, error) {
	return cbor.Marshal(m)
}

func (m *BuyMsg) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, m)
}

func (m *BuyMsg) Validate() error {
	_, _, err := SplitListingKey(m.ListingKey)
	return err
}
