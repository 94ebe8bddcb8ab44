package market

import (
	"strings"

	"github.com/fxamacker/cbor/v2"

	weft "github.com/tokenvault/weft"
	"github.com/tokenvault/weft/coin"
	"github.com/tokenvault/weft/errors"
	"github.com/tokenvault/weft/orm"
)

// Listing is a single token offered for sale. The approval identifier
// pins the marketplace grant this listing was created under.
type Listing struct {
	Owner      weft.Address `cbor:"1,keyasint"`
	ApprovalID int64        `cbor:"2,keyasint"`
	Origin     string       `cbor:"3,keyasint"`
	TokenID    string       `cbor:"4,keyasint"`
	Price      coin.Coin    `cbor:"5,keyasint"`
}

var _ orm.Model = (*Listing)(nil)

func (l *Listing) Marshal() ([]byte, error) {
	return cbor.Marshal(l)
}

func (l *Listing) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, l)
}

func (l *Listing) Validate() error {
	if err := l.Owner.Validate(); err != nil {
		return errors.Wrap(err, "owner")
	}
	if l.ApprovalID < 0 {
		return errors.Wrap(errors.ErrInput, "negative approval id")
	}
	if l.Origin == "" {
		return errors.Wrap(errors.ErrEmpty, "origin")
	}
	if l.TokenID == "" {
		return errors.Wrap(errors.ErrEmpty, "token id")
	}
	if err := l.Price.Validate(); err != nil {
		return errors.Wrap(err, "price")
	}
	if !l.Price.IsPositive() {
		return errors.Wrap(errors.ErrAmount, "price must be positive")
	}
	return nil
}

// ListingKey builds the primary key of a listing from the token origin
// and the token ID.
func ListingKey(origin, tokenID string) []byte {
	return []byte(origin + "." + tokenID)
}

// SplitListingKey is the reverse of ListingKey.
func SplitListingKey(key string) (origin, tokenID string, err error) {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.Wrapf(errors.ErrInput, "malformed listing key %q", key)
	}
	return parts[0], parts[1], nil
}

// NewListingBucket returns a bucket for managing listings, indexed by
// owner and by origin.
func NewListingBucket() orm.ModelBucket {
	return orm.NewModelBucket("listings", &Listing{},
		orm.WithIndex("owner", ownerIndexer, false),
		orm.WithIndex("origin", originIndexer, false),
	)
}

func ownerIndexer(key []byte, value orm.Model) ([]byte, error) {
	l, ok := value.(*Listing)
	if !ok {
		return nil, errors.Wrapf(errors.ErrType, "%T", value)
	}
	return l.Owner, nil
}

func originIndexer(key []byte, value orm.Model) ([]byte, error) {
	l, ok := value.(*Listing)
	if !ok {
		return nil, errors.Wrapf(errors.ErrType, "%T", value)
	}
	return []byte(l.Origin), nil
}

// SaleTerms is the approval payload describing how a token should be
// listed. The payload comes from foreign contracts, hence the permissive
// JSON encoding.
type SaleTerms struct {
	Price coin.Coin `json:"price"`
}
