package nft

import (
	weft "github.com/tokenvault/weft"
	"github.com/tokenvault/weft/coin"
	"github.com/tokenvault/weft/errors"
)

// PayoutShare is one beneficiary of a sale payout.
type PayoutShare struct {
	Account weft.Address
	Amount  coin.Coin
}

// Payout splits a sale price between the royalty beneficiaries and the
// seller. Each royalty share is floor(points * price / 10000), the
// remainder goes to the seller. Zero shares are omitted.
func Payout(royalties []Royalty, price coin.Coin, seller weft.Address) ([]PayoutShare, error) {
	if !price.IsPositive() {
		return nil, errors.Wrap(errors.ErrAmount, "non-positive price")
	}

	rest := price
	var shares []PayoutShare
	for _, r := range royalties {
		scaled, err := price.Multiply(int64(r.BasisPoints))
		if err != nil {
			return nil, errors.Wrap(err, "royalty share")
		}
		share, _, err := scaled.Divide(basisPointsTotal)
		if err != nil {
			return nil, errors.Wrap(err, "royalty share")
		}
		if share.IsZero() {
			continue
		}
		if rest, err = rest.Subtract(share); err != nil {
			return nil, errors.Wrap(err, "remainder")
		}
		shares = append(shares, PayoutShare{Account: r.Account, Amount: share})
	}
	if !rest.IsNonNegative() {
		return nil, errors.Wrap(ErrRoyalties, "shares exceed the price")
	}
	if !rest.IsZero() {
		shares = append(shares, PayoutShare{Account: seller, Amount: rest})
	}
	return shares, nil
}
