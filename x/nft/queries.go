package nft

import (
	weft "github.com/tokenvault/weft"
	"github.com/tokenvault/weft/errors"
)

// GetToken loads a token by ID. Missing tokens report ErrNotFound.
func GetToken(db weft.ReadOnlyKVStore, tokenID string) (Token, error) {
	var t Token
	if err := NewTokenBucket().One(db, []byte(tokenID), &t); err != nil {
		return Token{}, errors.Wrapf(err, "token %q", tokenID)
	}
	return t, nil
}

// IsApproved reports whether the account may transfer the token. With a
// non-nil approvalID the stored grant must additionally carry that exact
// identifier.
func IsApproved(db weft.ReadOnlyKVStore, tokenID string, account weft.Address, approvalID *int64) (bool, error) {
	t, err := GetToken(db, tokenID)
	if err != nil {
		return false, err
	}
	a, ok := t.Approved(account)
	if !ok {
		return false, nil
	}
	if approvalID != nil && a.ApprovalID != *approvalID {
		return false, nil
	}
	return true, nil
}

// OwnedTokens returns the IDs of all tokens held by the account.
func OwnedTokens(db weft.ReadOnlyKVStore, owner weft.Address) ([]string, error) {
	keys, err := NewTokenBucket().ByIndex(db, "owner", owner, nil)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = string(k)
	}
	return ids, nil
}
