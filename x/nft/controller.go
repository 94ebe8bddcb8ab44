package nft

import (
	weft "github.com/tokenvault/weft"
	"github.com/tokenvault/weft/errors"
	"github.com/tokenvault/weft/x/cash"
	"github.com/tokenvault/weft/x/collateral"
)

// TransferUnderApproval moves a token on behalf of an approved account.
// The stored grant must carry the exact approval identifier, which makes
// grants from a previous ownership unusable. Used by the marketplace at
// purchase time.
func TransferUnderApproval(db weft.KVStore, ctrl cash.Controller, conf collateral.Configuration, tokenID string, grantee weft.Address, approvalID int64, newOwner weft.Address) error {
	tokens := NewTokenBucket()

	var token Token
	if err := tokens.One(db, []byte(tokenID), &token); err != nil {
		return errors.Wrapf(err, "token %q", tokenID)
	}
	grant, ok := token.Approved(grantee)
	if !ok {
		return errors.Wrap(errors.ErrUnauthorized, "not approved")
	}
	if grant.ApprovalID != approvalID {
		return errors.Wrapf(errors.ErrUnauthorized, "approval id %d is stale", approvalID)
	}
	if token.Owner.Equals(newOwner) {
		return errors.Wrapf(ErrSelfTransfer, "token %q", tokenID)
	}

	previousOwner := token.Owner
	freed := approvalSetBytes(token.Approvals)
	if err := moveToken(db, tokens, tokenID, &token, newOwner); err != nil {
		return err
	}
	return collateral.Refund(db, ctrl, conf, previousOwner, freed)
}
