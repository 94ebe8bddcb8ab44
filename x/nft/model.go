package nft

import (
	"github.com/fxamacker/cbor/v2"

	weft "github.com/tokenvault/weft"
	"github.com/tokenvault/weft/errors"
	"github.com/tokenvault/weft/orm"
)

const (
	// maxRoyaltyEntries caps the royalty schedule so a payout always fits
	// in a single purchase call.
	maxRoyaltyEntries = 6

	// basisPointsTotal is the denominator of a royalty share.
	basisPointsTotal = 10000

	// approvalFixedBytes is the accounting overhead of a single approval
	// entry on top of the account address length.
	approvalFixedBytes = 4 + 8
)

// Approval grants one account the right to transfer the token. The
// identifier is unique within the lifetime of one ownership and lets a
// market detect that its grant went stale.
type Approval struct {
	Account    weft.Address `cbor:"1,keyasint"`
	ApprovalID int64        `cbor:"2,keyasint"`
}

// Royalty is a single entry of the payout schedule, in basis points of
// the sale price.
type Royalty struct {
	Account     weft.Address `cbor:"1,keyasint"`
	BasisPoints int32        `cbor:"2,keyasint"`
}

// Token is a single ledger entry. The primary key is the token ID, the
// owner is additionally tracked in a secondary index.
type Token struct {
	Owner          weft.Address `cbor:"1,keyasint"`
	Approvals      []Approval   `cbor:"2,keyasint,omitempty"`
	NextApprovalID int64        `cbor:"3,keyasint,omitempty"`
	Royalties      []Royalty    `cbor:"4,keyasint,omitempty"`
	Metadata       string       `cbor:"5,keyasint,omitempty"`
}

var _ orm.Model = (*Token)(nil)

func (t *Token) Marshal() ([]byte, error) {
	return cbor.Marshal(t)
}

func (t *Token) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, t)
}

func (t *Token) Validate() error {
	if err := t.Owner.Validate(); err != nil {
		return errors.Wrap(err, "owner")
	}
	if t.NextApprovalID < 0 {
		return errors.Wrap(errors.ErrState, "negative approval counter")
	}
	for _, a := range t.Approvals {
		if err := a.Account.Validate(); err != nil {
			return errors.Wrap(err, "approval account")
		}
		if a.ApprovalID < 0 || a.ApprovalID >= t.NextApprovalID {
			return errors.Wrap(errors.ErrState, "approval id out of range")
		}
	}
	return validateRoyalties(t.Royalties)
}

func validateRoyalties(rs []Royalty) error {
	if len(rs) > maxRoyaltyEntries {
		return errors.Wrapf(ErrRoyalties, "at most %d entries", maxRoyaltyEntries)
	}
	var total int32
	for _, r := range rs {
		if err := r.Account.Validate(); err != nil {
			return errors.Wrap(err, "royalty account")
		}
		if r.BasisPoints <= 0 {
			return errors.Wrap(ErrRoyalties, "non-positive share")
		}
		total += r.BasisPoints
	}
	if total > basisPointsTotal {
		return errors.Wrapf(ErrRoyalties, "shares sum to %d of %d", total, basisPointsTotal)
	}
	return nil
}

// Approved returns the approval entry for the given account, if any.
func (t *Token) Approved(account weft.Address) (Approval, bool) {
	for _, a := range t.Approvals {
		if a.Account.Equals(account) {
			return a, true
		}
	}
	return Approval{}, false
}

// grant records an approval for the account under a fresh identifier.
// Returns true when the account was not approved before.
func (t *Token) grant(account weft.Address) (Approval, bool) {
	a := Approval{Account: account, ApprovalID: t.NextApprovalID}
	t.NextApprovalID++
	for i := range t.Approvals {
		if t.Approvals[i].Account.Equals(account) {
			t.Approvals[i] = a
			return a, false
		}
	}
	t.Approvals = append(t.Approvals, a)
	return a, true
}

// revoke drops the approval of the account. Returns false when the
// account was not approved.
func (t *Token) revoke(account weft.Address) bool {
	for i, a := range t.Approvals {
		if a.Account.Equals(account) {
			t.Approvals = append(t.Approvals[:i], t.Approvals[i+1:]...)
			return true
		}
	}
	return false
}

// approvalBytes is the collateral footprint of one approval entry.
func approvalBytes(account weft.Address) int64 {
	return int64(len(account) + approvalFixedBytes)
}

// approvalSetBytes is the collateral footprint of a whole approval set.
func approvalSetBytes(as []Approval) int64 {
	var total int64
	for _, a := range as {
		total += approvalBytes(a.Account)
	}
	return total
}

// NewTokenBucket returns a bucket for managing tokens, indexed by owner.
func NewTokenBucket() orm.ModelBucket {
	return orm.NewModelBucket("tokens", &Token{},
		orm.WithIndex("owner", ownerIndexer, false),
	)
}

func ownerIndexer(key []byte, value orm.Model) ([]byte, error) {
	t, ok := value.(*Token)
	if !ok {
		return nil, errors.Wrapf(errors.ErrType, "%T", value)
	}
	return t.Owner, nil
}

// Pending transfer states.
const (
	// TransferInitiated is set while the record is being created.
	TransferInitiated int32 = 1
	// TransferAwaitingAck means the resolution task is scheduled and did
	// not run yet.
	TransferAwaitingAck int32 = 2
	// TransferCommitted is terminal, the receiver kept the token.
	TransferCommitted int32 = 3
	// TransferRolledBack is terminal, the token went back to the
	// previous owner.
	TransferRolledBack int32 = 4
)

// PendingTransfer tracks one two-phase transfer between the initial move
// and its resolution. Terminal records are retained as the at-most-once
// guard.
type PendingTransfer struct {
	TokenID       string       `cbor:"1,keyasint"`
	Sender        weft.Address `cbor:"2,keyasint"`
	PreviousOwner weft.Address `cbor:"3,keyasint"`
	Receiver      weft.Address `cbor:"4,keyasint"`
	Payload       []byte       `cbor:"5,keyasint,omitempty"`
	Memo          string       `cbor:"6,keyasint,omitempty"`
	// CarriedApprovals is the approval set the token had before the
	// move. Restored on rollback, refunded on commit.
	CarriedApprovals []Approval `cbor:"7,keyasint,omitempty"`
	// CarriedNextApprovalID restores the counter on rollback.
	CarriedNextApprovalID int64 `cbor:"8,keyasint,omitempty"`
	State                 int32 `cbor:"9,keyasint"`
}

var _ orm.Model = (*PendingTransfer)(nil)

func (p *PendingTransfer) Marshal() ([]byte, error) {
	return cbor.Marshal(p)
}

func (p *PendingTransfer) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, p)
}

func (p *PendingTransfer) Validate() error {
	if p.TokenID == "" {
		return errors.Wrap(errors.ErrEmpty, "token id")
	}
	if err := p.Sender.Validate(); err != nil {
		return errors.Wrap(err, "sender")
	}
	if err := p.PreviousOwner.Validate(); err != nil {
		return errors.Wrap(err, "previous owner")
	}
	if err := p.Receiver.Validate(); err != nil {
		return errors.Wrap(err, "receiver")
	}
	if p.State < TransferInitiated || p.State > TransferRolledBack {
		return errors.Wrapf(errors.ErrState, "unknown state %d", p.State)
	}
	return nil
}

// NewPendingTransferBucket returns a bucket for managing pending
// transfers with sequence generated IDs.
func NewPendingTransferBucket() orm.ModelBucket {
	return orm.NewModelBucket("pending", &PendingTransfer{},
		orm.WithIDSequence(orm.NewSequence("pending", "id")),
	)
}
