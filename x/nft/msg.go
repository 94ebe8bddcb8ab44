package nft

import (
	"github.com/fxamacker/cbor/v2"

	weft "github.com/tokenvault/weft"
	"github.com/tokenvault/weft/errors"
)

const (
	pathMint            = "nft/mint"
	pathApprove         = "nft/approve"
	pathRevoke          = "nft/revoke"
	pathRevokeAll       = "nft/revoke_all"
	pathTransfer        = "nft/transfer"
	pathTransferAndCall = "nft/transfer_call"
	pathResolveTransfer = "nft/resolve_transfer"
	pathNotifyApproval  = "nft/notify_approval"
)

func validateTokenID(id string) error {
	if id == "" {
		return errors.Wrap(errors.ErrEmpty, "token id")
	}
	if len(id) > 256 {
		return errors.Wrap(errors.ErrInput, "token id too long")
	}
	return nil
}

// MintMsg creates a new token. The royalty schedule is fixed for the
// token lifetime.
type MintMsg struct {
	TokenID  string `cbor:"1,keyasint"`
	Metadata string `cbor:"2,keyasint,omitempty"`
	// Owner defaults to the signer when empty.
	Owner     weft.Address `cbor:"3,keyasint,omitempty"`
	Royalties []Royalty    `cbor:"4,keyasint,omitempty"`
}

var _ weft.Msg = (*MintMsg)(nil)

func (MintMsg) Path() string {
	return pathMint
}

func (m *MintMsg) Marshal() ([]byte, error) {
	return cbor.Marshal(m)
}

func (m *MintMsg) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, m)
}

func (m *MintMsg) Validate() error {
	if err := validateTokenID(m.TokenID); err != nil {
		return err
	}
	if len(m.Owner) != 0 {
		if err := m.Owner.Validate(); err != nil {
			return errors.Wrap(err, "owner")
		}
	}
	return validateRoyalties(m.Royalties)
}

// ApproveMsg grants the grantee the right to transfer the token. With a
// payload attached, the grantee contract is notified asynchronously.
type ApproveMsg struct {
	TokenID string       `cbor:"1,keyasint"`
	Grantee weft.Address `cbor:"2,keyasint"`
	Payload []byte       `cbor:"3,keyasint,omitempty"`
}

var _ weft.Msg = (*ApproveMsg)(nil)

func (ApproveMsg) Path() string {
	return pathApprove
}

func (m *ApproveMsg) Marshal() ([]byte, error) {
	return cbor.Marshal(m)
}

func (m *ApproveMsg) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, m)
}

func (m *ApproveMsg) Validate() error {
	if err := validateTokenID(m.TokenID); err != nil {
		return err
	}
	if err := m.Grantee.Validate(); err != nil {
		return errors.Wrap(err, "grantee")
	}
	return nil
}

// RevokeMsg removes the grantee's approval. Revoking an absent approval
// is a no-op.
type RevokeMsg struct {
	TokenID string       `cbor:"1,keyasint"`
	Grantee weft.Address `cbor:"2,keyasint"`
}

var _ weft.Msg = (*RevokeMsg)(nil)

func (RevokeMsg) Path() string {
	return pathRevoke
}

func (m *RevokeMsg) Marshal() ([]byte, error) {
	return cbor.Marshal(m)
}

func (m *RevokeMsg) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, m)
}

func (m *RevokeMsg) Validate() error {
	if err := validateTokenID(m.TokenID); err != nil {
		return err
	}
	if err := m.Grantee.Validate(); err != nil {
		return errors.Wrap(err, "grantee")
	}
	return nil
}

// RevokeAllMsg clears the whole approval set of the token.
type RevokeAllMsg struct {
	TokenID string `cbor:"1,keyasint"`
}

var _ weft.Msg = (*RevokeAllMsg)(nil)

func (RevokeAllMsg) Path() string {
	return pathRevokeAll
}

func (m *RevokeAllMsg) Marshal() ([]byte, error) {
	return cbor.Marshal(m)
}

func (m *RevokeAllMsg) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, m)
}

func (m *RevokeAllMsg) Validate() error {
	return validateTokenID(m.TokenID)
}

// TransferMsg moves the token to a new owner. The signer must be the
// owner or hold an approval. An approved sender may pin the expected
// approval identifier to protect against races.
type TransferMsg struct {
	TokenID    string       `cbor:"1,keyasint"`
	Receiver   weft.Address `cbor:"2,keyasint"`
	ApprovalID *int64       `cbor:"3,keyasint,omitempty"`
	Memo       string       `cbor:"4,keyasint,omitempty"`
}

var _ weft.Msg = (*TransferMsg)(nil)

func (TransferMsg) Path() string {
	return pathTransfer
}

func (m *TransferMsg) Marshal() ([]byte, error) {
	return cbor.Marshal(m)
}

func (m *TransferMsg) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, m)
}

func (m *TransferMsg) Validate() error {
	if err := validateTokenID(m.TokenID); err != nil {
		return err
	}
	if err := m.Receiver.Validate(); err != nil {
		return errors.Wrap(err, "receiver")
	}
	if m.ApprovalID != nil && *m.ApprovalID < 0 {
		return errors.Wrap(errors.ErrInput, "negative approval id")
	}
	return nil
}

// TransferAndCallMsg moves the token to a receiving contract and starts
// the two-phase protocol: the receiver is notified asynchronously and the
// move is rolled back if it declines while still holding the token.
type TransferAndCallMsg struct {
	TokenID    string       `cbor:"1,keyasint"`
	Receiver   weft.Address `cbor:"2,keyasint"`
	ApprovalID *int64       `cbor:"3,keyasint,omitempty"`
	Memo       string       `cbor:"4,keyasint,omitempty"`
	Payload    []byte       `cbor:"5,keyasint,omitempty"`
}

var _ weft.Msg = (*TransferAndCallMsg)(nil)

func (TransferAndCallMsg) Path() string {
	return pathTransferAndCall
}

func (m *TransferAndCallMsg) Marshal() ([]byte, error) {
	return cbor.Marshal(m)
}

func (m *TransferAndCallMsg) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, m)
}

func (m *TransferAndCallMsg) Validate() error {
	if err := validateTokenID(m.TokenID); err != nil {
		return err
	}
	if err := m.Receiver.Validate(); err != nil {
		return errors.Wrap(err, "receiver")
	}
	if m.ApprovalID != nil && *m.ApprovalID < 0 {
		return errors.Wrap(errors.ErrInput, "negative approval id")
	}
	return nil
}

// ResolveTransferMsg finishes a two-phase transfer. It can only be
// executed under the resolution authority of that transfer, which is
// granted exclusively to the scheduled resolution task.
type ResolveTransferMsg struct {
	TransferID []byte `cbor:"1,keyasint"`
}

var _ weft.Msg = (*ResolveTransferMsg)(nil)

func (ResolveTransferMsg) Path() string {
	return pathResolveTransfer
}

func (m *ResolveTransferMsg) Marshal() ([]byte, error) {
	return cbor.Marshal(m)
}

func (m *ResolveTransferMsg) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, m)
}

func (m *ResolveTransferMsg) Validate() error {
	if len(m.TransferID) == 0 {
		return errors.Wrap(errors.ErrEmpty, "transfer id")
	}
	return nil
}

// NotifyApprovalMsg delivers an approval payload to the grantee contract.
// Executed only as a scheduled task issued by the approve handler.
type NotifyApprovalMsg struct {
	TokenID    string       `cbor:"1,keyasint"`
	Grantee    weft.Address `cbor:"2,keyasint"`
	Owner      weft.Address `cbor:"3,keyasint"`
	ApprovalID int64        `cbor:"4,keyasint"`
	Payload    []byte       `cbor:"5,keyasint,omitempty"`
}

var _ weft.Msg = (*NotifyApprovalMsg)(nil)

func (NotifyApprovalMsg) Path() string {
	return pathNotifyApproval
}

func (m *NotifyApprovalMsg) Marshal() ([]byte, error) {
	return cbor.Marshal(m)
}

func (m *NotifyApprovalMsg) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, m)
}

func (m *NotifyApprovalMsg) Validate() error {
	if err := validateTokenID(m.TokenID); err != nil {
		return err
	}
	if err := m.Grantee.Validate(); err != nil {
		return errors.Wrap(err, "grantee")
	}
	if err := m.Owner.Validate(); err != nil {
		return errors.Wrap(err, "owner")
	}
	if m.ApprovalID < 0 {
		return errors.Wrap(errors.ErrInput, "negative approval id")
	}
	return nil
}
