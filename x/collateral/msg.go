package collateral

import (
	"github.com/fxamacker/cbor/v2"

	weft "github.com/tokenvault/weft"
	"github.com/tokenvault/weft/errors"
)

const (
	pathDeposit             = "collateral/deposit"
	pathWithdraw            = "collateral/withdraw"
	pathUpdateConfiguration = "collateral/update_configuration"
)

// DepositMsg adds the attached payment to a deposit balance. The funds
// are credited to Account when set, otherwise to the signer.
type DepositMsg struct {
	Account weft.Address `cbor:"1,keyasint,omitempty"`
}

var _ weft.Msg = (*DepositMsg)(nil)

func (DepositMsg) Path() string {
	return pathDeposit
}

func (m *DepositMsg) Marshal() ([]byte, error) {
	return cbor.Marshal(m)
}

func (m *DepositMsg) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, m)
}

func (m *DepositMsg) Validate() error {
	if len(m.Account) != 0 {
		if err := m.Account.Validate(); err != nil {
			return errors.Wrap(err, "account")
		}
	}
	return nil
}

// WithdrawMsg releases the signer's deposit balance down to the amount
// reserved by active listings.
type WithdrawMsg struct {
}

var _ weft.Msg = (*WithdrawMsg)(nil)

func (WithdrawMsg) Path() string {
	return pathWithdraw
}

func (m *WithdrawMsg) Marshal() ([]byte, error) {
	return cbor.Marshal(m)
}

func (m *WithdrawMsg) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, m)
}

func (m *WithdrawMsg) Validate() error {
	return nil
}

// UpdateConfigurationMsg replaces the storage pricing configuration.
type UpdateConfigurationMsg struct {
	Patch Configuration `cbor:"1,keyasint"`
}

var _ weft.Msg = (*UpdateConfigurationMsg)(nil)

func (UpdateConfigurationMsg) Path() string {
	return pathUpdateConfiguration
}

func (m *UpdateConfigurationMsg) Marshal() ([]byte, error) {
	return cbor.Marshal(m)
}

func (m *UpdateConfigurationMsg) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, m)
}

func (m *UpdateConfigurationMsg) Validate() error {
	return m.Patch.Validate()
}
