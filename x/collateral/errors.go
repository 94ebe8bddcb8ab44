package collateral

import (
	"github.com/tokenvault/weft/errors"
)

var (
	// ErrInsufficientCollateral is returned when the attached payment or
	// the deposit balance does not cover the required storage cost.
	ErrInsufficientCollateral = errors.Register(1100, "insufficient collateral")

	// ErrMinimumDeposit is returned when a deposit is below the smallest
	// accepted amount.
	ErrMinimumDeposit = errors.Register(1101, "deposit below minimum")

	// ErrPayment is returned when an operation requires an exact payment
	// attachment and a different amount was attached.
	ErrPayment = errors.Register(1102, "invalid payment attachment")
)
