package cash

import (
	"github.com/tokenvault/weft/errors"
)

var (
	// ErrInsufficientFunds is returned when the source account does not
	// hold enough funds to complete the operation.
	ErrInsufficientFunds = errors.Register(1000, "insufficient funds")
)
