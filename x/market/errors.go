package market

import (
	"github.com/tokenvault/weft/errors"
)

var (
	// ErrNotGenuine is returned when an approval notification did not
	// originate from the token owner through the ledger.
	ErrNotGenuine = errors.Register(1300, "approval notification not genuine")

	// ErrTerms is returned when the sale terms payload is malformed.
	ErrTerms = errors.Register(1301, "invalid sale terms")
)
