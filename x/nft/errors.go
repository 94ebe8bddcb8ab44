package nft

import (
	"github.com/tokenvault/weft/errors"
)

var (
	// ErrSelfTransfer is returned when a transfer names the current owner
	// as the receiver.
	ErrSelfTransfer = errors.Register(1200, "transfer to current owner")

	// ErrRoyalties is returned when a royalty schedule is malformed.
	ErrRoyalties = errors.Register(1201, "invalid royalty schedule")
)
