package nft

import (
	"sync"

	weft "github.com/tokenvault/weft"
)

// LedgerCondition is the identity the ledger itself acts under when it
// notifies receiving contracts.
var LedgerCondition = weft.NewCondition("nft", "ledger", []byte("main"))

// resolutionCondition is the only authority allowed to resolve the given
// pending transfer. It is granted to the scheduled resolution task and to
// nobody else.
func resolutionCondition(transferID []byte) weft.Condition {
	return weft.NewCondition("nft", "resolve", transferID)
}

// TransferNotification is handed to the receiving contract during the
// resolution of a two-phase transfer.
type TransferNotification struct {
	TokenID       string
	Sender        weft.Address
	PreviousOwner weft.Address
	Payload       []byte
	Memo          string
}

// Receiver is a contract able to take part in two-phase transfers. The
// returned flag reports whether the receiver keeps the token. Returning
// an error counts as a rejection.
type Receiver interface {
	OnTransfer(ctx weft.Context, db weft.KVStore, n TransferNotification) (bool, error)
}

// ApprovalNotification is handed to the approved contract after an
// approval with a payload was granted.
type ApprovalNotification struct {
	TokenID    string
	Owner      weft.Address
	ApprovalID int64
	Payload    []byte
}

// ApprovalReceiver is a contract that reacts to approval grants, for
// example by creating a marketplace listing.
type ApprovalReceiver interface {
	OnApprove(ctx weft.Context, db weft.KVStore, n ApprovalNotification) ([]weft.Event, error)
}

// ReceiverRegistry maps contract addresses to their capability
// implementations. Accounts without a registered capability cannot take
// part in the respective protocol.
type ReceiverRegistry struct {
	mu        sync.RWMutex
	receivers map[string]Receiver
	approvals map[string]ApprovalReceiver
}

// NewReceiverRegistry returns an empty registry.
func NewReceiverRegistry() *ReceiverRegistry {
	return &ReceiverRegistry{
		receivers: make(map[string]Receiver),
		approvals: make(map[string]ApprovalReceiver),
	}
}

// RegisterReceiver declares that the given address can take part in
// two-phase transfers.
func (r *ReceiverRegistry) RegisterReceiver(addr weft.Address, rcv Receiver) {
	r.mu.Lock()
	r.receivers[string(addr)] = rcv
	r.mu.Unlock()
}

// RegisterApprovalReceiver declares that the given address reacts to
// approval notifications.
func (r *ReceiverRegistry) RegisterApprovalReceiver(addr weft.Address, rcv ApprovalReceiver) {
	r.mu.Lock()
	r.approvals[string(addr)] = rcv
	r.mu.Unlock()
}

// Receiver returns the transfer capability of the address, if present.
func (r *ReceiverRegistry) Receiver(addr weft.Address) (Receiver, bool) {
	r.mu.RLock()
	rcv, ok := r.receivers[string(addr)]
	r.mu.RUnlock()
	return rcv, ok
}

// ApprovalReceiver returns the approval capability of the address, if
// present.
func (r *ReceiverRegistry) ApprovalReceiver(addr weft.Address) (ApprovalReceiver, bool) {
	r.mu.RLock()
	rcv, ok := r.approvals[string(addr)]
	r.mu.RUnlock()
	return rcv, ok
}
