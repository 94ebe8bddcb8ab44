package weft

import (
	"time"
)

// Handler is a core engine that can process a few specific messages.
// This could represent "approve account", or "transfer token".
type Handler interface {
	Checker
	Deliverer
}

// Checker is a subset of Handler to verify the validity of a transaction.
// It is its own interface to allow better type controls in the next
// arguments in Decorator.
type Checker interface {
	Check(ctx Context, db KVStore, tx Tx) (*CheckResult, error)
}

// Deliverer is a subset of Handler to execute a transaction.
type Deliverer interface {
	Deliver(ctx Context, db KVStore, tx Tx) (*DeliverResult, error)
}

// Registry is an interface to register your handler, the setup side of a
// Router.
type Registry interface {
	Handle(path string, h Handler)
}

// CheckResult captures any non-error abci result to make sure people
// use error for error cases.
type CheckResult struct {
	// Data is a machine-parseable return value, like id of created entity.
	Data []byte
	// Log is human-readable informational string.
	Log string
	// GasAllocated is the maximum units of work we allow this tx to
	// perform.
	GasAllocated int64
}

// DeliverResult captures any non-error abci result to make sure people
// use error for error cases.
type DeliverResult struct {
	// Data is a machine-parseable return value, like id of created entity.
	Data []byte
	// Log is human-readable informational string.
	Log string
	// Events are produced by the execution of the message and can be used
	// by the host to index the ledger history.
	Events []Event
}

// Event is attached to a DeliverResult to document a state transition
// that external observers may want to follow.
type Event struct {
	Type       string
	Attributes []EventAttribute
}

// EventAttribute is a single key/value pair of event metadata.
type EventAttribute struct {
	Key   string
	Value string
}

// NewEvent builds an event from interleaved key/value strings.
func NewEvent(typ string, keyvals ...string) Event {
	ev := Event{Type: typ}
	for i := 0; i+1 < len(keyvals); i += 2 {
		ev.Attributes = append(ev.Attributes, EventAttribute{
			Key:   keyvals[i],
			Value: keyvals[i+1],
		})
	}
	return ev
}

// Decorator wraps a Handler to provide common functionality like
// authentication, fee payment or savepoints. Decorators are combined
// into a chain that every transaction passes through before reaching
// the final Handler.
type Decorator interface {
	Check(ctx Context, db KVStore, tx Tx, next Checker) (*CheckResult, error)
	Deliver(ctx Context, db KVStore, tx Tx, next Deliverer) (*DeliverResult, error)
}

// Ticker is an interface used to call background tasks scheduled for
// execution.
type Ticker interface {
	// Tick is a method called between transaction batches. It should be
	// used to execute any scheduled tasks.
	//
	// Because there is no caller left to report to, this method does not
	// return an error. It is the implementation responsibility to handle
	// all error situations.
	Tick(ctx Context, store CacheableKVStore) TickResult
}

// TickResult represents the result of a single tick run.
type TickResult struct {
	// Events produced by all executed tasks.
	Events []Event
	// Executed lists the IDs of all tasks that were run, successfully or
	// not, during this tick.
	Executed [][]byte
}

// Scheduler is an interface implemented to allow scheduling message
// execution.
type Scheduler interface {
	// Schedule queues given message in the database to be executed at
	// given time. The message will be executed with a context containing
	// the provided authentication conditions and the provided caller
	// address.
	// When successful, returns the scheduled task ID.
	Schedule(db KVStore, runAt time.Time, caller Address, conds []Condition, msg Msg) ([]byte, error)

	// Delete removes a scheduled task from the queue. It returns
	// ErrNotFound if a task with the given ID is not present in the
	// queue.
	Delete(db KVStore, taskID []byte) error
}
