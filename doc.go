/*
Package weft defines the common interfaces that tie the various
subpackages together, as well as implementations of some of the simpler
components (when interfaces would be too much overhead).

The root package contains no business logic. Extensions under x/ hold
the token ledger, the marketplace and the collateral accounting, and
communicate through the interfaces declared here: a key-value store
abstraction, a message/handler execution model and a context carrying
call metadata (signers, immediate caller, attached payment, block
height).

Every state mutation happens inside a single delivered message. The
dispatcher runs each message on a cache wrap of the store, writing only
on success, so a failed call never leaves partial state behind.
*/
package weft
