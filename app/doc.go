/*
Package app assembles the pieces of the framework into a runnable ledger
application: a router dispatching messages to handlers, a decorator chain
wrapping every transaction, and a block processor that executes scheduled
tasks and commits state.
*/
package app
