package app

import (
	"fmt"
	"regexp"

	weft "github.com/tokenvault/weft"
	"github.com/tokenvault/weft/errors"
)

var isPath = regexp.MustCompile(`^[a-z0-9_]+/[a-z0-9_]+$`).MatchString

// Router allows us to register many handlers with different paths and
// then direct each message to the registered handler.
type Router struct {
	routes map[string]weft.Handler
}

var (
	_ weft.Registry = (*Router)(nil)
	_ weft.Handler  = (*Router)(nil)
)

// NewRouter initializes a router with no routes.
func NewRouter() *Router {
	return &Router{
		routes: make(map[string]weft.Handler),
	}
}

// Handle adds a new Handler for the given path. Panics on invalid path or
// duplicate registration, as both are programmer errors.
func (r *Router) Handle(path string, h weft.Handler) {
	if !isPath(path) {
		panic(fmt.Sprintf("invalid path %q", path))
	}
	if _, ok := r.routes[path]; ok {
		panic(fmt.Sprintf("re-registering route %q", path))
	}
	r.routes[path] = h
}

// handler returns the registered Handler for this path, or a handler that
// always returns ErrNotFound when no handler was registered.
func (r *Router) handler(path string) weft.Handler {
	if h, ok := r.routes[path]; ok {
		return h
	}
	return notFoundHandler(path)
}

// Check dispatches the transaction to the handler registered under the
// message path.
func (r *Router) Check(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*weft.CheckResult, error) {
	path, err := msgPath(tx)
	if err != nil {
		return nil, err
	}
	return r.handler(path).Check(ctx, db, tx)
}

// Deliver dispatches the transaction to the handler registered under the
// message path.
func (r *Router) Deliver(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*weft.DeliverResult, error) {
	path, err := msgPath(tx)
	if err != nil {
		return nil, err
	}
	return r.handler(path).Deliver(ctx, db, tx)
}

func msgPath(tx weft.Tx) (string, error) {
	msg, err := tx.GetMsg()
	if err != nil {
		return "", errors.Wrap(err, "cannot get message")
	}
	if msg == nil {
		return "", errors.Wrap(errors.ErrMsg, "transaction without a message")
	}
	return msg.Path(), nil
}

type notFoundHandler string

func (h notFoundHandler) Check(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*weft.CheckResult, error) {
	return nil, errors.Wrapf(errors.ErrNotFound, "no handler for %q", string(h))
}

func (h notFoundHandler) Deliver(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*weft.DeliverResult, error) {
	return nil, errors.Wrapf(errors.ErrNotFound, "no handler for %q", string(h))
}
