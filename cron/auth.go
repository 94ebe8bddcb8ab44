package cron

import (
	"context"

	weft "github.com/tokenvault/weft"
	"github.com/tokenvault/weft/x"
)

type ctxKey int

const (
	ctxKeyConditions ctxKey = iota
)

// withAuth returns a context instance with the conditions attached.
// Attached conditions are used for authentication by the authenticator
// implementation from this package.
func withAuth(ctx weft.Context, cs []weft.Condition) weft.Context {
	if old, ok := ctx.Value(ctxKeyConditions).([]weft.Condition); ok {
		cs = append(cs, old...)
	}
	return context.WithValue(ctx, ctxKeyConditions, cs)
}

// Authenticator implements an x.Authenticator interface that should be
// used to authorize scheduled task execution. Conditions are attached to
// the context by the ticker, straight from the stored task.
type Authenticator struct{}

var _ x.Authenticator = (*Authenticator)(nil)

// GetConditions implements x.Authenticator interface.
func (Authenticator) GetConditions(ctx weft.Context) []weft.Condition {
	val, ok := ctx.Value(ctxKeyConditions).([]weft.Condition)
	if !ok {
		return nil
	}
	return val
}

// HasAddress implements x.Authenticator interface.
func (a Authenticator) HasAddress(ctx weft.Context, addr weft.Address) bool {
	for _, c := range a.GetConditions(ctx) {
		if addr.Equals(c.Address()) {
			return true
		}
	}
	return false
}
