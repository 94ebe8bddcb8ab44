// Package wefttest provides a lightweight test toolbox shared by the
// extension packages. Nothing in this package is meant for production
// use.
package wefttest

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync/atomic"

	weft "github.com/tokenvault/weft"
	"github.com/tokenvault/weft/x"
)

// Auth is a mock implementing x.Authenticator interface. It authenticates
// the fixed set of conditions given at construction time.
type Auth struct {
	// Signer is declared as the main signer.
	Signer weft.Condition
	// Signers are additional conditions fulfilled.
	Signers []weft.Condition
}

var _ x.Authenticator = (*Auth)(nil)

func (a *Auth) GetConditions(weft.Context) []weft.Condition {
	var conds []weft.Condition
	if a.Signer != nil {
		conds = append(conds, a.Signer)
	}
	return append(conds, a.Signers...)
}

func (a *Auth) HasAddress(ctx weft.Context, addr weft.Address) bool {
	for _, cond := range a.GetConditions(ctx) {
		if addr.Equals(cond.Address()) {
			return true
		}
	}
	return false
}

// CtxAuth is an x.Authenticator implementation that reads conditions from
// the context.
type CtxAuth struct {
	// Key under which the conditions are stored in the context.
	Key string
}

var _ x.Authenticator = (*CtxAuth)(nil)

// SetConditions returns a copy of the context with the conditions
// attached.
func (a *CtxAuth) SetConditions(ctx weft.Context, conds ...weft.Condition) weft.Context {
	return context.WithValue(ctx, ctxAuthKey(a.Key), conds)
}

func (a *CtxAuth) GetConditions(ctx weft.Context) []weft.Condition {
	val := ctx.Value(ctxAuthKey(a.Key))
	if val == nil {
		return nil
	}
	conds, ok := val.([]weft.Condition)
	if !ok {
		panic(fmt.Sprintf("instead of conditions got %T", val))
	}
	return conds
}

func (a *CtxAuth) HasAddress(ctx weft.Context, addr weft.Address) bool {
	for _, cond := range a.GetConditions(ctx) {
		if addr.Equals(cond.Address()) {
			return true
		}
	}
	return false
}

type ctxAuthKey string

var condCnt uint64

// NewCondition returns a unique condition for tests.
func NewCondition() weft.Condition {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, atomic.AddUint64(&condCnt, 1))
	return weft.NewCondition("test", "cond", data)
}

// SequenceID returns the n-th sequence generated key.
func SequenceID(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}
