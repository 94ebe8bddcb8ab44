package weft

import (
	"context"
	"time"

	"github.com/tokenvault/weft/coin"
	"github.com/tokenvault/weft/errors"
)

// Context is just a renaming of the standard context, so all function
// signatures read as part of the framework.
//
// There should exist two functions for every XYZ of type T that we want
// to support in Context:
//
//   WithXYZ(Context, T) Context
//   GetXYZ(Context) (val T, ok bool)
type Context = context.Context

type contextKey int

const (
	contextKeyHeight contextKey = iota
	contextKeyBlockTime
	contextKeyCaller
	contextKeyPayment
)

// WithHeight sets the block height for the Context. Panics if already set
// to avoid lower-level modules overwriting the value.
func WithHeight(ctx Context, height int64) Context {
	if _, ok := GetHeight(ctx); ok {
		panic("height already set")
	}
	return context.WithValue(ctx, contextKeyHeight, height)
}

// GetHeight returns the current block height, if set.
func GetHeight(ctx Context) (int64, bool) {
	val, ok := ctx.Value(contextKeyHeight).(int64)
	return val, ok
}

// WithBlockTime sets the block time for the Context.
func WithBlockTime(ctx Context, t time.Time) Context {
	return context.WithValue(ctx, contextKeyBlockTime, t)
}

// BlockTime returns the timestamp of the block being processed.
func BlockTime(ctx Context) (time.Time, error) {
	val, ok := ctx.Value(contextKeyBlockTime).(time.Time)
	if !ok {
		return time.Time{}, errors.Wrap(errors.ErrHuman, "block time not present in the context")
	}
	if val.IsZero() {
		return val, errors.Wrap(errors.ErrHuman, "zero block time in the context")
	}
	return val, nil
}

// WithCaller sets the address of the immediate caller of the current
// message. For a transaction submitted by a user the caller equals the
// main signer. For a scheduled continuation or a cross-extension
// notification the caller is the address of the extension that issued it.
func WithCaller(ctx Context, caller Address) Context {
	return context.WithValue(ctx, contextKeyCaller, caller)
}

// Caller returns the address of the immediate caller, or nil when unset.
func Caller(ctx Context) Address {
	val, _ := ctx.Value(contextKeyCaller).(Address)
	return val
}

// WithPayment attaches a payment to the call. The handler decides whether
// the funds are collected and how much of them is consumed.
func WithPayment(ctx Context, amount coin.Coin) Context {
	return context.WithValue(ctx, contextKeyPayment, amount)
}

// Payment returns the funds attached to this call. A call without an
// attachment reports a zero coin.
func Payment(ctx Context) coin.Coin {
	val, ok := ctx.Value(contextKeyPayment).(coin.Coin)
	if !ok {
		return coin.Coin{}
	}
	return val
}
