package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	weft "github.com/tokenvault/weft"
	"github.com/tokenvault/weft/errors"
	"github.com/tokenvault/weft/wefttest"
)

type countingHandler struct {
	checked   int
	delivered int
	err       error
}

func (h *countingHandler) Check(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*weft.CheckResult, error) {
	h.checked++
	if h.err != nil {
		return nil, h.err
	}
	return &weft.CheckResult{}, nil
}

func (h *countingHandler) Deliver(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*weft.DeliverResult, error) {
	h.delivered++
	if h.err != nil {
		return nil, h.err
	}
	return &weft.DeliverResult{}, nil
}

func TestRouterDispatch(t *testing.T) {
	r := NewRouter()
	h := &countingHandler{}
	r.Handle("good/path", h)

	ctx := context.Background()
	tx := &wefttest.Tx{Msg: &wefttest.Msg{RoutePath: "good/path"}}
	_, err := r.Check(ctx, nil, tx)
	require.NoError(t, err)
	_, err = r.Deliver(ctx, nil, tx)
	require.NoError(t, err)
	assert.Equal(t, 1, h.checked)
	assert.Equal(t, 1, h.delivered)

	// an unknown path is reported, not panicked on
	missing := &wefttest.Tx{Msg: &wefttest.Msg{RoutePath: "bad/path"}}
	_, err = r.Deliver(ctx, nil, missing)
	assert.True(t, errors.ErrNotFound.Is(err))
}

func TestRouterRegistration(t *testing.T) {
	r := NewRouter()
	r.Handle("good/path", &countingHandler{})

	assert.Panics(t, func() {
		r.Handle("good/path", &countingHandler{})
	})
	assert.Panics(t, func() {
		r.Handle("no spaces allowed", &countingHandler{})
	})
	assert.Panics(t, func() {
		r.Handle("missingslash", &countingHandler{})
	})
}

type panicHandler struct{}

func (panicHandler) Check(weft.Context, weft.KVStore, weft.Tx) (*weft.CheckResult, error) {
	panic("check exploded")
}

func (panicHandler) Deliver(weft.Context, weft.KVStore, weft.Tx) (*weft.DeliverResult, error) {
	panic("deliver exploded")
}

func TestRecovery(t *testing.T) {
	h := ChainDecorators(NewRecovery()).WithHandler(panicHandler{})

	ctx := context.Background()
	tx := &wefttest.Tx{Msg: &wefttest.Msg{RoutePath: "boom/boom"}}

	_, err := h.Check(ctx, nil, tx)
	require.Error(t, err)
	assert.True(t, errors.ErrPanic.Is(err))
	assert.Contains(t, err.Error(), "check exploded")

	_, err = h.Deliver(ctx, nil, tx)
	require.Error(t, err)
	assert.True(t, errors.ErrPanic.Is(err))
}

func TestChainDecoratorsSkipsNil(t *testing.T) {
	h := &countingHandler{}
	chained := ChainDecorators(nil, NewRecovery(), nil).WithHandler(h)

	_, err := chained.Deliver(context.Background(), nil, &wefttest.Tx{Msg: &wefttest.Msg{RoutePath: "good/path"}})
	require.NoError(t, err)
	assert.Equal(t, 1, h.delivered)
}
