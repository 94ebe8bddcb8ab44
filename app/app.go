package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	weft "github.com/tokenvault/weft"
	"github.com/tokenvault/weft/errors"
)

// Application processes transactions in blocks on top of a committing
// store. Between BeginBlock and CommitBlock all deliveries share a single
// cache that is written to disk only on commit.
type Application struct {
	log     zerolog.Logger
	db      weft.CommitKVStore
	handler weft.Handler
	ticker  weft.Ticker

	height   int64
	blockCtx weft.Context
	deliver  weft.KVCacheWrap
	check    weft.KVCacheWrap
}

// New returns an application processing transactions with the given
// handler. The ticker is optional, pass nil when the application does not
// schedule tasks.
func New(db weft.CommitKVStore, handler weft.Handler, ticker weft.Ticker, log zerolog.Logger) *Application {
	return &Application{
		log:     log,
		db:      db,
		handler: handler,
		ticker:  ticker,
	}
}

// BeginBlock opens a new block. All scheduled tasks that are due are
// executed before any transaction of this block.
func (a *Application) BeginBlock(height int64, blockTime time.Time) (weft.TickResult, error) {
	var tick weft.TickResult

	if a.deliver != nil {
		return tick, errors.Wrap(errors.ErrState, "previous block is still open")
	}
	if height <= a.height {
		return tick, errors.Wrapf(errors.ErrState, "non monotonic height %d", height)
	}

	a.height = height
	ctx := weft.WithHeight(context.Background(), height)
	a.blockCtx = weft.WithBlockTime(ctx, blockTime)
	a.deliver = a.db.CacheWrap()
	a.check = a.db.CacheWrap()

	if a.ticker != nil {
		tick = a.ticker.Tick(a.blockCtx, a.deliver)
		if len(tick.Executed) != 0 {
			a.log.Debug().
				Int("tasks", len(tick.Executed)).
				Int64("height", height).
				Msg("scheduled tasks executed")
		}
	}
	return tick, nil
}

// BlockContext returns the context of the currently open block. Callers
// attach authentication and payment information to it before submitting a
// transaction.
func (a *Application) BlockContext() weft.Context {
	return a.blockCtx
}

// CheckTx validates the transaction against the current state without
// persisting any change.
func (a *Application) CheckTx(ctx weft.Context, tx weft.Tx) (*weft.CheckResult, error) {
	if a.check == nil {
		return nil, errors.Wrap(errors.ErrState, "no open block")
	}
	return a.handler.Check(ctx, a.check, tx)
}

// DeliverTx executes the transaction within the current block.
func (a *Application) DeliverTx(ctx weft.Context, tx weft.Tx) (*weft.DeliverResult, error) {
	if a.deliver == nil {
		return nil, errors.Wrap(errors.ErrState, "no open block")
	}
	return a.handler.Deliver(ctx, a.deliver, tx)
}

// CommitBlock writes all changes of the current block to disk and closes
// the block.
func (a *Application) CommitBlock() (weft.CommitID, error) {
	if a.deliver == nil {
		return weft.CommitID{}, errors.Wrap(errors.ErrState, "no open block")
	}

	if err := a.deliver.Write(); err != nil {
		return weft.CommitID{}, errors.Wrap(err, "write block cache")
	}
	a.check.Discard()
	a.deliver = nil
	a.check = nil
	a.blockCtx = nil

	id, err := a.db.Commit()
	if err != nil {
		return weft.CommitID{}, errors.Wrap(err, "commit")
	}
	a.log.Info().
		Int64("version", id.Version).
		Msg("block committed")
	return id, nil
}
