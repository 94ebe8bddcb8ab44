package app

import (
	"time"

	"github.com/rs/zerolog"

	weft "github.com/tokenvault/weft"
)

// Logging is a decorator to log transactions as they pass through.
type Logging struct {
	log zerolog.Logger
}

var _ weft.Decorator = Logging{}

// NewLogging creates a Logging decorator.
func NewLogging(log zerolog.Logger) Logging {
	return Logging{log: log}
}

// Check logs error -> info, success -> debug.
func (l Logging) Check(ctx weft.Context, db weft.KVStore, tx weft.Tx, next weft.Checker) (*weft.CheckResult, error) {
	start := time.Now()
	res, err := next.Check(ctx, db, tx)
	l.logResult(tx, "check", start, err, true)
	return res, err
}

// Deliver logs error -> error, success -> info.
func (l Logging) Deliver(ctx weft.Context, db weft.KVStore, tx weft.Tx, next weft.Deliverer) (*weft.DeliverResult, error) {
	start := time.Now()
	res, err := next.Deliver(ctx, db, tx)
	l.logResult(tx, "deliver", start, err, false)
	return res, err
}

func (l Logging) logResult(tx weft.Tx, call string, start time.Time, err error, lowPrio bool) {
	var path string
	if msg, merr := tx.GetMsg(); merr == nil && msg != nil {
		path = msg.Path()
	}
	entry := l.log.Info()
	switch {
	case err != nil:
		entry = l.log.Error().Err(err)
	case lowPrio:
		entry = l.log.Debug()
	}
	entry.
		Str("call", call).
		Str("path", path).
		Dur("duration", time.Since(start)).
		Msg("transaction processed")
}
