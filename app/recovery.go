package app

import (
	weft "github.com/tokenvault/weft"
	"github.com/tokenvault/weft/errors"
)

// Recovery is a decorator to recover from panics in transactions, so we
// can report them as normal errors.
type Recovery struct{}

var _ weft.Decorator = Recovery{}

// NewRecovery creates a Recovery decorator.
func NewRecovery() Recovery {
	return Recovery{}
}

// Check turns panics into normal errors.
func (r Recovery) Check(ctx weft.Context, db weft.KVStore, tx weft.Tx, next weft.Checker) (res *weft.CheckResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = normalizePanic(p)
		}
	}()
	return next.Check(ctx, db, tx)
}

// Deliver turns panics into normal errors.
func (r Recovery) Deliver(ctx weft.Context, db weft.KVStore, tx weft.Tx, next weft.Deliverer) (res *weft.DeliverResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = normalizePanic(p)
		}
	}()
	return next.Deliver(ctx, db, tx)
}

func normalizePanic(p interface{}) error {
	if err, ok := p.(error); ok {
		return errors.Wrap(errors.ErrPanic, err.Error())
	}
	return errors.Wrapf(errors.ErrPanic, "%v", p)
}
