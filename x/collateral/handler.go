package collateral

import (
	weft "github.com/tokenvault/weft"
	"github.com/tokenvault/weft/coin"
	"github.com/tokenvault/weft/errors"
	"github.com/tokenvault/weft/orm"
	"github.com/tokenvault/weft/x"
	"github.com/tokenvault/weft/x/cash"
)

const (
	depositCost  int64 = 300
	withdrawCost int64 = 200
	updateCost   int64 = 50
)

// RegisterRoutes will instantiate and register all handlers in this
// package.
func RegisterRoutes(r weft.Registry, auth x.Authenticator, ctrl cash.Controller, counter ReservationCounter) {
	bucket := NewDepositBucket()
	r.Handle(pathDeposit, &depositHandler{auth: auth, ctrl: ctrl, bucket: bucket})
	r.Handle(pathWithdraw, &withdrawHandler{auth: auth, ctrl: ctrl, bucket: bucket, counter: counter})
	r.Handle(pathUpdateConfiguration, &updateConfigurationHandler{auth: auth})
}

type depositHandler struct {
	auth   x.Authenticator
	ctrl   cash.Controller
	bucket orm.ModelBucket
}

var _ weft.Handler = (*depositHandler)(nil)

func (h *depositHandler) Check(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*weft.CheckResult, error) {
	if _, _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weft.CheckResult{GasAllocated: depositCost}, nil
}

func (h *depositHandler) Deliver(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*weft.DeliverResult, error) {
	msg, conf, signer, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}

	account := signer.Address()
	if len(msg.Account) != 0 {
		account = msg.Account
	}
	payment := weft.Payment(ctx)

	if err := h.ctrl.MoveCoins(db, signer.Address(), PoolAddress(), payment); err != nil {
		return nil, errors.Wrap(err, "move deposit")
	}

	var acc DepositAccount
	switch err := h.bucket.One(db, account, &acc); {
	case err == nil:
	case errors.ErrNotFound.Is(err):
		acc.Balance = coinZero(conf)
	default:
		return nil, errors.Wrap(err, "deposit account")
	}
	balance, err := acc.Balance.Add(payment)
	if err != nil {
		return nil, errors.Wrap(err, "credit deposit")
	}
	acc.Balance = balance
	if _, err := h.bucket.Put(db, account, &acc); err != nil {
		return nil, errors.Wrap(err, "save deposit account")
	}

	return &weft.DeliverResult{
		Events: []weft.Event{
			weft.NewEvent("deposit",
				"account", account.String(),
				"amount", payment.String(),
			),
		},
	}, nil
}

func (h *depositHandler) validate(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*DepositMsg, Configuration, weft.Condition, error) {
	var msg DepositMsg
	if err := weft.LoadMsg(tx, &msg); err != nil {
		return nil, Configuration{}, nil, errors.Wrap(err, "load msg")
	}
	conf, err := LoadConf(db)
	if err != nil {
		return nil, Configuration{}, nil, errors.Wrap(err, "load configuration")
	}
	signer := x.MainSigner(ctx, h.auth)
	if signer == nil {
		return nil, Configuration{}, nil, errors.Wrap(errors.ErrUnauthorized, "no signer")
	}

	payment := weft.Payment(ctx)
	minimum, err := SlotCost(conf)
	if err != nil {
		return nil, Configuration{}, nil, err
	}
	if !payment.SameType(minimum) || !payment.IsGTE(minimum) {
		return nil, Configuration{}, nil, errors.Wrapf(ErrMinimumDeposit, "requires at least %s, attached %s", minimum, payment)
	}
	return &msg, conf, signer, nil
}

type withdrawHandler struct {
	auth    x.Authenticator
	ctrl    cash.Controller
	bucket  orm.ModelBucket
	counter ReservationCounter
}

var _ weft.Handler = (*withdrawHandler)(nil)

func (h *withdrawHandler) Check(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*weft.CheckResult, error) {
	if _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weft.CheckResult{GasAllocated: withdrawCost}, nil
}

func (h *withdrawHandler) Deliver(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*weft.DeliverResult, error) {
	conf, signer, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	owner := signer.Address()

	var acc DepositAccount
	switch err := h.bucket.One(db, owner, &acc); {
	case err == nil:
	case errors.ErrNotFound.Is(err):
		// nothing on deposit, nothing to release
		return &weft.DeliverResult{}, nil
	default:
		return nil, errors.Wrap(err, "deposit account")
	}

	reserved, err := Reserved(db, conf, h.counter, owner)
	if err != nil {
		return nil, err
	}
	withdrawable, err := acc.Balance.Subtract(reserved)
	if err != nil {
		return nil, errors.Wrap(err, "withdrawable amount")
	}
	if !withdrawable.IsPositive() {
		// the whole balance is locked by active listings
		return &weft.DeliverResult{}, nil
	}

	if err := h.ctrl.MoveCoins(db, PoolAddress(), owner, withdrawable); err != nil {
		return nil, errors.Wrap(err, "release deposit")
	}

	if reserved.IsZero() {
		if err := h.bucket.Delete(db, owner); err != nil {
			return nil, errors.Wrap(err, "drop deposit account")
		}
	} else {
		acc.Balance = reserved
		if _, err := h.bucket.Put(db, owner, &acc); err != nil {
			return nil, errors.Wrap(err, "save deposit account")
		}
	}

	return &weft.DeliverResult{
		Events: []weft.Event{
			weft.NewEvent("withdraw",
				"account", owner.String(),
				"amount", withdrawable.String(),
			),
		},
	}, nil
}

func (h *withdrawHandler) validate(ctx weft.Context, db weft.KVStore, tx weft.Tx) (Configuration, weft.Condition, error) {
	var msg WithdrawMsg
	if err := weft.LoadMsg(tx, &msg); err != nil {
		return Configuration{}, nil, errors.Wrap(err, "load msg")
	}
	conf, err := LoadConf(db)
	if err != nil {
		return Configuration{}, nil, errors.Wrap(err, "load configuration")
	}
	if err := RequireBaseUnit(ctx, conf); err != nil {
		return Configuration{}, nil, err
	}
	signer := x.MainSigner(ctx, h.auth)
	if signer == nil {
		return Configuration{}, nil, errors.Wrap(errors.ErrUnauthorized, "no signer")
	}
	return conf, signer, nil
}

type updateConfigurationHandler struct {
	auth x.Authenticator
}

var _ weft.Handler = (*updateConfigurationHandler)(nil)

func (h *updateConfigurationHandler) Check(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*weft.CheckResult, error) {
	if _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weft.CheckResult{GasAllocated: updateCost}, nil
}

func (h *updateConfigurationHandler) Deliver(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*weft.DeliverResult, error) {
	msg, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	if err := SaveConf(db, msg.Patch); err != nil {
		return nil, errors.Wrap(err, "save configuration")
	}
	return &weft.DeliverResult{}, nil
}

func (h *updateConfigurationHandler) validate(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*UpdateConfigurationMsg, error) {
	var msg UpdateConfigurationMsg
	if err := weft.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	conf, err := LoadConf(db)
	if err != nil {
		return nil, errors.Wrap(err, "load configuration")
	}
	if !h.auth.HasAddress(ctx, conf.Owner) {
		return nil, errors.Wrap(errors.ErrUnauthorized, "configuration owner signature required")
	}
	return &msg, nil
}

func coinZero(conf Configuration) coin.Coin {
	return coin.Coin{Ticker: conf.BytePrice.Ticker}
}
