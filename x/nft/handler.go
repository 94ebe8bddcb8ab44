package nft

import (
	weft "github.com/tokenvault/weft"
	"github.com/tokenvault/weft/errors"
	"github.com/tokenvault/weft/orm"
	"github.com/tokenvault/weft/store"
	"github.com/tokenvault/weft/x"
	"github.com/tokenvault/weft/x/cash"
	"github.com/tokenvault/weft/x/collateral"
)

const (
	mintCost     int64 = 500
	approveCost  int64 = 300
	revokeCost   int64 = 200
	transferCost int64 = 400
	resolveCost  int64 = 600
)

// RegisterRoutes will instantiate and register all handlers in this
// package.
func RegisterRoutes(r weft.Registry, auth x.Authenticator, ctrl cash.Controller, sched weft.Scheduler, registry *ReceiverRegistry) {
	tokens := NewTokenBucket()
	pending := NewPendingTransferBucket()

	r.Handle(pathMint, &mintHandler{auth: auth, ctrl: ctrl, tokens: tokens})
	r.Handle(pathApprove, &approveHandler{auth: auth, ctrl: ctrl, sched: sched, tokens: tokens})
	r.Handle(pathRevoke, &revokeHandler{auth: auth, ctrl: ctrl, tokens: tokens})
	r.Handle(pathRevokeAll, &revokeAllHandler{auth: auth, ctrl: ctrl, tokens: tokens})
	r.Handle(pathTransfer, &transferHandler{auth: auth, ctrl: ctrl, tokens: tokens})
	r.Handle(pathTransferAndCall, &transferAndCallHandler{auth: auth, ctrl: ctrl, sched: sched, tokens: tokens, pending: pending})
	r.Handle(pathResolveTransfer, &resolveTransferHandler{auth: auth, ctrl: ctrl, tokens: tokens, pending: pending, registry: registry})
	r.Handle(pathNotifyApproval, &notifyApprovalHandler{registry: registry})
}

type mintHandler struct {
	auth   x.Authenticator
	ctrl   cash.Controller
	tokens orm.ModelBucket
}

var _ weft.Handler = (*mintHandler)(nil)

func (h *mintHandler) Check(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*weft.CheckResult, error) {
	if _, _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weft.CheckResult{GasAllocated: mintCost}, nil
}

func (h *mintHandler) Deliver(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*weft.DeliverResult, error) {
	msg, conf, signer, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}

	owner := signer.Address()
	if len(msg.Owner) != 0 {
		owner = msg.Owner
	}

	token := Token{
		Owner:     owner,
		Royalties: msg.Royalties,
		Metadata:  msg.Metadata,
	}

	// route the write through a meter so the exact byte footprint is
	// known and can be charged
	meter := store.NewMeter(db)
	if _, err := h.tokens.Put(meter, []byte(msg.TokenID), &token); err != nil {
		return nil, errors.Wrap(err, "store token")
	}
	if err := collateral.Charge(ctx, db, h.ctrl, conf, signer.Address(), meter.Delta()); err != nil {
		return nil, err
	}

	return &weft.DeliverResult{
		Data: []byte(msg.TokenID),
		Events: []weft.Event{
			weft.NewEvent("mint",
				"token_id", msg.TokenID,
				"owner", owner.String(),
			),
		},
	}, nil
}

func (h *mintHandler) validate(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*MintMsg, collateral.Configuration, weft.Condition, error) {
	var msg MintMsg
	if err := weft.LoadMsg(tx, &msg); err != nil {
		return nil, collateral.Configuration{}, nil, errors.Wrap(err, "load msg")
	}
	conf, err := collateral.LoadConf(db)
	if err != nil {
		return nil, collateral.Configuration{}, nil, errors.Wrap(err, "load configuration")
	}
	signer := x.MainSigner(ctx, h.auth)
	if signer == nil {
		return nil, collateral.Configuration{}, nil, errors.Wrap(errors.ErrUnauthorized, "no signer")
	}
	if err := h.tokens.Has(db, []byte(msg.TokenID)); err == nil {
		return nil, collateral.Configuration{}, nil, errors.Wrapf(errors.ErrDuplicate, "token %q", msg.TokenID)
	} else if !errors.ErrNotFound.Is(err) {
		return nil, collateral.Configuration{}, nil, err
	}
	return &msg, conf, signer, nil
}

type approveHandler struct {
	auth   x.Authenticator
	ctrl   cash.Controller
	sched  weft.Scheduler
	tokens orm.ModelBucket
}

var _ weft.Handler = (*approveHandler)(nil)

func (h *approveHandler) Check(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*weft.CheckResult, error) {
	if _, _, _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weft.CheckResult{GasAllocated: approveCost}, nil
}

func (h *approveHandler) Deliver(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*weft.DeliverResult, error) {
	msg, conf, signer, token, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}

	grant, isNew := token.grant(msg.Grantee)
	if _, err := h.tokens.Put(db, []byte(msg.TokenID), token); err != nil {
		return nil, errors.Wrap(err, "store token")
	}

	// a first time grantee enlarges the approval set and must back the
	// new bytes, re-approvals reuse the existing entry
	if isNew {
		cost, err := conf.BytePrice.Multiply(approvalBytes(msg.Grantee))
		if err != nil {
			return nil, errors.Wrap(err, "approval cost")
		}
		if err := h.ctrl.MoveCoins(db, signer.Address(), collateral.PoolAddress(), cost); err != nil {
			return nil, errors.Wrap(err, "collect approval collateral")
		}
	}

	events := []weft.Event{
		weft.NewEvent("approve",
			"token_id", msg.TokenID,
			"grantee", msg.Grantee.String(),
		),
	}

	// the notification is fire-and-forget, its outcome never affects
	// the grant
	if len(msg.Payload) != 0 {
		now, err := weft.BlockTime(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "block time")
		}
		notify := &NotifyApprovalMsg{
			TokenID:    msg.TokenID,
			Grantee:    msg.Grantee,
			Owner:      token.Owner,
			ApprovalID: grant.ApprovalID,
			Payload:    msg.Payload,
		}
		if _, err := h.sched.Schedule(db, now, LedgerCondition.Address(), []weft.Condition{signer}, notify); err != nil {
			return nil, errors.Wrap(err, "schedule notification")
		}
	}

	return &weft.DeliverResult{Events: events}, nil
}

func (h *approveHandler) validate(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*ApproveMsg, collateral.Configuration, weft.Condition, *Token, error) {
	var msg ApproveMsg
	if err := weft.LoadMsg(tx, &msg); err != nil {
		return nil, collateral.Configuration{}, nil, nil, errors.Wrap(err, "load msg")
	}
	conf, err := collateral.LoadConf(db)
	if err != nil {
		return nil, collateral.Configuration{}, nil, nil, errors.Wrap(err, "load configuration")
	}
	if err := collateral.RequireBaseUnit(ctx, conf); err != nil {
		return nil, collateral.Configuration{}, nil, nil, err
	}
	signer := x.MainSigner(ctx, h.auth)
	if signer == nil {
		return nil, collateral.Configuration{}, nil, nil, errors.Wrap(errors.ErrUnauthorized, "no signer")
	}
	var token Token
	if err := h.tokens.One(db, []byte(msg.TokenID), &token); err != nil {
		return nil, collateral.Configuration{}, nil, nil, errors.Wrapf(err, "token %q", msg.TokenID)
	}
	if !token.Owner.Equals(signer.Address()) {
		return nil, collateral.Configuration{}, nil, nil, errors.Wrap(errors.ErrUnauthorized, "only the owner can approve")
	}
	return &msg, conf, signer, &token, nil
}

type revokeHandler struct {
	auth   x.Authenticator
	ctrl   cash.Controller
	tokens orm.ModelBucket
}

var _ weft.Handler = (*revokeHandler)(nil)

func (h *revokeHandler) Check(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*weft.CheckResult, error) {
	if _, _, _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weft.CheckResult{GasAllocated: revokeCost}, nil
}

func (h *revokeHandler) Deliver(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*weft.DeliverResult, error) {
	msg, conf, signer, token, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}

	if !token.revoke(msg.Grantee) {
		// absent grantee, nothing to do
		return &weft.DeliverResult{}, nil
	}
	if _, err := h.tokens.Put(db, []byte(msg.TokenID), token); err != nil {
		return nil, errors.Wrap(err, "store token")
	}
	if err := collateral.Refund(db, h.ctrl, conf, signer.Address(), approvalBytes(msg.Grantee)); err != nil {
		return nil, err
	}

	return &weft.DeliverResult{
		Events: []weft.Event{
			weft.NewEvent("revoke",
				"token_id", msg.TokenID,
				"grantee", msg.Grantee.String(),
			),
		},
	}, nil
}

func (h *revokeHandler) validate(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*RevokeMsg, collateral.Configuration, weft.Condition, *Token, error) {
	var msg RevokeMsg
	if err := weft.LoadMsg(tx, &msg); err != nil {
		return nil, collateral.Configuration{}, nil, nil, errors.Wrap(err, "load msg")
	}
	conf, signer, token, err := ownerGated(ctx, db, h.auth, h.tokens, msg.TokenID)
	if err != nil {
		return nil, collateral.Configuration{}, nil, nil, err
	}
	return &msg, conf, signer, token, nil
}

type revokeAllHandler struct {
	auth   x.Authenticator
	ctrl   cash.Controller
	tokens orm.ModelBucket
}

var _ weft.Handler = (*revokeAllHandler)(nil)

func (h *revokeAllHandler) Check(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*weft.CheckResult, error) {
	if _, _, _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weft.CheckResult{GasAllocated: revokeCost}, nil
}

func (h *revokeAllHandler) Deliver(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*weft.DeliverResult, error) {
	msg, conf, signer, token, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}

	if len(token.Approvals) == 0 {
		return &weft.DeliverResult{}, nil
	}
	freed := approvalSetBytes(token.Approvals)
	token.Approvals = nil
	if _, err := h.tokens.Put(db, []byte(msg.TokenID), token); err != nil {
		return nil, errors.Wrap(err, "store token")
	}
	if err := collateral.Refund(db, h.ctrl, conf, signer.Address(), freed); err != nil {
		return nil, err
	}

	return &weft.DeliverResult{
		Events: []weft.Event{
			weft.NewEvent("revoke_all", "token_id", msg.TokenID),
		},
	}, nil
}

func (h *revokeAllHandler) validate(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*RevokeAllMsg, collateral.Configuration, weft.Condition, *Token, error) {
	var msg RevokeAllMsg
	if err := weft.LoadMsg(tx, &msg); err != nil {
		return nil, collateral.Configuration{}, nil, nil, errors.Wrap(err, "load msg")
	}
	conf, signer, token, err := ownerGated(ctx, db, h.auth, h.tokens, msg.TokenID)
	if err != nil {
		return nil, collateral.Configuration{}, nil, nil, err
	}
	return &msg, conf, signer, token, nil
}

// ownerGated loads the configuration and the token, and ensures the tx
// attaches exactly one base unit and is signed by the token owner.
func ownerGated(ctx weft.Context, db weft.KVStore, auth x.Authenticator, tokens orm.ModelBucket, tokenID string) (collateral.Configuration, weft.Condition, *Token, error) {
	conf, err := collateral.LoadConf(db)
	if err != nil {
		return collateral.Configuration{}, nil, nil, errors.Wrap(err, "load configuration")
	}
	if err := collateral.RequireBaseUnit(ctx, conf); err != nil {
		return collateral.Configuration{}, nil, nil, err
	}
	signer := x.MainSigner(ctx, auth)
	if signer == nil {
		return collateral.Configuration{}, nil, nil, errors.Wrap(errors.ErrUnauthorized, "no signer")
	}
	var token Token
	if err := tokens.One(db, []byte(tokenID), &token); err != nil {
		return collateral.Configuration{}, nil, nil, errors.Wrapf(err, "token %q", tokenID)
	}
	if !token.Owner.Equals(signer.Address()) {
		return collateral.Configuration{}, nil, nil, errors.Wrap(errors.ErrUnauthorized, "only the owner can do this")
	}
	return conf, signer, &token, nil
}
