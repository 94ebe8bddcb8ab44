package nft

import (
	"encoding/hex"

	weft "github.com/tokenvault/weft"
	"github.com/tokenvault/weft/errors"
	"github.com/tokenvault/weft/orm"
	"github.com/tokenvault/weft/store"
	"github.com/tokenvault/weft/x"
	"github.com/tokenvault/weft/x/cash"
	"github.com/tokenvault/weft/x/collateral"
)

type transferHandler struct {
	auth   x.Authenticator
	ctrl   cash.Controller
	tokens orm.ModelBucket
}

var _ weft.Handler = (*transferHandler)(nil)

func (h *transferHandler) Check(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*weft.CheckResult, error) {
	if _, _, _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weft.CheckResult{GasAllocated: transferCost}, nil
}

func (h *transferHandler) Deliver(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*weft.DeliverResult, error) {
	msg, conf, _, token, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}

	previousOwner := token.Owner
	freed := approvalSetBytes(token.Approvals)
	if err := moveToken(db, h.tokens, msg.TokenID, token, msg.Receiver); err != nil {
		return nil, err
	}
	// the cleared approvals were paid for by the previous owner
	if err := collateral.Refund(db, h.ctrl, conf, previousOwner, freed); err != nil {
		return nil, err
	}

	return &weft.DeliverResult{
		Events: []weft.Event{
			weft.NewEvent("transfer",
				"token_id", msg.TokenID,
				"from", previousOwner.String(),
				"to", msg.Receiver.String(),
			),
		},
	}, nil
}

func (h *transferHandler) validate(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*TransferMsg, collateral.Configuration, weft.Condition, *Token, error) {
	var msg TransferMsg
	if err := weft.LoadMsg(tx, &msg); err != nil {
		return nil, collateral.Configuration{}, nil, nil, errors.Wrap(err, "load msg")
	}
	conf, signer, token, err := authorizeTransfer(ctx, db, h.auth, h.tokens, msg.TokenID, msg.Receiver, msg.ApprovalID)
	if err != nil {
		return nil, collateral.Configuration{}, nil, nil, err
	}
	return &msg, conf, signer, token, nil
}

type transferAndCallHandler struct {
	auth    x.Authenticator
	ctrl    cash.Controller
	sched   weft.Scheduler
	tokens  orm.ModelBucket
	pending orm.ModelBucket
}

var _ weft.Handler = (*transferAndCallHandler)(nil)

func (h *transferAndCallHandler) Check(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*weft.CheckResult, error) {
	if _, _, _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weft.CheckResult{GasAllocated: transferCost}, nil
}

func (h *transferAndCallHandler) Deliver(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*weft.DeliverResult, error) {
	msg, _, signer, token, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}

	previousOwner := token.Owner
	carried := token.Approvals
	carriedNext := token.NextApprovalID
	if err := moveToken(db, h.tokens, msg.TokenID, token, msg.Receiver); err != nil {
		return nil, err
	}

	// the carried approvals are not refunded yet, a rollback restores
	// them
	pt := PendingTransfer{
		TokenID:               msg.TokenID,
		Sender:                signer.Address(),
		PreviousOwner:         previousOwner,
		Receiver:              msg.Receiver,
		Payload:               msg.Payload,
		Memo:                  msg.Memo,
		CarriedApprovals:      carried,
		CarriedNextApprovalID: carriedNext,
		State:                 TransferInitiated,
	}
	transferID, err := h.pending.Put(db, nil, &pt)
	if err != nil {
		return nil, errors.Wrap(err, "store pending transfer")
	}

	now, err := weft.BlockTime(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "block time")
	}
	resolve := &ResolveTransferMsg{TransferID: transferID}
	conds := []weft.Condition{resolutionCondition(transferID)}
	if _, err := h.sched.Schedule(db, now, LedgerCondition.Address(), conds, resolve); err != nil {
		return nil, errors.Wrap(err, "schedule resolution")
	}

	pt.State = TransferAwaitingAck
	if _, err := h.pending.Put(db, transferID, &pt); err != nil {
		return nil, errors.Wrap(err, "store pending transfer")
	}

	return &weft.DeliverResult{
		Data: transferID,
		Events: []weft.Event{
			weft.NewEvent("transfer",
				"token_id", msg.TokenID,
				"from", previousOwner.String(),
				"to", msg.Receiver.String(),
				"pending", hex.EncodeToString(transferID),
			),
		},
	}, nil
}

func (h *transferAndCallHandler) validate(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*TransferAndCallMsg, collateral.Configuration, weft.Condition, *Token, error) {
	var msg TransferAndCallMsg
	if err := weft.LoadMsg(tx, &msg); err != nil {
		return nil, collateral.Configuration{}, nil, nil, errors.Wrap(err, "load msg")
	}
	conf, signer, token, err := authorizeTransfer(ctx, db, h.auth, h.tokens, msg.TokenID, msg.Receiver, msg.ApprovalID)
	if err != nil {
		return nil, collateral.Configuration{}, nil, nil, err
	}
	return &msg, conf, signer, token, nil
}

// authorizeTransfer ensures the tx attaches one base unit and that the
// signer may move the token: either as its owner or through an approval,
// optionally pinned to an exact approval identifier.
func authorizeTransfer(ctx weft.Context, db weft.KVStore, auth x.Authenticator, tokens orm.ModelBucket, tokenID string, receiver weft.Address, approvalID *int64) (collateral.Configuration, weft.Condition, *Token, error) {
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
	if token.Owner.Equals(receiver) {
		return collateral.Configuration{}, nil, nil, errors.Wrapf(ErrSelfTransfer, "token %q", tokenID)
	}

	if !token.Owner.Equals(signer.Address()) {
		grant, ok := token.Approved(signer.Address())
		if !ok {
			return collateral.Configuration{}, nil, nil, errors.Wrap(errors.ErrUnauthorized, "not owner and not approved")
		}
		if approvalID != nil && grant.ApprovalID != *approvalID {
			return collateral.Configuration{}, nil, nil, errors.Wrapf(errors.ErrUnauthorized, "approval id %d is stale", *approvalID)
		}
	}
	return conf, signer, &token, nil
}

// moveToken hands the token to a new owner. The record is replaced: the
// approval set is cleared and the identifier counter starts over, the
// royalty schedule and metadata are carried.
func moveToken(db weft.KVStore, tokens orm.ModelBucket, tokenID string, t *Token, newOwner weft.Address) error {
	next := Token{
		Owner:     newOwner,
		Royalties: t.Royalties,
		Metadata:  t.Metadata,
	}
	if _, err := tokens.Put(db, []byte(tokenID), &next); err != nil {
		return errors.Wrap(err, "store token")
	}
	return nil
}

type resolveTransferHandler struct {
	auth     x.Authenticator
	ctrl     cash.Controller
	tokens   orm.ModelBucket
	pending  orm.ModelBucket
	registry *ReceiverRegistry
}

var _ weft.Handler = (*resolveTransferHandler)(nil)

func (h *resolveTransferHandler) Check(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*weft.CheckResult, error) {
	if _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weft.CheckResult{GasAllocated: resolveCost}, nil
}

func (h *resolveTransferHandler) Deliver(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*weft.DeliverResult, error) {
	msg, pt, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	conf, err := collateral.LoadConf(db)
	if err != nil {
		return nil, errors.Wrap(err, "load configuration")
	}

	// the receiver runs on its own cache wrap, its writes survive only
	// an acceptance
	accepted := false
	if rcv, ok := h.registry.Receiver(pt.Receiver); ok {
		cache := store.BTreeCacheable{KVStore: db}.CacheWrap()
		keep, err := rcv.OnTransfer(ctx, cache, TransferNotification{
			TokenID:       pt.TokenID,
			Sender:        pt.Sender,
			PreviousOwner: pt.PreviousOwner,
			Payload:       pt.Payload,
			Memo:          pt.Memo,
		})
		if err != nil || !keep {
			cache.Discard()
		} else {
			if err := cache.Write(); err != nil {
				return nil, errors.Wrap(err, "write receiver changes")
			}
			accepted = true
		}
	}

	var events []weft.Event
	if accepted {
		pt.State = TransferCommitted
		if err := collateral.Refund(db, h.ctrl, conf, pt.PreviousOwner, approvalSetBytes(pt.CarriedApprovals)); err != nil {
			return nil, err
		}
	} else {
		committed, err := h.rollback(db, conf, pt)
		if err != nil {
			return nil, err
		}
		if committed {
			pt.State = TransferCommitted
		} else {
			pt.State = TransferRolledBack
			events = append(events, weft.NewEvent("transfer",
				"token_id", pt.TokenID,
				"from", pt.Receiver.String(),
				"to", pt.PreviousOwner.String(),
				"rollback", "true",
			))
		}
	}

	if _, err := h.pending.Put(db, msg.TransferID, pt); err != nil {
		return nil, errors.Wrap(err, "store pending transfer")
	}

	events = append(events, weft.NewEvent("transfer_resolved",
		"token_id", pt.TokenID,
		"pending", hex.EncodeToString(msg.TransferID),
		"accepted", boolString(accepted),
	))
	return &weft.DeliverResult{Events: events}, nil
}

// rollback undoes a rejected transfer. When the receiver no longer holds
// the token there is nothing to undo and the move is committed in place,
// reported by the returned flag.
func (h *resolveTransferHandler) rollback(db weft.KVStore, conf collateral.Configuration, pt *PendingTransfer) (bool, error) {
	var token Token
	switch err := h.tokens.One(db, []byte(pt.TokenID), &token); {
	case errors.ErrNotFound.Is(err):
		// burned in the meantime
	case err != nil:
		return false, errors.Wrapf(err, "token %q", pt.TokenID)
	}

	if !token.Owner.Equals(pt.Receiver) {
		// the token moved on, the carried approvals are gone for good
		if err := collateral.Refund(db, h.ctrl, conf, pt.PreviousOwner, approvalSetBytes(pt.CarriedApprovals)); err != nil {
			return false, err
		}
		return true, nil
	}

	// refund whatever the receiver approved during its short ownership
	if err := collateral.Refund(db, h.ctrl, conf, pt.Receiver, approvalSetBytes(token.Approvals)); err != nil {
		return false, err
	}

	restored := Token{
		Owner:          pt.PreviousOwner,
		Approvals:      pt.CarriedApprovals,
		NextApprovalID: pt.CarriedNextApprovalID,
		Royalties:      token.Royalties,
		Metadata:       token.Metadata,
	}
	if _, err := h.tokens.Put(db, []byte(pt.TokenID), &restored); err != nil {
		return false, errors.Wrap(err, "restore token")
	}
	return false, nil
}

func (h *resolveTransferHandler) validate(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*ResolveTransferMsg, *PendingTransfer, error) {
	var msg ResolveTransferMsg
	if err := weft.LoadMsg(tx, &msg); err != nil {
		return nil, nil, errors.Wrap(err, "load msg")
	}
	if !x.HasAllConditions(ctx, h.auth, []weft.Condition{resolutionCondition(msg.TransferID)}) {
		return nil, nil, errors.Wrap(errors.ErrUnauthorized, "resolution authority required")
	}
	var pt PendingTransfer
	if err := h.pending.One(db, msg.TransferID, &pt); err != nil {
		return nil, nil, errors.Wrap(err, "pending transfer")
	}
	if pt.State != TransferAwaitingAck {
		return nil, nil, errors.Wrapf(errors.ErrState, "transfer already resolved (state %d)", pt.State)
	}
	return &msg, &pt, nil
}

type notifyApprovalHandler struct {
	registry *ReceiverRegistry
}

var _ weft.Handler = (*notifyApprovalHandler)(nil)

func (h *notifyApprovalHandler) Check(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*weft.CheckResult, error) {
	if _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weft.CheckResult{GasAllocated: approveCost}, nil
}

func (h *notifyApprovalHandler) Deliver(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*weft.DeliverResult, error) {
	msg, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}

	rcv, ok := h.registry.ApprovalReceiver(msg.Grantee)
	if !ok {
		// accounts without the capability simply miss the notification
		return &weft.DeliverResult{Log: "grantee is not an approval receiver"}, nil
	}

	cache := store.BTreeCacheable{KVStore: db}.CacheWrap()
	events, err := rcv.OnApprove(ctx, cache, ApprovalNotification{
		TokenID:    msg.TokenID,
		Owner:      msg.Owner,
		ApprovalID: msg.ApprovalID,
		Payload:    msg.Payload,
	})
	if err != nil {
		// the grant stays intact regardless of what the receiver does
		cache.Discard()
		return &weft.DeliverResult{Log: err.Error()}, nil
	}
	if err := cache.Write(); err != nil {
		return nil, errors.Wrap(err, "write receiver changes")
	}
	return &weft.DeliverResult{Events: events}, nil
}

func (h *notifyApprovalHandler) validate(ctx weft.Context, db weft.KVStore, tx weft.Tx) (*NotifyApprovalMsg, error) {
	var msg NotifyApprovalMsg
	if err := weft.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	// only the scheduled task executes with the ledger as the caller
	if !weft.Caller(ctx).Equals(LedgerCondition.Address()) {
		return nil, errors.Wrap(errors.ErrUnauthorized, "notifications are issued by the ledger only")
	}
	return &msg, nil
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
