package marketplace

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stkolmagorov/marketplace/common/errs"
	"github.com/stkolmagorov/marketplace/modules/marketplace/datagateway"
	"github.com/stkolmagorov/marketplace/modules/marketplace/gateway"
	"github.com/stkolmagorov/marketplace/modules/marketplace/internal/entity"
)

// Engine is the marketplace settlement engine. It custodies listed assets in
// the escrow account, tracks sale and auction lifecycles in the ledger and
// distributes payments among seller, royalty beneficiaries and commission
// recipients.
//
// Every public operation runs inside one ledger transaction: any failure in
// any batch item rolls back the whole call, including asset and fund
// movements recorded in earlier items.
type Engine struct {
	marketplaceDg datagateway.MarketplaceDataGateway
	assets        gateway.AssetGateway
	funds         gateway.FundsGateway

	// escrowAccount holds custodied assets and in-flight payment funds.
	escrowAccount string

	// busy guards fund-distributing operations against reentrant invocation.
	// Payout recipients can trigger callbacks, so a nested call into any
	// guarded surface must fail fast instead of observing half-applied state.
	busy atomic.Bool
}

func New(marketplaceDg datagateway.MarketplaceDataGateway, assets gateway.AssetGateway, funds gateway.FundsGateway, escrowAccount string) *Engine {
	return &Engine{
		marketplaceDg: marketplaceDg,
		assets:        assets,
		funds:         funds,
		escrowAccount: escrowAccount,
	}
}

func (e *Engine) enterGuarded() error {
	if !e.busy.CompareAndSwap(false, true) {
		return errors.WithStack(errs.ReentrantCall)
	}
	return nil
}

func (e *Engine) exitGuarded() {
	e.busy.Store(false)
}

// checkpointGateways captures the custody state of gateways that support
// reverting, so an aborted call restores asset and fund movements along with
// the ledger rollback. Returns nil when neither gateway is Transactional;
// such deployments provide atomicity through their execution environment.
func (e *Engine) checkpointGateways() func() {
	var restores []func()
	if t, ok := e.assets.(gateway.Transactional); ok {
		restores = append(restores, t.Checkpoint())
	}
	if t, ok := e.funds.(gateway.Transactional); ok {
		restores = append(restores, t.Checkpoint())
	}
	if len(restores) == 0 {
		return nil
	}
	return func() {
		for _, restore := range restores {
			restore()
		}
	}
}

func (e *Engine) emitEvent(ctx context.Context, qtx datagateway.MarketplaceDataGatewayWithTx, kind entity.RecordKind, recordID uint64, action entity.EventAction, caller string, payload any) error {
	var raw []byte
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return errors.Wrap(err, "failed to marshal event payload")
		}
	}
	err := qtx.CreateEvent(ctx, entity.MarketplaceEvent{
		Kind:      kind,
		RecordID:  recordID,
		Action:    action,
		Caller:    caller,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return errors.Wrap(err, "failed to create event")
	}
	return nil
}
