package marketplace

import (
	"context"
	"encoding/hex"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/uint128"
	"github.com/samber/lo"
	"github.com/stkolmagorov/marketplace/common/errs"
	"github.com/stkolmagorov/marketplace/modules/marketplace/datagateway"
	"github.com/stkolmagorov/marketplace/modules/marketplace/internal/authz"
	"github.com/stkolmagorov/marketplace/modules/marketplace/internal/entity"
)

type CreateSaleParams struct {
	Currency     entity.Currency
	Asset        entity.AssetRef
	Quantity     uint64
	PricePerUnit uint64
	Class        entity.AssetClass
}

type ResolveSaleParams struct {
	SaleID         uint64
	ApprovedBuyers []string
	ApprovedPrices []uint64
	Signature      []byte
}

type PurchaseSaleParams struct {
	SaleID   uint64
	Quantity uint64
}

// CreateSales lists the caller's assets for sale. Each listed asset moves
// into escrow custody and its royalty capability is probed once and
// snapshotted into the record. Returns the assigned ids in batch order.
func (e *Engine) CreateSales(ctx context.Context, caller string, params []CreateSaleParams) ([]uint64, error) {
	qtx, err := e.marketplaceDg.BeginMarketplaceTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	revert := e.checkpointGateways()
	defer func() {
		if revert != nil {
			revert()
		}
		_ = qtx.Rollback(ctx)
	}()

	ids := make([]uint64, 0, len(params))
	for _, p := range params {
		if p.Quantity == 0 || (p.Class == entity.AssetClassExclusive && p.Quantity != 1) {
			return nil, errors.WithStack(errs.InvalidAmountOfTokensToSale)
		}
		if err := e.requireSupportedCurrency(ctx, qtx, p.Currency); err != nil {
			return nil, err
		}
		if err := e.assets.Transfer(ctx, p.Asset, caller, e.escrowAccount, p.Quantity); err != nil {
			return nil, errors.Wrap(err, "failed to move asset into escrow")
		}
		royalty, err := e.assets.RoyaltySupport(ctx, p.Asset)
		if err != nil {
			return nil, errors.Wrap(err, "failed to probe royalty support")
		}

		id, err := qtx.CreateSale(ctx, entity.SaleRecord{
			Seller:        caller,
			Currency:      p.Currency,
			Asset:         p.Asset,
			AmountOffered: p.Quantity,
			PricePerUnit:  p.PricePerUnit,
			Class:         p.Class,
			Royalty:       royalty,
			Status:        entity.StatusActive,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create sale")
		}
		if err := e.emitEvent(ctx, qtx, entity.RecordKindSale, id, entity.EventSaleCreated, caller, nil); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := qtx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to commit transaction")
	}
	revert = nil
	return ids, nil
}

// CancelSales cancels the caller's active sales and returns the unsold
// custodied remainder of each to the seller.
func (e *Engine) CancelSales(ctx context.Context, caller string, ids []uint64) error {
	if err := e.enterGuarded(); err != nil {
		return err
	}
	defer e.exitGuarded()

	qtx, err := e.marketplaceDg.BeginMarketplaceTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	revert := e.checkpointGateways()
	defer func() {
		if revert != nil {
			revert()
		}
		_ = qtx.Rollback(ctx)
	}()

	for _, id := range ids {
		sale, err := qtx.GetSale(ctx, id)
		if err != nil {
			return errors.Wrapf(err, "failed to get sale %d", id)
		}
		if sale.Status != entity.StatusActive {
			return errors.WithStack(errs.InvalidStatus)
		}
		if sale.Seller != caller {
			return errors.WithStack(errs.InvalidCallee)
		}

		if err := e.assets.Transfer(ctx, sale.Asset, e.escrowAccount, sale.Seller, sale.AmountAvailable()); err != nil {
			return errors.Wrap(err, "failed to return asset to seller")
		}
		sale.Status = entity.StatusCancelled
		if err := qtx.UpdateSale(ctx, *sale); err != nil {
			return errors.Wrapf(err, "failed to update sale %d", id)
		}
		if err := e.emitEvent(ctx, qtx, entity.RecordKindSale, id, entity.EventSaleCancelled, caller, nil); err != nil {
			return err
		}
	}

	if err := qtx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	revert = nil
	return nil
}

// ResolveSale applies authorizer-approved per-buyer price overrides to an
// active sale. The signature covers the full (buyers, prices, sale id)
// payload and is consumed on success; a sale may be resolved again with a
// fresh signature, overwriting overrides for the listed buyers.
func (e *Engine) ResolveSale(ctx context.Context, caller string, params ResolveSaleParams) error {
	if len(params.ApprovedBuyers) != len(params.ApprovedPrices) {
		return errors.WithStack(errs.InvalidArrayLengths)
	}

	qtx, err := e.marketplaceDg.BeginMarketplaceTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = qtx.Rollback(ctx) }()

	sale, err := qtx.GetSale(ctx, params.SaleID)
	if err != nil {
		return errors.Wrapf(err, "failed to get sale %d", params.SaleID)
	}
	if sale.Status != entity.StatusActive {
		return errors.WithStack(errs.InvalidStatus)
	}
	if sale.Seller != caller {
		return errors.WithStack(errs.InvalidCallee)
	}
	if lo.SomeBy(params.ApprovedPrices, func(price uint64) bool { return price == 0 }) {
		return errors.WithStack(errs.InvalidApprovedPricePerToken)
	}

	engineParams, err := qtx.GetEngineParams(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get engine params")
	}
	message := authz.EncodeSaleResolution(params.SaleID, params.ApprovedBuyers, params.ApprovedPrices)
	if err := authz.Verify(ctx, qtx, message, params.Signature, engineParams.AuthorizerPublicKey); err != nil {
		return err
	}
	if err := authz.Consume(ctx, qtx, params.Signature); err != nil {
		return err
	}

	for i, buyer := range params.ApprovedBuyers {
		err := qtx.SetApprovedPrice(ctx, datagateway.SetApprovedPriceParams{
			SaleID:       params.SaleID,
			Buyer:        buyer,
			PricePerUnit: params.ApprovedPrices[i],
		})
		if err != nil {
			return errors.Wrap(err, "failed to set approved price")
		}
	}

	payload := entity.ResolutionPayload{
		SaleID:         &params.SaleID,
		ApprovedBuyers: params.ApprovedBuyers,
		ApprovedPrices: params.ApprovedPrices,
		Signature:      hex.EncodeToString(params.Signature),
	}
	if err := e.emitEvent(ctx, qtx, entity.RecordKindSale, params.SaleID, entity.EventSaleResolved, caller, payload); err != nil {
		return err
	}

	if err := qtx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

// PurchaseSales buys quantities from active sales. The caller pays the
// approved override price when one is set for them, otherwise the listing
// price. attachedNative is pulled into escrow up front; whatever the batch
// does not consume is refunded once at the end.
func (e *Engine) PurchaseSales(ctx context.Context, caller string, attachedNative uint64, params []PurchaseSaleParams) error {
	if err := e.enterGuarded(); err != nil {
		return err
	}
	defer e.exitGuarded()

	qtx, err := e.marketplaceDg.BeginMarketplaceTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	revert := e.checkpointGateways()
	defer func() {
		if revert != nil {
			revert()
		}
		_ = qtx.Rollback(ctx)
	}()

	if attachedNative > 0 {
		if err := e.funds.TransferNative(ctx, caller, e.escrowAccount, attachedNative); err != nil {
			return errors.Wrap(err, "failed to pull attached native funds")
		}
	}
	engineParams, err := qtx.GetEngineParams(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get engine params")
	}
	recipients, err := qtx.GetCommissionRecipients(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get commission recipients")
	}

	var nativeConsumed uint64
	for _, p := range params {
		sale, err := qtx.GetSale(ctx, p.SaleID)
		if err != nil {
			return errors.Wrapf(err, "failed to get sale %d", p.SaleID)
		}
		if sale.Status != entity.StatusActive {
			return errors.WithStack(errs.InvalidStatus)
		}
		if p.Quantity == 0 || p.Quantity > sale.AmountAvailable() ||
			(sale.Class == entity.AssetClassExclusive && p.Quantity != 1) {
			return errors.WithStack(errs.InvalidAmountOfTokensToPurchase)
		}

		pricePerUnit := sale.PricePerUnit
		if approved, err := qtx.GetApprovedPrice(ctx, p.SaleID, caller); err != nil {
			return errors.Wrap(err, "failed to get approved price")
		} else if approved > 0 {
			pricePerUnit = approved
		}
		total := uint128.From64(pricePerUnit).Mul64(p.Quantity)
		if total.Hi != 0 {
			return errors.Wrap(errs.InvalidArgument, "payment amount overflows")
		}
		amount := total.Lo

		if sale.Currency.IsNative() && nativeConsumed+amount > attachedNative {
			return errors.WithStack(errs.InsufficientFunds)
		}
		consumed, err := e.distribute(ctx, qtx, distributionParams{
			kind:          entity.RecordKindSale,
			recordID:      p.SaleID,
			payer:         caller,
			seller:        sale.Seller,
			currency:      sale.Currency,
			asset:         sale.Asset,
			amount:        amount,
			royalty:       sale.Royalty,
			commissionBps: engineParams.CommissionBps,
			recipients:    recipients,
		})
		if err != nil {
			return err
		}
		nativeConsumed += consumed

		if err := e.assets.Transfer(ctx, sale.Asset, e.escrowAccount, caller, p.Quantity); err != nil {
			return errors.Wrap(err, "failed to transfer asset to buyer")
		}
		sale.AmountPurchased += p.Quantity
		if sale.AmountAvailable() == 0 {
			sale.Status = entity.StatusClosed
		}
		if err := qtx.UpdateSale(ctx, *sale); err != nil {
			return errors.Wrapf(err, "failed to update sale %d", p.SaleID)
		}
		if err := e.emitEvent(ctx, qtx, entity.RecordKindSale, p.SaleID, entity.EventSalePurchased, caller, nil); err != nil {
			return err
		}
	}

	if excess := attachedNative - nativeConsumed; excess > 0 {
		if err := e.funds.TransferNative(ctx, e.escrowAccount, caller, excess); err != nil {
			return errors.Wrap(err, "failed to refund unused native funds")
		}
	}

	if err := qtx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	revert = nil
	return nil
}

func (e *Engine) requireSupportedCurrency(ctx context.Context, qtx datagateway.MarketplaceDataGatewayWithTx, currency entity.Currency) error {
	if currency.IsNative() {
		return nil
	}
	supported, err := qtx.IsCurrencySupported(ctx, currency)
	if err != nil {
		return errors.Wrap(err, "failed to check currency support")
	}
	if !supported {
		return errors.WithStack(errs.UnsupportedCurrencyEntry)
	}
	return nil
}
