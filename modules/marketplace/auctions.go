package marketplace

import (
	"context"
	"encoding/hex"

	"github.com/cockroachdb/errors"
	"github.com/stkolmagorov/marketplace/common/errs"
	"github.com/stkolmagorov/marketplace/modules/marketplace/internal/authz"
	"github.com/stkolmagorov/marketplace/modules/marketplace/internal/entity"
)

type CreateAuctionParams struct {
	Currency        entity.Currency
	Asset           entity.AssetRef
	Quantity        uint64
	RedemptionPrice uint64
	Class           entity.AssetClass
	Kind            entity.AuctionKind
}

type SettleAuctionParams struct {
	AuctionID    uint64
	IsRedemption bool
}

// CreateAuctions lists the caller's assets for auction. Common auctions must
// have a zero redemption price, ebay auctions a positive one. Returns the
// assigned ids in batch order.
func (e *Engine) CreateAuctions(ctx context.Context, caller string, params []CreateAuctionParams) ([]uint64, error) {
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
		if (p.Kind == entity.AuctionKindCommon && p.RedemptionPrice > 0) ||
			(p.Kind == entity.AuctionKindEbay && p.RedemptionPrice == 0) {
			return nil, errors.WithStack(errs.InvalidRedemptionPrice)
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

		id, err := qtx.CreateAuction(ctx, entity.AuctionRecord{
			Seller:          caller,
			Currency:        p.Currency,
			Asset:           p.Asset,
			AmountOffered:   p.Quantity,
			RedemptionPrice: p.RedemptionPrice,
			Class:           p.Class,
			Royalty:         royalty,
			Status:          entity.StatusActive,
			Kind:            p.Kind,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create auction")
		}
		if err := e.emitEvent(ctx, qtx, entity.RecordKindAuction, id, entity.EventAuctionCreated, caller, nil); err != nil {
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

// CancelAuctions cancels the caller's active auctions and returns the
// custodied assets to the seller.
func (e *Engine) CancelAuctions(ctx context.Context, caller string, ids []uint64) error {
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
		auction, err := qtx.GetAuction(ctx, id)
		if err != nil {
			return errors.Wrapf(err, "failed to get auction %d", id)
		}
		if auction.Status != entity.StatusActive {
			return errors.WithStack(errs.InvalidStatus)
		}
		if auction.Seller != caller {
			return errors.WithStack(errs.InvalidCallee)
		}

		if err := e.assets.Transfer(ctx, auction.Asset, e.escrowAccount, auction.Seller, auction.AmountOffered); err != nil {
			return errors.Wrap(err, "failed to return asset to seller")
		}
		auction.Status = entity.StatusCancelled
		if err := qtx.UpdateAuction(ctx, *auction); err != nil {
			return errors.Wrapf(err, "failed to update auction %d", id)
		}
		if err := e.emitEvent(ctx, qtx, entity.RecordKindAuction, id, entity.EventAuctionCancelled, caller, nil); err != nil {
			return err
		}
	}

	if err := qtx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	revert = nil
	return nil
}

// ResolveAuctions records authorizer-approved winners and winning bids on
// active auctions. Items are parallel arrays; each item carries its own
// signature over (winner, bid, auction id), independently verified and
// consumed. Resolution does not close the auction, settlement does.
func (e *Engine) ResolveAuctions(ctx context.Context, caller string, winners []string, winningBids []uint64, auctionIDs []uint64, signatures [][]byte) error {
	if len(winners) != len(winningBids) || len(winners) != len(auctionIDs) || len(winners) != len(signatures) {
		return errors.WithStack(errs.InvalidArrayLengths)
	}

	qtx, err := e.marketplaceDg.BeginMarketplaceTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = qtx.Rollback(ctx) }()

	engineParams, err := qtx.GetEngineParams(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get engine params")
	}

	for i, auctionID := range auctionIDs {
		auction, err := qtx.GetAuction(ctx, auctionID)
		if err != nil {
			return errors.Wrapf(err, "failed to get auction %d", auctionID)
		}
		if auction.Status != entity.StatusActive {
			return errors.WithStack(errs.InvalidStatus)
		}

		message := authz.EncodeAuctionResolution(auctionID, winners[i], winningBids[i])
		if err := authz.Verify(ctx, qtx, message, signatures[i], engineParams.AuthorizerPublicKey); err != nil {
			return err
		}
		if err := authz.Consume(ctx, qtx, signatures[i]); err != nil {
			return err
		}

		auction.Winner = winners[i]
		auction.WinningBid = winningBids[i]
		if err := qtx.UpdateAuction(ctx, *auction); err != nil {
			return errors.Wrapf(err, "failed to update auction %d", auctionID)
		}

		payload := entity.ResolutionPayload{
			AuctionID:  &auctionIDs[i],
			Winner:     winners[i],
			WinningBid: winningBids[i],
			Signature:  hex.EncodeToString(signatures[i]),
		}
		if err := e.emitEvent(ctx, qtx, entity.RecordKindAuction, auctionID, entity.EventAuctionResolved, caller, payload); err != nil {
			return err
		}
	}

	if err := qtx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

// SettleAuctions settles active auctions. A redemption settlement requires
// the ebay kind and pays the fixed redemption price; anyone may redeem. A bid
// settlement requires the caller to be the resolved winner and pays the
// winning bid. Settlement closes the auction. attachedNative follows the same
// pull-then-refund discipline as sale purchases.
func (e *Engine) SettleAuctions(ctx context.Context, caller string, attachedNative uint64, params []SettleAuctionParams) error {
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
		auction, err := qtx.GetAuction(ctx, p.AuctionID)
		if err != nil {
			return errors.Wrapf(err, "failed to get auction %d", p.AuctionID)
		}
		if auction.Status != entity.StatusActive {
			return errors.WithStack(errs.InvalidStatus)
		}

		var amount uint64
		if p.IsRedemption {
			if auction.Kind != entity.AuctionKindEbay {
				return errors.WithStack(errs.InvalidAuctionTypeForRedemption)
			}
			amount = auction.RedemptionPrice
		} else {
			if auction.Winner == "" || auction.Winner != caller {
				return errors.WithStack(errs.InvalidCallee)
			}
			amount = auction.WinningBid
		}

		if auction.Currency.IsNative() && nativeConsumed+amount > attachedNative {
			return errors.WithStack(errs.InsufficientFunds)
		}
		consumed, err := e.distribute(ctx, qtx, distributionParams{
			kind:          entity.RecordKindAuction,
			recordID:      p.AuctionID,
			payer:         caller,
			seller:        auction.Seller,
			currency:      auction.Currency,
			asset:         auction.Asset,
			amount:        amount,
			royalty:       auction.Royalty,
			commissionBps: engineParams.CommissionBps,
			recipients:    recipients,
		})
		if err != nil {
			return err
		}
		nativeConsumed += consumed

		if err := e.assets.Transfer(ctx, auction.Asset, e.escrowAccount, caller, auction.AmountOffered); err != nil {
			return errors.Wrap(err, "failed to transfer asset to settler")
		}
		auction.Status = entity.StatusClosed
		if err := qtx.UpdateAuction(ctx, *auction); err != nil {
			return errors.Wrapf(err, "failed to update auction %d", p.AuctionID)
		}
		if err := e.emitEvent(ctx, qtx, entity.RecordKindAuction, p.AuctionID, entity.EventAuctionSettled, caller, nil); err != nil {
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
