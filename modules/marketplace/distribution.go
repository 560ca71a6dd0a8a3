package marketplace

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/uint128"
	"github.com/stkolmagorov/marketplace/modules/marketplace/datagateway"
	"github.com/stkolmagorov/marketplace/modules/marketplace/internal/entity"
)

// bpsDenominator is the basis-point scale: 10000 bps == 100%.
const bpsDenominator = 10000

type distributionParams struct {
	kind          entity.RecordKind
	recordID      uint64
	payer         string
	seller        string
	currency      entity.Currency
	asset         entity.AssetRef
	amount        uint64
	royalty       entity.RoyaltySupport
	commissionBps uint64
	recipients    []entity.CommissionRecipient
}

// shareOf computes floor(amount * bps / 10000) without intermediate overflow.
func shareOf(amount, bps uint64) uint64 {
	return uint128.From64(amount).Mul64(bps).Div64(bpsDenominator).Uint64()
}

// distribute splits one payment among royalty beneficiaries, the commission
// table and the seller, and records a payment_processed event. The returned
// value is the native amount drawn from the caller's attached funds (zero for
// fungible-token payments).
//
// Order is fixed: fungible-token payments are pulled into escrow first, then
// royalties are paid, then commission and seller. Every share is floored
// independently from the full amount; the seller's leg is the subtraction
// remainder and absorbs all rounding dust.
func (e *Engine) distribute(ctx context.Context, qtx datagateway.MarketplaceDataGatewayWithTx, p distributionParams) (uint64, error) {
	if !p.currency.IsNative() {
		if err := e.funds.TransferToken(ctx, p.currency, p.payer, e.escrowAccount, p.amount); err != nil {
			return 0, errors.Wrap(err, "failed to pull payment into escrow")
		}
	}

	breakdown := entity.PaymentBreakdown{
		Payer:    p.payer,
		Seller:   p.seller,
		Currency: p.currency,
		Amount:   p.amount,
	}

	var totalRoyalty uint64
	switch p.royalty {
	case entity.RoyaltySingle:
		recipient, bps, err := e.assets.RoyaltyInfo(ctx, p.asset)
		if err != nil {
			return 0, errors.Wrap(err, "failed to query royalty info")
		}
		share := shareOf(p.amount, bps)
		if err := e.payOut(ctx, p.currency, recipient, share); err != nil {
			return 0, err
		}
		totalRoyalty = share
		breakdown.Royalties = append(breakdown.Royalties, entity.PaymentPayout{Address: recipient, Amount: share})
	case entity.RoyaltySplitter:
		recipients, bps, err := e.assets.RoyaltySplit(ctx, p.asset)
		if err != nil {
			return 0, errors.Wrap(err, "failed to query royalty split")
		}
		for i, recipient := range recipients {
			share := shareOf(p.amount, bps[i])
			if err := e.payOut(ctx, p.currency, recipient, share); err != nil {
				return 0, err
			}
			totalRoyalty += share
			breakdown.Royalties = append(breakdown.Royalties, entity.PaymentPayout{Address: recipient, Amount: share})
		}
	}

	commissionAmount := shareOf(p.amount, p.commissionBps)
	if totalRoyalty+commissionAmount > p.amount {
		return 0, errors.Newf("royalty %d and commission %d exceed payment amount %d", totalRoyalty, commissionAmount, p.amount)
	}

	sellerAmount := p.amount - totalRoyalty - commissionAmount
	if err := e.payOut(ctx, p.currency, p.seller, sellerAmount); err != nil {
		return 0, err
	}
	for _, recipient := range p.recipients {
		share := shareOf(commissionAmount, recipient.Bps)
		if err := e.payOut(ctx, p.currency, recipient.Address, share); err != nil {
			return 0, err
		}
		breakdown.Commissions = append(breakdown.Commissions, entity.PaymentPayout{Address: recipient.Address, Amount: share})
	}

	breakdown.SellerAmount = sellerAmount
	breakdown.RoyaltyTotal = totalRoyalty
	breakdown.CommissionTotal = commissionAmount
	if err := e.emitEvent(ctx, qtx, p.kind, p.recordID, entity.EventPaymentProcessed, p.payer, breakdown); err != nil {
		return 0, err
	}

	if p.currency.IsNative() {
		return p.amount, nil
	}
	return 0, nil
}

// payOut moves amount of the currency from escrow to the recipient. Zero
// amounts are skipped so rounding to zero never produces an empty transfer.
func (e *Engine) payOut(ctx context.Context, currency entity.Currency, to string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	var err error
	if currency.IsNative() {
		err = e.funds.TransferNative(ctx, e.escrowAccount, to, amount)
	} else {
		err = e.funds.TransferToken(ctx, currency, e.escrowAccount, to, amount)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to pay out %d %s to %s", amount, currency, to)
	}
	return nil
}
