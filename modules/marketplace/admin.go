package marketplace

import (
	"context"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"github.com/stkolmagorov/marketplace/common/errs"
	"github.com/stkolmagorov/marketplace/modules/marketplace/internal/entity"
)

// maxCommissionBps caps the marketplace commission at 10%.
const maxCommissionBps = 1000

// UpdateCommissionRecipients replaces the commission table atomically. The
// entries' shares must sum to exactly 10000 bps.
func (e *Engine) UpdateCommissionRecipients(ctx context.Context, recipients []entity.CommissionRecipient) error {
	sum := lo.SumBy(recipients, func(r entity.CommissionRecipient) uint64 { return r.Bps })
	if sum != bpsDenominator {
		return errors.WithStack(errs.InvalidCommissionSum)
	}
	if err := e.marketplaceDg.ReplaceCommissionRecipients(ctx, recipients); err != nil {
		return errors.Wrap(err, "failed to replace commission recipients")
	}
	return nil
}

// UpdateCommissionPercentage sets the commission taken from every payment.
func (e *Engine) UpdateCommissionPercentage(ctx context.Context, bps uint64) error {
	if bps > maxCommissionBps {
		return errors.WithStack(errs.CommissionTooHigh)
	}
	params, err := e.marketplaceDg.GetEngineParams(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get engine params")
	}
	params.CommissionBps = bps
	if err := e.marketplaceDg.UpdateEngineParams(ctx, *params); err != nil {
		return errors.Wrap(err, "failed to update engine params")
	}
	return nil
}

// UpdateAuthorizer rotates the authorizer public key. The key must be a
// hex-encoded compressed secp256k1 public key.
func (e *Engine) UpdateAuthorizer(ctx context.Context, publicKey string) error {
	raw, err := hex.DecodeString(publicKey)
	if err != nil {
		return errors.Wrap(errs.InvalidArgument, "authorizer public key is not hex")
	}
	if _, err := btcec.ParsePubKey(raw); err != nil {
		return errors.Wrap(errs.InvalidArgument, "authorizer public key is not a valid secp256k1 key")
	}
	params, err := e.marketplaceDg.GetEngineParams(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get engine params")
	}
	params.AuthorizerPublicKey = publicKey
	if err := e.marketplaceDg.UpdateEngineParams(ctx, *params); err != nil {
		return errors.Wrap(err, "failed to update engine params")
	}
	return nil
}

// AddSupportedCurrencies allows the currencies to be quoted by new listings.
func (e *Engine) AddSupportedCurrencies(ctx context.Context, currencies []entity.Currency) error {
	for _, currency := range currencies {
		if currency.IsNative() {
			continue
		}
		if err := e.marketplaceDg.AddSupportedCurrency(ctx, currency); err != nil {
			return errors.Wrapf(err, "failed to add currency %s", currency)
		}
	}
	return nil
}

// RemoveSupportedCurrencies disallows the currencies for new listings.
// Existing listings keep settling in their snapshotted currency. The native
// currency cannot be removed.
func (e *Engine) RemoveSupportedCurrencies(ctx context.Context, currencies []entity.Currency) error {
	for _, currency := range currencies {
		if currency.IsNative() {
			return errors.Wrap(errs.InvalidArgument, "native currency cannot be removed")
		}
		if err := e.marketplaceDg.RemoveSupportedCurrency(ctx, currency); err != nil {
			return errors.Wrapf(err, "failed to remove currency %s", currency)
		}
	}
	return nil
}
