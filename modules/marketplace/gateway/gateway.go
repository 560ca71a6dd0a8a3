package gateway

import (
	"context"

	"github.com/stkolmagorov/marketplace/modules/marketplace/internal/entity"
)

// AssetGateway is the engine's port to asset contracts. The engine never
// talks to a concrete ledger technology directly; it only asks the gateway to
// move unit(s) of an asset between parties and to report royalty capability.
type AssetGateway interface {
	// Transfer moves quantity unit(s) of the referenced asset from one party
	// to another. For the exclusive asset class quantity must be 1. Errors
	// from the underlying contract (missing balance or approval) propagate
	// verbatim and abort the enclosing call.
	Transfer(ctx context.Context, ref entity.AssetRef, from, to string, quantity uint64) error

	// RoyaltySupport probes the royalty capability of the asset contract.
	// The result is snapshotted into the listing record at creation time.
	RoyaltySupport(ctx context.Context, ref entity.AssetRef) (entity.RoyaltySupport, error)

	// RoyaltyInfo is the single-recipient query shape: it returns the
	// recipient and its share of the given payment amount in basis points.
	RoyaltyInfo(ctx context.Context, ref entity.AssetRef) (recipient string, bps uint64, err error)

	// RoyaltySplit is the multi-recipient splitter query shape: parallel
	// recipient and bps lists.
	RoyaltySplit(ctx context.Context, ref entity.AssetRef) (recipients []string, bps []uint64, err error)
}

// Transactional is implemented by gateways whose movements can be reverted
// when the enclosing engine call aborts. Real deployments run the gateways in
// the same atomic execution environment as the ledger and do not need it; the
// in-process gateways implement it so a failed batch restores custody state
// along with the ledger.
type Transactional interface {
	// Checkpoint captures the current balances and returns a function that
	// restores them, reverting every transfer made in between.
	Checkpoint() func()
}

// FundsGateway is the engine's port to currency movement: fungible-token
// transfers between parties and native-currency transfers from and to the
// engine escrow account.
type FundsGateway interface {
	// TransferToken moves amount of a fungible-token currency between two
	// parties. Pulling from the payer fails when balance or approval is
	// insufficient; the error propagates verbatim.
	TransferToken(ctx context.Context, currency entity.Currency, from, to string, amount uint64) error

	// TransferNative moves amount of the native currency between two parties.
	TransferNative(ctx context.Context, from, to string, amount uint64) error
}
