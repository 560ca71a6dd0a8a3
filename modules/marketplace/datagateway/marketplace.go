package datagateway

import (
	"context"

	"github.com/stkolmagorov/marketplace/modules/marketplace/internal/entity"
)

// MarketplaceDataGateway is the engine's ledger: sale and auction records,
// the approved-price override table, the used-signature set, the commission
// table and the supported-currency set. The engine is the only writer.
type MarketplaceDataGateway interface {
	BeginMarketplaceTx(ctx context.Context) (MarketplaceDataGatewayWithTx, error)

	// Sales. CreateSale assigns the next id from a strictly increasing
	// counter starting at 0; ids are never reused.
	CreateSale(ctx context.Context, sale entity.SaleRecord) (uint64, error)
	GetSale(ctx context.Context, id uint64) (*entity.SaleRecord, error)
	UpdateSale(ctx context.Context, sale entity.SaleRecord) error

	// Auctions, same id discipline with an independent counter.
	CreateAuction(ctx context.Context, auction entity.AuctionRecord) (uint64, error)
	GetAuction(ctx context.Context, id uint64) (*entity.AuctionRecord, error)
	UpdateAuction(ctx context.Context, auction entity.AuctionRecord) error

	// Approved-price overrides keyed by (sale id, buyer). A positive value
	// shadows the listing price for that buyer. GetApprovedPrice returns 0
	// when no override is set.
	SetApprovedPrice(ctx context.Context, arg SetApprovedPriceParams) error
	GetApprovedPrice(ctx context.Context, saleID uint64, buyer string) (uint64, error)

	// Used-signature set, keyed on raw signature bytes.
	IsSignatureUsed(ctx context.Context, signature []byte) (bool, error)
	MarkSignatureUsed(ctx context.Context, signature []byte) error

	// Supported-currency set. The native currency is always supported and
	// cannot be removed.
	IsCurrencySupported(ctx context.Context, currency entity.Currency) (bool, error)
	AddSupportedCurrency(ctx context.Context, currency entity.Currency) error
	RemoveSupportedCurrency(ctx context.Context, currency entity.Currency) error

	// Commission table, replaced atomically as a whole.
	GetCommissionRecipients(ctx context.Context) ([]entity.CommissionRecipient, error)
	ReplaceCommissionRecipients(ctx context.Context, recipients []entity.CommissionRecipient) error

	// Engine parameters (authorizer key, commission percentage).
	GetEngineParams(ctx context.Context) (*entity.EngineParams, error)
	UpdateEngineParams(ctx context.Context, params entity.EngineParams) error

	// Events.
	CreateEvent(ctx context.Context, event entity.MarketplaceEvent) error
	GetEventsByRecord(ctx context.Context, kind entity.RecordKind, recordID uint64) ([]entity.MarketplaceEvent, error)
	GetEventsAfter(ctx context.Context, sequence uint64, limit int32) ([]entity.MarketplaceEvent, error)
}

// MarketplaceDataGatewayWithTx is a gateway bound to an open transaction.
type MarketplaceDataGatewayWithTx interface {
	MarketplaceDataGateway
	Tx
}

type SetApprovedPriceParams struct {
	SaleID       uint64
	Buyer        string
	PricePerUnit uint64
}
