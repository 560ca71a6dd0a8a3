package entity

import "time"

// Currency identifies the settlement medium of a listing. The zero-cost
// native currency is the sentinel CurrencyNative, anything else is treated as
// a fungible-token contract address.
type Currency string

const CurrencyNative Currency = "native"

// IsNative reports whether the currency is the native settlement unit.
func (c Currency) IsNative() bool {
	return c == CurrencyNative
}

func (c Currency) String() string {
	return string(c)
}

// AssetClass distinguishes the two supported asset classes.
type AssetClass int16

const (
	// AssetClassExclusive assets have exactly one indivisible unit per id.
	AssetClassExclusive AssetClass = iota
	// AssetClassFungible assets have a divisible quantity of interchangeable
	// units per id.
	AssetClassFungible
)

// RoyaltySupport is the royalty capability of an asset contract, probed once
// at listing creation and snapshotted into the record.
type RoyaltySupport int16

const (
	RoyaltyNone RoyaltySupport = iota
	// RoyaltySingle contracts report a single recipient and share per token.
	RoyaltySingle
	// RoyaltySplitter contracts report parallel recipient/share lists per token.
	RoyaltySplitter
)

// ListingStatus is the lifecycle state of a sale or auction record.
// Transitions are monotonic: Active -> Cancelled or Active -> Closed, both
// terminal. Nonexistent is the implicit state of unused identifiers.
type ListingStatus int16

const (
	StatusNonexistent ListingStatus = iota
	StatusActive
	StatusCancelled
	StatusClosed
)

func (s ListingStatus) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusCancelled:
		return "cancelled"
	case StatusClosed:
		return "closed"
	default:
		return "nonexistent"
	}
}

// AuctionKind distinguishes bid-settled common auctions from ebay-style
// auctions that additionally carry a fixed redemption price.
type AuctionKind int16

const (
	AuctionKindCommon AuctionKind = iota
	AuctionKindEbay
)

func (k AuctionKind) String() string {
	if k == AuctionKindEbay {
		return "ebay"
	}
	return "common"
}

// AssetRef identifies asset unit(s) held by an asset contract.
type AssetRef struct {
	Contract string
	TokenID  uint64
}

// SaleRecord is a fixed- or negotiated-price listing.
type SaleRecord struct {
	ID              uint64
	Seller          string
	Currency        Currency
	Asset           AssetRef
	AmountOffered   uint64
	AmountPurchased uint64
	PricePerUnit    uint64
	Class           AssetClass
	Royalty         RoyaltySupport
	Status          ListingStatus
}

// AmountAvailable returns the unsold remainder of the listing.
func (s SaleRecord) AmountAvailable() uint64 {
	return s.AmountOffered - s.AmountPurchased
}

// AuctionRecord is a bid- or redemption-settled listing. Winner and
// WinningBid stay zero until an authorized resolution sets them.
type AuctionRecord struct {
	ID              uint64
	Seller          string
	Winner          string
	Currency        Currency
	Asset           AssetRef
	WinningBid      uint64
	AmountOffered   uint64
	RedemptionPrice uint64
	Class           AssetClass
	Royalty         RoyaltySupport
	Status          ListingStatus
	Kind            AuctionKind
}

// CommissionRecipient is one entry of the commission table. Bps is the
// entry's share of the commission amount in basis points; the table's
// entries must sum to exactly 10000.
type CommissionRecipient struct {
	Address string
	Bps     uint64
}

// EngineParams is the admin-mutable engine configuration held in the ledger.
type EngineParams struct {
	// AuthorizerPublicKey is the hex-encoded compressed secp256k1 key whose
	// signature approves negotiated prices and auction winners.
	AuthorizerPublicKey string
	// CommissionBps is the marketplace commission taken from every payment.
	CommissionBps uint64
}

// RecordKind tags events with the record family they belong to.
type RecordKind string

const (
	RecordKindSale    RecordKind = "sale"
	RecordKindAuction RecordKind = "auction"
)

// EventAction is the state transition an event records.
type EventAction string

const (
	EventSaleCreated      EventAction = "sale_created"
	EventSaleCancelled    EventAction = "sale_cancelled"
	EventSaleResolved     EventAction = "sale_resolved"
	EventSalePurchased    EventAction = "sale_purchased"
	EventAuctionCreated   EventAction = "auction_created"
	EventAuctionCancelled EventAction = "auction_cancelled"
	EventAuctionResolved  EventAction = "auction_resolved"
	EventAuctionSettled   EventAction = "auction_settled"
	EventPaymentProcessed EventAction = "payment_processed"
)

// MarketplaceEvent is an audit record persisted on every state transition.
// Sequence is assigned by the ledger, strictly increasing.
type MarketplaceEvent struct {
	Sequence  uint64
	Kind      RecordKind
	RecordID  uint64
	Action    EventAction
	Caller    string
	Payload   []byte
	CreatedAt time.Time
}

// PaymentPayout is one leg of a processed payment.
type PaymentPayout struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
}

// PaymentBreakdown is the payload of a payment_processed event.
type PaymentBreakdown struct {
	Payer           string          `json:"payer"`
	Seller          string          `json:"seller"`
	Currency        Currency        `json:"currency"`
	Amount          uint64          `json:"amount"`
	SellerAmount    uint64          `json:"sellerAmount"`
	RoyaltyTotal    uint64          `json:"royaltyTotal"`
	CommissionTotal uint64          `json:"commissionTotal"`
	Royalties       []PaymentPayout `json:"royalties,omitempty"`
	Commissions     []PaymentPayout `json:"commissions,omitempty"`
}

// ResolutionPayload is the payload of sale_resolved and auction_resolved
// events, carrying the full authorized message for off-chain reconciliation.
type ResolutionPayload struct {
	SaleID         *uint64  `json:"saleId,omitempty"`
	AuctionID      *uint64  `json:"auctionId,omitempty"`
	ApprovedBuyers []string `json:"approvedBuyers,omitempty"`
	ApprovedPrices []uint64 `json:"approvedPrices,omitempty"`
	Winner         string   `json:"winner,omitempty"`
	WinningBid     uint64   `json:"winningBid,omitempty"`
	Signature      string   `json:"signature"`
}
