// Package memory is a map-backed ledger implementation. It backs the
// in-memory run mode and the engine tests. Transactions clone the whole
// state and swap it back in on commit, which gives the same all-or-nothing
// visibility as the postgres ledger under a single writer.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"github.com/stkolmagorov/marketplace/common/errs"
	"github.com/stkolmagorov/marketplace/modules/marketplace/datagateway"
	"github.com/stkolmagorov/marketplace/modules/marketplace/internal/entity"
)

type approvedPriceKey struct {
	saleID uint64
	buyer  string
}

type state struct {
	saleCounter    uint64
	auctionCounter uint64
	eventCounter   uint64
	sales          map[uint64]entity.SaleRecord
	auctions       map[uint64]entity.AuctionRecord
	approvedPrices map[approvedPriceKey]uint64
	usedSignatures map[string]struct{}
	currencies     map[entity.Currency]struct{}
	recipients     []entity.CommissionRecipient
	params         entity.EngineParams
	events         []entity.MarketplaceEvent
}

func (s *state) clone() *state {
	return &state{
		saleCounter:    s.saleCounter,
		auctionCounter: s.auctionCounter,
		eventCounter:   s.eventCounter,
		sales:          maps.Clone(s.sales),
		auctions:       maps.Clone(s.auctions),
		approvedPrices: maps.Clone(s.approvedPrices),
		usedSignatures: maps.Clone(s.usedSignatures),
		currencies:     maps.Clone(s.currencies),
		recipients:     append([]entity.CommissionRecipient(nil), s.recipients...),
		params:         s.params,
		events:         append([]entity.MarketplaceEvent(nil), s.events...),
	}
}

// ErrTxAlreadyExists is returned when a transaction is begun while another
// one is still open on the same repository.
var ErrTxAlreadyExists = errors.New("transaction already in progress, commit or roll back first")

// Repository implements datagateway.MarketplaceDataGateway over in-process
// maps. A Repository returned by BeginMarketplaceTx is a transaction view:
// it owns a cloned state and publishes it to the parent on Commit. At most
// one transaction may be open at a time; a second BeginMarketplaceTx fails
// with ErrTxAlreadyExists instead of silently losing the first one's writes.
type Repository struct {
	mu     sync.Mutex
	st     *state
	parent *Repository
	openTx *Repository
}

var _ datagateway.MarketplaceDataGatewayWithTx = (*Repository)(nil)

func NewRepository(params entity.EngineParams) *Repository {
	return &Repository{
		st: &state{
			sales:          make(map[uint64]entity.SaleRecord),
			auctions:       make(map[uint64]entity.AuctionRecord),
			approvedPrices: make(map[approvedPriceKey]uint64),
			usedSignatures: make(map[string]struct{}),
			currencies:     make(map[entity.Currency]struct{}),
			params:         params,
		},
	}
}

func (r *Repository) BeginMarketplaceTx(_ context.Context) (datagateway.MarketplaceDataGatewayWithTx, error) {
	if r.parent != nil {
		return nil, errors.New("nested transactions are not supported")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.openTx != nil {
		return nil, errors.WithStack(ErrTxAlreadyExists)
	}
	tx := &Repository{st: r.st.clone(), parent: r}
	r.openTx = tx
	return tx, nil
}

func (r *Repository) Commit(_ context.Context) error {
	if r.parent == nil {
		return errors.New("commit outside of a transaction")
	}
	r.parent.mu.Lock()
	defer r.parent.mu.Unlock()
	if r.parent.openTx != r {
		return errors.New("transaction is no longer open")
	}
	r.parent.st = r.st
	r.parent.openTx = nil
	return nil
}

func (r *Repository) Rollback(_ context.Context) error {
	if r.parent == nil {
		return nil
	}
	r.parent.mu.Lock()
	defer r.parent.mu.Unlock()
	if r.parent.openTx == r {
		r.parent.openTx = nil
	}
	return nil
}

func (r *Repository) CreateSale(_ context.Context, sale entity.SaleRecord) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sale.ID = r.st.saleCounter
	r.st.saleCounter++
	r.st.sales[sale.ID] = sale
	return sale.ID, nil
}

func (r *Repository) GetSale(_ context.Context, id uint64) (*entity.SaleRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sale, ok := r.st.sales[id]
	if !ok {
		return nil, errors.WithStack(errs.NotFound)
	}
	return &sale, nil
}

func (r *Repository) UpdateSale(_ context.Context, sale entity.SaleRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.st.sales[sale.ID]; !ok {
		return errors.WithStack(errs.NotFound)
	}
	r.st.sales[sale.ID] = sale
	return nil
}

func (r *Repository) CreateAuction(_ context.Context, auction entity.AuctionRecord) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	auction.ID = r.st.auctionCounter
	r.st.auctionCounter++
	r.st.auctions[auction.ID] = auction
	return auction.ID, nil
}

func (r *Repository) GetAuction(_ context.Context, id uint64) (*entity.AuctionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	auction, ok := r.st.auctions[id]
	if !ok {
		return nil, errors.WithStack(errs.NotFound)
	}
	return &auction, nil
}

func (r *Repository) UpdateAuction(_ context.Context, auction entity.AuctionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.st.auctions[auction.ID]; !ok {
		return errors.WithStack(errs.NotFound)
	}
	r.st.auctions[auction.ID] = auction
	return nil
}

func (r *Repository) SetApprovedPrice(_ context.Context, arg datagateway.SetApprovedPriceParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.st.approvedPrices[approvedPriceKey{arg.SaleID, arg.Buyer}] = arg.PricePerUnit
	return nil
}

func (r *Repository) GetApprovedPrice(_ context.Context, saleID uint64, buyer string) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.approvedPrices[approvedPriceKey{saleID, buyer}], nil
}

func (r *Repository) IsSignatureUsed(_ context.Context, signature []byte) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, used := r.st.usedSignatures[string(signature)]
	return used, nil
}

func (r *Repository) MarkSignatureUsed(_ context.Context, signature []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.st.usedSignatures[string(signature)] = struct{}{}
	return nil
}

func (r *Repository) IsCurrencySupported(_ context.Context, currency entity.Currency) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if currency.IsNative() {
		return true, nil
	}
	_, ok := r.st.currencies[currency]
	return ok, nil
}

func (r *Repository) AddSupportedCurrency(_ context.Context, currency entity.Currency) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.st.currencies[currency] = struct{}{}
	return nil
}

func (r *Repository) RemoveSupportedCurrency(_ context.Context, currency entity.Currency) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.st.currencies, currency)
	return nil
}

func (r *Repository) GetCommissionRecipients(_ context.Context) ([]entity.CommissionRecipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.CommissionRecipient(nil), r.st.recipients...), nil
}

func (r *Repository) ReplaceCommissionRecipients(_ context.Context, recipients []entity.CommissionRecipient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.st.recipients = append([]entity.CommissionRecipient(nil), recipients...)
	return nil
}

func (r *Repository) GetEngineParams(_ context.Context) (*entity.EngineParams, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	params := r.st.params
	return &params, nil
}

func (r *Repository) UpdateEngineParams(_ context.Context, params entity.EngineParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.st.params = params
	return nil
}

func (r *Repository) CreateEvent(_ context.Context, event entity.MarketplaceEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	event.Sequence = r.st.eventCounter
	r.st.eventCounter++
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	r.st.events = append(r.st.events, event)
	return nil
}

func (r *Repository) GetEventsByRecord(_ context.Context, kind entity.RecordKind, recordID uint64) ([]entity.MarketplaceEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return lo.Filter(r.st.events, func(e entity.MarketplaceEvent, _ int) bool {
		return e.Kind == kind && e.RecordID == recordID
	}), nil
}

func (r *Repository) GetEventsAfter(_ context.Context, sequence uint64, limit int32) ([]entity.MarketplaceEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]entity.MarketplaceEvent, 0, limit)
	for _, e := range r.st.events {
		if e.Sequence < sequence {
			continue
		}
		result = append(result, e)
		if int32(len(result)) >= limit {
			break
		}
	}
	return result, nil
}
