package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/stkolmagorov/marketplace/common/errs"
	"github.com/stkolmagorov/marketplace/internal/postgres"
	"github.com/stkolmagorov/marketplace/modules/marketplace/datagateway"
	"github.com/stkolmagorov/marketplace/modules/marketplace/internal/entity"
)

// Repository implements datagateway.MarketplaceDataGateway on postgres.
// Listing and event ids are assigned inside the insert statements, which is
// safe because the engine serializes writers and every operation runs in one
// transaction.
type Repository struct {
	db postgres.DB
	tx pgx.Tx
}

var _ datagateway.MarketplaceDataGatewayWithTx = (*Repository)(nil)

func NewRepository(db postgres.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) q() postgres.Queryable {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *Repository) CreateSale(ctx context.Context, sale entity.SaleRecord) (uint64, error) {
	var id int64
	err := r.q().QueryRow(ctx, `
		INSERT INTO marketplace_sales (id, seller, currency, asset_contract, asset_token_id, amount_offered, amount_purchased, price_per_unit, class, royalty, status)
		VALUES (COALESCE((SELECT MAX(id) + 1 FROM marketplace_sales), 0), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		sale.Seller, sale.Currency.String(), sale.Asset.Contract, int64(sale.Asset.TokenID),
		int64(sale.AmountOffered), int64(sale.AmountPurchased), int64(sale.PricePerUnit),
		int16(sale.Class), int16(sale.Royalty), int16(sale.Status),
	).Scan(&id)
	if err != nil {
		return 0, errors.Wrap(err, "cannot insert sale")
	}
	return uint64(id), nil
}

func (r *Repository) GetSale(ctx context.Context, id uint64) (*entity.SaleRecord, error) {
	row := r.q().QueryRow(ctx, `
		SELECT id, seller, currency, asset_contract, asset_token_id, amount_offered, amount_purchased, price_per_unit, class, royalty, status
		FROM marketplace_sales WHERE id = $1`, int64(id))
	sale, err := scanSale(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.WithStack(errs.NotFound)
		}
		return nil, errors.Wrap(err, "cannot get sale")
	}
	return sale, nil
}

func (r *Repository) UpdateSale(ctx context.Context, sale entity.SaleRecord) error {
	tag, err := r.q().Exec(ctx, `
		UPDATE marketplace_sales
		SET amount_purchased = $2, price_per_unit = $3, status = $4
		WHERE id = $1`,
		int64(sale.ID), int64(sale.AmountPurchased), int64(sale.PricePerUnit), int16(sale.Status),
	)
	if err != nil {
		return errors.Wrap(err, "cannot update sale")
	}
	if tag.RowsAffected() == 0 {
		return errors.WithStack(errs.NotFound)
	}
	return nil
}

func (r *Repository) CreateAuction(ctx context.Context, auction entity.AuctionRecord) (uint64, error) {
	var id int64
	err := r.q().QueryRow(ctx, `
		INSERT INTO marketplace_auctions (id, seller, winner, currency, asset_contract, asset_token_id, winning_bid, amount_offered, redemption_price, class, royalty, status, kind)
		VALUES (COALESCE((SELECT MAX(id) + 1 FROM marketplace_auctions), 0), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		auction.Seller, auction.Winner, auction.Currency.String(), auction.Asset.Contract, int64(auction.Asset.TokenID),
		int64(auction.WinningBid), int64(auction.AmountOffered), int64(auction.RedemptionPrice),
		int16(auction.Class), int16(auction.Royalty), int16(auction.Status), int16(auction.Kind),
	).Scan(&id)
	if err != nil {
		return 0, errors.Wrap(err, "cannot insert auction")
	}
	return uint64(id), nil
}

func (r *Repository) GetAuction(ctx context.Context, id uint64) (*entity.AuctionRecord, error) {
	row := r.q().QueryRow(ctx, `
		SELECT id, seller, winner, currency, asset_contract, asset_token_id, winning_bid, amount_offered, redemption_price, class, royalty, status, kind
		FROM marketplace_auctions WHERE id = $1`, int64(id))
	auction, err := scanAuction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.WithStack(errs.NotFound)
		}
		return nil, errors.Wrap(err, "cannot get auction")
	}
	return auction, nil
}

func (r *Repository) UpdateAuction(ctx context.Context, auction entity.AuctionRecord) error {
	tag, err := r.q().Exec(ctx, `
		UPDATE marketplace_auctions
		SET winner = $2, winning_bid = $3, status = $4
		WHERE id = $1`,
		int64(auction.ID), auction.Winner, int64(auction.WinningBid), int16(auction.Status),
	)
	if err != nil {
		return errors.Wrap(err, "cannot update auction")
	}
	if tag.RowsAffected() == 0 {
		return errors.WithStack(errs.NotFound)
	}
	return nil
}

func (r *Repository) SetApprovedPrice(ctx context.Context, arg datagateway.SetApprovedPriceParams) error {
	_, err := r.q().Exec(ctx, `
		INSERT INTO marketplace_approved_prices (sale_id, buyer, price_per_unit)
		VALUES ($1, $2, $3)
		ON CONFLICT (sale_id, buyer) DO UPDATE SET price_per_unit = EXCLUDED.price_per_unit`,
		int64(arg.SaleID), arg.Buyer, int64(arg.PricePerUnit),
	)
	if err != nil {
		return errors.Wrap(err, "cannot set approved price")
	}
	return nil
}

func (r *Repository) GetApprovedPrice(ctx context.Context, saleID uint64, buyer string) (uint64, error) {
	var price int64
	err := r.q().QueryRow(ctx, `
		SELECT price_per_unit FROM marketplace_approved_prices WHERE sale_id = $1 AND buyer = $2`,
		int64(saleID), buyer,
	).Scan(&price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "cannot get approved price")
	}
	return uint64(price), nil
}

func (r *Repository) IsSignatureUsed(ctx context.Context, signature []byte) (bool, error) {
	var used bool
	err := r.q().QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM marketplace_used_signatures WHERE signature = $1)`, signature,
	).Scan(&used)
	if err != nil {
		return false, errors.Wrap(err, "cannot check signature usage")
	}
	return used, nil
}

func (r *Repository) MarkSignatureUsed(ctx context.Context, signature []byte) error {
	_, err := r.q().Exec(ctx, `
		INSERT INTO marketplace_used_signatures (signature) VALUES ($1) ON CONFLICT DO NOTHING`, signature,
	)
	if err != nil {
		return errors.Wrap(err, "cannot mark signature used")
	}
	return nil
}

func (r *Repository) IsCurrencySupported(ctx context.Context, currency entity.Currency) (bool, error) {
	if currency.IsNative() {
		return true, nil
	}
	var supported bool
	err := r.q().QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM marketplace_supported_currencies WHERE currency = $1)`, currency.String(),
	).Scan(&supported)
	if err != nil {
		return false, errors.Wrap(err, "cannot check currency support")
	}
	return supported, nil
}

func (r *Repository) AddSupportedCurrency(ctx context.Context, currency entity.Currency) error {
	_, err := r.q().Exec(ctx, `
		INSERT INTO marketplace_supported_currencies (currency) VALUES ($1) ON CONFLICT DO NOTHING`, currency.String(),
	)
	if err != nil {
		return errors.Wrap(err, "cannot add supported currency")
	}
	return nil
}

func (r *Repository) RemoveSupportedCurrency(ctx context.Context, currency entity.Currency) error {
	_, err := r.q().Exec(ctx, `
		DELETE FROM marketplace_supported_currencies WHERE currency = $1`, currency.String(),
	)
	if err != nil {
		return errors.Wrap(err, "cannot remove supported currency")
	}
	return nil
}

func (r *Repository) GetCommissionRecipients(ctx context.Context) ([]entity.CommissionRecipient, error) {
	rows, err := r.q().Query(ctx, `
		SELECT address, bps FROM marketplace_commission_recipients ORDER BY position`)
	if err != nil {
		return nil, errors.Wrap(err, "cannot get commission recipients")
	}
	defer rows.Close()

	var recipients []entity.CommissionRecipient
	for rows.Next() {
		var (
			address string
			bps     int64
		)
		if err := rows.Scan(&address, &bps); err != nil {
			return nil, errors.Wrap(err, "cannot scan commission recipient")
		}
		recipients = append(recipients, entity.CommissionRecipient{Address: address, Bps: uint64(bps)})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "cannot iterate commission recipients")
	}
	return recipients, nil
}

func (r *Repository) ReplaceCommissionRecipients(ctx context.Context, recipients []entity.CommissionRecipient) error {
	if _, err := r.q().Exec(ctx, `DELETE FROM marketplace_commission_recipients`); err != nil {
		return errors.Wrap(err, "cannot clear commission recipients")
	}
	for i, recipient := range recipients {
		_, err := r.q().Exec(ctx, `
			INSERT INTO marketplace_commission_recipients (position, address, bps) VALUES ($1, $2, $3)`,
			i, recipient.Address, int64(recipient.Bps),
		)
		if err != nil {
			return errors.Wrap(err, "cannot insert commission recipient")
		}
	}
	return nil
}

func (r *Repository) GetEngineParams(ctx context.Context) (*entity.EngineParams, error) {
	var (
		authorizer    string
		commissionBps int64
	)
	err := r.q().QueryRow(ctx, `
		SELECT authorizer_public_key, commission_bps FROM marketplace_params WHERE singleton`,
	).Scan(&authorizer, &commissionBps)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.WithStack(errs.NotFound)
		}
		return nil, errors.Wrap(err, "cannot get engine params")
	}
	return &entity.EngineParams{
		AuthorizerPublicKey: authorizer,
		CommissionBps:       uint64(commissionBps),
	}, nil
}

func (r *Repository) UpdateEngineParams(ctx context.Context, params entity.EngineParams) error {
	_, err := r.q().Exec(ctx, `
		INSERT INTO marketplace_params (singleton, authorizer_public_key, commission_bps)
		VALUES (TRUE, $1, $2)
		ON CONFLICT (singleton) DO UPDATE SET authorizer_public_key = EXCLUDED.authorizer_public_key, commission_bps = EXCLUDED.commission_bps`,
		params.AuthorizerPublicKey, int64(params.CommissionBps),
	)
	if err != nil {
		return errors.Wrap(err, "cannot update engine params")
	}
	return nil
}

func (r *Repository) CreateEvent(ctx context.Context, event entity.MarketplaceEvent) error {
	_, err := r.q().Exec(ctx, `
		INSERT INTO marketplace_events (sequence, kind, record_id, action, caller, payload, created_at)
		VALUES (COALESCE((SELECT MAX(sequence) + 1 FROM marketplace_events), 0), $1, $2, $3, $4, $5, $6)`,
		string(event.Kind), int64(event.RecordID), string(event.Action), event.Caller, event.Payload, event.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "cannot insert event")
	}
	return nil
}

func (r *Repository) GetEventsByRecord(ctx context.Context, kind entity.RecordKind, recordID uint64) ([]entity.MarketplaceEvent, error) {
	rows, err := r.q().Query(ctx, `
		SELECT sequence, kind, record_id, action, caller, payload, created_at
		FROM marketplace_events WHERE kind = $1 AND record_id = $2 ORDER BY sequence`,
		string(kind), int64(recordID),
	)
	if err != nil {
		return nil, errors.Wrap(err, "cannot get events")
	}
	return collectEvents(rows)
}

func (r *Repository) GetEventsAfter(ctx context.Context, sequence uint64, limit int32) ([]entity.MarketplaceEvent, error) {
	rows, err := r.q().Query(ctx, `
		SELECT sequence, kind, record_id, action, caller, payload, created_at
		FROM marketplace_events WHERE sequence >= $1 ORDER BY sequence LIMIT $2`,
		int64(sequence), limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "cannot get events")
	}
	return collectEvents(rows)
}
