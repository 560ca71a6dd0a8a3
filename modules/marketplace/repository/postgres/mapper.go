package postgres

import (
	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/stkolmagorov/marketplace/modules/marketplace/internal/entity"
)

func scanSale(row pgx.Row) (*entity.SaleRecord, error) {
	var (
		id, tokenID, offered, purchased, price int64
		class, royalty, status                 int16
		sale                                   entity.SaleRecord
	)
	err := row.Scan(&id, &sale.Seller, &sale.Currency, &sale.Asset.Contract, &tokenID,
		&offered, &purchased, &price, &class, &royalty, &status)
	if err != nil {
		return nil, err
	}
	sale.ID = uint64(id)
	sale.Asset.TokenID = uint64(tokenID)
	sale.AmountOffered = uint64(offered)
	sale.AmountPurchased = uint64(purchased)
	sale.PricePerUnit = uint64(price)
	sale.Class = entity.AssetClass(class)
	sale.Royalty = entity.RoyaltySupport(royalty)
	sale.Status = entity.ListingStatus(status)
	return &sale, nil
}

func scanAuction(row pgx.Row) (*entity.AuctionRecord, error) {
	var (
		id, tokenID, bid, offered, redemption int64
		class, royalty, status, kind          int16
		auction                               entity.AuctionRecord
	)
	err := row.Scan(&id, &auction.Seller, &auction.Winner, &auction.Currency, &auction.Asset.Contract, &tokenID,
		&bid, &offered, &redemption, &class, &royalty, &status, &kind)
	if err != nil {
		return nil, err
	}
	auction.ID = uint64(id)
	auction.Asset.TokenID = uint64(tokenID)
	auction.WinningBid = uint64(bid)
	auction.AmountOffered = uint64(offered)
	auction.RedemptionPrice = uint64(redemption)
	auction.Class = entity.AssetClass(class)
	auction.Royalty = entity.RoyaltySupport(royalty)
	auction.Status = entity.ListingStatus(status)
	auction.Kind = entity.AuctionKind(kind)
	return &auction, nil
}

func collectEvents(rows pgx.Rows) ([]entity.MarketplaceEvent, error) {
	defer rows.Close()

	var events []entity.MarketplaceEvent
	for rows.Next() {
		var (
			sequence, recordID int64
			event              entity.MarketplaceEvent
		)
		err := rows.Scan(&sequence, &event.Kind, &recordID, &event.Action, &event.Caller, &event.Payload, &event.CreatedAt)
		if err != nil {
			return nil, errors.Wrap(err, "cannot scan event")
		}
		event.Sequence = uint64(sequence)
		event.RecordID = uint64(recordID)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "cannot iterate events")
	}
	return events, nil
}
