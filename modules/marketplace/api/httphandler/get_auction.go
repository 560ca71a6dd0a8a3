package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/stkolmagorov/marketplace/modules/marketplace/internal/entity"
)

type getAuctionRequest struct {
	Id uint64 `params:"id"`
}

type auctionResponse struct {
	Id              uint64 `json:"id"`
	Seller          string `json:"seller"`
	Winner          string `json:"winner,omitempty"`
	Currency        string `json:"currency"`
	AssetContract   string `json:"assetContract"`
	AssetTokenId    uint64 `json:"assetTokenId"`
	WinningBid      uint64 `json:"winningBid"`
	AmountOffered   uint64 `json:"amountOffered"`
	RedemptionPrice uint64 `json:"redemptionPrice"`
	Exclusive       bool   `json:"exclusive"`
	Kind            string `json:"kind"`
	Status          string `json:"status"`
}

func (h *handler) getAuctionHandler(ctx *fiber.Ctx) error {
	var request getAuctionRequest
	if err := ctx.ParamsParser(&request); err != nil {
		return errors.Wrap(err, "cannot parse params")
	}

	auction, err := h.marketplaceDg.GetAuction(ctx.UserContext(), request.Id)
	if err != nil {
		return errors.Wrap(err, "can't get auction from db")
	}

	err = ctx.JSON(auctionResponse{
		Id:              auction.ID,
		Seller:          auction.Seller,
		Winner:          auction.Winner,
		Currency:        auction.Currency.String(),
		AssetContract:   auction.Asset.Contract,
		AssetTokenId:    auction.Asset.TokenID,
		WinningBid:      auction.WinningBid,
		AmountOffered:   auction.AmountOffered,
		RedemptionPrice: auction.RedemptionPrice,
		Exclusive:       auction.Class == entity.AssetClassExclusive,
		Kind:            auction.Kind.String(),
		Status:          auction.Status.String(),
	})
	if err != nil {
		return errors.Wrap(err, "go fiber cannot parse JSON")
	}
	return nil
}
