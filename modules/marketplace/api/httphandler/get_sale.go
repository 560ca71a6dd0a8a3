package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/stkolmagorov/marketplace/modules/marketplace/internal/entity"
)

type getSaleRequest struct {
	Id uint64 `params:"id"`
}

type saleResponse struct {
	Id              uint64 `json:"id"`
	Seller          string `json:"seller"`
	Currency        string `json:"currency"`
	AssetContract   string `json:"assetContract"`
	AssetTokenId    uint64 `json:"assetTokenId"`
	AmountOffered   uint64 `json:"amountOffered"`
	AmountPurchased uint64 `json:"amountPurchased"`
	AmountAvailable uint64 `json:"amountAvailable"`
	PricePerUnit    uint64 `json:"pricePerUnit"`
	Exclusive       bool   `json:"exclusive"`
	Status          string `json:"status"`
}

func (h *handler) getSaleHandler(ctx *fiber.Ctx) error {
	var request getSaleRequest
	if err := ctx.ParamsParser(&request); err != nil {
		return errors.Wrap(err, "cannot parse params")
	}

	sale, err := h.marketplaceDg.GetSale(ctx.UserContext(), request.Id)
	if err != nil {
		return errors.Wrap(err, "can't get sale from db")
	}

	err = ctx.JSON(saleResponse{
		Id:              sale.ID,
		Seller:          sale.Seller,
		Currency:        sale.Currency.String(),
		AssetContract:   sale.Asset.Contract,
		AssetTokenId:    sale.Asset.TokenID,
		AmountOffered:   sale.AmountOffered,
		AmountPurchased: sale.AmountPurchased,
		AmountAvailable: sale.AmountAvailable(),
		PricePerUnit:    sale.PricePerUnit,
		Exclusive:       sale.Class == entity.AssetClassExclusive,
		Status:          sale.Status.String(),
	})
	if err != nil {
		return errors.Wrap(err, "go fiber cannot parse JSON")
	}
	return nil
}
