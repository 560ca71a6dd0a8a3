package httphandler

import (
	"github.com/gofiber/fiber/v2"
)

func (h *handler) Mount(router fiber.Router) error {
	r := router.Group("/marketplace/v1")

	r.Get("/sales/:id", h.getSaleHandler)
	r.Get("/auctions/:id", h.getAuctionHandler)
	r.Get("/commission", h.getCommissionHandler)
	r.Get("/events", h.getEventsHandler)

	return nil
}
