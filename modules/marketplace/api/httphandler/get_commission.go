package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type commissionRecipientResponse struct {
	Address string `json:"address"`
	Bps     uint64 `json:"bps"`
	Percent string `json:"percent"`
}

type commissionResponse struct {
	CommissionBps     uint64                        `json:"commissionBps"`
	CommissionPercent string                        `json:"commissionPercent"`
	Recipients        []commissionRecipientResponse `json:"recipients"`
}

func bpsToPercent(bps uint64) string {
	return decimal.NewFromInt(int64(bps)).Div(decimal.NewFromInt(100)).String()
}

func (h *handler) getCommissionHandler(ctx *fiber.Ctx) error {
	params, err := h.marketplaceDg.GetEngineParams(ctx.UserContext())
	if err != nil {
		return errors.Wrap(err, "can't get engine params from db")
	}
	recipients, err := h.marketplaceDg.GetCommissionRecipients(ctx.UserContext())
	if err != nil {
		return errors.Wrap(err, "can't get commission recipients from db")
	}

	response := commissionResponse{
		CommissionBps:     params.CommissionBps,
		CommissionPercent: bpsToPercent(params.CommissionBps),
		Recipients:        make([]commissionRecipientResponse, 0, len(recipients)),
	}
	for _, recipient := range recipients {
		response.Recipients = append(response.Recipients, commissionRecipientResponse{
			Address: recipient.Address,
			Bps:     recipient.Bps,
			Percent: bpsToPercent(recipient.Bps),
		})
	}

	if err := ctx.JSON(response); err != nil {
		return errors.Wrap(err, "go fiber cannot parse JSON")
	}
	return nil
}
