package httphandler

import (
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/stkolmagorov/marketplace/common/errs"
	"github.com/stkolmagorov/marketplace/modules/marketplace/internal/entity"
)

const defaultEventsLimit = 100

type getEventsRequest struct {
	Kind     string `query:"kind"`
	RecordId uint64 `query:"recordId"`
	Sequence uint64 `query:"sequence"`
	Limit    int32  `query:"limit"`
}

func (r *getEventsRequest) Validate() error {
	if r.Kind != "" && r.Kind != string(entity.RecordKindSale) && r.Kind != string(entity.RecordKindAuction) {
		return errs.WithPublicMessage(errors.Errorf("kind '%s' is not valid", r.Kind), "validation error")
	}
	if r.Limit <= 0 || r.Limit > 1000 {
		r.Limit = defaultEventsLimit
	}
	return nil
}

type eventResponse struct {
	Sequence  uint64          `json:"sequence"`
	Kind      string          `json:"kind"`
	RecordId  uint64          `json:"recordId"`
	Action    string          `json:"action"`
	Caller    string          `json:"caller"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

func (h *handler) getEventsHandler(ctx *fiber.Ctx) error {
	var request getEventsRequest
	if err := ctx.QueryParser(&request); err != nil {
		return errors.Wrap(err, "cannot parse query")
	}
	if err := request.Validate(); err != nil {
		return errors.WithStack(err)
	}

	var (
		events []entity.MarketplaceEvent
		err    error
	)
	if request.Kind != "" {
		events, err = h.marketplaceDg.GetEventsByRecord(ctx.UserContext(), entity.RecordKind(request.Kind), request.RecordId)
	} else {
		events, err = h.marketplaceDg.GetEventsAfter(ctx.UserContext(), request.Sequence, request.Limit)
	}
	if err != nil {
		return errors.Wrap(err, "can't get events from db")
	}

	responses := make([]eventResponse, len(events))
	for i, event := range events {
		responses[i] = eventResponse{
			Sequence:  event.Sequence,
			Kind:      string(event.Kind),
			RecordId:  event.RecordID,
			Action:    string(event.Action),
			Caller:    event.Caller,
			Payload:   event.Payload,
			CreatedAt: event.CreatedAt,
		}
	}

	if err := ctx.JSON(responses); err != nil {
		return errors.Wrap(err, "go fiber cannot parse JSON")
	}
	return nil
}
