package httphandler

import (
	"github.com/stkolmagorov/marketplace/modules/marketplace/datagateway"
)

type handler struct {
	marketplaceDg datagateway.MarketplaceDataGateway
}

func New(marketplaceDg datagateway.MarketplaceDataGateway) *handler {
	return &handler{marketplaceDg: marketplaceDg}
}
