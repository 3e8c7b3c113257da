package validation

import "github.com/imrishuroy/marketplace-invoice-sync/internal/marketplace"

// RetryRequest is the payload for POST /retry. Ids may be sent as JSON
// strings or numbers.
type RetryRequest struct {
	ShopID    marketplace.ID `json:"id_shop" validate:"required,numeric"`
	ChannelID marketplace.ID `json:"id_channel" validate:"required,numeric"`
	OrderID   marketplace.ID `json:"id_order" validate:"required"`
}
