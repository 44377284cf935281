package order

import (
	"context"

	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/order/dto"
)

type UseCase interface {
	// PlaceOrder reserves every line or nothing: a failed line releases the
	// reservations already taken for this order before the error is returned.
	PlaceOrder(ctx context.Context, input *dto.PlaceOrderInput) ([]model.Reservation, error)
	CancelOrder(ctx context.Context, merchantID, orderRef string) (int, error)
	// ShipOrder fulfills each active reservation and then records the physical
	// stock out. Fulfill runs first so the held quantity is available again
	// when the stock out validates.
	ShipOrder(ctx context.Context, merchantID, orderRef, shippedBy string) error
}
