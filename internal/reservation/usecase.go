package reservation

import (
	"context"

	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/reservation/dto"
)

type UseCase interface {
	Reserve(ctx context.Context, input *dto.ReserveInput) (*model.Reservation, error)
	// Release is idempotent: releasing a reservation that is no longer active
	// returns it unchanged and decrements reserved exactly zero times.
	Release(ctx context.Context, reservationID, reason string) (*model.Reservation, error)
	Allocate(ctx context.Context, reservationID string) (*model.Reservation, error)
	Fulfill(ctx context.Context, reservationID string) (*model.Reservation, error)

	ListByOrder(ctx context.Context, merchantID, orderRef string) ([]model.Reservation, error)
	ReleaseByOrder(ctx context.Context, merchantID, orderRef, reason string) (int, error)

	// ExpireSweep releases pending holds past their deadline. Scheduled, not
	// event-driven; returns the number of holds released.
	ExpireSweep(ctx context.Context) (int, error)
}
