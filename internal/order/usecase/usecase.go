package usecase

import (
	"context"
	"fmt"

	"github.com/fekuna/omnipos-inventory-service/internal/apperrors"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/order"
	"github.com/fekuna/omnipos-inventory-service/internal/order/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/reservation"
	resvdto "github.com/fekuna/omnipos-inventory-service/internal/reservation/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/stock"
	stockdto "github.com/fekuna/omnipos-inventory-service/internal/stock/dto"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type orderUseCase struct {
	stocks       stock.UseCase
	reservations reservation.UseCase
	logger       logger.ZapLogger
	validate     *validator.Validate
}

func NewOrderUseCase(stocks stock.UseCase, reservations reservation.UseCase, log logger.ZapLogger) order.UseCase {
	return &orderUseCase{
		stocks:       stocks,
		reservations: reservations,
		logger:       log,
		validate:     validator.New(),
	}
}

func (uc *orderUseCase) PlaceOrder(ctx context.Context, input *dto.PlaceOrderInput) ([]model.Reservation, error) {
	if err := uc.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	// Advisory pre-check across all lines so an obviously short order fails
	// before taking any hold. Reserve re-validates under the record lock.
	records := make([]*model.StockRecord, len(input.Lines))
	for i, line := range input.Lines {
		rec, err := uc.stocks.GetRecord(ctx, input.MerchantID, line.ProductID, line.LocationID)
		if err != nil {
			return nil, fmt.Errorf("order %s product %s: %w", input.OrderRef, line.ProductID, err)
		}
		if line.Quantity > rec.Available {
			return nil, fmt.Errorf("order %s product %s: requested %d, available %d: %w",
				input.OrderRef, line.ProductID, line.Quantity, rec.Available, apperrors.ErrInsufficientStock)
		}
		records[i] = rec
	}

	taken := make([]model.Reservation, 0, len(input.Lines))
	for i, line := range input.Lines {
		resv, err := uc.reservations.Reserve(ctx, &resvdto.ReserveInput{
			RecordID:  records[i].ID,
			OrderRef:  input.OrderRef,
			Quantity:  line.Quantity,
			Requester: input.Requester,
			UnitPrice: line.UnitPrice,
		})
		if err != nil {
			uc.compensate(ctx, taken)
			return nil, fmt.Errorf("order %s product %s: %w", input.OrderRef, line.ProductID, err)
		}
		taken = append(taken, *resv)
	}

	uc.logger.Info("order reserved",
		zap.String("order_ref", input.OrderRef),
		zap.Int("lines", len(taken)),
	)
	return taken, nil
}

// compensate rolls back the holds taken so far when a later line fails.
// Release is idempotent, so a retry racing this path stays safe.
func (uc *orderUseCase) compensate(ctx context.Context, taken []model.Reservation) {
	for _, resv := range taken {
		if _, err := uc.reservations.Release(ctx, resv.ID, "order placement failed"); err != nil {
			uc.logger.Error("failed to release reservation during compensation",
				zap.String("reservation_id", resv.ID),
				zap.Error(err),
			)
		}
	}
}

func (uc *orderUseCase) CancelOrder(ctx context.Context, merchantID, orderRef string) (int, error) {
	released, err := uc.reservations.ReleaseByOrder(ctx, merchantID, orderRef, "order cancelled")
	if err != nil {
		return released, err
	}
	uc.logger.Info("order cancelled",
		zap.String("order_ref", orderRef),
		zap.Int("released", released),
	)
	return released, nil
}

func (uc *orderUseCase) ShipOrder(ctx context.Context, merchantID, orderRef, shippedBy string) error {
	reservations, err := uc.reservations.ListByOrder(ctx, merchantID, orderRef)
	if err != nil {
		return err
	}

	shipped := 0
	for _, resv := range reservations {
		if !resv.Status.Active() {
			continue
		}
		if _, err := uc.reservations.Fulfill(ctx, resv.ID); err != nil {
			return fmt.Errorf("order %s reservation %s: %w", orderRef, resv.ID, err)
		}

		ref := orderRef
		if _, err := uc.stocks.StockOut(ctx, &stockdto.StockOutInput{
			RecordID:  resv.StockRecordID,
			Quantity:  resv.QuantityReserved,
			Reason:    "order shipment",
			OrderRef:  &ref,
			CreatedBy: shippedBy,
		}); err != nil {
			// The fulfill already consumed the hold. Take a fresh one for the
			// same order so a retried shipment finds an active reservation
			// instead of silently skipping the line.
			if _, rerr := uc.reservations.Reserve(ctx, &resvdto.ReserveInput{
				RecordID:  resv.StockRecordID,
				OrderRef:  orderRef,
				Quantity:  resv.QuantityReserved,
				Requester: resv.Requester,
				UnitPrice: resv.UnitPrice,
			}); rerr != nil {
				uc.logger.Error("failed to restore hold after failed stock out",
					zap.String("order_ref", orderRef),
					zap.String("stock_record_id", resv.StockRecordID),
					zap.Error(rerr),
				)
			}
			return fmt.Errorf("order %s reservation %s: %w", orderRef, resv.ID, err)
		}
		shipped++
	}

	if shipped == 0 {
		return fmt.Errorf("order %s has no active reservations: %w", orderRef, apperrors.ErrNotFound)
	}

	uc.logger.Info("order shipped",
		zap.String("order_ref", orderRef),
		zap.Int("lines", shipped),
	)
	return nil
}
