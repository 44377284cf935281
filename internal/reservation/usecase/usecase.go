package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/apperrors"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/reservation"
	"github.com/fekuna/omnipos-inventory-service/internal/reservation/dto"
	"github.com/fekuna/omnipos-inventory-service/pkg/cache"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	lockTTL        = 5 * time.Second
	lockRetries    = 3
	lockRetryDelay = 100 * time.Millisecond
)

type reservationUseCase struct {
	repo         reservation.Repository
	locker       cache.Locker
	logger       logger.ZapLogger
	validate     *validator.Validate
	holdDuration time.Duration
	sweepLimit   int
}

func NewReservationUseCase(repo reservation.Repository, locker cache.Locker, log logger.ZapLogger, holdDuration time.Duration, sweepLimit int) reservation.UseCase {
	if sweepLimit <= 0 {
		sweepLimit = 200
	}
	return &reservationUseCase{
		repo:         repo,
		locker:       locker,
		logger:       log,
		validate:     validator.New(),
		holdDuration: holdDuration,
		sweepLimit:   sweepLimit,
	}
}

func (uc *reservationUseCase) withRecordLock(ctx context.Context, key string, fn func() error) error {
	lockValue := uuid.New().String()

	acquired := false
	for i := 0; i < lockRetries; i++ {
		ok, err := uc.locker.AcquireLock(ctx, key, lockValue, lockTTL)
		if err != nil {
			uc.logger.Error("failed to acquire lock redis error", zap.Error(err))
		}
		if ok {
			acquired = true
			break
		}
		time.Sleep(lockRetryDelay)
	}
	if !acquired {
		return fmt.Errorf("stock record busy on %s: %w", key, apperrors.ErrConflict)
	}
	defer uc.locker.ReleaseLock(ctx, key, lockValue)

	return fn()
}

// Reserve checks availability and increments reserved inside one per-record
// critical section, so two concurrent reservations can never both pass the
// check against a stale available value.
func (uc *reservationUseCase) Reserve(ctx context.Context, input *dto.ReserveInput) (*model.Reservation, error) {
	if err := uc.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	rec, err := uc.mustGetRecord(ctx, input.RecordID)
	if err != nil {
		return nil, err
	}

	var resv *model.Reservation
	err = uc.withRecordLock(ctx, model.StockLockKey(rec.MerchantID, rec.ProductID, rec.LocationID), func() error {
		rec, err = uc.mustGetRecord(ctx, input.RecordID)
		if err != nil {
			return err
		}
		if input.Quantity > rec.Available {
			return fmt.Errorf("requested %d, available %d: %w", input.Quantity, rec.Available, apperrors.ErrInsufficientAvailable)
		}

		now := time.Now()
		expiresAt := now.Add(uc.holdDuration)
		resv = &model.Reservation{
			ID:               uuid.New().String(),
			MerchantID:       rec.MerchantID,
			StockRecordID:    rec.ID,
			OrderRef:         input.OrderRef,
			QuantityReserved: input.Quantity,
			UnitPrice:        input.UnitPrice,
			Status:           model.ReservationStatusPending,
			Requester:        input.Requester,
			ExpiresAt:        &expiresAt,
			CreatedAt:        now,
			UpdatedAt:        now,
		}

		rec.Reserved += input.Quantity
		rec.RecomputeAvailable()
		rec.UpdatedAt = now

		return uc.repo.CreateWithRecord(ctx, resv, rec)
	})
	if err != nil {
		return nil, err
	}
	return resv, nil
}

func (uc *reservationUseCase) Release(ctx context.Context, reservationID, reason string) (*model.Reservation, error) {
	return uc.release(ctx, reservationID, model.ReservationStatusReleased, reason)
}

func (uc *reservationUseCase) Allocate(ctx context.Context, reservationID string) (*model.Reservation, error) {
	resv, rec, err := uc.mustGetPair(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	err = uc.withRecordLock(ctx, model.StockLockKey(rec.MerchantID, rec.ProductID, rec.LocationID), func() error {
		resv, rec, err = uc.mustGetPair(ctx, reservationID)
		if err != nil {
			return err
		}
		if resv.Status != model.ReservationStatusPending {
			return fmt.Errorf("reservation %s is %s: %w", resv.ID, resv.Status, apperrors.ErrInvalidState)
		}
		resv.Status = model.ReservationStatusAllocated
		resv.UpdatedAt = time.Now()
		// Allocation does not move quantity; reserved stays as-is.
		return uc.repo.UpdateWithRecord(ctx, resv, rec)
	})
	if err != nil {
		return nil, err
	}
	return resv, nil
}

// Fulfill consumes the hold at shipment: the reservation leaves the active
// set and reserved drops, freeing the quantity for the physical StockOut the
// calling workflow performs.
func (uc *reservationUseCase) Fulfill(ctx context.Context, reservationID string) (*model.Reservation, error) {
	resv, rec, err := uc.mustGetPair(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	err = uc.withRecordLock(ctx, model.StockLockKey(rec.MerchantID, rec.ProductID, rec.LocationID), func() error {
		resv, rec, err = uc.mustGetPair(ctx, reservationID)
		if err != nil {
			return err
		}
		if !resv.Status.Active() {
			return fmt.Errorf("reservation %s is %s: %w", resv.ID, resv.Status, apperrors.ErrInvalidState)
		}

		now := time.Now()
		resv.Status = model.ReservationStatusFulfilled
		resv.UpdatedAt = now

		rec.Reserved -= resv.QuantityReserved
		rec.RecomputeAvailable()
		rec.UpdatedAt = now

		return uc.repo.UpdateWithRecord(ctx, resv, rec)
	})
	if err != nil {
		return nil, err
	}
	return resv, nil
}

func (uc *reservationUseCase) ListByOrder(ctx context.Context, merchantID, orderRef string) ([]model.Reservation, error) {
	return uc.repo.ListByOrder(ctx, merchantID, orderRef)
}

func (uc *reservationUseCase) ReleaseByOrder(ctx context.Context, merchantID, orderRef, reason string) (int, error) {
	reservations, err := uc.repo.ListByOrder(ctx, merchantID, orderRef)
	if err != nil {
		return 0, err
	}

	released := 0
	for _, resv := range reservations {
		if !resv.Status.Active() {
			continue
		}
		if _, err := uc.release(ctx, resv.ID, model.ReservationStatusCancelled, reason); err != nil {
			return released, err
		}
		released++
	}
	return released, nil
}

func (uc *reservationUseCase) ExpireSweep(ctx context.Context) (int, error) {
	expired, err := uc.repo.ListExpired(ctx, time.Now(), uc.sweepLimit)
	if err != nil {
		return 0, err
	}

	released := 0
	for _, resv := range expired {
		if _, err := uc.release(ctx, resv.ID, model.ReservationStatusReleased, "expired"); err != nil {
			uc.logger.Error("failed to release expired reservation",
				zap.String("reservation_id", resv.ID),
				zap.Error(err),
			)
			continue
		}
		released++
	}
	if released > 0 {
		uc.logger.Info("released expired reservations", zap.Int("count", released))
	}
	return released, nil
}

// release is the single path out of the active set. A reservation that is
// already released, cancelled or fulfilled is returned unchanged, so a late
// cancellation racing the expiry sweep decrements reserved exactly once.
func (uc *reservationUseCase) release(ctx context.Context, reservationID string, status model.ReservationStatus, reason string) (*model.Reservation, error) {
	resv, rec, err := uc.mustGetPair(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	err = uc.withRecordLock(ctx, model.StockLockKey(rec.MerchantID, rec.ProductID, rec.LocationID), func() error {
		resv, rec, err = uc.mustGetPair(ctx, reservationID)
		if err != nil {
			return err
		}
		if !resv.Status.Active() {
			uc.logger.Warn("release of inactive reservation ignored",
				zap.String("reservation_id", resv.ID),
				zap.String("status", string(resv.Status)),
			)
			return nil
		}

		now := time.Now()
		resv.Status = status
		resv.ReleasedAt = &now
		resv.ReleaseReason = &reason
		resv.UpdatedAt = now

		rec.Reserved -= resv.QuantityReserved
		rec.RecomputeAvailable()
		rec.UpdatedAt = now

		return uc.repo.UpdateWithRecord(ctx, resv, rec)
	})
	if err != nil {
		return nil, err
	}
	return resv, nil
}

func (uc *reservationUseCase) mustGetRecord(ctx context.Context, id string) (*model.StockRecord, error) {
	rec, err := uc.repo.GetStockRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("stock record %s: %w", id, apperrors.ErrNotFound)
	}
	return rec, nil
}

func (uc *reservationUseCase) mustGetPair(ctx context.Context, reservationID string) (*model.Reservation, *model.StockRecord, error) {
	resv, err := uc.repo.GetByID(ctx, reservationID)
	if err != nil {
		return nil, nil, err
	}
	if resv == nil {
		return nil, nil, fmt.Errorf("reservation %s: %w", reservationID, apperrors.ErrNotFound)
	}
	rec, err := uc.mustGetRecord(ctx, resv.StockRecordID)
	if err != nil {
		return nil, nil, err
	}
	return resv, rec, nil
}
