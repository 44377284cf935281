package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/apperrors"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/reservation"
	"github.com/fekuna/omnipos-inventory-service/internal/reservation/dto"
	resvrepo "github.com/fekuna/omnipos-inventory-service/internal/reservation/repository"
	stockrepo "github.com/fekuna/omnipos-inventory-service/internal/stock/repository"
	"github.com/fekuna/omnipos-inventory-service/pkg/cache"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
	"github.com/google/uuid"
)

func seedRecord(t *testing.T, stocks *stockrepo.MemoryRepository, onHand int64) *model.StockRecord {
	t.Helper()
	now := time.Now()
	rec := &model.StockRecord{
		ID:         uuid.New().String(),
		MerchantID: "m-1",
		ProductID:  "p-1",
		OnHand:     onHand,
		Status:     model.StockStatusInStock,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	rec.RecomputeAvailable()
	mv := &model.StockMovement{
		ID:             uuid.New().String(),
		MerchantID:     rec.MerchantID,
		StockRecordID:  rec.ID,
		MovementType:   model.MovementTypeInitial,
		QuantityChange: onHand,
		QuantityAfter:  onHand,
		Reason:         "initial stock",
		CreatedAt:      now,
	}
	if err := stocks.CreateWithMovement(context.Background(), rec, mv); err != nil {
		t.Fatalf("seed record: %v", err)
	}
	return rec
}

func newTestUseCase(t *testing.T, onHand int64, holdDuration time.Duration) (reservation.UseCase, *resvrepo.MemoryRepository, *stockrepo.MemoryRepository, *model.StockRecord) {
	t.Helper()
	stocks := stockrepo.NewMemoryRepository()
	rec := seedRecord(t, stocks, onHand)
	repo := resvrepo.NewMemoryRepository(stocks)
	uc := NewReservationUseCase(repo, cache.NewLocalLocker(), logger.NewNop(), holdDuration, 0)
	return uc, repo, stocks, rec
}

func TestReserve(t *testing.T) {
	uc, _, stocks, rec := newTestUseCase(t, 100, 24*time.Hour)
	ctx := context.Background()

	resv, err := uc.Reserve(ctx, &dto.ReserveInput{
		RecordID:  rec.ID,
		OrderRef:  "ord-1",
		Quantity:  30,
		Requester: "checkout",
	})
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if resv.Status != model.ReservationStatusPending {
		t.Errorf("Status = %s, want pending", resv.Status)
	}
	if resv.ExpiresAt == nil || resv.ExpiresAt.Before(time.Now().Add(23*time.Hour)) {
		t.Errorf("ExpiresAt = %v, want about 24h out", resv.ExpiresAt)
	}

	updated, _ := stocks.GetByID(ctx, rec.ID)
	if updated.Reserved != 30 || updated.Available != 70 || updated.OnHand != 100 {
		t.Errorf("reserved/available/on-hand = %d/%d/%d, want 30/70/100",
			updated.Reserved, updated.Available, updated.OnHand)
	}
}

func TestReserveInsufficientAvailable(t *testing.T) {
	uc, _, _, rec := newTestUseCase(t, 100, 24*time.Hour)
	ctx := context.Background()

	if _, err := uc.Reserve(ctx, &dto.ReserveInput{RecordID: rec.ID, OrderRef: "ord-1", Quantity: 70}); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	_, err := uc.Reserve(ctx, &dto.ReserveInput{RecordID: rec.ID, OrderRef: "ord-2", Quantity: 40})
	if !errors.Is(err, apperrors.ErrInsufficientAvailable) {
		t.Errorf("Reserve error = %v, want ErrInsufficientAvailable", err)
	}
}

// A second release of the same reservation must not decrement reserved again.
func TestDoubleReleaseDecrementsOnce(t *testing.T) {
	uc, _, stocks, rec := newTestUseCase(t, 100, 24*time.Hour)
	ctx := context.Background()

	resv, err := uc.Reserve(ctx, &dto.ReserveInput{RecordID: rec.ID, OrderRef: "ord-1", Quantity: 30})
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	released, err := uc.Release(ctx, resv.ID, "customer backed out")
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if released.Status != model.ReservationStatusReleased {
		t.Errorf("Status = %s, want released", released.Status)
	}

	again, err := uc.Release(ctx, resv.ID, "retry")
	if err != nil {
		t.Fatalf("second Release: %v", err)
	}
	if again.Status != model.ReservationStatusReleased {
		t.Errorf("Status after second release = %s, want released", again.Status)
	}
	if again.ReleaseReason == nil || *again.ReleaseReason != "customer backed out" {
		t.Errorf("second release overwrote reason: %v", again.ReleaseReason)
	}

	updated, _ := stocks.GetByID(ctx, rec.ID)
	if updated.Reserved != 0 || updated.Available != 100 {
		t.Errorf("reserved/available = %d/%d, want 0/100", updated.Reserved, updated.Available)
	}
}

func TestAllocate(t *testing.T) {
	uc, _, _, rec := newTestUseCase(t, 100, 24*time.Hour)
	ctx := context.Background()

	resv, err := uc.Reserve(ctx, &dto.ReserveInput{RecordID: rec.ID, OrderRef: "ord-1", Quantity: 10})
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	allocated, err := uc.Allocate(ctx, resv.ID)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if allocated.Status != model.ReservationStatusAllocated {
		t.Errorf("Status = %s, want allocated", allocated.Status)
	}

	if _, err := uc.Allocate(ctx, resv.ID); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Errorf("second Allocate error = %v, want ErrInvalidState", err)
	}
}

func TestFulfillFreesReserved(t *testing.T) {
	uc, _, stocks, rec := newTestUseCase(t, 100, 24*time.Hour)
	ctx := context.Background()

	resv, err := uc.Reserve(ctx, &dto.ReserveInput{RecordID: rec.ID, OrderRef: "ord-1", Quantity: 30})
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	fulfilled, err := uc.Fulfill(ctx, resv.ID)
	if err != nil {
		t.Fatalf("Fulfill: %v", err)
	}
	if fulfilled.Status != model.ReservationStatusFulfilled {
		t.Errorf("Status = %s, want fulfilled", fulfilled.Status)
	}

	updated, _ := stocks.GetByID(ctx, rec.ID)
	if updated.OnHand != 100 || updated.Reserved != 0 || updated.Available != 100 {
		t.Errorf("on-hand/reserved/available = %d/%d/%d, want 100/0/100",
			updated.OnHand, updated.Reserved, updated.Available)
	}
}

func TestExpireSweep(t *testing.T) {
	// Negative hold puts expiry in the past the moment the hold is taken.
	uc, repo, stocks, rec := newTestUseCase(t, 100, -time.Minute)
	ctx := context.Background()

	resv, err := uc.Reserve(ctx, &dto.ReserveInput{RecordID: rec.ID, OrderRef: "ord-1", Quantity: 30})
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	released, err := uc.ExpireSweep(ctx)
	if err != nil {
		t.Fatalf("ExpireSweep: %v", err)
	}
	if released != 1 {
		t.Errorf("released = %d, want 1", released)
	}

	swept, _ := repo.GetByID(ctx, resv.ID)
	if swept.Status != model.ReservationStatusReleased {
		t.Errorf("Status = %s, want released", swept.Status)
	}
	if swept.ReleaseReason == nil || *swept.ReleaseReason != "expired" {
		t.Errorf("ReleaseReason = %v, want expired", swept.ReleaseReason)
	}

	updated, _ := stocks.GetByID(ctx, rec.ID)
	if updated.Reserved != 0 {
		t.Errorf("Reserved = %d, want 0 after sweep", updated.Reserved)
	}

	// Nothing left to sweep.
	released, err = uc.ExpireSweep(ctx)
	if err != nil || released != 0 {
		t.Errorf("second sweep = %d, %v, want 0, nil", released, err)
	}
}

func TestReleaseByOrder(t *testing.T) {
	uc, repo, stocks, rec := newTestUseCase(t, 100, 24*time.Hour)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := uc.Reserve(ctx, &dto.ReserveInput{RecordID: rec.ID, OrderRef: "ord-1", Quantity: 10}); err != nil {
			t.Fatalf("Reserve: %v", err)
		}
	}
	if _, err := uc.Reserve(ctx, &dto.ReserveInput{RecordID: rec.ID, OrderRef: "ord-2", Quantity: 5}); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	released, err := uc.ReleaseByOrder(ctx, "m-1", "ord-1", "order cancelled")
	if err != nil {
		t.Fatalf("ReleaseByOrder: %v", err)
	}
	if released != 2 {
		t.Errorf("released = %d, want 2", released)
	}

	cancelled, _ := uc.ListByOrder(ctx, "m-1", "ord-1")
	for _, resv := range cancelled {
		if resv.Status != model.ReservationStatusCancelled {
			t.Errorf("reservation %s Status = %s, want cancelled", resv.ID, resv.Status)
		}
	}

	updated, _ := stocks.GetByID(ctx, rec.ID)
	if updated.Reserved != 5 {
		t.Errorf("Reserved = %d, want 5 (other order untouched)", updated.Reserved)
	}

	sum, _ := repo.SumActiveByRecord(ctx, rec.ID)
	if sum != updated.Reserved {
		t.Errorf("sum of active reservations %d != record reserved %d", sum, updated.Reserved)
	}
}

// With 5 available units and 20 concurrent single-unit holds, exactly 5 must
// succeed and the rest fail on availability.
func TestConcurrentReserveBounded(t *testing.T) {
	uc, repo, stocks, rec := newTestUseCase(t, 5, 24*time.Hour)
	ctx := context.Background()

	const attempts = 20
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := uc.Reserve(ctx, &dto.ReserveInput{
				RecordID: rec.ID,
				OrderRef: "ord-1",
				Quantity: 1,
			})
			errs[i] = err
		}(i)
	}
	wg.Wait()

	succeeded, insufficient := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, apperrors.ErrInsufficientAvailable):
			insufficient++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 5 || insufficient != 15 {
		t.Errorf("succeeded/insufficient = %d/%d, want 5/15", succeeded, insufficient)
	}

	updated, _ := stocks.GetByID(ctx, rec.ID)
	if updated.Reserved != 5 || updated.Available != 0 {
		t.Errorf("reserved/available = %d/%d, want 5/0", updated.Reserved, updated.Available)
	}
	sum, _ := repo.SumActiveByRecord(ctx, rec.ID)
	if sum != 5 {
		t.Errorf("sum of active reservations = %d, want 5", sum)
	}
}
