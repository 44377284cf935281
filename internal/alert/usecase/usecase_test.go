package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/alert/dto"
	alertrepo "github.com/fekuna/omnipos-inventory-service/internal/alert/repository"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	stockrepo "github.com/fekuna/omnipos-inventory-service/internal/stock/repository"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
	"github.com/google/uuid"
)

func newTestUseCase(t *testing.T, stocks *stockrepo.MemoryRepository) (*alertUseCase, *alertrepo.MemoryRepository) {
	t.Helper()
	repo := alertrepo.NewMemoryRepository()
	uc := NewAlertUseCase(repo, stocks, logger.NewNop(), time.Hour).(*alertUseCase)
	return uc, repo
}

func checkInput(recordID string) *dto.CheckAlertInput {
	return &dto.CheckAlertInput{
		MerchantID:      "m-1",
		StockRecordID:   recordID,
		AlertType:       model.AlertTypeLowStock,
		CurrentQuantity: 8,
		Threshold:       20,
		Message:         "below reorder level",
	}
}

func TestCheckAndCreateAlertSuppression(t *testing.T) {
	uc, _ := newTestUseCase(t, stockrepo.NewMemoryRepository())
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	uc.now = func() time.Time { return base }

	first, err := uc.CheckAndCreateAlert(ctx, checkInput("rec-1"))
	if err != nil {
		t.Fatalf("CheckAndCreateAlert: %v", err)
	}
	if first == nil || first.Status != model.AlertStatusPending {
		t.Fatalf("first alert = %+v, want pending alert", first)
	}

	// Same (record, type) 30 minutes later falls inside the window.
	uc.now = func() time.Time { return base.Add(30 * time.Minute) }
	dup, err := uc.CheckAndCreateAlert(ctx, checkInput("rec-1"))
	if err != nil {
		t.Fatalf("CheckAndCreateAlert: %v", err)
	}
	if dup != nil {
		t.Errorf("alert within window = %+v, want suppressed", dup)
	}

	// A different record is never suppressed by rec-1's alert.
	other, err := uc.CheckAndCreateAlert(ctx, checkInput("rec-2"))
	if err != nil || other == nil {
		t.Errorf("alert for other record = %+v, %v, want created", other, err)
	}

	// Past the window the same pair fires again.
	uc.now = func() time.Time { return base.Add(2 * time.Hour) }
	later, err := uc.CheckAndCreateAlert(ctx, checkInput("rec-1"))
	if err != nil || later == nil {
		t.Errorf("alert past window = %+v, %v, want created", later, err)
	}
}

func TestResolvedAlertDoesNotSuppress(t *testing.T) {
	uc, _ := newTestUseCase(t, stockrepo.NewMemoryRepository())
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	uc.now = func() time.Time { return base }

	first, err := uc.CheckAndCreateAlert(ctx, checkInput("rec-1"))
	if err != nil {
		t.Fatalf("CheckAndCreateAlert: %v", err)
	}
	if _, err := uc.Resolve(ctx, first.ID); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	uc.now = func() time.Time { return base.Add(10 * time.Minute) }
	again, err := uc.CheckAndCreateAlert(ctx, checkInput("rec-1"))
	if err != nil || again == nil {
		t.Errorf("alert after resolve = %+v, %v, want created", again, err)
	}
}

func TestAlertLifecycle(t *testing.T) {
	uc, _ := newTestUseCase(t, stockrepo.NewMemoryRepository())
	ctx := context.Background()

	a, err := uc.CheckAndCreateAlert(ctx, checkInput("rec-1"))
	if err != nil {
		t.Fatalf("CheckAndCreateAlert: %v", err)
	}

	acked, err := uc.Acknowledge(ctx, a.ID)
	if err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if acked.Status != model.AlertStatusAcknowledged || acked.AcknowledgedAt == nil {
		t.Errorf("acknowledged alert = %s/%v", acked.Status, acked.AcknowledgedAt)
	}

	resolved, err := uc.Resolve(ctx, a.ID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Status != model.AlertStatusResolved || resolved.ResolvedAt == nil {
		t.Errorf("resolved alert = %s/%v", resolved.Status, resolved.ResolvedAt)
	}
}

func TestCheckExpiringBatches(t *testing.T) {
	stocks := stockrepo.NewMemoryRepository()
	uc, repo := newTestUseCase(t, stocks)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	uc.now = func() time.Time { return now }

	rec := &model.StockRecord{
		ID:         uuid.New().String(),
		MerchantID: "m-1",
		ProductID:  "p-1",
		OnHand:     40,
		Status:     model.StockStatusInStock,
	}
	rec.RecomputeAvailable()
	if err := stocks.CreateWithMovement(ctx, rec, &model.StockMovement{
		ID:            uuid.New().String(),
		MerchantID:    rec.MerchantID,
		StockRecordID: rec.ID,
		MovementType:  model.MovementTypeInitial,
	}); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	seedBatch := func(number string, expiry time.Time, remaining int64) {
		t.Helper()
		b := &model.Batch{
			ID:                uuid.New().String(),
			MerchantID:        rec.MerchantID,
			StockRecordID:     rec.ID,
			BatchNumber:       number,
			QuantityReceived:  remaining,
			QuantityRemaining: remaining,
			ExpiryDate:        &expiry,
			ReceivedAt:        now.Add(-30 * 24 * time.Hour),
			Status:            model.BatchStatusActive,
		}
		if err := stocks.CreateBatchWithMovement(ctx, rec, b, &model.StockMovement{
			ID:            uuid.New().String(),
			MerchantID:    rec.MerchantID,
			StockRecordID: rec.ID,
			MovementType:  model.MovementTypeStockIn,
		}); err != nil {
			t.Fatalf("seed batch: %v", err)
		}
	}

	seedBatch("EXPIRED", now.Add(-24*time.Hour), 10)
	seedBatch("SOON", now.Add(5*24*time.Hour), 10)
	seedBatch("FAR", now.Add(90*24*time.Hour), 10)

	created, err := uc.CheckExpiringBatches(ctx, "m-1", 30*24*time.Hour)
	if err != nil {
		t.Fatalf("CheckExpiringBatches: %v", err)
	}
	if created != 2 {
		t.Errorf("created = %d, want 2 (one expired, one expiring)", created)
	}

	expired, _, err := repo.FindAll(ctx, &dto.AlertFilters{AlertType: model.AlertTypeExpired})
	if err != nil || len(expired) != 1 {
		t.Errorf("expired alerts = %d, %v, want 1", len(expired), err)
	}
	expiring, _, err := repo.FindAll(ctx, &dto.AlertFilters{AlertType: model.AlertTypeExpiring})
	if err != nil || len(expiring) != 1 {
		t.Errorf("expiring alerts = %d, %v, want 1", len(expiring), err)
	}
}

// The periodic pass runs with an empty merchant id and must cover every
// merchant's batches.
func TestCheckExpiringBatchesAllMerchants(t *testing.T) {
	stocks := stockrepo.NewMemoryRepository()
	uc, _ := newTestUseCase(t, stocks)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	uc.now = func() time.Time { return now }

	expiry := now.Add(5 * 24 * time.Hour)
	for _, merchantID := range []string{"m-1", "m-2"} {
		rec := &model.StockRecord{
			ID:         uuid.New().String(),
			MerchantID: merchantID,
			ProductID:  "p-1",
			OnHand:     10,
			Status:     model.StockStatusInStock,
		}
		rec.RecomputeAvailable()
		if err := stocks.CreateWithMovement(ctx, rec, &model.StockMovement{
			ID:            uuid.New().String(),
			MerchantID:    merchantID,
			StockRecordID: rec.ID,
			MovementType:  model.MovementTypeInitial,
		}); err != nil {
			t.Fatalf("seed record: %v", err)
		}
		b := &model.Batch{
			ID:                uuid.New().String(),
			MerchantID:        merchantID,
			StockRecordID:     rec.ID,
			BatchNumber:       "B1",
			QuantityReceived:  10,
			QuantityRemaining: 10,
			ExpiryDate:        &expiry,
			ReceivedAt:        now,
			Status:            model.BatchStatusActive,
		}
		if err := stocks.CreateBatchWithMovement(ctx, rec, b, &model.StockMovement{
			ID:            uuid.New().String(),
			MerchantID:    merchantID,
			StockRecordID: rec.ID,
			MovementType:  model.MovementTypeStockIn,
		}); err != nil {
			t.Fatalf("seed batch: %v", err)
		}
	}

	created, err := uc.CheckExpiringBatches(ctx, "", 30*24*time.Hour)
	if err != nil {
		t.Fatalf("CheckExpiringBatches: %v", err)
	}
	if created != 2 {
		t.Errorf("created = %d, want 2 (one per merchant)", created)
	}
}
