package usecase

import (
	"context"
	"fmt"
	"time"

	alertdto "github.com/fekuna/omnipos-inventory-service/internal/alert/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/apperrors"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/stock"
	"github.com/fekuna/omnipos-inventory-service/internal/stock/dto"
	"github.com/fekuna/omnipos-inventory-service/pkg/cache"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	lockTTL        = 5 * time.Second
	lockRetries    = 3
	lockRetryDelay = 100 * time.Millisecond
)

type stockUseCase struct {
	repo     stock.Repository
	locker   cache.Locker
	alerts   stock.Alerter
	logger   logger.ZapLogger
	validate *validator.Validate
}

// NewStockUseCase wires the ledger mutations. alerts may be nil when no alert
// monitor is attached.
func NewStockUseCase(repo stock.Repository, locker cache.Locker, alerts stock.Alerter, log logger.ZapLogger) stock.UseCase {
	return &stockUseCase{
		repo:     repo,
		locker:   locker,
		alerts:   alerts,
		logger:   log,
		validate: validator.New(),
	}
}

// withRecordLock serializes the load-validate-mutate-persist sequence against
// other writers of the same record. Exhausted retries surface as a conflict,
// never as a silently skipped check.
func (uc *stockUseCase) withRecordLock(ctx context.Context, key string, fn func() error) error {
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

func (uc *stockUseCase) Initialize(ctx context.Context, input *dto.InitializeStockInput) (*model.StockRecord, error) {
	if err := uc.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	lockKey := model.StockLockKey(input.MerchantID, input.ProductID, input.LocationID)

	var rec *model.StockRecord
	err := uc.withRecordLock(ctx, lockKey, func() error {
		existing, err := uc.repo.GetByProductLocation(ctx, input.MerchantID, input.ProductID, input.LocationID)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("stock record for product %s: %w", input.ProductID, apperrors.ErrAlreadyExists)
		}

		now := time.Now()
		rec = &model.StockRecord{
			ID:              uuid.New().String(),
			MerchantID:      input.MerchantID,
			ProductID:       input.ProductID,
			LocationID:      input.LocationID,
			OnHand:          input.InitialQuantity,
			ReorderLevel:    input.ReorderLevel,
			ReorderQuantity: input.ReorderQuantity,
			Status:          model.DeriveStockStatus(input.InitialQuantity, input.ReorderLevel),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		rec.RecomputeAvailable()

		mv := newMovement(rec, model.MovementTypeInitial, input.InitialQuantity, 0, "initial stock", input.CreatedBy, now)
		if !input.UnitCost.IsZero() {
			cost := input.UnitCost
			mv.UnitCost = &cost
		}

		return uc.repo.CreateWithMovement(ctx, rec, mv)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (uc *stockUseCase) StockIn(ctx context.Context, input *dto.StockInInput) (*dto.StockInResult, error) {
	if err := uc.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	rec, err := uc.mustGetRecord(ctx, input.RecordID)
	if err != nil {
		return nil, err
	}

	var result *dto.StockInResult
	err = uc.withRecordLock(ctx, model.StockLockKey(rec.MerchantID, rec.ProductID, rec.LocationID), func() error {
		rec, err = uc.mustGetRecord(ctx, input.RecordID)
		if err != nil {
			return err
		}

		now := time.Now()
		quantityBefore := rec.OnHand
		rec.OnHand += input.Quantity
		rec.RecomputeAvailable()
		// Receipts only ever upgrade status; downgrades happen on the full
		// recompute paths (StockOut/Adjust/RecordDamage).
		rec.Status = model.UpgradeStockStatus(rec.Status, model.DeriveStockStatus(rec.OnHand, rec.ReorderLevel))
		rec.UpdatedAt = now

		batch := &model.Batch{
			ID:                uuid.New().String(),
			MerchantID:        rec.MerchantID,
			StockRecordID:     rec.ID,
			BatchNumber:       input.BatchNumber,
			QuantityReceived:  input.Quantity,
			QuantityRemaining: input.Quantity,
			CostPerUnit:       input.UnitCost,
			TotalCost:         input.UnitCost.Mul(decimal.NewFromInt(input.Quantity)),
			ExpiryDate:        input.ExpiryDate,
			ReceivedAt:        now,
			Status:            model.BatchStatusActive,
			CreatedAt:         now,
			UpdatedAt:         now,
		}

		reason := input.Reason
		if reason == "" {
			reason = "stock received"
		}
		mv := newMovement(rec, model.MovementTypeStockIn, input.Quantity, quantityBefore, reason, input.CreatedBy, now)
		mv.BatchID = &batch.ID
		if !input.UnitCost.IsZero() {
			cost := input.UnitCost
			mv.UnitCost = &cost
		}

		if err := uc.repo.CreateBatchWithMovement(ctx, rec, batch, mv); err != nil {
			return err
		}
		result = &dto.StockInResult{Record: rec, Batch: batch, Movement: mv}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (uc *stockUseCase) StockOut(ctx context.Context, input *dto.StockOutInput) (*dto.MutationResult, error) {
	if err := uc.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	rec, err := uc.mustGetRecord(ctx, input.RecordID)
	if err != nil {
		return nil, err
	}

	var result *dto.MutationResult
	err = uc.withRecordLock(ctx, model.StockLockKey(rec.MerchantID, rec.ProductID, rec.LocationID), func() error {
		rec, err = uc.mustGetRecord(ctx, input.RecordID)
		if err != nil {
			return err
		}
		if input.Quantity > rec.Available {
			return fmt.Errorf("requested %d, available %d: %w", input.Quantity, rec.Available, apperrors.ErrInsufficientStock)
		}

		now := time.Now()
		quantityBefore := rec.OnHand
		rec.OnHand -= input.Quantity
		rec.RecomputeAvailable()
		if rec.Status != model.StockStatusDiscontinued {
			rec.Status = model.DeriveStockStatus(rec.OnHand, rec.ReorderLevel)
		}
		rec.UpdatedAt = now

		consumed, err := uc.consumeBatches(ctx, rec.ID, input.Quantity, now)
		if err != nil {
			return err
		}

		mv := newMovement(rec, model.MovementTypeStockOut, -input.Quantity, quantityBefore, input.Reason, input.CreatedBy, now)
		mv.OrderRef = input.OrderRef

		if err := uc.repo.SaveWithMovement(ctx, rec, consumed, mv); err != nil {
			return err
		}
		result = &dto.MutationResult{Record: rec, Movement: mv}
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.checkThresholdAlerts(ctx, result.Record)
	return result, nil
}

func (uc *stockUseCase) Adjust(ctx context.Context, input *dto.AdjustStockInput) (*dto.MutationResult, error) {
	if err := uc.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	rec, err := uc.mustGetRecord(ctx, input.RecordID)
	if err != nil {
		return nil, err
	}

	var result *dto.MutationResult
	err = uc.withRecordLock(ctx, model.StockLockKey(rec.MerchantID, rec.ProductID, rec.LocationID), func() error {
		rec, err = uc.mustGetRecord(ctx, input.RecordID)
		if err != nil {
			return err
		}
		if rec.OnHand+input.QuantityChange < 0 {
			return fmt.Errorf("adjustment of %d would drive on-hand %d negative: %w",
				input.QuantityChange, rec.OnHand, apperrors.ErrInvalidAdjustment)
		}

		now := time.Now()
		quantityBefore := rec.OnHand
		rec.OnHand += input.QuantityChange
		rec.RecomputeAvailable()
		if rec.Status != model.StockStatusDiscontinued {
			rec.Status = model.DeriveStockStatus(rec.OnHand, rec.ReorderLevel)
		}
		rec.UpdatedAt = now

		mv := newMovement(rec, model.MovementTypeAdjustment, input.QuantityChange, quantityBefore, input.Reason, input.CreatedBy, now)

		if err := uc.repo.SaveWithMovement(ctx, rec, nil, mv); err != nil {
			return err
		}
		result = &dto.MutationResult{Record: rec, Movement: mv}
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.checkThresholdAlerts(ctx, result.Record)
	return result, nil
}

func (uc *stockUseCase) RecordDamage(ctx context.Context, input *dto.RecordDamageInput) (*dto.MutationResult, error) {
	if err := uc.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	rec, err := uc.mustGetRecord(ctx, input.RecordID)
	if err != nil {
		return nil, err
	}

	var result *dto.MutationResult
	err = uc.withRecordLock(ctx, model.StockLockKey(rec.MerchantID, rec.ProductID, rec.LocationID), func() error {
		rec, err = uc.mustGetRecord(ctx, input.RecordID)
		if err != nil {
			return err
		}
		if input.Quantity > rec.OnHand {
			return fmt.Errorf("damage of %d exceeds on-hand %d: %w", input.Quantity, rec.OnHand, apperrors.ErrInvalidState)
		}

		now := time.Now()
		quantityBefore := rec.OnHand
		rec.OnHand -= input.Quantity
		rec.Defective += input.Quantity
		rec.RecomputeAvailable()
		if rec.Status != model.StockStatusDiscontinued {
			rec.Status = model.DeriveStockStatus(rec.OnHand, rec.ReorderLevel)
		}
		rec.UpdatedAt = now

		var damaged []*model.Batch
		mv := newMovement(rec, model.MovementTypeDamage, -input.Quantity, quantityBefore, input.Reason, input.CreatedBy, now)

		if input.BatchID != nil {
			batch, err := uc.repo.GetBatch(ctx, *input.BatchID)
			if err != nil {
				return err
			}
			if batch == nil || batch.StockRecordID != rec.ID {
				return fmt.Errorf("batch %s: %w", *input.BatchID, apperrors.ErrNotFound)
			}
			batch.QuantityDamaged += input.Quantity
			batch.RecomputeRemaining()
			if batch.QuantityRemaining < 0 {
				return fmt.Errorf("batch %s remaining would go negative: %w", batch.ID, apperrors.ErrInvalidState)
			}
			batch.UpdatedAt = now
			damaged = append(damaged, batch)
			mv.BatchID = &batch.ID
		}

		if err := uc.repo.SaveWithMovement(ctx, rec, damaged, mv); err != nil {
			return err
		}
		result = &dto.MutationResult{Record: rec, Movement: mv}
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.checkAlert(ctx, result.Record, model.AlertTypeDamaged, result.Record.Defective, 0,
		fmt.Sprintf("%d defective units recorded for product %s", result.Record.Defective, result.Record.ProductID))
	uc.checkThresholdAlerts(ctx, result.Record)
	return result, nil
}

func (uc *stockUseCase) Discontinue(ctx context.Context, recordID string) (*model.StockRecord, error) {
	rec, err := uc.mustGetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}

	err = uc.withRecordLock(ctx, model.StockLockKey(rec.MerchantID, rec.ProductID, rec.LocationID), func() error {
		rec, err = uc.mustGetRecord(ctx, recordID)
		if err != nil {
			return err
		}
		rec.Status = model.StockStatusDiscontinued
		rec.UpdatedAt = time.Now()
		return uc.repo.Save(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (uc *stockUseCase) GetRecord(ctx context.Context, merchantID, productID string, locationID *string) (*model.StockRecord, error) {
	rec, err := uc.repo.GetByProductLocation(ctx, merchantID, productID, locationID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("stock record for product %s: %w", productID, apperrors.ErrNotFound)
	}
	return rec, nil
}

func (uc *stockUseCase) ListLowStock(ctx context.Context, merchantID string, page, pageSize int) ([]model.StockRecord, int, error) {
	return uc.repo.FindAll(ctx, &dto.StockFilters{
		MerchantID: merchantID,
		LowStock:   true,
		Page:       page,
		PageSize:   pageSize,
	})
}

func (uc *stockUseCase) ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error) {
	return uc.repo.ListMovements(ctx, filters)
}

func (uc *stockUseCase) ExpiringBatches(ctx context.Context, merchantID string, horizon time.Duration) ([]model.Batch, error) {
	return uc.repo.ExpiringBatches(ctx, merchantID, time.Now().Add(horizon))
}

// mustGetRecord loads by id, converting absence into ErrNotFound.
func (uc *stockUseCase) mustGetRecord(ctx context.Context, id string) (*model.StockRecord, error) {
	rec, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("stock record %s: %w", id, apperrors.ErrNotFound)
	}
	return rec, nil
}

// consumeBatches walks active batches in pick order and attributes a sale
// quantity to them. Quantity that predates batch tracking stays unattributed.
func (uc *stockUseCase) consumeBatches(ctx context.Context, recordID string, quantity int64, now time.Time) ([]*model.Batch, error) {
	batches, err := uc.repo.ActiveBatchesFIFO(ctx, recordID)
	if err != nil {
		return nil, err
	}

	var consumed []*model.Batch
	remaining := quantity
	for i := range batches {
		if remaining == 0 {
			break
		}
		b := &batches[i]
		take := b.QuantityRemaining
		if take > remaining {
			take = remaining
		}
		b.QuantitySold += take
		b.RecomputeRemaining()
		b.UpdatedAt = now
		consumed = append(consumed, b)
		remaining -= take
	}
	return consumed, nil
}

func (uc *stockUseCase) checkThresholdAlerts(ctx context.Context, rec *model.StockRecord) {
	switch {
	case rec.OnHand == 0:
		uc.checkAlert(ctx, rec, model.AlertTypeOutOfStock, rec.OnHand, rec.ReorderLevel,
			fmt.Sprintf("product %s is out of stock", rec.ProductID))
	case rec.OnHand < rec.ReorderLevel:
		uc.checkAlert(ctx, rec, model.AlertTypeLowStock, rec.OnHand, rec.ReorderLevel,
			fmt.Sprintf("product %s is below reorder level (%d < %d)", rec.ProductID, rec.OnHand, rec.ReorderLevel))
	}
}

// checkAlert is fire-and-forget: a failed alert never fails the mutation that
// triggered it.
func (uc *stockUseCase) checkAlert(ctx context.Context, rec *model.StockRecord, alertType model.AlertType, currentQty, threshold int64, message string) {
	if uc.alerts == nil {
		return
	}
	_, err := uc.alerts.CheckAndCreateAlert(ctx, &alertdto.CheckAlertInput{
		MerchantID:      rec.MerchantID,
		StockRecordID:   rec.ID,
		AlertType:       alertType,
		CurrentQuantity: currentQty,
		Threshold:       threshold,
		Message:         message,
	})
	if err != nil {
		uc.logger.Error("failed to create stock alert",
			zap.String("stock_record_id", rec.ID),
			zap.String("alert_type", string(alertType)),
			zap.Error(err),
		)
	}
}

func newMovement(rec *model.StockRecord, mvType model.MovementType, change, before int64, reason, createdBy string, now time.Time) *model.StockMovement {
	var by *string
	if createdBy != "" && createdBy != "unknown" {
		by = &createdBy
	}
	return &model.StockMovement{
		ID:             uuid.New().String(),
		MerchantID:     rec.MerchantID,
		StockRecordID:  rec.ID,
		MovementType:   mvType,
		QuantityChange: change,
		QuantityBefore: before,
		QuantityAfter:  before + change,
		Reason:         reason,
		CreatedBy:      by,
		CreatedAt:      now,
	}
}
