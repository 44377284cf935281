package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/alert"
	"github.com/fekuna/omnipos-inventory-service/internal/alert/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type alertUseCase struct {
	repo     alert.Repository
	batches  alert.BatchSource
	logger   logger.ZapLogger
	validate *validator.Validate
	window   time.Duration
	now      func() time.Time
}

func NewAlertUseCase(repo alert.Repository, batches alert.BatchSource, log logger.ZapLogger, window time.Duration) alert.UseCase {
	if window <= 0 {
		window = time.Hour
	}
	return &alertUseCase{
		repo:     repo,
		batches:  batches,
		logger:   log,
		validate: validator.New(),
		window:   window,
		now:      time.Now,
	}
}

func (uc *alertUseCase) CheckAndCreateAlert(ctx context.Context, input *dto.CheckAlertInput) (*model.Alert, error) {
	if err := uc.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	now := uc.now()
	last, err := uc.repo.LastPendingTrigger(ctx, input.StockRecordID, input.AlertType)
	if err != nil {
		return nil, err
	}
	if model.SuppressAlert(last, now, uc.window) {
		uc.logger.Debug("alert suppressed within dedup window",
			zap.String("stock_record_id", input.StockRecordID),
			zap.String("alert_type", string(input.AlertType)),
		)
		return nil, nil
	}

	a := &model.Alert{
		ID:              uuid.New().String(),
		MerchantID:      input.MerchantID,
		StockRecordID:   input.StockRecordID,
		BatchID:         input.BatchID,
		AlertType:       input.AlertType,
		Status:          model.AlertStatusPending,
		Message:         input.Message,
		CurrentQuantity: input.CurrentQuantity,
		Threshold:       input.Threshold,
		TriggeredAt:     now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := uc.repo.Create(ctx, a); err != nil {
		return nil, err
	}

	uc.logger.Info("alert created",
		zap.String("alert_id", a.ID),
		zap.String("stock_record_id", a.StockRecordID),
		zap.String("alert_type", string(a.AlertType)),
	)
	return a, nil
}

// CheckExpiringBatches raises expiring or expired alerts for batches whose
// expiry date falls within the horizon. An empty merchantID spans all
// merchants, which is how the periodic server pass runs it. Suppression
// applies per (record, type) like any other alert, so repeated passes do not
// pile up duplicates.
func (uc *alertUseCase) CheckExpiringBatches(ctx context.Context, merchantID string, horizon time.Duration) (int, error) {
	now := uc.now()
	batches, err := uc.batches.ExpiringBatches(ctx, merchantID, now.Add(horizon))
	if err != nil {
		return 0, err
	}

	created := 0
	for i := range batches {
		b := &batches[i]
		if !b.HasStock() {
			continue
		}

		alertType := model.AlertTypeExpiring
		msg := fmt.Sprintf("batch %s expires on %s", b.BatchNumber, b.ExpiryDate.Format("2006-01-02"))
		if b.IsExpired(now) {
			alertType = model.AlertTypeExpired
			msg = fmt.Sprintf("batch %s expired on %s", b.BatchNumber, b.ExpiryDate.Format("2006-01-02"))
		}

		batchID := b.ID
		a, err := uc.CheckAndCreateAlert(ctx, &dto.CheckAlertInput{
			MerchantID:      b.MerchantID,
			StockRecordID:   b.StockRecordID,
			BatchID:         &batchID,
			AlertType:       alertType,
			CurrentQuantity: b.QuantityRemaining,
			Message:         msg,
		})
		if err != nil {
			uc.logger.Error("failed to create expiry alert",
				zap.String("batch_id", b.ID),
				zap.Error(err),
			)
			continue
		}
		if a != nil {
			created++
		}
	}
	return created, nil
}

func (uc *alertUseCase) Acknowledge(ctx context.Context, id string) (*model.Alert, error) {
	return uc.repo.UpdateStatus(ctx, id, model.AlertStatusAcknowledged, uc.now())
}

func (uc *alertUseCase) Resolve(ctx context.Context, id string) (*model.Alert, error) {
	return uc.repo.UpdateStatus(ctx, id, model.AlertStatusResolved, uc.now())
}

func (uc *alertUseCase) Ignore(ctx context.Context, id string) (*model.Alert, error) {
	return uc.repo.UpdateStatus(ctx, id, model.AlertStatusIgnored, uc.now())
}

func (uc *alertUseCase) ListAlerts(ctx context.Context, filters *dto.AlertFilters) ([]model.Alert, int, error) {
	return uc.repo.FindAll(ctx, filters)
}
