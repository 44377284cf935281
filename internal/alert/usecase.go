package alert

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/alert/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
)

type UseCase interface {
	// CheckAndCreateAlert returns (nil, nil) when a pending alert of the same
	// (record, type) was triggered within the suppression window.
	CheckAndCreateAlert(ctx context.Context, input *dto.CheckAlertInput) (*model.Alert, error)
	CheckExpiringBatches(ctx context.Context, merchantID string, horizon time.Duration) (int, error)

	Acknowledge(ctx context.Context, id string) (*model.Alert, error)
	Resolve(ctx context.Context, id string) (*model.Alert, error)
	Ignore(ctx context.Context, id string) (*model.Alert, error)
	ListAlerts(ctx context.Context, filters *dto.AlertFilters) ([]model.Alert, int, error)
}

// BatchSource feeds the expiring-batch pass; satisfied by the stock repository.
type BatchSource interface {
	ExpiringBatches(ctx context.Context, merchantID string, within time.Time) ([]model.Batch, error)
}
