package alert

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/alert/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
)

type Repository interface {
	Create(ctx context.Context, a *model.Alert) error
	GetByID(ctx context.Context, id string) (*model.Alert, error)
	// LastPendingTrigger returns the triggered_at of the most recent pending
	// alert of the given type for the record, nil when there is none.
	LastPendingTrigger(ctx context.Context, stockRecordID string, alertType model.AlertType) (*time.Time, error)
	UpdateStatus(ctx context.Context, id string, status model.AlertStatus, at time.Time) (*model.Alert, error)
	FindAll(ctx context.Context, filters *dto.AlertFilters) ([]model.Alert, int, error)
}
