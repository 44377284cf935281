package stock

import (
	"context"
	"time"

	alertdto "github.com/fekuna/omnipos-inventory-service/internal/alert/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/stock/dto"
)

type UseCase interface {
	Initialize(ctx context.Context, input *dto.InitializeStockInput) (*model.StockRecord, error)
	StockIn(ctx context.Context, input *dto.StockInInput) (*dto.StockInResult, error)
	StockOut(ctx context.Context, input *dto.StockOutInput) (*dto.MutationResult, error)
	Adjust(ctx context.Context, input *dto.AdjustStockInput) (*dto.MutationResult, error)
	RecordDamage(ctx context.Context, input *dto.RecordDamageInput) (*dto.MutationResult, error)
	Discontinue(ctx context.Context, recordID string) (*model.StockRecord, error)

	GetRecord(ctx context.Context, merchantID, productID string, locationID *string) (*model.StockRecord, error)
	ListLowStock(ctx context.Context, merchantID string, page, pageSize int) ([]model.StockRecord, int, error)
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error)
	ExpiringBatches(ctx context.Context, merchantID string, horizon time.Duration) ([]model.Batch, error)
}

// Alerter is the slice of the alert monitor stock mutations need. Alert
// failures are logged and swallowed, never surfaced to the mutation caller.
type Alerter interface {
	CheckAndCreateAlert(ctx context.Context, input *alertdto.CheckAlertInput) (*model.Alert, error)
}
