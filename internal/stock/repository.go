package stock

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/stock/dto"
)

type Repository interface {
	// Stock records
	GetByID(ctx context.Context, id string) (*model.StockRecord, error)
	GetByProductLocation(ctx context.Context, merchantID, productID string, locationID *string) (*model.StockRecord, error)
	FindAll(ctx context.Context, filters *dto.StockFilters) ([]model.StockRecord, int, error)

	// Transactional mutations: the record write and its movement entry commit
	// together or not at all.
	CreateWithMovement(ctx context.Context, rec *model.StockRecord, mv *model.StockMovement) error
	// Save writes a record without a movement entry. Only for transitions that
	// do not change quantities (administrative discontinuation).
	Save(ctx context.Context, rec *model.StockRecord) error
	SaveWithMovement(ctx context.Context, rec *model.StockRecord, batches []*model.Batch, mv *model.StockMovement) error
	CreateBatchWithMovement(ctx context.Context, rec *model.StockRecord, batch *model.Batch, mv *model.StockMovement) error

	// Batches
	GetBatch(ctx context.Context, id string) (*model.Batch, error)
	ListBatches(ctx context.Context, stockRecordID string) ([]model.Batch, error)
	ActiveBatchesFIFO(ctx context.Context, stockRecordID string) ([]model.Batch, error)
	// ExpiringBatches lists consumable batches whose expiry date falls at or
	// before the deadline. An empty merchantID spans all merchants.
	ExpiringBatches(ctx context.Context, merchantID string, within time.Time) ([]model.Batch, error)

	// Movements / Audit
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error)
}
