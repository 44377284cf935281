package reservation

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/model"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*model.Reservation, error)
	GetStockRecord(ctx context.Context, id string) (*model.StockRecord, error)

	// Transactional mutations: the reservation row and the record's reserved
	// counter commit together or not at all.
	CreateWithRecord(ctx context.Context, resv *model.Reservation, rec *model.StockRecord) error
	UpdateWithRecord(ctx context.Context, resv *model.Reservation, rec *model.StockRecord) error

	ListByOrder(ctx context.Context, merchantID, orderRef string) ([]model.Reservation, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error)
	SumActiveByRecord(ctx context.Context, stockRecordID string) (int64, error)
}
