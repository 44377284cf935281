package dto

import (
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/model"
)

type StockFilters struct {
	MerchantID string
	ProductID  string
	LocationID *string
	LowStock   bool // If true, filter by available <= reorder_level
	Status     model.StockStatus
	Page       int
	PageSize   int
}

type MovementFilters struct {
	MerchantID    string
	StockRecordID string
	MovementType  model.MovementType
	OrderRef      string
	StartDate     *time.Time
	EndDate       *time.Time
	Page          int
	PageSize      int
}

type StockInResult struct {
	Record   *model.StockRecord
	Batch    *model.Batch
	Movement *model.StockMovement
}

type MutationResult struct {
	Record   *model.StockRecord
	Movement *model.StockMovement
}
