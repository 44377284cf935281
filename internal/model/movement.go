package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type MovementType string

const (
	MovementTypeInitial    MovementType = "initial"
	MovementTypeStockIn    MovementType = "stock_in"
	MovementTypeStockOut   MovementType = "stock_out"
	MovementTypeAdjustment MovementType = "adjustment"
	MovementTypeDamage     MovementType = "damage"
)

// StockMovement is one entry of the append-only audit trail. Entries are never
// mutated or deleted; replaying a record's entries from zero reproduces its
// on-hand quantity.
type StockMovement struct {
	ID             string           `db:"id" json:"id"`
	MerchantID     string           `db:"merchant_id" json:"merchant_id"`
	StockRecordID  string           `db:"stock_record_id" json:"stock_record_id"`
	BatchID        *string          `db:"batch_id" json:"batch_id"`
	OrderRef       *string          `db:"order_ref" json:"order_ref"`
	MovementType   MovementType     `db:"movement_type" json:"movement_type"`
	QuantityChange int64            `db:"quantity_change" json:"quantity_change"`
	QuantityBefore int64            `db:"quantity_before" json:"quantity_before"`
	QuantityAfter  int64            `db:"quantity_after" json:"quantity_after"`
	Reason         string           `db:"reason" json:"reason"`
	UnitCost       *decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	CreatedBy      *string          `db:"created_by" json:"created_by"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
}
