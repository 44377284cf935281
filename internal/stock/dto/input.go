package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type InitializeStockInput struct {
	MerchantID      string  `validate:"required"`
	ProductID       string  `validate:"required"`
	LocationID      *string
	InitialQuantity int64 `validate:"gte=0"`
	ReorderLevel    int64 `validate:"gte=0"`
	ReorderQuantity int64 `validate:"gte=0"`
	UnitCost        decimal.Decimal
	CreatedBy       string
}

type StockInInput struct {
	RecordID    string `validate:"required"`
	Quantity    int64  `validate:"gt=0"`
	BatchNumber string
	UnitCost    decimal.Decimal
	ExpiryDate  *time.Time
	Reason      string
	CreatedBy   string
}

type StockOutInput struct {
	RecordID  string `validate:"required"`
	Quantity  int64  `validate:"gt=0"`
	Reason    string `validate:"required"`
	OrderRef  *string
	CreatedBy string
}

type AdjustStockInput struct {
	RecordID       string `validate:"required"`
	QuantityChange int64  `validate:"required"` // signed, non-zero
	Reason         string `validate:"required"`
	CreatedBy      string
}

type RecordDamageInput struct {
	RecordID  string `validate:"required"`
	BatchID   *string
	Quantity  int64  `validate:"gt=0"`
	Reason    string `validate:"required"`
	CreatedBy string
}
