package dto

import "github.com/shopspring/decimal"

type OrderLine struct {
	ProductID  string `validate:"required"`
	LocationID *string
	Quantity   int64 `validate:"gt=0"`
	UnitPrice  *decimal.Decimal
}

type PlaceOrderInput struct {
	MerchantID string      `validate:"required"`
	OrderRef   string      `validate:"required"`
	Requester  string
	Lines      []OrderLine `validate:"required,min=1,dive"`
}
