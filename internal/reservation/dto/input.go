package dto

import "github.com/shopspring/decimal"

type ReserveInput struct {
	RecordID  string `validate:"required"`
	OrderRef  string `validate:"required"`
	Quantity  int64  `validate:"gt=0"`
	Requester string
	UnitPrice *decimal.Decimal
}
