package dto

import "github.com/fekuna/omnipos-inventory-service/internal/model"

type CheckAlertInput struct {
	MerchantID      string          `validate:"required"`
	StockRecordID   string          `validate:"required"`
	BatchID         *string
	AlertType       model.AlertType `validate:"required"`
	CurrentQuantity int64
	Threshold       int64
	Message         string
}

type AlertFilters struct {
	MerchantID    string
	StockRecordID string
	AlertType     model.AlertType
	Status        model.AlertStatus
	Page          int
	PageSize      int
}
