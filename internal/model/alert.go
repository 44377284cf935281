package model

import "time"

type AlertType string

const (
	AlertTypeLowStock   AlertType = "low_stock"
	AlertTypeOutOfStock AlertType = "out_of_stock"
	AlertTypeOverstock  AlertType = "overstock"
	AlertTypeExpiring   AlertType = "expiring"
	AlertTypeExpired    AlertType = "expired"
	AlertTypeDamaged    AlertType = "damaged"
)

type AlertStatus string

const (
	AlertStatusPending      AlertStatus = "pending"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
	AlertStatusIgnored      AlertStatus = "ignored"
)

type Alert struct {
	ID              string      `db:"id" json:"id"`
	MerchantID      string      `db:"merchant_id" json:"merchant_id"`
	StockRecordID   string      `db:"stock_record_id" json:"stock_record_id"`
	BatchID         *string     `db:"batch_id" json:"batch_id"`
	AlertType       AlertType   `db:"alert_type" json:"alert_type"`
	Status          AlertStatus `db:"status" json:"status"`
	Message         string      `db:"message" json:"message"`
	CurrentQuantity int64       `db:"current_quantity" json:"current_quantity"`
	Threshold       int64       `db:"threshold" json:"threshold"`
	TriggeredAt     time.Time   `db:"triggered_at" json:"triggered_at"`
	AcknowledgedAt  *time.Time  `db:"acknowledged_at" json:"acknowledged_at"`
	ResolvedAt      *time.Time  `db:"resolved_at" json:"resolved_at"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updated_at"`
}

// SuppressAlert decides deduplication as a pure function of the last pending
// trigger time so the window is testable without a live query or clock.
func SuppressAlert(lastPendingTrigger *time.Time, now time.Time, window time.Duration) bool {
	if lastPendingTrigger == nil {
		return false
	}
	return now.Sub(*lastPendingTrigger) < window
}
