package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusAllocated ReservationStatus = "allocated"
	ReservationStatusFulfilled ReservationStatus = "fulfilled"
	ReservationStatusReleased  ReservationStatus = "released"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

// Active reports whether the reservation still holds quantity against its
// stock record. Sum of active reservation quantities per record equals the
// record's reserved field.
func (s ReservationStatus) Active() bool {
	return s == ReservationStatusPending || s == ReservationStatusAllocated
}

// Reservation is one time-bounded hold of available quantity tied to an order.
type Reservation struct {
	ID               string            `db:"id" json:"id"`
	MerchantID       string            `db:"merchant_id" json:"merchant_id"`
	StockRecordID    string            `db:"stock_record_id" json:"stock_record_id"`
	OrderRef         string            `db:"order_ref" json:"order_ref"`
	QuantityReserved int64             `db:"quantity_reserved" json:"quantity_reserved"`
	UnitPrice        *decimal.Decimal  `db:"unit_price" json:"unit_price"`
	Status           ReservationStatus `db:"status" json:"status"`
	Requester        string            `db:"requester" json:"requester"`
	ExpiresAt        *time.Time        `db:"expires_at" json:"expires_at"`
	ReleasedAt       *time.Time        `db:"released_at" json:"released_at"`
	ReleaseReason    *string           `db:"release_reason" json:"release_reason"`
	CreatedAt        time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time         `db:"updated_at" json:"updated_at"`
}
