package model

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

type BatchStatus string

const (
	BatchStatusActive   BatchStatus = "active"
	BatchStatusExpired  BatchStatus = "expired"
	BatchStatusRecall   BatchStatus = "recall"
	BatchStatusArchived BatchStatus = "archived"
)

// Batch is one received lot. Owned by exactly one stock record; append-created
// on receipt and only decremented afterwards.
type Batch struct {
	ID                string          `db:"id" json:"id"`
	MerchantID        string          `db:"merchant_id" json:"merchant_id"`
	StockRecordID     string          `db:"stock_record_id" json:"stock_record_id"`
	BatchNumber       string          `db:"batch_number" json:"batch_number"`
	QuantityReceived  int64           `db:"quantity_received" json:"quantity_received"`
	QuantitySold      int64           `db:"quantity_sold" json:"quantity_sold"`
	QuantityDamaged   int64           `db:"quantity_damaged" json:"quantity_damaged"`
	QuantityRemaining int64           `db:"quantity_remaining" json:"quantity_remaining"`
	CostPerUnit       decimal.Decimal `db:"cost_per_unit" json:"cost_per_unit"`
	TotalCost         decimal.Decimal `db:"total_cost" json:"total_cost"`
	ExpiryDate        *time.Time      `db:"expiry_date" json:"expiry_date"`
	ReceivedAt        time.Time       `db:"received_at" json:"received_at"`
	Status            BatchStatus     `db:"status" json:"status"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// RecomputeRemaining enforces remaining = received - sold - damaged.
func (b *Batch) RecomputeRemaining() {
	b.QuantityRemaining = b.QuantityReceived - b.QuantitySold - b.QuantityDamaged
}

func (b *Batch) IsExpired(now time.Time) bool {
	if b.ExpiryDate == nil {
		return false
	}
	return b.ExpiryDate.Before(now)
}

// DaysToExpiry returns the ceiling of the time left in days, nil when the
// batch has no expiry date. Already-expired batches return a non-positive
// value.
func (b *Batch) DaysToExpiry(now time.Time) *int {
	if b.ExpiryDate == nil {
		return nil
	}
	days := int(math.Ceil(b.ExpiryDate.Sub(now).Hours() / 24))
	return &days
}

func (b *Batch) HasStock() bool {
	return b.Status == BatchStatusActive && b.QuantityRemaining > 0
}
