package model

import "time"

type StockStatus string

const (
	StockStatusInStock      StockStatus = "in_stock"
	StockStatusLowStock     StockStatus = "low_stock"
	StockStatusOutOfStock   StockStatus = "out_of_stock"
	StockStatusDiscontinued StockStatus = "discontinued"
)

// StockRecord is the single source of truth for availability of one product
// at one location.
type StockRecord struct {
	ID              string      `db:"id" json:"id"`
	MerchantID      string      `db:"merchant_id" json:"merchant_id"`
	ProductID       string      `db:"product_id" json:"product_id"`
	LocationID      *string     `db:"location_id" json:"location_id"`
	OnHand          int64       `db:"on_hand" json:"on_hand"`
	Reserved        int64       `db:"reserved" json:"reserved"`
	Available       int64       `db:"available" json:"available"` // Generated column
	InTransit       int64       `db:"in_transit" json:"in_transit"`
	Defective       int64       `db:"defective" json:"defective"`
	ReorderLevel    int64       `db:"reorder_level" json:"reorder_level"`
	ReorderQuantity int64       `db:"reorder_quantity" json:"reorder_quantity"`
	Status          StockStatus `db:"status" json:"status"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updated_at"`
}

// RecomputeAvailable keeps the in-memory copy consistent with the generated
// column: available = on_hand - reserved.
func (r *StockRecord) RecomputeAvailable() {
	r.Available = r.OnHand - r.Reserved
}

// DeriveStockStatus is the single derivation of status from quantities. Every
// mutation path goes through it; discontinued records are handled by the
// caller and never re-derived.
func DeriveStockStatus(onHand, reorderLevel int64) StockStatus {
	switch {
	case onHand <= 0:
		return StockStatusOutOfStock
	case onHand < reorderLevel:
		return StockStatusLowStock
	default:
		return StockStatusInStock
	}
}

// statusRank orders the derivable statuses so receipts can upgrade without
// ever downgrading (see StockIn).
var statusRank = map[StockStatus]int{
	StockStatusOutOfStock: 0,
	StockStatusLowStock:   1,
	StockStatusInStock:    2,
}

// UpgradeStockStatus returns the better of current and derived. Receipts keep
// an already-low status unless the position actually improved; downgrades only
// happen on the full recompute paths.
func UpgradeStockStatus(current, derived StockStatus) StockStatus {
	if current == StockStatusDiscontinued {
		return current
	}
	if statusRank[derived] > statusRank[current] {
		return derived
	}
	return current
}

// StockLockKey builds the mutation lock key for a record identity. All
// writers of the same (merchant, product, location) must use the same key.
func StockLockKey(merchantID, productID string, locationID *string) string {
	key := "lock:stock:" + merchantID + ":" + productID
	if locationID != nil && *locationID != "" {
		key += ":" + *locationID
	}
	return key
}
