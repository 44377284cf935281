package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/apperrors"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/stock/dto"
)

// MemoryRepository is an in-memory stock.Repository used by unit tests and
// local tooling. Mutating methods mirror the postgres transaction boundaries:
// record, batch and movement writes land together under one mutex hold.
type MemoryRepository struct {
	mu        sync.RWMutex
	records   map[string]*model.StockRecord
	batches   map[string]*model.Batch
	movements []model.StockMovement
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records: make(map[string]*model.StockRecord),
		batches: make(map[string]*model.Batch),
	}
}

func cloneRecord(rec *model.StockRecord) *model.StockRecord {
	c := *rec
	return &c
}

func cloneBatch(b *model.Batch) *model.Batch {
	c := *b
	return &c
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*model.StockRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	return cloneRecord(rec), nil
}

func (r *MemoryRepository) GetByProductLocation(ctx context.Context, merchantID, productID string, locationID *string) (*model.StockRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.records {
		if rec.MerchantID != merchantID || rec.ProductID != productID {
			continue
		}
		if !sameLocation(rec.LocationID, locationID) {
			continue
		}
		return cloneRecord(rec), nil
	}
	return nil, nil
}

func sameLocation(a, b *string) bool {
	av, bv := "", ""
	if a != nil {
		av = *a
	}
	if b != nil {
		bv = *b
	}
	return av == bv
}

func (r *MemoryRepository) FindAll(ctx context.Context, f *dto.StockFilters) ([]model.StockRecord, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var items []model.StockRecord
	for _, rec := range r.records {
		if f.MerchantID != "" && rec.MerchantID != f.MerchantID {
			continue
		}
		if f.ProductID != "" && rec.ProductID != f.ProductID {
			continue
		}
		if f.LocationID != nil && !sameLocation(rec.LocationID, f.LocationID) {
			continue
		}
		if f.Status != "" && rec.Status != f.Status {
			continue
		}
		if f.LowStock && !(rec.ReorderLevel > 0 && rec.Available <= rec.ReorderLevel) {
			continue
		}
		items = append(items, *cloneRecord(rec))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, len(items), nil
}

func (r *MemoryRepository) CreateWithMovement(ctx context.Context, rec *model.StockRecord, mv *model.StockMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.records {
		if existing.MerchantID == rec.MerchantID && existing.ProductID == rec.ProductID &&
			sameLocation(existing.LocationID, rec.LocationID) {
			return apperrors.ErrAlreadyExists
		}
	}
	r.records[rec.ID] = cloneRecord(rec)
	r.movements = append(r.movements, *mv)
	return nil
}

func (r *MemoryRepository) SaveWithMovement(ctx context.Context, rec *model.StockRecord, batches []*model.Batch, mv *model.StockMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[rec.ID]; !ok {
		return apperrors.ErrNotFound
	}
	r.records[rec.ID] = cloneRecord(rec)
	for _, b := range batches {
		r.batches[b.ID] = cloneBatch(b)
	}
	r.movements = append(r.movements, *mv)
	return nil
}

func (r *MemoryRepository) CreateBatchWithMovement(ctx context.Context, rec *model.StockRecord, batch *model.Batch, mv *model.StockMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[rec.ID]; !ok {
		return apperrors.ErrNotFound
	}
	r.records[rec.ID] = cloneRecord(rec)
	r.batches[batch.ID] = cloneBatch(batch)
	r.movements = append(r.movements, *mv)
	return nil
}

func (r *MemoryRepository) GetBatch(ctx context.Context, id string) (*model.Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.batches[id]
	if !ok {
		return nil, nil
	}
	return cloneBatch(b), nil
}

func (r *MemoryRepository) ListBatches(ctx context.Context, stockRecordID string) ([]model.Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var items []model.Batch
	for _, b := range r.batches {
		if b.StockRecordID == stockRecordID {
			items = append(items, *cloneBatch(b))
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ReceivedAt.Before(items[j].ReceivedAt) })
	return items, nil
}

func (r *MemoryRepository) ActiveBatchesFIFO(ctx context.Context, stockRecordID string) ([]model.Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var items []model.Batch
	for _, b := range r.batches {
		if b.StockRecordID == stockRecordID && b.HasStock() {
			items = append(items, *cloneBatch(b))
		}
	}
	sort.Slice(items, func(i, j int) bool {
		bi, bj := items[i], items[j]
		switch {
		case bi.ExpiryDate == nil && bj.ExpiryDate == nil:
			return bi.ReceivedAt.Before(bj.ReceivedAt)
		case bi.ExpiryDate == nil:
			return false
		case bj.ExpiryDate == nil:
			return true
		case !bi.ExpiryDate.Equal(*bj.ExpiryDate):
			return bi.ExpiryDate.Before(*bj.ExpiryDate)
		default:
			return bi.ReceivedAt.Before(bj.ReceivedAt)
		}
	})
	return items, nil
}

func (r *MemoryRepository) ExpiringBatches(ctx context.Context, merchantID string, within time.Time) ([]model.Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var items []model.Batch
	for _, b := range r.batches {
		if merchantID != "" && b.MerchantID != merchantID {
			continue
		}
		if !b.HasStock() || b.ExpiryDate == nil {
			continue
		}
		if b.ExpiryDate.After(within) {
			continue
		}
		items = append(items, *cloneBatch(b))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ExpiryDate.Before(*items[j].ExpiryDate) })
	return items, nil
}

func (r *MemoryRepository) ListMovements(ctx context.Context, f *dto.MovementFilters) ([]model.StockMovement, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var items []model.StockMovement
	for _, mv := range r.movements {
		if f.MerchantID != "" && mv.MerchantID != f.MerchantID {
			continue
		}
		if f.StockRecordID != "" && mv.StockRecordID != f.StockRecordID {
			continue
		}
		if f.MovementType != "" && mv.MovementType != f.MovementType {
			continue
		}
		if f.OrderRef != "" && (mv.OrderRef == nil || *mv.OrderRef != f.OrderRef) {
			continue
		}
		if f.StartDate != nil && mv.CreatedAt.Before(*f.StartDate) {
			continue
		}
		if f.EndDate != nil && mv.CreatedAt.After(*f.EndDate) {
			continue
		}
		items = append(items, mv)
	}
	return items, len(items), nil
}

func (r *MemoryRepository) Save(ctx context.Context, rec *model.StockRecord) error {
	return r.SaveRecord(rec)
}

// SaveRecord replaces a record without touching the movement log. Used by the
// reservation repository as well; reservation changes are not stock movements.
func (r *MemoryRepository) SaveRecord(rec *model.StockRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[rec.ID]; !ok {
		return apperrors.ErrNotFound
	}
	r.records[rec.ID] = cloneRecord(rec)
	return nil
}
