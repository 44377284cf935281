package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/apperrors"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	stockrepo "github.com/fekuna/omnipos-inventory-service/internal/stock/repository"
)

// MemoryRepository backs reservation unit tests. Stock records live in the
// shared stock memory repository so both modules see the same quantities.
type MemoryRepository struct {
	mu           sync.RWMutex
	reservations map[string]*model.Reservation
	stocks       *stockrepo.MemoryRepository
}

func NewMemoryRepository(stocks *stockrepo.MemoryRepository) *MemoryRepository {
	return &MemoryRepository{
		reservations: make(map[string]*model.Reservation),
		stocks:       stocks,
	}
}

func cloneReservation(resv *model.Reservation) *model.Reservation {
	c := *resv
	return &c
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	resv, ok := r.reservations[id]
	if !ok {
		return nil, nil
	}
	return cloneReservation(resv), nil
}

func (r *MemoryRepository) GetStockRecord(ctx context.Context, id string) (*model.StockRecord, error) {
	return r.stocks.GetByID(ctx, id)
}

func (r *MemoryRepository) CreateWithRecord(ctx context.Context, resv *model.Reservation, rec *model.StockRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.stocks.SaveRecord(rec); err != nil {
		return err
	}
	r.reservations[resv.ID] = cloneReservation(resv)
	return nil
}

func (r *MemoryRepository) UpdateWithRecord(ctx context.Context, resv *model.Reservation, rec *model.StockRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reservations[resv.ID]; !ok {
		return apperrors.ErrNotFound
	}
	if err := r.stocks.SaveRecord(rec); err != nil {
		return err
	}
	r.reservations[resv.ID] = cloneReservation(resv)
	return nil
}

func (r *MemoryRepository) ListByOrder(ctx context.Context, merchantID, orderRef string) ([]model.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var items []model.Reservation
	for _, resv := range r.reservations {
		if resv.MerchantID == merchantID && resv.OrderRef == orderRef {
			items = append(items, *cloneReservation(resv))
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}

func (r *MemoryRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var items []model.Reservation
	for _, resv := range r.reservations {
		if resv.Status != model.ReservationStatusPending || resv.ExpiresAt == nil {
			continue
		}
		if resv.ExpiresAt.Before(now) {
			items = append(items, *cloneReservation(resv))
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ExpiresAt.Before(*items[j].ExpiresAt) })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (r *MemoryRepository) SumActiveByRecord(ctx context.Context, stockRecordID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum int64
	for _, resv := range r.reservations {
		if resv.StockRecordID == stockRecordID && resv.Status.Active() {
			sum += resv.QuantityReserved
		}
	}
	return sum, nil
}
