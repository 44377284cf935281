package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/alert/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/apperrors"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
)

type MemoryRepository struct {
	mu     sync.RWMutex
	alerts map[string]*model.Alert
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{alerts: make(map[string]*model.Alert)}
}

func cloneAlert(a *model.Alert) *model.Alert {
	c := *a
	return &c
}

func (r *MemoryRepository) Create(ctx context.Context, a *model.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts[a.ID] = cloneAlert(a)
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*model.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.alerts[id]
	if !ok {
		return nil, nil
	}
	return cloneAlert(a), nil
}

func (r *MemoryRepository) LastPendingTrigger(ctx context.Context, stockRecordID string, alertType model.AlertType) (*time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var last *time.Time
	for _, a := range r.alerts {
		if a.StockRecordID != stockRecordID || a.AlertType != alertType || a.Status != model.AlertStatusPending {
			continue
		}
		if last == nil || a.TriggeredAt.After(*last) {
			t := a.TriggeredAt
			last = &t
		}
	}
	return last, nil
}

func (r *MemoryRepository) UpdateStatus(ctx context.Context, id string, status model.AlertStatus, at time.Time) (*model.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.alerts[id]
	if !ok {
		return nil, fmt.Errorf("alert %s: %w", id, apperrors.ErrNotFound)
	}
	a.Status = status
	a.UpdatedAt = at
	switch status {
	case model.AlertStatusAcknowledged:
		a.AcknowledgedAt = &at
	case model.AlertStatusResolved:
		a.ResolvedAt = &at
	}
	return cloneAlert(a), nil
}

func (r *MemoryRepository) FindAll(ctx context.Context, f *dto.AlertFilters) ([]model.Alert, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var items []model.Alert
	for _, a := range r.alerts {
		if f.MerchantID != "" && a.MerchantID != f.MerchantID {
			continue
		}
		if f.StockRecordID != "" && a.StockRecordID != f.StockRecordID {
			continue
		}
		if f.AlertType != "" && a.AlertType != f.AlertType {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		items = append(items, *cloneAlert(a))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].TriggeredAt.After(items[j].TriggeredAt) })
	return items, len(items), nil
}
