package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/apperrors"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/order"
	"github.com/fekuna/omnipos-inventory-service/internal/order/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/reservation"
	resvrepo "github.com/fekuna/omnipos-inventory-service/internal/reservation/repository"
	resvuc "github.com/fekuna/omnipos-inventory-service/internal/reservation/usecase"
	"github.com/fekuna/omnipos-inventory-service/internal/stock"
	stockdto "github.com/fekuna/omnipos-inventory-service/internal/stock/dto"
	stockrepo "github.com/fekuna/omnipos-inventory-service/internal/stock/repository"
	stockuc "github.com/fekuna/omnipos-inventory-service/internal/stock/usecase"
	"github.com/fekuna/omnipos-inventory-service/pkg/cache"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
)

type world struct {
	orders order.UseCase
	stocks stock.UseCase
	resvs  reservation.UseCase
	repo   *stockrepo.MemoryRepository
}

// newWorld wires the three usecases over one shared in-memory state, the way
// the server wires them over one database.
func newWorld(t *testing.T) *world {
	t.Helper()
	stocks := stockrepo.NewMemoryRepository()
	resvs := resvrepo.NewMemoryRepository(stocks)
	locker := cache.NewLocalLocker()
	log := logger.NewNop()

	stockUC := stockuc.NewStockUseCase(stocks, locker, nil, log)
	resvUC := resvuc.NewReservationUseCase(resvs, locker, log, 24*time.Hour, 0)
	return &world{
		orders: NewOrderUseCase(stockUC, resvUC, log),
		stocks: stockUC,
		resvs:  resvUC,
		repo:   stocks,
	}
}

func (w *world) initProduct(t *testing.T, productID string, qty int64) *model.StockRecord {
	t.Helper()
	rec, err := w.stocks.Initialize(context.Background(), &stockdto.InitializeStockInput{
		MerchantID:      "m-1",
		ProductID:       productID,
		InitialQuantity: qty,
		ReorderLevel:    2,
	})
	if err != nil {
		t.Fatalf("Initialize %s: %v", productID, err)
	}
	return rec
}

func TestPlaceOrder(t *testing.T) {
	w := newWorld(t)
	w.initProduct(t, "p-1", 10)
	w.initProduct(t, "p-2", 10)
	ctx := context.Background()

	taken, err := w.orders.PlaceOrder(ctx, &dto.PlaceOrderInput{
		MerchantID: "m-1",
		OrderRef:   "ord-1",
		Requester:  "checkout",
		Lines: []dto.OrderLine{
			{ProductID: "p-1", Quantity: 4},
			{ProductID: "p-2", Quantity: 6},
		},
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if len(taken) != 2 {
		t.Fatalf("reservations = %d, want 2", len(taken))
	}

	rec, err := w.stocks.GetRecord(ctx, "m-1", "p-1", nil)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if rec.Reserved != 4 || rec.Available != 6 {
		t.Errorf("p-1 reserved/available = %d/%d, want 4/6", rec.Reserved, rec.Available)
	}
}

// A short line fails the order before any hold is taken.
func TestPlaceOrderPreCheckFails(t *testing.T) {
	w := newWorld(t)
	w.initProduct(t, "p-1", 10)
	w.initProduct(t, "p-2", 3)
	ctx := context.Background()

	_, err := w.orders.PlaceOrder(ctx, &dto.PlaceOrderInput{
		MerchantID: "m-1",
		OrderRef:   "ord-1",
		Lines: []dto.OrderLine{
			{ProductID: "p-1", Quantity: 5},
			{ProductID: "p-2", Quantity: 8},
		},
	})
	if !errors.Is(err, apperrors.ErrInsufficientStock) {
		t.Fatalf("PlaceOrder error = %v, want ErrInsufficientStock", err)
	}

	rec, _ := w.stocks.GetRecord(ctx, "m-1", "p-1", nil)
	if rec.Reserved != 0 || rec.Available != 10 {
		t.Errorf("p-1 reserved/available after failed order = %d/%d, want 0/10", rec.Reserved, rec.Available)
	}
	reservations, _ := w.resvs.ListByOrder(ctx, "m-1", "ord-1")
	if len(reservations) != 0 {
		t.Errorf("reservations after pre-check failure = %d, want 0", len(reservations))
	}
}

// Two lines on the same record each pass the per-line pre-check, but the
// second Reserve fails under the lock; the first hold must be released so a
// rejected order holds nothing.
func TestPlaceOrderCompensatesOnFailure(t *testing.T) {
	w := newWorld(t)
	w.initProduct(t, "p-1", 10)
	ctx := context.Background()

	_, err := w.orders.PlaceOrder(ctx, &dto.PlaceOrderInput{
		MerchantID: "m-1",
		OrderRef:   "ord-1",
		Lines: []dto.OrderLine{
			{ProductID: "p-1", Quantity: 6},
			{ProductID: "p-1", Quantity: 6},
		},
	})
	if !errors.Is(err, apperrors.ErrInsufficientAvailable) {
		t.Fatalf("PlaceOrder error = %v, want ErrInsufficientAvailable", err)
	}

	rec, _ := w.stocks.GetRecord(ctx, "m-1", "p-1", nil)
	if rec.Reserved != 0 || rec.Available != 10 {
		t.Errorf("reserved/available after failed order = %d/%d, want 0/10", rec.Reserved, rec.Available)
	}

	reservations, _ := w.resvs.ListByOrder(ctx, "m-1", "ord-1")
	for _, resv := range reservations {
		if resv.Status.Active() {
			t.Errorf("reservation %s still active after failed order", resv.ID)
		}
	}
}

func TestCancelOrder(t *testing.T) {
	w := newWorld(t)
	w.initProduct(t, "p-1", 10)
	ctx := context.Background()

	if _, err := w.orders.PlaceOrder(ctx, &dto.PlaceOrderInput{
		MerchantID: "m-1",
		OrderRef:   "ord-1",
		Lines:      []dto.OrderLine{{ProductID: "p-1", Quantity: 4}},
	}); err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	released, err := w.orders.CancelOrder(ctx, "m-1", "ord-1")
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if released != 1 {
		t.Errorf("released = %d, want 1", released)
	}

	rec, _ := w.stocks.GetRecord(ctx, "m-1", "p-1", nil)
	if rec.Reserved != 0 || rec.OnHand != 10 {
		t.Errorf("reserved/on-hand after cancel = %d/%d, want 0/10", rec.Reserved, rec.OnHand)
	}
}

func TestShipOrder(t *testing.T) {
	w := newWorld(t)
	rec := w.initProduct(t, "p-1", 10)
	ctx := context.Background()

	if _, err := w.orders.PlaceOrder(ctx, &dto.PlaceOrderInput{
		MerchantID: "m-1",
		OrderRef:   "ord-1",
		Lines:      []dto.OrderLine{{ProductID: "p-1", Quantity: 4}},
	}); err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	if err := w.orders.ShipOrder(ctx, "m-1", "ord-1", "warehouse"); err != nil {
		t.Fatalf("ShipOrder: %v", err)
	}

	updated, _ := w.stocks.GetRecord(ctx, "m-1", "p-1", nil)
	if updated.OnHand != 6 || updated.Reserved != 0 || updated.Available != 6 {
		t.Errorf("on-hand/reserved/available = %d/%d/%d, want 6/0/6",
			updated.OnHand, updated.Reserved, updated.Available)
	}

	reservations, _ := w.resvs.ListByOrder(ctx, "m-1", "ord-1")
	if len(reservations) != 1 || reservations[0].Status != model.ReservationStatusFulfilled {
		t.Fatalf("reservation after shipment = %+v, want fulfilled", reservations)
	}

	movements, _, err := w.repo.ListMovements(ctx, &stockdto.MovementFilters{
		StockRecordID: rec.ID,
		MovementType:  model.MovementTypeStockOut,
	})
	if err != nil {
		t.Fatalf("ListMovements: %v", err)
	}
	if len(movements) != 1 {
		t.Fatalf("stock_out movements = %d, want 1", len(movements))
	}
	mv := movements[0]
	if mv.OrderRef == nil || *mv.OrderRef != "ord-1" {
		t.Errorf("movement OrderRef = %v, want ord-1", mv.OrderRef)
	}
	if mv.QuantityChange != -4 || mv.QuantityAfter != 6 {
		t.Errorf("movement change/after = %d/%d, want -4/6", mv.QuantityChange, mv.QuantityAfter)
	}

	// Shipping twice finds no active reservation left.
	if err := w.orders.ShipOrder(ctx, "m-1", "ord-1", "warehouse"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("second ShipOrder error = %v, want ErrNotFound", err)
	}
}

// flakyStocks fails StockOut a set number of times before delegating.
type flakyStocks struct {
	stock.UseCase
	failures int
}

func (f *flakyStocks) StockOut(ctx context.Context, input *stockdto.StockOutInput) (*stockdto.MutationResult, error) {
	if f.failures > 0 {
		f.failures--
		return nil, apperrors.ErrConflict
	}
	return f.UseCase.StockOut(ctx, input)
}

// A stock out failing after the fulfill must not strand the line: the hold is
// restored so a retried shipment picks it up and decrements on-hand once.
func TestShipOrderRestoresHoldOnStockOutFailure(t *testing.T) {
	stocks := stockrepo.NewMemoryRepository()
	resvs := resvrepo.NewMemoryRepository(stocks)
	locker := cache.NewLocalLocker()
	log := logger.NewNop()

	stockUC := stockuc.NewStockUseCase(stocks, locker, nil, log)
	resvUC := resvuc.NewReservationUseCase(resvs, locker, log, 24*time.Hour, 0)
	flaky := &flakyStocks{UseCase: stockUC, failures: 1}
	orders := NewOrderUseCase(flaky, resvUC, log)
	ctx := context.Background()

	if _, err := stockUC.Initialize(ctx, &stockdto.InitializeStockInput{
		MerchantID:      "m-1",
		ProductID:       "p-1",
		InitialQuantity: 10,
	}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if _, err := orders.PlaceOrder(ctx, &dto.PlaceOrderInput{
		MerchantID: "m-1",
		OrderRef:   "ord-1",
		Lines:      []dto.OrderLine{{ProductID: "p-1", Quantity: 4}},
	}); err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	if err := orders.ShipOrder(ctx, "m-1", "ord-1", "warehouse"); !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("first ShipOrder error = %v, want ErrConflict", err)
	}

	rec, err := stockUC.GetRecord(ctx, "m-1", "p-1", nil)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if rec.OnHand != 10 || rec.Reserved != 4 {
		t.Errorf("on-hand/reserved after failed shipment = %d/%d, want 10/4", rec.OnHand, rec.Reserved)
	}

	active := 0
	reservations, _ := resvUC.ListByOrder(ctx, "m-1", "ord-1")
	for _, resv := range reservations {
		if resv.Status.Active() {
			active++
		}
	}
	if active != 1 {
		t.Fatalf("active reservations after failed shipment = %d, want 1", active)
	}

	if err := orders.ShipOrder(ctx, "m-1", "ord-1", "warehouse"); err != nil {
		t.Fatalf("retried ShipOrder: %v", err)
	}
	rec, _ = stockUC.GetRecord(ctx, "m-1", "p-1", nil)
	if rec.OnHand != 6 || rec.Reserved != 0 {
		t.Errorf("on-hand/reserved after retry = %d/%d, want 6/0", rec.OnHand, rec.Reserved)
	}
}
