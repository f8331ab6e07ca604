package order

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/trgovina/internal/db"
	"github.com/erazemk/trgovina/internal/inventory"
	"github.com/erazemk/trgovina/internal/model"
	"github.com/erazemk/trgovina/internal/store"
)

type recordingNotifier struct {
	mu     sync.Mutex
	orders []model.Order
}

func (n *recordingNotifier) NotifyOrder(o model.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, o)
}

func newTestService(t *testing.T) (*Service, *sqlx.DB, *recordingNotifier) {
	t.Helper()
	database := db.NewTestDB(t)
	notifier := &recordingNotifier{}
	return NewService(database, inventory.NewReconciler(database), notifier, DefaultMaxLines), database, notifier
}

func seedProduct(t *testing.T, database *sqlx.DB, name string, price int64, stock *int) *model.Product {
	t.Helper()
	p, err := store.CreateProduct(context.Background(), database, &model.Product{
		Name: name, Price: decimal.NewFromInt(price), IsActive: true, InStock: true, StockQuantity: stock,
	}, nil)
	require.NoError(t, err)
	return p
}

func orderRequest(lines ...model.CartLine) *Request {
	return &Request{
		CustomerName: "Ana Novak",
		Phone:        "040 123 456",
		Address:      "Trubarjeva 1, Ljubljana",
		Products:     lines,
	}
}

func countOrders(t *testing.T, database *sqlx.DB) int {
	t.Helper()
	orders, err := store.ListOrders(context.Background(), database, "", 0)
	require.NoError(t, err)
	return len(orders)
}

func TestPlace_RepricesAndDecrementsStock(t *testing.T) {
	svc, database, notifier := newTestService(t)
	ctx := context.Background()
	p1 := seedProduct(t, database, "Olive oil", 15000, intPtr(10))

	bogus := decimal.NewFromInt(1998)
	req := orderRequest(model.CartLine{ID: p1.ID, Price: decimal.NewFromInt(999), Quantity: 2})
	req.TotalAmount = &bogus

	receipt, err := svc.Place(ctx, req)
	require.NoError(t, err)
	assert.True(t, receipt.Total.Equal(decimal.NewFromInt(30000)), "total was %s", receipt.Total)

	got, err := store.GetProduct(ctx, database, p1.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, *got.StockQuantity)

	stored, err := store.GetOrder(ctx, database, receipt.OrderID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, model.OrderStatusPending, stored.Status)
	assert.True(t, stored.TotalAmount.Equal(decimal.NewFromInt(30000)))
	assert.True(t, stored.Items[0].UnitPrice.Equal(decimal.NewFromInt(15000)))

	sales, err := store.ListMovements(ctx, database, store.MovementFilter{ProductID: p1.ID, Type: model.MovementSale})
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, -2, sales[0].QuantityChange)
	assert.Equal(t, 10, *sales[0].QuantityBefore)
	assert.Equal(t, 8, *sales[0].QuantityAfter)
	assert.Equal(t, receipt.OrderID, *sales[0].ReferenceID)

	require.Len(t, receipt.Ledger, 1)
	assert.NoError(t, receipt.Ledger[0].Err)
	require.Len(t, notifier.orders, 1)
	assert.Equal(t, receipt.OrderID, notifier.orders[0].ID)
}

func TestPlace_InsufficientStockCreatesNothing(t *testing.T) {
	svc, database, notifier := newTestService(t)
	ctx := context.Background()
	p2 := seedProduct(t, database, "Truffles", 40, intPtr(2))

	_, err := svc.Place(ctx, orderRequest(model.CartLine{ID: p2.ID, Quantity: 5}))

	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected), "expected RejectedError, got %v", err)
	require.Len(t, rejected.Reasons, 1)
	assert.Contains(t, rejected.Reasons[0], "insufficient stock for Truffles")

	assert.Zero(t, countOrders(t, database))
	got, _ := store.GetProduct(ctx, database, p2.ID)
	assert.Equal(t, 2, *got.StockQuantity)
	assert.Empty(t, notifier.orders)
}

func TestPlace_OneBadLineRefusesWholeOrder(t *testing.T) {
	svc, database, _ := newTestService(t)
	ctx := context.Background()
	good := seedProduct(t, database, "Bread", 3, intPtr(10))

	_, err := svc.Place(ctx, orderRequest(
		model.CartLine{ID: good.ID, Quantity: 1},
		model.CartLine{ID: "ghost", Quantity: 1},
		model.CartLine{ID: good.ID, Quantity: 0},
	))

	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Len(t, rejected.Reasons, 2)
	assert.Zero(t, countOrders(t, database))

	got, _ := store.GetProduct(ctx, database, good.ID)
	assert.Equal(t, 10, *got.StockQuantity)
}

func TestPlace_EmptyCart(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Place(context.Background(), orderRequest())
	assert.ErrorIs(t, err, ErrNothingToOrder)
}

func TestPlace_InputErrorBeforeDataAccess(t *testing.T) {
	svc, database, _ := newTestService(t)
	database.Close()

	req := orderRequest(model.CartLine{ID: "p", Quantity: 1})
	req.Phone = "not a phone"

	_, err := svc.Place(context.Background(), req)
	var inputErr *InputError
	assert.True(t, errors.As(err, &inputErr), "expected InputError, got %v", err)
}

func TestPlace_DuplicateLinesOverStockConflict(t *testing.T) {
	svc, database, _ := newTestService(t)
	ctx := context.Background()
	p := seedProduct(t, database, "Cake", 12, intPtr(3))

	// Each line fits on its own; together they exceed stock.
	_, err := svc.Place(ctx, orderRequest(
		model.CartLine{ID: p.ID, Quantity: 2},
		model.CartLine{ID: p.ID, Quantity: 2},
	))

	var conflict *inventory.ConflictError
	require.True(t, errors.As(err, &conflict), "expected ConflictError, got %v", err)
	assert.Zero(t, countOrders(t, database), "the order insert is rolled back")

	got, _ := store.GetProduct(ctx, database, p.ID)
	assert.Equal(t, 3, *got.StockQuantity)
}

func TestPlace_UnlimitedStock(t *testing.T) {
	svc, database, _ := newTestService(t)
	ctx := context.Background()
	p := seedProduct(t, database, "Gift card", 50, nil)

	receipt, err := svc.Place(ctx, orderRequest(model.CartLine{ID: p.ID, Quantity: 1000}))
	require.NoError(t, err)
	assert.True(t, receipt.Total.Equal(decimal.NewFromInt(50000)))

	got, _ := store.GetProduct(ctx, database, p.ID)
	assert.Nil(t, got.StockQuantity)

	sales, _ := store.ListMovements(ctx, database, store.MovementFilter{ProductID: p.ID})
	require.Len(t, sales, 1)
	assert.Nil(t, sales[0].QuantityAfter)
}

func TestPlace_ConcurrentOrdersNeverOversell(t *testing.T) {
	svc, database, _ := newTestService(t)
	ctx := context.Background()
	p := seedProduct(t, database, "Limited print", 100, intPtr(3))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		accepted  int
		conflicts int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Place(ctx, orderRequest(model.CartLine{ID: p.ID, Quantity: 1}))
			mu.Lock()
			defer mu.Unlock()
			var conflict *inventory.ConflictError
			var rejected *RejectedError
			switch {
			case err == nil:
				accepted++
			case errors.As(err, &conflict), errors.As(err, &rejected):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, accepted)
	assert.Equal(t, 5, conflicts)

	got, _ := store.GetProduct(ctx, database, p.ID)
	assert.Equal(t, 0, *got.StockQuantity)
	assert.Equal(t, 3, countOrders(t, database))
}

func TestPlace_PersistenceFailureLeavesStock(t *testing.T) {
	svc, database, notifier := newTestService(t)
	ctx := context.Background()
	p := seedProduct(t, database, "Olive oil", 15000, intPtr(10))

	_, err := database.ExecContext(ctx, `DROP TABLE orders`)
	require.NoError(t, err)

	_, err = svc.Place(ctx, orderRequest(model.CartLine{ID: p.ID, Quantity: 2}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPersistence), "expected ErrPersistence, got %v", err)

	got, err := store.GetProduct(ctx, database, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, *got.StockQuantity)

	sales, err := store.ListMovements(ctx, database, store.MovementFilter{ProductID: p.ID, Type: model.MovementSale})
	require.NoError(t, err)
	assert.Empty(t, sales)
	assert.Empty(t, notifier.orders)
}

// captureLogs routes the default logger into a buffer for the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestPlace_LogsTotalDiscrepancy(t *testing.T) {
	svc, database, _ := newTestService(t)
	ctx := context.Background()
	p := seedProduct(t, database, "Olive oil", 15000, intPtr(10))
	logs := captureLogs(t)

	bogus := decimal.NewFromInt(1998)
	req := orderRequest(model.CartLine{ID: p.ID, Quantity: 2})
	req.TotalAmount = &bogus
	_, err := svc.Place(ctx, req)
	require.NoError(t, err)

	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "client_total=1998")
	assert.Contains(t, logs.String(), "server_total=30000")

	logs.Reset()
	exact := decimal.NewFromInt(15000)
	req = orderRequest(model.CartLine{ID: p.ID, Quantity: 1})
	req.TotalAmount = &exact
	_, err = svc.Place(ctx, req)
	require.NoError(t, err)

	assert.NotContains(t, logs.String(), "client_total")
}
