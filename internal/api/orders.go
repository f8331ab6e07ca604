package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/erazemk/trgovina/internal/catalog"
	"github.com/erazemk/trgovina/internal/inventory"
	"github.com/erazemk/trgovina/internal/model"
	"github.com/erazemk/trgovina/internal/order"
	"github.com/erazemk/trgovina/internal/store"
)

// OrdersHandler handles order intake and order administration.
type OrdersHandler struct {
	DB      *sqlx.DB
	Service *order.Service
}

type placeOrderResponse struct {
	Success     bool            `json:"success"`
	OrderID     string          `json:"orderId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// Create handles POST /api/orders.
func (h *OrdersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req order.Request
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	receipt, err := h.Service.Place(r.Context(), &req)
	if err != nil {
		writePlaceError(w, err)
		return
	}

	jsonResponse(w, http.StatusCreated, placeOrderResponse{
		Success:     true,
		OrderID:     receipt.OrderID,
		TotalAmount: receipt.Total,
	})
}

func writePlaceError(w http.ResponseWriter, err error) {
	var (
		inputErr *order.InputError
		rejected *order.RejectedError
		conflict *inventory.ConflictError
	)
	switch {
	case errors.As(err, &inputErr):
		jsonError(w, http.StatusBadRequest, inputErr.Error())
	case errors.As(err, &rejected):
		jsonErrorDetails(w, http.StatusBadRequest, "some items cannot be ordered", rejected.Reasons)
	case errors.Is(err, order.ErrNothingToOrder):
		jsonError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &conflict):
		jsonErrorDetails(w, http.StatusConflict, "stock changed while placing the order", conflict.Reasons)
	case errors.Is(err, catalog.ErrUnavailable):
		jsonError(w, http.StatusInternalServerError, "could not read catalog")
	default:
		slog.Error("placing order", "error", err)
		jsonError(w, http.StatusInternalServerError, "could not save order")
	}
}

// List handles GET /api/admin/orders.
func (h *OrdersHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && !model.ValidOrderStatus(status) {
		jsonError(w, http.StatusBadRequest, "invalid status")
		return
	}

	orders, err := store.ListOrders(r.Context(), h.DB, status, queryInt(r, "limit", 100))
	if err != nil {
		slog.Error("failed to list orders", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	jsonResponse(w, http.StatusOK, orders)
}

// Get handles GET /api/admin/orders/{id}.
func (h *OrdersHandler) Get(w http.ResponseWriter, r *http.Request) {
	o, err := store.GetOrder(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		slog.Error("failed to get order", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get order")
		return
	}
	if o == nil {
		jsonError(w, http.StatusNotFound, "order not found")
		return
	}
	jsonResponse(w, http.StatusOK, o)
}

// UpdateStatus handles PUT /api/admin/orders/{id}/status.
func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !model.ValidOrderStatus(req.Status) {
		jsonError(w, http.StatusBadRequest, "invalid status")
		return
	}

	id := r.PathValue("id")
	o, err := store.UpdateOrderStatus(r.Context(), h.DB, id, req.Status)
	switch {
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, http.StatusNotFound, "order not found")
		return
	case errors.Is(err, store.ErrInvalidTransition):
		jsonError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		slog.Error("failed to update order status", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update order")
		return
	}

	slog.Info("order status changed", "user", GetClaims(r.Context()).Username, "order", id, "status", req.Status)
	jsonResponse(w, http.StatusOK, o)
}
