package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/erazemk/trgovina/internal/inventory"
	"github.com/erazemk/trgovina/internal/model"
	"github.com/erazemk/trgovina/internal/store"
)

// InventoryHandler handles manual stock movements and inventory reports.
type InventoryHandler struct {
	Stock *inventory.Reconciler
}

type movementRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Reason    string `json:"reason"`
	Date      string `json:"date"`
}

// parseDate accepts an RFC 3339 timestamp or a plain YYYY-MM-DD date.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// StockIn handles POST /api/admin/inventory/stock-in.
func (h *InventoryHandler) StockIn(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.Stock.StockIn)
}

// StockOut handles POST /api/admin/inventory/stock-out.
func (h *InventoryHandler) StockOut(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.Stock.StockOut)
}

type moveFunc func(ctx context.Context, a inventory.Adjustment) (*model.StockMovement, error)

func (h *InventoryHandler) move(w http.ResponseWriter, r *http.Request, apply moveFunc) {
	var req movementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductID == "" {
		jsonError(w, http.StatusBadRequest, "product_id required")
		return
	}
	at, ok := parseDate(req.Date)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid date")
		return
	}

	m, err := apply(r.Context(), inventory.Adjustment{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Reason:    req.Reason,
		At:        at,
		Actor:     actorID(r.Context()),
	})
	switch {
	case errors.Is(err, inventory.ErrInvalidAdjustment):
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, http.StatusNotFound, "product not found")
		return
	case errors.Is(err, store.ErrInsufficientStock):
		jsonError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		slog.Error("failed to record stock movement", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to record stock movement")
		return
	}

	slog.Info("stock movement recorded", "user", GetClaims(r.Context()).Username,
		"product", m.ProductID, "type", m.Type, "change", m.QuantityChange)
	jsonResponse(w, http.StatusCreated, m)
}

// Movements handles GET /api/admin/inventory/movements.
func (h *InventoryHandler) Movements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	typ := q.Get("type")
	switch typ {
	case "", model.MovementInitial, model.MovementSale, model.MovementStockIn, model.MovementStockOut:
	default:
		jsonError(w, http.StatusBadRequest, "invalid movement type")
		return
	}

	movements, err := h.Stock.History(r.Context(), q.Get("product_id"), typ, queryInt(r, "limit", 100))
	if err != nil {
		slog.Error("failed to list stock movements", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list stock movements")
		return
	}
	if movements == nil {
		movements = []model.StockMovement{}
	}
	jsonResponse(w, http.StatusOK, movements)
}

// Dashboard handles GET /api/admin/inventory/dashboard.
func (h *InventoryHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	months := queryInt(r, "months", 6)
	if months > 24 {
		months = 24
	}

	d, err := h.Stock.Dashboard(r.Context(), months)
	if err != nil {
		slog.Error("failed to build dashboard", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to build dashboard")
		return
	}
	jsonResponse(w, http.StatusOK, d)
}

// Audit handles GET /api/admin/inventory/audit.
func (h *InventoryHandler) Audit(w http.ResponseWriter, r *http.Request) {
	drift, err := h.Stock.Audit(r.Context())
	if err != nil {
		slog.Error("failed to audit ledger", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to audit ledger")
		return
	}
	if len(drift) > 0 {
		slog.Warn("ledger drift detected", "products", len(drift))
	}
	jsonResponse(w, http.StatusOK, drift)
}
