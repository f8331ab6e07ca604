package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/erazemk/trgovina/internal/imaging"
	"github.com/erazemk/trgovina/internal/model"
	"github.com/erazemk/trgovina/internal/store"
)

// ProductsHandler serves the public catalog and product administration.
type ProductsHandler struct {
	DB *sqlx.DB
}

type productRequest struct {
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	Price             decimal.Decimal `json:"price"`
	IsActive          *bool           `json:"is_active"`
	InStock           *bool           `json:"in_stock"`
	StockQuantity     *int            `json:"stock_quantity"`
	LowStockThreshold int             `json:"low_stock_threshold"`
}

func (req *productRequest) validate() string {
	req.Name = strings.TrimSpace(req.Name)
	switch {
	case req.Name == "":
		return "name required"
	case req.Price.IsNegative():
		return "price cannot be negative"
	case req.StockQuantity != nil && *req.StockQuantity < 0:
		return "stock quantity cannot be negative"
	case req.LowStockThreshold < 0:
		return "low stock threshold cannot be negative"
	}
	return ""
}

func boolOr(b *bool, fallback bool) bool {
	if b == nil {
		return fallback
	}
	return *b
}

// List handles GET /api/products (active only) and GET /api/admin/products.
func (h *ProductsHandler) List(activeOnly bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		products, err := store.ListProducts(r.Context(), h.DB, activeOnly)
		if err != nil {
			slog.Error("failed to list products", "error", err)
			jsonError(w, http.StatusInternalServerError, "failed to list products")
			return
		}
		if products == nil {
			products = []model.Product{}
		}
		jsonResponse(w, http.StatusOK, products)
	}
}

// Get handles GET /api/products/{id}. Inactive and deleted products are
// hidden from the storefront.
func (h *ProductsHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := store.GetProduct(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		slog.Error("failed to get product", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get product")
		return
	}
	if p == nil || p.DeletedAt != nil || !p.IsActive {
		jsonError(w, http.StatusNotFound, "product not found")
		return
	}
	jsonResponse(w, http.StatusOK, p)
}

// Create handles POST /api/admin/products.
func (h *ProductsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		jsonError(w, http.StatusBadRequest, msg)
		return
	}

	p, err := store.CreateProduct(r.Context(), h.DB, &model.Product{
		Name:              req.Name,
		Description:       strings.TrimSpace(req.Description),
		Price:             req.Price,
		IsActive:          boolOr(req.IsActive, true),
		InStock:           boolOr(req.InStock, true),
		StockQuantity:     req.StockQuantity,
		LowStockThreshold: req.LowStockThreshold,
	}, actorID(r.Context()))
	if err != nil {
		slog.Error("failed to create product", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create product")
		return
	}

	slog.Info("product created", "user", GetClaims(r.Context()).Username, "product", p.ID, "name", p.Name)
	jsonResponse(w, http.StatusCreated, p)
}

// Update handles PUT /api/admin/products/{id}. Stock is changed only through
// inventory movements.
func (h *ProductsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	existing, err := store.GetProduct(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get product", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get product")
		return
	}
	if existing == nil || existing.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "product not found")
		return
	}

	var req productRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		jsonError(w, http.StatusBadRequest, msg)
		return
	}

	existing.Name = req.Name
	existing.Description = strings.TrimSpace(req.Description)
	existing.Price = req.Price
	existing.IsActive = boolOr(req.IsActive, existing.IsActive)
	existing.InStock = boolOr(req.InStock, existing.InStock)
	existing.LowStockThreshold = req.LowStockThreshold

	if err := store.UpdateProduct(r.Context(), h.DB, existing); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			jsonError(w, http.StatusNotFound, "product not found")
			return
		}
		slog.Error("failed to update product", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update product")
		return
	}

	p, _ := store.GetProduct(r.Context(), h.DB, id)
	slog.Info("product updated", "user", GetClaims(r.Context()).Username, "product", id)
	jsonResponse(w, http.StatusOK, p)
}

// Delete handles DELETE /api/admin/products/{id}.
func (h *ProductsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := store.DeleteProduct(r.Context(), h.DB, id); err != nil {
		slog.Error("failed to delete product", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete product")
		return
	}

	slog.Info("product deleted", "user", GetClaims(r.Context()).Username, "product", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "product deleted"})
}

// UploadImage handles PUT /api/admin/products/{id}/image.
func (h *ProductsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadSize+(1<<20))
	if err := r.ParseMultipartForm(imaging.MaxUploadSize); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	photo, err := imaging.Normalize(file)
	switch {
	case errors.Is(err, imaging.ErrTooLarge):
		jsonError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	case err != nil:
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := store.SetProductImage(r.Context(), h.DB, id, photo.Data, photo.MIME); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			jsonError(w, http.StatusNotFound, "product not found")
			return
		}
		slog.Error("failed to save product image", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to save image")
		return
	}

	slog.Info("product image uploaded", "user", GetClaims(r.Context()).Username, "product", id,
		"width", photo.Width, "height", photo.Height, "bytes", len(photo.Data))
	jsonResponse(w, http.StatusOK, map[string]string{"image_url": model.ImagePath(id)})
}

// GetImage handles GET /api/products/{id}/image.
func (h *ProductsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	data, mime, err := store.GetProductImage(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		slog.Error("failed to get product image", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get image")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}
