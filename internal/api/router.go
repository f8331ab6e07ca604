package api

import (
	"net/http"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/trgovina/internal/inventory"
	"github.com/erazemk/trgovina/internal/model"
	"github.com/erazemk/trgovina/internal/notify"
	"github.com/erazemk/trgovina/internal/order"
	"github.com/erazemk/trgovina/internal/ratelimit"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	DB        *sqlx.DB
	JWTSecret string
	Orders    *order.Service
	Stock     *inventory.Reconciler
	Notifier  *notify.Notifier
	Limiter   *ratelimit.Limiter
	ClientID  ratelimit.ClientIDFunc
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	if d.ClientID == nil {
		d.ClientID = ratelimit.ForwardedClientID
	}

	authHandler := &AuthHandler{DB: d.DB, JWTSecret: d.JWTSecret}
	usersHandler := &UsersHandler{DB: d.DB}
	productsHandler := &ProductsHandler{DB: d.DB}
	ordersHandler := &OrdersHandler{DB: d.DB, Service: d.Orders}
	inventoryHandler := &InventoryHandler{Stock: d.Stock}
	settingsHandler := &SettingsHandler{DB: d.DB, Notifier: d.Notifier}

	authMW := AuthMiddleware(d.JWTSecret, d.DB)
	limit := RateLimit(d.Limiter, d.ClientID)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireManager := RequireRole(model.RoleManager)

	// Public storefront.
	mux.Handle("POST /api/orders", limit(http.HandlerFunc(ordersHandler.Create)))
	mux.HandleFunc("GET /api/products", productsHandler.List(true))
	mux.HandleFunc("GET /api/products/{id}", productsHandler.Get)
	mux.HandleFunc("GET /api/products/{id}/image", productsHandler.GetImage)

	// Sessions.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Products: read (all roles), write (manager+).
	mux.Handle("GET /api/admin/products", authMW(productsHandler.List(false)))
	mux.Handle("POST /api/admin/products", authMW(requireManager(http.HandlerFunc(productsHandler.Create))))
	mux.Handle("PUT /api/admin/products/{id}", authMW(requireManager(http.HandlerFunc(productsHandler.Update))))
	mux.Handle("DELETE /api/admin/products/{id}", authMW(requireManager(http.HandlerFunc(productsHandler.Delete))))
	mux.Handle("PUT /api/admin/products/{id}/image", authMW(requireManager(http.HandlerFunc(productsHandler.UploadImage))))

	// Orders: read (all roles), status (manager+).
	mux.Handle("GET /api/admin/orders", authMW(http.HandlerFunc(ordersHandler.List)))
	mux.Handle("GET /api/admin/orders/{id}", authMW(http.HandlerFunc(ordersHandler.Get)))
	mux.Handle("PUT /api/admin/orders/{id}/status", authMW(requireManager(http.HandlerFunc(ordersHandler.UpdateStatus))))

	// Inventory: read (all roles), write (manager+).
	mux.Handle("GET /api/admin/inventory/movements", authMW(http.HandlerFunc(inventoryHandler.Movements)))
	mux.Handle("GET /api/admin/inventory/dashboard", authMW(http.HandlerFunc(inventoryHandler.Dashboard)))
	mux.Handle("GET /api/admin/inventory/audit", authMW(requireManager(http.HandlerFunc(inventoryHandler.Audit))))
	mux.Handle("POST /api/admin/inventory/stock-in", authMW(requireManager(http.HandlerFunc(inventoryHandler.StockIn))))
	mux.Handle("POST /api/admin/inventory/stock-out", authMW(requireManager(http.HandlerFunc(inventoryHandler.StockOut))))

	// Notification settings (admin only).
	mux.Handle("GET /api/admin/settings/notifications", authMW(requireAdmin(http.HandlerFunc(settingsHandler.GetNotifications))))
	mux.Handle("PUT /api/admin/settings/notifications", authMW(requireAdmin(http.HandlerFunc(settingsHandler.UpdateNotifications))))
	mux.Handle("POST /api/admin/settings/notifications/test", authMW(requireAdmin(http.HandlerFunc(settingsHandler.TestNotifications))))

	// Users (admin only).
	mux.Handle("GET /api/admin/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/admin/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("GET /api/admin/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/admin/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Update))))
	mux.Handle("PUT /api/admin/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/admin/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	return mux
}
