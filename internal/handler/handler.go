// Package handler implements the POS JSON API on top of net/http.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/xenking/pos-backend/internal/domain/auth"
	"github.com/xenking/pos-backend/internal/domain/order"
	"github.com/xenking/pos-backend/internal/domain/product"
	"github.com/xenking/pos-backend/internal/domain/report"
)

// OrderService places and lists orders.
type OrderService interface {
	CreateOrder(ctx context.Context, req order.CreateRequest) (*order.Order, error)
	List(ctx context.Context) ([]order.Order, error)
}

// ReportService computes sales reports over a date window.
type ReportService interface {
	Summary(ctx context.Context, w report.Window) (*report.Summary, error)
	ProductSales(ctx context.Context, w report.Window) ([]report.ProductSales, error)
}

// Authenticator issues, resolves and revokes bearer tokens.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
	Authenticate(ctx context.Context, token string) (*auth.Principal, error)
	Logout(ctx context.Context, p *auth.Principal) error
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored in the database.
	ImageBaseURL string
	// Location is the zone report dates are interpreted in and timestamps
	// are rendered in. Defaults to time.Local.
	Location *time.Location
}

// Handler serves the /api routes.
type Handler struct {
	orders   OrderService
	reports  ReportService
	products product.Repository
	auth     Authenticator

	imageBaseURL string
	loc          *time.Location
}

// New constructs a Handler with the required domain dependencies.
func New(
	cfg Config,
	orders OrderService,
	reports ReportService,
	products product.Repository,
	authn Authenticator,
) *Handler {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Handler{
		orders:       orders,
		reports:      reports,
		products:     products,
		auth:         authn,
		imageBaseURL: cfg.ImageBaseURL,
		loc:          loc,
	}
}

// Register mounts every API route on mux. All routes except login require a
// bearer token.
func (h *Handler) Register(mux *http.ServeMux) {
	protect := func(fn http.HandlerFunc) http.Handler {
		return h.RequireAuth(fn)
	}

	mux.HandleFunc("POST /api/login", h.Login)
	mux.Handle("POST /api/logout", protect(h.Logout))
	mux.Handle("GET /api/user", protect(h.CurrentUser))

	mux.Handle("GET /api/products", protect(h.ListProducts))
	mux.Handle("GET /api/categories", protect(h.ListCategories))

	mux.Handle("GET /api/orders", protect(h.ListOrders))
	mux.Handle("POST /api/orders", protect(h.CreateOrder))

	mux.Handle("GET /api/reports/summary", protect(h.Summary))
	mux.Handle("GET /api/reports/product-sales", protect(h.ProductSales))

	mux.HandleFunc("/api/", h.NotFound)
}

// NotFound answers requests for unknown API routes.
func (h *Handler) NotFound(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusNotFound, "Not Found")
}
