package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/comeencasa/restaurant-api/internal/service"
	"github.com/comeencasa/restaurant-api/pkg/httputil"
	"github.com/comeencasa/restaurant-api/pkg/middleware"
	"github.com/comeencasa/restaurant-api/pkg/pagination"
	"github.com/comeencasa/restaurant-api/pkg/validator"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	service *service.OrderService
	logger  *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(svc *service.OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// CreateOrderItemRequest is one line of a new order.
type CreateOrderItemRequest struct {
	MenuItemID int64 `json:"menu_item_id" validate:"required,gt=0"`
	Quantity   int   `json:"quantity" validate:"required,gt=0,lte=100"`
}

// CreateOrderRequest is the JSON request body for placing an order. An empty
// customer name defaults to the caller's username.
type CreateOrderRequest struct {
	CustomerName string                   `json:"customer_name" validate:"omitempty,max=100"`
	Notes        string                   `json:"notes" validate:"omitempty,max=500"`
	Items        []CreateOrderItemRequest `json:"items" validate:"required,min=1,max=50,dive"`
}

// UpdateStatusRequest is the JSON request body for a status change.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending preparing ready delivered canceled"`
}

func callerFrom(r *http.Request) service.Caller {
	id, _ := middleware.IdentityFromContext(r.Context())
	return service.Caller{UserID: id.UserID, Role: id.Role}
}

// --- Handlers ---

// Create handles POST /api/v1/orders
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	identity, _ := middleware.IdentityFromContext(r.Context())
	customer := req.CustomerName
	if customer == "" {
		customer = identity.Username
	}

	items := make([]service.OrderItemInput, len(req.Items))
	for i, it := range req.Items {
		items[i] = service.OrderItemInput{MenuItemID: it.MenuItemID, Quantity: it.Quantity}
	}

	order, err := h.service.Create(r.Context(), identity.UserID, service.CreateOrderInput{
		CustomerName: customer,
		Notes:        req.Notes,
		Items:        items,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, order)
}

// ListMine handles GET /api/v1/orders
func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ListForUser(r.Context(), middleware.UserIDFromContext(r.Context()), pagination.FromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, result)
}

// ListAll handles GET /api/v1/staff/orders
func (h *OrderHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ListAll(r.Context(), r.URL.Query().Get("status"), pagination.FromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, result)
}

// Get handles GET /api/v1/orders/{id}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	order, err := h.service.Get(r.Context(), callerFrom(r), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, order)
}

// UpdateStatus handles PUT /api/v1/orders/{id}/status
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	order, err := h.service.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, order)
}

// Cancel handles POST /api/v1/orders/{id}/cancel
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	order, err := h.service.Cancel(r.Context(), callerFrom(r), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, order)
}
