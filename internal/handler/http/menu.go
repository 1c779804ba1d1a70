package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/comeencasa/restaurant-api/internal/domain"
	"github.com/comeencasa/restaurant-api/internal/service"
	"github.com/comeencasa/restaurant-api/pkg/httputil"
	"github.com/comeencasa/restaurant-api/pkg/pagination"
	"github.com/comeencasa/restaurant-api/pkg/validator"
)

// MenuHandler handles HTTP requests for menu endpoints.
type MenuHandler struct {
	service *service.MenuService
	logger  *slog.Logger
}

// NewMenuHandler creates a new menu HTTP handler.
func NewMenuHandler(svc *service.MenuService, logger *slog.Logger) *MenuHandler {
	return &MenuHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// CreateMenuItemRequest is the JSON request body for a new menu item.
// Prices are in cents, at most 1,000,000.00 so order totals cannot overflow.
type CreateMenuItemRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=100"`
	Description string `json:"description" validate:"omitempty,max=500"`
	Price       *int64 `json:"price" validate:"required,gte=0,lte=100000000"`
	Available   *bool  `json:"available"`
}

// UpdateMenuItemRequest is the JSON request body for a partial update.
type UpdateMenuItemRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	Price       *int64  `json:"price" validate:"omitempty,gte=0,lte=100000000"`
	Available   *bool   `json:"available"`
}

// --- Handlers ---

// List handles GET /api/v1/menu
func (h *MenuHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter domain.MenuFilter
	if v := r.URL.Query().Get("available"); v != "" {
		available, err := strconv.ParseBool(v)
		if err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "available must be true or false"},
			})
			return
		}
		filter.AvailableOnly = available
	}

	result, err := h.service.List(r.Context(), filter, pagination.FromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, result)
}

// Get handles GET /api/v1/menu/{id}
func (h *MenuHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	item, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, item)
}

// Create handles POST /api/v1/admin/menu
func (h *MenuHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateMenuItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	item, err := h.service.Create(r.Context(), service.CreateMenuItemInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       *req.Price,
		Available:   req.Available,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, item)
}

// Update handles PUT /api/v1/admin/menu/{id}
func (h *MenuHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req UpdateMenuItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	item, err := h.service.Update(r.Context(), id, service.UpdateMenuItemInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Available:   req.Available,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, item)
}

// Delete handles DELETE /api/v1/admin/menu/{id}
func (h *MenuHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
