package company

import (
	"encoding/json"
	"net/http"

	"github.com/georgemunganga/watchdealer-backend/internal/modules/user"
	"github.com/georgemunganga/watchdealer-backend/internal/pkg/apperr"
	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// RegisterPublicRoutes mounts the unauthenticated sign-up endpoint.
func (h *Handler) RegisterPublicRoutes(router chi.Router) {
	router.Post("/api/v1/companies", h.onboard)
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/api/v1/company", h.getCompany)
}

func (h *Handler) onboard(w http.ResponseWriter, r *http.Request) {
	var req Onboarding
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	company, admin, err := h.service.Onboard(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), apperr.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(struct {
		Company *Company   `json:"company"`
		Admin   *user.User `json:"admin"`
	}{company, admin})
}

func (h *Handler) getCompany(w http.ResponseWriter, r *http.Request) {
	company, err := h.service.GetCompany(r.Context())
	if err != nil {
		http.Error(w, err.Error(), apperr.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(company)
}
