// Package dealer exposes the dealer's customers, stock and orders over HTTP.
// Every request works on the caller's session snapshot.
package dealer

import (
	"encoding/json"
	"net/http"

	"github.com/georgemunganga/watchdealer-backend/internal/modules/customer"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/order"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/session"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/watch"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/workflow"
	"github.com/georgemunganga/watchdealer-backend/internal/pkg/apperr"
	"github.com/georgemunganga/watchdealer-backend/internal/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

type Handler struct {
	sessions *session.Manager
}

func NewHandler(sessions *session.Manager) *Handler {
	return &Handler{sessions: sessions}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/customers", func(r chi.Router) {
		r.Get("/", h.listCustomers)
		r.Post("/", h.createCustomer)
		r.Get("/{id}", h.getCustomer)
		r.Patch("/{id}", h.updateCustomer)
		r.Delete("/{id}", h.deleteCustomer)
	})
	r.Route("/api/v1/watches", func(r chi.Router) {
		r.Get("/", h.listWatches)
		r.Post("/", h.createWatch)
		r.Get("/{id}", h.getWatch)
		r.Patch("/{id}", h.updateWatch)
		r.Delete("/{id}", h.deleteWatch)
		r.Get("/{id}/margin", h.margin)
		r.Post("/{id}/assign", h.assign)     // POST   body: {"customer_id": "..."}
		r.Delete("/{id}/assign", h.unassign) // DELETE clears the assignment
		r.Put("/{id}/status", h.setStatus)   // PUT    body: {"status": "reserved"}
		r.Post("/{id}/sale", h.completeSale)
		r.Post("/{id}/sale/reverse", h.reverseSale) // admin only
	})
	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Get("/", h.listOrders)
		r.Post("/", h.createOrder)
		r.Get("/{id}", h.getOrder)
		r.Patch("/{id}", h.updateOrder)
		r.Delete("/{id}", h.deleteOrder)
	})
	r.Post("/api/v1/purchases", h.recordPurchase)
	r.Post("/api/v1/session/reload", h.reload)
	r.Delete("/api/v1/session", h.closeSession)
}

// engine resolves the caller's session or writes the error.
func (h *Handler) engine(w http.ResponseWriter, r *http.Request) (*workflow.Engine, bool) {
	s, err := h.sessions.Get(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return nil, false
	}
	return s.Workflow, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

// ── customers ────────────────────────────────────────────────────────────────

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}
	list, err := eng.Cache().Customers(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, list)
}

func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}
	c, err := eng.Cache().Customer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, c)
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}
	var req customer.Customer
	if !decode(w, r, &req) {
		return
	}
	c, err := eng.CreateCustomer(r.Context(), &req)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusCreated, c)
}

func (h *Handler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}
	var p customer.Patch
	if !decode(w, r, &p) {
		return
	}
	c, err := eng.UpdateCustomer(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, c)
}

func (h *Handler) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}
	if err := eng.DeleteCustomer(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "customer deleted"})
}

// ── watches ──────────────────────────────────────────────────────────────────

func (h *Handler) listWatches(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}
	list, err := eng.Cache().Watches(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if status := watch.Status(r.URL.Query().Get("status")); status != "" {
		list = lo.Filter(list, func(x *watch.Watch, _ int) bool { return x.Status == status })
	}
	respond(w, http.StatusOK, list)
}

func (h *Handler) getWatch(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}
	x, err := eng.Cache().Watch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, x)
}

func (h *Handler) createWatch(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}
	var d watch.Draft
	if !decode(w, r, &d) {
		return
	}
	x, err := eng.CreateWatch(r.Context(), d)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusCreated, x)
}

func (h *Handler) updateWatch(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}
	var p watch.Patch
	if !decode(w, r, &p) {
		return
	}
	x, err := eng.UpdateWatch(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, x)
}

func (h *Handler) deleteWatch(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}
	if err := eng.DeleteWatch(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "watch deleted"})
}

func (h *Handler) margin(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}
	rep, err := eng.Margin(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, rep)
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}
	var req struct {
		CustomerID string `json:"customer_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	x, err := eng.AssignCustomer(r.Context(), chi.URLParam(r, "id"), req.CustomerID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, x)
}

func (h *Handler) unassign(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}
	x, err := eng.ClearAssignment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, x)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}
	var req struct {
		Status watch.Status `json:"status"`
	}
	if !decode(w, r, &req) {
		return
	}
	x, err := eng.SetStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, x)
}

func (h *Handler) completeSale(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}
	var req workflow.SaleRequest
	if !decode(w, r, &req) {
		return
	}
	req.WatchID = chi.URLParam(r, "id")
	res, err := eng.CompleteSale(r.Context(), req)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("Sale completed",
		zap.String("watch_id", res.Watch.ID), zap.String("order_number", res.Order.OrderNumber))
	respond(w, http.StatusCreated, res)
}

func (h *Handler) reverseSale(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if !decode(w, r, &req) {
		return
	}
	res, err := eng.ReverseSale(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("Sale reversed",
		zap.String("watch_id", res.Watch.ID), zap.String("order_number", res.Order.OrderNumber))
	respond(w, http.StatusOK, res)
}

func (h *Handler) recordPurchase(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}
	var req workflow.PurchaseRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := eng.RecordPurchase(r.Context(), req)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusCreated, res)
}

// ── orders ───────────────────────────────────────────────────────────────────

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}
	var (
		list []*order.Order
		err  error
	)
	if watchID := r.URL.Query().Get("watch_id"); watchID != "" {
		list, err = eng.Cache().OrdersFor(r.Context(), watchID)
	} else {
		list, err = eng.Cache().Orders(r.Context())
	}
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, list)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}
	o, err := eng.Cache().Order(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, o)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}
	var d order.Draft
	if !decode(w, r, &d) {
		return
	}
	o, err := eng.CreateOrder(r.Context(), d)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusCreated, o)
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}
	var p order.Patch
	if !decode(w, r, &p) {
		return
	}
	o, err := eng.UpdateOrder(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, o)
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}
	if err := eng.DeleteOrder(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "order deleted"})
}

// ── session ──────────────────────────────────────────────────────────────────

func (h *Handler) closeSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(r.Context()); err != nil {
		respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) reload(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Reload(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	snap, err := s.Cache.Snapshot(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"customers": len(snap.Customers),
		"watches":   len(snap.Watches),
		"orders":    len(snap.Orders),
		"loaded_at": snap.LoadedAt,
	})
}

func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("Request failed", zap.Error(err))
	}
	respond(w, status, map[string]string{"error": err.Error()})
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
