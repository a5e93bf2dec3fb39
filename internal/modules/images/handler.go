package images

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/georgemunganga/watchdealer-backend/internal/pkg/apperr"
	"github.com/georgemunganga/watchdealer-backend/internal/pkg/logger"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler exposes image attachment HTTP endpoints.
type Handler struct {
	service  Service
	maxBytes int64
}

func NewHandler(service Service, maxBytes int64) *Handler {
	return &Handler{service: service, maxBytes: maxBytes}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/images", func(r chi.Router) {
		r.Post("/", h.upload)             // POST   /api/v1/images (multipart: file, category, entity_type, entity_id)
		r.Get("/", h.list)                // GET    /api/v1/images?entity_type=watch&entity_id=...
		r.Get("/{id}/content", h.content) // GET    /api/v1/images/{id}/content
		r.Delete("/{id}", h.remove)       // DELETE /api/v1/images/{id}
	})
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	// Allow room for the other form fields on top of the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+1<<20)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form: " + err.Error()})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "file is required"})
		return
	}
	defer file.Close()

	a, err := h.service.Upload(r.Context(), Upload{
		Body:         file,
		OriginalName: header.Filename,
		Category:     Category(r.FormValue("category")),
		EntityType:   EntityType(r.FormValue("entity_type")),
		EntityID:     r.FormValue("entity_id"),
	})
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusCreated, a)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.service.ListFor(r.Context(), EntityType(q.Get("entity_type")), q.Get("entity_id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, list)
}

func (h *Handler) content(w http.ResponseWriter, r *http.Request) {
	a, body, err := h.service.Open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", a.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(a.Size, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": a.OriginalName}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "private")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		logger.FromContext(r.Context()).Warn("image stream interrupted", zap.String("id", a.ID), zap.Error(err))
	}
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "image removed"})
}

func respondErr(w http.ResponseWriter, err error) {
	respond(w, apperr.HTTPStatus(err), map[string]string{"error": err.Error()})
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
