package geocoder

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/penang-gov/surveillance/internal/auth"
	"github.com/penang-gov/surveillance/internal/shared/errors"
)

// Handler provides HTTP handlers for the geocoder module
type Handler struct {
	client *Client
}

// NewHandler creates a new geocoder handler
func NewHandler(client *Client) *Handler {
	return &Handler{client: client}
}

// Routes registers the geocoder routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(auth.RequirePermission(auth.PermCaseRegister)).Get("/search", h.Search)
	r.Get("/health", h.HealthCheck)

	return r
}

// Search proxies an address lookup for the registration form
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, errors.BadRequest("q is required"))
		return
	}

	results, err := h.client.Search(r.Context(), query)
	if err != nil {
		writeError(w, errors.Wrap(err, "address lookup failed"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": results})
}

// HealthCheck checks geocoding service health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.client.Health(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
