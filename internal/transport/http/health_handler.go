package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"canceldash/internal/services"
	"canceldash/pkg/contracts"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	service *services.HealthService
	logger  *slog.Logger
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(service *services.HealthService, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		service: service,
		logger:  logger.With(slog.String("component", "health_handler")),
	}
}

// Routes returns the health routes.
func (h *HealthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.GetHealth)
	r.Get("/ready", h.GetReady)

	return r
}

// GetHealth reports process and dataset status. Always 200; a missing
// dataset shows up as status "degraded".
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Check(r.Context()))
}

// GetReady returns 200 once the dataset is loaded, 503 before.
func (h *HealthHandler) GetReady(w http.ResponseWriter, r *http.Request) {
	if !h.service.Ready(r.Context()) {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, map[string]string{"status": "not ready"})
		return
	}
	render.JSON(w, r, map[string]string{"status": "ready"})
}

// GetVersion reports build and runtime version information.
func GetVersion(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, contracts.GetVersionInfo())
}
