package location

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/abdulmahfud/ongkir-service/internal/expedition"
	"github.com/abdulmahfud/ongkir-service/internal/platform/httpx"
)

// Handler serves the location lookup endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers location routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/provinces", h.listProvinces)
	r.Get("/provinces/{provinceID}/regencies", h.listRegencies)
	r.Get("/regencies/{regencyID}/districts", h.listDistricts)
}

func (h *Handler) listProvinces(w http.ResponseWriter, r *http.Request) {
	places, err := h.service.Provinces(r.Context())
	if err != nil {
		h.respondLookupError(w, "provinces", err)
		return
	}
	httpx.JSON(w, http.StatusOK, placesEnvelope(places))
}

func (h *Handler) listRegencies(w http.ResponseWriter, r *http.Request) {
	provinceID, err := pathID(r, "provinceID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	places, err := h.service.Regencies(r.Context(), provinceID)
	if err != nil {
		h.respondLookupError(w, "regencies", err)
		return
	}
	httpx.JSON(w, http.StatusOK, placesEnvelope(places))
}

func (h *Handler) listDistricts(w http.ResponseWriter, r *http.Request) {
	regencyID, err := pathID(r, "regencyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	places, err := h.service.Districts(r.Context(), regencyID)
	if err != nil {
		h.respondLookupError(w, "districts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, placesEnvelope(places))
}

func (h *Handler) respondLookupError(w http.ResponseWriter, scope string, err error) {
	h.logger.Error("location lookup failed",
		slog.String("scope", scope),
		slog.Any("error", err),
	)
	httpx.RespondError(w, fmt.Errorf("%w: %s lookup", httpx.ErrUpstream, scope))
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", httpx.ErrValidation, name)
	}
	return id, nil
}

func placesEnvelope(places []expedition.Place) map[string]any {
	return map[string]any{
		"status": "success",
		"data":   places,
	}
}
